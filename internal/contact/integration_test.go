package contact

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"

	"github.com/zombor/contact-extractor/internal/export"
	"github.com/zombor/contact-extractor/internal/scanning"
)

// fakeModel answers every request with a canned model response
type fakeModel struct {
	mu       sync.Mutex
	response string
	err      error
	requests []scanning.Request
}

func (m *fakeModel) Generate(ctx context.Context, req scanning.Request) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if m.err != nil {
		return "", m.err
	}
	return m.response, nil
}

func (m *fakeModel) Close() error {
	return nil
}

var _ = Describe("Integration", func() {
	var (
		tempDir  string
		db       *BoltDB
		model    *fakeModel
		service  *Service
		ghServer *ghttp.Server
		err      error
	)

	BeforeEach(func() {
		tempDir = GinkgoT().TempDir()

		db, err = NewBoltDB(filepath.Join(tempDir, "journal.db"))
		Expect(err).NotTo(HaveOccurred())

		model = &fakeModel{
			response: "```json\n" + `[
				{"name": "Jane Doe", "company": "Acme, Inc.", "location": "Springfield", "email": "jane@acme.test", "phone": "555-0100"},
				{"name": "John Roe", "company": "", "location": "", "email": "john@roe.test", "phone": ""}
			]` + "\n```",
		}
		extractor := scanning.NewExtractor(model, scanning.DefaultTimeout)
		service = NewService(extractor, db)

		server := NewServer(service, BasicAuth{})
		ghServer = ghttp.NewServer()
		ghServer.RouteToHandler("GET", anyPath, server.Handler().ServeHTTP)
		ghServer.RouteToHandler("POST", anyPath, server.Handler().ServeHTTP)
	})

	AfterEach(func() {
		service.Wait()
		ghServer.Close()
		Expect(db.Close()).To(Succeed())
	})

	It("uploads, extracts, exports and resets through the HTTP API", func() {
		body, formType := uploadBody("contacts.png", "image/png", []byte("fake png"))
		resp, err := http.Post(ghServer.URL()+"/api/upload", formType, body)
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(http.StatusAccepted))
		resp.Body.Close()

		service.Wait()
		snap := service.Snapshot()
		Expect(snap.Status).To(Equal(StatusSuccess))
		Expect(snap.Contacts).To(HaveLen(2))
		Expect(snap.Contacts[0].Company).To(Equal("Acme, Inc."))

		By("sending the encoded image and the contact schema to the model")
		Expect(model.requests).To(HaveLen(1))
		Expect(model.requests[0].MediaType).To(Equal("image/png"))
		decoded, err := scanning.DecodeImage(model.requests[0].EncodedImage)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(decoded)).To(Equal("fake png"))
		Expect(model.requests[0].Schema.Required()).To(Equal([]string{"name", "company", "location", "email", "phone"}))

		By("downloading a CSV that parses back to the same contacts")
		resp, err = http.Get(ghServer.URL() + "/api/contacts.csv")
		Expect(err).NotTo(HaveOccurred())
		csvBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		Expect(err).NotTo(HaveOccurred())
		parsed, err := export.ParseCSV(string(csvBody))
		Expect(err).NotTo(HaveOccurred())
		Expect(parsed).To(Equal(snap.Contacts))

		By("journaling the extraction in bbolt")
		extractions, err := db.ListExtractions()
		Expect(err).NotTo(HaveOccurred())
		Expect(extractions).To(HaveLen(1))
		Expect(extractions[0].Outcome).To(Equal(OutcomeSuccess))
		Expect(extractions[0].Contacts).To(Equal(2))

		By("resetting the session")
		resp, err = http.Post(ghServer.URL()+"/api/reset", "application/json", nil)
		Expect(err).NotTo(HaveOccurred())
		resp.Body.Close()
		Expect(service.Snapshot().Status).To(Equal(StatusIdle))

		resp, err = http.Get(ghServer.URL() + "/api/contacts.csv")
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
		resp.Body.Close()
	})

	It("writes the CSV export to local storage", func() {
		_, err := service.Extract(context.Background(), "contacts.png", []byte("fake png"), "image/png")
		Expect(err).NotTo(HaveOccurred())

		store, err := export.NewLocalStorage(filepath.Join(tempDir, "exports"))
		Expect(err).NotTo(HaveOccurred())

		path, err := export.Download(store, service.Contacts(), export.DefaultFilename)
		Expect(err).NotTo(HaveOccurred())

		data, err := os.ReadFile(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(Equal(export.ToCSV(service.Contacts())))
	})

	When("the model returns malformed output", func() {
		BeforeEach(func() {
			model.response = `[{"name": "Jane Doe"}]`
		})

		It("ends in the error state and journals the cause", func() {
			snap, err := service.Extract(context.Background(), "contacts.png", []byte("fake png"), "image/png")
			Expect(err).NotTo(HaveOccurred())
			Expect(snap.Status).To(Equal(StatusError))
			Expect(snap.Message).To(Equal(MessageFailed))
			Expect(snap.Contacts).To(BeEmpty())

			extractions, err := db.ListExtractions()
			Expect(err).NotTo(HaveOccurred())
			Expect(extractions).To(HaveLen(1))
			Expect(extractions[0].Outcome).To(Equal(OutcomeFailed))
			Expect(extractions[0].Error).NotTo(BeEmpty())
		})
	})

	When("the model returns an empty list", func() {
		BeforeEach(func() {
			model.response = "[]"
		})

		It("reports that no contacts were found", func() {
			snap, err := service.Extract(context.Background(), "contacts.png", []byte("fake png"), "image/png")
			Expect(err).NotTo(HaveOccurred())
			Expect(snap.Status).To(Equal(StatusError))
			Expect(snap.Message).To(Equal(MessageNoContacts))
		})
	})

	When("the model call fails", func() {
		BeforeEach(func() {
			model.err = errors.New("connection refused")
		})

		It("keeps the transport error out of the session message", func() {
			snap, err := service.Extract(context.Background(), "contacts.png", []byte("fake png"), "image/png")
			Expect(err).NotTo(HaveOccurred())
			Expect(snap.Message).To(Equal(MessageFailed))
			Expect(snap.Message).NotTo(ContainSubstring("connection refused"))

			extractions, err := db.ListExtractions()
			Expect(err).NotTo(HaveOccurred())
			Expect(extractions[0].Error).To(ContainSubstring("connection refused"))
		})
	})
})
