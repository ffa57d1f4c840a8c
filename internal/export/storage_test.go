package export

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("LocalStorage", func() {
	var (
		tmpDir  string
		storage *LocalStorage
	)

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		var err error
		storage, err = NewLocalStorage(filepath.Join(tmpDir, "exports"))
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("Save", func() {
		var (
			filename  string
			data      []byte
			savedPath string
			err       error
		)

		BeforeEach(func() {
			filename = "contacts.csv"
			data = []byte("Name,Company,Location,Email,Phone\nJane,,,,")
		})

		JustBeforeEach(func() {
			savedPath, err = storage.Save(filename, data)
		})

		When("saving succeeds", func() {
			It("should not return an error", func() {
				Expect(err).NotTo(HaveOccurred())
			})

			It("should return the full path", func() {
				Expect(savedPath).To(Equal(filepath.Join(tmpDir, "exports", filename)))
			})

			It("should save the file to disk", func() {
				Expect(savedPath).To(BeAnExistingFile())
				Expect(storage.Get(filename)).To(Equal(data))
			})

			It("should leave no temporary files behind", func() {
				entries, readErr := os.ReadDir(filepath.Join(tmpDir, "exports"))
				Expect(readErr).NotTo(HaveOccurred())
				Expect(entries).To(HaveLen(1))
			})
		})

		When("the filename contains directories", func() {
			BeforeEach(func() {
				filename = "../../escape.csv"
			})

			It("keeps the file inside the storage directory", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(savedPath).To(Equal(filepath.Join(tmpDir, "exports", "escape.csv")))
			})
		})

		When("the directory has been removed", func() {
			BeforeEach(func() {
				Expect(os.RemoveAll(filepath.Join(tmpDir, "exports"))).To(Succeed())
			})

			It("returns an error", func() {
				Expect(err).To(HaveOccurred())
			})
		})
	})

	Describe("Get", func() {
		When("file does not exist", func() {
			It("returns an error", func() {
				_, err := storage.Get("missing.csv")
				Expect(err).To(HaveOccurred())
			})
		})
	})
})
