package contact

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zombor/contact-extractor/internal/metrics"
	"github.com/zombor/contact-extractor/internal/scanning"
)

// ErrBusy is returned when an upload arrives while an extraction is running
var ErrBusy = errors.New("an extraction is already in progress")

// ErrClosed is returned for uploads after Close
var ErrClosed = errors.New("extraction service is closed")

// IDGenerator generates unique IDs for extraction records
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// defaultIDGenerator generates random UUIDs
type defaultIDGenerator struct{}

func (g *defaultIDGenerator) Generate() string {
	return uuid.NewString()
}

// defaultTimeSource provides the current time
type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// image is the uploaded file held for the current session
type image struct {
	filename    string
	contentType string
	data        []byte
}

// Service is the extraction session controller. It owns the session state;
// results from runs started before the latest upload or reset are dropped.
type Service struct {
	scanner     scanning.Scanner
	journal     Journal
	idGenerator IDGenerator
	timeSource  TimeSource

	mu         sync.Mutex
	status     Status
	message    string
	contacts   []scanning.Contact
	image      *image
	generation uint64
	cancel     context.CancelFunc
	closed     bool

	// runs.Add only happens under mu while !closed
	runs sync.WaitGroup
}

// NewService creates a new Service with default ID generator and time source.
// A nil journal disables the extraction journal.
func NewService(scanner scanning.Scanner, journal Journal) *Service {
	return NewServiceWithDeps(scanner, journal, &defaultIDGenerator{}, &defaultTimeSource{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(scanner scanning.Scanner, journal Journal, idGen IDGenerator, timeSrc TimeSource) *Service {
	if journal == nil {
		journal = noJournal{}
	}
	return &Service{
		scanner:     scanner,
		journal:     journal,
		idGenerator: idGen,
		timeSource:  timeSrc,
		status:      StatusIdle,
	}
}

// Upload starts an extraction in the background and returns the loading state.
// It returns ErrBusy, leaving everything untouched, while a run is in flight.
func (s *Service) Upload(filename string, data []byte, contentType string) (Snapshot, error) {
	ctx, gen, err := s.begin(filename, data, contentType)
	if err != nil {
		return s.Snapshot(), err
	}
	snap := s.Snapshot()

	go func() {
		defer s.runs.Done()
		s.run(ctx, gen, filename, data, contentType)
	}()
	return snap, nil
}

// Extract runs an extraction to completion and returns the resulting state
func (s *Service) Extract(ctx context.Context, filename string, data []byte, contentType string) (Snapshot, error) {
	runCtx, gen, err := s.begin(filename, data, contentType)
	if err != nil {
		return s.Snapshot(), err
	}

	// Tie the run to the caller as well as to Reset
	stop := context.AfterFunc(ctx, s.cancelRun(gen))
	defer stop()

	defer s.runs.Done()
	s.run(runCtx, gen, filename, data, contentType)
	return s.Snapshot(), nil
}

// begin moves the session to loading and returns the run's context and generation.
// On success the run is counted in s.runs and the caller must call s.runs.Done.
func (s *Service) begin(filename string, data []byte, contentType string) (context.Context, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, 0, ErrClosed
	}
	if s.status == StatusLoading {
		slog.Warn("Upload rejected while loading", "filename", filename)
		return nil, 0, ErrBusy
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.generation++
	s.cancel = cancel
	s.status = StatusLoading
	s.message = ""
	s.contacts = nil
	s.image = &image{
		filename:    filename,
		contentType: contentType,
		data:        data,
	}
	s.runs.Add(1)
	return ctx, s.generation, nil
}

// cancelRun returns a func that cancels the run of generation gen if it is still current
func (s *Service) cancelRun(gen uint64) func() {
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.generation == gen && s.cancel != nil {
			s.cancel()
		}
	}
}

// run prepares, encodes and extracts, then stores the outcome
func (s *Service) run(ctx context.Context, gen uint64, filename string, data []byte, contentType string) {
	start := s.timeSource.Now()
	record := &Extraction{
		ID:          s.idGenerator.Generate(),
		Filename:    filename,
		ContentType: contentType,
		Size:        len(data),
		StartedAt:   start,
	}

	var (
		contacts []scanning.Contact
		err      error
	)
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("extraction panicked: %v", r)
			}
		}()
		contacts, err = s.extract(ctx, data, contentType)
	}()

	record.Duration = s.timeSource.Now().Sub(start)
	s.finish(gen, record, contacts, err)
}

func (s *Service) extract(ctx context.Context, data []byte, contentType string) ([]scanning.Contact, error) {
	prepared, mediaType, err := scanning.PrepareImage(data, contentType)
	if err != nil {
		return nil, fmt.Errorf("preparing image: %w", err)
	}

	encoded, err := scanning.EncodeImage(bytes.NewReader(prepared))
	if err != nil {
		return nil, fmt.Errorf("encoding image: %w", err)
	}

	contacts, err := s.scanner.Extract(ctx, encoded, mediaType)
	if err != nil {
		return nil, fmt.Errorf("extracting contacts: %w", err)
	}
	return contacts, nil
}

// finish applies a run's outcome if the run is still current and journals it either way
func (s *Service) finish(gen uint64, record *Extraction, contacts []scanning.Contact, err error) {
	switch {
	case err != nil:
		record.Outcome = OutcomeFailed
		record.Error = diagnostic(err)
		slog.Error("Failed to extract contacts",
			"filename", record.Filename,
			"content_type", record.ContentType,
			"file_size", record.Size,
			"error", record.Error,
		)
	case len(contacts) == 0:
		record.Outcome = OutcomeEmpty
	default:
		record.Outcome = OutcomeSuccess
		record.Contacts = len(contacts)
	}

	s.mu.Lock()
	if gen != s.generation {
		record.Discarded = true
	} else {
		if s.cancel != nil {
			s.cancel()
			s.cancel = nil
		}
		s.contacts = nil
		switch record.Outcome {
		case OutcomeFailed:
			s.status = StatusError
			s.message = MessageFailed
		case OutcomeEmpty:
			s.status = StatusError
			s.message = MessageNoContacts
		default:
			s.status = StatusSuccess
			s.message = MessageSuccess
			s.contacts = contacts
		}
	}
	s.mu.Unlock()

	status := record.Outcome
	if record.Discarded {
		status = "discarded"
		slog.Debug("Discarded stale extraction result", "id", record.ID, "generation", gen)
	}
	metrics.ObserveExtraction(status, record.Contacts, record.Duration)

	if err := s.journal.SaveExtraction(record); err != nil {
		slog.Warn("Failed to journal extraction", "id", record.ID, "error", err)
	}
}

// diagnostic returns the innermost cause text behind the fixed analysis message
func diagnostic(err error) string {
	var analysisErr *scanning.AnalysisError
	if errors.As(err, &analysisErr) && analysisErr.Cause != nil {
		return analysisErr.Cause.Error()
	}
	return err.Error()
}

// Reset returns the session to idle and abandons any in-flight run
func (s *Service) Reset() Snapshot {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.generation++
	s.status = StatusIdle
	s.message = ""
	s.contacts = nil
	s.image = nil
	s.mu.Unlock()

	return s.Snapshot()
}

// Snapshot returns a copy of the session state
func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Status:     s.status,
		Message:    s.message,
		Contacts:   append(make([]scanning.Contact, 0, len(s.contacts)), s.contacts...),
		Generation: s.generation,
	}
	if s.image != nil {
		snap.Image = &ImageInfo{
			Filename:    s.image.filename,
			ContentType: s.image.contentType,
			Size:        len(s.image.data),
		}
	}
	return snap
}

// Contacts returns the contacts of the current session
func (s *Service) Contacts() []scanning.Contact {
	return s.Snapshot().Contacts
}

// Image returns the uploaded image of the current session
func (s *Service) Image() ([]byte, string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.image == nil {
		return nil, "", false
	}
	return s.image.data, s.image.contentType, true
}

// ListExtractions returns the extraction journal
func (s *Service) ListExtractions() ([]*Extraction, error) {
	extractions, err := s.journal.ListExtractions()
	if err != nil {
		return nil, fmt.Errorf("listing extractions: %w", err)
	}
	return extractions, nil
}

// GetExtraction retrieves one journal entry
func (s *Service) GetExtraction(id string) (*Extraction, error) {
	extraction, err := s.journal.GetExtraction(id)
	if err != nil {
		return nil, fmt.Errorf("getting extraction: %w", err)
	}
	return extraction, nil
}

// Wait blocks until every started run has finished
func (s *Service) Wait() {
	s.runs.Wait()
}

// Close rejects further uploads, abandons the in-flight run and waits for it
func (s *Service) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.Reset()
	s.runs.Wait()
}
