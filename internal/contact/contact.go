package contact

import (
	"time"

	"github.com/zombor/contact-extractor/internal/scanning"
)

// Status is the state of the extraction session
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// User-facing messages
const (
	MessageSuccess    = "Contacts extracted successfully!"
	MessageNoContacts = "No contacts were found in the image."
	MessageFailed     = "Failed to analyze the image. The image may be unclear or contain no contacts."
)

// ImageInfo describes the image currently shown in the session
type ImageInfo struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int    `json:"size"`
}

// Snapshot is a copy of the session state at one point in time
type Snapshot struct {
	Status     Status             `json:"status"`
	Message    string             `json:"message,omitempty"`
	Contacts   []scanning.Contact `json:"contacts"`
	Image      *ImageInfo         `json:"image,omitempty"`
	Generation uint64             `json:"generation"`
}

// Extraction outcomes recorded in the journal
const (
	OutcomeSuccess = "success"
	OutcomeEmpty   = "empty"
	OutcomeFailed  = "failed"
)

// Extraction is a journal entry for one finished extraction run
type Extraction struct {
	ID          string        `json:"id"`
	Filename    string        `json:"filename"`
	ContentType string        `json:"content_type"`
	Size        int           `json:"size"`
	Outcome     string        `json:"outcome"`
	Contacts    int           `json:"contacts"`
	Error       string        `json:"error,omitempty"`     // Diagnostic cause, never shown in the session
	Discarded   bool          `json:"discarded,omitempty"` // Session was reset or re-used before the result arrived
	StartedAt   time.Time     `json:"started_at"`
	Duration    time.Duration `json:"duration"`
}
