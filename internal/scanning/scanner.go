package scanning

import (
	"context"
	"errors"
)

// Contact is a single entry extracted from a contact list image
type Contact struct {
	Name     string `json:"name"`
	Company  string `json:"company"`
	Location string `json:"location"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
}

// Request is one inference call against a vision model
type Request struct {
	EncodedImage string // standard base64, no data URL prefix
	MediaType    string // e.g. image/png
	Instruction  string
	Schema       Schema
}

// Model is a vision-capable inference endpoint that returns JSON text
type Model interface {
	// Generate sends the image and instruction and returns the raw response text
	Generate(ctx context.Context, req Request) (string, error)
	// Close releases the underlying client
	Close() error
}

// Scanner defines the interface for contact extraction
type Scanner interface {
	// Extract returns every contact found in an encoded image
	Extract(ctx context.Context, encodedImage, mediaType string) ([]Contact, error)
	// Close closes the scanner and releases resources
	Close() error
}

// ErrAnalysisFailed is matched by every extraction failure via errors.Is
var ErrAnalysisFailed = errors.New("unable to analyze the image")

// AnalysisError hides the cause of a failed extraction behind a fixed message.
// The cause stays reachable through Unwrap for logging.
type AnalysisError struct {
	Cause error
}

func (e *AnalysisError) Error() string {
	return ErrAnalysisFailed.Error()
}

func (e *AnalysisError) Unwrap() error {
	return e.Cause
}

func (e *AnalysisError) Is(target error) bool {
	return target == ErrAnalysisFailed
}
