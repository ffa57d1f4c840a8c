package scanning

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"strings"
	"time"
)

// contactScanPrompt is the shared instruction used by all model providers
const contactScanPrompt = `Analyze the provided image which contains contact information.
Identify each individual contact and extract the following details for each:
- Full Name
- Company Name
- Location or Address
- Email Address
- Phone Number

Return the data as a JSON array. If a piece of information is not available for a contact, return an empty string for that field.
Do not include any contacts that seem incomplete or are just titles or section headings.`

// DefaultTimeout bounds a single extraction call
const DefaultTimeout = 60 * time.Second

// Extractor implements Scanner on top of any Model
type Extractor struct {
	model   Model
	timeout time.Duration
}

// NewExtractor creates an Extractor. A zero timeout means DefaultTimeout.
func NewExtractor(model Model, timeout time.Duration) *Extractor {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Extractor{
		model:   model,
		timeout: timeout,
	}
}

// Extract sends one request to the model and parses the contact list.
// Every failure is returned as *AnalysisError.
func (e *Extractor) Extract(ctx context.Context, encodedImage, mediaType string) ([]Contact, error) {
	contacts, err := e.extract(ctx, encodedImage, mediaType)
	if err != nil {
		return nil, &AnalysisError{Cause: err}
	}
	return contacts, nil
}

func (e *Extractor) extract(ctx context.Context, encodedImage, mediaType string) ([]Contact, error) {
	if encodedImage == "" {
		return nil, fmt.Errorf("encoded image is empty")
	}
	if err := checkImageMediaType(mediaType); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	text, err := e.model.Generate(ctx, Request{
		EncodedImage: encodedImage,
		MediaType:    mediaType,
		Instruction:  contactScanPrompt,
		Schema:       ContactListSchema,
	})
	if err != nil {
		return nil, fmt.Errorf("generating content: %w", err)
	}
	slog.Debug("Model responded", "elapsed_ms", time.Since(start).Milliseconds(), "response_len", len(text))

	contacts, err := parseContactsJSON(text)
	if err != nil {
		return nil, fmt.Errorf("parsing contacts: %w", err)
	}
	return contacts, nil
}

// Close closes the underlying model
func (e *Extractor) Close() error {
	return e.model.Close()
}

// checkImageMediaType accepts image/<subtype> media types
func checkImageMediaType(mediaType string) error {
	mt, _, err := mime.ParseMediaType(mediaType)
	if err != nil {
		return fmt.Errorf("parsing media type %q: %w", mediaType, err)
	}
	typ, sub, ok := strings.Cut(mt, "/")
	if !ok || typ != "image" || sub == "" {
		return fmt.Errorf("unsupported media type %q", mediaType)
	}
	return nil
}
