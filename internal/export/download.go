package export

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/zombor/contact-extractor/internal/scanning"
)

// ErrNoContacts is returned when there is nothing to export
var ErrNoContacts = errors.New("no contacts to export")

// Download renders contacts as CSV and hands them to saver.
// An empty list never reaches the saver.
func Download(saver Saver, contacts []scanning.Contact, filename string) (string, error) {
	if len(contacts) == 0 {
		return "", ErrNoContacts
	}
	if filename == "" {
		filename = DefaultFilename
	}

	path, err := saver.Save(filename, []byte(ToCSV(contacts)))
	if err != nil {
		return "", fmt.Errorf("saving csv: %w", err)
	}
	slog.Info("Exported contacts", "path", path, "count", len(contacts))
	return path, nil
}
