package export

import (
	"github.com/atotto/clipboard"

	"github.com/zombor/contact-extractor/internal/scanning"
)

// Clipboard accepts text for the system clipboard
type Clipboard interface {
	WriteAll(text string) error
}

// SystemClipboard writes to the OS clipboard (xclip/xsel/wl-copy, pbcopy or the Windows API)
type SystemClipboard struct{}

func (SystemClipboard) WriteAll(text string) error {
	return clipboard.WriteAll(text)
}

// CopyResult reports what Copy did
type CopyResult int

const (
	// CopyNothing means there were no contacts and the clipboard was left alone
	CopyNothing CopyResult = iota
	CopyDone
	CopyFailed
)

func (r CopyResult) String() string {
	switch r {
	case CopyDone:
		return "Copied!"
	case CopyFailed:
		return "Failed to copy"
	}
	return "Copy CSV"
}

// Copy puts the CSV for contacts on the clipboard
func Copy(cb Clipboard, contacts []scanning.Contact) (CopyResult, error) {
	if len(contacts) == 0 {
		return CopyNothing, nil
	}
	if err := cb.WriteAll(ToCSV(contacts)); err != nil {
		return CopyFailed, err
	}
	return CopyDone, nil
}
