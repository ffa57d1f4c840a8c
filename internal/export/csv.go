// Package export turns extracted contacts into CSV and XLSX and hands the
// result to a file saver or the clipboard.
package export

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/zombor/contact-extractor/internal/scanning"
)

// Header is the first CSV row
var Header = []string{"Name", "Company", "Location", "Email", "Phone"}

// DefaultFilename is used for downloads when no name is given
const DefaultFilename = "extracted_contacts.csv"

func fields(c scanning.Contact) []string {
	return []string{c.Name, c.Company, c.Location, c.Email, c.Phone}
}

// escapeValue quotes a value that contains a delimiter, quote or line break
func escapeValue(value string) string {
	if strings.ContainsAny(value, ",\"\n\r") {
		return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
	}
	return value
}

// ToCSV renders contacts as CSV with a header row. Rows are joined with \n
// and there is no trailing newline. An empty list yields "".
func ToCSV(contacts []scanning.Contact) string {
	if len(contacts) == 0 {
		return ""
	}

	rows := make([]string, 0, len(contacts)+1)
	rows = append(rows, strings.Join(Header, ","))
	for _, c := range contacts {
		values := fields(c)
		for i, v := range values {
			values[i] = escapeValue(v)
		}
		rows = append(rows, strings.Join(values, ","))
	}
	return strings.Join(rows, "\n")
}

// ParseCSV reads text produced by ToCSV back into contacts. Line breaks
// inside quoted fields, including \r\n, are kept byte for byte.
func ParseCSV(text string) ([]scanning.Contact, error) {
	contacts := make([]scanning.Contact, 0)
	if text == "" {
		return contacts, nil
	}

	records, err := readRecords(text)
	if err != nil {
		return nil, err
	}
	if !slices.Equal(records[0], Header) {
		return nil, fmt.Errorf("unexpected header: %v", records[0])
	}

	for i, record := range records[1:] {
		if len(record) != len(Header) {
			return nil, fmt.Errorf("row %d: wrong number of fields: got %d, want %d", i+1, len(record), len(Header))
		}
		contacts = append(contacts, scanning.Contact{
			Name:     record[0],
			Company:  record[1],
			Location: record[2],
			Email:    record[3],
			Phone:    record[4],
		})
	}
	return contacts, nil
}

// readRecords splits CSV text into records. Rows end at \n or \r\n outside
// quotes; a trailing row terminator does not start an empty record.
func readRecords(text string) ([][]string, error) {
	var (
		records [][]string
		record  []string
		field   strings.Builder
		quoted  bool
		started bool // current record has content
	)
	endField := func() {
		record = append(record, field.String())
		field.Reset()
	}
	endRecord := func() {
		endField()
		records = append(records, record)
		record = nil
		started = false
	}

	for i := 0; i < len(text); i++ {
		c := text[i]
		if quoted {
			if c != '"' {
				field.WriteByte(c)
				continue
			}
			if i+1 < len(text) && text[i+1] == '"' {
				field.WriteByte('"')
				i++
				continue
			}
			quoted = false
			continue
		}

		switch c {
		case '"':
			if field.Len() > 0 {
				return nil, fmt.Errorf("bare quote in field at byte %d", i)
			}
			quoted = true
			started = true
		case ',':
			endField()
			started = true
		case '\r':
			if i+1 < len(text) && text[i+1] == '\n' {
				continue
			}
			field.WriteByte(c)
			started = true
		case '\n':
			endRecord()
		default:
			field.WriteByte(c)
			started = true
		}
	}
	if quoted {
		return nil, errors.New("unterminated quoted field")
	}
	if started || len(record) > 0 {
		endRecord()
	}
	if len(records) == 0 {
		return nil, errors.New("reading header: no records")
	}
	return records, nil
}
