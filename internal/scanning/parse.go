package scanning

import (
	"encoding/json"
	"fmt"
	"strings"
)

// parseContactsJSON parses the JSON array returned by a model
func parseContactsJSON(text string) ([]Contact, error) {
	// Remove markdown code blocks if present
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	text = strings.TrimSpace(text)

	// Find the array boundaries - look for first [ and last ]
	startIdx := strings.Index(text, "[")
	if startIdx == -1 {
		return nil, fmt.Errorf("no JSON array found in response")
	}
	endIdx := strings.LastIndex(text, "]")
	if endIdx < startIdx {
		return nil, fmt.Errorf("invalid JSON array in response")
	}
	raw := []byte(text[startIdx : endIdx+1])

	validator, err := contactListValidator()
	if err != nil {
		return nil, err
	}
	if err := validator.Validate(raw); err != nil {
		return nil, err
	}

	contacts := make([]Contact, 0)
	if err := json.Unmarshal(raw, &contacts); err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}
	return contacts, nil
}
