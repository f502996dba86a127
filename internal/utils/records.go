package utils

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ParseRecords decodes either a single JSON object or an array of objects.
// Numbers are kept as json.Number so integer fields survive untouched.
func ParseRecords(input []byte) ([]map[string]any, error) {
	data := bytes.TrimPrefix(input, []byte("\ufeff"))
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("empty input")
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	switch data[0] {
	case '{':
		var rec map[string]any
		if err := dec.Decode(&rec); err != nil {
			return nil, fmt.Errorf("failed to parse record: %w", err)
		}
		if dec.More() {
			return nil, fmt.Errorf("unexpected data after record")
		}
		return []map[string]any{rec}, nil
	case '[':
		var recs []map[string]any
		if err := dec.Decode(&recs); err != nil {
			return nil, fmt.Errorf("failed to parse record list: %w", err)
		}
		if dec.More() {
			return nil, fmt.Errorf("unexpected data after record list")
		}
		return recs, nil
	}
	return nil, fmt.Errorf("expected a JSON object or array, got %q", truncateString(string(data), 20))
}

// truncateString truncates a string to maxLen characters
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
