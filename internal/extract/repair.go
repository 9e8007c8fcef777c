package extract

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrNotObject is returned by Repair when the text does not start with '{'.
var ErrNotObject = errors.New("extract: cannot repair text that does not start with '{'")

// ErrUnrepairable is returned by Repair when no balanced prefix parses.
var ErrUnrepairable = errors.New("extract: no balanced JSON object prefix")

// Repair recovers a JSON object from text with trailing garbage or
// truncation after a complete object. It scans for the first position where
// brace depth returns to zero outside string literals and parses the prefix
// up to that point.
func Repair(text string) (map[string]any, string, error) {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "{") {
		return nil, "", ErrNotObject
	}

	end := balancedEnd(trimmed)
	if end <= 0 {
		return nil, "", ErrUnrepairable
	}

	prefix := trimmed[:end]
	var record map[string]any
	if err := json.Unmarshal([]byte(prefix), &record); err != nil {
		return nil, "", ErrUnrepairable
	}
	return record, prefix, nil
}

// balancedEnd returns the index just past the first closing brace that
// brings depth back to zero, or 0 when depth never returns to zero.
func balancedEnd(s string) int {
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}
	return 0
}
