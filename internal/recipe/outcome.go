package recipe

import (
	"encoding/json"
	"strings"
)

// ExtractOutcome finds the last JSON object in reply that contains an
// "outcome" key and returns its value. ok is false if no such object is
// present.
func ExtractOutcome(reply string) (outcome string, ok bool) {
	// Scan for candidate JSON object spans by bracket depth, right to
	// left isn't practical with a simple scanner, so collect all
	// top-level-ish object spans left to right and keep the last match.
	depth := 0
	start := -1
	var lastMatch string
	found := false

	for i, c := range reply {
		switch c {
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
				if depth == 0 && start >= 0 {
					candidate := reply[start : i+1]
					if v, matched := tryExtract(candidate); matched {
						lastMatch = v
						found = true
					}
					start = -1
				}
			}
		}
	}

	return lastMatch, found
}

func tryExtract(candidate string) (string, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(candidate), &obj); err != nil {
		return "", false
	}
	raw, ok := obj["outcome"]
	if !ok {
		return "", false
	}
	s, ok := raw.(string)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(s), true
}
