package core

import (
	"encoding/json"
	"fmt"
)

// extractFirstJSON attempts to find the first top-level JSON object in a string
func extractFirstJSON(s string) string {
	start := -1
	depth := 0
	for i, ch := range s {
		if ch == '{' {
			if depth == 0 {
				start = i
			}
			depth++
		} else if ch == '}' {
			if depth > 0 {
				depth--
			}
			if depth == 0 && start != -1 {
				return s[start : i+1]
			}
		}
	}
	return s
}

// decodeJSONReply unmarshals an LLM reply into v, tolerating prose or code
// fences around the JSON object.
func decodeJSONReply(reply string, v interface{}) error {
	raw := extractFirstJSON(reply)
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("parse model reply: %w", err)
	}
	return nil
}
