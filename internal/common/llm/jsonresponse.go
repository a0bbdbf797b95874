package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// DecodeJSON unmarshals model output into out. Markdown fences and leading
// chatter are stripped, and malformed JSON gets one repair attempt.
func DecodeJSON(raw string, out interface{}) error {
	text := ExtractJSON(raw)
	if text == "" {
		return fmt.Errorf("no JSON object in model output")
	}

	if err := json.Unmarshal([]byte(text), out); err == nil {
		return nil
	}

	fixed, err := jsonrepair.JSONRepair(text)
	if err != nil {
		return fmt.Errorf("repair model JSON: %w", err)
	}
	if err := json.Unmarshal([]byte(fixed), out); err != nil {
		return fmt.Errorf("decode model JSON: %w", err)
	}
	return nil
}

// ExtractJSON returns the first {...} span in s, or s trimmed when there is
// no opening brace.
func ExtractJSON(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}

	start := strings.Index(s, "{")
	if start < 0 {
		return s
	}
	end := strings.LastIndex(s, "}")
	if end < start {
		return s[start:]
	}
	return s[start : end+1]
}
