package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// RepairJSON extracts the first balanced {...} or [...] substring
// from a chatty model response and re-parses it into dst. Used when
// the strict parse of the raw response fails.
func RepairJSON(raw string, dst any) error {
	candidate := balancedSlice(raw)
	if candidate == "" {
		return fmt.Errorf("no JSON object or array found in response")
	}
	if err := json.Unmarshal([]byte(candidate), dst); err != nil {
		return fmt.Errorf("reparsing repaired JSON: %w", err)
	}
	return nil
}

// balancedSlice returns the first balanced top-level JSON object or
// array in the text, respecting string literals and escapes.
func balancedSlice(raw string) string {
	start := strings.IndexAny(raw, "{[")
	if start < 0 {
		return ""
	}
	open := raw[start]
	closer := byte('}')
	if open == '[' {
		closer = ']'
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(raw); i++ {
		c := raw[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
			// string content, no structural meaning
		case c == open:
			depth++
		case c == closer:
			depth--
			if depth == 0 {
				return raw[start : i+1]
			}
		}
	}
	return ""
}
