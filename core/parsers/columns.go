// Package parsers maps URLs and category hints to vendor-specific
// table parsers. A parser-first policy applies throughout: heuristic
// parsers are cheap, deterministic, and auditable, so any parser
// producing at least one row wins over the LLM fallback.
package parsers

import (
	"encoding/json"
	"strings"

	"github.com/gosimple/slug"
)

// Column resolution candidates per logical field, in priority order.
// A field resolves to the first header cell containing one of its
// candidates as a substring; unresolved fields stay null on the row
// rather than failing it.
var columnCandidates = map[string][]string{
	"model":        {"model", "name", "product"},
	"flow":         {"flow", "capacity"},
	"head":         {"head", "pressure", "lift"},
	"price":        {"price", "cost"},
	"sku":          {"sku", "part", "code", "item"},
	"power":        {"power", "watt"},
	"dose":         {"dose", "uvt"},
	"moq":          {"moq", "min order", "minimum"},
	"lead":         {"lead", "delivery"},
	"availability": {"availability", "stock"},
	"currency":     {"currency"},
}

// resolveColumns maps logical field names to header column indices.
// The header row is lower-cased before matching; fields whose
// candidates match no header are absent from the result.
func resolveColumns(header []string, fields []string) map[string]int {
	lowered := make([]string, len(header))
	for i, h := range header {
		lowered[i] = strings.ToLower(h)
	}

	cols := make(map[string]int)
	for _, field := range fields {
		for _, candidate := range columnCandidates[field] {
			if idx := findColumn(lowered, candidate); idx >= 0 {
				cols[field] = idx
				break
			}
		}
	}
	return cols
}

// findColumn returns the index of the first header containing the
// candidate substring, or -1.
func findColumn(lowered []string, candidate string) int {
	for i, h := range lowered {
		if strings.Contains(h, candidate) {
			return i
		}
	}
	return -1
}

// cellAt returns the trimmed cell at the resolved column for a field,
// or "" when the field did not resolve or the row is too short.
// Ragged rows from the table extractor never fail here.
func cellAt(row []string, cols map[string]int, field string) string {
	idx, ok := cols[field]
	if !ok || idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// SKUFor derives the stable record key from vendor and model. The
// slug is deterministic, so re-crawling the same product yields the
// same key.
func SKUFor(vendor, model string) string {
	return slug.Make(vendor + " " + model)
}

// specsJSON serializes a spec map to a normalized JSON string: keys
// sorted (json.Marshal sorts map keys), nil values omitted. Returns
// "" for an effectively empty map.
func specsJSON(specs map[string]any) string {
	compact := make(map[string]any, len(specs))
	for k, v := range specs {
		if v == nil {
			continue
		}
		if p, ok := v.(*float64); ok {
			if p == nil {
				continue
			}
			compact[k] = *p
		} else {
			compact[k] = v
		}
	}
	if len(compact) == 0 {
		return ""
	}
	b, err := json.Marshal(compact)
	if err != nil {
		return ""
	}
	return string(b)
}
