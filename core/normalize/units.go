// Package normalize converts free-text numeric fields into canonical
// units: flow to m³/h, head to meters, prices to bare floats, currency
// codes to upper case. All functions are pure and deliberately lenient:
// malformed input degrades to best-effort numeric extraction rather
// than failing the row.
package normalize

import (
	"regexp"
	"strconv"
	"strings"
)

// numberPattern matches the first signed or unsigned decimal number,
// after thousands separators have been stripped.
var numberPattern = regexp.MustCompile(`-?\d+(?:\.\d+)?`)

// quantityUnits maps recognized unit suffixes to a factor converting
// the value into the canonical unit for its dimension (m³/h for flow,
// meters for head). Checked in declaration order, longer suffixes
// first so "m3/h" and "gpm" are not shadowed by the bare "m".
var quantityUnits = []struct {
	suffix string
	factor float64
}{
	{"m3/h", 1},
	{"m³/h", 1},
	{"l/s", 3.6},
	{"l/h", 0.001},
	{"gpm", 0.227124},
	{"ft", 0.3048},
	{"bar", 10.1974}, // meters of water column
	{"kpa", 0.101974},
	{"m", 1},
}

// ToFloat strips whitespace and thousands separators, then extracts
// the first decimal number from the text. Returns nil when no number
// is present; it never fails.
func ToFloat(text string) *float64 {
	cleaned := strings.NewReplacer(" ", "", " ", "", ",", "").Replace(strings.TrimSpace(text))
	match := numberPattern.FindString(cleaned)
	if match == "" {
		return nil
	}
	f, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return nil
	}
	return &f
}

// ParseQuantity extracts a numeric value and converts it by the first
// recognized unit suffix found in the text. Returns nil when the text
// carries no number or no recognized unit.
func ParseQuantity(text string) *float64 {
	lower := strings.ToLower(text)
	v := ToFloat(text)
	if v == nil {
		return nil
	}
	for _, u := range quantityUnits {
		if strings.Contains(lower, u.suffix) {
			out := *v * u.factor
			return &out
		}
	}
	return nil
}

// FlowToM3PerHour converts a free-text flow value to cubic meters per
// hour. Recognized units: m3/h (canonical), L/h, gpm; anything else
// falls back to generic unit parsing, then to the bare number
// interpreted as already-canonical.
func FlowToM3PerHour(text string) *float64 {
	lower := strings.ToLower(text)
	v := ToFloat(text)
	if v == nil {
		return nil
	}
	switch {
	case strings.Contains(lower, "m3/h") || strings.Contains(lower, "m³/h"):
		return v
	case strings.Contains(lower, "l/h"):
		out := *v / 1000
		return &out
	case strings.Contains(lower, "gpm"):
		out := *v * 0.227124
		return &out
	}
	if q := ParseQuantity(text); q != nil {
		return q
	}
	return v
}

// HeadToMeters converts a free-text head/pressure value to meters.
func HeadToMeters(text string) *float64 {
	lower := strings.ToLower(text)
	v := ToFloat(text)
	if v == nil {
		return nil
	}
	if strings.Contains(lower, "m") {
		return v
	}
	if q := ParseQuantity(text); q != nil {
		return q
	}
	return v
}

// PriceFromText strips common currency symbols before extracting the
// numeric price. Returns nil for absent or negative prices.
func PriceFromText(text string) *float64 {
	cleaned := strings.NewReplacer("$", "", "R", "", "€", "", "£", "", "ZAR", "", "USD", "").Replace(text)
	v := ToFloat(cleaned)
	if v == nil || *v < 0 {
		return nil
	}
	return v
}

// CurrencyOrDefault returns the upper-cased currency code, or the
// given default when the code is absent.
func CurrencyOrDefault(code, def string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return strings.ToUpper(def)
	}
	return strings.ToUpper(code)
}
