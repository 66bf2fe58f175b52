package parsers

import (
	"strings"
	"time"

	"github.com/gaurav-prasanna/partspipe/core"
	"github.com/gaurav-prasanna/partspipe/core/normalize"
)

// genericParser handles label/value spec sheets: two-column tables
// where each row is a ("Flow rate", "25 m3/h") pair describing a
// single product. It yields at most one supplier and one part record
// per table.
type genericParser struct {
	vendor   string
	currency string
	now      func() time.Time
}

func newGenericParser(vendor string, opts Options) core.Parser {
	return &genericParser{vendor: vendor, currency: opts.DefaultCurrency, now: opts.Now}
}

// labelPair is one label/value row, kept in table order so lookups
// are deterministic when several labels match the same candidate.
type labelPair struct {
	label string
	value string
}

func (p *genericParser) Parse(rows [][]string, url string) (*core.ParseResult, error) {
	labels := make([]labelPair, 0, len(rows))
	for _, row := range rows {
		// Strictly two columns: wider rows belong to columnar tables
		// and would be misread as label/value pairs.
		if len(row) != 2 {
			continue
		}
		label := strings.ToLower(strings.TrimSpace(row[0]))
		value := strings.TrimSpace(row[1])
		if label == "" || value == "" {
			continue
		}
		labels = append(labels, labelPair{label: label, value: value})
	}

	model := firstLabel(labels, columnCandidates["model"])
	if model == "" {
		return &core.ParseResult{Report: core.ParseReport{Status: "no_rows"}}, nil
	}

	skuKey := SKUFor(p.vendor, model)
	price := normalize.PriceFromText(firstLabel(labels, columnCandidates["price"]))
	currency := normalize.CurrencyOrDefault(firstLabel(labels, columnCandidates["currency"]), p.currency)
	seen := p.now().UTC().Format(time.RFC3339)

	partNumber := firstLabel(labels, columnCandidates["sku"])
	if partNumber == "" {
		partNumber = skuKey
	}

	specs := map[string]any{
		"flow_m3h": normalize.FlowToM3PerHour(firstLabel(labels, columnCandidates["flow"])),
		"head_m":   normalize.HeadToMeters(firstLabel(labels, columnCandidates["head"])),
		"power_w":  normalize.ToFloat(firstLabel(labels, columnCandidates["power"])),
	}

	return &core.ParseResult{
		Suppliers: []core.SupplierRecord{{
			SKU:          skuKey,
			Name:         model,
			Brand:        p.vendor,
			Model:        model,
			Category:     "general",
			URL:          url,
			Currency:     currency,
			Price:        price,
			Availability: firstLabel(labels, columnCandidates["availability"]),
			MOQ:          firstLabel(labels, columnCandidates["moq"]),
			LeadTime:     firstLabel(labels, columnCandidates["lead"]),
			LastSeen:     seen,
		}},
		Parts: []core.PartRecord{{
			PartNumber:  partNumber,
			Description: model,
			Category:    "general",
			SpecsJSON:   specsJSON(specs),
			Unit:        "ea",
			Price:       price,
			Currency:    currency,
			Supplier:    p.vendor,
			SKU:         skuKey,
			URL:         url,
			LastSeen:    seen,
		}},
		Report: core.ParseReport{Status: "ok", Rows: 1},
	}, nil
}

// firstLabel returns the value of the first row, in table order,
// whose label contains one of the candidate substrings.
func firstLabel(labels []labelPair, candidates []string) string {
	for _, candidate := range candidates {
		for _, pair := range labels {
			if strings.Contains(pair.label, candidate) {
				return pair.value
			}
		}
	}
	return ""
}
