package parsers

import (
	"time"

	"github.com/gaurav-prasanna/partspipe/core"
	"github.com/gaurav-prasanna/partspipe/core/normalize"
)

// uvParser converts UV reactor specification tables into records.
// Same shape as the pump parser, with dose/UVT columns instead of
// head.
type uvParser struct {
	vendor   string
	currency string
	now      func() time.Time
}

func newUVParser(vendor string, opts Options) core.Parser {
	return &uvParser{vendor: vendor, currency: opts.DefaultCurrency, now: opts.Now}
}

func (p *uvParser) Parse(rows [][]string, url string) (*core.ParseResult, error) {
	if len(rows) < 2 {
		return &core.ParseResult{Report: core.ParseReport{Status: "no_rows"}}, nil
	}

	cols := resolveColumns(rows[0], []string{
		"model", "flow", "dose", "price", "sku", "power",
		"moq", "lead", "availability", "currency",
	})

	result := &core.ParseResult{}
	seen := p.now().UTC().Format(time.RFC3339)

	for _, row := range rows[1:] {
		model := cellAt(row, cols, "model")
		if model == "" {
			continue
		}

		skuKey := SKUFor(p.vendor, model)
		price := normalize.PriceFromText(cellAt(row, cols, "price"))
		currency := normalize.CurrencyOrDefault(cellAt(row, cols, "currency"), p.currency)

		partNumber := cellAt(row, cols, "sku")
		if partNumber == "" {
			partNumber = skuKey
		}

		specs := map[string]any{
			"flow_m3h":    normalize.FlowToM3PerHour(cellAt(row, cols, "flow")),
			"dose_mj_cm2": normalize.ToFloat(cellAt(row, cols, "dose")),
			"power_w":     normalize.ToFloat(cellAt(row, cols, "power")),
		}

		result.Suppliers = append(result.Suppliers, core.SupplierRecord{
			SKU:          skuKey,
			Name:         model,
			Brand:        p.vendor,
			Model:        model,
			Category:     "uv",
			URL:          url,
			Currency:     currency,
			Price:        price,
			Availability: cellAt(row, cols, "availability"),
			MOQ:          cellAt(row, cols, "moq"),
			LeadTime:     cellAt(row, cols, "lead"),
			LastSeen:     seen,
		})
		result.Parts = append(result.Parts, core.PartRecord{
			PartNumber:  partNumber,
			Description: model,
			Category:    "uv",
			SpecsJSON:   specsJSON(specs),
			Unit:        "ea",
			Price:       price,
			Currency:    currency,
			Supplier:    p.vendor,
			SKU:         skuKey,
			URL:         url,
			LastSeen:    seen,
		})
	}

	result.Report = report(len(result.Suppliers))
	return result, nil
}
