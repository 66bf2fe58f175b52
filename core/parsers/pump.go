package parsers

import (
	"time"

	"github.com/gaurav-prasanna/partspipe/core"
	"github.com/gaurav-prasanna/partspipe/core/normalize"
)

// pumpParser converts pump specification tables into records. It
// expects a header row naming at least a model column; flow, head,
// power, and commercial columns are optional.
type pumpParser struct {
	vendor   string
	currency string
	now      func() time.Time
}

func newPumpParser(vendor string, opts Options) core.Parser {
	return &pumpParser{vendor: vendor, currency: opts.DefaultCurrency, now: opts.Now}
}

func (p *pumpParser) Parse(rows [][]string, url string) (*core.ParseResult, error) {
	if len(rows) < 2 {
		return &core.ParseResult{Report: core.ParseReport{Status: "no_rows"}}, nil
	}

	cols := resolveColumns(rows[0], []string{
		"model", "flow", "head", "price", "sku", "power",
		"moq", "lead", "availability", "currency",
	})

	result := &core.ParseResult{}
	seen := p.now().UTC().Format(time.RFC3339)

	for _, row := range rows[1:] {
		model := cellAt(row, cols, "model")
		if model == "" {
			continue // unusable row, skip it and keep going
		}

		skuKey := SKUFor(p.vendor, model)
		price := normalize.PriceFromText(cellAt(row, cols, "price"))
		currency := normalize.CurrencyOrDefault(cellAt(row, cols, "currency"), p.currency)

		partNumber := cellAt(row, cols, "sku")
		if partNumber == "" {
			partNumber = skuKey
		}

		specs := map[string]any{
			"flow_m3h": normalize.FlowToM3PerHour(cellAt(row, cols, "flow")),
			"head_m":   normalize.HeadToMeters(cellAt(row, cols, "head")),
			"power_w":  normalize.ToFloat(cellAt(row, cols, "power")),
		}

		result.Suppliers = append(result.Suppliers, core.SupplierRecord{
			SKU:          skuKey,
			Name:         model,
			Brand:        p.vendor,
			Model:        model,
			Category:     "pump",
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
			Category:    "pump",
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

// report builds the closing parse report from the extracted row count.
func report(rows int) core.ParseReport {
	if rows == 0 {
		return core.ParseReport{Status: "no_rows"}
	}
	return core.ParseReport{Status: "ok", Rows: rows}
}
