package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gaurav-prasanna/partspipe/core"
	"github.com/gaurav-prasanna/partspipe/core/normalize"
	"github.com/gaurav-prasanna/partspipe/core/parsers"
	"go.uber.org/zap"
)

const (
	// reasonTask selects the model backend for extraction prompts.
	reasonTask = "reason"
	// maxPreviewRows bounds prompt token usage.
	maxPreviewRows = 30
	// excerptLen bounds prompt/response excerpts in evidence entries.
	excerptLen = 400

	fallbackConfidence = 0.5
)

// Extractor asks a language model to emit structured supplier/part
// JSON when no vendor parser recognized the page.
type Extractor struct {
	router   core.Router
	currency string
	now      func() time.Time
	logger   *zap.Logger
}

// NewExtractor creates an Extractor over the given router.
func NewExtractor(router core.Router, defaultCurrency string, now func() time.Time, logger *zap.Logger) *Extractor {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{router: router, currency: defaultCurrency, now: now, logger: logger}
}

// llmRow is the flat row schema the model is instructed to emit.
// Specs may legitimately come back as a nested object; it is
// re-serialized to a string before storage.
type llmRow struct {
	SKU          string          `json:"sku"`
	PartNumber   string          `json:"part_number"`
	Name         string          `json:"name"`
	Brand        string          `json:"brand"`
	Model        string          `json:"model"`
	Description  string          `json:"description"`
	Category     string          `json:"category"`
	URL          string          `json:"url"`
	Currency     string          `json:"currency"`
	Price        *float64        `json:"price"`
	Availability string          `json:"availability"`
	MOQ          string          `json:"moq"`
	LeadTime     string          `json:"lead_time"`
	Unit         string          `json:"unit"`
	Supplier     string          `json:"supplier"`
	Notes        string          `json:"notes"`
	Specs        json.RawMessage `json:"specs"`
}

// llmPayload is the two-array response schema.
type llmPayload struct {
	Suppliers []llmRow `json:"suppliers"`
	Parts     []llmRow `json:"parts"`
}

// Extract prompts the model with a bounded row preview and parses its
// response, repairing malformed JSON when needed. On failure the URL
// contributes no records and the evidence entry carries the error.
func (e *Extractor) Extract(ctx context.Context, url string, rows [][]string) (*core.ParseOutcome, core.EvidenceEntry) {
	prompt := buildPrompt(url, rows)
	evidence := core.EvidenceEntry{
		URL:           url,
		Method:        core.MethodLLMFallback,
		PromptExcerpt: excerpt(prompt),
	}

	raw, err := e.router.Complete(ctx, reasonTask, prompt)
	if err != nil {
		evidence.Error = err.Error()
		return nil, evidence
	}
	evidence.RawResponseExcerpt = excerpt(raw)

	var payload llmPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		if repErr := RepairJSON(raw, &payload); repErr != nil {
			e.logger.Warn("llm response unparseable", zap.String("url", url), zap.Error(repErr))
			evidence.Error = fmt.Sprintf("parse: %v; repair: %v", err, repErr)
			return nil, evidence
		}
	}

	outcome := e.buildOutcome(url, &payload)
	if outcome.Empty() {
		evidence.Error = "llm returned no rows"
		return nil, evidence
	}
	return outcome, evidence
}

// buildOutcome converts the model payload into records, stamping the
// source URL and last-seen timestamp on every row.
func (e *Extractor) buildOutcome(url string, payload *llmPayload) *core.ParseOutcome {
	seen := e.now().UTC().Format(time.RFC3339)
	outcome := &core.ParseOutcome{Method: core.MethodLLMFallback, Confidence: fallbackConfidence}

	for _, row := range payload.Suppliers {
		model := firstNonEmpty(row.Model, row.Name)
		if model == "" {
			continue
		}
		brand := firstNonEmpty(row.Brand, row.Supplier, "Unknown")
		sku := row.SKU
		if sku == "" {
			sku = parsers.SKUFor(brand, model)
		}
		outcome.Suppliers = append(outcome.Suppliers, core.SupplierRecord{
			SKU:          sku,
			Name:         firstNonEmpty(row.Name, model),
			Brand:        brand,
			Model:        model,
			Category:     firstNonEmpty(row.Category, "general"),
			URL:          firstNonEmpty(row.URL, url),
			Currency:     normalize.CurrencyOrDefault(row.Currency, e.currency),
			Price:        row.Price,
			Availability: row.Availability,
			MOQ:          row.MOQ,
			LeadTime:     row.LeadTime,
			Notes:        row.Notes,
			LastSeen:     seen,
		})
	}

	for _, row := range payload.Parts {
		partNumber := firstNonEmpty(row.PartNumber, row.SKU)
		if partNumber == "" {
			continue
		}
		outcome.Parts = append(outcome.Parts, core.PartRecord{
			PartNumber:  partNumber,
			Description: firstNonEmpty(row.Description, row.Name, row.Model),
			Category:    firstNonEmpty(row.Category, "general"),
			SpecsJSON:   specsToString(row.Specs),
			Unit:        firstNonEmpty(row.Unit, "ea"),
			Price:       row.Price,
			Currency:    normalize.CurrencyOrDefault(row.Currency, e.currency),
			Supplier:    firstNonEmpty(row.Supplier, row.Brand, "Unknown"),
			SKU:         row.SKU,
			URL:         firstNonEmpty(row.URL, url),
			Notes:       row.Notes,
			LastSeen:    seen,
		})
	}
	return outcome
}

// buildPrompt assembles the extraction prompt with a truncated row
// preview to bound token usage.
func buildPrompt(url string, rows [][]string) string {
	var b strings.Builder
	b.WriteString("Extract supplier and part records from this product table.\n")
	b.WriteString("Respond with exactly one JSON object of the form\n")
	b.WriteString(`{"suppliers": [...], "parts": [...]}` + "\n")
	b.WriteString("Allowed fields per row: sku, part_number, name, brand, model, description, ")
	b.WriteString("category, url, currency, price, availability, moq, lead_time, unit, supplier, notes, specs.\n")
	b.WriteString("Use null for unknown fields. Emit no text outside the JSON object.\n\n")
	b.WriteString("Source URL: " + url + "\n\nTable rows:\n")

	for i, row := range rows {
		if i >= maxPreviewRows {
			fmt.Fprintf(&b, "... (%d more rows truncated)\n", len(rows)-maxPreviewRows)
			break
		}
		b.WriteString(strings.Join(row, " | "))
		b.WriteByte('\n')
	}
	return b.String()
}

// specsToString normalizes the model's specs field to a flat string:
// objects and arrays are serialized compactly, quoted strings are
// unquoted, null becomes "".
func specsToString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return trimmed
}

func excerpt(s string) string {
	if len(s) <= excerptLen {
		return s
	}
	return s[:excerptLen] + "..."
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
