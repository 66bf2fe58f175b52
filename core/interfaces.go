// Package core defines the pipeline types and interfaces for PartsPipe.
// Each stage of the pipeline is a clean, testable interface.
package core

import "context"

// Skip reasons recorded on a FetchResult when no body was retrieved.
const (
	SkipBlockedByRobots = "blocked_by_robots"
	SkipErrorPrefix     = "error: "
)

// Extraction methods recorded on a ParseOutcome and in evidence entries.
const (
	MethodParser      = "parser"
	MethodLLMFallback = "llm_fallback"
)

// FetchResult holds the raw bytes and response metadata from a fetch.
// SkipReason is non-empty when the URL yielded no body (robots block,
// network error, HTTP error); Body is nil in that case.
type FetchResult struct {
	URL         string
	ContentType string
	Body        []byte
	SkipReason  string
}

// Skipped reports whether the fetch produced no usable body.
func (r *FetchResult) Skipped() bool {
	return r.SkipReason != ""
}

// TableGroup is one detected table: an ordered sequence of rows of
// trimmed cell strings. Row 0 is the header when present. Page and
// Index locate the table within a multi-table document (both zero for
// HTML, where only the first table is extracted).
type TableGroup struct {
	Page  int        `json:"page"`
	Index int        `json:"index"`
	Rows  [][]string `json:"rows"`
}

// SupplierRecord is one row of the supplier store, keyed by SKU.
// The SKU is derived from slug(vendor, model) so re-crawling the same
// product always yields the same key.
type SupplierRecord struct {
	SKU          string   `json:"sku"`
	Name         string   `json:"name"`
	Brand        string   `json:"brand"`
	Model        string   `json:"model"`
	Category     string   `json:"category"`
	URL          string   `json:"url"`
	Currency     string   `json:"currency"`
	Price        *float64 `json:"price"`
	Availability string   `json:"availability"`
	MOQ          string   `json:"moq"`
	LeadTime     string   `json:"lead_time"`
	Notes        string   `json:"notes"`
	LastSeen     string   `json:"last_seen"`
}

// PartRecord is one row of the parts store, keyed by PartNumber.
// SpecsJSON is a normalized JSON object string: keys sorted, null
// fields omitted.
type PartRecord struct {
	PartNumber  string   `json:"part_number"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	SpecsJSON   string   `json:"specs_json"`
	Unit        string   `json:"unit"`
	Price       *float64 `json:"price"`
	Currency    string   `json:"currency"`
	Supplier    string   `json:"supplier"`
	SKU         string   `json:"sku"`
	URL         string   `json:"url"`
	Notes       string   `json:"notes"`
	LastSeen    string   `json:"last_seen"`
}

// ParseOutcome is the result of structured extraction for one URL.
type ParseOutcome struct {
	Suppliers  []SupplierRecord
	Parts      []PartRecord
	Method     string
	Confidence float64
}

// Empty reports whether the outcome carries no records at all.
func (o *ParseOutcome) Empty() bool {
	return o == nil || (len(o.Suppliers) == 0 && len(o.Parts) == 0)
}

// EvidenceEntry is the audit record for one processed URL: how (and
// whether) it yielded extracted data. Entries are append-only.
type EvidenceEntry struct {
	URL                string `json:"url"`
	Method             string `json:"method"`
	PromptExcerpt      string `json:"prompt_excerpt,omitempty"`
	RawResponseExcerpt string `json:"raw_response_excerpt,omitempty"`
	Error              string `json:"error,omitempty"`
}

// Fetcher retrieves raw bytes from a URL, honoring robots policies.
// Failures are captured in the FetchResult, never returned as errors:
// each URL in a batch is processed independently.
type Fetcher interface {
	Fetch(ctx context.Context, url string) *FetchResult
}

// TableExtractor pulls tabular structures out of a fetched document.
type TableExtractor interface {
	Extract(res *FetchResult) []TableGroup
}

// Parser converts table rows into supplier and part records for one
// equipment class. Implementations must skip unparseable rows rather
// than fail the batch.
type Parser interface {
	Parse(rows [][]string, url string) (*ParseResult, error)
}

// ParseReport summarizes a single parser invocation.
type ParseReport struct {
	Status string `json:"status"` // "ok" | "no_rows"
	Rows   int    `json:"rows"`
}

// ParseResult is the raw output of a vendor parser, before the
// dispatcher wraps it into a ParseOutcome.
type ParseResult struct {
	Suppliers []SupplierRecord
	Parts     []PartRecord
	Report    ParseReport
}

// Router forwards a prompt to a model backend selected by task name.
// Provider-specific failures collapse to a single error.
type Router interface {
	Complete(ctx context.Context, task, prompt string) (string, error)
}
