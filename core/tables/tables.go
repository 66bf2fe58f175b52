// Package tables implements the TableExtractor interface.
// It routes a fetch result by content type: PDF documents yield one
// table group per detected table per page, HTML pages yield the first
// <table> element only. Pages are assumed to carry one primary
// specification table; multi-table HTML pages are a known, documented
// scope limitation.
package tables

import (
	"strings"

	"github.com/gaurav-prasanna/partspipe/core"
)

// Extractor routes raw bytes to the HTML or PDF table extractor.
type Extractor struct{}

// New creates an Extractor.
func New() *Extractor {
	return &Extractor{}
}

// Extract returns zero or more table groups for the fetched document.
// Skipped fetch results yield nothing.
func (e *Extractor) Extract(res *core.FetchResult) []core.TableGroup {
	if res == nil || res.Skipped() || len(res.Body) == 0 {
		return nil
	}
	if IsPDF(res.URL, res.ContentType) {
		return extractPDF(res.Body)
	}
	return extractHTML(res.Body)
}

// IsPDF reports whether the content type or URL suffix indicates a
// PDF document. The suffix check covers servers that omit or mislabel
// the Content-Type header.
func IsPDF(url, contentType string) bool {
	if strings.Contains(strings.ToLower(contentType), "pdf") {
		return true
	}
	path := url
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	return strings.HasSuffix(strings.ToLower(path), ".pdf")
}

// Primary selects the working table from a multi-table document: the
// largest group by row count, ties resolved by first-encountered
// (page, then table) order. Returns nil when no tables were found.
func Primary(groups []core.TableGroup) *core.TableGroup {
	var best *core.TableGroup
	for i := range groups {
		if best == nil || len(groups[i].Rows) > len(best.Rows) {
			best = &groups[i]
		}
	}
	return best
}
