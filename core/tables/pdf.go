package tables

import (
	"bytes"
	"sort"
	"strings"

	"github.com/gaurav-prasanna/partspipe/core"
	"github.com/ledongthuc/pdf"
)

// Layout thresholds for PDF table detection, in PDF points.
const (
	lineTolerance = 3.0  // max Y distance for fragments on one line
	cellGap       = 10.0 // min X gap between fragments to split cells
)

// extractPDF detects tables on each page of a PDF document.
// Text fragments are clustered into lines by Y position and into
// cells by X gaps; a run of two or more consecutive multi-cell lines
// is treated as one table. One TableGroup is emitted per detected
// table per page, with page and table indices retained.
func extractPDF(body []byte) []core.TableGroup {
	reader, err := pdf.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return nil
	}

	var groups []core.TableGroup
	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		lines := clusterLines(page.Content().Text)
		for i, table := range detectTables(lines) {
			groups = append(groups, core.TableGroup{
				Page:  pageNum - 1,
				Index: i,
				Rows:  table,
			})
		}
	}
	return groups
}

// textLine is one visual line of a PDF page: cell strings ordered by
// their X position.
type textLine struct {
	y     float64
	cells []string
}

// clusterLines groups text fragments into visual lines by Y position
// and splits each line into cells by X gaps. Lines are returned in
// top-to-bottom reading order.
func clusterLines(texts []pdf.Text) []textLine {
	if len(texts) == 0 {
		return nil
	}

	// Stable order: top to bottom, then left to right. PDF Y grows
	// upward, so descending Y is reading order.
	sorted := make([]pdf.Text, len(texts))
	copy(sorted, texts)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Y != sorted[j].Y {
			return sorted[i].Y > sorted[j].Y
		}
		return sorted[i].X < sorted[j].X
	})

	var lines []textLine
	var current []pdf.Text
	flush := func() {
		if len(current) == 0 {
			return
		}
		lines = append(lines, splitCells(current))
		current = nil
	}

	for _, t := range sorted {
		if len(current) > 0 && current[0].Y-t.Y > lineTolerance {
			flush()
		}
		current = append(current, t)
	}
	flush()
	return lines
}

// splitCells merges adjacent fragments of one line into cells,
// splitting where the horizontal gap exceeds cellGap. Whitespace
// fragments inside a cell are kept so words stay separated; cells
// that end up empty after trimming are dropped.
func splitCells(frags []pdf.Text) textLine {
	sort.SliceStable(frags, func(i, j int) bool { return frags[i].X < frags[j].X })

	line := textLine{y: frags[0].Y}
	var cell strings.Builder
	emit := func() {
		if s := strings.TrimSpace(cell.String()); s != "" {
			line.cells = append(line.cells, s)
		}
		cell.Reset()
	}

	prevEnd := frags[0].X
	for i, t := range frags {
		if i > 0 && t.X-prevEnd > cellGap {
			emit()
		}
		cell.WriteString(t.S)
		prevEnd = t.X + t.W
	}
	emit()
	return line
}

// detectTables finds runs of consecutive multi-cell lines. Each run of
// at least two such lines becomes one table; single multi-cell lines
// and plain text lines are ignored.
func detectTables(lines []textLine) [][][]string {
	var tables [][][]string
	var run [][]string

	flush := func() {
		if len(run) >= 2 {
			tables = append(tables, run)
		}
		run = nil
	}

	for _, line := range lines {
		if len(line.cells) >= 2 {
			run = append(run, line.cells)
			continue
		}
		flush()
	}
	flush()
	return tables
}

// collapseSpace trims a cell and collapses internal whitespace runs
// to single spaces.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
