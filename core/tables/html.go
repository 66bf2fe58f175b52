package tables

import (
	"bytes"

	"github.com/PuerkitoBio/goquery"
	"github.com/gaurav-prasanna/partspipe/core"
)

// extractHTML pulls the first <table> element from an HTML document.
// Each <tr> becomes one row; <th> and <td> cells are trimmed. Missing
// cells are kept as empty strings, so row lengths may vary.
func extractHTML(body []byte) []core.TableGroup {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil
	}

	table := doc.Find("table").First()
	if table.Length() == 0 {
		return nil
	}

	var rows [][]string
	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		var cells []string
		tr.Find("th, td").Each(func(_ int, cell *goquery.Selection) {
			cells = append(cells, collapseSpace(cell.Text()))
		})
		if len(cells) > 0 {
			rows = append(rows, cells)
		}
	})

	if len(rows) == 0 {
		return nil
	}
	return []core.TableGroup{{Page: 0, Index: 0, Rows: rows}}
}
