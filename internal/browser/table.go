package browser

import (
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/nao1215/tabcollate/internal/model"
)

// ErrNoTable is returned by ParseTable for markup without a table.
var ErrNoTable = errors.New("markup holds no table")

// ParseTable turns the markup of a result table into raw rows, top to
// bottom. Cell text has its whitespace folded. Rows of nested tables are
// not included, and rows made only of <th> cells are marked as headers.
func ParseTable(markup string) ([]model.RawRow, error) {
	node, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("failed to parse table markup: %w", err)
	}
	doc := goquery.NewDocumentFromNode(node)
	table := doc.Find("table").First()
	if table.Length() == 0 {
		return nil, ErrNoTable
	}

	var rows []model.RawRow
	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		if tr.Closest("table").Get(0) != table.Get(0) {
			return
		}
		cells := tr.ChildrenFiltered("th, td")
		if cells.Length() == 0 {
			return
		}
		row := model.RawRow{Cells: make([]string, 0, cells.Length()), Header: true}
		cells.Each(func(_ int, c *goquery.Selection) {
			if goquery.NodeName(c) != "th" {
				row.Header = false
			}
			row.Cells = append(row.Cells, strings.Join(strings.Fields(c.Text()), " "))
		})
		rows = append(rows, row)
	})
	return rows, nil
}
