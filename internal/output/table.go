package output

import (
	"fmt"
	"strings"
)

// Table lays out account listings as aligned text columns. The column
// set is fixed by the headers; rows are padded to the widest cell and
// the header is underlined with dashes.
type Table struct {
	headers []string
	rows    [][]string
}

// NewTable creates a table with the given column headers.
func NewTable(headers ...string) *Table {
	return &Table{headers: headers}
}

// AddRow appends a row. Missing trailing cells render empty.
func (t *Table) AddRow(cells ...string) {
	t.rows = append(t.rows, cells)
}

// String renders the table, one line per row with a trailing newline.
// Implements fmt.Stringer so the formatter's text path prints tables
// directly.
func (t *Table) String() string {
	widths := t.columnWidths()

	rule := make([]string, len(widths))
	for i, w := range widths {
		rule[i] = strings.Repeat("-", w)
	}

	var sb strings.Builder
	writeTableRow(&sb, t.headers, widths)
	writeTableRow(&sb, rule, widths)
	for _, row := range t.rows {
		writeTableRow(&sb, row, widths)
	}
	return sb.String()
}

func (t *Table) columnWidths() []int {
	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = len(h)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}
	return widths
}

func writeTableRow(sb *strings.Builder, cells []string, widths []int) {
	parts := make([]string, len(widths))
	for i, w := range widths {
		cell := ""
		if i < len(cells) {
			cell = cells[i]
		}
		parts[i] = fmt.Sprintf("%-*s", w, cell)
	}
	sb.WriteString(strings.TrimRight(strings.Join(parts, "  "), " "))
	sb.WriteByte('\n')
}
