package layout

import (
	"fmt"
	"strings"

	"github.com/ByLCY/rmlpdf/dsl"
)

// table normalizes a ragged blockTable: whenever a row is wider than every
// row seen so far, all earlier rows are padded up to the new width.
func (b *flowBuilder) table(n *dsl.Node) (Table, error) {
	var rows [][]TableCell
	maxCols := 0
	for _, tr := range n.ChildrenByTag("tr") {
		row := []TableCell{}
		for _, td := range tr.ChildrenByTag("td") {
			cell, err := b.cell(td)
			if err != nil {
				return Table{}, err
			}
			row = append(row, cell)
		}
		if len(row) > maxCols {
			maxCols = len(row)
			for i := range rows {
				rows[i] = padRow(rows[i], maxCols)
			}
		}
		rows = append(rows, padRow(row, maxCols))
	}

	t := Table{Rows: rows, SplitByRow: true}
	if raw, ok := n.Attr("colWidths"); ok {
		widths, err := ParseLengthList(raw)
		if err != nil {
			return Table{}, elementError(n, err)
		}
		if len(widths) != maxCols {
			return Table{}, elementError(n, fmt.Errorf("%w: colWidths 有 %d 项，表格有 %d 列", ErrColumnMismatch, len(widths), maxCols))
		}
		t.ColWidths = widths
	}
	if raw, ok := n.Attr("rowHeights"); ok {
		heights, err := ParseLengthList(raw)
		if err != nil {
			return Table{}, elementError(n, err)
		}
		if len(heights) != len(rows) {
			return Table{}, elementError(n, fmt.Errorf("%w: rowHeights 有 %d 项，表格有 %d 行", ErrRowMismatch, len(heights), len(rows)))
		}
		t.RowHeights = heights
	}
	attrs, err := GetAttrs(n, []string{"repeatRows", "repeatCols", "splitByRow", "style"},
		map[string]AttrKind{"repeatRows": KindInt, "repeatCols": KindInt, "splitByRow": KindBool, "style": KindString})
	if err != nil {
		return Table{}, err
	}
	t.RepeatRows = attrs.Int("repeatRows", 0)
	t.RepeatCols = attrs.Int("repeatCols", 0)
	t.SplitByRow = attrs.Bool("splitByRow", true)
	if attrs.Has("style") {
		style, err := b.cat.ResolveTableStyle(attrs.String("style", ""))
		if err != nil {
			return Table{}, elementError(n, err)
		}
		t.Style = style
	}
	return t, nil
}

func padRow(row []TableCell, cols int) []TableCell {
	for len(row) < cols {
		row = append(row, TableCell{})
	}
	return row
}

// inlineTags are the markup tags a cell can hold and still be plain text.
var inlineTags = map[string]bool{
	"b": true, "strong": true, "i": true, "em": true, "u": true,
	"font": true, "br": true, "pageNumber": true, "getName": true,
}

func inlineOnly(n *dsl.Node) bool {
	for _, c := range n.Elements() {
		if !inlineTags[c.Tag] || !inlineOnly(c) {
			return false
		}
	}
	return true
}

// cell builds nested flowables when td has block-level children, plain text
// otherwise (or when none of the children is a known flowable).
func (b *flowBuilder) cell(td *dsl.Node) (TableCell, error) {
	if !inlineOnly(td) {
		flow, err := b.build(td)
		if err != nil {
			return TableCell{}, err
		}
		if len(flow) > 0 {
			return TableCell{Flow: flow}, nil
		}
	}
	return TableCell{Text: cellText(b.plainText(td))}, nil
}

func cellText(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		out = append(out, strings.Join(strings.Fields(l), " "))
	}
	start, end := 0, len(out)
	for start < end && out[start] == "" {
		start++
	}
	for end > start && out[end-1] == "" {
		end--
	}
	return strings.Join(out[start:end], "\n")
}
