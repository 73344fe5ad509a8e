package canvasrenderer

import (
	"strings"

	"github.com/tdewolff/canvas"

	"github.com/ByLCY/rmlpdf/layout"
)

// cellStyle 是表格样式指令作用到单个单元格后的结果。
type cellStyle struct {
	fontName   string
	fontSize   float64
	leading    float64
	textColor  layout.Color
	align      layout.Alignment
	valign     string
	padLeft    float64
	padRight   float64
	padTop     float64
	padBottom  float64
	background *layout.Color
}

func defaultCellStyle() cellStyle {
	return cellStyle{
		fontName:  "Helvetica",
		fontSize:  10,
		leading:   12,
		textColor: layout.Black,
		align:     layout.AlignLeft,
		valign:    "BOTTOM",
		padLeft:   6,
		padRight:  6,
		padTop:    3,
		padBottom: 3,
	}
}

// cellBox 是归一化后的单元格区间（闭区间）。
type cellBox struct {
	c0, r0, c1, r1 int
}

func (b cellBox) contains(col, row int) bool {
	return col >= b.c0 && col <= b.c1 && row >= b.r0 && row <= b.r1
}

type tableCell struct {
	style   cellStyle
	content block
	// para 为纯文本单元格的排版结果，列宽确定后回填宽度。
	para   *paraBlock
	flow   []layout.Flowable
	hidden bool
	span   *cellBox
}

type tableRow struct {
	orig   int
	height float64
	cells  []tableCell
}

type tableBlock struct {
	fixed
	rows       []tableRow
	colWidths  []float64
	offset     float64
	lines      []lineCommand
	repeat     int
	splittable bool
}

type lineCommand struct {
	op        string
	box       cellBox
	color     layout.Color
	thickness float64
}

// normalize 把负数下标换算为正数并裁剪到表格范围内。
func normalize(start, stop layout.Cell, cols, rows int) cellBox {
	fix := func(v, n int) int {
		if v < 0 {
			v += n
		}
		if v < 0 {
			v = 0
		}
		if v > n-1 {
			v = n - 1
		}
		return v
	}
	b := cellBox{fix(start.Col, cols), fix(start.Row, rows), fix(stop.Col, cols), fix(stop.Row, rows)}
	if b.c0 > b.c1 {
		b.c0, b.c1 = b.c1, b.c0
	}
	if b.r0 > b.r1 {
		b.r0, b.r1 = b.r1, b.r0
	}
	return b
}

func (r *Renderer) table(t layout.Table, width float64, pageNo int) (*tableBlock, error) {
	nrows := len(t.Rows)
	tb := &tableBlock{repeat: t.RepeatRows, splittable: t.SplitByRow}
	if nrows == 0 {
		return tb, nil
	}
	ncols := len(t.Rows[0])
	if ncols == 0 {
		return tb, nil
	}
	if tb.repeat >= nrows {
		tb.repeat = 0
	}

	styles := make([][]cellStyle, nrows)
	for i := range styles {
		styles[i] = make([]cellStyle, ncols)
		for j := range styles[i] {
			styles[i][j] = defaultCellStyle()
		}
	}
	var spans []cellBox
	for _, cmd := range t.Style.Commands {
		box := normalize(cmd.Start, cmd.Stop, ncols, nrows)
		switch cmd.Op {
		case "SPAN":
			spans = append(spans, box)
			continue
		case "GRID", "BOX", "OUTLINE", "INNERGRID", "LINEBELOW", "LINEABOVE", "LINEBEFORE", "LINEAFTER":
			tb.lines = append(tb.lines, lineCommand{op: cmd.Op, box: box, color: cmd.Color, thickness: cmd.Thickness})
			continue
		}
		for row := box.r0; row <= box.r1; row++ {
			for col := box.c0; col <= box.c1; col++ {
				applyCellCommand(&styles[row][col], cmd)
			}
		}
	}

	tb.rows = make([]tableRow, nrows)
	for i, cells := range t.Rows {
		row := tableRow{orig: i, cells: make([]tableCell, ncols)}
		for j := 0; j < ncols; j++ {
			cell := tableCell{style: styles[i][j]}
			for k := range spans {
				if !spans[k].contains(j, i) {
					continue
				}
				if spans[k].c0 == j && spans[k].r0 == i {
					cell.span = &spans[k]
				} else {
					cell.hidden = true
				}
			}
			if j < len(cells) && !cell.hidden {
				if cells[j].Flow != nil {
					cell.flow = cells[j].Flow
				} else if cells[j].Text != "" {
					p, err := r.cellParagraph(cells[j].Text, cell.style, pageNo)
					if err != nil {
						return nil, err
					}
					cell.para = p
					cell.content = p
				}
			}
			row.cells[j] = cell
		}
		tb.rows[i] = row
	}

	tb.colWidths = t.ColWidths
	if len(tb.colWidths) != ncols {
		tb.colWidths = tb.autoWidths(width, ncols)
	}

	for i := range tb.rows {
		for j := range tb.rows[i].cells {
			cell := &tb.rows[i].cells[j]
			inner := tb.cellWidth(j, cell) - cell.style.padLeft - cell.style.padRight
			if cell.para != nil {
				cell.para.width = inner
			}
			if cell.flow != nil {
				s, err := r.stack(cell.flow, inner, pageNo)
				if err != nil {
					return nil, err
				}
				cell.content = s
			}
		}
	}

	for i := range tb.rows {
		row := &tb.rows[i]
		if len(t.RowHeights) == nrows {
			row.height = t.RowHeights[i]
			continue
		}
		for _, cell := range row.cells {
			if cell.hidden || (cell.span != nil && cell.span.r1 > cell.span.r0) {
				continue
			}
			h := cell.style.padTop + cell.style.padBottom
			if cell.content != nil {
				h += cell.content.height()
			}
			if h > row.height {
				row.height = h
			}
		}
	}

	total := 0.0
	for _, w := range tb.colWidths {
		total += w
	}
	if width > total {
		tb.offset = (width - total) / 2
	}
	return tb, nil
}

func applyCellCommand(s *cellStyle, cmd layout.TableStyleCommand) {
	switch cmd.Op {
	case "FONT":
		s.fontName = cmd.Value
	case "FONTSIZE":
		s.fontSize = cmd.Size
		s.leading = cmd.Size * 1.2
	case "LEADING":
		s.leading = cmd.Size
	case "TEXTCOLOR":
		s.textColor = cmd.Color
	case "ALIGNMENT":
		s.align = layout.ParseAlignment(cmd.Value)
	case "VALIGN":
		s.valign = strings.ToUpper(strings.TrimSpace(cmd.Value))
	case "LEFTPADDING":
		s.padLeft = cmd.Size
	case "RIGHTPADDING":
		s.padRight = cmd.Size
	case "TOPPADDING":
		s.padTop = cmd.Size
	case "BOTTOMPADDING":
		s.padBottom = cmd.Size
	case "BACKGROUND":
		c := cmd.Color
		s.background = &c
	}
}

// cellParagraph 排版纯文本单元格：保留换行，不自动折行。
func (r *Renderer) cellParagraph(text string, s cellStyle, pageNo int) (*paraBlock, error) {
	ps := layout.DefaultParagraphStyle()
	ps.FontName = s.fontName
	ps.FontSize = s.fontSize
	ps.Leading = s.leading
	ps.TextColor = s.textColor
	ps.Alignment = s.align
	var runs []layout.Run
	for i, line := range strings.Split(text, "\n") {
		if i > 0 {
			runs = append(runs, layout.Run{LineBreak: true})
		}
		runs = append(runs, layout.Run{Text: line})
	}
	return r.paragraph(ps, runs, 0, pageNo, false)
}

// autoWidths 按内容自然宽度分配列宽；放不下时平均分配可用宽度。
func (tb *tableBlock) autoWidths(width float64, ncols int) []float64 {
	natural := make([]float64, ncols)
	for _, row := range tb.rows {
		for j, cell := range row.cells {
			if cell.para == nil || cell.span != nil {
				continue
			}
			w := cell.style.padLeft + cell.style.padRight
			for _, ln := range cell.para.lines {
				if ln.width+cell.style.padLeft+cell.style.padRight > w {
					w = ln.width + cell.style.padLeft + cell.style.padRight
				}
			}
			if w > natural[j] {
				natural[j] = w
			}
		}
	}
	total, flex := 0.0, 0
	for _, w := range natural {
		total += w
		if w == 0 {
			flex++
		}
	}
	out := make([]float64, ncols)
	if width > 0 && total <= width {
		share := 0.0
		if flex > 0 {
			share = (width - total) / float64(flex)
		}
		for j, w := range natural {
			out[j] = w
			if w == 0 {
				out[j] = share
			}
		}
		return out
	}
	for j := range out {
		out[j] = width / float64(ncols)
	}
	return out
}

func (tb *tableBlock) cellWidth(col int, cell *tableCell) float64 {
	last := col
	if cell.span != nil {
		last = cell.span.c1
	}
	w := 0.0
	for c := col; c <= last && c < len(tb.colWidths); c++ {
		w += tb.colWidths[c]
	}
	return w
}

func (tb *tableBlock) height() float64 {
	h := 0.0
	for _, row := range tb.rows {
		h += row.height
	}
	return h
}

// extent 包含居中时的左侧偏移。
func (tb *tableBlock) extent() float64 {
	w := tb.offset
	for _, c := range tb.colWidths {
		w += c
	}
	return w
}

// split 按行拆分表格，表头行（repeatRows）在后续部分中重复。
func (tb *tableBlock) split(avail float64) (block, block) {
	if !tb.splittable || len(tb.rows) <= tb.repeat+1 {
		return nil, nil
	}
	k, used := 0, 0.0
	for k < len(tb.rows) && used+tb.rows[k].height <= avail+1e-6 {
		used += tb.rows[k].height
		k++
	}
	if k <= tb.repeat {
		return nil, nil
	}
	if k >= len(tb.rows) {
		return tb, nil
	}
	head, tail := *tb, *tb
	head.rows = tb.rows[:k]
	tail.rows = append(append([]tableRow(nil), tb.rows[:tb.repeat]...), tb.rows[k:]...)
	return &head, &tail
}

func (tb *tableBlock) draw(pg *page, x, top float64) error {
	if len(tb.rows) == 0 {
		return nil
	}
	ctx := pg.ctx
	x0 := x + tb.offset
	colX := make([]float64, len(tb.colWidths)+1)
	colX[0] = x0
	for i, w := range tb.colWidths {
		colX[i+1] = colX[i] + w
	}
	rowTop := make([]float64, len(tb.rows)+1)
	rowTop[0] = top
	pos := map[int]int{}
	for i, row := range tb.rows {
		rowTop[i+1] = rowTop[i] - row.height
		if _, ok := pos[row.orig]; !ok {
			pos[row.orig] = i
		}
	}

	// cellRect 返回单元格（含合并区域）在本部分中的矩形。
	cellRect := func(i, j int, cell *tableCell) (float64, float64, float64, float64) {
		left, right := colX[j], colX[j+1]
		upper, lower := rowTop[i], rowTop[i+1]
		if cell.span != nil {
			right = colX[cell.span.c1+1]
			for r := cell.span.r0; r <= cell.span.r1; r++ {
				if p, ok := pos[r]; ok && p >= i {
					lower = rowTop[p+1]
				}
			}
		}
		return left, lower, right - left, upper - lower
	}

	for i := range tb.rows {
		for j := range tb.rows[i].cells {
			cell := &tb.rows[i].cells[j]
			if cell.hidden || cell.style.background == nil {
				continue
			}
			cx, cy, cw, ch := cellRect(i, j, cell)
			ctx.SetFillColor(colorFromLayout(*cell.style.background))
			ctx.SetStrokeColor(colorFromLayout(layout.Transparent))
			ctx.DrawPath(toMm(cx), toMm(cy), canvas.Rectangle(toMm(cw), toMm(ch)))
		}
	}

	for i := range tb.rows {
		for j := range tb.rows[i].cells {
			cell := &tb.rows[i].cells[j]
			if cell.hidden || cell.content == nil {
				continue
			}
			cx, cy, _, ch := cellRect(i, j, cell)
			s := cell.style
			contentH := cell.content.height()
			var innerTop float64
			switch s.valign {
			case "TOP":
				innerTop = cy + ch - s.padTop
			case "MIDDLE", "CENTER", "CENTRE":
				innerTop = cy + s.padBottom + (ch-s.padTop-s.padBottom+contentH)/2
			default:
				innerTop = cy + s.padBottom + contentH
			}
			if err := cell.content.draw(pg, cx+s.padLeft, innerTop); err != nil {
				return err
			}
		}
	}

	for _, lc := range tb.lines {
		tb.drawLine(ctx, lc, colX, rowTop)
	}
	return nil
}

func (tb *tableBlock) drawLine(ctx *canvas.Context, lc lineCommand, colX, rowTop []float64) {
	var present []int
	for i, row := range tb.rows {
		if row.orig >= lc.box.r0 && row.orig <= lc.box.r1 {
			present = append(present, i)
		}
	}
	if len(present) == 0 || lc.thickness <= 0 {
		return
	}
	ctx.SetFillColor(colorFromLayout(layout.Transparent))
	ctx.SetStrokeColor(colorFromLayout(lc.color))
	ctx.SetStrokeWidth(toMm(lc.thickness))
	ctx.SetDashes(0)
	segment := func(x1, y1, x2, y2 float64) {
		p := &canvas.Path{}
		p.MoveTo(toMm(x1), toMm(y1))
		p.LineTo(toMm(x2), toMm(y2))
		ctx.DrawPath(0, 0, p)
	}
	left, right := colX[lc.box.c0], colX[lc.box.c1+1]
	upper, lower := rowTop[present[0]], rowTop[present[len(present)-1]+1]

	box := func() {
		ctx.DrawPath(toMm(left), toMm(lower), canvas.Rectangle(toMm(right-left), toMm(upper-lower)))
	}
	inner := func() {
		for c := lc.box.c0 + 1; c <= lc.box.c1; c++ {
			segment(colX[c], upper, colX[c], lower)
		}
		for _, p := range present[:len(present)-1] {
			segment(left, rowTop[p+1], right, rowTop[p+1])
		}
	}
	switch lc.op {
	case "GRID":
		box()
		inner()
	case "BOX", "OUTLINE":
		box()
	case "INNERGRID":
		inner()
	case "LINEABOVE":
		for _, p := range present {
			segment(left, rowTop[p], right, rowTop[p])
		}
	case "LINEBELOW":
		for _, p := range present {
			segment(left, rowTop[p+1], right, rowTop[p+1])
		}
	case "LINEBEFORE":
		for c := lc.box.c0; c <= lc.box.c1; c++ {
			segment(colX[c], upper, colX[c], lower)
		}
	case "LINEAFTER":
		for c := lc.box.c0; c <= lc.box.c1; c++ {
			segment(colX[c+1], upper, colX[c+1], lower)
		}
	}
}
