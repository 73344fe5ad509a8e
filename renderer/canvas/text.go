package canvasrenderer

import (
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/tdewolff/canvas"
	"golang.org/x/text/unicode/norm"

	"github.com/ByLCY/rmlpdf/layout"
)

// fragment 是排版的最小单位：一个词、一段空白或一个强制换行，宽度为 pt。
type fragment struct {
	text       string
	face       *canvas.FontFace
	size       float64
	color      layout.Color
	width      float64
	space      bool
	brk        bool
	underline  bool
	pageNumber bool
}

type textLine struct {
	frags  []fragment
	width  float64
	indent float64
	ascent float64
	// last 标记段末或强制换行的行，两端对齐时不拉伸。
	last bool
}

func (l *textLine) trim() {
	for len(l.frags) > 0 && l.frags[len(l.frags)-1].space {
		l.frags = l.frags[:len(l.frags)-1]
	}
	l.width = 0
	for _, f := range l.frags {
		l.width += f.width
		if a := ascent(f.face); a > l.ascent {
			l.ascent = a
		}
	}
}

func (l *textLine) spaces() int {
	n := 0
	for _, f := range l.frags {
		if f.space {
			n++
		}
	}
	return n
}

// textOptions 控制 runs 到片段的转换。
type textOptions struct {
	collapse bool // 段落：空白（含换行）折叠为单个空格
	pageNo   int
}

// fragments 把 runs 切分为带字体的片段。
func (r *Renderer) fragments(runs []layout.Run, style layout.ParagraphStyle, opts textOptions) ([]fragment, error) {
	var out []fragment
	for _, run := range runs {
		if run.LineBreak {
			out = append(out, fragment{brk: true})
			continue
		}
		name := style.FontName
		if run.FontName != "" {
			name = run.FontName
		}
		size := style.FontSize
		if run.FontSize > 0 {
			size = run.FontSize
		}
		col := style.TextColor
		if run.Color != nil {
			col = *run.Color
		}
		face, err := r.fontFace(name, size, col, run.Bold, run.Italic)
		if err != nil {
			return nil, err
		}
		base := fragment{face: face, size: size, color: col, underline: run.Underline}
		if run.PageNumber {
			f := base
			f.pageNumber = true
			f.text = strconv.Itoa(opts.pageNo)
			f.width = textWidth(face, f.text)
			out = append(out, f)
			continue
		}
		text := norm.NFC.String(run.Text)
		if opts.collapse {
			text = collapseSpace(text)
		}
		for _, token := range tokenizeContent(text) {
			f := base
			switch {
			case token == "\n":
				f.brk = true
			case strings.TrimSpace(token) == "":
				f.space = true
				f.text = token
				if opts.collapse {
					f.text = " "
				}
				f.width = textWidth(face, f.text)
			default:
				f.text = token
				f.width = textWidth(face, token)
			}
			out = append(out, f)
		}
	}
	if opts.collapse {
		out = dropDoubleSpaces(out)
	}
	return out, nil
}

func collapseSpace(s string) string {
	var sb strings.Builder
	lastSpace := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			if !lastSpace {
				sb.WriteByte(' ')
			}
			lastSpace = true
			continue
		}
		lastSpace = false
		sb.WriteRune(r)
	}
	return sb.String()
}

// dropDoubleSpaces 去掉跨 run 相邻的重复空白。
func dropDoubleSpaces(frags []fragment) []fragment {
	out := frags[:0]
	for _, f := range frags {
		if f.space && len(out) > 0 && out[len(out)-1].space {
			continue
		}
		out = append(out, f)
	}
	return out
}

// wrapFragments 使用贪心算法换行：优先在空白处断行，单个词超过行宽时在词内拆分。
// anywhere 为 true 时（CJK）任意字符处均可断行。
func wrapFragments(frags []fragment, width, firstIndent float64, anywhere bool) []textLine {
	var lines []textLine
	cur := textLine{indent: firstIndent}
	limit := func() float64 {
		if width <= 0 {
			return math.MaxFloat64
		}
		return math.Max(width-cur.indent, 1)
	}
	emit := func(last bool) {
		cur.trim()
		cur.last = last
		lines = append(lines, cur)
		cur = textLine{}
	}
	place := func(f fragment) {
		if cur.width > 0 && cur.width+f.width > limit() {
			emit(false)
		}
		cur.frags = append(cur.frags, f)
		cur.width += f.width
	}

	for _, f := range frags {
		switch {
		case f.brk:
			emit(true)
		case f.space:
			if len(cur.frags) == 0 {
				continue
			}
			cur.frags = append(cur.frags, f)
			cur.width += f.width
		case f.pageNumber:
			place(f)
		case anywhere || f.width > limit():
			for _, chunk := range splitTokenByWidth(f, limit(), anywhere) {
				place(chunk)
			}
		default:
			place(f)
		}
	}
	if len(cur.frags) > 0 {
		emit(true)
	}
	return lines
}

func tokenizeContent(s string) []string {
	var tokens []string
	var builder strings.Builder
	lastWasSpace := false
	flush := func() {
		if builder.Len() == 0 {
			return
		}
		tokens = append(tokens, builder.String())
		builder.Reset()
	}

	for _, r := range s {
		if r == '\r' {
			continue
		}
		if r == '\n' {
			flush()
			tokens = append(tokens, "\n")
			lastWasSpace = false
			continue
		}
		isSpace := unicode.IsSpace(r)
		if builder.Len() == 0 {
			lastWasSpace = isSpace
		} else if lastWasSpace != isSpace {
			flush()
			lastWasSpace = isSpace
		}
		builder.WriteRune(r)
	}
	flush()
	return tokens
}

// splitTokenByWidth 把过长的词按行宽切成若干片段；perRune 时逐字切分。
func splitTokenByWidth(f fragment, limit float64, perRune bool) []fragment {
	piece := func(s string) fragment {
		p := f
		p.text = s
		p.width = textWidth(f.face, s)
		return p
	}
	if perRune {
		var parts []fragment
		for _, r := range f.text {
			parts = append(parts, piece(string(r)))
		}
		return parts
	}
	if limit <= 0 || limit == math.MaxFloat64 {
		return []fragment{f}
	}
	var parts []fragment
	var builder strings.Builder
	for _, r := range f.text {
		builder.WriteRune(r)
		if textWidth(f.face, builder.String()) > limit && builder.Len() > len(string(r)) {
			runes := []rune(builder.String())
			parts = append(parts, piece(string(runes[:len(runes)-1])))
			builder.Reset()
			builder.WriteRune(r)
		}
	}
	if builder.Len() > 0 {
		parts = append(parts, piece(builder.String()))
	}
	return parts
}

// paraBlock 是换行后的段落（也用于 pre/xpre）。
type paraBlock struct {
	style   layout.ParagraphStyle
	lines   []textLine
	width   float64
	before  float64
	after   float64
	bullet  *fragment
	justify bool
}

// paragraph 对 runs 排版。wrap 为 false 时只按显式换行分行（pre/xpre）。
func (r *Renderer) paragraph(style layout.ParagraphStyle, runs []layout.Run, width float64, pageNo int, wrap bool) (*paraBlock, error) {
	frags, err := r.fragments(runs, style, textOptions{collapse: wrap, pageNo: pageNo})
	if err != nil {
		return nil, err
	}
	var lines []textLine
	if wrap {
		inner := width - style.LeftIndent - style.RightIndent
		anywhere := strings.EqualFold(style.WordWrap, "CJK")
		lines = wrapFragments(frags, inner, style.FirstLineIndent, anywhere)
	} else {
		lines = splitPreLines(frags, style.FirstLineIndent)
	}
	b := &paraBlock{
		style:   style,
		lines:   lines,
		width:   width,
		before:  style.SpaceBefore,
		after:   style.SpaceAfter,
		justify: wrap && style.Alignment == layout.AlignJustify,
	}
	if style.BulletText != "" {
		face, err := r.fontFace(style.BulletFontName, style.BulletFontSize, style.BulletColor, false, false)
		if err != nil {
			return nil, err
		}
		b.bullet = &fragment{text: style.BulletText, face: face, size: style.BulletFontSize, width: textWidth(face, style.BulletText)}
	}
	for i := range b.lines {
		if b.lines[i].ascent == 0 {
			b.lines[i].ascent = style.FontSize * 0.8
		}
	}
	return b, nil
}

// splitPreLines 保留原始行（含空行与行首空白）。
func splitPreLines(frags []fragment, firstIndent float64) []textLine {
	lines := []textLine{{indent: firstIndent}}
	for _, f := range frags {
		if f.brk {
			lines = append(lines, textLine{})
			continue
		}
		cur := &lines[len(lines)-1]
		cur.frags = append(cur.frags, f)
	}
	for i := range lines {
		lines[i].width = 0
		for _, f := range lines[i].frags {
			lines[i].width += f.width
			if a := ascent(f.face); a > lines[i].ascent {
				lines[i].ascent = a
			}
		}
		lines[i].last = true
	}
	return lines
}

func (b *paraBlock) leading() float64 {
	if b.style.Leading > 0 {
		return b.style.Leading
	}
	return b.style.FontSize * 1.2
}

func (b *paraBlock) height() float64 { return float64(len(b.lines)) * b.leading() }

func (b *paraBlock) spacing() (float64, float64) { return b.before, b.after }

// 段落总是占满排版时给定的宽度。
func (b *paraBlock) extent() float64 { return b.width }

func (b *paraBlock) split(avail float64) (block, block) {
	k := int(math.Floor(avail/b.leading() + 1e-9))
	if k <= 0 {
		return nil, nil
	}
	if k >= len(b.lines) {
		return b, nil
	}
	head, tail := *b, *b
	head.lines = b.lines[:k]
	head.after = 0
	tail.lines = b.lines[k:]
	tail.before = 0
	tail.bullet = nil
	return &head, &tail
}

func (b *paraBlock) draw(pg *page, x, top float64) error {
	if len(b.lines) == 0 {
		return nil
	}
	ctx := pg.ctx
	s := b.style
	leading := b.leading()
	if !s.BackColor.None {
		ctx.SetFillColor(colorFromLayout(s.BackColor))
		ctx.SetStrokeColor(colorFromLayout(layout.Transparent))
		w := b.width - s.LeftIndent - s.RightIndent
		ctx.DrawPath(toMm(x+s.LeftIndent), toMm(top-b.height()), canvas.Rectangle(toMm(w), toMm(b.height())))
	}
	first := b.lines[0].ascent
	for i, ln := range b.lines {
		baseline := top - first - float64(i)*leading
		lineX := x + s.LeftIndent + ln.indent
		avail := b.width - s.LeftIndent - s.RightIndent - ln.indent
		extra := avail - ln.width
		gap := 0.0
		switch s.Alignment {
		case layout.AlignCenter:
			lineX += extra / 2
		case layout.AlignRight:
			lineX += extra
		case layout.AlignJustify:
			if b.justify && !ln.last && extra > 0 {
				if n := ln.spaces(); n > 0 {
					gap = extra / float64(n)
				}
			}
		}
		drawFragments(pg, ln.frags, lineX, baseline, gap)
		if i == 0 && b.bullet != nil {
			bx := x + s.BulletIndent
			ctx.DrawText(toMm(bx), toMm(baseline), canvas.NewTextLine(b.bullet.face, b.bullet.text, canvas.Left))
		}
	}
	return nil
}

// drawFragments 从 x 开始逐个绘制片段，空白额外加宽 gap。
func drawFragments(pg *page, frags []fragment, x, baseline, gap float64) {
	ctx := pg.ctx
	cursor := x
	for _, f := range frags {
		if f.space {
			cursor += f.width + gap
			continue
		}
		text := f.text
		width := f.width
		if f.pageNumber {
			text = strconv.Itoa(pg.number)
			width = textWidth(f.face, text)
		}
		ctx.DrawText(toMm(cursor), toMm(baseline), canvas.NewTextLine(f.face, text, canvas.Left))
		if f.underline {
			drawUnderline(ctx, f, cursor, baseline, width)
		}
		cursor += width
	}
}

func drawUnderline(ctx *canvas.Context, f fragment, x, baseline, width float64) {
	thickness := math.Max(f.size/20, 0.5)
	y := baseline - f.size*0.12
	ctx.SetFillColor(colorFromLayout(layout.Transparent))
	ctx.SetStrokeColor(colorFromLayout(f.color))
	ctx.SetStrokeWidth(toMm(thickness))
	p := &canvas.Path{}
	p.MoveTo(0, 0)
	p.LineTo(toMm(width), 0)
	ctx.DrawPath(toMm(x), toMm(y), p)
}
