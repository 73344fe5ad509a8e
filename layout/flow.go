package layout

import (
	"fmt"
	"image"
	"strings"

	"go.uber.org/zap"

	"github.com/ByLCY/rmlpdf/dsl"
)

// UnknownName is substituted for getName references without a binding.
const UnknownName = "Unknown name"

// Flowable is a story element. The set of variants is closed: the backend
// switches over the concrete types below.
type Flowable interface {
	Kind() string
	flowable()
}

// Run is a piece of paragraph text sharing one inline formatting state.
type Run struct {
	Text       string  `json:"text,omitempty"`
	Bold       bool    `json:"bold,omitempty"`
	Italic     bool    `json:"italic,omitempty"`
	Underline  bool    `json:"underline,omitempty"`
	FontName   string  `json:"fontName,omitempty"`
	FontSize   float64 `json:"fontSize,omitempty"`
	Color      *Color  `json:"color,omitempty"`
	PageNumber bool    `json:"pageNumber,omitempty"`
	LineBreak  bool    `json:"lineBreak,omitempty"`
}

type (
	// Paragraph is reflowed text.
	Paragraph struct {
		Style ParagraphStyle `json:"style"`
		Runs  []Run          `json:"runs"`
	}
	// Preformatted keeps its lines verbatim and carries no markup.
	Preformatted struct {
		Style ParagraphStyle `json:"style"`
		Lines []string       `json:"lines"`
	}
	// XPreformatted keeps its line breaks but allows inline markup.
	XPreformatted struct {
		Style ParagraphStyle `json:"style"`
		Lines [][]Run        `json:"lines"`
	}
	// Table is a normalized grid: every row has the same number of cells.
	Table struct {
		Rows       [][]TableCell `json:"rows"`
		ColWidths  []float64     `json:"colWidths,omitempty"`
		RowHeights []float64     `json:"rowHeights,omitempty"`
		RepeatRows int           `json:"repeatRows,omitempty"`
		RepeatCols int           `json:"repeatCols,omitempty"`
		SplitByRow bool          `json:"splitByRow"`
		Style      TableStyle    `json:"style"`
	}
	// Image is a raster image placed in the flow.
	Image struct {
		Source string      `json:"source"`
		Width  float64     `json:"width"`
		Height float64     `json:"height"`
		Data   image.Image `json:"-"`
	}
	Spacer struct {
		Width  float64 `json:"width"`
		Height float64 `json:"height"`
	}
	PageBreak     struct{}
	CondPageBreak struct {
		Height float64 `json:"height"`
	}
	// FrameBreak moves to the next frame unconditionally.
	FrameBreak   struct{}
	NextTemplate struct {
		Name string `json:"name"`
	}
	// Illustration is a fixed-size box with its own drawing commands.
	Illustration struct {
		Width    float64       `json:"width"`
		Height   float64       `json:"height"`
		Commands []DrawCommand `json:"commands"`
	}
	Barcode struct {
		Code      string        `json:"code"`
		Value     string        `json:"value"`
		BarWidth  float64       `json:"barWidth"`
		BarHeight float64       `json:"barHeight"`
		Matrix    BarcodeMatrix `json:"matrix"`
	}
	// NamedValue records a <name> binding met in the story; it has no
	// visual output.
	NamedValue struct {
		ID    string `json:"id"`
		Value string `json:"value"`
	}
)

// TableCell holds either plain text or nested flowables. The zero value is
// an empty padding cell.
type TableCell struct {
	Text string     `json:"text,omitempty"`
	Flow []Flowable `json:"flow,omitempty"`
}

func (Paragraph) Kind() string     { return "para" }
func (Preformatted) Kind() string  { return "pre" }
func (XPreformatted) Kind() string { return "xpre" }
func (Table) Kind() string         { return "blockTable" }
func (Image) Kind() string         { return "image" }
func (Spacer) Kind() string        { return "spacer" }
func (PageBreak) Kind() string     { return "pageBreak" }
func (CondPageBreak) Kind() string { return "condPageBreak" }
func (FrameBreak) Kind() string    { return "nextFrame" }
func (NextTemplate) Kind() string  { return "setNextTemplate" }
func (Illustration) Kind() string  { return "illustration" }
func (Barcode) Kind() string       { return "barCode" }
func (NamedValue) Kind() string    { return "name" }

func (Paragraph) flowable()     {}
func (Preformatted) flowable()  {}
func (XPreformatted) flowable() {}
func (Table) flowable()         {}
func (Image) flowable()         {}
func (Spacer) flowable()        {}
func (PageBreak) flowable()     {}
func (CondPageBreak) flowable() {}
func (FrameBreak) flowable()    {}
func (NextTemplate) flowable()  {}
func (Illustration) flowable()  {}
func (Barcode) flowable()       {}
func (NamedValue) flowable()    {}

const (
	defaultSpacerWidth = 72 / 2.54 // 1cm
	defaultBarWidth    = 0.54
	defaultBarHeight   = 36
	defaultQRModule    = 2
)

type flowBuilder struct {
	cat  *Catalogue
	opts BuildOptions
	log  *zap.SugaredLogger
}

// BuildStory translates the element children of container into flowables.
// Named values bound by <name> are visible to later getName references.
func BuildStory(container *dsl.Node, cat *Catalogue, opts BuildOptions) ([]Flowable, error) {
	b := &flowBuilder{cat: cat, opts: opts, log: opts.logger()}
	return b.build(container)
}

func (b *flowBuilder) build(container *dsl.Node) ([]Flowable, error) {
	story := []Flowable{}
	for _, n := range container.Elements() {
		f, ok, err := b.flowable(n)
		if err != nil {
			return nil, err
		}
		if ok {
			story = append(story, f)
		}
	}
	return story, nil
}

// flowable 根据标签名分派；未知标签记录警告并跳过。
func (b *flowBuilder) flowable(n *dsl.Node) (Flowable, bool, error) {
	switch n.Tag {
	case "para":
		style, err := b.cat.ResolveParagraphStyle(n)
		if err != nil {
			return nil, false, err
		}
		return b.paragraph(n, style)
	case "title", "h1", "h2", "h3":
		if _, ok := n.Attr("style"); ok {
			b.log.Debugw("heading style attribute ignored", "tag", n.Tag, "line", n.Line)
		}
		return b.paragraph(n, headingStyle(n))
	case "pre":
		style, err := b.cat.ResolveParagraphStyle(n)
		if err != nil {
			return nil, false, err
		}
		dedent, err := b.intAttr(n, "dedent", 0)
		if err != nil {
			return nil, false, err
		}
		lines := dedentLines(strings.Split(b.plainText(n), "\n"), dedent)
		return Preformatted{Style: style, Lines: lines}, true, nil
	case "xpre":
		style, err := b.cat.ResolveParagraphStyle(n)
		if err != nil {
			return nil, false, err
		}
		dedent, err := b.intAttr(n, "dedent", 0)
		if err != nil {
			return nil, false, err
		}
		runs, err := b.runs(n, Run{}, nil)
		if err != nil {
			return nil, false, err
		}
		return XPreformatted{Style: style, Lines: dedentRunLines(splitRunLines(runs), dedent)}, true, nil
	case "name":
		id, err := requireAttr(n, "id")
		if err != nil {
			return nil, false, err
		}
		value := n.AttrOr("value", "")
		b.cat.SetName(id, value)
		return NamedValue{ID: id, Value: value}, true, nil
	case "illustration":
		attrs, err := GetAttrs(n, []string{"width", "height"}, nil)
		if err != nil {
			return nil, false, err
		}
		if !attrs.Has("width") || !attrs.Has("height") {
			return nil, false, elementError(n, fmt.Errorf("%w: width/height", ErrMissingAttribute))
		}
		cmds, err := b.drawing(n)
		if err != nil {
			return nil, false, err
		}
		return Illustration{Width: attrs.Length("width", 0), Height: attrs.Length("height", 0), Commands: cmds}, true, nil
	case "blockTable":
		t, err := b.table(n)
		if err != nil {
			return nil, false, err
		}
		return t, true, nil
	case "image":
		img, placement, err := b.resolveImage(n)
		if err != nil {
			return nil, false, err
		}
		return Image{
			Source: n.AttrOr("file", ""),
			Width:  placement["width"],
			Height: placement["height"],
			Data:   img,
		}, true, nil
	case "spacer":
		attrs, err := GetAttrs(n, []string{"width", "length"}, nil)
		if err != nil {
			return nil, false, err
		}
		if !attrs.Has("length") {
			return nil, false, elementError(n, fmt.Errorf("%w: length", ErrMissingAttribute))
		}
		return Spacer{Width: attrs.Length("width", defaultSpacerWidth), Height: attrs.Length("length", 0)}, true, nil
	case "pageBreak":
		return PageBreak{}, true, nil
	case "condPageBreak":
		raw, err := requireAttr(n, "height")
		if err != nil {
			return nil, false, err
		}
		h, err := ParseLength(raw)
		if err != nil {
			return nil, false, elementError(n, err)
		}
		return CondPageBreak{Height: h}, true, nil
	case "setNextTemplate":
		name, err := requireAttr(n, "name")
		if err != nil {
			return nil, false, err
		}
		return NextTemplate{Name: name}, true, nil
	case "nextFrame":
		return FrameBreak{}, true, nil
	case "barCode":
		if b.opts.Barcodes == nil {
			b.log.Warnw("unknown flowable tag, skipped", "tag", n.Tag, "line", n.Line)
			return nil, false, nil
		}
		bc, err := b.barcode(n)
		if err != nil {
			return nil, false, err
		}
		return bc, true, nil
	default:
		b.log.Warnw("unknown flowable tag, skipped", "tag", n.Tag, "line", n.Line)
		return nil, false, nil
	}
}

func (b *flowBuilder) paragraph(n *dsl.Node, style ParagraphStyle) (Flowable, bool, error) {
	runs, err := b.runs(n, Run{}, nil)
	if err != nil {
		return nil, false, err
	}
	return Paragraph{Style: style, Runs: runs}, true, nil
}

func (b *flowBuilder) intAttr(n *dsl.Node, name string, dflt int) (int, error) {
	attrs, err := GetAttrs(n, []string{name}, map[string]AttrKind{name: KindInt})
	if err != nil {
		return 0, err
	}
	return attrs.Int(name, dflt), nil
}

// runs flattens inline markup into formatted runs. state carries the
// formatting inherited from enclosing tags.
func (b *flowBuilder) runs(n *dsl.Node, state Run, out []Run) ([]Run, error) {
	for _, c := range n.Children {
		if c.Kind == dsl.TextNode {
			r := state
			r.Text = c.Text
			out = append(out, r)
			continue
		}
		st := state
		switch c.Tag {
		case "b", "strong":
			st.Bold = true
		case "i", "em":
			st.Italic = true
		case "u":
			st.Underline = true
		case "font":
			attrs, err := GetAttrs(c, []string{"face", "name", "size", "color"},
				map[string]AttrKind{"face": KindString, "name": KindString, "color": KindColor})
			if err != nil {
				return nil, err
			}
			st.FontName = attrs.String("face", attrs.String("name", st.FontName))
			st.FontSize = attrs.Length("size", st.FontSize)
			if attrs.Has("color") {
				col := attrs.Color("color", Black)
				st.Color = &col
			}
		case "br":
			r := state
			r.LineBreak = true
			out = append(out, r)
			continue
		case "pageNumber":
			r := state
			r.PageNumber = true
			out = append(out, r)
			continue
		case "getName":
			r := state
			r.Text = b.nameValue(c)
			out = append(out, r)
			continue
		}
		var err error
		out, err = b.runs(c, st, out)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (b *flowBuilder) nameValue(n *dsl.Node) string {
	id := n.AttrOr("id", "")
	if v, ok := b.cat.Name(id); ok {
		return v
	}
	return n.AttrOr("default", UnknownName)
}

// plainText returns the text of n with getName resolved and markup dropped.
func (b *flowBuilder) plainText(n *dsl.Node) string {
	var sb strings.Builder
	var walk func(*dsl.Node)
	walk = func(cur *dsl.Node) {
		for _, c := range cur.Children {
			switch {
			case c.Kind == dsl.TextNode:
				sb.WriteString(c.Text)
			case c.Tag == "getName":
				sb.WriteString(b.nameValue(c))
			case c.Tag == "br":
				sb.WriteString("\n")
			default:
				walk(c)
			}
		}
	}
	walk(n)
	return sb.String()
}

func (b *flowBuilder) resolveImage(n *dsl.Node) (image.Image, map[string]float64, error) {
	if b.opts.Images == nil {
		return nil, nil, elementError(n, fmt.Errorf("未配置图片解析器"))
	}
	img, placement, err := b.opts.Images(n)
	if err != nil {
		return nil, nil, elementError(n, err)
	}
	if placement == nil {
		placement = map[string]float64{}
	}
	if _, ok := placement["width"]; !ok && img != nil {
		placement["width"] = float64(img.Bounds().Dx())
	}
	if _, ok := placement["height"]; !ok && img != nil {
		placement["height"] = float64(img.Bounds().Dy())
	}
	return img, placement, nil
}

func (b *flowBuilder) barcode(n *dsl.Node) (Flowable, error) {
	attrs, err := GetAttrs(n, []string{"code", "value", "barWidth", "barHeight"},
		map[string]AttrKind{"code": KindString, "value": KindString})
	if err != nil {
		return nil, err
	}
	code := strings.ToLower(attrs.String("code", "code128"))
	value := attrs.String("value", strings.TrimSpace(b.plainText(n)))
	m, err := b.opts.Barcodes.Encode(code, value)
	if err != nil {
		return nil, elementError(n, fmt.Errorf("条码编码失败: %w", err))
	}
	bc := Barcode{Code: code, Value: value, Matrix: m}
	if m.Rows > 1 {
		bc.BarWidth = attrs.Length("barWidth", defaultQRModule)
		bc.BarHeight = attrs.Length("barHeight", bc.BarWidth*float64(m.Rows))
	} else {
		bc.BarWidth = attrs.Length("barWidth", defaultBarWidth)
		bc.BarHeight = attrs.Length("barHeight", defaultBarHeight)
	}
	return bc, nil
}

// dedentLines drops leading and trailing blank lines and removes up to
// dedent leading spaces from every line.
func dedentLines(lines []string, dedent int) []string {
	start, end := 0, len(lines)
	for start < end && strings.TrimSpace(lines[start]) == "" {
		start++
	}
	for end > start && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}
	out := make([]string, 0, end-start)
	for _, l := range lines[start:end] {
		out = append(out, trimIndent(strings.TrimRight(l, "\r"), dedent))
	}
	return out
}

func trimIndent(s string, n int) string {
	i := 0
	for i < len(s) && i < n && s[i] == ' ' {
		i++
	}
	return s[i:]
}

// splitRunLines cuts runs at newlines and <br/>.
func splitRunLines(runs []Run) [][]Run {
	lines := [][]Run{{}}
	for _, r := range runs {
		if r.LineBreak {
			lines = append(lines, []Run{})
			continue
		}
		if r.PageNumber {
			lines[len(lines)-1] = append(lines[len(lines)-1], r)
			continue
		}
		parts := strings.Split(strings.ReplaceAll(r.Text, "\r", ""), "\n")
		for i, p := range parts {
			if i > 0 {
				lines = append(lines, []Run{})
			}
			if p == "" {
				continue
			}
			piece := r
			piece.Text = p
			lines[len(lines)-1] = append(lines[len(lines)-1], piece)
		}
	}
	return lines
}

func dedentRunLines(lines [][]Run, dedent int) [][]Run {
	blank := func(l []Run) bool {
		for _, r := range l {
			if r.PageNumber || strings.TrimSpace(r.Text) != "" {
				return false
			}
		}
		return true
	}
	start, end := 0, len(lines)
	for start < end && blank(lines[start]) {
		start++
	}
	for end > start && blank(lines[end-1]) {
		end--
	}
	out := make([][]Run, 0, end-start)
	for _, l := range lines[start:end] {
		line := append([]Run(nil), l...)
		remaining := dedent
		for i := 0; i < len(line) && remaining > 0; i++ {
			if line[i].PageNumber {
				break
			}
			before := len(line[i].Text)
			line[i].Text = trimIndent(line[i].Text, remaining)
			remaining -= before - len(line[i].Text)
			if line[i].Text != "" {
				break
			}
		}
		out = append(out, line)
	}
	return out
}
