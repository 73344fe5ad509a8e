package layout

import (
	"fmt"
	"image"
	"strings"

	"github.com/ByLCY/rmlpdf/dsl"
)

// DrawCommand is one free-form drawing instruction, resolved once at compile
// time. The set of variants is closed.
type DrawCommand interface {
	Op() string
	drawCommand()
}

// TextPart is a literal piece of drawn text or a page number placeholder
// substituted when the page is rendered.
type TextPart struct {
	Text       string `json:"text,omitempty"`
	PageNumber bool   `json:"pageNumber,omitempty"`
}

// LineJoin / LineCap follow the PDF numbering.
type (
	LineJoin int
	LineCap  int
)

const (
	JoinMiter LineJoin = 0
	JoinRound LineJoin = 1
	JoinBevel LineJoin = 2

	CapButt   LineCap = 0
	CapRound  LineCap = 1
	CapSquare LineCap = 2
)

var (
	lineJoins = map[string]LineJoin{"mitered": JoinMiter, "miter": JoinMiter, "round": JoinRound, "bevelled": JoinBevel, "bevel": JoinBevel}
	lineCaps  = map[string]LineCap{"default": CapButt, "butt": CapButt, "round": CapRound, "square": CapSquare}
)

// PathOp is a path segment; Points holds 2 values for moveTo/lineTo and 6
// for curveTo.
type PathOp struct {
	Op     string    `json:"op"`
	Points []float64 `json:"points"`
}

type (
	DrawString struct {
		Align Alignment  `json:"align"`
		X     float64    `json:"x"`
		Y     float64    `json:"y"`
		Text  []TextPart `json:"text"`
	}
	Rect struct {
		X      float64 `json:"x"`
		Y      float64 `json:"y"`
		Width  float64 `json:"width"`
		Height float64 `json:"height"`
		Radius float64 `json:"radius,omitempty"`
		Fill   bool    `json:"fill"`
		Stroke bool    `json:"stroke"`
	}
	// Ellipse is inscribed in the box X, Y, Width, Height.
	Ellipse struct {
		X      float64 `json:"x"`
		Y      float64 `json:"y"`
		Width  float64 `json:"width"`
		Height float64 `json:"height"`
		Fill   bool    `json:"fill"`
		Stroke bool    `json:"stroke"`
	}
	Circle struct {
		X      float64 `json:"x"`
		Y      float64 `json:"y"`
		Radius float64 `json:"radius"`
		Fill   bool    `json:"fill"`
		Stroke bool    `json:"stroke"`
	}
	Lines struct {
		Segments [][4]float64 `json:"segments"`
	}
	Curves struct {
		Segments [][8]float64 `json:"segments"`
	}
	Path struct {
		X      float64  `json:"x"`
		Y      float64  `json:"y"`
		Ops    []PathOp `json:"ops"`
		Close  bool     `json:"close"`
		Fill   bool     `json:"fill"`
		Stroke bool     `json:"stroke"`
	}
	Grid struct {
		Xs []float64 `json:"xs"`
		Ys []float64 `json:"ys"`
	}
	DrawImage struct {
		Source string      `json:"source"`
		X      float64     `json:"x"`
		Y      float64     `json:"y"`
		Width  float64     `json:"width"`
		Height float64     `json:"height"`
		Data   image.Image `json:"-"`
	}
	SetFillColor struct {
		Color Color `json:"color"`
	}
	SetStrokeColor struct {
		Color Color `json:"color"`
	}
	SetFont struct {
		Name string  `json:"name"`
		Size float64 `json:"size"`
	}
	// LineMode changes only the fields that are set.
	LineMode struct {
		Width      *float64  `json:"width,omitempty"`
		Join       *LineJoin `json:"join,omitempty"`
		Cap        *LineCap  `json:"cap,omitempty"`
		Dash       []float64 `json:"dash,omitempty"`
		MiterLimit *float64  `json:"miterLimit,omitempty"`
	}
	Translate struct {
		DX float64 `json:"dx"`
		DY float64 `json:"dy"`
	}
	Rotate struct {
		Degrees float64 `json:"degrees"`
	}
	// Place stacks Story top-down inside the box; the backend fails when the
	// flowables do not fit.
	Place struct {
		X      float64    `json:"x"`
		Y      float64    `json:"y"`
		Width  float64    `json:"width"`
		Height float64    `json:"height"`
		Story  []Flowable `json:"story"`
	}
)

func (DrawString) Op() string     { return "drawString" }
func (Rect) Op() string           { return "rect" }
func (Ellipse) Op() string        { return "ellipse" }
func (Circle) Op() string         { return "circle" }
func (Lines) Op() string          { return "lines" }
func (Curves) Op() string         { return "curves" }
func (Path) Op() string           { return "path" }
func (Grid) Op() string           { return "grid" }
func (DrawImage) Op() string      { return "image" }
func (SetFillColor) Op() string   { return "fill" }
func (SetStrokeColor) Op() string { return "stroke" }
func (SetFont) Op() string        { return "setFont" }
func (LineMode) Op() string       { return "lineMode" }
func (Translate) Op() string      { return "translate" }
func (Rotate) Op() string         { return "rotate" }
func (Place) Op() string          { return "place" }

func (DrawString) drawCommand()     {}
func (Rect) drawCommand()           {}
func (Ellipse) drawCommand()        {}
func (Circle) drawCommand()         {}
func (Lines) drawCommand()          {}
func (Curves) drawCommand()         {}
func (Path) drawCommand()           {}
func (Grid) drawCommand()           {}
func (DrawImage) drawCommand()      {}
func (SetFillColor) drawCommand()   {}
func (SetStrokeColor) drawCommand() {}
func (SetFont) drawCommand()        {}
func (LineMode) drawCommand()       {}
func (Translate) drawCommand()      {}
func (Rotate) drawCommand()         {}
func (Place) drawCommand()          {}

// CompileDrawing translates the element children of n into drawing
// commands. Unknown tags are ignored.
func CompileDrawing(n *dsl.Node, cat *Catalogue, opts BuildOptions) ([]DrawCommand, error) {
	b := &flowBuilder{cat: cat, opts: opts, log: opts.logger()}
	return b.drawing(n)
}

var shapeHints = map[string]AttrKind{"fill": KindBool, "stroke": KindBool, "close": KindBool}

func (b *flowBuilder) drawing(n *dsl.Node) ([]DrawCommand, error) {
	cmds := []DrawCommand{}
	for _, c := range n.Elements() {
		cmd, ok, err := b.drawCommand(c)
		if err != nil {
			return nil, err
		}
		if ok {
			cmds = append(cmds, cmd)
		}
	}
	return cmds, nil
}

func (b *flowBuilder) drawCommand(n *dsl.Node) (DrawCommand, bool, error) {
	switch n.Tag {
	case "drawString", "drawCentredString", "drawCenteredString", "drawRightString":
		attrs, err := b.required(n, []string{"x", "y"}, nil)
		if err != nil {
			return nil, false, err
		}
		align := AlignLeft
		switch n.Tag {
		case "drawCentredString", "drawCenteredString":
			align = AlignCenter
		case "drawRightString":
			align = AlignRight
		}
		return DrawString{Align: align, X: attrs.Length("x", 0), Y: attrs.Length("y", 0), Text: b.textParts(n, nil)}, true, nil
	case "rect":
		attrs, err := b.required(n, []string{"x", "y", "width", "height"}, []string{"round", "fill", "stroke"})
		if err != nil {
			return nil, false, err
		}
		return Rect{
			X: attrs.Length("x", 0), Y: attrs.Length("y", 0),
			Width: attrs.Length("width", 0), Height: attrs.Length("height", 0),
			Radius: attrs.Length("round", 0),
			Fill:   attrs.Bool("fill", false), Stroke: attrs.Bool("stroke", true),
		}, true, nil
	case "ellipse":
		attrs, err := b.required(n, []string{"x", "y", "width", "height"}, []string{"fill", "stroke"})
		if err != nil {
			return nil, false, err
		}
		return Ellipse{
			X: attrs.Length("x", 0), Y: attrs.Length("y", 0),
			Width: attrs.Length("width", 0), Height: attrs.Length("height", 0),
			Fill: attrs.Bool("fill", false), Stroke: attrs.Bool("stroke", true),
		}, true, nil
	case "circle":
		attrs, err := b.required(n, []string{"x", "y", "radius"}, []string{"fill", "stroke"})
		if err != nil {
			return nil, false, err
		}
		return Circle{
			X: attrs.Length("x", 0), Y: attrs.Length("y", 0), Radius: attrs.Length("radius", 0),
			Fill: attrs.Bool("fill", false), Stroke: attrs.Bool("stroke", true),
		}, true, nil
	case "lines":
		nums, err := b.coordinates(n, n.DirectText())
		if err != nil {
			return nil, false, err
		}
		var cmd Lines
		for i := 0; i+4 <= len(nums); i += 4 {
			cmd.Segments = append(cmd.Segments, [4]float64{nums[i], nums[i+1], nums[i+2], nums[i+3]})
		}
		return cmd, true, nil
	case "curves":
		nums, err := b.coordinates(n, n.DirectText())
		if err != nil {
			return nil, false, err
		}
		var cmd Curves
		for i := 0; i+8 <= len(nums); i += 8 {
			var seg [8]float64
			copy(seg[:], nums[i:i+8])
			cmd.Segments = append(cmd.Segments, seg)
		}
		return cmd, true, nil
	case "grid":
		xsRaw, err := requireAttr(n, "xs")
		if err != nil {
			return nil, false, err
		}
		ysRaw, err := requireAttr(n, "ys")
		if err != nil {
			return nil, false, err
		}
		xs, err := ParseLengthList(xsRaw)
		if err != nil {
			return nil, false, elementError(n, err)
		}
		ys, err := ParseLengthList(ysRaw)
		if err != nil {
			return nil, false, elementError(n, err)
		}
		return Grid{Xs: xs, Ys: ys}, true, nil
	case "fill", "stroke":
		raw, err := requireAttr(n, "color")
		if err != nil {
			return nil, false, err
		}
		col, err := ParseColor(raw)
		if err != nil {
			return nil, false, elementError(n, err)
		}
		if n.Tag == "fill" {
			return SetFillColor{Color: col}, true, nil
		}
		return SetStrokeColor{Color: col}, true, nil
	case "setFont":
		name, err := requireAttr(n, "name")
		if err != nil {
			return nil, false, err
		}
		attrs, err := b.required(n, []string{"size"}, nil)
		if err != nil {
			return nil, false, err
		}
		return SetFont{Name: name, Size: attrs.Length("size", 0)}, true, nil
	case "lineMode":
		return b.lineMode(n)
	case "path":
		return b.path(n)
	case "image":
		img, placement, err := b.resolveImage(n)
		if err != nil {
			return nil, false, err
		}
		return DrawImage{
			Source: n.AttrOr("file", ""),
			X:      placement["x"], Y: placement["y"],
			Width: placement["width"], Height: placement["height"],
			Data: img,
		}, true, nil
	case "translate":
		attrs, err := GetAttrs(n, []string{"dx", "dy"}, nil)
		if err != nil {
			return nil, false, err
		}
		return Translate{DX: attrs.Length("dx", 0), DY: attrs.Length("dy", 0)}, true, nil
	case "rotate":
		raw, err := requireAttr(n, "degrees")
		if err != nil {
			return nil, false, err
		}
		items, err := dsl.ParseValues(raw)
		if err != nil || len(items) != 1 || !items[0].Numeric {
			return nil, false, elementError(n, fmt.Errorf("%w: degrees %q", ErrMalformedValue, raw))
		}
		return Rotate{Degrees: items[0].Number}, true, nil
	case "place":
		attrs, err := b.required(n, []string{"x", "y", "width", "height"}, nil)
		if err != nil {
			return nil, false, err
		}
		story, err := b.build(n)
		if err != nil {
			return nil, false, err
		}
		return Place{
			X: attrs.Length("x", 0), Y: attrs.Length("y", 0),
			Width: attrs.Length("width", 0), Height: attrs.Length("height", 0),
			Story: story,
		}, true, nil
	default:
		return nil, false, nil
	}
}

// required coerces the mandatory attributes and the optional ones; any
// missing mandatory attribute is an error.
func (b *flowBuilder) required(n *dsl.Node, names, optional []string) (Attrs, error) {
	attrs, err := GetAttrs(n, append(append([]string(nil), names...), optional...), shapeHints)
	if err != nil {
		return nil, err
	}
	for _, name := range names {
		if !attrs.Has(name) {
			return nil, elementError(n, fmt.Errorf("%w: %s", ErrMissingAttribute, name))
		}
	}
	return attrs, nil
}

// coordinates parses blank or comma separated numbers with optional units.
func (b *flowBuilder) coordinates(n *dsl.Node, text string) ([]float64, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	nums, err := ParseLengthList(text)
	if err != nil {
		return nil, elementError(n, err)
	}
	return nums, nil
}

func (b *flowBuilder) lineMode(n *dsl.Node) (DrawCommand, bool, error) {
	attrs, err := GetAttrs(n, []string{"width", "miterLimit", "join", "cap", "dash"},
		map[string]AttrKind{"join": KindString, "cap": KindString, "dash": KindString})
	if err != nil {
		return nil, false, err
	}
	var cmd LineMode
	if attrs.Has("width") {
		w := attrs.Length("width", 0)
		cmd.Width = &w
	}
	if attrs.Has("miterLimit") {
		m := attrs.Length("miterLimit", 0)
		cmd.MiterLimit = &m
	}
	if attrs.Has("join") {
		j, ok := lineJoins[strings.ToLower(attrs.String("join", ""))]
		if !ok {
			return nil, false, elementError(n, fmt.Errorf("%w: join %q", ErrMalformedValue, attrs.String("join", "")))
		}
		cmd.Join = &j
	}
	if attrs.Has("cap") {
		c, ok := lineCaps[strings.ToLower(attrs.String("cap", ""))]
		if !ok {
			return nil, false, elementError(n, fmt.Errorf("%w: cap %q", ErrMalformedValue, attrs.String("cap", "")))
		}
		cmd.Cap = &c
	}
	if attrs.Has("dash") {
		dash, err := ParseLengthList(attrs.String("dash", ""))
		if err != nil {
			return nil, false, elementError(n, err)
		}
		cmd.Dash = dash
	}
	return cmd, true, nil
}

// path: bare text pairs are line-to points, moveto children hold one point,
// curvesto children hold groups of six numbers.
func (b *flowBuilder) path(n *dsl.Node) (DrawCommand, bool, error) {
	attrs, err := b.required(n, []string{"x", "y"}, []string{"fill", "stroke", "close"})
	if err != nil {
		return nil, false, err
	}
	p := Path{
		X: attrs.Length("x", 0), Y: attrs.Length("y", 0),
		Close: attrs.Bool("close", true),
		Fill:  attrs.Bool("fill", false), Stroke: attrs.Bool("stroke", true),
	}
	for _, c := range n.Children {
		var text string
		if c.Kind == dsl.TextNode {
			text = c.Text
		} else {
			text = c.DirectText()
		}
		nums, err := b.coordinates(n, text)
		if err != nil {
			return nil, false, err
		}
		switch {
		case c.Kind == dsl.TextNode:
			for i := 0; i+2 <= len(nums); i += 2 {
				p.Ops = append(p.Ops, PathOp{Op: "lineTo", Points: []float64{nums[i], nums[i+1]}})
			}
		case c.Tag == "moveto":
			if len(nums) >= 2 {
				p.Ops = append(p.Ops, PathOp{Op: "moveTo", Points: []float64{nums[0], nums[1]}})
			}
		case c.Tag == "curvesto":
			for i := 0; i+6 <= len(nums); i += 6 {
				p.Ops = append(p.Ops, PathOp{Op: "curveTo", Points: append([]float64(nil), nums[i:i+6]...)})
			}
		}
	}
	return p, true, nil
}

// textParts concatenates character data (CDATA included), resolves getName
// and keeps pageNumber as a placeholder.
func (b *flowBuilder) textParts(n *dsl.Node, out []TextPart) []TextPart {
	for _, c := range n.Children {
		switch {
		case c.Kind == dsl.TextNode:
			out = appendText(out, c.Text)
		case c.Tag == "pageNumber":
			out = append(out, TextPart{PageNumber: true})
		case c.Tag == "getName":
			out = appendText(out, b.nameValue(c))
		default:
			out = b.textParts(c, out)
		}
	}
	return out
}

func appendText(parts []TextPart, s string) []TextPart {
	if k := len(parts); k > 0 && !parts[k-1].PageNumber {
		parts[k-1].Text += s
		return parts
	}
	return append(parts, TextPart{Text: s})
}
