package layout

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ByLCY/rmlpdf/dsl"
)

// Alignment is the horizontal alignment of paragraph text.
type Alignment int

const (
	AlignLeft Alignment = iota
	AlignCenter
	AlignRight
	AlignJustify
)

// ParseAlignment maps right, center/centre and justify; anything else is left.
func ParseAlignment(value string) Alignment {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "right":
		return AlignRight
	case "center", "centre":
		return AlignCenter
	case "justify":
		return AlignJustify
	default:
		return AlignLeft
	}
}

func (a Alignment) String() string {
	switch a {
	case AlignCenter:
		return "center"
	case AlignRight:
		return "right"
	case AlignJustify:
		return "justify"
	default:
		return "left"
	}
}

func (a Alignment) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

// ParagraphStyle is a value type; copies never share state.
type ParagraphStyle struct {
	Name            string    `json:"name"`
	FontName        string    `json:"fontName"`
	FontSize        float64   `json:"fontSize"`
	Leading         float64   `json:"leading"`
	TextColor       Color     `json:"textColor"`
	BackColor       Color     `json:"backColor"`
	Alignment       Alignment `json:"alignment"`
	LeftIndent      float64   `json:"leftIndent"`
	RightIndent     float64   `json:"rightIndent"`
	FirstLineIndent float64   `json:"firstLineIndent"`
	SpaceBefore     float64   `json:"spaceBefore"`
	SpaceAfter      float64   `json:"spaceAfter"`
	BulletFontName  string    `json:"bulletFontName"`
	BulletFontSize  float64   `json:"bulletFontSize"`
	BulletIndent    float64   `json:"bulletIndent"`
	BulletColor     Color     `json:"bulletColor"`
	BulletText      string    `json:"bulletText,omitempty"`
	WordWrap        string    `json:"wordWrap,omitempty"`
}

// DefaultParagraphStyle returns the built-in "Normal" style.
func DefaultParagraphStyle() ParagraphStyle {
	return ParagraphStyle{
		Name:           "Normal",
		FontName:       "Helvetica",
		FontSize:       10,
		Leading:        12,
		TextColor:      Black,
		BackColor:      Transparent,
		BulletFontName: "Helvetica",
		BulletFontSize: 10,
		BulletColor:    Black,
	}
}

func sampleStyles() map[string]ParagraphStyle {
	normal := DefaultParagraphStyle()
	derive := func(name string, f func(*ParagraphStyle)) ParagraphStyle {
		s := normal
		s.Name = name
		f(&s)
		return s
	}
	return map[string]ParagraphStyle{
		"Normal": normal,
		"BodyText": derive("BodyText", func(s *ParagraphStyle) {
			s.SpaceBefore = 6
		}),
		"Italic": derive("Italic", func(s *ParagraphStyle) {
			s.FontName = "Helvetica-Oblique"
		}),
		"Title": derive("Title", func(s *ParagraphStyle) {
			s.FontName, s.FontSize, s.Leading = "Helvetica-Bold", 18, 22
			s.Alignment = AlignCenter
			s.SpaceAfter = 6
		}),
		"Heading1": derive("Heading1", func(s *ParagraphStyle) {
			s.FontName, s.FontSize, s.Leading = "Helvetica-Bold", 18, 22
			s.SpaceAfter = 6
		}),
		"Heading2": derive("Heading2", func(s *ParagraphStyle) {
			s.FontName, s.FontSize, s.Leading = "Helvetica-Bold", 14, 18
			s.SpaceBefore, s.SpaceAfter = 12, 6
		}),
		"Heading3": derive("Heading3", func(s *ParagraphStyle) {
			s.FontName, s.FontSize, s.Leading = "Helvetica-BoldOblique", 12, 14.4
			s.SpaceBefore, s.SpaceAfter = 12, 6
		}),
		"Code": derive("Code", func(s *ParagraphStyle) {
			s.FontName, s.FontSize, s.Leading = "Courier", 8, 8.8
			s.LeftIndent = 36
		}),
	}
}

// StyleOverride is one attribute-level change to a paragraph style.
type StyleOverride struct {
	Attr  string
	value any
}

var (
	styleColorAttrs  = []string{"textColor", "backColor", "bulletColor"}
	styleStringAttrs = []string{"fontName", "bulletFontName", "bulletText", "wordWrap"}
	styleLengthAttrs = []string{"fontSize", "leftIndent", "rightIndent", "spaceBefore", "spaceAfter",
		"firstLineIndent", "bulletIndent", "bulletFontSize", "leading"}
)

// ParseStyleOverrides collects the paragraph style attributes present on n,
// in a fixed order.
func ParseStyleOverrides(n *dsl.Node) ([]StyleOverride, error) {
	var out []StyleOverride
	for _, name := range styleColorAttrs {
		if raw, ok := n.Attr(name); ok {
			c, err := ParseColor(raw)
			if err != nil {
				return nil, elementError(n, fmt.Errorf("属性 %s: %w", name, err))
			}
			out = append(out, StyleOverride{Attr: name, value: c})
		}
	}
	for _, name := range styleStringAttrs {
		if raw, ok := n.Attr(name); ok {
			out = append(out, StyleOverride{Attr: name, value: raw})
		}
	}
	for _, name := range styleLengthAttrs {
		if raw, ok := n.Attr(name); ok {
			l, err := ParseLength(raw)
			if err != nil {
				return nil, elementError(n, fmt.Errorf("属性 %s: %w", name, err))
			}
			out = append(out, StyleOverride{Attr: name, value: l})
		}
	}
	if raw, ok := n.Attr("alignment"); ok {
		out = append(out, StyleOverride{Attr: "alignment", value: ParseAlignment(raw)})
	}
	return out, nil
}

// Apply returns s with the override applied; s itself is not modified.
func (o StyleOverride) Apply(s ParagraphStyle) ParagraphStyle {
	switch v := o.value.(type) {
	case Color:
		switch o.Attr {
		case "textColor":
			s.TextColor = v
		case "backColor":
			s.BackColor = v
		case "bulletColor":
			s.BulletColor = v
		}
	case string:
		switch o.Attr {
		case "fontName":
			s.FontName = v
		case "bulletFontName":
			s.BulletFontName = v
		case "bulletText":
			s.BulletText = v
		case "wordWrap":
			s.WordWrap = v
		}
	case float64:
		switch o.Attr {
		case "fontSize":
			s.FontSize = v
		case "leftIndent":
			s.LeftIndent = v
		case "rightIndent":
			s.RightIndent = v
		case "spaceBefore":
			s.SpaceBefore = v
		case "spaceAfter":
			s.SpaceAfter = v
		case "firstLineIndent":
			s.FirstLineIndent = v
		case "bulletIndent":
			s.BulletIndent = v
		case "bulletFontSize":
			s.BulletFontSize = v
		case "leading":
			s.Leading = v
		}
	case Alignment:
		s.Alignment = v
	}
	return s
}

// ApplyOverrides folds the overrides over base in order.
func ApplyOverrides(base ParagraphStyle, overrides []StyleOverride) ParagraphStyle {
	for _, o := range overrides {
		base = o.Apply(base)
	}
	return base
}

// Cell addresses a table cell as (column, row); negative values count from
// the end.
type Cell struct {
	Col int `json:"col"`
	Row int `json:"row"`
}

// TableStyleCommand is one directive of a table style applied to the cell
// range Start..Stop.
type TableStyleCommand struct {
	Op        string  `json:"op"`
	Start     Cell    `json:"start"`
	Stop      Cell    `json:"stop"`
	Value     string  `json:"value,omitempty"`
	Size      float64 `json:"size,omitempty"`
	Color     Color   `json:"color"`
	Thickness float64 `json:"thickness,omitempty"`
}

// TableStyle is an ordered list of directives.
type TableStyle struct {
	ID       string              `json:"id"`
	Commands []TableStyleCommand `json:"commands"`
}

var lineStyleKinds = map[string]bool{
	"GRID": true, "BOX": true, "OUTLINE": true, "INNERGRID": true,
	"LINEBELOW": true, "LINEABOVE": true, "LINEBEFORE": true, "LINEAFTER": true,
}

// Catalogue holds named paragraph styles, table styles and named values for
// one document. Registration is last-wins; resolution returns copies.
type Catalogue struct {
	paragraph map[string]ParagraphStyle
	table     map[string]TableStyle
	names     map[string]string
	logger    *zap.SugaredLogger
}

// NewCatalogue returns a catalogue seeded with the sample paragraph styles.
func NewCatalogue(logger *zap.SugaredLogger) *Catalogue {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Catalogue{
		paragraph: sampleStyles(),
		table:     map[string]TableStyle{},
		names:     map[string]string{},
		logger:    logger,
	}
}

// Register scans paraStyle, blockTableStyle and initialize/name elements in
// the subtrees of nodes, in document order.
func (c *Catalogue) Register(nodes ...*dsl.Node) error {
	var walk func(n *dsl.Node, inInit bool) error
	walk = func(n *dsl.Node, inInit bool) error {
		switch n.Tag {
		case "paraStyle":
			return c.registerParagraphStyle(n)
		case "blockTableStyle":
			return c.registerTableStyle(n)
		case "name":
			if inInit {
				id, err := requireAttr(n, "id")
				if err != nil {
					return err
				}
				c.SetName(id, n.AttrOr("value", ""))
			}
			return nil
		case "initialize":
			inInit = true
		}
		for _, child := range n.Elements() {
			if err := walk(child, inInit); err != nil {
				return err
			}
		}
		return nil
	}
	for _, n := range nodes {
		if n == nil {
			continue
		}
		if err := walk(n, false); err != nil {
			return err
		}
	}
	return nil
}

func (c *Catalogue) registerParagraphStyle(n *dsl.Node) error {
	name, err := requireAttr(n, "name")
	if err != nil {
		return err
	}
	base := c.paragraph["Normal"]
	if parent, ok := n.Attr("parent"); ok {
		if p, ok := c.paragraph[parent]; ok {
			base = p
		} else {
			c.logger.Warnw("unknown parent paragraph style, using Normal", "style", name, "parent", parent, "line", n.Line)
		}
	}
	overrides, err := ParseStyleOverrides(n)
	if err != nil {
		return err
	}
	style := ApplyOverrides(base, overrides)
	style.Name = name
	c.paragraph[name] = style
	return nil
}

func (c *Catalogue) registerTableStyle(n *dsl.Node) error {
	id, err := requireAttr(n, "id")
	if err != nil {
		return err
	}
	style := TableStyle{ID: id}
	for _, child := range n.Elements() {
		cmds, err := c.tableStyleCommands(child)
		if err != nil {
			return err
		}
		style.Commands = append(style.Commands, cmds...)
	}
	c.table[id] = style
	return nil
}

// tableStyleCommands translates one directive element. A blockFont with
// size/leading yields several commands.
func (c *Catalogue) tableStyleCommands(n *dsl.Node) ([]TableStyleCommand, error) {
	start, stop, err := cellRange(n)
	if err != nil {
		return nil, err
	}
	base := TableStyleCommand{Start: start, Stop: stop}
	with := func(op string, f func(*TableStyleCommand) error) ([]TableStyleCommand, error) {
		cmd := base
		cmd.Op = op
		if f != nil {
			if err := f(&cmd); err != nil {
				return nil, elementError(n, err)
			}
		}
		return []TableStyleCommand{cmd}, nil
	}
	length := func(attr string) func(*TableStyleCommand) error {
		return func(cmd *TableStyleCommand) error {
			raw, ok := n.Attr(attr)
			if !ok {
				return fmt.Errorf("%w: %s", ErrMissingAttribute, attr)
			}
			v, err := ParseLength(raw)
			cmd.Size = v
			return err
		}
	}
	color := func(attr string) func(*TableStyleCommand) error {
		return func(cmd *TableStyleCommand) error {
			raw, ok := n.Attr(attr)
			if !ok {
				return fmt.Errorf("%w: %s", ErrMissingAttribute, attr)
			}
			v, err := ParseColor(raw)
			cmd.Color = v
			return err
		}
	}
	value := func(attr string) func(*TableStyleCommand) error {
		return func(cmd *TableStyleCommand) error {
			raw, ok := n.Attr(attr)
			if !ok {
				return fmt.Errorf("%w: %s", ErrMissingAttribute, attr)
			}
			cmd.Value = raw
			return nil
		}
	}

	switch n.Tag {
	case "blockValign":
		return with("VALIGN", value("value"))
	case "blockFont":
		out, err := with("FONT", value("name"))
		if err != nil {
			return nil, err
		}
		if n.HasAttr("size") {
			more, err := with("FONTSIZE", length("size"))
			if err != nil {
				return nil, err
			}
			out = append(out, more...)
		}
		if n.HasAttr("leading") {
			more, err := with("LEADING", length("leading"))
			if err != nil {
				return nil, err
			}
			out = append(out, more...)
		}
		return out, nil
	case "blockTextColor":
		return with("TEXTCOLOR", color("colorName"))
	case "blockLeading":
		return with("LEADING", length("length"))
	case "blockAlignment":
		return with("ALIGNMENT", value("value"))
	case "blockLeftPadding":
		return with("LEFTPADDING", length("length"))
	case "blockRightPadding":
		return with("RIGHTPADDING", length("length"))
	case "blockTopPadding":
		return with("TOPPADDING", length("length"))
	case "blockBottomPadding":
		return with("BOTTOMPADDING", length("length"))
	case "blockBackground":
		return with("BACKGROUND", color("colorName"))
	case "blockSpan":
		return with("SPAN", nil)
	case "lineStyle":
		kind, err := requireAttr(n, "kind")
		if err != nil {
			return nil, err
		}
		kind = strings.ToUpper(kind)
		if !lineStyleKinds[kind] {
			return nil, elementError(n, fmt.Errorf("%w: 未知的 lineStyle kind %q", ErrMalformedValue, kind))
		}
		return with(kind, func(cmd *TableStyleCommand) error {
			cmd.Thickness = 1
			if raw, ok := n.Attr("thickness"); ok {
				v, err := ParseLength(raw)
				if err != nil {
					return err
				}
				cmd.Thickness = v
			}
			if raw, ok := n.Attr("colorName"); ok {
				v, err := ParseColor(raw)
				if err != nil {
					return err
				}
				cmd.Color = v
			}
			return nil
		})
	default:
		c.logger.Warnw("unknown table style directive, skipped", "tag", n.Tag, "line", n.Line)
		return nil, nil
	}
}

func cellRange(n *dsl.Node) (Cell, Cell, error) {
	start, stop := Cell{0, 0}, Cell{-1, -1}
	for _, it := range []struct {
		attr string
		dst  *Cell
	}{{"start", &start}, {"stop", &stop}} {
		raw, ok := n.Attr(it.attr)
		if !ok {
			continue
		}
		vals, err := ParseIntTuple(raw)
		if err != nil {
			return Cell{}, Cell{}, elementError(n, err)
		}
		if len(vals) != 2 {
			return Cell{}, Cell{}, elementError(n, fmt.Errorf("%w: %s 需要两个整数", ErrMalformedValue, it.attr))
		}
		*it.dst = Cell{Col: vals[0], Row: vals[1]}
	}
	return start, stop, nil
}

// ParagraphStyle returns a copy of a registered style.
func (c *Catalogue) ParagraphStyle(name string) (ParagraphStyle, bool) {
	s, ok := c.paragraph[name]
	return s, ok
}

// ResolveParagraphStyle resolves the style of n: the named style (or Normal
// with a warning when unknown), then n's own style attributes.
func (c *Catalogue) ResolveParagraphStyle(n *dsl.Node) (ParagraphStyle, error) {
	base := c.paragraph["Normal"]
	if name, has := n.Attr("style"); has {
		if s, ok := c.paragraph[name]; ok {
			base = s
		} else {
			c.logger.Warnw("paragraph style not found, using default", "style", name, "line", n.Line)
			base = c.paragraph["Normal"]
		}
	}
	overrides, err := ParseStyleOverrides(n)
	if err != nil {
		return ParagraphStyle{}, err
	}
	return ApplyOverrides(base, overrides), nil
}

// headings 把标题标签映射到固定样式名；stylesheet 中的同名样式不影响它们。
var headings = map[string]string{"title": "Title", "h1": "Heading1", "h2": "Heading2", "h3": "Heading3"}

var headingStyles = sampleStyles()

// headingStyle 忽略 style 属性与样式覆盖，只接受 bulletText。
func headingStyle(n *dsl.Node) ParagraphStyle {
	s := headingStyles[headings[n.Tag]]
	if v, ok := n.Attr("bulletText"); ok {
		s.BulletText = v
	}
	return s
}

// ResolveTableStyle returns a copy of the table style id.
func (c *Catalogue) ResolveTableStyle(id string) (TableStyle, error) {
	s, ok := c.table[id]
	if !ok {
		return TableStyle{}, fmt.Errorf("%w: %q", ErrUnknownTableStyle, id)
	}
	s.Commands = append([]TableStyleCommand(nil), s.Commands...)
	return s, nil
}

// SetName binds a named value; later bindings win.
func (c *Catalogue) SetName(id, value string) { c.names[id] = value }

// Name looks up a named value.
func (c *Catalogue) Name(id string) (string, bool) {
	v, ok := c.names[id]
	return v, ok
}
