package layout

import (
	"fmt"
	"strings"

	"github.com/ByLCY/rmlpdf/dsl"
)

// Default page is A4 portrait, in points.
const (
	DefaultPageWidth  = 21 * 72 / 2.54
	DefaultPageHeight = 29.7 * 72 / 2.54

	defaultMargin       = 72
	defaultFramePadding = 6
)

var pagePresets = map[string][2]float64{
	"A3":     {297 * MmToPt, 420 * MmToPt},
	"A4":     {DefaultPageWidth, DefaultPageHeight},
	"A5":     {148 * MmToPt, 210 * MmToPt},
	"LETTER": {612, 792},
	"LEGAL":  {612, 1008},
}

// Frame is a rectangular flow region of a page template.
type Frame struct {
	ID            string  `json:"id,omitempty"`
	X1            float64 `json:"x1"`
	Y1            float64 `json:"y1"`
	Width         float64 `json:"width"`
	Height        float64 `json:"height"`
	LeftPadding   float64 `json:"leftPadding"`
	RightPadding  float64 `json:"rightPadding"`
	TopPadding    float64 `json:"topPadding"`
	BottomPadding float64 `json:"bottomPadding"`
	ShowBoundary  bool    `json:"showBoundary,omitempty"`
}

// PageTemplate groups frames with an optional graphics overlay drawn on
// every page that uses the template.
type PageTemplate struct {
	ID       string        `json:"id"`
	Frames   []Frame       `json:"frames"`
	Graphics []DrawCommand `json:"graphics,omitempty"`
}

// Template is the document-level page geometry.
type Template struct {
	PageWidth      float64        `json:"pageWidth"`
	PageHeight     float64        `json:"pageHeight"`
	LeftMargin     float64        `json:"leftMargin"`
	RightMargin    float64        `json:"rightMargin"`
	TopMargin      float64        `json:"topMargin"`
	BottomMargin   float64        `json:"bottomMargin"`
	ShowBoundary   bool           `json:"showBoundary,omitempty"`
	AllowSplitting int            `json:"allowSplitting"`
	Title          string         `json:"title,omitempty"`
	Author         string         `json:"author,omitempty"`
	PageTemplates  []PageTemplate `json:"pageTemplates"`
}

// PageTemplate looks up a page template by id.
func (t *Template) PageTemplate(id string) (PageTemplate, bool) {
	for _, pt := range t.PageTemplates {
		if pt.ID == id {
			return pt, true
		}
	}
	return PageTemplate{}, false
}

// ParsePageSize reads "(w, h)" or a named size such as "A4" / "letter",
// optionally followed by "landscape".
func ParsePageSize(value string) (float64, float64, error) {
	items, err := dsl.ParseValues(value)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: pageSize %q: %v", ErrMalformedValue, value, err)
	}
	if len(items) >= 1 && !items[0].Numeric {
		size, ok := pagePresets[strings.ToUpper(items[0].Word)]
		if !ok {
			return 0, 0, fmt.Errorf("%w: 暂不支持的纸张尺寸 %q", ErrMalformedValue, items[0].Word)
		}
		w, h := size[0], size[1]
		if len(items) == 2 && strings.EqualFold(items[1].Word, "landscape") {
			w, h = h, w
		} else if len(items) > 1 {
			return 0, 0, fmt.Errorf("%w: pageSize %q", ErrMalformedValue, value)
		}
		return w, h, nil
	}
	if len(items) != 2 {
		return 0, 0, fmt.Errorf("%w: pageSize 需要宽高两个值: %q", ErrMalformedValue, value)
	}
	w, err := lengthFromValue(items[0], value)
	if err != nil {
		return 0, 0, err
	}
	h, err := lengthFromValue(items[1], value)
	if err != nil {
		return 0, 0, err
	}
	return w.ToPT(), h.ToPT(), nil
}

// ComposeTemplate builds the page geometry from a <template> element.
func ComposeTemplate(n *dsl.Node, cat *Catalogue, opts BuildOptions) (*Template, error) {
	attrs, err := GetAttrs(n,
		[]string{"leftMargin", "rightMargin", "topMargin", "bottomMargin", "showBoundary", "allowSplitting", "title", "author"},
		map[string]AttrKind{"showBoundary": KindBool, "allowSplitting": KindInt, "title": KindString, "author": KindString})
	if err != nil {
		return nil, err
	}
	t := &Template{
		PageWidth:      DefaultPageWidth,
		PageHeight:     DefaultPageHeight,
		LeftMargin:     attrs.Length("leftMargin", defaultMargin),
		RightMargin:    attrs.Length("rightMargin", defaultMargin),
		TopMargin:      attrs.Length("topMargin", defaultMargin),
		BottomMargin:   attrs.Length("bottomMargin", defaultMargin),
		ShowBoundary:   attrs.Bool("showBoundary", false),
		AllowSplitting: attrs.Int("allowSplitting", 1),
		Title:          attrs.String("title", ""),
		Author:         attrs.String("author", ""),
	}
	if raw, ok := n.Attr("pageSize"); ok {
		w, h, err := ParsePageSize(raw)
		if err != nil {
			return nil, elementError(n, err)
		}
		t.PageWidth, t.PageHeight = w, h
	}

	b := &flowBuilder{cat: cat, opts: opts, log: opts.logger()}
	for i, ptNode := range n.ChildrenByTag("pageTemplate") {
		pt := PageTemplate{ID: ptNode.AttrOr("id", fmt.Sprintf("page%d", i))}
		for _, fn := range ptNode.ChildrenByTag("frame") {
			f, err := composeFrame(fn, t.ShowBoundary)
			if err != nil {
				return nil, err
			}
			pt.Frames = append(pt.Frames, f)
		}
		if len(pt.Frames) == 0 {
			return nil, elementError(ptNode, fmt.Errorf("%w: pageTemplate 缺少 frame", ErrStructure))
		}
		if g := ptNode.Child("pageGraphics"); g != nil {
			cmds, err := b.drawing(g)
			if err != nil {
				return nil, err
			}
			pt.Graphics = cmds
		}
		t.PageTemplates = append(t.PageTemplates, pt)
	}
	if len(t.PageTemplates) == 0 {
		return nil, elementError(n, fmt.Errorf("%w: template 缺少 pageTemplate", ErrStructure))
	}
	return t, nil
}

func composeFrame(n *dsl.Node, showBoundary bool) (Frame, error) {
	attrs, err := GetAttrs(n,
		[]string{"x1", "y1", "width", "height", "leftPadding", "rightPadding", "topPadding", "bottomPadding", "id", "showBoundary"},
		map[string]AttrKind{"id": KindString, "showBoundary": KindBool})
	if err != nil {
		return Frame{}, err
	}
	for _, name := range []string{"x1", "y1", "width", "height"} {
		if !attrs.Has(name) {
			return Frame{}, elementError(n, fmt.Errorf("%w: %s", ErrMissingAttribute, name))
		}
	}
	return Frame{
		ID:            attrs.String("id", ""),
		X1:            attrs.Length("x1", 0),
		Y1:            attrs.Length("y1", 0),
		Width:         attrs.Length("width", 0),
		Height:        attrs.Length("height", 0),
		LeftPadding:   attrs.Length("leftPadding", defaultFramePadding),
		RightPadding:  attrs.Length("rightPadding", defaultFramePadding),
		TopPadding:    attrs.Length("topPadding", defaultFramePadding),
		BottomPadding: attrs.Length("bottomPadding", defaultFramePadding),
		ShowBoundary:  attrs.Bool("showBoundary", showBoundary),
	}, nil
}
