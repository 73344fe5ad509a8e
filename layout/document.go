package layout

import (
	"fmt"

	"github.com/ByLCY/rmlpdf/dsl"
)

// Mode tells the backend how to render a compiled document.
type Mode int

const (
	ModeFlow    Mode = iota // template + story
	ModeDrawing             // one page of free drawing
)

func (m Mode) MarshalText() ([]byte, error) {
	if m == ModeDrawing {
		return []byte("drawing"), nil
	}
	return []byte("flow"), nil
}

// FontDirective is a docinit font registration request.
type FontDirective struct {
	Kind   string         `json:"kind"`
	Params map[string]any `json:"params"`
	Line   int            `json:"line"`
}

// Document is the backend-agnostic result of compiling one RML file.
type Document struct {
	Filename  string          `json:"filename,omitempty"`
	Mode      Mode            `json:"mode"`
	Fonts     []FontDirective `json:"fonts,omitempty"`
	Template  *Template       `json:"template,omitempty"`
	Story     []Flowable      `json:"story,omitempty"`
	Drawing   []DrawCommand   `json:"drawing,omitempty"`
	Catalogue *Catalogue      `json:"-"`
}

// FontDirectives collects registerCidFont / registerTTFont requests from the
// docinit section.
func FontDirectives(root *dsl.Node) ([]FontDirective, error) {
	var out []FontDirective
	for _, init := range root.Find("docinit") {
		for _, n := range init.Elements() {
			switch n.Tag {
			case "registerCidFont":
				face, err := requireAttr(n, "faceName")
				if err != nil {
					return nil, err
				}
				out = append(out, FontDirective{Kind: "UnicodeCIDFont", Params: map[string]any{"faceName": face}, Line: n.Line})
			case "registerTTFont":
				face, err := requireAttr(n, "faceName")
				if err != nil {
					return nil, err
				}
				file, err := requireAttr(n, "fileName")
				if err != nil {
					return nil, err
				}
				params := map[string]any{"faceName": face, "fileName": file}
				if raw, ok := n.Attr("subfontIndex"); ok {
					idx, err := ParseInt(raw)
					if err != nil {
						return nil, elementError(n, err)
					}
					params["subfontIndex"] = idx
				}
				out = append(out, FontDirective{Kind: "TTFont", Params: params, Line: n.Line})
			}
		}
	}
	return out, nil
}

// Compile turns a parsed RML document into the layout model: the style
// catalogue, then either template + story or one page of drawing commands.
func Compile(doc *dsl.Document, opts BuildOptions) (*Document, error) {
	if doc == nil || doc.Root == nil {
		return nil, fmt.Errorf("%w: 文档为空", ErrStructure)
	}
	root := doc.Root
	fonts, err := FontDirectives(root)
	if err != nil {
		return nil, err
	}

	cat := NewCatalogue(opts.logger())
	if err := cat.Register(root.Find("stylesheet")...); err != nil {
		return nil, err
	}

	out := &Document{
		Filename:  root.AttrOr("filename", ""),
		Fonts:     fonts,
		Catalogue: cat,
	}

	// 各顶层区块在任意深度查找，取文档顺序中的第一个。
	if tmpl := first(root, "template"); tmpl != nil {
		story := first(root, "story")
		if story == nil {
			return nil, fmt.Errorf("%w: 存在 template 但缺少 story", ErrStructure)
		}
		t, err := ComposeTemplate(tmpl, cat, opts)
		if err != nil {
			return nil, err
		}
		flow, err := BuildStory(story, cat, opts)
		if err != nil {
			return nil, err
		}
		out.Mode = ModeFlow
		out.Template = t
		out.Story = flow
		return out, nil
	}

	drawings := root.Find("pageDrawing")
	switch len(drawings) {
	case 0:
		return nil, ErrNothingToRender
	case 1:
	default:
		return nil, fmt.Errorf("%w: 只允许一个 pageDrawing，实际 %d 个", ErrStructure, len(drawings))
	}
	cmds, err := CompileDrawing(drawings[0], cat, opts)
	if err != nil {
		return nil, err
	}
	out.Mode = ModeDrawing
	out.Drawing = cmds
	return out, nil
}

func first(root *dsl.Node, tag string) *dsl.Node {
	if found := root.Find(tag); len(found) > 0 {
		return found[0]
	}
	return nil
}
