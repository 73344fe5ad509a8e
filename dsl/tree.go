package dsl

import (
	"fmt"
	"io"
	"strings"

	"github.com/speedata/goxml"
)

// NodeKind 区分元素节点与字符数据节点。
type NodeKind int

const (
	ElementNode NodeKind = iota
	TextNode
)

// Attr is a single attribute in document order.
type Attr struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Node is the parsed-tree abstraction the compiler walks. It is independent of
// the XML library: element nodes carry Tag/Attrs/Children, text nodes carry
// Text (character data and CDATA sections alike).
type Node struct {
	Kind     NodeKind `json:"kind"`
	Tag      string   `json:"tag,omitempty"`
	Attrs    []Attr   `json:"attrs,omitempty"`
	Children []*Node  `json:"children,omitempty"`
	Text     string   `json:"text,omitempty"`
	Line     int      `json:"line,omitempty"`
}

// Document wraps the root element of an RML file.
type Document struct {
	Root *Node
}

// Parse reads an RML document. Malformed XML is reported before any
// compilation takes place.
func Parse(r io.Reader) (*Document, error) {
	xd, err := goxml.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("解析 RML 失败: %w", err)
	}
	root, err := xd.Root()
	if err != nil {
		return nil, fmt.Errorf("解析 RML 失败: %w", err)
	}
	if root == nil {
		return nil, fmt.Errorf("解析 RML 失败: 缺少根元素")
	}
	return &Document{Root: convertElement(root)}, nil
}

// ParseString is a convenience wrapper around Parse.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

func convertElement(elt *goxml.Element) *Node {
	n := &Node{Kind: ElementNode, Tag: elt.Name, Line: elt.Line}
	for _, attr := range elt.Attributes() {
		n.Attrs = append(n.Attrs, Attr{Name: attr.Name, Value: attr.Value})
	}
	for _, cld := range elt.Children() {
		switch t := cld.(type) {
		case *goxml.Element:
			n.Children = append(n.Children, convertElement(t))
		case goxml.CharData:
			n.appendText(string(t.Contents), elt.Line)
		case *goxml.CharData:
			n.appendText(string(t.Contents), elt.Line)
		default:
			// 注释与处理指令不参与编译
		}
	}
	return n
}

// appendText merges adjacent character data so CDATA next to plain text ends
// up as one run.
func (n *Node) appendText(s string, line int) {
	if s == "" {
		return
	}
	if k := len(n.Children); k > 0 && n.Children[k-1].Kind == TextNode {
		n.Children[k-1].Text += s
		return
	}
	n.Children = append(n.Children, &Node{Kind: TextNode, Text: s, Line: line})
}

// Attr returns the attribute value and whether it was present.
func (n *Node) Attr(name string) (string, bool) {
	if n == nil {
		return "", false
	}
	for _, a := range n.Attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// AttrOr returns the attribute value or dflt when absent.
func (n *Node) AttrOr(name, dflt string) string {
	if v, ok := n.Attr(name); ok {
		return v
	}
	return dflt
}

// HasAttr reports whether the attribute is present.
func (n *Node) HasAttr(name string) bool {
	_, ok := n.Attr(name)
	return ok
}

// Elements returns the element children in document order.
func (n *Node) Elements() []*Node {
	if n == nil {
		return nil
	}
	out := make([]*Node, 0, len(n.Children))
	for _, c := range n.Children {
		if c.Kind == ElementNode {
			out = append(out, c)
		}
	}
	return out
}

// Child returns the first direct element child with the tag, or nil.
func (n *Node) Child(tag string) *Node {
	if n == nil {
		return nil
	}
	for _, c := range n.Children {
		if c.Kind == ElementNode && c.Tag == tag {
			return c
		}
	}
	return nil
}

// ChildrenByTag returns the direct element children with the tag.
func (n *Node) ChildrenByTag(tag string) []*Node {
	var out []*Node
	if n == nil {
		return out
	}
	for _, c := range n.Children {
		if c.Kind == ElementNode && c.Tag == tag {
			out = append(out, c)
		}
	}
	return out
}

// Find returns all descendant elements (the node itself excluded) with the
// tag, in document order.
func (n *Node) Find(tag string) []*Node {
	var out []*Node
	var walk func(*Node)
	walk = func(cur *Node) {
		for _, c := range cur.Children {
			if c.Kind != ElementNode {
				continue
			}
			if c.Tag == tag {
				out = append(out, c)
			}
			walk(c)
		}
	}
	if n != nil {
		walk(n)
	}
	return out
}

// DirectText concatenates the text children of n, skipping nested elements.
func (n *Node) DirectText() string {
	if n == nil {
		return ""
	}
	var b strings.Builder
	for _, c := range n.Children {
		if c.Kind == TextNode {
			b.WriteString(c.Text)
		}
	}
	return b.String()
}
