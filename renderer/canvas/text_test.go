package canvasrenderer

import (
	"math"
	"strings"
	"testing"

	"github.com/ByLCY/rmlpdf/layout"
)

func lineText(ln textLine) string {
	var sb strings.Builder
	for _, f := range ln.frags {
		sb.WriteString(f.text)
	}
	return sb.String()
}

func bodyStyle() layout.ParagraphStyle {
	s := layout.DefaultParagraphStyle()
	s.FontSize = 12
	s.Leading = 14.4
	return s
}

func TestParagraphGreedyWrapsText(t *testing.T) {
	r := New(Options{})
	b, err := r.paragraph(bodyStyle(), []layout.Run{{Text: "hello world again"}}, 40, 1, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(b.lines) < 2 {
		t.Fatalf("expected wrapping into multiple lines, got %d", len(b.lines))
	}
}

func TestParagraphCollapsesWhitespace(t *testing.T) {
	r := New(Options{})
	runs := []layout.Run{{Text: "  hello \n\t "}, {Text: " world  ", Bold: true}}
	b, err := r.paragraph(bodyStyle(), runs, 1000, 1, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(b.lines) != 1 || lineText(b.lines[0]) != "hello world" {
		t.Fatalf("whitespace should collapse to single spaces, got %d lines %q", len(b.lines), lineText(b.lines[0]))
	}
}

// 当第一行宽度与容器宽度恰好相等且后面紧跟一个显式换行时，不应产生额外的空行。
func TestNoBlankLineWhenEqualWidthThenBreak(t *testing.T) {
	r := New(Options{})
	first := "SAMPLE-A"
	measured, err := r.paragraph(bodyStyle(), []layout.Run{{Text: first}}, 1e6, 1, true)
	if err != nil {
		t.Fatalf("measure error: %v", err)
	}
	limit := measured.lines[0].width
	if limit <= 0 {
		t.Fatalf("invalid measured width: %g", limit)
	}

	runs := []layout.Run{{Text: first}, {LineBreak: true}, {Text: "SAMPLE-B"}}
	b, err := r.paragraph(bodyStyle(), runs, limit, 1, true)
	if err != nil {
		t.Fatalf("paragraph error: %v", err)
	}
	if got := len(b.lines); got != 2 {
		t.Fatalf("expected 2 lines without blank, got %d", got)
	}
	if lineText(b.lines[0]) != first || lineText(b.lines[1]) != "SAMPLE-B" {
		t.Fatalf("line mismatch: %q / %q", lineText(b.lines[0]), lineText(b.lines[1]))
	}
	if !b.lines[0].last {
		t.Fatalf("a forced break ends a justified line")
	}
}

// TestWrapWidthLimit 验证每行宽度不超过限制（pt）。
func TestWrapWidthLimit(t *testing.T) {
	r := New(Options{})
	limit := 85.0
	content := "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa bb cc"
	b, err := r.paragraph(bodyStyle(), []layout.Run{{Text: content}}, limit, 1, true)
	if err != nil {
		t.Fatalf("paragraph error: %v", err)
	}
	if len(b.lines) < 2 {
		t.Fatalf("expected the long word to be split")
	}
	for i, ln := range b.lines {
		if ln.width-limit > 1e-6 {
			t.Fatalf("line %d width exceeds limit: width=%g limit=%g", i, ln.width, limit)
		}
	}
}

func TestFirstLineIndentNarrowsFirstLine(t *testing.T) {
	r := New(Options{})
	s := bodyStyle()
	s.FirstLineIndent = 30
	b, err := r.paragraph(s, []layout.Run{{Text: strings.Repeat("word ", 40)}}, 200, 1, true)
	if err != nil {
		t.Fatalf("paragraph error: %v", err)
	}
	if b.lines[0].indent != 30 || b.lines[1].indent != 0 {
		t.Fatalf("indent should only apply to the first line")
	}
	if b.lines[0].width > 170+1e-6 {
		t.Fatalf("first line exceeds indented width: %g", b.lines[0].width)
	}
}

func TestPreformattedKeepsLines(t *testing.T) {
	r := New(Options{})
	blk, err := r.wrap(layout.Preformatted{Style: bodyStyle(), Lines: []string{"foo", "", "  bar"}}, 10, 1)
	if err != nil {
		t.Fatalf("wrap error: %v", err)
	}
	b := blk.(*paraBlock)
	if len(b.lines) != 3 {
		t.Fatalf("expected 3 lines including blank, got %d", len(b.lines))
	}
	if lineText(b.lines[1]) != "" || lineText(b.lines[2]) != "  bar" {
		t.Fatalf("preformatted text altered: %q %q", lineText(b.lines[1]), lineText(b.lines[2]))
	}
	if math.Abs(b.height()-3*14.4) > 1e-9 {
		t.Fatalf("height should be lines × leading, got %g", b.height())
	}
}

func TestParagraphSplitKeepsSpacing(t *testing.T) {
	r := New(Options{})
	s := bodyStyle()
	s.SpaceBefore, s.SpaceAfter = 5, 7
	b, err := r.paragraph(s, []layout.Run{{Text: strings.Repeat("lorem ipsum ", 60)}}, 150, 1, true)
	if err != nil {
		t.Fatalf("paragraph error: %v", err)
	}
	if len(b.lines) < 4 {
		t.Fatalf("need several lines, got %d", len(b.lines))
	}
	head, tail := b.split(2*14.4 + 1)
	if head == nil || tail == nil {
		t.Fatalf("expected a split")
	}
	hb, ha := head.spacing()
	tb, ta := tail.spacing()
	if hb != 5 || ha != 0 || tb != 0 || ta != 7 {
		t.Fatalf("spacing mismatch: head %g/%g tail %g/%g", hb, ha, tb, ta)
	}
	if len(head.(*paraBlock).lines) != 2 || len(head.(*paraBlock).lines)+len(tail.(*paraBlock).lines) != len(b.lines) {
		t.Fatalf("split lost lines")
	}
	if h, _ := b.split(10); h != nil {
		t.Fatalf("less than one line should not split")
	}
}

func TestPageNumberFragment(t *testing.T) {
	r := New(Options{})
	b, err := r.paragraph(bodyStyle(), []layout.Run{{Text: "Page "}, {PageNumber: true}}, 500, 7, true)
	if err != nil {
		t.Fatalf("paragraph error: %v", err)
	}
	if got := lineText(b.lines[0]); got != "Page 7" {
		t.Fatalf("expected page number substitution, got %q", got)
	}
}

func TestUnknownFontWarns(t *testing.T) {
	logger, logs := observedLogger()
	r := New(Options{Logger: logger})
	s := bodyStyle()
	s.FontName = "NoSuchFont"
	if _, err := r.paragraph(s, []layout.Run{{Text: "x"}}, 100, 1, true); err != nil {
		t.Fatalf("unknown fonts fall back, got %v", err)
	}
	if _, err := r.paragraph(s, []layout.Run{{Text: "y"}}, 100, 1, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if logs.FilterMessageSnippet("unknown font").Len() != 1 {
		t.Fatalf("expected one warning per unknown font, got %d", logs.Len())
	}
}
