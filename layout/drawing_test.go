package layout

import (
	"errors"
	"math"
	"testing"
)

func TestCompileDrawingCommands(t *testing.T) {
	doc := compile(t, `<document>
<stylesheet><initialize><name id="co" value="ACME"/></initialize></stylesheet>
<pageDrawing>
  <setFont name="Helvetica" size="12"/>
  <fill color="red"/>
  <stroke color="#0000ff"/>
  <drawString x="1cm" y="2cm">Hello <getName id="co"/></drawString>
  <drawCentredString x="100" y="100">Page <pageNumber/> of <![CDATA[<n>]]></drawCentredString>
  <drawRightString x="200" y="100">r</drawRightString>
  <rect x="0" y="0" width="10" height="20" round="2" fill="1" stroke="false"/>
  <ellipse x="0" y="0" width="10" height="5"/>
  <circle x="5" y="5" radius="3" fill="yes"/>
  <lines>0 0 10 10  10 10 20 20 99</lines>
  <curves>0 0 1 1 2 2 3 3</curves>
  <grid xs="0,10,20" ys="0 5"/>
  <lineMode width="2" join="round" cap="square" dash="3,1"/>
  <path x="0" y="0" close="false">
    10 0 10 10
    <moveto>20 20</moveto>
    <curvesto>1 2 3 4 5 6 7 8 9 10 11 12</curvesto>
  </path>
  <translate dx="1cm"/>
  <rotate degrees="45"/>
  <place x="0" y="0" width="100" height="100"><para>in place</para></place>
  <mystery/>
</pageDrawing>
</document>`, BuildOptions{})
	if doc.Mode != ModeDrawing {
		t.Fatalf("期望 drawing 模式")
	}
	ops := []string{}
	for _, c := range doc.Drawing {
		ops = append(ops, c.Op())
	}
	want := []string{"setFont", "fill", "stroke", "drawString", "drawString", "drawString", "rect", "ellipse", "circle",
		"lines", "curves", "grid", "lineMode", "path", "translate", "rotate", "place"}
	if len(ops) != len(want) {
		t.Fatalf("期望 %v，实际 %v", want, ops)
	}
	for i := range want {
		if ops[i] != want[i] {
			t.Fatalf("第 %d 条期望 %s，实际 %s", i, want[i], ops[i])
		}
	}

	ds := doc.Drawing[3].(DrawString)
	if ds.Align != AlignLeft || len(ds.Text) != 1 || ds.Text[0].Text != "Hello ACME" {
		t.Fatalf("drawString 不符: %+v", ds)
	}
	centred := doc.Drawing[4].(DrawString)
	if centred.Align != AlignCenter || len(centred.Text) != 3 || !centred.Text[1].PageNumber || centred.Text[2].Text != " of <n>" {
		t.Fatalf("drawCentredString 不符: %+v", centred)
	}
	if doc.Drawing[5].(DrawString).Align != AlignRight {
		t.Fatalf("drawRightString 应右对齐")
	}
	rect := doc.Drawing[6].(Rect)
	if rect.Radius != 2 || !rect.Fill || rect.Stroke {
		t.Fatalf("rect 不符: %+v", rect)
	}
	if el := doc.Drawing[7].(Ellipse); el.Fill || !el.Stroke {
		t.Fatalf("ellipse 默认值不符: %+v", el)
	}
	if lines := doc.Drawing[9].(Lines); len(lines.Segments) != 2 {
		t.Fatalf("lines 应按 4 个一组，丢弃残余: %+v", lines)
	}
	if curves := doc.Drawing[10].(Curves); len(curves.Segments) != 1 {
		t.Fatalf("curves 应按 8 个一组: %+v", curves)
	}
	if g := doc.Drawing[11].(Grid); len(g.Xs) != 3 || len(g.Ys) != 2 {
		t.Fatalf("grid 不符: %+v", g)
	}
	lm := doc.Drawing[12].(LineMode)
	if lm.Width == nil || *lm.Width != 2 || *lm.Join != JoinRound || *lm.Cap != CapSquare || len(lm.Dash) != 2 || lm.MiterLimit != nil {
		t.Fatalf("lineMode 不符: %+v", lm)
	}
	p := doc.Drawing[13].(Path)
	if p.Close {
		t.Fatalf("close=false 应保持路径开放")
	}
	var opNames []string
	for _, op := range p.Ops {
		opNames = append(opNames, op.Op)
	}
	if len(opNames) != 5 || opNames[0] != "lineTo" || opNames[1] != "lineTo" || opNames[2] != "moveTo" || opNames[3] != "curveTo" || opNames[4] != "curveTo" {
		t.Fatalf("path 操作不符: %v", opNames)
	}
	if tr := doc.Drawing[14].(Translate); math.Abs(tr.DX-72/2.54) > 1e-9 || tr.DY != 0 {
		t.Fatalf("translate 不符: %+v", tr)
	}
	pl := doc.Drawing[16].(Place)
	if len(pl.Story) != 1 || pl.Width != 100 {
		t.Fatalf("place 不符: %+v", pl)
	}
}

func TestDrawingErrors(t *testing.T) {
	cases := []struct {
		body string
		want error
	}{
		{`<rect x="0" y="0" width="1"/>`, ErrMissingAttribute},
		{`<rect x="0" y="0" width="1" height="oops"/>`, ErrMalformedValue},
		{`<lineMode join="wobbly"/>`, ErrMalformedValue},
		{`<circle x="1" y="1" radius="2" fill="maybe"/>`, ErrMalformedValue},
	}
	for _, c := range cases {
		_, err := Compile(mustParse(t, `<document><pageDrawing>`+c.body+`</pageDrawing></document>`), BuildOptions{})
		if !errors.Is(err, c.want) {
			t.Fatalf("%s: 期望 %v，实际 %v", c.body, c.want, err)
		}
	}
	_, err := Compile(mustParse(t, `<document><pageDrawing/><pageDrawing/></document>`), BuildOptions{})
	if !errors.Is(err, ErrStructure) {
		t.Fatalf("多个 pageDrawing 期望 ErrStructure，实际 %v", err)
	}
}

func TestParsePageSize(t *testing.T) {
	w, h, err := ParsePageSize("(21cm, 29.7cm)")
	if err != nil || math.Abs(w-DefaultPageWidth) > 1e-9 || math.Abs(h-DefaultPageHeight) > 1e-9 {
		t.Fatalf("pageSize 元组不符: %g %g %v", w, h, err)
	}
	w, h, err = ParsePageSize("letter landscape")
	if err != nil || w != 792 || h != 612 {
		t.Fatalf("命名尺寸不符: %g %g %v", w, h, err)
	}
	if _, _, err := ParsePageSize("(1cm)"); !errors.Is(err, ErrMalformedValue) {
		t.Fatalf("期望 ErrMalformedValue，实际 %v", err)
	}
}
