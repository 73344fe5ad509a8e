package layout

import (
	"errors"
	"math"
	"testing"

	"github.com/ByLCY/rmlpdf/dsl"
)

func TestParseBoolVocabulary(t *testing.T) {
	truthy := []string{"true", "TRUE", " 1 ", "yes", "Yes"}
	falsy := []string{"false", "False", "0", "no"}
	for _, s := range truthy {
		if v, err := ParseBool(s); err != nil || !v {
			t.Fatalf("%q: 期望 true，实际 %v (%v)", s, v, err)
		}
	}
	for _, s := range falsy {
		if v, err := ParseBool(s); err != nil || v {
			t.Fatalf("%q: 期望 false，实际 %v (%v)", s, v, err)
		}
	}
	for _, s := range []string{"", "on", "2", "t"} {
		if _, err := ParseBool(s); !errors.Is(err, ErrMalformedValue) {
			t.Fatalf("%q: 期望 ErrMalformedValue，实际 %v", s, err)
		}
	}
}

func TestParseColor(t *testing.T) {
	cases := []struct {
		in   string
		want Color
	}{
		{"red", Color{R: 255}},
		{"Navy", Color{B: 128}},
		{"#00ff00", Color{G: 255}},
		{"#fff", White},
		{"0x0000FF", Color{B: 255}},
		{"(1, 0.5, 0)", Color{R: 255, G: 128}},
		{"255,0,0", Color{R: 255}},
		{"transparent", Transparent},
	}
	for _, c := range cases {
		got, err := ParseColor(c.in)
		if err != nil {
			t.Fatalf("%q: %v", c.in, err)
		}
		if got != c.want {
			t.Fatalf("%q: 期望 %+v，实际 %+v", c.in, c.want, got)
		}
	}
	for _, s := range []string{"notacolor", "#12", "(1,2)"} {
		if _, err := ParseColor(s); !errors.Is(err, ErrMalformedValue) {
			t.Fatalf("%q: 期望 ErrMalformedValue，实际 %v", s, err)
		}
	}
}

func TestParseIntTuple(t *testing.T) {
	for _, s := range []string{"0,-1", "(0, -1)", " 0 -1 "} {
		got, err := ParseIntTuple(s)
		if err != nil {
			t.Fatalf("%q: %v", s, err)
		}
		if len(got) != 2 || got[0] != 0 || got[1] != -1 {
			t.Fatalf("%q: 期望 [0 -1]，实际 %v", s, got)
		}
	}
	if _, err := ParseIntTuple("1.5,2"); err == nil {
		t.Fatalf("非整数应报错")
	}
}

func TestGetAttrsLeavesMissingAbsent(t *testing.T) {
	doc, err := dsl.ParseString(`<rect x="1cm" fill="true" round="3" label="hi"/>`)
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	attrs, err := GetAttrs(doc.Root, []string{"x", "y", "fill", "round", "label"},
		map[string]AttrKind{"fill": KindBool, "label": KindString})
	if err != nil {
		t.Fatalf("GetAttrs 失败: %v", err)
	}
	if attrs.Has("y") {
		t.Fatalf("缺失属性不应出现在结果中")
	}
	if math.Abs(attrs.Length("x", 0)-72/2.54) > 1e-9 {
		t.Fatalf("x 期望 1cm，实际 %g", attrs.Length("x", 0))
	}
	if !attrs.Bool("fill", false) || attrs.Length("round", 0) != 3 || attrs.String("label", "") != "hi" {
		t.Fatalf("类型提示未生效: %+v", attrs)
	}
	if _, err := GetAttrs(doc.Root, []string{"fill"}, map[string]AttrKind{"fill": KindInt}); !errors.Is(err, ErrMalformedValue) {
		t.Fatalf("期望 ErrMalformedValue，实际 %v", err)
	}
}
