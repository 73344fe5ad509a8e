package dsl

import (
	"fmt"
	"strconv"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// 属性值列表语法：pageSize="(21cm, 29.7cm)"、colWidths="3cm,4cm"、
// dash="2 3"、start="0,-1" 等都走同一套词法。
var (
	valueLexer = lexer.MustSimple([]lexer.SimpleRule{
		{Name: "Whitespace", Pattern: `[ \t\r\n]+`},
		{Name: "Number", Pattern: `[-+]?(?:\d+\.\d*|\.\d+|\d+)(?:[eE][-+]?\d+)?`},
		{Name: "Ident", Pattern: `[A-Za-z_#][A-Za-z0-9_#.\-]*`},
		{Name: "Punct", Pattern: `[(),;]`},
	})

	valueParser = participle.MustBuild[valueList](
		participle.Lexer(valueLexer),
		participle.Elide("Whitespace"),
	)
)

type valueList struct {
	Items []*valueItem `parser:"'('? ( @@ ( ( ',' | ';' )? @@ )* )? ')'?"`
}

type valueItem struct {
	Pos      lexer.Position
	Quantity *quantity `parser:"  @@"`
	Word     *string   `parser:"| @Ident"`
}

type quantity struct {
	Number string `parser:"@Number"`
	Unit   string `parser:"@Ident?"`
}

// Value is one item of an attribute value list: either a number with an
// optional unit suffix, or a bare word (color name, page size name...).
type Value struct {
	Numeric bool
	Number  float64
	Unit    string
	Word    string
}

func (v Value) String() string {
	if v.Numeric {
		return strconv.FormatFloat(v.Number, 'f', -1, 64) + v.Unit
	}
	return v.Word
}

// ParseValues tokenizes an attribute value into its items. Surrounding
// parentheses are optional, separators may be commas, semicolons or blanks.
func ParseValues(s string) ([]Value, error) {
	list, err := valueParser.ParseString("", s)
	if err != nil {
		return nil, fmt.Errorf("无法解析属性值 %q: %w", s, err)
	}
	out := make([]Value, 0, len(list.Items))
	for _, item := range list.Items {
		if item.Quantity == nil {
			out = append(out, Value{Word: *item.Word})
			continue
		}
		f, err := strconv.ParseFloat(item.Quantity.Number, 64)
		if err != nil {
			return nil, fmt.Errorf("无法解析数值 %q: %w", item.Quantity.Number, err)
		}
		out = append(out, Value{Numeric: true, Number: f, Unit: item.Quantity.Unit})
	}
	return out, nil
}
