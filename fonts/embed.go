package fonts

import (
	"sort"
	"strings"

	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/gomonobold"
	"golang.org/x/image/font/gofont/gomonobolditalic"
	"golang.org/x/image/font/gofont/gomonoitalic"
	"golang.org/x/image/font/gofont/goregular"
)

// Font 是一份已加载的字体程序。Name 为 RML 中引用的字体名，File 为来源路径（内置字体为空）。
type Font struct {
	Name  string
	File  string
	Index int
	Data  []byte
}

// DefaultFace 是未知字体名时使用的回退字体。
const DefaultFace = "Helvetica"

// 标准 14 种 PDF 字体用 Go 字体族代替：无衬线与衬线均映射到 Go Sans，等宽映射到 Go Mono。
var builtinPrograms = map[string][]byte{
	"Helvetica":             goregular.TTF,
	"Helvetica-Bold":        gobold.TTF,
	"Helvetica-Oblique":     goitalic.TTF,
	"Helvetica-BoldOblique": gobolditalic.TTF,
	"Times-Roman":           goregular.TTF,
	"Times-Bold":            gobold.TTF,
	"Times-Italic":          goitalic.TTF,
	"Times-BoldItalic":      gobolditalic.TTF,
	"Courier":               gomono.TTF,
	"Courier-Bold":          gomonobold.TTF,
	"Courier-Oblique":       gomonoitalic.TTF,
	"Courier-BoldOblique":   gomonobolditalic.TTF,
	"Symbol":                goregular.TTF,
	"ZapfDingbats":          goregular.TTF,
}

// regular, bold, italic, bold italic
var builtinVariants = [][4]string{
	{"Helvetica", "Helvetica-Bold", "Helvetica-Oblique", "Helvetica-BoldOblique"},
	{"Times-Roman", "Times-Bold", "Times-Italic", "Times-BoldItalic"},
	{"Courier", "Courier-Bold", "Courier-Oblique", "Courier-BoldOblique"},
}

// Builtin 返回内置字体。名字大小写不敏感，"Times" 视为 "Times-Roman"。
func Builtin(name string) (*Font, bool) {
	canonical, ok := builtinName(name)
	if !ok {
		return nil, false
	}
	return &Font{Name: canonical, Data: builtinPrograms[canonical]}, true
}

// BuiltinNames 列出全部内置字体名（已排序）。
func BuiltinNames() []string {
	names := make([]string, 0, len(builtinPrograms))
	for name := range builtinPrograms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Variant 返回内置字体族中带粗体/斜体的对应字体名；非内置字体原样返回且 ok 为 false。
func Variant(name string, bold, italic bool) (string, bool) {
	canonical, ok := builtinName(name)
	if !ok {
		return name, false
	}
	for _, family := range builtinVariants {
		for i, member := range family {
			if member != canonical {
				continue
			}
			isBold := bold || i == 1 || i == 3
			isItalic := italic || i == 2 || i == 3
			switch {
			case isBold && isItalic:
				return family[3], true
			case isBold:
				return family[1], true
			case isItalic:
				return family[2], true
			default:
				return family[0], true
			}
		}
	}
	return canonical, true
}

func builtinName(name string) (string, bool) {
	if strings.EqualFold(name, "Times") {
		return "Times-Roman", true
	}
	for candidate := range builtinPrograms {
		if strings.EqualFold(candidate, name) {
			return candidate, true
		}
	}
	return "", false
}
