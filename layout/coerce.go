package layout

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ByLCY/rmlpdf/dsl"
)

// Color is an RGB color; None marks a transparent color.
type Color struct {
	R    int  `json:"r"`
	G    int  `json:"g"`
	B    int  `json:"b"`
	None bool `json:"none,omitempty"`
}

var (
	Black       = Color{}
	White       = Color{R: 255, G: 255, B: 255}
	Transparent = Color{None: true}
)

var namedColors = map[string]Color{
	"black":       {0, 0, 0, false},
	"white":       {255, 255, 255, false},
	"red":         {255, 0, 0, false},
	"green":       {0, 128, 0, false},
	"blue":        {0, 0, 255, false},
	"yellow":      {255, 255, 0, false},
	"grey":        {128, 128, 128, false},
	"gray":        {128, 128, 128, false},
	"lightgrey":   {211, 211, 211, false},
	"lightgray":   {211, 211, 211, false},
	"darkgrey":    {169, 169, 169, false},
	"darkgray":    {169, 169, 169, false},
	"navy":        {0, 0, 128, false},
	"orange":      {255, 165, 0, false},
	"darkorange":  {255, 140, 0, false},
	"pink":        {255, 192, 203, false},
	"purple":      {128, 0, 128, false},
	"brown":       {165, 42, 42, false},
	"cyan":        {0, 255, 255, false},
	"aqua":        {0, 255, 255, false},
	"magenta":     {255, 0, 255, false},
	"fuchsia":     {255, 0, 255, false},
	"maroon":      {128, 0, 0, false},
	"olive":       {128, 128, 0, false},
	"teal":        {0, 128, 128, false},
	"silver":      {192, 192, 192, false},
	"lime":        {0, 255, 0, false},
	"darkblue":    {0, 0, 139, false},
	"darkred":     {139, 0, 0, false},
	"darkgreen":   {0, 100, 0, false},
	"lightblue":   {173, 216, 230, false},
	"lightgreen":  {144, 238, 144, false},
	"lightyellow": {255, 255, 224, false},
	"gold":        {255, 215, 0, false},
	"beige":       {245, 245, 220, false},
	"whitesmoke":  {245, 245, 245, false},
	"indigo":      {75, 0, 130, false},
	"violet":      {238, 130, 238, false},
	"transparent": {0, 0, 0, true},
}

// ParseColor accepts color names, #RGB, #RRGGBB, 0xRRGGBB and "(r,g,b)"
// tuples with components in 0..1 (or 0..255 when any component exceeds 1).
func ParseColor(value string) (Color, error) {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "" {
		return Color{}, fmt.Errorf("%w: 空颜色值", ErrMalformedValue)
	}
	if c, ok := namedColors[v]; ok {
		return c, nil
	}
	switch {
	case strings.HasPrefix(v, "#"):
		return parseHexColor(v[1:], value)
	case strings.HasPrefix(v, "0x"):
		return parseHexColor(v[2:], value)
	}
	items, err := dsl.ParseValues(v)
	if err != nil || len(items) != 3 {
		return Color{}, fmt.Errorf("%w: 颜色值 %q 无法解析", ErrMalformedValue, value)
	}
	comps := make([]float64, 3)
	scale := 255.0
	for i, it := range items {
		if !it.Numeric || it.Unit != "" {
			return Color{}, fmt.Errorf("%w: 颜色值 %q 无法解析", ErrMalformedValue, value)
		}
		comps[i] = it.Number
		if it.Number > 1 {
			scale = 1
		}
	}
	clamp := func(f float64) int {
		return int(math.Round(math.Max(0, math.Min(255, f*scale))))
	}
	return Color{R: clamp(comps[0]), G: clamp(comps[1]), B: clamp(comps[2])}, nil
}

func parseHexColor(hex, raw string) (Color, error) {
	switch len(hex) {
	case 3:
		hex = strings.Repeat(hex[0:1], 2) + strings.Repeat(hex[1:2], 2) + strings.Repeat(hex[2:3], 2)
	case 6, 8:
	default:
		return Color{}, fmt.Errorf("%w: 颜色值 %q 无法解析", ErrMalformedValue, raw)
	}
	n, err := strconv.ParseUint(hex[:6], 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("%w: 颜色值 %q 无法解析", ErrMalformedValue, raw)
	}
	return Color{R: int(n >> 16 & 0xff), G: int(n >> 8 & 0xff), B: int(n & 0xff)}, nil
}

// ParseBool accepts exactly true/false, 1/0 and yes/no, case-insensitive.
func ParseBool(value string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "1", "yes":
		return true, nil
	case "false", "0", "no":
		return false, nil
	}
	return false, fmt.Errorf("%w: 布尔值 %q", ErrMalformedValue, value)
}

// ParseInt parses a single integer, surrounding whitespace ignored.
func ParseInt(value string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("%w: 整数 %q", ErrMalformedValue, value)
	}
	return n, nil
}

// ParseIntTuple parses "0,-1" or "(0, -1)" into integers.
func ParseIntTuple(value string) ([]int, error) {
	items, err := dsl.ParseValues(value)
	if err != nil {
		return nil, fmt.Errorf("%w: 整数元组 %q: %v", ErrMalformedValue, value, err)
	}
	out := make([]int, 0, len(items))
	for _, it := range items {
		if !it.Numeric || it.Unit != "" || it.Number != math.Trunc(it.Number) {
			return nil, fmt.Errorf("%w: 整数元组 %q", ErrMalformedValue, value)
		}
		out = append(out, int(it.Number))
	}
	return out, nil
}

// AttrKind is a type hint for GetAttrs.
type AttrKind int

const (
	KindLength AttrKind = iota
	KindString
	KindBool
	KindInt
	KindColor
)

// Attrs holds coerced attribute values; absent attributes have no key.
type Attrs map[string]any

// GetAttrs coerces the listed attributes of n. Attributes without a hint are
// lengths. Missing attributes are simply absent from the result.
func GetAttrs(n *dsl.Node, names []string, hints map[string]AttrKind) (Attrs, error) {
	out := Attrs{}
	for _, name := range names {
		raw, ok := n.Attr(name)
		if !ok {
			continue
		}
		kind := KindLength
		if k, ok := hints[name]; ok {
			kind = k
		}
		var (
			v   any
			err error
		)
		switch kind {
		case KindString:
			v = raw
		case KindBool:
			v, err = ParseBool(raw)
		case KindInt:
			v, err = ParseInt(raw)
		case KindColor:
			v, err = ParseColor(raw)
		default:
			v, err = ParseLength(raw)
		}
		if err != nil {
			return nil, elementError(n, fmt.Errorf("属性 %s: %w", name, err))
		}
		out[name] = v
	}
	return out, nil
}

func (a Attrs) Has(name string) bool {
	_, ok := a[name]
	return ok
}

func (a Attrs) Length(name string, dflt float64) float64 {
	if v, ok := a[name].(float64); ok {
		return v
	}
	return dflt
}

func (a Attrs) String(name, dflt string) string {
	if v, ok := a[name].(string); ok {
		return v
	}
	return dflt
}

func (a Attrs) Bool(name string, dflt bool) bool {
	if v, ok := a[name].(bool); ok {
		return v
	}
	return dflt
}

func (a Attrs) Int(name string, dflt int) int {
	if v, ok := a[name].(int); ok {
		return v
	}
	return dflt
}

func (a Attrs) Color(name string, dflt Color) Color {
	if v, ok := a[name].(Color); ok {
		return v
	}
	return dflt
}
