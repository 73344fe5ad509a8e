package layout

import (
	"fmt"
	"strings"

	"github.com/ByLCY/rmlpdf/dsl"
)

// This file defines unit-safe types and helpers for lengths. The compiled
// model is expressed in points, the unit RML coordinates use.

// Unit represents the original unit of a length value as written in RML.
type Unit int

const (
	UnitNone Unit = iota // no suffix, read as points
	UnitMM               // millimeters
	UnitCM               // centimeters
	UnitIN               // inches
	UnitPT               // points
)

// Conversion constants between pt and mm.
const (
	PtToMm = 25.4 / 72
	MmToPt = 72 / 25.4
)

// UnitToString returns a short string for a Unit value.
func UnitToString(u Unit) string {
	switch u {
	case UnitMM:
		return "mm"
	case UnitCM:
		return "cm"
	case UnitIN:
		return "in"
	case UnitPT:
		return "pt"
	default:
		return ""
	}
}

// Length preserves a numeric value with its unit.
type Length struct {
	Value float64 `json:"value"`
	Unit  Unit    `json:"unit"`
}

// ToPT converts the length to points. Unit-less values already are points.
func (l Length) ToPT() float64 {
	switch l.Unit {
	case UnitMM:
		return l.Value * MmToPt
	case UnitCM:
		return l.Value * 10 * MmToPt
	case UnitIN:
		return l.Value * 72
	default:
		return l.Value
	}
}

// ToMM converts the length to millimeters.
func (l Length) ToMM() float64 { return l.ToPT() * PtToMm }

var unitSuffixes = map[string]Unit{
	"":     UnitNone,
	"pt":   UnitPT,
	"mm":   UnitMM,
	"cm":   UnitCM,
	"in":   UnitIN,
	"inch": UnitIN,
}

// ParseRawLength parses a single RML length such as "2cm", " 12 ", "1.5 in".
func ParseRawLength(value string) (Length, error) {
	items, err := dsl.ParseValues(value)
	if err != nil {
		return Length{}, fmt.Errorf("%w: 长度 %q: %v", ErrMalformedValue, value, err)
	}
	if len(items) != 1 || !items[0].Numeric {
		return Length{}, fmt.Errorf("%w: 长度 %q", ErrMalformedValue, value)
	}
	return lengthFromValue(items[0], value)
}

func lengthFromValue(v dsl.Value, raw string) (Length, error) {
	if !v.Numeric {
		return Length{}, fmt.Errorf("%w: 长度 %q", ErrMalformedValue, raw)
	}
	u, ok := unitSuffixes[strings.ToLower(v.Unit)]
	if !ok {
		return Length{}, fmt.Errorf("%w: 未知单位 %q（%q）", ErrMalformedValue, v.Unit, raw)
	}
	return Length{Value: v.Number, Unit: u}, nil
}

// ParseLength parses a length and returns it in points.
func ParseLength(value string) (float64, error) {
	l, err := ParseRawLength(value)
	if err != nil {
		return 0, err
	}
	return l.ToPT(), nil
}

// ParseLengthList parses comma separated lengths ("3cm,4cm", "(1in, 2in)")
// into points.
func ParseLengthList(value string) ([]float64, error) {
	items, err := dsl.ParseValues(value)
	if err != nil {
		return nil, fmt.Errorf("%w: 长度列表 %q: %v", ErrMalformedValue, value, err)
	}
	out := make([]float64, 0, len(items))
	for _, it := range items {
		l, err := lengthFromValue(it, value)
		if err != nil {
			return nil, err
		}
		out = append(out, l.ToPT())
	}
	return out, nil
}
