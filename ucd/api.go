// Package ucd resolves Unicode property escapes (`\p{Name}`, `\P{Name}`,
// `\p{Name=Value}`) used inside charsets to concrete code point ranges. The
// generated data tables a property-name-abbreviation-aware resolver would
// normally ship (see DESIGN.md) aren't available here, so this package
// leans on the unicode.RangeTable data the standard library already
// carries -- unicode.Categories, unicode.Scripts, and unicode.Properties --
// normalizing names and values the same loose way Unicode's UAX #44 allows
// (case-insensitive, ignoring '_', '-' and whitespace).
package ucd

import (
	"fmt"
	"strings"
	"unicode"
)

const (
	codePointMin = 0x0
	codePointMax = 0x10FFFF
)

// CodePointRange is an inclusive range of Unicode code points.
type CodePointRange struct {
	From rune
	To   rune
}

// normalizeSymbolicValue implements the loose matching rule of UAX #44 UAX44-LM3:
// case folds and discards whitespace, underscores, and hyphens.
func normalizeSymbolicValue(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '_', '-', ' ', '\t':
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

var binaryValues = map[string]bool{
	"":      true,
	"y":     true,
	"yes":   true,
	"t":     true,
	"true":  true,
	"n":     false,
	"no":    false,
	"f":     false,
	"false": false,
}

func lookupTable(tables map[string]*unicode.RangeTable, name string) (*unicode.RangeTable, bool) {
	norm := normalizeSymbolicValue(name)
	for k, t := range tables {
		if normalizeSymbolicValue(k) == norm {
			return t, true
		}
	}
	return nil, false
}

// FindCodePointRanges resolves a property name/value pair (as found inside a
// `\p{...}` escape) to the set of code point ranges it matches. When the
// property is binary (e.g. `\p{White_Space}`) propVal may be empty, `Y`, or
// `N`; negated reports whether the result has already been inverted by the
// lookup itself (mirroring the General_Category "any other" case), letting
// the caller apply CharsetNeg independently of that.
func FindCodePointRanges(propName, propVal string) ([]*CodePointRange, bool, error) {
	if propName == "" {
		propName = "gc"
	}

	key, val, hasVal := propName, propVal, propVal != ""
	if idx := strings.IndexByte(propName, '='); idx >= 0 {
		key, val = propName[:idx], propName[idx+1:]
		hasVal = true
	}

	switch normalizeSymbolicValue(key) {
	case "gc", "generalcategory":
		if !hasVal {
			return nil, false, fmt.Errorf("General_Category requires a value")
		}
		t, ok := lookupTable(unicode.Categories, val)
		if !ok {
			return nil, false, fmt.Errorf("unsupported General_Category value: %v", val)
		}
		return rangesFromTable(t), false, nil
	case "sc", "script":
		if !hasVal {
			return nil, false, fmt.Errorf("Script requires a value")
		}
		t, ok := lookupTable(unicode.Scripts, val)
		if !ok {
			return nil, false, fmt.Errorf("unsupported Script value: %v", val)
		}
		return rangesFromTable(t), false, nil
	default:
		// Binary and derived properties addressed by name alone, e.g.
		// \p{L}, \p{Alpha}, \p{White_Space}, \p{Upper}, \p{Lower}.
		if t, ok := lookupTable(unicode.Categories, key); ok {
			return applyBinary(t, val)
		}
		if t, ok := lookupTable(unicode.Scripts, key); ok {
			return applyBinary(t, val)
		}
		if t, ok := lookupTable(unicode.Properties, key); ok {
			return applyBinary(t, val)
		}
		return nil, false, fmt.Errorf("unsupported character property name: %v", propName)
	}
}

func applyBinary(t *unicode.RangeTable, propVal string) ([]*CodePointRange, bool, error) {
	yes, ok := binaryValues[normalizeSymbolicValue(propVal)]
	if !ok {
		return nil, false, fmt.Errorf("unsupported character property value: %v", propVal)
	}
	return rangesFromTable(t), !yes, nil
}

func rangesFromTable(t *unicode.RangeTable) []*CodePointRange {
	var out []*CodePointRange
	for _, r := range t.R16 {
		for lo := rune(r.Lo); lo <= rune(r.Hi); lo += rune(r.Stride) {
			out = append(out, &CodePointRange{From: lo, To: lo})
			if r.Stride == 1 {
				out[len(out)-1].To = rune(r.Hi)
				break
			}
		}
	}
	for _, r := range t.R32 {
		for lo := rune(r.Lo); lo <= rune(r.Hi); lo += rune(r.Stride) {
			out = append(out, &CodePointRange{From: lo, To: lo})
			if r.Stride == 1 {
				out[len(out)-1].To = rune(r.Hi)
				break
			}
		}
	}
	return mergeAdjacent(out)
}

func mergeAdjacent(rs []*CodePointRange) []*CodePointRange {
	if len(rs) == 0 {
		return rs
	}
	merged := []*CodePointRange{rs[0]}
	for _, r := range rs[1:] {
		last := merged[len(merged)-1]
		if r.From <= last.To+1 {
			if r.To > last.To {
				last.To = r.To
			}
			continue
		}
		merged = append(merged, r)
	}
	return merged
}
