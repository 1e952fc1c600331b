package grammar

import (
	"fmt"
	"sort"

	"github.com/nihei9/genfuzz/ucd"
	"github.com/nihei9/genfuzz/utf8"
)

// CharRange is an inclusive range of Unicode code points.
type CharRange struct {
	From rune
	To   rune
}

// parseCharsetBody turns a charset's raw, still-escaped body text (e.g.
// `a-zA-Z0-9_` or `^\p{L}\-`) into a canonical, sorted, non-overlapping list
// of ranges. It understands single characters, `a-b` ranges, and the escape
// forms decodeOneEscape/scanUnicodeProperty recognize.
func parseCharsetBody(body string) ([]CharRange, error) {
	rs := []rune(body)
	var ranges []CharRange
	for i := 0; i < len(rs); {
		var lo rune
		var err error
		switch {
		case rs[i] == '\\' && i+1 < len(rs) && (rs[i+1] == 'p' || rs[i+1] == 'P'):
			esc, n, ok := scanUnicodeProperty(rs[i+1:])
			if !ok {
				return nil, fmt.Errorf("invalid unicode property escape at offset %v", i)
			}
			prs, err := resolveUnicodeProperty(esc)
			if err != nil {
				return nil, err
			}
			ranges = append(ranges, prs...)
			i += 1 + n
			continue
		case rs[i] == '\\':
			lo, n, derr := decodeOneEscape(rs[i+1:])
			if derr != nil {
				return nil, derr
			}
			err = derr
			i += 1 + n
			_ = err
			ranges = append(ranges, maybeRange(rs, &i, lo)...)
			continue
		default:
			lo = rs[i]
			i++
			ranges = append(ranges, maybeRange(rs, &i, lo)...)
			continue
		}
	}
	return canonicalizeRanges(ranges), nil
}

// maybeRange checks whether the rune just consumed (lo, already past its
// position in rs) is followed by `-x`, forming a range, and consumes the
// rest of that construct if so. i is positioned just after lo on entry.
func maybeRange(rs []rune, i *int, lo rune) []CharRange {
	if *i < len(rs) && rs[*i] == '-' && *i+1 < len(rs) {
		*i++ // consume '-'
		hi := rs[*i]
		consumed := 1
		if hi == '\\' && *i+1 < len(rs) {
			r, n, err := decodeOneEscape(rs[*i+1:])
			if err == nil {
				hi = r
				consumed = 1 + n
			}
		}
		*i += consumed
		return []CharRange{{From: lo, To: hi}}
	}
	return []CharRange{{From: lo, To: lo}}
}

func resolveUnicodeProperty(esc *unicodePropertyEscape) ([]CharRange, error) {
	cps, negated, err := ucd.FindCodePointRanges(esc.PropName, esc.PropVal)
	if err != nil {
		return nil, fmt.Errorf("unicode property escape: %w", err)
	}
	neg := esc.Negated != negated
	if !neg {
		out := make([]CharRange, len(cps))
		for i, cp := range cps {
			out[i] = CharRange{From: cp.From, To: cp.To}
		}
		return out, nil
	}
	return invertRanges(cps), nil
}

func invertRanges(cps []*ucd.CodePointRange) []CharRange {
	sort.Slice(cps, func(i, j int) bool { return cps[i].From < cps[j].From })
	var out []CharRange
	next := rune(0)
	for _, cp := range cps {
		if cp.From > next {
			out = append(out, CharRange{From: next, To: cp.From - 1})
		}
		if cp.To+1 > next {
			next = cp.To + 1
		}
	}
	if next <= 0x10FFFF {
		out = append(out, CharRange{From: next, To: 0x10FFFF})
	}
	return out
}

// canonicalizeRanges sorts ranges and merges overlapping/adjacent ones, the
// "range list sorted and collapsed" step of charset canonicalization.
func canonicalizeRanges(rs []CharRange) []CharRange {
	if len(rs) == 0 {
		return rs
	}
	sort.Slice(rs, func(i, j int) bool { return rs[i].From < rs[j].From })
	out := []CharRange{rs[0]}
	for _, r := range rs[1:] {
		last := &out[len(out)-1]
		if r.From <= last.To+1 {
			if r.To > last.To {
				last.To = r.To
			}
			continue
		}
		out = append(out, r)
	}
	return out
}

// negateRanges complements rs against the full Unicode code point space,
// excluding UTF-8-illegal surrogate code points, for a `[^...]` charset.
func negateRanges(rs []CharRange) []CharRange {
	sort.Slice(rs, func(i, j int) bool { return rs[i].From < rs[j].From })
	var out []CharRange
	next := rune(0)
	for _, r := range rs {
		if r.From > next {
			out = append(out, CharRange{From: next, To: r.From - 1})
		}
		if r.To+1 > next {
			next = r.To + 1
		}
	}
	if next <= 0x10FFFF {
		out = append(out, CharRange{From: next, To: 0x10FFFF})
	}
	return excludeSurrogates(out)
}

func excludeSurrogates(rs []CharRange) []CharRange {
	var out []CharRange
	for _, r := range rs {
		if r.To < 0xd800 || r.From > 0xdfff {
			out = append(out, r)
			continue
		}
		if r.From < 0xd800 {
			out = append(out, CharRange{From: r.From, To: 0xd7ff})
		}
		if r.To > 0xdfff {
			out = append(out, CharRange{From: 0xe000, To: r.To})
		}
	}
	return out
}

// validateRanges rejects ranges that straddle illegal surrogate code
// points, delegating the well-formedness check to utf8.GenCharBlocks (which
// additionally reports the continuous UTF-8 byte-sequence sub-blocks; the
// charset representation only needs the validation, not the sub-blocks).
func validateRanges(rs []CharRange) error {
	for _, r := range rs {
		if _, err := utf8.GenCharBlocks(r.From, r.To); err != nil {
			return fmt.Errorf("invalid charset range U+%X..U+%X: %w", r.From, r.To, err)
		}
	}
	return nil
}

func totalCodepoints(rs []CharRange) int64 {
	var n int64
	for _, r := range rs {
		n += int64(r.To-r.From) + 1
	}
	return n
}
