// Package size provides the depth/token budget used to bound generation.
package size

import "fmt"

// Budget is a depth/token pair with a pointwise partial order and pointwise
// arithmetic. Depth counts rule openings on the current path; Tokens counts
// emitted terminal tokens.
type Budget struct {
	Depth  int
	Tokens int
}

// Max is the sentinel representing an unbounded budget.
var Max = Budget{Depth: 1<<31 - 1, Tokens: 1<<31 - 1}

// Zero is the empty budget.
var Zero = Budget{}

func New(depth, tokens int) Budget {
	return Budget{Depth: depth, Tokens: tokens}
}

// LessEq reports whether b is pointwise less than or equal to other.
func (b Budget) LessEq(other Budget) bool {
	return b.Depth <= other.Depth && b.Tokens <= other.Tokens
}

// Less reports whether b is strictly less in both components.
func (b Budget) Less(other Budget) bool {
	return b.Depth < other.Depth && b.Tokens < other.Tokens
}

func (b Budget) Add(other Budget) Budget {
	return Budget{Depth: b.Depth + other.Depth, Tokens: b.Tokens + other.Tokens}
}

func (b Budget) Sub(other Budget) Budget {
	return Budget{Depth: b.Depth - other.Depth, Tokens: b.Tokens - other.Tokens}
}

func (b Budget) AddDepth(d int) Budget {
	return Budget{Depth: b.Depth + d, Tokens: b.Tokens}
}

func (b Budget) AddTokens(t int) Budget {
	return Budget{Depth: b.Depth, Tokens: b.Tokens + t}
}

// IsMax reports whether b is the unbounded sentinel.
func (b Budget) IsMax() bool {
	return b == Max
}

// Min returns the pointwise minimum, used to combine the minimum sizes of an
// alternation's alternatives.
func Min(a, b Budget) Budget {
	r := a
	if b.Depth < r.Depth {
		r.Depth = b.Depth
	}
	if b.Tokens < r.Tokens {
		r.Tokens = b.Tokens
	}
	return r
}

// Max2 returns the pointwise maximum of two budgets.
func Max2(a, b Budget) Budget {
	r := a
	if b.Depth > r.Depth {
		r.Depth = b.Depth
	}
	if b.Tokens > r.Tokens {
		r.Tokens = b.Tokens
	}
	return r
}

func (b Budget) String() string {
	return fmt.Sprintf("(depth=%v, tokens=%v)", b.Depth, b.Tokens)
}
