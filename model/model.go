// Package model implements the decision policy the generator runtime
// consults at alternations, quantifiers and charsets: which alternative to
// choose, whether to produce one more quantifier iteration, and which
// scalar to pick from a charset.
package model

import (
	"math/rand"
	"sync"
)

// Node is the minimal identity the decision model needs about the vertex
// it's being consulted for: its owning rule name and a structural index
// (alternation/quantifier/charset idx) within that rule.
type Node struct {
	RuleName string
	Idx      int
}

// DecisionModel is the policy surface; all methods must be pure with
// respect to the generator (no attempt to mutate the tree under
// construction).
type DecisionModel interface {
	// Choice selects one of len(weights) alternatives at an alternation.
	Choice(node Node, altIdx int, weights []float64) int
	// Quantify decides whether to produce one more iteration; called only
	// in the region start <= countSoFar < stop.
	Quantify(node Node, quantIdx, countSoFar, start, stop int) bool
	// Charset picks a scalar from an explicit code point list.
	Charset(node Node, idx int, chars []rune) rune
}

// DefaultModel chooses proportionally to weights, flips a fair coin for
// Quantify, and samples uniformly for Charset.
type DefaultModel struct {
	Rand *rand.Rand
}

func NewDefaultModel(r *rand.Rand) *DefaultModel {
	return &DefaultModel{Rand: r}
}

func (m *DefaultModel) Choice(node Node, altIdx int, weights []float64) int {
	total := 0.0
	for _, w := range weights {
		total += w
	}
	if total <= 0 {
		// The runtime has already performed escape logic (masked/raised
		// limits) before calling in with an all-zero vector; fall back to
		// uniform so the generator always makes progress.
		return m.Rand.Intn(len(weights))
	}
	x := m.Rand.Float64() * total
	acc := 0.0
	for i, w := range weights {
		acc += w
		if x < acc {
			return i
		}
	}
	return len(weights) - 1
}

func (m *DefaultModel) Quantify(node Node, quantIdx, countSoFar, start, stop int) bool {
	return m.Rand.Intn(2) == 0
}

func (m *DefaultModel) Charset(node Node, idx int, chars []rune) rune {
	return chars[m.Rand.Intn(len(chars))]
}

// WeightKey keys a weight multiplier by (rule name, alt idx, position within
// the alternative); the multiplier pre-multiplies the DefaultModel's weights.
type WeightKey struct {
	RuleName string
	AltIdx   int
	AltPos   int
}

// WeightedModel pre-multiplies weights by a static per-(rule, alt idx, alt
// pos) multiplier map before delegating to the wrapped model.
type WeightedModel struct {
	Inner       DecisionModel
	Multipliers map[WeightKey]float64
}

func NewWeightedModel(inner DecisionModel, multipliers map[WeightKey]float64) *WeightedModel {
	if multipliers == nil {
		multipliers = map[WeightKey]float64{}
	}
	return &WeightedModel{Inner: inner, Multipliers: multipliers}
}

func (m *WeightedModel) Choice(node Node, altIdx int, weights []float64) int {
	adjusted := make([]float64, len(weights))
	for i, w := range weights {
		mul, ok := m.Multipliers[WeightKey{RuleName: node.RuleName, AltIdx: altIdx, AltPos: i}]
		if !ok {
			mul = 1
		}
		adjusted[i] = w * mul
	}
	return m.Inner.Choice(node, altIdx, adjusted)
}

func (m *WeightedModel) Quantify(node Node, quantIdx, countSoFar, start, stop int) bool {
	return m.Inner.Quantify(node, quantIdx, countSoFar, start, stop)
}

func (m *WeightedModel) Charset(node Node, idx int, chars []rune) rune {
	return m.Inner.Charset(node, idx, chars)
}

// CooldownModel multiplies the chosen alternative's multiplier by a
// cooldown factor <1 after every choice, renormalizing within the
// alternation, guarded by a mutex for use across parallel generators
// sharing one cooldown map (§5 concurrency model).
type CooldownModel struct {
	Inner   DecisionModel
	Factor  float64
	mu      sync.Mutex
	weights map[WeightKey]float64
}

func NewCooldownModel(inner DecisionModel, factor float64) *CooldownModel {
	return &CooldownModel{Inner: inner, Factor: factor, weights: map[WeightKey]float64{}}
}

func (m *CooldownModel) Choice(node Node, altIdx int, weights []float64) int {
	m.mu.Lock()
	adjusted := make([]float64, len(weights))
	for i, w := range weights {
		k := WeightKey{RuleName: node.RuleName, AltIdx: altIdx, AltPos: i}
		mul, ok := m.weights[k]
		if !ok {
			mul = 1
		}
		adjusted[i] = w * mul
	}
	m.mu.Unlock()

	chosen := m.Inner.Choice(node, altIdx, adjusted)

	m.mu.Lock()
	k := WeightKey{RuleName: node.RuleName, AltIdx: altIdx, AltPos: chosen}
	cur, ok := m.weights[k]
	if !ok {
		cur = 1
	}
	m.weights[k] = cur * m.Factor
	renormalize(m.weights, node.RuleName, altIdx, len(weights))
	m.mu.Unlock()

	return chosen
}

// renormalize rescales the recorded multipliers for one alternation so
// their mean stays 1, preventing cooldown from silently starving every
// alternative toward zero over a long run.
func renormalize(weights map[WeightKey]float64, ruleName string, altIdx, n int) {
	total := 0.0
	for i := 0; i < n; i++ {
		k := WeightKey{RuleName: ruleName, AltIdx: altIdx, AltPos: i}
		if w, ok := weights[k]; ok {
			total += w
		} else {
			total += 1
		}
	}
	mean := total / float64(n)
	if mean <= 0 {
		return
	}
	for i := 0; i < n; i++ {
		k := WeightKey{RuleName: ruleName, AltIdx: altIdx, AltPos: i}
		w, ok := weights[k]
		if !ok {
			w = 1
		}
		weights[k] = w / mean
	}
}

func (m *CooldownModel) Quantify(node Node, quantIdx, countSoFar, start, stop int) bool {
	return m.Inner.Quantify(node, quantIdx, countSoFar, start, stop)
}

func (m *CooldownModel) Charset(node Node, idx int, chars []rune) rune {
	return m.Inner.Charset(node, idx, chars)
}

// DispatchingModel looks up a per-rule override by name (choice_<rule>,
// quantify_<rule>, charset_<rule>), falling back to a default model.
type DispatchingModel struct {
	Default DecisionModel

	ChoiceOverrides   map[string]func(node Node, altIdx int, weights []float64) int
	QuantifyOverrides map[string]func(node Node, quantIdx, countSoFar, start, stop int) bool
	CharsetOverrides  map[string]func(node Node, idx int, chars []rune) rune
}

func NewDispatchingModel(def DecisionModel) *DispatchingModel {
	return &DispatchingModel{
		Default:           def,
		ChoiceOverrides:   map[string]func(Node, int, []float64) int{},
		QuantifyOverrides: map[string]func(Node, int, int, int, int) bool{},
		CharsetOverrides:  map[string]func(Node, int, []rune) rune{},
	}
}

func (m *DispatchingModel) Choice(node Node, altIdx int, weights []float64) int {
	if f, ok := m.ChoiceOverrides[node.RuleName]; ok {
		return f(node, altIdx, weights)
	}
	return m.Default.Choice(node, altIdx, weights)
}

func (m *DispatchingModel) Quantify(node Node, quantIdx, countSoFar, start, stop int) bool {
	if f, ok := m.QuantifyOverrides[node.RuleName]; ok {
		return f(node, quantIdx, countSoFar, start, stop)
	}
	return m.Default.Quantify(node, quantIdx, countSoFar, start, stop)
}

func (m *DispatchingModel) Charset(node Node, idx int, chars []rune) rune {
	if f, ok := m.CharsetOverrides[node.RuleName]; ok {
		return f(node, idx, chars)
	}
	return m.Default.Charset(node, idx, chars)
}
