package model

import (
	"math/rand"
	"testing"
)

func TestDefaultModelChoiceRespectsWeights(t *testing.T) {
	m := NewDefaultModel(rand.New(rand.NewSource(1)))
	counts := make([]int, 3)
	for i := 0; i < 1000; i++ {
		idx := m.Choice(Node{RuleName: "r"}, 0, []float64{0, 1, 0})
		counts[idx]++
	}
	if counts[0] != 0 || counts[2] != 0 {
		t.Fatalf("zero-weight alternatives were chosen: %v", counts)
	}
	if counts[1] != 1000 {
		t.Fatalf("expected all choices on index 1, got %v", counts)
	}
}

func TestDefaultModelChoiceAllZeroFallsBackUniform(t *testing.T) {
	m := NewDefaultModel(rand.New(rand.NewSource(1)))
	idx := m.Choice(Node{RuleName: "r"}, 0, []float64{0, 0})
	if idx < 0 || idx > 1 {
		t.Fatalf("index out of range: %v", idx)
	}
}

func TestWeightedModelMultipliesWeights(t *testing.T) {
	def := NewDefaultModel(rand.New(rand.NewSource(2)))
	w := NewWeightedModel(def, map[WeightKey]float64{
		{RuleName: "r", AltIdx: 0, AltPos: 1}: 0,
	})
	counts := make([]int, 2)
	for i := 0; i < 500; i++ {
		idx := w.Choice(Node{RuleName: "r"}, 0, []float64{1, 1})
		counts[idx]++
	}
	if counts[1] != 0 {
		t.Fatalf("multiplier of 0 should zero out index 1, got %v", counts)
	}
}

func TestCooldownModelReducesRepeatProbability(t *testing.T) {
	def := NewDefaultModel(rand.New(rand.NewSource(3)))
	cd := NewCooldownModel(def, 0.1)
	node := Node{RuleName: "r"}
	first := cd.Choice(node, 0, []float64{1, 1})
	_ = first
	// After one cooldown application the chosen index's effective weight
	// should have shrunk relative to the other, biasing future choices away
	// from repeating it.
	cd.mu.Lock()
	k := WeightKey{RuleName: "r", AltIdx: 0, AltPos: first}
	w := cd.weights[k]
	cd.mu.Unlock()
	if w >= 1 {
		t.Fatalf("expected cooldown to shrink weight below 1, got %v", w)
	}
}

func TestDispatchingModelOverride(t *testing.T) {
	def := NewDefaultModel(rand.New(rand.NewSource(4)))
	d := NewDispatchingModel(def)
	d.ChoiceOverrides["special"] = func(node Node, altIdx int, weights []float64) int {
		return len(weights) - 1
	}
	idx := d.Choice(Node{RuleName: "special"}, 0, []float64{1, 1, 1})
	if idx != 2 {
		t.Fatalf("override not used, got %v", idx)
	}
	idx = d.Choice(Node{RuleName: "other"}, 0, []float64{0, 1})
	if idx != 1 {
		t.Fatalf("default not used for non-overridden rule, got %v", idx)
	}
}
