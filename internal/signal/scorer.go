// Package signal turns bars and an oracle opinion into a scored
// SymbolAnalysis.
package signal

import (
	"math"

	"autotrader/internal/types"
)

const DefaultThreshold = 10.0

type Score struct {
	Normalized  float64
	TotalWeight float64
	Decision    types.Action
	Confidence  float64
	Dominant    string
}

// Scorer combines components into a decision. weights holds the effective
// weight per component name; components without a weight count as zero.
type Scorer interface {
	Score(components []types.Component, weights map[string]float64) Score
}

// HeuristicScorer is the weighted point score: each component contributes
// direction x strength x weight/100 and the sum is normalized by the total
// weight, so the result lies in [-100, 100].
type HeuristicScorer struct {
	Threshold float64
}

var _ Scorer = HeuristicScorer{}

func (h HeuristicScorer) Score(components []types.Component, weights map[string]float64) Score {
	threshold := h.Threshold
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	var score, total float64
	for _, c := range components {
		w := weights[c.Name]
		if w <= 0 || math.IsNaN(w) {
			continue
		}
		strength := types.Clamp(c.Signal.Strength, 0, 100)
		score += c.Signal.Action.Direction() * strength * w / 100
		total += w
	}

	s := Score{TotalWeight: total, Decision: types.ActionHold}
	if total > 0 {
		s.Normalized = types.Clamp(score/(total/100), -100, 100)
	}
	switch {
	case s.Normalized > threshold:
		s.Decision = types.ActionBuy
	case s.Normalized < -threshold:
		s.Decision = types.ActionSell
	}
	s.Confidence = types.Clamp(math.Abs(s.Normalized), 0, 100)
	s.Dominant = dominant(components, s.Decision)
	return s
}

// dominant is the strongest component agreeing with the decision. The
// first in component order wins ties.
func dominant(components []types.Component, decision types.Action) string {
	if decision == types.ActionHold {
		return ""
	}
	best, bestStrength := "", -1.0
	for _, c := range components {
		if c.Signal.Action == decision && c.Signal.Strength > bestStrength {
			best, bestStrength = c.Name, c.Signal.Strength
		}
	}
	return best
}

// Weights is the per-cycle weight table handed to the analyzer.
type Weights struct {
	Effective      map[string]float64
	ConfidenceBias float64
}

// ResolveWeights merges configured base weights with stored weights and
// learned adjustments. Stored base weights win over configuration.
func ResolveWeights(base map[string]float64, stored map[string]types.StrategyWeight) Weights {
	w := Weights{Effective: make(map[string]float64, len(types.Strategies))}
	for _, name := range types.Strategies {
		sw := types.StrategyWeight{Strategy: name, BaseWeight: base[name]}
		if s, ok := stored[name]; ok {
			sw.Adjustment = s.Adjustment
			if s.BaseWeight > 0 {
				sw.BaseWeight = s.BaseWeight
			}
		}
		w.Effective[name] = sw.Effective()
	}
	if bias, ok := stored[types.ConfidenceBiasKey]; ok {
		w.ConfidenceBias = bias.Adjustment
	}
	return w
}

// EqualWeights gives every named component the same weight.
func EqualWeights(names ...string) map[string]float64 {
	out := make(map[string]float64, len(names))
	for _, n := range names {
		out[n] = 10
	}
	return out
}
