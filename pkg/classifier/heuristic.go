package classifier

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/stat"
)

// Rule adds Delta to the heuristic score when a feature (or, with Group set,
// the standard deviation across a group of features) compares to Threshold
// with Op ("<" or ">").
type Rule struct {
	Feature   string   `json:"feature,omitempty" yaml:"feature,omitempty" msgpack:"feature,omitempty"`
	Group     []string `json:"group,omitempty" yaml:"group,omitempty" msgpack:"group,omitempty"`
	Op        string   `json:"op" yaml:"op" msgpack:"op"`
	Threshold float64  `json:"threshold" yaml:"threshold" msgpack:"threshold"`
	Delta     float64  `json:"delta" yaml:"delta" msgpack:"delta"`
}

// Heuristic scores features with fixed threshold rules. Unlike the other
// members it reads the raw, unscaled vector.
type Heuristic struct {
	base, lo, hi float64
	rules        []compiledRule
}

type compiledRule struct {
	idx       []int
	group     bool
	less      bool
	threshold float64
	delta     float64
}

func compileHeuristic(p *HeuristicParams, names []string) (*Heuristic, error) {
	index := make(map[string]int, len(names))
	for i, n := range names {
		index[n] = i
	}
	h := &Heuristic{base: p.Base, lo: p.Min, hi: p.Max}
	if h.hi <= h.lo {
		h.lo, h.hi = 0, 1
	}
	for i, r := range p.Rules {
		cr := compiledRule{threshold: r.Threshold, delta: r.Delta}
		switch r.Op {
		case "<":
			cr.less = true
		case ">":
		default:
			return nil, fmt.Errorf("rule %d: unknown op %q", i, r.Op)
		}
		feats := r.Group
		cr.group = len(r.Group) > 0
		if !cr.group {
			feats = []string{r.Feature}
		}
		for _, f := range feats {
			j, ok := index[f]
			if !ok {
				return nil, fmt.Errorf("rule %d: unknown feature %q", i, f)
			}
			cr.idx = append(cr.idx, j)
		}
		h.rules = append(h.rules, cr)
	}
	return h, nil
}

func (h *Heuristic) rawInput() {}

// PredictProbability implements Member.
func (h *Heuristic) PredictProbability(x []float64) float64 {
	score := h.base
	vals := make([]float64, 0, 8)
	for _, r := range h.rules {
		var v float64
		if r.group {
			vals = vals[:0]
			for _, j := range r.idx {
				vals = append(vals, x[j])
			}
			_, v = stat.PopMeanStdDev(vals, nil)
		} else {
			v = x[r.idx[0]]
		}
		if (r.less && v < r.threshold) || (!r.less && v > r.threshold) {
			score += r.delta
		}
	}
	return min(h.hi, max(h.lo, clamp01(score)))
}

// HeuristicBundle returns a self-contained bundle with a single heuristic
// member over features, for running without a trained artifact. Its rules
// favour AI_GENERATED for flat pitch, uniform cepstra, low jitter and
// shimmer, very clean harmonics and regular onsets.
func HeuristicBundle(features []string) *Bundle {
	var mfccStd []string
	for _, n := range features {
		if strings.HasPrefix(n, "mfcc_") && strings.HasSuffix(n, "_std") {
			mfccStd = append(mfccStd, n)
		}
	}
	rules := []Rule{
		{Feature: "pitch_std", Op: "<", Threshold: 30, Delta: 0.25},
		{Feature: "pitch_std", Op: ">", Threshold: 100, Delta: -0.1},
		{Group: mfccStd, Op: "<", Threshold: 2, Delta: 0.2},
		{Feature: "jitter", Op: "<", Threshold: 0.02, Delta: 0.15},
		{Feature: "jitter", Op: ">", Threshold: 0.05, Delta: -0.1},
		{Feature: "shimmer", Op: "<", Threshold: 0.03, Delta: 0.15},
		{Feature: "hnr", Op: ">", Threshold: 15, Delta: 0.15},
		{Feature: "onset_strength_std", Op: "<", Threshold: 0.5, Delta: 0.1},
	}
	return &Bundle{
		Version:  "1.0.0-heuristic",
		Features: append([]string(nil), features...),
		Scaler:   IdentityScaler(len(features)),
		Members: []MemberSpec{{
			Name:   "heuristic",
			Kind:   KindHeuristic,
			Weight: 1,
			Heuristic: &HeuristicParams{
				Base:  0.5,
				Min:   0.05,
				Max:   0.95,
				Rules: rules,
			},
		}},
	}
}
