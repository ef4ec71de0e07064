package classifier

import (
	"fmt"
	"math"
)

// Tree is a binary decision tree in flat array form. Node i is a leaf when
// Feature[i] < 0; otherwise samples with x[Feature[i]] <= Threshold[i] go to
// Left[i] and the rest to Right[i]. Node 0 is the root.
type Tree struct {
	Feature   []int     `json:"feature" yaml:"feature" msgpack:"feature"`
	Threshold []float64 `json:"threshold" yaml:"threshold" msgpack:"threshold"`
	Left      []int     `json:"left" yaml:"left" msgpack:"left"`
	Right     []int     `json:"right" yaml:"right" msgpack:"right"`
	Value     []float64 `json:"value" yaml:"value" msgpack:"value"`
}

func (t *Tree) validate(dim int) error {
	n := len(t.Feature)
	if n == 0 {
		return fmt.Errorf("empty tree")
	}
	if len(t.Threshold) != n || len(t.Left) != n || len(t.Right) != n || len(t.Value) != n {
		return fmt.Errorf("tree arrays have mismatched lengths")
	}
	for i, f := range t.Feature {
		if f < 0 {
			continue
		}
		if f >= dim {
			return fmt.Errorf("node %d splits on feature %d of %d", i, f, dim)
		}
		// Children must come after their parent, which also rules out cycles.
		if t.Left[i] <= i || t.Left[i] >= n || t.Right[i] <= i || t.Right[i] >= n {
			return fmt.Errorf("node %d has invalid children %d, %d", i, t.Left[i], t.Right[i])
		}
	}
	return nil
}

// Leaf returns the value of the leaf x falls into.
func (t *Tree) Leaf(x []float64) float64 {
	i := 0
	for t.Feature[i] >= 0 {
		if x[t.Feature[i]] <= t.Threshold[i] {
			i = t.Left[i]
		} else {
			i = t.Right[i]
		}
	}
	return t.Value[i]
}

// Forest averages the leaf probabilities of its trees.
type Forest struct {
	Trees []Tree `json:"trees" yaml:"trees" msgpack:"trees"`
}

// PredictProbability implements Member.
func (f *Forest) PredictProbability(x []float64) float64 {
	var sum float64
	for i := range f.Trees {
		sum += f.Trees[i].Leaf(x)
	}
	return clamp01(sum / float64(len(f.Trees)))
}

// Boosting is a gradient-boosted tree ensemble for binary log-loss: the
// probability is sigmoid(Init + LearningRate * sum of leaf values).
type Boosting struct {
	Init         float64 `json:"init" yaml:"init" msgpack:"init"`
	LearningRate float64 `json:"learning_rate" yaml:"learning_rate" msgpack:"learning_rate"`
	Trees        []Tree  `json:"trees" yaml:"trees" msgpack:"trees"`
}

// PredictProbability implements Member.
func (b *Boosting) PredictProbability(x []float64) float64 {
	score := b.Init
	for i := range b.Trees {
		score += b.LearningRate * b.Trees[i].Leaf(x)
	}
	return sigmoid(score)
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

func clamp01(p float64) float64 {
	switch {
	case math.IsNaN(p):
		return 0.5
	case p < 0:
		return 0
	case p > 1:
		return 1
	}
	return p
}
