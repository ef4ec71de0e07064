package classifier

import (
	"fmt"
	"math"
)

// Weighted is a named member with its ensemble weight.
type Weighted struct {
	Name   string
	Weight float64
	Member Member
}

// rawMember is implemented by members that score unscaled features.
type rawMember interface {
	rawInput()
}

// Ensemble combines members into one probability: the sum of member
// probabilities times their normalised weights.
type Ensemble struct {
	version  string
	features []string
	scaler   Scaler
	members  []Weighted
}

// NewEnsemble builds an ensemble. Weights must be non-negative; they are
// normalised to sum to 1, and all-zero weights become uniform.
func NewEnsemble(version string, features []string, scaler Scaler, members []Weighted) (*Ensemble, error) {
	if err := scaler.validate(); err != nil {
		return nil, err
	}
	if len(features) != scaler.Dim() {
		return nil, fmt.Errorf("%w: %d feature names for a %d-wide scaler", ErrInvalidBundle, len(features), scaler.Dim())
	}
	if len(members) == 0 {
		return nil, fmt.Errorf("%w: no members", ErrInvalidBundle)
	}
	var total float64
	for _, m := range members {
		if m.Member == nil {
			return nil, fmt.Errorf("%w: member %q is nil", ErrInvalidBundle, m.Name)
		}
		if m.Weight < 0 || math.IsNaN(m.Weight) || math.IsInf(m.Weight, 0) {
			return nil, fmt.Errorf("%w: member %q has weight %v", ErrInvalidBundle, m.Name, m.Weight)
		}
		total += m.Weight
	}
	ws := make([]Weighted, len(members))
	for i, m := range members {
		if total == 0 {
			m.Weight = 1 / float64(len(members))
		} else {
			m.Weight /= total
		}
		ws[i] = m
	}
	return &Ensemble{
		version:  version,
		features: append([]string(nil), features...),
		scaler:   scaler,
		members:  ws,
	}, nil
}

// Version returns the model version string.
func (e *Ensemble) Version() string { return e.version }

// Dim returns the feature vector length the ensemble expects.
func (e *Ensemble) Dim() int { return e.scaler.Dim() }

// Features returns the ordered feature names the model was trained on.
func (e *Ensemble) Features() []string { return append([]string(nil), e.features...) }

// Weights returns the normalised member weights by name.
func (e *Ensemble) Weights() map[string]float64 {
	out := make(map[string]float64, len(e.members))
	for _, m := range e.members {
		out[m.Name] = m.Weight
	}
	return out
}

// Classify scores one raw feature vector.
func (e *Ensemble) Classify(x []float64) (Prediction, error) {
	scaled, err := e.scaler.Transform(x)
	if err != nil {
		return Prediction{}, err
	}
	pred := Prediction{
		Members:      make(map[string]float64, len(e.members)),
		ModelVersion: e.version,
	}
	var p float64
	for _, m := range e.members {
		in := scaled
		if _, ok := m.Member.(rawMember); ok {
			in = x
		}
		mp := clamp01(m.Member.PredictProbability(in))
		pred.Members[m.Name] = mp
		p += m.Weight * mp
	}
	pred.Probability = clamp01(p)
	pred.Label, pred.Confidence = Decide(pred.Probability)
	return pred, nil
}
