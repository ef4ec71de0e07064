// Package classifier scores feature vectors with a weighted ensemble of
// pre-trained members.
//
// A model is loaded from a Bundle: a versioned artifact holding the feature
// names it was trained on, the standard scaler, and the member parameter
// sets with their weights. Every member outputs the probability that the
// sample is AI-generated; the ensemble probability is their weighted sum.
//
// Ensembles are immutable once built and safe for concurrent use. A Holder
// publishes the current Ensemble and supports atomic replacement.
package classifier

import (
	"errors"
	"fmt"
)

// Label is a predicted class.
type Label string

const (
	LabelAI    Label = "AI_GENERATED"
	LabelHuman Label = "HUMAN"
)

// DecisionThreshold is the ensemble probability at and above which a sample
// is labelled AI_GENERATED.
const DecisionThreshold = 0.5

// Sentinel errors.
var (
	// ErrModelNotLoaded is returned when classifying without a model.
	ErrModelNotLoaded = errors.New("classifier: model not loaded")

	// ErrDimensionMismatch is returned when a vector's length differs from
	// the model's. The concrete error is a *DimensionError.
	ErrDimensionMismatch = errors.New("classifier: feature dimension mismatch")

	// ErrInvalidBundle is returned for malformed model bundles.
	ErrInvalidBundle = errors.New("classifier: invalid bundle")
)

// DimensionError reports a vector of the wrong length.
type DimensionError struct {
	Got, Want int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("feature vector has %d values, model expects %d", e.Got, e.Want)
}

func (e *DimensionError) Unwrap() error { return ErrDimensionMismatch }

// Member is one ensemble classifier. PredictProbability receives a scaled
// feature vector and returns P(AI-generated) in [0, 1].
type Member interface {
	PredictProbability(x []float64) float64
}

// Prediction is the outcome of classifying one vector.
type Prediction struct {
	Label Label

	// Confidence is the certainty in Label: Probability for AI_GENERATED,
	// 1 - Probability for HUMAN. Always in [0.5, 1].
	Confidence float64

	// Probability is the weighted ensemble P(AI-generated).
	Probability float64

	// Members holds each member's probability by name.
	Members map[string]float64

	ModelVersion string
}

// Decide turns an ensemble probability into a label and confidence.
func Decide(p float64) (Label, float64) {
	if p >= DecisionThreshold {
		return LabelAI, p
	}
	return LabelHuman, 1 - p
}
