package classifier

import "math"

// Kernel names supported by SVM.
const (
	KernelLinear = "linear"
	KernelRBF    = "rbf"
)

// SVM is a kernel support vector classifier with Platt-scaled output:
// P = 1 / (1 + exp(PlattA * f + PlattB)), where f is the decision value
// sum_i DualCoef[i] * K(SupportVectors[i], x) + Intercept.
type SVM struct {
	Kernel         string      `json:"kernel" yaml:"kernel" msgpack:"kernel"`
	Gamma          float64     `json:"gamma,omitempty" yaml:"gamma,omitempty" msgpack:"gamma,omitempty"`
	SupportVectors [][]float64 `json:"support_vectors" yaml:"support_vectors" msgpack:"support_vectors"`
	DualCoef       []float64   `json:"dual_coef" yaml:"dual_coef" msgpack:"dual_coef"`
	Intercept      float64     `json:"intercept" yaml:"intercept" msgpack:"intercept"`
	PlattA         float64     `json:"platt_a" yaml:"platt_a" msgpack:"platt_a"`
	PlattB         float64     `json:"platt_b" yaml:"platt_b" msgpack:"platt_b"`
}

// Decision returns the signed distance-like decision value.
func (s *SVM) Decision(x []float64) float64 {
	f := s.Intercept
	for i, sv := range s.SupportVectors {
		f += s.DualCoef[i] * s.kernel(sv, x)
	}
	return f
}

func (s *SVM) kernel(a, b []float64) float64 {
	switch s.Kernel {
	case KernelLinear:
		var dot float64
		for i := range a {
			dot += a[i] * b[i]
		}
		return dot
	default:
		var d2 float64
		for i := range a {
			d := a[i] - b[i]
			d2 += d * d
		}
		return math.Exp(-s.Gamma * d2)
	}
}

// PredictProbability implements Member.
func (s *SVM) PredictProbability(x []float64) float64 {
	return clamp01(sigmoid(-(s.PlattA*s.Decision(x) + s.PlattB)))
}

// Logistic is a linear logistic regression: sigmoid(Coef·x + Intercept).
type Logistic struct {
	Coef      []float64 `json:"coef" yaml:"coef" msgpack:"coef"`
	Intercept float64   `json:"intercept" yaml:"intercept" msgpack:"intercept"`
}

// PredictProbability implements Member.
func (l *Logistic) PredictProbability(x []float64) float64 {
	z := l.Intercept
	for i, c := range l.Coef {
		z += c * x[i]
	}
	return sigmoid(z)
}
