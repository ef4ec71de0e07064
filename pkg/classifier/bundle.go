package classifier

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/vmihailenco/msgpack/v5"
)

// Member kinds.
const (
	KindForest    = "forest"
	KindBoosting  = "boosting"
	KindSVM       = "svm"
	KindLogistic  = "logistic"
	KindHeuristic = "heuristic"
)

// Bundle is a serialised model: everything needed to rebuild an Ensemble.
type Bundle struct {
	Version  string       `json:"version" yaml:"version" msgpack:"version"`
	Features []string     `json:"features" yaml:"features" msgpack:"features"`
	Scaler   Scaler       `json:"scaler" yaml:"scaler" msgpack:"scaler"`
	Members  []MemberSpec `json:"members" yaml:"members" msgpack:"members"`
}

// MemberSpec holds one member's weight and parameters. Exactly the field
// matching Kind must be set.
type MemberSpec struct {
	Name   string  `json:"name" yaml:"name" msgpack:"name"`
	Kind   string  `json:"kind" yaml:"kind" msgpack:"kind"`
	Weight float64 `json:"weight" yaml:"weight" msgpack:"weight"`

	Forest    *Forest          `json:"forest,omitempty" yaml:"forest,omitempty" msgpack:"forest,omitempty"`
	Boosting  *Boosting        `json:"boosting,omitempty" yaml:"boosting,omitempty" msgpack:"boosting,omitempty"`
	SVM       *SVM             `json:"svm,omitempty" yaml:"svm,omitempty" msgpack:"svm,omitempty"`
	Logistic  *Logistic        `json:"logistic,omitempty" yaml:"logistic,omitempty" msgpack:"logistic,omitempty"`
	Heuristic *HeuristicParams `json:"heuristic,omitempty" yaml:"heuristic,omitempty" msgpack:"heuristic,omitempty"`
}

// HeuristicParams configures a Heuristic member. The probability is
// Base plus the deltas of matching rules, clamped to [Min, Max].
type HeuristicParams struct {
	Base  float64 `json:"base" yaml:"base" msgpack:"base"`
	Min   float64 `json:"min" yaml:"min" msgpack:"min"`
	Max   float64 `json:"max" yaml:"max" msgpack:"max"`
	Rules []Rule  `json:"rules" yaml:"rules" msgpack:"rules"`
}

// Build validates the bundle and compiles it into an Ensemble.
func (b *Bundle) Build() (*Ensemble, error) {
	if b.Version == "" {
		return nil, fmt.Errorf("%w: missing version", ErrInvalidBundle)
	}
	if err := b.Scaler.validate(); err != nil {
		return nil, err
	}
	dim := b.Scaler.Dim()
	members := make([]Weighted, 0, len(b.Members))
	seen := make(map[string]bool, len(b.Members))
	for i := range b.Members {
		spec := &b.Members[i]
		name := spec.Name
		if name == "" {
			name = spec.Kind
		}
		if seen[name] {
			return nil, fmt.Errorf("%w: duplicate member %q", ErrInvalidBundle, name)
		}
		seen[name] = true
		m, err := spec.build(dim, b.Features)
		if err != nil {
			return nil, fmt.Errorf("%w: member %q: %v", ErrInvalidBundle, name, err)
		}
		members = append(members, Weighted{Name: name, Weight: spec.Weight, Member: m})
	}
	return NewEnsemble(b.Version, b.Features, b.Scaler, members)
}

func (s *MemberSpec) build(dim int, names []string) (Member, error) {
	switch s.Kind {
	case KindForest:
		if s.Forest == nil || len(s.Forest.Trees) == 0 {
			return nil, fmt.Errorf("forest has no trees")
		}
		for i := range s.Forest.Trees {
			if err := s.Forest.Trees[i].validate(dim); err != nil {
				return nil, fmt.Errorf("tree %d: %w", i, err)
			}
		}
		return s.Forest, nil
	case KindBoosting:
		if s.Boosting == nil || len(s.Boosting.Trees) == 0 {
			return nil, fmt.Errorf("boosting has no trees")
		}
		for i := range s.Boosting.Trees {
			if err := s.Boosting.Trees[i].validate(dim); err != nil {
				return nil, fmt.Errorf("tree %d: %w", i, err)
			}
		}
		return s.Boosting, nil
	case KindSVM:
		if s.SVM == nil || len(s.SVM.SupportVectors) == 0 {
			return nil, fmt.Errorf("svm has no support vectors")
		}
		if s.SVM.Kernel != KernelLinear && s.SVM.Kernel != KernelRBF {
			return nil, fmt.Errorf("unknown kernel %q", s.SVM.Kernel)
		}
		if len(s.SVM.DualCoef) != len(s.SVM.SupportVectors) {
			return nil, fmt.Errorf("%d dual coefficients for %d support vectors", len(s.SVM.DualCoef), len(s.SVM.SupportVectors))
		}
		for i, sv := range s.SVM.SupportVectors {
			if len(sv) != dim {
				return nil, fmt.Errorf("support vector %d has %d values, want %d", i, len(sv), dim)
			}
		}
		return s.SVM, nil
	case KindLogistic:
		if s.Logistic == nil || len(s.Logistic.Coef) != dim {
			return nil, fmt.Errorf("logistic needs %d coefficients", dim)
		}
		return s.Logistic, nil
	case KindHeuristic:
		if s.Heuristic == nil {
			return nil, fmt.Errorf("heuristic has no parameters")
		}
		return compileHeuristic(s.Heuristic, names)
	default:
		return nil, fmt.Errorf("unknown kind %q", s.Kind)
	}
}

// Format is a bundle encoding.
type Format string

const (
	FormatMsgpack Format = "msgpack"
	FormatYAML    Format = "yaml"
	FormatJSON    Format = "json"
)

// FormatFromPath picks the encoding from a file extension. Anything other
// than .yaml, .yml or .json is msgpack.
func FormatFromPath(p string) Format {
	switch strings.ToLower(path.Ext(p)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".json":
		return FormatJSON
	default:
		return FormatMsgpack
	}
}

// DecodeBundle parses a bundle in the given format.
func DecodeBundle(data []byte, f Format) (*Bundle, error) {
	var b Bundle
	var err error
	switch f {
	case FormatYAML:
		err = yaml.Unmarshal(data, &b)
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(&b)
	case FormatMsgpack:
		err = msgpack.Unmarshal(data, &b)
	default:
		return nil, fmt.Errorf("%w: unknown format %q", ErrInvalidBundle, f)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrInvalidBundle, f, err)
	}
	return &b, nil
}

// EncodeBundle serialises b in the given format.
func EncodeBundle(b *Bundle, f Format) ([]byte, error) {
	switch f {
	case FormatYAML:
		return yaml.Marshal(b)
	case FormatJSON:
		return json.MarshalIndent(b, "", "  ")
	case FormatMsgpack:
		return msgpack.Marshal(b)
	default:
		return nil, fmt.Errorf("classifier: unknown format %q", f)
	}
}
