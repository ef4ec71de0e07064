package features

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Field locates one feature family inside a Vector.
type Field struct {
	Family string `json:"family" yaml:"family" msgpack:"family"`
	Offset int    `json:"offset" yaml:"offset" msgpack:"offset"`
	Length int    `json:"length" yaml:"length" msgpack:"length"`
}

// Schema is the fixed layout of a Vector: the families in declaration order
// and one name per scalar.
type Schema struct {
	Fields []Field
	Names  []string
}

func newSchema(families []Family) Schema {
	var s Schema
	for _, f := range families {
		s.Fields = append(s.Fields, Field{Family: f.Name, Offset: len(s.Names), Length: len(f.Names)})
		s.Names = append(s.Names, f.Names...)
	}
	return s
}

// Len returns the vector length.
func (s Schema) Len() int { return len(s.Names) }

// Index returns the position of a named feature, or -1.
func (s Schema) Index(name string) int {
	for i, n := range s.Names {
		if n == name {
			return i
		}
	}
	return -1
}

// Field returns the layout of a family.
func (s Schema) Field(family string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Family == family {
			return f, true
		}
	}
	return Field{}, false
}

// Fingerprint is a stable digest of the feature names in order. Two schemas
// with the same fingerprint produce interchangeable vectors.
func (s Schema) Fingerprint() string {
	h := sha256.Sum256([]byte(strings.Join(s.Names, "\n")))
	return hex.EncodeToString(h[:8])
}

// Check reports whether names matches the schema exactly.
func (s Schema) Check(names []string) error {
	if len(names) != len(s.Names) {
		return fmt.Errorf("%w: have %d features, want %d", ErrSchemaMismatch, len(names), len(s.Names))
	}
	for i, n := range names {
		if n != s.Names[i] {
			return fmt.Errorf("%w: feature %d is %q, want %q", ErrSchemaMismatch, i, n, s.Names[i])
		}
	}
	return nil
}

// Vector is one feature vector laid out by a Schema.
type Vector []float64

// Get returns the named feature of v.
func (s Schema) Get(v Vector, name string) (float64, bool) {
	i := s.Index(name)
	if i < 0 || i >= len(v) {
		return 0, false
	}
	return v[i], true
}

// Slice returns the sub-vector of a family.
func (s Schema) Slice(v Vector, family string) []float64 {
	f, ok := s.Field(family)
	if !ok || f.Offset+f.Length > len(v) {
		return nil
	}
	return v[f.Offset : f.Offset+f.Length]
}
