// Package feature defines the context feature layout shared by the decision
// trees of a voice and the units that are looked up in them.
//
// A Definition orders features in three blocks: byte-coded categorical
// features, short-coded categorical features and continuous features. A
// Vector stores one unit's values in that fixed layout. The category order
// of every categorical feature must match the layout the trees were trained
// with, so the definition is always built from the voice descriptor.
//
// Example:
//
//	def, err := feature.NewDefinition(feature.Spec{
//	    Phone: "phone",
//	    Byte:  []feature.Categorical{{Name: "phone", Values: []string{"0", "_", "a"}}},
//	})
//	v, err := def.Encode(map[string]string{"phone": "a"})
package feature

import (
	"errors"
	"fmt"
	"math"
	"strconv"
)

// Sentinel errors.
var (
	// ErrUnknownFeature is returned when a feature name is not defined.
	ErrUnknownFeature = errors.New("feature: unknown feature")

	// ErrUnknownValue is returned when a categorical value is not defined
	// for its feature.
	ErrUnknownValue = errors.New("feature: unknown value")
)

// Kind is the storage class of a feature.
type Kind uint8

const (
	// Byte is a categorical feature with at most 256 values.
	Byte Kind = iota
	// Short is a categorical feature with at most 32767 values.
	Short
	// Continuous is a real-valued feature.
	Continuous
)

// String returns the descriptor name of the kind.
func (k Kind) String() string {
	switch k {
	case Byte:
		return "byte"
	case Short:
		return "short"
	case Continuous:
		return "continuous"
	}
	panic("feature: invalid kind")
}

// Categorical declares a categorical feature and its ordered values.
type Categorical struct {
	Name   string   `yaml:"name" json:"name" msgpack:"name"`
	Values []string `yaml:"values" json:"values" msgpack:"values"`
}

// Spec is the serialized form of a Definition as it appears in a voice
// descriptor.
type Spec struct {
	// Phone names the categorical feature holding the phone identity.
	Phone string `yaml:"phone" json:"phone" msgpack:"phone"`

	Byte       []Categorical `yaml:"byte,omitempty" json:"byte,omitempty" msgpack:"byte"`
	Short      []Categorical `yaml:"short,omitempty" json:"short,omitempty" msgpack:"short"`
	Continuous []string      `yaml:"continuous,omitempty" json:"continuous,omitempty" msgpack:"continuous"`
}

// Feature is one entry of a Definition.
type Feature struct {
	Name   string
	Kind   Kind
	Offset int // position inside the Vector block of the same kind
	Values []string

	codes   map[string]int
	numeric []float64
}

// Code returns the code of a categorical value.
func (f *Feature) Code(value string) (int, bool) {
	c, ok := f.codes[value]
	return c, ok
}

// Numeric returns the numeric interpretation of a categorical code, or NaN
// when the value name is not a number.
func (f *Feature) Numeric(code int) float64 {
	if code < 0 || code >= len(f.numeric) {
		return math.NaN()
	}
	return f.numeric[code]
}

// Categorical reports whether the feature is byte or short coded.
func (f *Feature) Categorical() bool {
	return f.Kind != Continuous
}

// Definition is an immutable feature layout. It is safe for concurrent use.
type Definition struct {
	spec     Spec
	features []Feature
	index    map[string]int
	counts   [3]int
	phone    int
}

// NewDefinition validates spec and builds a Definition from it.
func NewDefinition(spec Spec) (*Definition, error) {
	d := &Definition{
		spec:  spec,
		index: make(map[string]int),
		phone: -1,
	}
	add := func(name string, kind Kind, values []string) error {
		if name == "" {
			return errors.New("feature: empty feature name")
		}
		if _, dup := d.index[name]; dup {
			return fmt.Errorf("feature: duplicate feature %q", name)
		}
		switch kind {
		case Byte:
			if len(values) == 0 || len(values) > 256 {
				return fmt.Errorf("feature: byte feature %q has %d values, want 1..256", name, len(values))
			}
		case Short:
			if len(values) == 0 || len(values) > math.MaxInt16 {
				return fmt.Errorf("feature: short feature %q has %d values, want 1..%d", name, len(values), math.MaxInt16)
			}
		}
		f := Feature{
			Name:   name,
			Kind:   kind,
			Offset: d.counts[kind],
			Values: values,
		}
		if kind != Continuous {
			f.codes = make(map[string]int, len(values))
			f.numeric = make([]float64, len(values))
			for i, v := range values {
				if _, dup := f.codes[v]; dup {
					return fmt.Errorf("feature: %q: duplicate value %q", name, v)
				}
				f.codes[v] = i
				if n, err := strconv.ParseFloat(v, 64); err == nil {
					f.numeric[i] = n
				} else {
					f.numeric[i] = math.NaN()
				}
			}
		}
		d.counts[kind]++
		d.index[name] = len(d.features)
		d.features = append(d.features, f)
		return nil
	}
	for _, c := range spec.Byte {
		if err := add(c.Name, Byte, c.Values); err != nil {
			return nil, err
		}
	}
	for _, c := range spec.Short {
		if err := add(c.Name, Short, c.Values); err != nil {
			return nil, err
		}
	}
	for _, name := range spec.Continuous {
		if err := add(name, Continuous, nil); err != nil {
			return nil, err
		}
	}
	if spec.Phone != "" {
		i, ok := d.index[spec.Phone]
		if !ok {
			return nil, fmt.Errorf("%w: phone feature %q", ErrUnknownFeature, spec.Phone)
		}
		if !d.features[i].Categorical() {
			return nil, fmt.Errorf("feature: phone feature %q must be categorical", spec.Phone)
		}
		d.phone = i
	}
	return d, nil
}

// Spec returns the spec the definition was built from.
func (d *Definition) Spec() Spec { return d.spec }

// Len returns the number of features.
func (d *Definition) Len() int { return len(d.features) }

// Feature returns the i-th feature.
func (d *Definition) Feature(i int) *Feature { return &d.features[i] }

// Lookup returns the feature with the given name.
func (d *Definition) Lookup(name string) (*Feature, bool) {
	i, ok := d.index[name]
	if !ok {
		return nil, false
	}
	return &d.features[i], true
}

// Phone returns the phone name of v, or "" when the definition declares no
// phone feature.
func (d *Definition) Phone(v Vector) string {
	if d.phone < 0 {
		return ""
	}
	f := &d.features[d.phone]
	code := v.Code(f)
	if code < 0 || code >= len(f.Values) {
		return ""
	}
	return f.Values[code]
}

// NewVector returns a zero vector laid out for d. All categorical features
// take code 0.
func (d *Definition) NewVector() Vector {
	return Vector{
		Bytes:  make([]byte, d.counts[Byte]),
		Shorts: make([]int16, d.counts[Short]),
		Floats: make([]float32, d.counts[Continuous]),
	}
}

// Encode builds a vector from named values. Features that are not present
// in values keep code 0 (or 0.0 for continuous features).
func (d *Definition) Encode(values map[string]string) (Vector, error) {
	v := d.NewVector()
	for name, value := range values {
		f, ok := d.Lookup(name)
		if !ok {
			return Vector{}, fmt.Errorf("%w: %q", ErrUnknownFeature, name)
		}
		switch f.Kind {
		case Byte:
			c, ok := f.Code(value)
			if !ok {
				return Vector{}, fmt.Errorf("%w: %s=%q", ErrUnknownValue, name, value)
			}
			v.Bytes[f.Offset] = byte(c)
		case Short:
			c, ok := f.Code(value)
			if !ok {
				return Vector{}, fmt.Errorf("%w: %s=%q", ErrUnknownValue, name, value)
			}
			v.Shorts[f.Offset] = int16(c)
		case Continuous:
			x, err := strconv.ParseFloat(value, 32)
			if err != nil {
				return Vector{}, fmt.Errorf("feature: %s=%q: %w", name, value, err)
			}
			v.Floats[f.Offset] = float32(x)
		}
	}
	return v, nil
}

// Decode returns the named values of v.
func (d *Definition) Decode(v Vector) map[string]string {
	out := make(map[string]string, len(d.features))
	for i := range d.features {
		f := &d.features[i]
		if f.Kind == Continuous {
			out[f.Name] = strconv.FormatFloat(float64(v.Floats[f.Offset]), 'g', -1, 32)
			continue
		}
		code := v.Code(f)
		if code >= 0 && code < len(f.Values) {
			out[f.Name] = f.Values[code]
		}
	}
	return out
}

// Vector is one unit's feature values in the layout of a Definition.
type Vector struct {
	Bytes  []byte
	Shorts []int16
	Floats []float32
}

// Code returns the categorical code of f in v. It returns -1 for continuous
// features.
func (v Vector) Code(f *Feature) int {
	switch f.Kind {
	case Byte:
		return int(v.Bytes[f.Offset])
	case Short:
		return int(v.Shorts[f.Offset])
	}
	return -1
}

// Value returns the numeric value of f in v: the continuous value, or the
// numeric interpretation of a categorical value (NaN when not numeric).
func (v Vector) Value(f *Feature) float64 {
	if f.Kind == Continuous {
		return float64(v.Floats[f.Offset])
	}
	return f.Numeric(v.Code(f))
}
