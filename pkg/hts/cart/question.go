package cart

import (
	"fmt"
	"strconv"

	"github.com/haivivi/htsvoice/pkg/hts/feature"
)

// Op is the comparison a question applies to a feature value.
type Op uint8

const (
	// OpIn tests membership of a categorical value in a set.
	OpIn Op = iota
	OpLT
	OpLE
	OpEQ
	OpGE
	OpGT
)

var opNames = [...]string{OpIn: "in", OpLT: "<", OpLE: "<=", OpEQ: "==", OpGE: ">=", OpGT: ">"}

// String returns the tree-file spelling of the operator.
func (o Op) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return fmt.Sprintf("Op(%d)", o)
}

func parseOp(s string) (Op, bool) {
	for i, n := range opNames {
		if n == s {
			return Op(i), true
		}
	}
	return 0, false
}

// Question is a binary test on one context feature.
type Question struct {
	Name      string   `msgpack:"name"`
	Feature   string   `msgpack:"feature"`
	Op        Op       `msgpack:"op"`
	Values    []string `msgpack:"values,omitempty"`
	Threshold float64  `msgpack:"threshold"`

	feat *feature.Feature
	// set holds the codes answering yes for categorical features.
	set []uint64
}

// resolve binds the question to def and precompiles categorical tests into
// a bitset over value codes.
func (q *Question) resolve(def *feature.Definition) error {
	f, ok := def.Lookup(q.Feature)
	if !ok {
		return fmt.Errorf("cart: question %q: %w: %q", q.Name, feature.ErrUnknownFeature, q.Feature)
	}
	q.feat = f
	q.set = nil
	if !f.Categorical() {
		if q.Op == OpIn {
			return fmt.Errorf("cart: question %q: set test on continuous feature %q", q.Name, q.Feature)
		}
		return nil
	}
	q.set = make([]uint64, (len(f.Values)+63)/64)
	if q.Op == OpIn {
		for _, v := range q.Values {
			c, ok := f.Code(v)
			if !ok {
				return fmt.Errorf("cart: question %q: %w: %s=%q", q.Name, feature.ErrUnknownValue, q.Feature, v)
			}
			q.set[c/64] |= 1 << (c % 64)
		}
		return nil
	}
	for c := range f.Values {
		if compare(q.Op, f.Numeric(c), q.Threshold) {
			q.set[c/64] |= 1 << (c % 64)
		}
	}
	return nil
}

// Eval answers the question for v.
func (q *Question) Eval(v feature.Vector) bool {
	if q.set != nil {
		c := v.Code(q.feat)
		if c < 0 || c/64 >= len(q.set) {
			return false
		}
		return q.set[c/64]&(1<<(c%64)) != 0
	}
	return compare(q.Op, v.Value(q.feat), q.Threshold)
}

// String returns the tree-file form of the question body.
func (q *Question) String() string {
	if q.Op == OpIn {
		s := q.Feature + " in {"
		for i, v := range q.Values {
			if i > 0 {
				s += ","
			}
			s += v
		}
		return s + "}"
	}
	return q.Feature + " " + q.Op.String() + " " + strconv.FormatFloat(q.Threshold, 'g', -1, 64)
}

// compare applies op; comparisons against NaN are always false.
func compare(op Op, x, threshold float64) bool {
	switch op {
	case OpLT:
		return x < threshold
	case OpLE:
		return x <= threshold
	case OpEQ:
		return x == threshold
	case OpGE:
		return x >= threshold
	case OpGT:
		return x > threshold
	}
	return false
}
