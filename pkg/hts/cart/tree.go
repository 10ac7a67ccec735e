// Package cart implements the context decision trees of a voice: binary
// trees of feature questions whose leaves select a trained Gaussian.
//
// Trees are stored as flat arenas of tagged nodes. A lookup walks from the
// root, answering one question per internal node, until it reaches a leaf;
// it is deterministic and O(depth). All structural validation happens once
// at parse time, so lookups never fail.
package cart

import (
	"errors"
	"fmt"

	"github.com/haivivi/htsvoice/pkg/hts/feature"
)

// ErrMalformedTree is returned for structurally invalid tree files.
var ErrMalformedTree = errors.New("cart: malformed tree")

// NodeKind tags the variant held by a Node.
type NodeKind uint8

const (
	// Internal nodes hold a question and two children.
	Internal NodeKind = iota
	// Leaf nodes hold a PDF index.
	Leaf
)

// Node is one arena slot. Question, No and Yes are meaningful for Internal
// nodes; Leaf holds the 0-based PDF index for Leaf nodes.
type Node struct {
	Kind     NodeKind `msgpack:"k"`
	Question int32    `msgpack:"q"`
	No       int32    `msgpack:"n"`
	Yes      int32    `msgpack:"y"`
	Leaf     int32    `msgpack:"l"`
}

// Tree is a decision tree for one emitting state. The root is Nodes[0].
type Tree struct {
	State int    `msgpack:"state"`
	Nodes []Node `msgpack:"nodes"`

	questions []*Question
}

// Lookup walks the tree for v and returns the PDF index of the leaf reached.
func (t *Tree) Lookup(v feature.Vector) int {
	i := int32(0)
	for {
		n := &t.Nodes[i]
		if n.Kind == Leaf {
			return int(n.Leaf)
		}
		if t.questions[n.Question].Eval(v) {
			i = n.Yes
		} else {
			i = n.No
		}
	}
}

// NumLeaves returns the number of leaves.
func (t *Tree) NumLeaves() int {
	n := 0
	for _, nd := range t.Nodes {
		if nd.Kind == Leaf {
			n++
		}
	}
	return n
}

// MaxLeaf returns the largest PDF index referenced by a leaf.
func (t *Tree) MaxLeaf() int {
	m := -1
	for _, nd := range t.Nodes {
		if nd.Kind == Leaf && int(nd.Leaf) > m {
			m = int(nd.Leaf)
		}
	}
	return m
}

// Depth returns the number of questions on the longest root-to-leaf path.
func (t *Tree) Depth() int {
	type item struct{ node, depth int32 }
	stack := []item{{0, 0}}
	depth := int32(0)
	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := &t.Nodes[it.node]
		if n.Kind == Leaf {
			depth = max(depth, it.depth)
			continue
		}
		stack = append(stack, item{n.No, it.depth + 1}, item{n.Yes, it.depth + 1})
	}
	return int(depth)
}

// validate checks that every child index is inside the arena, that every
// node is reachable from the root exactly once, and that every question
// index is defined.
func (t *Tree) validate(numQuestions int) error {
	if len(t.Nodes) == 0 {
		return fmt.Errorf("%w: state %d: empty tree", ErrMalformedTree, t.State)
	}
	seen := make([]bool, len(t.Nodes))
	stack := []int32{0}
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if i < 0 || int(i) >= len(t.Nodes) {
			return fmt.Errorf("%w: state %d: dangling child %d", ErrMalformedTree, t.State, i)
		}
		if seen[i] {
			return fmt.Errorf("%w: state %d: node %d referenced twice", ErrMalformedTree, t.State, i)
		}
		seen[i] = true
		n := &t.Nodes[i]
		switch n.Kind {
		case Leaf:
			if n.Leaf < 0 {
				return fmt.Errorf("%w: state %d: negative leaf index", ErrMalformedTree, t.State)
			}
		case Internal:
			if n.Question < 0 || int(n.Question) >= numQuestions {
				return fmt.Errorf("%w: state %d: undefined question %d", ErrMalformedTree, t.State, n.Question)
			}
			stack = append(stack, n.No, n.Yes)
		default:
			return fmt.Errorf("%w: state %d: bad node kind %d", ErrMalformedTree, t.State, n.Kind)
		}
	}
	for i, ok := range seen {
		if !ok {
			return fmt.Errorf("%w: state %d: node %d unreachable", ErrMalformedTree, t.State, i)
		}
	}
	return nil
}

// Set is the content of one tree file: a question table shared by one tree
// per state.
type Set struct {
	Questions []*Question `msgpack:"questions"`
	Trees     []*Tree     `msgpack:"trees"`
}

// Tree returns the tree for the given state number, or nil.
func (s *Set) Tree(state int) *Tree {
	for _, t := range s.Trees {
		if t.State == state {
			return t
		}
	}
	return nil
}

// Resolve binds all questions to def and validates every tree. It must be
// called before Lookup on sets that were not produced by Parse, such as
// decoded snapshots.
func (s *Set) Resolve(def *feature.Definition) error {
	for _, q := range s.Questions {
		if err := q.resolve(def); err != nil {
			return err
		}
	}
	for _, t := range s.Trees {
		if err := t.validate(len(s.Questions)); err != nil {
			return err
		}
		t.questions = s.Questions
	}
	return nil
}
