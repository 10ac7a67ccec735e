package hts

import (
	"errors"
	"strings"
)

// ErrInvalidPattern is returned for voice patterns with a misplaced "#".
var ErrInvalidPattern = errors.New("hts: invalid voice pattern, want locale/name, locale/+ or locale/#")

// route is a node of the voice name tree. Names are "/"-separated, usually
// "locale/name". A "+" segment matches any one segment and a trailing "#"
// matches the rest of the name. Exact segments win over "+", which wins over
// "#".
type route struct {
	children map[string]*route
	one      *route
	rest     *route
	engine   *Engine
}

func splitName(name string) (first, rest string, last bool) {
	first, rest, found := strings.Cut(name, "/")
	return first, rest, !found
}

// node returns the node of pattern, creating it when create is set.
func (r *route) node(pattern string, create bool) (*route, error) {
	n := r
	for p := pattern; ; {
		first, rest, last := splitName(p)
		var next **route
		switch first {
		case "+":
			next = &n.one
		case "#":
			if !last {
				return nil, ErrInvalidPattern
			}
			next = &n.rest
		default:
			if n.children == nil {
				if !create {
					return nil, nil
				}
				n.children = make(map[string]*route)
			}
			ch, ok := n.children[first]
			if !ok {
				if !create {
					return nil, nil
				}
				ch = &route{}
				n.children[first] = ch
			}
			next = &ch
		}
		if *next == nil {
			if !create {
				return nil, nil
			}
			*next = &route{}
		}
		n = *next
		if last {
			return n, nil
		}
		p = rest
	}
}

// match resolves name to the most specific engine.
func (r *route) match(name string) *Engine {
	first, rest, last := splitName(name)
	if ch, ok := r.children[first]; ok {
		if last {
			if ch.engine != nil {
				return ch.engine
			}
		} else if e := ch.match(rest); e != nil {
			return e
		}
	}
	if r.one != nil {
		if last {
			if r.one.engine != nil {
				return r.one.engine
			}
		} else if e := r.one.match(rest); e != nil {
			return e
		}
	}
	if r.rest != nil {
		return r.rest.engine
	}
	return nil
}

// walk calls fn for every registered pattern.
func (r *route) walk(prefix []string, fn func(pattern string, e *Engine)) {
	if r.engine != nil && len(prefix) > 0 {
		fn(strings.Join(prefix, "/"), r.engine)
	}
	for seg, ch := range r.children {
		ch.walk(append(prefix, seg), fn)
	}
	if r.one != nil {
		r.one.walk(append(prefix, "+"), fn)
	}
	if r.rest != nil {
		r.rest.walk(append(prefix, "#"), fn)
	}
}
