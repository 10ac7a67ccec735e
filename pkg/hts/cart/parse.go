package cart

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/haivivi/htsvoice/pkg/hts/feature"
)

// Parse reads a tree file and resolves it against def.
//
// The grammar is line oriented:
//
//	# comment
//	QS "C-Vowel" phone in {a,e,i,o,u}
//	QS "Pos<=2"  pos_in_syl <= 2
//	{*}[2]
//	{
//	   0 "C-Vowel" -1         "mgc_s2_1"
//	  -1 "Pos<=2"  "mgc_s2_2" "mgc_s2_3"
//	}
//	{*}[3]
//	"mgc_s3_1"
//
// Node lines read "id question no yes". Internal nodes are numbered 0, -1,
// -2, ... with 0 as the root; leaves are quoted names ending in _<n>, the
// 1-based PDF index.
func Parse(r io.Reader, def *feature.Definition) (*Set, error) {
	p := &parser{sc: bufio.NewScanner(r), qindex: make(map[string]int)}
	p.sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	set, err := p.parse()
	if err != nil {
		return nil, err
	}
	if err := set.Resolve(def); err != nil {
		return nil, err
	}
	return set, nil
}

type parser struct {
	sc     *bufio.Scanner
	lineNo int
	set    Set
	qindex map[string]int
}

func (p *parser) errorf(format string, args ...any) error {
	return fmt.Errorf("%w: line %d: %s", ErrMalformedTree, p.lineNo, fmt.Sprintf(format, args...))
}

// next returns the next significant line, or "" at EOF.
func (p *parser) next() (string, error) {
	for p.sc.Scan() {
		p.lineNo++
		line := strings.TrimSpace(p.sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		return line, nil
	}
	return "", p.sc.Err()
}

func (p *parser) parse() (*Set, error) {
	for {
		line, err := p.next()
		if err != nil {
			return nil, err
		}
		if line == "" {
			break
		}
		switch {
		case strings.HasPrefix(line, "QS "):
			if err := p.question(line); err != nil {
				return nil, err
			}
		case strings.HasPrefix(line, "{*}"):
			if err := p.tree(line); err != nil {
				return nil, err
			}
		default:
			return nil, p.errorf("unexpected %q", line)
		}
	}
	if len(p.set.Trees) == 0 {
		return nil, fmt.Errorf("%w: no trees", ErrMalformedTree)
	}
	return &p.set, nil
}

func (p *parser) question(line string) error {
	toks := fields(line)
	if len(toks) < 5 {
		return p.errorf("short question %q", line)
	}
	q := &Question{Name: unquote(toks[1]), Feature: toks[2]}
	if _, dup := p.qindex[q.Name]; dup {
		return p.errorf("duplicate question %q", q.Name)
	}
	op, ok := parseOp(toks[3])
	if !ok {
		return p.errorf("unknown operator %q", toks[3])
	}
	rest := strings.Join(toks[4:], " ")
	if op == OpIn {
		rest = strings.TrimSpace(rest)
		if !strings.HasPrefix(rest, "{") || !strings.HasSuffix(rest, "}") {
			return p.errorf("set must be enclosed in braces: %q", rest)
		}
		for _, v := range strings.FieldsFunc(rest[1:len(rest)-1], func(r rune) bool { return r == ',' || r == ' ' || r == '\t' }) {
			q.Values = append(q.Values, unquote(v))
		}
		if len(q.Values) == 0 {
			return p.errorf("empty set in question %q", q.Name)
		}
	} else {
		x, err := strconv.ParseFloat(unquote(rest), 64)
		switch {
		case err == nil:
			q.Threshold = x
		case op == OpEQ:
			// a non-numeric equality is a one-value set test
			op = OpIn
			q.Values = []string{unquote(rest)}
		default:
			return p.errorf("bad threshold %q", rest)
		}
	}
	q.Op = op
	p.qindex[q.Name] = len(p.set.Questions)
	p.set.Questions = append(p.set.Questions, q)
	return nil
}

// tree parses a "{*}[n]" header and its body.
func (p *parser) tree(header string) error {
	open, end := strings.IndexByte(header, '['), strings.IndexByte(header, ']')
	if open < 0 || end < open {
		return p.errorf("bad tree header %q", header)
	}
	state, err := strconv.Atoi(header[open+1 : end])
	if err != nil {
		return p.errorf("bad state in %q", header)
	}
	if p.set.Tree(state) != nil {
		return p.errorf("duplicate tree for state %d", state)
	}
	t := &Tree{State: state}

	line, err := p.next()
	if err != nil {
		return err
	}
	if line == "" {
		return p.errorf("missing body for state %d", state)
	}
	if line != "{" {
		leaf, err := p.leaf(line)
		if err != nil {
			return err
		}
		t.Nodes = []Node{{Kind: Leaf, Leaf: leaf}}
		p.set.Trees = append(p.set.Trees, t)
		return nil
	}

	type rawNode struct {
		id       int
		question int
		no, yes  string
	}
	var raws []rawNode
	ids := make(map[int]int) // node id -> arena index
	for {
		line, err := p.next()
		if err != nil {
			return err
		}
		if line == "" {
			return p.errorf("unterminated tree for state %d", state)
		}
		if line == "}" {
			break
		}
		toks := fields(line)
		if len(toks) != 4 {
			return p.errorf("node line needs 4 fields: %q", line)
		}
		id, err := strconv.Atoi(toks[0])
		if err != nil || id > 0 {
			return p.errorf("bad node id %q", toks[0])
		}
		if _, dup := ids[id]; dup {
			return p.errorf("duplicate node id %d", id)
		}
		qi, ok := p.qindex[unquote(toks[1])]
		if !ok {
			return p.errorf("undefined question %s", toks[1])
		}
		ids[id] = len(raws)
		raws = append(raws, rawNode{id: id, question: qi, no: toks[2], yes: toks[3]})
	}
	root, ok := ids[0]
	if !ok {
		return p.errorf("state %d: missing root node 0", state)
	}

	// Internal nodes keep their order with the root moved to slot 0;
	// leaves are appended after them.
	order := make([]int, 0, len(raws))
	order = append(order, root)
	for i := range raws {
		if i != root {
			order = append(order, i)
		}
	}
	slot := make(map[int]int32, len(raws))
	for s, i := range order {
		slot[raws[i].id] = int32(s)
	}
	t.Nodes = make([]Node, len(raws))
	child := func(tok string) (int32, error) {
		if strings.HasPrefix(tok, "\"") {
			leaf, err := p.leaf(tok)
			if err != nil {
				return 0, err
			}
			t.Nodes = append(t.Nodes, Node{Kind: Leaf, Leaf: leaf})
			return int32(len(t.Nodes) - 1), nil
		}
		id, err := strconv.Atoi(tok)
		if err != nil {
			return 0, p.errorf("bad child %q", tok)
		}
		s, ok := slot[id]
		if !ok {
			// dangling reference; validate reports it
			return -1, nil
		}
		return s, nil
	}
	for s, i := range order {
		r := raws[i]
		no, err := child(r.no)
		if err != nil {
			return err
		}
		yes, err := child(r.yes)
		if err != nil {
			return err
		}
		t.Nodes[s] = Node{Kind: Internal, Question: int32(r.question), No: no, Yes: yes}
	}
	p.set.Trees = append(p.set.Trees, t)
	return nil
}

// leaf parses a quoted leaf name and returns its 0-based PDF index.
func (p *parser) leaf(tok string) (int32, error) {
	name := unquote(tok)
	i := strings.LastIndexByte(name, '_')
	if i < 0 {
		return 0, p.errorf("leaf %q has no index", name)
	}
	n, err := strconv.Atoi(name[i+1:])
	if err != nil || n < 1 {
		return 0, p.errorf("bad leaf index in %q", name)
	}
	return int32(n - 1), nil
}

// fields splits a line on whitespace, keeping double-quoted strings and
// brace groups together.
func fields(line string) []string {
	var out []string
	var cur strings.Builder
	inQuote, depth := false, 0
	flush := func() {
		if cur.Len() > 0 {
			out = append(out, cur.String())
			cur.Reset()
		}
	}
	for _, r := range line {
		switch {
		case r == '"':
			inQuote = !inQuote
			cur.WriteRune(r)
		case inQuote:
			cur.WriteRune(r)
		case r == '{':
			depth++
			cur.WriteRune(r)
		case r == '}':
			depth--
			cur.WriteRune(r)
		case (r == ' ' || r == '\t') && depth == 0:
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return out
}

func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}
