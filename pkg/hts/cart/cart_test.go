package cart

import (
	"errors"
	"strings"
	"testing"

	"github.com/haivivi/htsvoice/pkg/hts/feature"
)

func testDefinition(t *testing.T) *feature.Definition {
	t.Helper()
	def, err := feature.NewDefinition(feature.Spec{
		Phone: "phone",
		Byte: []feature.Categorical{
			{Name: "phone", Values: []string{"0", "_", "a", "e", "k", "t"}},
			{Name: "pos_in_syl", Values: []string{"0", "1", "2", "3", "4"}},
		},
		Continuous: []string{"unit_logf0"},
	})
	if err != nil {
		t.Fatalf("NewDefinition: %v", err)
	}
	return def
}

const testTrees = `
# three questions
QS "C-Vowel" phone in {a,e}
QS "Pos<=2"  pos_in_syl <= 2
QS "High"    unit_logf0 > 5.0

{*}[2]
{
   0 "C-Vowel" -1         -2
  -1 "Pos<=2"  "mgc_s2_1" "mgc_s2_2"
  -2 "High"    "mgc_s2_3" "mgc_s2_4"
}
{*}[3]
"mgc_s3_7"
`

func encode(t *testing.T, def *feature.Definition, values map[string]string) feature.Vector {
	t.Helper()
	v, err := def.Encode(values)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return v
}

func TestParseAndLookup(t *testing.T) {
	def := testDefinition(t)
	set, err := Parse(strings.NewReader(testTrees), def)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(set.Questions) != 3 || len(set.Trees) != 2 {
		t.Fatalf("questions=%d trees=%d", len(set.Questions), len(set.Trees))
	}

	tests := []struct {
		values map[string]string
		want   int
	}{
		{map[string]string{"phone": "k", "pos_in_syl": "1"}, 1},
		{map[string]string{"phone": "t", "pos_in_syl": "3"}, 0},
		{map[string]string{"phone": "a", "unit_logf0": "5.5"}, 3},
		{map[string]string{"phone": "e", "unit_logf0": "4.9"}, 2},
	}
	tr := set.Tree(2)
	for _, tt := range tests {
		v := encode(t, def, tt.values)
		if got := tr.Lookup(v); got != tt.want {
			t.Errorf("Lookup(%v) = %d, want %d", tt.values, got, tt.want)
		}
	}
	if got := set.Tree(3).Lookup(def.NewVector()); got != 6 {
		t.Errorf("single leaf tree = %d, want 6", got)
	}
	if tr.Depth() != 2 || tr.NumLeaves() != 4 || tr.MaxLeaf() != 3 {
		t.Errorf("depth=%d leaves=%d max=%d", tr.Depth(), tr.NumLeaves(), tr.MaxLeaf())
	}
}

func TestLookupDeterministic(t *testing.T) {
	def := testDefinition(t)
	set, err := Parse(strings.NewReader(testTrees), def)
	if err != nil {
		t.Fatal(err)
	}
	v := encode(t, def, map[string]string{"phone": "a", "pos_in_syl": "4", "unit_logf0": "6"})
	first := set.Tree(2).Lookup(v)
	for range 1000 {
		if got := set.Tree(2).Lookup(v); got != first {
			t.Fatalf("Lookup changed from %d to %d", first, got)
		}
	}
}

func TestNumericQuestionOnCategorical(t *testing.T) {
	def := testDefinition(t)
	src := `QS "Pos>=3" pos_in_syl >= 3
QS "IsT" phone == t
{*}[2]
{
 0 "Pos>=3" -1 "x_2"
 -1 "IsT" "x_1" "x_3"
}
`
	set, err := Parse(strings.NewReader(src), def)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if set.Questions[1].Op != OpIn {
		t.Errorf("non-numeric == should become a set test, got %v", set.Questions[1].Op)
	}
	tr := set.Tree(2)
	if got := tr.Lookup(encode(t, def, map[string]string{"pos_in_syl": "3"})); got != 1 {
		t.Errorf("pos 3 -> %d, want 1", got)
	}
	if got := tr.Lookup(encode(t, def, map[string]string{"phone": "t"})); got != 2 {
		t.Errorf("phone t -> %d, want 2", got)
	}
	if got := tr.Lookup(encode(t, def, map[string]string{"phone": "k"})); got != 0 {
		t.Errorf("phone k -> %d, want 0", got)
	}
}

func TestParseMalformed(t *testing.T) {
	def := testDefinition(t)
	tests := []struct {
		name string
		src  string
	}{
		{"dangling child", `QS "q" phone in {a}
{*}[2]
{
 0 "q" -3 "x_1"
}`},
		{"double reference", `QS "q" phone in {a}
{*}[2]
{
 0 "q" -1 -1
 -1 "q" "x_1" "x_2"
}`},
		{"unreachable", `QS "q" phone in {a}
{*}[2]
{
 0 "q" "x_1" "x_2"
 -1 "q" "x_3" "x_4"
}`},
		{"missing root", `QS "q" phone in {a}
{*}[2]
{
 -1 "q" "x_1" "x_2"
}`},
		{"undefined question", `{*}[2]
{
 0 "nope" "x_1" "x_2"
}`},
		{"bad leaf", `{*}[2]
"leaf"`},
		{"unterminated", `QS "q" phone in {a}
{*}[2]
{
 0 "q" "x_1" "x_2"
`},
		{"no trees", `QS "q" phone in {a}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.src), def)
			if !errors.Is(err, ErrMalformedTree) {
				t.Errorf("expected ErrMalformedTree, got %v", err)
			}
		})
	}
}

func TestParseUnknownValue(t *testing.T) {
	def := testDefinition(t)
	_, err := Parse(strings.NewReader(`QS "q" phone in {zz}
{*}[2]
"x_1"`), def)
	if !errors.Is(err, feature.ErrUnknownValue) {
		t.Errorf("expected ErrUnknownValue, got %v", err)
	}
	_, err = Parse(strings.NewReader(`QS "q" nope in {a}
{*}[2]
"x_1"`), def)
	if !errors.Is(err, feature.ErrUnknownFeature) {
		t.Errorf("expected ErrUnknownFeature, got %v", err)
	}
}
