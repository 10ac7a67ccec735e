package cli

import (
	"strings"
	"testing"
)

func TestSummaryRender(t *testing.T) {
	s := Summary{
		Styles: NewStyles(DefaultTheme),
		Title:  "xx/test",
		Sections: []Section{
			{Label: "Voice", Rows: []Row{{"sample rate", "16000"}, {"alpha", "0.42"}}},
			{Label: "Streams", Rows: []Row{{"mgc", strings.Repeat("x", 200)}}},
		},
	}
	out := s.Render(60)
	for _, want := range []string{"xx/test", "Voice", "sample rate", "16000", "Streams", "…"} {
		if !strings.Contains(out, want) {
			t.Errorf("output lacks %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, strings.Repeat("x", 200)) {
		t.Error("long value not truncated")
	}
}

func TestTruncateString(t *testing.T) {
	tests := []struct {
		s     string
		width int
		want  string
	}{
		{"hello", 10, "hello"},
		{"hello", 3, "hel"},
		{"你好世界", 4, "你好"},
		{"abc", 0, ""},
	}
	for _, tt := range tests {
		if got := truncateString(tt.s, tt.width); got != tt.want {
			t.Errorf("truncateString(%q, %d) = %q, want %q", tt.s, tt.width, got, tt.want)
		}
	}
}
