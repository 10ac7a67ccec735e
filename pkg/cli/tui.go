package cli

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Theme defines the colors of styled output.
type Theme struct {
	Primary lipgloss.Color
	Dim     lipgloss.Color
}

// DefaultTheme is the default bright green theme.
var DefaultTheme = Theme{
	Primary: lipgloss.Color("#00ff9f"),
	Dim:     lipgloss.Color("#6e7681"),
}

// Styles holds all styles derived from a theme.
type Styles struct {
	Title  lipgloss.Style
	Label  lipgloss.Style
	Key    lipgloss.Style
	Border lipgloss.Style
}

// NewStyles creates styles from a theme.
func NewStyles(t Theme) Styles {
	return Styles{
		Title:  lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		Label:  lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		Key:    lipgloss.NewStyle().Foreground(t.Dim),
		Border: lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(t.Primary).Padding(0, 1),
	}
}

// Row is one key/value line of a section.
type Row struct {
	Key   string
	Value string
}

// Section is a labeled group of rows.
type Section struct {
	Label string
	Rows  []Row
}

// Summary is a boxed report: a title and sections of aligned rows.
type Summary struct {
	Styles   Styles
	Title    string
	Sections []Section
}

// Render lays the summary out. Values longer than width are truncated; a
// width of 0 means no limit.
func (s Summary) Render(width int) string {
	keyWidth := 0
	for _, sec := range s.Sections {
		for _, r := range sec.Rows {
			keyWidth = max(keyWidth, lipgloss.Width(r.Key))
		}
	}

	var lines []string
	lines = append(lines, s.Styles.Title.Render(s.Title))
	for _, sec := range s.Sections {
		lines = append(lines, "", s.Styles.Label.Render(sec.Label))
		for _, r := range sec.Rows {
			key := r.Key + strings.Repeat(" ", keyWidth-lipgloss.Width(r.Key))
			value := r.Value
			if avail := width - keyWidth - 8; width > 0 && avail > 1 && lipgloss.Width(value) > avail {
				value = truncateString(value, avail-1) + "…"
			}
			lines = append(lines, "  "+s.Styles.Key.Render(key)+"  "+value)
		}
	}
	return s.Styles.Border.Render(strings.Join(lines, "\n"))
}

// truncateString cuts s to at most width display cells.
func truncateString(s string, width int) string {
	if width <= 0 {
		return ""
	}
	runes := []rune(s)
	w := 0
	for i, r := range runes {
		rw := lipgloss.Width(string(r))
		if w+rw > width {
			return string(runes[:i])
		}
		w += rw
	}
	return s
}
