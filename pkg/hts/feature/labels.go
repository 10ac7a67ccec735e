package feature

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ParseLine parses a whitespace separated list of name=value tokens.
func ParseLine(line string) (map[string]string, error) {
	values := make(map[string]string)
	for _, tok := range strings.Fields(line) {
		name, value, ok := strings.Cut(tok, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("feature: malformed token %q", tok)
		}
		values[name] = value
	}
	return values, nil
}

// ReadLabels reads one unit per line in the name=value format of ParseLine.
// Blank lines and lines starting with '#' are skipped.
func (d *Definition) ReadLabels(r io.Reader) ([]Vector, error) {
	var out []Vector
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		values, err := ParseLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		v, err := d.Encode(values)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		out = append(out, v)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// EncodeAll encodes loosely typed unit records such as those decoded from
// YAML or JSON request files. Non-string values are formatted with their
// natural representation.
func (d *Definition) EncodeAll(units []map[string]any) ([]Vector, error) {
	out := make([]Vector, 0, len(units))
	for i, u := range units {
		values := make(map[string]string, len(u))
		for name, raw := range u {
			values[name] = formatValue(raw)
		}
		v, err := d.Encode(values)
		if err != nil {
			return nil, fmt.Errorf("unit %d: %w", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func formatValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case nil:
		return ""
	}
	return fmt.Sprint(v)
}
