package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bytedance/sonic"
	"gopkg.in/yaml.v3"
)

// LoadRequest loads a request from a YAML or JSON file into v. The path
// "-" reads stdin.
func LoadRequest(path string, v any) error {
	if path == "-" {
		return ReadRequest(os.Stdin, v)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	return ParseRequest(data, path, v)
}

// ParseRequest parses request data based on file extension or content
func ParseRequest(data []byte, filename string, v any) error {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, v); err != nil {
			return fmt.Errorf("failed to parse YAML: %w", err)
		}
	case ".json":
		if err := sonic.Unmarshal(data, v); err != nil {
			return fmt.Errorf("failed to parse JSON: %w", err)
		}
	default:
		// JSON is a subset of YAML, so YAML covers both.
		if err := yaml.Unmarshal(data, v); err != nil {
			return fmt.Errorf("failed to parse %s (tried YAML and JSON): %w", filename, err)
		}
	}
	return nil
}

// ReadRequest decodes a YAML or JSON request from r.
func ReadRequest(r io.Reader, v any) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read request: %w", err)
	}
	return ParseRequest(data, "", v)
}
