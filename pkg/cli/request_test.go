package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type request struct {
	Voice string              `json:"voice" yaml:"voice"`
	Units []map[string]string `json:"units" yaml:"units"`
}

func TestLoadRequest(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"req.yaml": "voice: xx/test\nunits:\n  - phone: a\n",
		"req.json": `{"voice": "xx/test", "units": [{"phone": "a"}]}`,
		"req.txt":  `{"voice": "xx/test", "units": [{"phone": "a"}]}`,
	}
	for name, body := range files {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(body), 0644); err != nil {
			t.Fatal(err)
		}
		var req request
		if err := LoadRequest(path, &req); err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if req.Voice != "xx/test" || len(req.Units) != 1 || req.Units[0]["phone"] != "a" {
			t.Errorf("%s: got %+v", name, req)
		}
	}
}

func TestParseRequestErrors(t *testing.T) {
	var req request
	if err := ParseRequest([]byte("{"), "bad.json", &req); err == nil {
		t.Error("bad JSON accepted")
	}
	if err := ParseRequest([]byte("voice: [unclosed"), "bad.yaml", &req); err == nil {
		t.Error("bad YAML accepted")
	}
	if err := LoadRequest(filepath.Join(t.TempDir(), "missing.yaml"), &req); err == nil {
		t.Error("missing file accepted")
	}
}

func TestReadRequest(t *testing.T) {
	var req request
	if err := ReadRequest(strings.NewReader("voice: xx/test\n"), &req); err != nil {
		t.Fatal(err)
	}
	if req.Voice != "xx/test" {
		t.Errorf("got %+v", req)
	}
}
