package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func newTestLocal(t *testing.T) *Local {
	t.Helper()
	s, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestLocalReadWrite(t *testing.T) {
	s := newTestLocal(t)
	ctx := context.Background()

	if err := WriteFile(ctx, s, "voices/demo/voice.yaml", []byte("name: demo\n")); err != nil {
		t.Fatal(err)
	}
	got, err := ReadFile(ctx, s, "voices/demo/voice.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "name: demo\n" {
		t.Fatalf("got %q", got)
	}
	if _, err := os.Stat(filepath.Join(s.Root(), "voices", "demo", "voice.yaml")); err != nil {
		t.Fatalf("file not on disk: %v", err)
	}

	// Writing again truncates.
	if err := WriteFile(ctx, s, "voices/demo/voice.yaml", []byte("x")); err != nil {
		t.Fatal(err)
	}
	if got, _ := ReadFile(ctx, s, "voices/demo/voice.yaml"); string(got) != "x" {
		t.Fatalf("got %q after overwrite", got)
	}
}

func TestLocalReadNotExist(t *testing.T) {
	s := newTestLocal(t)
	if _, err := ReadFile(context.Background(), s, "missing.pdf"); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected os.ErrNotExist, got %v", err)
	}
}

func TestLocalExists(t *testing.T) {
	s := newTestLocal(t)
	ctx := context.Background()

	ok, err := s.Exists(ctx, "mgc.pdf")
	if err != nil || ok {
		t.Fatalf("Exists(missing) = %v, %v", ok, err)
	}
	if err := WriteFile(ctx, s, "mgc.pdf", nil); err != nil {
		t.Fatal(err)
	}
	ok, err = s.Exists(ctx, "mgc.pdf")
	if err != nil || !ok {
		t.Fatalf("Exists(present) = %v, %v", ok, err)
	}
}

func TestLocalList(t *testing.T) {
	s := newTestLocal(t)
	ctx := context.Background()
	for _, p := range []string{"b/voice.yaml", "a/voice.yaml", "a/mgc.pdf", "c.txt"} {
		if err := WriteFile(ctx, s, p, []byte(p)); err != nil {
			t.Fatal(err)
		}
	}

	all, err := s.List(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"a/mgc.pdf", "a/voice.yaml", "b/voice.yaml", "c.txt"}; !slices.Equal(all, want) {
		t.Errorf("List = %v, want %v", all, want)
	}
	sub, err := s.List(ctx, "a/")
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"a/mgc.pdf", "a/voice.yaml"}; !slices.Equal(sub, want) {
		t.Errorf("List(a/) = %v, want %v", sub, want)
	}
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, S3Config{})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := s.(*Local); !ok {
		t.Errorf("Open(dir) = %T", s)
	}

	s, err = Open("s3://voices/prod/en", S3Config{Region: "eu-west-1", Endpoint: "http://localhost:9000"})
	if err != nil {
		t.Fatal(err)
	}
	st, ok := s.(*S3Store)
	if !ok {
		t.Fatalf("Open(s3) = %T", s)
	}
	if st.bucket != "voices" || st.key("demo/voice.yaml") != "prod/en/demo/voice.yaml" {
		t.Errorf("bucket=%q key=%q", st.bucket, st.key("demo/voice.yaml"))
	}

	if _, err := Open("s3://", S3Config{}); err == nil {
		t.Error("expected error for missing bucket")
	}
}
