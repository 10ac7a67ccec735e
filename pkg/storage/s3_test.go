package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

type apiError struct {
	code string
}

func (e *apiError) Error() string                 { return e.code }
func (e *apiError) ErrorCode() string             { return e.code }
func (e *apiError) ErrorMessage() string          { return e.code }
func (e *apiError) ErrorFault() smithy.ErrorFault { return smithy.FaultClient }

// mockS3 keeps objects in memory. pageSize bounds ListObjectsV2 pages.
type mockS3 struct {
	mu       sync.Mutex
	objects  map[string][]byte
	pageSize int

	getErr error
	putErr error
}

func newMockS3() *mockS3 {
	return &mockS3{objects: make(map[string][]byte), pageSize: 2}
}

func (m *mockS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[*in.Key]
	if !ok {
		return nil, &apiError{code: "NoSuchKey"}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (m *mockS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if m.putErr != nil {
		return nil, m.putErr
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[*in.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[*in.Key]; !ok {
		return nil, &apiError{code: "NotFound"}
	}
	return &s3.HeadObjectOutput{}, nil
}

func (m *mockS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for k := range m.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) && k > aws.ToString(in.ContinuationToken) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	out := &s3.ListObjectsV2Output{}
	if len(keys) > m.pageSize {
		keys = keys[:m.pageSize]
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String(keys[len(keys)-1])
	}
	for _, k := range keys {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	return out, nil
}

func TestS3ReadWrite(t *testing.T) {
	mock := newMockS3()
	s := NewS3(mock, "voices", "/prod/")
	ctx := context.Background()

	if err := WriteFile(ctx, s, "demo/voice.yaml", []byte("name: demo")); err != nil {
		t.Fatal(err)
	}
	if _, ok := mock.objects["prod/demo/voice.yaml"]; !ok {
		t.Fatalf("objects = %v", mock.objects)
	}
	got, err := ReadFile(ctx, s, "demo/voice.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "name: demo" {
		t.Fatalf("got %q", got)
	}
}

func TestS3ReadErrors(t *testing.T) {
	mock := newMockS3()
	s := NewS3(mock, "voices", "")
	ctx := context.Background()

	if _, err := s.Read(ctx, "missing"); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected os.ErrNotExist, got %v", err)
	}
	mock.getErr = errors.New("network timeout")
	_, err := s.Read(ctx, "x")
	if err == nil || errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected a plain error, got %v", err)
	}
}

func TestS3Exists(t *testing.T) {
	mock := newMockS3()
	mock.objects["dur.pdf"] = []byte("HTSP")
	s := NewS3(mock, "voices", "")
	ctx := context.Background()

	if ok, err := s.Exists(ctx, "dur.pdf"); err != nil || !ok {
		t.Errorf("Exists(dur.pdf) = %v, %v", ok, err)
	}
	if ok, err := s.Exists(ctx, "lf0.pdf"); err != nil || ok {
		t.Errorf("Exists(lf0.pdf) = %v, %v", ok, err)
	}
}

func TestS3WriteUploadError(t *testing.T) {
	mock := newMockS3()
	mock.putErr = errors.New("upload failed")
	s := NewS3(mock, "voices", "")

	w, err := s.Write(context.Background(), "obj")
	if err != nil {
		t.Fatal(err)
	}
	io.WriteString(w, "data")
	if err := w.Close(); err == nil || err.Error() != "upload failed" {
		t.Fatalf("Close = %v, want upload failed", err)
	}
}

func TestS3List(t *testing.T) {
	mock := newMockS3()
	for _, k := range []string{"prod/a/voice.yaml", "prod/a/mgc.pdf", "prod/b/voice.yaml", "prod/c/voice.yaml", "dev/x/voice.yaml"} {
		mock.objects[k] = nil
	}
	s := NewS3(mock, "voices", "prod")

	got, err := s.List(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"a/mgc.pdf", "a/voice.yaml", "b/voice.yaml", "c/voice.yaml"}
	if !slices.Equal(got, want) {
		t.Errorf("List = %v, want %v", got, want)
	}
}

func TestIsS3NotFound(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{&apiError{code: "NoSuchKey"}, true},
		{&apiError{code: "NotFound"}, true},
		{&apiError{code: "AccessDenied"}, false},
		{errors.New("timeout"), false},
		{nil, false},
	}
	for _, tt := range tests {
		if got := isS3NotFound(tt.err); got != tt.want {
			t.Errorf("isS3NotFound(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
