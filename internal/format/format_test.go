package format

import (
	"bytes"
	"testing"
)

type sample struct {
	ID     uint64 `json:"id" yaml:"id"`
	Class  string `json:"class" yaml:"class"`
	Offset uint64 `json:"offset" yaml:"offset"`
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	if err := (JSONFormatter{}).Write(&buf, sample{ID: 3, Class: "vertex", Offset: 640000}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got, want := buf.String(), "{\"id\":3,\"class\":\"vertex\",\"offset\":640000}\n"; got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}

	buf.Reset()
	if err := (JSONFormatter{Indent: true}).Write(&buf, map[string]int{"a": 1}); err != nil {
		t.Fatalf("write indented: %v", err)
	}
	if got, want := buf.String(), "{\n  \"a\": 1\n}\n"; got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestYAMLFormatter(t *testing.T) {
	var buf bytes.Buffer
	if err := (YAMLFormatter{}).Write(&buf, sample{ID: 3, Class: "texture", Offset: 0}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got, want := buf.String(), "id: 3\nclass: texture\noffset: 0\n"; got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}
