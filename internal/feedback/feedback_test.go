package feedback

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestAppendAndRead(t *testing.T) {
	l := NewLog(filepath.Join(t.TempDir(), "feedback.txt"))

	if err := l.Append("prefer Vietnamese summaries"); err != nil {
		t.Fatal(err)
	}
	if err := l.Append("always scan Documents first"); err != nil {
		t.Fatal(err)
	}

	got, err := l.Read()
	if err != nil {
		t.Fatal(err)
	}
	want := "prefer Vietnamese summaries\nalways scan Documents first\n"
	if got != want {
		t.Errorf("Read() = %q, want %q", got, want)
	}
}

func TestReadMissingFile(t *testing.T) {
	l := NewLog(filepath.Join(t.TempDir(), "absent", "feedback.txt"))
	got, err := l.Read()
	if err != nil {
		t.Fatalf("Read on missing file: %v", err)
	}
	if got != "" {
		t.Errorf("Read() = %q, want empty", got)
	}
}

func TestAppendCreatesParentDir(t *testing.T) {
	l := NewLog(filepath.Join(t.TempDir(), "nested", "dir", "feedback.txt"))
	if err := l.Append("entry"); err != nil {
		t.Fatal(err)
	}
	got, _ := l.Read()
	if got != "entry\n" {
		t.Errorf("Read() = %q", got)
	}
}

func TestAppendFlattensNewlines(t *testing.T) {
	l := NewLog(filepath.Join(t.TempDir(), "feedback.txt"))
	if err := l.Append("first line\nsecond  line"); err != nil {
		t.Fatal(err)
	}
	got, _ := l.Read()
	if strings.Count(got, "\n") != 1 {
		t.Errorf("entry spans multiple lines: %q", got)
	}
	if !strings.Contains(got, "first line second line") {
		t.Errorf("Read() = %q", got)
	}
}

func TestAppendRejectsEmpty(t *testing.T) {
	l := NewLog(filepath.Join(t.TempDir(), "feedback.txt"))
	if err := l.Append("   "); err == nil {
		t.Fatal("expected error for blank entry")
	}
}
