package catalog

import (
	"os"
	"path/filepath"
	"testing"
)

type previewFunc func(path string) string

func (f previewFunc) Preview(path string) string { return f(path) }

// filePreview reads the file directly so tests do not depend on the real
// extractor's format handling.
var filePreview = previewFunc(func(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return string(data)
})

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func scanDir(t *testing.T, c *Catalog, root string) []Record {
	t.Helper()
	recs, err := c.Scan(root, false)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	return recs
}

func TestScanIndexesSupportedExtensions(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "alpha")
	writeFile(t, dir, "b.txt", "beta")
	writeFile(t, dir, "c.pdf", "%PDF-1.4")
	writeFile(t, dir, "ignore.jpg", "binary")
	writeFile(t, dir, "ignore.csv", "x,y")

	c := New(filePreview, nil)
	recs := scanDir(t, c, dir)

	if len(recs) != 3 {
		t.Fatalf("indexed %d records, want 3", len(recs))
	}
	if c.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", c.Len())
	}
}

func TestScanRecordFields(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "report.txt", "quarterly report")

	c := New(filePreview, nil)
	scanDir(t, c, dir)

	rec, ok := c.Get(path)
	if !ok {
		t.Fatalf("record for %s not found", path)
	}
	if rec.Filename != "report.txt" {
		t.Errorf("Filename = %q", rec.Filename)
	}
	if rec.FileType != ".txt" {
		t.Errorf("FileType = %q", rec.FileType)
	}
	if rec.SizeBytes != int64(len("quarterly report")) {
		t.Errorf("SizeBytes = %d", rec.SizeBytes)
	}
	if rec.Preview != "quarterly report" {
		t.Errorf("Preview = %q", rec.Preview)
	}
	if rec.Label != LabelUnclassified {
		t.Errorf("Label = %q, want %q", rec.Label, LabelUnclassified)
	}
}

func TestScanRecursesSubdirectories(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "nested", "deep")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, dir, "top.txt", "top")
	writeFile(t, sub, "bottom.txt", "bottom")

	c := New(filePreview, nil)
	if recs := scanDir(t, c, dir); len(recs) != 2 {
		t.Fatalf("indexed %d records, want 2", len(recs))
	}
}

func TestScanMissingRoot(t *testing.T) {
	c := New(filePreview, nil)
	if _, err := c.Scan(filepath.Join(t.TempDir(), "absent"), false); err == nil {
		t.Fatal("expected error for missing root")
	}
	if c.Len() != 0 {
		t.Fatalf("failed scan mutated catalog, Len() = %d", c.Len())
	}
}

func TestScanReplacesByDefault(t *testing.T) {
	dirA := t.TempDir()
	dirB := t.TempDir()
	writeFile(t, dirA, "first.txt", "one")
	writeFile(t, dirB, "second.txt", "two")

	c := New(filePreview, nil)
	scanDir(t, c, dirA)
	scanDir(t, c, dirB)

	if c.Len() != 1 {
		t.Fatalf("Len() = %d after replace scan, want 1", c.Len())
	}
	if got := c.Search("first"); len(got) != 0 {
		t.Fatalf("stale record survived replace scan: %+v", got)
	}
}

func TestScanMergeKeepsPriorRecords(t *testing.T) {
	dirA := t.TempDir()
	dirB := t.TempDir()
	writeFile(t, dirA, "first.txt", "one")
	writeFile(t, dirB, "second.txt", "two")

	c := New(filePreview, nil)
	scanDir(t, c, dirA)
	if _, err := c.Scan(dirB, true); err != nil {
		t.Fatalf("merge scan: %v", err)
	}

	if c.Len() != 2 {
		t.Fatalf("Len() = %d after merge scan, want 2", c.Len())
	}
}

func TestScanMergePreservesLabelReset(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "doc.txt", "content")

	c := New(filePreview, nil)
	scanDir(t, c, dir)
	c.SetLabel(path, "A")

	// Rescanning the same path rebuilds the record from disk, so the label
	// reverts to unclassified even under merge.
	if _, err := c.Scan(dir, true); err != nil {
		t.Fatal(err)
	}
	rec, _ := c.Get(path)
	if rec.Label != LabelUnclassified {
		t.Fatalf("Label = %q after rescan, want %q", rec.Label, LabelUnclassified)
	}
}

func TestSearch(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "budget.txt", "Q1 budget planning")
	writeFile(t, dir, "notes.txt", "general notes about budget")

	c := New(filePreview, nil)
	scanDir(t, c, dir)

	tests := []struct {
		query string
		want  []string
	}{
		{"budget", []string{"budget.txt", "notes.txt"}},
		{"Q1", []string{"budget.txt"}},
		{"BUDGET", []string{"budget.txt", "notes.txt"}},
		{"xyz", nil},
	}
	for _, tt := range tests {
		got := c.Search(tt.query)
		if len(got) != len(tt.want) {
			t.Errorf("Search(%q) returned %d records, want %d", tt.query, len(got), len(tt.want))
			continue
		}
		for i, rec := range got {
			if rec.Filename != tt.want[i] {
				t.Errorf("Search(%q)[%d] = %q, want %q", tt.query, i, rec.Filename, tt.want[i])
			}
		}
	}
}

func TestByCategory(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "plan.txt", "plan")
	b := writeFile(t, dir, "ad.txt", "ad")
	writeFile(t, dir, "misc.txt", "misc")

	c := New(filePreview, nil)
	scanDir(t, c, dir)
	c.SetLabel(a, "A")
	c.SetLabel(b, "B")

	if got := c.ByCategory("A"); len(got) != 1 || got[0].Filename != "plan.txt" {
		t.Fatalf("ByCategory(A) = %+v", got)
	}
	if got := c.ByCategory("unclassified"); len(got) != 1 || got[0].Filename != "misc.txt" {
		t.Fatalf("ByCategory(unclassified) = %+v", got)
	}
	if got := c.ByCategory("Z"); len(got) != 0 {
		t.Fatalf("ByCategory(Z) = %+v", got)
	}
}

func TestSetLabelUnknownPath(t *testing.T) {
	c := New(filePreview, nil)
	if c.SetLabel("/no/such/file.txt", "A") {
		t.Fatal("SetLabel reported success for unknown path")
	}
}

func TestGetByFilename(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "Marketing-2025.txt", "campaign")

	c := New(filePreview, nil)
	scanDir(t, c, dir)

	if _, ok := c.GetByFilename("marketing-2025.txt"); !ok {
		t.Fatal("case-insensitive filename lookup failed")
	}
	if _, ok := c.GetByFilename("absent.txt"); ok {
		t.Fatal("lookup of absent filename succeeded")
	}
}

func TestCustomExtensions(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "keep.md", "markdown")
	writeFile(t, dir, "skip.txt", "text")

	c := New(filePreview, []string{".md"})
	recs := scanDir(t, c, dir)

	if len(recs) != 1 || recs[0].Filename != "keep.md" {
		t.Fatalf("custom extension scan = %+v", recs)
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "doc.txt", "content")

	c := New(filePreview, nil)
	scanDir(t, c, dir)

	snap := c.Snapshot()
	snap[0].Label = "mutated"

	rec, _ := c.Get(path)
	if rec.Label != LabelUnclassified {
		t.Fatal("mutating snapshot leaked into catalog")
	}
}
