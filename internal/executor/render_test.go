package executor

import (
	"strings"
	"testing"

	"github.com/dochound/dochound/internal/catalog"
	"github.com/dochound/dochound/internal/classify"
	"github.com/dochound/dochound/internal/export"
)

func TestContextLatest(t *testing.T) {
	c := NewContext()
	c.Set(KeyScanResults, "scan")
	c.Set(KeyClassifyResults, "classify")
	c.Set(KeySearchResults, "search")

	key, val, ok := c.Latest(KeyClassifyResults, KeyScanResults, KeySearchResults)
	if !ok || key != KeySearchResults || val != "search" {
		t.Fatalf("Latest = %q, %v, %v", key, val, ok)
	}

	if _, _, ok := c.Latest(KeyTopicResults); ok {
		t.Fatal("Latest reported a value for an unset key")
	}
}

func TestContextReset(t *testing.T) {
	c := NewContext()
	c.Set(KeySearchKeyword, "budget")
	c.Reset()
	if c.Has(KeySearchKeyword) {
		t.Fatal("value survived Reset")
	}
}

func TestRenderSearch(t *testing.T) {
	out := Render(success(SearchData{
		Keyword: "budget",
		Records: []catalog.Record{
			{Filename: "budget.txt", FileType: ".txt", SizeBytes: 18, Label: "A"},
			{Filename: "notes.txt", FileType: ".txt", SizeBytes: 26, Label: "unclassified"},
		},
	}))
	if !strings.Contains(out, `Found 2 file(s) matching "budget"`) {
		t.Errorf("out = %q", out)
	}
	if !strings.Contains(out, "- budget.txt (.txt, 18 bytes, label: A)") {
		t.Errorf("out = %q", out)
	}
}

func TestRenderSearchEmpty(t *testing.T) {
	out := Render(success(SearchData{Keyword: "xyz"}))
	if out != `No files match "xyz".` {
		t.Errorf("out = %q", out)
	}
}

func TestRenderScan(t *testing.T) {
	out := Render(success(ScanData{
		Root:    "/corpus",
		Records: make([]catalog.Record, 3),
		ByLabel: map[string]int{"unclassified": 3},
	}))
	if !strings.Contains(out, "Indexed 3 file(s) under /corpus") {
		t.Errorf("out = %q", out)
	}
	if !strings.Contains(out, "- unclassified: 3") {
		t.Errorf("out = %q", out)
	}
}

func TestRenderClassifyByTopic(t *testing.T) {
	out := Render(success(ClassifyData{
		Topic:       "finance",
		Assignments: []classify.Assignment{{Filename: "budget.txt", Label: "finance"}},
	}))
	if !strings.Contains(out, `1 file(s) are about "finance"`) || !strings.Contains(out, "- budget.txt") {
		t.Errorf("out = %q", out)
	}
}

func TestRenderExportPartial(t *testing.T) {
	out := Render(success(ExportData{Result: export.Result{Sent: 2, Failed: 1}}))
	if out != "Exported 2 record(s), 1 failed." {
		t.Errorf("out = %q", out)
	}
}

func TestRenderFailureWithMissingData(t *testing.T) {
	out := Render(failure("no results available to export", "export_data"))
	if !strings.Contains(out, "no results available to export") || !strings.Contains(out, "export_data") {
		t.Errorf("out = %q", out)
	}
}
