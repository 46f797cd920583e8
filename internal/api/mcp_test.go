package api

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dochound/dochound/internal/catalog"
	"github.com/dochound/dochound/internal/classify"
	"github.com/dochound/dochound/internal/export"
)

// --- mocks ---

type mockMCPClassifier struct {
	byKeywordsFn func(ctx context.Context, records []catalog.Record, categories map[string]string) ([]classify.Assignment, error)
	byTopicFn    func(ctx context.Context, records []catalog.Record, topic string) ([]classify.Assignment, error)
}

func (m *mockMCPClassifier) ByKeywords(ctx context.Context, records []catalog.Record, categories map[string]string) ([]classify.Assignment, error) {
	return m.byKeywordsFn(ctx, records, categories)
}

func (m *mockMCPClassifier) ByTopic(ctx context.Context, records []catalog.Record, topic string) ([]classify.Assignment, error) {
	return m.byTopicFn(ctx, records, topic)
}

type mockMCPExporter struct {
	result export.Result
	err    error
}

func (m *mockMCPExporter) Export(_ context.Context, _ []catalog.Record) (export.Result, error) {
	return m.result, m.err
}

func makeCallToolRequest(name string, args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func makeReadResourceRequest(uri string) mcp.ReadResourceRequest {
	return mcp.ReadResourceRequest{
		Params: mcp.ReadResourceParams{
			URI: uri,
		},
	}
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) == 0 {
		t.Fatal("result has no content")
	}
	tc, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content is %T, want TextContent", res.Content[0])
	}
	return tc.Text
}

func TestMCPSearchFiles(t *testing.T) {
	deps := MCPDeps{Catalog: testCatalog(t)}
	handler := mcpSearchFiles(deps)

	res, err := handler(context.Background(), makeCallToolRequest("search_files", map[string]any{"query": "budget"}))
	if err != nil {
		t.Fatal(err)
	}
	if res.IsError {
		t.Fatalf("tool error: %s", resultText(t, res))
	}

	var records []catalog.Record
	if err := json.Unmarshal([]byte(resultText(t, res)), &records); err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Errorf("got %d records, want 2", len(records))
	}
}

func TestMCPSearchFilesMissingQuery(t *testing.T) {
	handler := mcpSearchFiles(MCPDeps{Catalog: testCatalog(t)})
	res, err := handler(context.Background(), makeCallToolRequest("search_files", nil))
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsError {
		t.Fatal("expected tool error for missing query")
	}
}

func TestMCPScanDirectory(t *testing.T) {
	cat := catalog.New(filePreview, nil)
	root := t.TempDir()
	deps := MCPDeps{Catalog: cat, ScanRoot: root}
	handler := mcpScanDirectory(deps)

	res, err := handler(context.Background(), makeCallToolRequest("scan_directory", nil))
	if err != nil {
		t.Fatal(err)
	}
	if res.IsError {
		t.Fatalf("tool error: %s", resultText(t, res))
	}
	if !strings.Contains(resultText(t, res), "Indexed 0 file(s)") {
		t.Errorf("text = %q", resultText(t, res))
	}
}

func TestMCPGetFileInfo(t *testing.T) {
	deps := MCPDeps{Catalog: testCatalog(t)}
	handler := mcpGetFileInfo(deps)

	res, err := handler(context.Background(), makeCallToolRequest("get_file_info", map[string]any{"filename": "budget.txt"}))
	if err != nil {
		t.Fatal(err)
	}
	var rec catalog.Record
	if err := json.Unmarshal([]byte(resultText(t, res)), &rec); err != nil {
		t.Fatal(err)
	}
	if rec.Filename != "budget.txt" {
		t.Errorf("record = %+v", rec)
	}

	res, _ = handler(context.Background(), makeCallToolRequest("get_file_info", map[string]any{"filename": "ghost.txt"}))
	if !res.IsError {
		t.Error("expected tool error for absent file")
	}
}

func TestMCPClassifyFiles(t *testing.T) {
	cat := testCatalog(t)
	classifier := &mockMCPClassifier{
		byKeywordsFn: func(_ context.Context, records []catalog.Record, _ map[string]string) ([]classify.Assignment, error) {
			var out []classify.Assignment
			for _, r := range records {
				out = append(out, classify.Assignment{Filename: r.Filename, Path: r.Path, Label: "A"})
			}
			return out, nil
		},
	}
	handler := mcpClassifyFiles(MCPDeps{Catalog: cat, Classifier: classifier})

	res, err := handler(context.Background(), makeCallToolRequest("classify_files", nil))
	if err != nil {
		t.Fatal(err)
	}
	var assignments []classify.Assignment
	if err := json.Unmarshal([]byte(resultText(t, res)), &assignments); err != nil {
		t.Fatal(err)
	}
	if len(assignments) != 2 {
		t.Errorf("assignments = %+v", assignments)
	}
}

func TestMCPClassifyFilesEmptyCatalog(t *testing.T) {
	handler := mcpClassifyFiles(MCPDeps{Catalog: catalog.New(filePreview, nil)})
	res, _ := handler(context.Background(), makeCallToolRequest("classify_files", nil))
	if !res.IsError {
		t.Fatal("expected tool error for empty catalog")
	}
}

func TestMCPClassifyByTopicNoMatches(t *testing.T) {
	classifier := &mockMCPClassifier{
		byTopicFn: func(_ context.Context, _ []catalog.Record, _ string) ([]classify.Assignment, error) {
			return nil, nil
		},
	}
	handler := mcpClassifyByTopic(MCPDeps{Catalog: testCatalog(t), Classifier: classifier})

	res, err := handler(context.Background(), makeCallToolRequest("classify_files_by_topic", map[string]any{"topic": "astronomy"}))
	if err != nil {
		t.Fatal(err)
	}
	if res.IsError || !strings.Contains(resultText(t, res), "No files are about") {
		t.Errorf("text = %q", resultText(t, res))
	}
}

func TestMCPExportMetadata(t *testing.T) {
	exporter := &mockMCPExporter{result: export.Result{Sent: 2}}
	handler := mcpExportMetadata(MCPDeps{Catalog: testCatalog(t), Exporter: exporter})

	res, err := handler(context.Background(), makeCallToolRequest("export_metadata", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resultText(t, res) != "Exported 2 record(s)." {
		t.Errorf("text = %q", resultText(t, res))
	}
}

func TestMCPExportNoSink(t *testing.T) {
	handler := mcpExportMetadata(MCPDeps{Catalog: testCatalog(t)})
	res, _ := handler(context.Background(), makeCallToolRequest("export_metadata", nil))
	if !res.IsError {
		t.Fatal("expected tool error without a configured sink")
	}
}

func TestMCPExportFailure(t *testing.T) {
	exporter := &mockMCPExporter{err: errors.New("sink unreachable")}
	handler := mcpExportMetadata(MCPDeps{Catalog: testCatalog(t), Exporter: exporter})
	res, _ := handler(context.Background(), makeCallToolRequest("export_metadata", nil))
	if !res.IsError {
		t.Fatal("expected tool error when export fails")
	}
}

func TestMCPResourceCatalog(t *testing.T) {
	deps := MCPDeps{Catalog: testCatalog(t)}
	handler := mcpResourceCatalog(deps)

	contents, err := handler(context.Background(), makeReadResourceRequest("catalog://files"))
	if err != nil {
		t.Fatal(err)
	}
	if len(contents) != 1 {
		t.Fatalf("got %d contents", len(contents))
	}
	text := contents[0].(mcp.TextResourceContents).Text
	var records []catalog.Record
	if err := json.Unmarshal([]byte(text), &records); err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Errorf("catalog resource has %d records", len(records))
	}
}

func TestNewMCPServerRegisters(t *testing.T) {
	s := NewMCPServer(MCPDeps{Catalog: catalog.New(filePreview, nil)})
	if s == nil {
		t.Fatal("NewMCPServer returned nil")
	}
}
