package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/dochound/dochound/internal/catalog"
	"github.com/dochound/dochound/internal/executor"
	"github.com/dochound/dochound/internal/storage"
)

type previewFunc func(path string) string

func (f previewFunc) Preview(path string) string { return f(path) }

var filePreview = previewFunc(func(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return string(data)
})

type mockProcessor struct {
	outcome *executor.Outcome
	err     error
}

func (m *mockProcessor) Process(_ context.Context, _ string) (*executor.Outcome, error) {
	return m.outcome, m.err
}

type mockFeedback struct {
	entries []string
}

func (m *mockFeedback) Append(entry string) error {
	if entry == "" {
		return errors.New("empty entry")
	}
	m.entries = append(m.entries, entry)
	return nil
}

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	dir := t.TempDir()
	for name, content := range map[string]string{
		"budget.txt": "Q1 budget",
		"notes.txt":  "no budget here",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	c := catalog.New(filePreview, nil)
	if _, err := c.Scan(dir, false); err != nil {
		t.Fatal(err)
	}
	return c
}

func doRequest(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	h := NewHandler(AppDeps{Catalog: catalog.New(filePreview, nil)})
	rec := doRequest(t, h, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestAsk(t *testing.T) {
	proc := &mockProcessor{outcome: &executor.Outcome{Completed: true, Message: "Completed 1 step(s).", Steps: 1, Succeeded: 1}}
	h := NewHandler(AppDeps{Processor: proc, Catalog: testCatalog(t)})

	rec := doRequest(t, h, http.MethodPost, "/ask", map[string]string{"message": "scan my documents"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var outcome executor.Outcome
	if err := json.Unmarshal(rec.Body.Bytes(), &outcome); err != nil {
		t.Fatal(err)
	}
	if !outcome.Completed || outcome.Message != "Completed 1 step(s)." {
		t.Errorf("outcome = %+v", outcome)
	}
}

func TestAskMissingMessage(t *testing.T) {
	h := NewHandler(AppDeps{Processor: &mockProcessor{}, Catalog: testCatalog(t)})
	rec := doRequest(t, h, http.MethodPost, "/ask", map[string]string{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestAskProcessorError(t *testing.T) {
	proc := &mockProcessor{err: errors.New("planning: model offline")}
	h := NewHandler(AppDeps{Processor: proc, Catalog: testCatalog(t)})
	rec := doRequest(t, h, http.MethodPost, "/ask", map[string]string{"message": "hi"})
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestScanEndpoint(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("alpha"), 0o644); err != nil {
		t.Fatal(err)
	}
	cat := catalog.New(filePreview, nil)
	h := NewHandler(AppDeps{Catalog: cat})

	rec := doRequest(t, h, http.MethodPost, "/scan", map[string]any{"directory": dir})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Indexed int `json:"indexed"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Indexed != 1 {
		t.Errorf("indexed = %d", resp.Indexed)
	}
}

func TestScanMissingDirectory(t *testing.T) {
	h := NewHandler(AppDeps{Catalog: catalog.New(filePreview, nil)})
	rec := doRequest(t, h, http.MethodPost, "/scan", map[string]any{"directory": filepath.Join(t.TempDir(), "absent")})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestSearchEndpoint(t *testing.T) {
	h := NewHandler(AppDeps{Catalog: testCatalog(t)})

	rec := doRequest(t, h, http.MethodGet, "/search?q=budget", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var records []catalog.Record
	json.Unmarshal(rec.Body.Bytes(), &records)
	if len(records) != 2 {
		t.Errorf("got %d records, want 2", len(records))
	}

	if rec := doRequest(t, h, http.MethodGet, "/search", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("missing q: status = %d", rec.Code)
	}
}

func TestCatalogEndpoints(t *testing.T) {
	cat := testCatalog(t)
	h := NewHandler(AppDeps{Catalog: cat})

	rec := doRequest(t, h, http.MethodGet, "/catalog", nil)
	var records []catalog.Record
	json.Unmarshal(rec.Body.Bytes(), &records)
	if len(records) != 2 {
		t.Fatalf("catalog listing = %d records", len(records))
	}

	rec = doRequest(t, h, http.MethodGet, "/catalog/file?name=budget.txt", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var one catalog.Record
	json.Unmarshal(rec.Body.Bytes(), &one)
	if one.Filename != "budget.txt" {
		t.Errorf("record = %+v", one)
	}

	if rec := doRequest(t, h, http.MethodGet, "/catalog/file?name=ghost.txt", nil); rec.Code != http.StatusNotFound {
		t.Errorf("ghost lookup: status = %d", rec.Code)
	}
}

func TestCatalogByLabel(t *testing.T) {
	cat := testCatalog(t)
	for _, r := range cat.Snapshot() {
		if r.Filename == "budget.txt" {
			cat.SetLabel(r.Path, "A")
		}
	}
	h := NewHandler(AppDeps{Catalog: cat})

	rec := doRequest(t, h, http.MethodGet, "/catalog?label=A", nil)
	var records []catalog.Record
	json.Unmarshal(rec.Body.Bytes(), &records)
	if len(records) != 1 || records[0].Filename != "budget.txt" {
		t.Errorf("records = %+v", records)
	}
}

func TestFeedbackEndpoint(t *testing.T) {
	fb := &mockFeedback{}
	h := NewHandler(AppDeps{Catalog: testCatalog(t), Feedback: fb})

	rec := doRequest(t, h, http.MethodPost, "/feedback", map[string]string{"entry": "answer in Vietnamese"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(fb.entries) != 1 || fb.entries[0] != "answer in Vietnamese" {
		t.Errorf("entries = %v", fb.entries)
	}

	if rec := doRequest(t, h, http.MethodPost, "/feedback", map[string]string{}); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("empty entry: status = %d", rec.Code)
	}
}

func TestInteractionsEndpoint(t *testing.T) {
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	if err := store.RecordInteraction(context.Background(), "scan", "done", true); err != nil {
		t.Fatal(err)
	}

	h := NewHandler(AppDeps{Catalog: testCatalog(t), Store: store})
	rec := doRequest(t, h, http.MethodGet, "/interactions?limit=5", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var interactions []storage.Interaction
	json.Unmarshal(rec.Body.Bytes(), &interactions)
	if len(interactions) != 1 || interactions[0].Utterance != "scan" {
		t.Errorf("interactions = %+v", interactions)
	}
}

func TestInteractionsDisabled(t *testing.T) {
	h := NewHandler(AppDeps{Catalog: testCatalog(t)})
	if rec := doRequest(t, h, http.MethodGet, "/interactions", nil); rec.Code != http.StatusNotFound {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestBearerAuth(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := BearerAuth("secret")(inner)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no token: status = %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong token: status = %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("valid token: status = %d", rec.Code)
	}
}
