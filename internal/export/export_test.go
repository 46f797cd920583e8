package export

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dochound/dochound/internal/catalog"
)

func records(names ...string) []catalog.Record {
	var out []catalog.Record
	for _, n := range names {
		out = append(out, catalog.Record{
			Filename:  n,
			Path:      "/corpus/" + n,
			FileType:  ".txt",
			SizeBytes: 42,
			Preview:   "preview of " + n,
			Label:     "A",
		})
	}
	return out
}

func TestExportSendsOneRequestPerRecord(t *testing.T) {
	var got []Record
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/upload-metadata" {
			http.NotFound(w, r)
			return
		}
		var rec Record
		if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
			t.Errorf("bad body: %v", err)
		}
		got = append(got, rec)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	res, err := c.Export(context.Background(), records("a.txt", "b.txt", "c.txt"))
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	if res.Sent != 3 || res.Failed != 0 {
		t.Fatalf("result = %+v, want 3 sent / 0 failed", res)
	}
	if len(got) != 3 {
		t.Fatalf("server received %d records, want 3", len(got))
	}
	if got[0].Filename != "a.txt" || got[0].Label != "A" || got[0].SizeBytes != 42 {
		t.Errorf("record = %+v", got[0])
	}
}

func TestExportCountsPartialFailures(t *testing.T) {
	var n int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n++
		if n == 2 {
			http.Error(w, "validation failed", http.StatusUnprocessableEntity)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	res, err := c.Export(context.Background(), records("a.txt", "b.txt", "c.txt"))
	if err != nil {
		t.Fatalf("partial failure must not fail the pass: %v", err)
	}

	if res.Sent != 2 || res.Failed != 1 {
		t.Fatalf("result = %+v, want 2 sent / 1 failed", res)
	}
	if len(res.Errors) != 1 || !strings.Contains(res.Errors[0], "b.txt") {
		t.Errorf("errors = %v", res.Errors)
	}
}

func TestExportTruncatesContent(t *testing.T) {
	var got Record
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
	}))
	defer srv.Close()

	recs := records("long.txt")
	recs[0].Preview = strings.Repeat("x", 900)

	c := New(srv.URL, "")
	if _, err := c.Export(context.Background(), recs); err != nil {
		t.Fatal(err)
	}
	if len(got.Content) != contentLimit {
		t.Errorf("content length = %d, want %d", len(got.Content), contentLimit)
	}
}

func TestExportSendsBearerToken(t *testing.T) {
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
	}))
	defer srv.Close()

	c := New(srv.URL, "secret-token")
	if _, err := c.Export(context.Background(), records("a.txt")); err != nil {
		t.Fatal(err)
	}
	if auth != "Bearer secret-token" {
		t.Errorf("Authorization = %q", auth)
	}
}

func TestExportAllUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := New(srv.URL, "")
	res, err := c.Export(context.Background(), records("a.txt", "b.txt"))
	if err != nil {
		t.Fatalf("unreachable sink must degrade to counted failures: %v", err)
	}
	if res.Sent != 0 || res.Failed != 2 {
		t.Fatalf("result = %+v, want 0 sent / 2 failed", res)
	}
}

func TestExportCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := New("http://127.0.0.1:0", "")
	if _, err := c.Export(ctx, records("a.txt")); err == nil {
		t.Fatal("expected context error")
	}
}
