// Package api exposes the agent over HTTP and MCP, plus the metadata sink
// service.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dochound/dochound/internal/catalog"
	"github.com/dochound/dochound/internal/executor"
	"github.com/dochound/dochound/internal/storage"
)

const maxRequestBodySize = 1 << 20 // 1MB

// Processor handles one user turn. Satisfied by *executor.Session.
type Processor interface {
	Process(ctx context.Context, utterance string) (*executor.Outcome, error)
}

// FeedbackAppender receives feedback entries. Satisfied by *feedback.Log.
type FeedbackAppender interface {
	Append(entry string) error
}

// InteractionStore lists recent turns. Satisfied by *storage.Store.
type InteractionStore interface {
	RecentInteractions(limit int) ([]storage.Interaction, error)
}

// AppDeps holds the agent endpoints' dependencies. Store may be nil when
// interaction history is not persisted.
type AppDeps struct {
	Processor Processor
	Catalog   *catalog.Catalog
	Feedback  FeedbackAppender
	Store     InteractionStore
}

// NewHandler returns the agent's HTTP API.
func NewHandler(deps AppDeps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)
	r.Post("/ask", handleAsk(deps))
	r.Post("/scan", handleScan(deps))
	r.Get("/search", handleSearch(deps))
	r.Get("/catalog", handleCatalog(deps))
	r.Get("/catalog/file", handleCatalogFile(deps))
	r.Post("/feedback", handleFeedback(deps))
	r.Get("/interactions", handleInteractions(deps))

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func handleAsk(deps AppDeps) http.HandlerFunc {
	type askRequest struct {
		Message string `json:"message"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req askRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Message == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "message is required")
			return
		}

		outcome, err := deps.Processor.Process(r.Context(), req.Message)
		if err != nil {
			httpError(w, http.StatusBadGateway, "api_error", "processing request: %v", err)
			return
		}
		writeJSON(w, outcome)
	}
}

func handleScan(deps AppDeps) http.HandlerFunc {
	type scanRequest struct {
		Directory string `json:"directory"`
		Merge     bool   `json:"merge"`
	}
	type scanResponse struct {
		Indexed int    `json:"indexed"`
		Root    string `json:"root"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req scanRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Directory == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "directory is required")
			return
		}

		records, err := deps.Catalog.Scan(req.Directory, req.Merge)
		if err != nil {
			httpError(w, http.StatusUnprocessableEntity, "scan_error", "scanning %s: %v", req.Directory, err)
			return
		}
		writeJSON(w, scanResponse{Indexed: len(records), Root: req.Directory})
	}
}

func handleSearch(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		if q == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "query parameter q is required")
			return
		}
		writeJSON(w, deps.Catalog.Search(q))
	}
}

func handleCatalog(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if label := r.URL.Query().Get("label"); label != "" {
			writeJSON(w, deps.Catalog.ByCategory(label))
			return
		}
		writeJSON(w, deps.Catalog.Snapshot())
	}
}

func handleCatalogFile(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := r.URL.Query().Get("name")
		if name == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "query parameter name is required")
			return
		}
		rec, ok := deps.Catalog.GetByFilename(name)
		if !ok {
			httpError(w, http.StatusNotFound, "not_found", "file %s is not in the catalog", name)
			return
		}
		writeJSON(w, rec)
	}
}

func handleFeedback(deps AppDeps) http.HandlerFunc {
	type feedbackRequest struct {
		Entry string `json:"entry"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req feedbackRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if err := deps.Feedback.Append(req.Entry); err != nil {
			httpError(w, http.StatusUnprocessableEntity, "feedback_error", "recording feedback: %v", err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"status":"recorded"}`)
	}
}

func handleInteractions(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Store == nil {
			httpError(w, http.StatusNotFound, "not_found", "interaction history is not enabled")
			return
		}
		limit := 20
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "limit must be a positive integer")
				return
			}
			limit = n
		}

		interactions, err := deps.Store.RecentInteractions(limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "listing interactions: %v", err)
			return
		}
		if interactions == nil {
			interactions = []storage.Interaction{}
		}
		writeJSON(w, interactions)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
