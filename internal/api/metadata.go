package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dochound/dochound/internal/storage"
)

// NewMetadataHandler returns the metadata sink service: the HTTP surface the
// export step uploads to. Records are keyed by filename; re-uploads replace.
func NewMetadataHandler(store *storage.Store) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)
	r.Post("/upload-metadata", handleUploadMetadata(store))
	r.Get("/metadata", handleListMetadata(store))
	r.Get("/metadata/{filename}", handleGetMetadata(store))

	return r
}

func handleUploadMetadata(store *storage.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var m storage.Metadata
		if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if m.Filename == "" {
			httpError(w, http.StatusUnprocessableEntity, "invalid_request_error", "filename is required")
			return
		}

		m.ReceivedAt = time.Now().UTC()
		if err := store.UpsertMetadata(m); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "storing metadata: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{"status": "stored", "filename": m.Filename})
	}
}

func handleListMetadata(store *storage.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		records, err := store.ListMetadata()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "listing metadata: %v", err)
			return
		}
		if records == nil {
			records = []storage.Metadata{}
		}
		writeJSON(w, records)
	}
}

func handleGetMetadata(store *storage.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filename := chi.URLParam(r, "filename")

		m, err := store.GetMetadata(filename)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "no metadata for %s", filename)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "reading metadata: %v", err)
			return
		}
		writeJSON(w, m)
	}
}
