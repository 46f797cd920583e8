package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dochound/dochound/internal/api"
	"github.com/dochound/dochound/internal/config"
	"github.com/dochound/dochound/internal/storage"
)

var sinkCmd = &cobra.Command{
	Use:   "sink",
	Short: "Run the metadata sink service (foreground)",
	Long: `Run the metadata sink service in the foreground.

The sink receives exported file metadata on POST /upload-metadata and
persists it to its own SQLite database, keyed by filename. It is the
default target of the agent's export step.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSink()
	},
}

func runSink() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logLevel := slog.LevelInfo
	if strings.EqualFold(cfg.Log.Level, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	// The sink keeps its own database, separate from the agent's.
	store, err := storage.Open(filepath.Join(cfg.Storage.DataDir, "sink"))
	if err != nil {
		return fmt.Errorf("opening sink storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing sink storage: %v\n", err)
		}
	}()

	sinkHandler := api.NewMetadataHandler(store)
	handler := http.Handler(sinkHandler)
	if cfg.Sink.Token != "" {
		guarded := api.BearerAuth(cfg.Sink.Token)(sinkHandler)
		handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" {
				sinkHandler.ServeHTTP(w, r)
				return
			}
			guarded.ServeHTTP(w, r)
		})
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Sink.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "metadata sink listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("sink server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
