package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/dochound/dochound/internal/api"
	"github.com/dochound/dochound/internal/catalog"
	"github.com/dochound/dochound/internal/classify"
	"github.com/dochound/dochound/internal/config"
	"github.com/dochound/dochound/internal/executor"
	"github.com/dochound/dochound/internal/export"
	"github.com/dochound/dochound/internal/extract"
	"github.com/dochound/dochound/internal/feedback"
	"github.com/dochound/dochound/internal/ollama"
	"github.com/dochound/dochound/internal/plan"
	"github.com/dochound/dochound/internal/storage"
)

const previewLimit = 1000

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the dochound server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running dochound server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show dochound system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "dochound.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "dochound version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Initialize structured logging.
	logLevel := slog.LevelInfo
	if strings.EqualFold(cfg.Log.Level, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	// Ensure API token exists in platform secret store.
	apiToken, err := config.GetAPIToken(config.NewKeychain())
	if err != nil {
		return fmt.Errorf("initializing API token: %w", err)
	}
	slog.Info("API bearer token available")

	// Write PID file. Check if server is already running via health endpoint.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("dochound is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("dochound is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Check Ollama readiness and pull missing models when allowed.
	ollamaClient := ollama.New(cfg.Ollama.BaseURL)
	if cfg.Ollama.AutoPull {
		if err := ollama.EnsureReady(ctx, ollamaClient, os.Stderr, cfg.Ollama.PlanModel, cfg.Ollama.ClassifyModel); err != nil {
			return err
		}
	} else if !ollamaClient.IsRunning(ctx) {
		return fmt.Errorf("Ollama is not running at %s. Start it with: ollama serve", cfg.Ollama.BaseURL)
	}

	// Open storage for interaction history.
	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	// Build the catalog and the agent around it.
	extractor := extract.New(previewLimit)
	cat := catalog.New(extractor, cfg.Scan.ExtensionList())

	classifier := classify.New(ollamaClient, cfg.Ollama.ClassifyModel, cat, extractor)
	classifier.Concurrency = cfg.Classify.Concurrency

	var exporter executor.Exporter
	var mcpExporter api.MCPExporter
	if cfg.Sink.URL != "" {
		sink := export.New(cfg.Sink.URL, cfg.Sink.Token)
		exporter = sink
		mcpExporter = sink
	}

	feedbackLog := feedback.NewLog(cfg.Feedback.Path)
	planner := plan.NewGenerator(ollamaClient, cfg.Ollama.PlanModel, feedbackLog)

	session := executor.NewSession(executor.Config{
		Catalog:    cat,
		Classifier: classifier,
		Exporter:   exporter,
		Feedback:   feedbackLog,
		Planner:    planner,
		Oracle:     ollamaClient,
		Model:      cfg.Ollama.PlanModel,
		ScanRoot:   cfg.Scan.Root,
		Recorder:   store,
	})

	// Build HTTP handler: /health stays open, everything else requires the
	// bearer token.
	appHandler := api.NewHandler(api.AppDeps{
		Processor: session,
		Catalog:   cat,
		Feedback:  feedbackLog,
		Store:     store,
	})
	guarded := api.BearerAuth(apiToken)(appHandler)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			appHandler.ServeHTTP(w, r)
			return
		}
		guarded.ServeHTTP(w, r)
	})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	// Build and start MCP server (stdio transport in a goroutine).
	mcpSrv := api.NewMCPServer(api.MCPDeps{
		Catalog:    cat,
		Classifier: classifier,
		Exporter:   mcpExporter,
		ScanRoot:   cfg.Scan.Root,
		Store:      store,
	})
	stdioSrv := server.NewStdioServer(mcpSrv)
	go func() {
		if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("MCP stdio server error", "error", err)
		}
	}()
	slog.Info("MCP server started (stdio transport)")

	// Start server in a goroutine.
	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "dochound listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for signal or server error.
	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	// Graceful shutdown with timeout.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("dochound is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop dochound (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to dochound (PID %d)", pid)
	return nil
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	// Check server health.
	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	client := &http.Client{Timeout: 2 * time.Second}

	resp, err := client.Get(serverURL + "/health")
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == 200 {
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	// Check Ollama.
	ollamaResp, err := client.Get(cfg.Ollama.BaseURL + "/api/version")
	if err != nil {
		printStatus("Ollama", "not running")
	} else {
		ollamaResp.Body.Close()
		printStatus("Ollama", "running at %s", cfg.Ollama.BaseURL)
	}

	// Show models and scan settings.
	printStatus("Plan model", "%s", cfg.Ollama.PlanModel)
	printStatus("Classify model", "%s", cfg.Ollama.ClassifyModel)
	printStatus("Scan root", "%s", cfg.Scan.Root)

	// Show catalog size and interaction count if server is running.
	apiToken, tokenErr := config.GetAPIToken(config.NewKeychain())
	if tokenErr == nil && resp != nil && resp.StatusCode == 200 {
		catResp, err := apiGet(client, serverURL+"/catalog", apiToken)
		if err == nil {
			var records []json.RawMessage
			if json.NewDecoder(catResp.Body).Decode(&records) == nil {
				printStatus("Catalog", "%d file(s)", len(records))
			}
			catResp.Body.Close()
		}
		interResp, err2 := apiGet(client, serverURL+"/interactions?limit=100", apiToken)
		if err2 == nil {
			var interactions []json.RawMessage
			if json.NewDecoder(interResp.Body).Decode(&interactions) == nil {
				printStatus("Interactions", "%s", countLabel(len(interactions), 100))
			}
			interResp.Body.Close()
		}
	}

	printStatus("Sink", "%s", cfg.Sink.URL)
	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}

func countLabel(count, limit int) string {
	if count >= limit {
		return fmt.Sprintf("%d+", count)
	}
	return fmt.Sprintf("%d", count)
}

func apiGet(client *http.Client, url, token string) (*http.Response, error) {
	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return client.Do(req)
}
