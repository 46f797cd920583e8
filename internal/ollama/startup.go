package ollama

import (
	"context"
	"fmt"
	"io"
	"time"
)

// EnsureReady checks that Ollama is running and that every listed model is
// available locally, pulling missing ones with progress written to w. After
// all models are present it warms up the first model so the initial plan
// generation does not pay the cold-load penalty.
// Returns a non-nil error if Ollama is unreachable.
func EnsureReady(ctx context.Context, c *Client, w io.Writer, models ...string) error {
	if !c.IsRunning(ctx) {
		return fmt.Errorf("Ollama is not running. Start it with: ollama serve")
	}

	seen := make(map[string]bool)
	for _, model := range models {
		if model == "" || seen[model] {
			continue
		}
		seen[model] = true

		if c.HasModel(ctx, model) {
			fmt.Fprintf(w, "model %s: ready\n", model)
			continue
		}

		fmt.Fprintf(w, "model %s: pulling...\n", model)
		err := c.PullModel(ctx, model, func(p PullProgress) {
			if p.Total > 0 {
				pct := float64(p.Completed) / float64(p.Total) * 100
				fmt.Fprintf(w, "  %s %.0f%%\n", p.Status, pct)
			} else {
				fmt.Fprintf(w, "  %s\n", p.Status)
			}
		})
		if err != nil {
			return fmt.Errorf("pulling model %s: %w", model, err)
		}
		fmt.Fprintf(w, "model %s: ready\n", model)
	}

	if len(models) == 0 || models[0] == "" {
		return nil
	}

	// Warm up the primary model with a trivial chat request so it stays
	// loaded in memory for low-latency planning.
	primary := models[0]
	fmt.Fprintf(w, "model %s: warming up...\n", primary)
	warmCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	_, err := c.Chat(warmCtx, primary, []Message{
		{Role: "user", Content: "ping"},
	}, nil)
	if err != nil {
		fmt.Fprintf(w, "model %s: warm-up failed (non-fatal): %v\n", primary, err)
	} else {
		fmt.Fprintf(w, "model %s: warm\n", primary)
	}

	return nil
}
