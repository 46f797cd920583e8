package plan

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dochound/dochound/internal/ollama"
)

const (
	maxAttempts       = 3
	generationTimeout = 120 * time.Second
	planTemperature   = 0.1
	planMaxTokens     = 2048
)

// Oracle is the language-model surface plan generation needs.
type Oracle interface {
	Chat(ctx context.Context, model string, messages []ollama.Message, opts *ollama.ChatOptions) (string, error)
}

// FeedbackSource supplies the accumulated feedback log for prompt steering.
type FeedbackSource interface {
	Read() (string, error)
}

// Generator turns a user utterance into an ActionPlan, retrying when the
// model's output does not contain a valid plan.
type Generator struct {
	llm      Oracle
	model    string
	feedback FeedbackSource
	logger   *slog.Logger
}

// NewGenerator creates a Generator. feedback may be nil when no feedback log
// is configured.
func NewGenerator(llm Oracle, model string, feedback FeedbackSource) *Generator {
	return &Generator{
		llm:      llm,
		model:    model,
		feedback: feedback,
		logger:   slog.Default(),
	}
}

// Generate produces a plan for the utterance. priorFailure, when non-empty,
// describes how the previous plan for this request failed and steers the
// model away from repeating it. Up to maxAttempts model calls are made, with
// no backoff; every attempt failing returns the last error.
func (g *Generator) Generate(ctx context.Context, utterance, priorFailure string) (*ActionPlan, error) {
	feedbackText := ""
	if g.feedback != nil {
		text, err := g.feedback.Read()
		if err != nil {
			g.logger.Warn("reading feedback log", "error", err)
		} else {
			feedbackText = text
		}
	}

	messages := []ollama.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: buildPlanPrompt(utterance, feedbackText, priorFailure)},
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, generationTimeout)
		raw, err := g.llm.Chat(callCtx, g.model, messages, &ollama.ChatOptions{
			Temperature: planTemperature,
			NumPredict:  planMaxTokens,
		})
		cancel()
		if err != nil {
			lastErr = fmt.Errorf("plan generation call: %w", err)
			g.logger.Warn("plan generation attempt failed", "attempt", attempt, "error", err)
			continue
		}

		p, err := ParsePlan(raw)
		if err != nil {
			lastErr = err
			g.logger.Warn("model output was not a valid plan", "attempt", attempt, "error", err)
			continue
		}

		g.logger.Debug("plan generated", "attempt", attempt, "steps", len(p.Steps))
		return p, nil
	}
	return nil, fmt.Errorf("no valid plan after %d attempts: %w", maxAttempts, lastErr)
}
