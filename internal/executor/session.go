// Package executor walks action plans step by step, dispatching each step to
// the catalog, classifier, exporter, or oracle, threading results through a
// per-session context and applying the failure policy.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dochound/dochound/internal/catalog"
	"github.com/dochound/dochound/internal/classify"
	"github.com/dochound/dochound/internal/export"
	"github.com/dochound/dochound/internal/ollama"
	"github.com/dochound/dochound/internal/plan"
)

const defaultCallTimeout = 30 * time.Second

// Oracle is the language-model surface step handlers need.
type Oracle interface {
	Chat(ctx context.Context, model string, messages []ollama.Message, opts *ollama.ChatOptions) (string, error)
}

// Classifier runs the two labeling strategies.
type Classifier interface {
	ByKeywords(ctx context.Context, records []catalog.Record, categories map[string]string) ([]classify.Assignment, error)
	ByTopic(ctx context.Context, records []catalog.Record, topic string) ([]classify.Assignment, error)
}

// Exporter ships catalog metadata to the sink.
type Exporter interface {
	Export(ctx context.Context, records []catalog.Record) (export.Result, error)
}

// FeedbackLog receives learn-step entries.
type FeedbackLog interface {
	Append(entry string) error
}

// Planner turns an utterance into an ActionPlan.
type Planner interface {
	Generate(ctx context.Context, utterance, priorFailure string) (*plan.ActionPlan, error)
}

// Recorder persists finished interactions. Optional.
type Recorder interface {
	RecordInteraction(ctx context.Context, utterance, response string, completed bool) error
}

// Config wires a Session.
type Config struct {
	Catalog    *catalog.Catalog
	Classifier Classifier
	Exporter   Exporter
	Feedback   FeedbackLog
	Planner    Planner
	Oracle     Oracle
	Model      string
	// ScanRoot is the directory scanned when a plan does not name one.
	ScanRoot string
	Recorder Recorder
	Logger   *slog.Logger
	// CallTimeout bounds each oracle round-trip made by step handlers.
	CallTimeout time.Duration
}

// Session executes plans for one conversation. The execution context
// persists across turns within the session; history from a failed run is
// retained until the next successful one.
type Session struct {
	catalog     *catalog.Catalog
	classifier  Classifier
	exporter    Exporter
	feedback    FeedbackLog
	planner     Planner
	llm         Oracle
	model       string
	scanRoot    string
	recorder    Recorder
	logger      *slog.Logger
	callTimeout time.Duration

	execCtx *Context
	history []HistoryEntry
}

// NewSession creates a Session from cfg.
func NewSession(cfg Config) *Session {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.CallTimeout
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	return &Session{
		catalog:     cfg.Catalog,
		classifier:  cfg.Classifier,
		exporter:    cfg.Exporter,
		feedback:    cfg.Feedback,
		planner:     cfg.Planner,
		llm:         cfg.Oracle,
		model:       cfg.Model,
		scanRoot:    cfg.ScanRoot,
		recorder:    cfg.Recorder,
		logger:      logger,
		callTimeout: timeout,
		execCtx:     NewContext(),
	}
}

// Process handles one user turn end to end: generate a plan, execute it,
// record the interaction.
func (s *Session) Process(ctx context.Context, utterance string) (*Outcome, error) {
	p, err := s.planner.Generate(ctx, utterance, s.priorFailure())
	if err != nil {
		return nil, fmt.Errorf("planning: %w", err)
	}

	outcome := s.Execute(ctx, p, utterance)

	if s.recorder != nil {
		if err := s.recorder.RecordInteraction(ctx, utterance, outcome.Message, outcome.Completed); err != nil {
			s.logger.Warn("recording interaction", "error", err)
		}
	}
	return outcome, nil
}

// substitutes maps a missing-data name to the context keys that can stand in
// for it. A failed step whose every missing input has a substitute present
// is continuable; otherwise the plan aborts.
var substitutes = map[string][]string{
	"search_keyword": {KeySearchResults},
	"file_list":      {KeyScanResults},
	"export_data":    {KeyClassifyResults, KeyTopicResults, KeyScanResults, KeySearchResults},
}

// Execute runs the plan's steps in list order, fail-fast: the first
// non-recoverable failure aborts the plan and the returned message carries a
// remediation suggestion instead of a summary. History is retained on
// failure and cleared on full success.
func (s *Session) Execute(ctx context.Context, p *plan.ActionPlan, utterance string) *Outcome {
	outcome := &Outcome{Steps: len(p.Steps)}

	for i, step := range p.Steps {
		s.logger.Info("dispatching step", "index", i+1, "function", step.Function)
		res := s.dispatch(ctx, step, utterance, outcome.History)

		entry := HistoryEntry{StepIndex: i + 1, Function: step.Function, Success: res.Success}
		if res.Success {
			entry.Output = Render(res)
			outcome.History = append(outcome.History, entry)
			outcome.Succeeded++
			s.storeResult(step.Function, res)
			continue
		}

		entry.Error = res.Error
		outcome.History = append(outcome.History, entry)
		outcome.Failed++

		if s.continuable(res.MissingData) && i < len(p.Steps)-1 {
			s.logger.Warn("step failed but context holds a substitute, continuing",
				"index", i+1, "missing", res.MissingData)
			continue
		}

		outcome.Completed = false
		outcome.Message = s.failureMessage(ctx, i+1, step, res)
		s.history = append(s.history, outcome.History...)
		return outcome
	}

	outcome.Completed = true
	outcome.Message = renderSummary(*outcome, p.Recommendations)
	s.history = nil
	return outcome
}

// History returns the retained entries from the last failed run.
func (s *Session) History() []HistoryEntry {
	return s.history
}

func (s *Session) continuable(missing []string) bool {
	if len(missing) == 0 {
		return false
	}
	for _, name := range missing {
		keys, ok := substitutes[name]
		if !ok {
			return false
		}
		found := false
		for _, key := range keys {
			if s.execCtx.Has(key) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (s *Session) storeResult(fn plan.StepFunc, res FunctionResult) {
	switch fn {
	case plan.FuncSearch:
		s.execCtx.Set(KeySearchResults, res.Data)
		if d, ok := res.Data.(SearchData); ok {
			s.execCtx.Set(KeySearchKeyword, d.Keyword)
		}
	case plan.FuncSearchExactly:
		s.execCtx.Set(KeySearchExactly, res.Data)
	case plan.FuncScan:
		s.execCtx.Set(KeyScanResults, res.Data)
	case plan.FuncClassify:
		s.execCtx.Set(KeyClassifyResults, res.Data)
	case plan.FuncClassifyByTopic:
		s.execCtx.Set(KeyTopicResults, res.Data)
	}
}

// priorFailure summarizes the retained history for the next planning prompt.
func (s *Session) priorFailure() string {
	for i := len(s.history) - 1; i >= 0; i-- {
		if h := s.history[i]; !h.Success {
			return fmt.Sprintf("step %d (%s) failed: %s", h.StepIndex, h.Function, h.Error)
		}
	}
	return ""
}

// failureMessage names the failed step and appends a remediation suggestion
// from a second oracle call. The suggestion is best effort; an oracle
// failure here degrades to the bare error.
func (s *Session) failureMessage(ctx context.Context, stepNo int, step plan.Step, res FunctionResult) string {
	msg := fmt.Sprintf("Step %d (%s) failed: %s", stepNo, step.Function, res.Error)

	prompt := fmt.Sprintf(
		"A document-agent step failed.\nStep: %s\nError: %s\nIn one or two sentences, tell the user what to try instead. Answer in the user's language.",
		step.Description, res.Error,
	)
	suggestion, err := s.ask(ctx, prompt, 256)
	if err != nil {
		s.logger.Warn("remediation call failed", "error", err)
		return msg
	}
	if suggestion = strings.TrimSpace(suggestion); suggestion != "" {
		msg += "\nSuggestion: " + suggestion
	}
	return msg
}

// ask runs one bounded oracle round-trip with a single user message.
func (s *Session) ask(ctx context.Context, prompt string, maxTokens int) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()
	return s.llm.Chat(callCtx, s.model, []ollama.Message{
		{Role: "user", Content: prompt},
	}, &ollama.ChatOptions{Temperature: 0.2, NumPredict: maxTokens})
}
