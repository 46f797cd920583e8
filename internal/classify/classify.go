// Package classify assigns category labels to catalog records, either by a
// batched oracle request guided by category descriptions or by per-file
// yes/no topic queries.
package classify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/dochound/dochound/internal/catalog"
	"github.com/dochound/dochound/internal/extract"
	"github.com/dochound/dochound/internal/ollama"
)

// ErrLabelCountMismatch is returned when the oracle answers a batched
// classify with a label array whose length differs from the input file list.
// No labels are assigned in that case.
var ErrLabelCountMismatch = errors.New("label count does not match file count")

// Oracle is the language-model surface classification needs.
type Oracle interface {
	Chat(ctx context.Context, model string, messages []ollama.Message, opts *ollama.ChatOptions) (string, error)
}

// LabelStore receives label assignments. Satisfied by *catalog.Catalog.
type LabelStore interface {
	SetLabel(path, label string) bool
}

// ContentExtractor supplies full document text for topic classification.
// Extraction failures surface as empty text, not errors.
type ContentExtractor interface {
	Full(path string) string
}

// Assignment records one label decision.
type Assignment struct {
	Filename string `json:"filename"`
	Path     string `json:"filepath"`
	Label    string `json:"label"`
}

const (
	defaultConcurrency = 3
	defaultCallTimeout = 30 * time.Second

	// keywordPreviewLimit caps how much of each preview goes into the
	// batched classification prompt.
	keywordPreviewLimit = 200
)

// Classifier runs both classification strategies against a LabelStore.
type Classifier struct {
	llm       Oracle
	model     string
	store     LabelStore
	extractor ContentExtractor
	logger    *slog.Logger

	// Concurrency bounds the topic-classify worker pool.
	Concurrency int
	// CallTimeout bounds each oracle round-trip.
	CallTimeout time.Duration
}

// New creates a Classifier with default concurrency and per-call timeout.
func New(llm Oracle, model string, store LabelStore, extractor ContentExtractor) *Classifier {
	return &Classifier{
		llm:         llm,
		model:       model,
		store:       store,
		extractor:   extractor,
		logger:      slog.Default(),
		Concurrency: defaultConcurrency,
		CallTimeout: defaultCallTimeout,
	}
}

// labelsResponse is the JSON shape requested from the batched classify call.
type labelsResponse struct {
	Labels []string `json:"labels"`
}

var labelsSchema = &ollama.Schema{
	Type: "object",
	Properties: map[string]ollama.SchemaProperty{
		"labels": {Type: "array", Description: "one category name per input file, in input order"},
	},
	Required: []string{"labels"},
}

// ByKeywords classifies records in one batched oracle request. categories
// maps category name to a free-text description; the oracle must answer with
// exactly one label per record, positionally aligned. A length mismatch
// fails the whole batch with ErrLabelCountMismatch and assigns nothing.
func (c *Classifier) ByKeywords(ctx context.Context, records []catalog.Record, categories map[string]string) ([]Assignment, error) {
	if len(records) == 0 {
		return nil, nil
	}
	if len(categories) == 0 {
		categories = DescribeCategories(DefaultKeywords)
	}

	ctx, cancel := context.WithTimeout(ctx, c.CallTimeout)
	defer cancel()

	raw, err := c.llm.Chat(ctx, c.model, []ollama.Message{
		{Role: "system", Content: keywordSystemPrompt},
		{Role: "user", Content: buildKeywordPrompt(records, categories)},
	}, &ollama.ChatOptions{Format: labelsSchema, Temperature: 0.1})
	if err != nil {
		return nil, fmt.Errorf("classify oracle call: %w", err)
	}

	var resp labelsResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return nil, fmt.Errorf("parsing classify response: %w", err)
	}
	if len(resp.Labels) != len(records) {
		return nil, fmt.Errorf("%w: got %d labels for %d files", ErrLabelCountMismatch, len(resp.Labels), len(records))
	}

	assignments := make([]Assignment, len(records))
	for i, rec := range records {
		label := strings.TrimSpace(resp.Labels[i])
		if label == "" {
			// The oracle answered but left this slot blank; fall back to
			// the lexical keyword table.
			label = MatchKeywords(rec.Filename+" "+rec.Preview, nil)
		}
		if !c.store.SetLabel(rec.Path, label) {
			c.logger.Warn("classified file no longer in catalog", "path", rec.Path)
		}
		assignments[i] = Assignment{Filename: rec.Filename, Path: rec.Path, Label: label}
	}
	return assignments, nil
}

const keywordSystemPrompt = "You are a document classifier. " +
	"Given a list of files and a set of categories, assign exactly one category name to each file. " +
	"Answer with JSON only: {\"labels\": [...]}, one label per file, in the same order as the files."

func buildKeywordPrompt(records []catalog.Record, categories map[string]string) string {
	var b strings.Builder

	b.WriteString("Categories:\n")
	names := make([]string, 0, len(categories))
	for name := range categories {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&b, "- %s: %s\n", name, categories[name])
	}

	b.WriteString("\nFiles:\n")
	for i, rec := range records {
		preview := extract.Truncate(rec.Preview, keywordPreviewLimit)
		if preview == "" {
			preview = "(no extractable content)"
		}
		fmt.Fprintf(&b, "%d. %s\n%s\n\n", i+1, rec.Filename, preview)
	}

	fmt.Fprintf(&b, "Assign one category to each of the %d files above.", len(records))
	return b.String()
}
