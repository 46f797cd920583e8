package executor

import (
	"context"
	"fmt"
	"strings"

	"github.com/dochound/dochound/internal/catalog"
	"github.com/dochound/dochound/internal/plan"
)

// dispatch routes one step to its handler. Panics in handlers are converted
// to failed results at this boundary so a single bad step cannot take down
// the session.
func (s *Session) dispatch(ctx context.Context, step plan.Step, utterance string, prior []HistoryEntry) (res FunctionResult) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("step handler panicked", "function", step.Function, "panic", r)
			res = failure(fmt.Sprintf("internal error executing %s: %v", step.Function, r))
		}
	}()

	switch step.Function {
	case plan.FuncSearch:
		return s.handleSearch(ctx, step, utterance)
	case plan.FuncSearchExactly:
		return s.handleSearchExactly(step)
	case plan.FuncScan:
		return s.handleScan(step)
	case plan.FuncClassify:
		return s.handleClassify(ctx, step)
	case plan.FuncClassifyByTopic:
		return s.handleClassifyByTopic(ctx, step, utterance)
	case plan.FuncExport:
		return s.handleExport(ctx)
	case plan.FuncLearn:
		return s.handleLearn(ctx, utterance)
	case plan.FuncGeneral:
		return s.handleGeneral(ctx, step, utterance, prior)
	default:
		return failure(fmt.Sprintf("unsupported function %q for step %q", step.Function, step.Description))
	}
}

func (s *Session) handleSearch(ctx context.Context, step plan.Step, utterance string) FunctionResult {
	keyword := strings.TrimSpace(step.Param("keyword"))
	if keyword == "" {
		var err error
		keyword, err = s.extractPhrase(ctx, utterance,
			"Extract the single most useful search keyword from this request. Answer with the keyword only, no punctuation.")
		if err != nil || keyword == "" {
			return failure("could not determine a search keyword", "search_keyword")
		}
	}

	return success(SearchData{Keyword: keyword, Records: s.catalog.Search(keyword)})
}

func (s *Session) handleSearchExactly(step plan.Step) FunctionResult {
	name := ""
	if len(step.RequiredData) > 0 {
		name = strings.TrimSpace(step.RequiredData[0])
	}
	if name == "" {
		name = strings.TrimSpace(step.Param("filename"))
	}
	if name == "" {
		return failure("no filename provided for exact lookup", "filename")
	}

	rec, ok := s.catalog.GetByFilename(name)
	if !ok {
		return failure(fmt.Sprintf("file %s is not in the catalog", name), "file "+name)
	}
	return success(SearchData{Keyword: name, Records: []catalog.Record{rec}})
}

func (s *Session) handleScan(step plan.Step) FunctionResult {
	root := strings.TrimSpace(step.Param("directory"))
	if root == "" {
		root = s.scanRoot
	}
	merge := step.Param("merge") == "true"

	records, err := s.catalog.Scan(root, merge)
	if err != nil {
		return failure(fmt.Sprintf("scanning %s: %v", root, err))
	}

	byLabel := make(map[string]int)
	for _, rec := range records {
		byLabel[rec.Label]++
	}
	return success(ScanData{Root: root, Records: records, ByLabel: byLabel})
}

func (s *Session) handleClassify(ctx context.Context, step plan.Step) FunctionResult {
	records, res := s.catalogRecords()
	if !res.Success {
		return res
	}

	assignments, err := s.classifier.ByKeywords(ctx, records, stepCategories(step))
	if err != nil {
		return failure(fmt.Sprintf("classifying %d files: %v", len(records), err))
	}
	return success(ClassifyData{Assignments: assignments})
}

func (s *Session) handleClassifyByTopic(ctx context.Context, step plan.Step, utterance string) FunctionResult {
	topic := strings.TrimSpace(step.Param("topic"))
	if topic == "" {
		var err error
		topic, err = s.extractPhrase(ctx, utterance,
			"Extract the single topic the user wants files about. Answer with the topic phrase only.")
		if err != nil || topic == "" {
			return failure("could not determine a topic", "topic")
		}
	}

	records, res := s.catalogRecords()
	if !res.Success {
		return res
	}

	assignments, err := s.classifier.ByTopic(ctx, records, topic)
	if err != nil {
		return failure(fmt.Sprintf("topic classification: %v", err))
	}
	return success(ClassifyData{Topic: topic, Assignments: assignments})
}

func (s *Session) handleExport(ctx context.Context) FunctionResult {
	if s.exporter == nil {
		return failure("no export sink is configured")
	}
	sourceKey, _, ok := s.execCtx.Latest(KeyClassifyResults, KeyTopicResults, KeyScanResults, KeySearchResults)
	if !ok {
		return failure("no results available to export", "export_data")
	}

	result, err := s.exporter.Export(ctx, s.catalog.Snapshot())
	if err != nil {
		return failure(fmt.Sprintf("export: %v", err))
	}
	return success(ExportData{Source: sourceKey, Result: result})
}

func (s *Session) handleLearn(ctx context.Context, utterance string) FunctionResult {
	entry, err := s.extractPhrase(ctx, utterance,
		"Restate the user's feedback as one short instruction for a document agent. Answer with the instruction only.")
	if err != nil || entry == "" {
		// The raw utterance is still worth keeping.
		entry = utterance
	}

	if err := s.feedback.Append(entry); err != nil {
		return failure(fmt.Sprintf("recording feedback: %v", err))
	}
	return success(LearnData{Entry: entry})
}

// handleGeneral answers a free-form step from prior step outputs. The
// oracle's text is trusted verbatim; only a transport failure fails the
// step.
func (s *Session) handleGeneral(ctx context.Context, step plan.Step, utterance string, prior []HistoryEntry) FunctionResult {
	var b strings.Builder
	b.WriteString("Results so far:\n")
	wrote := false
	for _, h := range prior {
		if h.Success && h.Output != "" {
			b.WriteString(h.Output)
			b.WriteString("\n\n")
			wrote = true
		}
	}
	if !wrote {
		b.WriteString("(none)\n\n")
	}
	fmt.Fprintf(&b, "Task: %s\nUser request: %s\nAnswer in the user's language.", step.Description, utterance)

	answer, err := s.ask(ctx, b.String(), 1024)
	if err != nil {
		return failure(fmt.Sprintf("oracle call: %v", err))
	}
	return success(GeneralData{Answer: strings.TrimSpace(answer)})
}

// catalogRecords returns the current snapshot, scanning the default root
// first when the catalog is empty.
func (s *Session) catalogRecords() ([]catalog.Record, FunctionResult) {
	if s.catalog.Len() == 0 {
		if _, err := s.catalog.Scan(s.scanRoot, false); err != nil {
			return nil, failure(fmt.Sprintf("catalog is empty and scanning %s failed: %v", s.scanRoot, err))
		}
	}
	records := s.catalog.Snapshot()
	if len(records) == 0 {
		return nil, failure("no files in the catalog")
	}
	return records, FunctionResult{Success: true}
}

// stepCategories reads an optional {"categories": {name: description}}
// parameter.
func stepCategories(step plan.Step) map[string]string {
	raw, ok := step.Parameters["categories"].(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]string, len(raw))
	for name, v := range raw {
		if desc, ok := v.(string); ok {
			out[name] = desc
		}
	}
	return out
}

// extractPhrase asks the oracle for a short phrase and normalizes the
// answer to its first line, unquoted.
func (s *Session) extractPhrase(ctx context.Context, utterance, instruction string) (string, error) {
	answer, err := s.ask(ctx, fmt.Sprintf("%s\n\nRequest: %s", instruction, utterance), 64)
	if err != nil {
		return "", err
	}
	line, _, _ := strings.Cut(strings.TrimSpace(answer), "\n")
	return strings.Trim(line, `"' `), nil
}
