package executor

import (
	"fmt"
	"sort"
	"strings"
)

// Render turns a structured step payload into display text. Pure over the
// payload; nothing downstream parses this text back.
func Render(r FunctionResult) string {
	if !r.Success {
		if len(r.MissingData) > 0 {
			return fmt.Sprintf("Step failed: %s (missing: %s)", r.Error, strings.Join(r.MissingData, ", "))
		}
		return fmt.Sprintf("Step failed: %s", r.Error)
	}

	switch d := r.Data.(type) {
	case SearchData:
		return renderSearch(d)
	case ScanData:
		return renderScan(d)
	case ClassifyData:
		return renderClassify(d)
	case ExportData:
		return renderExport(d)
	case LearnData:
		return "Feedback recorded: " + d.Entry
	case GeneralData:
		return d.Answer
	default:
		return "Done."
	}
}

func renderSearch(d SearchData) string {
	if len(d.Records) == 0 {
		return fmt.Sprintf("No files match %q.", d.Keyword)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d file(s) matching %q:\n", len(d.Records), d.Keyword)
	for _, rec := range d.Records {
		fmt.Fprintf(&b, "- %s (%s, %d bytes, label: %s)\n", rec.Filename, rec.FileType, rec.SizeBytes, rec.Label)
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderScan(d ScanData) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Indexed %d file(s) under %s", len(d.Records), d.Root)
	if len(d.ByLabel) > 0 {
		labels := make([]string, 0, len(d.ByLabel))
		for label := range d.ByLabel {
			labels = append(labels, label)
		}
		sort.Strings(labels)
		b.WriteString("\nBy label:")
		for _, label := range labels {
			fmt.Fprintf(&b, "\n- %s: %d", label, d.ByLabel[label])
		}
	}
	return b.String()
}

func renderClassify(d ClassifyData) string {
	if d.Topic != "" {
		if len(d.Assignments) == 0 {
			return fmt.Sprintf("No files are about %q.", d.Topic)
		}
		var b strings.Builder
		fmt.Fprintf(&b, "%d file(s) are about %q:\n", len(d.Assignments), d.Topic)
		for _, a := range d.Assignments {
			fmt.Fprintf(&b, "- %s\n", a.Filename)
		}
		return strings.TrimRight(b.String(), "\n")
	}

	if len(d.Assignments) == 0 {
		return "No files to classify."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Classified %d file(s):\n", len(d.Assignments))
	for _, a := range d.Assignments {
		fmt.Fprintf(&b, "- %s: %s\n", a.Filename, a.Label)
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderExport(d ExportData) string {
	if d.Result.Failed == 0 {
		return fmt.Sprintf("Exported %d record(s).", d.Result.Sent)
	}
	return fmt.Sprintf("Exported %d record(s), %d failed.", d.Result.Sent, d.Result.Failed)
}

// renderSummary is the plan-level wrap-up emitted after a fully successful
// run.
func renderSummary(o Outcome, recommendations string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Completed %d step(s).", o.Steps)
	for _, h := range o.History {
		if h.Output != "" {
			b.WriteString("\n\n")
			b.WriteString(h.Output)
		}
	}
	if recommendations = strings.TrimSpace(recommendations); recommendations != "" {
		b.WriteString("\n\nRecommendation: ")
		b.WriteString(recommendations)
	}
	return b.String()
}
