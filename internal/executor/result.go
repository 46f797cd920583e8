package executor

import (
	"github.com/dochound/dochound/internal/catalog"
	"github.com/dochound/dochound/internal/classify"
	"github.com/dochound/dochound/internal/export"
	"github.com/dochound/dochound/internal/plan"
)

// FunctionResult is the outcome of one dispatched step. Data carries a
// structured payload (one of the *Data types below); presentation text is
// derived from it by the render functions, never the other way around.
type FunctionResult struct {
	Success     bool     `json:"success"`
	Data        any      `json:"data,omitempty"`
	Error       string   `json:"error,omitempty"`
	MissingData []string `json:"missing_data,omitempty"`
}

func failure(err string, missing ...string) FunctionResult {
	return FunctionResult{Success: false, Error: err, MissingData: missing}
}

func success(data any) FunctionResult {
	return FunctionResult{Success: true, Data: data}
}

// SearchData is the payload of a search or search_exactly step.
type SearchData struct {
	Keyword string           `json:"keyword"`
	Records []catalog.Record `json:"records"`
}

// ScanData is the payload of a scan step.
type ScanData struct {
	Root    string           `json:"root"`
	Records []catalog.Record `json:"records"`
	ByLabel map[string]int   `json:"by_label"`
}

// ClassifyData is the payload of a classify or classify_by_topic step.
type ClassifyData struct {
	Topic       string                `json:"topic,omitempty"`
	Assignments []classify.Assignment `json:"assignments"`
}

// ExportData is the payload of an export step.
type ExportData struct {
	Source string        `json:"source"`
	Result export.Result `json:"result"`
}

// LearnData is the payload of a learn step.
type LearnData struct {
	Entry string `json:"entry"`
}

// GeneralData is the payload of a general step.
type GeneralData struct {
	Answer string `json:"answer"`
}

// HistoryEntry is the append-only record of one executed step. History is
// cleared after a fully successful run and retained after a failed one, so
// the next turn's planning can steer around the failure.
type HistoryEntry struct {
	StepIndex int           `json:"step_index"`
	Function  plan.StepFunc `json:"function"`
	Success   bool          `json:"success"`
	Output    string        `json:"output,omitempty"`
	Error     string        `json:"error,omitempty"`
}

// Outcome is the result of executing a whole plan.
type Outcome struct {
	Completed bool           `json:"completed"`
	Message   string         `json:"message"`
	Steps     int            `json:"steps"`
	Succeeded int            `json:"succeeded"`
	Failed    int            `json:"failed"`
	History   []HistoryEntry `json:"history"`
}
