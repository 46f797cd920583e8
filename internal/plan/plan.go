// Package plan defines the action-plan structure the executor consumes and
// the generation path that turns a user utterance into one via the language
// model.
package plan

import (
	"fmt"
	"strings"
)

// StepFunc names one executable operation. The vocabulary is closed; a plan
// may still carry an unknown name, which the executor rejects at dispatch.
type StepFunc string

const (
	FuncSearch          StepFunc = "search"
	FuncSearchExactly   StepFunc = "search_exactly"
	FuncScan            StepFunc = "scan"
	FuncClassify        StepFunc = "classify"
	FuncClassifyByTopic StepFunc = "classify_by_topic"
	FuncExport          StepFunc = "export"
	FuncLearn           StepFunc = "learn"
	FuncGeneral         StepFunc = "general"
)

// Known reports whether f is part of the supported vocabulary.
func (f StepFunc) Known() bool {
	switch f {
	case FuncSearch, FuncSearchExactly, FuncScan, FuncClassify,
		FuncClassifyByTopic, FuncExport, FuncLearn, FuncGeneral:
		return true
	}
	return false
}

// Step is one unit of work in a plan. StepNumber is display-only; execution
// order is list position.
type Step struct {
	StepNumber   int            `json:"step_number"`
	Description  string         `json:"description"`
	Function     StepFunc       `json:"function"`
	Parameters   map[string]any `json:"parameters,omitempty"`
	RequiredData []string       `json:"required_data,omitempty"`
}

// Param returns the named parameter rendered as a string, or "" when absent.
func (s Step) Param(key string) string {
	v, ok := s.Parameters[key]
	if !ok || v == nil {
		return ""
	}
	if str, ok := v.(string); ok {
		return str
	}
	return fmt.Sprintf("%v", v)
}

// ActionPlan is an ordered sequence of steps plus the model's framing of the
// task.
type ActionPlan struct {
	TaskDescription string `json:"task_description"`
	ExpectedOutput  string `json:"expected_output"`
	Recommendations string `json:"recommendations,omitempty"`
	Steps           []Step `json:"steps"`
}

// Validate rejects plans the executor cannot even begin: no steps, or steps
// without a function name. Unknown function names pass validation and fail
// at dispatch instead, so one bad step does not void the rest of the plan.
func (p *ActionPlan) Validate() error {
	if len(p.Steps) == 0 {
		return fmt.Errorf("plan has no steps")
	}
	for i, s := range p.Steps {
		if strings.TrimSpace(string(s.Function)) == "" {
			return fmt.Errorf("step %d has no function", i+1)
		}
	}
	return nil
}
