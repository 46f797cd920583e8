package plan

import (
	"fmt"
	"strings"
)

const systemPrompt = `You are a planning assistant for a local document agent.
Turn the user's request into an action plan: a short ordered list of steps,
each calling exactly one of these functions:

- search: substring search over indexed files by a keyword from the request
- search_exactly: look up one file by its exact filename
- scan: index a directory of documents
- classify: assign category labels to all indexed files
- classify_by_topic: label files matching a single topic from the request
- export: send indexed file metadata to the configured sink
- learn: record the user's feedback for future planning
- general: answer from prior step results when no other function fits

Respond with JSON only, in this shape:
{
  "task_description": "...",
  "expected_output": "...",
  "recommendations": "",
  "steps": [
    {"step_number": 1, "description": "...", "function": "...", "parameters": {}, "required_data": []}
  ]
}

Keep plans minimal: most requests need one or two steps. Steps that read
results (export, general) come after the steps that produce them.`

// buildPlanPrompt assembles the user message for one generation attempt.
// feedback is the accumulated feedback log, included wholesale as a steering
// instruction when non-empty.
func buildPlanPrompt(utterance, feedback, priorFailure string) string {
	var b strings.Builder

	if feedback = strings.TrimSpace(feedback); feedback != "" {
		b.WriteString("Lessons from earlier sessions, follow them when relevant:\n")
		b.WriteString(feedback)
		b.WriteString("\n\n")
	}
	if priorFailure = strings.TrimSpace(priorFailure); priorFailure != "" {
		fmt.Fprintf(&b, "The previous plan for this request failed: %s\nPlan around that failure.\n\n", priorFailure)
	}

	fmt.Fprintf(&b, "User request: %s", utterance)
	return b.String()
}
