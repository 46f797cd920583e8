package plan

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractJSON pulls the first well-formed JSON object out of raw model
// output. Tolerates fenced code blocks and leading/trailing commentary: the
// candidate is the span from the first "{" to the last "}", narrowed from
// the right until it parses.
func ExtractJSON(raw string) (string, error) {
	s := strings.TrimSpace(raw)

	// Prefer the body of a ```json fence when one is present.
	if idx := strings.Index(s, "```"); idx >= 0 {
		rest := s[idx+3:]
		rest = strings.TrimPrefix(rest, "json")
		if end := strings.Index(rest, "```"); end >= 0 {
			s = rest[:end]
		} else {
			s = rest
		}
	}

	start := strings.Index(s, "{")
	if start < 0 {
		return "", fmt.Errorf("no JSON object in model output")
	}

	// Greedy first: whole span to the last brace. If commentary after the
	// object contains stray braces, back off to earlier closing braces.
	for end := strings.LastIndex(s, "}"); end > start; end = strings.LastIndex(s[:end], "}") {
		candidate := s[start : end+1]
		if json.Valid([]byte(candidate)) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no parseable JSON object in model output")
}

// ParsePlan extracts and decodes an ActionPlan from raw model output.
func ParsePlan(raw string) (*ActionPlan, error) {
	text, err := ExtractJSON(raw)
	if err != nil {
		return nil, err
	}

	var p ActionPlan
	if err := json.Unmarshal([]byte(text), &p); err != nil {
		return nil, fmt.Errorf("decoding plan: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}
