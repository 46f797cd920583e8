package classify

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/dochound/dochound/internal/catalog"
	"github.com/dochound/dochound/internal/ollama"
)

// Head+tail window over long documents: keeps the intro and conclusion,
// where topic signal concentrates, while bounding prompt size.
const (
	topicWindowThreshold = 4000
	topicWindowHead      = 3000
	topicWindowTail      = 1000
)

// ByTopic asks a yes/no question per record and labels affirmative matches
// with topic. Records with empty or whitespace-only content are skipped.
// An oracle error or timeout on one file degrades that file to "no" rather
// than failing the pass. Calls fan out over a worker pool bounded by
// c.Concurrency; ctx cancellation stops the remaining work.
func (c *Classifier) ByTopic(ctx context.Context, records []catalog.Record, topic string) ([]Assignment, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, fmt.Errorf("topic must not be empty")
	}

	matched := make([]bool, len(records))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.Concurrency)

	for i, rec := range records {
		g.Go(func() error {
			content := c.extractor.Full(rec.Path)
			if strings.TrimSpace(content) == "" {
				return nil
			}

			matched[i] = c.askTopic(gctx, rec.Filename, windowContent(content), topic)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var assignments []Assignment
	for i, rec := range records {
		if !matched[i] {
			continue
		}
		if !c.store.SetLabel(rec.Path, topic) {
			c.logger.Warn("classified file no longer in catalog", "path", rec.Path)
		}
		assignments = append(assignments, Assignment{Filename: rec.Filename, Path: rec.Path, Label: topic})
	}
	return assignments, nil
}

// askTopic runs one yes/no oracle round-trip. Any failure is "no".
func (c *Classifier) askTopic(ctx context.Context, filename, content, topic string) bool {
	callCtx, cancel := context.WithTimeout(ctx, c.CallTimeout)
	defer cancel()

	prompt := fmt.Sprintf(
		"Document %q:\n%s\n\nIs this document about the topic %q? Answer with exactly one word: yes or no.",
		filename, content, topic,
	)
	answer, err := c.llm.Chat(callCtx, c.model, []ollama.Message{
		{Role: "user", Content: prompt},
	}, &ollama.ChatOptions{Temperature: 0.1, NumPredict: 8})
	if err != nil {
		c.logger.Warn("topic oracle call failed, treating as no", "file", filename, "error", err)
		return false
	}
	return isAffirmative(answer)
}

// isAffirmative accepts any answer starting with an affirmative token,
// English or Vietnamese.
func isAffirmative(answer string) bool {
	a := strings.ToLower(strings.TrimSpace(answer))
	return strings.HasPrefix(a, "yes") || strings.HasPrefix(a, "có")
}

// windowContent bounds long content to its head and tail.
func windowContent(content string) string {
	runes := []rune(content)
	if len(runes) <= topicWindowThreshold {
		return content
	}
	head := string(runes[:topicWindowHead])
	tail := string(runes[len(runes)-topicWindowTail:])
	return head + "\n...\n" + tail
}
