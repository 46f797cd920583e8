// Package feedback persists user guidance as an append-only plain-text log.
// The whole log is read back into future planning prompts, so entries stay
// short, one line each.
package feedback

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Log is a line-oriented append-only file. Safe for concurrent use within
// one process; no cross-process locking.
type Log struct {
	mu   sync.Mutex
	path string
}

// NewLog creates a Log backed by path. The file is created on first append.
func NewLog(path string) *Log {
	return &Log{path: path}
}

// Append writes one newline-terminated entry. Embedded newlines are
// flattened to spaces so the log stays one entry per line.
func (l *Log) Append(entry string) error {
	entry = strings.TrimSpace(entry)
	if entry == "" {
		return fmt.Errorf("feedback entry must not be empty")
	}
	entry = strings.Join(strings.Fields(entry), " ")

	l.mu.Lock()
	defer l.mu.Unlock()

	if dir := filepath.Dir(l.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating feedback dir: %w", err)
		}
	}
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening feedback log: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(entry + "\n"); err != nil {
		return fmt.Errorf("appending feedback: %w", err)
	}
	return nil
}

// Read returns the full log contents. A missing file is an empty log, not
// an error.
func (l *Log) Read() (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := os.ReadFile(l.path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading feedback log: %w", err)
	}
	return string(data), nil
}
