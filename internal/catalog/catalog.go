// Package catalog maintains the in-memory index of corpus files. A Catalog is
// owned by a single session; it is never shared process-wide.
package catalog

import (
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// LabelUnclassified is the label every record carries until a classifier
// assigns one.
const LabelUnclassified = "unclassified"

// DefaultExtensions is the extension set indexed when none is configured.
var DefaultExtensions = []string{".pdf", ".docx", ".doc", ".pptx", ".ppt", ".txt"}

// Record is one indexed file. Path is the identity key; only Label mutates
// after a record is created.
type Record struct {
	Filename   string    `json:"filename"`
	Path       string    `json:"filepath"`
	FileType   string    `json:"file_type"`
	SizeBytes  int64     `json:"size"`
	CreatedAt  time.Time `json:"created_at"`
	ModifiedAt time.Time `json:"modified_at"`
	Preview    string    `json:"content_preview"`
	Label      string    `json:"label"`
}

// TextExtractor produces the bounded content preview stored on each record.
type TextExtractor interface {
	Preview(path string) string
}

// Catalog maps absolute file path to Record. Safe for concurrent readers;
// Scan and SetLabel take the write lock.
type Catalog struct {
	mu         sync.RWMutex
	records    map[string]Record
	extensions map[string]struct{}
	extractor  TextExtractor
	logger     *slog.Logger
}

// New creates an empty Catalog indexing the given extensions (lowercase,
// dot-prefixed). Passing nil extensions selects DefaultExtensions.
func New(extractor TextExtractor, extensions []string) *Catalog {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	extSet := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		extSet[strings.ToLower(ext)] = struct{}{}
	}
	return &Catalog{
		records:    make(map[string]Record),
		extensions: extSet,
		extractor:  extractor,
		logger:     slog.Default(),
	}
}

// Scan walks root recursively and indexes every file with a supported
// extension. By default the previous index is replaced wholesale so records
// for files deleted since the last scan do not linger; with merge=true prior
// records are kept and only rescanned paths are overwritten.
//
// Per-file errors (unreadable stat, permission) are logged and skipped. An
// unreadable root aborts the scan with an error and leaves the catalog
// unchanged. Returns the records indexed by this call, sorted by path.
func (c *Catalog) Scan(root string, merge bool) ([]Record, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving scan root %q: %w", root, err)
	}

	scanned := make(map[string]Record)
	walkErr := filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == absRoot {
				return fmt.Errorf("reading scan root: %w", err)
			}
			c.logger.Warn("skipping unreadable path", "path", path, "error", err)
			return nil
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if _, ok := c.extensions[ext]; !ok {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			c.logger.Warn("skipping file with unreadable metadata", "path", path, "error", err)
			return nil
		}

		// Creation time is not portable across filesystems; mtime stands in
		// for both timestamps.
		scanned[path] = Record{
			Filename:   filepath.Base(path),
			Path:       path,
			FileType:   ext,
			SizeBytes:  info.Size(),
			CreatedAt:  info.ModTime(),
			ModifiedAt: info.ModTime(),
			Preview:    c.extractor.Preview(path),
			Label:      LabelUnclassified,
		}
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("scanning %s: %w", absRoot, walkErr)
	}

	c.mu.Lock()
	if merge {
		for path, rec := range scanned {
			c.records[path] = rec
		}
	} else {
		next := make(map[string]Record, len(scanned))
		for path, rec := range scanned {
			next[path] = rec
		}
		c.records = next
	}
	c.mu.Unlock()

	return sortRecords(scanned), nil
}

// Search returns every record whose filename or content preview contains
// query, case-insensitively. Results are sorted by path.
func (c *Catalog) Search(query string) []Record {
	q := strings.ToLower(query)

	c.mu.RLock()
	defer c.mu.RUnlock()

	matched := make(map[string]Record)
	for path, rec := range c.records {
		if strings.Contains(strings.ToLower(rec.Filename), q) ||
			strings.Contains(strings.ToLower(rec.Preview), q) {
			matched[path] = rec
		}
	}
	return sortRecords(matched)
}

// ByCategory returns every record whose label contains category,
// case-insensitively.
func (c *Catalog) ByCategory(category string) []Record {
	q := strings.ToLower(category)

	c.mu.RLock()
	defer c.mu.RUnlock()

	matched := make(map[string]Record)
	for path, rec := range c.records {
		if strings.Contains(strings.ToLower(rec.Label), q) {
			matched[path] = rec
		}
	}
	return sortRecords(matched)
}

// Get returns the record for the exact absolute path.
func (c *Catalog) Get(path string) (Record, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rec, ok := c.records[path]
	return rec, ok
}

// GetByFilename returns the first record whose base filename matches exactly
// (case-insensitive). Used by exact-name lookups where the caller holds a
// filename rather than a full path.
func (c *Catalog) GetByFilename(name string) (Record, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var paths []string
	for path := range c.records {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	for _, path := range paths {
		if strings.EqualFold(c.records[path].Filename, name) {
			return c.records[path], true
		}
	}
	return Record{}, false
}

// SetLabel overwrites the label of the record at path. Returns false when no
// such record exists; classification never creates records.
func (c *Catalog) SetLabel(path, label string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.records[path]
	if !ok {
		return false
	}
	rec.Label = label
	c.records[path] = rec
	return true
}

// Snapshot returns a copy of every record, sorted by path.
func (c *Catalog) Snapshot() []Record {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return sortRecords(c.records)
}

// Len reports the number of indexed records.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}

func sortRecords(m map[string]Record) []Record {
	out := make([]Record, 0, len(m))
	for _, rec := range m {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}
