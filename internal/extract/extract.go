// Package extract pulls plain text out of corpus documents. Extraction is
// deliberately forgiving: a file that cannot be parsed yields empty text
// instead of an error, so one corrupt document never aborts a directory scan.
package extract

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// DefaultPreviewLimit is the character budget for stored content previews.
const DefaultPreviewLimit = 1000

// Extractor converts supported document formats to plain text.
type Extractor struct {
	previewLimit int
	logger       *slog.Logger
}

// New creates an Extractor. If previewLimit is <= 0, DefaultPreviewLimit is used.
func New(previewLimit int) *Extractor {
	if previewLimit <= 0 {
		previewLimit = DefaultPreviewLimit
	}
	return &Extractor{
		previewLimit: previewLimit,
		logger:       slog.Default(),
	}
}

// Preview returns the full extracted text truncated to the preview budget.
func (e *Extractor) Preview(path string) string {
	return Truncate(e.Full(path), e.previewLimit)
}

// Full returns the entire extracted text of the file. Unsupported extensions
// and parse failures yield empty text; the failure is logged, never propagated.
func (e *Extractor) Full(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt":
		return e.fromTxt(path)
	case ".pdf":
		return e.fromPDF(path)
	case ".docx", ".doc":
		return e.fromDocx(path)
	case ".pptx", ".ppt":
		return e.fromPptx(path)
	default:
		return ""
	}
}

func (e *Extractor) fromTxt(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		e.logger.Warn("reading text file failed", "path", path, "error", err)
		return ""
	}
	return string(data)
}

func (e *Extractor) fromPDF(path string) (text string) {
	// The pdf library panics on some malformed files; recover so the caller
	// sees the same empty-text degradation as any other parse failure.
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("PDF extraction panicked", "path", path, "panic", r)
			text = ""
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		e.logger.Warn("opening PDF failed", "path", path, "error", err)
		return ""
	}
	defer f.Close()

	var b strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		pageText, err := p.GetPlainText(nil)
		if err != nil {
			e.logger.Warn("extracting PDF page failed", "path", path, "page", i, "error", err)
			continue
		}
		b.WriteString(pageText)
		b.WriteString("\n")
	}
	return b.String()
}

// Truncate returns at most limit runes of s, always a prefix of s.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
