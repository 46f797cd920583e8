// Package export ships catalog metadata to the external sink, one record
// per request.
package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dochound/dochound/internal/catalog"
	"github.com/dochound/dochound/internal/extract"
)

// contentLimit bounds the preview text shipped per record.
const contentLimit = 500

const requestTimeout = 10 * time.Second

// Record is the wire shape accepted by the sink.
type Record struct {
	Filename  string `json:"filename"`
	Label     string `json:"label"`
	Content   string `json:"content"`
	FileType  string `json:"file_type"`
	SizeBytes int64  `json:"size"`
}

// Result counts the outcome of one export pass. Failures are tolerated and
// counted, never retried.
type Result struct {
	Sent   int      `json:"sent"`
	Failed int      `json:"failed"`
	Errors []string `json:"errors,omitempty"`
}

// Client posts metadata records to the sink's upload endpoint.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a Client for the sink at baseURL. token, when non-empty, is
// sent as a bearer credential.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: requestTimeout},
		logger:     slog.Default(),
	}
}

// Export posts one request per catalog record and reports how many were
// accepted. A rejected or failed record is counted and logged; the pass
// continues. Only ctx cancellation aborts early.
func (c *Client) Export(ctx context.Context, records []catalog.Record) (Result, error) {
	var res Result
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := c.send(ctx, Record{
			Filename:  rec.Filename,
			Label:     rec.Label,
			Content:   extract.Truncate(rec.Preview, contentLimit),
			FileType:  rec.FileType,
			SizeBytes: rec.SizeBytes,
		}); err != nil {
			c.logger.Warn("export record failed", "file", rec.Filename, "error", err)
			res.Failed++
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", rec.Filename, err))
			continue
		}
		res.Sent++
	}
	return res, nil
}

func (c *Client) send(ctx context.Context, rec Record) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload-metadata", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating upload request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("uploading metadata: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("sink rejected record: status %d", resp.StatusCode)
	}
	return nil
}
