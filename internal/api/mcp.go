package api

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/dochound/dochound/internal/catalog"
	"github.com/dochound/dochound/internal/classify"
	"github.com/dochound/dochound/internal/export"
)

// MCPClassifier abstracts the two labeling strategies for the MCP layer.
type MCPClassifier interface {
	ByKeywords(ctx context.Context, records []catalog.Record, categories map[string]string) ([]classify.Assignment, error)
	ByTopic(ctx context.Context, records []catalog.Record, topic string) ([]classify.Assignment, error)
}

// MCPExporter ships catalog metadata to the sink.
type MCPExporter interface {
	Export(ctx context.Context, records []catalog.Record) (export.Result, error)
}

// MCPDeps holds dependencies for the MCP server. Exporter may be nil when no
// sink is configured.
type MCPDeps struct {
	Catalog    *catalog.Catalog
	Classifier MCPClassifier
	Exporter   MCPExporter
	// ScanRoot is used when scan_directory is called without a path.
	ScanRoot string
	Store    InteractionStore
}

// NewMCPServer creates an MCP server exposing the catalog as tools.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"dochound",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("dochound — local document catalog: scan, search, classify, and export file metadata."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("scan_directory",
			mcp.WithDescription("Index every supported document under a directory into the catalog."),
			mcp.WithString("path", mcp.Description("Directory to scan (defaults to the configured root)")),
			mcp.WithBoolean("merge", mcp.Description("Keep records from earlier scans instead of replacing them")),
		),
		mcpScanDirectory(deps),
	)

	s.AddTool(
		mcp.NewTool("search_files",
			mcp.WithDescription("Case-insensitive substring search over indexed filenames and content previews."),
			mcp.WithString("query", mcp.Description("Search query"), mcp.Required()),
		),
		mcpSearchFiles(deps),
	)

	s.AddTool(
		mcp.NewTool("get_file_info",
			mcp.WithDescription("Look up one indexed file by its exact filename."),
			mcp.WithString("filename", mcp.Description("Exact filename, e.g. budget.txt"), mcp.Required()),
		),
		mcpGetFileInfo(deps),
	)

	s.AddTool(
		mcp.NewTool("classify_files",
			mcp.WithDescription("Assign a category label to every indexed file using the built-in category table."),
		),
		mcpClassifyFiles(deps),
	)

	s.AddTool(
		mcp.NewTool("classify_files_by_topic",
			mcp.WithDescription("Label every indexed file that is about the given topic."),
			mcp.WithString("topic", mcp.Description("Topic phrase, e.g. quarterly finance"), mcp.Required()),
		),
		mcpClassifyByTopic(deps),
	)

	s.AddTool(
		mcp.NewTool("export_metadata",
			mcp.WithDescription("Send the catalog's file metadata to the configured sink."),
		),
		mcpExportMetadata(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"catalog://files",
			"File Catalog",
			mcp.WithResourceDescription("Every indexed file record as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceCatalog(deps),
	)

	if deps.Store != nil {
		s.AddResource(
			mcp.NewResource(
				"catalog://recent",
				"Recent Interactions",
				mcp.WithResourceDescription("Last 10 stored interactions (summaries only)"),
				mcp.WithMIMEType("application/json"),
			),
			mcpResourceRecent(deps),
		)
	}

	return s
}

func mcpScanDirectory(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		path := req.GetString("path", deps.ScanRoot)
		if path == "" {
			return mcpError("path is required: no default scan root configured"), nil
		}
		merge := req.GetBool("merge", false)

		records, err := deps.Catalog.Scan(path, merge)
		if err != nil {
			return mcpError(fmt.Sprintf("scan failed: %v", err)), nil
		}
		return mcpText(fmt.Sprintf("Indexed %d file(s) under %s", len(records), path)), nil
	}
}

func mcpSearchFiles(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}

		records := deps.Catalog.Search(query)
		b, err := json.Marshal(records)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpGetFileInfo(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		filename, err := req.RequireString("filename")
		if err != nil {
			return mcpError("filename is required"), nil
		}

		rec, ok := deps.Catalog.GetByFilename(filename)
		if !ok {
			return mcpError(fmt.Sprintf("file %s is not in the catalog", filename)), nil
		}
		b, err := json.Marshal(rec)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal record: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpClassifyFiles(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		records := deps.Catalog.Snapshot()
		if len(records) == 0 {
			return mcpError("catalog is empty, scan a directory first"), nil
		}

		assignments, err := deps.Classifier.ByKeywords(ctx, records, nil)
		if err != nil {
			return mcpError(fmt.Sprintf("classification failed: %v", err)), nil
		}
		b, err := json.Marshal(assignments)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal assignments: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpClassifyByTopic(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		topic, err := req.RequireString("topic")
		if err != nil {
			return mcpError("topic is required"), nil
		}

		records := deps.Catalog.Snapshot()
		if len(records) == 0 {
			return mcpError("catalog is empty, scan a directory first"), nil
		}

		assignments, err := deps.Classifier.ByTopic(ctx, records, topic)
		if err != nil {
			return mcpError(fmt.Sprintf("topic classification failed: %v", err)), nil
		}
		if len(assignments) == 0 {
			return mcpText(fmt.Sprintf("No files are about %q.", topic)), nil
		}
		b, err := json.Marshal(assignments)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal assignments: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpExportMetadata(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if deps.Exporter == nil {
			return mcpError("export not available: no metadata sink configured"), nil
		}

		records := deps.Catalog.Snapshot()
		if len(records) == 0 {
			return mcpError("catalog is empty, nothing to export"), nil
		}

		result, err := deps.Exporter.Export(ctx, records)
		if err != nil {
			return mcpError(fmt.Sprintf("export failed: %v", err)), nil
		}
		if result.Failed > 0 {
			return mcpText(fmt.Sprintf("Exported %d record(s), %d failed.", result.Sent, result.Failed)), nil
		}
		return mcpText(fmt.Sprintf("Exported %d record(s).", result.Sent)), nil
	}
}

func mcpResourceCatalog(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		b, err := json.Marshal(deps.Catalog.Snapshot())
		if err != nil {
			return nil, fmt.Errorf("failed to marshal catalog: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpResourceRecent(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		interactions, err := deps.Store.RecentInteractions(10)
		if err != nil {
			return nil, fmt.Errorf("failed to get recent interactions: %w", err)
		}

		type interactionSummary struct {
			ID        string `json:"id"`
			CreatedAt string `json:"created_at"`
			Utterance string `json:"utterance"`
			Completed bool   `json:"completed"`
		}

		summaries := make([]interactionSummary, len(interactions))
		for i, ix := range interactions {
			utterance := ix.Utterance
			if utf8.RuneCountInString(utterance) > 200 {
				runes := []rune(utterance)
				utterance = string(runes[:200]) + "..."
			}
			summaries[i] = interactionSummary{
				ID:        ix.ID,
				CreatedAt: ix.CreatedAt.Format(time.RFC3339),
				Utterance: utterance,
				Completed: ix.Completed,
			}
		}

		b, err := json.Marshal(summaries)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal interactions: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
