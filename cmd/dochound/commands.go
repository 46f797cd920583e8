package main

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dochound/dochound/internal/config"
)

// --- ask ---

var askCmd = &cobra.Command{
	Use:   "ask <request>",
	Short: "Run a natural-language request against the catalog",
	Long: `Run a natural-language request against the catalog.

The server turns the request into an action plan and executes it step by
step: scanning, searching, classifying, or exporting as needed.

Examples:
  dochound ask "find files mentioning the Q3 budget"
  dochound ask "classify everything under my reports folder"
  dochound ask "which documents are about marketing?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		message := strings.Join(args, " ")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/ask", map[string]any{"message": message})
		if err != nil {
			return err
		}

		var outcome struct {
			Completed bool   `json:"completed"`
			Message   string `json:"message"`
			Steps     int    `json:"steps"`
			Succeeded int    `json:"succeeded"`
			Failed    int    `json:"failed"`
		}
		if err := decodeJSON(resp, &outcome); err != nil {
			return err
		}

		fmt.Println(outcome.Message)
		if !outcome.Completed {
			printWarning("Plan did not complete: %d of %d step(s) succeeded", outcome.Succeeded, outcome.Steps)
		}
		return nil
	},
}

// --- scan ---

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Index a directory into the catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("dir")
		merge, _ := cmd.Flags().GetBool("merge")

		if dir == "" {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			dir = cfg.Scan.Root
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/scan", map[string]any{
			"directory": dir,
			"merge":     merge,
		})
		if err != nil {
			return err
		}

		var result struct {
			Indexed int    `json:"indexed"`
			Root    string `json:"root"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Indexed %d file(s) under %s", result.Indexed, result.Root)
		return nil
	},
}

func init() {
	scanCmd.Flags().String("dir", "", "directory to scan (default: configured scan root)")
	scanCmd.Flags().Bool("merge", false, "merge into the existing catalog instead of replacing it")
}

// --- search ---

type catalogRecord struct {
	Filename string `json:"filename"`
	Path     string `json:"filepath"`
	FileType string `json:"file_type"`
	Size     int64  `json:"size"`
	Preview  string `json:"content_preview"`
	Label    string `json:"label"`
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Substring search over filenames and content previews",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/search?q="+url.QueryEscape(query))
		if err != nil {
			return err
		}

		var records []catalogRecord
		if err := decodeJSON(resp, &records); err != nil {
			return err
		}

		if len(records) == 0 {
			fmt.Printf("No files match %q.\n", query)
			return nil
		}

		for _, r := range records {
			printRecord(r)
		}
		fmt.Printf("\n%d file(s) match %q.\n", len(records), query)
		return nil
	},
}

func printRecord(r catalogRecord) {
	fmt.Printf("%s  [%s]\n", colorize(colorBold, r.Filename), r.Label)
	fmt.Printf("  %s\n", r.Path)
}

// --- catalog ---

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "List indexed files",
	RunE: func(cmd *cobra.Command, args []string) error {
		label, _ := cmd.Flags().GetString("label")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		path := "/catalog"
		if label != "" {
			path += "?label=" + url.QueryEscape(label)
		}
		resp, err := client.get(cmd.Context(), path)
		if err != nil {
			return err
		}

		var records []catalogRecord
		if err := decodeJSON(resp, &records); err != nil {
			return err
		}

		if len(records) == 0 {
			fmt.Println("Catalog is empty. Run 'dochound scan' first.")
			return nil
		}

		for _, r := range records {
			printRecord(r)
		}
		fmt.Printf("\n%d file(s) in the catalog.\n", len(records))
		return nil
	},
}

func init() {
	catalogCmd.Flags().String("label", "", "only list files with this label")
}

// --- export ---

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export catalog metadata to the configured sink",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		// Export runs through the agent so the catalog-populated check and
		// failure reporting match plan-driven exports.
		resp, err := client.post(cmd.Context(), "/ask", map[string]any{
			"message": "Export all file metadata in the catalog to the external sink.",
		})
		if err != nil {
			return err
		}

		var outcome struct {
			Completed bool   `json:"completed"`
			Message   string `json:"message"`
		}
		if err := decodeJSON(resp, &outcome); err != nil {
			return err
		}

		fmt.Println(outcome.Message)
		if !outcome.Completed {
			printWarning("Export did not complete")
		}
		return nil
	},
}

// --- feedback ---

var feedbackCmd = &cobra.Command{
	Use:   "feedback <note>",
	Short: "Record a lesson for future planning",
	Long: `Record a lesson for future planning.

Entries are appended to the feedback log and included in every later
planning prompt.

Example:
  dochound feedback "when I say reports I mean the quarterly PDFs"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		entry := strings.Join(args, " ")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/feedback", map[string]any{"entry": entry})
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Feedback recorded")
		return nil
	},
}

// --- interactions ---

var interactionsCmd = &cobra.Command{
	Use:   "interactions",
	Short: "List recent interactions",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), fmt.Sprintf("/interactions?limit=%d", limit))
		if err != nil {
			return err
		}

		var interactions []struct {
			ID        string `json:"id"`
			CreatedAt string `json:"created_at"`
			Utterance string `json:"utterance"`
			Completed bool   `json:"completed"`
		}
		if err := decodeJSON(resp, &interactions); err != nil {
			return err
		}

		if len(interactions) == 0 {
			fmt.Println("No interactions found.")
			return nil
		}

		for _, ix := range interactions {
			utterance := ix.Utterance
			if len(utterance) > 80 {
				utterance = utterance[:80] + "..."
			}
			status := "failed"
			if ix.Completed {
				status = "completed"
			}
			fmt.Printf("%s  %s  %-9s  %s\n",
				colorize(colorCyan, shortID(ix.ID)),
				ix.CreatedAt,
				status,
				utterance,
			)
		}
		return nil
	},
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func init() {
	interactionsCmd.Flags().Int("limit", 20, "maximum number of interactions to list")
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		keys := config.ShowAll(cfg)
		for _, k := range keys {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
