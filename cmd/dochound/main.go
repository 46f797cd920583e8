package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var noColor bool

var rootCmd = &cobra.Command{
	Use:     "dochound",
	Short:   "Local document catalog with a plan-driven LLM agent",
	Version: version,
	Long: `dochound indexes local documents into an in-memory catalog and answers
natural-language requests by generating and executing action plans against
it: scanning, searching, classifying, and exporting file metadata. All
language-model calls run against a local Ollama instance.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(sinkCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(catalogCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(feedbackCmd)
	rootCmd.AddCommand(interactionsCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
