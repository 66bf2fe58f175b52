// Package cmd implements the CLI commands for PartsPipe using Cobra.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "partspipe",
	Short: "PartsPipe — extract supplier and part data from vendor pages",
	Long: `PartsPipe is an ingestion pipeline that fetches supplier product pages
and datasheets, extracts tabular data, and merges normalized supplier
and part records into CSV stores.

Usage:
  partspipe ingest <url>... [flags]`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
