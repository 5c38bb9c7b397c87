// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/pdiddy/book-harvester/internal/split"
	"github.com/pdiddy/book-harvester/pkg/types"
)

var splitCmd = &cobra.Command{
	Use:   "split [artifact.tsv]",
	Short: "Write one text file per book from a TSV artifact",
	Long: `Split reads a harvested TSV artifact and writes each book's text to
<output-dir>/<ID>_<title>.txt. Rows that cannot be written are logged and
counted; the rest are still written.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSplit,
}

func init() {
	splitCmd.Flags().String("output-dir", types.DefaultTextsDir, "directory for the text files")
	rootCmd.AddCommand(splitCmd)
}

func runSplit(cmd *cobra.Command, args []string) error {
	input := types.DefaultOutput
	if len(args) == 1 {
		input = args[0]
	}
	outDir, _ := cmd.Flags().GetString("output-dir")

	res, err := split.Files(cmd.Context(), types.SplitConfig{Input: input, OutputDir: outDir}, slog.Default())
	if err != nil {
		return err
	}
	fmt.Printf("Wrote %d of %d file(s) to %s\n", res.Written, res.Total(), outDir)
	if res.Failed > 0 {
		return fmt.Errorf("%d book(s) failed to write", res.Failed)
	}
	return nil
}
