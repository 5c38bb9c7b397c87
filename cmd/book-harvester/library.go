// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/book-harvester/internal/library"
	"github.com/pdiddy/book-harvester/pkg/types"
)

var libraryCmd = &cobra.Command{
	Use:   "library",
	Short: "Manage the SQLite library (store, search, export, runs)",
	Long: `Library manages a local SQLite database of harvested books with a
full-text index over title, author, and text. harvest --format sqlite writes
into it directly; store loads an existing TSV artifact.`,
}

// --- store subcommand ---

var libraryStoreCmd = &cobra.Command{
	Use:   "store [artifact.tsv]",
	Short: "Load a TSV artifact into the library",
	Long: `Store reads a harvested TSV artifact and indexes every row. Books already
in the library are replaced.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLibraryStore,
}

func runLibraryStore(cmd *cobra.Command, args []string) error {
	input := types.DefaultOutput
	if len(args) == 1 {
		input = args[0]
	}

	store, err := library.NewStore(libraryConfig())
	if err != nil {
		return err
	}
	defer store.Close()

	summary, err := store.Ingest(cmd.Context(), input, slog.Default())
	if err != nil {
		return err
	}
	total, err := store.Count(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Printf("Indexed %d, updated %d; library holds %d book(s)\n", summary.Indexed, summary.Updated, total)
	if summary.Failed > 0 {
		return fmt.Errorf("%d row(s) failed indexing", summary.Failed)
	}
	return nil
}

// --- search subcommand ---

var librarySearchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Query the library with full-text search and filters",
	Long: `Search matches the query against title, author, and text using the
SQLite full-text index, optionally narrowed by --author and --year.`,
	RunE: runLibrarySearch,
}

func runLibrarySearch(cmd *cobra.Command, args []string) error {
	store, err := library.NewStore(libraryConfig())
	if err != nil {
		return err
	}
	defer store.Close()

	opts := queryOptsFromFlags(cmd, args)
	if opts.IsEmpty() {
		return fmt.Errorf("query or filter required: provide a search query, --author, or --year")
	}

	results, err := store.Search(cmd.Context(), opts)
	if err != nil {
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	return formatSearchOutput(results, jsonOutput)
}

func formatSearchOutput(results []library.QueryResult, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	if len(results) == 0 {
		fmt.Println("No results found.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-8s  %-40s  %-25s  %-7s  %s\n", "ID", "Title", "Author", "Year", "Snippet")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 110))

	for _, r := range results {
		fmt.Fprintf(os.Stdout, "%-8s  %-40s  %-25s  %-7s  %s\n",
			r.ID, truncate(r.Title, 40), truncate(r.Author, 25), r.Year, truncate(r.Snippet, 60))
	}

	fmt.Fprintf(os.Stdout, "\n%d results\n", len(results))
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// --- export subcommand ---

var libraryExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the library catalog to YAML or JSON",
	Long: `Export writes the id, title, author, year, source URL, and text length of
every stored book (or a filtered subset) to <library-dir>/export.yaml or
export.json. Book text is not exported.`,
	RunE: runLibraryExport,
}

func runLibraryExport(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")

	store, err := library.NewStore(libraryConfig())
	if err != nil {
		return err
	}
	defer store.Close()

	opts := queryOptsFromFlags(cmd, args)

	var path string
	switch format {
	case "yaml", "":
		path, err = store.ExportYAML(cmd.Context(), opts)
	case "json":
		path, err = store.ExportJSON(cmd.Context(), opts)
	default:
		return fmt.Errorf("unsupported format %q: use yaml or json", format)
	}
	if err != nil {
		return err
	}
	fmt.Println("Exported to", path)
	return nil
}

// --- runs subcommand ---

var libraryRunsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List harvest runs recorded in the library",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := library.NewStore(libraryConfig())
		if err != nil {
			return err
		}
		defer store.Close()

		runs, err := store.Runs(cmd.Context())
		if err != nil {
			return err
		}
		for _, r := range runs {
			fmt.Printf("%s  %-8s  %-20s  %-20s  %d\n", r.ID, r.Status, r.StartedAt, r.FinishedAt, r.Emitted)
		}
		return nil
	},
}

// --- shared helpers ---

func libraryConfig() types.LibraryConfig {
	dir := viper.GetString("library.dir")
	if dir == "" {
		dir = types.DefaultLibraryDir
	}
	return types.LibraryConfig{
		Dir:        dir,
		MaxResults: viper.GetInt("library.max_results"),
	}
}

func queryOptsFromFlags(cmd *cobra.Command, args []string) library.QueryOptions {
	queryText, _ := cmd.Flags().GetString("query")
	if queryText == "" && len(args) > 0 {
		queryText = strings.Join(args, " ")
	}
	author, _ := cmd.Flags().GetString("author")
	year, _ := cmd.Flags().GetString("year")
	limit, _ := cmd.Flags().GetInt("limit")

	return library.QueryOptions{
		Query:      queryText,
		Author:     author,
		Year:       year,
		MaxResults: limit,
	}
}

func init() {
	libraryCmd.PersistentFlags().Int("max-results", 20, "maximum number of search results")
	viper.BindPFlag("library.max_results", libraryCmd.PersistentFlags().Lookup("max-results"))

	for _, c := range []*cobra.Command{librarySearchCmd, libraryExportCmd} {
		c.Flags().String("query", "", "full-text search query")
		c.Flags().String("author", "", "filter by author substring")
		c.Flags().String("year", "", "filter by release year")
		c.Flags().Int("limit", 0, "maximum results (0 = default)")
	}
	librarySearchCmd.Flags().Bool("json", false, "output results as JSON")
	libraryExportCmd.Flags().String("format", "yaml", "export format: yaml or json")

	libraryCmd.AddCommand(libraryStoreCmd)
	libraryCmd.AddCommand(librarySearchCmd)
	libraryCmd.AddCommand(libraryExportCmd)
	libraryCmd.AddCommand(libraryRunsCmd)

	rootCmd.AddCommand(libraryCmd)
}
