// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/book-harvester/internal/acquire"
	"github.com/pdiddy/book-harvester/internal/httputil"
	"github.com/pdiddy/book-harvester/internal/library"
	"github.com/pdiddy/book-harvester/internal/sink"
	"github.com/pdiddy/book-harvester/pkg/types"
)

var harvestCmd = &cobra.Command{
	Use:   "harvest",
	Short: "Walk the catalog and write English books to an artifact",
	Long: `Harvest walks the catalog search results page by page. For every new book
it reads the release year and language from the detail page, and for English
books probes the known content file names until one answers.

With tsv or jsonl output the run is skipped when the artifact already exists.
With sqlite output the run always executes and skips books already stored in
the library, so an interrupted harvest picks up where it left off.`,
	RunE: runHarvest,
}

func init() {
	f := harvestCmd.Flags()
	f.String("base-url", types.DefaultBaseURL, "archive host")
	f.String("start-url", "", "first catalog search page (default: popular English books on base-url)")
	f.String("language", types.DefaultLanguage, "catalog language to keep")
	f.Duration("timeout", types.DefaultTimeout, "per-attempt request timeout")
	f.Int("max-attempts", types.DefaultMaxAttempts, "attempts per URL")
	f.Duration("backoff-base", types.DefaultBackoffBase, "wait before the second attempt, doubled after each failure")
	f.String("user-agent", types.DefaultUserAgent, "User-Agent request header")
	f.Int("max-versions", types.DefaultMaxVersions, "versioned file names probed per book")
	f.StringSlice("extensions", types.DefaultExtensions, "content extensions in probe order")
	f.Int("concurrency", 0, "books in flight per page (0: the whole page)")
	f.Float64("requests-per-second", 0, "request rate cap (0: unlimited)")
	f.Int("max-pages", 0, "stop after this many index pages (0: all)")
	f.StringP("output", "o", types.DefaultOutput, "artifact path for tsv and jsonl output")
	f.String("format", string(types.FormatTSV), "output format: tsv, jsonl, or sqlite")

	for key, flag := range map[string]string{
		"base_url":            "base-url",
		"start_url":           "start-url",
		"language":            "language",
		"timeout":             "timeout",
		"max_attempts":        "max-attempts",
		"backoff_base":        "backoff-base",
		"user_agent":          "user-agent",
		"max_versions":        "max-versions",
		"extensions":          "extensions",
		"concurrency":         "concurrency",
		"requests_per_second": "requests-per-second",
		"max_pages":           "max-pages",
		"output":              "output",
		"format":              "format",
	} {
		viper.BindPFlag(key, f.Lookup(flag))
	}

	rootCmd.AddCommand(harvestCmd)
}

func harvestConfig() types.HarvestConfig {
	return types.HarvestConfig{
		HTTPConfig: types.HTTPConfig{
			Timeout:           viper.GetDuration("timeout"),
			UserAgent:         viper.GetString("user_agent"),
			MaxAttempts:       viper.GetInt("max_attempts"),
			BackoffBase:       viper.GetDuration("backoff_base"),
			RequestsPerSecond: viper.GetFloat64("requests_per_second"),
		},
		BaseURL:     viper.GetString("base_url"),
		StartURL:    viper.GetString("start_url"),
		Language:    viper.GetString("language"),
		MaxVersions: viper.GetInt("max_versions"),
		Extensions:  viper.GetStringSlice("extensions"),
		Concurrency: viper.GetInt("concurrency"),
		MaxPages:    viper.GetInt("max_pages"),
	}
}

func runHarvest(cmd *cobra.Command, args []string) error {
	cfg := harvestConfig()
	sinkCfg := types.SinkConfig{
		Output: viper.GetString("output"),
		Format: types.SinkFormat(viper.GetString("format")),
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := slog.Default()
	fetcher := httputil.NewFetcher(cfg.HTTPConfig, httputil.WithLogger(log))
	h := acquire.New(acquire.NewComponents(fetcher, cfg, log), cfg,
		acquire.WithLogger(log),
		acquire.WithProgress(func(page, done, total int) {
			log.Debug("progress", "page", page, "done", done, "total", total)
		}),
	)

	var (
		sum acquire.Summary
		ran = true
		err error
		tsv *sink.TSV
	)
	switch sinkCfg.Format {
	case types.FormatTSV:
		sum, ran, err = h.RunIfAbsent(ctx, sinkCfg.Output, func() (acquire.Sink, error) {
			t, err := sink.NewTSV(sinkCfg.Output)
			if err != nil {
				return nil, err
			}
			tsv = t
			return t, nil
		})
	case types.FormatJSONL:
		sum, ran, err = h.RunIfAbsent(ctx, sinkCfg.Output, func() (acquire.Sink, error) {
			return sink.NewJSONL(sinkCfg.Output)
		})
	case types.FormatSQLite:
		sum, err = harvestIntoLibrary(ctx, h, libraryConfig())
	default:
		return fmt.Errorf("unknown format %q: use tsv, jsonl, or sqlite", sinkCfg.Format)
	}
	if err != nil {
		return err
	}
	if ran {
		fmt.Println(sum.String())
	}
	if tsv != nil {
		fmt.Printf("Wrote %d row(s) to %s\n", tsv.Rows(), sinkCfg.Output)
	}
	return nil
}

// harvestIntoLibrary runs h into a new library run, skipping books the
// library already holds.
func harvestIntoLibrary(ctx context.Context, h *acquire.Harvester, cfg types.LibraryConfig) (acquire.Summary, error) {
	store, err := library.NewStore(cfg)
	if err != nil {
		return acquire.Summary{}, err
	}
	defer store.Close()

	known, err := store.IDs(ctx)
	if err != nil {
		return acquire.Summary{}, err
	}
	state := acquire.NewCrawlState()
	state.Mark(known...)
	if state.Len() > 0 {
		slog.Info("resuming library", "stored", state.Len())
	}

	run, err := store.StartRun(ctx)
	if err != nil {
		return acquire.Summary{}, err
	}
	sum, err := h.RunWith(ctx, state, run)
	if err != nil {
		if abortErr := run.Abort(); abortErr != nil {
			slog.Error("failed to record aborted run", "run_id", run.ID(), "error", abortErr)
		}
		return sum, err
	}
	return sum, run.Close()
}
