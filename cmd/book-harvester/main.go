// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the book-harvester CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/lepinkainen/humanlog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/book-harvester/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// logFile is the open JSON log stream, if any.
var logFile *os.File

// rootCmd is the base command for the book-harvester CLI.
var rootCmd = &cobra.Command{
	Use:   "book-harvester",
	Short: "Acquire full-text books and metadata from Project Gutenberg",
	Long: `book-harvester walks the Project Gutenberg catalog, resolves each book's
release year, language, and content file, and writes the English ones to a
TSV, JSON-lines, or SQLite artifact.

harvest runs the acquisition; split turns a TSV artifact into one text file
per book; library loads, searches, and exports the SQLite library.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initLogging()
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if logFile == nil {
			return nil
		}
		return logFile.Close()
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./book-harvester.yaml or ~/.config/book-harvester/config.yaml)")
	rootCmd.PersistentFlags().String("log-file", "download_books.log", "also write JSON logs to this file (empty disables)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "log at debug level")
	rootCmd.PersistentFlags().String("library-dir", types.DefaultLibraryDir, "SQLite library directory")

	viper.BindPFlag("log_file", rootCmd.PersistentFlags().Lookup("log-file"))
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("library.dir", rootCmd.PersistentFlags().Lookup("library-dir"))
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("book-harvester")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "book-harvester"))
		}
	}

	viper.SetEnvPrefix("BOOK_HARVESTER")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// initLogging installs a humanlog handler on stdout and, when a log file is
// configured, a JSON handler on that file.
func initLogging() error {
	level := slog.LevelInfo
	if viper.GetBool("verbose") {
		level = slog.LevelDebug
	}

	var handler slog.Handler = humanlog.NewHandler(os.Stdout, &humanlog.Options{Level: level})

	if path := viper.GetString("log_file"); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		logFile = f
		handler = teeHandler{handler, slog.NewJSONHandler(f, &slog.HandlerOptions{Level: level})}
	}

	slog.SetDefault(slog.New(handler))
	return nil
}

// teeHandler sends every record to each of its handlers.
type teeHandler []slog.Handler

func (t teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range t {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (t teeHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range t {
		if h.Enabled(ctx, r.Level) {
			errs = append(errs, h.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (t teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(teeHandler, len(t))
	for i, h := range t {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (t teeHandler) WithGroup(name string) slog.Handler {
	out := make(teeHandler, len(t))
	for i, h := range t {
		out[i] = h.WithGroup(name)
	}
	return out
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
