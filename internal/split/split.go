// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package split writes each record of a harvested TSV artifact to its own
// text file.
package split

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/pdiddy/book-harvester/internal/sink"
	"github.com/pdiddy/book-harvester/pkg/types"
)

const maxTitleRunes = 50

// Result holds the outcome of a split run.
type Result struct {
	Written int
	Failed  int
	Paths   []string
}

// Total returns the number of rows processed.
func (r Result) Total() int {
	return r.Written + r.Failed
}

// FileName returns "<id>_<title>.txt", where title keeps only letters,
// digits, spaces, and "_.," and is cut to 50 characters.
func FileName(id types.BookID, title string) string {
	var b strings.Builder
	n := 0
	for _, r := range title {
		if n == maxTitleRunes {
			break
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) || strings.ContainsRune(" _.,", r) {
			b.WriteRune(r)
			n++
		}
	}
	return fmt.Sprintf("%s_%s.txt", id, b.String())
}

// Files reads cfg.Input and writes one file per record into cfg.OutputDir.
// A row that cannot be read or written is logged and counted; it does not
// stop the run.
func Files(ctx context.Context, cfg types.SplitConfig, log *slog.Logger) (Result, error) {
	if log == nil {
		log = slog.Default()
	}
	if _, err := os.Stat(cfg.Input); err != nil {
		return Result{}, fmt.Errorf("reading input: %w", err)
	}
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("creating directory %s: %w", cfg.OutputDir, err)
	}

	var res Result
	for rec, err := range sink.ReadTSVFile(cfg.Input) {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		if err != nil {
			log.Error("failed to read row", "input", cfg.Input, "error", err)
			res.Failed++
			continue
		}
		path := filepath.Join(cfg.OutputDir, FileName(rec.ID, rec.Title))
		if err := os.WriteFile(path, []byte(rec.Text), 0o644); err != nil {
			log.Error("failed to save", "path", path, "error", err)
			res.Failed++
			continue
		}
		log.Info("saved", "path", path)
		res.Written++
		res.Paths = append(res.Paths, path)
	}
	return res, nil
}
