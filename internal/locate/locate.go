// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package locate

import (
	"context"
	"iter"
	"log/slog"

	"github.com/pdiddy/book-harvester/pkg/types"
)

// Fetcher is the transport contract the locator needs.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, bool)
}

// FirstSuccess fetches each URL from candidates in order and returns the
// first one that yields non-empty content. An empty body counts as a miss.
// No URL after the winner is fetched.
func FirstSuccess(ctx context.Context, candidates iter.Seq[string], f Fetcher) (types.Content, bool) {
	for url := range candidates {
		if ctx.Err() != nil {
			return types.Content{}, false
		}
		if text, ok := f.Fetch(ctx, url); ok && text != "" {
			return types.Content{URL: url, Text: text}, true
		}
	}
	return types.Content{}, false
}

// Locator finds the content file of a book.
type Locator struct {
	fetcher    Fetcher
	baseURL    string
	versions   int
	extensions []string
	log        *slog.Logger
}

// New returns a Locator probing cfg.BaseURL through f.
func New(f Fetcher, cfg types.HarvestConfig, log *slog.Logger) *Locator {
	if log == nil {
		log = slog.Default()
	}
	versions := cfg.MaxVersions
	if versions <= 0 {
		versions = types.DefaultMaxVersions
	}
	extensions := cfg.Extensions
	if len(extensions) == 0 {
		extensions = types.DefaultExtensions
	}
	return &Locator{
		fetcher:    f,
		baseURL:    cfg.BaseURL,
		versions:   versions,
		extensions: extensions,
		log:        log,
	}
}

// Candidates returns the probe sequence for id.
func (l *Locator) Candidates(id types.BookID) iter.Seq[string] {
	return Candidates(l.baseURL, id, l.versions, l.extensions)
}

// Locate returns the content of the first candidate that resolves, or
// false when every candidate failed. An exhausted search is an expected
// outcome, not an error.
func (l *Locator) Locate(ctx context.Context, id types.BookID) (types.Content, bool) {
	probes := 0
	counted := func(yield func(string) bool) {
		for url := range l.Candidates(id) {
			probes++
			if !yield(url) {
				return
			}
		}
	}

	content, ok := FirstSuccess(ctx, counted, l.fetcher)
	if !ok {
		l.log.Warn("all URL patterns failed", "book_id", id, "probes", probes)
		return types.Content{}, false
	}
	l.log.Info("found valid text", "book_id", id, "url", content.URL, "probes", probes)
	return content, true
}
