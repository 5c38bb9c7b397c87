// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package catalog

import (
	"context"
	"iter"
	"log/slog"

	"github.com/pdiddy/book-harvester/pkg/types"
)

// Page is one fetched and parsed search results page.
type Page struct {
	// Number is the 1-based position of the page in the walk.
	Number int
	URL    string
	Stubs  []types.BookStub
}

// Walker follows the "Next" links of the catalog search from a fixed start.
type Walker struct {
	fetcher  Fetcher
	startURL string
	maxPages int
	log      *slog.Logger
}

// NewWalker returns a Walker starting at startURL. maxPages of zero walks
// until the catalog runs out.
func NewWalker(f Fetcher, startURL string, maxPages int, log *slog.Logger) *Walker {
	if log == nil {
		log = slog.Default()
	}
	return &Walker{fetcher: f, startURL: startURL, maxPages: maxPages, log: log}
}

// Pages yields each results page in order. The walk ends after a page
// without a "Next" link, or before yielding when a page cannot be fetched,
// cannot be parsed, lists no entries, or was already visited. Every call
// starts over from the start URL.
func (w *Walker) Pages(ctx context.Context) iter.Seq[Page] {
	return func(yield func(Page) bool) {
		visited := make(map[string]struct{})
		url := w.startURL
		for n := 1; url != ""; n++ {
			if ctx.Err() != nil {
				return
			}
			if _, ok := visited[url]; ok {
				w.log.Warn("index page already visited, ending walk", "url", url, "page", n)
				return
			}
			visited[url] = struct{}{}
			if w.maxPages > 0 && n > w.maxPages {
				w.log.Info("page limit reached", "max_pages", w.maxPages)
				return
			}

			html, ok := w.fetcher.Fetch(ctx, url)
			if !ok {
				w.log.Warn("index page unavailable, ending walk", "url", url, "page", n)
				return
			}
			stubs, next, err := ParseIndex(html, url)
			if err != nil {
				w.log.Error("index page unparseable, ending walk", "url", url, "error", err)
				return
			}
			if len(stubs) == 0 {
				w.log.Info("index page has no listings, ending walk", "url", url, "page", n)
				return
			}

			w.log.Info("index page", "page", n, "url", url, "listings", len(stubs))
			if !yield(Page{Number: n, URL: url, Stubs: stubs}) {
				return
			}
			url = next
		}
	}
}
