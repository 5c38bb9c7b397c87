// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package acquire drives a harvest: it walks the catalog index page by page,
// resolves metadata and content for every new book concurrently, keeps the
// books in the target language, and hands finished records to a Sink.
package acquire

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"os"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/book-harvester/internal/catalog"
	"github.com/pdiddy/book-harvester/internal/locate"
	"github.com/pdiddy/book-harvester/pkg/types"
)

// Sink persists finished records. Put is never called concurrently.
type Sink interface {
	Put(ctx context.Context, rec types.BookRecord) error
	Close() error
}

// Aborter is implemented by sinks that can discard a partially written
// artifact. RunIfAbsent calls Abort instead of Close when a run fails.
type Aborter interface {
	Abort() error
}

// Pager yields catalog index pages.
type Pager interface {
	Pages(ctx context.Context) iter.Seq[catalog.Page]
}

// MetadataResolver reads a book's bibliographic metadata.
type MetadataResolver interface {
	Resolve(ctx context.Context, id types.BookID) types.Metadata
}

// ContentLocator finds a book's content file.
type ContentLocator interface {
	Locate(ctx context.Context, id types.BookID) (types.Content, bool)
}

// Fetcher is the transport the default components are built on.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, bool)
}

// ProgressFunc is called after each book of a page finishes, whatever the
// outcome. done counts up to total, the number of books scheduled for the
// page.
type ProgressFunc func(page, done, total int)

// Components are the collaborators a Harvester coordinates.
type Components struct {
	Pager    Pager
	Resolver MetadataResolver
	Locator  ContentLocator
}

// NewComponents builds the catalog walker, metadata resolver, and locator
// for cfg on top of f.
func NewComponents(f Fetcher, cfg types.HarvestConfig, log *slog.Logger) Components {
	return Components{
		Pager:    catalog.NewWalker(f, cfg.SearchURL(), cfg.MaxPages, log),
		Resolver: catalog.NewResolver(f, cfg.BaseURL, log),
		Locator:  locate.New(f, cfg, log),
	}
}

// Outcome is the result of harvesting one book.
type Outcome int

const (
	OutcomeEmitted Outcome = iota
	OutcomeFiltered
	OutcomeUnavailable
)

func (o Outcome) String() string {
	switch o {
	case OutcomeEmitted:
		return "emitted"
	case OutcomeFiltered:
		return "filtered"
	case OutcomeUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Summary holds the counts of a harvest run.
type Summary struct {
	Pages       int
	Listed      int
	Duplicates  int
	Emitted     int
	Filtered    int
	Unavailable int
}

// Scheduled returns the number of books that were resolved.
func (s Summary) Scheduled() int {
	return s.Emitted + s.Filtered + s.Unavailable
}

func (s Summary) String() string {
	return fmt.Sprintf("%d pages, %d listed, %d duplicates, %d scheduled (%d emitted, %d filtered, %d unavailable)",
		s.Pages, s.Listed, s.Duplicates, s.Scheduled(), s.Emitted, s.Filtered, s.Unavailable)
}

// Harvester coordinates one or more independent harvest runs.
type Harvester struct {
	c           Components
	language    string
	concurrency int
	log         *slog.Logger
	progress    ProgressFunc
}

// Option configures a Harvester.
type Option func(*Harvester)

// WithLogger sets the run logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harvester) { h.log = l }
}

// WithProgress registers a per-book completion callback.
func WithProgress(fn ProgressFunc) Option {
	return func(h *Harvester) { h.progress = fn }
}

// New returns a Harvester keeping books whose catalog language equals
// cfg.Language, ignoring case.
func New(c Components, cfg types.HarvestConfig, opts ...Option) *Harvester {
	language := cfg.Language
	if language == "" {
		language = types.DefaultLanguage
	}
	h := &Harvester{
		c:           c,
		language:    language,
		concurrency: cfg.Concurrency,
		log:         slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run performs a full harvest with fresh state.
func (h *Harvester) Run(ctx context.Context, sink Sink) (Summary, error) {
	return h.RunWith(ctx, NewCrawlState(), sink)
}

// RunWith performs a harvest using state for deduplication. Books already
// in state are never scheduled. Pages are processed one at a time: every
// book of a page finishes before the next page is fetched. Records of a
// page reach the sink in completion order once the page is done.
func (h *Harvester) RunWith(ctx context.Context, state *CrawlState, sink Sink) (Summary, error) {
	var sum Summary
	for page := range h.c.Pager.Pages(ctx) {
		state.CurrentURL = page.URL
		batch := state.Claim(page.Stubs)

		sum.Pages++
		sum.Listed += len(page.Stubs)
		sum.Duplicates += len(page.Stubs) - len(batch)

		records := h.harvestPage(ctx, page.Number, batch, &sum)
		for _, rec := range records {
			if err := sink.Put(ctx, rec); err != nil {
				return sum, fmt.Errorf("writing book %s: %w", rec.ID, err)
			}
		}
		h.log.Info("page done", "page", page.Number, "scheduled", len(batch), "emitted", len(records))
	}
	state.CurrentURL = ""

	if err := ctx.Err(); err != nil {
		return sum, err
	}
	h.log.Info("harvest complete", "summary", sum.String())
	return sum, nil
}

// harvestPage resolves every book of batch concurrently and returns the
// emitted records in completion order.
func (h *Harvester) harvestPage(ctx context.Context, page int, batch []types.BookStub, sum *Summary) []types.BookRecord {
	var (
		g       errgroup.Group
		mu      sync.Mutex
		records []types.BookRecord
		done    int
	)
	if h.concurrency > 0 {
		g.SetLimit(h.concurrency)
	}

	for _, stub := range batch {
		g.Go(func() error {
			rec, outcome := h.Harvest(ctx, stub)

			mu.Lock()
			defer mu.Unlock()
			switch outcome {
			case OutcomeEmitted:
				records = append(records, rec)
				sum.Emitted++
			case OutcomeFiltered:
				sum.Filtered++
			case OutcomeUnavailable:
				sum.Unavailable++
			}
			done++
			if h.progress != nil {
				h.progress(page, done, len(batch))
			}
			return nil
		})
	}
	_ = g.Wait()
	return records
}

// Harvest resolves a single book: metadata first, then content only when
// the language matches.
func (h *Harvester) Harvest(ctx context.Context, stub types.BookStub) (types.BookRecord, Outcome) {
	meta := h.c.Resolver.Resolve(ctx, stub.ID)
	if !strings.EqualFold(meta.Language, h.language) {
		h.log.Debug("skipping book", "book_id", stub.ID, "language", meta.Language)
		return types.BookRecord{}, OutcomeFiltered
	}

	content, ok := h.c.Locator.Locate(ctx, stub.ID)
	if !ok {
		return types.BookRecord{}, OutcomeUnavailable
	}
	return types.BookRecord{
		ID:        stub.ID,
		Title:     stub.Title,
		Author:    stub.Author,
		Year:      meta.Year,
		SourceURL: content.URL,
		Text:      content.Text,
	}, OutcomeEmitted
}

// RunIfAbsent runs a harvest into the sink returned by open unless artifact
// already exists, in which case it does nothing and reports ran=false.
// A failed run aborts the sink when it supports it.
func (h *Harvester) RunIfAbsent(ctx context.Context, artifact string, open func() (Sink, error)) (sum Summary, ran bool, err error) {
	if _, statErr := os.Stat(artifact); statErr == nil {
		h.log.Info("data already downloaded", "artifact", artifact)
		return Summary{}, false, nil
	} else if !errors.Is(statErr, os.ErrNotExist) {
		return Summary{}, false, fmt.Errorf("checking %s: %w", artifact, statErr)
	}

	sink, err := open()
	if err != nil {
		return Summary{}, false, fmt.Errorf("opening sink: %w", err)
	}

	sum, err = h.Run(ctx, sink)
	if err != nil {
		if a, ok := sink.(Aborter); ok {
			return sum, true, errors.Join(err, a.Abort())
		}
		return sum, true, errors.Join(err, sink.Close())
	}
	if err := sink.Close(); err != nil {
		return sum, true, fmt.Errorf("closing sink: %w", err)
	}
	return sum, true, nil
}
