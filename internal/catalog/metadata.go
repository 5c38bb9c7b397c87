// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package catalog reads the archive's HTML catalog: the bibliographic
// record on each book's detail page and the paginated search listings.
package catalog

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/pdiddy/book-harvester/pkg/types"
)

// Fetcher is the transport contract the catalog readers need.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, bool)
}

// yearPattern matches the first four-digit run of a release date.
var yearPattern = regexp.MustCompile(`\d{4}`)

// DetailURL returns the catalog page for id, e.g.
// "https://www.gutenberg.org/ebooks/12345".
func DetailURL(baseURL string, id types.BookID) string {
	return strings.TrimSuffix(baseURL, "/") + "/ebooks/" + id.String()
}

// Resolver reads release year and language from detail pages.
type Resolver struct {
	fetcher Fetcher
	baseURL string
	log     *slog.Logger
}

// NewResolver returns a Resolver reading detail pages under baseURL.
func NewResolver(f Fetcher, baseURL string, log *slog.Logger) *Resolver {
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{fetcher: f, baseURL: baseURL, log: log}
}

// Resolve fetches the detail page of id and parses its bibliographic
// record. It never fails: a page that cannot be fetched or lacks a field
// leaves that field Unknown.
func (r *Resolver) Resolve(ctx context.Context, id types.BookID) types.Metadata {
	page, ok := r.fetcher.Fetch(ctx, DetailURL(r.baseURL, id))
	if !ok {
		r.log.Warn("metadata unavailable", "book_id", id)
		return types.UnknownMetadata()
	}
	meta := ParseMetadata(page)
	r.log.Debug("resolved metadata", "book_id", id, "year", meta.Year, "language", meta.Language)
	return meta
}

// ParseMetadata extracts Metadata from a detail page. Rows of the bibrec
// table whose header contains "Release Date" give the year; rows whose
// header contains "Language" give the language. Other rows are ignored.
func ParseMetadata(html string) types.Metadata {
	meta := types.UnknownMetadata()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return meta
	}

	doc.Find("table.bibrec").First().Find("tr").Each(func(_ int, row *goquery.Selection) {
		label := row.Find("th").First().Text()
		value := row.Find("td").First().Text()
		if strings.Contains(label, "Release Date") {
			if year := yearPattern.FindString(value); year != "" {
				meta.Year = year
			}
		}
		if strings.Contains(label, "Language") {
			meta.Language = strings.TrimSpace(value)
		}
	})
	return meta
}
