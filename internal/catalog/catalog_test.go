// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package catalog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/book-harvester/internal/httputil"
	"github.com/pdiddy/book-harvester/pkg/types"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const sampleDetailHTML = `<html><body>
<table class="bibrec">
  <tr><th>Author</th><td>Austen, Jane, 1775-1817</td></tr>
  <tr><th>Title</th><td>Pride and Prejudice</td></tr>
  <tr><th>Language</th><td>
    English
  </td></tr>
  <tr><th>Release Date</th><td>Jun 1, 1998</td></tr>
  <tr><th>Downloads</th><td>74505 downloads in the last 30 days.</td></tr>
</table>
</body></html>`

func TestParseMetadata(t *testing.T) {
	tests := []struct {
		name string
		html string
		want types.Metadata
	}{
		{"full record", sampleDetailHTML, types.Metadata{Year: "1998", Language: "English"}},
		{"no table", `<html><body><p>nothing here</p></body></html>`, types.UnknownMetadata()},
		{
			"language only",
			`<table class="bibrec"><tr><th>Language</th><td>French</td></tr></table>`,
			types.Metadata{Year: types.Unknown, Language: "French"},
		},
		{
			"release date without year",
			`<table class="bibrec"><tr><th>Release Date</th><td>sometime</td></tr></table>`,
			types.UnknownMetadata(),
		},
		{
			"first four digit run wins",
			`<table class="bibrec"><tr><th>Release Date</th><td>Mar 2003 [EBook #3891] updated 2021</td></tr></table>`,
			types.Metadata{Year: "2003", Language: types.Unknown},
		},
		{
			"language row without value",
			`<table class="bibrec"><tr><td>orphan</td></tr><tr><th>Language</th></tr></table>`,
			types.Metadata{Year: types.Unknown, Language: ""},
		},
		{
			"other tables ignored",
			`<table class="other"><tr><th>Language</th><td>German</td></tr></table>`,
			types.UnknownMetadata(),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseMetadata(tt.html))
		})
	}
}

// mapFetcher serves a fixed url→body map and records requests.
type mapFetcher struct {
	mu    sync.Mutex
	pages map[string]string
	calls []string
}

func (m *mapFetcher) Fetch(_ context.Context, url string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, url)
	body, ok := m.pages[url]
	return body, ok
}

func TestResolver_Resolve(t *testing.T) {
	f := &mapFetcher{pages: map[string]string{
		"https://archive.test/ebooks/1342": sampleDetailHTML,
	}}
	r := NewResolver(f, "https://archive.test", quietLogger())

	assert.Equal(t, types.Metadata{Year: "1998", Language: "English"}, r.Resolve(context.Background(), "1342"))
	assert.Equal(t, types.UnknownMetadata(), r.Resolve(context.Background(), "missing"))
	assert.Equal(t, []string{"https://archive.test/ebooks/1342", "https://archive.test/ebooks/missing"}, f.calls)
}

func listingHTML(next string, entries ...types.BookStub) string {
	var b strings.Builder
	b.WriteString("<html><body><ul>")
	for _, e := range entries {
		fmt.Fprintf(&b, `<li class="booklink"><a class="link" href="/ebooks/%s"><span class="cell content">`, e.ID)
		if e.Title != "" {
			fmt.Fprintf(&b, `<span class="title">%s</span>`, e.Title)
		}
		if e.Author != "" {
			fmt.Fprintf(&b, `<span class="subtitle">%s</span>`, e.Author)
		}
		b.WriteString("</span></a></li>")
	}
	b.WriteString("</ul>")
	if next != "" {
		fmt.Fprintf(&b, `<a href="%s" accesskey="+">Next</a>`, next)
	}
	b.WriteString("</body></html>")
	return b.String()
}

func TestParseIndex(t *testing.T) {
	html := listingHTML("/ebooks/search/?sort_order=downloads&start_index=26",
		types.BookStub{ID: "1342", Title: "Pride and Prejudice", Author: "Jane Austen"},
		types.BookStub{ID: "84"},
	)
	stubs, next, err := ParseIndex(html, "https://archive.test/ebooks/search/?sort_order=downloads")
	require.NoError(t, err)

	assert.Equal(t, []types.BookStub{
		{ID: "1342", Title: "Pride and Prejudice", Author: "Jane Austen"},
		{ID: "84", Title: "No Title", Author: "Unknown Author"},
	}, stubs)
	assert.Equal(t, "https://archive.test/ebooks/search/?sort_order=downloads&start_index=26", next)
}

func TestParseIndex_NoNextLink(t *testing.T) {
	html := listingHTML("", types.BookStub{ID: "1"}) + `<a href="/prev">Previous</a><a href="/x">Next page</a>`
	stubs, next, err := ParseIndex(html, "https://archive.test/ebooks/search/")
	require.NoError(t, err)
	assert.Len(t, stubs, 1)
	assert.Empty(t, next)
}

func TestParseIndex_AbsoluteNextLink(t *testing.T) {
	html := listingHTML("https://mirror.test/page2", types.BookStub{ID: "1"})
	_, next, err := ParseIndex(html, "https://archive.test/ebooks/search/")
	require.NoError(t, err)
	assert.Equal(t, "https://mirror.test/page2", next)
}

func TestParseIndex_EntryWithoutLinkSkipped(t *testing.T) {
	html := `<ul><li class="booklink"><span class="title">Orphan</span></li>` +
		`<li class="booklink"><a href="/ebooks/11/">Alice</a></li></ul>`
	stubs, _, err := ParseIndex(html, "https://archive.test/")
	require.NoError(t, err)
	require.Len(t, stubs, 1)
	assert.Equal(t, types.BookID("11"), stubs[0].ID)
}

func TestBookIDFromHref(t *testing.T) {
	tests := []struct {
		href string
		want types.BookID
	}{
		{"/ebooks/1342", "1342"},
		{"/ebooks/1342/", "1342"},
		{"https://archive.test/ebooks/84", "84"},
		{"/ebooks/11?x=1", "11"},
		{"", ""},
		{"/", ""},
	}
	for _, tt := range tests {
		t.Run(tt.href, func(t *testing.T) {
			assert.Equal(t, tt.want, bookIDFromHref(tt.href))
		})
	}
}

func TestWalker_FollowsNextUntilAbsent(t *testing.T) {
	f := &mapFetcher{pages: map[string]string{
		"https://archive.test/s?p=1": listingHTML("/s?p=2", types.BookStub{ID: "1"}, types.BookStub{ID: "2"}),
		"https://archive.test/s?p=2": listingHTML("/s?p=3", types.BookStub{ID: "3"}),
		"https://archive.test/s?p=3": listingHTML("", types.BookStub{ID: "4"}),
	}}
	w := NewWalker(f, "https://archive.test/s?p=1", 0, quietLogger())

	pages := slices.Collect(w.Pages(context.Background()))
	require.Len(t, pages, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{pages[0].Number, pages[1].Number, pages[2].Number})
	assert.Len(t, pages[0].Stubs, 2)
	assert.Equal(t, types.BookID("4"), pages[2].Stubs[0].ID)
	assert.Len(t, f.calls, 3)
}

func TestWalker_StopsOnEmptyListing(t *testing.T) {
	f := &mapFetcher{pages: map[string]string{
		"https://archive.test/s?p=1": listingHTML("/s?p=2", types.BookStub{ID: "1"}),
		"https://archive.test/s?p=2": listingHTML("/s?p=3"),
		"https://archive.test/s?p=3": listingHTML("", types.BookStub{ID: "3"}),
	}}
	pages := slices.Collect(NewWalker(f, "https://archive.test/s?p=1", 0, quietLogger()).Pages(context.Background()))
	assert.Len(t, pages, 1)
	assert.Len(t, f.calls, 2)
}

func TestWalker_StopsOnFetchFailure(t *testing.T) {
	f := &mapFetcher{pages: map[string]string{
		"https://archive.test/s?p=1": listingHTML("/s?p=2", types.BookStub{ID: "1"}),
	}}
	pages := slices.Collect(NewWalker(f, "https://archive.test/s?p=1", 0, quietLogger()).Pages(context.Background()))
	assert.Len(t, pages, 1)
}

func TestWalker_MaxPages(t *testing.T) {
	f := &mapFetcher{pages: map[string]string{
		"https://archive.test/s?p=1": listingHTML("/s?p=2", types.BookStub{ID: "1"}),
		"https://archive.test/s?p=2": listingHTML("/s?p=3", types.BookStub{ID: "2"}),
	}}
	pages := slices.Collect(NewWalker(f, "https://archive.test/s?p=1", 1, quietLogger()).Pages(context.Background()))
	assert.Len(t, pages, 1)
	assert.Len(t, f.calls, 1)
}

func TestWalker_StopsOnRepeatedPage(t *testing.T) {
	tests := []struct {
		name  string
		pages map[string]string
		want  int
	}{
		{"self link", map[string]string{
			"https://archive.test/s?p=1": listingHTML("/s?p=1", types.BookStub{ID: "1"}),
		}, 1},
		{"cycle", map[string]string{
			"https://archive.test/s?p=1": listingHTML("/s?p=2", types.BookStub{ID: "1"}),
			"https://archive.test/s?p=2": listingHTML("/s?p=1", types.BookStub{ID: "2"}),
		}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &mapFetcher{pages: tt.pages}
			pages := slices.Collect(NewWalker(f, "https://archive.test/s?p=1", 0, quietLogger()).Pages(context.Background()))
			assert.Len(t, pages, tt.want)
			assert.Len(t, f.calls, tt.want)
		})
	}
}

func TestWalker_RestartsFromStart(t *testing.T) {
	f := &mapFetcher{pages: map[string]string{
		"https://archive.test/s": listingHTML("", types.BookStub{ID: "1"}),
	}}
	w := NewWalker(f, "https://archive.test/s", 0, quietLogger())
	assert.Len(t, slices.Collect(w.Pages(context.Background())), 1)
	assert.Len(t, slices.Collect(w.Pages(context.Background())), 1)
	assert.Equal(t, []string{"https://archive.test/s", "https://archive.test/s"}, f.calls)
}

func TestWalker_OverHTTP(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("start_index") {
		case "":
			fmt.Fprint(w, listingHTML("/ebooks/search/?start_index=26", types.BookStub{ID: "1342"}))
		case "26":
			fmt.Fprint(w, listingHTML("", types.BookStub{ID: "84"}))
		default:
			http.NotFound(w, r)
		}
	}))
	defer ts.Close()

	fetcher := httputil.NewFetcher(types.HTTPConfig{}, httputil.WithClient(ts.Client()), httputil.WithLogger(quietLogger()))
	pages := slices.Collect(NewWalker(fetcher, ts.URL+"/ebooks/search/", 0, quietLogger()).Pages(context.Background()))
	require.Len(t, pages, 2)
	assert.Equal(t, ts.URL+"/ebooks/search/?start_index=26", pages[1].URL)
}
