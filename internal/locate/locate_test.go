// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package locate

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/book-harvester/internal/httputil"
	"github.com/pdiddy/book-harvester/pkg/types"
)

const base = "https://archive.test"

// fakeFetcher serves a fixed url→text map and records every request.
type fakeFetcher struct {
	mu      sync.Mutex
	content map[string]string
	calls   []string
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, url)
	text, ok := f.content[url]
	return text, ok
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newLocator(f Fetcher) *Locator {
	cfg := types.DefaultHarvestConfig()
	cfg.BaseURL = base
	return New(f, cfg, quietLogger())
}

func TestCandidates_FirstVersionOrder(t *testing.T) {
	got := slices.Collect(Candidates(base, "12345", 1, types.DefaultExtensions))

	dir := base + "/files/12345/"
	want := []string{
		dir + "12345-0.epub.noimages",
		dir + "12345-0.epub",
		dir + "12345-0.html.noimages",
		dir + "12345-0.html",
		dir + "12345-0.pdf",
		dir + "12345-0.txt",
		dir + "12345-0.txt.utf8",
		dir + "12345.epub.noimages",
		dir + "12345.epub",
		dir + "12345.html.noimages",
		dir + "12345.html",
		dir + "12345.pdf",
		dir + "12345.txt",
		dir + "12345.txt.utf8",
	}
	assert.Equal(t, want, got)
}

func TestCandidates_FullSearchSpace(t *testing.T) {
	got := slices.Collect(Candidates(base, "7", 10, types.DefaultExtensions))
	require.Len(t, got, 77)

	dir := base + "/files/7/"
	for v := range 10 {
		assert.Equal(t, fmt.Sprintf("%s7-%d.epub.noimages", dir, v), got[v*7])
		assert.Equal(t, fmt.Sprintf("%s7-%d.txt.utf8", dir, v), got[v*7+6])
	}
	assert.Equal(t, dir+"7.epub.noimages", got[70])
	assert.Equal(t, dir+"7.txt.utf8", got[76])

	seen := make(map[string]bool)
	for _, u := range got {
		assert.False(t, seen[u], "duplicate candidate %s", u)
		seen[u] = true
	}
}

func TestCandidates_StopsEarly(t *testing.T) {
	var n int
	for range Candidates(base, "1", 10, types.DefaultExtensions) {
		n++
		if n == 3 {
			break
		}
	}
	assert.Equal(t, 3, n)
}

func TestLocate_ScenarioPlainTextOnly(t *testing.T) {
	winner := base + "/files/12345/12345-0.txt"
	f := &fakeFetcher{content: map[string]string{winner: "It was a dark and stormy night."}}

	content, ok := newLocator(f).Locate(context.Background(), "12345")
	require.True(t, ok)

	assert.Equal(t, winner, content.URL)
	assert.Equal(t, "It was a dark and stormy night.", content.Text)
	// epub.noimages, epub, html.noimages, html, pdf, txt.
	assert.Len(t, f.calls, 6)
	assert.Equal(t, winner, f.calls[len(f.calls)-1])
}

func TestLocate_NoImagesVariantWins(t *testing.T) {
	winner := base + "/files/9/9-0.epub.noimages"
	f := &fakeFetcher{content: map[string]string{
		winner:                    "no images",
		base + "/files/9/9-0.epub": "with images",
	}}

	content, ok := newLocator(f).Locate(context.Background(), "9")
	require.True(t, ok)
	assert.Equal(t, "no images", content.Text)
	assert.Equal(t, []string{winner}, f.calls)
}

func TestLocate_UnversionedFallback(t *testing.T) {
	winner := base + "/files/5/5.html"
	f := &fakeFetcher{content: map[string]string{winner: "<html>book</html>"}}

	content, ok := newLocator(f).Locate(context.Background(), "5")
	require.True(t, ok)
	assert.Equal(t, winner, content.URL)
	// 70 versioned probes, then epub.noimages, epub, html.noimages, html.
	assert.Len(t, f.calls, 74)
}

func TestLocate_Exhausted(t *testing.T) {
	f := &fakeFetcher{content: map[string]string{}}

	_, ok := newLocator(f).Locate(context.Background(), "404")
	assert.False(t, ok)
	assert.Len(t, f.calls, 77)
}

func TestLocate_CancelledContextStops(t *testing.T) {
	f := &fakeFetcher{content: map[string]string{}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, ok := newLocator(f).Locate(ctx, "1")
	assert.False(t, ok)
	assert.Empty(t, f.calls)
}

func TestLocate_EmptyBodyIsAMiss(t *testing.T) {
	f := &fakeFetcher{content: map[string]string{
		base + "/files/7/7-0.epub.noimages": "",
		base + "/files/7/7-0.txt":           "real book text",
	}}

	content, ok := newLocator(f).Locate(context.Background(), "7")
	require.True(t, ok)
	assert.Equal(t, "real book text", content.Text)
	assert.Equal(t, base+"/files/7/7-0.txt", content.URL)
	assert.Len(t, f.calls, 6)
}

func TestLocate_EmptyBodyOverHTTP(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/files/7/7-0.epub.noimages":
		case "/files/7/7-0.txt":
			fmt.Fprint(w, "real book text")
		default:
			http.NotFound(w, r)
		}
	}))
	defer ts.Close()

	fetcher := httputil.NewFetcher(types.HTTPConfig{BackoffBase: time.Microsecond},
		httputil.WithClient(ts.Client()), httputil.WithLogger(quietLogger()))
	cfg := types.DefaultHarvestConfig()
	cfg.BaseURL = ts.URL

	content, ok := New(fetcher, cfg, quietLogger()).Locate(context.Background(), "7")
	require.True(t, ok)
	assert.Equal(t, "real book text", content.Text)
	assert.Equal(t, ts.URL+"/files/7/7-0.txt", content.URL)
}

// A candidate that times out on every attempt is abandoned after the
// transport's attempt budget and the next candidate is probed.
func TestLocate_TimeoutAdvancesToNextCandidate(t *testing.T) {
	var slowCalls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/files/3/3-0.epub.noimages":
			atomic.AddInt32(&slowCalls, 1)
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		case "/files/3/3-0.epub":
			fmt.Fprint(w, "epub body")
		default:
			http.NotFound(w, r)
		}
	}))
	defer ts.Close()

	fetcher := httputil.NewFetcher(types.HTTPConfig{
		Timeout:     20 * time.Millisecond,
		BackoffBase: time.Millisecond,
	}, httputil.WithClient(ts.Client()), httputil.WithLogger(quietLogger()))

	cfg := types.DefaultHarvestConfig()
	cfg.BaseURL = ts.URL
	content, ok := New(fetcher, cfg, quietLogger()).Locate(context.Background(), "3")
	require.True(t, ok)

	assert.Equal(t, "epub body", content.Text)
	assert.Equal(t, int32(3), atomic.LoadInt32(&slowCalls))
}
