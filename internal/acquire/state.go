// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import "github.com/pdiddy/book-harvester/pkg/types"

// CrawlState is the per-run bookkeeping of a harvest: which books have been
// scheduled and which index page is being processed. It belongs to a
// single run and is only touched between page barriers, so it needs no
// locking.
type CrawlState struct {
	processed map[types.BookID]struct{}

	// CurrentURL is the index page being processed, empty once the walk ends.
	CurrentURL string
}

// NewCrawlState returns an empty state.
func NewCrawlState() *CrawlState {
	return &CrawlState{processed: make(map[types.BookID]struct{})}
}

// Claim marks every unseen stub as processed and returns them in listing
// order. Stubs already processed, including repeats within stubs, are
// dropped.
func (s *CrawlState) Claim(stubs []types.BookStub) []types.BookStub {
	claimed := make([]types.BookStub, 0, len(stubs))
	for _, stub := range stubs {
		if s.Seen(stub.ID) {
			continue
		}
		s.processed[stub.ID] = struct{}{}
		claimed = append(claimed, stub)
	}
	return claimed
}

// Seen reports whether id has been scheduled in this run.
func (s *CrawlState) Seen(id types.BookID) bool {
	_, ok := s.processed[id]
	return ok
}

// Len returns the number of books scheduled so far.
func (s *CrawlState) Len() int {
	return len(s.processed)
}

// Mark records ids as processed without scheduling them. It seeds a run
// with books delivered by an earlier one.
func (s *CrawlState) Mark(ids ...types.BookID) {
	for _, id := range ids {
		s.processed[id] = struct{}{}
	}
}
