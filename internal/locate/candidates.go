// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package locate resolves a book identifier to its content file by probing
// the archive's known file naming conventions in a fixed priority order.
package locate

import (
	"fmt"
	"iter"
	"slices"
	"strings"

	"github.com/pdiddy/book-harvester/pkg/types"
)

// noImagesSuffix marks the variant of image-bearing formats stored without
// embedded images.
const noImagesSuffix = ".noimages"

// noImagesExtensions are the formats that have a no-images variant, which
// is probed before the plain file.
var noImagesExtensions = []string{"epub", "html"}

// FilesURL returns the per-book content directory, e.g.
// "https://www.gutenberg.org/files/12345".
func FilesURL(baseURL string, id types.BookID) string {
	return strings.TrimSuffix(baseURL, "/") + "/files/" + id.String()
}

// Candidates yields every content URL for id in probe order: for each
// version 0..versions-1, each extension (no-images variant first where one
// exists), then the same extensions without a version suffix.
//
// The sequence is lazy; a consumer that stops early triggers no further
// work.
func Candidates(baseURL string, id types.BookID, versions int, extensions []string) iter.Seq[string] {
	dir := FilesURL(baseURL, id)
	return func(yield func(string) bool) {
		emit := func(stem string) bool {
			for _, ext := range extensions {
				plain := fmt.Sprintf("%s/%s.%s", dir, stem, ext)
				if slices.Contains(noImagesExtensions, ext) {
					if !yield(plain + noImagesSuffix) {
						return false
					}
				}
				if !yield(plain) {
					return false
				}
			}
			return true
		}
		for v := range versions {
			if !emit(fmt.Sprintf("%s-%d", id, v)) {
				return
			}
		}
		emit(id.String())
	}
}
