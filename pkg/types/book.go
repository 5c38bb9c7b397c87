// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the book-harvester pipeline:
// catalog listings, bibliographic metadata, resolved book records, and the
// configuration structs for each stage.
package types

// Unknown is the placeholder used for metadata fields the catalog does not report.
const Unknown = "Unknown"

// BookID identifies a work in the source archive. It is the deduplication
// key for a run.
type BookID string

func (id BookID) String() string { return string(id) }

// Metadata holds the bibliographic fields read from a catalog detail page.
type Metadata struct {
	// Year is the four-digit release year, or Unknown.
	Year string `json:"year" yaml:"year"`

	// Language is the free-text language label, or Unknown.
	Language string `json:"language" yaml:"language"`
}

// UnknownMetadata returns Metadata with both fields set to Unknown.
func UnknownMetadata() Metadata {
	return Metadata{Year: Unknown, Language: Unknown}
}

// BookStub is one listing entry from a catalog index page.
type BookStub struct {
	ID     BookID `json:"id" yaml:"id"`
	Title  string `json:"title" yaml:"title"`
	Author string `json:"author" yaml:"author"`
}

// Content is the decoded body of a resolved content file together with
// the candidate URL it was found at.
type Content struct {
	URL  string
	Text string
}

// BookRecord is the finished artifact handed to a sink.
type BookRecord struct {
	ID     BookID `json:"id" yaml:"id"`
	Title  string `json:"title" yaml:"title"`
	Author string `json:"author" yaml:"author"`
	Year   string `json:"year" yaml:"year"`

	// SourceURL is the candidate URL the text was resolved from.
	SourceURL string `json:"source_url,omitempty" yaml:"source_url,omitempty"`

	// Text is the full decoded content. It may be whole-book length.
	Text string `json:"text" yaml:"-"`
}
