// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sink

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"

	"github.com/pdiddy/book-harvester/pkg/types"
)

// jsonlRecord is the on-disk shape of one JSON-lines row.
type jsonlRecord struct {
	ID        types.BookID `json:"id"`
	Title     string       `json:"title"`
	Author    string       `json:"author"`
	Year      string       `json:"year"`
	SourceURL string       `json:"source_url,omitempty"`
	Text      string       `json:"text"`
}

// JSONL writes one JSON object per record per line.
type JSONL struct {
	file *atomicFile
	buf  *bufio.Writer
	enc  *json.Encoder
}

// NewJSONL starts a JSON-lines artifact that will appear at path on Close.
func NewJSONL(path string) (*JSONL, error) {
	f, err := createAtomic(path)
	if err != nil {
		return nil, err
	}
	buf := bufio.NewWriter(f)
	return &JSONL{file: f, buf: buf, enc: json.NewEncoder(buf)}, nil
}

// Put appends one line.
func (j *JSONL) Put(_ context.Context, rec types.BookRecord) error {
	if j.file.closed {
		return ErrClosed
	}
	err := j.enc.Encode(jsonlRecord{
		ID:        rec.ID,
		Title:     rec.Title,
		Author:    rec.Author,
		Year:      rec.Year,
		SourceURL: rec.SourceURL,
		Text:      Sanitize(rec.Text),
	})
	if err != nil {
		return fmt.Errorf("encoding %s: %w", rec.ID, err)
	}
	return nil
}

// Close flushes and moves the artifact into place.
func (j *JSONL) Close() error {
	if j.file.closed {
		return nil
	}
	if err := j.buf.Flush(); err != nil {
		j.file.discard()
		return fmt.Errorf("flushing buffer: %w", err)
	}
	return j.file.commit()
}

// Abort discards everything written so far.
func (j *JSONL) Abort() error {
	return j.file.discard()
}
