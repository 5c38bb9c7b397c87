// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sink

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"

	"github.com/pdiddy/book-harvester/pkg/types"
)

// Header is the column layout of the TSV artifact.
var Header = []string{"ID", "Title", "Author", "Year", "Text"}

// TSV writes records as tab-separated rows under Header, quoting only
// fields that need it. Text is sanitized before it is written.
type TSV struct {
	file *atomicFile
	buf  *bufio.Writer
	w    *csv.Writer
	rows int
}

// NewTSV starts a TSV artifact that will appear at path on Close.
func NewTSV(path string) (*TSV, error) {
	f, err := createAtomic(path)
	if err != nil {
		return nil, err
	}
	buf := bufio.NewWriter(f)
	w := csv.NewWriter(buf)
	w.Comma = '\t'
	if err := w.Write(Header); err != nil {
		f.discard()
		return nil, fmt.Errorf("writing header: %w", err)
	}
	return &TSV{file: f, buf: buf, w: w}, nil
}

// Put appends one row.
func (t *TSV) Put(_ context.Context, rec types.BookRecord) error {
	if t.file.closed {
		return ErrClosed
	}
	row := []string{rec.ID.String(), rec.Title, rec.Author, rec.Year, Sanitize(rec.Text)}
	if err := t.w.Write(row); err != nil {
		return fmt.Errorf("writing row %s: %w", rec.ID, err)
	}
	t.rows++
	return nil
}

// Rows returns the number of records written.
func (t *TSV) Rows() int { return t.rows }

// Close flushes the rows and moves the artifact into place.
func (t *TSV) Close() error {
	if t.file.closed {
		return nil
	}
	t.w.Flush()
	if err := t.w.Error(); err != nil {
		t.file.discard()
		return fmt.Errorf("flushing rows: %w", err)
	}
	if err := t.buf.Flush(); err != nil {
		t.file.discard()
		return fmt.Errorf("flushing buffer: %w", err)
	}
	return t.file.commit()
}

// Abort discards everything written so far.
func (t *TSV) Abort() error {
	return t.file.discard()
}

// ReadTSV yields the records of a TSV artifact in file order. Columns are
// located by header name, so extra columns are ignored.
func ReadTSV(r io.Reader) iter.Seq2[types.BookRecord, error] {
	return func(yield func(types.BookRecord, error) bool) {
		cr := csv.NewReader(r)
		cr.Comma = '\t'
		cr.LazyQuotes = true
		cr.FieldsPerRecord = -1

		header, err := cr.Read()
		if err != nil {
			yield(types.BookRecord{}, fmt.Errorf("reading header: %w", err))
			return
		}
		col := make(map[string]int, len(header))
		for i, name := range header {
			col[name] = i
		}
		for _, name := range Header {
			if _, ok := col[name]; !ok {
				yield(types.BookRecord{}, fmt.Errorf("missing column %q", name))
				return
			}
		}

		for {
			row, err := cr.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				var perr *csv.ParseError
				if !yield(types.BookRecord{}, fmt.Errorf("reading row: %w", err)) || !errors.As(err, &perr) {
					return
				}
				continue
			}
			field := func(name string) string {
				if i := col[name]; i < len(row) {
					return row[i]
				}
				return ""
			}
			rec := types.BookRecord{
				ID:     types.BookID(field("ID")),
				Title:  field("Title"),
				Author: field("Author"),
				Year:   field("Year"),
				Text:   field("Text"),
			}
			if !yield(rec, nil) {
				return
			}
		}
	}
}

// ReadTSVFile opens path and yields its records. The file is closed when
// iteration ends.
func ReadTSVFile(path string) iter.Seq2[types.BookRecord, error] {
	return func(yield func(types.BookRecord, error) bool) {
		f, err := os.Open(path)
		if err != nil {
			yield(types.BookRecord{}, fmt.Errorf("opening %s: %w", path, err))
			return
		}
		defer f.Close()
		for rec, err := range ReadTSV(f) {
			if !yield(rec, err) {
				return
			}
		}
	}
}
