// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package library

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/pdiddy/book-harvester/pkg/types"
)

// QueryOptions holds parameters for library searches.
type QueryOptions struct {
	// Query is an FTS4 match expression over title, author, and text.
	Query string

	// Author filters by a case-insensitive substring of the author.
	Author string

	// Year filters by exact release year.
	Year string

	// MaxResults limits result count. Zero uses the store default.
	MaxResults int
}

// IsEmpty reports whether the query has no search terms or filters.
func (q QueryOptions) IsEmpty() bool {
	return q.Query == "" && q.Author == "" && q.Year == ""
}

// QueryResult is a stored book without its text.
type QueryResult struct {
	ID        types.BookID `json:"id" yaml:"id"`
	Title     string       `json:"title" yaml:"title"`
	Author    string       `json:"author" yaml:"author"`
	Year      string       `json:"year" yaml:"year"`
	SourceURL string       `json:"source_url,omitempty" yaml:"source_url,omitempty"`
	Length    int          `json:"length" yaml:"length"`
	Snippet   string       `json:"snippet,omitempty" yaml:"snippet,omitempty"`
}

// Search queries the library with optional full-text search and filters.
// Results are ordered by numeric book ID.
func (s *Store) Search(ctx context.Context, opts QueryOptions) ([]QueryResult, error) {
	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = s.maxResults
	}

	var (
		qb     strings.Builder
		args   []any
		useFTS = opts.Query != ""
	)

	if useFTS {
		qb.WriteString(
			`SELECT b.id, b.title, b.author, b.year, b.source_url, length(b.text),
				snippet(books_fts, '[', ']', '...')
			FROM books_fts
			JOIN books b ON b.rowid = books_fts.docid
			WHERE books_fts MATCH ?`)
		args = append(args, opts.Query)
	} else {
		qb.WriteString(
			`SELECT b.id, b.title, b.author, b.year, b.source_url, length(b.text), ''
			FROM books b
			WHERE 1=1`)
	}

	if opts.Author != "" {
		qb.WriteString(` AND lower(b.author) LIKE ?`)
		args = append(args, "%"+strings.ToLower(opts.Author)+"%")
	}
	if opts.Year != "" {
		qb.WriteString(` AND b.year = ?`)
		args = append(args, opts.Year)
	}

	qb.WriteString(` ORDER BY CAST(b.id AS INTEGER), b.id LIMIT ?`)
	args = append(args, maxResults)

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying library: %w", err)
	}
	defer rows.Close()

	var results []QueryResult
	for rows.Next() {
		var (
			qr                  QueryResult
			id                  string
			title, author, year sql.NullString
			source              sql.NullString
		)
		if err := rows.Scan(&id, &title, &author, &year, &source, &qr.Length, &qr.Snippet); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		qr.ID = types.BookID(id)
		qr.Title, qr.Author, qr.Year, qr.SourceURL = title.String, author.String, year.String, source.String
		results = append(results, qr)
	}
	return results, rows.Err()
}
