// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package sink persists harvested book records to flat files. Every sink
// writes to a temporary file beside the destination and renames it into
// place on Close, so an interrupted run never leaves a partial artifact.
package sink

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrClosed is returned by Put after Close or Abort.
var ErrClosed = errors.New("sink closed")

// atomicFile is a temp file renamed onto dest on commit.
type atomicFile struct {
	*os.File
	dest   string
	closed bool
}

func createAtomic(dest string) (*atomicFile, error) {
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating directory %s: %w", dir, err)
	}
	f, err := os.CreateTemp(dir, ".harvest-*.tmp")
	if err != nil {
		return nil, fmt.Errorf("creating temp file: %w", err)
	}
	return &atomicFile{File: f, dest: dest}, nil
}

func (f *atomicFile) commit() error {
	if f.closed {
		return nil
	}
	f.closed = true
	tmpPath := f.Name()
	if err := f.File.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, f.dest); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

func (f *atomicFile) discard() error {
	if f.closed {
		return nil
	}
	f.closed = true
	f.File.Close()
	return os.Remove(f.Name())
}
