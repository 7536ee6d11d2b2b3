// Package dataset loads the labelled screening CSV, normalises its categorical
// columns into model features and splits it for training.
package dataset

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ctxCheckInterval is how many rows are read between cancellation checks.
const ctxCheckInterval = 1024

// Frame is a header-indexed table of raw string cells.
type Frame struct {
	Header []string
	Rows   [][]string
	index  map[string]int
}

// LoadFile opens path and reads it with Load.
func LoadFile(ctx context.Context, path string) (*Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	frame, err := Load(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", path, err)
	}
	return frame, nil
}

// Load reads a CSV document with a header row. A leading UTF-8 byte order
// mark is dropped and header names are trimmed of surrounding whitespace.
func Load(ctx context.Context, r io.Reader) (*Frame, error) {
	decoded := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	reader := csv.NewReader(decoded)

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrNoHeader
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	frame := &Frame{
		Header: make([]string, len(header)),
		index:  make(map[string]int, len(header)),
	}
	for i, h := range header {
		name := strings.TrimSpace(h)
		frame.Header[i] = name
		if _, dup := frame.index[name]; dup {
			return nil, fmt.Errorf("column %q: %w", name, ErrDuplicateColumn)
		}
		frame.index[name] = i
	}

	for n := 0; ; n++ {
		if n%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("load cancelled: %w", err)
			}
		}
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", n+2, err)
		}
		frame.Rows = append(frame.Rows, record)
	}
	return frame, nil
}

// Column returns the position of a (trimmed) header name.
func (f *Frame) Column(name string) (int, bool) {
	i, ok := f.index[name]
	return i, ok
}

// Len returns the number of data rows.
func (f *Frame) Len() int {
	return len(f.Rows)
}
