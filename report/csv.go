//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Copyright (C) 2025 Aaron Mathis aaron.mathis@gmail.com
//
// This file is part of GoETL.
//
// GoETL is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// GoETL is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with GoETL. If not, see https://www.gnu.org/licenses/.

// Package report reads the CSV reports written by the pipeline services.
package report

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Record is one report row keyed by column name.
type Record map[string]any

// ReaderError wraps structured error information for the report reader.
type ReaderError struct {
	Op  string
	Err error
}

func (e *ReaderError) Error() string {
	return fmt.Sprintf("report reader %s: %v", e.Op, e.Err)
}

func (e *ReaderError) Unwrap() error {
	return e.Err
}

// Stats holds counters collected while reading.
type Stats struct {
	RecordsRead     int64
	NullValueCounts map[string]int64
}

// Options configures the reader.
type Options struct {
	Comma            rune
	Comment          rune
	LazyQuotes       bool
	TrimLeadingSpace bool
	HasHeaders       bool
}

// Option allows functional customization of Reader.
type Option func(*Options)

func WithComma(r rune) Option {
	return func(o *Options) { o.Comma = r }
}

func WithHeaders(hasHeaders bool) Option {
	return func(o *Options) { o.HasHeaders = hasHeaders }
}

func WithTrimSpace(trim bool) Option {
	return func(o *Options) { o.TrimLeadingSpace = trim }
}

// Reader streams records from a CSV report.
type Reader struct {
	reader  *csv.Reader
	headers []string
	empty   bool
	stats   Stats
}

// NewReader creates a Reader. With headers enabled the first row names the
// columns; a report without even a header row reads as empty.
func NewReader(r io.Reader, options ...Option) (*Reader, error) {
	opts := Options{
		Comma:            ',',
		HasHeaders:       true,
		TrimLeadingSpace: true,
	}
	for _, opt := range options {
		opt(&opts)
	}

	cr := csv.NewReader(r)
	cr.Comma = opts.Comma
	cr.Comment = opts.Comment
	cr.LazyQuotes = opts.LazyQuotes
	cr.TrimLeadingSpace = opts.TrimLeadingSpace
	cr.FieldsPerRecord = -1

	reader := &Reader{
		reader: cr,
		stats:  Stats{NullValueCounts: make(map[string]int64)},
	}

	if opts.HasHeaders {
		headers, err := cr.Read()
		switch {
		case errors.Is(err, io.EOF):
			reader.empty = true
		case err != nil:
			return nil, &ReaderError{Op: "read_headers", Err: err}
		default:
			reader.headers = headers
		}
	}
	return reader, nil
}

// Headers returns the column names, if any.
func (r *Reader) Headers() []string {
	return append([]string(nil), r.headers...)
}

// Read returns the next record, or io.EOF.
func (r *Reader) Read(ctx context.Context) (Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, &ReaderError{Op: "read", Err: err}
	}
	if r.empty {
		return nil, io.EOF
	}

	row, err := r.reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, &ReaderError{Op: "read_record", Err: err}
	}

	rec := make(Record, len(row))
	for i, val := range row {
		key := "col_" + strconv.Itoa(i)
		if i < len(r.headers) {
			key = r.headers[i]
		}
		if strings.TrimSpace(val) == "" {
			r.stats.NullValueCounts[key]++
			rec[key] = nil
			continue
		}
		rec[key] = parseValue(val)
	}

	r.stats.RecordsRead++
	return rec, nil
}

// Stats returns the reader counters.
func (r *Reader) Stats() Stats {
	return r.stats
}

// Count returns the number of data rows in a report. Blank lines are ignored.
func Count(ctx context.Context, src io.Reader, options ...Option) (int, error) {
	reader, err := NewReader(src, options...)
	if err != nil {
		return 0, err
	}
	for {
		if _, err := reader.Read(ctx); err != nil {
			if errors.Is(err, io.EOF) {
				return int(reader.stats.RecordsRead), nil
			}
			return 0, err
		}
	}
}

// parseValue attempts to infer int, float, bool, or falls back to string.
func parseValue(value string) any {
	value = strings.TrimSpace(value)

	if i, err := strconv.Atoi(value); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(value); err == nil {
		return b
	}
	return value
}
