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

package report

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/aaronlmathis/pmetl/core"
)

// Quality describes the checks a report must pass before it is used.
type Quality struct {
	RequiredColumns []string // must appear in the header row
	MaxNullRate     float64  // per column, 0.0-1.0; zero disables the check
}

// Summary describes a report that passed its quality checks.
type Summary struct {
	Rows      int
	Columns   []string
	NullRates map[string]float64
}

// Summarize reads a whole report, enforcing q. A report without a header row
// is empty and passes.
func Summarize(ctx context.Context, src io.Reader, q Quality, options ...Option) (Summary, error) {
	reader, err := NewReader(src, options...)
	if err != nil {
		return Summary{}, err
	}
	if reader.empty {
		return Summary{NullRates: map[string]float64{}}, nil
	}

	for _, column := range q.RequiredColumns {
		if !slices.Contains(reader.headers, column) {
			return Summary{}, &core.ValidationError{Field: column, Msg: "required column missing from report"}
		}
	}

	for {
		if _, err := reader.Read(ctx); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return Summary{}, err
		}
	}

	s := Summary{
		Rows:      int(reader.stats.RecordsRead),
		Columns:   reader.Headers(),
		NullRates: make(map[string]float64, len(reader.headers)),
	}
	for _, column := range reader.headers {
		if s.Rows > 0 {
			s.NullRates[column] = float64(reader.stats.NullValueCounts[column]) / float64(s.Rows)
		}
		if q.MaxNullRate > 0 && s.NullRates[column] > q.MaxNullRate {
			return Summary{}, &core.ValidationError{
				Field: column,
				Msg:   fmt.Sprintf("null rate %.2f exceeds maximum %.2f", s.NullRates[column], q.MaxNullRate),
			}
		}
	}
	return s, nil
}
