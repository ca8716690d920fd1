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

// run.go - Per-execution state handed to every task
package tasks

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/aaronlmathis/pmetl/core"
	"github.com/aaronlmathis/pmetl/params"
)

// Run describes one execution of a workflow.
type Run struct {
	DAGID         string
	RunID         string
	ExecutionDate time.Time
	Conf          map[string]any // trigger configuration supplied by the operator
	Hostname      string
	Params        params.Store
}

// NewRun creates a run with a fresh id. A nil store gets an in-memory one.
func NewRun(dagID string, executionDate time.Time, conf map[string]any, store params.Store) *Run {
	if store == nil {
		store = params.NewMemoryStore()
	}
	if conf == nil {
		conf = map[string]any{}
	}
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return &Run{
		DAGID:         dagID,
		RunID:         fmt.Sprintf("manual__%s__%s", executionDate.UTC().Format("20060102T150405"), uuid.NewString()[:8]),
		ExecutionDate: executionDate,
		Conf:          conf,
		Hostname:      host,
		Params:        store,
	}
}

// Key returns the parameter store scope of the run.
func (r *Run) Key() params.RunKey {
	return params.RunKey{DAGID: r.DAGID, RunID: r.RunID}
}

// ConfValue returns a trigger configuration value. Explicit nulls count as absent.
func (r *Run) ConfValue(key string) (any, bool) {
	v, ok := r.Conf[key]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// Push records a value for downstream tasks.
func (r *Run) Push(ctx context.Context, key string, value any) error {
	return r.Params.Put(ctx, r.Key(), key, value)
}

// Pull reads a value recorded by an upstream task.
func (r *Run) Pull(ctx context.Context, key string) (any, bool, error) {
	return r.Params.Get(ctx, r.Key(), key)
}

// PullString reads a recorded value as a string; absence is an error.
func (r *Run) PullString(ctx context.Context, key string) (string, error) {
	v, ok, err := params.GetString(ctx, r.Params, r.Key(), key)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", &core.NotFoundError{Kind: "parameter", Name: key}
	}
	return v, nil
}

// Ds is the execution date as YYYY-MM-DD.
func (r *Run) Ds() string { return r.ExecutionDate.Format("2006-01-02") }

// DsNodash is the execution date as YYYYMMDD.
func (r *Run) DsNodash() string { return r.ExecutionDate.Format("20060102") }

// Ts is the execution timestamp in RFC 3339.
func (r *Run) Ts() string { return r.ExecutionDate.Format(time.RFC3339) }

// TaskKey scopes a parameter to the task that produced it.
func TaskKey(taskID, key string) string { return taskID + "." + key }
