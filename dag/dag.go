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

package dag

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/aaronlmathis/pmetl/dag/tasks"
	"github.com/aaronlmathis/pmetl/envctx"
	"github.com/aaronlmathis/pmetl/params"
)

// ID returns the workflow identifier.
func (d *DAG) ID() string { return d.id }

// Name returns the pipeline name.
func (d *DAG) Name() string { return d.name }

// Provider returns the environment context the workflow was built from.
func (d *DAG) Provider() *envctx.Provider { return d.provider }

// Metadata returns the workflow metadata.
func (d *DAG) Metadata() DAGMetadata { return d.metadata }

// TaskIDs returns task ids in the order they were added.
func (d *DAG) TaskIDs() []string {
	return append([]string(nil), d.order...)
}

// Task returns a task by id.
func (d *DAG) Task(id string) (tasks.Task, bool) {
	t, ok := d.tasks[id]
	return t, ok
}

// TaskCount returns the total number of tasks
func (d *DAG) TaskCount() int { return len(d.tasks) }

// Dependencies returns the upstream task ids of a task.
func (d *DAG) Dependencies(taskID string) []string {
	return append([]string(nil), d.dependencies[taskID]...)
}

// Downstream returns all tasks that depend on this task
func (d *DAG) Downstream(taskID string) []string {
	var downstream []string
	for _, id := range d.order {
		for _, dep := range d.dependencies[id] {
			if dep == taskID {
				downstream = append(downstream, id)
				break
			}
		}
	}
	return downstream
}

// NewRun creates a run of this workflow.
func (d *DAG) NewRun(executionDate time.Time, conf map[string]any, store params.Store) *tasks.Run {
	return tasks.NewRun(d.id, executionDate, conf, store)
}

// ExecutionOrder returns tasks in topological execution order. Ties are broken
// by insertion order so the result is stable.
func (d *DAG) ExecutionOrder() ([]string, error) {
	levels, err := d.Levels()
	if err != nil {
		return nil, err
	}
	var order []string
	for _, level := range levels {
		order = append(order, level...)
	}
	return order, nil
}

// Levels groups tasks so every task's dependencies sit in earlier levels.
func (d *DAG) Levels() ([][]string, error) {
	inDegree := make(map[string]int, len(d.tasks))
	position := make(map[string]int, len(d.order))
	for i, id := range d.order {
		inDegree[id] = len(d.dependencies[id])
		position[id] = i
	}

	var current []string
	for _, id := range d.order {
		if inDegree[id] == 0 {
			current = append(current, id)
		}
	}

	var levels [][]string
	seen := 0
	for len(current) > 0 {
		levels = append(levels, current)
		seen += len(current)

		var next []string
		for _, done := range current {
			for _, id := range d.Downstream(done) {
				inDegree[id]--
				if inDegree[id] == 0 {
					next = append(next, id)
				}
			}
		}
		sort.Slice(next, func(i, j int) bool { return position[next[i]] < position[next[j]] })
		current = next
	}

	if seen != len(d.tasks) {
		return nil, fmt.Errorf("workflow %s contains cycles", d.id)
	}
	return levels, nil
}

// findCycle returns a task on a cycle, or "" when the graph is acyclic.
func (d *DAG) findCycle() string {
	visited := make(map[string]bool)
	recStack := make(map[string]bool)

	var visit func(taskID string) string
	visit = func(taskID string) string {
		visited[taskID] = true
		recStack[taskID] = true
		for _, dep := range d.dependencies[taskID] {
			if !visited[dep] {
				if found := visit(dep); found != "" {
					return found
				}
			} else if recStack[dep] {
				return dep
			}
		}
		recStack[taskID] = false
		return ""
	}

	for _, taskID := range d.order {
		if !visited[taskID] {
			if found := visit(taskID); found != "" {
				return found
			}
		}
	}
	return ""
}

// Describe writes a human-readable structure of the workflow.
func (d *DAG) Describe(w io.Writer) {
	md := d.metadata
	fmt.Fprintf(w, "DAG: %s (%s)", d.id, d.name)
	if md.Description != "" {
		fmt.Fprintf(w, " - %s", md.Description)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  Schedule: %s\n", md.Schedule)
	if !md.StartDate.IsZero() {
		fmt.Fprintf(w, "  Start Date: %s\n", md.StartDate.Format("2006-01-02"))
	}
	fmt.Fprintf(w, "  Catchup: %t\n", md.Catchup)
	fmt.Fprintf(w, "  Max Active Runs: %d\n", md.MaxActiveRuns)
	fmt.Fprintf(w, "  Concurrency: %d\n", md.Concurrency)
	fmt.Fprintf(w, "  Queue: %s\n", md.DefaultArgs.Queue)
	fmt.Fprintf(w, "  Tags: %s\n", strings.Join(md.Tags, ", "))
	fmt.Fprintf(w, "  Tasks: %d\n", len(d.tasks))

	for _, id := range d.order {
		tmd := d.tasks[id].Metadata()
		fmt.Fprintf(w, "  %s [%s]\n", id, tmd.TaskType)
		if tmd.Description != "" {
			fmt.Fprintf(w, "    Description: %s\n", tmd.Description)
		}
		if deps := d.dependencies[id]; len(deps) > 0 {
			fmt.Fprintf(w, "    ← depends on: %v\n", deps)
		}
		if downstream := d.Downstream(id); len(downstream) > 0 {
			fmt.Fprintf(w, "    → triggers: %v\n", downstream)
		}
		if tmd.Timeout > 0 {
			fmt.Fprintf(w, "    Timeout: %v\n", tmd.Timeout)
		}
		if tmd.RetryConfig != nil && tmd.RetryConfig.MaxRetries > 0 {
			fmt.Fprintf(w, "    Retries: %d\n", tmd.RetryConfig.MaxRetries)
		}
	}
}
