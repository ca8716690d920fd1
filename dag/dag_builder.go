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

// dag_builder.go - Fluent API for workflow construction
package dag

import (
	"errors"
	"fmt"
	"time"

	"github.com/aaronlmathis/pmetl/core"
	"github.com/aaronlmathis/pmetl/dag/tasks"
	"github.com/aaronlmathis/pmetl/envctx"
	"github.com/aaronlmathis/pmetl/naming"
)

// DAGBuilder provides a fluent API for constructing workflows
type DAGBuilder struct {
	dag  *DAG
	errs []error
}

// WorkflowOption configures a workflow before its identity is computed.
type WorkflowOption func(*DAGBuilder)

// WithPartner overrides the partner used in the workflow id and tags.
func WithPartner(partner string) WorkflowOption {
	return func(db *DAGBuilder) {
		db.dag.metadata.Partner = partner
	}
}

// WithDescription sets the workflow description.
func WithDescription(description string) WorkflowOption {
	return func(db *DAGBuilder) {
		db.dag.metadata.Description = description
	}
}

// WithTags adds tags next to the partner tag.
func WithTags(tags ...string) WorkflowOption {
	return func(db *DAGBuilder) {
		db.dag.metadata.Tags = append(db.dag.metadata.Tags, tags...)
	}
}

// WithFailureHook sets the callback run for failed tasks.
func WithFailureHook(hook FailureHook) WorkflowOption {
	return func(db *DAGBuilder) {
		db.dag.onFailure = hook
	}
}

// WithDefaultTimeout sets the execution budget for tasks that declare none.
func WithDefaultTimeout(timeout time.Duration) WorkflowOption {
	return func(db *DAGBuilder) {
		db.dag.metadata.DefaultTimeout = timeout
	}
}

// NewWorkflow starts a workflow for the provider's pipeline. Identity,
// schedule and run policy are derived from the environment once, here.
func NewWorkflow(provider *envctx.Provider, opts ...WorkflowOption) *DAGBuilder {
	db := &DAGBuilder{
		dag: &DAG{
			name:         provider.PipelineName(),
			tasks:        make(map[string]tasks.Task),
			dependencies: make(map[string][]string),
			provider:     provider,
			metadata: DAGMetadata{
				Partner: DefaultPartner,
			},
		},
	}

	for _, opt := range opts {
		opt(db)
	}

	md := &db.dag.metadata
	env := provider.Env()

	id, err := naming.WorkflowID(md.Partner, provider.PipelineName(), env.DeploymentVersion, env.EnvID)
	if err != nil {
		db.errs = append(db.errs, err)
	}
	db.dag.id = id

	cfg := provider.Pipeline().DAG
	md.Schedule = cfg.Schedule
	md.Catchup = cfg.Catchup
	md.MaxActiveRuns = cfg.MaxActiveRuns
	if md.MaxActiveRuns <= 0 {
		md.MaxActiveRuns = 1
	}
	md.Concurrency = md.MaxActiveRuns * ConcurrencyFactor
	md.Tags = append([]string{md.Partner}, md.Tags...)
	md.DefaultArgs = DefaultArgs{
		Owner: Team,
		Queue: provider.Queue(),
	}

	if cfg.StartDate != "" {
		start, err := cfg.Start()
		if err != nil {
			db.errs = append(db.errs, err)
		}
		md.StartDate = start
	}

	return db
}

// AddTask adds a task that runs after deps. Default args fill in owner, queue,
// retries and timeout when the task does not set them.
func (db *DAGBuilder) AddTask(task tasks.Task, deps ...string) *DAGBuilder {
	id := task.ID()
	if id == "" {
		db.errs = append(db.errs, &core.ValidationError{Field: "task_id", Msg: "must not be empty"})
		return db
	}
	if _, exists := db.dag.tasks[id]; exists {
		db.errs = append(db.errs, &core.ValidationError{Field: "task_id", Value: id, Msg: "duplicate task"})
		return db
	}

	md := task.Metadata()
	args := db.dag.metadata.DefaultArgs
	if md.Owner == "" {
		task.SetOwner(args.Owner)
	}
	if md.Queue == "" {
		task.SetQueue(args.Queue)
	}
	if md.RetryConfig == nil {
		task.SetRetryConfig(&tasks.RetryConfig{MaxRetries: args.Retries})
	}
	if md.Timeout == 0 && db.dag.metadata.DefaultTimeout > 0 {
		task.SetTimeout(db.dag.metadata.DefaultTimeout)
	}

	db.dag.tasks[id] = task
	db.dag.order = append(db.dag.order, id)
	db.dag.dependencies[id] = appendUnique(db.dag.dependencies[id], deps...)
	return db
}

// Chain makes each task depend on the one before it.
func (db *DAGBuilder) Chain(ids ...string) *DAGBuilder {
	for i := 1; i < len(ids); i++ {
		if _, exists := db.dag.tasks[ids[i]]; !exists {
			db.errs = append(db.errs, &core.NotFoundError{Kind: "task", Name: ids[i]})
			continue
		}
		db.dag.dependencies[ids[i]] = appendUnique(db.dag.dependencies[ids[i]], ids[i-1])
	}
	return db
}

// validateDAG checks for cycles and missing dependencies
func (db *DAGBuilder) validateDAG() error {
	for _, taskID := range db.dag.order {
		for _, dep := range db.dag.dependencies[taskID] {
			if _, exists := db.dag.tasks[dep]; !exists {
				return fmt.Errorf("task %s depends on non-existent task %s", taskID, dep)
			}
		}
	}

	if cycle := db.dag.findCycle(); cycle != "" {
		return fmt.Errorf("workflow contains a cycle through task %s", cycle)
	}
	return nil
}

// Build validates and returns the constructed workflow
func (db *DAGBuilder) Build() (*DAG, error) {
	if len(db.errs) > 0 {
		return nil, fmt.Errorf("build workflow %s: %w", db.dag.name, errors.Join(db.errs...))
	}
	if err := db.validateDAG(); err != nil {
		return nil, fmt.Errorf("build workflow %s: %w", db.dag.id, err)
	}
	return db.dag, nil
}

func appendUnique(list []string, items ...string) []string {
	for _, item := range items {
		found := false
		for _, existing := range list {
			if existing == item {
				found = true
				break
			}
		}
		if !found {
			list = append(list, item)
		}
	}
	return list
}
