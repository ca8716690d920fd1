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

// dag_executor.go - Local workflow execution by topological level
package dag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aaronlmathis/pmetl/core"
	"github.com/aaronlmathis/pmetl/dag/tasks"
	"github.com/aaronlmathis/pmetl/notify"
	"github.com/aaronlmathis/pmetl/params"
)

// TaskState is the terminal state of a task in a run.
type TaskState string

const (
	StateSuccess        TaskState = "success"
	StateFailed         TaskState = "failed"
	StateSkipped        TaskState = "skipped"
	StateUpstreamFailed TaskState = "upstream_failed"
)

// TaskResult records how a task ended.
type TaskResult struct {
	State     TaskState
	Err       error
	Attempts  int
	StartTime time.Time
	EndTime   time.Time
}

// DAGResult contains the results of a workflow run
type DAGResult struct {
	DAGID       string
	RunID       string
	Success     bool
	StartTime   time.Time
	EndTime     time.Time
	TaskResults map[string]TaskResult
	Error       error
}

// DAGExecutor executes workflows level by level with bounded parallelism
type DAGExecutor struct {
	maxWorkers int
	logger     *slog.Logger
}

// DAGExecutorOption configures a DAGExecutor
type DAGExecutorOption func(*DAGExecutor)

// WithMaxWorkers caps concurrent tasks below the workflow's concurrency.
func WithMaxWorkers(workers int) DAGExecutorOption {
	return func(de *DAGExecutor) {
		if workers > 0 {
			de.maxWorkers = workers
		}
	}
}

// WithLogger sets the executor logger.
func WithLogger(logger *slog.Logger) DAGExecutorOption {
	return func(de *DAGExecutor) {
		if logger != nil {
			de.logger = logger
		}
	}
}

// NewDAGExecutor creates a new executor with options
func NewDAGExecutor(opts ...DAGExecutorOption) *DAGExecutor {
	de := &DAGExecutor{logger: slog.Default()}
	for _, opt := range opts {
		opt(de)
	}
	return de
}

// Execute runs every task of the workflow once for run. The returned error is
// non-nil when any task failed or the context ended; the result is always set.
func (de *DAGExecutor) Execute(ctx context.Context, d *DAG, run *tasks.Run) (*DAGResult, error) {
	result := &DAGResult{
		DAGID:       d.id,
		RunID:       run.RunID,
		StartTime:   time.Now(),
		TaskResults: make(map[string]TaskResult, len(d.tasks)),
	}

	levels, err := d.Levels()
	if err != nil {
		result.EndTime = time.Now()
		result.Error = err
		return result, err
	}

	limit := d.metadata.Concurrency
	if de.maxWorkers > 0 && (limit <= 0 || de.maxWorkers < limit) {
		limit = de.maxWorkers
	}

	var mu sync.Mutex
	logger := de.logger.With("dag", d.id, "run", run.RunID)

	for levelIdx, level := range levels {
		if err := ctx.Err(); err != nil {
			result.EndTime = time.Now()
			result.Error = err
			return result, err
		}

		var g errgroup.Group
		if limit > 0 {
			g.SetLimit(limit)
		}

		for _, taskID := range level {
			mu.Lock()
			state := de.upstreamDecision(d, taskID, result.TaskResults)
			mu.Unlock()

			if state != "" {
				mu.Lock()
				result.TaskResults[taskID] = TaskResult{State: state}
				mu.Unlock()
				logger.Info("task not run", "task", taskID, "state", state)
				continue
			}

			g.Go(func() error {
				tr := de.executeTaskWithRetry(ctx, d, run, taskID, logger)
				mu.Lock()
				result.TaskResults[taskID] = tr
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait()

		logger.Debug("level complete", "level", levelIdx, "tasks", len(level))
	}

	result.EndTime = time.Now()

	var failures []error
	for _, taskID := range d.order {
		if tr := result.TaskResults[taskID]; tr.State == StateFailed {
			failures = append(failures, fmt.Errorf("task %s failed: %w", taskID, tr.Err))
		}
	}
	if len(failures) > 0 {
		result.Error = fmt.Errorf("run %s of %s failed: %w", run.RunID, d.id, errors.Join(failures...))
		return result, result.Error
	}

	result.Success = true
	return result, nil
}

// upstreamDecision returns the state a task takes without running, or "" to run it.
func (de *DAGExecutor) upstreamDecision(d *DAG, taskID string, results map[string]TaskResult) TaskState {
	failed, skipped := false, false
	for _, dep := range d.dependencies[taskID] {
		switch results[dep].State {
		case StateFailed, StateUpstreamFailed:
			failed = true
		case StateSkipped:
			skipped = true
		}
	}

	switch d.tasks[taskID].Metadata().TriggerRule {
	case TriggerAllDone:
		return ""
	case TriggerNoneFailed:
		if failed {
			return StateUpstreamFailed
		}
		return ""
	default:
		if failed {
			return StateUpstreamFailed
		}
		if skipped {
			return StateSkipped
		}
		return ""
	}
}

// executeTaskWithRetry executes a single task with retry logic
func (de *DAGExecutor) executeTaskWithRetry(ctx context.Context, d *DAG, run *tasks.Run, taskID string, logger *slog.Logger) TaskResult {
	task := d.tasks[taskID]
	metadata := task.Metadata()

	maxRetries := 0
	if metadata.RetryConfig != nil {
		maxRetries = metadata.RetryConfig.MaxRetries
	}

	tr := TaskResult{StartTime: time.Now()}
	for attempt := 0; attempt <= maxRetries; attempt++ {
		tr.Attempts = attempt + 1

		attemptRun, written := attemptScoped(run)
		err := de.executeOnce(ctx, task, attemptRun, metadata.Timeout)
		if err == nil {
			tr.State = StateSuccess
			tr.EndTime = time.Now()
			logger.Info("task succeeded", "task", taskID, "attempts", tr.Attempts, "duration", tr.EndTime.Sub(tr.StartTime))
			return tr
		}

		if core.IsSkip(err) {
			tr.State = StateSkipped
			tr.Err = err
			tr.EndTime = time.Now()
			logger.Info("task skipped", "task", taskID, "reason", err)
			return tr
		}

		tr.Err = err
		if attempt < maxRetries {
			if cerr := written.clear(ctx, run.Key()); cerr != nil {
				tr.Err = fmt.Errorf("clearing parameters of failed attempt: %w", cerr)
				break
			}
			delay := metadata.RetryConfig.Backoff
			logger.Warn("task attempt failed, retrying", "task", taskID, "attempt", attempt+1, "delay", delay, "error", err)
			select {
			case <-time.After(delay):
				continue
			case <-ctx.Done():
				tr.Err = ctx.Err()
			}
			break
		}
	}

	tr.State = StateFailed
	tr.EndTime = time.Now()
	logger.Error("task failed", "task", taskID, "attempts", tr.Attempts, "error", tr.Err)

	if d.onFailure != nil {
		d.onFailure(ctx, notify.Failure{
			DAGID:         d.id,
			TaskID:        taskID,
			ExecutionDate: run.ExecutionDate,
			Host:          run.Hostname,
			Err:           tr.Err,
		})
	}
	return tr
}

func (de *DAGExecutor) executeOnce(ctx context.Context, task tasks.Task, run *tasks.Run, timeout time.Duration) error {
	taskCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		taskCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return task.Execute(taskCtx, run)
}

// attemptStore records the keys written during one task attempt. They are
// deleted before the task is retried.
type attemptStore struct {
	params.Store

	mu   sync.Mutex
	keys []string
}

// attemptScoped returns a copy of run whose writes are recorded.
func attemptScoped(run *tasks.Run) (*tasks.Run, *attemptStore) {
	store := &attemptStore{Store: run.Params}
	scoped := *run
	scoped.Params = store
	return &scoped, store
}

func (s *attemptStore) Put(ctx context.Context, run params.RunKey, key string, value any) error {
	if err := s.Store.Put(ctx, run, key, value); err != nil {
		return err
	}
	s.mu.Lock()
	s.keys = append(s.keys, key)
	s.mu.Unlock()
	return nil
}

func (s *attemptStore) clear(ctx context.Context, run params.RunKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for _, key := range s.keys {
		if err := s.Store.Delete(ctx, run, key); err != nil {
			errs = append(errs, err)
		}
	}
	s.keys = nil
	return errors.Join(errs...)
}
