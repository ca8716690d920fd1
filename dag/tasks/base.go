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

// base.go - Task interface and base types
package tasks

import (
	"context"
	"time"
)

// TaskType represents the type of task
type TaskType string

const (
	TaskTypeFunction  TaskType = "function"
	TaskTypeCondition TaskType = "condition"
	TaskTypeContainer TaskType = "container"
	TaskTypePublish   TaskType = "publish"
	TaskTypeCatalog   TaskType = "catalog"
	TaskTypeTicket    TaskType = "ticket"
)

// TriggerRule defines when a task should be triggered
type TriggerRule string

const (
	TriggerRuleAllSuccess TriggerRule = "all_success" // every upstream task succeeded
	TriggerRuleAllDone    TriggerRule = "all_done"    // every upstream task finished, whatever the state
	TriggerRuleNoneFailed TriggerRule = "none_failed" // no upstream task failed; skipped is fine
)

// RetryConfig defines retry behavior for tasks
type RetryConfig struct {
	MaxRetries int
	Backoff    time.Duration // fixed delay between attempts
}

// TaskMetadata holds metadata about a task
type TaskMetadata struct {
	Name         string
	Description  string
	TaskType     TaskType
	RetryConfig  *RetryConfig
	Timeout      time.Duration // execution budget; zero means unbounded
	TriggerRule  TriggerRule
	Tags         []string
	Owner        string
	Queue        string
}

// Task defines the interface that all tasks must implement.
// Execute returns a core.SkipError to mark the task skipped.
type Task interface {
	ID() string
	Execute(ctx context.Context, run *Run) error
	Metadata() TaskMetadata
	SetRetryConfig(config *RetryConfig)
	SetTimeout(timeout time.Duration)
	SetTriggerRule(rule TriggerRule)
	SetDescription(description string)
	SetTags(tags ...string)
	SetOwner(owner string)
	SetQueue(queue string)
}

// BaseTask carries identity and metadata. Concrete tasks embed it and add Execute.
type BaseTask struct {
	id       string
	metadata TaskMetadata
}

// NewBaseTask creates the embeddable part of a task.
func NewBaseTask(id string, taskType TaskType) BaseTask {
	return BaseTask{
		id: id,
		metadata: TaskMetadata{
			Name:        id,
			TaskType:    taskType,
			TriggerRule: TriggerRuleAllSuccess,
		},
	}
}

func (bt *BaseTask) ID() string             { return bt.id }
func (bt *BaseTask) Metadata() TaskMetadata { return bt.metadata }

func (bt *BaseTask) SetRetryConfig(config *RetryConfig) { bt.metadata.RetryConfig = config }
func (bt *BaseTask) SetTimeout(timeout time.Duration)   { bt.metadata.Timeout = timeout }
func (bt *BaseTask) SetTriggerRule(rule TriggerRule)    { bt.metadata.TriggerRule = rule }
func (bt *BaseTask) SetDescription(description string) { bt.metadata.Description = description }
func (bt *BaseTask) SetOwner(owner string)              { bt.metadata.Owner = owner }
func (bt *BaseTask) SetQueue(queue string)              { bt.metadata.Queue = queue }

func (bt *BaseTask) SetTags(tags ...string) {
	bt.metadata.Tags = append(bt.metadata.Tags, tags...)
}

// TaskOption is a functional option for configuring tasks
type TaskOption func(Task)

// Apply runs options against a task.
func Apply(t Task, opts ...TaskOption) {
	for _, opt := range opts {
		opt(t)
	}
}

// WithRetries sets the retry configuration for a task
func WithRetries(maxRetries int, backoff time.Duration) TaskOption {
	return func(t Task) {
		t.SetRetryConfig(&RetryConfig{
			MaxRetries: maxRetries,
			Backoff:    backoff,
		})
	}
}

// WithTimeout sets the execution budget for a task
func WithTimeout(timeout time.Duration) TaskOption {
	return func(t Task) {
		t.SetTimeout(timeout)
	}
}

// WithTriggerRule sets the trigger rule for a task
func WithTriggerRule(rule TriggerRule) TaskOption {
	return func(t Task) {
		t.SetTriggerRule(rule)
	}
}

// WithDescription sets the description for a task
func WithDescription(description string) TaskOption {
	return func(t Task) {
		t.SetDescription(description)
	}
}

// WithTags adds tags to a task
func WithTags(tags ...string) TaskOption {
	return func(t Task) {
		t.SetTags(tags...)
	}
}

// WithOwner sets the owner for a task
func WithOwner(owner string) TaskOption {
	return func(t Task) {
		t.SetOwner(owner)
	}
}

// WithQueue sets the worker queue for a task
func WithQueue(queue string) TaskOption {
	return func(t Task) {
		t.SetQueue(queue)
	}
}
