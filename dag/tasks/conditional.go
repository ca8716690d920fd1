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

// conditional.go - ConditionTask implementation
package tasks

import (
	"context"
	"fmt"

	"github.com/aaronlmathis/pmetl/core"
)

// Condition evaluates whether downstream work should proceed.
// A false result comes with a reason that is reported as the skip cause.
type Condition func(ctx context.Context, run *Run) (proceed bool, reason string, err error)

// ConditionTask short-circuits its downstream tasks when the condition is false.
type ConditionTask struct {
	BaseTask
	condition Condition
}

// NewConditionTask creates a new ConditionTask
func NewConditionTask(id string, condition Condition, options ...TaskOption) *ConditionTask {
	task := &ConditionTask{
		BaseTask:  NewBaseTask(id, TaskTypeCondition),
		condition: condition,
	}
	Apply(task, options...)
	return task
}

func (ct *ConditionTask) Execute(ctx context.Context, run *Run) error {
	proceed, reason, err := ct.condition(ctx, run)
	if err != nil {
		return fmt.Errorf("condition evaluation failed: %w", err)
	}
	if err := run.Push(ctx, TaskKey(ct.id, "condition_result"), proceed); err != nil {
		return err
	}
	if !proceed {
		return core.Skip(reason)
	}
	return nil
}
