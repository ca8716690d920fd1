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

// function.go - FuncTask implementation
package tasks

import (
	"context"
)

// Func is the body of a FuncTask.
type Func func(ctx context.Context, run *Run) error

// FuncTask runs an in-process function.
type FuncTask struct {
	BaseTask
	fn Func
}

// NewFuncTask creates a new FuncTask with the given ID and function
func NewFuncTask(id string, fn Func, options ...TaskOption) *FuncTask {
	task := &FuncTask{
		BaseTask: NewBaseTask(id, TaskTypeFunction),
		fn:       fn,
	}
	Apply(task, options...)
	return task
}

func (ft *FuncTask) Execute(ctx context.Context, run *Run) error {
	return ft.fn(ctx, run)
}
