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

// s3check.go - Input presence check
package operators

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aaronlmathis/pmetl/dag/tasks"
)

// ObjectCounter counts the objects under a prefix.
type ObjectCounter interface {
	CountObjects(ctx context.Context, bucket, prefix string) (int, error)
}

// NewS3FileCheck skips its downstream tasks when files exist under the prefix
// and skipIfExists is set, or when none exist and it is not. prefix may
// contain run templates.
func NewS3FileCheck(id string, counter ObjectCounter, bucket, prefix string, skipIfExists bool, opts ...tasks.TaskOption) *tasks.ConditionTask {
	condition := func(ctx context.Context, run *tasks.Run) (bool, string, error) {
		rendered, err := tasks.Render(ctx, prefix, run, nil)
		if err != nil {
			return false, "", err
		}
		n, err := counter.CountObjects(ctx, bucket, rendered)
		if err != nil {
			return false, "", err
		}
		slog.InfoContext(ctx, "files in prefix", "task", id, "bucket", bucket, "prefix", rendered, "count", n)

		if (n > 0) == skipIfExists {
			if skipIfExists {
				return false, fmt.Sprintf("%d file(s) already under s3://%s/%s", n, bucket, rendered), nil
			}
			return false, fmt.Sprintf("no files under s3://%s/%s", bucket, rendered), nil
		}
		return true, "", nil
	}
	return tasks.NewConditionTask(id, condition, opts...)
}
