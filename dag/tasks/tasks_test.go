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

package tasks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronlmathis/pmetl/core"
	"github.com/aaronlmathis/pmetl/params"
)

func newTestRun(conf map[string]any) *Run {
	return NewRun("etl-pm-youtube-daily_report-v1-dev", time.Date(2024, 3, 5, 12, 30, 0, 0, time.UTC), conf, params.NewMemoryStore())
}

func TestTaskOptions(t *testing.T) {
	task := NewFuncTask("noop", func(ctx context.Context, run *Run) error { return nil },
		WithDescription("does nothing"),
		WithRetries(2, time.Second),
		WithTimeout(time.Hour),
		WithTags("a", "b"),
		WithOwner("weedwackers"),
		WithQueue("cluster.dev"),
	)

	md := task.Metadata()
	assert.Equal(t, "noop", task.ID())
	assert.Equal(t, "noop", md.Name)
	assert.Equal(t, TaskTypeFunction, md.TaskType)
	assert.Equal(t, TriggerRuleAllSuccess, md.TriggerRule)
	assert.Equal(t, "does nothing", md.Description)
	require.NotNil(t, md.RetryConfig)
	assert.Equal(t, 2, md.RetryConfig.MaxRetries)
	assert.Equal(t, time.Hour, md.Timeout)
	assert.Equal(t, []string{"a", "b"}, md.Tags)
	assert.Equal(t, "weedwackers", md.Owner)
	assert.Equal(t, "cluster.dev", md.Queue)
}

func TestRun(t *testing.T) {
	run := newTestRun(map[string]any{"date": "20240301", "empty": nil})

	assert.Contains(t, run.RunID, "manual__20240305T123000__")
	assert.Equal(t, "2024-03-05", run.Ds())
	assert.Equal(t, "20240305", run.DsNodash())
	assert.Equal(t, "2024-03-05T12:30:00Z", run.Ts())
	assert.NotEmpty(t, run.Hostname)

	v, ok := run.ConfValue("date")
	assert.True(t, ok)
	assert.Equal(t, "20240301", v)
	_, ok = run.ConfValue("empty")
	assert.False(t, ok)

	ctx := context.Background()
	require.NoError(t, run.Push(ctx, "start_date", "2024-03-04T06:30:00"))
	s, err := run.PullString(ctx, "start_date")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-04T06:30:00", s)

	_, err = run.PullString(ctx, "missing")
	assert.True(t, core.IsNotFound(err))

	other := newTestRun(nil)
	assert.NotEqual(t, run.RunID, other.RunID)
	assert.NotNil(t, other.Conf)
}

func TestConditionTask(t *testing.T) {
	ctx := context.Background()

	t.Run("proceed", func(t *testing.T) {
		run := newTestRun(nil)
		task := NewConditionTask("check", func(ctx context.Context, run *Run) (bool, string, error) {
			return true, "", nil
		})
		require.NoError(t, task.Execute(ctx, run))
		v, _, _ := run.Pull(ctx, "check.condition_result")
		assert.Equal(t, true, v)
	})

	t.Run("short circuit", func(t *testing.T) {
		run := newTestRun(nil)
		task := NewConditionTask("check", func(ctx context.Context, run *Run) (bool, string, error) {
			return false, "nothing to do", nil
		})
		err := task.Execute(ctx, run)
		assert.True(t, core.IsSkip(err))
		assert.Contains(t, err.Error(), "nothing to do")
	})

	t.Run("error", func(t *testing.T) {
		task := NewConditionTask("check", func(ctx context.Context, run *Run) (bool, string, error) {
			return false, "", errors.New("boom")
		})
		err := task.Execute(ctx, newTestRun(nil))
		require.Error(t, err)
		assert.False(t, core.IsSkip(err))
	})
}

func TestRender(t *testing.T) {
	ctx := context.Background()
	run := newTestRun(map[string]any{"client": "acme"})
	require.NoError(t, run.Push(ctx, "start_date", "2024-03-04T06:30:00"))

	tests := []struct {
		name    string
		text    string
		want    string
		wantErr bool
	}{
		{"plain", "--verbose", "--verbose", false},
		{"ds", "--date={{ .Ds }}", "--date=2024-03-05", false},
		{"ds nodash", "s3://b/t/date={{ .DsNodash }}", "s3://b/t/date=20240305", false},
		{"param", "{{ param \"start_date\" }}", "2024-03-04T06:30:00", false},
		{"sprig", "{{ .ExecutionDate | date \"2006/01/02\" }}", "2024/03/05", false},
		{"conf", "{{ .Conf.client | upper }}", "ACME", false},
		{"vars", "{{ .Vars.table }}", "report", false},
		{"missing param", "{{ param \"nope\" }}", "", true},
		{"bad syntax", "{{ .Ds", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Render(ctx, tt.text, run, map[string]any{"table": "report"})
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	all, err := RenderAll(ctx, []string{"report.py", "--date", "{{ .Ds }}"}, run, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"report.py", "--date", "2024-03-05"}, all)
}
