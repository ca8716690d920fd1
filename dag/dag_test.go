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
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronlmathis/pmetl/core"
	"github.com/aaronlmathis/pmetl/dag/tasks"
	"github.com/aaronlmathis/pmetl/envconfig"
	"github.com/aaronlmathis/pmetl/envctx"
	"github.com/aaronlmathis/pmetl/naming"
	"github.com/aaronlmathis/pmetl/notify"
	"github.com/aaronlmathis/pmetl/params"
)

const testApp = "etl-pm-pipeline-youtube"

func testEnv() envconfig.Environment {
	return envconfig.Environment{
		EnvID:             "dev",
		DeploymentVersion: "1.4.2",
		ClusterID:         "pm",
		ConnID:            "aws_default",
		AWSEnv:            &envconfig.AWSEnv{Region: "us-east-1", AccountID: "123456789012"},
		Pipelines: map[string]envconfig.PipelineConfig{
			"daily_report": {
				DAG: envconfig.DAGConfig{
					Schedule:      "0 6 * * *",
					StartDate:     "2024-01-01",
					MaxActiveRuns: 2,
				},
				LookbackHours: 24,
			},
			"bad_start": {
				DAG: envconfig.DAGConfig{StartDate: "01/01/2024"},
			},
		},
		AWSResources: naming.ResourceTable{
			"etl-pm-shared-dev": {"AlarmsTopicName": "pm-alarms"},
		},
	}
}

func testProvider(t *testing.T, pipeline string) *envctx.Provider {
	t.Helper()
	p, err := envctx.New(context.Background(), pipeline, testApp, testEnv(), nil)
	require.NoError(t, err)
	return p
}

func noop(id string, opts ...tasks.TaskOption) *tasks.FuncTask {
	return tasks.NewFuncTask(id, func(ctx context.Context, run *tasks.Run) error { return nil }, opts...)
}

func TestNewWorkflowIdentityAndMetadata(t *testing.T) {
	d, err := NewWorkflow(testProvider(t, "daily_report"), WithDescription("youtube - daily report")).
		AddTask(noop("a")).
		Build()
	require.NoError(t, err)

	assert.Equal(t, "etl-pm-youtube-daily_report-v1-dev", d.ID())
	assert.Equal(t, "daily_report", d.Name())

	md := d.Metadata()
	assert.Equal(t, "youtube - daily report", md.Description)
	assert.Equal(t, "0 6 * * *", md.Schedule)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), md.StartDate)
	assert.Equal(t, 2, md.MaxActiveRuns)
	assert.Equal(t, 20, md.Concurrency)
	assert.Equal(t, []string{"youtube"}, md.Tags)
	assert.Equal(t, DefaultArgs{Owner: Team, Queue: "pm.dev"}, md.DefaultArgs)

	task, ok := d.Task("a")
	require.True(t, ok)
	tmd := task.Metadata()
	assert.Equal(t, "weedwackers", tmd.Owner)
	assert.Equal(t, "pm.dev", tmd.Queue)
	require.NotNil(t, tmd.RetryConfig)
	assert.Equal(t, 0, tmd.RetryConfig.MaxRetries)
}

func TestNewWorkflowPartnerOption(t *testing.T) {
	d, err := NewWorkflow(testProvider(t, "daily_report"), WithPartner("twitch"), WithTags("beta")).
		AddTask(noop("a")).
		Build()
	require.NoError(t, err)
	assert.Equal(t, "etl-pm-twitch-daily_report-v1-dev", d.ID())
	assert.Equal(t, []string{"twitch", "beta"}, d.Metadata().Tags)
}

func TestBuildErrors(t *testing.T) {
	p := testProvider(t, "daily_report")

	tests := []struct {
		name  string
		build func() (*DAG, error)
		check func(t *testing.T, err error)
	}{
		{
			name: "missing dependency",
			build: func() (*DAG, error) {
				return NewWorkflow(p).AddTask(noop("a"), "ghost").Build()
			},
			check: func(t *testing.T, err error) { assert.Contains(t, err.Error(), "non-existent task ghost") },
		},
		{
			name: "duplicate task",
			build: func() (*DAG, error) {
				return NewWorkflow(p).AddTask(noop("a")).AddTask(noop("a")).Build()
			},
			check: func(t *testing.T, err error) { assert.True(t, core.IsValidation(err)) },
		},
		{
			name: "cycle",
			build: func() (*DAG, error) {
				return NewWorkflow(p).AddTask(noop("a"), "b").AddTask(noop("b"), "a").Build()
			},
			check: func(t *testing.T, err error) { assert.Contains(t, err.Error(), "cycle") },
		},
		{
			name: "chain to unknown task",
			build: func() (*DAG, error) {
				return NewWorkflow(p).AddTask(noop("a")).Chain("a", "b").Build()
			},
			check: func(t *testing.T, err error) { assert.True(t, core.IsNotFound(err)) },
		},
		{
			name: "bad start date",
			build: func() (*DAG, error) {
				return NewWorkflow(testProvider(t, "bad_start")).AddTask(noop("a")).Build()
			},
			check: func(t *testing.T, err error) { assert.True(t, core.IsConfiguration(err)) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := tt.build()
			require.Error(t, err)
			assert.Nil(t, d)
			tt.check(t, err)
		})
	}
}

func TestLevelsAndOrder(t *testing.T) {
	d, err := NewWorkflow(testProvider(t, "daily_report")).
		AddTask(noop("set_parameters")).
		AddTask(noop("check")).
		AddTask(noop("report")).
		AddTask(noop("partition")).
		AddTask(noop("trigger")).
		AddTask(noop("ticket"), "report").
		Chain("set_parameters", "check", "report", "partition", "trigger").
		Build()
	require.NoError(t, err)

	levels, err := d.Levels()
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"set_parameters"},
		{"check"},
		{"report"},
		{"partition", "ticket"},
		{"trigger"},
	}, levels)

	order, err := d.ExecutionOrder()
	require.NoError(t, err)
	assert.Equal(t, []string{"set_parameters", "check", "report", "partition", "ticket", "trigger"}, order)
	assert.Equal(t, []string{"partition", "ticket"}, d.Downstream("report"))
	assert.Equal(t, []string{"check"}, d.Dependencies("report"))

	var buf bytes.Buffer
	d.Describe(&buf)
	assert.Contains(t, buf.String(), "DAG: etl-pm-youtube-daily_report-v1-dev (daily_report)")
	assert.Contains(t, buf.String(), "Concurrency: 20")
}

func TestExecutorSuccessAndParams(t *testing.T) {
	d, err := NewWorkflow(testProvider(t, "daily_report")).
		AddTask(NewWindowParametersTask("set_parameters", 24*time.Hour)).
		AddTask(tasks.NewFuncTask("use", func(ctx context.Context, run *tasks.Run) error {
			start, err := run.PullString(ctx, ParamStartDate)
			if err != nil {
				return err
			}
			return run.Push(ctx, "seen_start", start)
		}), "set_parameters").
		Build()
	require.NoError(t, err)

	store := params.NewMemoryStore()
	run := d.NewRun(time.Date(2024, 2, 10, 6, 0, 0, 0, time.UTC), nil, store)

	result, err := NewDAGExecutor().Execute(context.Background(), d, run)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, StateSuccess, result.TaskResults["use"].State)

	snap := store.Snapshot(run.Key())
	assert.Equal(t, "2024-02-09T06:00:00", snap[ParamStartDate])
	assert.Equal(t, "2024-02-10T06:00:00", snap[ParamEndDate])
	assert.Equal(t, "--no-force", snap[ParamForce])
	assert.Equal(t, "2024-02-09T06:00:00", snap["seen_start"])
}

func TestExecutorSkipPropagation(t *testing.T) {
	var ran atomic.Bool
	d, err := NewWorkflow(testProvider(t, "daily_report")).
		AddTask(tasks.NewConditionTask("check", func(ctx context.Context, run *tasks.Run) (bool, string, error) {
			return false, "input already processed", nil
		})).
		AddTask(tasks.NewFuncTask("work", func(ctx context.Context, run *tasks.Run) error {
			ran.Store(true)
			return nil
		}), "check").
		AddTask(noop("cleanup", tasks.WithTriggerRule(TriggerAllDone)), "work").
		Build()
	require.NoError(t, err)

	result, err := NewDAGExecutor().Execute(context.Background(), d, d.NewRun(time.Now(), nil, nil))
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.False(t, ran.Load())
	assert.Equal(t, StateSkipped, result.TaskResults["check"].State)
	assert.Equal(t, StateSkipped, result.TaskResults["work"].State)
	assert.Equal(t, StateSuccess, result.TaskResults["cleanup"].State)
}

func TestExecutorFailure(t *testing.T) {
	var (
		mu       sync.Mutex
		failures []notify.Failure
	)
	hook := func(ctx context.Context, f notify.Failure) {
		mu.Lock()
		defer mu.Unlock()
		failures = append(failures, f)
	}

	var attempts atomic.Int32
	d, err := NewWorkflow(testProvider(t, "daily_report"), WithFailureHook(hook)).
		AddTask(tasks.NewFuncTask("flaky", func(ctx context.Context, run *tasks.Run) error {
			attempts.Add(1)
			return errors.New("exit code 1")
		}, tasks.WithRetries(2, time.Millisecond))).
		AddTask(noop("after"), "flaky").
		AddTask(noop("tolerant", tasks.WithTriggerRule(TriggerNoneFailed)), "flaky").
		AddTask(noop("independent")).
		Build()
	require.NoError(t, err)

	run := d.NewRun(time.Date(2024, 2, 10, 6, 0, 0, 0, time.UTC), nil, nil)
	result, err := NewDAGExecutor().Execute(context.Background(), d, run)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "task flaky failed")
	assert.False(t, result.Success)

	assert.Equal(t, int32(3), attempts.Load())
	assert.Equal(t, StateFailed, result.TaskResults["flaky"].State)
	assert.Equal(t, 3, result.TaskResults["flaky"].Attempts)
	assert.Equal(t, StateUpstreamFailed, result.TaskResults["after"].State)
	assert.Equal(t, StateUpstreamFailed, result.TaskResults["tolerant"].State)
	assert.Equal(t, StateSuccess, result.TaskResults["independent"].State)

	require.Len(t, failures, 1)
	assert.Equal(t, "flaky", failures[0].TaskID)
	assert.Equal(t, d.ID(), failures[0].DAGID)
	assert.Equal(t, run.Hostname, failures[0].Host)
	assert.EqualError(t, failures[0].Err, "exit code 1")
}

func TestExecutorRetryClearsAttemptParameters(t *testing.T) {
	var attempts atomic.Int32
	d, err := NewWorkflow(testProvider(t, "daily_report")).
		AddTask(tasks.NewFuncTask("launch", func(ctx context.Context, run *tasks.Run) error {
			n := attempts.Add(1)
			if err := run.Push(ctx, tasks.TaskKey("launch", "task_arn"), fmt.Sprintf("arn:task/%d", n)); err != nil {
				return err
			}
			if n == 1 {
				return errors.New("waiter: exceeded max wait time")
			}
			return nil
		}, tasks.WithRetries(1, time.Millisecond))).
		AddTask(tasks.NewFuncTask("read", func(ctx context.Context, run *tasks.Run) error {
			arn, err := run.PullString(ctx, tasks.TaskKey("launch", "task_arn"))
			if err != nil {
				return err
			}
			return run.Push(ctx, "seen_arn", arn)
		}), "launch").
		Build()
	require.NoError(t, err)

	store := params.NewMemoryStore()
	run := d.NewRun(time.Date(2024, 2, 10, 6, 0, 0, 0, time.UTC), nil, store)
	result, err := NewDAGExecutor().Execute(context.Background(), d, run)
	require.NoError(t, err)
	assert.True(t, result.Success)

	assert.Equal(t, StateSuccess, result.TaskResults["launch"].State)
	assert.Equal(t, 2, result.TaskResults["launch"].Attempts)
	snap := store.Snapshot(run.Key())
	assert.Equal(t, "arn:task/2", snap["launch.task_arn"])
	assert.Equal(t, "arn:task/2", snap["seen_arn"])
}

func TestExecutorFinalAttemptKeepsParameters(t *testing.T) {
	d, err := NewWorkflow(testProvider(t, "daily_report")).
		AddTask(tasks.NewFuncTask("launch", func(ctx context.Context, run *tasks.Run) error {
			if err := run.Push(ctx, tasks.TaskKey("launch", "task_arn"), "arn:task/1"); err != nil {
				return err
			}
			return errors.New("exit code 2")
		})).
		Build()
	require.NoError(t, err)

	store := params.NewMemoryStore()
	run := d.NewRun(time.Now(), nil, store)
	_, err = NewDAGExecutor().Execute(context.Background(), d, run)
	require.Error(t, err)
	assert.Equal(t, "arn:task/1", store.Snapshot(run.Key())["launch.task_arn"])
}

func TestExecutorTimeout(t *testing.T) {
	d, err := NewWorkflow(testProvider(t, "daily_report")).
		AddTask(tasks.NewFuncTask("slow", func(ctx context.Context, run *tasks.Run) error {
			<-ctx.Done()
			return ctx.Err()
		}, tasks.WithTimeout(10*time.Millisecond))).
		Build()
	require.NoError(t, err)

	result, err := NewDAGExecutor().Execute(context.Background(), d, d.NewRun(time.Now(), nil, nil))
	require.Error(t, err)
	assert.ErrorIs(t, result.TaskResults["slow"].Err, context.DeadlineExceeded)
}

func TestExecutorConcurrencyLimit(t *testing.T) {
	var inFlight, peak atomic.Int32
	work := func(ctx context.Context, run *tasks.Run) error {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		return nil
	}

	b := NewWorkflow(testProvider(t, "daily_report"))
	for _, id := range []string{"a", "b", "c", "d", "e", "f"} {
		b.AddTask(tasks.NewFuncTask(id, work))
	}
	d, err := b.Build()
	require.NoError(t, err)

	_, err = NewDAGExecutor(WithMaxWorkers(2)).Execute(context.Background(), d, d.NewRun(time.Now(), nil, nil))
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

type recordingPublisher struct {
	topic, subject, message string
	err                     error
}

func (r *recordingPublisher) Publish(ctx context.Context, topicARN, subject, message string) (string, error) {
	r.topic, r.subject, r.message = topicARN, subject, message
	return "id", r.err
}

func TestFailureNotifier(t *testing.T) {
	pub := &recordingPublisher{}
	n := NewFailureNotifier(testProvider(t, "daily_report"), pub)

	n.Hook()(context.Background(), notify.Failure{DAGID: "dag", TaskID: "task", Err: errors.New("boom")})
	assert.Equal(t, "arn:aws:sns:us-east-1:123456789012:pm-alarms", pub.topic)
	assert.Equal(t, "PMI DAG run failure", pub.subject)
	assert.Contains(t, pub.message, "Error:           boom")

	// publish errors are swallowed
	pub.err = errors.New("throttled")
	assert.NotPanics(t, func() {
		n.Notify(context.Background(), notify.Failure{DAGID: "dag", TaskID: "task"})
	})
}

type blockingPublisher struct {
	err error
}

func (b *blockingPublisher) Publish(ctx context.Context, topicARN, subject, message string) (string, error) {
	<-ctx.Done()
	b.err = ctx.Err()
	return "", b.err
}

func TestFailureNotifierTimeout(t *testing.T) {
	pub := &blockingPublisher{}
	n := NewFailureNotifier(testProvider(t, "daily_report"), pub)
	n.timeout = 20 * time.Millisecond

	done := make(chan struct{})
	go func() {
		n.Notify(context.Background(), notify.Failure{DAGID: "dag", TaskID: "task"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("notify blocked past its timeout")
	}
	assert.ErrorIs(t, pub.err, context.DeadlineExceeded)
}

func TestFailureNotifierCancelledRun(t *testing.T) {
	pub := &recordingPublisher{}
	n := NewFailureNotifier(testProvider(t, "daily_report"), pub)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	n.Notify(ctx, notify.Failure{DAGID: "dag", TaskID: "task", Err: context.Canceled})
	assert.Equal(t, "arn:aws:sns:us-east-1:123456789012:pm-alarms", pub.topic)
}
