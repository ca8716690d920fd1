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

// ecs.go - Container task launcher
package operators

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	ecstypes "github.com/aws/aws-sdk-go-v2/service/ecs/types"

	"github.com/aaronlmathis/pmetl/core"
	"github.com/aaronlmathis/pmetl/dag"
	"github.com/aaronlmathis/pmetl/dag/tasks"
	"github.com/aaronlmathis/pmetl/envctx"
)

// DefaultECSBudget bounds the wait for a container task that declares no timeout.
const DefaultECSBudget = time.Hour

// ECSClient defines the ECS operations used by ECSTask.
type ECSClient interface {
	RunTask(ctx context.Context, params *ecs.RunTaskInput, optFns ...func(*ecs.Options)) (*ecs.RunTaskOutput, error)
	DescribeTasks(ctx context.Context, params *ecs.DescribeTasksInput, optFns ...func(*ecs.Options)) (*ecs.DescribeTasksOutput, error)
}

// ContainerOverride replaces the command of one container in the task definition.
// Command elements are templates rendered per run.
type ContainerOverride struct {
	Name    string
	Command []string
}

// Override builds a ContainerOverride.
func Override(name string, command ...string) ContainerOverride {
	return ContainerOverride{Name: name, Command: command}
}

// ECSTaskConfig describes the container task to launch.
type ECSTaskConfig struct {
	TaskDefinition  string
	SecurityGroupID string
	Overrides       []ContainerOverride
	LogGroupName    string // optional
	LogStreamPrefix string // required with LogGroupName
}

// ECSTask runs a Fargate task on the pipeline's cluster and waits for it to stop.
type ECSTask struct {
	tasks.BaseTask
	client  ECSClient
	cfg     ECSTaskConfig
	cluster string
	subnets []string
	tags    []ecstypes.Tag
	logger  *slog.Logger

	pollMin, pollMax time.Duration
}

// NewECSTask resolves the cluster and subnets from the prerequisites stack.
func NewECSTask(id string, provider *envctx.Provider, client ECSClient, cfg ECSTaskConfig, opts ...tasks.TaskOption) (*ECSTask, error) {
	if cfg.TaskDefinition == "" {
		return nil, &core.ConfigurationError{Key: id + ".task_definition"}
	}
	if cfg.LogGroupName != "" && cfg.LogStreamPrefix == "" {
		return nil, &core.ConfigurationError{Key: id + ".log_stream_prefix", Msg: "required with a log group"}
	}

	cluster, err := provider.Prereqs("ECSClusterName")
	if err != nil {
		return nil, err
	}
	subnetList, err := provider.Prereqs("VPCPrivateSubnetIds")
	if err != nil {
		return nil, err
	}

	var subnets []string
	for _, s := range strings.Split(subnetList, ",") {
		if s = strings.TrimSpace(s); s != "" {
			subnets = append(subnets, s)
		}
	}

	t := &ECSTask{
		BaseTask: tasks.NewBaseTask(id, tasks.TaskTypeContainer),
		client:   client,
		cfg:      cfg,
		cluster:  cluster,
		subnets:  subnets,
		tags: []ecstypes.Tag{
			{Key: aws.String("team"), Value: aws.String(dag.Team)},
			{Key: aws.String("project"), Value: aws.String(provider.PipelineName())},
			{Key: aws.String("repository"), Value: aws.String(provider.AppName())},
		},
		logger:  slog.Default(),
		pollMin: 6 * time.Second,
		pollMax: time.Minute,
	}
	tasks.Apply(t, opts...)
	return t, nil
}

// Cluster returns the resolved cluster name.
func (t *ECSTask) Cluster() string { return t.cluster }

// Subnets returns the resolved subnet ids.
func (t *ECSTask) Subnets() []string { return append([]string(nil), t.subnets...) }

func (t *ECSTask) runTaskInput(ctx context.Context, run *tasks.Run) (*ecs.RunTaskInput, error) {
	overrides := make([]ecstypes.ContainerOverride, 0, len(t.cfg.Overrides))
	for _, o := range t.cfg.Overrides {
		command, err := tasks.RenderAll(ctx, o.Command, run, nil)
		if err != nil {
			return nil, err
		}
		overrides = append(overrides, ecstypes.ContainerOverride{
			Name:    aws.String(o.Name),
			Command: command,
		})
	}

	return &ecs.RunTaskInput{
		TaskDefinition: aws.String(t.cfg.TaskDefinition),
		Cluster:        aws.String(t.cluster),
		LaunchType:     ecstypes.LaunchTypeFargate,
		Count:          aws.Int32(1),
		NetworkConfiguration: &ecstypes.NetworkConfiguration{
			AwsvpcConfiguration: &ecstypes.AwsVpcConfiguration{
				SecurityGroups: []string{t.cfg.SecurityGroupID},
				Subnets:        t.subnets,
			},
		},
		Overrides: &ecstypes.TaskOverride{ContainerOverrides: overrides},
		Tags:      t.tags,
	}, nil
}

// Execute launches exactly one task and waits for it within the execution budget.
func (t *ECSTask) Execute(ctx context.Context, run *tasks.Run) error {
	input, err := t.runTaskInput(ctx, run)
	if err != nil {
		return err
	}

	out, err := t.client.RunTask(ctx, input)
	if err != nil {
		return fmt.Errorf("ecs: run task %s: %w", t.cfg.TaskDefinition, err)
	}
	if len(out.Failures) > 0 {
		f := out.Failures[0]
		return fmt.Errorf("ecs: run task %s: %s (%s)", t.cfg.TaskDefinition, aws.ToString(f.Reason), aws.ToString(f.Detail))
	}
	if len(out.Tasks) == 0 {
		return fmt.Errorf("ecs: run task %s: no task started", t.cfg.TaskDefinition)
	}

	taskARN := aws.ToString(out.Tasks[0].TaskArn)
	t.logger.InfoContext(ctx, "ecs task started", "task", t.ID(), "arn", taskARN, "cluster", t.cluster)
	if err := run.Push(ctx, tasks.TaskKey(t.ID(), "task_arn"), taskARN); err != nil {
		return err
	}

	budget := t.Metadata().Timeout
	if deadline, ok := ctx.Deadline(); ok {
		budget = time.Until(deadline)
	}
	if budget <= 0 {
		budget = DefaultECSBudget
	}

	waiter := ecs.NewTasksStoppedWaiter(t.client, func(o *ecs.TasksStoppedWaiterOptions) {
		o.MinDelay = t.pollMin
		o.MaxDelay = t.pollMax
	})
	described, err := waiter.WaitForOutput(ctx, &ecs.DescribeTasksInput{
		Cluster: aws.String(t.cluster),
		Tasks:   []string{taskARN},
	}, budget)
	if err != nil {
		return fmt.Errorf("ecs: wait for %s: %w", taskARN, err)
	}

	t.logStreams(ctx, taskARN)
	return checkStopped(taskARN, described)
}

func (t *ECSTask) logStreams(ctx context.Context, taskARN string) {
	if t.cfg.LogGroupName == "" {
		return
	}
	taskID := taskARN[strings.LastIndex(taskARN, "/")+1:]
	for _, o := range t.cfg.Overrides {
		t.logger.InfoContext(ctx, "ecs task logs", "group", t.cfg.LogGroupName,
			"stream", t.cfg.LogStreamPrefix+"/"+o.Name+"/"+taskID)
	}
}

// checkStopped fails when the task did not start or any container exited non-zero.
func checkStopped(taskARN string, out *ecs.DescribeTasksOutput) error {
	if len(out.Failures) > 0 {
		return fmt.Errorf("ecs: describe %s: %s", taskARN, aws.ToString(out.Failures[0].Reason))
	}
	if len(out.Tasks) == 0 {
		return &core.NotFoundError{Kind: "ecs task", Name: taskARN}
	}

	var errs []error
	for _, task := range out.Tasks {
		if reason := aws.ToString(task.StoppedReason); strings.Contains(reason, "failed to start") {
			errs = append(errs, fmt.Errorf("ecs: task %s: %s", taskARN, reason))
		}
		for _, c := range task.Containers {
			switch {
			case c.ExitCode != nil && *c.ExitCode != 0:
				errs = append(errs, fmt.Errorf("ecs: container %s exited with code %d: %s",
					aws.ToString(c.Name), *c.ExitCode, aws.ToString(c.Reason)))
			case c.ExitCode == nil && aws.ToString(c.Reason) != "":
				errs = append(errs, fmt.Errorf("ecs: container %s: %s", aws.ToString(c.Name), aws.ToString(c.Reason)))
			}
		}
	}
	return errors.Join(errs...)
}
