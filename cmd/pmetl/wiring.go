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

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecs"

	"github.com/aaronlmathis/pmetl/catalog"
	"github.com/aaronlmathis/pmetl/dag"
	"github.com/aaronlmathis/pmetl/envconfig"
	"github.com/aaronlmathis/pmetl/identity"
	"github.com/aaronlmathis/pmetl/notify"
	"github.com/aaronlmathis/pmetl/params"
	"github.com/aaronlmathis/pmetl/pipelines"
	"github.com/aaronlmathis/pmetl/stacks"
	"github.com/aaronlmathis/pmetl/storage"
	"github.com/aaronlmathis/pmetl/ticket"
	"github.com/aaronlmathis/pmetl/warehouse"
)

const (
	identityIMDS = "imds"
	identitySTS  = "sts"

	storeMemory   = "memory"
	storeDynamoDB = "dynamodb"
)

func (o *globalOptions) awsConfig(ctx context.Context, env envconfig.Environment) (aws.Config, error) {
	region := o.region
	if region == "" && env.AWSEnv != nil {
		region = env.AWSEnv.Region
	}
	if region == "" {
		region = env.Region
	}
	return storage.LoadAWSConfig(ctx, storage.WithRegion(region), storage.WithProfile(o.profile))
}

// identityGate returns nil when the configuration embeds the identity.
func (o *globalOptions) identityGate(ctx context.Context, env envconfig.Environment) (*identity.Gate, error) {
	if env.AWSEnv != nil {
		return nil, nil
	}
	switch o.identity {
	case identityIMDS:
		return identity.NewGate(identity.NewIMDSSource()), nil
	case identitySTS:
		cfg, err := o.awsConfig(ctx, env)
		if err != nil {
			return nil, err
		}
		return identity.NewGate(identity.NewSTSSource(cfg)), nil
	}
	return nil, fmt.Errorf("unknown identity source %q", o.identity)
}

// runtime holds the clients of a local run.
type runtime struct {
	deps      pipelines.Deps
	warehouse *warehouse.Warehouse
	awsConfig aws.Config
}

func (r *runtime) Close() error {
	if r.warehouse != nil {
		return r.warehouse.Close()
	}
	return nil
}

func (o *globalOptions) newRuntime(ctx context.Context, env envconfig.Environment) (*runtime, error) {
	cfg, err := o.awsConfig(ctx, env)
	if err != nil {
		return nil, err
	}

	rt := &runtime{
		awsConfig: cfg,
		deps: pipelines.Deps{
			ECS:       ecs.NewFromConfig(cfg),
			Storage:   storage.NewClient(cfg),
			Catalog:   catalog.New(cfg),
			Publisher: notify.NewPublisher(cfg),
			Alarms:    notify.NewAlarmPublisher(cfg),
		},
	}

	if env.Jira != nil {
		tracker, err := ticket.NewJiraTracker(*env.Jira)
		if err != nil {
			return nil, err
		}
		rt.deps.Tracker = tracker
	}
	if env.Warehouse != nil {
		wh, err := warehouse.Open(ctx, *env.Warehouse)
		if err != nil {
			return nil, err
		}
		rt.warehouse = wh
		rt.deps.Rates = wh
	}
	return rt, nil
}

// paramStore returns the run parameter store. The DynamoDB store writes to
// the status table of the prerequisites stack.
func (r *runtime) paramStore(kind string, d *dag.DAG) (params.Store, error) {
	switch kind {
	case storeMemory:
		return params.NewMemoryStore(), nil
	case storeDynamoDB:
		table, err := d.Provider().Prereqs(stacks.OutputStatusTableName)
		if err != nil {
			return nil, errors.Join(errors.New("status table not provisioned"), err)
		}
		slog.Info("using status table for run parameters", "table", table)
		return params.NewDynamoStore(r.awsConfig, table), nil
	}
	return nil, fmt.Errorf("unknown parameter store %q", kind)
}
