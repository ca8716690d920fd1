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

// Package pipelines holds the concrete partner workflows and the registry the
// CLI builds them from.
package pipelines

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/aaronlmathis/pmetl/dag"
	"github.com/aaronlmathis/pmetl/envconfig"
	"github.com/aaronlmathis/pmetl/envctx"
	"github.com/aaronlmathis/pmetl/identity"
	"github.com/aaronlmathis/pmetl/operators"
	"github.com/aaronlmathis/pmetl/ticket"
)

// AppName is the application name the pipelines are deployed under.
const AppName = "etl-pm-pipeline-" + dag.DefaultPartner

// ObjectStore is the object storage surface the pipelines use.
type ObjectStore interface {
	operators.PrefixChecker
	operators.ObjectCounter
	operators.ReportStore
}

// Publisher sends failure notifications and data-load triggers.
type Publisher interface {
	dag.Publisher
	operators.JSONPublisher
}

// Deps are the clients shared by every pipeline of an environment. Tracker and
// Rates may be nil when no ticket needs them.
type Deps struct {
	ECS       operators.ECSClient
	Storage   ObjectStore
	Catalog   operators.PartitionRegistrar
	Publisher Publisher
	Tracker   ticket.Tracker
	Rates     operators.RateSource

	// Alarms receives failure notifications; Publisher is used when nil.
	Alarms dag.Publisher
}

// Builder builds one pipeline for the provider's environment.
type Builder func(provider *envctx.Provider, deps Deps) (*dag.DAG, error)

var registry = map[string]Builder{
	DailyReportName: DailyReport,
}

// Names returns the registered pipeline names, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the builder of a registered pipeline.
func Lookup(name string) (Builder, bool) {
	b, ok := registry[name]
	return b, ok
}

// BuildOne builds the named pipeline.
func BuildOne(ctx context.Context, name string, env envconfig.Environment, gate *identity.Gate, deps Deps) (*dag.DAG, error) {
	builder, ok := Lookup(name)
	if !ok {
		return nil, fmt.Errorf("pipeline %q is not registered", name)
	}
	provider, err := envctx.New(ctx, name, AppName, env, gate)
	if err != nil {
		return nil, fmt.Errorf("pipeline %s: %w", name, err)
	}
	return builder(provider, deps)
}

// Build builds every registered pipeline configured in env. Configured
// pipelines without a builder are reported and left out.
func Build(ctx context.Context, env envconfig.Environment, gate *identity.Gate, deps Deps) ([]*dag.DAG, error) {
	var (
		dags []*dag.DAG
		errs []error
	)
	for _, name := range env.PipelineNames() {
		if _, ok := Lookup(name); !ok {
			slog.WarnContext(ctx, "pipeline has no builder", "pipeline", name, "env", env.EnvID)
			continue
		}
		d, err := BuildOne(ctx, name, env, gate, deps)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		dags = append(dags, d)
	}
	return dags, errors.Join(errs...)
}

func workflowOptions(provider *envctx.Provider, deps Deps, opts ...dag.WorkflowOption) []dag.WorkflowOption {
	var alarms dag.Publisher = deps.Alarms
	if alarms == nil && deps.Publisher != nil {
		alarms = deps.Publisher
	}
	if alarms != nil {
		notifier := dag.NewFailureNotifier(provider, alarms)
		opts = append(opts, dag.WithFailureHook(notifier.Hook()))
	}
	return opts
}
