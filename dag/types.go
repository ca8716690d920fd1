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
	"context"
	"time"

	"github.com/aaronlmathis/pmetl/dag/tasks"
	"github.com/aaronlmathis/pmetl/envctx"
	"github.com/aaronlmathis/pmetl/naming"
	"github.com/aaronlmathis/pmetl/notify"
)

const (
	Domain              = naming.ProductDomain
	Product             = naming.ProductName
	Team                = "weedwackers"
	DefaultPartner      = "youtube"
	DataDateTimezone    = "America/New_York"
	DateParameterFormat = "2006-01-02T15:04:05"
	ConcurrencyFactor   = 10 // concurrency = max active runs * ConcurrencyFactor
)

const (
	TriggerAllSuccess = tasks.TriggerRuleAllSuccess
	TriggerAllDone    = tasks.TriggerRuleAllDone
	TriggerNoneFailed = tasks.TriggerRuleNoneFailed
)

// FailureHook is called once for every task that ends in the failed state.
type FailureHook func(ctx context.Context, failure notify.Failure)

// DAG represents a directed acyclic graph of tasks
type DAG struct {
	id           string
	name         string
	tasks        map[string]tasks.Task
	order        []string // insertion order
	dependencies map[string][]string
	metadata     DAGMetadata
	provider     *envctx.Provider
	onFailure    FailureHook
}

// DefaultArgs are applied to every task added to the DAG.
type DefaultArgs struct {
	Owner          string
	Queue          string
	DependsOnPast  bool
	Retries        int
	EmailOnFailure bool
	EmailOnRetry   bool
}

// DAGMetadata contains DAG-level configuration
type DAGMetadata struct {
	Description    string
	Partner        string
	Schedule       string
	StartDate      time.Time
	Catchup        bool
	MaxActiveRuns  int
	Concurrency    int
	Tags           []string
	DefaultArgs    DefaultArgs
	DefaultTimeout time.Duration
}
