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

// partition.go - Catalog partition registrar
package operators

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aaronlmathis/pmetl/catalog"
	"github.com/aaronlmathis/pmetl/core"
	"github.com/aaronlmathis/pmetl/dag/tasks"
	"github.com/aaronlmathis/pmetl/storage"
)

// PrefixChecker reports whether a storage prefix holds objects.
type PrefixChecker interface {
	PrefixExists(ctx context.Context, bucket, prefix string) (bool, error)
}

// PartitionRegistrar creates or updates catalog partitions.
type PartitionRegistrar interface {
	Register(ctx context.Context, database, table, location string) (catalog.Partition, error)
}

// CreatePartition registers the partition stored at a run-specific location.
type CreatePartition struct {
	tasks.BaseTask
	storage  PrefixChecker
	catalog  PartitionRegistrar
	database string
	table    string
	location string
	logger   *slog.Logger
}

// NewCreatePartition creates the registrar. location is a template such as
// s3://bucket/table/date={{ .DsNodash }}.
func NewCreatePartition(id string, store PrefixChecker, registrar PartitionRegistrar, database, table, location string, opts ...tasks.TaskOption) (*CreatePartition, error) {
	if database == "" || table == "" {
		return nil, &core.ConfigurationError{Key: id + ".table", Msg: "database and table are required"}
	}
	t := &CreatePartition{
		BaseTask: tasks.NewBaseTask(id, tasks.TaskTypeCatalog),
		storage:  store,
		catalog:  registrar,
		database: database,
		table:    table,
		location: location,
		logger:   slog.Default(),
	}
	tasks.Apply(t, opts...)
	return t, nil
}

// Execute verifies the location holds data, then upserts the partition.
func (t *CreatePartition) Execute(ctx context.Context, run *tasks.Run) error {
	location, err := tasks.Render(ctx, t.location, run, nil)
	if err != nil {
		return err
	}

	bucket, prefix, err := storage.SplitURL(location)
	if err != nil {
		return err
	}
	exists, err := t.storage.PrefixExists(ctx, bucket, prefix)
	if err != nil {
		return err
	}
	if !exists {
		return &core.NotFoundError{Kind: "partition location", Name: location}
	}

	p, err := t.catalog.Register(ctx, t.database, t.table, location)
	if err != nil {
		return fmt.Errorf("register partition %s: %w", location, err)
	}
	t.logger.InfoContext(ctx, "partition registered", "task", t.ID(), "table", t.database+"."+t.table,
		"values", p.Values, "created", p.Created)
	return run.Push(ctx, tasks.TaskKey(t.ID(), "partition_values"), p.Values)
}
