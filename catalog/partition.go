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

// Package catalog registers storage partitions in the Glue data catalog.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/glue"
	gluetypes "github.com/aws/aws-sdk-go-v2/service/glue/types"

	"github.com/aaronlmathis/pmetl/core"
)

// GlueClient defines the Glue operations used by Catalog.
type GlueClient interface {
	GetTable(ctx context.Context, params *glue.GetTableInput, optFns ...func(*glue.Options)) (*glue.GetTableOutput, error)
	CreatePartition(ctx context.Context, params *glue.CreatePartitionInput, optFns ...func(*glue.Options)) (*glue.CreatePartitionOutput, error)
	UpdatePartition(ctx context.Context, params *glue.UpdatePartitionInput, optFns ...func(*glue.Options)) (*glue.UpdatePartitionOutput, error)
}

// Partition is the outcome of a registration.
type Partition struct {
	Database string
	Table    string
	Values   []string
	Location string
	Created  bool // false when an existing partition was updated
}

// Catalog registers partitions against catalog tables.
type Catalog struct {
	client GlueClient
	logger *slog.Logger
}

// New creates a catalog from an SDK config.
func New(cfg aws.Config) *Catalog {
	return NewWithClient(glue.NewFromConfig(cfg))
}

// NewWithClient creates a catalog with a custom Glue client.
func NewWithClient(client GlueClient) *Catalog {
	return &Catalog{client: client, logger: slog.Default()}
}

// PartitionValues decomposes a partition location relative to its table location.
// The location must extend the table location on a path boundary and every
// remaining segment must have the form key=value.
func PartitionValues(tableLocation, partitionLocation string) ([]string, error) {
	base := strings.TrimSuffix(tableLocation, "/")
	loc := strings.TrimSuffix(partitionLocation, "/")

	rest, ok := strings.CutPrefix(loc, base+"/")
	if base == "" || !ok || rest == "" {
		return nil, &core.ValidationError{
			Field: "location",
			Value: partitionLocation,
			Msg:   fmt.Sprintf("not a partition of table location %s", tableLocation),
		}
	}

	segments := strings.Split(rest, "/")
	values := make([]string, 0, len(segments))
	for _, segment := range segments {
		key, value, found := strings.Cut(segment, "=")
		if !found || key == "" {
			return nil, &core.ValidationError{
				Field: "location",
				Value: partitionLocation,
				Msg:   fmt.Sprintf("segment %q is not key=value", segment),
			}
		}
		values = append(values, value)
	}
	return values, nil
}

// TableLocation returns the storage location of a table.
func (c *Catalog) TableLocation(ctx context.Context, database, table string) (string, error) {
	sd, err := c.storageDescriptor(ctx, database, table)
	if err != nil {
		return "", err
	}
	return aws.ToString(sd.Location), nil
}

// Register creates or updates the partition stored at location.
func (c *Catalog) Register(ctx context.Context, database, table, location string) (Partition, error) {
	sd, err := c.storageDescriptor(ctx, database, table)
	if err != nil {
		return Partition{}, err
	}

	values, err := PartitionValues(aws.ToString(sd.Location), location)
	if err != nil {
		return Partition{}, err
	}

	desc := *sd
	desc.Location = aws.String(location)
	input := &gluetypes.PartitionInput{
		Values:            values,
		StorageDescriptor: &desc,
	}

	result := Partition{Database: database, Table: table, Values: values, Location: location}

	_, err = c.client.CreatePartition(ctx, &glue.CreatePartitionInput{
		DatabaseName:   aws.String(database),
		TableName:      aws.String(table),
		PartitionInput: input,
	})
	if err == nil {
		result.Created = true
		c.logger.Info("partition created", "database", database, "table", table, "values", values)
		return result, nil
	}

	var exists *gluetypes.AlreadyExistsException
	if !errors.As(err, &exists) {
		return Partition{}, fmt.Errorf("glue: create partition %s.%s: %w", database, table, err)
	}

	if _, err := c.client.UpdatePartition(ctx, &glue.UpdatePartitionInput{
		DatabaseName:       aws.String(database),
		TableName:          aws.String(table),
		PartitionValueList: values,
		PartitionInput:     input,
	}); err != nil {
		return Partition{}, fmt.Errorf("glue: update partition %s.%s: %w", database, table, err)
	}

	c.logger.Info("partition updated", "database", database, "table", table, "values", values)
	return result, nil
}

func (c *Catalog) storageDescriptor(ctx context.Context, database, table string) (*gluetypes.StorageDescriptor, error) {
	out, err := c.client.GetTable(ctx, &glue.GetTableInput{
		DatabaseName: aws.String(database),
		Name:         aws.String(table),
	})
	if err != nil {
		var nf *gluetypes.EntityNotFoundException
		if errors.As(err, &nf) {
			return nil, &core.NotFoundError{Kind: "table", Name: database + "." + table}
		}
		return nil, fmt.Errorf("glue: get table %s.%s: %w", database, table, err)
	}
	if out.Table == nil || out.Table.StorageDescriptor == nil {
		return nil, &core.ConfigurationError{Key: database + "." + table, Msg: "table has no storage descriptor"}
	}
	return out.Table.StorageDescriptor, nil
}
