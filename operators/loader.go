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

// loader.go - Downstream data-load trigger
package operators

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aaronlmathis/pmetl/core"
	"github.com/aaronlmathis/pmetl/dag/tasks"
	"github.com/aaronlmathis/pmetl/envctx"
)

// JSONPublisher publishes a JSON document to a topic.
type JSONPublisher interface {
	PublishJSON(ctx context.Context, topicARN string, v any) (string, error)
}

// LoadMessage is the payload consumed by the data loader.
type LoadMessage struct {
	ClientID string `json:"client_id"`
	DataURL  string `json:"data_url"`
}

var supportedSchemes = []string{"s3://", "gcs://"}

func checkScheme(url string) error {
	for _, scheme := range supportedSchemes {
		if strings.HasPrefix(url, scheme) {
			return nil
		}
	}
	return &core.ValidationError{Field: "data_url", Value: url, Msg: "unsupported protocol"}
}

// DataLoaderTrigger asks the data loader to ingest a dataset.
type DataLoaderTrigger struct {
	tasks.BaseTask
	publisher JSONPublisher
	topicARN  string
	clientID  string
	dataURL   string
	logger    *slog.Logger
}

// NewDataLoaderTrigger validates dataURL and resolves the trigger topic.
// dataURL may contain run templates after the scheme.
func NewDataLoaderTrigger(id string, provider *envctx.Provider, publisher JSONPublisher, dataURL string, opts ...tasks.TaskOption) (*DataLoaderTrigger, error) {
	if err := checkScheme(dataURL); err != nil {
		return nil, err
	}
	topic := provider.Env().DataLoadTriggerTopicARN
	if topic == "" {
		return nil, &core.ConfigurationError{Key: "data_load_trigger_sns_topic_arn"}
	}

	t := &DataLoaderTrigger{
		BaseTask:  tasks.NewBaseTask(id, tasks.TaskTypePublish),
		publisher: publisher,
		topicARN:  topic,
		clientID:  provider.AppName(),
		dataURL:   dataURL,
		logger:    slog.Default(),
	}
	tasks.Apply(t, opts...)
	return t, nil
}

// LoaderFromS3 triggers a load of s3://bucket/path.
func LoaderFromS3(id string, provider *envctx.Provider, publisher JSONPublisher, bucket, path string, opts ...tasks.TaskOption) (*DataLoaderTrigger, error) {
	return NewDataLoaderTrigger(id, provider, publisher, joinURL("s3://", bucket, path), opts...)
}

// LoaderFromGCS triggers a load of gcs://bucket/path.
func LoaderFromGCS(id string, provider *envctx.Provider, publisher JSONPublisher, bucket, path string, opts ...tasks.TaskOption) (*DataLoaderTrigger, error) {
	return NewDataLoaderTrigger(id, provider, publisher, joinURL("gcs://", bucket, path), opts...)
}

func joinURL(scheme, bucket, path string) string {
	return scheme + strings.Trim(bucket, "/") + "/" + strings.TrimPrefix(path, "/")
}

// DataURL returns the unrendered data URL.
func (t *DataLoaderTrigger) DataURL() string { return t.dataURL }

// Execute publishes one load message.
func (t *DataLoaderTrigger) Execute(ctx context.Context, run *tasks.Run) error {
	url, err := tasks.Render(ctx, t.dataURL, run, nil)
	if err != nil {
		return err
	}
	if err := checkScheme(url); err != nil {
		return err
	}

	id, err := t.publisher.PublishJSON(ctx, t.topicARN, LoadMessage{ClientID: t.clientID, DataURL: url})
	if err != nil {
		return fmt.Errorf("trigger data load of %s: %w", url, err)
	}
	t.logger.InfoContext(ctx, "data load triggered", "task", t.ID(), "data_url", url, "message_id", id)
	return nil
}
