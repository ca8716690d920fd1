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

// sns.go - Topic publishing for notifications and downstream triggers
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

// FailureSubject is the subject of every run failure notification.
const FailureSubject = "PMI DAG run failure"

// SNSClient defines the SNS operations used by Publisher.
type SNSClient interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// Publisher sends messages to topics.
type Publisher struct {
	client SNSClient
}

// NewPublisher creates a publisher from an SDK config.
func NewPublisher(cfg aws.Config) *Publisher {
	return &Publisher{client: sns.NewFromConfig(cfg)}
}

// NewAlarmPublisher creates a publisher whose requests are never retried.
func NewAlarmPublisher(cfg aws.Config) *Publisher {
	return &Publisher{client: sns.NewFromConfig(cfg, func(o *sns.Options) {
		o.Retryer = aws.NopRetryer{}
	})}
}

// NewPublisherWithClient creates a publisher with a custom client.
func NewPublisherWithClient(client SNSClient) *Publisher {
	return &Publisher{client: client}
}

// Publish sends a plain-text message and returns the message id.
func (p *Publisher) Publish(ctx context.Context, topicARN, subject, message string) (string, error) {
	if topicARN == "" {
		return "", fmt.Errorf("sns: empty topic arn")
	}
	input := &sns.PublishInput{
		TopicArn: aws.String(topicARN),
		Message:  aws.String(message),
	}
	if subject != "" {
		input.Subject = aws.String(subject)
	}

	out, err := p.client.Publish(ctx, input)
	if err != nil {
		return "", fmt.Errorf("sns: publish to %s: %w", topicARN, err)
	}
	return aws.ToString(out.MessageId), nil
}

// PublishJSON encodes v as JSON and publishes it without a subject.
func (p *Publisher) PublishJSON(ctx context.Context, topicARN string, v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("sns: marshal message: %w", err)
	}
	return p.Publish(ctx, topicARN, "", string(data))
}

// Failure describes a failed step.
type Failure struct {
	DAGID         string
	TaskID        string
	ExecutionDate time.Time
	Host          string
	Err           error
}

// Message renders the plain-text notification body.
func (f Failure) Message() string {
	errText := "<nil>"
	if f.Err != nil {
		errText = f.Err.Error()
	}

	var b strings.Builder
	b.WriteString("Task failure:\n\n")
	fmt.Fprintf(&b, "\nDAG:             %s", f.DAGID)
	fmt.Fprintf(&b, "\nTask:            %s", f.TaskID)
	fmt.Fprintf(&b, "\nExecution Date:  %s", f.ExecutionDate.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "\nHost:            %s", f.Host)
	fmt.Fprintf(&b, "\nError:           %s", errText)
	return b.String()
}
