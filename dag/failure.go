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
	"log/slog"
	"time"

	"github.com/aaronlmathis/pmetl/envctx"
	"github.com/aaronlmathis/pmetl/notify"
)

// Publisher sends a message to a topic.
type Publisher interface {
	Publish(ctx context.Context, topicARN, subject, message string) (string, error)
}

// NotifyTimeout bounds a single failure notification.
const NotifyTimeout = 10 * time.Second

// FailureNotifier publishes task failures to the shared alarms topic.
type FailureNotifier struct {
	provider  *envctx.Provider
	publisher Publisher
	logger    *slog.Logger
	timeout   time.Duration
}

// NewFailureNotifier creates a notifier for the provider's environment.
func NewFailureNotifier(provider *envctx.Provider, publisher Publisher) *FailureNotifier {
	return &FailureNotifier{provider: provider, publisher: publisher, logger: slog.Default(), timeout: NotifyTimeout}
}

// Notify publishes the failure once, within NotifyTimeout, even when ctx is
// already cancelled. Errors are logged and never propagated.
func (n *FailureNotifier) Notify(ctx context.Context, failure notify.Failure) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.timeout)
	defer cancel()

	topic, err := n.provider.Shared("AlarmsTopicName")
	if err != nil {
		n.logger.ErrorContext(ctx, "failure notification not sent", "dag", failure.DAGID, "task", failure.TaskID, "error", err)
		return
	}

	arn := n.provider.TopicARN(topic)
	if _, err := n.publisher.Publish(ctx, arn, notify.FailureSubject, failure.Message()); err != nil {
		n.logger.ErrorContext(ctx, "failure notification not sent", "dag", failure.DAGID, "task", failure.TaskID, "topic", arn, "error", err)
		return
	}
	n.logger.InfoContext(ctx, "failure notification sent", "dag", failure.DAGID, "task", failure.TaskID, "topic", arn)
}

// Hook returns Notify as a FailureHook.
func (n *FailureNotifier) Hook() FailureHook {
	return n.Notify
}
