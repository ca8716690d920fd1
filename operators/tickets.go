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

// tickets.go - Ticket-filing steps
package operators

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/aaronlmathis/pmetl/core"
	"github.com/aaronlmathis/pmetl/dag/tasks"
	"github.com/aaronlmathis/pmetl/envconfig"
	"github.com/aaronlmathis/pmetl/storage"
	"github.com/aaronlmathis/pmetl/ticket"
)

const (
	// IssueKeyParam is the task-scoped parameter holding the filed issue key.
	IssueKeyParam = "jira_issue"

	MaxAttachmentBytes       = 10 * 1024 * 1024
	PresignedLinkTTL         = storage.MaxPresignTTL
	DefaultUnscoredThreshold = 6.0
)

// ReportStore reads the report attached to a ticket.
type ReportStore interface {
	ObjectSize(ctx context.Context, bucket, key string) (int64, error)
	Fetch(ctx context.Context, bucket, key string) ([]byte, error)
	PresignGet(ctx context.Context, bucket, key string, ttl time.Duration) (string, time.Time, error)
}

// MTRTicketConfig configures MTRTicket. ExceedingCount and ReportKey are run templates.
type MTRTicketConfig struct {
	ExceedingCount string
	Ticket         *envconfig.TicketConfig
	ReportBucket   string
	ReportKey      string
}

// MTRTicket files an issue listing campaigns exceeding MTR, with the report
// attached or linked.
type MTRTicket struct {
	tasks.BaseTask
	tracker ticket.Tracker
	reports ReportStore
	cfg     MTRTicketConfig
	logger  *slog.Logger
}

// NewMTRTicket creates the step. tracker may be nil when no ticket is configured.
func NewMTRTicket(id string, tracker ticket.Tracker, reports ReportStore, cfg MTRTicketConfig, opts ...tasks.TaskOption) *MTRTicket {
	t := &MTRTicket{
		BaseTask: tasks.NewBaseTask(id, tasks.TaskTypeTicket),
		tracker:  tracker,
		reports:  reports,
		cfg:      cfg,
		logger:   slog.Default(),
	}
	tasks.Apply(t, opts...)
	return t
}

func (t *MTRTicket) Execute(ctx context.Context, run *tasks.Run) error {
	rendered, err := tasks.Render(ctx, t.cfg.ExceedingCount, run, nil)
	if err != nil {
		return err
	}
	count, err := strconv.Atoi(strings.TrimSpace(rendered))
	if err != nil {
		return &core.ValidationError{Field: "exceeding_count", Value: rendered, Msg: "not an integer"}
	}
	if count == 0 {
		return core.Skip("no campaigns exceeding mtr")
	}
	if t.cfg.Ticket == nil {
		return core.Skip("no ticket configured")
	}
	if t.tracker == nil {
		return &core.ConfigurationError{Key: "jira", Msg: "ticket configured without an issue tracker"}
	}

	ref := run.ExecutionDate
	tk, err := ticket.Render(*t.cfg.Ticket, ref, map[string]any{"count": count})
	if err != nil {
		return err
	}
	key, err := t.tracker.Create(ctx, tk)
	if err != nil {
		return err
	}
	t.logger.InfoContext(ctx, "issue created", "task", t.ID(), "key", key, "exceeding", count)
	if err := run.Push(ctx, tasks.TaskKey(t.ID(), IssueKeyParam), key); err != nil {
		return err
	}

	reportKey, err := tasks.Render(ctx, t.cfg.ReportKey, run, nil)
	if err != nil {
		return err
	}
	return t.addReport(ctx, key, reportKey, ref)
}

func (t *MTRTicket) addReport(ctx context.Context, issueKey, reportKey string, ref time.Time) error {
	size, err := t.reports.ObjectSize(ctx, t.cfg.ReportBucket, reportKey)
	if err != nil {
		return err
	}
	t.logger.InfoContext(ctx, "report size", "task", t.ID(), "bytes", size)

	if size <= MaxAttachmentBytes {
		data, err := t.reports.Fetch(ctx, t.cfg.ReportBucket, reportKey)
		if err != nil {
			return err
		}
		name := ref.Format("campaigns_exceeding_mtr_for_20060102.csv")
		return t.tracker.Attach(ctx, issueKey, name, bytes.NewReader(data))
	}

	url, expires, err := t.reports.PresignGet(ctx, t.cfg.ReportBucket, reportKey, PresignedLinkTTL)
	if err != nil {
		return err
	}
	body := fmt.Sprintf("Report available via: %s\nLink valid to: %s", url, expires.UTC().Format("2006-01-02 15:04"))
	return t.tracker.Comment(ctx, issueKey, body)
}

// RateSource computes the unscored impression rate for a day.
type RateSource interface {
	UnscoredRate(ctx context.Context, table, hitDate string) (rate float64, ok bool, err error)
}

// UnscoredTicketConfig configures UnscoredTicket.
type UnscoredTicketConfig struct {
	Ticket    *envconfig.TicketConfig
	Table     string  // brand-safety aggregate; empty uses the warehouse default
	Threshold float64 // percent; zero uses DefaultUnscoredThreshold
}

// UnscoredTicket files an issue when the unscored rate of the run's day exceeds
// the threshold.
type UnscoredTicket struct {
	tasks.BaseTask
	tracker ticket.Tracker
	rates   RateSource
	cfg     UnscoredTicketConfig
	logger  *slog.Logger
}

// NewUnscoredTicket creates the step.
func NewUnscoredTicket(id string, tracker ticket.Tracker, rates RateSource, cfg UnscoredTicketConfig, opts ...tasks.TaskOption) *UnscoredTicket {
	if cfg.Threshold == 0 {
		cfg.Threshold = DefaultUnscoredThreshold
	}
	t := &UnscoredTicket{
		BaseTask: tasks.NewBaseTask(id, tasks.TaskTypeTicket),
		tracker:  tracker,
		rates:    rates,
		cfg:      cfg,
		logger:   slog.Default(),
	}
	tasks.Apply(t, opts...)
	return t
}

func (t *UnscoredTicket) Execute(ctx context.Context, run *tasks.Run) error {
	if t.cfg.Ticket == nil {
		return core.Skip("no ticket configured")
	}
	if t.rates == nil {
		return &core.ConfigurationError{Key: "warehouse", Msg: "ticket configured without a warehouse"}
	}
	if t.tracker == nil {
		return &core.ConfigurationError{Key: "jira", Msg: "ticket configured without an issue tracker"}
	}

	rate, ok, err := t.rates.UnscoredRate(ctx, t.cfg.Table, run.Ds())
	if err != nil {
		return err
	}
	if !ok {
		return core.Skip("unscored rate not computable for " + run.Ds())
	}
	t.logger.InfoContext(ctx, "unscored rate", "task", t.ID(), "date", run.Ds(), "rate", rate, "threshold", t.cfg.Threshold)
	if rate <= t.cfg.Threshold {
		return core.Skip(fmt.Sprintf("unscored rate %.2f%% within threshold %.2f%%", rate, t.cfg.Threshold))
	}

	tk, err := ticket.Render(*t.cfg.Ticket, run.ExecutionDate, map[string]any{"rate": rate, "threshold": t.cfg.Threshold})
	if err != nil {
		return err
	}
	key, err := t.tracker.Create(ctx, tk)
	if err != nil {
		return err
	}
	t.logger.InfoContext(ctx, "issue created", "task", t.ID(), "key", key)
	return run.Push(ctx, tasks.TaskKey(t.ID(), IssueKeyParam), key)
}
