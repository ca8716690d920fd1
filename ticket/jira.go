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

package ticket

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	jira "github.com/andygrunwald/go-jira"

	"github.com/aaronlmathis/pmetl/core"
	"github.com/aaronlmathis/pmetl/envconfig"
)

// IssueService defines the Jira issue operations used by JiraTracker.
type IssueService interface {
	CreateWithContext(ctx context.Context, issue *jira.Issue) (*jira.Issue, *jira.Response, error)
	PostAttachmentWithContext(ctx context.Context, issueID string, r io.Reader, attachmentName string) (*[]jira.Attachment, *jira.Response, error)
	AddCommentWithContext(ctx context.Context, issueID string, comment *jira.Comment) (*jira.Comment, *jira.Response, error)
}

// JiraTracker files tickets in Jira.
type JiraTracker struct {
	issues IssueService
	logger *slog.Logger
}

// NewJiraTracker connects to the server in cfg with basic auth. The API token
// is read from the environment variable cfg.TokenEnv.
func NewJiraTracker(cfg envconfig.JiraConfig) (*JiraTracker, error) {
	if cfg.URL == "" {
		return nil, &core.ConfigurationError{Key: "jira.url"}
	}
	token := ""
	if cfg.TokenEnv != "" {
		token = os.Getenv(cfg.TokenEnv)
	}
	if token == "" {
		return nil, &core.ConfigurationError{Key: "jira.token_env", Msg: "no API token in environment"}
	}

	tp := jira.BasicAuthTransport{Username: cfg.Username, Password: token}
	client, err := jira.NewClient(tp.Client(), cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("jira: create client: %w", err)
	}
	return NewJiraTrackerWithService(client.Issue), nil
}

// NewJiraTrackerWithService creates a tracker with a custom issue service.
func NewJiraTrackerWithService(issues IssueService) *JiraTracker {
	return &JiraTracker{issues: issues, logger: slog.Default()}
}

// Create implements Tracker.
func (j *JiraTracker) Create(ctx context.Context, t Ticket) (string, error) {
	fields := &jira.IssueFields{
		Project:     jira.Project{Key: t.Project},
		Type:        jira.IssueType{Name: t.IssueType},
		Summary:     t.Summary,
		Description: t.Description,
		Labels:      t.Labels,
	}
	if t.Assignee != "" {
		fields.Assignee = &jira.User{Name: t.Assignee}
	}
	if t.Priority != "" {
		fields.Priority = &jira.Priority{Name: t.Priority}
	}
	for _, name := range t.Components {
		fields.Components = append(fields.Components, &jira.Component{Name: name})
	}

	issue, resp, err := j.issues.CreateWithContext(ctx, &jira.Issue{Fields: fields})
	if err != nil {
		return "", fmt.Errorf("jira: create issue in %s: %w", t.Project, responseError(resp, err))
	}
	j.logger.InfoContext(ctx, "issue created", "key", issue.Key, "project", t.Project)
	return issue.Key, nil
}

// Attach implements Tracker.
func (j *JiraTracker) Attach(ctx context.Context, key, name string, r io.Reader) error {
	if _, resp, err := j.issues.PostAttachmentWithContext(ctx, key, r, name); err != nil {
		return fmt.Errorf("jira: attach %s to %s: %w", name, key, responseError(resp, err))
	}
	return nil
}

// Comment implements Tracker.
func (j *JiraTracker) Comment(ctx context.Context, key, body string) error {
	if _, resp, err := j.issues.AddCommentWithContext(ctx, key, &jira.Comment{Body: body}); err != nil {
		return fmt.Errorf("jira: comment on %s: %w", key, responseError(resp, err))
	}
	return nil
}

// responseError adds the server's error body when one is available.
func responseError(resp *jira.Response, err error) error {
	if resp == nil || resp.Response == nil {
		return err
	}
	return jira.NewJiraError(resp, err)
}
