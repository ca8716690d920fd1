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
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	jira "github.com/andygrunwald/go-jira"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronlmathis/pmetl/core"
	"github.com/aaronlmathis/pmetl/envconfig"
)

type mockIssueService struct {
	created     []*jira.Issue
	attachments map[string]string
	comments    map[string][]string
	createErr   error
}

func newMockIssueService() *mockIssueService {
	return &mockIssueService{attachments: map[string]string{}, comments: map[string][]string{}}
}

func (m *mockIssueService) CreateWithContext(ctx context.Context, issue *jira.Issue) (*jira.Issue, *jira.Response, error) {
	if m.createErr != nil {
		return nil, nil, m.createErr
	}
	m.created = append(m.created, issue)
	return &jira.Issue{Key: "PM-101"}, nil, nil
}

func (m *mockIssueService) PostAttachmentWithContext(ctx context.Context, issueID string, r io.Reader, attachmentName string) (*[]jira.Attachment, *jira.Response, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, err
	}
	m.attachments[issueID+"/"+attachmentName] = string(data)
	return &[]jira.Attachment{{Filename: attachmentName}}, nil, nil
}

func (m *mockIssueService) AddCommentWithContext(ctx context.Context, issueID string, comment *jira.Comment) (*jira.Comment, *jira.Response, error) {
	m.comments[issueID] = append(m.comments[issueID], comment.Body)
	return comment, nil, nil
}

func TestRender(t *testing.T) {
	ref := time.Date(2024, 4, 2, 12, 0, 0, 0, time.UTC)
	cfg := envconfig.TicketConfig{
		Project:     "PM",
		Summary:     "Campaigns exceeding MTR for {{ .Ds }}",
		Description: "{{ .Vars.count }} campaigns on {{ .Date | date \"Jan 2\" }}",
		Labels:      []string{"mtr"},
		Components:  []string{"youtube"},
	}

	got, err := Render(cfg, ref, map[string]any{"count": 5})
	require.NoError(t, err)
	assert.Equal(t, "PM", got.Project)
	assert.Equal(t, DefaultIssueType, got.IssueType)
	assert.Equal(t, "Campaigns exceeding MTR for 2024-04-02", got.Summary)
	assert.Equal(t, "5 campaigns on Apr 2", got.Description)
	assert.Equal(t, []string{"mtr"}, got.Labels)
	assert.Equal(t, []string{"youtube"}, got.Components)
}

func TestRenderErrors(t *testing.T) {
	ref := time.Now()

	_, err := Render(envconfig.TicketConfig{Summary: "x"}, ref, nil)
	assert.True(t, core.IsConfiguration(err))

	_, err = Render(envconfig.TicketConfig{Project: "PM"}, ref, nil)
	assert.True(t, core.IsConfiguration(err))

	_, err = Render(envconfig.TicketConfig{Project: "PM", Summary: "{{ .Ds "}, ref, nil)
	assert.True(t, core.IsConfiguration(err))
}

func TestJiraTrackerCreate(t *testing.T) {
	svc := newMockIssueService()
	tracker := NewJiraTrackerWithService(svc)

	key, err := tracker.Create(context.Background(), Ticket{
		Project:    "PM",
		IssueType:  "Bug",
		Summary:    "s",
		Assignee:   "jdoe",
		Priority:   "High",
		Components: []string{"youtube"},
	})
	require.NoError(t, err)
	assert.Equal(t, "PM-101", key)

	require.Len(t, svc.created, 1)
	fields := svc.created[0].Fields
	assert.Equal(t, "PM", fields.Project.Key)
	assert.Equal(t, "Bug", fields.Type.Name)
	assert.Equal(t, "jdoe", fields.Assignee.Name)
	assert.Equal(t, "High", fields.Priority.Name)
	require.Len(t, fields.Components, 1)
	assert.Equal(t, "youtube", fields.Components[0].Name)
}

func TestJiraTrackerAttachAndComment(t *testing.T) {
	svc := newMockIssueService()
	tracker := NewJiraTrackerWithService(svc)

	require.NoError(t, tracker.Attach(context.Background(), "PM-1", "report.csv", strings.NewReader("a,b")))
	assert.Equal(t, "a,b", svc.attachments["PM-1/report.csv"])

	require.NoError(t, tracker.Comment(context.Background(), "PM-1", "hello"))
	assert.Equal(t, []string{"hello"}, svc.comments["PM-1"])
}

func TestJiraTrackerCreateError(t *testing.T) {
	svc := newMockIssueService()
	svc.createErr = errors.New("unauthorized")
	tracker := NewJiraTrackerWithService(svc)

	_, err := tracker.Create(context.Background(), Ticket{Project: "PM"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unauthorized")
}

func TestNewJiraTrackerConfig(t *testing.T) {
	_, err := NewJiraTracker(envconfig.JiraConfig{})
	assert.True(t, core.IsConfiguration(err))

	_, err = NewJiraTracker(envconfig.JiraConfig{URL: "https://jira.example.com", TokenEnv: "PMETL_TEST_UNSET_TOKEN"})
	assert.True(t, core.IsConfiguration(err))

	t.Setenv("PMETL_TEST_JIRA_TOKEN", "secret")
	tracker, err := NewJiraTracker(envconfig.JiraConfig{URL: "https://jira.example.com", Username: "bot", TokenEnv: "PMETL_TEST_JIRA_TOKEN"})
	require.NoError(t, err)
	assert.NotNil(t, tracker)
}
