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

// Package ticket renders and files issues in the tracker.
package ticket

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"text/template"
	"time"

	"github.com/Masterminds/sprig/v3"

	"github.com/aaronlmathis/pmetl/core"
	"github.com/aaronlmathis/pmetl/envconfig"
)

// DefaultIssueType is used when the configuration names none.
const DefaultIssueType = "Task"

// Ticket is a fully rendered issue.
type Ticket struct {
	Project     string
	IssueType   string
	Summary     string
	Description string
	Labels      []string
	Assignee    string
	Priority    string
	Components  []string
}

// Tracker files issues and adds content to them.
type Tracker interface {
	Create(ctx context.Context, t Ticket) (key string, err error)
	Attach(ctx context.Context, key, name string, r io.Reader) error
	Comment(ctx context.Context, key, body string) error
}

// Render builds a ticket from configuration. Summary and Description are
// templates with .Date (the run's reference time), .Ds (YYYY-MM-DD) and .Vars
// in scope, plus the sprig function set.
func Render(cfg envconfig.TicketConfig, ref time.Time, vars map[string]any) (Ticket, error) {
	if cfg.Project == "" {
		return Ticket{}, &core.ConfigurationError{Key: "tickets.project"}
	}
	if cfg.Summary == "" {
		return Ticket{}, &core.ConfigurationError{Key: "tickets.summary"}
	}

	data := map[string]any{
		"Date": ref,
		"Ds":   ref.Format("2006-01-02"),
		"Vars": vars,
	}

	summary, err := execute("summary", cfg.Summary, data)
	if err != nil {
		return Ticket{}, err
	}
	description, err := execute("description", cfg.Description, data)
	if err != nil {
		return Ticket{}, err
	}

	t := Ticket{
		Project:     cfg.Project,
		IssueType:   cfg.IssueType,
		Summary:     summary,
		Description: description,
		Labels:      append([]string(nil), cfg.Labels...),
		Assignee:    cfg.Assignee,
		Priority:    cfg.Priority,
		Components:  append([]string(nil), cfg.Components...),
	}
	if t.IssueType == "" {
		t.IssueType = DefaultIssueType
	}
	return t, nil
}

func execute(name, text string, data map[string]any) (string, error) {
	tmpl, err := template.New(name).Funcs(sprig.TxtFuncMap()).Parse(text)
	if err != nil {
		return "", &core.ConfigurationError{Key: "tickets." + name, Msg: err.Error()}
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render ticket %s: %w", name, err)
	}
	return buf.String(), nil
}
