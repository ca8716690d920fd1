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

// template.go - Run-time rendering of task arguments
package tasks

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/Masterminds/sprig/v3"
)

// TemplateData is the value templates are executed against.
type TemplateData struct {
	DAGID         string
	RunID         string
	Ds            string
	DsNodash      string
	Ts            string
	ExecutionDate time.Time
	Conf          map[string]any
	Vars          map[string]any
}

// Render expands a text/template against the run. Besides the sprig function
// set, templates may call param "key" to read a value recorded earlier in the run.
// Strings without actions are returned unchanged.
func Render(ctx context.Context, text string, run *Run, vars map[string]any) (string, error) {
	if !strings.Contains(text, "{{") {
		return text, nil
	}

	funcs := sprig.TxtFuncMap()
	funcs["param"] = func(key string) (string, error) {
		return run.PullString(ctx, key)
	}

	tmpl, err := template.New("arg").Option("missingkey=error").Funcs(funcs).Parse(text)
	if err != nil {
		return "", fmt.Errorf("parse template %q: %w", text, err)
	}

	data := TemplateData{
		DAGID:         run.DAGID,
		RunID:         run.RunID,
		Ds:            run.Ds(),
		DsNodash:      run.DsNodash(),
		Ts:            run.Ts(),
		ExecutionDate: run.ExecutionDate,
		Conf:          run.Conf,
		Vars:          vars,
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render template %q: %w", text, err)
	}
	return buf.String(), nil
}

// RenderAll renders each string in order.
func RenderAll(ctx context.Context, texts []string, run *Run, vars map[string]any) ([]string, error) {
	out := make([]string, len(texts))
	for i, text := range texts {
		rendered, err := Render(ctx, text, run, vars)
		if err != nil {
			return nil, err
		}
		out[i] = rendered
	}
	return out, nil
}
