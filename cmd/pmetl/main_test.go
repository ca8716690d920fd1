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

package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append(args, "--log-level", "error"))
	err := cmd.Execute()
	return out.String(), err
}

func TestValidate(t *testing.T) {
	out, err := execute(t, "validate", "--config", "testdata/envs-config.json", "--env", "dev")
	require.NoError(t, err)
	assert.Contains(t, out, "DAG: etl-pm-youtube-daily_report-v3-dev (daily_report)")
	assert.Contains(t, out, "report_task [container]")
	assert.Contains(t, out, "1 pipeline(s) valid for dev")
}

func TestValidateReportsBrokenPipeline(t *testing.T) {
	_, err := execute(t, "validate", "--config", "testdata/envs-config.json", "--env", "broken")
	assert.Error(t, err)
}

func TestValidateUnknownEnvironment(t *testing.T) {
	_, err := execute(t, "validate", "--config", "testdata/envs-config.json", "--env", "qa")
	assert.Error(t, err)
}

func TestList(t *testing.T) {
	out, err := execute(t, "list", "-c", "testdata/envs-config.json", "-e", "dev")
	require.NoError(t, err)
	assert.Contains(t, out, "PIPELINE")
	assert.Regexp(t, `daily_report\s+0 6 \* \* \*\s+2024-01-01\s+true`, out)
	assert.Regexp(t, `legacy_export\s+@weekly\s+2023-01-01\s+false`, out)
}

func TestParseConf(t *testing.T) {
	conf, err := parseConf([]string{"force=true", "start_date=2024-03-01", "retries=2", "ratio=0.5", "note=a=b"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"force":      true,
		"start_date": "2024-03-01",
		"retries":    2,
		"ratio":      0.5,
		"note":       "a=b",
	}, conf)

	_, err = parseConf([]string{"force"})
	assert.Error(t, err)
	_, err = parseConf([]string{"=x"})
	assert.Error(t, err)
}

func TestParseExecutionDate(t *testing.T) {
	now := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)

	got, err := parseExecutionDate("", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 6, 7, 0, 0, 0, time.UTC), got)

	got, err = parseExecutionDate("2024-04-02", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 4, 2, 0, 0, 0, 0, time.UTC), got)

	_, err = parseExecutionDate("not a date", now)
	assert.Error(t, err)
}
