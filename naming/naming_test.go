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

package naming

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronlmathis/pmetl/core"
)

func TestStackName(t *testing.T) {
	tests := []struct {
		app, env, suffix string
		want             string
	}{
		{"x", "dev", "prereqs", "x-dev-prereqs"},
		{"etl-pm-pipeline-youtube", "prod", "daily_report", "etl-pm-pipeline-youtube-prod-daily_report"},
		{"app", "staging", "shared", "app-staging-shared"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, StackName(tt.app, tt.env, tt.suffix))
		})
	}

	assert.Equal(t, "x-dev-prereqs", PrereqsStackName("x", "dev"))
	assert.Equal(t, "etl-pm-shared-dev", SharedStackName("dev"))
}

func TestResourceTableLookup(t *testing.T) {
	table := ResourceTable{
		"x-dev-prereqs": {"ECSClusterName": "ecs.test.cluster"},
	}

	got, err := table.Lookup("x-dev-prereqs", "ECSClusterName")
	require.NoError(t, err)
	assert.Equal(t, "ecs.test.cluster", got)

	_, err = table.Lookup(StackName("x", "dev", "prereqs"), "Unknown")
	require.Error(t, err)
	var nf *core.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "resource", nf.Kind)

	_, err = table.Lookup("x-dev-missing", "ECSClusterName")
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "stack", nf.Kind)
}

func TestWorkflowID(t *testing.T) {
	id, err := WorkflowID("youtube", "daily_report", "2.4.1", "dev")
	require.NoError(t, err)
	assert.Equal(t, "etl-pm-youtube-daily_report-v2-dev", id)

	again, err := WorkflowID("youtube", "daily_report", "2.9.0", "dev")
	require.NoError(t, err)
	assert.Equal(t, id, again, "minor/patch bumps keep the identity")

	_, err = WorkflowID("youtube", "", "1.0.0", "dev")
	assert.True(t, core.IsValidation(err))
}

func TestRegionDesignator(t *testing.T) {
	assert.Equal(t, "ue1", RegionDesignator("us-east-1"))
	assert.Equal(t, "uw2", RegionDesignator("us-west-2"))
	assert.Equal(t, "ec1", RegionDesignator("eu-central-1"))
	assert.Equal(t, "", RegionDesignator(""))
}

func TestSafeAppName(t *testing.T) {
	assert.Equal(t, "etl-pm-pipeline-youtube", SafeAppName("etl-pm-pipeline-youtube"))
	assert.Equal(t, "etl-pmpipeline", SafeAppName("etl-pm_pipeline!"))
}

func TestResourceTableClone(t *testing.T) {
	table := ResourceTable{"a": {"k": "v"}, "b": {}}
	clone := table.Clone()
	clone["a"]["k"] = "changed"
	assert.Equal(t, "v", table["a"]["k"])
	assert.Equal(t, []string{"a", "b"}, table.Stacks())
}
