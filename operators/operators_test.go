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

package operators

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aaronlmathis/pmetl/dag/tasks"
	"github.com/aaronlmathis/pmetl/envconfig"
	"github.com/aaronlmathis/pmetl/envctx"
	"github.com/aaronlmathis/pmetl/naming"
	"github.com/aaronlmathis/pmetl/params"
)

const testApp = "etl-pm-pipeline-youtube"

func testEnv() envconfig.Environment {
	return envconfig.Environment{
		EnvID:                   "dev",
		DeploymentVersion:       "1.0.0",
		ClusterID:               "pm",
		AWSEnv:                  &envconfig.AWSEnv{Region: "us-east-1", AccountID: "123456789012"},
		DataLoadTriggerTopicARN: "arn:aws:sns:us-east-1:123456789012:data-load",
		Pipelines: map[string]envconfig.PipelineConfig{
			"daily_report": {DAG: envconfig.DAGConfig{Schedule: "@daily", StartDate: "2024-01-01", MaxActiveRuns: 1}},
		},
		AWSResources: naming.ResourceTable{
			"etl-pm-shared-dev": {"AlarmsTopicName": "pm-alarms"},
			"etl-pm-pipeline-youtube-dev-prereqs": {
				"ECSClusterName":      "pm-cluster",
				"VPCPrivateSubnetIds": "subnet-a, subnet-b",
			},
		},
	}
}

func testProviderWith(t *testing.T, env envconfig.Environment) *envctx.Provider {
	t.Helper()
	p, err := envctx.New(context.Background(), "daily_report", testApp, env, nil)
	require.NoError(t, err)
	return p
}

func testProvider(t *testing.T) *envctx.Provider {
	return testProviderWith(t, testEnv())
}

func testRun(conf map[string]any) *tasks.Run {
	return tasks.NewRun("etl-pm-youtube-daily_report-v1-dev", time.Date(2024, 4, 2, 12, 0, 0, 0, time.UTC), conf, params.NewMemoryStore())
}
