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

package envconfig

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronlmathis/pmetl/core"
)

func TestLoadJSON(t *testing.T) {
	env, err := Load("testdata/envs-config.json", "dev")
	require.NoError(t, err)

	assert.Equal(t, "dev", env.EnvID)
	assert.Equal(t, "1.3.0", env.DeploymentVersion)
	assert.Equal(t, "airflow.dev.cluster", env.ClusterID)
	require.NotNil(t, env.AWSEnv)
	assert.Equal(t, "000000000000", env.AWSEnv.AccountID)

	p, err := env.Pipeline("daily_report")
	require.NoError(t, err)
	assert.Equal(t, 24, p.LookbackHours)
	assert.Equal(t, 1, p.DAG.MaxActiveRuns)
	assert.True(t, p.DAG.UseCloudFormationStack)
	assert.Equal(t, "reports/daily", p.String("report_prefix", ""))
	assert.Equal(t, 24, p.Int("lookback_hours", 0))
	assert.Equal(t, 5, p.Int("missing", 5))

	start, err := p.DAG.Start()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC), start)

	mtr := p.Ticket("mtr")
	require.NotNil(t, mtr)
	assert.Equal(t, "WGP", mtr.Project)
	assert.Nil(t, p.Ticket("unscored"))

	cluster, err := env.AWSResources.Lookup("etl-pm-pipeline-youtube-dev-prereqs", "ECSClusterName")
	require.NoError(t, err)
	assert.Equal(t, "ecs.dev.cluster", cluster)
}

func TestLoadYAML(t *testing.T) {
	env, err := Load("testdata/envs-config.yaml", "dev")
	require.NoError(t, err)

	assert.Equal(t, "2.0.1", env.DeploymentVersion)
	assert.Nil(t, env.AWSEnv)

	p, err := env.Pipeline("daily_report")
	require.NoError(t, err)
	assert.Equal(t, 48, p.LookbackHours)
	assert.Equal(t, 7, p.Int("retention_days", 0))
	assert.True(t, p.DAG.Catchup)
	assert.Equal(t, []string{"daily_report"}, env.PipelineNames())
}

func TestLoadFillsEnvID(t *testing.T) {
	env, err := Load("testdata/envs-config.json", "prod")
	require.NoError(t, err)
	assert.Equal(t, "prod", env.EnvID)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load("testdata/envs-config.json", "qa")
	assert.True(t, core.IsConfiguration(err))

	_, err = Load("testdata/envs-config.json", "broken")
	var ce *core.ConfigurationError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "deployment_version", ce.Key)

	_, err = Load("testdata/missing.json", "dev")
	require.Error(t, err)
}

func TestPipelineMissing(t *testing.T) {
	env := Environment{EnvID: "dev", Pipelines: map[string]PipelineConfig{}}
	_, err := env.Pipeline("daily_report")
	var ce *core.ConfigurationError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "pipelines.daily_report", ce.Key)
}

func TestDecodeEnvironment(t *testing.T) {
	env, err := DecodeEnvironment([]byte(`{"env_id":"test","deployment_version":"0.0.0","airflow_cluster_id":"c"}`), FormatJSON)
	require.NoError(t, err)
	require.NoError(t, env.Validate())

	_, err = DecodeEnvironment([]byte(`{}`), Format("toml"))
	require.Error(t, err)
}

func TestStartDateInvalid(t *testing.T) {
	_, err := DAGConfig{StartDate: "01/01/2022"}.Start()
	assert.True(t, core.IsConfiguration(err))
}

func TestWarehouseResolveDSN(t *testing.T) {
	t.Setenv("PMETL_TEST_DSN", "postgres://env")
	assert.Equal(t, "postgres://env", WarehouseConfig{DSN: "postgres://file", DSNEnv: "PMETL_TEST_DSN"}.ResolveDSN())
	assert.Equal(t, "postgres://file", WarehouseConfig{DSN: "postgres://file", DSNEnv: "PMETL_UNSET_DSN"}.ResolveDSN())
}
