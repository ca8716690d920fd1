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

package pipelines

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/aaronlmathis/pmetl/core"
	"github.com/aaronlmathis/pmetl/dag"
	"github.com/aaronlmathis/pmetl/dag/tasks"
	"github.com/aaronlmathis/pmetl/envctx"
	"github.com/aaronlmathis/pmetl/operators"
	"github.com/aaronlmathis/pmetl/report"
	"github.com/aaronlmathis/pmetl/storage"
)

const (
	DailyReportName = "daily_report"

	reportContainer   = "report"
	reportTaskTimeout = time.Hour
	defaultLookback   = 24

	// Task ids.
	setParametersTask = "set_parameters"
	checkInputTask    = "check_input"
	reportTask        = "report_task"
	partitionTask     = "create_partition"
	loadTask          = "trigger_data_load"
	countMTRTask      = "count_mtr_exceeding"
	mtrTicketTask     = "mtr_ticket"
	unscoredTask      = "unscored_ticket"

	exceedingCountParam = "exceeding_count"
)

// dailyReportSettings are read from the pipeline configuration.
type dailyReportSettings struct {
	lookback     time.Duration
	dataBucket   string
	inputPrefix  string
	outputPrefix string
	database     string
	table        string
	reportBucket string
	mtrKey       string
}

func loadDailyReportSettings(provider *envctx.Provider) (dailyReportSettings, error) {
	cfg := provider.Pipeline()
	s := dailyReportSettings{
		lookback:     time.Duration(defaultLookback) * time.Hour,
		dataBucket:   cfg.String("data_bucket", ""),
		inputPrefix:  cfg.String("input_prefix", "input/date={{ .DsNodash }}"),
		outputPrefix: cfg.String("output_prefix", DailyReportName),
		database:     cfg.String("glue_database", ""),
		table:        cfg.String("glue_table", DailyReportName),
		reportBucket: cfg.String("report_bucket", ""),
		mtrKey:       cfg.String("mtr_report_key", "mtr/date={{ .DsNodash }}/campaigns_exceeding_mtr.csv"),
	}
	if cfg.LookbackHours > 0 {
		s.lookback = time.Duration(cfg.LookbackHours) * time.Hour
	}
	if s.dataBucket == "" {
		return s, &core.ConfigurationError{Key: "pipelines." + DailyReportName + ".data_bucket"}
	}
	if s.database == "" {
		return s, &core.ConfigurationError{Key: "pipelines." + DailyReportName + ".glue_database"}
	}
	if s.reportBucket == "" {
		s.reportBucket = s.dataBucket
	}
	return s, nil
}

func (s dailyReportSettings) outputURL() string {
	return storage.JoinURL(s.dataBucket, s.outputPrefix+"/date={{ .DsNodash }}")
}

// DailyReport builds the daily report workflow: resolve the reporting window,
// check for input, run the report service, register the output partition,
// trigger the data load and file tickets for campaigns exceeding MTR and for
// an elevated unscored rate.
func DailyReport(provider *envctx.Provider, deps Deps) (*dag.DAG, error) {
	s, err := loadDailyReportSettings(provider)
	if err != nil {
		return nil, err
	}

	taskDefinition, err := provider.Main("ReportDefinitionArn")
	if err != nil {
		return nil, err
	}
	securityGroup, err := provider.Main("SecurityGroupId")
	if err != nil {
		return nil, err
	}
	logGroup, err := provider.Main("LogGroupName")
	if err != nil {
		return nil, err
	}

	reportStep, err := operators.NewECSTask(reportTask, provider, deps.ECS, operators.ECSTaskConfig{
		TaskDefinition:  taskDefinition,
		SecurityGroupID: securityGroup,
		Overrides: []operators.ContainerOverride{
			operators.Override(reportContainer,
				"report.py",
				"--start-date", `{{ param "start_date" }}`,
				"--end-date", `{{ param "end_date" }}`,
				"--output", s.outputURL(),
				"--mtr-report", storage.JoinURL(s.reportBucket, s.mtrKey),
				`{{ param "force" }}`,
			),
		},
		LogGroupName:    logGroup,
		LogStreamPrefix: "ecs/" + reportContainer,
	}, tasks.WithTimeout(reportTaskTimeout))
	if err != nil {
		return nil, err
	}

	partition, err := operators.NewCreatePartition(partitionTask, deps.Storage, deps.Catalog, s.database, s.table, s.outputURL())
	if err != nil {
		return nil, err
	}

	load, err := operators.NewDataLoaderTrigger(loadTask, provider, deps.Publisher, s.outputURL())
	if err != nil {
		return nil, err
	}

	pipeline := provider.Pipeline()
	builder := dag.NewWorkflow(provider, workflowOptions(provider, deps,
		dag.WithDescription(fmt.Sprintf("%s - %s", dag.DefaultPartner, DailyReportName)),
	)...)

	return builder.
		AddTask(dag.NewWindowParametersTask(setParametersTask, s.lookback)).
		AddTask(operators.NewS3FileCheck(checkInputTask, deps.Storage, s.dataBucket, s.inputPrefix, false,
			tasks.WithDescription("Skips the run when no input arrived"))).
		AddTask(reportStep).
		AddTask(partition).
		AddTask(load).
		AddTask(countMTRExceeding(deps.Storage, s.reportBucket, s.mtrKey)).
		AddTask(operators.NewMTRTicket(mtrTicketTask, deps.Tracker, deps.Storage, operators.MTRTicketConfig{
			ExceedingCount: fmt.Sprintf(`{{ param %q }}`, tasks.TaskKey(countMTRTask, exceedingCountParam)),
			Ticket:         pipeline.Ticket("mtr"),
			ReportBucket:   s.reportBucket,
			ReportKey:      s.mtrKey,
		})).
		AddTask(operators.NewUnscoredTicket(unscoredTask, deps.Tracker, deps.Rates, operators.UnscoredTicketConfig{
			Ticket:    pipeline.Ticket("unscored"),
			Table:     pipeline.String("brandsafety_table", ""),
			Threshold: pipelineFloat(pipeline.Raw["unscored_threshold"]),
		}), partitionTask).
		Chain(setParametersTask, checkInputTask, reportTask, partitionTask, loadTask).
		Chain(reportTask, countMTRTask, mtrTicketTask).
		Build()
}

var mtrReportQuality = report.Quality{RequiredColumns: []string{"campaign_id"}}

// countMTRExceeding records the number of campaigns listed in the MTR report.
func countMTRExceeding(store operators.ReportStore, bucket, key string) *tasks.FuncTask {
	fn := func(ctx context.Context, run *tasks.Run) error {
		rendered, err := tasks.Render(ctx, key, run, nil)
		if err != nil {
			return err
		}
		data, err := store.Fetch(ctx, bucket, rendered)
		if err != nil {
			return err
		}
		summary, err := report.Summarize(ctx, bytes.NewReader(data), mtrReportQuality)
		if err != nil {
			return fmt.Errorf("read %s: %w", storage.JoinURL(bucket, rendered), err)
		}
		slog.InfoContext(ctx, "campaigns exceeding mtr", "task", countMTRTask, "count", summary.Rows)
		return run.Push(ctx, tasks.TaskKey(countMTRTask, exceedingCountParam), strconv.Itoa(summary.Rows))
	}
	return tasks.NewFuncTask(countMTRTask, fn, tasks.WithDescription("Counts campaigns exceeding MTR"))
}

func pipelineFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	}
	return 0
}
