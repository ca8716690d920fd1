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

// Command pmstacks is the CDK app of the partner pipelines. Run it through
// `cdk synth` / `cdk deploy` with -c env=<env id>.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/jsii-runtime-go"

	"github.com/aaronlmathis/pmetl/dag"
	"github.com/aaronlmathis/pmetl/logging"
	"github.com/aaronlmathis/pmetl/pipelines"
	"github.com/aaronlmathis/pmetl/stacks"
)

func main() {
	defer jsii.Close()

	if err := logging.Initialize(logging.Text, "info"); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	app := awscdk.NewApp(nil)
	if err := define(app); err != nil {
		slog.Error("stack definition failed", "error", err)
		os.Exit(1)
	}
	app.Synth(nil)
}

func contextString(app awscdk.App, key, def string) string {
	if v, ok := app.Node().TryGetContext(jsii.String(key)).(string); ok && v != "" {
		return v
	}
	return def
}

func define(app awscdk.App) error {
	info := stacks.AppInfo{
		Name:       pipelines.AppName,
		Env:        contextString(app, "env", "dev"),
		Account:    contextString(app, "account", os.Getenv("CDK_DEFAULT_ACCOUNT")),
		Region:     contextString(app, "region", os.Getenv("CDK_DEFAULT_REGION")),
		Team:       dag.Team,
		Repository: pipelines.AppName,
	}

	prereqs, err := stacks.NewPrereqsStack(app, stacks.PrereqsStackProps{
		App:   info,
		VpcID: contextString(app, "vpc_id", ""),
	})
	if err != nil {
		return err
	}
	if prereqs.Vpc == nil {
		slog.Warn("no vpc_id in context; pipeline stacks skipped")
		return nil
	}

	_, err = stacks.NewPipelineStack(app, stacks.PipelineStackProps{
		App:      info,
		Pipeline: pipelines.DailyReportName,
		Prereqs:  prereqs,
		Services: []stacks.ServiceProps{{
			Name:  "report",
			Image: contextString(app, "report_image", pipelines.AppName+"/report:latest"),
		}},
	})
	return err
}
