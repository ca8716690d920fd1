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
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/aaronlmathis/pmetl/dag"
	"github.com/aaronlmathis/pmetl/pipelines"
)

type runOptions struct {
	conf       []string
	date       string
	store      string
	maxWorkers int
}

func newRunCmd(opts *globalOptions) *cobra.Command {
	ro := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run <pipeline>",
		Short: "Run one pipeline locally",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			conf, err := parseConf(ro.conf)
			if err != nil {
				return err
			}
			executionDate, err := parseExecutionDate(ro.date, time.Now())
			if err != nil {
				return err
			}

			env, err := opts.loadEnvironment()
			if err != nil {
				return err
			}
			gate, err := opts.identityGate(ctx, env)
			if err != nil {
				return err
			}
			rt, err := opts.newRuntime(ctx, env)
			if err != nil {
				return err
			}
			defer rt.Close()

			d, err := pipelines.BuildOne(ctx, args[0], env, gate, rt.deps)
			if err != nil {
				return err
			}
			store, err := rt.paramStore(ro.store, d)
			if err != nil {
				return err
			}

			run := d.NewRun(executionDate, conf, store)
			result, runErr := dag.NewDAGExecutor(dag.WithMaxWorkers(ro.maxWorkers)).Execute(ctx, d, run)
			printResult(cmd, d, result)
			return runErr
		},
	}

	flags := cmd.Flags()
	flags.StringArrayVar(&ro.conf, "conf", nil, "trigger configuration as key=value (repeatable)")
	flags.StringVar(&ro.date, "date", "", "execution date (default: current hour, UTC)")
	flags.StringVar(&ro.store, "store", storeMemory, "run parameter store: memory or dynamodb")
	flags.IntVar(&ro.maxWorkers, "max-workers", 0, "cap on concurrently running tasks (0: workflow concurrency)")
	return cmd
}

func printResult(cmd *cobra.Command, d *dag.DAG, result *dag.DAGResult) {
	if result == nil {
		return
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "run %s of %s: success=%t (%s)\n", result.RunID, result.DAGID, result.Success,
		result.EndTime.Sub(result.StartTime).Round(time.Millisecond))

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TASK\tSTATE\tATTEMPTS\tERROR")
	order, _ := d.ExecutionOrder()
	for _, id := range order {
		tr := result.TaskResults[id]
		errText := ""
		if tr.Err != nil {
			errText = tr.Err.Error()
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", id, tr.State, tr.Attempts, errText)
	}
	_ = w.Flush()
}
