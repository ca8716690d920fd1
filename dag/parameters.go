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

// parameters.go - Run parameter resolution
package dag

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	_ "time/tzdata"

	"github.com/araddon/dateparse"

	"github.com/aaronlmathis/pmetl/core"
	"github.com/aaronlmathis/pmetl/dag/tasks"
)

// Handler transforms a value supplied in the trigger configuration.
type Handler func(value any) (any, error)

// Parameter keys written by the helpers below.
const (
	ParamForce       = "force"
	ParamDefaultDate = "default_date"
	ParamStartDate   = "start_date"
	ParamEndDate     = "end_date"
)

// SetParameter resolves key for the run and records it. A value present in the
// trigger configuration wins and is passed through handler; otherwise def is
// recorded as-is.
func SetParameter(ctx context.Context, run *tasks.Run, key string, def any, handler Handler) (any, error) {
	value := def
	if override, ok := run.ConfValue(key); ok {
		value = override
		if handler != nil {
			handled, err := handler(override)
			if err != nil {
				return nil, &core.ValidationError{Field: key, Value: fmt.Sprint(override), Msg: err.Error()}
			}
			value = handled
		}
		slog.InfoContext(ctx, "parameter overridden by trigger", "run", run.RunID, "key", key, "value", value)
	} else {
		slog.InfoContext(ctx, "setting parameter", "run", run.RunID, "key", key, "value", value)
	}

	if err := run.Push(ctx, key, value); err != nil {
		return nil, fmt.Errorf("record parameter %s: %w", key, err)
	}
	return value, nil
}

// SetForceParameter records "--force" when the trigger sets force to true and
// "--no-force" otherwise.
func SetForceParameter(ctx context.Context, run *tasks.Run) (string, error) {
	arg := "--no-force"
	if force, ok := run.ConfValue(ParamForce); ok && force == true {
		arg = "--force"
	}
	slog.InfoContext(ctx, "setting force", "run", run.RunID, "value", arg)

	if err := run.Push(ctx, ParamForce, arg); err != nil {
		return "", fmt.Errorf("record parameter %s: %w", ParamForce, err)
	}
	return arg, nil
}

// SetDateParameter records default_date from the trigger's date, falling back
// to the execution date as YYYYMMDD.
func SetDateParameter(ctx context.Context, run *tasks.Run) (string, error) {
	date := run.DsNodash()
	if v, ok := run.ConfValue("date"); ok {
		date = fmt.Sprint(v)
	}
	value, err := SetParameter(ctx, run, ParamDefaultDate, date, nil)
	if err != nil {
		return "", err
	}
	return fmt.Sprint(value), nil
}

// FormatInputDate parses a free-form date and renders it in DateParameterFormat.
func FormatInputDate(value any) (any, error) {
	s, ok := value.(string)
	if !ok {
		s = fmt.Sprint(value)
	}
	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("unrecognised date %q: %w", s, err)
	}
	return t.Format(DateParameterFormat), nil
}

// DataDateTZOffset returns the UTC offset, in seconds, of the data-date
// timezone at midnight of dataDate (YYYY-MM-DD).
func DataDateTZOffset(dataDate string) (int, error) {
	loc, err := time.LoadLocation(DataDateTimezone)
	if err != nil {
		return 0, fmt.Errorf("load timezone %s: %w", DataDateTimezone, err)
	}
	t, err := time.ParseInLocation("2006-01-02", dataDate, loc)
	if err != nil {
		return 0, &core.ValidationError{Field: "data_date", Value: dataDate, Msg: "expected YYYY-MM-DD"}
	}
	_, offset := t.Zone()
	return offset, nil
}

// NewWindowParametersTask records start_date and end_date: end defaults to the
// execution date, start to end minus lookback. Both accept free-form overrides.
func NewWindowParametersTask(id string, lookback time.Duration, opts ...tasks.TaskOption) *tasks.FuncTask {
	fn := func(ctx context.Context, run *tasks.Run) error {
		end := run.ExecutionDate
		start := end.Add(-lookback)

		if _, err := SetParameter(ctx, run, ParamStartDate, start.Format(DateParameterFormat), FormatInputDate); err != nil {
			return err
		}
		if _, err := SetParameter(ctx, run, ParamEndDate, end.Format(DateParameterFormat), FormatInputDate); err != nil {
			return err
		}
		_, err := SetForceParameter(ctx, run)
		return err
	}
	opts = append([]tasks.TaskOption{tasks.WithDescription("Sets all accepted input parameters")}, opts...)
	return tasks.NewFuncTask(id, fn, opts...)
}
