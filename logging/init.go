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

// Package logging configures the process-wide slog logger.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
)

const (
	JSON = "json"
	Text = "text"
	Tint = "tint"
)

// NewHandler builds a handler of the given type writing to w.
func NewHandler(w io.Writer, loggingType, logLevelName string) (slog.Handler, error) {
	var logLevel slog.Level
	if err := logLevel.UnmarshalText([]byte(logLevelName)); err != nil {
		return nil, fmt.Errorf("could not parse log level: %w", err)
	}

	opts := slog.HandlerOptions{Level: logLevel}
	switch loggingType {
	case JSON:
		return slog.NewJSONHandler(w, &opts), nil
	case Text:
		return slog.NewTextHandler(w, &opts), nil
	case Tint:
		return tint.NewHandler(w, &tint.Options{Level: logLevel, TimeFormat: "15:04:05.000"}), nil
	}
	return nil, fmt.Errorf("unknown logging type: %s", loggingType)
}

// Initialize installs the default logger. Logs go to stderr so command
// output on stdout stays parseable.
func Initialize(loggingType, logLevelName string) error {
	handler, err := NewHandler(os.Stderr, loggingType, logLevelName)
	if err != nil {
		return err
	}
	slog.SetDefault(slog.New(handler))
	slog.Debug("logging initialized", "type", loggingType, "level", logLevelName)
	return nil
}
