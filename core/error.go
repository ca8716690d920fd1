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

// Package core defines the error taxonomy shared by every pmetl package.
//
// Steps report failures through these types so callers can tell a deliberate
// skip from a real failure with errors.As.
package core

import (
	"errors"
	"fmt"
)

// ConfigurationError reports a missing or malformed required configuration key.
// It is fatal at startup.
type ConfigurationError struct {
	Key string // Dotted path of the offending key (e.g. "pipelines.daily_report")
	Msg string
}

func (e *ConfigurationError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("configuration: missing required key %q", e.Key)
	}
	return fmt.Sprintf("configuration: %s: %s", e.Key, e.Msg)
}

// ValidationError reports malformed input to a step (bad URL scheme, unparsable
// partition path, ...). It is fatal to that step.
type ValidationError struct {
	Field string
	Value string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("validation: %s: %s", e.Field, e.Msg)
	}
	return fmt.Sprintf("validation: %s [%s]: %s", e.Field, e.Value, e.Msg)
}

// NotFoundError reports an expected external resource or location that is absent.
type NotFoundError struct {
	Kind string // "stack", "resource", "location", ...
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.Name)
}

// SkipError is the explicit non-error early exit of a step. The executor reports
// the step as skipped rather than failed and does not fire the failure hook.
type SkipError struct {
	Reason string
}

func (e *SkipError) Error() string {
	return "skipped: " + e.Reason
}

// Skip returns a SkipError with the given reason.
func Skip(reason string) error {
	return &SkipError{Reason: reason}
}

// IsSkip reports whether err (or anything it wraps) is a SkipError.
func IsSkip(err error) bool {
	var skip *SkipError
	return errors.As(err, &skip)
}

// IsNotFound reports whether err wraps a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsValidation reports whether err wraps a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsConfiguration reports whether err wraps a ConfigurationError.
func IsConfiguration(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}
