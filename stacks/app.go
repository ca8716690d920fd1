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

package stacks

import (
	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/jsii-runtime-go"

	"github.com/aaronlmathis/pmetl/core"
	"github.com/aaronlmathis/pmetl/naming"
)

// AppInfo identifies the app and deployment the stacks belong to.
type AppInfo struct {
	Name       string
	Env        string
	Account    string
	Region     string
	Team       string
	Repository string
}

// Validate checks the fields every stack needs.
func (a AppInfo) Validate() error {
	for key, v := range map[string]string{"app_name": a.Name, "env_id": a.Env, "region": a.Region} {
		if v == "" {
			return &core.ConfigurationError{Key: key}
		}
	}
	return nil
}

// StackName returns the canonical stack name for suffix.
func (a AppInfo) StackName(suffix string) string {
	return naming.StackName(a.Name, a.Env, suffix)
}

func (a AppInfo) stackProps(description string) *awscdk.StackProps {
	props := &awscdk.StackProps{
		Description: jsii.String(description),
		Env: &awscdk.Environment{
			Region: jsii.String(a.Region),
		},
		Tags: &map[string]*string{
			"team":       jsii.String(a.Team),
			"repository": jsii.String(a.Repository),
			"env":        jsii.String(a.Env),
		},
	}
	if a.Account != "" {
		props.Env.Account = jsii.String(a.Account)
	}
	return props
}
