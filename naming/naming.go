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

// naming.go - Deployment-scoped stack and resource name resolution
package naming

import (
	"sort"
	"strings"
	"unicode"

	"github.com/aaronlmathis/pmetl/core"
)

const (
	// ProductDomain and ProductName prefix every workflow identifier.
	ProductDomain = "etl"
	ProductName   = "pm"

	// SharedStackBase is the stack holding resources shared by all partner pipelines.
	SharedStackBase = "etl-pm-shared"

	// Logical suffixes of the per-app stacks.
	PrereqsSuffix = "prereqs"
)

// StackName returns the canonical stack name app-env-suffix.
func StackName(app, env, suffix string) string {
	return app + "-" + env + "-" + suffix
}

// SharedStackName returns the name of the shared resources stack for env.
func SharedStackName(env string) string {
	return SharedStackBase + "-" + env
}

// PrereqsStackName returns the name of the app's prerequisites stack for env.
func PrereqsStackName(app, env string) string {
	return StackName(app, env, PrereqsSuffix)
}

// WorkflowID composes the orchestrator primary key of a pipeline workflow:
// etl-pm-<partner>-<pipeline>-v<major>-<env>. Only the major part of the
// deployment version takes part, so patch deployments keep run history.
func WorkflowID(partner, pipeline, deploymentVersion, env string) (string, error) {
	for field, v := range map[string]string{
		"partner":            partner,
		"pipeline":           pipeline,
		"deployment_version": deploymentVersion,
		"env_id":             env,
	} {
		if strings.TrimSpace(v) == "" {
			return "", &core.ValidationError{Field: field, Msg: "must not be empty"}
		}
	}

	major := strings.SplitN(deploymentVersion, ".", 2)[0]
	return strings.Join([]string{
		ProductDomain,
		ProductName,
		partner,
		pipeline,
		"v" + major,
		env,
	}, "-"), nil
}

// RegionDesignator shortens a region to the first letter of each part ("us-east-1" -> "ue1").
func RegionDesignator(region string) string {
	var b strings.Builder
	for _, part := range strings.Split(region, "-") {
		if part != "" {
			b.WriteByte(part[0])
		}
	}
	return b.String()
}

// SafeAppName strips an app name down to characters accepted in table names.
func SafeAppName(app string) string {
	return strings.Map(func(r rune) rune {
		if r == '-' || r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return r
		}
		return -1
	}, app)
}

// ResourceTable maps stack name -> logical resource name -> physical identifier.
// It is populated out of band by the infrastructure deployment and only read here.
type ResourceTable map[string]map[string]string

// Lookup resolves a physical identifier. A missing stack or key is a hard
// failure: a misconfigured deployment must not run with a guessed name.
func (t ResourceTable) Lookup(stack, key string) (string, error) {
	resources, ok := t[stack]
	if !ok {
		return "", &core.NotFoundError{Kind: "stack", Name: stack}
	}
	value, ok := resources[key]
	if !ok {
		return "", &core.NotFoundError{Kind: "resource", Name: stack + "/" + key}
	}
	return value, nil
}

// Stacks returns the stack names present in the table, sorted.
func (t ResourceTable) Stacks() []string {
	names := make([]string, 0, len(t))
	for name := range t {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone returns a deep copy of the table.
func (t ResourceTable) Clone() ResourceTable {
	out := make(ResourceTable, len(t))
	for stack, resources := range t {
		inner := make(map[string]string, len(resources))
		for k, v := range resources {
			inner[k] = v
		}
		out[stack] = inner
	}
	return out
}
