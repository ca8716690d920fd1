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

// provider.go - Pipeline view over environment configuration and cloud identity
package envctx

import (
	"context"
	"fmt"
	"strings"

	"github.com/aaronlmathis/pmetl/core"
	"github.com/aaronlmathis/pmetl/envconfig"
	"github.com/aaronlmathis/pmetl/identity"
	"github.com/aaronlmathis/pmetl/naming"
)

// Provider is a read-only view of one pipeline's environment: its configuration,
// the cloud identity and the names of the stacks it reads resources from.
type Provider struct {
	pipelineName string
	appName      string
	env          envconfig.Environment
	pipeline     envconfig.PipelineConfig
	identity     identity.Identity

	sharedStack  string
	prereqsStack string
	mainStack    string // empty when the pipeline has no dedicated stack
}

// New validates env for pipelineName and resolves the cloud identity. An
// identity embedded in env wins; otherwise gate performs the one fetch.
func New(ctx context.Context, pipelineName, appName string, env envconfig.Environment, gate *identity.Gate) (*Provider, error) {
	if err := env.Validate(); err != nil {
		return nil, err
	}
	pipeline, err := env.Pipeline(pipelineName)
	if err != nil {
		return nil, err
	}
	if appName == "" {
		return nil, &core.ConfigurationError{Key: "app_name"}
	}

	var id identity.Identity
	switch {
	case env.AWSEnv != nil:
		id = identity.Identity{Region: env.AWSEnv.Region, AccountID: env.AWSEnv.AccountID}
	case gate != nil:
		id, err = gate.Get(ctx)
		if err != nil {
			return nil, fmt.Errorf("resolve cloud identity: %w", err)
		}
	default:
		return nil, &core.ConfigurationError{Key: "_aws_env", Msg: "no embedded identity and no identity source"}
	}

	p := &Provider{
		pipelineName: pipelineName,
		appName:      appName,
		env:          env,
		pipeline:     pipeline,
		identity:     id,
		sharedStack:  naming.SharedStackName(env.EnvID),
		prereqsStack: naming.PrereqsStackName(appName, env.EnvID),
	}
	if pipeline.DAG.UseCloudFormationStack {
		p.mainStack = naming.StackName(appName, env.EnvID, pipelineName)
	}
	return p, nil
}

// Resource looks up a physical resource name in stack.
func (p *Provider) Resource(stack, key string) (string, error) {
	return p.env.AWSResources.Lookup(stack, key)
}

// Shared looks up a resource of the shared stack.
func (p *Provider) Shared(key string) (string, error) {
	return p.Resource(p.sharedStack, key)
}

// Prereqs looks up a resource of the prerequisites stack.
func (p *Provider) Prereqs(key string) (string, error) {
	return p.Resource(p.prereqsStack, key)
}

// Main looks up a resource of the pipeline's own stack.
func (p *Provider) Main(key string) (string, error) {
	if p.mainStack == "" {
		return "", &core.ConfigurationError{
			Key: "pipelines." + p.pipelineName + ".dag.use_cloudformation_stack",
			Msg: "pipeline has no dedicated stack",
		}
	}
	return p.Resource(p.mainStack, key)
}

// TopicARN builds the ARN of a topic owned by the current account and region.
func (p *Provider) TopicARN(topicName string) string {
	return strings.Join([]string{"arn:aws:sns", p.identity.Region, p.identity.AccountID, topicName}, ":")
}

// Queue is the worker queue runs are routed to.
func (p *Provider) Queue() string {
	return p.env.ClusterID + "." + p.env.EnvID
}

func (p *Provider) PipelineName() string               { return p.pipelineName }
func (p *Provider) AppName() string                    { return p.appName }
func (p *Provider) EnvID() string                      { return p.env.EnvID }
func (p *Provider) Env() envconfig.Environment         { return p.env }
func (p *Provider) Pipeline() envconfig.PipelineConfig { return p.pipeline }
func (p *Provider) Identity() identity.Identity        { return p.identity }
func (p *Provider) Region() string                     { return p.identity.Region }
func (p *Provider) AccountID() string                  { return p.identity.AccountID }
func (p *Provider) RegionDesignator() string           { return naming.RegionDesignator(p.identity.Region) }
func (p *Provider) AssetsLocation() string             { return p.env.AssetsLocation }
func (p *Provider) ConnID() string                     { return p.env.ConnID }
func (p *Provider) SharedStack() string                { return p.sharedStack }
func (p *Provider) PrereqsStack() string               { return p.prereqsStack }

// MainStack returns the pipeline stack name and whether the pipeline has one.
func (p *Provider) MainStack() (string, bool) {
	return p.mainStack, p.mainStack != ""
}
