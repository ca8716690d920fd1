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
	"fmt"
	"strings"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsec2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsecs"
	"github.com/aws/aws-cdk-go/awscdk/v2/awslogs"
	"github.com/aws/constructs-go/constructs/v10"
	"github.com/aws/jsii-runtime-go"

	"github.com/aaronlmathis/pmetl/core"
)

// ServiceProps describes one container service run by a pipeline.
type ServiceProps struct {
	Name   string // container name and output prefix
	Image  string
	CPU    float64
	Memory float64
}

// PipelineStackProps configures a pipeline stack.
type PipelineStackProps struct {
	App      AppInfo
	Pipeline string
	Prereqs  *PrereqsStack
	Services []ServiceProps
}

// PipelineStack holds the resources of one pipeline's container tasks.
type PipelineStack struct {
	awscdk.Stack

	LogGroup        awslogs.LogGroup
	SecurityGroup   awsec2.SecurityGroup
	TaskDefinitions map[string]awsecs.FargateTaskDefinition
}

// NewPipelineStack defines <app>-<env>-<pipeline>. It needs a prerequisites
// stack with a VPC.
func NewPipelineStack(scope constructs.Construct, props PipelineStackProps) (*PipelineStack, error) {
	app := props.App
	if err := app.Validate(); err != nil {
		return nil, err
	}
	if props.Pipeline == "" {
		return nil, &core.ConfigurationError{Key: "pipeline"}
	}
	if props.Prereqs == nil || props.Prereqs.Vpc == nil {
		return nil, &core.ConfigurationError{Key: "vpc_id", Msg: "pipeline stacks need the prerequisites VPC"}
	}

	stack := awscdk.NewStack(scope, jsii.String(app.StackName(props.Pipeline)),
		app.stackProps(fmt.Sprintf("%s stack", props.Pipeline)))
	stack.AddDependency(props.Prereqs.Stack, jsii.String("cluster and status table"))

	s := &PipelineStack{Stack: stack, TaskDefinitions: make(map[string]awsecs.FargateTaskDefinition)}

	s.LogGroup = awslogs.NewLogGroup(stack, jsii.String("LogGroup"), &awslogs.LogGroupProps{
		LogGroupName:  jsii.String(LogGroupName(app.Name, app.Env, props.Pipeline)),
		Retention:     awslogs.RetentionDays_ONE_MONTH,
		RemovalPolicy: awscdk.RemovalPolicy_DESTROY,
	})
	s.SecurityGroup = awsec2.NewSecurityGroup(stack, jsii.String("SecurityGroup"), &awsec2.SecurityGroupProps{
		Vpc:              props.Prereqs.Vpc,
		AllowAllOutbound: jsii.Bool(true),
		Description:      jsii.String(props.Pipeline + " ecs tasks"),
	})

	for _, svc := range props.Services {
		if svc.Name == "" || svc.Image == "" {
			return nil, &core.ConfigurationError{Key: "services", Msg: "name and image are required"}
		}
		td := awsecs.NewFargateTaskDefinition(stack, jsii.String(svc.Name+"TaskDefinition"), &awsecs.FargateTaskDefinitionProps{
			Cpu:            jsii.Number(orDefault(svc.CPU, 512)),
			MemoryLimitMiB: jsii.Number(orDefault(svc.Memory, 1024)),
		})
		td.AddContainer(jsii.String(svc.Name), &awsecs.ContainerDefinitionOptions{
			Image: awsecs.ContainerImage_FromRegistry(jsii.String(svc.Image), nil),
			Logging: awsecs.LogDrivers_AwsLogs(&awsecs.AwsLogDriverProps{
				LogGroup:     s.LogGroup,
				StreamPrefix: jsii.String("ecs/" + svc.Name),
			}),
		})
		props.Prereqs.StatusTable.GrantReadWriteData(td.TaskRole())
		props.Prereqs.RawBucket.GrantReadWrite(td.TaskRole(), nil)
		props.Prereqs.ProcessedBucket.GrantReadWrite(td.TaskRole(), nil)
		s.TaskDefinitions[svc.Name] = td

		awscdk.NewCfnOutput(stack, jsii.String(TaskDefinitionOutput(svc.Name)), &awscdk.CfnOutputProps{
			Value: td.TaskDefinitionArn(),
		})
	}

	awscdk.NewCfnOutput(stack, jsii.String(OutputLogGroupName), &awscdk.CfnOutputProps{
		Value: s.LogGroup.LogGroupName(),
	})
	awscdk.NewCfnOutput(stack, jsii.String(OutputSecurityGroupID), &awscdk.CfnOutputProps{
		Value: s.SecurityGroup.SecurityGroupId(),
	})
	return s, nil
}

// TaskDefinitionOutput is the output holding a service's task definition ARN,
// e.g. "report" -> "ReportDefinitionArn".
func TaskDefinitionOutput(service string) string {
	if service == "" {
		return ""
	}
	return fmt.Sprintf(OutputTaskDefinitionARNFm, strings.ToUpper(service[:1])+service[1:])
}

func orDefault(v, def float64) float64 {
	if v <= 0 {
		return def
	}
	return v
}
