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
	"github.com/aws/aws-cdk-go/awscdk/v2/awsdynamodb"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsec2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsecs"
	"github.com/aws/aws-cdk-go/awscdk/v2/awss3"
	"github.com/aws/aws-cdk-go/awscdk/v2/awssns"
	"github.com/aws/constructs-go/constructs/v10"
	"github.com/aws/jsii-runtime-go"

	"github.com/aaronlmathis/pmetl/naming"
)

// PrereqsStackProps configures the prerequisites stack.
type PrereqsStackProps struct {
	App   AppInfo
	VpcID string
}

// PrereqsStack holds the resources shared by every pipeline of the app.
type PrereqsStack struct {
	awscdk.Stack

	RawBucket         awss3.IBucket
	DiscrepancyBucket awss3.IBucket
	ProcessedBucket   awss3.IBucket
	LoggingBucket     awss3.IBucket
	TransferBucket    awss3.IBucket
	AlarmsTopic       awssns.ITopic
	NotificationTopic awssns.ITopic
	StatusTable       awsdynamodb.Table
	Vpc               awsec2.IVpc
	Cluster           awsecs.Cluster
}

// NewPrereqsStack defines <app>-<env>-prereqs.
func NewPrereqsStack(scope constructs.Construct, props PrereqsStackProps) (*PrereqsStack, error) {
	app := props.App
	if err := app.Validate(); err != nil {
		return nil, err
	}

	stack := awscdk.NewStack(scope, jsii.String(naming.PrereqsStackName(app.Name, app.Env)),
		app.stackProps("PM pipeline "+app.Name+": prerequisite resources."))
	s := &PrereqsStack{Stack: stack}

	importBucket := func(id, export string) awss3.IBucket {
		return awss3.Bucket_FromBucketName(stack, jsii.String(id),
			awscdk.Fn_ImportValue(jsii.String(SharedExport(app.Env, export))))
	}
	s.RawBucket = importBucket("DataLakeRawBucket", "DataLakeRawBucketName")
	s.DiscrepancyBucket = importBucket("DataLakeDiscrepancyBucket", "DataLakeDiscrepancyBucketName")
	s.ProcessedBucket = importBucket("DataLakeProcessedBucket", "PipelineProcessedBucketName")

	logging := LoggingBucketName(app.Region, app.Env)
	s.LoggingBucket = awss3.Bucket_FromBucketName(stack, jsii.String(logging), jsii.String(logging))
	transfer := TransferBucketName(app.Env)
	s.TransferBucket = awss3.Bucket_FromBucketName(stack, jsii.String(transfer), jsii.String(transfer))

	s.AlarmsTopic = awssns.Topic_FromTopicArn(stack, jsii.String("AlarmsTopic"),
		awscdk.Fn_ImportValue(jsii.String(SharedExport(app.Env, "AlarmsTopicArn"))))
	s.NotificationTopic = awssns.Topic_FromTopicArn(stack, jsii.String("NotificationsTopic"),
		awscdk.Fn_ImportValue(jsii.String(SharedExport(app.Env, "NotificationsTopicArn"))))

	s.StatusTable = awsdynamodb.NewTable(stack, jsii.String("StatusTable"), &awsdynamodb.TableProps{
		TableName: jsii.String(StatusTableName(app.Name)),
		PartitionKey: &awsdynamodb.Attribute{
			Name: jsii.String("id"),
			Type: awsdynamodb.AttributeType_STRING,
		},
		BillingMode:   awsdynamodb.BillingMode_PAY_PER_REQUEST,
		RemovalPolicy: awscdk.RemovalPolicy_DESTROY,
	})

	awscdk.NewCfnOutput(stack, jsii.String(OutputStatusTableName), &awscdk.CfnOutputProps{
		Value:       s.StatusTable.TableName(),
		Description: jsii.String("Name of the DynamoDB table to track execution processes, triggering DAGs, save states, etc."),
	})
	awscdk.NewCfnOutput(stack, jsii.String(OutputTransferBucket), &awscdk.CfnOutputProps{
		Value:       s.TransferBucket.BucketName(),
		Description: jsii.String("Name of the transfer bucket"),
	})

	if props.VpcID != "" {
		s.Vpc = awsec2.Vpc_FromLookup(stack, jsii.String("Vpc"), &awsec2.VpcLookupOptions{
			VpcId: jsii.String(props.VpcID),
		})
		s.Cluster = awsecs.NewCluster(stack, jsii.String("Cluster"), &awsecs.ClusterProps{
			ClusterName: jsii.String(naming.SafeAppName(app.Name) + "-" + app.Env),
			Vpc:         s.Vpc,
		})
		subnets := s.Vpc.SelectSubnets(&awsec2.SubnetSelection{
			SubnetType: awsec2.SubnetType_PRIVATE_WITH_EGRESS,
		})

		awscdk.NewCfnOutput(stack, jsii.String(OutputECSClusterName), &awscdk.CfnOutputProps{
			Value: s.Cluster.ClusterName(),
		})
		awscdk.NewCfnOutput(stack, jsii.String(OutputPrivateSubnetIDs), &awscdk.CfnOutputProps{
			Value: awscdk.Fn_Join(jsii.String(","), subnets.SubnetIds),
		})
	}

	return s, nil
}
