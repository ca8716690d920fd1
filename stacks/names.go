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

// Package stacks defines the infrastructure stacks of a partner pipeline app
// with the AWS CDK.
package stacks

import (
	"github.com/aaronlmathis/pmetl/naming"
)

// Outputs read back by the pipelines through the resource table.
const (
	OutputStatusTableName     = "StatusTableName"
	OutputTransferBucket      = "S3TransferBucket"
	OutputECSClusterName      = "ECSClusterName"
	OutputPrivateSubnetIDs    = "VPCPrivateSubnetIds"
	OutputLogGroupName        = "LogGroupName"
	OutputSecurityGroupID     = "SecurityGroupId"
	OutputTaskDefinitionARNFm = "%sDefinitionArn"
)

// SharedExport returns the name of an export of the shared stack.
func SharedExport(env, name string) string {
	return naming.SharedStackName(env) + ":" + name
}

// StatusTableName is the DynamoDB status table of an app.
func StatusTableName(app string) string {
	return naming.SafeAppName(app) + "-status-table"
}

// LoggingBucketName is the pipeline logging bucket of a region and env.
func LoggingBucketName(region, env string) string {
	return "iaspl-pipeline-logging-" + naming.RegionDesignator(region) + "-de-" + env
}

// TransferBucketName is the transfer bucket of env.
func TransferBucketName(env string) string {
	return "ias-transfer-" + env
}

// LogGroupName is the log group of a pipeline's container tasks.
func LogGroupName(app, env, pipeline string) string {
	return "/" + app + "/" + env + "/" + pipeline
}
