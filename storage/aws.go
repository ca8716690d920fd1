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

package storage

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
)

// AWSOptions configures how SDK configuration is resolved.
type AWSOptions struct {
	Region      string          // AWS region
	Profile     string          // shared config profile
	Credentials aws.Credentials // explicit credentials, overrides the default chain
	EndpointURL string          // custom S3 endpoint (S3-compatible services, local stacks)
	PathStyle   bool            // path-style addressing
}

// AWSOption represents a configuration function for AWSOptions.
type AWSOption func(*AWSOptions)

func WithRegion(region string) AWSOption {
	return func(o *AWSOptions) {
		o.Region = region
	}
}

func WithProfile(profile string) AWSOption {
	return func(o *AWSOptions) {
		o.Profile = profile
	}
}

func WithCredentials(creds aws.Credentials) AWSOption {
	return func(o *AWSOptions) {
		o.Credentials = creds
	}
}

func WithEndpoint(endpoint string) AWSOption {
	return func(o *AWSOptions) {
		o.EndpointURL = endpoint
	}
}

func WithPathStyle(pathStyle bool) AWSOption {
	return func(o *AWSOptions) {
		o.PathStyle = pathStyle
	}
}

func resolveOptions(options []AWSOption) AWSOptions {
	var opts AWSOptions
	for _, option := range options {
		option(&opts)
	}
	return opts
}

// LoadAWSConfig resolves SDK configuration from the default chain, narrowed by options.
func LoadAWSConfig(ctx context.Context, options ...AWSOption) (aws.Config, error) {
	opts := resolveOptions(options)

	var loadOpts []func(*config.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(opts.Region))
	}
	if opts.Profile != "" {
		loadOpts = append(loadOpts, config.WithSharedConfigProfile(opts.Profile))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return aws.Config{}, &StorageError{Op: "load_config", Err: err}
	}

	if opts.Credentials.AccessKeyID != "" {
		cfg.Credentials = aws.NewCredentialsCache(
			credentials.NewStaticCredentialsProvider(
				opts.Credentials.AccessKeyID,
				opts.Credentials.SecretAccessKey,
				opts.Credentials.SessionToken,
			),
		)
	}

	return cfg, nil
}
