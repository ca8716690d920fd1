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

// identity.go - Cloud identity sources and the process-wide write-once gate
package identity

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/ec2/imds"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// Identity is the cloud identity of the host running the pipelines.
type Identity struct {
	Region     string
	AccountID  string
	InstanceID string
}

// Source fetches the identity once.
type Source interface {
	Fetch(ctx context.Context) (Identity, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) (Identity, error)

// Fetch implements Source.
func (f SourceFunc) Fetch(ctx context.Context) (Identity, error) {
	return f(ctx)
}

// StaticSource returns a fixed identity (local and test deployments).
type StaticSource Identity

// Fetch implements Source.
func (s StaticSource) Fetch(context.Context) (Identity, error) {
	return Identity(s), nil
}

// IMDSClient is the part of the instance metadata client used here.
type IMDSClient interface {
	GetInstanceIdentityDocument(ctx context.Context, params *imds.GetInstanceIdentityDocumentInput, optFns ...func(*imds.Options)) (*imds.GetInstanceIdentityDocumentOutput, error)
}

// IMDSSource reads the EC2 instance identity document.
type IMDSSource struct {
	client IMDSClient
}

// NewIMDSSource creates a source with retries disabled: a host that cannot
// reach its metadata endpoint cannot run pipelines at all.
func NewIMDSSource() *IMDSSource {
	return &IMDSSource{client: imds.New(imds.Options{Retryer: aws.NopRetryer{}})}
}

// NewIMDSSourceWithClient creates a source with a custom client.
func NewIMDSSourceWithClient(client IMDSClient) *IMDSSource {
	return &IMDSSource{client: client}
}

// Fetch implements Source.
func (s *IMDSSource) Fetch(ctx context.Context) (Identity, error) {
	out, err := s.client.GetInstanceIdentityDocument(ctx, &imds.GetInstanceIdentityDocumentInput{})
	if err != nil {
		return Identity{}, fmt.Errorf("identity: instance identity document: %w", err)
	}
	return Identity{
		Region:     out.Region,
		AccountID:  out.AccountID,
		InstanceID: out.InstanceID,
	}, nil
}

// STSClient is the part of the STS client used here.
type STSClient interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// STSSource resolves the account through STS for hosts without instance
// metadata (containers, developer machines). The region comes from the SDK config.
type STSSource struct {
	client STSClient
	region string
}

// NewSTSSource creates a source from an SDK config.
func NewSTSSource(cfg aws.Config) *STSSource {
	return &STSSource{client: sts.NewFromConfig(cfg), region: cfg.Region}
}

// NewSTSSourceWithClient creates a source with a custom client.
func NewSTSSourceWithClient(client STSClient, region string) *STSSource {
	return &STSSource{client: client, region: region}
}

// Fetch implements Source.
func (s *STSSource) Fetch(ctx context.Context) (Identity, error) {
	out, err := s.client.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return Identity{}, fmt.Errorf("identity: get caller identity: %w", err)
	}
	return Identity{
		Region:    s.region,
		AccountID: aws.ToString(out.Account),
	}, nil
}

// Gate holds the identity for the process lifetime. The first Get performs the
// single fetch; its value or error is returned to every later caller.
type Gate struct {
	source Source
	once   sync.Once
	id     Identity
	err    error
}

// NewGate creates a gate over source.
func NewGate(source Source) *Gate {
	return &Gate{source: source}
}

// Get returns the cached identity, fetching it on first use.
func (g *Gate) Get(ctx context.Context) (Identity, error) {
	g.once.Do(func() {
		g.id, g.err = g.source.Fetch(ctx)
		if g.err != nil {
			slog.Error("cloud identity fetch failed", "error", g.err)
			return
		}
		slog.Debug("cloud identity resolved", "region", g.id.Region, "account", g.id.AccountID)
	})
	return g.id, g.err
}
