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
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/aaronlmathis/pmetl/core"
)

// StorageError provides structured error information for object store operations.
type StorageError struct {
	Op  string // Operation that failed (e.g., "list_objects", "get_object", "presign")
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("s3 %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// S3Client defines the S3 operations used by Client.
type S3Client interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Presigner creates presigned requests.
type Presigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Client wraps S3 for prefix checks, object fetches and shareable links.
type Client struct {
	client    S3Client
	presigner Presigner
	now       func() time.Time
}

// NewClient creates a client from an SDK config.
func NewClient(cfg aws.Config, options ...AWSOption) *Client {
	opts := resolveOptions(options)
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.EndpointURL != "" {
			o.BaseEndpoint = aws.String(opts.EndpointURL)
		}
		o.UsePathStyle = opts.PathStyle
	})
	return &Client{
		client:    client,
		presigner: s3.NewPresignClient(client),
		now:       time.Now,
	}
}

// NewClientWithClient creates a client with custom implementations, primarily for tests.
func NewClientWithClient(client S3Client, presigner Presigner) *Client {
	return &Client{client: client, presigner: presigner, now: time.Now}
}

// SplitURL splits s3://bucket/key into its bucket and key.
func SplitURL(url string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(url, "s3://")
	if !ok {
		return "", "", &core.ValidationError{Field: "url", Value: url, Msg: "must start with s3://"}
	}
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", &core.ValidationError{Field: "url", Value: url, Msg: "missing bucket"}
	}
	return bucket, key, nil
}

// JoinURL builds s3://bucket/key.
func JoinURL(bucket, key string) string {
	return "s3://" + bucket + "/" + strings.TrimPrefix(key, "/")
}

// PrefixExists reports whether at least one object sits directly under prefix
// treated as a directory. Exactly one listing call is made.
func (c *Client) PrefixExists(ctx context.Context, bucket, prefix string) (bool, error) {
	dir := strings.TrimSuffix(prefix, "/") + "/"
	out, err := c.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:    aws.String(bucket),
		Prefix:    aws.String(dir),
		Delimiter: aws.String("/"),
		MaxKeys:   aws.Int32(1),
	})
	if err != nil {
		return false, &StorageError{Op: "list_objects", Err: err}
	}
	return len(out.Contents) > 0, nil
}

// CountObjects counts the objects whose key starts with prefix.
func (c *Client) CountObjects(ctx context.Context, bucket, prefix string) (int, error) {
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	}

	count := 0
	paginator := s3.NewListObjectsV2Paginator(c.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return 0, &StorageError{Op: "list_objects", Err: err}
		}
		for _, obj := range page.Contents {
			// directory markers are not files
			if strings.HasSuffix(aws.ToString(obj.Key), "/") {
				continue
			}
			count++
		}
	}
	return count, nil
}

// ObjectSize returns the content length of an object.
func (c *Client) ObjectSize(ctx context.Context, bucket, key string) (int64, error) {
	out, err := c.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return 0, &StorageError{Op: "head_object", Err: err}
	}
	return aws.ToInt64(out.ContentLength), nil
}

// Fetch reads an object fully into memory.
func (c *Client) Fetch(ctx context.Context, bucket, key string) ([]byte, error) {
	out, err := c.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, &StorageError{Op: "get_object", Err: err}
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, &StorageError{Op: "read_object", Err: err}
	}
	return data, nil
}

// MaxPresignTTL is the longest lifetime S3 accepts for a SigV4 presigned URL.
const MaxPresignTTL = 7 * 24 * time.Hour

// PresignGet returns a time-limited download link and its expiry. ttl is
// capped at MaxPresignTTL and the returned expiry reflects the cap.
func (c *Client) PresignGet(ctx context.Context, bucket, key string, ttl time.Duration) (string, time.Time, error) {
	if c.presigner == nil {
		return "", time.Time{}, &StorageError{Op: "presign", Err: errors.New("no presigner configured")}
	}
	if ttl <= 0 {
		return "", time.Time{}, &StorageError{Op: "presign", Err: fmt.Errorf("invalid link lifetime %s", ttl)}
	}
	if ttl > MaxPresignTTL {
		ttl = MaxPresignTTL
	}
	expires := c.now().Add(ttl)
	req, err := c.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", time.Time{}, &StorageError{Op: "presign", Err: err}
	}
	return req.URL, expires, nil
}
