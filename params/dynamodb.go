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

// dynamodb.go - Parameter store backed by the pipeline status table
package params

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoDBClient defines the DynamoDB operations used by the store.
type DynamoDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// DynamoStore keeps run parameters in the status table provisioned by the
// prerequisites stack (partition key "id", string).
type DynamoStore struct {
	client DynamoDBClient
	table  string
	now    func() time.Time
}

// NewDynamoStore creates a store for table from an SDK config.
func NewDynamoStore(cfg aws.Config, table string) *DynamoStore {
	return NewDynamoStoreWithClient(dynamodb.NewFromConfig(cfg), table)
}

// NewDynamoStoreWithClient creates a store with a custom client.
func NewDynamoStoreWithClient(client DynamoDBClient, table string) *DynamoStore {
	return &DynamoStore{client: client, table: table, now: time.Now}
}

func itemID(run RunKey, key string) string {
	return "param#" + run.DAGID + "#" + run.RunID + "#" + key
}

// Put implements Store. The conditional write keeps parameters write-once.
func (s *DynamoStore) Put(ctx context.Context, run RunKey, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("params: marshal %q: %w", key, err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item: map[string]dbtypes.AttributeValue{
			"id":         &dbtypes.AttributeValueMemberS{Value: itemID(run, key)},
			"dag_id":     &dbtypes.AttributeValueMemberS{Value: run.DAGID},
			"run_id":     &dbtypes.AttributeValueMemberS{Value: run.RunID},
			"key":        &dbtypes.AttributeValueMemberS{Value: key},
			"value":      &dbtypes.AttributeValueMemberS{Value: string(data)},
			"updated_at": &dbtypes.AttributeValueMemberS{Value: s.now().UTC().Format(time.RFC3339)},
		},
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	})
	if err != nil {
		var ccf *dbtypes.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return fmt.Errorf("%s %q: %w", run, key, ErrAlreadySet)
		}
		return fmt.Errorf("params: put %q: %w", key, err)
	}
	return nil
}

// Get implements Store.
func (s *DynamoStore) Get(ctx context.Context, run RunKey, key string) (any, bool, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.table),
		Key:            map[string]dbtypes.AttributeValue{"id": &dbtypes.AttributeValueMemberS{Value: itemID(run, key)}},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, false, fmt.Errorf("params: get %q: %w", key, err)
	}
	if out.Item == nil {
		return nil, false, nil
	}

	attr, ok := out.Item["value"].(*dbtypes.AttributeValueMemberS)
	if !ok {
		return nil, false, fmt.Errorf("params: invalid value attribute for %q", key)
	}
	var value any
	if err := json.Unmarshal([]byte(attr.Value), &value); err != nil {
		return nil, false, fmt.Errorf("params: unmarshal %q: %w", key, err)
	}
	return value, true, nil
}

// Delete implements Store.
func (s *DynamoStore) Delete(ctx context.Context, run RunKey, key string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.table),
		Key:       map[string]dbtypes.AttributeValue{"id": &dbtypes.AttributeValueMemberS{Value: itemID(run, key)}},
	})
	if err != nil {
		return fmt.Errorf("params: delete %q: %w", key, err)
	}
	return nil
}
