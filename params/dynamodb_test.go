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

package params

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockDynamoDBClient keeps items in memory and honours attribute_not_exists(id).
type mockDynamoDBClient struct {
	items  map[string]map[string]dbtypes.AttributeValue
	putErr error
	puts   []*dynamodb.PutItemInput
}

func newMockDynamoDBClient() *mockDynamoDBClient {
	return &mockDynamoDBClient{items: make(map[string]map[string]dbtypes.AttributeValue)}
}

func (m *mockDynamoDBClient) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	m.puts = append(m.puts, params)
	if m.putErr != nil {
		return nil, m.putErr
	}
	id := params.Item["id"].(*dbtypes.AttributeValueMemberS).Value
	if _, exists := m.items[id]; exists && aws.ToString(params.ConditionExpression) != "" {
		return nil, &dbtypes.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
	}
	m.items[id] = params.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (m *mockDynamoDBClient) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	id := params.Key["id"].(*dbtypes.AttributeValueMemberS).Value
	return &dynamodb.GetItemOutput{Item: m.items[id]}, nil
}

func (m *mockDynamoDBClient) DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	id := params.Key["id"].(*dbtypes.AttributeValueMemberS).Value
	delete(m.items, id)
	return &dynamodb.DeleteItemOutput{}, nil
}

func TestDynamoStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	client := newMockDynamoDBClient()
	s := NewDynamoStoreWithClient(client, "etl-pm-pipeline-youtube-status-table")
	s.now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }
	run := RunKey{DAGID: "etl-pm-youtube-daily_report-v1-dev", RunID: "scheduled__2024-03-01"}

	require.NoError(t, s.Put(ctx, run, "end_date", "2024-03-01T00:00:00"))

	require.Len(t, client.puts, 1)
	put := client.puts[0]
	assert.Equal(t, "etl-pm-pipeline-youtube-status-table", aws.ToString(put.TableName))
	assert.Equal(t, "param#etl-pm-youtube-daily_report-v1-dev#scheduled__2024-03-01#end_date",
		put.Item["id"].(*dbtypes.AttributeValueMemberS).Value)
	assert.Equal(t, "2024-03-01T12:00:00Z", put.Item["updated_at"].(*dbtypes.AttributeValueMemberS).Value)

	v, ok, err := s.Get(ctx, run, "end_date")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "2024-03-01T00:00:00", v)

	_, ok, err = s.Get(ctx, run, "start_date")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDynamoStoreWriteOnce(t *testing.T) {
	ctx := context.Background()
	s := NewDynamoStoreWithClient(newMockDynamoDBClient(), "status")
	run := RunKey{DAGID: "d", RunID: "r"}

	require.NoError(t, s.Put(ctx, run, "jira_issue", "WGP-1"))
	err := s.Put(ctx, run, "jira_issue", "WGP-2")
	assert.ErrorIs(t, err, ErrAlreadySet)
}

func TestDynamoStorePutError(t *testing.T) {
	client := newMockDynamoDBClient()
	client.putErr = errors.New("throttled")
	s := NewDynamoStoreWithClient(client, "status")

	err := s.Put(context.Background(), RunKey{DAGID: "d", RunID: "r"}, "k", "v")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "throttled")
	assert.NotErrorIs(t, err, ErrAlreadySet)
}

func TestDynamoStoreDeleteAllowsRewrite(t *testing.T) {
	ctx := context.Background()
	client := newMockDynamoDBClient()
	s := NewDynamoStoreWithClient(client, "status")
	run := RunKey{DAGID: "d", RunID: "r"}

	require.NoError(t, s.Put(ctx, run, "mtr_ticket.jira_issue", "WGP-1"))
	require.NoError(t, s.Delete(ctx, run, "mtr_ticket.jira_issue"))
	assert.Empty(t, client.items)

	require.NoError(t, s.Put(ctx, run, "mtr_ticket.jira_issue", "WGP-2"))
	v, ok, err := s.Get(ctx, run, "mtr_ticket.jira_issue")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "WGP-2", v)
}
