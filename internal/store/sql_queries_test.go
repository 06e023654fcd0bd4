// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Nadezhda Malikova

package store

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nmalikova/caseline/models"
)

func Test_buildUpsertRecordQuery_SQLContainsParts(t *testing.T) {
	ctx := context.Background()
	record := models.Record{"id": "C1", "status": "Open"}
	record.Touch(1700000000000)

	query, args, err := buildUpsertRecordQuery(ctx, "cases", "C1", `{"id":"C1"}`, record)
	require.NoError(t, err)

	q := strings.ToLower(query)

	require.Contains(t, q, "insert into records")
	require.Contains(t, q, "on conflict (collection, record_key) do update set")
	require.Contains(t, q, "body = excluded.body")
	require.Contains(t, q, "ts = excluded.ts")

	// placeholder format should be ? (SQLite)
	require.Contains(t, query, "?")
	require.NotContains(t, query, "$1")

	require.Len(t, args, 7)
	require.Equal(t, "cases", args[0])
	require.Equal(t, "C1", args[1])
	require.Equal(t, int64(1700000000000), args[6])
}

func Test_buildSelectCollectionQuery_NoFilter(t *testing.T) {
	ctx := context.Background()

	query, args, err := buildSelectCollectionQuery(ctx, "students", "", nil)
	require.NoError(t, err)

	q := strings.ToLower(query)

	require.Contains(t, q, "select body from records")
	require.Contains(t, q, "collection = ?")
	require.Contains(t, q, "deleted = ?")
	require.Contains(t, q, "order by record_key")
	require.NotContains(t, q, "json_extract")

	require.Len(t, args, 2)
	require.Equal(t, "students", args[0])
}

func Test_buildSelectCollectionQuery_FieldFilter(t *testing.T) {
	ctx := context.Background()

	query, args, err := buildSelectCollectionQuery(ctx, "cases", "status", "Open")
	require.NoError(t, err)

	q := strings.ToLower(query)

	require.Contains(t, q, "json_extract(body, ?) = ?")

	require.Len(t, args, 4)
	require.Equal(t, "$.status", args[2])
	require.Equal(t, "Open", args[3])
}

func Test_buildSelectMutationsQuery_FIFOOrder(t *testing.T) {
	ctx := context.Background()

	query, args, err := buildSelectMutationsQuery(ctx, false)
	require.NoError(t, err)

	q := strings.ToLower(query)

	require.Contains(t, q, "from mutation_queue")
	require.Contains(t, q, "order by id asc")
	require.Contains(t, q, "synced = ?")
	require.Contains(t, q, "failed = ?")

	require.Len(t, args, 2)
}

func Test_buildRewriteMutationKeyQuery_TargetsUnsyncedOnly(t *testing.T) {
	ctx := context.Background()

	query, args, err := buildRewriteMutationKeyQuery(ctx, "cases", "local_abc", "srv-9")
	require.NoError(t, err)

	q := strings.ToLower(query)

	require.Contains(t, q, "update mutation_queue")
	require.Contains(t, q, "set record_key = ?")
	require.Contains(t, q, "synced = ?")

	require.Contains(t, args, "local_abc")
	require.Contains(t, args, "srv-9")
}

func Test_buildUpsertSettingQuery_SQLContainsParts(t *testing.T) {
	ctx := context.Background()

	query, args, err := buildUpsertSettingQuery(ctx, models.Setting{
		Key:      models.LastSyncKey("cases"),
		Value:    "2026-08-31T10:00:00Z",
		Category: models.SettingCategorySync,
	})
	require.NoError(t, err)

	q := strings.ToLower(query)

	require.Contains(t, q, "insert into settings")
	require.Contains(t, q, "on conflict (key) do update set")
	require.Contains(t, q, "value = excluded.value")

	require.Len(t, args, 3)
	require.Equal(t, "lastSync_cases", args[0])
}
