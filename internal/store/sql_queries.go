// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Nadezhda Malikova

package store

import (
	"context"

	sq "github.com/Masterminds/squirrel"

	"github.com/nmalikova/caseline/models"
)

var recordColumns = []string{"collection", "record_key", "body", "local", "deleted", "deleted_at", "ts"}

var mutationColumns = []string{"id", "entity", "record_key", "action", "payload", "ts", "synced", "failed", "fail_reason"}

var conflictColumns = []string{"id", "entity", "record_key", "local", "remote", "ts", "resolved"}

// buildUpsertRecordQuery builds the INSERT .. ON CONFLICT upsert for one
// record row. body is the JSON-encoded record including engine metadata;
// the mirrored columns exist so list queries can filter without decoding.
func buildUpsertRecordQuery(ctx context.Context, collection, key, body string, record models.Record) (string, []any, error) {
	var deletedAt any
	if record.Deleted() {
		deletedAt = record[models.FieldDeletedAt]
	}

	return sq.Insert("records").
		Columns(recordColumns...).
		Values(collection, key, body, record.IsLocal(), record.Deleted(), deletedAt, record.Timestamp()).
		Suffix(`ON CONFLICT (collection, record_key) DO UPDATE SET
			body = excluded.body,
			local = excluded.local,
			deleted = excluded.deleted,
			deleted_at = excluded.deleted_at,
			ts = excluded.ts`).
		ToSql()
}

func buildGetRecordQuery(ctx context.Context, collection, key string) (string, []any, error) {
	return sq.Select("body").
		From("records").
		Where(sq.Eq{"collection": collection, "record_key": key}).
		ToSql()
}

// buildSelectCollectionQuery builds the list query for a collection,
// excluding soft-deleted rows. When field is non-empty an additional
// json_extract predicate narrows the result to rows whose top-level body
// field equals value.
func buildSelectCollectionQuery(ctx context.Context, collection, field string, value any) (string, []any, error) {
	builder := sq.Select("body").
		From("records").
		Where(sq.Eq{"collection": collection, "deleted": false}).
		OrderBy("record_key")

	if field != "" {
		builder = builder.Where(sq.Expr("json_extract(body, ?) = ?", "$."+field, value))
	}

	return builder.ToSql()
}

func buildDeleteRecordQuery(ctx context.Context, collection, key string) (string, []any, error) {
	return sq.Delete("records").
		Where(sq.Eq{"collection": collection, "record_key": key}).
		ToSql()
}

func buildClearCollectionQuery(ctx context.Context, collection string) (string, []any, error) {
	return sq.Delete("records").
		Where(sq.Eq{"collection": collection}).
		ToSql()
}

func buildCountRecordsQuery(ctx context.Context, collection string) (string, []any, error) {
	return sq.Select("COUNT(*)").
		From("records").
		Where(sq.Eq{"collection": collection, "deleted": false}).
		ToSql()
}

func buildInsertMutationQuery(ctx context.Context, mutation models.Mutation, payload string) (string, []any, error) {
	return sq.Insert("mutation_queue").
		Columns("entity", "record_key", "action", "payload", "ts", "synced", "failed", "fail_reason").
		Values(mutation.Entity, mutation.RecordKey, string(mutation.Action), payload, mutation.Timestamp, false, false, "").
		ToSql()
}

// buildSelectMutationsQuery selects queue entries in FIFO order. The id
// ordering is the queue's ordering guarantee.
func buildSelectMutationsQuery(ctx context.Context, failed bool) (string, []any, error) {
	return sq.Select(mutationColumns...).
		From("mutation_queue").
		Where(sq.Eq{"synced": false, "failed": failed}).
		OrderBy("id ASC").
		ToSql()
}

func buildRewriteMutationKeyQuery(ctx context.Context, entity, oldKey, newKey string) (string, []any, error) {
	return sq.Update("mutation_queue").
		Set("record_key", newKey).
		Where(sq.Eq{"entity": entity, "record_key": oldKey, "synced": false}).
		ToSql()
}

func buildInsertConflictQuery(ctx context.Context, conflict models.Conflict, local, remote string) (string, []any, error) {
	return sq.Insert("conflicts").
		Columns("entity", "record_key", "local", "remote", "ts", "resolved").
		Values(conflict.Entity, conflict.RecordKey, local, remote, conflict.Timestamp, false).
		ToSql()
}

func buildSelectConflictsQuery(ctx context.Context) (string, []any, error) {
	return sq.Select(conflictColumns...).
		From("conflicts").
		OrderBy("resolved ASC", "id DESC").
		ToSql()
}

func buildUpsertSettingQuery(ctx context.Context, setting models.Setting) (string, []any, error) {
	return sq.Insert("settings").
		Columns("key", "value", "category").
		Values(setting.Key, setting.Value, setting.Category).
		Suffix(`ON CONFLICT (key) DO UPDATE SET
			value = excluded.value,
			category = excluded.category`).
		ToSql()
}
