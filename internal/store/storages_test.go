// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Nadezhda Malikova

package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nmalikova/caseline/internal/config"
	"github.com/nmalikova/caseline/internal/logger"
	"github.com/nmalikova/caseline/models"
)

// тесты на реальном SQLite-файле, репозитории без моков

func newFileStorages(t *testing.T, dsn string) *Storages {
	t.Helper()

	storages, err := NewStorages(config.ClientStorage{
		DB: config.ClientDB{DSN: dsn},
	}, logger.Nop())
	require.NoError(t, err)

	return storages
}

func tempDSN(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "caseline.db")
}

func TestStorages_SurvivesReopen(t *testing.T) {
	dsn := tempDSN(t)
	ctx := testContext()

	storages := newFileStorages(t, dsn)
	require.NoError(t, storages.Records.Save(ctx, "cases", models.Record{
		"id": "C1", "status": "Open", "_timestamp": int64(1700000000000),
	}))

	// повторное открытие: миграции идемпотентны, данные на месте
	reopened := newFileStorages(t, dsn)
	record, err := reopened.Records.Get(ctx, "cases", "C1")

	require.NoError(t, err)
	assert.Equal(t, "Open", record["status"])
	assert.Equal(t, int64(1700000000000), record.Timestamp())
}

func TestStorages_RecordLifecycle(t *testing.T) {
	storages := newFileStorages(t, tempDSN(t))
	ctx := testContext()

	require.NoError(t, storages.Records.SaveAll(ctx, "cases", []models.Record{
		{"id": "C1", "status": "Open"},
		{"id": "C2", "status": "Closed"},
		{"id": "C3", "status": "Open"},
	}))

	all, err := storages.Records.GetAll(ctx, "cases")
	require.NoError(t, err)
	require.Len(t, all, 3)

	open, err := storages.Records.GetAllBy(ctx, "cases", "status", "Open")
	require.NoError(t, err)
	require.Len(t, open, 2)

	// мягкое удаление прячет запись из списков, но Get её ещё видит
	tombstone, err := storages.Records.SoftDelete(ctx, "cases", "C1", 1700000000000)
	require.NoError(t, err)
	assert.True(t, tombstone.Deleted())

	all, err = storages.Records.GetAll(ctx, "cases")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	hidden, err := storages.Records.Get(ctx, "cases", "C1")
	require.NoError(t, err)
	assert.True(t, hidden.Deleted())

	count, err := storages.Records.Count(ctx, "cases")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.NoError(t, storages.Records.Delete(ctx, "cases", "C1"))
	_, err = storages.Records.Get(ctx, "cases", "C1")
	assert.ErrorIs(t, err, ErrRecordNotFound)

	require.NoError(t, storages.Records.Clear(ctx, "cases"))
	count, err = storages.Records.Count(ctx, "cases")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestStorages_RenameClearsLocalFlag(t *testing.T) {
	storages := newFileStorages(t, tempDSN(t))
	ctx := testContext()

	record := models.Record{"status": "Open"}
	record.MarkLocal("local_018f")
	require.NoError(t, storages.Records.Save(ctx, "cases", record))

	require.NoError(t, storages.Records.Rename(ctx, "cases", "local_018f", "srv-42"))

	_, err := storages.Records.Get(ctx, "cases", "local_018f")
	assert.ErrorIs(t, err, ErrRecordNotFound)

	renamed, err := storages.Records.Get(ctx, "cases", "srv-42")
	require.NoError(t, err)
	key, _ := renamed.Key()
	assert.Equal(t, "srv-42", key)
	assert.False(t, renamed.IsLocal())
}

func TestStorages_MutationQueueFIFO(t *testing.T) {
	storages := newFileStorages(t, tempDSN(t))
	ctx := testContext()

	for i, key := range []string{"C1", "C2", "C3"} {
		_, err := storages.Mutations.Enqueue(ctx, models.Mutation{
			Entity:    "cases",
			RecordKey: key,
			Action:    models.ActionUpdate,
			Payload:   models.Record{"id": key},
			Timestamp: int64(1700000000000 + i),
		})
		require.NoError(t, err)
	}

	pending, err := storages.Mutations.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 3)
	assert.Equal(t, "C1", pending[0].RecordKey)
	assert.Equal(t, "C3", pending[2].RecordKey)
	assert.Equal(t, "C1", pending[0].Payload["id"])

	// отклонённая мутация уходит из pending в failed
	require.NoError(t, storages.Mutations.MarkFailed(ctx, pending[1].ID, "status is required"))

	pending, err = storages.Mutations.Pending(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	failed, err := storages.Mutations.Failed(ctx)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "C2", failed[0].RecordKey)
	assert.Equal(t, "status is required", failed[0].FailReason)

	require.NoError(t, storages.Mutations.ResetFailed(ctx, failed[0].ID))
	count, err := storages.Mutations.CountPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	// подтверждённые мутации вычищаются
	require.NoError(t, storages.Mutations.MarkSynced(ctx, pending[0].ID))
	require.NoError(t, storages.Mutations.Purge(ctx))

	count, err = storages.Mutations.CountPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestStorages_RewriteKeyRetargetsPending(t *testing.T) {
	storages := newFileStorages(t, tempDSN(t))
	ctx := testContext()

	for _, action := range []models.MutationAction{models.ActionCreate, models.ActionUpdate} {
		_, err := storages.Mutations.Enqueue(ctx, models.Mutation{
			Entity:    "cases",
			RecordKey: "local_abc",
			Action:    action,
			Payload:   models.Record{"id": "local_abc"},
			Timestamp: 1700000000000,
		})
		require.NoError(t, err)
	}

	require.NoError(t, storages.Mutations.RewriteKey(ctx, "cases", "local_abc", "srv-7"))

	pending, err := storages.Mutations.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	for _, mutation := range pending {
		assert.Equal(t, "srv-7", mutation.RecordKey)
	}
}

func TestStorages_ConflictRoundTrip(t *testing.T) {
	storages := newFileStorages(t, tempDSN(t))
	ctx := testContext()

	saved, err := storages.Conflicts.Save(ctx, models.Conflict{
		Entity:    "cases",
		RecordKey: "C1",
		Local:     models.Record{"id": "C1", "status": "Closed"},
		Remote:    models.Record{"id": "C1", "status": "Escalated"},
		Timestamp: 1700000000000,
	})
	require.NoError(t, err)
	require.NotZero(t, saved.ID)

	got, err := storages.Conflicts.Get(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, "Closed", got.Local["status"])
	assert.Equal(t, "Escalated", got.Remote["status"])
	assert.False(t, got.Resolved)

	require.NoError(t, storages.Conflicts.MarkResolved(ctx, saved.ID))

	got, err = storages.Conflicts.Get(ctx, saved.ID)
	require.NoError(t, err)
	assert.True(t, got.Resolved)

	// Clear удаляет только разрешённые
	require.NoError(t, storages.Conflicts.Clear(ctx))
	_, err = storages.Conflicts.Get(ctx, saved.ID)
	assert.ErrorIs(t, err, ErrConflictNotFound)
}

func TestStorages_SettingsWatermarks(t *testing.T) {
	storages := newFileStorages(t, tempDSN(t))
	ctx := testContext()

	require.NoError(t, storages.Settings.Set(ctx, models.Setting{
		Key:   models.LastSyncKey("cases"),
		Value: "2026-08-31T10:00:00Z",
	}))
	// повторный Set перезаписывает значение
	require.NoError(t, storages.Settings.Set(ctx, models.Setting{
		Key:   models.LastSyncKey("cases"),
		Value: "2026-09-01T10:00:00Z",
	}))

	setting, err := storages.Settings.Get(ctx, models.LastSyncKey("cases"))
	require.NoError(t, err)
	assert.Equal(t, "2026-09-01T10:00:00Z", setting.Value)
	assert.Equal(t, models.SettingCategorySync, setting.Category)

	byCategory, err := storages.Settings.GetByCategory(ctx, models.SettingCategorySync)
	require.NoError(t, err)
	assert.Len(t, byCategory, 1)

	require.NoError(t, storages.Settings.Delete(ctx, models.LastSyncKey("cases")))
	_, err = storages.Settings.Get(ctx, models.LastSyncKey("cases"))
	assert.ErrorIs(t, err, ErrSettingNotFound)
}
