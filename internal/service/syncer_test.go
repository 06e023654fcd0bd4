// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Nadezhda Malikova

package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/nmalikova/caseline/internal/gateway"
	"github.com/nmalikova/caseline/internal/logger"
	"github.com/nmalikova/caseline/internal/mock"
	"github.com/nmalikova/caseline/internal/store"
	"github.com/nmalikova/caseline/models"
)

func newTestSyncer(t *testing.T, ctrl *gomock.Controller) (
	*queueSyncer,
	*mock.MockRecordRepository,
	*mock.MockMutationRepository,
	*mock.MockConflictRepository,
	*mock.MockGateway,
) {
	t.Helper()

	records := mock.NewMockRecordRepository(ctrl)
	mutations := mock.NewMockMutationRepository(ctrl)
	conflicts := mock.NewMockConflictRepository(ctrl)
	gw := mock.NewMockGateway(ctrl)

	storages := &store.Storages{
		Records:   records,
		Mutations: mutations,
		Conflicts: conflicts,
		Settings:  mock.NewMockSettingsRepository(ctrl),
	}

	s := NewSyncer(storages, gw, logger.Nop()).(*queueSyncer)
	s.now = func() int64 { return testNow }

	return s, records, mutations, conflicts, gw
}

// ── Drain: guards ────────────────────────────────────────────────────────────

func TestSyncer_Drain_Offline(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	s, _, _, _, gw := newTestSyncer(t, ctrl)

	gw.EXPECT().Online().Return(false)

	_, err := s.Drain(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, gateway.ErrOffline)
}

func TestSyncer_Drain_SingleFlight(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	s, _, _, _, _ := newTestSyncer(t, ctrl)

	// имитируем уже идущий drain
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.Drain(context.Background())

	assert.ErrorIs(t, err, ErrSyncInFlight)
}

func TestSyncer_Drain_EmptyQueue(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	s, _, mutations, _, gw := newTestSyncer(t, ctrl)
	ctx := context.Background()

	gw.EXPECT().Online().Return(true)
	mutations.EXPECT().Pending(ctx).Return(nil, nil)
	mutations.EXPECT().Purge(ctx).Return(nil)

	summary, err := s.Drain(ctx)

	require.NoError(t, err)
	assert.True(t, summary.Empty())
}

// ── Drain: create ────────────────────────────────────────────────────────────

func TestSyncer_Drain_CreateReplacesPlaceholderKey(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	s, records, mutations, _, gw := newTestSyncer(t, ctrl)
	ctx := context.Background()

	localKey := models.LocalKeyPrefix + "018f-uuid"
	payload := models.Record{"id": localKey, "status": "Open", "_local": true, "_timestamp": float64(testNow)}

	gw.EXPECT().Online().Return(true)
	mutations.EXPECT().Pending(ctx).Return([]models.Mutation{{
		ID:        1,
		Entity:    "cases",
		RecordKey: localKey,
		Action:    models.ActionCreate,
		Payload:   payload,
		Timestamp: testNow,
	}}, nil)

	gw.EXPECT().Create(ctx, "cases", gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, body models.Record) (models.Record, error) {
			// placeholder key never leaves the device
			_, hasKey := body["id"]
			assert.False(t, hasKey)
			return models.Record{"id": "srv-42", "status": "Open"}, nil
		})

	gomock.InOrder(
		records.EXPECT().Rename(ctx, "cases", localKey, "srv-42").Return(nil),
		mutations.EXPECT().RewriteKey(ctx, "cases", localKey, "srv-42").Return(nil),
		records.EXPECT().Save(ctx, "cases", gomock.Any()).
			DoAndReturn(func(_ context.Context, _ string, r models.Record) error {
				key, _ := r.Key()
				assert.Equal(t, "srv-42", key)
				return nil
			}),
		mutations.EXPECT().MarkSynced(ctx, int64(1)).Return(nil),
		mutations.EXPECT().Purge(ctx).Return(nil),
	)

	summary, err := s.Drain(ctx)

	require.NoError(t, err)
	assert.Equal(t, 1, summary.Applied)
}

func TestSyncer_Drain_CreateThenUpdateUsesServerKey(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	s, records, mutations, _, gw := newTestSyncer(t, ctrl)
	ctx := context.Background()

	localKey := models.LocalKeyPrefix + "abc"
	createPayload := models.Record{"id": localKey, "status": "Open"}
	updatePayload := models.Record{"id": localKey, "status": "Closed"}

	gw.EXPECT().Online().Return(true)
	// обе мутации загружены ещё со старым локальным ключом
	mutations.EXPECT().Pending(ctx).Return([]models.Mutation{
		{ID: 1, Entity: "cases", RecordKey: localKey, Action: models.ActionCreate, Payload: createPayload, Timestamp: testNow},
		{ID: 2, Entity: "cases", RecordKey: localKey, Action: models.ActionUpdate, Payload: updatePayload, Timestamp: testNow + 1},
	}, nil)

	gw.EXPECT().Create(ctx, "cases", gomock.Any()).
		Return(models.Record{"id": "srv-7", "status": "Open"}, nil)
	records.EXPECT().Rename(ctx, "cases", localKey, "srv-7").Return(nil)
	mutations.EXPECT().RewriteKey(ctx, "cases", localKey, "srv-7").Return(nil)

	gw.EXPECT().Update(ctx, "cases", "srv-7", gomock.Any()).
		DoAndReturn(func(_ context.Context, _, _ string, body models.Record) (models.Record, error) {
			assert.Equal(t, "srv-7", body["id"])
			return models.Record{"id": "srv-7", "status": "Closed"}, nil
		})

	records.EXPECT().Save(ctx, "cases", gomock.Any()).Return(nil).Times(2)
	mutations.EXPECT().MarkSynced(ctx, int64(1)).Return(nil)
	mutations.EXPECT().MarkSynced(ctx, int64(2)).Return(nil)
	mutations.EXPECT().Purge(ctx).Return(nil)

	summary, err := s.Drain(ctx)

	require.NoError(t, err)
	assert.Equal(t, 2, summary.Applied)
}

// ── Drain: transient failure blocks the record, not the queue ────────────────

func TestSyncer_Drain_TransientBlocksOnlyThatRecord(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	s, records, mutations, _, gw := newTestSyncer(t, ctrl)
	ctx := context.Background()

	gw.EXPECT().Online().Return(true)
	mutations.EXPECT().Pending(ctx).Return([]models.Mutation{
		{ID: 1, Entity: "cases", RecordKey: "C1", Action: models.ActionUpdate, Payload: models.Record{"id": "C1"}, Timestamp: testNow},
		{ID: 2, Entity: "cases", RecordKey: "C1", Action: models.ActionUpdate, Payload: models.Record{"id": "C1"}, Timestamp: testNow + 1},
		{ID: 3, Entity: "cases", RecordKey: "C2", Action: models.ActionUpdate, Payload: models.Record{"id": "C2"}, Timestamp: testNow + 2},
	}, nil)

	// C1 падает по сети — вторая мутация C1 даже не отправляется
	gw.EXPECT().Update(ctx, "cases", "C1", gomock.Any()).Return(nil, errTransient)

	gw.EXPECT().Update(ctx, "cases", "C2", gomock.Any()).
		Return(models.Record{"id": "C2"}, nil)
	records.EXPECT().Save(ctx, "cases", gomock.Any()).Return(nil)
	mutations.EXPECT().MarkSynced(ctx, int64(3)).Return(nil)
	mutations.EXPECT().Purge(ctx).Return(nil)

	summary, err := s.Drain(ctx)

	require.NoError(t, err)
	assert.Equal(t, 1, summary.Applied)
	assert.Equal(t, 2, summary.Skipped)
	assert.Equal(t, 0, summary.Failed)
}

func TestSyncer_Drain_RejectedMarksFailed(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	s, _, mutations, _, gw := newTestSyncer(t, ctrl)
	ctx := context.Background()

	gw.EXPECT().Online().Return(true)
	mutations.EXPECT().Pending(ctx).Return([]models.Mutation{
		{ID: 5, Entity: "cases", RecordKey: "C1", Action: models.ActionCreate, Payload: models.Record{"id": "C1"}, Timestamp: testNow},
	}, nil)

	gw.EXPECT().Create(ctx, "cases", gomock.Any()).Return(nil, errRejected)
	mutations.EXPECT().MarkFailed(ctx, int64(5), gomock.Any()).Return(nil)
	mutations.EXPECT().Purge(ctx).Return(nil)

	summary, err := s.Drain(ctx)

	require.NoError(t, err)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 0, summary.Applied)
}

// ── Drain: conflicts ─────────────────────────────────────────────────────────

func TestSyncer_Drain_ConflictLocalWins(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	s, records, mutations, conflicts, gw := newTestSyncer(t, ctrl)
	ctx := context.Background()

	local := models.Record{"id": "C1", "status": "Closed"}
	// remote last modified before the local mutation
	remote := models.Record{"id": "C1", "status": "Escalated", "updatedAt": float64(testNow - 1000)}

	gw.EXPECT().Online().Return(true)
	mutations.EXPECT().Pending(ctx).Return([]models.Mutation{
		{ID: 1, Entity: "cases", RecordKey: "C1", Action: models.ActionUpdate, Payload: local, Timestamp: testNow},
	}, nil)

	gw.EXPECT().Update(ctx, "cases", "C1", gomock.Any()).Return(nil, errConflict)
	gw.EXPECT().Fetch(ctx, "cases", "C1").Return(remote, nil)

	var saved models.Conflict
	conflicts.EXPECT().Save(ctx, gomock.Any()).
		DoAndReturn(func(_ context.Context, c models.Conflict) (models.Conflict, error) {
			saved = c
			saved.ID = 7
			return saved, nil
		})

	gw.EXPECT().ForceUpdate(ctx, "cases", "C1", gomock.Any()).
		Return(models.Record{"id": "C1", "status": "Closed", "updatedAt": float64(testNow)}, nil)
	conflicts.EXPECT().MarkResolved(ctx, int64(7)).Return(nil)
	records.EXPECT().Save(ctx, "cases", gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, r models.Record) error {
			assert.Equal(t, "Closed", r["status"])
			return nil
		})
	mutations.EXPECT().MarkSynced(ctx, int64(1)).Return(nil)
	mutations.EXPECT().Purge(ctx).Return(nil)

	summary, err := s.Drain(ctx)

	require.NoError(t, err)
	assert.Equal(t, 1, summary.Conflicts)
	assert.Equal(t, 1, summary.Applied)
	assert.Equal(t, "Escalated", saved.Remote["status"])
	assert.Equal(t, "Closed", saved.Local["status"])
}

func TestSyncer_Drain_ConflictRemoteWins(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	s, records, mutations, conflicts, gw := newTestSyncer(t, ctrl)
	ctx := context.Background()

	local := models.Record{"id": "C1", "status": "Closed"}
	remote := models.Record{"id": "C1", "status": "Escalated", "updatedAt": float64(testNow + 5000)}

	gw.EXPECT().Online().Return(true)
	mutations.EXPECT().Pending(ctx).Return([]models.Mutation{
		{ID: 1, Entity: "cases", RecordKey: "C1", Action: models.ActionUpdate, Payload: local, Timestamp: testNow},
	}, nil)

	gw.EXPECT().Update(ctx, "cases", "C1", gomock.Any()).Return(nil, errConflict)
	gw.EXPECT().Fetch(ctx, "cases", "C1").Return(remote, nil)
	conflicts.EXPECT().Save(ctx, gomock.Any()).
		DoAndReturn(func(_ context.Context, c models.Conflict) (models.Conflict, error) {
			c.ID = 8
			return c, nil
		})

	// проигравшая мутация поглощается, ForceUpdate не вызывается, а сам
	// конфликт помечается улаженным и не всплывает при следующем drain
	records.EXPECT().Save(ctx, "cases", gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, r models.Record) error {
			assert.Equal(t, "Escalated", r["status"])
			return nil
		})
	mutations.EXPECT().MarkSynced(ctx, int64(1)).Return(nil)
	conflicts.EXPECT().MarkResolved(ctx, int64(8)).Return(nil)
	mutations.EXPECT().Purge(ctx).Return(nil)

	summary, err := s.Drain(ctx)

	require.NoError(t, err)
	assert.Equal(t, 1, summary.Conflicts)
	assert.Equal(t, 0, summary.Applied)
}

func TestSyncer_Drain_ConflictDeleteLocalWins(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	s, records, mutations, conflicts, gw := newTestSyncer(t, ctrl)
	ctx := context.Background()

	gw.EXPECT().Online().Return(true)
	mutations.EXPECT().Pending(ctx).Return([]models.Mutation{
		{ID: 1, Entity: "cases", RecordKey: "C1", Action: models.ActionDelete, Payload: models.Record{"id": "C1"}, Timestamp: testNow},
	}, nil)

	gw.EXPECT().Remove(ctx, "cases", "C1").Return(errConflict)
	gw.EXPECT().Fetch(ctx, "cases", "C1").
		Return(models.Record{"id": "C1", "updatedAt": float64(testNow - 100)}, nil)
	conflicts.EXPECT().Save(ctx, gomock.Any()).
		DoAndReturn(func(_ context.Context, c models.Conflict) (models.Conflict, error) {
			c.ID = 9
			return c, nil
		})

	gw.EXPECT().ForceRemove(ctx, "cases", "C1").Return(nil)
	records.EXPECT().Delete(ctx, "cases", "C1").Return(nil)
	mutations.EXPECT().MarkSynced(ctx, int64(1)).Return(nil)
	conflicts.EXPECT().MarkResolved(ctx, int64(9)).Return(nil)
	mutations.EXPECT().Purge(ctx).Return(nil)

	summary, err := s.Drain(ctx)

	require.NoError(t, err)
	assert.Equal(t, 1, summary.Conflicts)
	assert.Equal(t, 1, summary.Applied)
}

// ── Drain: delete ────────────────────────────────────────────────────────────

func TestSyncer_Drain_DeleteAlreadyGone(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	s, records, mutations, _, gw := newTestSyncer(t, ctrl)
	ctx := context.Background()

	gw.EXPECT().Online().Return(true)
	mutations.EXPECT().Pending(ctx).Return([]models.Mutation{
		{ID: 9, Entity: "evidence", RecordKey: "E1", Action: models.ActionDelete, Payload: models.Record{"id": "E1"}, Timestamp: testNow},
	}, nil)

	gw.EXPECT().Remove(ctx, "evidence", "E1").
		Return(fmt.Errorf("gateway: %w: %w", gateway.ErrRejected, gateway.ErrNotFound))
	records.EXPECT().Delete(ctx, "evidence", "E1").Return(nil)
	mutations.EXPECT().MarkSynced(ctx, int64(9)).Return(nil)
	mutations.EXPECT().Purge(ctx).Return(nil)

	summary, err := s.Drain(ctx)

	require.NoError(t, err)
	assert.Equal(t, 1, summary.Applied)
}
