// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Nadezhda Malikova

package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/nmalikova/caseline/internal/config"
	"github.com/nmalikova/caseline/internal/gateway"
	"github.com/nmalikova/caseline/internal/logger"
	"github.com/nmalikova/caseline/internal/mock"
	"github.com/nmalikova/caseline/internal/store"
	"github.com/nmalikova/caseline/models"
)

func newTestPreloader(ctrl *gomock.Controller, cfg config.ClientPreload) (
	*cachePreloader,
	*mock.MockRecordRepository,
	*mock.MockSettingsRepository,
	*mock.MockGateway,
) {
	records := mock.NewMockRecordRepository(ctrl)
	settings := mock.NewMockSettingsRepository(ctrl)
	gw := mock.NewMockGateway(ctrl)

	storages := &store.Storages{
		Records:   records,
		Mutations: mock.NewMockMutationRepository(ctrl),
		Conflicts: mock.NewMockConflictRepository(ctrl),
		Settings:  settings,
	}

	p := NewPreloader(storages, gw, cfg, logger.Nop()).(*cachePreloader)
	return p, records, settings, gw
}

func TestPreloader_LoadsConfiguredEntities(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	cfg := config.ClientPreload{
		Limit:    100,
		Entities: []string{"cases", "students"},
	}
	p, records, settings, gw := newTestPreloader(ctrl, cfg)
	ctx := context.Background()

	gw.EXPECT().FetchPage(gomock.Any(), "cases", 1, 100).
		Return(models.ListPage{Records: []models.Record{{"id": "C1"}, {"id": "C2"}}}, nil)
	gw.EXPECT().FetchPage(gomock.Any(), "students", 1, 100).
		Return(models.ListPage{Records: []models.Record{{"id": "S1"}}}, nil)
	records.EXPECT().SaveAll(gomock.Any(), "cases", gomock.Any()).Return(nil)
	records.EXPECT().SaveAll(gomock.Any(), "students", gomock.Any()).Return(nil)
	settings.EXPECT().Set(gomock.Any(), gomock.Any()).Return(nil).Times(2)

	report := p.Preload(ctx, "teacher")

	require.Empty(t, report.Failed)
	assert.Equal(t, 2, report.Loaded["cases"])
	assert.Equal(t, 1, report.Loaded["students"])
}

func TestPreloader_AdminRoleAddsAdminEntities(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	cfg := config.ClientPreload{
		Limit:         50,
		Entities:      []string{"cases"},
		AdminEntities: []string{"users"},
	}
	p, records, settings, gw := newTestPreloader(ctrl, cfg)
	ctx := context.Background()

	gw.EXPECT().FetchPage(gomock.Any(), "cases", 1, 50).
		Return(models.ListPage{Records: []models.Record{{"id": "C1"}}}, nil)
	gw.EXPECT().FetchPage(gomock.Any(), "users", 1, 50).
		Return(models.ListPage{Records: []models.Record{{"id": "U1"}}}, nil)
	records.EXPECT().SaveAll(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).Times(2)
	settings.EXPECT().Set(gomock.Any(), gomock.Any()).Return(nil).Times(2)

	report := p.Preload(ctx, "admin")

	require.Empty(t, report.Failed)
	assert.Contains(t, report.Loaded, "users")
}

func TestPreloader_FailedEntityDoesNotAbortOthers(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	cfg := config.ClientPreload{
		Limit:    100,
		Entities: []string{"cases", "evidence"},
	}
	p, records, settings, gw := newTestPreloader(ctrl, cfg)
	ctx := context.Background()

	// evidence отклонён сервером — ретраев нет, другие сущности не страдают
	gw.EXPECT().FetchPage(gomock.Any(), "evidence", 1, 100).
		Return(models.ListPage{}, errRejected)
	gw.EXPECT().FetchPage(gomock.Any(), "cases", 1, 100).
		Return(models.ListPage{Records: []models.Record{{"id": "C1"}}}, nil)
	records.EXPECT().SaveAll(gomock.Any(), "cases", gomock.Any()).Return(nil)
	settings.EXPECT().Set(gomock.Any(), gomock.Any()).Return(nil)

	report := p.Preload(ctx, "teacher")

	assert.Equal(t, 1, report.Loaded["cases"])
	require.Contains(t, report.Failed, "evidence")
	assert.ErrorIs(t, report.Failed["evidence"], gateway.ErrRejected)
}

func TestPreloader_RetriesTransientFailures(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	cfg := config.ClientPreload{
		Limit:    100,
		Entities: []string{"cases"},
	}
	p, records, settings, gw := newTestPreloader(ctrl, cfg)
	ctx := context.Background()

	gomock.InOrder(
		gw.EXPECT().FetchPage(gomock.Any(), "cases", 1, 100).
			Return(models.ListPage{}, errTransient),
		gw.EXPECT().FetchPage(gomock.Any(), "cases", 1, 100).
			Return(models.ListPage{Records: []models.Record{{"id": "C1"}}}, nil),
	)
	records.EXPECT().SaveAll(gomock.Any(), "cases", gomock.Any()).Return(nil)
	settings.EXPECT().Set(gomock.Any(), gomock.Any()).Return(nil)

	report := p.Preload(ctx, "teacher")

	require.Empty(t, report.Failed)
	assert.Equal(t, 1, report.Loaded["cases"])
}

func TestPreloader_EmptyEntityListIsNoop(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	p, _, _, _ := newTestPreloader(ctrl, config.ClientPreload{})

	report := p.Preload(context.Background(), "teacher")

	assert.Empty(t, report.Loaded)
	assert.Empty(t, report.Failed)
}
