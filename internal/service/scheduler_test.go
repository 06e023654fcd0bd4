package service

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/nmalikova/caseline/internal/config"
	"github.com/nmalikova/caseline/internal/logger"
	"github.com/nmalikova/caseline/internal/mock"
	"github.com/nmalikova/caseline/internal/store"
	"github.com/nmalikova/caseline/models"
)

// stubSyncer — простой мок для планировщика, не требует mockgen
type stubSyncer struct {
	calls   atomic.Int32
	summary models.SyncSummary
	err     error
	done    chan struct{}
}

func (s *stubSyncer) Drain(_ context.Context) (models.SyncSummary, error) {
	s.calls.Add(1)
	if s.done != nil {
		select {
		case s.done <- struct{}{}:
		default:
		}
	}
	return s.summary, s.err
}

func newTestScheduler(ctrl *gomock.Controller, syncer Syncer, cfg config.ClientWorkers) (
	*syncScheduler,
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

	s := NewScheduler(syncer, storages, gw, cfg, logger.Nop()).(*syncScheduler)
	return s, records, settings, gw
}

func TestScheduler_RunsImmediateCycleAndRefreshes(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	syncer := &stubSyncer{
		summary: models.SyncSummary{Applied: 2},
		done:    make(chan struct{}, 1),
	}
	cfg := config.ClientWorkers{
		SyncInterval:        time.Hour, // only the immediate cycle fires
		RefreshLimit:        50,
		CriticalCollections: []string{"cases"},
	}
	s, records, settings, gw := newTestScheduler(ctrl, syncer, cfg)

	refreshed := make(chan struct{}, 1)

	gw.EXPECT().FetchPage(gomock.Any(), "cases", 0, 50).
		Return(models.ListPage{Records: []models.Record{{"id": "C1"}}}, nil)
	records.EXPECT().SaveAll(gomock.Any(), "cases", gomock.Any()).Return(nil)
	settings.EXPECT().Set(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, setting models.Setting) error {
			assert.Equal(t, models.LastSyncKey("cases"), setting.Key)
			assert.Equal(t, models.SettingCategorySync, setting.Category)
			return nil
		})
	records.EXPECT().Count(gomock.Any(), "cases").
		DoAndReturn(func(_ context.Context, _ string) (int, error) {
			refreshed <- struct{}{}
			return 1, nil
		})

	s.Start(context.Background())
	defer s.Stop()

	select {
	case <-syncer.done:
	case <-time.After(2 * time.Second):
		t.Fatal("drain was never triggered")
	}
	select {
	case <-refreshed:
	case <-time.After(2 * time.Second):
		t.Fatal("critical collection was never refreshed")
	}

	assert.Equal(t, int32(1), syncer.calls.Load())
}

func TestScheduler_SkipsRefreshWhenDrainInFlight(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	syncer := &stubSyncer{
		err:  ErrSyncInFlight,
		done: make(chan struct{}, 1),
	}
	cfg := config.ClientWorkers{
		SyncInterval:        time.Hour,
		CriticalCollections: []string{"cases"},
	}
	// refresh-моки без EXPECT: любое обращение к ним провалит тест
	s, _, _, _ := newTestScheduler(ctrl, syncer, cfg)

	s.Start(context.Background())

	select {
	case <-syncer.done:
	case <-time.After(2 * time.Second):
		t.Fatal("drain was never triggered")
	}

	s.Stop()
}

func TestScheduler_StopWithoutStart(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	s, _, _, _ := newTestScheduler(ctrl, &stubSyncer{}, config.ClientWorkers{})

	// не должен паниковать и блокироваться
	s.Stop()
	s.Stop()
}

func TestScheduler_StartStopsPreviousRun(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	syncer := &stubSyncer{err: ErrSyncInFlight}
	cfg := config.ClientWorkers{SyncInterval: time.Hour}
	s, _, _, _ := newTestScheduler(ctrl, syncer, cfg)

	ctx := context.Background()
	s.Start(ctx)
	s.Start(ctx)
	s.Stop()

	// по одному немедленному циклу на каждый Start
	require.Eventually(t, func() bool {
		return syncer.calls.Load() == 2
	}, 2*time.Second, 10*time.Millisecond)
}
