package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/nmalikova/caseline/internal/config"
	"github.com/nmalikova/caseline/internal/gateway"
	"github.com/nmalikova/caseline/internal/logger"
	"github.com/nmalikova/caseline/internal/store"
	"github.com/nmalikova/caseline/models"
)

// syncScheduler implements [Scheduler]. It owns the background goroutine that
// drains the queue and refreshes the critical collections on a ticker. The
// single-flight guarantee lives in the syncer, so a manual drain and a
// scheduled one can never run concurrently: whichever comes second is
// skipped.
type syncScheduler struct {
	syncer   Syncer
	records  store.RecordRepository
	settings store.SettingsRepository
	gateway  gateway.Gateway
	cfg      config.ClientWorkers
	logger   *logger.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a [Scheduler] that runs the sync cycle every
// cfg.SyncInterval. The scheduler is idle until Start is called.
func NewScheduler(syncer Syncer, storages *store.Storages, gw gateway.Gateway, cfg config.ClientWorkers, logger *logger.Logger) Scheduler {
	return &syncScheduler{
		syncer:   syncer,
		records:  storages.Records,
		settings: storages.Settings,
		gateway:  gw,
		cfg:      cfg,
		logger:   logger,
	}
}

// Start implements [Scheduler]. It stops any previously running scheduler,
// then launches a background goroutine that runs one cycle immediately and
// again every interval. If the interval is zero or negative it defaults to
// 5 minutes. The goroutine exits when ctx is cancelled or Stop is called.
func (s *syncScheduler) Start(ctx context.Context) {
	interval := s.cfg.SyncInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	s.Stop()

	s.mu.Lock()
	jobCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()

		s.runCycle(jobCtx)

		t := time.NewTicker(interval)
		defer t.Stop()

		for {
			select {
			case <-jobCtx.Done():
				return
			case <-t.C:
				s.runCycle(jobCtx)
			}
		}
	}()
}

// Stop implements [Scheduler]. It cancels future ticks and blocks until the
// goroutine has fully exited; a cycle that already started is allowed to
// finish. Safe to call when the scheduler is not running.
func (s *syncScheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}

// runCycle is one scheduler tick: drain the queue, then refresh the critical
// collections. Stop cancels ticks, not a cycle already in flight, so the
// cycle runs detached from the job context's cancellation.
func (s *syncScheduler) runCycle(ctx context.Context) {
	cycleCtx := context.WithoutCancel(ctx)
	log := s.logger.GetChildLogger()

	summary, err := s.syncer.Drain(cycleCtx)
	switch {
	case errors.Is(err, ErrSyncInFlight):
		log.Debug().Msg("drain already in flight, tick skipped")
		return
	case errors.Is(err, gateway.ErrOffline):
		log.Debug().Msg("offline, tick skipped")
		return
	case err != nil:
		log.Err(err).Msg("drain failed")
		return
	}

	if !summary.Empty() {
		log.Info().
			Int("applied", summary.Applied).
			Int("failed", summary.Failed).
			Int("conflicts", summary.Conflicts).
			Int("skipped", summary.Skipped).
			Msg("queue drained")
	}

	for _, collection := range s.cfg.CriticalCollections {
		s.refresh(cycleCtx, collection, log)
	}
}

// refresh pulls one page of a critical collection into the cache and moves
// its watermark.
func (s *syncScheduler) refresh(ctx context.Context, collection string, log *logger.Logger) {
	page, err := s.gateway.FetchPage(ctx, collection, 0, s.cfg.RefreshLimit)
	if err != nil {
		log.Warn().Err(err).
			Str("collection", collection).
			Msg("refresh failed")
		return
	}

	for _, record := range page.Records {
		stampRecord(record)
	}

	if err = s.records.SaveAll(ctx, collection, page.Records); err != nil {
		log.Err(err).
			Str("collection", collection).
			Msg("failed to cache refreshed collection")
		return
	}

	if err = s.settings.Set(ctx, models.Setting{
		Key:      models.LastSyncKey(collection),
		Value:    time.Now().UTC().Format(time.RFC3339),
		Category: models.SettingCategorySync,
	}); err != nil {
		log.Warn().Err(err).
			Str("collection", collection).
			Msg("failed to move refresh watermark")
	}

	count, err := s.records.Count(ctx, collection)
	if err != nil {
		return
	}
	log.Debug().
		Str("collection", collection).
		Int("fetched", len(page.Records)).
		Int("cached_total", count).
		Msg("collection refreshed")
}

func stampRecord(record models.Record) {
	if ts := record.LastModified(); ts > 0 {
		record.Touch(ts)
		return
	}
	record.Touch(time.Now().UnixMilli())
}
