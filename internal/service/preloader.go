// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Nadezhda Malikova

package service

import (
	"context"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"

	"github.com/nmalikova/caseline/internal/config"
	"github.com/nmalikova/caseline/internal/gateway"
	"github.com/nmalikova/caseline/internal/logger"
	"github.com/nmalikova/caseline/internal/store"
	"github.com/nmalikova/caseline/models"
)

const (
	preloadConcurrency = 4
	preloadMaxRetries  = 3
	preloadBackoffBase = 500 * time.Millisecond
)

// cachePreloader implements [Preloader]. It pulls the configured entity sets
// into the local store concurrently at session start, with a bounded
// exponential backoff per entity so one slow endpoint does not starve the
// rest.
type cachePreloader struct {
	records  store.RecordRepository
	settings store.SettingsRepository
	gateway  gateway.Gateway
	cfg      config.ClientPreload
	logger   *logger.Logger
}

// NewPreloader constructs a [Preloader] using the preload sets from cfg.
func NewPreloader(storages *store.Storages, gw gateway.Gateway, cfg config.ClientPreload, logger *logger.Logger) Preloader {
	return &cachePreloader{
		records:  storages.Records,
		settings: storages.Settings,
		gateway:  gw,
		cfg:      cfg,
		logger:   logger,
	}
}

// Preload implements [Preloader]. The admin role gets the base entity set
// plus the admin-only entities. A failed entity is reported in the result and
// does not abort the others.
func (p *cachePreloader) Preload(ctx context.Context, role string) PreloadReport {
	log := logger.FromContext(ctx)

	entities := append([]string{}, p.cfg.Entities...)
	if role == "admin" {
		entities = append(entities, p.cfg.AdminEntities...)
	}

	report := PreloadReport{
		Loaded: make(map[string]int, len(entities)),
		Failed: make(map[string]error),
	}
	var mu sync.Mutex

	g, groupCtx := errgroup.WithContext(ctx)
	g.SetLimit(preloadConcurrency)

	for _, entity := range entities {
		entity := entity
		g.Go(func() error {
			count, err := p.preloadEntity(groupCtx, entity)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failed[entity] = err
				log.Warn().Err(err).
					Str("func", "*cachePreloader.Preload").
					Str("entity", entity).
					Msg("entity preload failed")
				return nil
			}
			report.Loaded[entity] = count
			return nil
		})
	}

	// errors are collected per entity, the group itself never fails
	_ = g.Wait()

	log.Info().
		Str("func", "*cachePreloader.Preload").
		Str("role", role).
		Int("loaded", len(report.Loaded)).
		Int("failed", len(report.Failed)).
		Msg("preload finished")

	return report
}

func (p *cachePreloader) preloadEntity(ctx context.Context, entity string) (int, error) {
	var page models.ListPage

	backoff := retry.WithMaxRetries(preloadMaxRetries, retry.NewExponential(preloadBackoffBase))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var fetchErr error
		page, fetchErr = p.gateway.FetchPage(ctx, entity, 1, p.cfg.Limit)
		if fetchErr == nil {
			return nil
		}
		if gateway.IsTransient(fetchErr) {
			return retry.RetryableError(fetchErr)
		}
		return fetchErr
	})
	if err != nil {
		return 0, err
	}

	for _, record := range page.Records {
		stampRecord(record)
	}

	if err = p.records.SaveAll(ctx, entity, page.Records); err != nil {
		return 0, err
	}

	if err = p.settings.Set(ctx, models.Setting{
		Key:      models.LastSyncKey(entity),
		Value:    time.Now().UTC().Format(time.RFC3339),
		Category: models.SettingCategorySync,
	}); err != nil {
		return len(page.Records), err
	}

	return len(page.Records), nil
}
