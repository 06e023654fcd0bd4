// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Nadezhda Malikova

package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nmalikova/caseline/internal/gateway"
	"github.com/nmalikova/caseline/internal/logger"
	"github.com/nmalikova/caseline/internal/store"
	"github.com/nmalikova/caseline/internal/utils"
	"github.com/nmalikova/caseline/models"
)

// dataFacade implements [Facade]. It is the single data surface the
// application reads and writes through: every operation first tries the
// remote API and degrades to the local store when the network cannot be
// reached, so callers never need two code paths.
type dataFacade struct {
	records   store.RecordRepository
	mutations store.MutationRepository
	conflicts store.ConflictRepository
	gateway   gateway.Gateway
	uuid      *utils.UUIDGenerator
	logger    *logger.Logger

	now func() int64
}

// NewFacade constructs a [Facade] over the given storage and gateway layers.
func NewFacade(storages *store.Storages, gw gateway.Gateway, logger *logger.Logger) Facade {
	return &dataFacade{
		records:   storages.Records,
		mutations: storages.Mutations,
		conflicts: storages.Conflicts,
		gateway:   gw,
		uuid:      utils.NewUUIDGenerator(),
		logger:    logger,
		now:       func() int64 { return time.Now().UnixMilli() },
	}
}

// Get implements [Facade].
func (f *dataFacade) Get(ctx context.Context, entity, key string) (Result, error) {
	log := logger.FromContext(ctx)

	remote, err := f.gateway.Fetch(ctx, entity, key)
	if err == nil {
		f.stamp(remote)
		if saveErr := f.records.Save(ctx, entity, remote); saveErr != nil {
			log.Warn().Err(saveErr).
				Str("func", "*dataFacade.Get").
				Str("entity", entity).
				Str("record_key", key).
				Msg("failed to refresh cache after fetch")
		}
		return Result{Record: remote}, nil
	}

	// a 5xx is the server's failure, not a verdict on the request: the cached
	// copy still serves. A clean 4xx rejection surfaces to the caller.
	if !gateway.IsTransient(err) && !errors.Is(err, gateway.ErrServer) {
		return Result{}, err
	}

	cached, cacheErr := f.records.Get(ctx, entity, key)
	if cacheErr != nil {
		if errors.Is(cacheErr, store.ErrRecordNotFound) {
			return Result{Offline: true}, fmt.Errorf("%s/%s: %w", entity, key, ErrNoDataOffline)
		}
		return Result{Offline: true}, cacheErr
	}

	log.Debug().
		Str("func", "*dataFacade.Get").
		Str("entity", entity).
		Str("record_key", key).
		Msg("serving cached record while offline")

	return Result{Record: cached, Cached: true, Offline: true}, nil
}

// List implements [Facade].
func (f *dataFacade) List(ctx context.Context, entity string) (Result, error) {
	return f.list(ctx, entity, "", nil)
}

// ListBy implements [Facade].
func (f *dataFacade) ListBy(ctx context.Context, entity, field string, value any) (Result, error) {
	return f.list(ctx, entity, field, value)
}

func (f *dataFacade) list(ctx context.Context, entity, field string, value any) (Result, error) {
	log := logger.FromContext(ctx)

	page, err := f.gateway.FetchPage(ctx, entity, 0, 0)
	switch {
	case err == nil:
		for _, record := range page.Records {
			f.stamp(record)
		}
		if saveErr := f.records.SaveAll(ctx, entity, page.Records); saveErr != nil {
			log.Warn().Err(saveErr).
				Str("func", "*dataFacade.list").
				Str("entity", entity).
				Msg("failed to refresh cache after list")
		}
	case gateway.IsTransient(err) || errors.Is(err, gateway.ErrServer):
		// fall through to the cache read below
	default:
		return Result{}, err
	}

	// reading back from the store folds queued local writes into the result
	var (
		records  []models.Record
		cacheErr error
	)
	if field == "" {
		records, cacheErr = f.records.GetAll(ctx, entity)
	} else {
		records, cacheErr = f.records.GetAllBy(ctx, entity, field, value)
	}
	if cacheErr != nil {
		return Result{Offline: err != nil}, cacheErr
	}

	return Result{Records: records, Cached: err != nil, Offline: err != nil}, nil
}

// Post implements [Facade].
func (f *dataFacade) Post(ctx context.Context, entity string, payload models.Record) (Result, error) {
	log := logger.FromContext(ctx)

	remote, err := f.gateway.Create(ctx, entity, payload.Export())
	if err == nil {
		f.stamp(remote)
		if saveErr := f.records.Save(ctx, entity, remote); saveErr != nil {
			return Result{Record: remote}, saveErr
		}
		return Result{Record: remote}, nil
	}

	if !gateway.IsTransient(err) {
		return Result{}, err
	}

	// optimistic local apply under a placeholder key, replaced by the
	// server-assigned key once the queued create is acknowledged
	local := payload.Clone()
	key := f.uuid.LocalRecordKey()
	local.MarkLocal(key)
	local.Touch(f.now())

	if saveErr := f.records.Save(ctx, entity, local); saveErr != nil {
		return Result{Offline: true}, saveErr
	}

	if _, queueErr := f.mutations.Enqueue(ctx, models.Mutation{
		Entity:    entity,
		RecordKey: key,
		Action:    models.ActionCreate,
		Payload:   local,
		Timestamp: local.Timestamp(),
	}); queueErr != nil {
		return Result{Offline: true}, queueErr
	}

	log.Info().
		Str("func", "*dataFacade.Post").
		Str("entity", entity).
		Str("record_key", key).
		Msg("create queued while offline")

	return Result{Record: local, Queued: true, Offline: true}, nil
}

// Put implements [Facade].
func (f *dataFacade) Put(ctx context.Context, entity, key string, payload models.Record) (Result, error) {
	log := logger.FromContext(ctx)

	remote, err := f.gateway.Update(ctx, entity, key, payload.Export())
	if err == nil {
		f.stamp(remote)
		if saveErr := f.records.Save(ctx, entity, remote); saveErr != nil {
			return Result{Record: remote}, saveErr
		}
		return Result{Record: remote}, nil
	}

	if errors.Is(err, gateway.ErrConflict) {
		f.captureConflict(ctx, entity, key, payload)
		return Result{}, err
	}

	if !gateway.IsTransient(err) {
		return Result{}, err
	}

	merged := f.mergeWithCached(ctx, entity, key, payload)
	merged.Touch(f.now())

	if saveErr := f.records.Save(ctx, entity, merged); saveErr != nil {
		return Result{Offline: true}, saveErr
	}

	if _, queueErr := f.mutations.Enqueue(ctx, models.Mutation{
		Entity:    entity,
		RecordKey: key,
		Action:    models.ActionUpdate,
		Payload:   merged,
		Timestamp: merged.Timestamp(),
	}); queueErr != nil {
		return Result{Offline: true}, queueErr
	}

	log.Info().
		Str("func", "*dataFacade.Put").
		Str("entity", entity).
		Str("record_key", key).
		Msg("update queued while offline")

	return Result{Record: merged, Queued: true, Offline: true}, nil
}

// Delete implements [Facade].
func (f *dataFacade) Delete(ctx context.Context, entity, key string) (Result, error) {
	log := logger.FromContext(ctx)

	err := f.gateway.Remove(ctx, entity, key)
	if err == nil || errors.Is(err, gateway.ErrNotFound) {
		if delErr := f.records.Delete(ctx, entity, key); delErr != nil {
			return Result{}, delErr
		}
		return Result{}, nil
	}

	if errors.Is(err, gateway.ErrConflict) {
		f.captureConflict(ctx, entity, key, nil)
		return Result{}, err
	}

	if !gateway.IsTransient(err) {
		return Result{}, err
	}

	// soft delete locally so the record can still be inspected or undone
	// until the server acknowledges
	tombstone, sdErr := f.records.SoftDelete(ctx, entity, key, f.now())
	if sdErr != nil {
		return Result{Offline: true}, sdErr
	}

	if _, queueErr := f.mutations.Enqueue(ctx, models.Mutation{
		Entity:    entity,
		RecordKey: key,
		Action:    models.ActionDelete,
		Payload:   tombstone,
		Timestamp: tombstone.Timestamp(),
	}); queueErr != nil {
		return Result{Offline: true}, queueErr
	}

	log.Info().
		Str("func", "*dataFacade.Delete").
		Str("entity", entity).
		Str("record_key", key).
		Msg("delete queued while offline")

	return Result{Record: tombstone, Queued: true, Offline: true}, nil
}

// PendingCount implements [Facade].
func (f *dataFacade) PendingCount(ctx context.Context) (int, error) {
	return f.mutations.CountPending(ctx)
}

// FailedMutations implements [Facade].
func (f *dataFacade) FailedMutations(ctx context.Context) ([]models.Mutation, error) {
	return f.mutations.Failed(ctx)
}

// Retry implements [Facade].
func (f *dataFacade) Retry(ctx context.Context, id int64) error {
	return f.mutations.ResetFailed(ctx, id)
}

// stamp assigns the cache timestamp: the server's modification time when the
// record carries one, otherwise the current clock.
func (f *dataFacade) stamp(record models.Record) {
	ts := record.LastModified()
	if ts == 0 {
		ts = f.now()
	}
	record.Touch(ts)
}

// mergeWithCached overlays payload onto the cached copy of the record, so a
// queued partial update does not drop fields the caller did not send. When
// nothing is cached the payload alone (with the key set) is used.
func (f *dataFacade) mergeWithCached(ctx context.Context, entity, key string, payload models.Record) models.Record {
	base, err := f.records.Get(ctx, entity, key)
	if err != nil {
		base = models.Record{}
	}

	merged := base.Clone()
	for k, v := range payload {
		merged[k] = v
	}
	merged.SetKey(key)

	return merged
}

// captureConflict stores a conflict detected on a direct online write so the
// operator can resolve it later. Failures here are logged, not propagated:
// the caller still receives the original conflict error.
func (f *dataFacade) captureConflict(ctx context.Context, entity, key string, local models.Record) {
	log := logger.FromContext(ctx)

	remote, err := f.gateway.Fetch(ctx, entity, key)
	if err != nil {
		log.Warn().Err(err).
			Str("func", "*dataFacade.captureConflict").
			Str("entity", entity).
			Str("record_key", key).
			Msg("failed to fetch remote side of conflict")
		remote = models.Record{}
	}

	if local == nil {
		if cached, cacheErr := f.records.Get(ctx, entity, key); cacheErr == nil {
			local = cached
		} else {
			local = models.Record{}
		}
	}

	if _, saveErr := f.conflicts.Save(ctx, models.Conflict{
		Entity:    entity,
		RecordKey: key,
		Local:     local,
		Remote:    remote,
		Timestamp: f.now(),
	}); saveErr != nil {
		log.Warn().Err(saveErr).
			Str("func", "*dataFacade.captureConflict").
			Str("entity", entity).
			Str("record_key", key).
			Msg("failed to store conflict entry")
	}
}
