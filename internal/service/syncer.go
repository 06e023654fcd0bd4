// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Nadezhda Malikova

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nmalikova/caseline/internal/gateway"
	"github.com/nmalikova/caseline/internal/logger"
	"github.com/nmalikova/caseline/internal/store"
	"github.com/nmalikova/caseline/models"
)

// queueSyncer implements [Syncer]. It replays the mutation queue against the
// remote API in queue order, resolving 409 conflicts by last-write-wins and
// recording every detected conflict for later inspection.
type queueSyncer struct {
	records   store.RecordRepository
	mutations store.MutationRepository
	conflicts store.ConflictRepository
	gateway   gateway.Gateway
	logger    *logger.Logger

	// mu is the single-flight guard: concurrent drain triggers are skipped,
	// never queued behind one another.
	mu  sync.Mutex
	now func() int64
}

// NewSyncer constructs a [Syncer] over the given storage and gateway layers.
func NewSyncer(storages *store.Storages, gw gateway.Gateway, logger *logger.Logger) Syncer {
	return &queueSyncer{
		records:   storages.Records,
		mutations: storages.Mutations,
		conflicts: storages.Conflicts,
		gateway:   gw,
		logger:    logger,
		now:       func() int64 { return time.Now().UnixMilli() },
	}
}

// Drain implements [Syncer].
func (s *queueSyncer) Drain(ctx context.Context) (models.SyncSummary, error) {
	if !s.mu.TryLock() {
		return models.SyncSummary{}, ErrSyncInFlight
	}
	defer s.mu.Unlock()

	log := logger.FromContext(ctx)

	if !s.gateway.Online() {
		return models.SyncSummary{}, fmt.Errorf("drain: %w", gateway.ErrOffline)
	}

	pending, err := s.mutations.Pending(ctx)
	if err != nil {
		return models.SyncSummary{}, fmt.Errorf("drain: load pending mutations: %w", err)
	}

	var summary models.SyncSummary

	// once a record hits a transient failure the rest of its mutations are
	// skipped, otherwise a later update could overtake the stuck one
	blocked := make(map[string]bool)

	// keys rewritten by acknowledged creates in this drain; later mutations
	// for the same record were loaded with the old placeholder key
	renames := make(map[string]string)

	for _, mutation := range pending {
		if newKey, ok := renames[mutation.Entity+"/"+mutation.RecordKey]; ok {
			mutation.RecordKey = newKey
			mutation.Payload = mutation.Payload.Clone()
			mutation.Payload.SetKey(newKey)
		}

		slot := mutation.Entity + "/" + mutation.RecordKey
		if blocked[slot] {
			summary.Skipped++
			continue
		}

		applyErr := s.apply(ctx, mutation, &summary, renames)
		switch {
		case applyErr == nil:
		case errors.Is(applyErr, gateway.ErrRejected) || errors.Is(applyErr, gateway.ErrConflict):
			if markErr := s.mutations.MarkFailed(ctx, mutation.ID, applyErr.Error()); markErr != nil {
				return summary, markErr
			}
			summary.Failed++
			log.Warn().Err(applyErr).
				Str("func", "*queueSyncer.Drain").
				Str("entity", mutation.Entity).
				Str("record_key", mutation.RecordKey).
				Int64("mutation_id", mutation.ID).
				Msg("mutation rejected by server")
		case gateway.IsTransient(applyErr):
			blocked[slot] = true
			summary.Skipped++
		default:
			return summary, applyErr
		}
	}

	if purgeErr := s.mutations.Purge(ctx); purgeErr != nil {
		return summary, purgeErr
	}

	log.Info().
		Str("func", "*queueSyncer.Drain").
		Int("applied", summary.Applied).
		Int("failed", summary.Failed).
		Int("conflicts", summary.Conflicts).
		Int("skipped", summary.Skipped).
		Msg("drain finished")

	return summary, nil
}

func (s *queueSyncer) apply(ctx context.Context, mutation models.Mutation, summary *models.SyncSummary, renames map[string]string) error {
	switch mutation.Action {
	case models.ActionCreate:
		return s.applyCreate(ctx, mutation, summary, renames)
	case models.ActionUpdate:
		return s.applyUpdate(ctx, mutation, summary)
	case models.ActionDelete:
		return s.applyDelete(ctx, mutation, summary)
	default:
		return fmt.Errorf("mutation %d: unknown action %q", mutation.ID, mutation.Action)
	}
}

func (s *queueSyncer) applyCreate(ctx context.Context, mutation models.Mutation, summary *models.SyncSummary, renames map[string]string) error {
	log := logger.FromContext(ctx)

	body := mutation.Payload.Export()
	if strings.HasPrefix(mutation.RecordKey, models.LocalKeyPrefix) {
		// the placeholder key never leaves the device, the server assigns
		// the real one
		if keyField, ok := mutation.Payload.KeyField(); ok {
			delete(body, keyField)
		}
	}

	remote, err := s.gateway.Create(ctx, mutation.Entity, body)
	if err != nil {
		return err
	}

	newKey, _ := remote.Key()
	if newKey == "" {
		// server acknowledged without a body, keep the local copy as-is
		remote = mutation.Payload.Clone()
	}
	if newKey != "" && newKey != mutation.RecordKey {
		if renameErr := s.records.Rename(ctx, mutation.Entity, mutation.RecordKey, newKey); renameErr != nil && !errors.Is(renameErr, store.ErrRecordNotFound) {
			return renameErr
		}
		if rewriteErr := s.mutations.RewriteKey(ctx, mutation.Entity, mutation.RecordKey, newKey); rewriteErr != nil {
			return rewriteErr
		}
		renames[mutation.Entity+"/"+mutation.RecordKey] = newKey
		log.Debug().
			Str("func", "*queueSyncer.applyCreate").
			Str("entity", mutation.Entity).
			Str("record_key", mutation.RecordKey).
			Str("new_key", newKey).
			Msg("local placeholder replaced with server key")
	}

	return s.acknowledge(ctx, mutation, remote, summary)
}

func (s *queueSyncer) applyUpdate(ctx context.Context, mutation models.Mutation, summary *models.SyncSummary) error {
	remote, err := s.gateway.Update(ctx, mutation.Entity, mutation.RecordKey, mutation.Payload.Export())
	if err == nil {
		return s.acknowledge(ctx, mutation, remote, summary)
	}
	if errors.Is(err, gateway.ErrConflict) {
		return s.handleConflict(ctx, mutation, summary)
	}
	return err
}

func (s *queueSyncer) applyDelete(ctx context.Context, mutation models.Mutation, summary *models.SyncSummary) error {
	err := s.gateway.Remove(ctx, mutation.Entity, mutation.RecordKey)
	if err == nil || errors.Is(err, gateway.ErrNotFound) {
		// already-gone is success for a delete
		if delErr := s.records.Delete(ctx, mutation.Entity, mutation.RecordKey); delErr != nil {
			return delErr
		}
		if markErr := s.mutations.MarkSynced(ctx, mutation.ID); markErr != nil {
			return markErr
		}
		summary.Applied++
		return nil
	}
	if errors.Is(err, gateway.ErrConflict) {
		return s.handleConflict(ctx, mutation, summary)
	}
	return err
}

// handleConflict settles a 409 reported during drain: the server's current
// version is fetched, the divergence is recorded, and the newer of the two
// timestamps wins. A losing local mutation is consumed without being applied
// so it cannot fire again on the next drain. The recorded conflict is flagged
// resolved once the automatic outcome is in place; it stays queryable for the
// operator, who can still override the outcome per conflict.
func (s *queueSyncer) handleConflict(ctx context.Context, mutation models.Mutation, summary *models.SyncSummary) error {
	log := logger.FromContext(ctx)

	remote, err := s.gateway.Fetch(ctx, mutation.Entity, mutation.RecordKey)
	if err != nil {
		if !errors.Is(err, gateway.ErrNotFound) {
			return err
		}
		remote = models.Record{}
	}

	saved, saveErr := s.conflicts.Save(ctx, models.Conflict{
		Entity:    mutation.Entity,
		RecordKey: mutation.RecordKey,
		Local:     mutation.Payload,
		Remote:    remote,
		Timestamp: s.now(),
	})
	if saveErr != nil {
		return saveErr
	}
	summary.Conflicts++

	localWins := mutation.Timestamp > remote.LastModified()

	log.Info().
		Str("func", "*queueSyncer.handleConflict").
		Str("entity", mutation.Entity).
		Str("record_key", mutation.RecordKey).
		Bool("local_wins", localWins).
		Msg("conflict detected during drain")

	if !localWins {
		// remote wins: its version overwrites the optimistic local state
		// and the local mutation is consumed
		s.stamp(remote)
		if saveErr := s.records.Save(ctx, mutation.Entity, remote); saveErr != nil {
			return saveErr
		}
		if markErr := s.mutations.MarkSynced(ctx, mutation.ID); markErr != nil {
			return markErr
		}
		return s.conflicts.MarkResolved(ctx, saved.ID)
	}

	if mutation.Action == models.ActionDelete {
		if err = s.gateway.ForceRemove(ctx, mutation.Entity, mutation.RecordKey); err != nil && !errors.Is(err, gateway.ErrNotFound) {
			return err
		}
		if delErr := s.records.Delete(ctx, mutation.Entity, mutation.RecordKey); delErr != nil {
			return delErr
		}
		if markErr := s.mutations.MarkSynced(ctx, mutation.ID); markErr != nil {
			return markErr
		}
		summary.Applied++
		return s.conflicts.MarkResolved(ctx, saved.ID)
	}

	forced, err := s.gateway.ForceUpdate(ctx, mutation.Entity, mutation.RecordKey, mutation.Payload.Export())
	if err != nil {
		return err
	}
	if ackErr := s.acknowledge(ctx, mutation, forced, summary); ackErr != nil {
		return ackErr
	}
	return s.conflicts.MarkResolved(ctx, saved.ID)
}

// acknowledge persists the server's authoritative version and marks the
// mutation as drained.
func (s *queueSyncer) acknowledge(ctx context.Context, mutation models.Mutation, remote models.Record, summary *models.SyncSummary) error {
	s.stamp(remote)
	if saveErr := s.records.Save(ctx, mutation.Entity, remote); saveErr != nil {
		return saveErr
	}
	if markErr := s.mutations.MarkSynced(ctx, mutation.ID); markErr != nil {
		return markErr
	}
	summary.Applied++
	return nil
}

func (s *queueSyncer) stamp(record models.Record) {
	ts := record.LastModified()
	if ts == 0 {
		ts = s.now()
	}
	record.Touch(ts)
}
