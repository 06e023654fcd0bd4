package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nmalikova/caseline/internal/gateway"
	"github.com/nmalikova/caseline/internal/logger"
	"github.com/nmalikova/caseline/internal/store"
	"github.com/nmalikova/caseline/models"
)

// conflictService implements [ConflictService].
type conflictService struct {
	records   store.RecordRepository
	conflicts store.ConflictRepository
	gateway   gateway.Gateway
	logger    *logger.Logger

	now func() int64
}

// NewConflictService constructs a [ConflictService] over the given storage
// and gateway layers.
func NewConflictService(storages *store.Storages, gw gateway.Gateway, logger *logger.Logger) ConflictService {
	return &conflictService{
		records:   storages.Records,
		conflicts: storages.Conflicts,
		gateway:   gw,
		logger:    logger,
		now:       func() int64 { return time.Now().UnixMilli() },
	}
}

// List implements [ConflictService].
func (c *conflictService) List(ctx context.Context) ([]models.Conflict, error) {
	return c.conflicts.GetAll(ctx)
}

// Resolve implements [ConflictService]. A conflict the drain has already
// settled automatically may be resolved again: the operator's explicit choice
// overrides the automatic outcome.
func (c *conflictService) Resolve(ctx context.Context, id int64, useLocal bool) error {
	conflict, err := c.conflicts.Get(ctx, id)
	if err != nil {
		return err
	}

	if err = c.settle(ctx, conflict, useLocal); err != nil {
		return err
	}

	return c.conflicts.MarkResolved(ctx, id)
}

// ResolveAll implements [ConflictService].
func (c *conflictService) ResolveAll(ctx context.Context, useLocal bool) error {
	conflicts, err := c.conflicts.GetAll(ctx)
	if err != nil {
		return err
	}

	for _, conflict := range conflicts {
		if conflict.Resolved {
			continue
		}
		if err = c.settle(ctx, conflict, useLocal); err != nil {
			return fmt.Errorf("resolve conflict %d: %w", conflict.ID, err)
		}
		if err = c.conflicts.MarkResolved(ctx, conflict.ID); err != nil {
			return err
		}
	}

	return nil
}

// Clear implements [ConflictService].
func (c *conflictService) Clear(ctx context.Context) error {
	return c.conflicts.Clear(ctx)
}

// settle applies the chosen side: the local version is force-pushed to the
// server, or the remote version overwrites the local cache.
func (c *conflictService) settle(ctx context.Context, conflict models.Conflict, useLocal bool) error {
	log := logger.FromContext(ctx)

	if useLocal {
		forced, err := c.gateway.ForceUpdate(ctx, conflict.Entity, conflict.RecordKey, conflict.Local.Export())
		if err != nil {
			return err
		}
		c.stampResolved(forced)
		if saveErr := c.records.Save(ctx, conflict.Entity, forced); saveErr != nil {
			return saveErr
		}
	} else {
		remote := conflict.Remote.Clone()
		if _, ok := remote.Key(); !ok {
			// the server side of the conflict was already gone, drop the
			// local copy too
			if delErr := c.records.Delete(ctx, conflict.Entity, conflict.RecordKey); delErr != nil && !errors.Is(delErr, store.ErrRecordNotFound) {
				return delErr
			}
			return nil
		}
		c.stampResolved(remote)
		if saveErr := c.records.Save(ctx, conflict.Entity, remote); saveErr != nil {
			return saveErr
		}
	}

	log.Info().
		Str("func", "*conflictService.settle").
		Str("entity", conflict.Entity).
		Str("record_key", conflict.RecordKey).
		Bool("use_local", useLocal).
		Msg("conflict settled")

	return nil
}

func (c *conflictService) stampResolved(record models.Record) {
	ts := record.LastModified()
	if ts == 0 {
		ts = c.now()
	}
	record.Touch(ts)
}
