// Package store implements the durable local layer of the engine on top of
// an embedded SQLite database: cached records, the write-ahead mutation
// queue, detected conflicts and engine settings.
package store

import (
	"context"

	"github.com/nmalikova/caseline/models"
)

//go:generate mockgen -source=interfaces.go -destination=../mock/store_mock.go -package=mock

// RecordRepository is the low-level cache of records mirrored from the
// remote API, keyed by (collection, record key). Bodies are stored as JSON
// together with the engine metadata the sync layer needs.
type RecordRepository interface {
	// Save upserts a single record into the collection.
	Save(ctx context.Context, collection string, record models.Record) error
	// SaveAll upserts a batch of records into the collection. Records are
	// applied independently: a record that cannot be stored does not drop
	// the rest of the batch, its error is collected into the returned one.
	SaveAll(ctx context.Context, collection string, records []models.Record) error
	// Get returns the record with the given key, soft-deleted or not.
	// Returns [ErrRecordNotFound] when no row matches.
	Get(ctx context.Context, collection, key string) (models.Record, error)
	// GetAll returns every non-deleted record in the collection.
	GetAll(ctx context.Context, collection string) ([]models.Record, error)
	// GetAllBy returns every non-deleted record in the collection whose
	// body field matches value. field is a top-level JSON field name.
	GetAllBy(ctx context.Context, collection, field string, value any) ([]models.Record, error)
	// SoftDelete marks the record deleted at the given unix-milli time,
	// keeping its row so the deletion can be inspected or undone until the
	// server acknowledges. Returns the stored tombstone. A missing record
	// yields a tombstone that carries only the key.
	SoftDelete(ctx context.Context, collection, key string, at int64) (models.Record, error)
	// Delete removes the row entirely.
	Delete(ctx context.Context, collection, key string) error
	// Clear removes every row of the collection.
	Clear(ctx context.Context, collection string) error
	// Rename moves a record to a new primary key, used when a server
	// acknowledgement replaces a locally generated placeholder key.
	Rename(ctx context.Context, collection, oldKey, newKey string) error
	// Count returns the number of non-deleted records in the collection.
	Count(ctx context.Context, collection string) (int, error)
}

// MutationRepository is the write-ahead queue of local mutations awaiting
// server acknowledgement. Queue order is the autoincremented row id.
type MutationRepository interface {
	// Enqueue appends a mutation and returns it with the assigned ID.
	Enqueue(ctx context.Context, mutation models.Mutation) (models.Mutation, error)
	// Pending returns unsynced, unfailed mutations in queue order.
	Pending(ctx context.Context) ([]models.Mutation, error)
	// Failed returns mutations that were rejected by the server.
	Failed(ctx context.Context) ([]models.Mutation, error)
	// MarkSynced flags a mutation as acknowledged by the server.
	MarkSynced(ctx context.Context, id int64) error
	// MarkFailed flags a mutation as rejected and records the reason.
	MarkFailed(ctx context.Context, id int64, reason string) error
	// ResetFailed clears the failed flag so the mutation re-enters the
	// pending set.
	ResetFailed(ctx context.Context, id int64) error
	// RewriteKey retargets queued mutations from a locally generated key to
	// the server-assigned one.
	RewriteKey(ctx context.Context, entity, oldKey, newKey string) error
	// Purge deletes synced mutations from the queue.
	Purge(ctx context.Context) error
	// CountPending returns the number of pending mutations.
	CountPending(ctx context.Context) (int, error)
}

// ConflictRepository stores conflicts detected during drain for later
// inspection and manual resolution.
type ConflictRepository interface {
	// Save appends a conflict and returns it with the assigned ID.
	Save(ctx context.Context, conflict models.Conflict) (models.Conflict, error)
	// Get returns the conflict with the given ID.
	// Returns [ErrConflictNotFound] when no row matches.
	Get(ctx context.Context, id int64) (models.Conflict, error)
	// GetAll returns all stored conflicts, unresolved first, newest first
	// within each group.
	GetAll(ctx context.Context) ([]models.Conflict, error)
	// MarkResolved flags a conflict as resolved.
	MarkResolved(ctx context.Context, id int64) error
	// Clear deletes resolved conflicts.
	Clear(ctx context.Context) error
}

// SettingsRepository stores engine metadata such as per-collection refresh
// watermarks and session state.
type SettingsRepository interface {
	// Set upserts a setting.
	Set(ctx context.Context, setting models.Setting) error
	// Get returns the setting with the given key.
	// Returns [ErrSettingNotFound] when no row matches.
	Get(ctx context.Context, key string) (models.Setting, error)
	// GetByCategory returns every setting in the category.
	GetByCategory(ctx context.Context, category string) ([]models.Setting, error)
	// Delete removes a setting if present.
	Delete(ctx context.Context, key string) error
}
