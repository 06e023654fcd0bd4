// Package service implements the offline-first engine on top of the storage
// and gateway layers: the data facade applications read and write through,
// the queue synchronizer, conflict resolution, the background scheduler and
// the session preloader.
package service

import (
	"context"

	"github.com/nmalikova/caseline/models"
)

//go:generate mockgen -source=interfaces.go -destination=../mock/service_mock.go -package=mock

// Result is the envelope returned by facade operations. Flags tell the
// caller how the data was obtained so UI layers can surface degraded-mode
// indicators without inspecting errors.
type Result struct {
	// Record is the single record for Get/Post/Put/Delete operations.
	Record models.Record
	// Records is the collection for List operations.
	Records []models.Record
	// Cached reports that the data came from the local store rather than
	// the remote API.
	Cached bool
	// Offline reports that the remote API was unreachable when the
	// operation ran.
	Offline bool
	// Queued reports that a write could not reach the remote API and was
	// captured in the mutation queue instead.
	Queued bool
}

// Facade is the offline-aware data access surface. Reads are network-first
// with cache fallback; writes are network-first with queue-on-failure and an
// optimistic local apply so subsequent reads observe the change immediately.
type Facade interface {
	// Get returns a single record. Online it refreshes the cache from the
	// remote API; offline it serves the cached copy and returns
	// [ErrNoDataOffline] when there is none.
	Get(ctx context.Context, entity, key string) (Result, error)
	// List returns the non-deleted records of a collection, refreshed from
	// the remote API when online.
	List(ctx context.Context, entity string) (Result, error)
	// ListBy is List narrowed to records whose top-level field equals value.
	ListBy(ctx context.Context, entity, field string, value any) (Result, error)
	// Post creates a record. When queued, the returned record carries a
	// locally generated placeholder key.
	Post(ctx context.Context, entity string, payload models.Record) (Result, error)
	// Put updates a record by key.
	Put(ctx context.Context, entity, key string, payload models.Record) (Result, error)
	// Delete removes a record by key. When queued, the record is
	// soft-deleted locally until the server acknowledges.
	Delete(ctx context.Context, entity, key string) (Result, error)
	// PendingCount returns the number of mutations awaiting drain.
	PendingCount(ctx context.Context) (int, error)
	// FailedMutations returns mutations the server rejected.
	FailedMutations(ctx context.Context) ([]models.Mutation, error)
	// Retry re-queues a failed mutation for the next drain.
	Retry(ctx context.Context, id int64) error
}

// Syncer drains the mutation queue against the remote API.
type Syncer interface {
	// Drain replays pending mutations in queue order. Only one drain runs
	// at a time; a call that finds another drain in flight returns
	// [ErrSyncInFlight] without waiting. Mutations whose record hit a
	// transient failure earlier in the same drain are skipped to preserve
	// per-record ordering.
	Drain(ctx context.Context) (models.SyncSummary, error)
}

// ConflictService exposes stored conflicts and manual resolution on top of
// the automatic last-write-wins applied during drain.
type ConflictService interface {
	// List returns stored conflicts, unresolved first.
	List(ctx context.Context) ([]models.Conflict, error)
	// Resolve settles one conflict: useLocal pushes the local version to
	// the server with force, otherwise the remote version overwrites the
	// local cache.
	Resolve(ctx context.Context, id int64, useLocal bool) error
	// ResolveAll settles every unresolved conflict the same way.
	ResolveAll(ctx context.Context, useLocal bool) error
	// Clear deletes resolved conflict entries.
	Clear(ctx context.Context) error
}

// Scheduler runs the periodic background sync cycle: drain the queue, then
// refresh the critical collections.
type Scheduler interface {
	// Start launches the background goroutine. The first cycle runs
	// immediately; later cycles run every configured interval. Any
	// previously running scheduler is stopped first.
	Start(ctx context.Context)
	// Stop cancels future cycles and blocks until an in-flight cycle
	// completes.
	Stop()
}

// Preloader warms the local cache at session start so the application is
// usable if connectivity drops right after login.
type Preloader interface {
	// Preload fetches the configured entity sets for the given role
	// concurrently. Per-entity failures are reported in the result and do
	// not abort the other entities.
	Preload(ctx context.Context, role string) PreloadReport
}

// PreloadReport summarises a preload run.
type PreloadReport struct {
	// Loaded maps entity name to the number of records cached.
	Loaded map[string]int
	// Failed maps entity name to the error that stopped it.
	Failed map[string]error
}
