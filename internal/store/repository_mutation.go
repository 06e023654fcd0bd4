package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/nmalikova/caseline/internal/logger"
	"github.com/nmalikova/caseline/models"
)

// mutationRepository is the SQLite-backed implementation of
// [MutationRepository]. The "mutation_queue" table is the engine's
// write-ahead log: rows are appended on every offline write and removed
// only after the server acknowledges them.
type mutationRepository struct {
	*DB
	logger *logger.Logger
}

// NewMutationRepository constructs a [MutationRepository] backed by the
// provided database connection and logger.
func NewMutationRepository(db *DB, logger *logger.Logger) MutationRepository {
	logger.Debug().Msg("creating mutation repository")
	return &mutationRepository{
		DB:     db,
		logger: logger,
	}
}

// Enqueue appends a mutation and returns it with the assigned queue ID.
func (r *mutationRepository) Enqueue(ctx context.Context, mutation models.Mutation) (models.Mutation, error) {
	log := logger.FromContext(ctx)

	payload, err := json.Marshal(mutation.Payload)
	if err != nil {
		return models.Mutation{}, fmt.Errorf("%w: %w", ErrEncodingBody, err)
	}

	query, args, err := buildInsertMutationQuery(ctx, mutation, string(payload))
	if err != nil {
		return models.Mutation{}, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		log.Err(err).
			Str("func", "*mutationRepository.Enqueue").
			Str("entity", mutation.Entity).
			Str("record_key", mutation.RecordKey).
			Str("action", string(mutation.Action)).
			Msg("failed to enqueue mutation")
		return models.Mutation{}, fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return models.Mutation{}, fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}
	mutation.ID = id

	return mutation, nil
}

// Pending returns unsynced, unfailed mutations in queue order.
func (r *mutationRepository) Pending(ctx context.Context) ([]models.Mutation, error) {
	return r.selectMutations(ctx, false)
}

// Failed returns mutations rejected by the server, in queue order.
func (r *mutationRepository) Failed(ctx context.Context) ([]models.Mutation, error) {
	return r.selectMutations(ctx, true)
}

func (r *mutationRepository) selectMutations(ctx context.Context, failed bool) ([]models.Mutation, error) {
	log := logger.FromContext(ctx)

	query, args, err := buildSelectMutationsQuery(ctx, failed)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		log.Err(err).
			Str("func", "*mutationRepository.selectMutations").
			Bool("failed", failed).
			Msg("failed to query mutation queue")
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	defer rows.Close()

	results := make([]models.Mutation, 0, 20)

	for rows.Next() {
		mutation, scanErr := scanMutation(rows)
		if scanErr != nil {
			log.Err(scanErr).
				Str("func", "*mutationRepository.selectMutations").
				Msg("failed to scan mutation row")
			return nil, scanErr
		}
		results = append(results, mutation)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrScanningRows, rowsErr)
	}

	return results, nil
}

func scanMutation(rows *sql.Rows) (models.Mutation, error) {
	var (
		mutation   models.Mutation
		action     string
		payload    string
		failReason sql.NullString
	)

	if err := rows.Scan(
		&mutation.ID,
		&mutation.Entity,
		&mutation.RecordKey,
		&action,
		&payload,
		&mutation.Timestamp,
		&mutation.Synced,
		&mutation.Failed,
		&failReason,
	); err != nil {
		return models.Mutation{}, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}

	mutation.Action = models.MutationAction(action)
	mutation.FailReason = failReason.String

	if payload != "" {
		if err := json.Unmarshal([]byte(payload), &mutation.Payload); err != nil {
			return models.Mutation{}, fmt.Errorf("%w: %w", ErrDecodingBody, err)
		}
	}

	return mutation, nil
}

// MarkSynced flags a mutation as acknowledged.
func (r *mutationRepository) MarkSynced(ctx context.Context, id int64) error {
	return r.setFlags(ctx, id, "*mutationRepository.MarkSynced",
		`UPDATE mutation_queue SET synced = 1 WHERE id = ?`, id)
}

// MarkFailed flags a mutation as rejected and records the reason.
func (r *mutationRepository) MarkFailed(ctx context.Context, id int64, reason string) error {
	return r.setFlags(ctx, id, "*mutationRepository.MarkFailed",
		`UPDATE mutation_queue SET failed = 1, fail_reason = ? WHERE id = ?`, reason, id)
}

// ResetFailed clears the failed flag so the mutation re-enters the pending
// set on the next drain.
func (r *mutationRepository) ResetFailed(ctx context.Context, id int64) error {
	return r.setFlags(ctx, id, "*mutationRepository.ResetFailed",
		`UPDATE mutation_queue SET failed = 0, fail_reason = '' WHERE id = ?`, id)
}

func (r *mutationRepository) setFlags(ctx context.Context, id int64, funcName, query string, args ...any) error {
	log := logger.FromContext(ctx)

	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		log.Err(err).
			Str("func", funcName).
			Int64("mutation_id", id).
			Msg("failed to update mutation flags")
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}
	if affected == 0 {
		return fmt.Errorf("mutation %d: %w", id, ErrMutationNotFound)
	}

	return nil
}

// RewriteKey retargets queued mutations from a locally generated key to the
// server-assigned one so later queue entries land on the right record.
func (r *mutationRepository) RewriteKey(ctx context.Context, entity, oldKey, newKey string) error {
	log := logger.FromContext(ctx)

	query, args, err := buildRewriteMutationKeyQuery(ctx, entity, oldKey, newKey)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	if _, err = r.DB.ExecContext(ctx, query, args...); err != nil {
		log.Err(err).
			Str("func", "*mutationRepository.RewriteKey").
			Str("entity", entity).
			Str("record_key", oldKey).
			Str("new_key", newKey).
			Msg("failed to rewrite mutation keys")
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}

	return nil
}

// Purge deletes acknowledged mutations from the queue.
func (r *mutationRepository) Purge(ctx context.Context) error {
	log := logger.FromContext(ctx)

	if _, err := r.DB.ExecContext(ctx, `DELETE FROM mutation_queue WHERE synced = 1`); err != nil {
		log.Err(err).
			Str("func", "*mutationRepository.Purge").
			Msg("failed to purge synced mutations")
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}

	return nil
}

// CountPending returns the number of pending mutations.
func (r *mutationRepository) CountPending(ctx context.Context) (int, error) {
	var count int
	err := r.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM mutation_queue WHERE synced = 0 AND failed = 0`,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	return count, nil
}
