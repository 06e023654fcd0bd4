package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nmalikova/caseline/internal/logger"
	"github.com/nmalikova/caseline/models"
)

// conflictRepository is the SQLite-backed implementation of
// [ConflictRepository].
type conflictRepository struct {
	*DB
	logger *logger.Logger
}

// NewConflictRepository constructs a [ConflictRepository] backed by the
// provided database connection and logger.
func NewConflictRepository(db *DB, logger *logger.Logger) ConflictRepository {
	logger.Debug().Msg("creating conflict repository")
	return &conflictRepository{
		DB:     db,
		logger: logger,
	}
}

// Save appends a conflict and returns it with the assigned ID.
func (r *conflictRepository) Save(ctx context.Context, conflict models.Conflict) (models.Conflict, error) {
	log := logger.FromContext(ctx)

	local, err := json.Marshal(conflict.Local)
	if err != nil {
		return models.Conflict{}, fmt.Errorf("%w: %w", ErrEncodingBody, err)
	}
	remote, err := json.Marshal(conflict.Remote)
	if err != nil {
		return models.Conflict{}, fmt.Errorf("%w: %w", ErrEncodingBody, err)
	}

	query, args, err := buildInsertConflictQuery(ctx, conflict, string(local), string(remote))
	if err != nil {
		return models.Conflict{}, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		log.Err(err).
			Str("func", "*conflictRepository.Save").
			Str("entity", conflict.Entity).
			Str("record_key", conflict.RecordKey).
			Msg("failed to insert conflict")
		return models.Conflict{}, fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return models.Conflict{}, fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}
	conflict.ID = id

	return conflict, nil
}

// Get returns the conflict with the given ID.
func (r *conflictRepository) Get(ctx context.Context, id int64) (models.Conflict, error) {
	log := logger.FromContext(ctx)

	row := r.DB.QueryRowContext(ctx,
		`SELECT id, entity, record_key, local, remote, ts, resolved FROM conflicts WHERE id = ?`, id)

	conflict, err := scanConflictRow(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Conflict{}, fmt.Errorf("conflict %d: %w", id, ErrConflictNotFound)
		}
		log.Err(err).
			Str("func", "*conflictRepository.Get").
			Int64("conflict_id", id).
			Msg("failed to query conflict")
		return models.Conflict{}, err
	}

	return conflict, nil
}

// GetAll returns all stored conflicts, unresolved first.
func (r *conflictRepository) GetAll(ctx context.Context) ([]models.Conflict, error) {
	log := logger.FromContext(ctx)

	query, args, err := buildSelectConflictsQuery(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		log.Err(err).
			Str("func", "*conflictRepository.GetAll").
			Msg("failed to query conflicts")
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	defer rows.Close()

	results := make([]models.Conflict, 0, 10)

	for rows.Next() {
		conflict, scanErr := scanConflictRow(rows.Scan)
		if scanErr != nil {
			log.Err(scanErr).
				Str("func", "*conflictRepository.GetAll").
				Msg("failed to scan conflict row")
			return nil, scanErr
		}
		results = append(results, conflict)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrScanningRows, rowsErr)
	}

	return results, nil
}

func scanConflictRow(scan func(...any) error) (models.Conflict, error) {
	var (
		conflict models.Conflict
		local    string
		remote   string
	)

	if err := scan(
		&conflict.ID,
		&conflict.Entity,
		&conflict.RecordKey,
		&local,
		&remote,
		&conflict.Timestamp,
		&conflict.Resolved,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Conflict{}, err
		}
		return models.Conflict{}, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}

	if err := json.Unmarshal([]byte(local), &conflict.Local); err != nil {
		return models.Conflict{}, fmt.Errorf("%w: %w", ErrDecodingBody, err)
	}
	if err := json.Unmarshal([]byte(remote), &conflict.Remote); err != nil {
		return models.Conflict{}, fmt.Errorf("%w: %w", ErrDecodingBody, err)
	}

	return conflict, nil
}

// MarkResolved flags a conflict as resolved.
func (r *conflictRepository) MarkResolved(ctx context.Context, id int64) error {
	log := logger.FromContext(ctx)

	res, err := r.DB.ExecContext(ctx, `UPDATE conflicts SET resolved = 1 WHERE id = ?`, id)
	if err != nil {
		log.Err(err).
			Str("func", "*conflictRepository.MarkResolved").
			Int64("conflict_id", id).
			Msg("failed to mark conflict resolved")
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}
	if affected == 0 {
		return fmt.Errorf("conflict %d: %w", id, ErrConflictNotFound)
	}

	return nil
}

// Clear deletes resolved conflicts.
func (r *conflictRepository) Clear(ctx context.Context) error {
	log := logger.FromContext(ctx)

	if _, err := r.DB.ExecContext(ctx, `DELETE FROM conflicts WHERE resolved = 1`); err != nil {
		log.Err(err).
			Str("func", "*conflictRepository.Clear").
			Msg("failed to clear resolved conflicts")
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}

	return nil
}
