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

// recordRepository is the SQLite-backed implementation of [RecordRepository].
// It keeps cached records in the "records" table, one row per
// (collection, record_key), with the full JSON body alongside mirrored
// metadata columns used for filtering.
//
// All methods obtain a context-scoped logger via [logger.FromContext] for
// structured tracing of database interactions.
type recordRepository struct {
	*DB
	logger *logger.Logger
}

// NewRecordRepository constructs a [RecordRepository] backed by the provided
// database connection and logger.
func NewRecordRepository(db *DB, logger *logger.Logger) RecordRepository {
	logger.Debug().Msg("creating record repository")
	return &recordRepository{
		DB:     db,
		logger: logger,
	}
}

// Save upserts one record. The record must carry a primary key.
func (r *recordRepository) Save(ctx context.Context, collection string, record models.Record) error {
	log := logger.FromContext(ctx)

	key, ok := record.Key()
	if !ok {
		return fmt.Errorf("save record in %s: record has no primary key", collection)
	}

	body, err := json.Marshal(record)
	if err != nil {
		log.Err(err).
			Str("func", "*recordRepository.Save").
			Str("collection", collection).
			Str("record_key", key).
			Msg("failed to encode record body")
		return fmt.Errorf("%w: %w", ErrEncodingBody, err)
	}

	query, args, err := buildUpsertRecordQuery(ctx, collection, key, string(body), record)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	if _, err = r.DB.ExecContext(ctx, query, args...); err != nil {
		log.Err(err).
			Str("func", "*recordRepository.Save").
			Str("collection", collection).
			Str("record_key", key).
			Msg("failed to upsert record")
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}

	return nil
}

// SaveAll upserts a batch of records. Each record is applied on its own: one
// bad record does not drop the rest of a refreshed page, its error is
// collected into the joined result instead.
func (r *recordRepository) SaveAll(ctx context.Context, collection string, records []models.Record) error {
	log := logger.FromContext(ctx)

	if len(records) == 0 {
		return nil
	}

	var errs []error

	for _, record := range records {
		key, ok := record.Key()
		if !ok {
			continue
		}

		if err := r.Save(ctx, collection, record); err != nil {
			log.Err(err).
				Str("func", "*recordRepository.SaveAll").
				Str("collection", collection).
				Str("record_key", key).
				Msg("failed to upsert record in batch")
			errs = append(errs, fmt.Errorf("%s/%s: %w", collection, key, err))
		}
	}

	return errors.Join(errs...)
}

// Get returns the record with the given key. Soft-deleted records are
// returned as well; callers inspect the deletion metadata themselves.
func (r *recordRepository) Get(ctx context.Context, collection, key string) (models.Record, error) {
	log := logger.FromContext(ctx)

	query, args, err := buildGetRecordQuery(ctx, collection, key)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	var body string
	if err = r.DB.QueryRowContext(ctx, query, args...).Scan(&body); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s/%s: %w", collection, key, ErrRecordNotFound)
		}
		log.Err(err).
			Str("func", "*recordRepository.Get").
			Str("collection", collection).
			Str("record_key", key).
			Msg("failed to query record")
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	var record models.Record
	if err = json.Unmarshal([]byte(body), &record); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecodingBody, err)
	}

	return record, nil
}

// GetAll returns every non-deleted record in the collection.
func (r *recordRepository) GetAll(ctx context.Context, collection string) ([]models.Record, error) {
	return r.selectRecords(ctx, collection, "", nil)
}

// GetAllBy returns every non-deleted record whose top-level body field
// equals value.
func (r *recordRepository) GetAllBy(ctx context.Context, collection, field string, value any) ([]models.Record, error) {
	return r.selectRecords(ctx, collection, field, value)
}

func (r *recordRepository) selectRecords(ctx context.Context, collection, field string, value any) ([]models.Record, error) {
	log := logger.FromContext(ctx)

	query, args, err := buildSelectCollectionQuery(ctx, collection, field, value)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		log.Err(err).
			Str("func", "*recordRepository.selectRecords").
			Str("collection", collection).
			Msg("failed to query collection")
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	defer rows.Close()

	results := make([]models.Record, 0, 50)

	for rows.Next() {
		var body string
		if scanErr := rows.Scan(&body); scanErr != nil {
			log.Err(scanErr).
				Str("func", "*recordRepository.selectRecords").
				Str("collection", collection).
				Msg("failed to scan record row")
			return nil, fmt.Errorf("%w: %w", ErrScanningRow, scanErr)
		}

		var record models.Record
		if decodeErr := json.Unmarshal([]byte(body), &record); decodeErr != nil {
			return nil, fmt.Errorf("%w: %w", ErrDecodingBody, decodeErr)
		}

		results = append(results, record)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrScanningRows, rowsErr)
	}

	return results, nil
}

// SoftDelete marks the record deleted, keeping the row around. A record that
// was never cached still gets a tombstone so the deletion is visible locally
// until the server acknowledges it.
func (r *recordRepository) SoftDelete(ctx context.Context, collection, key string, at int64) (models.Record, error) {
	record, err := r.Get(ctx, collection, key)
	if err != nil {
		if !errors.Is(err, ErrRecordNotFound) {
			return nil, err
		}
		record = models.Record{}
		record.SetKey(key)
	}

	record.MarkDeleted(at)
	record.Touch(at)

	if err = r.Save(ctx, collection, record); err != nil {
		return nil, err
	}

	return record, nil
}

// Delete removes the row entirely.
func (r *recordRepository) Delete(ctx context.Context, collection, key string) error {
	log := logger.FromContext(ctx)

	query, args, err := buildDeleteRecordQuery(ctx, collection, key)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	if _, err = r.DB.ExecContext(ctx, query, args...); err != nil {
		log.Err(err).
			Str("func", "*recordRepository.Delete").
			Str("collection", collection).
			Str("record_key", key).
			Msg("failed to delete record")
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}

	return nil
}

// Clear drops every cached row of the collection.
func (r *recordRepository) Clear(ctx context.Context, collection string) error {
	log := logger.FromContext(ctx)

	query, args, err := buildClearCollectionQuery(ctx, collection)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	if _, err = r.DB.ExecContext(ctx, query, args...); err != nil {
		log.Err(err).
			Str("func", "*recordRepository.Clear").
			Str("collection", collection).
			Msg("failed to clear collection")
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}

	return nil
}

// Rename moves a record to the server-assigned primary key after a create
// acknowledgement: the body's key field is rewritten and the local flag is
// cleared along the way.
func (r *recordRepository) Rename(ctx context.Context, collection, oldKey, newKey string) error {
	log := logger.FromContext(ctx)

	record, err := r.Get(ctx, collection, oldKey)
	if err != nil {
		return err
	}

	record.SetKey(newKey)
	delete(record, models.FieldLocal)

	body, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrEncodingBody, err)
	}

	if _, err = r.DB.ExecContext(ctx,
		`UPDATE records SET record_key = ?, body = ?, local = 0 WHERE collection = ? AND record_key = ?`,
		newKey, string(body), collection, oldKey,
	); err != nil {
		log.Err(err).
			Str("func", "*recordRepository.Rename").
			Str("collection", collection).
			Str("record_key", oldKey).
			Str("new_key", newKey).
			Msg("failed to rename record")
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}

	return nil
}

// Count returns the number of non-deleted records in the collection.
func (r *recordRepository) Count(ctx context.Context, collection string) (int, error) {
	query, args, err := buildCountRecordsQuery(ctx, collection)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	var count int
	if err = r.DB.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	return count, nil
}
