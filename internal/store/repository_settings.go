package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/nmalikova/caseline/internal/logger"
	"github.com/nmalikova/caseline/models"
)

// settingsRepository is the SQLite-backed implementation of
// [SettingsRepository].
type settingsRepository struct {
	*DB
	logger *logger.Logger
}

// NewSettingsRepository constructs a [SettingsRepository] backed by the
// provided database connection and logger.
func NewSettingsRepository(db *DB, logger *logger.Logger) SettingsRepository {
	logger.Debug().Msg("creating settings repository")
	return &settingsRepository{
		DB:     db,
		logger: logger,
	}
}

// Set upserts a setting.
func (r *settingsRepository) Set(ctx context.Context, setting models.Setting) error {
	log := logger.FromContext(ctx)

	if setting.Category == "" {
		setting.Category = models.SettingCategorySync
	}

	query, args, err := buildUpsertSettingQuery(ctx, setting)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	if _, err = r.DB.ExecContext(ctx, query, args...); err != nil {
		log.Err(err).
			Str("func", "*settingsRepository.Set").
			Str("key", setting.Key).
			Msg("failed to upsert setting")
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}

	return nil
}

// Get returns the setting with the given key.
func (r *settingsRepository) Get(ctx context.Context, key string) (models.Setting, error) {
	log := logger.FromContext(ctx)

	var setting models.Setting
	err := r.DB.QueryRowContext(ctx,
		`SELECT key, value, category FROM settings WHERE key = ?`, key,
	).Scan(&setting.Key, &setting.Value, &setting.Category)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Setting{}, fmt.Errorf("%s: %w", key, ErrSettingNotFound)
		}
		log.Err(err).
			Str("func", "*settingsRepository.Get").
			Str("key", key).
			Msg("failed to query setting")
		return models.Setting{}, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	return setting, nil
}

// GetByCategory returns every setting in the category.
func (r *settingsRepository) GetByCategory(ctx context.Context, category string) ([]models.Setting, error) {
	log := logger.FromContext(ctx)

	rows, err := r.DB.QueryContext(ctx,
		`SELECT key, value, category FROM settings WHERE category = ? ORDER BY key`, category)
	if err != nil {
		log.Err(err).
			Str("func", "*settingsRepository.GetByCategory").
			Str("category", category).
			Msg("failed to query settings")
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	defer rows.Close()

	results := make([]models.Setting, 0, 10)

	for rows.Next() {
		var setting models.Setting
		if scanErr := rows.Scan(&setting.Key, &setting.Value, &setting.Category); scanErr != nil {
			return nil, fmt.Errorf("%w: %w", ErrScanningRow, scanErr)
		}
		results = append(results, setting)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrScanningRows, rowsErr)
	}

	return results, nil
}

// Delete removes a setting if present.
func (r *settingsRepository) Delete(ctx context.Context, key string) error {
	log := logger.FromContext(ctx)

	if _, err := r.DB.ExecContext(ctx, `DELETE FROM settings WHERE key = ?`, key); err != nil {
		log.Err(err).
			Str("func", "*settingsRepository.Delete").
			Str("key", key).
			Msg("failed to delete setting")
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}

	return nil
}
