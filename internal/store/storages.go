package store

import (
	"context"
	"fmt"

	"github.com/nmalikova/caseline/internal/config"
	"github.com/nmalikova/caseline/internal/logger"
)

// Storages groups all local storage repositories into a single value that
// can be passed around the service layer.
type Storages struct {
	// Records is the SQLite-backed cache of records mirrored from the
	// remote API.
	Records RecordRepository
	// Mutations is the write-ahead queue of local mutations.
	Mutations MutationRepository
	// Conflicts holds conflicts detected during drain.
	Conflicts ConflictRepository
	// Settings holds engine metadata such as refresh watermarks.
	Settings SettingsRepository
}

// NewStorages initialises the local storage layer using the supplied
// configuration and logger. It performs the following steps:
//  1. Opens an SQLite connection to the file path specified in cfg.DB.DSN,
//     creating the database file if it does not yet exist.
//  2. Runs pending schema migrations via [DB.Migrate].
//  3. Constructs and returns a [Storages] value wired to fresh
//     repositories.
//
// Returns an error (wrapping [ErrStorageUnavailable] where applicable) if
// the database connection cannot be established or if migration fails.
func NewStorages(cfg config.ClientStorage, logger *logger.Logger) (*Storages, error) {
	logger.Info().Msg("creating new storages...")

	db, err := NewConnectSQLite(context.Background(), cfg.DB, logger)
	if err != nil {
		return nil, fmt.Errorf("sqlite connection error: %w", err)
	}

	if err := db.Migrate(); err != nil {
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return &Storages{
		Records:   NewRecordRepository(db, logger),
		Mutations: NewMutationRepository(db, logger),
		Conflicts: NewConflictRepository(db, logger),
		Settings:  NewSettingsRepository(db, logger),
	}, nil
}
