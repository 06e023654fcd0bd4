package store

import (
	"database/sql"

	"github.com/nmalikova/caseline/internal/logger"
	"github.com/nmalikova/caseline/migrations"
)

type DB struct {
	*sql.DB
	logger *logger.Logger
}

func (db *DB) Migrate() error {
	return migrations.Migrate(db.DB)
}
