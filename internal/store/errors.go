package store

import "errors"

// Sentinel errors returned by repository methods to signal well-known failure
// conditions. Callers should use [errors.Is] to match against these values.
var (
	// ErrStorageUnavailable is returned when the local database cannot be
	// opened, created or reached. The engine treats this as fatal: without a
	// durable store there is nothing to fall back to.
	ErrStorageUnavailable = errors.New("local storage unavailable")

	// ErrRecordNotFound is returned when a lookup targets a record that does
	// not exist in the local cache.
	ErrRecordNotFound = errors.New("record not found")

	// ErrMutationNotFound is returned when an update or delete targets a
	// queue entry that does not exist.
	ErrMutationNotFound = errors.New("mutation not found")

	// ErrConflictNotFound is returned when a resolve targets a conflict
	// entry that does not exist.
	ErrConflictNotFound = errors.New("conflict not found")

	// ErrSettingNotFound is returned when a settings key has no stored value.
	ErrSettingNotFound = errors.New("setting not found")
)

// Low-level database operation errors. These are returned (or wrapped) by
// repository methods when a SQL-level operation fails before any domain logic
// can be applied.
var (
	// ErrBuildingSQLQuery is returned when constructing a parameterised SQL
	// query fails.
	ErrBuildingSQLQuery = errors.New("error building sql query")

	// ErrExecutingQuery is returned when executing a SELECT or similar
	// read-only query against the database fails.
	ErrExecutingQuery = errors.New("error executing sql query")

	// ErrExecutingStatement is returned when executing a DML statement
	// (INSERT, UPDATE, DELETE) fails.
	ErrExecutingStatement = errors.New("failed to executing statement")

	// ErrScanningRow is returned when scanning column values from a single
	// result row into a destination fails.
	ErrScanningRow = errors.New("failed to scan row")

	// ErrScanningRows is returned when scanning column values during
	// multi-row iteration fails, typically mid-result-set.
	ErrScanningRows = errors.New("failed to scan rows")

	// ErrEncodingBody is returned when a record or payload cannot be encoded
	// to JSON before being written to the database.
	ErrEncodingBody = errors.New("failed to encode record body")

	// ErrDecodingBody is returned when a stored JSON body cannot be decoded
	// back into a record.
	ErrDecodingBody = errors.New("failed to decode record body")
)
