package config

import "errors"

// Validation errors returned by [ClientConfig.validate] when required
// configuration groups are incomplete or invalid.
var (
	// ErrInvalidGatewayConfigs indicates invalid network gateway settings
	// (for example, missing base URL or zero request timeout).
	ErrInvalidGatewayConfigs = errors.New("invalid gateway configuration")
	// ErrInvalidStorageConfigs indicates invalid local storage settings
	// (for example, empty DSN or unsupported in-memory DSN).
	ErrInvalidStorageConfigs = errors.New("invalid storage configuration")
	// ErrInvalidWorkerConfigs indicates invalid background worker settings
	// (for example, zero sync interval or refresh limit).
	ErrInvalidWorkerConfigs = errors.New("invalid worker configuration")
	// ErrInvalidPreloadConfigs indicates invalid preload settings
	// (for example, a non-positive per-entity limit).
	ErrInvalidPreloadConfigs = errors.New("invalid preload configuration")
)
