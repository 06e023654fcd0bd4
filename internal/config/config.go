// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Nadezhda Malikova

package config

import (
	"time"
)

// StructuredConfig is the top-level configuration container for the caseline
// client. It aggregates all sub-configurations and is populated by merging
// values from environment variables, command-line flags, and an optional
// JSON file.
//
// Struct tags:
//   - envPrefix — prefix applied to all nested env tag lookups (caarlos0/env).
//   - env       — direct environment variable name for scalar fields.
type StructuredConfig struct {
	// Gateway holds the remote API address and request timeout used by the
	// network gateway.
	Gateway Gateway `envPrefix:"GATEWAY_"`

	// Storage holds configuration for the local durable store.
	Storage Storage `envPrefix:"STORAGE_"`

	// Workers holds background synchronization settings.
	Workers Workers `envPrefix:"WORKERS_"`

	// Preload holds session-start bulk fetch settings.
	Preload Preload `envPrefix:"PRELOAD_"`

	// Session holds the externally issued credential and the role used to
	// pick the preload entity set.
	Session Session `envPrefix:"SESSION_"`

	// JSONFilePath is the optional path to a JSON configuration file.
	// When non-empty, the file is parsed and merged on top of the values
	// already loaded from environment variables and flags.
	// Populated via the CONFIG environment variable or the -c / -config flag.
	JSONFilePath string `env:"CONFIG"`
}

// Gateway holds network settings for the remote CRUD API.
type Gateway struct {
	// Address is the base URL of the remote API, e.g. "https://api.example.org".
	Address string `env:"ADDRESS"`
	// RequestTimeout is the per-request timeout for outbound calls.
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"15s"`
}

// Storage groups the configuration for the local persistence backend.
type Storage struct {
	// DB holds the local SQLite database settings.
	DB DB `envPrefix:"DB_"`
}

// DB contains the local database connection settings.
type DB struct {
	// DSN is the SQLite database file path.
	DSN string `env:"DSN"`
}

// Workers holds configuration for the background sync scheduler.
type Workers struct {
	// SyncInterval defines how often the background sync cycle runs.
	SyncInterval time.Duration `env:"SYNC_INTERVAL" envDefault:"5m"`
	// RefreshLimit bounds the page size used when refreshing critical
	// collections after a drain.
	RefreshLimit int `env:"REFRESH_LIMIT" envDefault:"100"`
	// CriticalCollections lists the collections refreshed on every cycle to
	// keep offline reads fresh.
	CriticalCollections []string `env:"CRITICAL_COLLECTIONS" envSeparator:"," envDefault:"cases,students"`
}

// Preload holds configuration for the one-shot session-start preload.
type Preload struct {
	// Limit bounds the number of records fetched per entity.
	Limit int `env:"LIMIT" envDefault:"200"`
	// Entities lists the entities preloaded for every session.
	Entities []string `env:"ENTITIES" envSeparator:"," envDefault:"cases,students,evidence"`
	// AdminEntities lists additional entities preloaded for admin sessions.
	AdminEntities []string `env:"ADMIN_ENTITIES" envSeparator:"," envDefault:"users"`
}

// Session holds the authenticated session identity. The token is issued by
// an external auth flow; this client only attaches it to outbound requests.
type Session struct {
	// Token is the opaque bearer token. Empty means unauthenticated.
	Token string `env:"TOKEN"`
	// Role selects the preload entity set ("admin" widens it).
	Role string `env:"ROLE" envDefault:"teacher"`
}

// GetStructuredConfig loads, merges, and validates the application
// configuration from all available sources in the following priority order
// (last source wins for non-zero fields):
//  1. Environment variables
//  2. Command-line flags
//  3. JSON file (path resolved from sources 1 and 2)
//
// Returns a fully populated *StructuredConfig or an error if any source
// fails to load or the final config fails validation.
func GetStructuredConfig() (*StructuredConfig, error) {
	return newConfigBuilder().
		withEnv().
		withFlags().
		withJSON().
		build()
}
