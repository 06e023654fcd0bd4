package config

import (
	"fmt"
	"time"
)

// ClientGateway holds network settings used by the client transport layer.
type ClientGateway struct {
	// Address is the base URL of the remote CRUD API.
	Address string
	// RequestTimeout is the default timeout for outbound client requests.
	RequestTimeout time.Duration
}

// ClientDB contains local database connection settings for the client.
type ClientDB struct {
	// DSN is the SQLite database file path used by the client.
	DSN string
}

// ClientStorage groups client storage backend settings.
type ClientStorage struct {
	// DB holds local database settings.
	DB ClientDB
}

// ClientWorkers contains client background worker settings.
type ClientWorkers struct {
	// SyncInterval defines how often the background sync cycle should run.
	SyncInterval time.Duration
	// RefreshLimit bounds the page size of post-drain collection refreshes.
	RefreshLimit int
	// CriticalCollections lists the collections refreshed on every cycle.
	CriticalCollections []string
}

// ClientPreload contains session-start preload settings.
type ClientPreload struct {
	// Limit bounds the number of records fetched per entity.
	Limit int
	// Entities lists the entities preloaded for every session.
	Entities []string
	// AdminEntities lists additional entities preloaded for admin sessions.
	AdminEntities []string
}

// ClientSession contains the session identity used by the client runtime.
type ClientSession struct {
	// Token is the opaque bearer token attached to outbound requests.
	Token string
	// Role selects the preload entity set.
	Role string
}

// ClientConfig is the top-level client configuration assembled from
// [StructuredConfig].
type ClientConfig struct {
	// Gateway contains remote API address and timeouts.
	Gateway ClientGateway
	// Storage contains local storage settings.
	Storage ClientStorage
	// Workers contains background job settings.
	Workers ClientWorkers
	// Preload contains session preload settings.
	Preload ClientPreload
	// Session contains the session identity.
	Session ClientSession
}

// GetClientConfig builds and validates a client-specific config view from the
// merged structured configuration.
//
// It loads the base config via [GetStructuredConfig], maps only the fields
// relevant to the client runtime, and validates the resulting [ClientConfig].
func GetClientConfig() (*ClientConfig, error) {
	cfg, err := GetStructuredConfig()
	if err != nil {
		return nil, fmt.Errorf("error get structured config: %w", err)
	}

	clientCfg := &ClientConfig{
		Gateway: ClientGateway{
			Address:        cfg.Gateway.Address,
			RequestTimeout: cfg.Gateway.RequestTimeout,
		},
		Storage: ClientStorage{
			DB: ClientDB{
				DSN: cfg.Storage.DB.DSN,
			},
		},
		Workers: ClientWorkers{
			SyncInterval:        cfg.Workers.SyncInterval,
			RefreshLimit:        cfg.Workers.RefreshLimit,
			CriticalCollections: cfg.Workers.CriticalCollections,
		},
		Preload: ClientPreload{
			Limit:         cfg.Preload.Limit,
			Entities:      cfg.Preload.Entities,
			AdminEntities: cfg.Preload.AdminEntities,
		},
		Session: ClientSession{
			Token: cfg.Session.Token,
			Role:  cfg.Session.Role,
		},
	}

	return clientCfg, clientCfg.validate()
}
