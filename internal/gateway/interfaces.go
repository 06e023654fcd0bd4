// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Nadezhda Malikova

// Package gateway provides the transport layer for communicating with the
// remote CRUD API that owns the authoritative record state.
//
// The primary abstraction is [Gateway], which decouples the sync engine from
// the HTTP wire format. The package ships an HTTP/REST implementation
// ([NewHTTPGateway]) that talks to generic entity endpoints of the form
// GET|POST|PUT|DELETE {base}/{entity}[/{id}].
//
// Error values defined in errors.go are mapped from HTTP status codes by
// mapHTTPError so that callers can use [errors.Is] for transport-agnostic
// error handling (e.g. [ErrConflict] for 409, [ErrTransient] for timeouts).
package gateway

import (
	"context"

	"github.com/nmalikova/caseline/models"
)

//go:generate mockgen -source=interfaces.go -destination=../mock/gateway_mock.go -package=mock

// TokenSource supplies the bearer token attached to authenticated requests.
// It is called per request so a session layer can rotate credentials without
// reconstructing the gateway. An empty return means no Authorization header.
type TokenSource func() string

// ConnectivityProbe reports whether the device currently has connectivity to
// the remote API. It is injected rather than read from an ambient global so
// tests can simulate connectivity transitions deterministically.
type ConnectivityProbe interface {
	Online() bool
}

// Gateway defines transport-agnostic communication with the remote CRUD API.
// Implementations are responsible for serialisation, authentication header
// management, and mapping transport-level outcomes to the sentinel errors
// defined in this package.
type Gateway interface {
	// Online reports the connectivity probe's current view. Callers use it to
	// decide whether attempting a network call is worthwhile; a true result
	// is advisory, not a guarantee.
	Online() bool

	// Fetch retrieves a single record by key from GET /{entity}/{key}.
	// Returns [ErrOffline]/[ErrTransient] on connectivity problems and a
	// wrapped [ErrRejected] on non-2xx responses.
	Fetch(ctx context.Context, entity, key string) (models.Record, error)

	// FetchPage retrieves one page of records from GET /{entity}. page and
	// limit map to the collaborator's `page`/`limit` query parameters; zero
	// values omit the parameter. Both bare-array and enveloped list response
	// shapes are decoded.
	FetchPage(ctx context.Context, entity string, page, limit int) (models.ListPage, error)

	// Create POSTs payload to /{entity} and returns the authoritative record
	// from the response body, including the server-assigned primary key.
	Create(ctx context.Context, entity string, payload models.Record) (models.Record, error)

	// Update PUTs payload to /{entity}/{key} and returns the authoritative
	// post-update record. Returns [ErrConflict] (wrapped) when the server
	// reports that its version diverged from the client's base state.
	Update(ctx context.Context, entity, key string, payload models.Record) (models.Record, error)

	// ForceUpdate is Update with an explicit overwrite request (force=true):
	// the server applies the payload even if its version is newer. Used by
	// conflict resolution when the local change wins.
	ForceUpdate(ctx context.Context, entity, key string, payload models.Record) (models.Record, error)

	// Remove issues DELETE /{entity}/{key}. Returns [ErrConflict] (wrapped)
	// on a version conflict and [ErrNotFound] (wrapped) when the record is
	// already gone.
	Remove(ctx context.Context, entity, key string) error

	// ForceRemove is Remove with an explicit overwrite request (force=true).
	ForceRemove(ctx context.Context, entity, key string) error
}
