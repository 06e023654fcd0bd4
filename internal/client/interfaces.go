// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Nadezhda Malikova

package client

import "context"

// Client defines the minimal lifecycle contract for runnable client
// applications.
type Client interface {
	// Run starts the engine and blocks until ctx is cancelled.
	Run(ctx context.Context) error
}
