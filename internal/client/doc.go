// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Nadezhda Malikova

// Package client implements the engine's process lifecycle.
//
// It restores the session role, warms the local cache, runs the background
// synchronizer, and drains the mutation queue one last time on shutdown.
package client
