// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Nadezhda Malikova

package config

import "strings"

// validate checks that the final merged [StructuredConfig] satisfies all
// application invariants before it is used at startup.
//
// Currently a no-op placeholder; the client-facing invariants live on
// [ClientConfig.validate], which runs on the mapped view.
//
// Returns nil if the configuration is valid, or a descriptive error otherwise.
func (cfg *StructuredConfig) validate() error {
	return nil
}

func (cfg *ClientConfig) validate() error {
	if cfg.Storage.DB.DSN == "" || strings.Contains(cfg.Storage.DB.DSN, "memory") {
		return ErrInvalidStorageConfigs
	}

	if cfg.Gateway.Address == "" || cfg.Gateway.RequestTimeout == 0 {
		return ErrInvalidGatewayConfigs
	}

	if cfg.Workers.SyncInterval == 0 || cfg.Workers.RefreshLimit <= 0 {
		return ErrInvalidWorkerConfigs
	}

	if cfg.Preload.Limit <= 0 {
		return ErrInvalidPreloadConfigs
	}

	return nil
}
