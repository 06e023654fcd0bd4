package service

import "errors"

var (
	// ErrNoDataOffline is returned when the remote API is unreachable and
	// the local store holds nothing for the requested read.
	ErrNoDataOffline = errors.New("no local data available while offline")

	// ErrSyncInFlight is returned by Drain when another drain already holds
	// the sync lock. The caller's trigger is skipped, not queued.
	ErrSyncInFlight = errors.New("sync already in flight")
)
