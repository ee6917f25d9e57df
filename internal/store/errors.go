// Package store reads seed datasets and persists generated records as JSON snapshots.
package store

import "errors"

// Sentinel errors for store operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrSeedLoad indicates the seed file could not be read or decoded.
	// It is fatal to a run: no task is submitted.
	ErrSeedLoad = errors.New("load seeds")

	// ErrOutputUnwritable indicates the output location cannot be written.
	// It is detected before any task is submitted.
	ErrOutputUnwritable = errors.New("output not writable")

	// ErrOutputLocked indicates another run holds the output lock.
	ErrOutputLocked = errors.New("output locked by another run")

	// ErrSnapshotWrite indicates a single snapshot write failed. Callers treat this as
	// best-effort and retry at the next interval.
	ErrSnapshotWrite = errors.New("write snapshot")
)
