// Package store provides persistence backends for pipeline run state.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a requested run ID or checkpoint ID does
// not exist.
var ErrNotFound = errors.New("not found")

// Store persists pipeline state step by step and supports named
// checkpoints for resuming suspended runs.
//
// Implementations in this package:
//   - MemStore: in-memory maps, for tests and short-lived runs
//   - SQLiteStore: single-file database, zero-setup local persistence
//   - MySQLStore: shared relational database for multi-process deployments
//
// Type parameter S is the state type to persist; it must be
// JSON-serializable for the database-backed stores.
type Store[S any] interface {
	// SaveStep persists the merged state after one stage execution.
	// Steps are identified by runID + step number; saving the same pair
	// twice overwrites.
	SaveStep(ctx context.Context, runID string, step int, stageID string, state S) error

	// LoadLatest retrieves the highest-numbered step for a run.
	// Returns ErrNotFound when the run has no persisted steps.
	LoadLatest(ctx context.Context, runID string) (state S, step int, err error)

	// SaveCheckpoint snapshots state under a caller-chosen label.
	// Saving an existing label overwrites it.
	SaveCheckpoint(ctx context.Context, cpID string, state S, step int) error

	// LoadCheckpoint retrieves a labeled snapshot.
	// Returns ErrNotFound for unknown labels.
	LoadCheckpoint(ctx context.Context, cpID string) (state S, step int, err error)
}

// StepRecord is one entry in a run's execution history.
type StepRecord[S any] struct {
	// Step is the sequential step number (1-indexed).
	Step int

	// StageID identifies the stage that produced this state.
	StageID string

	// State is the merged state after the step completed.
	State S
}

// Checkpoint is a labeled snapshot of run state.
type Checkpoint[S any] struct {
	// ID is the caller-chosen checkpoint label.
	ID string

	// State is the snapshotted state.
	State S

	// Step is the step number the snapshot was taken at.
	Step int
}
