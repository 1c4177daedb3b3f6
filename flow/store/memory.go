package store

import (
	"context"
	"sync"
)

// MemStore is an in-memory Store[S].
//
// Suited to tests, development, and single-process workflows that do not
// need durability. Data is lost when the process exits, and memory grows
// with run history.
//
// MemStore is safe for concurrent use.
type MemStore[S any] struct {
	mu          sync.RWMutex
	steps       map[string][]StepRecord[S] // runID -> ordered step history
	checkpoints map[string]Checkpoint[S]   // label -> checkpoint
}

// NewMemStore creates an empty in-memory store.
func NewMemStore[S any]() *MemStore[S] {
	return &MemStore[S]{
		steps:       make(map[string][]StepRecord[S]),
		checkpoints: make(map[string]Checkpoint[S]),
	}
}

// SaveStep appends a step record to the run's history.
func (m *MemStore[S]) SaveStep(_ context.Context, runID string, step int, stageID string, state S) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.steps[runID] = append(m.steps[runID], StepRecord[S]{
		Step:    step,
		StageID: stageID,
		State:   state,
	})
	return nil
}

// LoadLatest returns the record with the highest step number, which
// tolerates out-of-order saves.
func (m *MemStore[S]) LoadLatest(_ context.Context, runID string) (state S, step int, err error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	records, exists := m.steps[runID]
	if !exists || len(records) == 0 {
		var zero S
		return zero, 0, ErrNotFound
	}

	latest := records[0]
	for _, record := range records[1:] {
		if record.Step > latest.Step {
			latest = record
		}
	}
	return latest.State, latest.Step, nil
}

// SaveCheckpoint stores a labeled snapshot, overwriting any existing label.
func (m *MemStore[S]) SaveCheckpoint(_ context.Context, cpID string, state S, step int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.checkpoints[cpID] = Checkpoint[S]{ID: cpID, State: state, Step: step}
	return nil
}

// LoadCheckpoint retrieves a labeled snapshot.
func (m *MemStore[S]) LoadCheckpoint(_ context.Context, cpID string) (state S, step int, err error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cp, exists := m.checkpoints[cpID]
	if !exists {
		var zero S
		return zero, 0, ErrNotFound
	}
	return cp.State, cp.Step, nil
}

// StepHistory returns a copy of the run's step records in save order.
// Useful for inspecting the audit trail after a run.
func (m *MemStore[S]) StepHistory(runID string) []StepRecord[S] {
	m.mu.RLock()
	defer m.mu.RUnlock()

	records := m.steps[runID]
	out := make([]StepRecord[S], len(records))
	copy(out, records)
	return out
}
