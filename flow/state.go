package flow

import (
	"encoding/json"
	"fmt"
)

// Reducer merges a stage's partial update into the running state.
//
// The pipeline never inspects state itself; every merge goes through the
// reducer, which owns the per-field accumulation policy (overwrite vs
// append-only). Reducers must be deterministic.
type Reducer[S any] func(prev, delta S) S

// deepCopy clones state S via a JSON round trip.
//
// Stream mode hands snapshots of the running state to the caller; copying
// keeps later merges from mutating a snapshot the caller still holds. Works
// for any state with JSON-serializable exported fields; unexported fields
// are dropped.
func deepCopy[S any](state S) (S, error) {
	var zero S

	data, err := json.Marshal(state)
	if err != nil {
		return zero, fmt.Errorf("failed to marshal state: %w", err)
	}

	var copied S
	if err := json.Unmarshal(data, &copied); err != nil {
		return zero, fmt.Errorf("failed to unmarshal state: %w", err)
	}

	return copied, nil
}
