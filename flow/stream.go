package flow

import "context"

// StageEvent is one element of a Stream: the outcome of a single stage
// execution, observable before the next stage runs.
type StageEvent[S any] struct {
	// Stage is the ID of the stage that just completed.
	Stage string

	// Step is the 1-indexed execution step within the run.
	Step int

	// Delta is the partial update the stage produced.
	Delta S

	// State is a snapshot of the merged state after this stage. The
	// snapshot is independent of the running state; holding it across
	// later events is safe.
	State S

	// Err is set on the final event when the run aborted. The channel is
	// closed immediately after an error event.
	Err error
}

// Stream executes the pipeline with the same transition logic as Run, but
// delivers a StageEvent after every stage completes, before the next stage
// begins.
//
// The returned channel is closed when the run reaches a terminal
// transition or aborts; on abort the last event carries the error. Each
// call starts a fresh run, so the sequence is restartable by calling
// Stream again. Cancel ctx to abandon a run early; the in-flight stage
// still completes its external call before the run unwinds.
//
// Configuration problems are reported synchronously, before any stage
// executes.
func (p *Pipeline[S]) Stream(ctx context.Context, runID string, initial S) (<-chan StageEvent[S], error) {
	if err := p.validate(); err != nil {
		return nil, err
	}

	events := make(chan StageEvent[S])

	go func() {
		defer close(events)

		yield := func(stageID string, step int, delta, snapshot S) error {
			select {
			case events <- StageEvent[S]{Stage: stageID, Step: step, Delta: delta, State: snapshot}:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if _, err := p.execute(ctx, runID, initial, p.startStage, yield); err != nil {
			select {
			case events <- StageEvent[S]{Err: err}:
			case <-ctx.Done():
			}
		}
	}()

	return events, nil
}
