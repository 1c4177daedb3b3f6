package flow

import "context"

// Stage represents one processing step in a pipeline.
// It receives the current state of type S, performs its work (typically one
// external model call), and returns a StageResult carrying a partial state
// update and an optional routing decision.
//
// Type parameter S is the state type shared across the pipeline.
type Stage[S any] interface {
	// Run executes the stage against the given state.
	// The returned StageResult carries the partial update to merge, the
	// next hop (if the stage routes explicitly), and any error.
	Run(ctx context.Context, state S) StageResult[S]
}

// StageResult is the output of a single stage execution.
type StageResult[S any] struct {
	// Delta is the partial state update produced by this stage.
	// It is merged into the running state by the pipeline's Reducer
	// before the next stage executes.
	Delta S

	// Route is an optional explicit routing decision. When zero, the
	// pipeline falls back to the transition table.
	Route Next

	// Err aborts the run when non-nil. The pipeline wraps it in a
	// StageError naming the failing stage; no retry happens at this layer.
	Err error
}

// Next specifies where execution goes after a stage completes.
//
// A zero Next defers to the pipeline's transition table. Stop() terminates
// the run, Goto(id) jumps to a specific stage.
type Next struct {
	// To names the next stage. Mutually exclusive with Terminal.
	To string

	// Terminal ends the run after this stage's delta is merged.
	Terminal bool
}

// Stop returns a Next that terminates the run.
func Stop() Next {
	return Next{Terminal: true}
}

// Goto returns a Next that routes to the named stage.
func Goto(stageID string) Next {
	return Next{To: stageID}
}

// StageFunc adapts a plain function to the Stage interface.
//
//	develop := flow.StageFunc[State](func(ctx context.Context, s State) flow.StageResult[State] {
//	    delta, err := dev.Implement(ctx, s)
//	    return flow.StageResult[State]{Delta: delta, Err: err}
//	})
type StageFunc[S any] func(ctx context.Context, state S) StageResult[S]

// Run implements Stage for StageFunc.
func (f StageFunc[S]) Run(ctx context.Context, state S) StageResult[S] {
	return f(ctx, state)
}

// StageError wraps an error produced by a stage with the stage's identity.
// External call failures surface to the caller through this type; use
// errors.As to recover it and errors.Unwrap to reach the provider error.
type StageError struct {
	// StageID identifies the stage that failed.
	StageID string

	// RunID identifies the run the failure aborted.
	RunID string

	// Cause is the underlying error.
	Cause error
}

// Error implements the error interface.
func (e *StageError) Error() string {
	return "stage " + e.StageID + ": " + e.Cause.Error()
}

// Unwrap returns the underlying cause.
func (e *StageError) Unwrap() error {
	return e.Cause
}
