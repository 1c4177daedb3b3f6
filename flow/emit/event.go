package emit

// Event is one observability record emitted during pipeline execution:
// stage completions, failures, checkpoints, run-level notices.
type Event struct {
	// RunID identifies the pipeline run that emitted this event.
	RunID string

	// Step is the 1-indexed execution step within the run.
	// Zero for run-level events.
	Step int

	// StageID identifies the stage that emitted this event.
	// Empty for run-level events.
	StageID string

	// Msg is a short human-readable description of the event.
	Msg string

	// Meta carries additional structured data. Common keys:
	//   - "error": failure details
	//   - "checkpoint_id": checkpoint label
	//   - "iteration": review iteration number
	//   - "passed": review verdict
	Meta map[string]interface{}
}
