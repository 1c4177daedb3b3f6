// Package emit provides pluggable observability for pipeline execution.
package emit

// Emitter receives observability events from running pipelines.
//
// Implementations should be:
//   - Non-blocking: never slow down workflow execution
//   - Thread-safe: concurrent runs share one emitter
//   - Resilient: a failing backend must not crash the workflow
//
// Emit must not panic; backend errors are the emitter's problem to log or
// drop.
type Emitter interface {
	Emit(event Event)
}
