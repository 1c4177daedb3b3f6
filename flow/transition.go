// Package flow provides a small finite-state pipeline engine for sequential
// multi-stage workflows with conditional routing.
package flow

// Transition is one row of a pipeline's transition table.
//
// Transitions define control flow between stages. They can be:
// - Unconditional: always taken (When = nil).
// - Conditional: taken only when the predicate holds (When != nil).
// - Terminal: end the run instead of naming a next stage (Terminal = true).
//
// At runtime the pipeline evaluates a stage's outgoing transitions in
// registration order and takes the first match. Explicit routing via
// StageResult.Route overrides the table.
type Transition[S any] struct {
	// From is the source stage ID.
	From string

	// To is the destination stage ID. Empty when Terminal is set.
	To string

	// Terminal marks this transition as an exit from the pipeline.
	Terminal bool

	// When is an optional predicate deciding whether this transition is
	// taken. Nil means unconditional.
	When Predicate[S]
}

// Predicate evaluates state to decide whether a transition is taken.
//
// Predicates should be pure functions of the state: deterministic, no side
// effects. Typical patterns are boolean flags (state.ReviewPassed) and
// bounded counters (state.IterationCount < state.MaxIterations).
type Predicate[S any] func(state S) bool
