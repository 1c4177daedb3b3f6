// Package feature implements a design/develop/review workflow for turning
// a product requirement into reviewed feature code.
//
// A designer role produces an interaction design from the requirement, a
// developer role implements it, and the designer reviews the result.
// Failed reviews route back to the developer with accumulated feedback,
// bounded by an iteration cap.
package feature

import "github.com/dshills/featureflow/flow"

// Phase constants label which part of the workflow produced a message.
const (
	// PhaseDesign is the initial design produced from the requirement.
	PhaseDesign = "design"

	// PhaseImplement is the first implementation of the design.
	PhaseImplement = "implement"

	// PhaseRevise is an implementation revised against review feedback.
	PhaseRevise = "revise"

	// PhaseReview is a review verdict on the current implementation.
	PhaseReview = "review"
)

// Role constants identify which workflow role authored a message.
const (
	RoleDesigner  = "designer"
	RoleDeveloper = "developer"
)

// StageMessage is one entry in the workflow's audit trail: a complete
// model response tagged with the role and phase that produced it.
type StageMessage struct {
	// Role is the authoring role, RoleDesigner or RoleDeveloper.
	Role string `json:"role"`

	// Phase is the workflow phase, one of the Phase* constants.
	Phase string `json:"phase"`

	// Content is the full model response text.
	Content string `json:"content"`

	// Iteration is the iteration count at the time the message was
	// produced. Only implementation messages carry it.
	Iteration int `json:"iteration,omitempty"`

	// Passed records the review verdict on review messages.
	Passed bool `json:"passed,omitempty"`
}

// State is the shared workflow state. Stages return partial State values
// as deltas; Reduce merges each delta into the accumulated state.
//
// Requirement and MaxIterations are inputs fixed at run start. Feedback
// and Messages are append-only. The remaining fields are owned by
// individual phases and replaced when that phase runs.
type State struct {
	// Requirement is the feature requirement text driving the run.
	Requirement string `json:"requirement"`

	// MaxIterations caps how many review rounds a run may use.
	MaxIterations int `json:"max_iterations"`

	// DesignSpec is the designer's full design document.
	DesignSpec string `json:"design_spec"`

	// UserFlow, UILayout, and InteractionDetails are sections extracted
	// from DesignSpec. Empty when the design omits the heading.
	UserFlow           string `json:"user_flow"`
	UILayout           string `json:"ui_layout"`
	InteractionDetails string `json:"interaction_details"`

	// Code is the current implementation.
	Code string `json:"code"`

	// ReviewResult is the latest review text.
	ReviewResult string `json:"review_result"`

	// ReviewPassed is the latest review verdict.
	ReviewPassed bool `json:"review_passed"`

	// IterationCount is the number of completed reviews.
	IterationCount int `json:"iteration_count"`

	// Feedback accumulates one entry per failed review, oldest first.
	Feedback []string `json:"feedback"`

	// Messages is the append-only audit trail across all phases.
	Messages []StageMessage `json:"messages"`
}

// NewState builds the initial state for a run.
func NewState(requirement string, maxIterations int) State {
	return State{
		Requirement:   requirement,
		MaxIterations: maxIterations,
	}
}

// Approved reports whether the latest review passed.
func (s State) Approved() bool {
	return s.ReviewPassed
}

// CapExhausted reports whether the run used up its iteration budget
// without approval. Distinguishes budget termination from approval when
// both end a run.
func (s State) CapExhausted() bool {
	return !s.ReviewPassed && s.IterationCount >= s.MaxIterations
}

// Reduce merges a stage delta into the accumulated state. It is the
// workflow's flow.Reducer.
//
// Feedback and Messages always append. Scalar fields are owned by phases:
// a delta replaces only the fields belonging to the phase of the message
// it carries, so a revise delta cannot clobber the design and a design
// delta cannot reset the verdict. IterationCount on review deltas is an
// increment, not an absolute value.
func Reduce(prev, delta State) State {
	out := prev

	out.Feedback = append(out.Feedback, delta.Feedback...)
	out.Messages = append(out.Messages, delta.Messages...)

	for _, msg := range delta.Messages {
		switch msg.Phase {
		case PhaseDesign:
			out.DesignSpec = delta.DesignSpec
			out.UserFlow = delta.UserFlow
			out.UILayout = delta.UILayout
			out.InteractionDetails = delta.InteractionDetails
		case PhaseImplement, PhaseRevise:
			out.Code = delta.Code
		case PhaseReview:
			out.ReviewResult = delta.ReviewResult
			out.ReviewPassed = delta.ReviewPassed
			out.IterationCount += delta.IterationCount
		}
	}

	return out
}

// compile-time check that Reduce satisfies the pipeline's reducer shape
var _ flow.Reducer[State] = Reduce
