package feature

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/dshills/featureflow/flow"
	"github.com/dshills/featureflow/flow/emit"
	"github.com/dshills/featureflow/flow/model"
	"github.com/dshills/featureflow/flow/store"
)

// Stage IDs used by the workflow pipeline. Stream consumers can filter
// events on these.
const (
	StageDesign  = "design"
	StageDevelop = "develop"
	StageReview  = "review"
)

// Input validation errors, returned before any model call is made.
var (
	// ErrEmptyRequirement rejects a run with no requirement text.
	ErrEmptyRequirement = errors.New("requirement cannot be empty")

	// ErrInvalidMaxIterations rejects a non-positive iteration cap.
	ErrInvalidMaxIterations = errors.New("max iterations must be positive")
)

// Workflow wires the designer and developer roles into a pipeline:
//
//	design -> develop -> review -> (develop | done)
//
// The review stage routes back to develop while the verdict fails and the
// iteration cap has room; otherwise the run terminates with the final
// state, approved or not. Each call to Run or Stream builds a fresh
// pipeline, so one Workflow value can serve concurrent runs.
type Workflow struct {
	designerModel  model.ChatModel
	developerModel model.ChatModel
	verdict        VerdictRules
	store          store.Store[State]
	emitter        emit.Emitter
	metrics        *flow.Metrics
	stageTimeout   time.Duration
}

// Option configures a Workflow.
type Option func(*Workflow)

// WithVerdictRules overrides the default verdict classification.
func WithVerdictRules(rules VerdictRules) Option {
	return func(w *Workflow) { w.verdict = rules }
}

// WithStore sets the persistence backend for per-step state. Defaults to
// an in-memory store.
func WithStore(st store.Store[State]) Option {
	return func(w *Workflow) { w.store = st }
}

// WithEmitter sets the observability event sink. Defaults to a no-op
// emitter.
func WithEmitter(e emit.Emitter) Option {
	return func(w *Workflow) { w.emitter = e }
}

// WithMetrics enables Prometheus metrics for stage latency and run
// outcomes.
func WithMetrics(m *flow.Metrics) Option {
	return func(w *Workflow) { w.metrics = m }
}

// WithStageTimeout bounds each stage execution, including its model call.
func WithStageTimeout(d time.Duration) Option {
	return func(w *Workflow) { w.stageTimeout = d }
}

// New creates a Workflow. The designer model drives the design and review
// phases; the developer model drives implementation. The two may be the
// same ChatModel.
func New(designerModel, developerModel model.ChatModel, opts ...Option) *Workflow {
	w := &Workflow{
		designerModel:  designerModel,
		developerModel: developerModel,
		verdict:        DefaultVerdictRules(),
		store:          store.NewMemStore[State](),
		emitter:        emit.NewNullEmitter(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run executes the workflow to completion and returns the final state.
//
// Inputs are validated before any model call: an empty requirement
// returns ErrEmptyRequirement and a non-positive cap returns
// ErrInvalidMaxIterations. A model failure in any stage aborts the run
// with a flow.StageError naming the stage; a run that exhausts its
// iteration cap is not an error and returns the last reviewed state with
// CapExhausted true.
func (w *Workflow) Run(ctx context.Context, requirement string, maxIterations int) (State, error) {
	if err := validateInput(requirement, maxIterations); err != nil {
		return State{}, err
	}

	p, err := w.buildPipeline(maxIterations)
	if err != nil {
		return State{}, err
	}

	runID := newRunID()
	final, err := p.Run(ctx, runID, NewState(requirement, maxIterations))
	if err != nil {
		return State{}, err
	}

	if final.CapExhausted() {
		w.emitter.Emit(emit.Event{
			RunID:   runID,
			StageID: StageReview,
			Msg:     "iteration cap exhausted without approval",
			Meta: map[string]interface{}{
				"iteration": final.IterationCount,
				"passed":    final.ReviewPassed,
			},
		})
	}

	return final, nil
}

// Stream executes the workflow like Run but delivers a
// flow.StageEvent[State] after each stage completes. The channel closes
// when the run finishes; an aborted run's last event carries the error.
func (w *Workflow) Stream(ctx context.Context, requirement string, maxIterations int) (<-chan flow.StageEvent[State], error) {
	if err := validateInput(requirement, maxIterations); err != nil {
		return nil, err
	}

	p, err := w.buildPipeline(maxIterations)
	if err != nil {
		return nil, err
	}

	runID := newRunID()
	source, err := p.Stream(ctx, runID, NewState(requirement, maxIterations))
	if err != nil {
		return nil, err
	}

	events := make(chan flow.StageEvent[State])
	go func() {
		defer close(events)

		var last State
		for ev := range source {
			if ev.Err == nil {
				last = ev.State
			}
			// The consumer may have walked away after cancelling ctx;
			// the underlying run unwinds on the same signal.
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}

		if last.CapExhausted() {
			w.emitter.Emit(emit.Event{
				RunID:   runID,
				StageID: StageReview,
				Msg:     "iteration cap exhausted without approval",
				Meta: map[string]interface{}{
					"iteration": last.IterationCount,
					"passed":    last.ReviewPassed,
				},
			})
		}
	}()

	return events, nil
}

func validateInput(requirement string, maxIterations int) error {
	if requirement == "" {
		return ErrEmptyRequirement
	}
	if maxIterations <= 0 {
		return ErrInvalidMaxIterations
	}
	return nil
}

// buildPipeline assembles a pipeline for one run. MaxSteps covers the
// worst case of one design plus a develop/review pair per iteration, with
// one step of slack.
func (w *Workflow) buildPipeline(maxIterations int) (*flow.Pipeline[State], error) {
	designer := NewDesigner(w.designerModel, w.verdict)
	developer := NewDeveloper(w.developerModel)

	p := flow.New(Reduce, w.store, w.emitter, flow.Options{
		MaxSteps:     2 + 2*maxIterations,
		StageTimeout: w.stageTimeout,
		Metrics:      w.metrics,
	})

	steps := []func() error{
		func() error {
			return p.Add(StageDesign, flow.StageFunc[State](func(ctx context.Context, s State) flow.StageResult[State] {
				delta, err := designer.Design(ctx, s)
				return flow.StageResult[State]{Delta: delta, Err: err}
			}))
		},
		func() error {
			return p.Add(StageDevelop, flow.StageFunc[State](func(ctx context.Context, s State) flow.StageResult[State] {
				delta, err := developer.Implement(ctx, s)
				return flow.StageResult[State]{Delta: delta, Err: err}
			}))
		},
		func() error {
			return p.Add(StageReview, flow.StageFunc[State](func(ctx context.Context, s State) flow.StageResult[State] {
				delta, err := designer.Review(ctx, s)
				return flow.StageResult[State]{Delta: delta, Err: err}
			}))
		},
		func() error { return p.StartAt(StageDesign) },
		func() error { return p.Connect(StageDesign, StageDevelop, nil) },
		func() error { return p.Connect(StageDevelop, StageReview, nil) },
		func() error {
			// The retry transition is registered before the terminal
			// fallback; first match wins.
			return p.Connect(StageReview, StageDevelop, func(s State) bool {
				return !s.ReviewPassed && s.IterationCount < s.MaxIterations
			})
		},
		func() error { return p.End(StageReview, nil) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return nil, err
		}
	}

	return p, nil
}

func newRunID() string {
	return "run-" + ulid.Make().String()
}
