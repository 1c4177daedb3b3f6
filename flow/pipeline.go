package flow

import (
	"context"
	"sync"
	"time"

	"github.com/dshills/featureflow/flow/emit"
	"github.com/dshills/featureflow/flow/store"
)

// Pipeline drives a fixed set of stages through an explicit transition
// table until a terminal transition is reached.
//
// The Pipeline is the core runtime that:
//   - Holds the workflow topology (stages and transitions)
//   - Executes stages strictly sequentially
//   - Merges partial updates via the reducer before the next stage runs
//   - Persists state after each step via the store
//   - Emits observability events via the emitter
//   - Enforces a MaxSteps bound against misconfigured routing
//
// One Pipeline value describes one workflow shape. Concurrent runs are
// safe: each run owns its own state and run ID, and registration is
// guarded for construction-time use.
//
// Type parameter S is the state type shared across the workflow.
//
// Example:
//
//	p := flow.New(reducer, store.NewMemStore[MyState](), emitter, flow.Options{MaxSteps: 20})
//	p.Add("work", workStage)
//	p.StartAt("work")
//	p.End("work", nil)
//	final, err := p.Run(ctx, "run-001", MyState{Input: "hello"})
type Pipeline[S any] struct {
	mu sync.RWMutex

	// reducer merges partial state updates deterministically
	reducer Reducer[S]

	// stages maps stage IDs to implementations
	stages map[string]Stage[S]

	// transitions is the ordered transition table
	transitions []Transition[S]

	// startStage is the entry point
	startStage string

	// store persists per-step state and checkpoints
	store store.Store[S]

	// emitter receives observability events
	emitter emit.Emitter

	opts Options
}

// Options configures pipeline execution. Zero values are valid defaults.
type Options struct {
	// MaxSteps bounds the number of stage executions in one run.
	// Zero disables the bound. Workflows with revise loops should set
	// this to stage count x iteration cap plus slack.
	MaxSteps int

	// StageTimeout bounds each stage execution, including the external
	// model call it wraps. Zero disables the bound; callers wanting
	// deadlines on the model boundary set this or pass a deadline ctx.
	StageTimeout time.Duration

	// Metrics, when non-nil, records stage latency and run outcomes.
	Metrics *Metrics
}

// New creates a Pipeline with the given configuration.
//
// The reducer and store are required for Run; the emitter may be nil.
// Validation happens when Run or Stream is called so construction order
// stays flexible.
func New[S any](reducer Reducer[S], st store.Store[S], emitter emit.Emitter, opts Options) *Pipeline[S] {
	return &Pipeline[S]{
		reducer:     reducer,
		stages:      make(map[string]Stage[S]),
		transitions: make([]Transition[S], 0),
		store:       st,
		emitter:     emitter,
		opts:        opts,
	}
}

// Add registers a stage under a unique ID.
func (p *Pipeline[S]) Add(stageID string, stage Stage[S]) error {
	if stageID == "" {
		return &PipelineError{Message: "stage ID cannot be empty"}
	}
	if stage == nil {
		return &PipelineError{Message: "stage cannot be nil"}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.stages[stageID]; exists {
		return &PipelineError{
			Message: "duplicate stage ID: " + stageID,
			Code:    "DUPLICATE_STAGE",
		}
	}

	p.stages[stageID] = stage
	return nil
}

// StartAt sets the entry stage. The stage must already be registered.
func (p *Pipeline[S]) StartAt(stageID string) error {
	if stageID == "" {
		return &PipelineError{Message: "start stage ID cannot be empty"}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.stages[stageID]; !exists {
		return &PipelineError{
			Message: "start stage does not exist: " + stageID,
			Code:    "STAGE_NOT_FOUND",
		}
	}

	p.startStage = stageID
	return nil
}

// Connect appends a transition from one stage to another.
//
// A nil predicate makes the transition unconditional. Transitions are
// evaluated in registration order and the first match wins, so register
// the more specific predicate first.
func (p *Pipeline[S]) Connect(from, to string, when Predicate[S]) error {
	if from == "" {
		return &PipelineError{Message: "from stage ID cannot be empty"}
	}
	if to == "" {
		return &PipelineError{Message: "to stage ID cannot be empty"}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.transitions = append(p.transitions, Transition[S]{From: from, To: to, When: when})
	return nil
}

// End appends a terminal transition: when the predicate holds after the
// named stage, the run completes. A nil predicate terminates
// unconditionally.
func (p *Pipeline[S]) End(from string, when Predicate[S]) error {
	if from == "" {
		return &PipelineError{Message: "from stage ID cannot be empty"}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.transitions = append(p.transitions, Transition[S]{From: from, Terminal: true, When: when})
	return nil
}

// Run drives the pipeline from the start stage to a terminal transition
// and returns the final state.
//
// Any stage error aborts the run immediately; the partial state
// accumulated so far is discarded (it remains observable only through the
// store or via Stream). Context cancellation is checked between stages;
// an in-flight stage is interrupted only if it honors ctx itself.
func (p *Pipeline[S]) Run(ctx context.Context, runID string, initial S) (S, error) {
	if err := p.validate(); err != nil {
		var zero S
		return zero, err
	}
	return p.execute(ctx, runID, initial, p.startStage, nil)
}

// validate checks that the pipeline is runnable.
func (p *Pipeline[S]) validate() error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.reducer == nil {
		return &PipelineError{Message: "reducer is required", Code: "MISSING_REDUCER"}
	}
	if p.store == nil {
		return &PipelineError{Message: "store is required", Code: "MISSING_STORE"}
	}
	if p.startStage == "" {
		return &PipelineError{Message: "start stage not set (call StartAt first)", Code: "NO_START_STAGE"}
	}
	if _, exists := p.stages[p.startStage]; !exists {
		return &PipelineError{Message: "start stage does not exist: " + p.startStage, Code: "STAGE_NOT_FOUND"}
	}
	return nil
}

// stageYield observes each completed stage in Stream mode. A non-nil
// return aborts the run (used for consumer-side cancellation).
type stageYield[S any] func(stageID string, step int, delta, snapshot S) error

// execute is the single transition loop behind Run, Stream, and ResumeFrom.
// Run and Stream differ only in whether yield is set.
func (p *Pipeline[S]) execute(ctx context.Context, runID string, initial S, startStage string, yield stageYield[S]) (S, error) {
	var zero S

	current := initial
	stageID := startStage
	step := 0

	if p.opts.Metrics != nil {
		p.opts.Metrics.runStarted()
	}

	for {
		step++

		if p.opts.MaxSteps > 0 && step > p.opts.MaxSteps {
			p.finishRun("error")
			return zero, &PipelineError{
				Message: "run exceeded MaxSteps limit",
				Code:    "MAX_STEPS_EXCEEDED",
			}
		}

		select {
		case <-ctx.Done():
			p.finishRun("canceled")
			return zero, ctx.Err()
		default:
		}

		p.mu.RLock()
		stage, exists := p.stages[stageID]
		p.mu.RUnlock()

		if !exists {
			p.finishRun("error")
			return zero, &PipelineError{
				Message: "stage not found during execution: " + stageID,
				Code:    "STAGE_NOT_FOUND",
			}
		}

		stageCtx := ctx
		var cancel context.CancelFunc
		if p.opts.StageTimeout > 0 {
			stageCtx, cancel = context.WithTimeout(ctx, p.opts.StageTimeout)
		}

		started := time.Now()
		result := stage.Run(stageCtx, current)
		if cancel != nil {
			cancel()
		}

		if result.Err != nil {
			if p.opts.Metrics != nil {
				p.opts.Metrics.observeStage(stageID, time.Since(started), "error")
			}
			p.emit(emit.Event{
				RunID:   runID,
				Step:    step,
				StageID: stageID,
				Msg:     "stage failed",
				Meta:    map[string]interface{}{"error": result.Err.Error()},
			})
			p.finishRun("error")
			return zero, &StageError{StageID: stageID, RunID: runID, Cause: result.Err}
		}

		if p.opts.Metrics != nil {
			p.opts.Metrics.observeStage(stageID, time.Since(started), "success")
		}

		current = p.reducer(current, result.Delta)

		if err := p.store.SaveStep(ctx, runID, step, stageID, current); err != nil {
			p.finishRun("error")
			return zero, &PipelineError{
				Message: "failed to save step: " + err.Error(),
				Code:    "STORE_ERROR",
			}
		}

		p.emit(emit.Event{
			RunID:   runID,
			Step:    step,
			StageID: stageID,
			Msg:     "stage completed",
		})

		if yield != nil {
			snapshot, err := deepCopy(current)
			if err != nil {
				p.finishRun("error")
				return zero, &PipelineError{
					Message: "failed to snapshot state: " + err.Error(),
					Code:    "SNAPSHOT_ERROR",
				}
			}
			if err := yield(stageID, step, result.Delta, snapshot); err != nil {
				p.finishRun("canceled")
				return zero, err
			}
		}

		if result.Route.Terminal {
			p.finishRun("completed")
			return current, nil
		}
		if result.Route.To != "" {
			stageID = result.Route.To
			continue
		}

		next, terminal, found := p.evaluateTransitions(stageID, current)
		if !found {
			p.finishRun("error")
			return zero, &PipelineError{
				Message: "no valid transition from stage: " + stageID,
				Code:    "NO_TRANSITION",
			}
		}
		if terminal {
			p.finishRun("completed")
			return current, nil
		}
		stageID = next
	}
}

// evaluateTransitions finds the first matching transition out of a stage.
// Nil-predicate transitions always match.
func (p *Pipeline[S]) evaluateTransitions(from string, state S) (next string, terminal, found bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	for _, t := range p.transitions {
		if t.From != from {
			continue
		}
		if t.When == nil || t.When(state) {
			return t.To, t.Terminal, true
		}
	}
	return "", false, false
}

// SaveCheckpoint snapshots the latest persisted state of a run under a
// caller-chosen label. The pipeline only orchestrates; storage is the
// store's concern.
func (p *Pipeline[S]) SaveCheckpoint(ctx context.Context, runID, cpID string) error {
	latest, step, err := p.store.LoadLatest(ctx, runID)
	if err != nil {
		return &PipelineError{
			Message: "cannot create checkpoint: run state not found: " + err.Error(),
			Code:    "RUN_NOT_FOUND",
		}
	}

	if err := p.store.SaveCheckpoint(ctx, cpID, latest, step); err != nil {
		return &PipelineError{
			Message: "failed to save checkpoint: " + err.Error(),
			Code:    "CHECKPOINT_SAVE_FAILED",
		}
	}

	p.emit(emit.Event{
		RunID: runID,
		Step:  step,
		Msg:   "checkpoint saved: " + cpID,
		Meta:  map[string]interface{}{"checkpoint_id": cpID},
	})
	return nil
}

// ResumeFrom loads a checkpoint and continues execution under a new run ID,
// entering at the named stage.
func (p *Pipeline[S]) ResumeFrom(ctx context.Context, cpID, newRunID, startStage string) (S, error) {
	var zero S

	if err := p.validate(); err != nil {
		return zero, err
	}
	if startStage == "" {
		return zero, &PipelineError{Message: "start stage not specified for resume", Code: "NO_START_STAGE"}
	}

	p.mu.RLock()
	_, exists := p.stages[startStage]
	p.mu.RUnlock()
	if !exists {
		return zero, &PipelineError{
			Message: "resume start stage does not exist: " + startStage,
			Code:    "STAGE_NOT_FOUND",
		}
	}

	state, step, err := p.store.LoadCheckpoint(ctx, cpID)
	if err != nil {
		return zero, &PipelineError{
			Message: "cannot resume: checkpoint not found: " + err.Error(),
			Code:    "CHECKPOINT_NOT_FOUND",
		}
	}

	p.emit(emit.Event{
		RunID:   newRunID,
		StageID: startStage,
		Msg:     "resuming from checkpoint: " + cpID,
		Meta: map[string]interface{}{
			"checkpoint_id":   cpID,
			"checkpoint_step": step,
		},
	})

	return p.execute(ctx, newRunID, state, startStage, nil)
}

func (p *Pipeline[S]) emit(event emit.Event) {
	if p.emitter != nil {
		p.emitter.Emit(event)
	}
}

func (p *Pipeline[S]) finishRun(status string) {
	if p.opts.Metrics != nil {
		p.opts.Metrics.runFinished(status)
	}
}

// PipelineError represents a configuration or orchestration error.
type PipelineError struct {
	Message string
	Code    string
}

func (e *PipelineError) Error() string {
	if e.Code != "" {
		return e.Code + ": " + e.Message
	}
	return e.Message
}
