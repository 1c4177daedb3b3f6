package feature

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dshills/featureflow/flow"
	"github.com/dshills/featureflow/flow/emit"
	"github.com/dshills/featureflow/flow/model"
)

const (
	approvedReview = "The implementation matches the design. APPROVED"
	failedReview   = "NOT APPROVED: the empty state is missing"
)

type recordingEmitter struct {
	mu     sync.Mutex
	events []emit.Event
}

func (r *recordingEmitter) Emit(event emit.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingEmitter) find(msg string) (emit.Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ev := range r.events {
		if ev.Msg == msg {
			return ev, true
		}
	}
	return emit.Event{}, false
}

func phases(messages []StageMessage) []string {
	out := make([]string, len(messages))
	for i, msg := range messages {
		out[i] = msg.Phase
	}
	return out
}

func assertPhases(t *testing.T, got []StageMessage, want ...string) {
	t.Helper()
	gotPhases := phases(got)
	if len(gotPhases) != len(want) {
		t.Fatalf("message phases = %v, want %v", gotPhases, want)
	}
	for i := range want {
		if gotPhases[i] != want[i] {
			t.Fatalf("message phases = %v, want %v", gotPhases, want)
		}
	}
}

func TestWorkflow_Validation(t *testing.T) {
	designer := &model.MockChatModel{}
	developer := &model.MockChatModel{}
	w := New(designer, developer)

	t.Run("empty requirement", func(t *testing.T) {
		_, err := w.Run(context.Background(), "", 3)
		if !errors.Is(err, ErrEmptyRequirement) {
			t.Errorf("got %v, want ErrEmptyRequirement", err)
		}
	})

	t.Run("zero iterations", func(t *testing.T) {
		_, err := w.Run(context.Background(), "req", 0)
		if !errors.Is(err, ErrInvalidMaxIterations) {
			t.Errorf("got %v, want ErrInvalidMaxIterations", err)
		}
	})

	t.Run("negative iterations", func(t *testing.T) {
		_, err := w.Run(context.Background(), "req", -1)
		if !errors.Is(err, ErrInvalidMaxIterations) {
			t.Errorf("got %v, want ErrInvalidMaxIterations", err)
		}
	})

	t.Run("stream validates too", func(t *testing.T) {
		_, err := w.Stream(context.Background(), "", 3)
		if !errors.Is(err, ErrEmptyRequirement) {
			t.Errorf("got %v, want ErrEmptyRequirement", err)
		}
	})

	t.Run("no model was called", func(t *testing.T) {
		if designer.CallCount() != 0 || developer.CallCount() != 0 {
			t.Errorf("validation must reject before any model call: designer=%d developer=%d",
				designer.CallCount(), developer.CallCount())
		}
	})
}

func TestWorkflow_ApprovedFirstRound(t *testing.T) {
	designer := &model.MockChatModel{Responses: []model.ChatOut{
		{Text: sampleDesign},
		{Text: approvedReview},
	}}
	developer := &model.MockChatModel{Responses: []model.ChatOut{
		{Text: "code v1"},
	}}

	w := New(designer, developer)
	final, err := w.Run(context.Background(), "add login", 3)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if !final.Approved() {
		t.Error("expected approval")
	}
	if final.CapExhausted() {
		t.Error("approved run must not read as cap-exhausted")
	}
	if final.IterationCount != 1 {
		t.Errorf("IterationCount = %d, want 1", final.IterationCount)
	}
	if final.Code != "code v1" {
		t.Errorf("Code = %q", final.Code)
	}
	if len(final.Feedback) != 0 {
		t.Errorf("Feedback = %v", final.Feedback)
	}
	if final.DesignSpec != sampleDesign {
		t.Error("design not carried into final state")
	}

	assertPhases(t, final.Messages, PhaseDesign, PhaseImplement, PhaseReview)

	// One design, one review; one implementation.
	if designer.CallCount() != 2 {
		t.Errorf("designer calls = %d, want 2", designer.CallCount())
	}
	if developer.CallCount() != 1 {
		t.Errorf("developer calls = %d, want 1", developer.CallCount())
	}
}

func TestWorkflow_ReviseThenApprove(t *testing.T) {
	designer := &model.MockChatModel{Responses: []model.ChatOut{
		{Text: sampleDesign},
		{Text: failedReview},
		{Text: approvedReview},
	}}
	developer := &model.MockChatModel{Responses: []model.ChatOut{
		{Text: "code v1"},
		{Text: "code v2"},
	}}

	w := New(designer, developer)
	final, err := w.Run(context.Background(), "add login", 3)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if !final.Approved() {
		t.Error("expected approval after revision")
	}
	if final.IterationCount != 2 {
		t.Errorf("IterationCount = %d, want 2", final.IterationCount)
	}
	if final.Code != "code v2" {
		t.Errorf("Code = %q, want the revised implementation", final.Code)
	}
	if len(final.Feedback) != 1 || final.Feedback[0] != failedReview {
		t.Errorf("Feedback = %v", final.Feedback)
	}

	assertPhases(t, final.Messages,
		PhaseDesign, PhaseImplement, PhaseReview, PhaseRevise, PhaseReview)
}

func TestWorkflow_TwoFailuresThenApprove(t *testing.T) {
	firstFail := "NOT APPROVED: the empty state is missing"
	secondFail := "NOT APPROVED: keyboard navigation is broken"

	designer := &model.MockChatModel{Responses: []model.ChatOut{
		{Text: sampleDesign},
		{Text: firstFail},
		{Text: secondFail},
		{Text: approvedReview},
	}}
	developer := &model.MockChatModel{Responses: []model.ChatOut{
		{Text: "code v1"},
		{Text: "code v2"},
		{Text: "code v3"},
	}}

	w := New(designer, developer)
	final, err := w.Run(context.Background(), "add login", 3)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if !final.Approved() {
		t.Error("expected approval on the third round")
	}
	if final.IterationCount != 3 {
		t.Errorf("IterationCount = %d, want 3", final.IterationCount)
	}
	if len(final.Feedback) != 2 {
		t.Errorf("Feedback entries = %d, want 2", len(final.Feedback))
	}
	if final.Code != "code v3" {
		t.Errorf("Code = %q", final.Code)
	}

	// The third implementation call sees the full feedback history with
	// the latest entry highlighted on its own.
	thirdPrompt := developer.Calls[2][1].Content
	for _, want := range []string{firstFail, secondFail, "code v2"} {
		if !strings.Contains(thirdPrompt, want) {
			t.Errorf("third develop prompt missing %q", want)
		}
	}
}

func TestWorkflow_CapExhausted(t *testing.T) {
	// The failing review repeats once the script runs out.
	designer := &model.MockChatModel{Responses: []model.ChatOut{
		{Text: sampleDesign},
		{Text: failedReview},
	}}
	developer := &model.MockChatModel{Responses: []model.ChatOut{
		{Text: "code"},
	}}

	emitter := &recordingEmitter{}
	w := New(designer, developer, WithEmitter(emitter))

	final, err := w.Run(context.Background(), "add login", 2)
	if err != nil {
		t.Fatalf("cap exhaustion must not be an error: %v", err)
	}

	if final.Approved() {
		t.Error("expected failing final verdict")
	}
	if !final.CapExhausted() {
		t.Error("expected CapExhausted")
	}
	if final.IterationCount != 2 {
		t.Errorf("IterationCount = %d, want 2", final.IterationCount)
	}
	if len(final.Feedback) != 2 {
		t.Errorf("Feedback entries = %d, want 2", len(final.Feedback))
	}

	assertPhases(t, final.Messages,
		PhaseDesign, PhaseImplement, PhaseReview, PhaseRevise, PhaseReview)

	// Termination bound: 1 design + cap reviews, cap implementations.
	if designer.CallCount() != 3 {
		t.Errorf("designer calls = %d, want 3", designer.CallCount())
	}
	if developer.CallCount() != 2 {
		t.Errorf("developer calls = %d, want 2", developer.CallCount())
	}

	ev, found := emitter.find("iteration cap exhausted without approval")
	if !found {
		t.Fatal("expected a cap-exhaustion event")
	}
	if ev.Meta["iteration"] != 2 {
		t.Errorf("event iteration = %v", ev.Meta["iteration"])
	}
}

func TestWorkflow_SingleIterationCap(t *testing.T) {
	designer := &model.MockChatModel{Responses: []model.ChatOut{
		{Text: sampleDesign},
		{Text: failedReview},
	}}
	developer := &model.MockChatModel{Responses: []model.ChatOut{{Text: "code"}}}

	w := New(designer, developer)
	final, err := w.Run(context.Background(), "add login", 1)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if !final.CapExhausted() {
		t.Error("expected CapExhausted with a one-round budget")
	}
	if final.IterationCount != 1 || len(final.Feedback) != 1 {
		t.Errorf("IterationCount = %d Feedback = %d, want 1 and 1",
			final.IterationCount, len(final.Feedback))
	}
	if developer.CallCount() != 1 {
		t.Errorf("developer calls = %d, want 1 (no revision round)", developer.CallCount())
	}
}

func TestWorkflow_StageErrorPropagates(t *testing.T) {
	t.Run("design failure", func(t *testing.T) {
		boom := errors.New("provider down")
		designer := &model.MockChatModel{Err: boom}
		developer := &model.MockChatModel{}

		w := New(designer, developer)
		_, err := w.Run(context.Background(), "add login", 3)

		var serr *flow.StageError
		if !errors.As(err, &serr) {
			t.Fatalf("expected StageError, got %v", err)
		}
		if serr.StageID != StageDesign {
			t.Errorf("StageID = %q, want %q", serr.StageID, StageDesign)
		}
		if !errors.Is(err, boom) {
			t.Error("cause not reachable via errors.Is")
		}
		if developer.CallCount() != 0 {
			t.Error("developer must not run after a design failure")
		}
	})

	t.Run("develop failure", func(t *testing.T) {
		boom := errors.New("quota exceeded")
		designer := &model.MockChatModel{Responses: []model.ChatOut{{Text: sampleDesign}}}
		developer := &model.MockChatModel{Err: boom}

		w := New(designer, developer)
		_, err := w.Run(context.Background(), "add login", 3)

		var serr *flow.StageError
		if !errors.As(err, &serr) {
			t.Fatalf("expected StageError, got %v", err)
		}
		if serr.StageID != StageDevelop {
			t.Errorf("StageID = %q, want %q", serr.StageID, StageDevelop)
		}
	})
}

func TestWorkflow_Stream(t *testing.T) {
	designer := &model.MockChatModel{Responses: []model.ChatOut{
		{Text: sampleDesign},
		{Text: failedReview},
		{Text: approvedReview},
	}}
	developer := &model.MockChatModel{Responses: []model.ChatOut{
		{Text: "code v1"},
		{Text: "code v2"},
	}}

	w := New(designer, developer)
	events, err := w.Stream(context.Background(), "add login", 3)
	if err != nil {
		t.Fatalf("Stream failed: %v", err)
	}

	var stages []string
	var final State
	for ev := range events {
		if ev.Err != nil {
			t.Fatalf("unexpected stream error: %v", ev.Err)
		}
		stages = append(stages, ev.Stage)
		final = ev.State
	}

	want := []string{StageDesign, StageDevelop, StageReview, StageDevelop, StageReview}
	if len(stages) != len(want) {
		t.Fatalf("stages = %v, want %v", stages, want)
	}
	for i := range want {
		if stages[i] != want[i] {
			t.Fatalf("stages = %v, want %v", stages, want)
		}
	}

	if !final.Approved() {
		t.Error("final streamed state should be approved")
	}
	if final.Code != "code v2" {
		t.Errorf("final Code = %q", final.Code)
	}
}

func TestWorkflow_StreamConsumerCancellation(t *testing.T) {
	// A reviewer that never approves keeps the loop busy long enough to
	// abandon it mid-run.
	designer := &model.MockChatModel{Responses: []model.ChatOut{
		{Text: sampleDesign},
		{Text: failedReview},
	}}
	developer := &model.MockChatModel{Responses: []model.ChatOut{{Text: "code"}}}

	w := New(designer, developer)

	ctx, cancel := context.WithCancel(context.Background())
	events, err := w.Stream(ctx, "add login", 5)
	if err != nil {
		t.Fatalf("Stream failed: %v", err)
	}

	// Consume one event, then walk away.
	if _, ok := <-events; !ok {
		t.Fatal("stream closed before the first event")
	}
	cancel()

	// The channel must close so a draining consumer cannot hang, and the
	// forwarding goroutine must not stay blocked on an unread send.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for range events {
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not close after cancellation")
	}
}

func TestWorkflow_CustomVerdictRules(t *testing.T) {
	designer := &model.MockChatModel{Responses: []model.ChatOut{
		{Text: sampleDesign},
		{Text: "ship: yes"},
	}}
	developer := &model.MockChatModel{Responses: []model.ChatOut{{Text: "code"}}}

	w := New(designer, developer, WithVerdictRules(VerdictRules{
		FailMarkers: []string{"ship: no"},
		PassMarkers: []string{"ship: yes"},
	}))

	final, err := w.Run(context.Background(), "add login", 3)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !final.Approved() {
		t.Error("custom pass marker not honored")
	}
}

func TestWorkflow_SharedModel(t *testing.T) {
	// One model serving both roles: responses interleave in call order
	// design, implement, review.
	shared := &model.MockChatModel{Responses: []model.ChatOut{
		{Text: sampleDesign},
		{Text: "code v1"},
		{Text: approvedReview},
	}}

	w := New(shared, shared)
	final, err := w.Run(context.Background(), "add login", 3)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !final.Approved() || final.Code != "code v1" {
		t.Errorf("final = %+v", final)
	}
	if shared.CallCount() != 3 {
		t.Errorf("calls = %d, want 3", shared.CallCount())
	}
}

func TestWorkflow_ConcurrentRuns(t *testing.T) {
	const runs = 4

	w := New(
		&model.MockChatModel{Responses: []model.ChatOut{{Text: sampleDesign}, {Text: approvedReview}}},
		&model.MockChatModel{Responses: []model.ChatOut{{Text: "code"}}},
	)

	// The mock repeats its last response, so every run sees design then
	// approval regardless of interleaving.
	var wg sync.WaitGroup
	errs := make([]error, runs)
	finals := make([]State, runs)

	for i := 0; i < runs; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			finals[i], errs[i] = w.Run(context.Background(), "add login", 3)
		}(i)
	}
	wg.Wait()

	for i := 0; i < runs; i++ {
		if errs[i] != nil {
			t.Errorf("run %d failed: %v", i, errs[i])
			continue
		}
		if finals[i].Code != "code" {
			t.Errorf("run %d Code = %q", i, finals[i].Code)
		}
	}
}
