package feature

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/dshills/featureflow/flow/model"
)

func TestDeveloper_Implement(t *testing.T) {
	ctx := context.Background()

	designed := NewState("req", 3)
	designed.DesignSpec = "the design"
	designed.UserFlow = "the flow"
	designed.UILayout = "the layout"
	designed.InteractionDetails = "the details"

	t.Run("first pass implements from the design", func(t *testing.T) {
		mock := &model.MockChatModel{Responses: []model.ChatOut{{Text: "code v1"}}}
		dev := NewDeveloper(mock)

		delta, err := dev.Implement(ctx, designed)
		if err != nil {
			t.Fatalf("Implement failed: %v", err)
		}

		if delta.Code != "code v1" {
			t.Errorf("Code = %q", delta.Code)
		}
		msg := delta.Messages[0]
		if msg.Role != RoleDeveloper || msg.Phase != PhaseImplement || msg.Iteration != 0 {
			t.Errorf("message = %+v", msg)
		}

		prompt := mock.Calls[0][1].Content
		for _, want := range []string{"the design", "the flow", "the layout", "the details"} {
			if !strings.Contains(prompt, want) {
				t.Errorf("first-pass prompt missing %q", want)
			}
		}
		if strings.Contains(prompt, "feedback") {
			t.Error("first-pass prompt must not mention feedback")
		}
	})

	t.Run("revision prompt carries previous code and all feedback", func(t *testing.T) {
		revising := designed
		revising.Code = "code v1"
		revising.IterationCount = 2
		revising.Feedback = []string{"round one notes", "round two notes"}

		mock := &model.MockChatModel{Responses: []model.ChatOut{{Text: "code v2"}}}
		dev := NewDeveloper(mock)

		delta, err := dev.Implement(ctx, revising)
		if err != nil {
			t.Fatalf("Implement failed: %v", err)
		}

		if delta.Code != "code v2" {
			t.Errorf("Code = %q", delta.Code)
		}
		msg := delta.Messages[0]
		if msg.Phase != PhaseRevise || msg.Iteration != 2 {
			t.Errorf("message = %+v", msg)
		}

		prompt := mock.Calls[0][1].Content
		for _, want := range []string{"code v1", "round one notes", "round two notes"} {
			if !strings.Contains(prompt, want) {
				t.Errorf("revise prompt missing %q", want)
			}
		}
		if !strings.Contains(prompt, "round one notes\n---\nround two notes") {
			t.Error("feedback history not joined with the delimiter")
		}

		// The latest entry appears alone as well as in the history.
		if strings.Count(prompt, "round two notes") != 2 {
			t.Errorf("latest feedback should appear twice, prompt:\n%s", prompt)
		}
	})

	t.Run("model error propagates", func(t *testing.T) {
		boom := errors.New("timeout")
		mock := &model.MockChatModel{Err: boom}
		dev := NewDeveloper(mock)

		_, err := dev.Implement(ctx, designed)
		if !errors.Is(err, boom) {
			t.Errorf("got %v, want %v", err, boom)
		}
	})
}
