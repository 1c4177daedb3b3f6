package feature

import (
	"context"

	"github.com/dshills/featureflow/flow/model"
)

// Designer is the interaction-designer role. It creates the design from
// the requirement and reviews implementations against it.
type Designer struct {
	model   model.ChatModel
	verdict VerdictRules
}

// NewDesigner creates a Designer backed by the given chat model.
func NewDesigner(m model.ChatModel, rules VerdictRules) *Designer {
	return &Designer{model: m, verdict: rules}
}

// Design produces the interaction design for the requirement and extracts
// its named sections. Missing sections come back empty; the design is
// accepted as the model returned it.
func (d *Designer) Design(ctx context.Context, s State) (State, error) {
	out, err := d.model.Chat(ctx, []model.Message{
		{Role: model.RoleSystem, Content: designerSystemPrompt},
		{Role: model.RoleUser, Content: designPrompt(s.Requirement)},
	})
	if err != nil {
		return State{}, err
	}

	return State{
		DesignSpec:         out.Text,
		UserFlow:           ExtractSection(out.Text, HeadingUserFlow),
		UILayout:           ExtractSection(out.Text, HeadingUILayout),
		InteractionDetails: ExtractSection(out.Text, HeadingInteractionDetails),
		Messages: []StageMessage{{
			Role:    RoleDesigner,
			Phase:   PhaseDesign,
			Content: out.Text,
		}},
	}, nil
}

// Review checks the current implementation against the design and
// classifies the verdict. A failing review records the full review text
// as a feedback entry. The returned delta's IterationCount is an
// increment of one review round.
func (d *Designer) Review(ctx context.Context, s State) (State, error) {
	out, err := d.model.Chat(ctx, []model.Message{
		{Role: model.RoleSystem, Content: designerSystemPrompt},
		{Role: model.RoleUser, Content: reviewPrompt(s)},
	})
	if err != nil {
		return State{}, err
	}

	passed := d.verdict.Passed(out.Text)

	delta := State{
		ReviewResult:   out.Text,
		ReviewPassed:   passed,
		IterationCount: 1,
		Messages: []StageMessage{{
			Role:    RoleDesigner,
			Phase:   PhaseReview,
			Content: out.Text,
			Passed:  passed,
		}},
	}
	if !passed {
		delta.Feedback = []string{out.Text}
	}
	return delta, nil
}
