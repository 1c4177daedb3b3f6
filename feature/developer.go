package feature

import (
	"context"

	"github.com/dshills/featureflow/flow/model"
)

// Developer is the implementation role. It writes the first
// implementation from the design and revises it against review feedback.
type Developer struct {
	model model.ChatModel
}

// NewDeveloper creates a Developer backed by the given chat model.
func NewDeveloper(m model.ChatModel) *Developer {
	return &Developer{model: m}
}

// Implement produces the next implementation. On the first pass
// (IterationCount zero) it implements from the design; afterwards it
// revises the previous code against the latest feedback, with the full
// feedback history for context.
func (d *Developer) Implement(ctx context.Context, s State) (State, error) {
	phase := PhaseImplement
	prompt := developPrompt(s)
	if s.IterationCount > 0 {
		phase = PhaseRevise
		prompt = revisePrompt(s)
	}

	out, err := d.model.Chat(ctx, []model.Message{
		{Role: model.RoleSystem, Content: developerSystemPrompt},
		{Role: model.RoleUser, Content: prompt},
	})
	if err != nil {
		return State{}, err
	}

	return State{
		Code: out.Text,
		Messages: []StageMessage{{
			Role:      RoleDeveloper,
			Phase:     phase,
			Content:   out.Text,
			Iteration: s.IterationCount,
		}},
	}, nil
}
