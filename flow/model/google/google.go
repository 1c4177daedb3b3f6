// Package google adapts Google's Gemini API to the model.ChatModel
// interface.
package google

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/dshills/featureflow/flow/model"
)

// DefaultModel is used when no model name is given.
const DefaultModel = "gemini-1.5-flash"

// ChatModel implements model.ChatModel over the generative-ai-go client.
//
// Gemini takes the system prompt as a model-level SystemInstruction rather
// than a conversation turn, so system messages are extracted before the
// call. Close releases the underlying client.
type ChatModel struct {
	client *genai.Client
	model  string
}

// NewChatModel creates a Gemini-backed ChatModel. An empty modelName
// selects DefaultModel. Get an API key from https://aistudio.google.com/.
func NewChatModel(ctx context.Context, apiKey, modelName string) (*ChatModel, error) {
	if apiKey == "" {
		return nil, errors.New("google API key is required")
	}
	if modelName == "" {
		modelName = DefaultModel
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Google client: %w", err)
	}

	return &ChatModel{
		client: client,
		model:  modelName,
	}, nil
}

// Close closes the underlying Gemini client and releases resources.
func (m *ChatModel) Close() error {
	if m.client != nil {
		return m.client.Close()
	}
	return nil
}

// Chat implements model.ChatModel.
func (m *ChatModel) Chat(ctx context.Context, messages []model.Message) (model.ChatOut, error) {
	if ctx.Err() != nil {
		return model.ChatOut{}, ctx.Err()
	}

	system, prompt := splitMessages(messages)

	gm := m.client.GenerativeModel(m.model)
	if system != "" {
		gm.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(system)},
		}
	}

	resp, err := gm.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return model.ChatOut{}, fmt.Errorf("Gemini API error: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return model.ChatOut{}, errors.New("no response from Gemini API")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return model.ChatOut{Text: sb.String()}, nil
}

// splitMessages separates system messages from the rest of the
// conversation, which is flattened into a single text prompt with role
// labels on assistant turns.
func splitMessages(messages []model.Message) (string, string) {
	var system, prompt strings.Builder

	for _, msg := range messages {
		switch msg.Role {
		case model.RoleSystem:
			if system.Len() > 0 {
				system.WriteString("\n\n")
			}
			system.WriteString(msg.Content)
		case model.RoleAssistant:
			if prompt.Len() > 0 {
				prompt.WriteString("\n\n")
			}
			prompt.WriteString("Previous response:\n")
			prompt.WriteString(msg.Content)
		default:
			if prompt.Len() > 0 {
				prompt.WriteString("\n\n")
			}
			prompt.WriteString(msg.Content)
		}
	}

	return system.String(), prompt.String()
}
