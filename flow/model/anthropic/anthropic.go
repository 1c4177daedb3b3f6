// Package anthropic adapts Anthropic's Claude API to the model.ChatModel
// interface.
package anthropic

import (
	"context"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/dshills/featureflow/flow/model"
)

// DefaultModel is used when no model name is given.
const DefaultModel = "claude-sonnet-4-20250514"

const maxTokens = 8192

// ChatModel implements model.ChatModel over the official anthropic-sdk-go
// client. Safe for concurrent use; the SDK client handles concurrent
// requests.
//
// Anthropic takes the system prompt as a separate request parameter, so
// system messages are extracted from the conversation before sending.
type ChatModel struct {
	client *anthropic.Client
	model  string
}

// NewChatModel creates a Claude-backed ChatModel. An empty modelName
// selects DefaultModel. Get an API key from https://console.anthropic.com/.
func NewChatModel(apiKey, modelName string) *ChatModel {
	if modelName == "" {
		modelName = DefaultModel
	}

	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &ChatModel{
		client: &client,
		model:  modelName,
	}
}

// Chat implements model.ChatModel.
func (m *ChatModel) Chat(ctx context.Context, messages []model.Message) (model.ChatOut, error) {
	if ctx.Err() != nil {
		return model.ChatOut{}, ctx.Err()
	}

	system, conversation := splitSystemPrompt(messages)

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(m.model),
		MaxTokens: maxTokens,
		Messages:  conversation,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	message, err := m.client.Messages.New(ctx, params)
	if err != nil {
		return model.ChatOut{}, err
	}

	var text string
	for _, block := range message.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	return model.ChatOut{Text: text}, nil
}

// splitSystemPrompt separates system messages (concatenated when multiple)
// from the conversation turns.
func splitSystemPrompt(messages []model.Message) (string, []anthropic.MessageParam) {
	var system string
	conversation := make([]anthropic.MessageParam, 0, len(messages))

	for _, msg := range messages {
		switch msg.Role {
		case model.RoleSystem:
			if system != "" {
				system += "\n\n"
			}
			system += msg.Content
		case model.RoleAssistant:
			conversation = append(conversation, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		default:
			conversation = append(conversation, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}

	return system, conversation
}
