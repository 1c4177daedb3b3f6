// Package openai adapts OpenAI's chat completion API to the model.ChatModel
// interface.
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/dshills/featureflow/flow/model"
)

// DefaultModel is used when no model name is given.
const DefaultModel = "gpt-4o"

// ChatModel implements model.ChatModel for OpenAI's API.
//
// Transient errors (rate limits, 5xx, network failures) are retried with a
// short backoff; permanent errors are returned immediately. Safe for
// concurrent use.
type ChatModel struct {
	client     *openai.Client
	model      string
	maxRetries int
	retryDelay time.Duration
}

// NewChatModel creates an OpenAI-backed ChatModel. An empty modelName
// selects DefaultModel. Get an API key from
// https://platform.openai.com/api-keys.
//
// The returned model retries transient errors up to 3 times with a one
// second base delay.
func NewChatModel(apiKey, modelName string) *ChatModel {
	if modelName == "" {
		modelName = DefaultModel
	}

	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &ChatModel{
		client:     &client,
		model:      modelName,
		maxRetries: 3,
		retryDelay: time.Second,
	}
}

// Chat implements model.ChatModel.
func (m *ChatModel) Chat(ctx context.Context, messages []model.Message) (model.ChatOut, error) {
	if ctx.Err() != nil {
		return model.ChatOut{}, ctx.Err()
	}

	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(m.model),
		Messages: convertMessages(messages),
	}

	var lastErr error
	for attempt := 0; attempt <= m.maxRetries; attempt++ {
		completion, err := m.client.Chat.Completions.New(ctx, params)
		if err == nil {
			if len(completion.Choices) == 0 {
				return model.ChatOut{}, errors.New("no response from OpenAI API")
			}
			return model.ChatOut{Text: completion.Choices[0].Message.Content}, nil
		}

		lastErr = err
		if !isTransientError(err) {
			return model.ChatOut{}, err
		}
		if attempt >= m.maxRetries {
			break
		}

		// Rate limits back off linearly with the attempt count.
		delay := m.retryDelay
		if isRateLimitError(err) {
			delay = m.retryDelay * time.Duration(attempt+1)
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return model.ChatOut{}, ctx.Err()
		}
	}

	return model.ChatOut{}, fmt.Errorf("OpenAI API failed after %d retries: %w", m.maxRetries, lastErr)
}

func convertMessages(messages []model.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case model.RoleSystem:
			out = append(out, openai.SystemMessage(msg.Content))
		case model.RoleAssistant:
			out = append(out, openai.AssistantMessage(msg.Content))
		default:
			out = append(out, openai.UserMessage(msg.Content))
		}
	}
	return out
}

// isTransientError determines if an error should trigger a retry.
func isTransientError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	msgLower := strings.ToLower(err.Error())
	transientPatterns := []string{
		"rate limit",
		"429",
		"timeout",
		"network",
		"connection",
		"temporary",
		"500",
		"502",
		"503",
		"504",
	}
	for _, pattern := range transientPatterns {
		if strings.Contains(msgLower, pattern) {
			return true
		}
	}
	return false
}

func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	msgLower := strings.ToLower(err.Error())
	return strings.Contains(msgLower, "rate limit") ||
		strings.Contains(msgLower, "429") ||
		strings.Contains(msgLower, "too many requests")
}
