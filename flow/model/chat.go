// Package model provides the LLM invocation boundary for pipeline stages.
package model

import "context"

// ChatModel is the interface pipeline stages use to call a language model.
//
// Semantics are synchronous and one-shot: one conversation in, one
// response out. Token-level streaming is deliberately absent; stages
// consume complete responses.
//
// Implementations should:
// - Handle provider authentication.
// - Convert Message values to the provider's wire format.
// - Respect context cancellation and deadlines.
// - Decide their own retry policy; the pipeline never retries.
//
// Example:
//
//	m := anthropic.NewChatModel(os.Getenv("ANTHROPIC_API_KEY"), "")
//	out, err := m.Chat(ctx, []model.Message{
//	    {Role: model.RoleSystem, Content: "You are a designer."},
//	    {Role: model.RoleUser, Content: "Design a login form."},
//	})
type ChatModel interface {
	// Chat sends the conversation to the model and returns its response.
	// Errors are provider errors, network errors, or context
	// cancellation, returned unmodified for the caller to classify.
	Chat(ctx context.Context, messages []Message) (ChatOut, error)
}

// Message is a single turn in an LLM conversation, following the common
// chat format shared by the major providers.
type Message struct {
	// Role identifies the sender; use the Role* constants.
	Role string

	// Content is the message text.
	Content string
}

// Standard role constants.
const (
	// RoleSystem sets context and behavior; conventionally first.
	RoleSystem = "system"

	// RoleUser carries input from the application.
	RoleUser = "user"

	// RoleAssistant carries a prior model response.
	RoleAssistant = "assistant"
)

// ChatOut is the model's response to one Chat call.
type ChatOut struct {
	// Text is the complete generated response.
	Text string
}
