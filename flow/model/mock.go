package model

import (
	"context"
	"sync"
)

// MockChatModel is a scripted ChatModel for tests.
//
// It returns configured responses in order, records every call, and can
// inject errors. Thread-safe.
//
//	mock := &model.MockChatModel{
//	    Responses: []model.ChatOut{
//	        {Text: "design text"},
//	        {Text: "code text"},
//	        {Text: "APPROVED"},
//	    },
//	}
type MockChatModel struct {
	// Responses is the sequence returned by successive Chat calls.
	// Once exhausted, the last response repeats.
	Responses []ChatOut

	// Err, when set, is returned by every Chat call.
	Err error

	// Calls records each invocation's messages.
	Calls [][]Message

	mu        sync.Mutex
	callIndex int
}

// Chat implements ChatModel. The call is recorded even when an error is
// returned.
func (m *MockChatModel) Chat(ctx context.Context, messages []Message) (ChatOut, error) {
	if ctx.Err() != nil {
		return ChatOut{}, ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	recorded := make([]Message, len(messages))
	copy(recorded, messages)
	m.Calls = append(m.Calls, recorded)

	if m.Err != nil {
		return ChatOut{}, m.Err
	}
	if len(m.Responses) == 0 {
		return ChatOut{}, nil
	}

	idx := m.callIndex
	if idx >= len(m.Responses) {
		idx = len(m.Responses) - 1
	} else {
		m.callIndex++
	}
	return m.Responses[idx], nil
}

// Reset clears the call history and response cursor so the mock can be
// reused across test cases.
func (m *MockChatModel) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = nil
	m.callIndex = 0
}

// CallCount returns how many times Chat has been called.
func (m *MockChatModel) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.Calls)
}
