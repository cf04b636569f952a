package common

import (
	"slices"
	"sync"

	"github.com/ArianneAlonso/tutor-math-mcp/chat"
)

// State is the history and token accounting of one chat.
type State struct {
	mu sync.Mutex

	systemPrompt string
	messages     []chat.Message

	lastMessageUsage chat.TokenUsageDetails
	cumulativeUsage  chat.TokenUsageDetails
}

// NewState creates a new state manager.
func NewState(systemPrompt string, initialMessages []chat.Message) *State {
	return &State{
		systemPrompt: systemPrompt,
		messages:     slices.Clone(initialMessages),
	}
}

// History returns the system prompt and a copy of the message history.
func (s *State) History() (string, []chat.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.systemPrompt, slices.Clone(s.messages)
}

// AppendMessages adds messages to the history.
func (s *State) AppendMessages(msgs ...chat.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msgs...)
}

// TokenUsage returns the token usage statistics.
func (s *State) TokenUsage() (chat.TokenUsage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return chat.TokenUsage{
		LastMessage: s.lastMessageUsage,
		Cumulative:  s.cumulativeUsage,
	}, nil
}

// AddUsage records the usage of one provider request. Zero usage is ignored.
func (s *State) AddUsage(usage chat.TokenUsageDetails) {
	if usage.TotalTokens == 0 {
		usage.TotalTokens = usage.InputTokens + usage.OutputTokens
	}
	if usage.TotalTokens == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastMessageUsage = usage
	s.cumulativeUsage.InputTokens += usage.InputTokens
	s.cumulativeUsage.OutputTokens += usage.OutputTokens
	s.cumulativeUsage.TotalTokens += usage.TotalTokens
	s.cumulativeUsage.CachedTokens += usage.CachedTokens
}
