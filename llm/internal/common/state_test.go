package common

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ArianneAlonso/tutor-math-mcp/chat"
)

func TestState_CopiesMessages(t *testing.T) {
	t.Parallel()
	initial := []chat.Message{chat.UserMessage("hola")}
	s := NewState("sistema", initial)
	initial[0] = chat.UserMessage("cambiado")

	prompt, msgs := s.History()
	assert.Equal(t, "sistema", prompt)
	assert.Equal(t, "hola", msgs[0].GetText())

	msgs[0] = chat.UserMessage("otra vez")
	_, again := s.History()
	assert.Equal(t, "hola", again[0].GetText())
}

func TestState_AddUsage(t *testing.T) {
	t.Parallel()
	s := NewState("", nil)

	s.AddUsage(chat.TokenUsageDetails{InputTokens: 10, OutputTokens: 20, TotalTokens: 30, CachedTokens: 5})
	s.AddUsage(chat.TokenUsageDetails{InputTokens: 4, OutputTokens: 6})
	s.AddUsage(chat.TokenUsageDetails{})

	usage, err := s.TokenUsage()
	require.NoError(t, err)
	assert.Equal(t, 10, usage.LastMessage.TotalTokens, "total is derived when the provider omits it")
	assert.Equal(t, 40, usage.Cumulative.TotalTokens)
	assert.Equal(t, 14, usage.Cumulative.InputTokens)
	assert.Equal(t, 5, usage.Cumulative.CachedTokens)
}

func TestState_ConcurrentAppends(t *testing.T) {
	t.Parallel()
	s := NewState("", nil)

	const goroutines, perGoroutine = 50, 10
	var wg sync.WaitGroup
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perGoroutine {
				s.AppendMessages(chat.AssistantMessage("r"))
				s.AddUsage(chat.TokenUsageDetails{InputTokens: 1, OutputTokens: 1, TotalTokens: 2})
				s.History()
			}
		}()
	}
	wg.Wait()

	_, msgs := s.History()
	assert.Len(t, msgs, goroutines*perGoroutine)
	usage, _ := s.TokenUsage()
	assert.Equal(t, 2*goroutines*perGoroutine, usage.Cumulative.TotalTokens)
}
