// Package testing provides a scripted chat.Client for unit tests and
// reusable checks that run against real providers.
package testing

import (
	"context"
	"slices"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/ArianneAlonso/tutor-math-mcp/chat"
	"github.com/ArianneAlonso/tutor-math-mcp/llm/internal/common"
)

// ErrScriptExhausted is returned when a chat asks for more replies than
// were scripted.
var ErrScriptExhausted = errors.New("fake client: no scripted reply left")

// Turn is one scripted model reply.
type Turn struct {
	Text      string
	ToolCalls []chat.ToolCall
	Usage     chat.TokenUsageDetails
	Err       error
}

// Request records what a fake chat sent for one model round.
type Request struct {
	SystemPrompt string
	Messages     []chat.Message
	Options      chat.Options
	Tools        []string
}

// FakeClient replays Turns in order across every chat it creates. Tool
// calls in a Turn are executed against the chat's registered tools, the
// same way the real providers do.
type FakeClient struct {
	mu       sync.Mutex
	turns    []Turn
	requests []Request
}

var _ chat.Client = (*FakeClient)(nil)

// NewFakeClient returns a client that replies with turns in order.
func NewFakeClient(turns ...Turn) *FakeClient {
	return &FakeClient{turns: turns}
}

// Script appends more replies.
func (f *FakeClient) Script(turns ...Turn) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.turns = append(f.turns, turns...)
}

// Requests returns every round sent so far.
func (f *FakeClient) Requests() []Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.requests)
}

// Remaining is the number of unused scripted replies.
func (f *FakeClient) Remaining() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.turns)
}

func (f *FakeClient) next(req Request) (Turn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if len(f.turns) == 0 {
		return Turn{}, ErrScriptExhausted
	}
	turn := f.turns[0]
	f.turns = f.turns[1:]
	return turn, nil
}

func (f *FakeClient) NewChat(systemPrompt string, initialMsgs ...chat.Message) chat.Chat {
	return &fakeChat{
		client: f,
		state:  common.NewState(systemPrompt, initialMsgs),
		tools:  common.NewTools(),
	}
}

type fakeChat struct {
	client *FakeClient
	state  *common.State
	tools  *common.Tools
}

func (c *fakeChat) Message(ctx context.Context, msg chat.Message, opts ...chat.Option) (chat.Message, error) {
	reqOpts := chat.ApplyOptions(opts...)
	round := func(ctx context.Context, systemPrompt string, msgs []chat.Message) (chat.Message, chat.TokenUsageDetails, error) {
		turn, err := c.client.next(Request{
			SystemPrompt: systemPrompt,
			Messages:     msgs,
			Options:      reqOpts,
			Tools:        c.tools.List(),
		})
		if err != nil {
			return chat.Message{}, chat.TokenUsageDetails{}, err
		}
		if turn.Err != nil {
			return chat.Message{}, chat.TokenUsageDetails{}, turn.Err
		}
		reply := chat.Message{Role: chat.AssistantRole}
		if turn.Text != "" {
			reply.AddText(turn.Text)
		}
		for _, tc := range turn.ToolCalls {
			reply.AddToolCall(tc)
		}
		return reply, turn.Usage, nil
	}
	return common.RunToolLoop(ctx, c.state, c.tools, msg, common.DefaultMaxToolRounds, round)
}

func (c *fakeChat) History() (string, []chat.Message) {
	return c.state.History()
}

func (c *fakeChat) TokenUsage() (chat.TokenUsage, error) {
	return c.state.TokenUsage()
}

func (c *fakeChat) MaxTokens() int {
	return 8192
}

func (c *fakeChat) RegisterTool(tool chat.Tool) error {
	return c.tools.Register(tool)
}

func (c *fakeChat) DeregisterTool(name string) {
	c.tools.Deregister(name)
}

func (c *fakeChat) ListTools() []string {
	return c.tools.List()
}
