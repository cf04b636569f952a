package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"

	"github.com/ArianneAlonso/tutor-math-mcp/chat"
)

type stubTool struct {
	name        string
	description string
	schema      string
	result      string
	calledWith  *string
}

func (s *stubTool) MCPJsonSchema() string {
	return s.schema
}

func (s *stubTool) Name() string {
	return s.name
}

func (s *stubTool) Description() string {
	return s.description
}

func (s *stubTool) Call(ctx context.Context, input string) string {
	if s.calledWith != nil {
		*s.calledWith = input
	}
	return s.result
}

var _ chat.Tool = (*stubTool)(nil)

// panicTool is a test tool that panics when called
type panicTool struct{}

func (panicTool) MCPJsonSchema() string {
	return `{"name":"PanicTool","description":"A tool that panics for testing","inputSchema":{"type":"object","properties":{}}}`
}

func (panicTool) Name() string {
	return "PanicTool"
}

func (panicTool) Description() string {
	return "A tool that panics for testing"
}

func (panicTool) Call(_ context.Context, _ string) string {
	panic("intentional panic for testing")
}

var _ chat.Tool = (*panicTool)(nil)

// failingHandler returns err from Handle.
type failingHandler struct {
	err error
}

func (failingHandler) MCPJsonSchema() string {
	return `{"name":"Failing","description":"always fails","inputSchema":{"type":"object"}}`
}
func (failingHandler) Name() string                        { return "Failing" }
func (failingHandler) Description() string                 { return "always fails" }
func (failingHandler) Call(context.Context, string) string { return `{"error":"failed"}` }

func (f failingHandler) Handle(context.Context, json.RawMessage) (any, error) {
	return nil, f.err
}

var _ Handler = failingHandler{}

// staticProvider serves a fixed resource and a fixed prompt.
type staticProvider struct{}

func (staticProvider) Resources() []Resource {
	return []Resource{{URI: "test://doc", Name: "doc", MIMEType: "text/plain"}}
}

func (staticProvider) ReadResource(_ context.Context, uri string) (ResourceContents, error) {
	if uri != "test://doc" {
		return ResourceContents{}, errors.Mark(errors.Newf("no resource %s", uri), ErrNotFound)
	}
	return ResourceContents{URI: uri, MIMEType: "text/plain", Text: "hello"}, nil
}

func (staticProvider) Prompts() []Prompt {
	return []Prompt{{
		Name:      "greet",
		Arguments: []PromptArgument{{Name: "who", Required: true}},
	}}
}

func (staticProvider) GetPrompt(_ context.Context, name string, args map[string]string) (GetPromptResult, error) {
	if name != "greet" {
		return GetPromptResult{}, errors.Mark(errors.Newf("no prompt %s", name), ErrNotFound)
	}
	who, ok := args["who"]
	if !ok {
		return GetPromptResult{}, errors.Mark(errors.New("falta el argumento 'who'"), ErrInvalidArguments)
	}
	return GetPromptResult{Messages: []PromptMessage{{Role: "user", Content: TextContent("hola " + who)}}}, nil
}

func newTestServer(t *testing.T, registry *Registry, opts ...Option) *Server {
	t.Helper()
	if registry == nil {
		registry = NewRegistry()
	}
	server, err := NewServer(registry, Implementation{Name: "test", Version: "1.0"}, opts...)
	require.NoError(t, err)
	return server
}

// roundTrip sends req through Handle and decodes the response as a client
// would see it.
func roundTrip(t *testing.T, server *Server, req string) map[string]any {
	t.Helper()
	resp := server.Handle(context.Background(), []byte(req))
	require.NotNil(t, resp, "request %s produced no response", req)
	data, err := json.Marshal(resp)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}
