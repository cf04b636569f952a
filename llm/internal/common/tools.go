// Package common holds the pieces every provider shares: the tool table,
// chat state, concurrent tool execution and the tool-calling loop.
package common

import (
	"context"
	"encoding/json"
	"slices"
	"sync"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"

	"github.com/ArianneAlonso/tutor-math-mcp/chat"
	"github.com/ArianneAlonso/tutor-math-mcp/schema"
)

// Tools manages tool registrations with thread-safe operations.
type Tools struct {
	mu    sync.RWMutex
	tools map[string]chat.Tool
	order []string // registration order
}

// NewTools creates a new tool manager.
func NewTools() *Tools {
	return &Tools{
		tools: make(map[string]chat.Tool),
	}
}

// Register adds a tool. Re-registering a name replaces the tool but keeps
// its original position.
func (t *Tools) Register(tool chat.Tool) error {
	name := tool.Name()
	if name == "" {
		return errors.New("tool definition missing name")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.tools[name]; !exists {
		t.order = append(t.order, name)
	}
	t.tools[name] = tool
	return nil
}

// Deregister removes a tool from the registry.
func (t *Tools) Deregister(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.tools, name)
	t.order = slices.DeleteFunc(t.order, func(n string) bool { return n == name })
}

// Get retrieves a tool by name.
func (t *Tools) Get(name string) (chat.Tool, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	tool, exists := t.tools[name]
	return tool, exists
}

// All returns all registered tools in registration order.
func (t *Tools) All() []chat.Tool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	result := make([]chat.Tool, 0, len(t.order))
	for _, name := range t.order {
		result = append(result, t.tools[name])
	}
	return result
}

// List returns tool names in registration order.
func (t *Tools) List() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Clone(t.order)
}

// Count returns the number of registered tools.
func (t *Tools) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.tools)
}

// Execute runs one tool call. An unknown tool yields an in-band error
// payload rather than a Go error so the model can recover.
func (t *Tools) Execute(ctx context.Context, call chat.ToolCall) chat.ToolResult {
	result := chat.ToolResult{ToolCallID: call.ID, Name: call.Name}

	tool, exists := t.Get(call.Name)
	if !exists {
		result.Content = UnknownToolJSON(call.Name)
		return result
	}

	args := string(call.Arguments)
	if args == "" {
		args = "{}"
	}
	result.Content = tool.Call(ctx, args)
	if msg := errorField(result.Content); msg != "" {
		result.Error = msg
	}
	return result
}

// ExecuteCalls runs the calls of one round concurrently and returns their
// results in call order.
func (t *Tools) ExecuteCalls(ctx context.Context, calls []chat.ToolCall) []chat.ToolResult {
	results := make([]chat.ToolResult, len(calls))

	var g errgroup.Group
	for i, call := range calls {
		g.Go(func() error {
			results[i] = t.Execute(ctx, call)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// FormatToolErrorJSON formats a tool error as {"error": msg}.
func FormatToolErrorJSON(msg string) string {
	if msg == "" {
		return "{}"
	}
	payload, _ := json.Marshal(map[string]string{"error": msg})
	return string(payload)
}

// UnknownToolJSON is the payload returned for a call to an unregistered tool.
func UnknownToolJSON(name string) string {
	return FormatToolErrorJSON("Herramienta '" + name + "' no reconocida")
}

func errorField(content string) string {
	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal([]byte(content), &payload) != nil {
		return ""
	}
	return payload.Error
}

// InputSchema extracts the inputSchema object from a tool's MCP definition.
func InputSchema(def chat.ToolDef) (*schema.JSON, error) {
	var mcp struct {
		InputSchema json.RawMessage `json:"inputSchema"`
	}
	if err := json.Unmarshal([]byte(def.MCPJsonSchema()), &mcp); err != nil {
		return nil, errors.Wrapf(err, "tool %s: parse MCP definition", def.Name())
	}
	if len(mcp.InputSchema) == 0 {
		return &schema.JSON{Type: schema.Object, Properties: map[string]*schema.JSON{}}, nil
	}
	s, err := schema.Parse(mcp.InputSchema)
	if err != nil {
		return nil, errors.Wrapf(err, "tool %s", def.Name())
	}
	return s, nil
}
