package mcp

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/ArianneAlonso/tutor-math-mcp/chat"
)

// Invocation failures. Every error returned by Registry.Invoke is marked
// with exactly one of these.
var (
	ErrUnknownTool      = errors.New("unknown tool")
	ErrInvalidArguments = errors.New("invalid arguments")
	ErrInternal         = errors.New("internal error")
)

// ErrNotFound is returned by providers for unknown resources and prompts.
var ErrNotFound = errors.New("not found")

// Handler is a tool that returns typed results and errors instead of
// in-band JSON. Input-caused errors must be marked with chat.ErrInvalidInput.
type Handler interface {
	chat.Tool
	Handle(ctx context.Context, args json.RawMessage) (any, error)
}

// Registry holds a collection of tools that can be exposed via an MCP server.
// It is safe for concurrent use; tools can be registered while the server is running.
type Registry struct {
	mu          sync.Mutex
	tools       map[string]chat.Tool
	definitions map[string]ToolDefinition
	order       []string
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools:       make(map[string]chat.Tool),
		definitions: make(map[string]ToolDefinition),
	}
}

// Register adds a tool to the registry. The tool's MCPJsonSchema method is called
// to extract its name and schema. If a tool with the same name already exists,
// it is replaced but keeps its original position.
func (r *Registry) Register(tool chat.Tool) error {
	if tool == nil {
		return errors.New("register tool: nil tool")
	}

	definition, err := toolDefinition(tool)
	if err != nil {
		return errors.Wrap(err, "register tool")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[definition.Name]; !exists {
		r.order = append(r.order, definition.Name)
	}

	r.tools[definition.Name] = tool
	r.definitions[definition.Name] = definition
	return nil
}

// Get retrieves a tool by name.
func (r *Registry) Get(name string) (chat.Tool, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tool, ok := r.tools[name]
	return tool, ok
}

// Definitions returns the tool definitions for all registered tools
// in the order they were first registered. This is used by tools/list.
func (r *Registry) Definitions() []ToolDefinition {
	r.mu.Lock()
	defer r.mu.Unlock()

	defs := make([]ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		if def, ok := r.definitions[name]; ok {
			defs = append(defs, def)
		}
	}
	return defs
}

// Invoke runs the named tool with raw JSON arguments.
//
// An unknown name fails with ErrUnknownTool. Failures caused by the
// arguments (anything marked chat.ErrInvalidInput) are marked
// ErrInvalidArguments with their message intact. Everything else,
// including a panic inside the tool, is marked ErrInternal.
//
// Handler tools return their typed result. Plain tools return their output
// as json.RawMessage, in-band errors included.
func (r *Registry) Invoke(ctx context.Context, name string, args json.RawMessage) (result any, err error) {
	tool, ok := r.Get(name)
	if !ok {
		return nil, errors.Mark(errors.Newf("Herramienta '%s' no reconocida", name), ErrUnknownTool)
	}

	defer func() {
		if p := recover(); p != nil {
			result = nil
			err = errors.Mark(errors.Newf("tool %s panicked: %v", name, p), ErrInternal)
		}
	}()

	args = normalizeArguments(args)

	if h, ok := tool.(Handler); ok {
		res, herr := h.Handle(ctx, args)
		if herr != nil {
			return nil, classify(herr)
		}
		return res, nil
	}

	output := tool.Call(ctx, string(args))
	if !json.Valid([]byte(output)) {
		return nil, errors.Mark(errors.Newf("tool %s returned invalid JSON", name), ErrInternal)
	}
	return json.RawMessage(output), nil
}

func classify(err error) error {
	if errors.Is(err, chat.ErrInvalidInput) {
		return errors.Mark(err, ErrInvalidArguments)
	}
	return errors.Mark(err, ErrInternal)
}

func toolDefinition(tool chat.Tool) (ToolDefinition, error) {
	var schema struct {
		Name         string          `json:"name"`
		Description  string          `json:"description"`
		InputSchema  json.RawMessage `json:"inputSchema"`
		OutputSchema json.RawMessage `json:"outputSchema"`
	}

	if err := json.Unmarshal([]byte(tool.MCPJsonSchema()), &schema); err != nil {
		return ToolDefinition{}, errors.Wrap(err, "parse MCPJsonSchema")
	}
	if schema.Name == "" {
		return ToolDefinition{}, errors.New("missing tool name")
	}
	if len(schema.InputSchema) == 0 {
		return ToolDefinition{}, errors.Newf("missing input schema for %q", schema.Name)
	}

	return ToolDefinition{
		Name:         schema.Name,
		Description:  schema.Description,
		InputSchema:  schema.InputSchema,
		OutputSchema: schema.OutputSchema,
	}, nil
}
