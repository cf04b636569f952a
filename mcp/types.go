// Package mcp serves tools, resources and prompts over the JSON-RPC based
// Model Context Protocol (MCP).
//
// # Basic Usage
//
// Create a registry, register tools that implement [chat.Tool], then create
// and run a server:
//
//	registry := mcp.NewRegistry()
//	for _, tool := range mathtools.Tools() {
//	    registry.Register(tool)
//	}
//
//	server, err := mcp.NewServer(registry, mcp.Implementation{
//	    Name:    "tutor-math",
//	    Version: "1.0.0",
//	}, mcp.WithResources(topics), mcp.WithPrompts(topics))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Serve over stdio
//	if err := server.Serve(ctx, os.Stdin, os.Stdout); err != nil {
//	    log.Fatal(err)
//	}
//
// HTTP transports call [Server.Handle] once per request body instead.
//
// # Tools
//
// Tools implement [chat.Tool]. The MCPJsonSchema method returns a JSON
// object with the tool's name, description and input schema. Tools that also
// implement [Handler] return typed results and classified errors; plain
// tools report failures in-band as {"error": "..."}.
//
// # Protocol Details
//
// Supported methods:
//   - initialize: handshake and capability exchange
//   - ping: health check
//   - tools/list, tools/call
//   - resources/list, resources/read (when a [ResourceProvider] is set)
//   - prompts/list, prompts/get (when a [PromptProvider] is set)
//   - notifications/*: accepted without a response
package mcp

import "encoding/json"

// ProtocolVersion is the MCP protocol version supported by this server.
const ProtocolVersion = "2025-06-18"

// Request represents a JSON-RPC 2.0 request message.
// The ID field is omitted for notifications that don't expect a response.
type Request struct {
	JSONRPC string          `json:"jsonrpc,omitzero"`
	ID      json.RawMessage `json:"id,omitzero"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitzero"`
}

// Response represents a JSON-RPC 2.0 response message.
// Either Result or Error will be set, but not both. ID is always present and
// is null when the request had no usable id.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitzero"`
	Error   *Error          `json:"error,omitzero"`
}

// Error represents a JSON-RPC 2.0 error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitzero"`
}

// Implementation identifies an MCP server or client implementation.
type Implementation struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Description string `json:"description,omitzero"`
}

// ToolDefinition describes a tool's interface as returned by tools/list.
type ToolDefinition struct {
	Name         string          `json:"name"`
	Description  string          `json:"description,omitzero"`
	InputSchema  json.RawMessage `json:"inputSchema"`
	OutputSchema json.RawMessage `json:"outputSchema,omitzero"`
}

type ListChangedCapability struct {
	ListChanged bool `json:"listChanged,omitzero"`
}

// ServerCapabilities describes what features the server supports.
type ServerCapabilities struct {
	Tools     *ListChangedCapability `json:"tools,omitzero"`
	Resources *ListChangedCapability `json:"resources,omitzero"`
	Prompts   *ListChangedCapability `json:"prompts,omitzero"`
}

// InitializeResult is returned by the initialize method.
type InitializeResult struct {
	ProtocolVersion string             `json:"protocolVersion"`
	ServerInfo      Implementation     `json:"serverInfo"`
	Capabilities    ServerCapabilities `json:"capabilities"`
	Instructions    string             `json:"instructions,omitzero"`
}

type ListToolsResult struct {
	Tools      []ToolDefinition `json:"tools"`
	NextCursor string           `json:"nextCursor,omitzero"`
}

// ContentBlock is a piece of text content in a tool result or prompt.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// TextContent returns a text content block.
func TextContent(text string) ContentBlock {
	return ContentBlock{Type: "text", Text: text}
}

// CallToolResult is returned by the tools/call method.
// Content holds the JSON result as text; StructuredContent holds the same
// result decoded. IsError is set when a plain tool reported an in-band error.
type CallToolResult struct {
	Content           []ContentBlock `json:"content"`
	StructuredContent map[string]any `json:"structuredContent,omitzero"`
	IsError           bool           `json:"isError,omitzero"`
}

// Resource describes a readable document.
type Resource struct {
	URI         string `json:"uri"`
	Name        string `json:"name"`
	Description string `json:"description,omitzero"`
	MIMEType    string `json:"mimeType,omitzero"`
}

// ResourceContents is the text of a resource.
type ResourceContents struct {
	URI      string `json:"uri"`
	MIMEType string `json:"mimeType,omitzero"`
	Text     string `json:"text"`
}

type ListResourcesResult struct {
	Resources  []Resource `json:"resources"`
	NextCursor string     `json:"nextCursor,omitzero"`
}

type ReadResourceResult struct {
	Contents []ResourceContents `json:"contents"`
}

// Prompt describes a prompt template.
type Prompt struct {
	Name        string           `json:"name"`
	Description string           `json:"description,omitzero"`
	Arguments   []PromptArgument `json:"arguments,omitzero"`
}

type PromptArgument struct {
	Name        string `json:"name"`
	Description string `json:"description,omitzero"`
	Required    bool   `json:"required,omitzero"`
}

// PromptMessage is one rendered message of a prompt. Role is "user" or
// "assistant".
type PromptMessage struct {
	Role    string       `json:"role"`
	Content ContentBlock `json:"content"`
}

type ListPromptsResult struct {
	Prompts    []Prompt `json:"prompts"`
	NextCursor string   `json:"nextCursor,omitzero"`
}

type GetPromptResult struct {
	Description string          `json:"description,omitzero"`
	Messages    []PromptMessage `json:"messages"`
}
