package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/ArianneAlonso/tutor-math-mcp/internal/logging"
)

const (
	errParse          = -32700
	errInvalidRequest = -32600
	errMethodNotFound = -32601
	errInvalidParams  = -32602
	errInternal       = -32603
)

// ResourceProvider serves resources/list and resources/read.
// ReadResource returns an error marked ErrNotFound for unknown URIs.
type ResourceProvider interface {
	Resources() []Resource
	ReadResource(ctx context.Context, uri string) (ResourceContents, error)
}

// PromptProvider serves prompts/list and prompts/get.
// GetPrompt returns an error marked ErrNotFound for unknown names and one
// marked ErrInvalidArguments when a required argument is missing.
type PromptProvider interface {
	Prompts() []Prompt
	GetPrompt(ctx context.Context, name string, args map[string]string) (GetPromptResult, error)
}

type Option func(*Server)

// Server answers MCP requests. It keeps no per-connection state, so one
// Server can be shared by any number of transports.
type Server struct {
	registry        *Registry
	resources       ResourceProvider
	prompts         PromptProvider
	info            Implementation
	protocolVersion string
	instructions    string
	logger          *slog.Logger
}

func NewServer(registry *Registry, info Implementation, opts ...Option) (*Server, error) {
	if registry == nil {
		return nil, errors.New("new server: registry is required")
	}
	if info.Name == "" {
		return nil, errors.New("new server: server name is required")
	}
	if info.Version == "" {
		return nil, errors.New("new server: server version is required")
	}

	server := &Server{
		registry:        registry,
		info:            info,
		protocolVersion: ProtocolVersion,
		logger:          logging.Logger(),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(server)
		}
	}

	if server.protocolVersion == "" {
		return nil, errors.New("new server: protocol version is required")
	}

	return server, nil
}

func WithInstructions(instructions string) Option {
	return func(server *Server) {
		server.instructions = instructions
	}
}

func WithProtocolVersion(version string) Option {
	return func(server *Server) {
		server.protocolVersion = version
	}
}

func WithResources(p ResourceProvider) Option {
	return func(server *Server) {
		server.resources = p
	}
}

func WithPrompts(p PromptProvider) Option {
	return func(server *Server) {
		server.prompts = p
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(server *Server) {
		if logger != nil {
			server.logger = logger
		}
	}
}

// Serve reads newline-delimited JSON-RPC messages from in and writes one
// response line per request to out. It returns nil at EOF and stops after
// answering a message that is not valid JSON.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	if s == nil {
		return errors.New("serve: server is nil")
	}
	if in == nil {
		return errors.New("serve: input reader is nil")
	}
	if out == nil {
		return errors.New("serve: output writer is nil")
	}

	decoder := json.NewDecoder(in)
	encoder := json.NewEncoder(out)

	for {
		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "serve")
		default:
		}

		var raw json.RawMessage
		if err := decoder.Decode(&raw); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			resp := errorResponse(nil, errParse, "parse error", err.Error())
			if encodeErr := encoder.Encode(resp); encodeErr != nil {
				return errors.Wrap(encodeErr, "serve: writing parse error response")
			}
			return errors.Wrap(err, "serve: decode failed")
		}

		resp := s.Handle(ctx, raw)
		if resp == nil {
			continue
		}
		if err := encoder.Encode(resp); err != nil {
			return errors.Wrap(err, "serve: writing response")
		}
	}
}

// Handle processes a single JSON-RPC message. It returns nil for
// notifications, and a well-formed response for everything else.
func (s *Server) Handle(ctx context.Context, raw []byte) *Response {
	if !json.Valid(raw) {
		return errorResponse(nil, errParse, "parse error", nil)
	}

	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return errorResponse(salvageID(raw), errInvalidRequest, "invalid request", err.Error())
	}
	id := requestID(req.ID)

	if req.JSONRPC != "" && req.JSONRPC != "2.0" {
		return errorResponse(id, errInvalidRequest, "invalid request", "unsupported jsonrpc version")
	}
	if req.Method == "" {
		return errorResponse(id, errInvalidRequest, "invalid request", "method is required")
	}

	if len(req.ID) == 0 && strings.HasPrefix(req.Method, "notifications/") {
		s.logger.Debug("mcp notification", "method", req.Method)
		return nil
	}

	s.logger.Debug("mcp request", "method", req.Method, "id", string(id))

	switch req.Method {
	case "initialize":
		return s.handleInitialize(id, req)
	case "ping":
		return resultResponse(id, struct{}{})
	case "tools/list":
		return resultResponse(id, ListToolsResult{Tools: s.registry.Definitions()})
	case "tools/call":
		return s.handleCallTool(ctx, id, req)
	case "resources/list":
		if s.resources == nil {
			break
		}
		return resultResponse(id, ListResourcesResult{Resources: nonNil(s.resources.Resources())})
	case "resources/read":
		if s.resources == nil {
			break
		}
		return s.handleReadResource(ctx, id, req)
	case "prompts/list":
		if s.prompts == nil {
			break
		}
		return resultResponse(id, ListPromptsResult{Prompts: nonNil(s.prompts.Prompts())})
	case "prompts/get":
		if s.prompts == nil {
			break
		}
		return s.handleGetPrompt(ctx, id, req)
	}
	return errorResponse(id, errMethodNotFound, "method not supported", req.Method)
}

func (s *Server) handleInitialize(id json.RawMessage, req Request) *Response {
	if hasParams(req.Params) {
		var params struct {
			ProtocolVersion string         `json:"protocolVersion"`
			ClientInfo      Implementation `json:"clientInfo"`
		}
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return errorResponse(id, errInvalidParams, "invalid params", err.Error())
		}
		s.logger.Info("mcp client connected",
			"client", params.ClientInfo.Name,
			"client_version", params.ClientInfo.Version,
			"protocol", params.ProtocolVersion)
	}

	result := InitializeResult{
		ProtocolVersion: s.protocolVersion,
		ServerInfo:      s.info,
		Capabilities: ServerCapabilities{
			Tools: &ListChangedCapability{},
		},
		Instructions: s.instructions,
	}
	if s.resources != nil {
		result.Capabilities.Resources = &ListChangedCapability{}
	}
	if s.prompts != nil {
		result.Capabilities.Prompts = &ListChangedCapability{}
	}
	return resultResponse(id, result)
}

func (s *Server) handleCallTool(ctx context.Context, id json.RawMessage, req Request) *Response {
	if !hasParams(req.Params) {
		return errorResponse(id, errInvalidParams, "missing params", nil)
	}

	var params struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errorResponse(id, errInvalidParams, "invalid params", err.Error())
	}
	if params.Name == "" {
		return errorResponse(id, errInvalidParams, "invalid params", "tool name is required")
	}

	result, err := s.registry.Invoke(ctx, params.Name, params.Arguments)
	if err != nil {
		switch {
		case errors.Is(err, ErrUnknownTool), errors.Is(err, ErrInvalidArguments):
			s.logger.Debug("tool call rejected", "tool", params.Name, "err", err)
			return errorResponse(id, errInvalidParams, err.Error(), nil)
		default:
			s.logger.Error("tool call failed", "tool", params.Name, "err", err)
			return errorResponse(id, errInternal, "internal error", err.Error())
		}
	}

	callResult, err := toolResult(result)
	if err != nil {
		s.logger.Error("tool result not serializable", "tool", params.Name, "err", err)
		return errorResponse(id, errInternal, "internal error", err.Error())
	}
	return resultResponse(id, callResult)
}

func (s *Server) handleReadResource(ctx context.Context, id json.RawMessage, req Request) *Response {
	var params struct {
		URI string `json:"uri"`
	}
	if hasParams(req.Params) {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return errorResponse(id, errInvalidParams, "invalid params", err.Error())
		}
	}
	if params.URI == "" {
		return errorResponse(id, errInvalidParams, "invalid params", "uri is required")
	}

	contents, err := s.resources.ReadResource(ctx, params.URI)
	if err != nil {
		return providerError(id, err, params.URI)
	}
	return resultResponse(id, ReadResourceResult{Contents: []ResourceContents{contents}})
}

func (s *Server) handleGetPrompt(ctx context.Context, id json.RawMessage, req Request) *Response {
	var params struct {
		Name      string            `json:"name"`
		Arguments map[string]string `json:"arguments"`
	}
	if hasParams(req.Params) {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return errorResponse(id, errInvalidParams, "invalid params", err.Error())
		}
	}
	if params.Name == "" {
		return errorResponse(id, errInvalidParams, "invalid params", "prompt name is required")
	}

	result, err := s.prompts.GetPrompt(ctx, params.Name, params.Arguments)
	if err != nil {
		return providerError(id, err, params.Name)
	}
	return resultResponse(id, result)
}

func providerError(id json.RawMessage, err error, key string) *Response {
	switch {
	case errors.Is(err, ErrNotFound):
		return errorResponse(id, errInvalidParams, "not found", key)
	case errors.Is(err, ErrInvalidArguments):
		return errorResponse(id, errInvalidParams, err.Error(), nil)
	default:
		return errorResponse(id, errInternal, "internal error", err.Error())
	}
}

// toolResult wraps a tool's value as one JSON text block plus the same value
// as structured content.
func toolResult(value any) (CallToolResult, error) {
	var text []byte
	if raw, ok := value.(json.RawMessage); ok {
		text = raw
	} else {
		var err error
		if text, err = json.Marshal(value); err != nil {
			return CallToolResult{}, errors.Wrap(err, "marshal tool result")
		}
	}

	result := CallToolResult{
		Content: []ContentBlock{TextContent(string(text))},
	}

	var structured map[string]any
	if err := json.Unmarshal(text, &structured); err == nil && structured != nil {
		result.StructuredContent = structured
		result.IsError = toolResultHasError(structured)
	}
	return result, nil
}

func toolResultHasError(structured map[string]any) bool {
	raw, ok := structured["error"]
	if !ok || raw == nil {
		return false
	}

	if errStr, ok := raw.(string); ok {
		return errStr != ""
	}
	return true
}

func hasParams(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

func normalizeArguments(raw json.RawMessage) json.RawMessage {
	if !hasParams(raw) {
		return []byte("{}")
	}
	return bytes.TrimSpace(raw)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func resultResponse(id json.RawMessage, result any) *Response {
	return &Response{
		JSONRPC: "2.0",
		ID:      requestID(id),
		Result:  result,
	}
}

func errorResponse(id json.RawMessage, code int, message string, data any) *Response {
	return &Response{
		JSONRPC: "2.0",
		ID:      requestID(id),
		Error: &Error{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// requestID echoes id unchanged. An absent or unparseable id becomes null.
func requestID(id json.RawMessage) json.RawMessage {
	trimmed := bytes.TrimSpace(id)
	if len(trimmed) == 0 || !json.Valid(trimmed) {
		return json.RawMessage("null")
	}
	return trimmed
}

// salvageID extracts the id from a request whose other fields failed to
// decode.
func salvageID(raw []byte) json.RawMessage {
	var envelope struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil
	}
	return envelope.ID
}
