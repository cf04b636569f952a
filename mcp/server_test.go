package mcp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewServerValidation(t *testing.T) {
	_, err := NewServer(nil, Implementation{Name: "test", Version: "1.0"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "registry is required")

	_, err = NewServer(NewRegistry(), Implementation{Name: "", Version: "1.0"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server name is required")

	_, err = NewServer(NewRegistry(), Implementation{Name: "test", Version: ""})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server version is required")

	_, err = NewServer(NewRegistry(), Implementation{Name: "test", Version: "1.0"}, WithProtocolVersion(""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "protocol version is required")
}

func TestInitialize(t *testing.T) {
	server := newTestServer(t, nil,
		WithInstructions("Usa estas herramientas para resolver ecuaciones"),
		WithProtocolVersion("custom-2025"),
	)

	resp := server.Handle(context.Background(), []byte(`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-06-18","clientInfo":{"name":"client","version":"1.0"},"capabilities":{}}}`))
	require.NotNil(t, resp)
	require.Nil(t, resp.Error)

	result, ok := resp.Result.(InitializeResult)
	require.True(t, ok)
	assert.Equal(t, "custom-2025", result.ProtocolVersion)
	assert.Equal(t, "Usa estas herramientas para resolver ecuaciones", result.Instructions)
	assert.NotNil(t, result.Capabilities.Tools)
	assert.Nil(t, result.Capabilities.Resources)
	assert.Nil(t, result.Capabilities.Prompts)
}

func TestInitializeWithoutParams(t *testing.T) {
	server := newTestServer(t, nil, WithResources(staticProvider{}), WithPrompts(staticProvider{}))

	out := roundTrip(t, server, `{"method":"initialize","id":"abc"}`)
	assert.Equal(t, "abc", out["id"])
	assert.Equal(t, "2.0", out["jsonrpc"])
	result := out["result"].(map[string]any)
	assert.Equal(t, ProtocolVersion, result["protocolVersion"])
	caps := result["capabilities"].(map[string]any)
	assert.Contains(t, caps, "tools")
	assert.Contains(t, caps, "resources")
	assert.Contains(t, caps, "prompts")
}

func TestPing(t *testing.T) {
	out := roundTrip(t, newTestServer(t, nil), `{"jsonrpc":"2.0","id":5,"method":"ping"}`)
	assert.Equal(t, float64(5), out["id"])
	assert.Equal(t, map[string]any{}, out["result"])
	assert.NotContains(t, out, "error")
}

func TestToolsListStableOrder(t *testing.T) {
	server := newTestServer(t, mathRegistry(t))

	names := func() []string {
		out := roundTrip(t, server, `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)
		tools := out["result"].(map[string]any)["tools"].([]any)
		var names []string
		for _, tool := range tools {
			names = append(names, tool.(map[string]any)["name"].(string))
		}
		return names
	}
	first := names()
	assert.Equal(t, []string{"resolver_ecuacion_lineal", "resolver_ecuacion_cuadratica", "realizar_operacion"}, first)
	assert.Equal(t, first, names())
}

func TestToolsCallQuadratic(t *testing.T) {
	server := newTestServer(t, mathRegistry(t))

	out := roundTrip(t, server, `{"method":"tools/call","params":{"name":"resolver_ecuacion_cuadratica","arguments":{"a":1,"b":-3,"c":2}},"id":7}`)
	assert.Equal(t, float64(7), out["id"])
	require.NotContains(t, out, "error")

	result := out["result"].(map[string]any)
	structured := result["structuredContent"].(map[string]any)
	assert.Equal(t, []any{2.0, 1.0}, structured["soluciones"])
	assert.Equal(t, "two_distinct_real", structured["root_kind"])
	assert.Equal(t, 1.0, structured["discriminante"])

	content := result["content"].([]any)
	require.Len(t, content, 1)
	block := content[0].(map[string]any)
	assert.Equal(t, "text", block["type"])
	assert.Contains(t, block["text"], `"root_kind":"two_distinct_real"`)
	assert.NotContains(t, result, "isError")
}

func TestToolsCallErrors(t *testing.T) {
	registry := mathRegistry(t)
	require.NoError(t, registry.Register(panicTool{}))
	server := newTestServer(t, registry)

	tests := []struct {
		name    string
		req     string
		code    int
		message string
	}{
		{
			name:    "unknown tool",
			req:     `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"nonexistent_tool","arguments":{}}}`,
			code:    errInvalidParams,
			message: "Herramienta 'nonexistent_tool' no reconocida",
		},
		{
			name:    "degenerate coefficient",
			req:     `{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"resolver_ecuacion_lineal","arguments":{"m":0,"b":1}}}`,
			code:    errInvalidParams,
			message: "Error al resolver ecuación lineal: El coeficiente 'm' no puede ser cero. La ecuación 0x + 1 = 0 no es lineal.",
		},
		{
			name:    "division by zero",
			req:     `{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"realizar_operacion","arguments":{"expresion":"1/0"}}}`,
			code:    errInvalidParams,
			message: "Error al evaluar la expresión: Error: División por cero detectada",
		},
		{
			name:    "missing argument",
			req:     `{"jsonrpc":"2.0","id":4,"method":"tools/call","params":{"name":"resolver_ecuacion_cuadratica","arguments":{"a":1}}}`,
			code:    errInvalidParams,
			message: "falta el argumento requerido 'b'",
		},
		{
			name:    "quadratic discriminant out of range",
			req:     `{"jsonrpc":"2.0","id":7,"method":"tools/call","params":{"name":"resolver_ecuacion_cuadratica","arguments":{"a":1e200,"b":1e200,"c":1e200}}}`,
			code:    errInvalidParams,
			message: "Error al resolver ecuación cuadrática: los coeficientes son demasiado grandes para calcular el discriminante",
		},
		{
			name:    "linear root out of range",
			req:     `{"jsonrpc":"2.0","id":8,"method":"tools/call","params":{"name":"resolver_ecuacion_lineal","arguments":{"m":1e-310,"b":1e300}}}`,
			code:    errInvalidParams,
			message: "Error al resolver ecuación lineal: la solución no se puede representar como un número finito",
		},
		{
			name:    "missing params",
			req:     `{"jsonrpc":"2.0","id":5,"method":"tools/call"}`,
			code:    errInvalidParams,
			message: "missing params",
		},
		{
			name:    "panic",
			req:     `{"jsonrpc":"2.0","id":6,"method":"tools/call","params":{"name":"PanicTool"}}`,
			code:    errInternal,
			message: "internal error",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := server.Handle(context.Background(), []byte(tt.req))
			require.NotNil(t, resp)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
			assert.Equal(t, tt.message, resp.Error.Message)
		})
	}
}

func TestToolsCallPlainToolError(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.Register(&stubTool{
		schema: `{"name":"ReadFile","inputSchema":{"type":"object"}}`,
		result: `{"error":"no such file"}`,
	}))
	server := newTestServer(t, registry)

	resp := server.Handle(context.Background(), []byte(`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"ReadFile","arguments":null}}`))
	require.NotNil(t, resp)
	require.Nil(t, resp.Error)
	result := resp.Result.(CallToolResult)
	assert.True(t, result.IsError)
	assert.Equal(t, "no such file", result.StructuredContent["error"])
}

func TestResources(t *testing.T) {
	server := newTestServer(t, nil, WithResources(staticProvider{}))

	out := roundTrip(t, server, `{"jsonrpc":"2.0","id":1,"method":"resources/list"}`)
	resources := out["result"].(map[string]any)["resources"].([]any)
	require.Len(t, resources, 1)
	assert.Equal(t, "test://doc", resources[0].(map[string]any)["uri"])

	out = roundTrip(t, server, `{"jsonrpc":"2.0","id":2,"method":"resources/read","params":{"uri":"test://doc"}}`)
	contents := out["result"].(map[string]any)["contents"].([]any)
	require.Len(t, contents, 1)
	assert.Equal(t, "hello", contents[0].(map[string]any)["text"])

	resp := server.Handle(context.Background(), []byte(`{"jsonrpc":"2.0","id":3,"method":"resources/read","params":{"uri":"test://missing"}}`))
	require.NotNil(t, resp.Error)
	assert.Equal(t, errInvalidParams, resp.Error.Code)
	assert.Equal(t, "not found", resp.Error.Message)
}

func TestPrompts(t *testing.T) {
	server := newTestServer(t, nil, WithPrompts(staticProvider{}))

	out := roundTrip(t, server, `{"jsonrpc":"2.0","id":1,"method":"prompts/list"}`)
	prompts := out["result"].(map[string]any)["prompts"].([]any)
	require.Len(t, prompts, 1)

	resp := server.Handle(context.Background(), []byte(`{"jsonrpc":"2.0","id":2,"method":"prompts/get","params":{"name":"greet","arguments":{"who":"Ana"}}}`))
	require.Nil(t, resp.Error)
	result := resp.Result.(GetPromptResult)
	assert.Equal(t, "hola Ana", result.Messages[0].Content.Text)

	resp = server.Handle(context.Background(), []byte(`{"jsonrpc":"2.0","id":3,"method":"prompts/get","params":{"name":"nope"}}`))
	require.NotNil(t, resp.Error)
	assert.Equal(t, errInvalidParams, resp.Error.Code)
	assert.Equal(t, "not found", resp.Error.Message)

	resp = server.Handle(context.Background(), []byte(`{"jsonrpc":"2.0","id":4,"method":"prompts/get","params":{"name":"greet"}}`))
	require.NotNil(t, resp.Error)
	assert.Equal(t, errInvalidParams, resp.Error.Code)
	assert.Equal(t, "falta el argumento 'who'", resp.Error.Message)
}

func TestProvidersNotConfigured(t *testing.T) {
	server := newTestServer(t, nil)
	for _, method := range []string{"resources/list", "resources/read", "prompts/list", "prompts/get"} {
		resp := server.Handle(context.Background(), []byte(`{"jsonrpc":"2.0","id":1,"method":"`+method+`"}`))
		require.NotNil(t, resp.Error, method)
		assert.Equal(t, errMethodNotFound, resp.Error.Code, method)
	}
}

func TestEnvelopeErrors(t *testing.T) {
	server := newTestServer(t, nil)

	tests := []struct {
		name string
		req  string
		code int
		id   any
	}{
		{"unknown method", `{"jsonrpc":"2.0","id":9,"method":"sampling/createMessage"}`, errMethodNotFound, float64(9)},
		{"bad version", `{"jsonrpc":"1.0","id":42,"method":"ping"}`, errInvalidRequest, float64(42)},
		{"missing method", `{"jsonrpc":"2.0","id":"x"}`, errInvalidRequest, "x"},
		{"wrong method type", `{"jsonrpc":"2.0","id":3,"method":5}`, errInvalidRequest, float64(3)},
		{"object id", `{"jsonrpc":"2.0","id":{"a":1},"method":"nope"}`, errMethodNotFound, map[string]any{"a": float64(1)}},
		{"bool id", `{"jsonrpc":"2.0","id":true,"method":"nope"}`, errMethodNotFound, true},
		{"array id", `{"jsonrpc":"2.0","id":[1,"b"],"method":"nope"}`, errMethodNotFound, []any{float64(1), "b"}},
		{"malformed", `{"jsonrpc":`, errParse, nil},
		{"not an object", `[1,2]`, errInvalidRequest, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := roundTrip(t, server, tt.req)
			require.Contains(t, out, "id")
			assert.Equal(t, tt.id, out["id"])
			errObj := out["error"].(map[string]any)
			assert.Equal(t, float64(tt.code), errObj["code"])
		})
	}
}

func TestNotifications(t *testing.T) {
	server := newTestServer(t, nil)
	assert.Nil(t, server.Handle(context.Background(), []byte(`{"jsonrpc":"2.0","method":"notifications/initialized"}`)))
	assert.Nil(t, server.Handle(context.Background(), []byte(`{"method":"notifications/cancelled","params":{"requestId":1}}`)))

	// a request without an id is still answered, with a null id
	out := roundTrip(t, server, `{"jsonrpc":"2.0","method":"ping"}`)
	assert.Contains(t, out, "id")
	assert.Nil(t, out["id"])
	assert.Contains(t, out, "result")
}
