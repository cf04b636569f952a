package mathtools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ArianneAlonso/tutor-math-mcp/chat"
)

func TestKinds(t *testing.T) {
	var names []string
	for _, tool := range Tools() {
		names = append(names, tool.Name())
		k, ok := KindByName(tool.Name())
		require.True(t, ok)
		assert.Equal(t, tool.Kind(), k)
	}
	assert.Equal(t, []string{"resolver_ecuacion_lineal", "resolver_ecuacion_cuadratica", "realizar_operacion"}, names)

	_, ok := KindByName("nonexistent_tool")
	assert.False(t, ok)
}

func TestMCPJsonSchema(t *testing.T) {
	assert.JSONEq(t, `{
		"name": "resolver_ecuacion_lineal",
		"description": "Resuelve una ecuación lineal de la forma mx + b = 0",
		"inputSchema": {
			"type": "object",
			"properties": {
				"m": {"type": "number", "description": "Coeficiente de x (pendiente). No puede ser cero."},
				"b": {"type": "number", "description": "Término independiente (ordenada al origen)"}
			},
			"required": ["m", "b"]
		}
	}`, NewTool(KindLinear).MCPJsonSchema())

	var def struct {
		InputSchema struct {
			Required []string `json:"required"`
		} `json:"inputSchema"`
	}
	require.NoError(t, json.Unmarshal([]byte(NewTool(KindOperation).MCPJsonSchema()), &def))
	assert.Equal(t, []string{"expresion"}, def.InputSchema.Required)
}

func TestDecodeCall(t *testing.T) {
	call, err := DecodeCall(KindQuadratic, json.RawMessage(`{"a":1,"b":-3,"c":2}`))
	require.NoError(t, err)
	assert.Equal(t, KindQuadratic, call.Kind)
	assert.Equal(t, &QuadraticArgs{A: 1, B: -3, C: 2}, call.Quadratic)
	assert.Nil(t, call.Linear)
	assert.Nil(t, call.Operation)
}

func TestDecodeCallErrors(t *testing.T) {
	tests := []struct {
		name string
		kind Kind
		args string
		msg  string
	}{
		{"missing", KindLinear, `{"m":1}`, "falta el argumento requerido 'b'"},
		{"null value", KindLinear, `{"m":1,"b":null}`, "falta el argumento requerido 'b'"},
		{"empty", KindOperation, ``, "falta el argumento requerido 'expresion'"},
		{"wrong type", KindLinear, `{"m":"uno","b":2}`, "el argumento 'm' debe ser un número, no string"},
		{"string expected", KindOperation, `{"expresion":3}`, "el argumento 'expresion' debe ser un texto, no number"},
		{"unknown key", KindLinear, `{"m":1,"b":2,"x":3}`, `argumento desconocido "x"`},
		{"not an object", KindLinear, `[1,2]`, "los argumentos deben ser un objeto JSON"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeCall(tt.kind, json.RawMessage(tt.args))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidArguments))
			assert.True(t, errors.Is(err, chat.ErrInvalidInput))
			assert.Equal(t, tt.msg, err.Error())
		})
	}
}

func TestToolHandle(t *testing.T) {
	ctx := context.Background()

	res, err := NewTool(KindQuadratic).Handle(ctx, json.RawMessage(`{"a":1,"b":-3,"c":2}`))
	require.NoError(t, err)
	sol, ok := res.(QuadraticSolution)
	require.True(t, ok)
	assert.Equal(t, []float64{2, 1}, sol.Roots)

	_, err = NewTool(KindLinear).Handle(ctx, json.RawMessage(`{"m":0,"b":5}`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDegenerateCoefficient))
	assert.Equal(t, "Error al resolver ecuación lineal: El coeficiente 'm' no puede ser cero. La ecuación 0x + 5 = 0 no es lineal.", err.Error())
}

func TestToolCall(t *testing.T) {
	ctx := context.Background()

	out := NewTool(KindOperation).Call(ctx, `{"expresion":"2*3 + 5"}`)
	var res OperationResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, 11.0, res.Value)
	assert.Equal(t, "2*3 + 5", res.Expression)

	out = NewTool(KindOperation).Call(ctx, `{"expresion":"1/0"}`)
	assert.JSONEq(t, `{"error":"Error ejecutando realizar_operacion: Error al evaluar la expresión: Error: División por cero detectada"}`, out)
}

func TestToolCallCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewTool(KindLinear).Handle(ctx, json.RawMessage(`{"m":1,"b":1}`))
	assert.ErrorIs(t, err, context.Canceled)
}
