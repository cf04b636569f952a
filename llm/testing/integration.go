package testing

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ArianneAlonso/tutor-math-mcp/chat"
	"github.com/ArianneAlonso/tutor-math-mcp/mathtools"
	"github.com/ArianneAlonso/tutor-math-mcp/schema"
)

// TestSolvesWithTools checks that the model calls the math tools and uses
// their result.
func TestSolvesWithTools(t *testing.T, client chat.Client) {
	chatSession := client.NewChat("Eres un tutor de matemáticas. Usa siempre las herramientas disponibles para resolver ecuaciones.")
	for _, tool := range mathtools.Tools() {
		require.NoError(t, chatSession.RegisterTool(tool))
	}

	response, err := chatSession.Message(context.Background(),
		chat.UserMessage("Resuelve la ecuación 2x - 8 = 0 usando la herramienta resolver_ecuacion_lineal."))
	require.NoError(t, err)
	assert.Contains(t, response.GetText(), "4")

	_, history := chatSession.History()
	var sawCall, sawResult bool
	for _, msg := range history {
		for _, tc := range msg.GetToolCalls() {
			if tc.Name == mathtools.KindLinear.Name() {
				sawCall = true
			}
		}
		for _, tr := range msg.GetToolResults() {
			if strings.Contains(tr.Content, `"solucion":4`) {
				sawResult = true
			}
		}
	}
	assert.True(t, sawCall, "expected a resolver_ecuacion_lineal call in history")
	assert.True(t, sawResult, "expected the tool result in history")
}

// TestTokenUsageCumulative checks that usage is reported per message and
// accumulates across messages.
func TestTokenUsageCumulative(t *testing.T, client chat.Client) {
	chatSession := client.NewChat("Eres un asistente conciso.")

	_, err := chatSession.Message(context.Background(), chat.UserMessage("Explica en dos oraciones qué es una ecuación lineal."))
	require.NoError(t, err)
	usage1, err := chatSession.TokenUsage()
	require.NoError(t, err)
	assert.Positive(t, usage1.LastMessage.InputTokens)
	assert.Positive(t, usage1.LastMessage.OutputTokens)
	assert.Equal(t, usage1.LastMessage.TotalTokens, usage1.Cumulative.TotalTokens)

	_, err = chatSession.Message(context.Background(), chat.UserMessage("Responde con una sola palabra: ¿sí o no?"))
	require.NoError(t, err)
	usage2, err := chatSession.TokenUsage()
	require.NoError(t, err)
	assert.Greater(t, usage2.Cumulative.InputTokens, usage1.Cumulative.InputTokens)
	assert.Greater(t, usage2.Cumulative.TotalTokens, usage1.Cumulative.TotalTokens)
}

// TestNoDuplicateMessages checks that initial messages and the new turn
// appear exactly once in history.
func TestNoDuplicateMessages(t *testing.T, client chat.Client) {
	initial := []chat.Message{
		chat.UserMessage("Hola"),
		chat.AssistantMessage("¡Hola! ¿En qué tema de matemáticas te ayudo?"),
	}
	chatSession := client.NewChat("Eres un tutor de matemáticas.", initial...)

	question := "¿Cuánto es 2 + 2?"
	response, err := chatSession.Message(context.Background(), chat.UserMessage(question))
	require.NoError(t, err)
	require.NotEmpty(t, response.GetText())

	_, history := chatSession.History()
	require.Len(t, history, 4)
	count := 0
	for _, msg := range history {
		if msg.GetText() == question {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

// TestJSONResponseFormat checks that WithResponseFormat yields parseable
// JSON.
func TestJSONResponseFormat(t *testing.T, client chat.Client) {
	type answer struct {
		Expr   string `json:"expr" jsonschema_description:"La expresión evaluada"`
		Result string `json:"result" jsonschema_description:"El resultado"`
	}
	s, err := schema.FromJSONSchema(schema.MustReflect[answer]())
	require.NoError(t, err)

	chatSession := client.NewChat("Responde solo con JSON.")
	response, err := chatSession.Message(context.Background(),
		chat.UserMessage("Evalúa 3 * 4 y devuelve la expresión y el resultado."),
		chat.WithResponseFormat("answer", true, s))
	require.NoError(t, err)

	text := strings.TrimSpace(response.GetText())
	text = strings.TrimPrefix(strings.TrimSuffix(text, "```"), "```json")
	assert.Contains(t, text, "12")
	assert.Contains(t, text, `"expr"`)
}
