package claude

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ArianneAlonso/tutor-math-mcp/chat"
	"github.com/ArianneAlonso/tutor-math-mcp/mathtools"
)

// fakeAPI replays canned Messages API responses and records request bodies.
type fakeAPI struct {
	mu        sync.Mutex
	responses []string
	requests  []map[string]any
	headers   []http.Header
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	body, _ := io.ReadAll(r.Body)
	var req map[string]any
	_ = json.Unmarshal(body, &req)
	f.requests = append(f.requests, req)
	f.headers = append(f.headers, r.Header.Clone())

	if r.URL.Path != "/v1/messages" || len(f.responses) == 0 {
		http.Error(w, `{"type":"error","error":{"type":"invalid_request_error","message":"unexpected"}}`, http.StatusBadRequest)
		return
	}
	resp := f.responses[0]
	f.responses = f.responses[1:]
	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, resp)
}

const toolUseResponse = `{
	"id": "msg_1", "type": "message", "role": "assistant", "model": "claude-sonnet-4-5",
	"content": [{"type": "tool_use", "id": "tu_1", "name": "resolver_ecuacion_lineal", "input": {"m": 2, "b": -4}}],
	"stop_reason": "tool_use",
	"usage": {"input_tokens": 10, "output_tokens": 5}
}`

const textResponse = `{
	"id": "msg_2", "type": "message", "role": "assistant", "model": "claude-sonnet-4-5",
	"content": [{"type": "text", "text": "x = 2"}],
	"stop_reason": "end_turn",
	"usage": {"input_tokens": 20, "output_tokens": 3}
}`

func TestMessageRunsTools(t *testing.T) {
	api := &fakeAPI{responses: []string{toolUseResponse, textResponse}}
	srv := httptest.NewServer(api)
	defer srv.Close()

	c, err := NewClient(srv.URL, "test-key",
		WithModel("claude-sonnet-4-5"),
		WithHeaders(map[string]string{"X-Tutor": "1"}))
	require.NoError(t, err)

	ch := c.NewChat("Eres un tutor.")
	require.NoError(t, ch.RegisterTool(mathtools.NewTool(mathtools.KindLinear)))

	reply, err := ch.Message(t.Context(), chat.UserMessage("resuelve 2x - 4 = 0"), chat.WithTemperature(0.2))
	require.NoError(t, err)
	assert.Equal(t, "x = 2", reply.GetText())

	require.Len(t, api.requests, 2)
	first := api.requests[0]
	assert.Equal(t, "claude-sonnet-4-5", first["model"])
	assert.InDelta(t, 0.2, first["temperature"], 1e-9)
	assert.EqualValues(t, 64000, first["max_tokens"])
	assert.Len(t, first["tools"], 1)
	assert.Equal(t, "1", api.headers[0].Get("X-Tutor"))

	// the second request carries the tool use and its result
	msgs := api.requests[1]["messages"].([]any)
	require.Len(t, msgs, 3)
	result := msgs[2].(map[string]any)
	assert.Equal(t, "user", result["role"])
	block := result["content"].([]any)[0].(map[string]any)
	assert.Equal(t, "tool_result", block["type"])
	assert.Equal(t, "tu_1", block["tool_use_id"])

	_, history := ch.History()
	require.Len(t, history, 4)
	assert.Equal(t, chat.AssistantRole, history[3].Role)

	usage, err := ch.TokenUsage()
	require.NoError(t, err)
	assert.Equal(t, 38, usage.Cumulative.TotalTokens)
}

func TestMessageErrorKeepsHistory(t *testing.T) {
	api := &fakeAPI{}
	srv := httptest.NewServer(api)
	defer srv.Close()

	c, err := NewClient(srv.URL, "test-key", WithModel("claude-3-5-haiku-latest"))
	require.NoError(t, err)
	ch := c.NewChat("sistema")

	_, err = ch.Message(t.Context(), chat.UserMessage("hola"))
	require.Error(t, err)
	_, history := ch.History()
	assert.Empty(t, history)
}

func TestNewClientValidation(t *testing.T) {
	t.Parallel()

	_, err := NewClient("", "key")
	assert.Error(t, err, "model is required")
	_, err = NewClient("", "", WithModel("claude-sonnet-4-5"))
	assert.Error(t, err, "key is required")

	c, err := NewClient("", "key", WithModel("claude-opus-4-1"), WithMaxToolRounds(2))
	require.NoError(t, err)
	assert.Equal(t, 2, c.(*client).maxToolRounds)
	assert.Equal(t, 32000, c.NewChat("").MaxTokens())
	assert.Equal(t, 4096, modelMaxTokens("unknown"))
}
