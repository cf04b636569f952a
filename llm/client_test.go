package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ArianneAlonso/tutor-math-mcp/chat"
	llmtesting "github.com/ArianneAlonso/tutor-math-mcp/llm/testing"
)

func TestDetectProvider(t *testing.T) {
	t.Parallel()
	tests := []struct {
		model    string
		expected ModelProvider
	}{
		{"gpt-4o-mini", ProviderOpenAI},
		{"gpt-5", ProviderOpenAI},
		{"o1-mini", ProviderOpenAI},
		{"o3", ProviderOpenAI},
		{"claude-sonnet-4-5", ProviderClaude},
		{"claude-3-5-haiku-latest", ProviderClaude},
		{"gemini-2.5-flash", ProviderGemini},
		{"gemini-1.5-pro", ProviderGemini},
		{"llama3.2", ProviderOllama},
		{"qwen2.5-math", ProviderOllama},
		{"deepseek-r1", ProviderOllama},
		{"GPT-4", ProviderOpenAI},
		{"GeMiNi-PrO", ProviderGemini},
		{"random", ProviderUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, DetectProvider(tt.model))
		})
	}
}

func TestNewClient(t *testing.T) {
	t.Parallel()
	env := map[string]string{}
	getenv := func(k string) string { return env[k] }

	tests := []struct {
		name    string
		config  *Config
		env     map[string]string
		wantErr string
	}{
		{name: "nil config", config: nil, wantErr: "model is required"},
		{name: "openai key", config: &Config{Model: "gpt-4o", APIKey: "k"}},
		{name: "openai missing key", config: &Config{Model: "gpt-4o"}, wantErr: "OPENAI_API_KEY"},
		{name: "claude env key", config: &Config{Model: "claude-sonnet-4-5"}, env: map[string]string{"ANTHROPIC_API_KEY": "k"}},
		{name: "claude missing key", config: &Config{Model: "claude-sonnet-4-5"}, wantErr: "ANTHROPIC_API_KEY"},
		{name: "gemini google key", config: &Config{Model: "gemini-2.5-flash"}, env: map[string]string{"GOOGLE_API_KEY": "k"}},
		{name: "gemini missing key", config: &Config{Model: "gemini-2.5-flash"}, wantErr: "GEMINI_API_KEY"},
		{name: "ollama needs no key", config: &Config{Model: "llama3.2"}},
		{name: "unknown model", config: &Config{Model: "mystery"}, wantErr: "unknown model provider"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			getenv := getenv
			if tt.env != nil {
				getenv = func(k string) string { return tt.env[k] }
			}
			client, err := newClient(tt.config, getenv)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, client)
		})
	}
}

func TestNewClientWrapsDefaults(t *testing.T) {
	t.Parallel()
	temp := 0.4
	client, err := newClient(&Config{Model: "llama3.2", Temperature: &temp, MaxTokens: 256}, func(string) string { return "" })
	require.NoError(t, err)
	_, ok := client.(*defaultsClient)
	assert.True(t, ok)

	client, err = newClient(&Config{Model: "llama3.2"}, func(string) string { return "" })
	require.NoError(t, err)
	_, ok = client.(*defaultsClient)
	assert.False(t, ok, "no defaults, no wrapper")
}

func TestDefaultsApplyBeforeCallerOptions(t *testing.T) {
	t.Parallel()
	fake := llmtesting.NewFakeClient(llmtesting.Turn{Text: "a"}, llmtesting.Turn{Text: "b"})
	client := &defaultsClient{Client: fake, defaults: []chat.Option{chat.WithTemperature(0.4), chat.WithMaxTokens(256)}}
	ch := client.NewChat("sistema")

	_, err := ch.Message(context.Background(), chat.UserMessage("uno"))
	require.NoError(t, err)
	_, err = ch.Message(context.Background(), chat.UserMessage("dos"), chat.WithMaxTokens(1024))
	require.NoError(t, err)

	reqs := fake.Requests()
	require.Len(t, reqs, 2)
	require.NotNil(t, reqs[0].Options.Temperature)
	assert.InDelta(t, 0.4, *reqs[0].Options.Temperature, 1e-9)
	assert.Equal(t, 256, reqs[0].Options.MaxTokens)
	assert.Equal(t, 1024, reqs[1].Options.MaxTokens)

	_, history := ch.History()
	assert.Len(t, history, 4)
}
