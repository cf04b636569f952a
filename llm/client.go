// Package llm builds a chat.Client for the provider that serves a model.
package llm

import (
	"context"
	"os"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/ArianneAlonso/tutor-math-mcp/chat"
	"github.com/ArianneAlonso/tutor-math-mcp/internal/config"
	"github.com/ArianneAlonso/tutor-math-mcp/internal/logging"
	"github.com/ArianneAlonso/tutor-math-mcp/llm/claude"
	"github.com/ArianneAlonso/tutor-math-mcp/llm/gemini"
	"github.com/ArianneAlonso/tutor-math-mcp/llm/openai"
)

// Config holds the LLM client configuration
type Config struct {
	Model   string
	APIKey  string
	BaseURL string // Optional base URL override for the API endpoint
	// Temperature and MaxTokens become per-message defaults; nil and 0
	// leave the provider's own defaults.
	Temperature   *float64
	MaxTokens     int
	MaxToolRounds int
	Headers       map[string]string
}

// ModelProvider represents the different LLM providers
type ModelProvider int

const (
	ProviderOpenAI ModelProvider = iota
	ProviderClaude
	ProviderGemini
	ProviderOllama
	ProviderUnknown
)

func (p ModelProvider) String() string {
	switch p {
	case ProviderOpenAI:
		return "openai"
	case ProviderClaude:
		return "claude"
	case ProviderGemini:
		return "gemini"
	case ProviderOllama:
		return "ollama"
	default:
		return "unknown"
	}
}

// NewClient creates a chat client based on the configuration. A missing
// APIKey is read from the provider's usual environment variable.
func NewClient(cfg *Config) (chat.Client, error) {
	return newClient(cfg, os.Getenv)
}

func newClient(cfg *Config, getenv func(string) string) (chat.Client, error) {
	if cfg == nil || strings.TrimSpace(cfg.Model) == "" {
		return nil, errors.New("model is required")
	}

	provider := DetectProvider(cfg.Model)
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = config.ProviderKey(cfg.Model, getenv)
	}
	logger := logging.Logger()

	var (
		client chat.Client
		err    error
	)
	switch provider {
	case ProviderOpenAI:
		if apiKey == "" {
			return nil, errors.New("openAI API key required (set api_key or OPENAI_API_KEY)")
		}
		logger.Info("using OpenAI client", "model", cfg.Model)
		client, err = openai.NewClient(orDefault(cfg.BaseURL, openai.OpenAIURL), apiKey,
			openai.WithModel(cfg.Model),
			openai.WithHeaders(cfg.Headers),
			openai.WithMaxToolRounds(cfg.MaxToolRounds))

	case ProviderClaude:
		if apiKey == "" {
			return nil, errors.New("anthropic API key required (set api_key or ANTHROPIC_API_KEY)")
		}
		logger.Info("using Claude client", "model", cfg.Model)
		client, err = claude.NewClient(orDefault(cfg.BaseURL, claude.AnthropicURL), apiKey,
			claude.WithModel(cfg.Model),
			claude.WithHeaders(cfg.Headers),
			claude.WithMaxToolRounds(cfg.MaxToolRounds))

	case ProviderGemini:
		if apiKey == "" {
			return nil, errors.New("gemini API key required (set api_key, GEMINI_API_KEY, or GOOGLE_API_KEY)")
		}
		opts := []gemini.Option{
			gemini.WithModel(cfg.Model),
			gemini.WithMaxToolRounds(cfg.MaxToolRounds),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, gemini.WithBaseURL(cfg.BaseURL))
		}
		logger.Info("using Gemini client", "model", cfg.Model)
		client, err = gemini.NewClient(apiKey, opts...)

	case ProviderOllama:
		// Ollama doesn't require an API key
		logger.Info("using OpenAI client locally w/ ollama", "model", cfg.Model)
		client, err = openai.NewClient(orDefault(cfg.BaseURL, openai.OllamaURL), apiKey,
			openai.WithModel(cfg.Model),
			openai.WithHeaders(cfg.Headers),
			openai.WithMaxToolRounds(cfg.MaxToolRounds))

	default:
		return nil, errors.Newf("unknown model provider for model: %s", cfg.Model)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "%s client", provider)
	}

	var defaults []chat.Option
	if cfg.Temperature != nil {
		defaults = append(defaults, chat.WithTemperature(*cfg.Temperature))
	}
	if cfg.MaxTokens > 0 {
		defaults = append(defaults, chat.WithMaxTokens(cfg.MaxTokens))
	}
	if len(defaults) == 0 {
		return client, nil
	}
	return &defaultsClient{Client: client, defaults: defaults}, nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// DetectProvider detects the provider from the model name
func DetectProvider(model string) ModelProvider {
	modelLower := strings.ToLower(model)

	// OpenAI models
	if strings.HasPrefix(modelLower, "gpt-") ||
		strings.HasPrefix(modelLower, "o1-") ||
		strings.HasPrefix(modelLower, "o3") { // o3 doesn't have a dash
		return ProviderOpenAI
	}

	if strings.HasPrefix(modelLower, "claude-") {
		return ProviderClaude
	}

	if strings.HasPrefix(modelLower, "gemini-") {
		return ProviderGemini
	}

	// Ollama models (common ones)
	if strings.HasPrefix(modelLower, "llama") ||
		strings.HasPrefix(modelLower, "mistral") ||
		strings.HasPrefix(modelLower, "mixtral") ||
		strings.HasPrefix(modelLower, "qwen") ||
		strings.HasPrefix(modelLower, "phi") ||
		strings.HasPrefix(modelLower, "deepseek") ||
		strings.HasPrefix(modelLower, "codellama") {
		return ProviderOllama
	}

	return ProviderUnknown
}

// defaultsClient applies configured options before the caller's own on
// every Message, so per-call options win.
type defaultsClient struct {
	chat.Client
	defaults []chat.Option
}

func (c *defaultsClient) NewChat(systemPrompt string, initialMsgs ...chat.Message) chat.Chat {
	return &defaultsChat{Chat: c.Client.NewChat(systemPrompt, initialMsgs...), defaults: c.defaults}
}

type defaultsChat struct {
	chat.Chat
	defaults []chat.Option
}

func (c *defaultsChat) Message(ctx context.Context, msg chat.Message, opts ...chat.Option) (chat.Message, error) {
	all := make([]chat.Option, 0, len(c.defaults)+len(opts))
	all = append(all, c.defaults...)
	all = append(all, opts...)
	return c.Chat.Message(ctx, msg, all...)
}
