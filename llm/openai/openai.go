// Package openai implements chat.Client on the OpenAI Chat Completions API
// and compatible servers such as Ollama.
package openai

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/ArianneAlonso/tutor-math-mcp/chat"
	"github.com/ArianneAlonso/tutor-math-mcp/internal/logging"
	"github.com/ArianneAlonso/tutor-math-mcp/llm/internal/common"
)

// logger is the package-level structured logger with provider context.
var logger = logging.Logger().With("provider", "openai")

const (
	OpenAIURL = "https://api.openai.com/v1"
	OllamaURL = "http://localhost:11434/v1"
)

type client struct {
	openaiClient  openai.Client
	modelName     string
	baseURL       string
	headers       map[string]string
	maxToolRounds int
}

var _ chat.Client = &client{}

type Option func(*client)

func WithModel(modelName string) Option {
	return func(c *client) {
		c.modelName = strings.TrimSpace(modelName)
	}
}

func WithHeaders(headers map[string]string) Option {
	return func(c *client) {
		c.headers = headers
	}
}

// WithMaxToolRounds bounds the number of requests made per Message.
func WithMaxToolRounds(n int) Option {
	return func(c *client) {
		c.maxToolRounds = n
	}
}

// NewClient returns a chat client that can begin chat sessions with an LLM service that speaks
// the OpenAI chat completion API. apiKey may be empty for local servers.
func NewClient(apiBase string, apiKey string, opts ...Option) (chat.Client, error) {
	c := &client{
		baseURL:       apiBase,
		maxToolRounds: common.DefaultMaxToolRounds,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.modelName == "" {
		return nil, errors.New("WithModel is a required option")
	}
	if c.baseURL == "" {
		c.baseURL = OpenAIURL
	}

	clientOpts := []option.RequestOption{
		option.WithBaseURL(c.baseURL),
	}
	if apiKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(apiKey))
	}
	for key, value := range c.headers {
		clientOpts = append(clientOpts, option.WithHeader(key, value))
	}
	c.openaiClient = openai.NewClient(clientOpts...)

	return c, nil
}

// NewChat returns a chat instance.
func (c *client) NewChat(systemPrompt string, initialMsgs ...chat.Message) chat.Chat {
	return &chatClient{
		client:    c,
		state:     common.NewState(systemPrompt, initialMsgs),
		tools:     common.NewTools(),
		maxTokens: modelMaxTokens(c.modelName),
	}
}

// outputLimits are ordered so longer, more specific prefixes come first.
var outputLimits = []struct {
	prefix string
	output int
}{
	{"gpt-5", 128000},
	{"gpt-4.1", 32768},
	{"gpt-4o", 16384},
	{"gpt-4-turbo", 4096},
	{"gpt-4", 8192},
	{"o4-mini", 100000},
	{"o3", 100000},
	{"o1", 100000},
}

func modelMaxTokens(model string) int {
	model = strings.ToLower(model)
	for _, m := range outputLimits {
		if strings.HasPrefix(model, m.prefix) {
			return m.output
		}
	}
	logger.Debug("unknown model, using default output token limit", "model", model, "default_limit", 4096)
	return 4096
}

// isNoTemperatureModel reports models that reject a custom temperature.
func isNoTemperatureModel(model string) bool {
	model = strings.ToLower(model)
	return strings.HasPrefix(model, "gpt-5") ||
		strings.HasPrefix(model, "o1") ||
		strings.HasPrefix(model, "o3") ||
		strings.HasPrefix(model, "o4")
}

type chatClient struct {
	client    *client
	state     *common.State
	tools     *common.Tools
	maxTokens int
}

func (c *chatClient) Message(ctx context.Context, msg chat.Message, opts ...chat.Option) (chat.Message, error) {
	reqOpts := chat.ApplyOptions(opts...)

	base, err := c.baseParams(reqOpts)
	if err != nil {
		return chat.Message{}, err
	}

	round := func(ctx context.Context, systemPrompt string, msgs []chat.Message) (chat.Message, chat.TokenUsageDetails, error) {
		var messages []openai.ChatCompletionMessageParamUnion
		if systemPrompt != "" {
			messages = append(messages, openai.SystemMessage(systemPrompt))
		}
		converted, err := messagesToOpenAI(msgs)
		if err != nil {
			return chat.Message{}, chat.TokenUsageDetails{}, err
		}
		params := base
		params.Messages = append(messages, converted...)

		logger.Debug("chat completion request", "model", c.client.modelName, "messages", len(params.Messages))
		resp, err := c.client.openaiClient.Chat.Completions.New(ctx, params)
		if err != nil {
			return chat.Message{}, chat.TokenUsageDetails{}, errors.Wrap(err, "openai chat completion")
		}
		reply, err := responseToMessage(resp)
		if err != nil {
			return chat.Message{}, chat.TokenUsageDetails{}, err
		}
		return reply, usageFromResponse(resp), nil
	}

	return common.RunToolLoop(ctx, c.state, c.tools, msg, c.client.maxToolRounds, round)
}

// baseParams builds the request fields shared by every round.
func (c *chatClient) baseParams(reqOpts chat.Options) (openai.ChatCompletionNewParams, error) {
	params := openai.ChatCompletionNewParams{
		Model: c.client.modelName,
	}

	for _, tool := range c.tools.All() {
		toolParam, err := toolToOpenAI(tool)
		if err != nil {
			return openai.ChatCompletionNewParams{}, err
		}
		params.Tools = append(params.Tools, toolParam)
	}

	if reqOpts.Temperature != nil && !isNoTemperatureModel(c.client.modelName) {
		params.Temperature = openai.Float(*reqOpts.Temperature)
	}
	if reqOpts.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(reqOpts.MaxTokens))
	}
	if rf := reqOpts.ResponseFormat; rf != nil {
		params.ResponseFormat = responseFormat(rf)
	}
	return params, nil
}

func (c *chatClient) History() (systemPrompt string, msgs []chat.Message) {
	return c.state.History()
}

func (c *chatClient) TokenUsage() (chat.TokenUsage, error) {
	return c.state.TokenUsage()
}

// MaxTokens returns the maximum output token limit for the model
func (c *chatClient) MaxTokens() int {
	return c.maxTokens
}

func (c *chatClient) RegisterTool(tool chat.Tool) error {
	return c.tools.Register(tool)
}

func (c *chatClient) DeregisterTool(name string) {
	c.tools.Deregister(name)
}

func (c *chatClient) ListTools() []string {
	return c.tools.List()
}
