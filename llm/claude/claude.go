// Package claude implements chat.Client on Anthropic's Messages API.
package claude

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/cockroachdb/errors"

	"github.com/ArianneAlonso/tutor-math-mcp/chat"
	"github.com/ArianneAlonso/tutor-math-mcp/internal/logging"
	"github.com/ArianneAlonso/tutor-math-mcp/llm/internal/common"
)

const AnthropicURL = "https://api.anthropic.com/v1"

type client struct {
	api           anthropic.Client
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

// WithHeaders adds HTTP headers to every request.
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

// NewClient returns a chat client that can begin chat sessions with Claude.
// An empty apiBase selects AnthropicURL.
func NewClient(apiBase, apiKey string, opts ...Option) (chat.Client, error) {
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
	if apiKey == "" {
		return nil, errors.New("API key is required for Claude")
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if c.baseURL != "" && c.baseURL != AnthropicURL {
		reqOpts = append(reqOpts, option.WithBaseURL(c.baseURL))
	}
	for k, v := range c.headers {
		reqOpts = append(reqOpts, option.WithHeader(k, v))
	}
	c.api = anthropic.NewClient(reqOpts...)

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

var outputLimits = []struct {
	prefix string
	output int
}{
	{"claude-opus-4", 32000},
	{"claude-sonnet-4", 64000},
	{"claude-3-7-sonnet", 64000},
	{"claude-haiku-4", 64000},
	{"claude-3-5-haiku", 8192},
	{"claude-3-haiku", 4096},
}

func modelMaxTokens(model string) int {
	model = strings.ToLower(model)
	for _, m := range outputLimits {
		if strings.HasPrefix(model, m.prefix) {
			return m.output
		}
	}
	return 4096
}

type chatClient struct {
	client    *client
	state     *common.State
	tools     *common.Tools
	maxTokens int
}

func (c *chatClient) Message(ctx context.Context, msg chat.Message, opts ...chat.Option) (chat.Message, error) {
	reqOpts := chat.ApplyOptions(opts...)

	tools, err := c.toolParams()
	if err != nil {
		return chat.Message{}, err
	}

	maxTokens := c.maxTokens
	if reqOpts.MaxTokens > 0 {
		maxTokens = reqOpts.MaxTokens
	}

	round := func(ctx context.Context, systemPrompt string, msgs []chat.Message) (chat.Message, chat.TokenUsageDetails, error) {
		messages, err := messagesToClaude(msgs)
		if err != nil {
			return chat.Message{}, chat.TokenUsageDetails{}, err
		}

		params := anthropic.MessageNewParams{
			Model:     anthropic.Model(c.client.modelName),
			MaxTokens: int64(maxTokens),
			Messages:  messages,
			Tools:     tools,
		}
		if system := systemWithFormat(systemPrompt, reqOpts.ResponseFormat); system != "" {
			params.System = []anthropic.TextBlockParam{{Text: system}}
		}
		if reqOpts.Temperature != nil {
			params.Temperature = anthropic.Float(*reqOpts.Temperature)
		}

		logging.Logger().Debug("claude request", "model", c.client.modelName, "messages", len(messages))
		resp, err := c.client.api.Messages.New(ctx, params)
		if err != nil {
			return chat.Message{}, chat.TokenUsageDetails{}, errors.Wrap(err, "claude messages")
		}
		return responseToMessage(resp), usageFromResponse(resp), nil
	}

	return common.RunToolLoop(ctx, c.state, c.tools, msg, c.client.maxToolRounds, round)
}

// systemWithFormat appends a JSON output instruction to the system prompt.
// The Messages API has no response-format parameter.
func systemWithFormat(system string, rf *chat.JsonSchema) string {
	if rf == nil {
		return system
	}
	instruction := "Responde únicamente con un objeto JSON válido, sin texto adicional ni bloques de código."
	if rf.Schema != nil {
		if b, err := json.Marshal(rf.Schema); err == nil {
			instruction += " El JSON debe cumplir este esquema: " + string(b)
		}
	}
	if system == "" {
		return instruction
	}
	return system + "\n\n" + instruction
}

func (c *chatClient) toolParams() ([]anthropic.ToolUnionParam, error) {
	tools := c.tools.All()
	if len(tools) == 0 {
		return nil, nil
	}
	params := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, tool := range tools {
		p, err := toolToClaude(tool)
		if err != nil {
			return nil, err
		}
		params = append(params, p)
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
