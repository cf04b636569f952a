// Package gemini implements chat.Client on Google's Gemini API.
package gemini

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	"google.golang.org/genai"

	"github.com/ArianneAlonso/tutor-math-mcp/chat"
	"github.com/ArianneAlonso/tutor-math-mcp/internal/logging"
	"github.com/ArianneAlonso/tutor-math-mcp/llm/internal/common"
)

type client struct {
	models        *genai.Models
	modelName     string
	baseURL       string
	maxToolRounds int
}

var _ chat.Client = &client{}

type Option func(*client)

func WithModel(modelName string) Option {
	return func(c *client) {
		c.modelName = strings.TrimSpace(modelName)
	}
}

func WithBaseURL(baseURL string) Option {
	return func(c *client) {
		c.baseURL = baseURL
	}
}

// WithMaxToolRounds bounds the number of requests made per Message.
func WithMaxToolRounds(n int) Option {
	return func(c *client) {
		c.maxToolRounds = n
	}
}

// BaseURL returns the configured endpoint override, if any.
func (c *client) BaseURL() string {
	return c.baseURL
}

// NewClient returns a chat client that can begin chat sessions with Google's Gemini API.
func NewClient(apiKey string, opts ...Option) (chat.Client, error) {
	c := &client{maxToolRounds: common.DefaultMaxToolRounds}
	for _, opt := range opts {
		opt(c)
	}

	if c.modelName == "" {
		return nil, errors.New("WithModel is a required option")
	}
	if apiKey == "" {
		return nil, errors.New("API key is required for Gemini API")
	}

	config := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if c.baseURL != "" {
		config.HTTPOptions = genai.HTTPOptions{BaseURL: c.baseURL}
	}
	genaiClient, err := genai.NewClient(context.Background(), config)
	if err != nil {
		return nil, errors.Wrap(err, "create genai client")
	}
	c.models = genaiClient.Models

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
	{"gemini-2.5", 65536},
	{"gemini-2.0", 8192},
	{"gemini-1.5", 8192},
}

func modelMaxTokens(model string) int {
	model = strings.ToLower(model)
	for _, m := range outputLimits {
		if strings.HasPrefix(model, m.prefix) {
			return m.output
		}
	}
	return 8192
}

type chatClient struct {
	client    *client
	state     *common.State
	tools     *common.Tools
	maxTokens int
}

func (c *chatClient) Message(ctx context.Context, msg chat.Message, opts ...chat.Option) (chat.Message, error) {
	reqOpts := chat.ApplyOptions(opts...)

	config, err := c.generateConfig(reqOpts)
	if err != nil {
		return chat.Message{}, err
	}

	round := func(ctx context.Context, systemPrompt string, msgs []chat.Message) (chat.Message, chat.TokenUsageDetails, error) {
		contents, err := messagesToGemini(msgs)
		if err != nil {
			return chat.Message{}, chat.TokenUsageDetails{}, err
		}
		if systemPrompt != "" {
			config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: systemPrompt}}}
		}

		logging.Logger().Debug("gemini request", "model", c.client.modelName, "contents", len(contents))
		resp, err := c.client.models.GenerateContent(ctx, c.client.modelName, contents, config)
		if err != nil {
			return chat.Message{}, chat.TokenUsageDetails{}, errors.Wrap(err, "gemini generate content")
		}
		reply, err := responseToMessage(resp)
		if err != nil {
			return chat.Message{}, chat.TokenUsageDetails{}, err
		}
		return reply, usageFromResponse(resp), nil
	}

	return common.RunToolLoop(ctx, c.state, c.tools, msg, c.client.maxToolRounds, round)
}

func (c *chatClient) generateConfig(opts chat.Options) (*genai.GenerateContentConfig, error) {
	config := &genai.GenerateContentConfig{}
	if opts.Temperature != nil {
		temp := float32(*opts.Temperature)
		config.Temperature = &temp
	}
	if opts.MaxTokens > 0 {
		config.MaxOutputTokens = int32(opts.MaxTokens)
	}
	if rf := opts.ResponseFormat; rf != nil {
		config.ResponseMIMEType = "application/json"
		if rf.Schema != nil {
			config.ResponseSchema = schemaToGemini(rf.Schema)
		}
	}

	tools := c.tools.All()
	if len(tools) == 0 {
		return config, nil
	}
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, tool := range tools {
		decl, err := toolToGemini(tool)
		if err != nil {
			return nil, err
		}
		decls = append(decls, decl)
	}
	config.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	return config, nil
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
