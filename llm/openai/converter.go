package openai

import (
	"encoding/base64"
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	"github.com/ArianneAlonso/tutor-math-mcp/chat"
	"github.com/ArianneAlonso/tutor-math-mcp/llm/internal/common"
)

// messageToOpenAI converts a chat.Message to OpenAI message parameters.
//
// Tool calls travel in assistant messages and every tool result becomes
// its own "tool" message. Images are sent as data URLs.
func messageToOpenAI(msg chat.Message) ([]openai.ChatCompletionMessageParamUnion, error) {
	if len(msg.Contents) == 0 {
		return nil, nil
	}

	switch msg.Role {
	case chat.UserRole:
		images := msg.GetImages()
		text := msg.GetText()
		if len(images) == 0 {
			if text == "" {
				return nil, errors.New("user message has no content")
			}
			return []openai.ChatCompletionMessageParamUnion{openai.UserMessage(text)}, nil
		}
		var parts []openai.ChatCompletionContentPartUnionParam
		if text != "" {
			parts = append(parts, openai.TextContentPart(text))
		}
		for _, img := range images {
			parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
				URL: dataURL(img),
			}))
		}
		return []openai.ChatCompletionMessageParamUnion{openai.UserMessage(parts)}, nil

	case chat.AssistantRole:
		assistant := openai.ChatCompletionAssistantMessageParam{}
		if text := msg.GetText(); text != "" {
			assistant.Content.OfString = param.NewOpt(text)
		}
		for _, tc := range msg.GetToolCalls() {
			args := string(tc.Arguments)
			if args == "" {
				args = "{}"
			}
			assistant.ToolCalls = append(assistant.ToolCalls, openai.ChatCompletionMessageToolCallParam{
				ID: tc.ID,
				Function: openai.ChatCompletionMessageToolCallFunctionParam{
					Name:      tc.Name,
					Arguments: args,
				},
			})
		}
		if assistant.Content.OfString.Value == "" && len(assistant.ToolCalls) == 0 {
			return nil, nil
		}
		return []openai.ChatCompletionMessageParamUnion{{OfAssistant: &assistant}}, nil

	case chat.ToolRole:
		results := msg.GetToolResults()
		msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(results))
		for _, tr := range results {
			content := tr.Content
			if content == "" && tr.Error != "" {
				content = common.FormatToolErrorJSON(tr.Error)
			}
			if content == "" {
				content = "{}"
			}
			msgs = append(msgs, openai.ToolMessage(content, tr.ToolCallID))
		}
		return msgs, nil

	default:
		return nil, errors.Newf("unknown message role: %s", msg.Role)
	}
}

func dataURL(img chat.Image) string {
	return "data:" + img.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}

// messagesToOpenAI converts a slice of chat messages to OpenAI message parameters.
func messagesToOpenAI(msgs []chat.Message) ([]openai.ChatCompletionMessageParamUnion, error) {
	var result []openai.ChatCompletionMessageParamUnion
	for i, msg := range msgs {
		converted, err := messageToOpenAI(msg)
		if err != nil {
			return nil, errors.Wrapf(err, "converting message %d", i)
		}
		result = append(result, converted...)
	}
	return result, nil
}

func responseToMessage(resp *openai.ChatCompletion) (chat.Message, error) {
	if resp == nil || len(resp.Choices) == 0 {
		return chat.Message{}, errors.New("openai returned no choices")
	}
	choice := resp.Choices[0].Message

	msg := chat.Message{Role: chat.AssistantRole}
	if choice.Content != "" {
		msg.AddText(choice.Content)
	}
	for _, tc := range choice.ToolCalls {
		args := json.RawMessage(tc.Function.Arguments)
		if len(args) == 0 {
			args = json.RawMessage("{}")
		}
		msg.AddToolCall(chat.ToolCall{ID: tc.ID, Name: tc.Function.Name, Arguments: args})
	}
	return msg, nil
}

func usageFromResponse(resp *openai.ChatCompletion) chat.TokenUsageDetails {
	if resp == nil {
		return chat.TokenUsageDetails{}
	}
	u := resp.Usage
	return chat.TokenUsageDetails{
		InputTokens:  int(u.PromptTokens),
		OutputTokens: int(u.CompletionTokens),
		TotalTokens:  int(u.TotalTokens),
		CachedTokens: int(u.PromptTokensDetails.CachedTokens),
	}
}

func toolToOpenAI(tool chat.ToolDef) (openai.ChatCompletionToolParam, error) {
	input, err := common.InputSchema(tool)
	if err != nil {
		return openai.ChatCompletionToolParam{}, err
	}
	parameters, err := toMap(input)
	if err != nil {
		return openai.ChatCompletionToolParam{}, errors.Wrapf(err, "tool %s schema", tool.Name())
	}
	return openai.ChatCompletionToolParam{
		Function: shared.FunctionDefinitionParam{
			Name:        tool.Name(),
			Description: param.NewOpt(tool.Description()),
			Parameters:  shared.FunctionParameters(parameters),
		},
	}, nil
}

// responseFormat selects json_schema when a schema is given and plain
// json_object mode otherwise.
func responseFormat(rf *chat.JsonSchema) openai.ChatCompletionNewParamsResponseFormatUnion {
	if rf.Schema == nil {
		return openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}
	jsonSchema := shared.ResponseFormatJSONSchemaJSONSchemaParam{
		Name:   rf.Name,
		Schema: rf.Schema,
	}
	if rf.Strict {
		jsonSchema.Strict = openai.Bool(true)
	}
	return openai.ChatCompletionNewParamsResponseFormatUnion{
		OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{JSONSchema: jsonSchema},
	}
}

func toMap(v any) (map[string]any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}
