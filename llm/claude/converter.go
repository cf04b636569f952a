package claude

import (
	"encoding/base64"
	"encoding/json"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/cockroachdb/errors"

	"github.com/ArianneAlonso/tutor-math-mcp/chat"
	"github.com/ArianneAlonso/tutor-math-mcp/llm/internal/common"
)

// messageParam converts a chat.Message to an Anthropic MessageParam.
// Tool results travel in user messages. Empty messages convert to ok=false.
func messageParam(msg chat.Message) (param anthropic.MessageParam, ok bool, err error) {
	var blocks []anthropic.ContentBlockParamUnion
	for _, c := range msg.Contents {
		switch {
		case c.Text != "":
			blocks = append(blocks, anthropic.NewTextBlock(c.Text))
		case c.Image != nil:
			blocks = append(blocks, anthropic.NewImageBlockBase64(c.Image.MIMEType, base64.StdEncoding.EncodeToString(c.Image.Data)))
		case c.ToolCall != nil:
			args := c.ToolCall.Arguments
			if len(args) == 0 {
				args = json.RawMessage("{}")
			}
			var input any
			if err := json.Unmarshal(args, &input); err != nil {
				return anthropic.MessageParam{}, false, errors.Wrapf(err, "tool call %s arguments", c.ToolCall.Name)
			}
			blocks = append(blocks, anthropic.NewToolUseBlock(c.ToolCall.ID, input, c.ToolCall.Name))
		case c.ToolResult != nil:
			tr := c.ToolResult
			content := tr.Content
			if content == "" && tr.Error != "" {
				content = common.FormatToolErrorJSON(tr.Error)
			}
			blocks = append(blocks, anthropic.NewToolResultBlock(tr.ToolCallID, content, tr.Error != ""))
		}
	}
	if len(blocks) == 0 {
		return anthropic.MessageParam{}, false, nil
	}

	if msg.Role == chat.AssistantRole {
		return anthropic.NewAssistantMessage(blocks...), true, nil
	}
	return anthropic.NewUserMessage(blocks...), true, nil
}

func messagesToClaude(msgs []chat.Message) ([]anthropic.MessageParam, error) {
	params := make([]anthropic.MessageParam, 0, len(msgs))
	for i, msg := range msgs {
		p, ok, err := messageParam(msg)
		if err != nil {
			return nil, errors.Wrapf(err, "converting message %d", i)
		}
		if ok {
			params = append(params, p)
		}
	}
	return params, nil
}

// responseToMessage keeps text and tool_use blocks; thinking blocks are
// dropped.
func responseToMessage(resp *anthropic.Message) chat.Message {
	msg := chat.Message{Role: chat.AssistantRole}
	if resp == nil {
		return msg
	}
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			if block.Text != "" {
				msg.AddText(block.Text)
			}
		case "tool_use":
			args := json.RawMessage(block.Input)
			if len(args) == 0 || string(args) == "null" {
				args = json.RawMessage("{}")
			}
			msg.AddToolCall(chat.ToolCall{ID: block.ID, Name: block.Name, Arguments: args})
		}
	}
	return msg
}

func usageFromResponse(resp *anthropic.Message) chat.TokenUsageDetails {
	if resp == nil {
		return chat.TokenUsageDetails{}
	}
	u := resp.Usage
	return chat.TokenUsageDetails{
		InputTokens:  int(u.InputTokens),
		OutputTokens: int(u.OutputTokens),
		TotalTokens:  int(u.InputTokens + u.OutputTokens),
		CachedTokens: int(u.CacheReadInputTokens),
	}
}

func toolToClaude(tool chat.ToolDef) (anthropic.ToolUnionParam, error) {
	input, err := common.InputSchema(tool)
	if err != nil {
		return anthropic.ToolUnionParam{}, err
	}
	raw, err := json.Marshal(input)
	if err != nil {
		return anthropic.ToolUnionParam{}, errors.Wrapf(err, "tool %s schema", tool.Name())
	}
	var inputSchema anthropic.ToolInputSchemaParam
	if err := json.Unmarshal(raw, &inputSchema); err != nil {
		return anthropic.ToolUnionParam{}, errors.Wrapf(err, "tool %s schema", tool.Name())
	}

	toolParam := anthropic.ToolParam{
		Name:        tool.Name(),
		InputSchema: inputSchema,
		Type:        anthropic.ToolTypeCustom,
	}
	if d := tool.Description(); d != "" {
		toolParam.Description = anthropic.String(d)
	}
	return anthropic.ToolUnionParam{OfTool: &toolParam}, nil
}
