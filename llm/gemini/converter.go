package gemini

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"google.golang.org/genai"

	"github.com/ArianneAlonso/tutor-math-mcp/chat"
	"github.com/ArianneAlonso/tutor-math-mcp/llm/internal/common"
	"github.com/ArianneAlonso/tutor-math-mcp/schema"
)

// messageToGemini converts a chat.Message to Gemini Content.
//
// Assistant maps to "model"; user and tool messages map to "user", tool
// results travelling as FunctionResponse parts. Empty messages convert to
// nil.
func messageToGemini(msg chat.Message) (*genai.Content, error) {
	var parts []*genai.Part
	for _, c := range msg.Contents {
		switch {
		case c.Text != "":
			parts = append(parts, &genai.Part{Text: c.Text})
		case c.Image != nil:
			parts = append(parts, &genai.Part{InlineData: &genai.Blob{MIMEType: c.Image.MIMEType, Data: c.Image.Data}})
		case c.ToolCall != nil:
			var args map[string]any
			if len(c.ToolCall.Arguments) > 0 {
				if err := json.Unmarshal(c.ToolCall.Arguments, &args); err != nil {
					return nil, errors.Wrapf(err, "tool call %s arguments", c.ToolCall.Name)
				}
			}
			parts = append(parts, &genai.Part{FunctionCall: &genai.FunctionCall{
				ID:   c.ToolCall.ID,
				Name: c.ToolCall.Name,
				Args: args,
			}})
		case c.ToolResult != nil:
			parts = append(parts, &genai.Part{FunctionResponse: &genai.FunctionResponse{
				ID:       c.ToolResult.ToolCallID,
				Name:     c.ToolResult.Name,
				Response: toolResponse(*c.ToolResult),
			}})
		}
	}
	if len(parts) == 0 {
		return nil, nil
	}

	role := "user"
	if msg.Role == chat.AssistantRole {
		role = "model"
	}
	return &genai.Content{Role: role, Parts: parts}, nil
}

// toolResponse turns a tool's JSON output into the object Gemini expects.
// Non-object output is wrapped as {"result": ...}.
func toolResponse(tr chat.ToolResult) map[string]any {
	response := make(map[string]any)
	if tr.Content == "" {
		if tr.Error != "" {
			response["error"] = tr.Error
		} else {
			response["result"] = "success"
		}
		return response
	}
	if err := json.Unmarshal([]byte(tr.Content), &response); err != nil || response == nil {
		return map[string]any{"result": tr.Content}
	}
	return response
}

func messagesToGemini(msgs []chat.Message) ([]*genai.Content, error) {
	contents := make([]*genai.Content, 0, len(msgs))
	for i, msg := range msgs {
		content, err := messageToGemini(msg)
		if err != nil {
			return nil, errors.Wrapf(err, "converting message %d", i)
		}
		if content != nil {
			contents = append(contents, content)
		}
	}
	return contents, nil
}

// responseToMessage extracts text and function calls from the first
// candidate. Thought parts are dropped.
func responseToMessage(resp *genai.GenerateContentResponse) (chat.Message, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return chat.Message{}, errors.New("gemini returned no candidates")
	}
	msg := chat.Message{Role: chat.AssistantRole}
	cand := resp.Candidates[0]
	if cand.Content == nil {
		return msg, nil
	}
	for _, part := range cand.Content.Parts {
		if part == nil || part.Thought {
			continue
		}
		if part.Text != "" {
			msg.AddText(part.Text)
		}
		if fc := part.FunctionCall; fc != nil {
			args, err := json.Marshal(fc.Args)
			if err != nil {
				return chat.Message{}, errors.Wrapf(err, "function call %s arguments", fc.Name)
			}
			if fc.Args == nil {
				args = []byte("{}")
			}
			id := fc.ID
			if id == "" {
				id = "call_" + uuid.NewString()
			}
			msg.AddToolCall(chat.ToolCall{ID: id, Name: fc.Name, Arguments: args})
		}
	}
	return msg, nil
}

func usageFromResponse(resp *genai.GenerateContentResponse) chat.TokenUsageDetails {
	if resp == nil || resp.UsageMetadata == nil {
		return chat.TokenUsageDetails{}
	}
	u := resp.UsageMetadata
	return chat.TokenUsageDetails{
		InputTokens:  int(u.PromptTokenCount),
		OutputTokens: int(u.CandidatesTokenCount),
		TotalTokens:  int(u.TotalTokenCount),
		CachedTokens: int(u.CachedContentTokenCount),
	}
}

func toolToGemini(tool chat.ToolDef) (*genai.FunctionDeclaration, error) {
	input, err := common.InputSchema(tool)
	if err != nil {
		return nil, err
	}
	return &genai.FunctionDeclaration{
		Name:        tool.Name(),
		Description: tool.Description(),
		Parameters:  schemaToGemini(input),
	}, nil
}

var geminiTypes = map[schema.Type]genai.Type{
	schema.String:  genai.TypeString,
	schema.Number:  genai.TypeNumber,
	schema.Integer: genai.TypeInteger,
	schema.Boolean: genai.TypeBoolean,
	schema.Array:   genai.TypeArray,
	schema.Object:  genai.TypeObject,
}

// schemaToGemini converts the subset of JSON Schema Gemini understands.
func schemaToGemini(s *schema.JSON) *genai.Schema {
	if s == nil {
		return nil
	}
	out := &genai.Schema{
		Type:        geminiTypes[s.TypeName()],
		Description: s.Description,
		Enum:        s.Enum,
		Required:    s.Required,
		Items:       schemaToGemini(s.Items),
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for name, prop := range s.Properties {
			out.Properties[name] = schemaToGemini(prop)
		}
	}
	return out
}
