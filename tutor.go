// Package tutor is the math tutor agent: it keeps per-student
// conversations, answers through an LLM that can call the math tools, and
// reads handwritten math from whiteboard images.
package tutor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/ArianneAlonso/tutor-math-mcp/chat"
	"github.com/ArianneAlonso/tutor-math-mcp/curriculum"
	"github.com/ArianneAlonso/tutor-math-mcp/internal/logging"
	"github.com/ArianneAlonso/tutor-math-mcp/mathtools"
	"github.com/ArianneAlonso/tutor-math-mcp/persistence"
)

// DefaultHistoryWindow is how many stored messages are replayed to the LLM.
const DefaultHistoryWindow = 10

// ErrEmptyMessage is returned by Chat when there is neither text nor image.
var ErrEmptyMessage = errors.Mark(errors.New("el mensaje no puede estar vacío"), chat.ErrInvalidInput)

// ChatRequest is one student turn.
type ChatRequest struct {
	Message        string
	ConversationID string
	UserID         string
	ImageBase64    string
}

// ChatResponse is the tutor's reply and the conversation it was stored in.
type ChatResponse struct {
	Response       string
	ConversationID string
}

// Tutor answers students and keeps their conversations. It is safe for
// concurrent use.
type Tutor struct {
	client        chat.Client
	store         persistence.Store
	curriculum    *curriculum.Curriculum
	titler        Titler
	analyzer      *Analyzer
	historyWindow int
	tools         []mathtools.Tool
	systemPrompt  string
	options       []chat.Option
}

type Option func(*Tutor)

// WithHistoryWindow sets how many stored messages are replayed.
func WithHistoryWindow(n int) Option {
	return func(t *Tutor) {
		t.historyWindow = n
	}
}

// WithTitler replaces the LLM titler.
func WithTitler(titler Titler) Option {
	return func(t *Tutor) {
		t.titler = titler
	}
}

// WithCurriculum replaces the embedded curriculum.
func WithCurriculum(c *curriculum.Curriculum) Option {
	return func(t *Tutor) {
		t.curriculum = c
	}
}

// WithChatOptions adds options to every tutoring message.
func WithChatOptions(opts ...chat.Option) Option {
	return func(t *Tutor) {
		t.options = append(t.options, opts...)
	}
}

// New returns a tutor answering through client and storing in store.
func New(client chat.Client, store persistence.Store, opts ...Option) (*Tutor, error) {
	t := &Tutor{
		client:        client,
		store:         store,
		historyWindow: DefaultHistoryWindow,
		tools:         mathtools.Tools(),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.curriculum == nil {
		t.curriculum = curriculum.Default()
	}
	if t.titler == nil {
		t.titler = NewLLMTitler(client)
	}
	t.analyzer = NewAnalyzer(client)
	if t.historyWindow < 0 {
		t.historyWindow = 0
	}

	prompt, err := t.curriculum.SystemPrompt(ToolSummaries(t.tools))
	if err != nil {
		return nil, err
	}
	t.systemPrompt = prompt
	return t, nil
}

// SystemPrompt is the prompt every tutoring chat starts with.
func (t *Tutor) SystemPrompt() string {
	return t.systemPrompt
}

// NewChat starts an LLM chat with the tutor prompt and the math tools.
func (t *Tutor) NewChat(history ...chat.Message) (chat.Chat, error) {
	ch := t.client.NewChat(t.systemPrompt, history...)
	for _, tool := range t.tools {
		if err := ch.RegisterTool(tool); err != nil {
			return nil, errors.Wrapf(err, "register %s", tool.Name())
		}
	}
	return ch, nil
}

// Chat answers one student turn. A new conversation is created, titled
// from the message, when req.ConversationID is empty. LLM failures do not
// fail the call: the reply becomes an apology carrying the error, and both
// turns are still stored.
func (t *Tutor) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	text := strings.TrimSpace(req.Message)
	if text == "" && req.ImageBase64 == "" {
		return ChatResponse{}, ErrEmptyMessage
	}

	msg := chat.UserMessage(text)
	if req.ImageBase64 != "" {
		img, err := DecodeImage(req.ImageBase64)
		if err != nil {
			return ChatResponse{}, err
		}
		msg.AddImage("image/png", img)
	}

	conv, err := t.conversation(ctx, req.ConversationID, req.UserID, text)
	if err != nil {
		return ChatResponse{}, err
	}

	reply := t.reply(ctx, HistoryMessages(conv.Messages, t.historyWindow), msg)

	userMsg := persistence.Message{Sender: persistence.SenderUser, Text: req.Message, MessageType: persistence.TypeText}
	if req.ImageBase64 != "" {
		userMsg.ImageBase64 = req.ImageBase64
		userMsg.MessageType = persistence.TypeImage
	}
	botMsg := persistence.Message{Sender: persistence.SenderBot, Text: reply, MessageType: persistence.TypeText}
	if err := t.store.AppendMessages(ctx, conv.ID, userMsg, botMsg); err != nil {
		return ChatResponse{}, errors.Wrap(err, "store messages")
	}

	return ChatResponse{Response: reply, ConversationID: conv.ID}, nil
}

func (t *Tutor) conversation(ctx context.Context, id, userID, firstMessage string) (persistence.Conversation, error) {
	if id != "" {
		return t.store.GetConversation(ctx, id)
	}

	title, err := t.titler.Title(ctx, firstMessage)
	if err != nil {
		logging.Logger().Warn("falling back to truncated title", "err", err)
		title = TruncateTitle(firstMessage, maxTitleRunes)
	}
	return t.store.CreateConversation(ctx, persistence.Conversation{UserID: userID, Title: title})
}

func (t *Tutor) reply(ctx context.Context, history []chat.Message, msg chat.Message) string {
	ch, err := t.NewChat(history...)
	if err == nil {
		var resp chat.Message
		resp, err = ch.Message(ctx, msg, t.options...)
		if err == nil {
			if text := strings.TrimSpace(resp.GetText()); text != "" {
				return text
			}
			err = errors.New("respuesta vacía del modelo")
		}
	}
	logging.Logger().Error("tutor reply failed", "err", err)
	return fmt.Sprintf("Lo siento, tuve un error interno. Intenta de nuevo. (Error: %s)", err)
}

// HistoryMessages converts the last window stored messages to chat
// history. User messages stay user turns and everything else becomes an
// assistant turn. Messages without text are skipped, except analyses,
// which are replayed as their JSON result.
func HistoryMessages(msgs []persistence.Message, window int) []chat.Message {
	if window >= 0 && len(msgs) > window {
		msgs = msgs[len(msgs)-window:]
	}
	out := make([]chat.Message, 0, len(msgs))
	for _, m := range msgs {
		text := m.Text
		if text == "" && len(m.AnalysisResult) > 0 {
			text = "Análisis de la pizarra: " + string(m.AnalysisResult)
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		if m.Sender == persistence.SenderUser {
			out = append(out, chat.UserMessage(text))
		} else {
			out = append(out, chat.AssistantMessage(text))
		}
	}
	return out
}

// ToolSummaries describes tools for the system prompt.
func ToolSummaries(tools []mathtools.Tool) []curriculum.ToolSummary {
	summaries := make([]curriculum.ToolSummary, 0, len(tools))
	for _, tool := range tools {
		s := curriculum.ToolSummary{Name: tool.Name(), Description: tool.Description()}
		if props := tool.Kind().InputSchema().Properties; props != nil {
			for pair := props.Oldest(); pair != nil; pair = pair.Next() {
				s.Params = append(s.Params, pair.Key)
			}
		}
		summaries = append(summaries, s)
	}
	return summaries
}

// CalculateRequest is one whiteboard image to analyze.
type CalculateRequest struct {
	ImageBase64    string
	Vars           map[string]any
	ConversationID string
}

// Calculate analyzes an image. With a ConversationID, the image and the
// analysis are appended to that conversation.
func (t *Tutor) Calculate(ctx context.Context, req CalculateRequest) ([]Expression, error) {
	if req.ConversationID != "" {
		if _, err := t.store.GetConversation(ctx, req.ConversationID); err != nil {
			return nil, err
		}
	}

	result, err := t.analyzer.Analyze(ctx, req.ImageBase64, req.Vars)
	if err != nil {
		return nil, err
	}
	if req.ConversationID == "" {
		return result, nil
	}

	msgs, err := AnalysisMessages(req.ImageBase64, result)
	if err != nil {
		return nil, err
	}
	if err := t.store.AppendMessages(ctx, req.ConversationID, msgs...); err != nil {
		return nil, errors.Wrap(err, "store analysis")
	}
	return result, nil
}

// AnalysisMessages builds the stored turns for an analyzed image: the
// student's image and the bot's analysis.
func AnalysisMessages(imageBase64 string, result []Expression) ([]persistence.Message, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return nil, errors.Wrap(err, "marshal analysis")
	}
	return []persistence.Message{
		{Sender: persistence.SenderUser, ImageBase64: imageBase64, MessageType: persistence.TypeImage},
		{Sender: persistence.SenderBot, AnalysisResult: data, MessageType: persistence.TypeAnalysis},
	}, nil
}
