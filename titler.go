package tutor

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/cockroachdb/errors"

	"github.com/ArianneAlonso/tutor-math-mcp/chat"
)

// DefaultTitle names conversations that start without any text.
const DefaultTitle = "Nueva conversación"

const maxTitleRunes = 60

// Titler names a new conversation from its first message.
type Titler interface {
	Title(ctx context.Context, firstMessage string) (string, error)
}

// LLMTitler asks an LLM for a short title.
type LLMTitler struct {
	client chat.Client
	prompt string
}

// NewLLMTitler creates a titler backed by client.
func NewLLMTitler(client chat.Client) *LLMTitler {
	return &LLMTitler{
		client: client,
		prompt: defaultTitlePrompt,
	}
}

// SetPrompt updates the titling prompt.
func (t *LLMTitler) SetPrompt(prompt string) {
	t.prompt = prompt
}

// Title returns a title of at most 60 characters. An empty message gets
// DefaultTitle without calling the LLM.
func (t *LLMTitler) Title(ctx context.Context, firstMessage string) (string, error) {
	firstMessage = strings.TrimSpace(firstMessage)
	if firstMessage == "" {
		return DefaultTitle, nil
	}

	titleChat := t.client.NewChat("Eres un asistente que pone títulos breves a conversaciones de tutoría de matemáticas.")
	response, err := titleChat.Message(ctx,
		chat.UserMessage(t.prompt+"\n\nMensaje:\n"+firstMessage),
		chat.WithTemperature(0.2),
		chat.WithMaxTokens(64))
	if err != nil {
		return "", errors.Wrap(err, "title generation failed")
	}

	title := strings.Trim(strings.TrimSpace(response.GetText()), `"'«»*#`)
	if title == "" {
		return "", errors.New("title generation returned no text")
	}
	return TruncateTitle(title, maxTitleRunes), nil
}

const defaultTitlePrompt = `Escribe un título de como máximo seis palabras, en español, que describa el siguiente mensaje de un estudiante.
Responde solo con el título, sin comillas ni puntuación final.`

// TruncateTitler titles a conversation with the start of its first message.
type TruncateTitler struct {
	MaxRunes int
}

// Title never fails.
func (t TruncateTitler) Title(_ context.Context, firstMessage string) (string, error) {
	limit := t.MaxRunes
	if limit <= 0 {
		limit = maxTitleRunes
	}
	return TruncateTitle(firstMessage, limit), nil
}

// TruncateTitle collapses whitespace and cuts text to limit runes, marking
// the cut with an ellipsis.
func TruncateTitle(text string, limit int) string {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return DefaultTitle
	}
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	return strings.TrimSpace(string(runes[:limit-1])) + "…"
}
