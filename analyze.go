package tutor

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/ArianneAlonso/tutor-math-mcp/chat"
	"github.com/ArianneAlonso/tutor-math-mcp/internal/logging"
)

// analysisMaxTokens caps the reply of one image analysis.
const analysisMaxTokens = 1024

// Expression is one expression found in an analyzed image. Result is
// whatever the model produced: a number, a string or an object.
type Expression struct {
	Expr   string `json:"expr"`
	Result any    `json:"result"`
	Assign bool   `json:"assign"`
}

// Analyzer reads handwritten math from whiteboard images.
type Analyzer struct {
	client chat.Client
}

// NewAnalyzer returns an analyzer that sends images to client.
func NewAnalyzer(client chat.Client) *Analyzer {
	return &Analyzer{client: client}
}

// Analyze decodes imageBase64, asks the model to solve what is drawn using
// vars as known variable values, and parses the reply. Bad images fail
// with ErrInvalidImage; replies that are not JSON come back as a single
// "error" expression holding the reply text.
func (a *Analyzer) Analyze(ctx context.Context, imageBase64 string, vars map[string]any) ([]Expression, error) {
	img, err := DecodeImage(imageBase64)
	if err != nil {
		return nil, err
	}

	if vars == nil {
		vars = map[string]any{}
	}
	varsJSON, err := json.Marshal(vars)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "dict_of_vars"), chat.ErrInvalidInput)
	}

	msg := chat.UserMessage(analysisPrompt(string(varsJSON)))
	msg.AddImage("image/png", img)

	reply, err := a.client.NewChat("").Message(ctx, msg,
		chat.WithMaxTokens(analysisMaxTokens),
		chat.WithResponseFormat("analisis", false, nil))
	if err != nil {
		return nil, errors.Wrap(err, "analyze image")
	}
	return ParseExpressions(reply.GetText()), nil
}

func analysisPrompt(vars string) string {
	return `Se te ha dado una imagen con algunas expresiones matemáticas, ecuaciones o problemas gráficos, y necesitas resolverlos.
Aplica las reglas de derivación, álgebra y cálculo según corresponda.
Usa el siguiente diccionario de variables: ` + vars + `
Responde siempre en formato JSON válido, como una lista de objetos con las claves "expr", "result" y "assign".
NO devuelvas texto fuera del JSON. NO devuelvas explicaciones, solo JSON puro.`
}

// ParseExpressions parses a model reply after removing code fences. A
// single object is accepted as a one-element list.
func ParseExpressions(text string) []Expression {
	clean := strings.NewReplacer("```json", "", "```", "", "`", "").Replace(strings.TrimSpace(text))
	clean = strings.TrimSpace(clean)

	var list []Expression
	if err := json.Unmarshal([]byte(clean), &list); err == nil && list != nil {
		return list
	}
	var single Expression
	if strings.HasPrefix(clean, "{") {
		if err := json.Unmarshal([]byte(clean), &single); err == nil {
			return []Expression{single}
		}
	}

	logging.Logger().Error("could not parse analysis reply", "reply", text)
	return []Expression{{Expr: "error", Result: clean, Assign: false}}
}
