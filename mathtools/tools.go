package mathtools

import (
	"bytes"
	"context"
	"encoding/json"
	"reflect"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/invopop/jsonschema"

	"github.com/ArianneAlonso/tutor-math-mcp/chat"
	"github.com/ArianneAlonso/tutor-math-mcp/schema"
)

// Kind identifies one of the math tools.
type Kind int

const (
	KindLinear Kind = iota
	KindQuadratic
	KindOperation
)

// Kinds lists every tool in registration order.
var Kinds = []Kind{KindLinear, KindQuadratic, KindOperation}

// Name is the tool name exposed to LLMs and MCP clients.
func (k Kind) Name() string {
	switch k {
	case KindLinear:
		return "resolver_ecuacion_lineal"
	case KindQuadratic:
		return "resolver_ecuacion_cuadratica"
	case KindOperation:
		return "realizar_operacion"
	default:
		return ""
	}
}

func (k Kind) String() string { return k.Name() }

// Description returns the tool description shown to LLMs.
func (k Kind) Description() string {
	switch k {
	case KindLinear:
		return "Resuelve una ecuación lineal de la forma mx + b = 0"
	case KindQuadratic:
		return "Resuelve una ecuación cuadrática de la forma ax² + bx + c = 0 usando la fórmula cuadrática"
	case KindOperation:
		return "Evalúa una expresión matemática simple. Soporta: +, -, *, /, ^(potencia), sqrt(), sin(), cos(), tan(), log()"
	default:
		return ""
	}
}

// InputSchema is the JSON schema of the tool's arguments object.
func (k Kind) InputSchema() *jsonschema.Schema {
	switch k {
	case KindLinear:
		return schema.MustReflect[LinearArgs]()
	case KindQuadratic:
		return schema.MustReflect[QuadraticArgs]()
	case KindOperation:
		return schema.MustReflect[OperationArgs]()
	default:
		return nil
	}
}

func (k Kind) args() any {
	switch k {
	case KindLinear:
		return &LinearArgs{}
	case KindQuadratic:
		return &QuadraticArgs{}
	case KindOperation:
		return &OperationArgs{}
	default:
		return nil
	}
}

// KindByName resolves a tool name.
func KindByName(name string) (Kind, bool) {
	for _, k := range Kinds {
		if k.Name() == name {
			return k, true
		}
	}
	return 0, false
}

// LinearArgs are the arguments of resolver_ecuacion_lineal.
type LinearArgs struct {
	M float64 `json:"m" jsonschema_description:"Coeficiente de x (pendiente). No puede ser cero."`
	B float64 `json:"b" jsonschema_description:"Término independiente (ordenada al origen)"`
}

// QuadraticArgs are the arguments of resolver_ecuacion_cuadratica.
type QuadraticArgs struct {
	A float64 `json:"a" jsonschema_description:"Coeficiente cuadrático (debe ser diferente de cero)"`
	B float64 `json:"b" jsonschema_description:"Coeficiente lineal"`
	C float64 `json:"c" jsonschema_description:"Término independiente"`
}

// OperationArgs are the arguments of realizar_operacion.
type OperationArgs struct {
	Expression string `json:"expresion" jsonschema_description:"Expresión matemática a evaluar (ej: '2*3 + 5', 'sqrt(16)', '2^3')"`
}

// Call is a decoded tool invocation. Exactly one of the argument pointers
// is set, matching Kind.
type Call struct {
	Kind      Kind
	Linear    *LinearArgs
	Quadratic *QuadraticArgs
	Operation *OperationArgs
}

// DecodeCall type-checks raw JSON arguments against the schema of kind.
// Every declared argument is required, unknown keys are rejected, and a
// missing or null arguments object is treated as {}.
func DecodeCall(kind Kind, raw json.RawMessage) (Call, error) {
	target := kind.args()
	if target == nil {
		return Call{}, errors.Newf("unknown tool kind %d", int(kind))
	}

	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		raw = []byte("{}")
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Call{}, invalid(ErrInvalidArguments, "los argumentos deben ser un objeto JSON")
	}
	for _, name := range kind.InputSchema().Required {
		v, ok := fields[name]
		if !ok || bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
			return Call{}, invalid(ErrInvalidArguments, "falta el argumento requerido '%s'", name)
		}
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		return Call{}, argumentError(err)
	}

	call := Call{Kind: kind}
	switch args := target.(type) {
	case *LinearArgs:
		call.Linear = args
	case *QuadraticArgs:
		call.Quadratic = args
	case *OperationArgs:
		call.Operation = args
	}
	return call, nil
}

func argumentError(err error) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		want := "un número"
		if typeErr.Type != nil && typeErr.Type.Kind() == reflect.String {
			want = "un texto"
		}
		return invalid(ErrInvalidArguments, "el argumento '%s' debe ser %s, no %s", typeErr.Field, want, typeErr.Value)
	}
	if field, ok := strings.CutPrefix(err.Error(), "json: unknown field "); ok {
		return invalid(ErrInvalidArguments, "argumento desconocido %s", field)
	}
	return invalid(ErrInvalidArguments, "argumentos inválidos: %s", err.Error())
}

// Dispatch runs a decoded call and returns its result value.
func Dispatch(call Call) (any, error) {
	switch call.Kind {
	case KindLinear:
		sol, err := SolveLinear(call.Linear.M, call.Linear.B)
		if err != nil {
			return nil, errors.Wrap(err, "Error al resolver ecuación lineal")
		}
		return sol, nil
	case KindQuadratic:
		sol, err := SolveQuadratic(call.Quadratic.A, call.Quadratic.B, call.Quadratic.C)
		if err != nil {
			return nil, errors.Wrap(err, "Error al resolver ecuación cuadrática")
		}
		return sol, nil
	case KindOperation:
		res, err := Evaluate(call.Operation.Expression)
		if err != nil {
			return nil, errors.Wrap(err, "Error al evaluar la expresión")
		}
		return res, nil
	default:
		return nil, errors.Newf("unknown tool kind %d", int(call.Kind))
	}
}

// Tool adapts a Kind to chat.Tool so LLM chats can call it, and exposes
// Handle for callers that want the typed result.
type Tool struct {
	kind Kind
}

var _ chat.Tool = Tool{}

// NewTool returns the tool for kind.
func NewTool(kind Kind) Tool {
	return Tool{kind: kind}
}

// Tools returns every math tool in registration order.
func Tools() []Tool {
	tools := make([]Tool, 0, len(Kinds))
	for _, k := range Kinds {
		tools = append(tools, NewTool(k))
	}
	return tools
}

// Kind returns the operation the tool runs.
func (t Tool) Kind() Kind { return t.kind }

// Name returns the tool name as advertised to models and MCP clients.
func (t Tool) Name() string { return t.kind.Name() }

// Description returns the Spanish tool description.
func (t Tool) Description() string { return t.kind.Description() }

// MCPJsonSchema returns the tool definition with its input schema as JSON.
func (t Tool) MCPJsonSchema() string {
	def := struct {
		Name        string             `json:"name"`
		Description string             `json:"description"`
		InputSchema *jsonschema.Schema `json:"inputSchema"`
	}{t.Name(), t.Description(), t.kind.InputSchema()}
	b, err := json.Marshal(def)
	if err != nil {
		panic(err)
	}
	return string(b)
}

// Handle decodes args and runs the tool.
func (t Tool) Handle(ctx context.Context, args json.RawMessage) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	call, err := DecodeCall(t.kind, args)
	if err != nil {
		return nil, err
	}
	return Dispatch(call)
}

// Call implements chat.Tool. Failures come back as {"error": "..."}.
func (t Tool) Call(ctx context.Context, input string) string {
	result, err := t.Handle(ctx, json.RawMessage(input))
	if err != nil {
		return errorJSON("Error ejecutando " + t.Name() + ": " + err.Error())
	}
	b, err := json.Marshal(result)
	if err != nil {
		return errorJSON("Error ejecutando " + t.Name() + ": " + err.Error())
	}
	return string(b)
}

func errorJSON(msg string) string {
	b, _ := json.Marshal(map[string]string{"error": msg})
	return string(b)
}
