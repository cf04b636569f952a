package mathtools

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode"
)

var allowedChars = regexp.MustCompile(`^[0-9+\-*/().^a-zA-Z,]+$`)

// OperationResult is the outcome of evaluating an arithmetic expression.
type OperationResult struct {
	Expression string   `json:"expresion_original"`
	Value      float64  `json:"resultado"`
	Steps      []string `json:"pasos"`
}

// Evaluate parses and evaluates expr. It supports + - * / and powers
// written as ^ or **, parentheses, the functions sqrt, sin, cos, tan,
// log (base 10) and exp, and the constants pi and e.
//
// Anything else is rejected with ErrInvalidExpression before evaluation
// starts. Dividing by exactly zero fails with ErrDivisionByZero.
func Evaluate(expr string) (OperationResult, error) {
	compact := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, expr)
	if compact == "" {
		return OperationResult{}, syntaxError(expr)
	}
	if !allowedChars.MatchString(compact) {
		return OperationResult{}, invalid(ErrInvalidExpression, "La expresión contiene caracteres no permitidos: '%s'", compact)
	}
	processed := strings.ReplaceAll(compact, "^", "**")

	tree, err := parse(processed)
	if err != nil {
		return OperationResult{}, err
	}

	in := &interpreter{}
	in.steps = append(in.steps,
		"Expresión original: "+expr,
		"Expresión procesada: "+processed,
		"Evaluación paso a paso:",
	)
	value, err := in.eval(tree)
	if err != nil {
		return OperationResult{}, err
	}
	in.steps = append(in.steps, "→ Resultado final: "+fixed(value, 6))

	return OperationResult{
		Expression: expr,
		Value:      value,
		Steps:      in.steps,
	}, nil
}

// interpreter walks an expression tree, recording one step per reduction.
type interpreter struct {
	steps []string
}

func (in *interpreter) eval(n node) (float64, error) {
	switch n := n.(type) {
	case *numberNode:
		return n.value, nil
	case *constNode:
		return n.value, nil
	case *unaryNode:
		v, err := in.eval(n.operand)
		if err != nil {
			return 0, err
		}
		if n.op == tokMinus {
			return -v, nil
		}
		return v, nil
	case *binaryNode:
		return in.binary(n)
	case *callNode:
		arg, err := in.eval(n.arg)
		if err != nil {
			return 0, err
		}
		if !n.fn.domain(arg) {
			return 0, invalid(ErrInvalidExpression, "Error: %s(%s) está fuera del dominio de la función", n.fn.name, formatNumber(arg))
		}
		v := n.fn.apply(arg)
		if err := checkFinite(v); err != nil {
			return 0, err
		}
		in.record("%s(%s) = %s", n.fn.name, formatNumber(arg), formatNumber(v))
		return v, nil
	default:
		return 0, invalid(ErrInvalidExpression, "Error de sintaxis en la expresión")
	}
}

func (in *interpreter) binary(n *binaryNode) (float64, error) {
	left, err := in.eval(n.left)
	if err != nil {
		return 0, err
	}
	right, err := in.eval(n.right)
	if err != nil {
		return 0, err
	}

	var v float64
	switch n.op {
	case tokPlus:
		v = left + right
	case tokMinus:
		v = left - right
	case tokStar:
		v = left * right
	case tokSlash:
		if right == 0 {
			return 0, invalid(ErrDivisionByZero, "Error: División por cero detectada")
		}
		v = left / right
	case tokPow:
		if left == 0 && right < 0 {
			return 0, invalid(ErrDivisionByZero, "Error: División por cero detectada")
		}
		v = math.Pow(left, right)
		if math.IsNaN(v) {
			return 0, invalid(ErrInvalidExpression, "Error: %s ^ %s no tiene un resultado real", formatNumber(left), formatNumber(right))
		}
	default:
		return 0, invalid(ErrInvalidExpression, "Error de sintaxis en la expresión")
	}
	if err := checkFinite(v); err != nil {
		return 0, err
	}

	in.record("%s %s %s = %s", formatOperand(left), opSymbol(n.op), formatOperand(right), formatNumber(v))
	return v, nil
}

func (in *interpreter) record(format string, args ...any) {
	in.steps = append(in.steps, "→ "+fmt.Sprintf(format, args...))
}

func formatOperand(v float64) string {
	if v < 0 {
		return "(" + formatNumber(v) + ")"
	}
	return formatNumber(v)
}

func checkFinite(v float64) error {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return invalid(ErrInvalidExpression, "Error: el resultado está fuera del rango numérico")
	}
	return nil
}
