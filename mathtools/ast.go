package mathtools

import (
	"math"
	"strings"
)

// node is an expression tree node. Trees only ever contain literals,
// allow-listed constants, the arithmetic operators, and calls of
// allow-listed functions; the parser refuses anything else.
type node interface {
	String() string
}

type numberNode struct {
	value float64
	text  string
}

type constNode struct {
	name  string
	value float64
}

type unaryNode struct {
	op      tokenKind // tokPlus or tokMinus
	operand node
}

type binaryNode struct {
	op          tokenKind
	left, right node
}

type callNode struct {
	fn  *function
	arg node
}

func (n *numberNode) String() string { return n.text }
func (n *constNode) String() string  { return n.name }

func (n *unaryNode) String() string {
	if n.op == tokMinus {
		return "-" + n.operand.String()
	}
	return "+" + n.operand.String()
}

func (n *binaryNode) String() string {
	var b strings.Builder
	b.WriteString("(")
	b.WriteString(n.left.String())
	b.WriteString(" ")
	b.WriteString(opSymbol(n.op))
	b.WriteString(" ")
	b.WriteString(n.right.String())
	b.WriteString(")")
	return b.String()
}

func (n *callNode) String() string {
	return n.fn.name + "(" + n.arg.String() + ")"
}

func opSymbol(op tokenKind) string {
	switch op {
	case tokPlus:
		return "+"
	case tokMinus:
		return "-"
	case tokStar:
		return "*"
	case tokSlash:
		return "/"
	case tokPow:
		return "^"
	default:
		return "?"
	}
}

// function is an allow-listed unary function.
type function struct {
	name string
	// domain reports whether x is a valid argument.
	domain func(x float64) bool
	apply  func(x float64) float64
}

func always(float64) bool { return true }

var functions = map[string]*function{
	"sqrt": {name: "sqrt", domain: func(x float64) bool { return x >= 0 }, apply: math.Sqrt},
	"sin":  {name: "sin", domain: always, apply: math.Sin},
	"cos":  {name: "cos", domain: always, apply: math.Cos},
	"tan":  {name: "tan", domain: always, apply: math.Tan},
	"log":  {name: "log", domain: func(x float64) bool { return x > 0 }, apply: math.Log10},
	"exp":  {name: "exp", domain: always, apply: math.Exp},
}

var constants = map[string]float64{
	"pi": math.Pi,
	"e":  math.E,
}
