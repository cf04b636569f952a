package mathtools

import (
	"strconv"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokIdent
	tokPlus
	tokMinus
	tokStar
	tokSlash
	tokPow
	tokLParen
	tokRParen
	tokComma
)

func (k tokenKind) String() string {
	switch k {
	case tokEOF:
		return "fin de la expresión"
	case tokNumber:
		return "número"
	case tokIdent:
		return "identificador"
	case tokPlus:
		return "'+'"
	case tokMinus:
		return "'-'"
	case tokStar:
		return "'*'"
	case tokSlash:
		return "'/'"
	case tokPow:
		return "'**'"
	case tokLParen:
		return "'('"
	case tokRParen:
		return "')'"
	case tokComma:
		return "','"
	default:
		return "token desconocido"
	}
}

type token struct {
	kind  tokenKind
	text  string
	value float64
	pos   int
}

// lex splits a whitespace-free expression into tokens. Both "^" and "**"
// produce tokPow.
func lex(src string) ([]token, error) {
	var tokens []token
	for i := 0; i < len(src); {
		c := src[i]
		switch {
		case isDigit(c) || c == '.':
			end, err := scanNumber(src, i)
			if err != nil {
				return nil, err
			}
			text := src[i:end]
			v, perr := strconv.ParseFloat(text, 64)
			if perr != nil {
				return nil, syntaxError(src)
			}
			tokens = append(tokens, token{kind: tokNumber, text: text, value: v, pos: i})
			i = end
		case isLetter(c):
			end := i + 1
			for end < len(src) && (isLetter(src[end]) || isDigit(src[end])) {
				end++
			}
			tokens = append(tokens, token{kind: tokIdent, text: src[i:end], pos: i})
			i = end
		case c == '*' && i+1 < len(src) && src[i+1] == '*':
			tokens = append(tokens, token{kind: tokPow, text: "**", pos: i})
			i += 2
		default:
			kind, ok := punctuation[c]
			if !ok {
				return nil, invalid(ErrInvalidExpression, "La expresión contiene caracteres no permitidos: '%s'", src)
			}
			tokens = append(tokens, token{kind: kind, text: string(c), pos: i})
			i++
		}
	}
	tokens = append(tokens, token{kind: tokEOF, pos: len(src)})
	return tokens, nil
}

var punctuation = map[byte]tokenKind{
	'+': tokPlus,
	'-': tokMinus,
	'*': tokStar,
	'/': tokSlash,
	'^': tokPow,
	'(': tokLParen,
	')': tokRParen,
	',': tokComma,
}

// scanNumber returns the end offset of the numeric literal starting at i:
// digits with at most one decimal point and an optional exponent. An "e"
// that is not followed by digits is left for the identifier scanner.
func scanNumber(src string, i int) (int, error) {
	digits := 0
	for i < len(src) && isDigit(src[i]) {
		i++
		digits++
	}
	if i < len(src) && src[i] == '.' {
		i++
		for i < len(src) && isDigit(src[i]) {
			i++
			digits++
		}
	}
	if digits == 0 {
		return 0, syntaxError(src)
	}
	if i < len(src) && (src[i] == 'e' || src[i] == 'E') {
		j := i + 1
		if j < len(src) && (src[j] == '+' || src[j] == '-') {
			j++
		}
		if j < len(src) && isDigit(src[j]) {
			for j < len(src) && isDigit(src[j]) {
				j++
			}
			i = j
		}
	}
	if i < len(src) && src[i] == '.' {
		// 1.2.3
		return 0, syntaxError(src)
	}
	return i, nil
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func syntaxError(expr string) error {
	return invalid(ErrInvalidExpression, "Error de sintaxis en la expresión: '%s'", expr)
}
