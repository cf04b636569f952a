package mathtools

// maxDepth bounds nesting so hostile input cannot exhaust the stack.
const maxDepth = 200

// parser is a recursive-descent parser over the grammar
//
//	expr    = term { ("+" | "-") term }
//	term    = unary { ("*" | "/") unary }
//	unary   = ("+" | "-") unary | power
//	power   = primary [ "**" unary ]
//	primary = number | constant | function "(" expr ")" | "(" expr ")"
//
// "**" is right-associative and binds tighter than a unary sign on its
// left, so -2**2 is -(2**2) and 2**-1 is 0.5.
type parser struct {
	src    string
	tokens []token
	pos    int
	depth  int
}

func parse(src string) (node, error) {
	tokens, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{src: src, tokens: tokens}
	n, err := p.expr()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokEOF {
		return nil, syntaxError(src)
	}
	return n, nil
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) next() token {
	t := p.tokens[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) expect(kind tokenKind) error {
	if p.next().kind != kind {
		return syntaxError(p.src)
	}
	return nil
}

func (p *parser) enter() error {
	p.depth++
	if p.depth > maxDepth {
		return invalid(ErrInvalidExpression, "La expresión está demasiado anidada")
	}
	return nil
}

func (p *parser) leave() {
	p.depth--
}

func (p *parser) expr() (node, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()

	left, err := p.term()
	if err != nil {
		return nil, err
	}
	for {
		op := p.peek().kind
		if op != tokPlus && op != tokMinus {
			return left, nil
		}
		p.next()
		right, err := p.term()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{op: op, left: left, right: right}
	}
}

func (p *parser) term() (node, error) {
	left, err := p.unary()
	if err != nil {
		return nil, err
	}
	for {
		op := p.peek().kind
		if op != tokStar && op != tokSlash {
			return left, nil
		}
		p.next()
		right, err := p.unary()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{op: op, left: left, right: right}
	}
}

func (p *parser) unary() (node, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()

	if op := p.peek().kind; op == tokPlus || op == tokMinus {
		p.next()
		operand, err := p.unary()
		if err != nil {
			return nil, err
		}
		return &unaryNode{op: op, operand: operand}, nil
	}
	return p.power()
}

func (p *parser) power() (node, error) {
	base, err := p.primary()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokPow {
		return base, nil
	}
	p.next()
	exponent, err := p.unary()
	if err != nil {
		return nil, err
	}
	return &binaryNode{op: tokPow, left: base, right: exponent}, nil
}

func (p *parser) primary() (node, error) {
	t := p.next()
	switch t.kind {
	case tokNumber:
		return &numberNode{value: t.value, text: t.text}, nil
	case tokIdent:
		return p.identifier(t)
	case tokLParen:
		inner, err := p.expr()
		if err != nil {
			return nil, err
		}
		if err := p.expect(tokRParen); err != nil {
			return nil, err
		}
		return inner, nil
	default:
		return nil, syntaxError(p.src)
	}
}

// identifier resolves a name against the allow-lists. Unknown names are
// rejected here, before anything is evaluated.
func (p *parser) identifier(t token) (node, error) {
	if fn, ok := functions[t.text]; ok {
		if p.peek().kind != tokLParen {
			return nil, invalid(ErrInvalidExpression, "Error de sintaxis en la expresión: '%s' (la función %s necesita paréntesis)", p.src, fn.name)
		}
		p.next()
		arg, err := p.expr()
		if err != nil {
			return nil, err
		}
		if err := p.expect(tokRParen); err != nil {
			return nil, err
		}
		return &callNode{fn: fn, arg: arg}, nil
	}
	if v, ok := constants[t.text]; ok {
		if p.peek().kind == tokLParen {
			return nil, invalid(ErrInvalidExpression, "Error de sintaxis en la expresión: '%s' (%s no es una función)", p.src, t.text)
		}
		return &constNode{name: t.text, value: v}, nil
	}
	return nil, invalid(ErrInvalidExpression, "Error: Función o variable no reconocida: %s", t.text)
}
