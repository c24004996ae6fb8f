package parser

import (
	"github.com/covenant-lang/covenant/compiler/lexer"
)

// Expression grammar, lowest to highest precedence:
//
//	or > and > not > comparison > additive > multiplicative > unary minus
//	> call/index/member > atoms
//
// parseExpression is the entry point; each level delegates to the next.

// parseExpression parses a full expression
func (p *Parser) parseExpression() ExprNode {
	p.exprDepth++
	defer func() { p.exprDepth-- }()
	if p.exprDepth > MaxExprDepth {
		p.addErrorAt("Expression nesting exceeds maximum depth 256", TokenSpan(p.peek()))
		return nil
	}
	return p.parseOr()
}

// parseOr parses `a or b` with short-circuit semantics
func (p *Parser) parseOr() ExprNode {
	left := p.parseAnd()
	for left != nil && p.check(lexer.TOKEN_OR) {
		op := p.advance()
		right := p.parseAnd()
		if right == nil {
			return left
		}
		left = &BinaryExpr{Left: left, Operator: op.Type, Right: right, Span: left.GetSpan().Merge(right.GetSpan())}
	}
	return left
}

// parseAnd parses `a and b`
func (p *Parser) parseAnd() ExprNode {
	left := p.parseNot()
	for left != nil && p.check(lexer.TOKEN_AND) {
		op := p.advance()
		right := p.parseNot()
		if right == nil {
			return left
		}
		left = &BinaryExpr{Left: left, Operator: op.Type, Right: right, Span: left.GetSpan().Merge(right.GetSpan())}
	}
	return left
}

// parseNot parses prefix `not`
func (p *Parser) parseNot() ExprNode {
	if p.check(lexer.TOKEN_NOT) {
		op := p.advance()
		operand := p.parseNot()
		if operand == nil {
			return nil
		}
		return &UnaryExpr{Operator: op.Type, Operand: operand, Span: TokenSpan(op).Merge(operand.GetSpan())}
	}
	return p.parseComparison()
}

// parseComparison parses == != < <= > >=
func (p *Parser) parseComparison() ExprNode {
	left := p.parseAdditive()
	for left != nil && (p.check(lexer.TOKEN_EQUAL_EQUAL) || p.check(lexer.TOKEN_BANG_EQUAL) ||
		p.check(lexer.TOKEN_LESS) || p.check(lexer.TOKEN_LESS_EQUAL) ||
		p.check(lexer.TOKEN_GREATER) || p.check(lexer.TOKEN_GREATER_EQUAL)) {
		op := p.advance()
		right := p.parseAdditive()
		if right == nil {
			return left
		}
		left = &BinaryExpr{Left: left, Operator: op.Type, Right: right, Span: left.GetSpan().Merge(right.GetSpan())}
	}
	return left
}

// parseAdditive parses + and -
func (p *Parser) parseAdditive() ExprNode {
	left := p.parseMultiplicative()
	for left != nil && (p.check(lexer.TOKEN_PLUS) || p.check(lexer.TOKEN_MINUS)) {
		op := p.advance()
		right := p.parseMultiplicative()
		if right == nil {
			return left
		}
		left = &BinaryExpr{Left: left, Operator: op.Type, Right: right, Span: left.GetSpan().Merge(right.GetSpan())}
	}
	return left
}

// parseMultiplicative parses * / %
func (p *Parser) parseMultiplicative() ExprNode {
	left := p.parseUnary()
	for left != nil && (p.check(lexer.TOKEN_STAR) || p.check(lexer.TOKEN_SLASH) || p.check(lexer.TOKEN_PERCENT)) {
		op := p.advance()
		right := p.parseUnary()
		if right == nil {
			return left
		}
		left = &BinaryExpr{Left: left, Operator: op.Type, Right: right, Span: left.GetSpan().Merge(right.GetSpan())}
	}
	return left
}

// parseUnary parses unary minus and await
func (p *Parser) parseUnary() ExprNode {
	if p.check(lexer.TOKEN_MINUS) {
		op := p.advance()
		operand := p.parseUnary()
		if operand == nil {
			return nil
		}
		return &UnaryExpr{Operator: op.Type, Operand: operand, Span: TokenSpan(op).Merge(operand.GetSpan())}
	}
	if p.check(lexer.TOKEN_AWAIT) {
		op := p.advance()
		operand := p.parseUnary()
		if operand == nil {
			return nil
		}
		return &AwaitExpr{Operand: operand, Span: TokenSpan(op).Merge(operand.GetSpan())}
	}
	return p.parsePostfix()
}

// parsePostfix parses call, index, and member access chains
func (p *Parser) parsePostfix() ExprNode {
	expr := p.parsePrimary()
	for expr != nil {
		switch {
		case p.check(lexer.TOKEN_DOT):
			p.advance()
			name := p.consume(lexer.TOKEN_IDENTIFIER, "Expected member name after '.'")
			if name == nil {
				return expr
			}
			if p.check(lexer.TOKEN_LPAREN) {
				p.advance()
				args, kwargs := p.parseArguments()
				expr = &MethodCallExpr{
					Receiver: expr,
					Method:   name.Lexeme,
					Args:     args,
					KwArgs:   kwargs,
					Span:     expr.GetSpan().Merge(TokenSpan(p.previous())),
				}
			} else {
				expr = &FieldAccessExpr{
					Object: expr,
					Field:  name.Lexeme,
					Span:   expr.GetSpan().Merge(TokenSpan(*name)),
				}
			}
		case p.check(lexer.TOKEN_LBRACKET):
			p.advance()
			index := p.parseExpression()
			p.consume(lexer.TOKEN_RBRACKET, "Expected ']' after index")
			if index == nil {
				return expr
			}
			expr = &IndexExpr{Object: expr, Index: index, Span: expr.GetSpan().Merge(TokenSpan(p.previous()))}
		default:
			return expr
		}
	}
	return expr
}

// parsePrimary parses atoms: literals, identifiers, calls, list literals,
// grouping, old(), has, and object constructions.
func (p *Parser) parsePrimary() ExprNode {
	tok := p.peek()

	switch tok.Type {
	case lexer.TOKEN_INT_LITERAL, lexer.TOKEN_FLOAT_LITERAL, lexer.TOKEN_STRING_LITERAL:
		p.advance()
		return &LiteralExpr{Value: tok.Literal, Span: TokenSpan(tok)}

	case lexer.TOKEN_TRUE:
		p.advance()
		return &LiteralExpr{Value: true, Span: TokenSpan(tok)}
	case lexer.TOKEN_FALSE:
		p.advance()
		return &LiteralExpr{Value: false, Span: TokenSpan(tok)}
	case lexer.TOKEN_NULL:
		p.advance()
		return &LiteralExpr{Value: nil, Span: TokenSpan(tok)}

	case lexer.TOKEN_LPAREN:
		p.advance()
		expr := p.parseExpression()
		p.consume(lexer.TOKEN_RPAREN, "Expected ')' after expression")
		return expr

	case lexer.TOKEN_LBRACKET:
		p.advance()
		list := &ListExpr{Span: TokenSpan(tok)}
		if !p.check(lexer.TOKEN_RBRACKET) {
			for {
				if el := p.parseExpression(); el != nil {
					list.Elements = append(list.Elements, el)
				}
				if !p.match(lexer.TOKEN_COMMA) {
					break
				}
			}
		}
		p.consume(lexer.TOKEN_RBRACKET, "Expected ']' after list literal")
		list.Span = list.Span.Merge(TokenSpan(p.previous()))
		return list

	case lexer.TOKEN_OLD:
		p.advance()
		if !p.inPost {
			p.addErrorAt("old() is only valid inside a postcondition", TokenSpan(tok))
		}
		p.consume(lexer.TOKEN_LPAREN, "Expected '(' after 'old'")
		operand := p.parseExpression()
		p.consume(lexer.TOKEN_RPAREN, "Expected ')' after old() operand")
		if operand == nil {
			return nil
		}
		return &OldExpr{Operand: operand, Span: TokenSpan(tok).Merge(TokenSpan(p.previous()))}

	case lexer.TOKEN_HAS:
		p.advance()
		name, span := p.parseDottedName("has")
		if name == "" {
			return nil
		}
		return &HasExpr{Capability: name, Span: TokenSpan(tok).Merge(span)}

	case lexer.TOKEN_IDENTIFIER:
		p.advance()
		if p.check(lexer.TOKEN_LPAREN) {
			p.advance()
			args, kwargs := p.parseArguments()
			span := TokenSpan(tok).Merge(TokenSpan(p.previous()))
			if isCapitalized(tok.Lexeme) {
				// Capitalized bare calls are object constructions; all
				// arguments must be keyword arguments.
				if len(args) > 0 {
					p.addErrorAt("Object construction takes keyword arguments only", span)
				}
				return &ObjectExpr{TypeName: tok.Lexeme, Fields: kwargs, Span: span}
			}
			return &CallExpr{Callee: tok.Lexeme, Args: args, KwArgs: kwargs, Span: span}
		}
		return &IdentifierExpr{Name: tok.Lexeme, Span: TokenSpan(tok)}

	default:
		p.errorExpected("expression")
		return nil
	}
}

// parseArguments parses a call's argument list after the opening paren.
// Keyword arguments must follow all positional arguments. A keyword
// argument's name may also be a reserved word (body: x).
func (p *Parser) parseArguments() ([]ExprNode, []KwArg) {
	args := []ExprNode{}
	kwargs := []KwArg{}

	if p.match(lexer.TOKEN_RPAREN) {
		return args, kwargs
	}
	for {
		nameType := p.peek().Type
		isName := nameType == lexer.TOKEN_IDENTIFIER ||
			(nameType >= lexer.TOKEN_INTENT && nameType <= lexer.TOKEN_ESCALATION)
		if isName && p.checkNext(lexer.TOKEN_COLON) {
			name := p.advance()
			p.advance() // colon
			value := p.parseExpression()
			if value != nil {
				kwargs = append(kwargs, KwArg{
					Name:  name.Lexeme,
					Value: value,
					Span:  TokenSpan(name).Merge(value.GetSpan()),
				})
			}
		} else {
			arg := p.parseExpression()
			if arg != nil {
				if len(kwargs) > 0 {
					p.addErrorAt("Positional argument after keyword argument", arg.GetSpan())
				}
				args = append(args, arg)
			}
		}
		if !p.match(lexer.TOKEN_COMMA) {
			break
		}
	}
	p.consume(lexer.TOKEN_RPAREN, "Expected ')' after arguments")
	return args, kwargs
}

// parseType parses a type annotation: primitive or named types, generic
// applications like List<Int>, and flow-label annotations like
// String [sensitive].
func (p *Parser) parseType() *TypeNode {
	name := p.consume(lexer.TOKEN_IDENTIFIER, "Expected type name")
	if name == nil {
		return nil
	}

	node := &TypeNode{Name: name.Lexeme, Span: TokenSpan(*name)}
	if IsPrimitiveName(name.Lexeme) {
		node.Kind = TypeKindPrimitive
	} else {
		node.Kind = TypeKindNamed
	}

	// Generic arguments: List<Int>, Map<String, Int>
	if p.check(lexer.TOKEN_LESS) {
		p.advance()
		node.Kind = TypeKindGeneric
		for {
			arg := p.parseType()
			if arg == nil {
				break
			}
			node.Args = append(node.Args, arg)
			if !p.match(lexer.TOKEN_COMMA) {
				break
			}
		}
		p.consume(lexer.TOKEN_GREATER, "Expected '>' after generic arguments")
		node.Span = node.Span.Merge(TokenSpan(p.previous()))
	}

	// Flow labels: String [sensitive, pii]
	if p.check(lexer.TOKEN_LBRACKET) {
		p.advance()
		labels := []string{}
		for {
			label := p.consume(lexer.TOKEN_IDENTIFIER, "Expected flow label")
			if label == nil {
				break
			}
			labels = append(labels, label.Lexeme)
			if !p.match(lexer.TOKEN_COMMA) {
				break
			}
		}
		p.consume(lexer.TOKEN_RBRACKET, "Expected ']' after flow labels")
		return &TypeNode{
			Kind:   TypeKindAnnotated,
			Inner:  node,
			Labels: labels,
			Span:   node.Span.Merge(TokenSpan(p.previous())),
		}
	}

	return node
}
