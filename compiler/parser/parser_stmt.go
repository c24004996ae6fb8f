package parser

import (
	"fmt"

	"github.com/covenant-lang/covenant/compiler/lexer"
)

// parseBlock parses a statement block: either a single inline statement
// after a colon, or NEWLINE INDENT statements DEDENT.
func (p *Parser) parseBlock() []StmtNode {
	stmts := []StmtNode{}

	if !p.check(lexer.TOKEN_NEWLINE) {
		// Inline form: a single statement on the same line.
		if stmt := p.parseStatement(); stmt != nil {
			stmts = append(stmts, stmt)
		}
		return stmts
	}

	p.advance() // NEWLINE
	if p.consume(lexer.TOKEN_INDENT, "Expected indented block") == nil {
		return stmts
	}
	for !p.isAtEnd() && !p.check(lexer.TOKEN_DEDENT) {
		if p.match(lexer.TOKEN_NEWLINE) {
			continue
		}
		if stmt := p.parseStatement(); stmt != nil {
			stmts = append(stmts, stmt)
		}
	}
	p.consume(lexer.TOKEN_DEDENT, "Expected end of block")
	return stmts
}

// parseStatement parses a single statement
func (p *Parser) parseStatement() StmtNode {
	switch p.peek().Type {
	case lexer.TOKEN_IF:
		return p.parseIf()
	case lexer.TOKEN_WHILE:
		return p.parseWhile()
	case lexer.TOKEN_FOR:
		return p.parseFor()
	case lexer.TOKEN_RETURN:
		return p.parseReturn()
	case lexer.TOKEN_EMIT:
		return p.parseEmit()
	case lexer.TOKEN_PARALLEL:
		return p.parseParallel()
	default:
		return p.parseSimpleStatement()
	}
}

// parseIf parses `if cond: block` with an optional `else:` or `else if` chain
func (p *Parser) parseIf() StmtNode {
	start := p.advance() // consume 'if'
	stmt := &IfStmt{Span: TokenSpan(start)}

	stmt.Cond = p.parseExpression()
	p.consume(lexer.TOKEN_COLON, "Expected ':' after if condition")
	stmt.Then = p.parseBlock()

	// An else clause sits at the same indentation as the if.
	if p.check(lexer.TOKEN_ELSE) {
		p.advance()
		if p.check(lexer.TOKEN_IF) {
			if nested := p.parseIf(); nested != nil {
				stmt.Else = []StmtNode{nested}
			}
		} else {
			p.consume(lexer.TOKEN_COLON, "Expected ':' after 'else'")
			stmt.Else = p.parseBlock()
		}
	}
	stmt.Span = stmt.Span.Merge(TokenSpan(p.previous()))
	return stmt
}

// parseWhile parses `while cond: block`
func (p *Parser) parseWhile() StmtNode {
	start := p.advance()
	stmt := &WhileStmt{Span: TokenSpan(start)}
	stmt.Cond = p.parseExpression()
	p.consume(lexer.TOKEN_COLON, "Expected ':' after while condition")
	stmt.Body = p.parseBlock()
	stmt.Span = stmt.Span.Merge(TokenSpan(p.previous()))
	return stmt
}

// parseFor parses `for name in expr: block`
func (p *Parser) parseFor() StmtNode {
	start := p.advance()
	stmt := &ForStmt{Span: TokenSpan(start)}
	name := p.consume(lexer.TOKEN_IDENTIFIER, "Expected loop variable name")
	if name != nil {
		stmt.Var = name.Lexeme
	}
	p.consume(lexer.TOKEN_IN, "Expected 'in' after loop variable")
	stmt.Iter = p.parseExpression()
	p.consume(lexer.TOKEN_COLON, "Expected ':' after for iterable")
	stmt.Body = p.parseBlock()
	stmt.Span = stmt.Span.Merge(TokenSpan(p.previous()))
	return stmt
}

// parseReturn parses `return [expr]`
func (p *Parser) parseReturn() StmtNode {
	start := p.advance()
	stmt := &ReturnStmt{Span: TokenSpan(start)}
	if !p.check(lexer.TOKEN_NEWLINE) && !p.check(lexer.TOKEN_DEDENT) && !p.check(lexer.TOKEN_EOF) {
		stmt.Value = p.parseExpression()
		if stmt.Value != nil {
			stmt.Span = stmt.Span.Merge(stmt.Value.GetSpan())
		}
	}
	p.expectEndOfLine()
	return stmt
}

// parseEmit parses `emit EventName(args)`
func (p *Parser) parseEmit() StmtNode {
	start := p.advance()
	stmt := &EmitStmt{Span: TokenSpan(start)}
	name := p.consume(lexer.TOKEN_IDENTIFIER, "Expected event name after 'emit'")
	if name == nil {
		p.synchronize()
		return nil
	}
	stmt.Event = name.Lexeme
	if p.match(lexer.TOKEN_LPAREN) {
		if !p.check(lexer.TOKEN_RPAREN) {
			for {
				if arg := p.parseExpression(); arg != nil {
					stmt.Args = append(stmt.Args, arg)
				}
				if !p.match(lexer.TOKEN_COMMA) {
					break
				}
			}
		}
		p.consume(lexer.TOKEN_RPAREN, "Expected ')' after emit arguments")
	}
	stmt.Span = stmt.Span.Merge(TokenSpan(p.previous()))
	p.expectEndOfLine()
	return stmt
}

// parseParallel parses a parallel block. Only assignment statements are
// allowed inside; anything else is a parse error.
func (p *Parser) parseParallel() StmtNode {
	start := p.advance()
	stmt := &ParallelStmt{Span: TokenSpan(start)}
	p.consume(lexer.TOKEN_COLON, "Expected ':' after 'parallel'")
	body := p.parseBlock()
	for _, s := range body {
		if _, ok := s.(*AssignStmt); !ok {
			p.addErrorAt("parallel blocks may contain only assignment statements", s.GetSpan())
		}
	}
	stmt.Body = body
	stmt.Span = stmt.Span.Merge(TokenSpan(p.previous()))
	return stmt
}

// parseSimpleStatement parses an assignment or expression statement
func (p *Parser) parseSimpleStatement() StmtNode {
	expr := p.parseExpression()
	if expr == nil {
		p.synchronize()
		return nil
	}

	if p.match(lexer.TOKEN_EQUAL) {
		switch expr.(type) {
		case *IdentifierExpr, *FieldAccessExpr:
		default:
			p.addErrorAt("Invalid assignment target: expected a name or dotted path", expr.GetSpan())
		}
		value := p.parseExpression()
		span := expr.GetSpan()
		if value != nil {
			span = span.Merge(value.GetSpan())
		}
		p.expectEndOfLine()
		return &AssignStmt{Target: expr, Value: value, Span: span}
	}

	p.expectEndOfLine()
	return &ExprStmt{Expr: expr, Span: expr.GetSpan()}
}

// errorExpected is a helper for expression-level errors
func (p *Parser) errorExpected(what string) {
	p.addErrorAt(fmt.Sprintf("Expected %s, found %q", what, p.peek().Lexeme), TokenSpan(p.peek()))
}
