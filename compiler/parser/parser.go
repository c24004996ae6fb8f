package parser

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/covenant-lang/covenant/compiler/lexer"
)

// MaxExprDepth is the maximum expression nesting depth before the parser
// reports an error.
const MaxExprDepth = 256

// ParseError represents a syntax error
type ParseError struct {
	Message string
	Span    Span
}

// Error implements the error interface
func (e ParseError) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s", e.Span.File, e.Span.Line, e.Span.Column, e.Message)
}

// Parser transforms a token stream into an abstract syntax tree
type Parser struct {
	tokens    []lexer.Token
	current   int
	errors    []ParseError
	panicMode bool
	exprDepth int
	inPost    bool // old() and result are only legal here
}

// New creates a new Parser from a token stream
func New(tokens []lexer.Token) *Parser {
	return &Parser{
		tokens: tokens,
		errors: []ParseError{},
	}
}

// Parse parses the token stream and returns the AST and any errors
func (p *Parser) Parse() (*File, []ParseError) {
	file := p.parseFile()
	return file, p.errors
}

// parseFile parses the mandatory header followed by declarations
func (p *Parser) parseFile() *File {
	file := &File{Span: TokenSpan(p.peek())}
	p.parseHeader(file)

	for !p.isAtEnd() {
		if p.match(lexer.TOKEN_NEWLINE) {
			continue
		}
		if decl := p.parseDecl(); decl != nil {
			file.Decls = append(file.Decls, decl)
		}
	}

	if len(p.tokens) > 0 {
		file.Span = file.Span.Merge(TokenSpan(p.tokens[len(p.tokens)-1]))
	}
	return file
}

// parseHeader parses the intent/scope/risk fields (any order) plus the
// optional requires list and use imports. All three required fields must
// appear before the first declaration.
func (p *Parser) parseHeader(file *File) {
	seenIntent, seenScope, seenRisk := false, false, false

	for !p.isAtEnd() {
		if p.match(lexer.TOKEN_NEWLINE) {
			continue
		}
		switch {
		case p.check(lexer.TOKEN_INTENT):
			tok := p.advance()
			str := p.consume(lexer.TOKEN_STRING_LITERAL, "Expected string literal after 'intent'")
			if str != nil {
				file.Intent, _ = str.Literal.(string)
				file.IntentSpan = TokenSpan(tok).Merge(TokenSpan(*str))
			}
			seenIntent = true
			p.expectEndOfLine()

		case p.check(lexer.TOKEN_SCOPE):
			tok := p.advance()
			name, span := p.parseDottedName("scope")
			file.Scope = name
			file.ScopeSpan = TokenSpan(tok).Merge(span)
			p.validateScope(name, file.ScopeSpan)
			seenScope = true
			p.expectEndOfLine()

		case p.check(lexer.TOKEN_RISK):
			tok := p.advance()
			ident := p.consume(lexer.TOKEN_IDENTIFIER, "Expected risk level after 'risk'")
			if ident != nil {
				file.Risk = ident.Lexeme
				file.RiskSpan = TokenSpan(tok).Merge(TokenSpan(*ident))
				if !ValidRisk(file.Risk) {
					p.addErrorAt(fmt.Sprintf("Invalid risk level %q: expected low, medium, high, or critical", file.Risk), TokenSpan(*ident))
				}
			}
			seenRisk = true
			p.expectEndOfLine()

		case p.check(lexer.TOKEN_REQUIRES):
			p.advance()
			file.Requires = append(file.Requires, p.parseNameList("requires")...)
			p.expectEndOfLine()

		case p.check(lexer.TOKEN_USE):
			p.advance()
			use := &UseDecl{Span: TokenSpan(p.previous())}
			mod := p.consume(lexer.TOKEN_IDENTIFIER, "Expected module name after 'use'")
			if mod != nil {
				use.Module = mod.Lexeme
				use.Span = use.Span.Merge(TokenSpan(*mod))
			}
			if p.match(lexer.TOKEN_AS) {
				alias := p.consume(lexer.TOKEN_IDENTIFIER, "Expected alias after 'as'")
				if alias != nil {
					use.Alias = alias.Lexeme
					use.Span = use.Span.Merge(TokenSpan(*alias))
				}
			}
			file.Uses = append(file.Uses, use)
			p.expectEndOfLine()

		default:
			// First non-header token: the header is finished.
			p.requireHeader(seenIntent, seenScope, seenRisk)
			return
		}
	}
	p.requireHeader(seenIntent, seenScope, seenRisk)
}

// requireHeader reports the missing mandatory header fields
func (p *Parser) requireHeader(seenIntent, seenScope, seenRisk bool) {
	if seenIntent && seenScope && seenRisk {
		return
	}
	missing := []string{}
	if !seenIntent {
		missing = append(missing, "intent")
	}
	if !seenScope {
		missing = append(missing, "scope")
	}
	if !seenRisk {
		missing = append(missing, "risk")
	}
	p.addErrorAt("File header is missing required field(s): "+strings.Join(missing, ", "), TokenSpan(p.peek()))
}

// validateScope enforces >= 2 lowercase dotted segments
func (p *Parser) validateScope(scope string, span Span) {
	segments := strings.Split(scope, ".")
	if len(segments) < 2 {
		p.addErrorAt("scope must have at least 2 dotted segments", span)
		return
	}
	for _, seg := range segments {
		if seg == "" || strings.ToLower(seg) != seg {
			p.addErrorAt("scope segments must be lowercase", span)
			return
		}
	}
}

// parseDecl parses a top-level declaration
func (p *Parser) parseDecl() DeclNode {
	switch {
	case p.check(lexer.TOKEN_CONTRACT), p.check(lexer.TOKEN_PURE), p.check(lexer.TOKEN_ASYNC):
		return p.parseContract()
	case p.check(lexer.TOKEN_TYPE):
		return p.parseTypeDecl()
	case p.check(lexer.TOKEN_SHARED):
		return p.parseSharedDecl()
	default:
		p.addErrorAt(fmt.Sprintf("Unexpected token %q: expected a contract, type, or shared declaration", p.peek().Lexeme), TokenSpan(p.peek()))
		p.synchronize()
		return nil
	}
}

// parseContract parses a contract declaration, either expression-bodied or
// with an indented section block.
func (p *Parser) parseContract() DeclNode {
	start := p.peek()
	contract := &ContractDecl{Span: TokenSpan(start)}

	for {
		if p.match(lexer.TOKEN_PURE) {
			contract.Pure = true
			continue
		}
		if p.match(lexer.TOKEN_ASYNC) {
			contract.Async = true
			continue
		}
		break
	}

	if p.consume(lexer.TOKEN_CONTRACT, "Expected 'contract'") == nil {
		p.synchronize()
		return nil
	}

	name := p.consume(lexer.TOKEN_IDENTIFIER, "Expected contract name")
	if name == nil {
		p.synchronize()
		return nil
	}
	contract.Name = name.Lexeme

	if p.consume(lexer.TOKEN_LPAREN, "Expected '(' after contract name") == nil {
		p.synchronize()
		return nil
	}
	contract.Params = p.parseParams()

	if p.match(lexer.TOKEN_ARROW) {
		contract.ReturnType = p.parseType()
	}

	if p.match(lexer.TOKEN_EQUAL) {
		contract.ExprBody = p.parseExpression()
		contract.Span = contract.Span.Merge(TokenSpan(p.previous()))
		p.expectEndOfLine()
		return contract
	}

	p.expectEndOfLine()
	if p.consume(lexer.TOKEN_INDENT, "Expected indented contract block") == nil {
		p.synchronize()
		return contract
	}
	p.parseContractSections(contract)
	contract.Span = contract.Span.Merge(TokenSpan(p.previous()))
	return contract
}

// parseParams parses the parameter list up to the closing paren
func (p *Parser) parseParams() []*Param {
	params := []*Param{}
	if p.match(lexer.TOKEN_RPAREN) {
		return params
	}
	for {
		name := p.consume(lexer.TOKEN_IDENTIFIER, "Expected parameter name")
		if name == nil {
			break
		}
		param := &Param{Name: name.Lexeme, Span: TokenSpan(*name)}
		if p.match(lexer.TOKEN_COLON) {
			param.Type = p.parseType()
			if param.Type != nil {
				param.Span = param.Span.Merge(param.Type.Span)
			}
		}
		params = append(params, param)
		if !p.match(lexer.TOKEN_COMMA) {
			break
		}
	}
	p.consume(lexer.TOKEN_RPAREN, "Expected ')' after parameters")
	return params
}

// parseContractSections parses the section set until the block dedents
func (p *Parser) parseContractSections(contract *ContractDecl) {
	for !p.isAtEnd() && !p.check(lexer.TOKEN_DEDENT) {
		if p.match(lexer.TOKEN_NEWLINE) {
			continue
		}
		tok := p.peek()
		switch tok.Type {
		case lexer.TOKEN_PRECONDITION:
			p.advance()
			if contract.Pre != nil {
				p.addErrorAt("Duplicate precondition section", TokenSpan(tok))
			}
			p.consume(lexer.TOKEN_COLON, "Expected ':' after 'precondition'")
			contract.Pre = p.parseSectionExpr()
			contract.PreSpan = TokenSpan(tok)

		case lexer.TOKEN_POSTCONDITION:
			p.advance()
			if contract.Post != nil {
				p.addErrorAt("Duplicate postcondition section", TokenSpan(tok))
			}
			p.consume(lexer.TOKEN_COLON, "Expected ':' after 'postcondition'")
			p.inPost = true
			contract.Post = p.parseSectionExpr()
			p.inPost = false
			contract.PostSpan = TokenSpan(tok)

		case lexer.TOKEN_EFFECTS:
			p.advance()
			if contract.Effects != nil {
				p.addErrorAt("Duplicate effects section", TokenSpan(tok))
			}
			p.consume(lexer.TOKEN_COLON, "Expected ':' after 'effects'")
			contract.Effects = p.parseEffects(TokenSpan(tok))

		case lexer.TOKEN_PERMISSIONS:
			p.advance()
			if contract.Permissions != nil {
				p.addErrorAt("Duplicate permissions section", TokenSpan(tok))
			}
			p.consume(lexer.TOKEN_COLON, "Expected ':' after 'permissions'")
			contract.Permissions = p.parsePermissions(TokenSpan(tok))

		case lexer.TOKEN_BODY:
			p.advance()
			if contract.HasBody {
				p.addErrorAt("Duplicate body section", TokenSpan(tok))
			}
			p.consume(lexer.TOKEN_COLON, "Expected ':' after 'body'")
			contract.Body = p.parseBlock()
			contract.HasBody = true
			contract.BodySpan = TokenSpan(tok)

		case lexer.TOKEN_ON_FAILURE:
			p.advance()
			if contract.HasOnFailure {
				p.addErrorAt("Duplicate on_failure section", TokenSpan(tok))
			}
			p.consume(lexer.TOKEN_COLON, "Expected ':' after 'on_failure'")
			contract.OnFailure = p.parseBlock()
			contract.HasOnFailure = true
			contract.OnFailureSpan = TokenSpan(tok)

		default:
			p.addErrorAt(fmt.Sprintf("Unexpected token %q in contract block", tok.Lexeme), TokenSpan(tok))
			p.synchronize()
			return
		}
	}
	p.match(lexer.TOKEN_DEDENT)
}

// parseSectionExpr parses a section whose content is a single expression,
// written inline after the colon or as an indented block.
func (p *Parser) parseSectionExpr() ExprNode {
	if p.match(lexer.TOKEN_NEWLINE) {
		if p.consume(lexer.TOKEN_INDENT, "Expected indented expression") == nil {
			return nil
		}
		expr := p.parseExpression()
		p.expectEndOfLine()
		for p.match(lexer.TOKEN_NEWLINE) {
		}
		p.consume(lexer.TOKEN_DEDENT, "Expected end of section block")
		return expr
	}
	expr := p.parseExpression()
	p.expectEndOfLine()
	return expr
}

// parseEffects parses the effects section clauses
func (p *Parser) parseEffects(span Span) *EffectsNode {
	effects := &EffectsNode{Span: span}
	p.expectEndOfLine()
	if p.consume(lexer.TOKEN_INDENT, "Expected indented effects block") == nil {
		return effects
	}
	for !p.isAtEnd() && !p.check(lexer.TOKEN_DEDENT) {
		if p.match(lexer.TOKEN_NEWLINE) {
			continue
		}
		switch {
		case p.match(lexer.TOKEN_MODIFIES):
			effects.Modifies = append(effects.Modifies, p.parseNameList("modifies")...)
			p.expectEndOfLine()
		case p.match(lexer.TOKEN_READS):
			effects.Reads = append(effects.Reads, p.parseNameList("reads")...)
			p.expectEndOfLine()
		case p.match(lexer.TOKEN_EMITS):
			effects.Emits = append(effects.Emits, p.parseNameList("emits")...)
			p.expectEndOfLine()
		case p.match(lexer.TOKEN_TOUCHES_NOTHING_ELSE):
			effects.TouchesNothingElse = true
			p.expectEndOfLine()
		default:
			p.addErrorAt(fmt.Sprintf("Unexpected token %q in effects block", p.peek().Lexeme), TokenSpan(p.peek()))
			p.synchronize()
			return effects
		}
	}
	p.consume(lexer.TOKEN_DEDENT, "Expected end of effects block")
	return effects
}

// parsePermissions parses the permissions section clauses
func (p *Parser) parsePermissions(span Span) *PermissionsNode {
	perms := &PermissionsNode{Span: span}
	p.expectEndOfLine()
	if p.consume(lexer.TOKEN_INDENT, "Expected indented permissions block") == nil {
		return perms
	}
	for !p.isAtEnd() && !p.check(lexer.TOKEN_DEDENT) {
		if p.match(lexer.TOKEN_NEWLINE) {
			continue
		}
		switch {
		case p.match(lexer.TOKEN_GRANTS):
			perms.Grants = append(perms.Grants, p.parseNameList("grants")...)
			p.expectEndOfLine()
		case p.match(lexer.TOKEN_DENIES):
			perms.Denies = append(perms.Denies, p.parseNameList("denies")...)
			p.expectEndOfLine()
		case p.match(lexer.TOKEN_ESCALATION):
			policy := p.consume(lexer.TOKEN_IDENTIFIER, "Expected escalation policy name")
			if policy != nil {
				perms.Escalation = policy.Lexeme
			}
			p.expectEndOfLine()
		default:
			p.addErrorAt(fmt.Sprintf("Unexpected token %q in permissions block", p.peek().Lexeme), TokenSpan(p.peek()))
			p.synchronize()
			return perms
		}
	}
	p.consume(lexer.TOKEN_DEDENT, "Expected end of permissions block")
	return perms
}

// parseTypeDecl parses a nominal type declaration
func (p *Parser) parseTypeDecl() DeclNode {
	start := p.advance() // consume 'type'
	decl := &TypeDecl{Span: TokenSpan(start)}

	name := p.consume(lexer.TOKEN_IDENTIFIER, "Expected type name")
	if name == nil {
		p.synchronize()
		return nil
	}
	decl.Name = name.Lexeme

	p.consume(lexer.TOKEN_COLON, "Expected ':' after type name")
	p.expectEndOfLine()
	if p.consume(lexer.TOKEN_INDENT, "Expected indented field list") == nil {
		return decl
	}

	for !p.isAtEnd() && !p.check(lexer.TOKEN_DEDENT) {
		if p.match(lexer.TOKEN_NEWLINE) {
			continue
		}
		fieldName := p.consume(lexer.TOKEN_IDENTIFIER, "Expected field name")
		if fieldName == nil {
			p.synchronize()
			break
		}
		field := &TypeField{Name: fieldName.Lexeme, Span: TokenSpan(*fieldName)}
		p.consume(lexer.TOKEN_COLON, "Expected ':' after field name")
		field.Type = p.parseType()
		if field.Type != nil {
			field.Span = field.Span.Merge(field.Type.Span)
		}
		decl.Fields = append(decl.Fields, field)
		p.expectEndOfLine()
	}
	p.consume(lexer.TOKEN_DEDENT, "Expected end of type block")
	decl.Span = decl.Span.Merge(TokenSpan(p.previous()))
	return decl
}

// parseSharedDecl parses a shared state declaration with optional
// access/isolation/audit attributes in an indented block.
func (p *Parser) parseSharedDecl() DeclNode {
	start := p.advance() // consume 'shared'
	decl := &SharedDecl{Span: TokenSpan(start)}

	name := p.consume(lexer.TOKEN_IDENTIFIER, "Expected shared state name")
	if name == nil {
		p.synchronize()
		return nil
	}
	decl.Name = name.Lexeme

	p.consume(lexer.TOKEN_COLON, "Expected ':' after shared state name")
	decl.Type = p.parseType()
	decl.Span = decl.Span.Merge(TokenSpan(p.previous()))

	// Attributes are an optional indented block of `attr: value` lines.
	if p.check(lexer.TOKEN_NEWLINE) && p.checkNext(lexer.TOKEN_INDENT) {
		p.advance()
		p.advance()
		for !p.isAtEnd() && !p.check(lexer.TOKEN_DEDENT) {
			if p.match(lexer.TOKEN_NEWLINE) {
				continue
			}
			attr := p.consume(lexer.TOKEN_IDENTIFIER, "Expected attribute name")
			if attr == nil {
				p.synchronize()
				break
			}
			p.consume(lexer.TOKEN_COLON, "Expected ':' after attribute name")
			value := p.consume(lexer.TOKEN_IDENTIFIER, "Expected attribute value")
			if value == nil {
				p.synchronize()
				break
			}
			switch attr.Lexeme {
			case "access":
				decl.Access = value.Lexeme
			case "isolation":
				decl.Isolation = value.Lexeme
			case "audit":
				decl.Audit = value.Lexeme
			default:
				p.addErrorAt(fmt.Sprintf("Unknown shared state attribute %q", attr.Lexeme), TokenSpan(*attr))
			}
			p.expectEndOfLine()
		}
		p.consume(lexer.TOKEN_DEDENT, "Expected end of shared state block")
	} else {
		p.expectEndOfLine()
	}
	return decl
}

// parseNameList parses `[name, dotted.name, ...]`
func (p *Parser) parseNameList(clause string) []NameRef {
	refs := []NameRef{}
	if p.consume(lexer.TOKEN_LBRACKET, "Expected '[' after '"+clause+"'") == nil {
		return refs
	}
	if p.match(lexer.TOKEN_RBRACKET) {
		return refs
	}
	for {
		name, span := p.parseDottedName(clause)
		if name == "" {
			break
		}
		refs = append(refs, NameRef{Name: name, Span: span})
		if !p.match(lexer.TOKEN_COMMA) {
			break
		}
	}
	p.consume(lexer.TOKEN_RBRACKET, "Expected ']' after "+clause+" list")
	return refs
}

// parseDottedName parses IDENTIFIER (DOT segment)*, where a segment after
// a dot is an IDENTIFIER or a reserved word (app.parallel, app.async)
func (p *Parser) parseDottedName(context string) (string, Span) {
	first := p.consume(lexer.TOKEN_IDENTIFIER, "Expected name in "+context)
	if first == nil {
		return "", TokenSpan(p.peek())
	}
	name := first.Lexeme
	span := TokenSpan(*first)
	segmentNext := func() bool {
		if p.current+1 >= len(p.tokens) {
			return false
		}
		t := p.tokens[p.current+1].Type
		return t == lexer.TOKEN_IDENTIFIER || (t >= lexer.TOKEN_INTENT && t <= lexer.TOKEN_ESCALATION)
	}
	for p.check(lexer.TOKEN_DOT) && segmentNext() {
		p.advance()
		seg := p.advance()
		name += "." + seg.Lexeme
		span = span.Merge(TokenSpan(seg))
	}
	return name, span
}

// Helper methods for token manipulation

// isAtEnd checks if we're at the end of the token stream
func (p *Parser) isAtEnd() bool {
	if p.current >= len(p.tokens) {
		return true
	}
	return p.tokens[p.current].Type == lexer.TOKEN_EOF
}

// peek returns the current token without consuming it
func (p *Parser) peek() lexer.Token {
	if p.current >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[p.current]
}

// previous returns the previous token
func (p *Parser) previous() lexer.Token {
	if p.current > 0 {
		return p.tokens[p.current-1]
	}
	return p.tokens[0]
}

// advance consumes and returns the current token
func (p *Parser) advance() lexer.Token {
	if !p.isAtEnd() {
		p.current++
	}
	return p.previous()
}

// check checks if the current token is of the given type
func (p *Parser) check(tokenType lexer.TokenType) bool {
	if p.isAtEnd() {
		return tokenType == lexer.TOKEN_EOF
	}
	return p.peek().Type == tokenType
}

// checkNext checks the type of the token after the current one
func (p *Parser) checkNext(tokenType lexer.TokenType) bool {
	if p.current+1 >= len(p.tokens) {
		return false
	}
	return p.tokens[p.current+1].Type == tokenType
}

// match checks if the current token matches any of the given types.
// If it matches, consumes the token and returns true.
func (p *Parser) match(types ...lexer.TokenType) bool {
	for _, tokenType := range types {
		if p.check(tokenType) {
			p.advance()
			return true
		}
	}
	return false
}

// consume expects a token of the given type, reporting an error otherwise
func (p *Parser) consume(tokenType lexer.TokenType, message string) *lexer.Token {
	if p.check(tokenType) {
		tok := p.advance()
		p.panicMode = false
		return &tok
	}
	p.addErrorAt(message+", found "+p.peek().Type.String(), TokenSpan(p.peek()))
	return nil
}

// expectEndOfLine consumes the NEWLINE terminating a logical line
func (p *Parser) expectEndOfLine() {
	if p.check(lexer.TOKEN_EOF) || p.check(lexer.TOKEN_DEDENT) {
		return
	}
	if !p.match(lexer.TOKEN_NEWLINE) {
		p.addErrorAt("Expected end of line, found "+p.peek().Type.String(), TokenSpan(p.peek()))
		p.synchronize()
	}
}

// addErrorAt records a parse error unless the parser is recovering
func (p *Parser) addErrorAt(message string, span Span) {
	if p.panicMode {
		return
	}
	p.panicMode = true
	p.errors = append(p.errors, ParseError{Message: message, Span: span})
}

// synchronize skips tokens until a likely statement boundary
func (p *Parser) synchronize() {
	p.panicMode = false
	for !p.isAtEnd() {
		if p.previous().Type == lexer.TOKEN_NEWLINE {
			return
		}
		switch p.peek().Type {
		case lexer.TOKEN_CONTRACT, lexer.TOKEN_TYPE, lexer.TOKEN_SHARED,
			lexer.TOKEN_DEDENT, lexer.TOKEN_BODY, lexer.TOKEN_PRECONDITION,
			lexer.TOKEN_POSTCONDITION, lexer.TOKEN_EFFECTS, lexer.TOKEN_PERMISSIONS,
			lexer.TOKEN_ON_FAILURE:
			return
		}
		p.advance()
	}
}

// isCapitalized reports whether a name starts with an uppercase letter,
// which makes a bare call an object construction.
func isCapitalized(name string) bool {
	if name == "" {
		return false
	}
	return unicode.IsUpper(rune(name[0]))
}
