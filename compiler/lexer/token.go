package lexer

import "fmt"

// TokenType represents the type of token in the Covenant language
type TokenType int

const (
	// Special tokens
	TOKEN_EOF TokenType = iota
	TOKEN_ERROR
	TOKEN_NEWLINE
	TOKEN_INDENT
	TOKEN_DEDENT

	// Keywords - File header
	TOKEN_INTENT
	TOKEN_SCOPE
	TOKEN_RISK
	TOKEN_REQUIRES
	TOKEN_USE
	TOKEN_AS

	// Keywords - Declarations
	TOKEN_TYPE
	TOKEN_SHARED
	TOKEN_CONTRACT
	TOKEN_PURE
	TOKEN_ASYNC

	// Keywords - Contract sections
	TOKEN_PRECONDITION
	TOKEN_POSTCONDITION
	TOKEN_EFFECTS
	TOKEN_PERMISSIONS
	TOKEN_BODY
	TOKEN_ON_FAILURE

	// Keywords - Control flow
	TOKEN_IF
	TOKEN_ELSE
	TOKEN_WHILE
	TOKEN_FOR
	TOKEN_IN
	TOKEN_RETURN
	TOKEN_EMIT
	TOKEN_AWAIT
	TOKEN_PARALLEL

	// Keywords - Specification expressions
	TOKEN_OLD
	TOKEN_HAS
	TOKEN_AND
	TOKEN_OR
	TOKEN_NOT

	// Keywords - Literals
	TOKEN_TRUE
	TOKEN_FALSE
	TOKEN_NULL

	// Keywords - Effects clauses
	TOKEN_MODIFIES
	TOKEN_READS
	TOKEN_EMITS
	TOKEN_TOUCHES_NOTHING_ELSE

	// Keywords - Permissions clauses
	TOKEN_GRANTS
	TOKEN_DENIES
	TOKEN_ESCALATION

	// Literals
	TOKEN_IDENTIFIER
	TOKEN_INT_LITERAL
	TOKEN_FLOAT_LITERAL
	TOKEN_STRING_LITERAL

	// Operators - Single character
	TOKEN_PLUS    // +
	TOKEN_MINUS   // -
	TOKEN_STAR    // *
	TOKEN_SLASH   // /
	TOKEN_PERCENT // %
	TOKEN_LESS    // <
	TOKEN_GREATER // >
	TOKEN_EQUAL   // =
	TOKEN_COLON   // :
	TOKEN_DOT     // .
	TOKEN_COMMA   // ,

	// Operators - Multi-character
	TOKEN_ARROW         // ->
	TOKEN_EQUAL_EQUAL   // ==
	TOKEN_BANG_EQUAL    // !=
	TOKEN_LESS_EQUAL    // <=
	TOKEN_GREATER_EQUAL // >=

	// Delimiters
	TOKEN_LPAREN   // (
	TOKEN_RPAREN   // )
	TOKEN_LBRACKET // [
	TOKEN_RBRACKET // ]
)

var tokenNames = map[TokenType]string{
	TOKEN_EOF:                  "EOF",
	TOKEN_ERROR:                "ERROR",
	TOKEN_NEWLINE:              "NEWLINE",
	TOKEN_INDENT:               "INDENT",
	TOKEN_DEDENT:               "DEDENT",
	TOKEN_INTENT:               "INTENT",
	TOKEN_SCOPE:                "SCOPE",
	TOKEN_RISK:                 "RISK",
	TOKEN_REQUIRES:             "REQUIRES",
	TOKEN_USE:                  "USE",
	TOKEN_AS:                   "AS",
	TOKEN_TYPE:                 "TYPE",
	TOKEN_SHARED:               "SHARED",
	TOKEN_CONTRACT:             "CONTRACT",
	TOKEN_PURE:                 "PURE",
	TOKEN_ASYNC:                "ASYNC",
	TOKEN_PRECONDITION:         "PRECONDITION",
	TOKEN_POSTCONDITION:        "POSTCONDITION",
	TOKEN_EFFECTS:              "EFFECTS",
	TOKEN_PERMISSIONS:          "PERMISSIONS",
	TOKEN_BODY:                 "BODY",
	TOKEN_ON_FAILURE:           "ON_FAILURE",
	TOKEN_IF:                   "IF",
	TOKEN_ELSE:                 "ELSE",
	TOKEN_WHILE:                "WHILE",
	TOKEN_FOR:                  "FOR",
	TOKEN_IN:                   "IN",
	TOKEN_RETURN:               "RETURN",
	TOKEN_EMIT:                 "EMIT",
	TOKEN_AWAIT:                "AWAIT",
	TOKEN_PARALLEL:             "PARALLEL",
	TOKEN_OLD:                  "OLD",
	TOKEN_HAS:                  "HAS",
	TOKEN_AND:                  "AND",
	TOKEN_OR:                   "OR",
	TOKEN_NOT:                  "NOT",
	TOKEN_TRUE:                 "TRUE",
	TOKEN_FALSE:                "FALSE",
	TOKEN_NULL:                 "NULL",
	TOKEN_MODIFIES:             "MODIFIES",
	TOKEN_READS:                "READS",
	TOKEN_EMITS:                "EMITS",
	TOKEN_TOUCHES_NOTHING_ELSE: "TOUCHES_NOTHING_ELSE",
	TOKEN_GRANTS:               "GRANTS",
	TOKEN_DENIES:               "DENIES",
	TOKEN_ESCALATION:           "ESCALATION",
	TOKEN_IDENTIFIER:           "IDENTIFIER",
	TOKEN_INT_LITERAL:          "INT_LITERAL",
	TOKEN_FLOAT_LITERAL:        "FLOAT_LITERAL",
	TOKEN_STRING_LITERAL:       "STRING_LITERAL",
	TOKEN_PLUS:                 "PLUS",
	TOKEN_MINUS:                "MINUS",
	TOKEN_STAR:                 "STAR",
	TOKEN_SLASH:                "SLASH",
	TOKEN_PERCENT:              "PERCENT",
	TOKEN_LESS:                 "LESS",
	TOKEN_GREATER:              "GREATER",
	TOKEN_EQUAL:                "EQUAL",
	TOKEN_COLON:                "COLON",
	TOKEN_DOT:                  "DOT",
	TOKEN_COMMA:                "COMMA",
	TOKEN_ARROW:                "ARROW",
	TOKEN_EQUAL_EQUAL:          "EQUAL_EQUAL",
	TOKEN_BANG_EQUAL:           "BANG_EQUAL",
	TOKEN_LESS_EQUAL:           "LESS_EQUAL",
	TOKEN_GREATER_EQUAL:        "GREATER_EQUAL",
	TOKEN_LPAREN:               "LPAREN",
	TOKEN_RPAREN:               "RPAREN",
	TOKEN_LBRACKET:             "LBRACKET",
	TOKEN_RBRACKET:             "RBRACKET",
}

// Token represents a single lexical token
type Token struct {
	Type    TokenType
	Lexeme  string
	Literal interface{} // For literals (numbers, strings)
	Line    int
	Column  int
	File    string // Source file path
	Start   int    // Rune offset (not byte offset) in source where token starts
	End     int    // Rune offset (not byte offset) where token ends (exclusive)
}

// String returns a string representation of the token type
func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return "UNKNOWN"
}

// Symbol returns the surface syntax of an operator token type
func (t TokenType) Symbol() string {
	switch t {
	case TOKEN_PLUS:
		return "+"
	case TOKEN_MINUS:
		return "-"
	case TOKEN_STAR:
		return "*"
	case TOKEN_SLASH:
		return "/"
	case TOKEN_PERCENT:
		return "%"
	case TOKEN_LESS:
		return "<"
	case TOKEN_GREATER:
		return ">"
	case TOKEN_EQUAL:
		return "="
	case TOKEN_ARROW:
		return "->"
	case TOKEN_EQUAL_EQUAL:
		return "=="
	case TOKEN_BANG_EQUAL:
		return "!="
	case TOKEN_LESS_EQUAL:
		return "<="
	case TOKEN_GREATER_EQUAL:
		return ">="
	case TOKEN_AND:
		return "and"
	case TOKEN_OR:
		return "or"
	case TOKEN_NOT:
		return "not"
	default:
		return t.String()
	}
}

// String returns a string representation of the token
func (t Token) String() string {
	if t.Literal != nil {
		return fmt.Sprintf("%s(%v) [%d:%d]", t.Type, t.Literal, t.Line, t.Column)
	}
	return fmt.Sprintf("%s(%s) [%d:%d]", t.Type, t.Lexeme, t.Line, t.Column)
}

// LexError represents a lexical analysis error
type LexError struct {
	Message string
	Line    int
	Column  int
	File    string
}

// Error implements the error interface
func (e LexError) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s", e.File, e.Line, e.Column, e.Message)
}
