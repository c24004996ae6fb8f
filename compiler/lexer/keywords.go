package lexer

// keywords maps keyword strings to their token types for O(1) lookup
var keywords = map[string]TokenType{
	// File header
	"intent":   TOKEN_INTENT,
	"scope":    TOKEN_SCOPE,
	"risk":     TOKEN_RISK,
	"requires": TOKEN_REQUIRES,
	"use":      TOKEN_USE,
	"as":       TOKEN_AS,

	// Declarations
	"type":     TOKEN_TYPE,
	"shared":   TOKEN_SHARED,
	"contract": TOKEN_CONTRACT,
	"pure":     TOKEN_PURE,
	"async":    TOKEN_ASYNC,

	// Contract sections
	"precondition":  TOKEN_PRECONDITION,
	"postcondition": TOKEN_POSTCONDITION,
	"effects":       TOKEN_EFFECTS,
	"permissions":   TOKEN_PERMISSIONS,
	"body":          TOKEN_BODY,
	"on_failure":    TOKEN_ON_FAILURE,

	// Control flow
	"if":       TOKEN_IF,
	"else":     TOKEN_ELSE,
	"while":    TOKEN_WHILE,
	"for":      TOKEN_FOR,
	"in":       TOKEN_IN,
	"return":   TOKEN_RETURN,
	"emit":     TOKEN_EMIT,
	"await":    TOKEN_AWAIT,
	"parallel": TOKEN_PARALLEL,

	// Specification expressions
	"old": TOKEN_OLD,
	"has": TOKEN_HAS,
	"and": TOKEN_AND,
	"or":  TOKEN_OR,
	"not": TOKEN_NOT,

	// Literals
	"true":  TOKEN_TRUE,
	"false": TOKEN_FALSE,
	"null":  TOKEN_NULL,

	// Effects clauses
	"modifies":             TOKEN_MODIFIES,
	"reads":                TOKEN_READS,
	"emits":                TOKEN_EMITS,
	"touches_nothing_else": TOKEN_TOUCHES_NOTHING_ELSE,

	// Permissions clauses
	"grants":     TOKEN_GRANTS,
	"denies":     TOKEN_DENIES,
	"escalation": TOKEN_ESCALATION,
}

// lookupKeyword checks if an identifier is a keyword
// Returns the token type and true if it's a keyword, TOKEN_IDENTIFIER and false otherwise
func lookupKeyword(identifier string) (TokenType, bool) {
	if tokenType, ok := keywords[identifier]; ok {
		return tokenType, true
	}
	return TOKEN_IDENTIFIER, false
}
