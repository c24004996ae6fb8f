package lexer

import (
	"strings"
	"testing"
)

// TestKeywords tests tokenization of all keywords
func TestKeywords(t *testing.T) {
	tests := []struct {
		input    string
		expected TokenType
	}{
		{"intent", TOKEN_INTENT},
		{"scope", TOKEN_SCOPE},
		{"risk", TOKEN_RISK},
		{"requires", TOKEN_REQUIRES},
		{"use", TOKEN_USE},
		{"as", TOKEN_AS},
		{"type", TOKEN_TYPE},
		{"shared", TOKEN_SHARED},
		{"contract", TOKEN_CONTRACT},
		{"pure", TOKEN_PURE},
		{"async", TOKEN_ASYNC},
		{"precondition", TOKEN_PRECONDITION},
		{"postcondition", TOKEN_POSTCONDITION},
		{"effects", TOKEN_EFFECTS},
		{"permissions", TOKEN_PERMISSIONS},
		{"body", TOKEN_BODY},
		{"on_failure", TOKEN_ON_FAILURE},
		{"if", TOKEN_IF},
		{"else", TOKEN_ELSE},
		{"while", TOKEN_WHILE},
		{"for", TOKEN_FOR},
		{"in", TOKEN_IN},
		{"return", TOKEN_RETURN},
		{"emit", TOKEN_EMIT},
		{"await", TOKEN_AWAIT},
		{"parallel", TOKEN_PARALLEL},
		{"old", TOKEN_OLD},
		{"has", TOKEN_HAS},
		{"and", TOKEN_AND},
		{"or", TOKEN_OR},
		{"not", TOKEN_NOT},
		{"true", TOKEN_TRUE},
		{"false", TOKEN_FALSE},
		{"null", TOKEN_NULL},
		{"modifies", TOKEN_MODIFIES},
		{"reads", TOKEN_READS},
		{"emits", TOKEN_EMITS},
		{"touches_nothing_else", TOKEN_TOUCHES_NOTHING_ELSE},
		{"grants", TOKEN_GRANTS},
		{"denies", TOKEN_DENIES},
		{"escalation", TOKEN_ESCALATION},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			lexer := New(tt.input, "test.cov")
			tokens, errors := lexer.ScanTokens()
			if len(errors) > 0 {
				t.Fatalf("Unexpected errors: %v", errors)
			}
			if tokens[0].Type != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, tokens[0].Type)
			}
		})
	}
}

// TestOperators tests tokenization of operators and punctuation
func TestOperators(t *testing.T) {
	tests := []struct {
		input    string
		expected TokenType
	}{
		{"+", TOKEN_PLUS},
		{"-", TOKEN_MINUS},
		{"*", TOKEN_STAR},
		{"/", TOKEN_SLASH},
		{"%", TOKEN_PERCENT},
		{"<", TOKEN_LESS},
		{">", TOKEN_GREATER},
		{"=", TOKEN_EQUAL},
		{":", TOKEN_COLON},
		{".", TOKEN_DOT},
		{",", TOKEN_COMMA},
		{"->", TOKEN_ARROW},
		{"==", TOKEN_EQUAL_EQUAL},
		{"!=", TOKEN_BANG_EQUAL},
		{"<=", TOKEN_LESS_EQUAL},
		{">=", TOKEN_GREATER_EQUAL},
		{"(", TOKEN_LPAREN},
		{")", TOKEN_RPAREN},
		{"[", TOKEN_LBRACKET},
		{"]", TOKEN_RBRACKET},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			lexer := New(tt.input, "test.cov")
			tokens, errors := lexer.ScanTokens()
			if len(errors) > 0 {
				t.Fatalf("Unexpected errors: %v", errors)
			}
			if tokens[0].Type != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, tokens[0].Type)
			}
		})
	}
}

// TestNumbers tests integer and float literals
func TestNumbers(t *testing.T) {
	lexer := New("42 3.14 0 9223372036854775807", "test.cov")
	tokens, errors := lexer.ScanTokens()
	if len(errors) > 0 {
		t.Fatalf("Unexpected errors: %v", errors)
	}

	if tokens[0].Type != TOKEN_INT_LITERAL || tokens[0].Literal.(int64) != 42 {
		t.Errorf("Expected int 42, got %v", tokens[0])
	}
	if tokens[1].Type != TOKEN_FLOAT_LITERAL || tokens[1].Literal.(float64) != 3.14 {
		t.Errorf("Expected float 3.14, got %v", tokens[1])
	}
	if tokens[2].Type != TOKEN_INT_LITERAL || tokens[2].Literal.(int64) != 0 {
		t.Errorf("Expected int 0, got %v", tokens[2])
	}
	if tokens[3].Literal.(int64) != 9223372036854775807 {
		t.Errorf("Expected max int64, got %v", tokens[3])
	}
}

// TestStrings tests string literals and escape sequences
func TestStrings(t *testing.T) {
	lexer := New(`"hello" "a\nb" "tab\there" "say \"hi\"" "back\\slash"`, "test.cov")
	tokens, errors := lexer.ScanTokens()
	if len(errors) > 0 {
		t.Fatalf("Unexpected errors: %v", errors)
	}

	expected := []string{"hello", "a\nb", "tab\there", `say "hi"`, `back\slash`}
	for i, want := range expected {
		if tokens[i].Type != TOKEN_STRING_LITERAL {
			t.Fatalf("Token %d: expected string literal, got %s", i, tokens[i].Type)
		}
		if got := tokens[i].Literal.(string); got != want {
			t.Errorf("Token %d: expected %q, got %q", i, want, got)
		}
	}
}

// TestUnterminatedString reports a lexical error
func TestUnterminatedString(t *testing.T) {
	lexer := New(`"never closed`, "test.cov")
	_, errors := lexer.ScanTokens()
	if len(errors) == 0 {
		t.Fatal("Expected an error for unterminated string")
	}
}

// TestComments are stripped from the stream
func TestComments(t *testing.T) {
	lexer := New("x = 1 -- assign one\n-- whole line comment\ny = 2\n", "test.cov")
	tokens, errors := lexer.ScanTokens()
	if len(errors) > 0 {
		t.Fatalf("Unexpected errors: %v", errors)
	}
	var kinds []TokenType
	for _, tok := range tokens {
		kinds = append(kinds, tok.Type)
	}
	want := []TokenType{
		TOKEN_IDENTIFIER, TOKEN_EQUAL, TOKEN_INT_LITERAL, TOKEN_NEWLINE,
		TOKEN_IDENTIFIER, TOKEN_EQUAL, TOKEN_INT_LITERAL, TOKEN_NEWLINE,
		TOKEN_EOF,
	}
	if len(kinds) != len(want) {
		t.Fatalf("Expected %d tokens, got %d: %v", len(want), len(kinds), kinds)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("Token %d: expected %s, got %s", i, want[i], kinds[i])
		}
	}
}

// TestIndentation emits INDENT and DEDENT tokens
func TestIndentation(t *testing.T) {
	source := "a = 1\n  b = 2\n    c = 3\n  d = 4\ne = 5\n"
	lexer := New(source, "test.cov")
	tokens, errors := lexer.ScanTokens()
	if len(errors) > 0 {
		t.Fatalf("Unexpected errors: %v", errors)
	}

	indents, dedents := 0, 0
	for _, tok := range tokens {
		switch tok.Type {
		case TOKEN_INDENT:
			indents++
		case TOKEN_DEDENT:
			dedents++
		}
	}
	if indents != 2 {
		t.Errorf("Expected 2 INDENT tokens, got %d", indents)
	}
	if dedents != 2 {
		t.Errorf("Expected 2 DEDENT tokens, got %d", dedents)
	}
}

// TestTabInIndentation is a fatal lexical error
func TestTabInIndentation(t *testing.T) {
	lexer := New("a = 1\n\tb = 2\n", "test.cov")
	_, errors := lexer.ScanTokens()
	if len(errors) == 0 {
		t.Fatal("Expected an error for tab in indentation")
	}
}

// TestOddIndentation is a lexical error
func TestOddIndentation(t *testing.T) {
	lexer := New("a = 1\n   b = 2\n", "test.cov")
	_, errors := lexer.ScanTokens()
	if len(errors) == 0 {
		t.Fatal("Expected an error for 3-space indentation")
	}
}

// TestBlankAndCommentLines do not affect indentation
func TestBlankAndCommentLines(t *testing.T) {
	source := "a = 1\n  b = 2\n\n  -- comment\n  c = 3\n"
	lexer := New(source, "test.cov")
	tokens, errors := lexer.ScanTokens()
	if len(errors) > 0 {
		t.Fatalf("Unexpected errors: %v", errors)
	}
	indents, dedents := 0, 0
	for _, tok := range tokens {
		switch tok.Type {
		case TOKEN_INDENT:
			indents++
		case TOKEN_DEDENT:
			dedents++
		}
	}
	if indents != 1 || dedents != 1 {
		t.Errorf("Expected 1 INDENT and 1 DEDENT, got %d and %d", indents, dedents)
	}
}

// TestBracketContinuation suppresses NEWLINE inside brackets
func TestBracketContinuation(t *testing.T) {
	source := "xs = [1,\n  2,\n  3]\n"
	lexer := New(source, "test.cov")
	tokens, errors := lexer.ScanTokens()
	if len(errors) > 0 {
		t.Fatalf("Unexpected errors: %v", errors)
	}
	newlines := 0
	for _, tok := range tokens {
		if tok.Type == TOKEN_NEWLINE {
			newlines++
		}
		if tok.Type == TOKEN_INDENT || tok.Type == TOKEN_DEDENT {
			t.Errorf("Unexpected %s inside brackets", tok.Type)
		}
	}
	if newlines != 1 {
		t.Errorf("Expected 1 NEWLINE, got %d", newlines)
	}
}

// TestSpans verifies every token carries a span contained in the source
func TestSpans(t *testing.T) {
	source := "contract add(a: Int, b: Int) -> Int = a + b\n"
	lexer := New(source, "test.cov")
	tokens, errors := lexer.ScanTokens()
	if len(errors) > 0 {
		t.Fatalf("Unexpected errors: %v", errors)
	}
	for _, tok := range tokens {
		if tok.Start < 0 || tok.End > len(source) || tok.Start > tok.End {
			t.Errorf("Token %s has invalid span [%d, %d)", tok, tok.Start, tok.End)
		}
	}
}

// TestLexemeRoundTrip verifies reconstructing lexemes reproduces the
// source modulo whitespace and comments.
func TestLexemeRoundTrip(t *testing.T) {
	source := "x = foo(1, 2.5) -- trailing\nreturn x >= 10\n"
	lexer := New(source, "test.cov")
	tokens, errors := lexer.ScanTokens()
	if len(errors) > 0 {
		t.Fatalf("Unexpected errors: %v", errors)
	}

	var b strings.Builder
	for _, tok := range tokens {
		switch tok.Type {
		case TOKEN_NEWLINE, TOKEN_INDENT, TOKEN_DEDENT, TOKEN_EOF:
			continue
		}
		b.WriteString(tok.Lexeme)
		b.WriteByte(' ')
	}
	normalized := strings.Join(strings.Fields("x = foo ( 1 , 2.5 ) return x >= 10"), " ")
	got := strings.Join(strings.Fields(b.String()), " ")
	if got != normalized {
		t.Errorf("Round trip mismatch:\n  got  %q\n  want %q", got, normalized)
	}
}

// TestSourceSizeLimit rejects files over 10 MB
func TestSourceSizeLimit(t *testing.T) {
	big := strings.Repeat("-- padding line\n", (MaxSourceBytes/16)+1)
	lexer := New(big, "test.cov")
	_, errors := lexer.ScanTokens()
	if len(errors) == 0 {
		t.Fatal("Expected an error for oversized source")
	}
}
