package typechecker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/covenant-lang/covenant/compiler/errors"
	"github.com/covenant-lang/covenant/compiler/lexer"
	"github.com/covenant-lang/covenant/compiler/parser"
)

func checkTypes(t *testing.T, source string) *errors.Collector {
	t.Helper()
	lex := lexer.New(source, "test.cov")
	tokens, lexErrors := lex.ScanTokens()
	require.Empty(t, lexErrors)
	p := parser.New(tokens)
	file, parseErrors := p.Parse()
	require.Empty(t, parseErrors)

	sink := errors.NewCollector()
	NewChecker(file, sink).Check()
	return sink
}

func firstCode(sink *errors.Collector, code string) *errors.Diagnostic {
	for _, d := range sink.All() {
		if d.Code == code {
			found := d
			return &found
		}
	}
	return nil
}

const header = "intent \"type testing\"\nscope app.types\nrisk low\n\n"

func TestArithmeticRules(t *testing.T) {
	clean := []string{
		"contract f(a: Int, b: Int) -> Int = a + b\n",
		"contract f(a: Float, b: Float) -> Float = a + b\n",
		"contract f(a: Int, b: Float) -> Float = a + b\n",
		"contract f(a: String, b: String) -> String = a + b\n",
		"contract f(a: List, b: List) -> List = a + b\n",
		"contract f(a, b) -> Int = a + b\n", // gradual: Any + Any
	}
	for _, src := range clean {
		sink := checkTypes(t, header+src)
		assert.False(t, sink.HasErrors(), "expected clean: %s\n%v", src, sink.All())
	}
}

func TestInvalidOperandsT003(t *testing.T) {
	sink := checkTypes(t, header+"contract f(a: String, b: Int) -> Any = a + b\n")
	require.NotNil(t, firstCode(sink, errors.ErrOperandType), "expected T003")
}

func TestDivisionAlwaysFloat(t *testing.T) {
	// 10 / 2 is Float even though the division is exact.
	sink := checkTypes(t, header+"contract f() -> Float = 10 / 2\n")
	assert.False(t, sink.HasErrors(), "%v", sink.All())

	sink = checkTypes(t, header+"contract g() -> Int = 10 / 2\n")
	require.NotNil(t, firstCode(sink, errors.ErrReturnType), "Int return of / must be T002")
}

func TestComparisonRules(t *testing.T) {
	sink := checkTypes(t, header+"contract f(a: Int, b: Float) -> Bool = a < b\n")
	assert.False(t, sink.HasErrors(), "%v", sink.All())

	sink = checkTypes(t, header+"contract g(a: String, b: Int) -> Bool = a < b\n")
	require.NotNil(t, firstCode(sink, errors.ErrOperandType), "expected T003 for String < Int")
}

func TestReturnTypeT002(t *testing.T) {
	sink := checkTypes(t, header+`contract f(x: Int) -> Int
  body:
    return "nope"
`)
	d := firstCode(sink, errors.ErrReturnType)
	require.NotNil(t, d, "expected T002")
}

func TestArityT004(t *testing.T) {
	sink := checkTypes(t, header+`contract add(a: Int, b: Int) -> Int = a + b

contract caller() -> Int = add(1)
`)
	require.NotNil(t, firstCode(sink, errors.ErrArityMismatch), "expected T004")
}

func TestArgumentTypeT001(t *testing.T) {
	sink := checkTypes(t, header+`contract add(a: Int, b: Int) -> Int = a + b

contract caller() -> Int = add(1, "two")
`)
	require.NotNil(t, firstCode(sink, errors.ErrArgumentType), "expected T001")
}

func TestKeywordArgumentBinding(t *testing.T) {
	sink := checkTypes(t, header+`contract add(a: Int, b: Int) -> Int = a + b

contract caller() -> Int = add(1, b: 2)
`)
	assert.False(t, sink.HasErrors(), "%v", sink.All())

	sink = checkTypes(t, header+`contract add(a: Int, b: Int) -> Int = a + b

contract caller() -> Int = add(1, c: 2)
`)
	require.NotNil(t, firstCode(sink, errors.ErrArgumentType), "unknown kwarg is T001")
}

func TestGenericListUnification(t *testing.T) {
	sink := checkTypes(t, header+`contract f(xs: List<Int>) -> Int
  body:
    return xs[0]
`)
	assert.False(t, sink.HasErrors(), "%v", sink.All())

	sink = checkTypes(t, header+`contract f(xs: List<String>) -> Int
  body:
    return xs[0]
`)
	require.NotNil(t, firstCode(sink, errors.ErrReturnType), "List<String> element returned as Int is T002")
}

func TestUntypedListLiteralIsListAny(t *testing.T) {
	sink := checkTypes(t, header+"contract f() -> List = [1, \"two\", true]\n")
	assert.False(t, sink.HasErrors(), "%v", sink.All())
}

func TestObjectConstructionAgainstTypeDecl(t *testing.T) {
	src := header + `type Account:
  owner: String
  balance: Int

contract f() -> Any = Account(owner: "ada", balance: 100)
`
	sink := checkTypes(t, src)
	assert.False(t, sink.HasErrors(), "%v", sink.All())

	bad := header + `type Account:
  owner: String
  balance: Int

contract f() -> Any = Account(owner: "ada", balance: "lots")
`
	sink = checkTypes(t, bad)
	require.NotNil(t, firstCode(sink, errors.ErrArgumentType), "field type mismatch is T001")
}

func TestResultBoundInPostcondition(t *testing.T) {
	sink := checkTypes(t, header+`contract f(x: Int) -> Int
  postcondition: result >= 0
  body:
    return x
`)
	assert.False(t, sink.HasErrors(), "%v", sink.All())
}

func TestConditionMustBeBool(t *testing.T) {
	sink := checkTypes(t, header+`contract f(x: Int) -> Int
  body:
    if x + 1:
      return 1
    return 0
`)
	require.NotNil(t, firstCode(sink, errors.ErrOperandType), "non-Bool condition is T003")
}

func TestSharedAssignmentType(t *testing.T) {
	sink := checkTypes(t, header+`shared counter: Int

contract reset()
  effects:
    modifies [counter]
  body:
    counter = "zero"
`)
	require.NotNil(t, firstCode(sink, errors.ErrOperandType), "String into Int shared cell is T003")
}
