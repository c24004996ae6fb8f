package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/covenant-lang/covenant/compiler/lexer"
	"github.com/covenant-lang/covenant/compiler/parser"
)

func parseContract(t *testing.T, source string) *parser.ContractDecl {
	t.Helper()
	lex := lexer.New(source, "test.cov")
	tokens, lexErrors := lex.ScanTokens()
	require.Empty(t, lexErrors)
	p := parser.New(tokens)
	file, parseErrors := p.Parse()
	require.Empty(t, parseErrors)
	contracts := file.Contracts()
	require.NotEmpty(t, contracts)
	return contracts[0]
}

const transferSource = `intent "move funds"
scope bank.ops
risk low

contract transfer(from: Any, to: Any, amount: Int)
  postcondition: from.balance == old(from.balance) - amount
  body:
    if has ledger.write:
      from.balance = from.balance - amount
      to.balance = to.balance + amount
      emit Transferred(amount)
      audit.log(amount)
`

func TestFingerprintSets(t *testing.T) {
	fp := Compute(parseContract(t, transferSource))

	assert.Equal(t, []string{"from.balance", "to.balance"}, fp.Mutates)
	assert.Equal(t, []string{"Transferred"}, fp.Emits)
	assert.Equal(t, []string{"audit.log"}, fp.Calls)
	assert.Equal(t, []string{"from.balance"}, fp.OldRefs)
	assert.Equal(t, []string{"ledger.write"}, fp.CapChecks)
	assert.Contains(t, fp.Reads, "amount")
	assert.True(t, fp.HasBranching)
	assert.False(t, fp.HasLooping)
	assert.False(t, fp.HasRecursion)
}

func TestRecursionDetection(t *testing.T) {
	fp := Compute(parseContract(t, `intent "count down"
scope app.count
risk low

contract down(n: Int) -> Int
  body:
    if n <= 0: return 0
    return down(n - 1)
`))
	assert.True(t, fp.HasRecursion)
	assert.Contains(t, fp.Calls, "down")
}

func TestLoopingFlags(t *testing.T) {
	fp := Compute(parseContract(t, `intent "loop around"
scope app.loop
risk low

contract spin(n: Int)
  body:
    i = 0
    while i < n:
      i = i + 1
    for x in range(n):
      i = i + x
`))
	assert.True(t, fp.HasLooping)
	assert.Contains(t, fp.Calls, "range")
}

func TestFingerprintDeterminism(t *testing.T) {
	a := Compute(parseContract(t, transferSource))
	b := Compute(parseContract(t, transferSource))
	assert.Equal(t, a, b)
	assert.Equal(t, a.Canonical(), b.Canonical())
	assert.Equal(t, IntentHash("move funds", a), IntentHash("move funds", b))
}

func TestIntentHashChangesWithIntent(t *testing.T) {
	fp := Compute(parseContract(t, transferSource))
	assert.NotEqual(t, IntentHash("move funds", fp), IntentHash("move funds!", fp))
}

func TestIntentHashChangesWithBehavior(t *testing.T) {
	a := Compute(parseContract(t, transferSource))
	b := Compute(parseContract(t, `intent "move funds"
scope bank.ops
risk low

contract transfer(from: Any, to: Any, amount: Int)
  body:
    from.balance = from.balance - amount
`))
	assert.NotEqual(t, IntentHash("move funds", a), IntentHash("move funds", b))
}

func TestOnFailureIsFingerprinted(t *testing.T) {
	fp := Compute(parseContract(t, `intent "fail loudly"
scope app.fail
risk low

contract f()
  body:
    x = 1
  on_failure:
    emit Failed()
    return null
`))
	assert.Contains(t, fp.Emits, "Failed")
}

func TestCanonicalFormatIsStable(t *testing.T) {
	fp := &Fingerprint{
		Reads:   []string{"a", "b"},
		Mutates: []string{"x"},
		Calls:   []string{"m.f"},
	}
	assert.Equal(t, "a\x1fb\x1ex\x1em.f\x1e\x1e\x1e\x1e0\x1e0\x1e0", fp.Canonical())
}
