package verify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/covenant-lang/covenant/compiler/errors"
)

func TestUndeclaredMutationE001(t *testing.T) {
	sink := checkSource(t, `intent "transfer money between accounts"
scope bank.transfer
risk medium

type Account:
  owner: String
  balance: Int

contract transfer(from: Account, to: Account, amount: Int)
  effects:
    modifies [from.balance]
  body:
    from.balance = from.balance - amount
    to.balance = to.balance + amount
`)
	d := findCode(sink, errors.ErrUndeclaredMutation)
	require.NotNil(t, d, "expected E001")
	assert.Contains(t, d.Message, "to.balance")
	assert.True(t, d.IsError())
	require.NotNil(t, d.Suggestion)
	assert.Equal(t, "modifies [to.balance]", d.Suggestion.NewCode)
}

func TestDeclaredMutationIsClean(t *testing.T) {
	sink := checkSource(t, `intent "transfer money between accounts"
scope bank.transfer
risk low

contract transfer(from: Any, to: Any, amount: Int)
  effects:
    modifies [from.balance, to.balance]
  body:
    from.balance = from.balance - amount
    to.balance = to.balance + amount
`)
	assert.Nil(t, findCode(sink, errors.ErrUndeclaredMutation))
}

func TestMissingEffectsW005WithFix(t *testing.T) {
	sink := checkSource(t, `intent "persist a record"
scope app.storage
risk medium

shared db: Object

contract save(record: Object)
  body:
    db = record
`)
	d := findCode(sink, errors.WarnMissingSection)
	require.NotNil(t, d, "expected W005")
	assert.Equal(t, errors.Warning, d.Severity, "W005 stays a warning at medium risk")
	require.NotNil(t, d.Suggestion)
	assert.Contains(t, d.Suggestion.NewCode, "effects:\n    modifies [db]")
}

func TestUndeclaredEmitE005(t *testing.T) {
	sink := checkSource(t, `intent "audit actions"
scope app.audit
risk low

contract record(action: String)
  effects:
    emits [Recorded]
  body:
    emit Recorded(action)
    emit Leaked(action)
`)
	d := findCode(sink, errors.ErrUndeclaredEmit)
	require.NotNil(t, d, "expected E005")
	assert.Contains(t, d.Message, "Leaked")
}

func TestUnobservedDeclarationsW001W006(t *testing.T) {
	sink := checkSource(t, `intent "do very little"
scope app.little
risk low

shared db: Object

contract noop()
  effects:
    modifies [db]
    emits [Changed]
  body:
    x = 1
`)
	assert.NotNil(t, findCode(sink, errors.WarnUnobservedModify), "expected W001")
	assert.NotNil(t, findCode(sink, errors.WarnUnobservedEmit), "expected W006")
}

func TestTouchesNothingElseE003(t *testing.T) {
	sink := checkSource(t, `intent "compute quietly"
scope app.quiet
risk low

contract compute(x: Int) -> Int
  effects:
    touches_nothing_else
  body:
    http.post(url: "http://example.com", body: x)
    return x
`)
	d := findCode(sink, errors.ErrTouchesSomethingElse)
	require.NotNil(t, d, "expected E003")
	assert.Contains(t, d.Message, "http.post")
}

func TestTouchesNothingElseAllowsPureStdlib(t *testing.T) {
	sink := checkSource(t, `intent "compute quietly"
scope app.quiet
risk low

contract compute(x: Int) -> Int
  effects:
    touches_nothing_else
  body:
    return math.abs(x)
`)
	assert.Nil(t, findCode(sink, errors.ErrTouchesSomethingElse))
}

func TestOldWithoutModifiesW007(t *testing.T) {
	sink := checkSource(t, `intent "bump a counter"
scope app.counter
risk low

shared x: Int

contract bump()
  effects:
    reads [x]
  postcondition: x == old(x) + 1
  body:
    y = x + 1
`)
	assert.NotNil(t, findCode(sink, errors.WarnOldNotModified), "expected W007")
}

func TestHighRiskEscalation(t *testing.T) {
	sink := checkSource(t, `intent "critical operation"
scope app.danger
risk critical

contract launch()
  body:
    x = 1
  on_failure:
    return null
`)
	// Missing precondition, postcondition, and effects all escalate to
	// errors at critical risk, each with a paste-ready fix.
	var escalated int
	for _, d := range sink.All() {
		if d.Code == errors.WarnMissingSection {
			assert.True(t, d.IsError(), "W005 must escalate at critical risk")
			assert.NotNil(t, d.Suggestion)
			escalated++
		}
	}
	assert.GreaterOrEqual(t, escalated, 3)
}

func TestRecursionI001(t *testing.T) {
	sink := checkSource(t, `intent "compute factorials"
scope math.fact
risk low

contract fact(n: Int) -> Int
  precondition: n >= 0
  body:
    if n <= 1: return 1
    return n * fact(n - 1)
`)
	d := findCode(sink, errors.InfoRecursion)
	require.NotNil(t, d, "expected I001")
	assert.Equal(t, errors.Info, d.Severity)
}

func TestDeepNestingI002(t *testing.T) {
	sink := checkSource(t, `intent "nest deeply"
scope app.nest
risk low

contract deep(a: Bool, b: Bool, c: Bool, d: Bool) -> Int
  body:
    if a:
      if b:
        if c:
          if d:
            return 4
    return 0
`)
	assert.NotNil(t, findCode(sink, errors.InfoDeepNesting), "expected I002")
}

func TestMissingBodyE004(t *testing.T) {
	sink := checkSource(t, `intent "declare without doing"
scope app.empty
risk low

contract ghost(x: Int) -> Int
  precondition: x > 0
`)
	assert.NotNil(t, findCode(sink, errors.ErrMissingBody), "expected E004")
}

func TestQueryWithSideEffectsW003(t *testing.T) {
	sink := checkSource(t, `intent "look up a user"
scope app.users
risk low

shared cache: Object

contract get_user(id: Int) -> Any
  effects:
    modifies [cache]
  body:
    cache = id
    return id
`)
	assert.NotNil(t, findCode(sink, errors.WarnIntentMismatch), "expected W003")
}
