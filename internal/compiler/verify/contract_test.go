package verify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/covenant-lang/covenant/compiler/errors"
)

func TestMissingReturnV001(t *testing.T) {
	sink := checkSource(t, `intent "sometimes return"
scope app.partial
risk low

contract partial(x: Int) -> Int
  body:
    if x > 0:
      return x
`)
	assert.NotNil(t, findCode(sink, errors.ErrMissingReturn), "expected V001")
}

func TestAllPathsReturnIsClean(t *testing.T) {
	sink := checkSource(t, `intent "always return"
scope app.total
risk low

contract total(x: Int) -> Int
  body:
    if x > 0:
      return x
    else:
      return 0
`)
	assert.Nil(t, findCode(sink, errors.ErrMissingReturn))
}

func TestExpressionBodySkipsV001(t *testing.T) {
	sink := checkSource(t, `intent "expression bodies always return"
scope app.expr
risk low

contract double(x: Int) -> Int = x * 2
`)
	assert.Nil(t, findCode(sink, errors.ErrMissingReturn))
}

func TestUnreachableCodeV002(t *testing.T) {
	sink := checkSource(t, `intent "dead code after return"
scope app.dead
risk low

contract f() -> Int
  body:
    return 1
    x = 2
`)
	d := findCode(sink, errors.ErrUnreachableCode)
	require.NotNil(t, d, "expected V002")
}

func TestMissingOnFailureV003AtHighRisk(t *testing.T) {
	sink := checkSource(t, `intent "risky business"
scope app.risky
risk high

contract risky() -> Int
  precondition: true
  postcondition: true
  effects:
    touches_nothing_else
  body:
    return 1
`)
	assert.NotNil(t, findCode(sink, errors.ErrMissingOnFailure), "expected V003")
}

func TestResultWithoutReturnV004(t *testing.T) {
	sink := checkSource(t, `intent "promise without delivery"
scope app.promise
risk low

contract f(x: Int) -> Int
  postcondition: result > 0
  body:
    if x > 0:
      return x
`)
	assert.NotNil(t, findCode(sink, errors.ErrResultWithoutReturn), "expected V004")
}

func TestUndeclaredSharedV005(t *testing.T) {
	sink := checkSource(t, `intent "touch shared state quietly"
scope app.sneaky
risk low

shared counter: Int

contract bump()
  body:
    counter = counter + 1
`)
	d := findCode(sink, errors.ErrUndeclaredShared)
	require.NotNil(t, d, "expected V005")
	assert.Contains(t, d.Message, "counter")
}

func TestDeclaredSharedIsClean(t *testing.T) {
	sink := checkSource(t, `intent "touch shared state properly"
scope app.proper
risk low

shared counter: Int

contract bump()
  effects:
    modifies [counter]
  body:
    counter = counter + 1
`)
	assert.Nil(t, findCode(sink, errors.ErrUndeclaredShared))
}
