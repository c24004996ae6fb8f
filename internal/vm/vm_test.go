package vm_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/covenant-lang/covenant/internal/compiler/bytecode"
	"github.com/covenant-lang/covenant/internal/tooling/build"
	"github.com/covenant-lang/covenant/internal/vm"
	"github.com/covenant-lang/covenant/internal/vm/host"
)

func newVM(t *testing.T, source string) *vm.VM {
	t.Helper()
	unit, err := build.Compile(source, "test.cov")
	require.NoError(t, err, "diagnostics: %v", unit.Diagnostics.All())
	machine := vm.New(unit.Module)
	host.RegisterAll(machine, nil)
	return machine
}

const factSource = `intent "compute factorials"
scope math.fact
risk low

contract fact(n: Int) -> Int
  precondition: n >= 0
  body:
    if n <= 1: return 1
    return n * fact(n - 1)
`

func TestFactorial(t *testing.T) {
	machine := newVM(t, factSource)
	result, rerr := machine.Invoke("fact", nil, map[string]vm.Value{"n": vm.Int(10)})
	require.Nil(t, rerr)
	assert.Equal(t, vm.Int(3628800), result)
}

func TestPreconditionFailureWithoutHandler(t *testing.T) {
	machine := newVM(t, factSource)
	_, rerr := machine.Invoke("fact", []vm.Value{vm.Int(-1)}, nil)
	require.NotNil(t, rerr)
	assert.Equal(t, vm.ErrPreconditionFailed, rerr.Code)
	assert.Equal(t, "test.cov", rerr.Location.File)
	assert.Greater(t, rerr.Location.Line, 0)
}

func TestPreconditionFailureRunsOnFailure(t *testing.T) {
	machine := newVM(t, `intent "divide safely"
scope math.div
risk low

contract safe_div(a: Int, b: Int) -> Float
  precondition: b != 0
  body:
    return a / b
  on_failure:
    return 0.0
`)
	result, rerr := machine.Invoke("safe_div", []vm.Value{vm.Int(10), vm.Int(0)}, nil)
	require.Nil(t, rerr, "on_failure should absorb the precondition failure")
	assert.Equal(t, vm.Float(0.0), result)

	result, rerr = machine.Invoke("safe_div", []vm.Value{vm.Int(10), vm.Int(4)}, nil)
	require.Nil(t, rerr)
	assert.Equal(t, vm.Float(2.5), result)
}

const bumpTemplate = `intent "increment a counter"
scope app.counter
risk low

shared x: Int

contract bump()
  effects:
    modifies [x]
  postcondition: x == old(x) + 1
  body:
    x = x + STEP
`

func TestPostconditionWithOldSucceeds(t *testing.T) {
	machine := newVM(t, strings.Replace(bumpTemplate, "STEP", "1", 1))
	machine.SetShared("x", vm.Int(5))
	_, rerr := machine.Invoke("bump", nil, nil)
	require.Nil(t, rerr)
	x, ok := machine.GetShared("x")
	require.True(t, ok)
	assert.Equal(t, vm.Int(6), x)
}

func TestPostconditionWithOldFails(t *testing.T) {
	machine := newVM(t, strings.Replace(bumpTemplate, "STEP", "2", 1))
	machine.SetShared("x", vm.Int(5))
	_, rerr := machine.Invoke("bump", nil, nil)
	require.NotNil(t, rerr)
	assert.Equal(t, vm.ErrPostconditionFailed, rerr.Code)
	// The error cites the postcondition's span.
	assert.Equal(t, 10, rerr.Location.Line)
}

func TestIntegerOverflow(t *testing.T) {
	machine := newVM(t, `intent "overflow on purpose"
scope math.overflow
risk low

contract boom() -> Int
  body:
    return 9223372036854775807 + 1
`)
	_, rerr := machine.Invoke("boom", nil, nil)
	require.NotNil(t, rerr)
	assert.Equal(t, vm.ErrIntegerOverflow, rerr.Code)
}

func TestMulOverflow(t *testing.T) {
	machine := newVM(t, `intent "multiply too hard"
scope math.overflow
risk low

contract boom() -> Int
  body:
    return 4611686018427387904 * 2
`)
	_, rerr := machine.Invoke("boom", nil, nil)
	require.NotNil(t, rerr)
	assert.Equal(t, vm.ErrIntegerOverflow, rerr.Code)
}

func TestDivisionByZero(t *testing.T) {
	machine := newVM(t, `intent "divide by zero"
scope math.zero
risk low

contract oops() -> Float
  body:
    return 1 / 0
`)
	_, rerr := machine.Invoke("oops", nil, nil)
	require.NotNil(t, rerr)
	assert.Equal(t, vm.ErrDivisionByZero, rerr.Code)
}

func TestDivisionYieldsFloat(t *testing.T) {
	machine := newVM(t, `intent "divide exactly"
scope math.div
risk low

contract half() -> Float
  body:
    return 10 / 2
`)
	result, rerr := machine.Invoke("half", nil, nil)
	require.Nil(t, rerr)
	assert.Equal(t, vm.Float(5.0), result)
}

func TestCallDepthExceeded(t *testing.T) {
	machine := newVM(t, `intent "recurse forever"
scope app.spiral
risk low

contract spiral(n: Int) -> Int = spiral(n)
`)
	_, rerr := machine.Invoke("spiral", []vm.Value{vm.Int(1)}, nil)
	require.NotNil(t, rerr)
	assert.Equal(t, vm.ErrCallDepthExceeded, rerr.Code)
}

func TestLoopLimitExceeded(t *testing.T) {
	machine := newVM(t, `intent "spin forever"
scope app.spin
risk low

contract spin() -> Int
  body:
    x = 0
    while true:
      x = x + 1
    return x
`)
	machine.SetLimits(vm.Limits{CallDepth: 256, LoopIterations: 1000, RangeLength: 10})
	_, rerr := machine.Invoke("spin", nil, nil)
	require.NotNil(t, rerr)
	assert.Equal(t, vm.ErrLoopLimitExceeded, rerr.Code)
}

func TestMissingArgument(t *testing.T) {
	machine := newVM(t, factSource)
	_, rerr := machine.Invoke("fact", nil, nil)
	require.NotNil(t, rerr)
	assert.Equal(t, vm.ErrMissingArgument, rerr.Code)
}

func TestForLoopOverRange(t *testing.T) {
	machine := newVM(t, `intent "sum a range"
scope math.sum
risk low

contract sum(n: Int) -> Int
  body:
    total = 0
    for i in range(n):
      total = total + i
    return total
`)
	result, rerr := machine.Invoke("sum", []vm.Value{vm.Int(10)}, nil)
	require.Nil(t, rerr)
	assert.Equal(t, vm.Int(45), result)
}

func TestRangeClamped(t *testing.T) {
	machine := newVM(t, `intent "ask for too much"
scope app.range
risk low

contract count() -> Int
  body:
    return len(range(1000))
`)
	machine.SetLimits(vm.Limits{CallDepth: 256, LoopIterations: 1000, RangeLength: 10})
	result, rerr := machine.Invoke("count", nil, nil)
	require.Nil(t, rerr)
	assert.Equal(t, vm.Int(10), result)
}

func TestEmitRecordsEvents(t *testing.T) {
	machine := newVM(t, `intent "announce changes"
scope app.events
risk low

contract announce(x: Int)
  effects:
    emits [Changed]
  body:
    emit Changed(x, x + 1)
`)
	_, rerr := machine.Invoke("announce", []vm.Value{vm.Int(7)}, nil)
	require.Nil(t, rerr)
	events := machine.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "Changed", events[0].Name)
	assert.Equal(t, []vm.Value{vm.Int(7), vm.Int(8)}, events[0].Args)
}

func TestObjectsAndFieldMutation(t *testing.T) {
	machine := newVM(t, `intent "mutate object fields"
scope app.objects
risk low

type Account:
  owner: String
  balance: Int

contract transfer(from: Account, to: Account, amount: Int)
  effects:
    modifies [from.balance, to.balance]
  body:
    from.balance = from.balance - amount
    to.balance = to.balance + amount

contract demo() -> Int
  body:
    a = Account(owner: "ada", balance: 100)
    b = Account(owner: "bob", balance: 50)
    transfer(a, b, 30)
    return b.balance
`)
	result, rerr := machine.Invoke("demo", nil, nil)
	require.Nil(t, rerr)
	assert.Equal(t, vm.Int(80), result)
}

func TestParallelExecutesInTextualOrder(t *testing.T) {
	machine := newVM(t, `intent "parallel is sequential for now"
scope app.parallel
risk low

contract f() -> Int
  body:
    parallel:
      a = 1
      b = a + 1
      c = b * 10
    return c
`)
	result, rerr := machine.Invoke("f", nil, nil)
	require.Nil(t, rerr)
	assert.Equal(t, vm.Int(20), result)
}

func TestHostModuleDispatch(t *testing.T) {
	machine := newVM(t, `intent "use the bundled modules"
scope app.modules
risk low
use math
use text

contract demo() -> String
  body:
    n = math.abs(0 - 5)
    return text.upper("abc") + str(n)
`)
	result, rerr := machine.Invoke("demo", nil, nil)
	require.Nil(t, rerr)
	assert.Equal(t, vm.String("ABC5"), result)
}

func TestMissingHostModule(t *testing.T) {
	machine := newVM(t, `intent "call an absent module"
scope app.absent
risk low

contract f()
  body:
    db.insert(1)
`)
	_, rerr := machine.Invoke("f", nil, nil)
	require.NotNil(t, rerr)
	assert.Equal(t, vm.ErrHostModule, rerr.Code)
}

func TestHostModuleError(t *testing.T) {
	machine := newVM(t, `intent "sqrt of a negative"
scope app.neg
risk low
use math

contract f() -> Float
  body:
    return math.sqrt(0 - 4)
`)
	_, rerr := machine.Invoke("f", nil, nil)
	require.NotNil(t, rerr)
	assert.Equal(t, vm.ErrHostModule, rerr.Code)
	assert.Contains(t, rerr.Message, "math.sqrt")
}

func TestPrintGoesToStdout(t *testing.T) {
	machine := newVM(t, `intent "print things"
scope app.print
risk low

contract main()
  body:
    print("hello", 42)
`)
	var out bytes.Buffer
	machine.SetStdout(&out)
	_, rerr := machine.Invoke("main", nil, nil)
	require.Nil(t, rerr)
	assert.Equal(t, "hello 42\n", out.String())
}

func TestAwaitIsSynchronous(t *testing.T) {
	machine := newVM(t, `intent "await nothing"
scope app.async
risk low

async contract fetch(x: Int) -> Int = x + 1

contract main() -> Int
  body:
    return await fetch(41)
`)
	result, rerr := machine.Invoke("main", nil, nil)
	require.Nil(t, rerr)
	assert.Equal(t, vm.Int(42), result)
}

func TestExecFromSerializedModule(t *testing.T) {
	unit, err := build.Compile(factSource, "test.cov")
	require.NoError(t, err)

	data, err := unit.Module.Bytes()
	require.NoError(t, err)
	decoded, err := bytecode.Deserialize(bytes.NewReader(data))
	require.NoError(t, err)

	machine := vm.New(decoded)
	host.RegisterAll(machine, nil)
	result, rerr := machine.Invoke("fact", []vm.Value{vm.Int(10)}, nil)
	require.Nil(t, rerr)
	assert.Equal(t, vm.Int(3628800), result)
}

func TestHandleRegistryRefCounting(t *testing.T) {
	registry := vm.NewHandleRegistry()
	closed := false
	handle := registry.New("resource", func() { closed = true })
	require.Equal(t, vm.KindHandle, handle.Kind)
	assert.Equal(t, 1, registry.Live())

	registry.Retain(handle.Handle)
	registry.Release(handle.Handle)
	assert.False(t, closed, "still one reference held")

	registry.Release(handle.Handle)
	assert.True(t, closed)
	assert.Equal(t, 0, registry.Live())
}
