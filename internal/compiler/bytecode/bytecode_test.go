package bytecode_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/covenant-lang/covenant/internal/compiler/bytecode"
	"github.com/covenant-lang/covenant/internal/tooling/build"
)

const factSource = `intent "compute factorials"
scope math.fact
risk low

contract fact(n: Int) -> Int
  precondition: n >= 0
  body:
    if n <= 1: return 1
    return n * fact(n - 1)
`

func compileSource(t *testing.T, source string) *bytecode.Module {
	t.Helper()
	unit, err := build.Compile(source, "test.cov")
	require.NoError(t, err, "diagnostics: %v", unit.Diagnostics.All())
	require.NotNil(t, unit.Module)
	return unit.Module
}

func TestOpcodeRepertoireIs35(t *testing.T) {
	assert.Equal(t, bytecode.Opcode(34), bytecode.OpHalt, "the repertoire is exactly 35 opcodes")
}

func TestCompileFactorial(t *testing.T) {
	module := compileSource(t, factSource)

	info, _, ok := module.Contract("fact")
	require.True(t, ok)
	assert.Equal(t, int32(1), info.NumParams)
	assert.Equal(t, []string{"n"}, info.ParamNames)
	assert.True(t, info.HasFlag(bytecode.FlagHasPre))
	assert.False(t, info.HasFlag(bytecode.FlagHasPost))
	assert.Equal(t, int32(-1), info.OnFailureEntry)
	assert.Equal(t, bytecode.TagInt, info.ReturnTag)

	// The recursive call compiles to a direct CALL by contract index.
	foundCall := false
	for _, ins := range module.Code {
		if ins.Op == bytecode.OpCall {
			foundCall = true
			assert.Equal(t, int32(0), ins.A)
		}
	}
	assert.True(t, foundCall, "expected a direct CALL instruction")
}

func TestJumpTargetsInRange(t *testing.T) {
	module := compileSource(t, `intent "branch and loop"
scope app.flow
risk low

contract classify(x: Int) -> Int
  body:
    total = 0
    i = 0
    while i < x:
      if i % 2 == 0:
        total = total + i
      else:
        total = total - 1
      i = i + 1
    return total
`)
	for pos, ins := range module.Code {
		if ins.Op == bytecode.OpJump || ins.Op == bytecode.OpJumpIfFalse {
			target := pos + 1 + int(ins.A)
			assert.GreaterOrEqual(t, target, 0, "jump at %d", pos)
			assert.LessOrEqual(t, target, len(module.Code), "jump at %d", pos)
		}
	}
}

func TestBackEdgeCarriesLoopSite(t *testing.T) {
	module := compileSource(t, `intent "loop once"
scope app.loop
risk low

contract spin(n: Int)
  body:
    i = 0
    while i < n:
      i = i + 1
`)
	assert.Equal(t, int32(1), module.NumLoopSites)
	backEdges := 0
	for _, ins := range module.Code {
		if ins.Op == bytecode.OpJump && ins.B >= 0 {
			backEdges++
			assert.Equal(t, int32(0), ins.B)
		}
	}
	assert.Equal(t, 1, backEdges)
}

func TestConstantPoolInterning(t *testing.T) {
	module := compileSource(t, `intent "reuse constants"
scope app.pool
risk low

contract f() -> Int
  body:
    a = 42
    b = 42
    return a + b
`)
	count := 0
	for _, c := range module.Constants {
		if c.Kind == bytecode.ConstInt && c.Int == 42 {
			count++
		}
	}
	assert.Equal(t, 1, count, "identical constants share one pool entry")
}

func TestSourceMapCoversEveryInstruction(t *testing.T) {
	module := compileSource(t, factSource)
	assert.Equal(t, len(module.Code), len(module.SourceMap))
	for i, loc := range module.SourceMap {
		assert.Equal(t, "test.cov", loc.File, "instruction %d", i)
		assert.Greater(t, loc.Line, 0, "instruction %d", i)
	}
}

func TestSerializeRoundTripByteIdentical(t *testing.T) {
	module := compileSource(t, factSource)

	first, err := module.Bytes()
	require.NoError(t, err)

	decoded, err := bytecode.Deserialize(bytes.NewReader(first))
	require.NoError(t, err)

	second, err := decoded.Bytes()
	require.NoError(t, err)
	assert.Equal(t, first, second, "serialize -> deserialize -> serialize must be byte-identical")
}

func TestDeserializeRejectsBadMagic(t *testing.T) {
	_, err := bytecode.Deserialize(bytes.NewReader([]byte{'n', 'o', 'p', 'e', 1}))
	assert.Error(t, err)
}

func TestMagicAndVersion(t *testing.T) {
	module := compileSource(t, factSource)
	data, err := module.Bytes()
	require.NoError(t, err)
	require.Greater(t, len(data), 5)
	assert.Equal(t, bytecode.Magic[:], data[:4])
	assert.Equal(t, bytecode.Version, data[4])
}

func TestDisassembleSmoke(t *testing.T) {
	module := compileSource(t, factSource)
	out := bytecode.Disassemble(module)
	assert.Contains(t, out, "fact")
	assert.Contains(t, out, "CALL")
	assert.Contains(t, out, "ASSERT_PRE")
	assert.Contains(t, out, "constants:")
}

func TestEmitAndEventTable(t *testing.T) {
	module := compileSource(t, `intent "announce things"
scope app.events
risk low

contract announce(x: Int)
  effects:
    emits [Announced]
  body:
    emit Announced(x)
`)
	require.Equal(t, []string{"Announced"}, module.Events)
	found := false
	for _, ins := range module.Code {
		if ins.Op == bytecode.OpEmit {
			found = true
			assert.Equal(t, int32(0), ins.A)
			assert.Equal(t, int32(1), ins.B)
		}
	}
	assert.True(t, found)
}

func TestSharedCellsAndImports(t *testing.T) {
	module := compileSource(t, `intent "use modules and shared state"
scope app.wiring
risk low
use math
use text as strings

shared counter: Int

contract bump()
  effects:
    modifies [counter]
  body:
    counter = counter + 1
`)
	require.Len(t, module.Shared, 1)
	assert.Equal(t, "counter", module.Shared[0].Name)
	assert.Equal(t, bytecode.TagInt, module.Shared[0].TypeTag)
	assert.Equal(t, []string{"math", "text"}, module.Imports)
}
