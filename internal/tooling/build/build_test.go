package build_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/covenant-lang/covenant/internal/compiler/bytecode"
	"github.com/covenant-lang/covenant/internal/tooling/build"
	"github.com/covenant-lang/covenant/internal/vm"
	"github.com/covenant-lang/covenant/internal/vm/host"
)

func TestCheckCleanProgram(t *testing.T) {
	unit := build.Check(`intent "compute factorials"
scope math.fact
risk low

contract fact(n: Int) -> Int
  precondition: n >= 0
  body:
    if n <= 1: return 1
    return n * fact(n - 1)
`, "fact.cov")
	assert.False(t, unit.Diagnostics.HasErrors(), "%v", unit.Diagnostics.All())
	require.Contains(t, unit.Fingerprints, "fact")
	assert.Contains(t, unit.Fingerprints["fact"].Calls, "fact")
	assert.Len(t, unit.IntentHashes["fact"], 64, "intent hash is hex SHA-256")
}

func TestCheckReportsLexicalErrors(t *testing.T) {
	unit := build.Check("intent \"x\"\nscope a.b\nrisk low\n\tbad = 1\n", "bad.cov")
	assert.True(t, unit.Diagnostics.HasErrors())
	assert.Equal(t, build.CodeLexical, unit.Diagnostics.All()[0].Code)
}

func TestCheckReportsSyntaxErrors(t *testing.T) {
	unit := build.Check("intent \"x\"\nscope a.b\nrisk low\ncontract ()\n", "bad.cov")
	assert.True(t, unit.Diagnostics.HasErrors())
	found := false
	for _, d := range unit.Diagnostics.All() {
		if d.Code == build.CodeSyntax {
			found = true
		}
	}
	assert.True(t, found, "expected a P001 diagnostic")
}

func TestCompileBlockedByErrors(t *testing.T) {
	// Undeclared mutation is E001, which blocks bytecode lowering.
	unit, err := build.Compile(`intent "transfer money"
scope bank.ops
risk low

contract transfer(from: Any, to: Any, amount: Int)
  effects:
    modifies [from.balance]
  body:
    from.balance = from.balance - amount
    to.balance = to.balance + amount
`, "transfer.cov")
	require.Error(t, err)
	assert.Nil(t, unit.Module)
}

func TestWarningsDoNotBlockCompilation(t *testing.T) {
	unit, err := build.Compile(`intent "persist a record"
scope app.storage
risk low

shared db: Object

contract save(record: Object)
  effects:
    modifies [db]
  body:
    db = record
`, "save.cov")
	require.NoError(t, err, "%v", unit.Diagnostics.All())
	assert.NotNil(t, unit.Module)
}

// TestRunAndExecProduceSameOutput is the bytecode round-trip scenario:
// executing a freshly compiled module and executing its serialized form
// must produce identical stdout.
func TestRunAndExecProduceSameOutput(t *testing.T) {
	source := `intent "print a table"
scope app.table
risk low

contract main()
  body:
    for i in range(5):
      print(i, i * i)
`
	unit, err := build.Compile(source, "table.cov")
	require.NoError(t, err)

	runOutput := invoke(t, unit.Module)

	data, err := unit.Module.Bytes()
	require.NoError(t, err)
	decoded, err := bytecode.Deserialize(bytes.NewReader(data))
	require.NoError(t, err)
	execOutput := invoke(t, decoded)

	assert.Equal(t, runOutput, execOutput)
	assert.Equal(t, "0 0\n1 1\n2 4\n3 9\n4 16\n", runOutput)
}

func invoke(t *testing.T, module *bytecode.Module) string {
	t.Helper()
	machine := vm.New(module)
	host.RegisterAll(machine, nil)
	var out bytes.Buffer
	machine.SetStdout(&out)
	_, rerr := machine.Invoke("main", nil, nil)
	require.Nil(t, rerr)
	return out.String()
}
