package verify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/covenant-lang/covenant/compiler/errors"
)

func TestUncheckedRequiredCapabilityF004(t *testing.T) {
	sink := checkSource(t, `intent "write reports to disk"
scope app.reports
risk low
requires [file.write]

contract save(data: String)
  body:
    file.write(data)
`)
	d := findCode(sink, errors.ErrUncheckedCapability)
	require.NotNil(t, d, "expected F004")
	assert.Contains(t, d.Message, "file.write")
}

func TestCheckedRequiredCapabilityIsClean(t *testing.T) {
	sink := checkSource(t, `intent "write reports to disk"
scope app.reports
risk low
requires [file.write]

contract save(data: String)
  body:
    if has file.write:
      file.write(data)
`)
	assert.Nil(t, findCode(sink, errors.ErrUncheckedCapability))
}

func TestUnknownCapabilityF005(t *testing.T) {
	sink := checkSource(t, `intent "probe permissions"
scope app.probe
risk low

contract probe() -> Bool
  body:
    return has net.admin
`)
	d := findCode(sink, errors.ErrUnknownCapability)
	require.NotNil(t, d, "expected F005")
	assert.Contains(t, d.Message, "net.admin")
}

func TestGrantDenyConflictF006(t *testing.T) {
	sink := checkSource(t, `intent "contradict oneself"
scope app.conflict
risk low

contract confused()
  permissions:
    grants [file.write]
    denies [file]
  body:
    x = 1
`)
	assert.NotNil(t, findCode(sink, errors.ErrGrantDenyConflict), "expected F006")
}

func TestDeniedModuleCallF002(t *testing.T) {
	sink := checkSource(t, `intent "try a forbidden write"
scope app.forbidden
risk low

contract sneak(data: String)
  permissions:
    denies [file]
  body:
    file.write(data)
`)
	d := findCode(sink, errors.ErrPermissionDenied)
	require.NotNil(t, d, "expected F002")
	assert.Contains(t, d.Message, "file.write")
}

func TestUngrantedSourceF003(t *testing.T) {
	sink := checkSource(t, `intent "read beyond grants"
scope app.overreach
risk low

contract fetch() -> Any
  permissions:
    grants [db]
  body:
    return http.get(url: "http://example.com")
`)
	d := findCode(sink, errors.ErrUngrantedSource)
	require.NotNil(t, d, "expected F003")
	assert.Contains(t, d.Message, "http.get")
}

func TestTaintedFlowF001(t *testing.T) {
	sink := checkSource(t, `intent "log user details"
scope app.logging
risk low

type User:
  name: String
  ssn: String [sensitive]

contract log_user(u: User)
  body:
    line = u.ssn
    log.write(line)
`)
	d := findCode(sink, errors.ErrTaintedFlow)
	require.NotNil(t, d, "expected F001")
	assert.Contains(t, d.Message, "sensitive")
}

func TestGrantedFlowIsClean(t *testing.T) {
	sink := checkSource(t, `intent "log user details with clearance"
scope app.logging
risk low

type User:
  name: String
  ssn: String [sensitive]

contract log_user(u: User)
  permissions:
    grants [sensitive, log]
  body:
    line = u.ssn
    log.write(line)
`)
	assert.Nil(t, findCode(sink, errors.ErrTaintedFlow))
}

func TestFlowThroughAssignmentChain(t *testing.T) {
	sink := checkSource(t, `intent "launder labels through locals"
scope app.launder
risk low

contract relay(secret: String [pii])
  body:
    a = secret
    b = a
    c = b
    net.send(c)
`)
	d := findCode(sink, errors.ErrTaintedFlow)
	require.NotNil(t, d, "label should propagate through the chain")
	assert.Contains(t, d.Message, "pii")
}
