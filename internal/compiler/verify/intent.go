// Package verify implements the static verification passes that run between
// parsing and bytecode lowering: intent verification, capability and
// information flow checking, and contract (control flow) verification.
// Every pass reports into the shared diagnostic sink and never mutates
// the AST.
package verify

import (
	"strings"

	"github.com/covenant-lang/covenant/compiler/errors"
	"github.com/covenant-lang/covenant/compiler/parser"
	"github.com/covenant-lang/covenant/internal/compiler/fingerprint"
)

// pureStdlib is the allowlist of side-effect-free stdlib calls that
// touches_nothing_else tolerates. Impure stdlib modules are deliberately
// absent.
var pureStdlib = map[string]bool{
	"math": true,
	"text": true,
}

// impureStdlib marks modules whose calls count as external side effects.
var impureStdlib = map[string]bool{
	"file":   true,
	"http":   true,
	"db":     true,
	"crypto": true,
	"llm":    true,
	"time":   true,
}

// Intent runs the intent verification engine over every contract,
// comparing declared effects against the behavioral fingerprint.
func Intent(file *parser.File, fps map[string]*fingerprint.Fingerprint, sink *errors.Collector) {
	pureContracts := map[string]bool{}
	for _, c := range file.Contracts() {
		if c.Pure {
			pureContracts[c.Name] = true
		}
	}
	shared := map[string]bool{}
	for _, s := range file.SharedDecls() {
		shared[s.Name] = true
	}

	for _, c := range file.Contracts() {
		fp := fps[c.Name]
		if fp == nil {
			continue
		}
		v := &intentVerifier{
			file:          file,
			contract:      c,
			fp:            fp,
			sink:          sink,
			pureContracts: pureContracts,
			shared:        shared,
		}
		v.run()
	}
}

type intentVerifier struct {
	file          *parser.File
	contract      *parser.ContractDecl
	fp            *fingerprint.Fingerprint
	sink          *errors.Collector
	pureContracts map[string]bool
	shared        map[string]bool
}

func (v *intentVerifier) run() {
	c := v.contract

	// An abstract contract declares no sections at all; everything else
	// needs a body.
	hasAnySection := c.Pre != nil || c.Post != nil || c.Effects != nil ||
		c.Permissions != nil || c.HasOnFailure
	if !c.HasBody && !c.IsExpressionBody() {
		if hasAnySection {
			v.sink.Add(errors.New(errors.ErrMissingBody, c.Span.Location()).
				WithMessage("Contract %q has sections but no body", c.Name).
				WithSuggestion("Add a body section", "body:\n    return null"))
		}
		return
	}

	external := v.externalMutations()
	v.checkMutations(external)
	v.checkEmits()
	v.checkTouchesNothingElse()
	v.checkUnobservedDeclarations()
	v.checkOldRefs()
	v.checkMissingSections(external)
	v.checkIntentMismatch(external)
	v.checkAchievability()
	v.reportInfo()
}

// externalMutations filters the fingerprint's mutation set down to writes
// that are observable outside the contract: dotted paths, parameter
// writes, and shared cell writes. Plain locals introduced by the body are
// internal.
func (v *intentVerifier) externalMutations() []string {
	params := map[string]bool{}
	for _, p := range v.contract.Params {
		params[p.Name] = true
	}
	var out []string
	for _, m := range v.fp.Mutates {
		root := m
		if i := strings.IndexByte(m, '.'); i >= 0 {
			root = m[:i]
		}
		if root != m || params[root] || v.shared[root] {
			out = append(out, m)
		}
	}
	return out
}

// checkMutations reports E001 for external writes not covered by the
// declared modifies list. Runs only when an effects block is present;
// a missing block is W005's concern.
func (v *intentVerifier) checkMutations(external []string) {
	effects := v.contract.Effects
	if effects == nil {
		return
	}
	for _, m := range external {
		if effects.DeclaresModify(m) {
			continue
		}
		loc := v.mutationSpan(m).Location()
		v.sink.Add(errors.New(errors.ErrUndeclaredMutation, loc).
			WithMessage("Body mutates %q which is not listed in effects: modifies", m).
			WithSuggestion("Declare the mutation", "modifies ["+m+"]"))
	}
}

// checkEmits reports E005 for emitted events missing from effects: emits
func (v *intentVerifier) checkEmits() {
	effects := v.contract.Effects
	if effects == nil {
		return
	}
	for _, e := range v.fp.Emits {
		if effects.DeclaresEmit(e) {
			continue
		}
		loc := v.emitSpan(e).Location()
		v.sink.Add(errors.New(errors.ErrUndeclaredEmit, loc).
			WithMessage("Body emits %q which is not listed in effects: emits", e).
			WithSuggestion("Declare the event", "emits ["+e+"]"))
	}
}

// checkTouchesNothingElse reports E003 for calls outside the declared
// closure when touches_nothing_else is asserted.
func (v *intentVerifier) checkTouchesNothingElse() {
	effects := v.contract.Effects
	if effects == nil || !effects.TouchesNothingElse {
		return
	}
	for _, call := range v.fp.Calls {
		if v.callAllowed(call, effects) {
			continue
		}
		v.sink.Add(errors.New(errors.ErrTouchesSomethingElse, effects.Span.Location()).
			WithMessage("touches_nothing_else is declared but the body calls %q outside the declared closure", call).
			WithSuggestion("Declare the dependency", "reads ["+call+"]"))
	}
}

func (v *intentVerifier) callAllowed(call string, effects *parser.EffectsNode) bool {
	if call == v.contract.Name {
		return true // self-recursion touches nothing new
	}
	if v.pureContracts[call] {
		return true
	}
	if module, _, ok := strings.Cut(call, "."); ok {
		if pureStdlib[module] {
			return true
		}
	}
	return effects.DeclaresRead(call) || effects.DeclaresModify(call)
}

// checkUnobservedDeclarations reports W001/W002/W006 for declared effects
// the body never performs.
func (v *intentVerifier) checkUnobservedDeclarations() {
	effects := v.contract.Effects
	if effects == nil {
		return
	}
	observedMutation := func(declared string) bool {
		for _, m := range v.fp.Mutates {
			if m == declared || strings.HasPrefix(m, declared+".") {
				return true
			}
		}
		return false
	}
	observedRead := func(declared string) bool {
		for _, r := range v.fp.Reads {
			if r == declared || strings.HasPrefix(r, declared+".") {
				return true
			}
		}
		for _, call := range v.fp.Calls {
			if call == declared || strings.HasPrefix(call, declared+".") {
				return true
			}
		}
		return false
	}

	for _, ref := range effects.Modifies {
		if !observedMutation(ref.Name) {
			v.sink.Add(errors.New(errors.WarnUnobservedModify, ref.Span.Location()).
				WithMessage("Declared modification of %q is never performed by the body", ref.Name))
		}
	}
	for _, ref := range effects.Reads {
		if !observedRead(ref.Name) {
			v.sink.Add(errors.New(errors.WarnUnobservedRead, ref.Span.Location()).
				WithMessage("Declared read of %q is never performed by the body", ref.Name))
		}
	}
	for _, ref := range effects.Emits {
		found := false
		for _, e := range v.fp.Emits {
			if e == ref.Name {
				found = true
				break
			}
		}
		if !found {
			v.sink.Add(errors.New(errors.WarnUnobservedEmit, ref.Span.Location()).
				WithMessage("Declared emit of %q is never performed by the body", ref.Name))
		}
	}
}

// checkOldRefs reports W007 when old() references a base missing from modifies
func (v *intentVerifier) checkOldRefs() {
	for _, base := range v.fp.OldRefs {
		declared := v.contract.Effects != nil && v.contract.Effects.DeclaresModify(base)
		if !declared {
			v.sink.Add(errors.New(errors.WarnOldNotModified, v.contract.PostSpan.Location()).
				WithMessage("old(%s) references a base that is not listed in modifies", base).
				WithSuggestion("Declare the mutation", "modifies ["+base+"]"))
		}
	}
}

// checkMissingSections reports W005 for sections the risk level requires.
// A missing effects block on a side-effecting body is mandatory at any
// risk level; at high and critical risk, missing precondition,
// postcondition, and effects sections escalate to errors.
func (v *intentVerifier) checkMissingSections(external []string) {
	c := v.contract
	highRisk := v.file.HighRisk()

	hasSideEffects := len(external) > 0 || len(v.fp.Emits) > 0 || v.hasImpureCalls()
	if c.Effects == nil && hasSideEffects {
		fix := v.effectsFixText(external)
		d := errors.New(errors.WarnMissingSection, c.Span.Location()).
			WithMessage("Contract %q has external side effects but no effects section", c.Name).
			WithSuggestion("Declare the contract's effects", fix)
		if highRisk {
			d = d.WithSeverity(errors.Error)
		}
		v.sink.Add(d)
	}

	if !highRisk {
		if v.file.Risk == parser.RiskMedium && hasSideEffects && !c.HasOnFailure {
			v.sink.Add(errors.New(errors.WarnMissingFailureHandler, c.Span.Location()).
				WithMessage("Contract %q has side effects but no on_failure handler", c.Name).
				WithSuggestion("Add a failure handler", "on_failure:\n    return null"))
		}
		return
	}

	if c.Pre == nil {
		v.sink.Add(errors.New(errors.WarnMissingSection, c.Span.Location()).
			WithSeverity(errors.Error).
			WithMessage("Contract %q is missing a precondition, required at risk level %s", c.Name, v.file.Risk).
			WithSuggestion("Add a precondition", "precondition:\n    true"))
	}
	if c.Post == nil {
		v.sink.Add(errors.New(errors.WarnMissingSection, c.Span.Location()).
			WithSeverity(errors.Error).
			WithMessage("Contract %q is missing a postcondition, required at risk level %s", c.Name, v.file.Risk).
			WithSuggestion("Add a postcondition", "postcondition:\n    true"))
	}
	if c.Effects == nil && !hasSideEffects {
		v.sink.Add(errors.New(errors.WarnMissingSection, c.Span.Location()).
			WithSeverity(errors.Error).
			WithMessage("Contract %q is missing an effects section, required at risk level %s", c.Name, v.file.Risk).
			WithSuggestion("Declare the contract's effects", "effects:\n    touches_nothing_else"))
	}
}

func (v *intentVerifier) hasImpureCalls() bool {
	for _, call := range v.fp.Calls {
		if module, _, ok := strings.Cut(call, "."); ok && impureStdlib[module] {
			return true
		}
	}
	return false
}

// effectsFixText builds the exact effects block a user can paste
func (v *intentVerifier) effectsFixText(external []string) string {
	var b strings.Builder
	b.WriteString("effects:\n")
	if len(external) > 0 {
		b.WriteString("    modifies [" + strings.Join(external, ", ") + "]")
	}
	if len(v.fp.Emits) > 0 {
		if len(external) > 0 {
			b.WriteString("\n")
		}
		b.WriteString("    emits [" + strings.Join(v.fp.Emits, ", ") + "]")
	}
	if len(external) == 0 && len(v.fp.Emits) == 0 {
		b.WriteString("    touches_nothing_else")
	}
	return b.String()
}

// checkIntentMismatch reports W003 when a contract's name promises a
// read-only operation but the body has observable side effects.
func (v *intentVerifier) checkIntentMismatch(external []string) {
	name := v.contract.Name
	readOnly := strings.HasPrefix(name, "get_") || strings.HasPrefix(name, "read_") ||
		strings.HasPrefix(name, "list_") || strings.HasPrefix(name, "query_") ||
		strings.HasPrefix(name, "is_")
	if readOnly && (len(external) > 0 || len(v.fp.Emits) > 0) {
		v.sink.Add(errors.New(errors.WarnIntentMismatch, v.contract.Span.Location()).
			WithMessage("Contract %q reads like a query but its body has side effects", name))
	}
}

// checkAchievability reports W004 when the postcondition references result
// but the contract cannot produce one.
func (v *intentVerifier) checkAchievability() {
	c := v.contract
	if c.Post == nil {
		return
	}
	if referencesIdentifier(c.Post, "result") && c.ReturnType == nil && !c.IsExpressionBody() && !bodyReturnsValue(c.Body) {
		v.sink.Add(errors.New(errors.WarnUnachievable, c.PostSpan.Location()).
			WithMessage("Postcondition references 'result' but contract %q never returns a value", c.Name))
	}
}

func (v *intentVerifier) reportInfo() {
	c := v.contract
	if v.fp.HasRecursion {
		v.sink.Add(errors.New(errors.InfoRecursion, c.Span.Location()).
			WithMessage("Contract %q is recursive", c.Name))
	}
	if depth := maxNesting(c.Body, 0); depth > 3 {
		v.sink.Add(errors.New(errors.InfoDeepNesting, c.BodySpan.Location()).
			WithMessage("Statement nesting reaches depth %d; consider extracting a contract", depth))
	}
}

// mutationSpan finds the span of the assignment producing a mutation path
func (v *intentVerifier) mutationSpan(path string) parser.Span {
	var found *parser.Span
	walkStatements(v.contract.Body, func(s parser.StmtNode) {
		if found != nil {
			return
		}
		if a, ok := s.(*parser.AssignStmt); ok && a.TargetPath() == path {
			span := a.GetSpan()
			found = &span
		}
	})
	walkStatements(v.contract.OnFailure, func(s parser.StmtNode) {
		if found != nil {
			return
		}
		if a, ok := s.(*parser.AssignStmt); ok && a.TargetPath() == path {
			span := a.GetSpan()
			found = &span
		}
	})
	if found != nil {
		return *found
	}
	return v.contract.Span
}

// emitSpan finds the span of the emit statement for an event
func (v *intentVerifier) emitSpan(event string) parser.Span {
	var found *parser.Span
	walkStatements(v.contract.Body, func(s parser.StmtNode) {
		if found != nil {
			return
		}
		if e, ok := s.(*parser.EmitStmt); ok && e.Event == event {
			span := e.GetSpan()
			found = &span
		}
	})
	walkStatements(v.contract.OnFailure, func(s parser.StmtNode) {
		if found != nil {
			return
		}
		if e, ok := s.(*parser.EmitStmt); ok && e.Event == event {
			span := e.GetSpan()
			found = &span
		}
	})
	if found != nil {
		return *found
	}
	return v.contract.Span
}

// Shared AST walking helpers

// walkStatements applies fn to every statement in a block, recursively
func walkStatements(stmts []parser.StmtNode, fn func(parser.StmtNode)) {
	for _, stmt := range stmts {
		fn(stmt)
		switch s := stmt.(type) {
		case *parser.IfStmt:
			walkStatements(s.Then, fn)
			walkStatements(s.Else, fn)
		case *parser.WhileStmt:
			walkStatements(s.Body, fn)
		case *parser.ForStmt:
			walkStatements(s.Body, fn)
		case *parser.ParallelStmt:
			walkStatements(s.Body, fn)
		}
	}
}

// walkExpressions applies fn to every expression under a statement list
func walkExpressions(stmts []parser.StmtNode, fn func(parser.ExprNode)) {
	walkStatements(stmts, func(s parser.StmtNode) {
		switch n := s.(type) {
		case *parser.AssignStmt:
			walkExpr(n.Target, fn)
			walkExpr(n.Value, fn)
		case *parser.IfStmt:
			walkExpr(n.Cond, fn)
		case *parser.WhileStmt:
			walkExpr(n.Cond, fn)
		case *parser.ForStmt:
			walkExpr(n.Iter, fn)
		case *parser.ReturnStmt:
			walkExpr(n.Value, fn)
		case *parser.EmitStmt:
			for _, a := range n.Args {
				walkExpr(a, fn)
			}
		case *parser.ExprStmt:
			walkExpr(n.Expr, fn)
		}
	})
}

// walkExpr applies fn to an expression and all of its children
func walkExpr(e parser.ExprNode, fn func(parser.ExprNode)) {
	if e == nil {
		return
	}
	fn(e)
	switch n := e.(type) {
	case *parser.BinaryExpr:
		walkExpr(n.Left, fn)
		walkExpr(n.Right, fn)
	case *parser.UnaryExpr:
		walkExpr(n.Operand, fn)
	case *parser.CallExpr:
		for _, a := range n.Args {
			walkExpr(a, fn)
		}
		for _, kw := range n.KwArgs {
			walkExpr(kw.Value, fn)
		}
	case *parser.MethodCallExpr:
		walkExpr(n.Receiver, fn)
		for _, a := range n.Args {
			walkExpr(a, fn)
		}
		for _, kw := range n.KwArgs {
			walkExpr(kw.Value, fn)
		}
	case *parser.ObjectExpr:
		for _, kw := range n.Fields {
			walkExpr(kw.Value, fn)
		}
	case *parser.FieldAccessExpr:
		walkExpr(n.Object, fn)
	case *parser.IndexExpr:
		walkExpr(n.Object, fn)
		walkExpr(n.Index, fn)
	case *parser.ListExpr:
		for _, el := range n.Elements {
			walkExpr(el, fn)
		}
	case *parser.OldExpr:
		walkExpr(n.Operand, fn)
	case *parser.AwaitExpr:
		walkExpr(n.Operand, fn)
	}
}

// referencesIdentifier reports whether an expression mentions a name
func referencesIdentifier(e parser.ExprNode, name string) bool {
	found := false
	walkExpr(e, func(n parser.ExprNode) {
		if id, ok := n.(*parser.IdentifierExpr); ok && id.Name == name {
			found = true
		}
	})
	return found
}

// bodyReturnsValue reports whether any return statement carries a value
func bodyReturnsValue(stmts []parser.StmtNode) bool {
	found := false
	walkStatements(stmts, func(s parser.StmtNode) {
		if r, ok := s.(*parser.ReturnStmt); ok && r.Value != nil {
			found = true
		}
	})
	return found
}

// maxNesting computes the deepest statement nesting in a block
func maxNesting(stmts []parser.StmtNode, depth int) int {
	deepest := depth
	for _, stmt := range stmts {
		var inner int
		switch s := stmt.(type) {
		case *parser.IfStmt:
			inner = maxNesting(s.Then, depth+1)
			if e := maxNesting(s.Else, depth+1); e > inner {
				inner = e
			}
		case *parser.WhileStmt:
			inner = maxNesting(s.Body, depth+1)
		case *parser.ForStmt:
			inner = maxNesting(s.Body, depth+1)
		case *parser.ParallelStmt:
			inner = maxNesting(s.Body, depth+1)
		default:
			inner = depth
		}
		if inner > deepest {
			deepest = inner
		}
	}
	return deepest
}
