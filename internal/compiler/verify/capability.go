package verify

import (
	"sort"
	"strings"

	"github.com/covenant-lang/covenant/compiler/errors"
	"github.com/covenant-lang/covenant/compiler/parser"
)

// Capability runs the capability and information flow control pass.
//
// Flow labels attached to types ([sensitive], [pii]) propagate through
// assignments flow-insensitively: every assignment unions the labels of
// all identifiers on the right-hand side into the target's label set.
// Sinks are module call arguments and emit arguments; a labeled value
// reaching a sink without a matching grant is F001.
//
// Header `requires:` capabilities are checked at entry: a required
// capability that no contract ever tests with `has` is F004.
func Capability(file *parser.File, sink *errors.Collector) {
	typeLabels := collectTypeLabels(file)

	// F004: every required capability must be checked with `has`
	// somewhere in the file.
	checked := map[string]bool{}
	for _, c := range file.Contracts() {
		walkExpressions(contractStatements(c), func(e parser.ExprNode) {
			if h, ok := e.(*parser.HasExpr); ok {
				checked[h.Capability] = true
			}
		})
	}
	for _, req := range file.Requires {
		if !checked[req.Name] {
			sink.Add(errors.New(errors.ErrUncheckedCapability, req.Span.Location()).
				WithMessage("Required capability %q is never checked with 'has'", req.Name).
				WithSuggestion("Guard the capability", "if has "+req.Name+":"))
		}
	}

	for _, c := range file.Contracts() {
		cv := &capabilityVerifier{
			file:       file,
			contract:   c,
			sink:       sink,
			typeLabels: typeLabels,
		}
		cv.run()
	}
}

// collectTypeLabels maps nominal type names to per-field flow labels
func collectTypeLabels(file *parser.File) map[string]map[string][]string {
	labels := map[string]map[string][]string{}
	for _, t := range file.TypeDecls() {
		fields := map[string][]string{}
		for _, f := range t.Fields {
			if f.Type != nil {
				if l := f.Type.FlowLabels(); len(l) > 0 {
					fields[f.Name] = l
				}
			}
		}
		if len(fields) > 0 {
			labels[t.Name] = fields
		}
	}
	return labels
}

type capabilityVerifier struct {
	file       *parser.File
	contract   *parser.ContractDecl
	sink       *errors.Collector
	typeLabels map[string]map[string][]string
}

func (cv *capabilityVerifier) run() {
	c := cv.contract
	perms := c.Permissions

	if perms != nil {
		// F006: a capability in both grants and denies
		for _, g := range perms.Grants {
			if perms.DeniesCapability(g.Name) {
				cv.sink.Add(errors.New(errors.ErrGrantDenyConflict, g.Span.Location()).
					WithMessage("Capability %q appears in both grants and denies", g.Name))
			}
		}
	}

	// F005: has-checks must name a declared capability
	declared := func(cap string) bool {
		for _, r := range cv.file.Requires {
			if r.Name == cap || strings.HasPrefix(cap, r.Name+".") {
				return true
			}
		}
		return perms != nil && perms.GrantsCapability(cap)
	}
	walkExpressions(contractStatements(c), func(e parser.ExprNode) {
		if h, ok := e.(*parser.HasExpr); ok && !declared(h.Capability) {
			cv.sink.Add(errors.New(errors.ErrUnknownCapability, h.Span.Location()).
				WithMessage("Capability %q is not declared in requires or grants", h.Capability))
		}
	})

	// F002/F003: module calls against the contract's own permissions
	walkExpressions(contractStatements(c), func(e parser.ExprNode) {
		m, ok := e.(*parser.MethodCallExpr)
		if !ok {
			return
		}
		recv, ok := m.Receiver.(*parser.IdentifierExpr)
		if !ok {
			return
		}
		full := recv.Name + "." + m.Method
		if perms == nil {
			return
		}
		if perms.DeniesCapability(full) || perms.DeniesCapability(recv.Name) {
			cv.sink.Add(errors.New(errors.ErrPermissionDenied, m.Span.Location()).
				WithMessage("Call to %q uses a capability denied by contract %q", full, c.Name))
			return
		}
		if len(perms.Grants) > 0 && !perms.GrantsCapability(full) && !perms.GrantsCapability(recv.Name) {
			cv.sink.Add(errors.New(errors.ErrUngrantedSource, m.Span.Location()).
				WithMessage("Read from %q which is not listed in grants", full).
				WithSuggestion("Grant the source", "grants ["+recv.Name+"]"))
		}
	})

	cv.checkFlows()
}

// checkFlows performs the flow-insensitive label propagation and reports
// F001 for labeled values reaching sinks without a grant.
func (cv *capabilityVerifier) checkFlows() {
	c := cv.contract
	env := map[string]map[string]bool{}

	addLabel := func(name, label string) {
		if env[name] == nil {
			env[name] = map[string]bool{}
		}
		env[name][label] = true
	}

	// Seed from annotated parameter types, including labels on fields of
	// nominal parameter types.
	for _, p := range c.Params {
		if p.Type == nil {
			continue
		}
		for _, l := range p.Type.FlowLabels() {
			addLabel(p.Name, l)
		}
		base := p.Type.Base()
		if base.Kind == parser.TypeKindNamed {
			for _, fieldLabels := range cv.typeLabels[base.Name] {
				for _, l := range fieldLabels {
					addLabel(p.Name, l)
				}
			}
		}
	}

	stmts := contractStatements(c)

	// Propagate until a fixpoint; the label lattice is finite so the
	// statement count bounds the number of useful rounds.
	for range stmts {
		changed := false
		walkStatements(stmts, func(s parser.StmtNode) {
			a, ok := s.(*parser.AssignStmt)
			if !ok {
				return
			}
			dst := parser.RootName(a.Target)
			if dst == "" {
				return
			}
			for _, src := range identifierRoots(a.Value) {
				for l := range env[src] {
					if env[dst] == nil || !env[dst][l] {
						addLabel(dst, l)
						changed = true
					}
				}
			}
		})
		if !changed {
			break
		}
	}

	granted := func(label string) bool {
		return c.Permissions != nil && c.Permissions.GrantsCapability(label)
	}

	reportSink := func(arg parser.ExprNode, sinkName string) {
		for _, src := range identifierRoots(arg) {
			for l := range env[src] {
				if !granted(l) {
					cv.sink.Add(errors.New(errors.ErrTaintedFlow, arg.GetSpan().Location()).
						WithMessage("Value labeled [%s] flows to %s without a matching grant", l, sinkName).
						WithSuggestion("Grant the flow", "grants ["+l+"]"))
				}
			}
		}
	}

	walkStatements(stmts, func(s parser.StmtNode) {
		if e, ok := s.(*parser.EmitStmt); ok {
			for _, arg := range e.Args {
				reportSink(arg, "emit "+e.Event)
			}
		}
	})
	walkExpressions(stmts, func(e parser.ExprNode) {
		m, ok := e.(*parser.MethodCallExpr)
		if !ok {
			return
		}
		recv, ok := m.Receiver.(*parser.IdentifierExpr)
		if !ok {
			return
		}
		sinkName := recv.Name + "." + m.Method
		for _, arg := range m.Args {
			reportSink(arg, sinkName)
		}
		for _, kw := range m.KwArgs {
			reportSink(kw.Value, sinkName)
		}
	})
}

// identifierRoots collects the root names of every identifier chain in an
// expression.
func identifierRoots(e parser.ExprNode) []string {
	roots := map[string]bool{}
	walkExpr(e, func(n parser.ExprNode) {
		switch id := n.(type) {
		case *parser.IdentifierExpr:
			roots[id.Name] = true
		case *parser.FieldAccessExpr:
			if r := parser.RootName(id); r != "" {
				roots[r] = true
			}
		}
	})
	out := make([]string, 0, len(roots))
	for r := range roots {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

// contractStatements returns a contract's executable statements: body,
// on_failure, and the expression body wrapped as a statement.
func contractStatements(c *parser.ContractDecl) []parser.StmtNode {
	stmts := make([]parser.StmtNode, 0, len(c.Body)+len(c.OnFailure)+1)
	stmts = append(stmts, c.Body...)
	stmts = append(stmts, c.OnFailure...)
	if c.ExprBody != nil {
		stmts = append(stmts, &parser.ExprStmt{Expr: c.ExprBody, Span: c.ExprBody.GetSpan()})
	}
	return stmts
}
