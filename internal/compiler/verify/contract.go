package verify

import (
	"github.com/covenant-lang/covenant/compiler/errors"
	"github.com/covenant-lang/covenant/compiler/parser"
)

// Contract runs the control-flow verification pass: return coverage,
// unreachable code, required failure handlers, and shared state access.
func Contract(file *parser.File, sink *errors.Collector) {
	shared := map[string]bool{}
	for _, s := range file.SharedDecls() {
		shared[s.Name] = true
	}

	for _, c := range file.Contracts() {
		if !c.HasBody && !c.IsExpressionBody() {
			continue
		}

		missingReturn := false
		if c.ReturnType != nil && !c.IsExpressionBody() && !allPathsReturn(c.Body) {
			missingReturn = true
			sink.Add(errors.New(errors.ErrMissingReturn, c.BodySpan.Location()).
				WithMessage("Contract %q declares return type %s but not every path returns", c.Name, c.ReturnType.String()).
				WithSuggestion("Return on every path", "return <value>"))
		}

		reportUnreachable(c.Body, sink)
		reportUnreachable(c.OnFailure, sink)

		if file.HighRisk() && !c.HasOnFailure {
			sink.Add(errors.New(errors.ErrMissingOnFailure, c.Span.Location()).
				WithMessage("Contract %q has no on_failure section, required at risk level %s", c.Name, file.Risk).
				WithSuggestion("Add a failure handler", "on_failure:\n    return null"))
		}

		if c.Post != nil && missingReturn && referencesIdentifier(c.Post, "result") {
			sink.Add(errors.New(errors.ErrResultWithoutReturn, c.PostSpan.Location()).
				WithMessage("Postcondition of %q references 'result' but not every path returns", c.Name))
		}

		checkSharedAccess(c, shared, sink)
	}
}

// allPathsReturn reports whether every execution path through a block ends
// in a return. Loops are never assumed to run, so they cannot satisfy the
// check.
func allPathsReturn(stmts []parser.StmtNode) bool {
	for _, stmt := range stmts {
		switch s := stmt.(type) {
		case *parser.ReturnStmt:
			return true
		case *parser.IfStmt:
			if len(s.Else) > 0 && allPathsReturn(s.Then) && allPathsReturn(s.Else) {
				return true
			}
		}
	}
	return false
}

// reportUnreachable reports V002 for statements following an unconditional
// return in the same block, recursively.
func reportUnreachable(stmts []parser.StmtNode, sink *errors.Collector) {
	returned := false
	for _, stmt := range stmts {
		if returned {
			sink.Add(errors.New(errors.ErrUnreachableCode, stmt.GetSpan().Location()))
			continue
		}
		switch s := stmt.(type) {
		case *parser.ReturnStmt:
			returned = true
		case *parser.IfStmt:
			reportUnreachable(s.Then, sink)
			reportUnreachable(s.Else, sink)
		case *parser.WhileStmt:
			reportUnreachable(s.Body, sink)
		case *parser.ForStmt:
			reportUnreachable(s.Body, sink)
		case *parser.ParallelStmt:
			reportUnreachable(s.Body, sink)
		}
	}
}

// checkSharedAccess reports V005 when a shared cell is read or written
// without being listed in the contract's effects.
func checkSharedAccess(c *parser.ContractDecl, shared map[string]bool, sink *errors.Collector) {
	stmts := contractStatements(c)

	report := func(name string, span parser.Span, write bool) {
		verb := "read"
		if write {
			verb = "written"
		}
		clause := "reads"
		if write {
			clause = "modifies"
		}
		sink.Add(errors.New(errors.ErrUndeclaredShared, span.Location()).
			WithMessage("Shared state %q is %s without being listed in effects", name, verb).
			WithSuggestion("Declare the access", clause+" ["+name+"]"))
	}

	coveredRead := func(name string) bool {
		if c.Effects == nil {
			return false
		}
		return c.Effects.DeclaresRead(name) || c.Effects.DeclaresModify(name)
	}
	coveredWrite := func(name string) bool {
		return c.Effects != nil && c.Effects.DeclaresModify(name)
	}

	seen := map[string]bool{}
	walkStatements(stmts, func(s parser.StmtNode) {
		a, ok := s.(*parser.AssignStmt)
		if !ok {
			return
		}
		root := parser.RootName(a.Target)
		if shared[root] && !coveredWrite(a.TargetPath()) && !seen["w:"+root] {
			seen["w:"+root] = true
			report(root, a.GetSpan(), true)
		}
	})

	walkExpressions(stmts, func(e parser.ExprNode) {
		id, ok := e.(*parser.IdentifierExpr)
		if !ok {
			return
		}
		if shared[id.Name] && !coveredRead(id.Name) && !seen["r:"+id.Name] {
			// A write diagnostic already covers the cell.
			if seen["w:"+id.Name] {
				return
			}
			seen["r:"+id.Name] = true
			report(id.Name, id.Span, false)
		}
	})
}
