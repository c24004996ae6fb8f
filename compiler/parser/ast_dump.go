package parser

import (
	"fmt"
	"strings"

	"github.com/covenant-lang/covenant/compiler/lexer"
)

// DumpFile renders the AST as an indented tree for the parse verb
func DumpFile(f *File) string {
	var b strings.Builder
	fmt.Fprintf(&b, "file intent=%q scope=%s risk=%s\n", f.Intent, f.Scope, f.Risk)
	if len(f.Requires) > 0 {
		names := make([]string, len(f.Requires))
		for i, r := range f.Requires {
			names[i] = r.Name
		}
		fmt.Fprintf(&b, "  requires [%s]\n", strings.Join(names, ", "))
	}
	for _, use := range f.Uses {
		if use.Alias != "" {
			fmt.Fprintf(&b, "  use %s as %s\n", use.Module, use.Alias)
		} else {
			fmt.Fprintf(&b, "  use %s\n", use.Module)
		}
	}
	for _, decl := range f.Decls {
		dumpDecl(&b, decl, 1)
	}
	return b.String()
}

func indent(b *strings.Builder, depth int) {
	b.WriteString(strings.Repeat("  ", depth))
}

func dumpDecl(b *strings.Builder, decl DeclNode, depth int) {
	switch d := decl.(type) {
	case *ContractDecl:
		indent(b, depth)
		mods := ""
		if d.Pure {
			mods += "pure "
		}
		if d.Async {
			mods += "async "
		}
		params := make([]string, len(d.Params))
		for i, p := range d.Params {
			params[i] = p.Name
			if p.Type != nil {
				params[i] += ": " + p.Type.String()
			}
		}
		fmt.Fprintf(b, "%scontract %s(%s)", mods, d.Name, strings.Join(params, ", "))
		if d.ReturnType != nil {
			fmt.Fprintf(b, " -> %s", d.ReturnType.String())
		}
		b.WriteByte('\n')
		if d.Pre != nil {
			indent(b, depth+1)
			fmt.Fprintf(b, "precondition: %s\n", DumpExpr(d.Pre))
		}
		if d.Post != nil {
			indent(b, depth+1)
			fmt.Fprintf(b, "postcondition: %s\n", DumpExpr(d.Post))
		}
		if d.Effects != nil {
			indent(b, depth+1)
			b.WriteString("effects:\n")
			dumpNameList(b, "modifies", d.Effects.Modifies, depth+2)
			dumpNameList(b, "reads", d.Effects.Reads, depth+2)
			dumpNameList(b, "emits", d.Effects.Emits, depth+2)
			if d.Effects.TouchesNothingElse {
				indent(b, depth+2)
				b.WriteString("touches_nothing_else\n")
			}
		}
		if d.Permissions != nil {
			indent(b, depth+1)
			b.WriteString("permissions:\n")
			dumpNameList(b, "grants", d.Permissions.Grants, depth+2)
			dumpNameList(b, "denies", d.Permissions.Denies, depth+2)
			if d.Permissions.Escalation != "" {
				indent(b, depth+2)
				fmt.Fprintf(b, "escalation %s\n", d.Permissions.Escalation)
			}
		}
		if d.IsExpressionBody() {
			indent(b, depth+1)
			fmt.Fprintf(b, "= %s\n", DumpExpr(d.ExprBody))
		}
		if d.HasBody {
			indent(b, depth+1)
			b.WriteString("body:\n")
			dumpBlock(b, d.Body, depth+2)
		}
		if d.HasOnFailure {
			indent(b, depth+1)
			b.WriteString("on_failure:\n")
			dumpBlock(b, d.OnFailure, depth+2)
		}

	case *TypeDecl:
		indent(b, depth)
		fmt.Fprintf(b, "type %s\n", d.Name)
		for _, f := range d.Fields {
			indent(b, depth+1)
			fmt.Fprintf(b, "%s: %s\n", f.Name, f.Type.String())
		}

	case *SharedDecl:
		indent(b, depth)
		fmt.Fprintf(b, "shared %s: %s\n", d.Name, d.Type.String())
	}
}

func dumpNameList(b *strings.Builder, clause string, refs []NameRef, depth int) {
	if len(refs) == 0 {
		return
	}
	names := make([]string, len(refs))
	for i, r := range refs {
		names[i] = r.Name
	}
	indent(b, depth)
	fmt.Fprintf(b, "%s [%s]\n", clause, strings.Join(names, ", "))
}

func dumpBlock(b *strings.Builder, stmts []StmtNode, depth int) {
	for _, stmt := range stmts {
		dumpStmt(b, stmt, depth)
	}
}

func dumpStmt(b *strings.Builder, stmt StmtNode, depth int) {
	indent(b, depth)
	switch s := stmt.(type) {
	case *AssignStmt:
		fmt.Fprintf(b, "%s = %s\n", DumpExpr(s.Target), DumpExpr(s.Value))
	case *IfStmt:
		fmt.Fprintf(b, "if %s:\n", DumpExpr(s.Cond))
		dumpBlock(b, s.Then, depth+1)
		if len(s.Else) > 0 {
			indent(b, depth)
			b.WriteString("else:\n")
			dumpBlock(b, s.Else, depth+1)
		}
	case *WhileStmt:
		fmt.Fprintf(b, "while %s:\n", DumpExpr(s.Cond))
		dumpBlock(b, s.Body, depth+1)
	case *ForStmt:
		fmt.Fprintf(b, "for %s in %s:\n", s.Var, DumpExpr(s.Iter))
		dumpBlock(b, s.Body, depth+1)
	case *ReturnStmt:
		if s.Value != nil {
			fmt.Fprintf(b, "return %s\n", DumpExpr(s.Value))
		} else {
			b.WriteString("return\n")
		}
	case *EmitStmt:
		args := make([]string, len(s.Args))
		for i, a := range s.Args {
			args[i] = DumpExpr(a)
		}
		fmt.Fprintf(b, "emit %s(%s)\n", s.Event, strings.Join(args, ", "))
	case *ParallelStmt:
		b.WriteString("parallel:\n")
		dumpBlock(b, s.Body, depth+1)
	case *ExprStmt:
		fmt.Fprintf(b, "%s\n", DumpExpr(s.Expr))
	}
}

// DumpExpr renders an expression in surface syntax
func DumpExpr(e ExprNode) string {
	switch n := e.(type) {
	case *LiteralExpr:
		switch v := n.Value.(type) {
		case string:
			return fmt.Sprintf("%q", v)
		case nil:
			return "null"
		default:
			return fmt.Sprintf("%v", v)
		}
	case *IdentifierExpr:
		return n.Name
	case *BinaryExpr:
		return fmt.Sprintf("(%s %s %s)", DumpExpr(n.Left), n.Operator.Symbol(), DumpExpr(n.Right))
	case *UnaryExpr:
		if n.Operator == lexer.TOKEN_NOT {
			return fmt.Sprintf("(not %s)", DumpExpr(n.Operand))
		}
		return fmt.Sprintf("(-%s)", DumpExpr(n.Operand))
	case *CallExpr:
		return n.Callee + "(" + dumpArgs(n.Args, n.KwArgs) + ")"
	case *MethodCallExpr:
		return DumpExpr(n.Receiver) + "." + n.Method + "(" + dumpArgs(n.Args, n.KwArgs) + ")"
	case *ObjectExpr:
		return n.TypeName + "(" + dumpArgs(nil, n.Fields) + ")"
	case *FieldAccessExpr:
		return DumpExpr(n.Object) + "." + n.Field
	case *IndexExpr:
		return DumpExpr(n.Object) + "[" + DumpExpr(n.Index) + "]"
	case *ListExpr:
		parts := make([]string, len(n.Elements))
		for i, el := range n.Elements {
			parts[i] = DumpExpr(el)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case *OldExpr:
		return "old(" + DumpExpr(n.Operand) + ")"
	case *HasExpr:
		return "has " + n.Capability
	case *AwaitExpr:
		return "await " + DumpExpr(n.Operand)
	default:
		return "<?>"
	}
}

func dumpArgs(args []ExprNode, kwargs []KwArg) string {
	parts := make([]string, 0, len(args)+len(kwargs))
	for _, a := range args {
		parts = append(parts, DumpExpr(a))
	}
	for _, kw := range kwargs {
		parts = append(parts, kw.Name+": "+DumpExpr(kw.Value))
	}
	return strings.Join(parts, ", ")
}
