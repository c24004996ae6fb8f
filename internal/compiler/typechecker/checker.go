package typechecker

import (
	"github.com/covenant-lang/covenant/compiler/errors"
	"github.com/covenant-lang/covenant/compiler/lexer"
	"github.com/covenant-lang/covenant/compiler/parser"
)

// Checker performs gradual type checking over a file's contracts
type Checker struct {
	file      *parser.File
	sink      *errors.Collector
	contracts map[string]*parser.ContractDecl
	typeDecls map[string]*parser.TypeDecl
	shared    map[string]*Type
}

// builtins are the VM-level functions available without imports
var builtins = map[string]struct {
	params []*Type
	result *Type
}{
	"range": {params: []*Type{IntType}, result: ListOf(IntType)},
	"len":   {params: []*Type{AnyType}, result: IntType},
	"print": {params: nil, result: NullType}, // variadic
	"str":   {params: []*Type{AnyType}, result: StringType},
}

// NewChecker creates a checker for a file, reporting into the shared sink
func NewChecker(file *parser.File, sink *errors.Collector) *Checker {
	c := &Checker{
		file:      file,
		sink:      sink,
		contracts: map[string]*parser.ContractDecl{},
		typeDecls: map[string]*parser.TypeDecl{},
		shared:    map[string]*Type{},
	}
	for _, decl := range file.Contracts() {
		c.contracts[decl.Name] = decl
	}
	for _, decl := range file.TypeDecls() {
		c.typeDecls[decl.Name] = decl
	}
	for _, decl := range file.SharedDecls() {
		c.shared[decl.Name] = FromAST(decl.Type)
	}
	return c
}

// Check type-checks every contract in the file
func (c *Checker) Check() {
	for _, contract := range c.file.Contracts() {
		c.checkContract(contract)
	}
}

// env is the per-contract variable typing environment
type env map[string]*Type

func (c *Checker) checkContract(contract *parser.ContractDecl) {
	scope := env{}
	for _, p := range contract.Params {
		scope[p.Name] = FromAST(p.Type)
	}

	declared := FromAST(contract.ReturnType)

	if contract.Pre != nil {
		t := c.inferExpr(contract.Pre, scope)
		c.requireBool(t, contract.Pre, "precondition")
	}

	if contract.IsExpressionBody() {
		got := c.inferExpr(contract.ExprBody, scope)
		if contract.ReturnType != nil && !Assignable(declared, got) {
			c.sink.Add(errors.New(errors.ErrReturnType, contract.ExprBody.GetSpan().Location()).
				WithMessage("Contract %q declares return type %s but its body has type %s",
					contract.Name, declared, got))
		}
	} else {
		c.checkBlock(contract.Body, scope, contract, declared)
	}

	if contract.HasOnFailure {
		c.checkBlock(contract.OnFailure, scope, contract, declared)
	}

	if contract.Post != nil {
		postScope := env{}
		for k, v := range scope {
			postScope[k] = v
		}
		postScope["result"] = declared
		t := c.inferExpr(contract.Post, postScope)
		c.requireBool(t, contract.Post, "postcondition")
	}
}

func (c *Checker) requireBool(t *Type, e parser.ExprNode, what string) {
	if !t.IsAny() && t.Name != parser.TypeBool {
		c.sink.Add(errors.New(errors.ErrOperandType, e.GetSpan().Location()).
			WithMessage("A %s must be Bool, found %s", what, t))
	}
}

func (c *Checker) checkBlock(stmts []parser.StmtNode, scope env, contract *parser.ContractDecl, declared *Type) {
	for _, stmt := range stmts {
		c.checkStmt(stmt, scope, contract, declared)
	}
}

func (c *Checker) checkStmt(stmt parser.StmtNode, scope env, contract *parser.ContractDecl, declared *Type) {
	switch s := stmt.(type) {
	case *parser.AssignStmt:
		value := c.inferExpr(s.Value, scope)
		if id, ok := s.Target.(*parser.IdentifierExpr); ok {
			if existing, bound := scope[id.Name]; bound {
				scope[id.Name] = Unify(existing, value)
			} else if sharedType, isShared := c.shared[id.Name]; isShared {
				if !Assignable(sharedType, value) {
					c.sink.Add(errors.New(errors.ErrOperandType, s.GetSpan().Location()).
						WithMessage("Cannot assign %s to shared state %q of type %s", value, id.Name, sharedType))
				}
			} else {
				scope[id.Name] = value
			}
		} else {
			// Dotted lvalue: check the field when the receiver's nominal
			// type is known.
			c.checkFieldAssign(s, value, scope)
		}

	case *parser.IfStmt:
		c.requireBool(c.inferExpr(s.Cond, scope), s.Cond, "condition")
		c.checkBlock(s.Then, scope, contract, declared)
		c.checkBlock(s.Else, scope, contract, declared)

	case *parser.WhileStmt:
		c.requireBool(c.inferExpr(s.Cond, scope), s.Cond, "condition")
		c.checkBlock(s.Body, scope, contract, declared)

	case *parser.ForStmt:
		iter := c.inferExpr(s.Iter, scope)
		if !iter.IsAny() && !iter.IsList() {
			c.sink.Add(errors.New(errors.ErrOperandType, s.Iter.GetSpan().Location()).
				WithMessage("for-in requires a List, found %s", iter))
		}
		scope[s.Var] = iter.Elem()
		c.checkBlock(s.Body, scope, contract, declared)

	case *parser.ReturnStmt:
		if s.Value == nil {
			if contract.ReturnType != nil {
				c.sink.Add(errors.New(errors.ErrReturnType, s.GetSpan().Location()).
					WithMessage("Contract %q declares return type %s but returns no value",
						contract.Name, declared))
			}
			return
		}
		got := c.inferExpr(s.Value, scope)
		if contract.ReturnType != nil && !Assignable(declared, got) {
			c.sink.Add(errors.New(errors.ErrReturnType, s.Value.GetSpan().Location()).
				WithMessage("Contract %q declares return type %s but returns %s",
					contract.Name, declared, got))
		}

	case *parser.EmitStmt:
		for _, arg := range s.Args {
			c.inferExpr(arg, scope)
		}

	case *parser.ParallelStmt:
		c.checkBlock(s.Body, scope, contract, declared)

	case *parser.ExprStmt:
		c.inferExpr(s.Expr, scope)
	}
}

func (c *Checker) checkFieldAssign(s *parser.AssignStmt, value *Type, scope env) {
	fa, ok := s.Target.(*parser.FieldAccessExpr)
	if !ok {
		return
	}
	recv := c.inferExpr(fa.Object, scope)
	decl, known := c.typeDecls[recv.Name]
	if !known {
		return
	}
	for _, f := range decl.Fields {
		if f.Name == fa.Field {
			fieldType := FromAST(f.Type)
			if !Assignable(fieldType, value) {
				c.sink.Add(errors.New(errors.ErrOperandType, s.GetSpan().Location()).
					WithMessage("Cannot assign %s to field %s.%s of type %s",
						value, recv.Name, fa.Field, fieldType))
			}
			return
		}
	}
}

// inferExpr computes the type of an expression, reporting diagnostics for
// definite mismatches.
func (c *Checker) inferExpr(e parser.ExprNode, scope env) *Type {
	if e == nil {
		return AnyType
	}
	switch n := e.(type) {
	case *parser.LiteralExpr:
		switch n.Value.(type) {
		case int64:
			return IntType
		case float64:
			return FloatType
		case string:
			return StringType
		case bool:
			return BoolType
		default:
			return NullType
		}

	case *parser.IdentifierExpr:
		if t, ok := scope[n.Name]; ok {
			return t
		}
		if t, ok := c.shared[n.Name]; ok {
			return t
		}
		return AnyType

	case *parser.BinaryExpr:
		return c.inferBinary(n, scope)

	case *parser.UnaryExpr:
		operand := c.inferExpr(n.Operand, scope)
		if n.Operator == lexer.TOKEN_NOT {
			c.requireBool(operand, n.Operand, "'not' operand")
			return BoolType
		}
		// Unary minus
		if !operand.IsAny() && !operand.IsNumeric() {
			c.sink.Add(errors.New(errors.ErrOperandType, n.GetSpan().Location()).
				WithMessage("Unary minus requires a numeric operand, found %s", operand))
			return AnyType
		}
		return operand

	case *parser.CallExpr:
		return c.inferCall(n, scope)

	case *parser.MethodCallExpr:
		c.inferExpr(n.Receiver, scope)
		for _, a := range n.Args {
			c.inferExpr(a, scope)
		}
		for _, kw := range n.KwArgs {
			c.inferExpr(kw.Value, scope)
		}
		return AnyType

	case *parser.ObjectExpr:
		return c.inferObject(n, scope)

	case *parser.FieldAccessExpr:
		recv := c.inferExpr(n.Object, scope)
		if decl, ok := c.typeDecls[recv.Name]; ok {
			for _, f := range decl.Fields {
				if f.Name == n.Field {
					return FromAST(f.Type)
				}
			}
			c.sink.Add(errors.New(errors.ErrOperandType, n.GetSpan().Location()).
				WithMessage("Type %s has no field %q", recv.Name, n.Field))
		}
		return AnyType

	case *parser.IndexExpr:
		obj := c.inferExpr(n.Object, scope)
		idx := c.inferExpr(n.Index, scope)
		if !idx.IsAny() && idx.Name != parser.TypeInt {
			c.sink.Add(errors.New(errors.ErrOperandType, n.Index.GetSpan().Location()).
				WithMessage("Index must be Int, found %s", idx))
		}
		if obj.IsList() {
			return obj.Elem()
		}
		if obj.Name == parser.TypeString {
			return StringType
		}
		return AnyType

	case *parser.ListExpr:
		var elem *Type
		for _, el := range n.Elements {
			elem = Unify(elem, c.inferExpr(el, scope))
		}
		if elem == nil {
			elem = AnyType
		}
		return ListOf(elem)

	case *parser.OldExpr:
		return c.inferExpr(n.Operand, scope)

	case *parser.HasExpr:
		return BoolType

	case *parser.AwaitExpr:
		return c.inferExpr(n.Operand, scope)

	default:
		return AnyType
	}
}

// inferBinary applies the arithmetic and comparison typing rules
func (c *Checker) inferBinary(n *parser.BinaryExpr, scope env) *Type {
	left := c.inferExpr(n.Left, scope)
	right := c.inferExpr(n.Right, scope)

	switch n.Operator {
	case lexer.TOKEN_AND, lexer.TOKEN_OR:
		c.requireBool(left, n.Left, "boolean operand")
		c.requireBool(right, n.Right, "boolean operand")
		return BoolType

	case lexer.TOKEN_EQUAL_EQUAL, lexer.TOKEN_BANG_EQUAL,
		lexer.TOKEN_LESS, lexer.TOKEN_LESS_EQUAL,
		lexer.TOKEN_GREATER, lexer.TOKEN_GREATER_EQUAL:
		if !Comparable(left, right) {
			c.sink.Add(errors.New(errors.ErrOperandType, n.GetSpan().Location()).
				WithMessage("Cannot compare %s with %s", left, right))
		}
		return BoolType

	case lexer.TOKEN_SLASH:
		// Division always yields Float, even for exact Int division.
		if c.numericOperands(n, left, right, "/") {
			return FloatType
		}
		return AnyType

	case lexer.TOKEN_PLUS:
		if left.IsAny() || right.IsAny() {
			return AnyType
		}
		switch {
		case left.Name == parser.TypeInt && right.Name == parser.TypeInt:
			return IntType
		case left.IsNumeric() && right.IsNumeric():
			return FloatType
		case left.Name == parser.TypeString && right.Name == parser.TypeString:
			return StringType
		case left.IsList() && right.IsList():
			return ListOf(Unify(left.Elem(), right.Elem()))
		default:
			c.sink.Add(errors.New(errors.ErrOperandType, n.GetSpan().Location()).
				WithMessage("Invalid operand types for +: %s and %s", left, right))
			return AnyType
		}

	case lexer.TOKEN_MINUS, lexer.TOKEN_STAR, lexer.TOKEN_PERCENT:
		if left.IsAny() || right.IsAny() {
			return AnyType
		}
		if left.IsNumeric() && right.IsNumeric() {
			if left.Name == parser.TypeInt && right.Name == parser.TypeInt {
				return IntType
			}
			return FloatType
		}
		c.sink.Add(errors.New(errors.ErrOperandType, n.GetSpan().Location()).
			WithMessage("Invalid operand types for %s: %s and %s", n.Operator.Symbol(), left, right))
		return AnyType

	default:
		return AnyType
	}
}

func (c *Checker) numericOperands(n *parser.BinaryExpr, left, right *Type, op string) bool {
	ok := true
	if !left.IsAny() && !left.IsNumeric() {
		ok = false
	}
	if !right.IsAny() && !right.IsNumeric() {
		ok = false
	}
	if !ok {
		c.sink.Add(errors.New(errors.ErrOperandType, n.GetSpan().Location()).
			WithMessage("Invalid operand types for %s: %s and %s", op, left, right))
	}
	return ok
}

// inferCall checks a direct contract or builtin call
func (c *Checker) inferCall(n *parser.CallExpr, scope env) *Type {
	if target, ok := c.contracts[n.Callee]; ok {
		c.checkContractCall(n, target, scope)
		return FromAST(target.ReturnType)
	}

	argTypes := make([]*Type, len(n.Args))
	for i, a := range n.Args {
		argTypes[i] = c.inferExpr(a, scope)
	}
	for _, kw := range n.KwArgs {
		c.inferExpr(kw.Value, scope)
	}

	if sig, ok := builtins[n.Callee]; ok {
		if sig.params != nil && len(n.Args)+len(n.KwArgs) != len(sig.params) {
			c.sink.Add(errors.New(errors.ErrArityMismatch, n.GetSpan().Location()).
				WithMessage("%s expects %d argument(s), got %d", n.Callee, len(sig.params), len(n.Args)+len(n.KwArgs)))
		} else if sig.params != nil {
			for i, a := range n.Args {
				if !Assignable(sig.params[i], argTypes[i]) {
					c.sink.Add(errors.New(errors.ErrArgumentType, a.GetSpan().Location()).
						WithMessage("Argument %d of %s must be %s, found %s", i+1, n.Callee, sig.params[i], argTypes[i]))
				}
			}
		}
		return sig.result
	}

	return AnyType
}

// checkContractCall validates arity, keyword names, and argument types
func (c *Checker) checkContractCall(n *parser.CallExpr, target *parser.ContractDecl, scope env) {
	params := target.Params
	total := len(n.Args) + len(n.KwArgs)
	if total != len(params) || len(n.Args) > len(params) {
		c.sink.Add(errors.New(errors.ErrArityMismatch, n.GetSpan().Location()).
			WithMessage("Contract %q expects %d argument(s), got %d", target.Name, len(params), total))
		return
	}

	paramIndex := map[string]int{}
	for i, p := range params {
		paramIndex[p.Name] = i
	}

	bound := map[int]bool{}
	for i, a := range n.Args {
		bound[i] = true
		got := c.inferExpr(a, scope)
		want := FromAST(params[i].Type)
		if !Assignable(want, got) {
			c.sink.Add(errors.New(errors.ErrArgumentType, a.GetSpan().Location()).
				WithMessage("Argument %q of %q must be %s, found %s", params[i].Name, target.Name, want, got))
		}
	}
	for _, kw := range n.KwArgs {
		idx, ok := paramIndex[kw.Name]
		if !ok {
			c.sink.Add(errors.New(errors.ErrArgumentType, kw.Span.Location()).
				WithMessage("Contract %q has no parameter %q", target.Name, kw.Name))
			continue
		}
		if bound[idx] {
			c.sink.Add(errors.New(errors.ErrArgumentType, kw.Span.Location()).
				WithMessage("Parameter %q of %q bound more than once", kw.Name, target.Name))
			continue
		}
		bound[idx] = true
		got := c.inferExpr(kw.Value, scope)
		want := FromAST(params[idx].Type)
		if !Assignable(want, got) {
			c.sink.Add(errors.New(errors.ErrArgumentType, kw.Value.GetSpan().Location()).
				WithMessage("Argument %q of %q must be %s, found %s", kw.Name, target.Name, want, got))
		}
	}
}

// inferObject checks an object construction against its type declaration
func (c *Checker) inferObject(n *parser.ObjectExpr, scope env) *Type {
	decl, known := c.typeDecls[n.TypeName]
	if !known {
		for _, kw := range n.Fields {
			c.inferExpr(kw.Value, scope)
		}
		return &Type{Name: n.TypeName}
	}

	fieldType := map[string]*Type{}
	for _, f := range decl.Fields {
		fieldType[f.Name] = FromAST(f.Type)
	}
	for _, kw := range n.Fields {
		got := c.inferExpr(kw.Value, scope)
		want, ok := fieldType[kw.Name]
		if !ok {
			c.sink.Add(errors.New(errors.ErrArgumentType, kw.Span.Location()).
				WithMessage("Type %s has no field %q", n.TypeName, kw.Name))
			continue
		}
		if !Assignable(want, got) {
			c.sink.Add(errors.New(errors.ErrArgumentType, kw.Value.GetSpan().Location()).
				WithMessage("Field %s.%s must be %s, found %s", n.TypeName, kw.Name, want, got))
		}
	}
	return &Type{Name: n.TypeName}
}
