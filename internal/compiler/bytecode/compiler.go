package bytecode

import (
	"fmt"
	"sort"

	"github.com/covenant-lang/covenant/compiler/lexer"
	"github.com/covenant-lang/covenant/compiler/parser"
)

// Compiler lowers a verified AST to a bytecode module. It assumes the
// verification passes reported no errors; residual inconsistencies are
// returned as compile errors.
type Compiler struct {
	file   *parser.File
	module *Module

	constCache    map[string]int32
	contractIndex map[string]int32
	sharedIndex   map[string]int32
	eventIndex    map[string]int32
	builtinNames  map[string]bool
	capabilities  map[string]bool

	// Per-contract state
	current       *parser.ContractDecl
	locals        map[string]int32
	numLocals     int32
	oldSlots      map[string]int32
	oldOrder      []string
	resultSlot    int32
	epilogueJumps []int
	handlerJumps  []int
	inHandler     bool
}

// Builtin functions resolved by the VM itself rather than a host module
var builtinFunctions = map[string]bool{
	"range": true,
	"len":   true,
	"print": true,
	"str":   true,
}

// Compile lowers a file to a bytecode module
func Compile(file *parser.File) (*Module, error) {
	c := &Compiler{
		file:          file,
		module:        &Module{Name: fileName(file)},
		constCache:    map[string]int32{},
		contractIndex: map[string]int32{},
		sharedIndex:   map[string]int32{},
		eventIndex:    map[string]int32{},
		builtinNames:  builtinFunctions,
		capabilities:  map[string]bool{},
	}

	for _, use := range file.Uses {
		c.module.Imports = append(c.module.Imports, use.Module)
	}
	for _, req := range file.Requires {
		c.capabilities[req.Name] = true
	}

	for _, s := range file.SharedDecls() {
		c.sharedIndex[s.Name] = int32(len(c.module.Shared))
		c.module.Shared = append(c.module.Shared, SharedCell{
			Name:    s.Name,
			TypeTag: typeTag(s.Type),
		})
	}

	contracts := file.Contracts()
	for i, decl := range contracts {
		c.contractIndex[decl.Name] = int32(i)
	}
	for _, decl := range contracts {
		if err := c.compileContract(decl); err != nil {
			return nil, err
		}
	}

	return c.module, nil
}

func fileName(file *parser.File) string {
	if len(file.Decls) > 0 {
		return file.Decls[0].GetSpan().File
	}
	return file.Span.File
}

func typeTag(t *parser.TypeNode) byte {
	if t == nil {
		return TagAny
	}
	switch t.Base().Name {
	case parser.TypeInt:
		return TagInt
	case parser.TypeFloat:
		return TagFloat
	case parser.TypeString:
		return TagString
	case parser.TypeBool:
		return TagBool
	case parser.TypeNull:
		return TagNull
	case parser.TypeList:
		return TagList
	case parser.TypeObject:
		return TagObject
	case parser.TypeAny:
		return TagAny
	default:
		return TagNamed
	}
}

// compileContract lowers one contract: precondition, old snapshots, body,
// postcondition epilogue, and the on_failure handler region.
func (c *Compiler) compileContract(decl *parser.ContractDecl) error {
	c.current = decl
	c.locals = map[string]int32{}
	c.numLocals = 0
	c.oldSlots = map[string]int32{}
	c.oldOrder = nil
	c.epilogueJumps = nil
	c.handlerJumps = nil
	c.inHandler = false

	info := ContractInfo{
		Name:           decl.Name,
		Entry:          int32(len(c.module.Code)),
		OnFailureEntry: -1,
		NumParams:      int32(len(decl.Params)),
		ReturnTag:      typeTag(decl.ReturnType),
	}
	if decl.Async {
		info.Flags |= FlagAsync
	}
	if decl.Pure {
		info.Flags |= FlagPure
	}
	if decl.Pre != nil {
		info.Flags |= FlagHasPre
	}
	if decl.Post != nil {
		info.Flags |= FlagHasPost
	}
	if decl.HasOnFailure {
		info.Flags |= FlagHasOnFailure
	}
	if decl.IsExpressionBody() {
		info.Flags |= FlagExprBody
	}
	for _, p := range decl.Params {
		info.ParamNames = append(info.ParamNames, p.Name)
		c.addLocal(p.Name)
	}
	c.resultSlot = c.addLocal("__result")

	// Precondition runs before anything else in the frame.
	if decl.Pre != nil {
		if err := c.compileExpr(decl.Pre); err != nil {
			return err
		}
		c.emit(OpAssertPre, 0, -1, decl.Pre.GetSpan())
	}

	// Snapshot old() bases, in deterministic order.
	if decl.Post != nil {
		bases := collectOldPaths(decl.Post)
		sort.Strings(bases)
		for _, base := range bases {
			slot := int32(len(c.oldOrder))
			c.oldSlots[base] = slot
			c.oldOrder = append(c.oldOrder, base)
			if err := c.compilePathLoad(base, decl.PostSpan); err != nil {
				return err
			}
			c.emit(OpOldSnapshot, slot, -1, decl.PostSpan)
		}
	}

	// Body.
	switch {
	case decl.IsExpressionBody():
		if err := c.compileExpr(decl.ExprBody); err != nil {
			return err
		}
		c.emit(OpStoreLocal, c.resultSlot, -1, decl.ExprBody.GetSpan())
	case decl.HasBody:
		if err := c.compileBlock(decl.Body); err != nil {
			return err
		}
		// Falling off the end yields a null result.
		c.emit(OpConstant, c.nullConst(), -1, decl.Span)
		c.emit(OpStoreLocal, c.resultSlot, -1, decl.Span)
	default:
		c.emit(OpConstant, c.nullConst(), -1, decl.Span)
		c.emit(OpStoreLocal, c.resultSlot, -1, decl.Span)
	}

	// Epilogue: postcondition check, then return the candidate result.
	epilogue := len(c.module.Code)
	for _, pos := range c.epilogueJumps {
		c.patchJump(pos, epilogue)
	}
	if decl.Post != nil {
		if err := c.compileExpr(decl.Post); err != nil {
			return err
		}
		c.emit(OpAssertPost, 0, -1, decl.Post.GetSpan())
	}
	c.emit(OpLoadLocal, c.resultSlot, -1, decl.Span)
	c.emit(OpReturn, 0, -1, decl.Span)

	// on_failure handler region. Its return value substitutes for the
	// failed contract's result; no postcondition applies.
	if decl.HasOnFailure {
		info.OnFailureEntry = int32(len(c.module.Code))
		c.inHandler = true
		if err := c.compileBlock(decl.OnFailure); err != nil {
			return err
		}
		c.emit(OpConstant, c.nullConst(), -1, decl.OnFailureSpan)
		c.emit(OpStoreLocal, c.resultSlot, -1, decl.OnFailureSpan)
		handlerEnd := len(c.module.Code)
		for _, pos := range c.handlerJumps {
			c.patchJump(pos, handlerEnd)
		}
		c.emit(OpLoadLocal, c.resultSlot, -1, decl.OnFailureSpan)
		c.emit(OpReturn, 0, -1, decl.OnFailureSpan)
		c.inHandler = false
	}

	info.NumLocals = c.numLocals
	info.NumOldSlots = int32(len(c.oldOrder))
	info.ResultSlot = c.resultSlot
	c.module.Contracts = append(c.module.Contracts, info)
	return nil
}

// compileBlock lowers a statement list
func (c *Compiler) compileBlock(stmts []parser.StmtNode) error {
	for _, stmt := range stmts {
		if err := c.compileStmt(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (c *Compiler) compileStmt(stmt parser.StmtNode) error {
	switch s := stmt.(type) {
	case *parser.AssignStmt:
		return c.compileAssign(s)

	case *parser.IfStmt:
		if err := c.compileExpr(s.Cond); err != nil {
			return err
		}
		elseJump := c.emitJump(OpJumpIfFalse, s.Cond.GetSpan())
		if err := c.compileBlock(s.Then); err != nil {
			return err
		}
		if len(s.Else) > 0 {
			endJump := c.emitJump(OpJump, s.Span)
			c.patchJump(elseJump, len(c.module.Code))
			if err := c.compileBlock(s.Else); err != nil {
				return err
			}
			c.patchJump(endJump, len(c.module.Code))
		} else {
			c.patchJump(elseJump, len(c.module.Code))
		}
		return nil

	case *parser.WhileStmt:
		site := c.module.NumLoopSites
		c.module.NumLoopSites++
		condPos := len(c.module.Code)
		if err := c.compileExpr(s.Cond); err != nil {
			return err
		}
		exitJump := c.emitJump(OpJumpIfFalse, s.Cond.GetSpan())
		if err := c.compileBlock(s.Body); err != nil {
			return err
		}
		back := c.emitJump(OpJump, s.Span)
		c.module.Code[back].B = site
		c.patchJump(back, condPos)
		c.patchJump(exitJump, len(c.module.Code))
		return nil

	case *parser.ForStmt:
		return c.compileFor(s)

	case *parser.ReturnStmt:
		if s.Value != nil {
			if err := c.compileExpr(s.Value); err != nil {
				return err
			}
		} else {
			c.emit(OpConstant, c.nullConst(), -1, s.Span)
		}
		c.emit(OpStoreLocal, c.resultSlot, -1, s.Span)
		pos := c.emitJump(OpJump, s.Span)
		if c.inHandler {
			c.handlerJumps = append(c.handlerJumps, pos)
		} else {
			c.epilogueJumps = append(c.epilogueJumps, pos)
		}
		return nil

	case *parser.EmitStmt:
		for _, arg := range s.Args {
			if err := c.compileExpr(arg); err != nil {
				return err
			}
		}
		c.emit(OpEmit, c.eventID(s.Event), int32(len(s.Args)), s.Span)
		return nil

	case *parser.ParallelStmt:
		// Parallel blocks execute in textual order in the current core.
		return c.compileBlock(s.Body)

	case *parser.ExprStmt:
		if err := c.compileExpr(s.Expr); err != nil {
			return err
		}
		c.emit(OpPop, 0, -1, s.Span)
		return nil

	default:
		return fmt.Errorf("cannot lower statement at %s:%d", stmt.GetSpan().File, stmt.GetSpan().Line)
	}
}

// compileFor desugars `for x in e` into an index loop over the iterable
func (c *Compiler) compileFor(s *parser.ForStmt) error {
	iterSlot := c.addHiddenLocal()
	idxSlot := c.addHiddenLocal()
	varSlot := c.addLocal(s.Var)

	if err := c.compileExpr(s.Iter); err != nil {
		return err
	}
	c.emit(OpStoreLocal, iterSlot, -1, s.Iter.GetSpan())
	c.emit(OpConstant, c.intConst(0), -1, s.Span)
	c.emit(OpStoreLocal, idxSlot, -1, s.Span)

	condPos := len(c.module.Code)
	c.emit(OpLoadLocal, idxSlot, -1, s.Span)
	c.emit(OpLoadLocal, iterSlot, -1, s.Span)
	c.emit(OpCallModule, c.siteID(CallSite{Kind: SiteBuiltin, Method: "len"}), 1, s.Span)
	c.emit(OpLess, 0, -1, s.Span)
	exitJump := c.emitJump(OpJumpIfFalse, s.Span)

	c.emit(OpLoadLocal, iterSlot, -1, s.Span)
	c.emit(OpLoadLocal, idxSlot, -1, s.Span)
	c.emit(OpIndexGet, 0, -1, s.Span)
	c.emit(OpStoreLocal, varSlot, -1, s.Span)

	if err := c.compileBlock(s.Body); err != nil {
		return err
	}

	c.emit(OpLoadLocal, idxSlot, -1, s.Span)
	c.emit(OpConstant, c.intConst(1), -1, s.Span)
	c.emit(OpAdd, 0, -1, s.Span)
	c.emit(OpStoreLocal, idxSlot, -1, s.Span)
	back := c.emitJump(OpJump, s.Span)
	c.patchJump(back, condPos)
	c.patchJump(exitJump, len(c.module.Code))
	return nil
}

// compileAssign lowers simple and dotted assignments
func (c *Compiler) compileAssign(s *parser.AssignStmt) error {
	switch target := s.Target.(type) {
	case *parser.IdentifierExpr:
		if err := c.compileExpr(s.Value); err != nil {
			return err
		}
		if idx, shared := c.sharedIndex[target.Name]; shared {
			if _, isLocal := c.locals[target.Name]; !isLocal {
				c.emit(OpStoreShared, idx, -1, s.Span)
				return nil
			}
		}
		c.emit(OpStoreLocal, c.addLocal(target.Name), -1, s.Span)
		return nil

	case *parser.FieldAccessExpr:
		if err := c.compileExpr(target.Object); err != nil {
			return err
		}
		if err := c.compileExpr(s.Value); err != nil {
			return err
		}
		c.emit(OpStoreField, c.stringConst(target.Field), -1, s.Span)
		return nil

	default:
		return fmt.Errorf("invalid assignment target at %s:%d", s.Span.File, s.Span.Line)
	}
}

// compileExpr lowers an expression, leaving its value on the stack
func (c *Compiler) compileExpr(expr parser.ExprNode) error {
	switch e := expr.(type) {
	case *parser.LiteralExpr:
		c.emit(OpConstant, c.literalConst(e.Value), -1, e.Span)
		return nil

	case *parser.IdentifierExpr:
		return c.compileIdentifier(e)

	case *parser.BinaryExpr:
		return c.compileBinary(e)

	case *parser.UnaryExpr:
		if err := c.compileExpr(e.Operand); err != nil {
			return err
		}
		if e.Operator == lexer.TOKEN_NOT {
			c.emit(OpNot, 0, -1, e.Span)
		} else {
			c.emit(OpNegate, 0, -1, e.Span)
		}
		return nil

	case *parser.CallExpr:
		return c.compileCall(e)

	case *parser.MethodCallExpr:
		return c.compileMethodCall(e)

	case *parser.ObjectExpr:
		for _, kw := range e.Fields {
			if err := c.compileExpr(kw.Value); err != nil {
				return err
			}
		}
		names := make([]string, len(e.Fields))
		for i, kw := range e.Fields {
			names[i] = kw.Name
		}
		site := c.siteID(CallSite{Kind: SiteConstruct, Module: e.TypeName, KwNames: names})
		c.emit(OpCallModule, site, int32(len(e.Fields)), e.Span)
		return nil

	case *parser.FieldAccessExpr:
		if err := c.compileExpr(e.Object); err != nil {
			return err
		}
		c.emit(OpLoadField, c.stringConst(e.Field), -1, e.Span)
		return nil

	case *parser.IndexExpr:
		if err := c.compileExpr(e.Object); err != nil {
			return err
		}
		if err := c.compileExpr(e.Index); err != nil {
			return err
		}
		c.emit(OpIndexGet, 0, -1, e.Span)
		return nil

	case *parser.ListExpr:
		for _, el := range e.Elements {
			if err := c.compileExpr(el); err != nil {
				return err
			}
		}
		c.emit(OpMakeList, int32(len(e.Elements)), -1, e.Span)
		return nil

	case *parser.OldExpr:
		path := parser.DottedPath(e.Operand)
		if path == "" {
			return fmt.Errorf("old() requires a variable or dotted path at %s:%d", e.Span.File, e.Span.Line)
		}
		slot, ok := c.oldSlots[path]
		if !ok {
			return fmt.Errorf("old(%s) has no snapshot slot at %s:%d", path, e.Span.File, e.Span.Line)
		}
		c.emit(OpLoadOld, slot, -1, e.Span)
		return nil

	case *parser.HasExpr:
		// Capabilities resolve at entry: the check compiles to the
		// statically known answer for this compilation unit.
		held := c.capabilityHeld(e.Capability)
		c.emit(OpConstant, c.boolConst(held), -1, e.Span)
		return nil

	case *parser.AwaitExpr:
		// await desugars to a synchronous evaluation.
		return c.compileExpr(e.Operand)

	default:
		return fmt.Errorf("cannot lower expression at %s:%d", expr.GetSpan().File, expr.GetSpan().Line)
	}
}

func (c *Compiler) capabilityHeld(cap string) bool {
	perms := c.current.Permissions
	if perms != nil && perms.DeniesCapability(cap) {
		return false
	}
	if c.capabilities[cap] {
		return true
	}
	return perms != nil && perms.GrantsCapability(cap)
}

func (c *Compiler) compileIdentifier(e *parser.IdentifierExpr) error {
	if e.Name == "result" {
		if _, bound := c.locals["result"]; !bound {
			c.emit(OpLoadLocal, c.resultSlot, -1, e.Span)
			return nil
		}
	}
	if slot, ok := c.locals[e.Name]; ok {
		c.emit(OpLoadLocal, slot, -1, e.Span)
		return nil
	}
	if idx, ok := c.sharedIndex[e.Name]; ok {
		c.emit(OpLoadShared, idx, -1, e.Span)
		return nil
	}
	return fmt.Errorf("undefined name %q at %s:%d", e.Name, e.Span.File, e.Span.Line)
}

// compileBinary lowers binary operators, including the short-circuit
// forms of and/or.
func (c *Compiler) compileBinary(e *parser.BinaryExpr) error {
	switch e.Operator {
	case lexer.TOKEN_AND:
		// a and b: false when a is false without evaluating b.
		if err := c.compileExpr(e.Left); err != nil {
			return err
		}
		falseJump := c.emitJump(OpJumpIfFalse, e.Span)
		if err := c.compileExpr(e.Right); err != nil {
			return err
		}
		endJump := c.emitJump(OpJump, e.Span)
		c.patchJump(falseJump, len(c.module.Code))
		c.emit(OpConstant, c.boolConst(false), -1, e.Span)
		c.patchJump(endJump, len(c.module.Code))
		return nil

	case lexer.TOKEN_OR:
		// a or b: true when a is true without evaluating b.
		if err := c.compileExpr(e.Left); err != nil {
			return err
		}
		elseJump := c.emitJump(OpJumpIfFalse, e.Span)
		c.emit(OpConstant, c.boolConst(true), -1, e.Span)
		endJump := c.emitJump(OpJump, e.Span)
		c.patchJump(elseJump, len(c.module.Code))
		if err := c.compileExpr(e.Right); err != nil {
			return err
		}
		c.patchJump(endJump, len(c.module.Code))
		return nil
	}

	if err := c.compileExpr(e.Left); err != nil {
		return err
	}
	if err := c.compileExpr(e.Right); err != nil {
		return err
	}
	var op Opcode
	switch e.Operator {
	case lexer.TOKEN_PLUS:
		op = OpAdd
	case lexer.TOKEN_MINUS:
		op = OpSub
	case lexer.TOKEN_STAR:
		op = OpMul
	case lexer.TOKEN_SLASH:
		op = OpDiv
	case lexer.TOKEN_PERCENT:
		op = OpMod
	case lexer.TOKEN_EQUAL_EQUAL:
		op = OpEqual
	case lexer.TOKEN_BANG_EQUAL:
		op = OpNotEqual
	case lexer.TOKEN_LESS:
		op = OpLess
	case lexer.TOKEN_LESS_EQUAL:
		op = OpLessEqual
	case lexer.TOKEN_GREATER:
		op = OpGreater
	case lexer.TOKEN_GREATER_EQUAL:
		op = OpGreaterEqual
	default:
		return fmt.Errorf("cannot lower operator %s at %s:%d", e.Operator.Symbol(), e.Span.File, e.Span.Line)
	}
	c.emit(op, 0, -1, e.Span)
	return nil
}

// compileCall lowers a direct contract call or a VM builtin
func (c *Compiler) compileCall(e *parser.CallExpr) error {
	if idx, ok := c.contractIndex[e.Callee]; ok {
		args, err := c.orderArguments(e)
		if err != nil {
			return err
		}
		for _, arg := range args {
			if err := c.compileExpr(arg); err != nil {
				return err
			}
		}
		c.emit(OpCall, idx, int32(len(args)), e.Span)
		return nil
	}
	if c.builtinNames[e.Callee] {
		for _, arg := range e.Args {
			if err := c.compileExpr(arg); err != nil {
				return err
			}
		}
		site := c.siteID(CallSite{Kind: SiteBuiltin, Method: e.Callee})
		c.emit(OpCallModule, site, int32(len(e.Args)), e.Span)
		return nil
	}
	return fmt.Errorf("unknown contract %q at %s:%d", e.Callee, e.Span.File, e.Span.Line)
}

// orderArguments resolves keyword arguments against the callee's parameter
// list, producing the full positional argument sequence.
func (c *Compiler) orderArguments(e *parser.CallExpr) ([]parser.ExprNode, error) {
	target := c.findContract(e.Callee)
	if target == nil {
		return nil, fmt.Errorf("unknown contract %q", e.Callee)
	}
	if len(e.KwArgs) == 0 {
		if len(e.Args) != len(target.Params) {
			return nil, fmt.Errorf("contract %q expects %d argument(s), got %d at %s:%d",
				e.Callee, len(target.Params), len(e.Args), e.Span.File, e.Span.Line)
		}
		return e.Args, nil
	}

	ordered := make([]parser.ExprNode, len(target.Params))
	copy(ordered, e.Args)
	for _, kw := range e.KwArgs {
		found := false
		for i, p := range target.Params {
			if p.Name == kw.Name {
				if i < len(e.Args) || ordered[i] != nil {
					return nil, fmt.Errorf("parameter %q of %q bound more than once at %s:%d",
						kw.Name, e.Callee, e.Span.File, e.Span.Line)
				}
				ordered[i] = kw.Value
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("contract %q has no parameter %q at %s:%d",
				e.Callee, kw.Name, e.Span.File, e.Span.Line)
		}
	}
	for i, arg := range ordered {
		if arg == nil {
			return nil, fmt.Errorf("missing argument %q in call to %q at %s:%d",
				target.Params[i].Name, e.Callee, e.Span.File, e.Span.Line)
		}
	}
	return ordered, nil
}

func (c *Compiler) findContract(name string) *parser.ContractDecl {
	for _, decl := range c.file.Contracts() {
		if decl.Name == name {
			return decl
		}
	}
	return nil
}

// compileMethodCall lowers module dispatch: receiver.method(args, kw: v)
func (c *Compiler) compileMethodCall(e *parser.MethodCallExpr) error {
	recv, ok := e.Receiver.(*parser.IdentifierExpr)
	if !ok {
		return fmt.Errorf("method calls require a module receiver at %s:%d", e.Span.File, e.Span.Line)
	}
	if _, isLocal := c.locals[recv.Name]; isLocal {
		return fmt.Errorf("method calls on values are not supported at %s:%d", e.Span.File, e.Span.Line)
	}
	for _, arg := range e.Args {
		if err := c.compileExpr(arg); err != nil {
			return err
		}
	}
	kwNames := make([]string, len(e.KwArgs))
	for i, kw := range e.KwArgs {
		kwNames[i] = kw.Name
		if err := c.compileExpr(kw.Value); err != nil {
			return err
		}
	}
	site := c.siteID(CallSite{Kind: SiteDispatch, Module: recv.Name, Method: e.Method, KwNames: kwNames})
	c.emit(OpCallModule, site, int32(len(e.Args)+len(e.KwArgs)), e.Span)
	return nil
}

// compilePathLoad loads a dotted path (for old() snapshots)
func (c *Compiler) compilePathLoad(path string, span parser.Span) error {
	segments := splitPath(path)
	head := &parser.IdentifierExpr{Name: segments[0], Span: span}
	if err := c.compileIdentifier(head); err != nil {
		return err
	}
	for _, field := range segments[1:] {
		c.emit(OpLoadField, c.stringConst(field), -1, span)
	}
	return nil
}

func splitPath(path string) []string {
	var segments []string
	start := 0
	for i := 0; i < len(path); i++ {
		if path[i] == '.' {
			segments = append(segments, path[start:i])
			start = i + 1
		}
	}
	return append(segments, path[start:])
}

// collectOldPaths gathers the dotted paths of every old() operand
func collectOldPaths(expr parser.ExprNode) []string {
	seen := map[string]bool{}
	var walk func(parser.ExprNode)
	walk = func(e parser.ExprNode) {
		switch n := e.(type) {
		case *parser.OldExpr:
			if path := parser.DottedPath(n.Operand); path != "" {
				seen[path] = true
			}
		case *parser.BinaryExpr:
			walk(n.Left)
			walk(n.Right)
		case *parser.UnaryExpr:
			walk(n.Operand)
		case *parser.CallExpr:
			for _, a := range n.Args {
				walk(a)
			}
			for _, kw := range n.KwArgs {
				walk(kw.Value)
			}
		case *parser.MethodCallExpr:
			walk(n.Receiver)
			for _, a := range n.Args {
				walk(a)
			}
		case *parser.FieldAccessExpr:
			walk(n.Object)
		case *parser.IndexExpr:
			walk(n.Object)
			walk(n.Index)
		case *parser.ListExpr:
			for _, el := range n.Elements {
				walk(el)
			}
		case *parser.AwaitExpr:
			walk(n.Operand)
		}
	}
	walk(expr)
	paths := make([]string, 0, len(seen))
	for p := range seen {
		paths = append(paths, p)
	}
	return paths
}

// Emission helpers

func (c *Compiler) emit(op Opcode, a, b int32, span parser.Span) int {
	pos := len(c.module.Code)
	c.module.Code = append(c.module.Code, Instruction{Op: op, A: a, B: b})
	c.module.SourceMap = append(c.module.SourceMap, span.Location())
	return pos
}

// emitJump emits a jump with a placeholder offset for back-patching
func (c *Compiler) emitJump(op Opcode, span parser.Span) int {
	return c.emit(op, 0, -1, span)
}

// patchJump fills in a jump's relative offset to the target instruction
func (c *Compiler) patchJump(pos, target int) {
	c.module.Code[pos].A = int32(target - (pos + 1))
}

func (c *Compiler) addLocal(name string) int32 {
	if slot, ok := c.locals[name]; ok {
		return slot
	}
	slot := c.numLocals
	c.locals[name] = slot
	c.numLocals++
	return slot
}

func (c *Compiler) addHiddenLocal() int32 {
	slot := c.numLocals
	c.numLocals++
	return slot
}

// Constant pool helpers with caching

func (c *Compiler) addConstant(key string, con Constant) int32 {
	if idx, ok := c.constCache[key]; ok {
		return idx
	}
	idx := int32(len(c.module.Constants))
	c.module.Constants = append(c.module.Constants, con)
	c.constCache[key] = idx
	return idx
}

func (c *Compiler) intConst(v int64) int32 {
	return c.addConstant(fmt.Sprintf("i:%d", v), Constant{Kind: ConstInt, Int: v})
}

func (c *Compiler) floatConst(v float64) int32 {
	return c.addConstant(fmt.Sprintf("f:%b", v), Constant{Kind: ConstFloat, Float: v})
}

func (c *Compiler) stringConst(v string) int32 {
	return c.addConstant("s:"+v, Constant{Kind: ConstString, Str: v})
}

func (c *Compiler) boolConst(v bool) int32 {
	return c.addConstant(fmt.Sprintf("b:%v", v), Constant{Kind: ConstBool, Bool: v})
}

func (c *Compiler) nullConst() int32 {
	return c.addConstant("null", Constant{Kind: ConstNull})
}

func (c *Compiler) literalConst(v interface{}) int32 {
	switch val := v.(type) {
	case int64:
		return c.intConst(val)
	case float64:
		return c.floatConst(val)
	case string:
		return c.stringConst(val)
	case bool:
		return c.boolConst(val)
	default:
		return c.nullConst()
	}
}

func (c *Compiler) eventID(name string) int32 {
	if idx, ok := c.eventIndex[name]; ok {
		return idx
	}
	idx := int32(len(c.module.Events))
	c.module.Events = append(c.module.Events, name)
	c.eventIndex[name] = idx
	return idx
}

// siteID interns a call site, reusing identical entries
func (c *Compiler) siteID(site CallSite) int32 {
	for i, existing := range c.module.Sites {
		if existing.Kind == site.Kind && existing.Module == site.Module &&
			existing.Method == site.Method && equalStrings(existing.KwNames, site.KwNames) {
			return int32(i)
		}
	}
	c.module.Sites = append(c.module.Sites, site)
	return int32(len(c.module.Sites) - 1)
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
