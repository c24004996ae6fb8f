package vm

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/covenant-lang/covenant/compiler/errors"
	"github.com/covenant-lang/covenant/internal/compiler/bytecode"
)

// Limits are the runtime-enforced resource caps
type Limits struct {
	CallDepth      int   // maximum call frame depth
	LoopIterations int64 // per-site while-loop iteration cap
	RangeLength    int64 // range(n) clamp
}

// DefaultLimits returns the canonical resource caps
func DefaultLimits() Limits {
	return Limits{
		CallDepth:      256,
		LoopIterations: 1_000_000,
		RangeLength:    10_000_000,
	}
}

// EmittedEvent records one emit statement's execution
type EmittedEvent struct {
	Name string
	Args []Value
}

// frame is a per-contract call frame
type frame struct {
	contract   *bytecode.ContractInfo
	locals     []Value
	old        []Value // postcondition snapshots, keyed by compile-time slot
	loopCounts []int64
	ip         int
}

// VM is the stack virtual machine. It is single-threaded: one invocation
// runs to completion before the next, and only host module calls block.
type VM struct {
	module  *bytecode.Module
	stack   []Value
	frames  []frame
	shared  []Value
	modules map[string]HostModule
	handles *HandleRegistry
	limits  Limits
	logger  *zap.Logger
	stdout  io.Writer
	events  []EmittedEvent
}

// New creates a VM for a compiled module with default limits and no host
// modules registered.
func New(module *bytecode.Module) *VM {
	shared := make([]Value, len(module.Shared))
	for i := range shared {
		shared[i] = Null()
	}
	return &VM{
		module:  module,
		modules: map[string]HostModule{},
		handles: NewHandleRegistry(),
		limits:  DefaultLimits(),
		logger:  zap.NewNop(),
		stdout:  os.Stdout,
		shared:  shared,
	}
}

// RegisterModule adds a host module to the dispatch table
func (vm *VM) RegisterModule(m HostModule) {
	vm.modules[m.Name()] = m
}

// SetLogger installs a structured logger for dispatch and invocation traces
func (vm *VM) SetLogger(l *zap.Logger) {
	if l != nil {
		vm.logger = l
	}
}

// SetStdout redirects builtin print output
func (vm *VM) SetStdout(w io.Writer) {
	vm.stdout = w
}

// SetLimits overrides the resource caps. Caps above the defaults are
// clamped back down; the defaults are ceilings, not suggestions.
func (vm *VM) SetLimits(l Limits) {
	def := DefaultLimits()
	if l.CallDepth <= 0 || l.CallDepth > def.CallDepth {
		l.CallDepth = def.CallDepth
	}
	if l.LoopIterations <= 0 || l.LoopIterations > def.LoopIterations {
		l.LoopIterations = def.LoopIterations
	}
	if l.RangeLength <= 0 || l.RangeLength > def.RangeLength {
		l.RangeLength = def.RangeLength
	}
	vm.limits = l
}

// Handles exposes the host handle registry to host modules
func (vm *VM) Handles() *HandleRegistry {
	return vm.handles
}

// Events returns the events emitted during the last invocation
func (vm *VM) Events() []EmittedEvent {
	return vm.events
}

// SetShared sets a shared cell by name, for embedding and tests
func (vm *VM) SetShared(name string, v Value) bool {
	for i, cell := range vm.module.Shared {
		if cell.Name == name {
			vm.shared[i] = v
			return true
		}
	}
	return false
}

// GetShared reads a shared cell by name
func (vm *VM) GetShared(name string) (Value, bool) {
	for i, cell := range vm.module.Shared {
		if cell.Name == name {
			return vm.shared[i], true
		}
	}
	return Null(), false
}

// Invoke runs a contract by name. Positional arguments bind first; keyword
// arguments bind by parameter name. A missing required argument is a
// runtime error.
func (vm *VM) Invoke(name string, args []Value, kwargs map[string]Value) (Value, *RuntimeError) {
	info, _, ok := vm.module.Contract(name)
	if !ok {
		return Null(), &RuntimeError{
			Code:     ErrTypeError,
			Message:  fmt.Sprintf("no contract named %q", name),
			Location: errors.SourceLocation{File: vm.module.Name},
		}
	}

	bound := make([]Value, info.NumParams)
	seen := make([]bool, info.NumParams)
	if len(args) > int(info.NumParams) {
		return Null(), &RuntimeError{
			Code:    ErrTypeError,
			Message: fmt.Sprintf("contract %q takes %d argument(s), got %d", name, info.NumParams, len(args)),
		}
	}
	for i, a := range args {
		bound[i] = a
		seen[i] = true
	}
	for k, v := range kwargs {
		idx := -1
		for i, p := range info.ParamNames {
			if p == k {
				idx = i
				break
			}
		}
		if idx < 0 {
			return Null(), &RuntimeError{
				Code:    ErrTypeError,
				Message: fmt.Sprintf("contract %q has no parameter %q", name, k),
			}
		}
		if seen[idx] {
			return Null(), &RuntimeError{
				Code:    ErrTypeError,
				Message: fmt.Sprintf("parameter %q bound more than once", k),
			}
		}
		bound[idx] = v
		seen[idx] = true
	}
	for i, ok := range seen {
		if !ok {
			return Null(), &RuntimeError{
				Code:    ErrMissingArgument,
				Message: fmt.Sprintf("missing argument %q for contract %q", info.ParamNames[i], name),
			}
		}
	}

	vm.stack = vm.stack[:0]
	vm.frames = vm.frames[:0]
	vm.events = nil

	vm.logger.Debug("invoke", zap.String("contract", name), zap.Int("args", len(bound)))

	if rerr := vm.pushFrame(info, bound); rerr != nil {
		return Null(), rerr
	}
	return vm.run()
}

func (vm *VM) pushFrame(info *bytecode.ContractInfo, args []Value) *RuntimeError {
	if len(vm.frames) >= vm.limits.CallDepth {
		return &RuntimeError{
			Code:     ErrCallDepthExceeded,
			Message:  fmt.Sprintf("call depth exceeds limit %d", vm.limits.CallDepth),
			Location: vm.currentLocation(),
		}
	}
	locals := make([]Value, info.NumLocals)
	for i := range locals {
		locals[i] = Null()
	}
	copy(locals, args)
	f := frame{
		contract: info,
		locals:   locals,
		ip:       int(info.Entry),
	}
	if info.NumOldSlots > 0 {
		f.old = make([]Value, info.NumOldSlots)
	}
	if vm.module.NumLoopSites > 0 {
		f.loopCounts = make([]int64, vm.module.NumLoopSites)
	}
	vm.frames = append(vm.frames, f)
	return nil
}

func (vm *VM) currentLocation() errors.SourceLocation {
	if len(vm.frames) == 0 {
		return errors.SourceLocation{File: vm.module.Name}
	}
	return vm.module.LocationAt(vm.frames[len(vm.frames)-1].ip)
}

func (vm *VM) errAt(ip int, code, format string, args ...interface{}) *RuntimeError {
	return &RuntimeError{
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		Location: vm.module.LocationAt(ip),
	}
}

func (vm *VM) push(v Value) {
	vm.stack = append(vm.stack, v)
}

func (vm *VM) pop() Value {
	v := vm.stack[len(vm.stack)-1]
	vm.stack = vm.stack[:len(vm.stack)-1]
	return v
}

// run executes instructions until the outermost frame returns. Runtime
// errors unwind all frames; pre/postcondition failures divert into the
// contract's on_failure region when one exists.
func (vm *VM) run() (Value, *RuntimeError) {
	code := vm.module.Code
	for len(vm.frames) > 0 {
		f := &vm.frames[len(vm.frames)-1]
		if f.ip < 0 || f.ip >= len(code) {
			return Null(), vm.errAt(f.ip, ErrTypeError, "instruction pointer out of range")
		}
		ip := f.ip
		ins := code[ip]
		f.ip++

		switch ins.Op {
		case bytecode.OpConstant:
			vm.push(vm.constant(ins.A))

		case bytecode.OpLoadLocal:
			vm.push(f.locals[ins.A])

		case bytecode.OpStoreLocal:
			f.locals[ins.A] = vm.pop()

		case bytecode.OpLoadField:
			obj := vm.pop()
			name := vm.module.Constants[ins.A].Str
			if obj.Kind != KindObject {
				return Null(), vm.errAt(ip, ErrTypeError, "cannot read field %q of %s", name, obj.Kind)
			}
			v, ok := obj.O.Get(name)
			if !ok {
				return Null(), vm.errAt(ip, ErrTypeError, "object %s has no field %q", obj.O.Ctor, name)
			}
			vm.push(v)

		case bytecode.OpStoreField:
			value := vm.pop()
			obj := vm.pop()
			name := vm.module.Constants[ins.A].Str
			if obj.Kind != KindObject {
				return Null(), vm.errAt(ip, ErrTypeError, "cannot write field %q of %s", name, obj.Kind)
			}
			obj.O.Set(name, value)

		case bytecode.OpMakeList:
			n := int(ins.A)
			elems := make([]Value, n)
			copy(elems, vm.stack[len(vm.stack)-n:])
			vm.stack = vm.stack[:len(vm.stack)-n]
			vm.push(NewList(elems))

		case bytecode.OpIndexGet:
			idx := vm.pop()
			obj := vm.pop()
			v, rerr := vm.indexGet(ip, obj, idx)
			if rerr != nil {
				return Null(), rerr
			}
			vm.push(v)

		case bytecode.OpIndexSet:
			value := vm.pop()
			idx := vm.pop()
			obj := vm.pop()
			if rerr := vm.indexSet(ip, obj, idx, value); rerr != nil {
				return Null(), rerr
			}

		case bytecode.OpAdd, bytecode.OpSub, bytecode.OpMul, bytecode.OpDiv, bytecode.OpMod:
			right := vm.pop()
			left := vm.pop()
			v, rerr := vm.arith(ip, ins.Op, left, right)
			if rerr != nil {
				return Null(), rerr
			}
			vm.push(v)

		case bytecode.OpNegate:
			v := vm.pop()
			switch v.Kind {
			case KindInt:
				if v.I == math.MinInt64 {
					return Null(), vm.errAt(ip, ErrIntegerOverflow, "integer overflow negating %d", v.I)
				}
				vm.push(Int(-v.I))
			case KindFloat:
				vm.push(Float(-v.F))
			default:
				return Null(), vm.errAt(ip, ErrTypeError, "cannot negate %s", v.Kind)
			}

		case bytecode.OpEqual:
			right := vm.pop()
			left := vm.pop()
			vm.push(Bool(left.Equals(right)))

		case bytecode.OpNotEqual:
			right := vm.pop()
			left := vm.pop()
			vm.push(Bool(!left.Equals(right)))

		case bytecode.OpLess, bytecode.OpLessEqual, bytecode.OpGreater, bytecode.OpGreaterEqual:
			right := vm.pop()
			left := vm.pop()
			v, rerr := vm.compare(ip, ins.Op, left, right)
			if rerr != nil {
				return Null(), rerr
			}
			vm.push(v)

		case bytecode.OpNot:
			vm.push(Bool(!vm.pop().IsTruthy()))

		case bytecode.OpJump:
			if ins.B >= 0 {
				f.loopCounts[ins.B]++
				if f.loopCounts[ins.B] > vm.limits.LoopIterations {
					return Null(), vm.errAt(ip, ErrLoopLimitExceeded,
						"while loop exceeded %d iterations", vm.limits.LoopIterations)
				}
			}
			f.ip += int(ins.A)

		case bytecode.OpJumpIfFalse:
			if !vm.pop().IsTruthy() {
				f.ip += int(ins.A)
			}

		case bytecode.OpCall:
			callee := &vm.module.Contracts[ins.A]
			argc := int(ins.B)
			args := make([]Value, argc)
			copy(args, vm.stack[len(vm.stack)-argc:])
			vm.stack = vm.stack[:len(vm.stack)-argc]
			if rerr := vm.pushFrame(callee, args); rerr != nil {
				rerr.Location = vm.module.LocationAt(ip)
				return Null(), rerr
			}

		case bytecode.OpCallModule:
			v, rerr := vm.callModule(ip, ins)
			if rerr != nil {
				return Null(), rerr
			}
			vm.push(v)

		case bytecode.OpReturn:
			result := vm.pop()
			vm.frames = vm.frames[:len(vm.frames)-1]
			if len(vm.frames) == 0 {
				return result, nil
			}
			vm.push(result)

		case bytecode.OpEmit:
			argc := int(ins.B)
			args := make([]Value, argc)
			copy(args, vm.stack[len(vm.stack)-argc:])
			vm.stack = vm.stack[:len(vm.stack)-argc]
			name := vm.module.Events[ins.A]
			vm.events = append(vm.events, EmittedEvent{Name: name, Args: args})
			vm.logger.Debug("emit", zap.String("event", name), zap.Int("args", argc))

		case bytecode.OpOldSnapshot:
			f.old[ins.A] = vm.pop()

		case bytecode.OpLoadOld:
			vm.push(f.old[ins.A])

		case bytecode.OpAssertPre:
			cond := vm.pop()
			if !cond.IsTruthy() {
				if f.contract.OnFailureEntry >= 0 {
					f.ip = int(f.contract.OnFailureEntry)
					continue
				}
				return Null(), vm.errAt(ip, ErrPreconditionFailed,
					"precondition of contract %q failed", f.contract.Name)
			}

		case bytecode.OpAssertPost:
			cond := vm.pop()
			if !cond.IsTruthy() {
				if f.contract.OnFailureEntry >= 0 {
					f.ip = int(f.contract.OnFailureEntry)
					continue
				}
				return Null(), vm.errAt(ip, ErrPostconditionFailed,
					"postcondition of contract %q failed", f.contract.Name)
			}

		case bytecode.OpPop:
			vm.pop()

		case bytecode.OpLoadShared:
			vm.push(vm.shared[ins.A])

		case bytecode.OpStoreShared:
			vm.shared[ins.A] = vm.pop()

		case bytecode.OpHalt:
			if len(vm.stack) > 0 {
				return vm.pop(), nil
			}
			return Null(), nil

		default:
			return Null(), vm.errAt(ip, ErrTypeError, "unknown opcode %d", ins.Op)
		}
	}
	return Null(), nil
}

func (vm *VM) constant(idx int32) Value {
	c := vm.module.Constants[idx]
	switch c.Kind {
	case bytecode.ConstInt:
		return Int(c.Int)
	case bytecode.ConstFloat:
		return Float(c.Float)
	case bytecode.ConstString:
		return String(c.Str)
	case bytecode.ConstBool:
		return Bool(c.Bool)
	default:
		return Null()
	}
}

// arith implements the checked arithmetic opcodes
func (vm *VM) arith(ip int, op bytecode.Opcode, left, right Value) (Value, *RuntimeError) {
	// Division always produces Float.
	if op == bytecode.OpDiv {
		lf, lok := left.toFloat()
		rf, rok := right.toFloat()
		if !lok || !rok {
			return Null(), vm.errAt(ip, ErrTypeError, "cannot divide %s by %s", left.Kind, right.Kind)
		}
		if rf == 0 {
			return Null(), vm.errAt(ip, ErrDivisionByZero, "division by zero")
		}
		return Float(lf / rf), nil
	}

	if left.Kind == KindInt && right.Kind == KindInt {
		return vm.intArith(ip, op, left.I, right.I)
	}
	if left.Kind == KindFloat || right.Kind == KindFloat {
		lf, lok := left.toFloat()
		rf, rok := right.toFloat()
		if lok && rok {
			switch op {
			case bytecode.OpAdd:
				return Float(lf + rf), nil
			case bytecode.OpSub:
				return Float(lf - rf), nil
			case bytecode.OpMul:
				return Float(lf * rf), nil
			case bytecode.OpMod:
				if rf == 0 {
					return Null(), vm.errAt(ip, ErrDivisionByZero, "modulo by zero")
				}
				return Float(math.Mod(lf, rf)), nil
			}
		}
	}
	if op == bytecode.OpAdd {
		if left.Kind == KindString && right.Kind == KindString {
			return String(left.S + right.S), nil
		}
		if left.Kind == KindList && right.Kind == KindList {
			elems := make([]Value, 0, len(left.L.Elems)+len(right.L.Elems))
			elems = append(elems, left.L.Elems...)
			elems = append(elems, right.L.Elems...)
			return NewList(elems), nil
		}
	}
	return Null(), vm.errAt(ip, ErrTypeError, "invalid operand types for %s: %s and %s",
		op, left.Kind, right.Kind)
}

func (vm *VM) intArith(ip int, op bytecode.Opcode, a, b int64) (Value, *RuntimeError) {
	switch op {
	case bytecode.OpAdd:
		sum := a + b
		if (a > 0 && b > 0 && sum < 0) || (a < 0 && b < 0 && sum >= 0) {
			return Null(), vm.errAt(ip, ErrIntegerOverflow, "integer overflow in %d + %d", a, b)
		}
		return Int(sum), nil
	case bytecode.OpSub:
		diff := a - b
		if (a >= 0 && b < 0 && diff < 0) || (a < 0 && b > 0 && diff >= 0) {
			return Null(), vm.errAt(ip, ErrIntegerOverflow, "integer overflow in %d - %d", a, b)
		}
		return Int(diff), nil
	case bytecode.OpMul:
		if a == 0 || b == 0 {
			return Int(0), nil
		}
		if (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
			return Null(), vm.errAt(ip, ErrIntegerOverflow, "integer overflow in %d * %d", a, b)
		}
		prod := a * b
		if prod/a != b {
			return Null(), vm.errAt(ip, ErrIntegerOverflow, "integer overflow in %d * %d", a, b)
		}
		return Int(prod), nil
	case bytecode.OpMod:
		if b == 0 {
			return Null(), vm.errAt(ip, ErrDivisionByZero, "modulo by zero")
		}
		if a == math.MinInt64 && b == -1 {
			return Int(0), nil
		}
		return Int(a % b), nil
	default:
		return Null(), vm.errAt(ip, ErrTypeError, "invalid integer operation %s", op)
	}
}

// toFloat widens a numeric value to float64
func (v Value) toFloat() (float64, bool) {
	switch v.Kind {
	case KindInt:
		return float64(v.I), true
	case KindFloat:
		return v.F, true
	default:
		return 0, false
	}
}

// compare implements the relational opcodes
func (vm *VM) compare(ip int, op bytecode.Opcode, left, right Value) (Value, *RuntimeError) {
	var cmp int
	switch {
	case left.Kind == KindString && right.Kind == KindString:
		cmp = strings.Compare(left.S, right.S)
	default:
		lf, lok := left.toFloat()
		rf, rok := right.toFloat()
		if !lok || !rok {
			return Null(), vm.errAt(ip, ErrTypeError, "cannot compare %s with %s", left.Kind, right.Kind)
		}
		switch {
		case lf < rf:
			cmp = -1
		case lf > rf:
			cmp = 1
		}
	}
	switch op {
	case bytecode.OpLess:
		return Bool(cmp < 0), nil
	case bytecode.OpLessEqual:
		return Bool(cmp <= 0), nil
	case bytecode.OpGreater:
		return Bool(cmp > 0), nil
	default:
		return Bool(cmp >= 0), nil
	}
}

func (vm *VM) indexGet(ip int, obj, idx Value) (Value, *RuntimeError) {
	if idx.Kind != KindInt {
		return Null(), vm.errAt(ip, ErrTypeError, "index must be Int, found %s", idx.Kind)
	}
	i := idx.I
	switch obj.Kind {
	case KindList:
		if i < 0 || i >= int64(len(obj.L.Elems)) {
			return Null(), vm.errAt(ip, ErrTypeError, "list index %d out of range [0, %d)", i, len(obj.L.Elems))
		}
		return obj.L.Elems[i], nil
	case KindString:
		runes := []rune(obj.S)
		if i < 0 || i >= int64(len(runes)) {
			return Null(), vm.errAt(ip, ErrTypeError, "string index %d out of range [0, %d)", i, len(runes))
		}
		return String(string(runes[i])), nil
	default:
		return Null(), vm.errAt(ip, ErrTypeError, "cannot index %s", obj.Kind)
	}
}

func (vm *VM) indexSet(ip int, obj, idx, value Value) *RuntimeError {
	if obj.Kind != KindList {
		return vm.errAt(ip, ErrTypeError, "cannot index-assign %s", obj.Kind)
	}
	if idx.Kind != KindInt {
		return vm.errAt(ip, ErrTypeError, "index must be Int, found %s", idx.Kind)
	}
	i := idx.I
	if i < 0 || i >= int64(len(obj.L.Elems)) {
		return vm.errAt(ip, ErrTypeError, "list index %d out of range [0, %d)", i, len(obj.L.Elems))
	}
	obj.L.Elems[i] = value
	return nil
}

// callModule executes an OpCallModule instruction: builtins, object
// constructions, and host module dispatch.
func (vm *VM) callModule(ip int, ins bytecode.Instruction) (Value, *RuntimeError) {
	site := vm.module.Sites[ins.A]
	argc := int(ins.B)
	args := make([]Value, argc)
	copy(args, vm.stack[len(vm.stack)-argc:])
	vm.stack = vm.stack[:len(vm.stack)-argc]

	switch site.Kind {
	case bytecode.SiteBuiltin:
		return vm.callBuiltin(ip, site.Method, args)

	case bytecode.SiteConstruct:
		obj := &Object{Ctor: site.Module}
		obj.Names = append(obj.Names, site.KwNames...)
		obj.Values = append(obj.Values, args...)
		return NewObject(obj), nil

	default:
		nkw := len(site.KwNames)
		positional := args[:argc-nkw]
		kwargs := map[string]Value{}
		for i, name := range site.KwNames {
			kwargs[name] = args[argc-nkw+i]
		}
		mod, ok := vm.modules[site.Module]
		if !ok {
			return Null(), vm.errAt(ip, ErrHostModule, "module %q is not loaded", site.Module)
		}
		vm.logger.Debug("dispatch",
			zap.String("module", site.Module),
			zap.String("method", site.Method),
			zap.Int("args", argc))
		result, err := mod.Call(site.Method, positional, kwargs)
		if err != nil {
			return Null(), vm.errAt(ip, ErrHostModule, "%s", err.Error())
		}
		return result, nil
	}
}

// callBuiltin implements the VM-level builtins and their resource caps
func (vm *VM) callBuiltin(ip int, name string, args []Value) (Value, *RuntimeError) {
	switch name {
	case "range":
		if len(args) != 1 || args[0].Kind != KindInt {
			return Null(), vm.errAt(ip, ErrTypeError, "range expects one Int argument")
		}
		n := args[0].I
		if n < 0 {
			n = 0
		}
		if n > vm.limits.RangeLength {
			n = vm.limits.RangeLength
		}
		elems := make([]Value, n)
		for i := int64(0); i < n; i++ {
			elems[i] = Int(i)
		}
		return NewList(elems), nil

	case "len":
		if len(args) != 1 {
			return Null(), vm.errAt(ip, ErrTypeError, "len expects one argument")
		}
		switch args[0].Kind {
		case KindList:
			return Int(int64(len(args[0].L.Elems))), nil
		case KindString:
			return Int(int64(len([]rune(args[0].S)))), nil
		case KindObject:
			return Int(int64(len(args[0].O.Names))), nil
		default:
			return Null(), vm.errAt(ip, ErrTypeError, "len of %s", args[0].Kind)
		}

	case "print":
		parts := make([]string, len(args))
		for i, a := range args {
			parts[i] = a.String()
		}
		fmt.Fprintln(vm.stdout, strings.Join(parts, " "))
		return Null(), nil

	case "str":
		if len(args) != 1 {
			return Null(), vm.errAt(ip, ErrTypeError, "str expects one argument")
		}
		return String(args[0].String()), nil

	default:
		return Null(), vm.errAt(ip, ErrTypeError, "unknown builtin %q", name)
	}
}
