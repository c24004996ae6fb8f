package host

import (
	"math"

	"github.com/covenant-lang/covenant/internal/vm"
)

// MathModule exposes pure numeric helpers
type MathModule struct{}

// NewMathModule creates the math host module
func NewMathModule() *MathModule {
	return &MathModule{}
}

// Name implements vm.HostModule
func (m *MathModule) Name() string { return "math" }

// Call implements vm.HostModule
func (m *MathModule) Call(method string, args []vm.Value, kwargs map[string]vm.Value) (vm.Value, error) {
	switch method {
	case "abs":
		v, err := oneNumeric(m.Name(), method, args)
		if err != nil {
			return vm.Null(), err
		}
		if v.Kind == vm.KindInt {
			if v.I == math.MinInt64 {
				return vm.Null(), &vm.ModuleError{Module: m.Name(), Method: method, Detail: "integer overflow"}
			}
			if v.I < 0 {
				return vm.Int(-v.I), nil
			}
			return v, nil
		}
		return vm.Float(math.Abs(v.F)), nil

	case "max", "min":
		if len(args) != 2 {
			return vm.Null(), &vm.ModuleError{Module: m.Name(), Method: method, Detail: "expects 2 arguments"}
		}
		a, aok := asFloat(args[0])
		b, bok := asFloat(args[1])
		if !aok || !bok {
			return vm.Null(), &vm.ModuleError{Module: m.Name(), Method: method, Detail: "arguments must be numeric"}
		}
		pickFirst := a >= b
		if method == "min" {
			pickFirst = a <= b
		}
		if pickFirst {
			return args[0], nil
		}
		return args[1], nil

	case "sqrt":
		v, err := oneNumeric(m.Name(), method, args)
		if err != nil {
			return vm.Null(), err
		}
		f, _ := asFloat(v)
		if f < 0 {
			return vm.Null(), &vm.ModuleError{Module: m.Name(), Method: method, Detail: "negative operand"}
		}
		return vm.Float(math.Sqrt(f)), nil

	case "pow":
		if len(args) != 2 {
			return vm.Null(), &vm.ModuleError{Module: m.Name(), Method: method, Detail: "expects 2 arguments"}
		}
		a, aok := asFloat(args[0])
		b, bok := asFloat(args[1])
		if !aok || !bok {
			return vm.Null(), &vm.ModuleError{Module: m.Name(), Method: method, Detail: "arguments must be numeric"}
		}
		return vm.Float(math.Pow(a, b)), nil

	case "floor":
		v, err := oneNumeric(m.Name(), method, args)
		if err != nil {
			return vm.Null(), err
		}
		f, _ := asFloat(v)
		return vm.Int(int64(math.Floor(f))), nil

	case "ceil":
		v, err := oneNumeric(m.Name(), method, args)
		if err != nil {
			return vm.Null(), err
		}
		f, _ := asFloat(v)
		return vm.Int(int64(math.Ceil(f))), nil

	default:
		return vm.Null(), &vm.ModuleError{Module: m.Name(), Method: method, Detail: "unknown method"}
	}
}

func oneNumeric(module, method string, args []vm.Value) (vm.Value, error) {
	if len(args) != 1 {
		return vm.Null(), &vm.ModuleError{Module: module, Method: method, Detail: "expects 1 argument"}
	}
	if args[0].Kind != vm.KindInt && args[0].Kind != vm.KindFloat {
		return vm.Null(), &vm.ModuleError{Module: module, Method: method, Detail: "argument must be numeric"}
	}
	return args[0], nil
}

func asFloat(v vm.Value) (float64, bool) {
	switch v.Kind {
	case vm.KindInt:
		return float64(v.I), true
	case vm.KindFloat:
		return v.F, true
	default:
		return 0, false
	}
}
