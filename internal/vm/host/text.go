package host

import (
	"strings"

	"github.com/covenant-lang/covenant/internal/vm"
)

// TextModule exposes pure string helpers
type TextModule struct{}

// NewTextModule creates the text host module
func NewTextModule() *TextModule {
	return &TextModule{}
}

// Name implements vm.HostModule
func (t *TextModule) Name() string { return "text" }

// Call implements vm.HostModule
func (t *TextModule) Call(method string, args []vm.Value, kwargs map[string]vm.Value) (vm.Value, error) {
	switch method {
	case "upper":
		s, err := oneString(t.Name(), method, args)
		if err != nil {
			return vm.Null(), err
		}
		return vm.String(strings.ToUpper(s)), nil

	case "lower":
		s, err := oneString(t.Name(), method, args)
		if err != nil {
			return vm.Null(), err
		}
		return vm.String(strings.ToLower(s)), nil

	case "trim":
		s, err := oneString(t.Name(), method, args)
		if err != nil {
			return vm.Null(), err
		}
		return vm.String(strings.TrimSpace(s)), nil

	case "length":
		s, err := oneString(t.Name(), method, args)
		if err != nil {
			return vm.Null(), err
		}
		return vm.Int(int64(len([]rune(s)))), nil

	case "contains":
		if len(args) != 2 || args[0].Kind != vm.KindString || args[1].Kind != vm.KindString {
			return vm.Null(), &vm.ModuleError{Module: t.Name(), Method: method, Detail: "expects 2 string arguments"}
		}
		return vm.Bool(strings.Contains(args[0].S, args[1].S)), nil

	case "split":
		if len(args) != 2 || args[0].Kind != vm.KindString || args[1].Kind != vm.KindString {
			return vm.Null(), &vm.ModuleError{Module: t.Name(), Method: method, Detail: "expects 2 string arguments"}
		}
		parts := strings.Split(args[0].S, args[1].S)
		elems := make([]vm.Value, len(parts))
		for i, p := range parts {
			elems[i] = vm.String(p)
		}
		return vm.NewList(elems), nil

	case "join":
		if len(args) != 2 || args[0].Kind != vm.KindList || args[1].Kind != vm.KindString {
			return vm.Null(), &vm.ModuleError{Module: t.Name(), Method: method, Detail: "expects a list and a separator"}
		}
		parts := make([]string, len(args[0].L.Elems))
		for i, el := range args[0].L.Elems {
			parts[i] = el.String()
		}
		return vm.String(strings.Join(parts, args[1].S)), nil

	default:
		return vm.Null(), &vm.ModuleError{Module: t.Name(), Method: method, Detail: "unknown method"}
	}
}

func oneString(module, method string, args []vm.Value) (string, error) {
	if len(args) != 1 || args[0].Kind != vm.KindString {
		return "", &vm.ModuleError{Module: module, Method: method, Detail: "expects 1 string argument"}
	}
	return args[0].S, nil
}
