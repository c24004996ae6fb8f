package commands

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/covenant-lang/covenant/internal/vm"
)

// ParseArgValue converts a CLI argument string to a runtime value using
// the fixed auto-detection order: integer, float, boolean, null, JSON
// object/array, then string.
func ParseArgValue(raw string) vm.Value {
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return vm.Int(i)
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return vm.Float(f)
	}
	switch raw {
	case "true":
		return vm.Bool(true)
	case "false":
		return vm.Bool(false)
	case "null":
		return vm.Null()
	}
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		var decoded interface{}
		if err := json.Unmarshal([]byte(raw), &decoded); err == nil {
			return jsonToValue(decoded)
		}
	}
	return vm.String(raw)
}

// jsonToValue converts decoded JSON into runtime values. JSON objects
// become anonymous objects; integral numbers become Int, all other
// numbers Float.
func jsonToValue(v interface{}) vm.Value {
	switch val := v.(type) {
	case nil:
		return vm.Null()
	case bool:
		return vm.Bool(val)
	case float64:
		if val == float64(int64(val)) {
			return vm.Int(int64(val))
		}
		return vm.Float(val)
	case string:
		return vm.String(val)
	case []interface{}:
		elems := make([]vm.Value, len(val))
		for i, el := range val {
			elems[i] = jsonToValue(el)
		}
		return vm.NewList(elems)
	case map[string]interface{}:
		obj := &vm.Object{Ctor: "Object"}
		for _, k := range sortedJSONKeys(val) {
			obj.Set(k, jsonToValue(val[k]))
		}
		return vm.NewObject(obj)
	default:
		return vm.Null()
	}
}

func sortedJSONKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j] < keys[j-1]; j-- {
			keys[j], keys[j-1] = keys[j-1], keys[j]
		}
	}
	return keys
}

// ParseArgs converts repeated --arg k=v flags into a kwargs map
func ParseArgs(pairs []string) (map[string]vm.Value, error) {
	kwargs := map[string]vm.Value{}
	for _, pair := range pairs {
		name, raw, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid argument %q: expected k=v", pair)
		}
		kwargs[name] = ParseArgValue(raw)
	}
	return kwargs, nil
}
