package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/covenant-lang/covenant/internal/vm"
)

func TestParseArgValueDetectionOrder(t *testing.T) {
	tests := []struct {
		input    string
		expected vm.Value
	}{
		{"42", vm.Int(42)},
		{"-7", vm.Int(-7)},
		{"3.14", vm.Float(3.14)},
		{"true", vm.Bool(true)},
		{"false", vm.Bool(false)},
		{"null", vm.Null()},
		{"hello", vm.String("hello")},
		{"12abc", vm.String("12abc")},
		{"", vm.String("")},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseArgValue(tt.input))
		})
	}
}

func TestParseArgValueJSON(t *testing.T) {
	list := ParseArgValue(`[1, 2.5, "x", null]`)
	require.Equal(t, vm.KindList, list.Kind)
	require.Len(t, list.L.Elems, 4)
	assert.Equal(t, vm.Int(1), list.L.Elems[0])
	assert.Equal(t, vm.Float(2.5), list.L.Elems[1])
	assert.Equal(t, vm.String("x"), list.L.Elems[2])
	assert.Equal(t, vm.Null(), list.L.Elems[3])

	obj := ParseArgValue(`{"name": "ada", "age": 36}`)
	require.Equal(t, vm.KindObject, obj.Kind)
	name, ok := obj.O.Get("name")
	require.True(t, ok)
	assert.Equal(t, vm.String("ada"), name)

	// Malformed JSON falls through to string.
	assert.Equal(t, vm.String("{broken"), ParseArgValue("{broken"))
}

func TestParseArgs(t *testing.T) {
	kwargs, err := ParseArgs([]string{"n=10", "name=ada", "rate=0.5"})
	require.NoError(t, err)
	assert.Equal(t, vm.Int(10), kwargs["n"])
	assert.Equal(t, vm.String("ada"), kwargs["name"])
	assert.Equal(t, vm.Float(0.5), kwargs["rate"])

	_, err = ParseArgs([]string{"no-equals"})
	assert.Error(t, err)
}
