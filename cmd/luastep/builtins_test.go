package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wudi/luastep/config"
	"github.com/wudi/luastep/vm"
	"github.com/rs/zerolog"
)

func TestParseArgCoercion(t *testing.T) {
	i, ok := parseArg("42").AsInt()
	require.True(t, ok)
	assert.EqualValues(t, 42, i)

	f, ok := parseArg("3.5").AsNumber()
	require.True(t, ok)
	assert.EqualValues(t, 3.5, f)

	s, ok := parseArg("hello").AsString()
	require.True(t, ok)
	assert.Equal(t, "hello", s.S)
}

func TestSumBuiltinDrivenToCompletion(t *testing.T) {
	fn, ok := builtins["sum"]
	require.True(t, ok)

	log := zerolog.Nop()
	results, err := driveToResult(log, config.DefaultTariffs(), fn, []vm.Value{vm.Int(1), vm.Int(2), vm.Int(3)})
	require.NoError(t, err)
	require.Len(t, results, 1)
	n, _ := results[0].AsInt()
	assert.EqualValues(t, 6, n)
}
