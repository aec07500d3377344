package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueTruthy(t *testing.T) {
	assert.False(t, Nil.Truthy())
	assert.False(t, Bool(false).Truthy())
	assert.True(t, Bool(true).Truthy())
	assert.True(t, Int(0).Truthy())
	assert.True(t, NewString("").Truthy())
}

func TestValueAccessorsRejectWrongType(t *testing.T) {
	v := Int(7)
	_, ok := v.AsNumber()
	assert.False(t, ok, "an Integer must not also answer AsNumber")

	i, ok := v.AsInt()
	require.True(t, ok)
	assert.EqualValues(t, 7, i)
}

func TestTableIntegerKeys(t *testing.T) {
	tbl := NewTable()
	tbl.Set(Int(1), NewString("a"))
	tbl.Set(Int(2), NewString("b"))
	tbl.Set(Int(3), NewString("c"))
	assert.EqualValues(t, 3, tbl.Len())

	s, ok := tbl.Get(Int(2)).AsString()
	require.True(t, ok)
	assert.Equal(t, "b", s.S)

	tbl.Set(Int(2), Nil)
	assert.True(t, tbl.Get(Int(2)).IsNil())
}
