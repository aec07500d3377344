package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoCallback(name string) *Function {
	return FunctionFromCallback(&CallbackFunc{
		FnName: name,
		Fn: func(ctx *Context, fuel *Fuel, stack *Stack) (CallbackReturn, error) {
			return Return(), nil
		},
	})
}

func TestThreadStartCallbackTakeResult(t *testing.T) {
	th := NewThread()
	fn := FunctionFromCallback(&CallbackFunc{
		FnName: "add",
		Fn: func(ctx *Context, fuel *Fuel, stack *Stack) (CallbackReturn, error) {
			a, _ := stack.Get(0).AsInt()
			b, _ := stack.Get(1).AsInt()
			stack.Replace([]Value{Int(a + b)})
			return Return(), nil
		},
	})

	require.NoError(t, th.Start(nil, fn, []Value{Int(3), Int(4)}))
	assert.Equal(t, ModeNormal, th.Mode())

	// Drive the one callback frame directly (no executor needed for this
	// property: a native call that returns immediately).
	frame := th.frames[len(th.frames)-1]
	th.frames = th.frames[:len(th.frames)-1]
	require.Equal(t, FrameCallback, frame.Kind)
	stack := newStack(th, frame.Bottom)
	ret, err := frame.Callback.Call(nil, nil, stack)
	require.NoError(t, err)
	require.Equal(t, CBReturn, ret.Kind)
	vals := append([]Value(nil), th.stack[frame.Bottom:]...)
	th.deliverReturn(frame.Bottom, vals)

	require.Equal(t, ModeResult, th.Mode())
	got, err := TakeResult(th, nil, func(vs []Value) ([]Value, error) { return vs, nil })
	require.NoError(t, err)
	require.Len(t, got, 1)
	n, ok := got[0].AsInt()
	require.True(t, ok)
	assert.EqualValues(t, 7, n)

	assert.Equal(t, ModeStopped, th.Mode())
}

func TestThreadResetClosesUpvaluesAndIsIdempotent(t *testing.T) {
	th := NewThread()
	th.stack = append(th.stack, Int(1), Int(2), Int(3))
	cell := th.openUpvalue(0, 1)
	require.True(t, cell.IsOpen())

	require.NoError(t, th.Reset())
	assert.False(t, cell.IsOpen(), "reset must close open upvalues before clearing")
	assert.Equal(t, ModeStopped, th.Mode())
	assert.Empty(t, th.stack)
	assert.Empty(t, th.frames)

	// Idempotent: resetting an already-Stopped thread is fine.
	require.NoError(t, th.Reset())
	assert.Equal(t, ModeStopped, th.Mode())
}

func TestCrossThreadUpvalueReadWriteClose(t *testing.T) {
	owner := NewThread()
	owner.stack = append(owner.stack, Int(10))
	cell := owner.openUpvalue(0, 0)

	reader := NewThread()
	assert.EqualValues(t, 10, mustInt(t, cell.Get(reader)))

	cell.Set(reader, Int(99))
	assert.EqualValues(t, 99, owner.stack[0].Data.(int64))

	owner.closeUpvalues(0)
	assert.False(t, cell.IsOpen())
	assert.EqualValues(t, 99, mustInt(t, cell.Get(reader)))
}

func TestCrossThreadUpvalueReentrancyPanics(t *testing.T) {
	owner := NewThread()
	owner.stack = append(owner.stack, Int(1))
	owner.borrowed = true

	assert.Panics(t, func() {
		owner.borrowForeignVoid(func(*Thread) {})
	})
}

func TestTailCallBoundsFrameDepth(t *testing.T) {
	proto := &Prototype{FixedParams: 1, StackSize: 1}
	closure := &Closure{Proto: proto}
	self := FunctionFromClosure(closure)

	th := NewThread()
	require.NoError(t, th.Start(nil, self, []Value{Int(0)}))
	require.Len(t, th.frames, 1)

	for i := 0; i < 10000; i++ {
		require.NoError(t, th.TailCall(self, []Value{Int(int64(i))}))
		require.Len(t, th.frames, 1, "a tail call must never grow the frame stack")
	}
}

func mustInt(t *testing.T, v Value) int64 {
	t.Helper()
	i, ok := v.AsInt()
	require.True(t, ok)
	return i
}
