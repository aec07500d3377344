package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wudi/luastep/luaerr"
)

func cb(name string, fn func(ctx *Context, fuel *Fuel, stack *Stack) (CallbackReturn, error)) *Function {
	return FunctionFromCallback(&CallbackFunc{FnName: name, Fn: fn})
}

func runToResult(t *testing.T, ex *Executor) []Value {
	t.Helper()
	fuel := NewFuel(1_000_000)
	for i := 0; i < 10_000; i++ {
		if ex.Step(nil, fuel) {
			require.Equal(t, ModeResult, ex.Mode())
			vals, err := ExecutorTakeResult(ex, nil, func(vs []Value) ([]Value, error) { return vs, nil })
			require.NoError(t, err)
			return vals
		}
	}
	t.Fatal("executor never reached Result within the iteration bound")
	return nil
}

// S1: yield/resume round trip, 42 out, 100 in, 101 back.
func TestScenarioYieldResumeRoundTrip(t *testing.T) {
	resumeCont := SequenceFunc{
		PollFn: func(ctx *Context, fuel *Fuel, stack *Stack) (SequencePoll, error) {
			n, _ := stack.Get(0).AsInt()
			stack.Replace([]Value{Int(n + 1)})
			return SeqReturnPoll(), nil
		},
	}
	yielder := cb("yield42", func(ctx *Context, fuel *Fuel, stack *Stack) (CallbackReturn, error) {
		stack.Replace([]Value{Int(42)})
		return Yield(nil, resumeCont), nil
	})

	ex, err := StartExecutor(nil, yielder, nil)
	require.NoError(t, err)

	fuel := NewFuel(1000)
	paused := ex.Step(nil, fuel)
	require.True(t, paused)
	require.Equal(t, ModeResult, ex.Mode())

	vals, err := ExecutorTakeResult(ex, nil, func(vs []Value) ([]Value, error) { return vs, nil })
	require.NoError(t, err)
	require.Len(t, vals, 1)
	n, _ := vals[0].AsInt()
	assert.EqualValues(t, 42, n)

	require.Equal(t, ModeSuspended, ex.Mode())
	require.NoError(t, ex.Resume(nil, []Value{Int(100)}))

	final := runToResult(t, ex)
	require.Len(t, final, 1)
	n, _ = final[0].AsInt()
	assert.EqualValues(t, 101, n)
}

// S2: native callback c(table) chains three callbacks' returns forward.
func TestScenarioChainedSequenceCallbacks(t *testing.T) {
	f1 := cb("f1", func(ctx *Context, fuel *Fuel, stack *Stack) (CallbackReturn, error) {
		stack.Replace([]Value{Int(1), Int(2), Int(3)})
		return Return(), nil
	})
	f2 := cb("f2", func(ctx *Context, fuel *Fuel, stack *Stack) (CallbackReturn, error) {
		rest := stack.Values()
		out := append([]Value{Int(4), Int(5)}, rest...)
		stack.Replace(out)
		return Return(), nil
	})
	f3 := cb("f3", func(ctx *Context, fuel *Fuel, stack *Stack) (CallbackReturn, error) {
		rest := stack.Values()
		out := append([]Value{Int(6), Int(7)}, rest...)
		stack.Replace(out)
		return Return(), nil
	})

	tbl := NewTable()
	tbl.Set(Int(1), Fn(f1))
	tbl.Set(Int(2), Fn(f2))
	tbl.Set(Int(3), Fn(f3))

	c := cb("c", func(ctx *Context, fuel *Fuel, stack *Stack) (CallbackReturn, error) {
		stack.Replace(nil)
		return SequenceReturn(&chainSeq{table: tbl, i: 1}), nil
	})

	ex, err := StartExecutor(nil, c, []Value{Tbl(tbl)})
	require.NoError(t, err)

	got := runToResult(t, ex)
	want := []int64{6, 7, 4, 5, 1, 2, 3}
	require.Len(t, got, len(want))
	for i, w := range want {
		n, ok := got[i].AsInt()
		require.True(t, ok)
		assert.EqualValues(t, w, n, "index %d", i)
	}
}

type chainSeq struct {
	table *Table
	i     int64
}

func (s *chainSeq) Poll(ctx *Context, fuel *Fuel, stack *Stack) (SequencePoll, error) {
	if s.i > 3 {
		return SeqReturnPoll(), nil
	}
	fnVal := s.table.Get(Int(s.i))
	s.i++
	fn, _ := fnVal.AsFunction()
	return SeqCallPoll(fn, false), nil
}

func (s *chainSeq) Error(ctx *Context, fuel *Fuel, err error, stack *Stack) (SequencePoll, error) {
	return SequencePoll{}, err
}

// S5: fuel exhaustion pauses; repeated small-budget steps eventually finish.
func TestScenarioFuelExhaustionPauses(t *testing.T) {
	c := cb("countdown", func(ctx *Context, fuel *Fuel, stack *Stack) (CallbackReturn, error) {
		return SequenceReturn(&countdownSeq{remaining: 5}), nil
	})
	ex, err := StartExecutor(nil, c, nil)
	require.NoError(t, err)

	calls := 0
	for calls < 100 && ex.Mode() != ModeResult {
		calls++
		fuel := NewFuel(10)
		ex.Step(nil, fuel)
	}
	require.Greater(t, calls, 1, "a 10-unit budget must not finish a 5-round countdown in one step call")
	require.Equal(t, ModeResult, ex.Mode())

	vals, err := ExecutorTakeResult(ex, nil, func(vs []Value) ([]Value, error) { return vs, nil })
	require.NoError(t, err)
	require.Len(t, vals, 1)
	n, _ := vals[0].AsInt()
	assert.EqualValues(t, 42, n)
}

type countdownSeq struct{ remaining int }

func (s *countdownSeq) Poll(ctx *Context, fuel *Fuel, stack *Stack) (SequencePoll, error) {
	s.remaining--
	if s.remaining <= 0 {
		stack.Replace([]Value{Int(42)})
		return SeqReturnPoll(), nil
	}
	return Pending(), nil
}

func (s *countdownSeq) Error(ctx *Context, fuel *Fuel, err error, stack *Stack) (SequencePoll, error) {
	return SequencePoll{}, err
}

// S6: a sequence's error method transforms a raised error into a normal return.
func TestScenarioErrorAcrossSequenceIsCaught(t *testing.T) {
	boom := cb("boom", func(ctx *Context, fuel *Fuel, stack *Stack) (CallbackReturn, error) {
		return CallbackReturn{}, luaerr.Lua(NewString("boom"))
	})
	seq := &catchSeq{boom: boom}
	c := cb("c", func(ctx *Context, fuel *Fuel, stack *Stack) (CallbackReturn, error) {
		return SequenceReturn(seq), nil
	})

	ex, err := StartExecutor(nil, c, nil)
	require.NoError(t, err)

	vals := runToResult(t, ex)
	require.Len(t, vals, 1)
	s, ok := vals[0].AsString()
	require.True(t, ok)
	assert.Equal(t, "caught", s.S)
	assert.True(t, seq.caught)
}

type catchSeq struct {
	boom   *Function
	called bool
	caught bool
}

func (s *catchSeq) Poll(ctx *Context, fuel *Fuel, stack *Stack) (SequencePoll, error) {
	if !s.called {
		s.called = true
		return SeqCallPoll(s.boom, false), nil
	}
	return SeqReturnPoll(), nil
}

func (s *catchSeq) Error(ctx *Context, fuel *Fuel, err error, stack *Stack) (SequencePoll, error) {
	s.caught = true
	stack.Replace([]Value{NewString("caught")})
	return SeqReturnPoll(), nil
}

// SequenceFunc adapts a pair of plain functions into a Sequence, the
// sequence-level analogue of CallbackFunc.
type SequenceFunc struct {
	PollFn  func(ctx *Context, fuel *Fuel, stack *Stack) (SequencePoll, error)
	ErrorFn func(ctx *Context, fuel *Fuel, err error, stack *Stack) (SequencePoll, error)
}

func (s SequenceFunc) Poll(ctx *Context, fuel *Fuel, stack *Stack) (SequencePoll, error) {
	return s.PollFn(ctx, fuel, stack)
}

func (s SequenceFunc) Error(ctx *Context, fuel *Fuel, err error, stack *Stack) (SequencePoll, error) {
	if s.ErrorFn != nil {
		return s.ErrorFn(ctx, fuel, err, stack)
	}
	return SequencePoll{}, err
}
