package vm

import "github.com/wudi/luastep/luaerr"

// VMRunner is the external collaborator that walks Lua bytecode
// (run_vm, spec.md §1 — explicitly out of scope for this core). The
// executor only needs its interface: run up to granularity instructions
// of the current top Lua frame, report how many actually ran (for fuel
// accounting), and report any error.
type VMRunner func(ctx *Context, t *Thread, granularity int) (instructionsRun int, err error)

// DefaultVMRunner is a minimal stand-in so the executor is runnable and
// testable without a real opcode interpreter plugged in: it treats every
// Lua frame as an immediate `return` with no values. Embedders replace it
// with the real interpreter via Executor.SetVMRunner.
var DefaultVMRunner VMRunner = func(ctx *Context, t *Thread, granularity int) (int, error) {
	t.ReturnFromLua(nil)
	return 1, nil
}

// Executor orchestrates a stack of threads: the last entry is the
// currently executing thread, earlier entries are paused resumers
// waiting on a WaitThread frame (spec.md §3).
type Executor struct {
	threads  []*Thread
	tariffs  Tariffs
	vmRunner VMRunner
	stepping bool
}

// StartExecutor builds an Executor bound to a freshly started thread.
func StartExecutor(ctx *Context, fn *Function, args []Value) (*Executor, error) {
	t := NewThread()
	if err := t.Start(ctx, fn, args); err != nil {
		return nil, err
	}
	return &Executor{threads: []*Thread{t}, tariffs: DefaultTariffs(), vmRunner: DefaultVMRunner}, nil
}

// SetTariffs overrides the fuel tariffs used by Step.
func (e *Executor) SetTariffs(t Tariffs) { e.tariffs = t }

// SetVMRunner installs the opcode interpreter collaborator.
func (e *Executor) SetVMRunner(r VMRunner) { e.vmRunner = r }

func (e *Executor) current() *Thread { return e.threads[len(e.threads)-1] }

// Mode reports the mode of the currently executing thread. While the
// executor is mid-transport (more than one thread on the stack, spec.md
// §6) the external view is always Normal: a caller outside the step
// loop has no business observing the intermediate resumer chain.
func (e *Executor) Mode() ThreadMode {
	if len(e.threads) == 0 {
		return ModeStopped
	}
	if len(e.threads) > 1 {
		return ModeNormal
	}
	return e.current().Mode()
}

// Resume resumes the current (Suspended) thread. Only valid when the
// executor has settled to a single thread; mirrors Executor::resume's
// BadThreadMode guard in the reference.
func (e *Executor) Resume(ctx *Context, args []Value) error {
	if len(e.threads) > 1 {
		return luaerr.BadThreadMode("suspended", ModeNormal.String())
	}
	return e.current().Resume(ctx, args)
}

// ResumeErr injects an error at the current thread's suspension point.
func (e *Executor) ResumeErr(err error) error {
	return e.current().ResumeErr(err)
}

// Reset replaces the executor's thread stack with a single thread.
func (e *Executor) Reset(thread *Thread) {
	e.threads = []*Thread{thread}
}

// Restart resets the current base thread and starts it on a new function.
func (e *Executor) Restart(ctx *Context, fn *Function, args []Value) error {
	base := e.threads[0]
	if err := base.Reset(); err != nil {
		return err
	}
	e.threads = []*Thread{base}
	return base.Start(ctx, fn, args)
}

// ExecutorTakeResult drains the executor's current thread's Result (or
// Error) frame. A free function, not a method, because Go methods cannot
// carry their own type parameters. Only valid when the executor has
// settled to a single thread.
func ExecutorTakeResult[T any](e *Executor, ctx *Context, convert func([]Value) (T, error)) (T, error) {
	if len(e.threads) > 1 {
		var zero T
		return zero, luaerr.BadThreadMode("result", ModeNormal.String())
	}
	return TakeResult(e.current(), ctx, convert)
}

// Step drives the executor for up to the given fuel budget, returning
// true when the run has paused in a state the embedder must act on
// (Result, Suspended, Stopped) and false when fuel ran out mid-flight
// (spec.md §4.5).
func (e *Executor) Step(ctx *Context, fuel *Fuel) bool {
	if e.stepping {
		panic("re-entrant Executor.Step: the executor is not re-entrant")
	}
	e.stepping = true
	defer func() { e.stepping = false }()

	for {
		if len(e.threads) == 0 {
			panic("internal invariant violation: executor has no threads")
		}
		top := e.current()
		mode := top.Mode()
		if mode == ModeRunning {
			panic("internal invariant violation: current thread observed Running")
		}

		if mode != ModeNormal {
			if len(e.threads) == 1 {
				return true
			}
			if done := e.transportAcrossThreads(ctx, fuel); done {
				return false
			}
			continue
		}

		e.dispatchTop(ctx, fuel, top)

		fuel.Consume(e.tariffs.PerStep)
		if !fuel.ShouldContinue() {
			return false
		}
	}
}

// transportAcrossThreads handles step 2a/2b: the current thread is not
// Normal and there is more than one thread, so pop it as a finished
// resumee and deliver its outcome to the waiter beneath. Returns true if
// fuel ran out and Step should pause.
func (e *Executor) transportAcrossThreads(ctx *Context, fuel *Fuel) bool {
	resThread := e.current()
	e.threads = e.threads[:len(e.threads)-1]
	waiter := e.current()
	if len(waiter.frames) == 0 || waiter.frames[len(waiter.frames)-1].Kind != FrameWaitThread {
		panic("internal invariant violation: resumer is not waiting on the popped thread")
	}
	waiter.borrowed = true
	waiter.frames = waiter.frames[:len(waiter.frames)-1]
	switch resThread.Mode() {
	case ModeResult:
		vals, err := TakeResult(resThread, ctx, func(vs []Value) ([]Value, error) { return vs, nil })
		if err != nil {
			waiter.frames = append(waiter.frames, errorFrame(err))
		} else {
			waiter.deliverReturn(len(waiter.stack), vals)
		}
	default:
		// Waiting on a Normal-mode thread is declared unreachable by
		// spec.md §9 Open Questions; anything else is a genuine mode
		// mismatch (e.g. externally mutated) and becomes a BadThreadMode.
		waiter.frames = append(waiter.frames, errorFrame(luaerr.BadThreadMode("result", resThread.Mode().String())))
	}
	waiter.borrowed = false

	fuel.Consume(e.tariffs.PerStep)
	return !fuel.ShouldContinue()
}

// dispatchTop pops and handles the current thread's top frame.
func (e *Executor) dispatchTop(ctx *Context, fuel *Fuel, t *Thread) {
	frame := t.frames[len(t.frames)-1]
	t.frames = t.frames[:len(t.frames)-1]

	switch frame.Kind {
	case FrameCallback:
		fuel.Consume(e.tariffs.PerCallback)
		stack := newStack(t, frame.Bottom)
		t.borrowed = true
		ret, err := frame.Callback.Call(ctx, fuel, stack)
		t.borrowed = false
		e.route(ctx, t, frame.Bottom, ret, err)

	case FrameSequence:
		fuel.Consume(e.tariffs.PerSeqStep)
		stack := newStack(t, frame.Seq.Bottom)
		var poll SequencePoll
		var err error
		t.borrowed = true
		if frame.Seq.PendingError != nil {
			poll, err = frame.Seq.Seq.Error(ctx, fuel, frame.Seq.PendingError, stack)
		} else {
			poll, err = frame.Seq.Seq.Poll(ctx, fuel, stack)
		}
		t.borrowed = false
		if err != nil {
			t.frames = append(t.frames, errorFrame(err))
		} else {
			e.route(ctx, t, frame.Seq.Bottom, poll.toCallbackReturn(frame.Seq.Seq), nil)
		}

	case FrameLua:
		t.frames = append(t.frames, frame)
		t.borrowed = true
		used, err := e.vmRunner(ctx, t, e.tariffs.VMGranularity)
		t.borrowed = false
		fuel.Consume(int32(used))
		if err != nil {
			t.frames = append(t.frames, errorFrame(err))
		}

	case FrameError:
		e.unwindError(t, frame.Err)

	default:
		panic("internal invariant violation: non-Lua/non-sequence frame reached dispatch")
	}
}

// route implements the CallbackReturn protocol (spec.md §4.3).
func (e *Executor) route(ctx *Context, t *Thread, bottom int, ret CallbackReturn, err error) {
	if err != nil {
		t.frames = append(t.frames, errorFrame(err))
		return
	}
	switch ret.Kind {
	case CBReturn:
		vals := append([]Value(nil), t.stack[bottom:]...)
		t.deliverReturn(bottom, vals)

	case CBSequence:
		t.frames = append(t.frames, sequenceFrame(bottom, ret.Seq, nil))

	case CBCall:
		if ret.CallThen != nil {
			t.frames = append(t.frames, sequenceFrame(bottom, ret.CallThen, nil))
		}
		if cerr := t.pushCallReusingArgs(bottom, ret.CallFunction); cerr != nil {
			t.frames = append(t.frames, errorFrame(cerr))
		}

	case CBYield:
		vals := append([]Value(nil), t.stack[bottom:]...)
		if ret.YieldToThread != nil {
			if rerr := ret.YieldToThread.Resume(ctx, vals); rerr != nil {
				t.frames = append(t.frames, errorFrame(rerr))
				return
			}
			if ret.YieldThen != nil {
				t.frames = append(t.frames, sequenceFrame(bottom, ret.YieldThen, nil))
			}
			t.frames = append(t.frames, yieldedFrame())
			e.threads = e.threads[:len(e.threads)-1]
			e.threads = append(e.threads, ret.YieldToThread)
		} else {
			if ret.YieldThen != nil {
				t.frames = append(t.frames, sequenceFrame(bottom, ret.YieldThen, nil))
			}
			t.frames = append(t.frames, yieldedFrame())
			t.stack = t.stack[:bottom]
			t.stack = append(t.stack, vals...)
			t.frames = append(t.frames, resultFrame(bottom))
		}

	case CBResume:
		vals := append([]Value(nil), t.stack[bottom:]...)
		if rerr := ret.ResumeThread.Resume(ctx, vals); rerr != nil {
			t.frames = append(t.frames, errorFrame(rerr))
			return
		}
		if ret.ResumeThen != nil {
			t.frames = append(t.frames, sequenceFrame(bottom, ret.ResumeThen, nil))
		}
		t.frames = append(t.frames, waitThreadFrame())
		e.threads = append(e.threads, ret.ResumeThread)
	}
}

// unwindError implements the Error-frame unwind (spec.md §4.5/§7): pop
// the frame beneath and unwind it.
func (e *Executor) unwindError(t *Thread, err error) {
	if len(t.frames) == 0 {
		t.frames = append(t.frames, errorFrame(err))
		return
	}
	switch beneath := t.frames[len(t.frames)-1]; beneath.Kind {
	case FrameLua:
		bottom := beneath.Lua.Bottom
		t.frames = t.frames[:len(t.frames)-1]
		t.closeUpvalues(bottom)
		t.stack = t.stack[:bottom]
		t.frames = append(t.frames, errorFrame(err))
	case FrameSequence:
		if beneath.Seq.PendingError == nil {
			t.frames[len(t.frames)-1] = sequenceFrame(beneath.Seq.Bottom, beneath.Seq.Seq, err)
		} else {
			t.frames = t.frames[:len(t.frames)-1]
			t.frames = append(t.frames, errorFrame(err))
		}
	default:
		t.frames = append(t.frames, errorFrame(err))
	}
}
