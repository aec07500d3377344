package vm

import "github.com/wudi/luastep/luaerr"

// Thread is an independent coroutine: its own value stack, frame stack,
// and open-upvalue list (spec.md §3). borrowed substitutes for a borrow
// checker (spec.md §5 "Locking discipline"): it is true exactly while an
// Executor step or a cross-thread upvalue access is using this thread,
// and any attempt to re-enter through a public entry point while it is
// set observes ModeRunning.
type Thread struct {
	stack        []Value
	frames       []Frame
	openUpvalues []*UpValue
	borrowed     bool
}

// NewThread returns an empty, Stopped thread.
func NewThread() *Thread {
	return &Thread{}
}

func (*Thread) gcObject() {}

// Mode classifies the thread without blocking (spec.md §3).
func (t *Thread) Mode() ThreadMode {
	if t.borrowed {
		return ModeRunning
	}
	if len(t.frames) == 0 {
		return ModeStopped
	}
	switch top := t.frames[len(t.frames)-1]; top.Kind {
	case FrameLua, FrameCallback, FrameSequence:
		return ModeNormal
	case FrameStart, FrameYielded:
		return ModeSuspended
	case FrameWaitThread:
		return ModeWaiting
	case FrameResult:
		return ModeResult
	case FrameError:
		if len(t.frames) == 1 {
			return ModeResult
		}
		return ModeNormal
	default:
		return ModeStopped
	}
}

func (t *Thread) checkMode(expected ThreadMode) error {
	if mode := t.Mode(); mode != expected {
		return luaerr.BadThreadMode(expected.String(), mode.String())
	}
	return nil
}

// Start requires Stopped: pushes args onto the empty stack, then a call
// frame for fn.
func (t *Thread) Start(ctx *Context, fn *Function, args []Value) error {
	if err := t.checkMode(ModeStopped); err != nil {
		return err
	}
	return t.pushCall(fn, args, ExpectedReturn{})
}

// StartSuspended requires Stopped: pushes Start(fn). The thread becomes
// Suspended without running anything until Resume.
func (t *Thread) StartSuspended(fn *Function) error {
	if err := t.checkMode(ModeStopped); err != nil {
		return err
	}
	t.frames = append(t.frames, startFrame(fn))
	return nil
}

// Resume requires Suspended: pops the top Start or Yielded frame and
// either calls the pending function (Start) or delivers args as the
// return of the yielded call (Yielded).
func (t *Thread) Resume(ctx *Context, args []Value) error {
	if err := t.checkMode(ModeSuspended); err != nil {
		return err
	}
	top := t.frames[len(t.frames)-1]
	t.frames = t.frames[:len(t.frames)-1]
	switch top.Kind {
	case FrameStart:
		bottom := len(t.stack)
		if top.StartFn.IsClosure() {
			t.stack = append(t.stack, Fn(top.StartFn))
			t.stack = append(t.stack, args...)
			return t.pushLuaCallAt(bottom)
		}
		t.stack = append(t.stack, args...)
		t.frames = append(t.frames, callbackFrame(bottom, top.StartFn.Callback))
		return nil
	case FrameYielded:
		bottom := len(t.stack)
		t.stack = append(t.stack, args...)
		t.deliverReturn(bottom, args)
		return nil
	default:
		panic("internal invariant violation: resume on non-suspending frame")
	}
}

// ResumeErr requires Suspended: pops the suspending frame and pushes an
// Error frame in its place, injecting a failure at the suspension point.
func (t *Thread) ResumeErr(err error) error {
	if e := t.checkMode(ModeSuspended); e != nil {
		return e
	}
	t.frames = t.frames[:len(t.frames)-1]
	t.frames = append(t.frames, errorFrame(err))
	return nil
}

// TakeResult requires Result: pops the top Result or Error frame,
// converting drained values via convert, or returns the carried error.
func TakeResult[T any](t *Thread, ctx *Context, convert func([]Value) (T, error)) (T, error) {
	var zero T
	if err := t.checkMode(ModeResult); err != nil {
		return zero, err
	}
	top := t.frames[len(t.frames)-1]
	t.frames = t.frames[:len(t.frames)-1]
	switch top.Kind {
	case FrameResult:
		vals := append([]Value(nil), t.stack[top.Bottom:]...)
		t.stack = t.stack[:top.Bottom]
		return convert(vals)
	case FrameError:
		return zero, top.Err
	default:
		panic("internal invariant violation: take_result on non-result frame")
	}
}

// Reset is permitted in any mode except Running: closes all open
// upvalues, clears stack and frames, becomes Stopped.
func (t *Thread) Reset() error {
	if t.Mode() == ModeRunning {
		return luaerr.BadThreadMode("not running", "running")
	}
	t.closeUpvalues(0)
	t.stack = t.stack[:0]
	t.frames = t.frames[:0]
	return nil
}

// ---- Lua frame helper operations (spec.md §4.2) ----

// pushCall sets the caller's expected_return (if there is a current Lua
// frame) and pushes a call to fn with args already logically supplied.
func (t *Thread) pushCall(fn *Function, args []Value, expected ExpectedReturn) error {
	if len(t.frames) > 0 {
		if top := &t.frames[len(t.frames)-1]; top.Kind == FrameLua {
			top.Lua.ExpectedReturn = expected
		}
	}
	bottom := len(t.stack)
	if fn.IsClosure() {
		t.stack = append(t.stack, Fn(fn))
		t.stack = append(t.stack, args...)
		return t.pushLuaCallAt(bottom)
	}
	t.stack = append(t.stack, args...)
	t.frames = append(t.frames, callbackFrame(bottom, fn.Callback))
	return nil
}

// Call is the public entry for issuing a call from Lua bytecode (out of
// scope) or a callback/sequence: it wraps pushCall.
func (t *Thread) Call(fn *Function, args []Value, expected ExpectedReturn) error {
	return t.pushCall(fn, args, expected)
}

// TailCall pops the current Lua frame before pushing the new call at the
// same bottom, closing upvalues first (spec.md §4.2).
func (t *Thread) TailCall(fn *Function, args []Value) error {
	if len(t.frames) == 0 || t.frames[len(t.frames)-1].Kind != FrameLua {
		panic("internal invariant violation: tail call with no Lua frame on top")
	}
	bottom := t.frames[len(t.frames)-1].Lua.Bottom
	t.frames = t.frames[:len(t.frames)-1]
	t.closeUpvalues(bottom)
	t.stack = t.stack[:bottom]
	if fn.IsClosure() {
		t.stack = append(t.stack, Fn(fn))
		t.stack = append(t.stack, args...)
		return t.pushLuaCallAt(bottom)
	}
	t.stack = append(t.stack, args...)
	t.frames = append(t.frames, callbackFrame(bottom, fn.Callback))
	return nil
}

// MetaCall calls a function at a fresh top without disturbing existing
// registers; its return is delivered to an optional register.
func (t *Thread) MetaCall(fn *Function, args []Value, slot int, hasSlot bool) error {
	if len(t.frames) == 0 || t.frames[len(t.frames)-1].Kind != FrameLua {
		panic("internal invariant violation: meta call with no Lua frame on top")
	}
	top := &t.frames[len(t.frames)-1]
	top.Lua.ExpectedReturn = ExpectedReturn{Kind: ReturnMeta, Slot: slot, HasSlot: hasSlot}
	bottom := top.Lua.Base + top.Lua.StackSize
	t.resizeStack(bottom)
	if fn.IsClosure() {
		t.stack = append(t.stack, Fn(fn))
		t.stack = append(t.stack, args...)
		return t.pushLuaCallAt(bottom)
	}
	t.stack = append(t.stack, args...)
	t.frames = append(t.frames, callbackFrame(bottom, fn.Callback))
	return nil
}

// ReturnFromLua is the return half of a Lua call: it pops the returning
// frame, closes its upvalues, and resolves vals against whatever frame
// is beneath (spec.md §4.2 "Returning to upper").
func (t *Thread) ReturnFromLua(vals []Value) {
	if len(t.frames) == 0 || t.frames[len(t.frames)-1].Kind != FrameLua {
		panic("internal invariant violation: return from non-Lua frame")
	}
	bottom := t.frames[len(t.frames)-1].Lua.Bottom
	t.frames = t.frames[:len(t.frames)-1]
	t.closeUpvalues(bottom)
	t.deliverReturn(bottom, vals)
}

// deliverReturn slides vals down to bottom and, if there is a frame
// beneath, resolves them against its expectations; with no frame beneath
// it pushes Result{bottom}.
func (t *Thread) deliverReturn(bottom int, vals []Value) {
	if len(t.frames) == 0 {
		t.stack = t.stack[:bottom]
		t.stack = append(t.stack, vals...)
		t.frames = append(t.frames, resultFrame(bottom))
		return
	}
	top := &t.frames[len(t.frames)-1]
	switch top.Kind {
	case FrameLua:
		er := top.Lua.ExpectedReturn
		switch er.Kind {
		case ReturnMeta:
			v := Nil
			if len(vals) > 0 {
				v = vals[0]
			}
			t.resizeStack(top.Lua.Base + top.Lua.StackSize)
			if er.HasSlot {
				t.setRegister(top, er.Slot, v)
			}
			top.Lua.IsVariable = false
		case ReturnNormal:
			t.stack = t.stack[:bottom]
			if er.IsVariadic {
				t.stack = append(t.stack, vals...)
				top.Lua.IsVariable = true
			} else {
				out := make([]Value, er.Count)
				copy(out, vals)
				for i := len(vals); i < er.Count; i++ {
					out[i] = Nil
				}
				t.stack = append(t.stack, out...)
				t.resizeStack(top.Lua.Base + top.Lua.StackSize)
				top.Lua.IsVariable = false
			}
		default: // ReturnNone: restore the caller's register window
			t.resizeStack(top.Lua.Base + top.Lua.StackSize)
			top.Lua.IsVariable = false
		}
	default:
		// Sequence{bottom==b}, Callback, WaitThread, etc: the values are
		// simply placed at bottom; the owning frame kind resolves what
		// happens to them on its own next step.
		t.stack = t.stack[:bottom]
		t.stack = append(t.stack, vals...)
	}
}

func (t *Thread) setRegister(f *Frame, slot int, v Value) {
	idx := f.Lua.Base + slot
	t.resizeStack(idx + 1)
	t.stack[idx] = v
}

// ExpandVarargs copies the current Lua frame's captured varargs
// (base-bottom-1 of them) into registers starting at destReg.
func (t *Thread) ExpandVarargs(destReg, count int, variadic bool) {
	fi := len(t.frames) - 1
	f := &t.frames[fi].Lua
	varargs := append([]Value(nil), t.stack[f.Bottom+1:f.Base]...)
	destAbs := f.Base + destReg
	t.resizeStack(destAbs)
	if variadic {
		t.stack = append(t.stack, varargs...)
		f.IsVariable = true
		return
	}
	out := make([]Value, count)
	copy(out, varargs)
	for i := len(varargs); i < count; i++ {
		out[i] = Nil
	}
	t.stack = append(t.stack, out...)
	f.IsVariable = false
}

// SetList stores count (or, if variadic, all remaining) values starting
// at register startReg into tbl's array part — the table-list-set
// primitive behind a `{a, b, f(...)}` constructor's tail.
func (t *Thread) SetList(tbl *Table, startReg, count int, variadic bool) {
	f := t.frames[len(t.frames)-1].Lua
	base := f.Base + startReg
	var vals []Value
	if variadic {
		vals = append([]Value(nil), t.stack[base:]...)
	} else {
		end := base + count
		if end > len(t.stack) {
			end = len(t.stack)
		}
		vals = append([]Value(nil), t.stack[base:end]...)
	}
	for i, v := range vals {
		tbl.Set(Int(int64(i+1)), v)
	}
}

// pushLuaCallAt implements the closure half of "pushing a call"
// (spec.md §4.2): insert happens implicitly because the caller already
// placed the closure value at bottom; this rotates overflow args into
// the vararg region and sizes the register window.
func (t *Thread) pushLuaCallAt(bottom int) error {
	fnVal := t.stack[bottom]
	fn, ok := fnVal.AsFunction()
	if !ok || !fn.IsClosure() {
		return luaerr.TypeError("function", fnVal.Type.String())
	}
	proto := fn.Closure.Proto
	argsStart := bottom + 1
	nargs := len(t.stack) - argsStart
	fixed := proto.FixedParams
	extra := 0
	if nargs > fixed {
		extra = nargs - fixed
	}
	var base int
	if proto.IsVariadic && extra > 0 {
		args := append([]Value(nil), t.stack[argsStart:argsStart+nargs]...)
		rotated := make([]Value, 0, nargs)
		rotated = append(rotated, args[fixed:]...)
		rotated = append(rotated, args[:fixed]...)
		copy(t.stack[argsStart:argsStart+nargs], rotated)
		base = argsStart + extra
	} else {
		base = argsStart
		if extra > 0 {
			t.stack = t.stack[:argsStart+fixed]
		}
	}
	t.resizeStack(base + fixed)
	t.resizeStack(base + proto.StackSize)
	t.frames = append(t.frames, luaFrame(LuaFrame{
		Bottom:    bottom,
		Base:      base,
		PC:        0,
		StackSize: proto.StackSize,
	}))
	return nil
}

// pushCallReusingArgs is the executor's half of Call{function} in the
// CallbackReturn protocol (spec.md §4.3): stack[bottom:] already holds
// the arguments (no function value in the slot yet), so a closure callee
// gets its function value inserted ahead of them rather than appended.
func (t *Thread) pushCallReusingArgs(bottom int, fn *Function) error {
	if fn.IsClosure() {
		t.stack = append(t.stack, Nil)
		copy(t.stack[bottom+1:], t.stack[bottom:len(t.stack)-1])
		t.stack[bottom] = Fn(fn)
		return t.pushLuaCallAt(bottom)
	}
	t.frames = append(t.frames, callbackFrame(bottom, fn.Callback))
	return nil
}

func (t *Thread) resizeStack(n int) {
	if n <= len(t.stack) {
		t.stack = t.stack[:n]
		return
	}
	for len(t.stack) < n {
		t.stack = append(t.stack, Nil)
	}
}

// borrowForeign runs fn with exclusive access to a thread other than the
// caller, panicking if it is already borrowed — the cross-thread upvalue
// access rule of spec.md §4.6/§5.
func (t *Thread) borrowForeign(fn func(*Thread) Value) Value {
	if t.borrowed {
		panic("reentrant cross-thread upvalue access: target thread is currently running")
	}
	t.borrowed = true
	defer func() { t.borrowed = false }()
	return fn(t)
}

func (t *Thread) borrowForeignVoid(fn func(*Thread)) {
	if t.borrowed {
		panic("reentrant cross-thread upvalue access: target thread is currently running")
	}
	t.borrowed = true
	defer func() { t.borrowed = false }()
	fn(t)
}
