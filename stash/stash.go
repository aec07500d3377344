// Package stash is the lifetime boundary a GC handle crosses to survive
// outside a vm.Context scope (spec.md §1, §9): anything an embedder wants
// to hold between vm.Enter calls — a table used as a registry, a
// callback kept for a later tick, a thread parked across requests — gets
// stashed here and fetched back into a fresh Context later.
package stash

import (
	"sync"

	"github.com/google/uuid"

	"github.com/wudi/luastep/luaerr"
	"github.com/wudi/luastep/vm"
)

// Handle is an opaque token for a stashed GC object, stable across
// Context scopes and safe to store in a map, a config struct, or on disk
// as a string.
type Handle string

type registry struct {
	mu      sync.Mutex
	objects map[Handle]any
}

var root = &registry{objects: make(map[Handle]any)}

func (r *registry) put(v any) Handle {
	h := Handle(uuid.NewString())
	r.mu.Lock()
	r.objects[h] = v
	r.mu.Unlock()
	return h
}

func (r *registry) get(h Handle) (any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.objects[h]
	return v, ok
}

func (r *registry) drop(h Handle) {
	r.mu.Lock()
	delete(r.objects, h)
	r.mu.Unlock()
}

// StashedValue mirrors vm.Value for life outside a Context: primitives
// (Nil/Boolean/Integer/Number) copy inline, the five GC-handle variants
// are replaced by a root-set Handle.
type StashedValue struct {
	Type   vm.ValueType
	Bool   bool
	Int    int64
	Num    float64
	Handle Handle
}

// Value stashes a vm.Value, rooting any GC handle it carries.
func Value(v vm.Value) StashedValue {
	switch v.Type {
	case vm.TypeNil:
		return StashedValue{Type: vm.TypeNil}
	case vm.TypeBoolean:
		b, _ := v.AsBool()
		return StashedValue{Type: vm.TypeBoolean, Bool: b}
	case vm.TypeInteger:
		i, _ := v.AsInt()
		return StashedValue{Type: vm.TypeInteger, Int: i}
	case vm.TypeNumber:
		f, _ := v.AsNumber()
		return StashedValue{Type: vm.TypeNumber, Num: f}
	default:
		return StashedValue{Type: v.Type, Handle: root.put(v.Data)}
	}
}

// Fetch reconstructs a vm.Value from a stashed one, re-entering the
// current Context's scope. The Context argument isn't needed by this
// minimal stand-in (spec.md §1 leaves the real arena/rooting system out
// of scope) but is accepted to keep call sites honest about which
// Context the fetched handle is now live in.
func Fetch(ctx *vm.Context, s StashedValue) vm.Value {
	switch s.Type {
	case vm.TypeNil:
		return vm.Nil
	case vm.TypeBoolean:
		return vm.Bool(s.Bool)
	case vm.TypeInteger:
		return vm.Int(s.Int)
	case vm.TypeNumber:
		return vm.Num(s.Num)
	case vm.TypeString:
		obj, _ := root.get(s.Handle)
		str, _ := obj.(*vm.LuaString)
		return vm.Str(str)
	case vm.TypeTable:
		obj, _ := root.get(s.Handle)
		t, _ := obj.(*vm.Table)
		return vm.Tbl(t)
	case vm.TypeFunction:
		obj, _ := root.get(s.Handle)
		f, _ := obj.(*vm.Function)
		return vm.Fn(f)
	case vm.TypeThread:
		obj, _ := root.get(s.Handle)
		t, _ := obj.(*vm.Thread)
		return vm.Thr(t)
	case vm.TypeUserData:
		obj, _ := root.get(s.Handle)
		u, _ := obj.(*vm.UserData)
		return vm.UD(u)
	default:
		return vm.Nil
	}
}

// Drop releases a stashed handle's root. A no-op for values with no
// handle (primitives never allocated one).
func Drop(s StashedValue) {
	if s.Handle != "" {
		root.drop(s.Handle)
	}
}

// Func stashes a *vm.Function directly, the common case of an embedder
// keeping a callback reference between ticks without round-tripping
// through a full StashedValue.
func Func(f *vm.Function) Handle { return root.put(f) }

// FetchFunc fetches a function previously stashed with Func.
func FetchFunc(h Handle) (*vm.Function, bool) {
	obj, ok := root.get(h)
	if !ok {
		return nil, false
	}
	f, ok := obj.(*vm.Function)
	return f, ok
}

// StashedError mirrors luaerr.Error outside a Context: a raised Lua
// value's payload is stashed like any other handle-bearing value, since
// luaerr.Error.Value may itself be a vm.Value carrying a GC handle.
type StashedError struct {
	Message string
	Value   *StashedValue
}

// Err stashes an error crossing the Context boundary.
func Err(err error) StashedError {
	if le, ok := err.(*luaerr.Error); ok && le.Kind == luaerr.KindLua {
		if v, ok := le.Value.(vm.Value); ok {
			sv := Value(v)
			return StashedError{Message: le.Error(), Value: &sv}
		}
	}
	return StashedError{Message: err.Error()}
}

// FetchErr reconstructs a stashed error. A raised Lua value comes back as
// a luaerr.Lua error with its payload re-rooted in ctx; any other error
// comes back as a *luaerr.RuntimeError carrying only the original
// message (its type and wrapped cause are not kept).
func FetchErr(ctx *vm.Context, se StashedError) error {
	if se.Value == nil {
		return &luaerr.RuntimeError{Message: se.Message}
	}
	return luaerr.Lua(Fetch(ctx, *se.Value))
}
