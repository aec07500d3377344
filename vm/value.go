// Package vm is the execution core: the tagged value domain, upvalues,
// threads, the frame taxonomy, and the fuel-metered executor. Value has a
// Thread variant and UpValue cells hold (thread, index), so these all stay
// in one package rather than splitting values out from threads/frames —
// see SPEC_FULL.md's Package layout section for why.
package vm

import (
	"fmt"
	"strconv"
)

// ValueType tags the active arm of Value.
type ValueType byte

const (
	TypeNil ValueType = iota
	TypeBoolean
	TypeInteger
	TypeNumber
	TypeString
	TypeTable
	TypeFunction
	TypeThread
	TypeUserData
)

func (t ValueType) String() string {
	switch t {
	case TypeNil:
		return "nil"
	case TypeBoolean:
		return "boolean"
	case TypeInteger:
		return "integer"
	case TypeNumber:
		return "number"
	case TypeString:
		return "string"
	case TypeTable:
		return "table"
	case TypeFunction:
		return "function"
	case TypeThread:
		return "thread"
	case TypeUserData:
		return "userdata"
	default:
		return "unknown"
	}
}

// GCObject marks the handle variants of Value: String, Table, Function
// (closure case), Thread, UserData. Their allocation and collection is an
// external collaborator's job (spec.md §1); here a GCObject is just
// something with reference identity.
type GCObject interface {
	gcObject()
}

// Value is the tagged sum: Nil, Boolean, Integer, Number, and the five
// handle variants. Data holds the active arm's payload; for primitives
// it holds the Go primitive directly, for handles it holds a GCObject.
type Value struct {
	Type ValueType
	Data any
}

var Nil = Value{Type: TypeNil}

func Bool(b bool) Value        { return Value{Type: TypeBoolean, Data: b} }
func Int(i int64) Value        { return Value{Type: TypeInteger, Data: i} }
func Num(f float64) Value      { return Value{Type: TypeNumber, Data: f} }
func Str(s *LuaString) Value   { return Value{Type: TypeString, Data: s} }
func Tbl(t *Table) Value       { return Value{Type: TypeTable, Data: t} }
func Fn(f *Function) Value     { return Value{Type: TypeFunction, Data: f} }
func Thr(t *Thread) Value      { return Value{Type: TypeThread, Data: t} }
func UD(u *UserData) Value     { return Value{Type: TypeUserData, Data: u} }
func NewString(s string) Value { return Str(&LuaString{S: s}) }

func (v Value) IsNil() bool { return v.Type == TypeNil }

func (v Value) AsBool() (bool, bool) {
	b, ok := v.Data.(bool)
	return b, ok && v.Type == TypeBoolean
}

func (v Value) AsInt() (int64, bool) {
	i, ok := v.Data.(int64)
	return i, ok && v.Type == TypeInteger
}

func (v Value) AsNumber() (float64, bool) {
	f, ok := v.Data.(float64)
	return f, ok && v.Type == TypeNumber
}

func (v Value) AsString() (*LuaString, bool) {
	s, ok := v.Data.(*LuaString)
	return s, ok && v.Type == TypeString
}

func (v Value) AsTable() (*Table, bool) {
	t, ok := v.Data.(*Table)
	return t, ok && v.Type == TypeTable
}

func (v Value) AsFunction() (*Function, bool) {
	f, ok := v.Data.(*Function)
	return f, ok && v.Type == TypeFunction
}

func (v Value) AsThread() (*Thread, bool) {
	t, ok := v.Data.(*Thread)
	return t, ok && v.Type == TypeThread
}

// Truthy follows Lua semantics: everything but nil and false is truthy.
func (v Value) Truthy() bool {
	if v.Type == TypeNil {
		return false
	}
	if b, ok := v.AsBool(); ok {
		return b
	}
	return true
}

func (v Value) String() string {
	switch v.Type {
	case TypeNil:
		return "nil"
	case TypeBoolean:
		b, _ := v.AsBool()
		return strconv.FormatBool(b)
	case TypeInteger:
		i, _ := v.AsInt()
		return strconv.FormatInt(i, 10)
	case TypeNumber:
		f, _ := v.AsNumber()
		return strconv.FormatFloat(f, 'g', -1, 64)
	case TypeString:
		s, _ := v.AsString()
		return s.S
	case TypeTable:
		t, _ := v.AsTable()
		return fmt.Sprintf("table: %p", t)
	case TypeFunction:
		f, _ := v.AsFunction()
		return fmt.Sprintf("function: %p", f)
	case TypeThread:
		t, _ := v.AsThread()
		return fmt.Sprintf("thread: %p", t)
	case TypeUserData:
		u, _ := v.AsUserData()
		return fmt.Sprintf("userdata: %p", u)
	default:
		return "<invalid value>"
	}
}

func (v Value) AsUserData() (*UserData, bool) {
	u, ok := v.Data.(*UserData)
	return u, ok && v.Type == TypeUserData
}

// LuaString is the String handle. Interning is out of scope (spec.md §1
// leaves the value domain's string representation to an external
// collaborator); this is the minimal stand-in with reference identity.
type LuaString struct{ S string }

func (*LuaString) gcObject() {}

// UserData is an opaque host-owned payload with handle identity.
type UserData struct{ Data any }

func (*UserData) gcObject() {}
