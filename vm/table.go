package vm

// Table is a minimal hash-array hybrid, enough to exercise the core (S2's
// sequence iterates a table of three functions). The real table
// implementation — metatables, rehashing strategy, next() iteration order
// — is an external collaborator's job per spec.md §1; this stand-in only
// needs Get/Set and an integer-keyed fast path.
type Table struct {
	array map[int64]Value
	hash  map[any]Value
}

func (*Table) gcObject() {}

func NewTable() *Table {
	return &Table{array: make(map[int64]Value), hash: make(map[any]Value)}
}

func (t *Table) Get(key Value) Value {
	if i, ok := key.AsInt(); ok {
		if v, found := t.array[i]; found {
			return v
		}
		return Nil
	}
	if v, found := t.hash[hashKey(key)]; found {
		return v
	}
	return Nil
}

func (t *Table) Set(key, val Value) {
	if i, ok := key.AsInt(); ok {
		if val.IsNil() {
			delete(t.array, i)
		} else {
			t.array[i] = val
		}
		return
	}
	k := hashKey(key)
	if val.IsNil() {
		delete(t.hash, k)
	} else {
		t.hash[k] = val
	}
}

// Len mirrors the Lua border semantics for the common case of a dense
// integer-keyed sequence: the length of the contiguous 1..n prefix.
func (t *Table) Len() int64 {
	var n int64
	for {
		if _, ok := t.array[n+1]; !ok {
			break
		}
		n++
	}
	return n
}

// hashKey turns a Value into something comparable for use as a Go map
// key; strings compare by content, everything else by the Go value
// already stored in Data (handles compare by pointer identity).
func hashKey(v Value) any {
	switch v.Type {
	case TypeString:
		s, _ := v.AsString()
		return "s:" + s.S
	default:
		return v.Data
	}
}
