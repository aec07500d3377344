package vm

import "sort"

// UpValue is a shared mutable cell captured by a closure. It is either
// open (an alias of a slot in some thread's value stack) or closed (it
// owns its value directly). Cells are independently owned objects so
// sharing survives the owning frame's death (spec.md §9).
type UpValue struct {
	open   bool
	thread *Thread // valid only while open
	index  int     // absolute stack index, valid only while open
	closed Value
}

func (*UpValue) gcObject() {}

// IsOpen reports whether the cell currently aliases a stack slot.
func (u *UpValue) IsOpen() bool { return u.open }

// Get reads the cell's current value. self is the thread performing the
// read, used to decide whether an open read is same-thread or cross-thread.
func (u *UpValue) Get(self *Thread) Value {
	if !u.open {
		return u.closed
	}
	if u.thread == self {
		return u.thread.stack[u.index]
	}
	return u.thread.borrowForeign(func(t *Thread) Value {
		return t.stack[u.index]
	})
}

// Set writes the cell's current value.
func (u *UpValue) Set(self *Thread, v Value) {
	if !u.open {
		u.closed = v
		return
	}
	if u.thread == self {
		u.thread.stack[u.index] = v
		return
	}
	u.thread.borrowForeignVoid(func(t *Thread) {
		t.stack[u.index] = v
	})
}

// openUpvalues is the sorted-by-index list a thread keeps of its open
// cells. findOpenUpvalue binary-searches it, returning the existing cell
// on a hit or the insertion position on a miss.
func (t *Thread) findOpenUpvalue(ind int) (*UpValue, int) {
	i := sort.Search(len(t.openUpvalues), func(i int) bool {
		return t.openUpvalues[i].index >= ind
	})
	if i < len(t.openUpvalues) && t.openUpvalues[i].index == ind {
		return t.openUpvalues[i], i
	}
	return nil, i
}

// openUpvalue returns the upvalue cell for register r of the current Lua
// frame, creating it if necessary (spec.md §4.6).
func (t *Thread) openUpvalue(base, r int) *UpValue {
	ind := base + r
	if cell, _ := t.findOpenUpvalue(ind); cell != nil {
		return cell
	}
	_, pos := t.findOpenUpvalue(ind)
	cell := &UpValue{open: true, thread: t, index: ind}
	t.openUpvalues = append(t.openUpvalues, nil)
	copy(t.openUpvalues[pos+1:], t.openUpvalues[pos:])
	t.openUpvalues[pos] = cell
	return cell
}

// closeUpvalues closes every open cell at or above bottom, snapshotting
// each one's current stack value, and truncates the open list.
func (t *Thread) closeUpvalues(bottom int) {
	pos := sort.Search(len(t.openUpvalues), func(i int) bool {
		return t.openUpvalues[i].index >= bottom
	})
	for _, cell := range t.openUpvalues[pos:] {
		v := t.stack[cell.index]
		cell.open = false
		cell.thread = nil
		cell.closed = v
	}
	t.openUpvalues = t.openUpvalues[:pos]
}
