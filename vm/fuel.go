package vm

// Fuel is the cooperative time-budget counter passed by reference
// through the executor (spec.md §6). It is advisory, not a security
// boundary (spec.md §1 Non-goals): a single opcode batch or callback may
// overdraw it, so the counter can go negative.
//
// Following original_source/src/lib.rs, should_continue is a strict
// fuel > 0 check (there is still budget to start more work) while
// can_continue is fuel >= 0 (the last unit of work was still affordable).
type Fuel struct {
	remaining int32
}

// NewFuel creates a Fuel counter with the given starting budget.
func NewFuel(budget int32) *Fuel {
	return &Fuel{remaining: budget}
}

// Consume charges n units, allowed to go negative.
func (f *Fuel) Consume(n int32) {
	f.remaining -= n
}

// ShouldContinue reports whether there is positive budget remaining.
func (f *Fuel) ShouldContinue() bool { return f.remaining > 0 }

// CanContinue reports whether the budget has not gone negative.
func (f *Fuel) CanContinue() bool { return f.remaining >= 0 }

// Remaining returns the current counter value, which may be negative.
func (f *Fuel) Remaining() int32 { return f.remaining }

// Refill adds n units back to the budget, used between step calls.
func (f *Fuel) Refill(n int32) { f.remaining += n }
