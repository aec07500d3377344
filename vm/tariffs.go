package vm

// Tariffs are the fuel costs the executor charges for each unit of work
// (spec.md §6). They are deliberately small integers, not a security
// boundary (spec.md §1 Non-goals) — just enough to make Step's progress
// measurable and boundable for cooperative scheduling.
type Tariffs struct {
	PerStep       int32
	PerCallback   int32
	PerSeqStep    int32
	PerCall       int32
	PerItem       int32
	VMGranularity int
}

// DefaultTariffs mirrors the reference constants named in spec.md §6.
func DefaultTariffs() Tariffs {
	return Tariffs{
		PerStep:       4,
		PerCallback:   8,
		PerSeqStep:    4,
		PerCall:       4,
		PerItem:       1,
		VMGranularity: 64,
	}
}
