package interpcore

import (
	"sync/atomic"
)

// Eval-breaker condition bits. The aggregate word is nonzero iff at least
// one condition needs slow-path handling. Bit assignments are stable and
// documented; any value with bits outside breakerAllBits is a defect.
const (
	// breakerPendingCalls is set while the pending-call ring is non-empty.
	breakerPendingCalls uint32 = 1 << iota
	// breakerSignalPending is set when at least one signal awaits delivery.
	breakerSignalPending
	// breakerDropRequested is set when another thread has asked the permit
	// holder to release the exclusive-execution permit.
	breakerDropRequested
	// breakerTracingActive is set while any attached thread has a trace
	// hook installed.
	breakerTracingActive

	breakerAllBits = breakerPendingCalls | breakerSignalPending |
		breakerDropRequested | breakerTracingActive
)

// EvalBreaker aggregates independent interrupt conditions into one atomic
// word so the interpretation hot path pays for a single load instead of
// four independent condition checks.
//
// Every condition set/clear recomputes the aggregate via an atomic
// read-modify-write, so concurrent readers on other threads never observe
// a torn or partial state. Reads are single atomic loads.
type EvalBreaker struct {
	_ [sizeOfCacheLine]byte //nolint:unused
	v atomic.Uint32
	_ [sizeOfCacheLine - sizeOfAtomicUint32]byte //nolint:unused
}

// Check reports whether any condition bit is set. This is the hot-path
// read, performed once per unit of interpreted work.
func (b *EvalBreaker) Check() bool {
	return b.v.Load() != 0
}

// Load returns the raw aggregate word.
func (b *EvalBreaker) Load() uint32 {
	return b.v.Load()
}

// raise sets the given condition bit atomically.
func (b *EvalBreaker) raise(bit uint32) {
	b.v.Or(bit)
}

// clear clears the given condition bit atomically.
func (b *EvalBreaker) clear(bit uint32) {
	b.v.And(^bit)
}

// has reports whether the given condition bit is currently set.
func (b *EvalBreaker) has(bit uint32) bool {
	return b.v.Load()&bit != 0
}
