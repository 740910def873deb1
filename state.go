package interpcore

import (
	"sync/atomic"
)

// Phase represents the lifecycle phase of a Runtime.
//
// Phase Machine:
//
//	PhaseUninitialized (0) → PhaseInitializing (1)  [New()]
//	PhaseInitializing (1) → PhaseRunning (2)        [New() on success]
//	PhaseRunning (2) → PhaseFinalizing (3)          [Finalize()]
//	PhaseFinalizing (3) → PhaseTornDown (4)         [Finalize() on completion]
//	PhaseTornDown (4) → (terminal)
//
// Transitions are strictly one-directional and performed via CAS only;
// re-entering PhaseRunning after PhaseFinalizing is unsupported. A new
// Runtime must be constructed instead.
type Phase uint32

const (
	// PhaseUninitialized indicates the runtime struct exists but owns no
	// subsystems yet.
	PhaseUninitialized Phase = 0
	// PhaseInitializing indicates the cache and pools are being constructed
	// and the pending-call queue armed.
	PhaseInitializing Phase = 1
	// PhaseRunning indicates the runtime is live and threads may attach.
	PhaseRunning Phase = 2
	// PhaseFinalizing indicates the queue has been disabled, in-flight work
	// is being drained, and new schedules are rejected.
	PhaseFinalizing Phase = 3
	// PhaseTornDown indicates pools and caches have been released.
	PhaseTornDown Phase = 4
)

// String returns a human-readable representation of the phase.
func (p Phase) String() string {
	switch p {
	case PhaseUninitialized:
		return "Uninitialized"
	case PhaseInitializing:
		return "Initializing"
	case PhaseRunning:
		return "Running"
	case PhaseFinalizing:
		return "Finalizing"
	case PhaseTornDown:
		return "TornDown"
	default:
		return "Unknown"
	}
}

// phaseMachine is a lock-free lifecycle state machine with cache-line padding.
//
// PERFORMANCE: Uses pure atomic CAS operations with no mutex.
// Cache-line padding prevents false sharing between cores.
type phaseMachine struct {
	_ [sizeOfCacheLine]byte //nolint:unused
	v atomic.Uint32
	_ [sizeOfCacheLine - sizeOfAtomicUint32]byte //nolint:unused
}

// Load returns the current phase atomically.
func (s *phaseMachine) Load() Phase {
	return Phase(s.v.Load())
}

// TryTransition attempts to atomically transition from one phase to another.
// Returns true if the transition was performed. Only the four forward edges
// of the phase machine are legal; backward or phase-skipping pairs are
// refused before the CAS is attempted. All lifecycle transitions go through
// here; Store would permit arbitrary movement and is deliberately not
// provided.
func (s *phaseMachine) TryTransition(from, to Phase) bool {
	if to != from+1 || to > PhaseTornDown {
		return false
	}
	return s.v.CompareAndSwap(uint32(from), uint32(to))
}

// IsTerminal returns true if the runtime has been fully torn down.
func (s *phaseMachine) IsTerminal() bool {
	return s.Load() == PhaseTornDown
}

// CanAcceptWork returns true if the runtime accepts scheduled work.
func (s *phaseMachine) CanAcceptWork() bool {
	return s.Load() == PhaseRunning
}
