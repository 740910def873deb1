package interpcore

import (
	"errors"
	"fmt"
)

// Standard errors.
var (
	// ErrQueueFull is returned by Schedule when the pending-call ring is at
	// capacity. The caller decides whether to drop or retry; the queue never
	// retries internally.
	ErrQueueFull = errors.New("interpcore: pending call queue is full")

	// ErrFinalizing is returned when work is submitted to a runtime that has
	// begun finalization.
	ErrFinalizing = errors.New("interpcore: runtime is finalizing")

	// ErrNotRunning is returned when an operation requires a running runtime.
	ErrNotRunning = errors.New("interpcore: runtime is not running")

	// ErrThreadDetached is returned when a thread-of-control operation is
	// attempted on a ThreadState that is no longer attached.
	ErrThreadDetached = errors.New("interpcore: thread state is not attached")

	// ErrSignalOutOfRange is returned for signal numbers outside [0, NumSignals).
	ErrSignalOutOfRange = errors.New("interpcore: signal number out of range")

	// ErrNilWork is returned when a nil function is scheduled.
	ErrNilWork = errors.New("interpcore: scheduled work function is nil")

	// ErrPermitHeld is returned when detaching a thread that still holds
	// the exclusive-execution permit.
	ErrPermitHeld = errors.New("interpcore: thread still holds the execution permit")
)

// InvariantError is the panic payload for corruption-class defects: a pool
// count exceeding its capacity, ring indices out of agreement, or draining
// without the exclusive-execution permit. These indicate a bug in the caller
// or in this package, and silent continuation risks memory corruption, so
// they abort rather than surface as ordinary errors.
type InvariantError struct {
	// Op names the operation that detected the violation.
	Op string
	// Detail describes the observed inconsistency.
	Detail string
}

// Error implements the error interface.
func (e *InvariantError) Error() string {
	return fmt.Sprintf("interpcore: invariant violation in %s: %s", e.Op, e.Detail)
}

// invariantViolation aborts with a diagnostic. It never returns.
func invariantViolation(op, format string, args ...any) {
	panic(&InvariantError{Op: op, Detail: fmt.Sprintf(format, args...)})
}
