package interpcore

import (
	"sync"
)

// pendingCallsCapacity is the fixed size of the pending-call ring.
const pendingCallsCapacity = 32

// Work is a deferred unit of work deposited by a foreign thread of control
// or an asynchronous-signal context, to be executed only by the thread
// holding the exclusive-execution permit.
type Work struct {
	Fn  func(arg any) error
	Arg any
}

// pendingCalls is a bounded circular buffer feeding deferred work into the
// eval breaker.
//
// Concurrency: Schedule may be called from any goroutine, including
// signal-handler context: it performs no dynamic allocation and only a
// strictly bounded lock acquisition. The mutex protects only
// first/last/count; work items execute outside the lock so an item that
// re-enters Schedule cannot deadlock.
type pendingCalls struct {
	mu       sync.Mutex
	calls    [pendingCallsCapacity]Work
	first    int // index of the oldest item
	last     int // index of the next free slot
	count    int
	disabled bool
	breaker  *EvalBreaker
}

// schedule deposits a work item. Returns ErrQueueFull at capacity and
// ErrFinalizing once the queue has been disabled; rejection is immediate
// and never internally retried.
func (p *pendingCalls) schedule(fn func(any) error, arg any) error {
	p.mu.Lock()
	if p.disabled {
		p.mu.Unlock()
		return ErrFinalizing
	}
	if p.count < 0 || p.count > pendingCallsCapacity {
		p.mu.Unlock()
		invariantViolation("pendingCalls.schedule", "count %d outside [0, %d]", p.count, pendingCallsCapacity)
	}
	if p.count == pendingCallsCapacity {
		p.mu.Unlock()
		return ErrQueueFull
	}
	p.calls[p.last] = Work{Fn: fn, Arg: arg}
	p.last = (p.last + 1) % pendingCallsCapacity
	p.count++
	if p.count == 1 {
		// Raised while holding the lock so the bit can never lag behind a
		// concurrent drain's empty-transition clear.
		p.breaker.raise(breakerPendingCalls)
	}
	p.mu.Unlock()
	return nil
}

// drainOne pops the oldest item in FIFO order. Clears the
// pending-calls-present bit once the queue empties. The caller executes
// the returned item outside the lock.
func (p *pendingCalls) drainOne() (Work, bool) {
	p.mu.Lock()
	if p.count < 0 || p.count > pendingCallsCapacity {
		p.mu.Unlock()
		invariantViolation("pendingCalls.drainOne", "count %d outside [0, %d]", p.count, pendingCallsCapacity)
	}
	if p.count == 0 {
		p.mu.Unlock()
		return Work{}, false
	}
	w := p.calls[p.first]
	p.calls[p.first] = Work{} // zero the slot so the closure can be collected
	p.first = (p.first + 1) % pendingCallsCapacity
	p.count--
	if p.count == 0 {
		p.breaker.clear(breakerPendingCalls)
	}
	p.mu.Unlock()
	return w, true
}

// disable rejects all future schedules. Part of finalization; items already
// accepted remain drainable.
func (p *pendingCalls) disable() {
	p.mu.Lock()
	p.disabled = true
	p.mu.Unlock()
}

// length returns the current item count.
func (p *pendingCalls) length() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.count
}
