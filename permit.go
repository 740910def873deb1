package interpcore

import (
	"sync"
)

// permit implements the exclusive-execution permit: the right, held by
// exactly one thread of control at a time, to mutate interpreter-visible
// state. Handoff is cooperative, not preemptive: waiters raise the
// drop-requested breaker bit, and the holder releases only at an
// eval-breaker checkpoint.
type permit struct {
	mu      sync.Mutex
	cond    *sync.Cond
	holder  *ThreadState
	breaker *EvalBreaker

	// waiters counts threads blocked in acquire; a checkpoint drop with no
	// waiters retakes the permit immediately.
	waiters int

	// handoffs increments on every successful acquire. dropAndReacquire
	// uses it to detect that a waiter really took the permit before
	// contending again, so a drop cannot silently hand the permit back to
	// the dropper.
	handoffs uint64
}

func newPermit(breaker *EvalBreaker) *permit {
	p := &permit{breaker: breaker}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// acquire blocks until the permit is free, then takes it for ts. While
// blocked it keeps the drop-requested bit raised so the current holder
// yields at its next checkpoint; taking the permit clears the bit.
func (p *permit) acquire(ts *ThreadState) {
	p.mu.Lock()
	p.waiters++
	for p.holder != nil {
		p.breaker.raise(breakerDropRequested)
		p.cond.Wait()
	}
	p.waiters--
	p.holder = ts
	p.handoffs++
	p.breaker.clear(breakerDropRequested)
	p.cond.Broadcast()
	p.mu.Unlock()
}

// release gives up the permit and wakes waiters. Releasing a permit the
// caller does not hold is a corruption-class defect.
func (p *permit) release(ts *ThreadState) {
	p.mu.Lock()
	if p.holder != ts {
		p.mu.Unlock()
		invariantViolation("permit.release", "thread %d does not hold the permit", ts.id)
	}
	p.holder = nil
	p.cond.Broadcast()
	p.mu.Unlock()
}

// dropAndReacquire is the checkpoint response to a drop request: release
// the permit, wait until some waiter has taken it, then contend to take it
// back. With no waiters the permit is retaken immediately.
func (p *permit) dropAndReacquire(ts *ThreadState) {
	p.mu.Lock()
	if p.holder != ts {
		p.mu.Unlock()
		invariantViolation("permit.dropAndReacquire", "thread %d does not hold the permit", ts.id)
	}
	seq := p.handoffs
	p.holder = nil
	p.cond.Broadcast()
	for p.waiters > 0 && p.handoffs == seq {
		p.cond.Wait()
	}
	p.waiters++
	for p.holder != nil {
		p.cond.Wait()
	}
	p.waiters--
	p.holder = ts
	p.handoffs++
	p.breaker.clear(breakerDropRequested)
	p.cond.Broadcast()
	p.mu.Unlock()
}

// heldBy reports whether ts currently holds the permit.
func (p *permit) heldBy(ts *ThreadState) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.holder == ts
}

// requestDrop asks the current holder to voluntarily release at its next
// checkpoint. Safe from any goroutine.
func (p *permit) requestDrop() {
	p.breaker.raise(breakerDropRequested)
}
