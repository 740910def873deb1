package interpcore

import (
	"sync"
)

// TraceFunc receives tracing callbacks at eval-breaker checkpoints while
// tracing is active.
type TraceFunc func(ts *ThreadState)

// ThreadState is the per-thread-of-control record. One is created per
// Attach and linked into the runtime's registry until Detach or teardown.
type ThreadState struct {
	id       uint64
	rt       *Runtime
	next     *ThreadState
	trace    TraceFunc
	attached bool
}

// ID returns the thread state's runtime-unique identifier.
func (ts *ThreadState) ID() uint64 {
	return ts.id
}

// SetTrace installs or removes (nil) this thread's trace hook. The
// runtime-wide tracing-active breaker bit is set iff at least one attached
// thread has a hook installed.
func (ts *ThreadState) SetTrace(fn TraceFunc) {
	ts.rt.registry.mu.Lock()
	had := ts.trace != nil
	ts.trace = fn
	ts.rt.registry.mu.Unlock()
	switch {
	case fn != nil && !had:
		ts.rt.traceDelta(1)
	case fn == nil && had:
		ts.rt.traceDelta(-1)
	}
}

// traceHook returns this thread's trace hook under the registry lock.
func (ts *ThreadState) traceHook() TraceFunc {
	ts.rt.registry.mu.Lock()
	defer ts.rt.registry.mu.Unlock()
	return ts.trace
}

// threadRegistry is an intrusive singly-linked list of live thread states.
// Head insertion keeps attach O(1); the list is walked only on detach and
// teardown, which are cold paths.
type threadRegistry struct {
	mu     sync.Mutex
	head   *ThreadState
	nextID uint64
	count  int
}

// attach creates and links a new thread state.
func (r *threadRegistry) attach(rt *Runtime) *ThreadState {
	r.mu.Lock()
	r.nextID++
	ts := &ThreadState{
		id:       r.nextID,
		rt:       rt,
		next:     r.head,
		attached: true,
	}
	r.head = ts
	r.count++
	r.mu.Unlock()
	return ts
}

// detach unlinks ts. Returns ErrThreadDetached if ts is not linked.
func (r *threadRegistry) detach(ts *ThreadState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !ts.attached {
		return ErrThreadDetached
	}
	for pp := &r.head; *pp != nil; pp = &(*pp).next {
		if *pp == ts {
			*pp = ts.next
			ts.next = nil
			ts.attached = false
			r.count--
			return nil
		}
	}
	invariantViolation("threadRegistry.detach", "thread %d marked attached but not linked", ts.id)
	return nil
}

// sweep unlinks every thread state, returning how many were removed. Used
// during teardown, after which no thread may touch the runtime.
func (r *threadRegistry) sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for ts := r.head; ts != nil; {
		next := ts.next
		ts.next = nil
		ts.attached = false
		ts = next
		n++
	}
	r.head = nil
	r.count = 0
	return n
}

// size returns the number of attached threads.
func (r *threadRegistry) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}
