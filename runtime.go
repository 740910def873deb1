package interpcore

import (
	"sync"
	"sync/atomic"

	"github.com/joeycumines/logiface"
)

// Runtime is the per-interpreter control-plane state: one eval breaker, one
// pending-call queue, one small-value cache, one free-list pool per value
// category, the registry of attached threads of control, and the
// exclusive-execution permit.
//
// All pool and cache accessors must be called while holding the permit;
// they are unsynchronized by design. Schedule, NotifySignal, RequestDrop,
// and the breaker read are safe from any goroutine.
type Runtime struct {
	// Prevent copying
	_ [0]func()

	phase   phaseMachine
	breaker EvalBreaker

	pending  pendingCalls
	permit   *permit
	registry threadRegistry
	signals  signalTable

	small *smallValueCache

	floats         *freeList[*FloatValue]
	tuples         *bucketedFreeList[*TupleValue]
	lists          *freeList[*ListValue]
	dicts          *freeList[*DictValue]
	dictKeys       *freeList[*DictKeysTable]
	frames         *freeList[*FrameValue]
	asyncGenValues *freeList[*AsyncGenWrappedValue]
	asyncGenASends *freeList[*AsyncGenASend]
	contexts       *freeList[*ContextValue]
	memErrors      *freeList[*MemErrorValue]

	// strictMemErrMisses counts acquires the preallocated memory-error pool
	// could not serve. The pool is the strict category: it exists so the
	// out-of-memory path does not allocate, and a miss is worth observing.
	strictMemErrMisses atomic.Uint64

	// traceHooks counts attached threads with a trace hook installed; the
	// tracing-active breaker bit is set iff it is nonzero.
	traceHooks atomic.Int64

	tracingHook TraceFunc
	logger      *logiface.Logger[logiface.Event]

	finalizeOnce sync.Once
	finalizeErr  error
}

// New constructs and initializes a Runtime: the cache and pools are built,
// the pending-call queue armed, and the phase advanced to running.
func New(opts ...Option) (*Runtime, error) {
	cfg, err := resolveRuntimeOptions(opts)
	if err != nil {
		return nil, err
	}

	rt := &Runtime{
		tracingHook: cfg.tracingHook,
		logger:      cfg.logger,
	}
	if !rt.phase.TryTransition(PhaseUninitialized, PhaseInitializing) {
		invariantViolation("New", "fresh runtime not in phase %s", PhaseUninitialized)
	}

	rt.pending.breaker = &rt.breaker
	rt.permit = newPermit(&rt.breaker)
	rt.small = newSmallValueCache()

	rt.floats = newFreeList[*FloatValue](cfg.capacities[CategoryFloat])
	rt.tuples = newBucketedFreeList[*TupleValue](maxTupleSaveSize, cfg.capacities[CategoryTuple])
	rt.lists = newFreeList[*ListValue](cfg.capacities[CategoryList])
	rt.dicts = newFreeList[*DictValue](cfg.capacities[CategoryDict])
	rt.dictKeys = newFreeList[*DictKeysTable](cfg.capacities[CategoryDictKeys])
	rt.frames = newFreeList[*FrameValue](cfg.capacities[CategoryFrame])
	rt.asyncGenValues = newFreeList[*AsyncGenWrappedValue](cfg.capacities[CategoryAsyncGenValue])
	rt.asyncGenASends = newFreeList[*AsyncGenASend](cfg.capacities[CategoryAsyncGenASend])
	rt.contexts = newFreeList[*ContextValue](cfg.capacities[CategoryContext])
	rt.memErrors = newFreeList[*MemErrorValue](cfg.capacities[CategoryMemError])

	// The zero-length tuple is a shared singleton, installed once.
	rt.tuples.Release(0, &TupleValue{})

	// The memory-error pool is topped up at init so the out-of-memory path
	// never has to allocate.
	for i := 0; i < rt.memErrors.Cap(); i++ {
		rt.memErrors.Release(&MemErrorValue{Msg: "out of memory"})
	}

	if !rt.phase.TryTransition(PhaseInitializing, PhaseRunning) {
		invariantViolation("New", "initialization raced with another transition")
	}
	rt.logger.Info().Str("phase", rt.phase.Load().String()).Log("runtime initialized")
	return rt, nil
}

// Phase returns the current lifecycle phase.
func (r *Runtime) Phase() Phase {
	return r.phase.Load()
}

// CheckBreaker is the hot-path read: a single atomic load reporting whether
// any slow-path condition needs handling. Intended to be called once per
// unit of interpreted work.
func (r *Runtime) CheckBreaker() bool {
	return r.breaker.Check()
}

// Breaker exposes the aggregate for diagnostic reads.
func (r *Runtime) Breaker() *EvalBreaker {
	return &r.breaker
}

// --- Threads & permit ---

// Attach registers a new thread of control. Only permitted while running.
func (r *Runtime) Attach() (*ThreadState, error) {
	if !r.phase.CanAcceptWork() {
		return nil, ErrNotRunning
	}
	return r.registry.attach(r), nil
}

// Detach unregisters ts. The thread must not hold the permit.
func (r *Runtime) Detach(ts *ThreadState) error {
	if r.permit.heldBy(ts) {
		return ErrPermitHeld
	}
	if ts.traceHook() != nil {
		ts.SetTrace(nil)
	}
	return r.registry.detach(ts)
}

// AcquirePermit blocks until ts holds the exclusive-execution permit.
func (r *Runtime) AcquirePermit(ts *ThreadState) {
	r.permit.acquire(ts)
}

// ReleasePermit gives up the permit held by ts.
func (r *Runtime) ReleasePermit(ts *ThreadState) {
	r.permit.release(ts)
}

// PermitHeldBy reports whether ts currently holds the permit.
func (r *Runtime) PermitHeldBy(ts *ThreadState) bool {
	return r.permit.heldBy(ts)
}

// RequestDrop asks the permit holder to release at its next checkpoint.
// Safe from any goroutine.
func (r *Runtime) RequestDrop() {
	r.permit.requestDrop()
}

// --- Pending calls ---

// Schedule deposits a deferred work item for execution by the permit
// holder at its next checkpoint. Safe from any goroutine and from
// signal-forwarding context: no allocation, one bounded lock acquisition.
// Returns ErrQueueFull at capacity and ErrFinalizing once teardown has
// begun; the caller owns the retry/drop decision.
func (r *Runtime) Schedule(fn func(arg any) error, arg any) error {
	if fn == nil {
		return ErrNilWork
	}
	return r.pending.schedule(fn, arg)
}

// DrainOne pops the oldest pending work item without executing it.
// Callable only by the permit holder; violating that is fatal.
func (r *Runtime) DrainOne(ts *ThreadState) (Work, bool) {
	if !r.permit.heldBy(ts) {
		invariantViolation("Runtime.DrainOne", "thread %d does not hold the permit", ts.id)
	}
	return r.pending.drainOne()
}

// PendingCalls returns the number of queued work items.
func (r *Runtime) PendingCalls() int {
	return r.pending.length()
}

// --- Signals ---

// NotifySignal marks sig pending and raises the breaker bit. Safe from any
// goroutine; performs no allocation.
func (r *Runtime) NotifySignal(sig int) error {
	if err := r.signals.notify(sig); err != nil {
		return err
	}
	r.breaker.raise(breakerSignalPending)
	return nil
}

// SetSignalHandler installs (or removes, with nil) the handler delivered
// on the permit-holding thread for sig.
func (r *Runtime) SetSignalHandler(sig int, h SignalHandler) error {
	return r.signals.setHandler(sig, h)
}

// traceDelta adjusts the count of installed trace hooks and recomputes the
// tracing-active bit.
func (r *Runtime) traceDelta(d int64) {
	n := r.traceHooks.Add(d)
	if n < 0 {
		invariantViolation("Runtime.traceDelta", "trace hook count went negative (%d)", n)
	}
	if n > 0 {
		r.breaker.raise(breakerTracingActive)
	} else {
		r.breaker.clear(breakerTracingActive)
	}
}

// --- Checkpoint ---

// Checkpoint is the slow path taken when CheckBreaker reports true.
// Conditions are handled in priority order: pending calls drain first,
// then signals deliver, then a drop request releases the permit (letting
// another thread run) before reacquiring, then tracing hooks fire.
//
// Callable only by the permit holder; violating that is fatal. Returns the
// first error from a pending work item, leaving later items queued.
func (r *Runtime) Checkpoint(ts *ThreadState) error {
	if !r.permit.heldBy(ts) {
		invariantViolation("Runtime.Checkpoint", "thread %d does not hold the permit", ts.id)
	}
	if !r.breaker.Check() {
		return nil
	}

	// 1. Pending calls. Each item executes outside the ring's lock, so an
	// item that re-enters Schedule cannot deadlock.
	for {
		w, ok := r.pending.drainOne()
		if !ok {
			break
		}
		if err := w.Fn(w.Arg); err != nil {
			r.logger.Err().Err(err).Log("pending call failed")
			return err
		}
	}

	// 2. Signals. The bit clears before the scan; a concurrent
	// NotifySignal re-raises it and is picked up next checkpoint.
	if r.breaker.has(breakerSignalPending) {
		r.breaker.clear(breakerSignalPending)
		r.signals.deliver(func(sig int, h SignalHandler) {
			h(sig)
		})
	}

	// 3. Drop request: voluntarily release the permit, wait for a waiter
	// to take it, then contend to reacquire. The taker clears the bit.
	if r.breaker.has(breakerDropRequested) {
		r.permit.dropAndReacquire(ts)
	}

	// 4. Tracing hooks.
	if r.breaker.has(breakerTracingActive) {
		if hook := r.tracingHook; hook != nil {
			hook(ts)
		}
		if hook := ts.traceHook(); hook != nil {
			hook(ts)
		}
	}

	return nil
}

// --- Small value cache ---

// LookupInt returns the shared preboxed integer for i, or false if i is
// outside the cached range (or the cache has been torn down).
func (r *Runtime) LookupInt(i int64) (*IntValue, bool) {
	if r.small == nil {
		return nil, false
	}
	return r.small.lookupInt(i)
}

// LookupRune returns the shared single-rune string for r, or false outside
// the latin-1 range.
func (r *Runtime) LookupRune(c rune) (*StrValue, bool) {
	if r.small == nil {
		return nil, false
	}
	return r.small.lookupRune(c)
}

// LookupByteChar returns the shared single-byte byte-string for b. Every
// byte value is cached; false only after teardown.
func (r *Runtime) LookupByteChar(b byte) (*BytesValue, bool) {
	if r.small == nil {
		return nil, false
	}
	return r.small.lookupByteChar(b), true
}

// EmptyString returns the shared empty string singleton.
func (r *Runtime) EmptyString() *StrValue {
	if r.small == nil {
		return nil
	}
	return r.small.emptyStr
}

// EmptyBytes returns the shared empty byte-string singleton.
func (r *Runtime) EmptyBytes() *BytesValue {
	if r.small == nil {
		return nil
	}
	return r.small.emptyBytes
}

// --- Free list pools (permit holder only) ---
//
// Acquire returns (zero, false) on a miss; the caller allocates. Release
// returns false on rejection; the caller drops the reference. Neither path
// is an error.

// AcquireFloat pops a recycled float record.
func (r *Runtime) AcquireFloat() (*FloatValue, bool) {
	return r.floats.Acquire()
}

// ReleaseFloat offers a float record back to its pool.
func (r *Runtime) ReleaseFloat(v *FloatValue) bool {
	v.V = 0
	return r.floats.Release(v)
}

// AcquireTuple pops a recycled tuple of exactly length n. Length 0 returns
// the shared empty-tuple singleton, which must never be mutated or
// released. Lengths at or above the pooled maximum always miss.
func (r *Runtime) AcquireTuple(n int) (*TupleValue, bool) {
	return r.tuples.Acquire(n)
}

// ReleaseTuple offers a tuple back to its length bucket. Element slots are
// cleared so their referents can be collected while the shape is resident.
func (r *Runtime) ReleaseTuple(v *TupleValue) bool {
	for i := range v.Items {
		v.Items[i] = nil
	}
	return r.tuples.Release(len(v.Items), v)
}

// NewTuple acquires from the pool or falls back to the general allocator.
func (r *Runtime) NewTuple(n int) *TupleValue {
	if v, ok := r.tuples.Acquire(n); ok {
		return v
	}
	return &TupleValue{Items: make([]Ref, n)}
}

// AcquireList pops a recycled list record.
func (r *Runtime) AcquireList() (*ListValue, bool) {
	return r.lists.Acquire()
}

// ReleaseList offers a list record back, keeping its backing array.
func (r *Runtime) ReleaseList(v *ListValue) bool {
	for i := range v.Items {
		v.Items[i] = nil
	}
	v.Items = v.Items[:0]
	return r.lists.Release(v)
}

// AcquireDict pops a recycled dict record.
func (r *Runtime) AcquireDict() (*DictValue, bool) {
	return r.dicts.Acquire()
}

// ReleaseDict offers a dict record back. The key table is not released
// here; it has its own pool.
func (r *Runtime) ReleaseDict(v *DictValue) bool {
	v.Keys = nil
	for i := range v.Values {
		v.Values[i] = nil
	}
	v.Values = v.Values[:0]
	return r.dicts.Release(v)
}

// AcquireDictKeys pops a recycled key table.
func (r *Runtime) AcquireDictKeys() (*DictKeysTable, bool) {
	return r.dictKeys.Acquire()
}

// ReleaseDictKeys offers a key table back, keeping its backing array.
func (r *Runtime) ReleaseDictKeys(v *DictKeysTable) bool {
	for i := range v.Entries {
		v.Entries[i] = DictEntry{}
	}
	v.Entries = v.Entries[:0]
	return r.dictKeys.Release(v)
}

// AcquireFrame pops a recycled frame record.
func (r *Runtime) AcquireFrame() (*FrameValue, bool) {
	return r.frames.Acquire()
}

// ReleaseFrame offers a frame record back, keeping its backing arrays.
func (r *Runtime) ReleaseFrame(v *FrameValue) bool {
	for i := range v.Locals {
		v.Locals[i] = nil
	}
	for i := range v.Stack {
		v.Stack[i] = nil
	}
	v.Locals = v.Locals[:0]
	v.Stack = v.Stack[:0]
	v.Prev = nil
	return r.frames.Release(v)
}

// AcquireAsyncGenValue pops a recycled async-generator wrapped value.
func (r *Runtime) AcquireAsyncGenValue() (*AsyncGenWrappedValue, bool) {
	return r.asyncGenValues.Acquire()
}

// ReleaseAsyncGenValue offers a wrapped value back to its pool.
func (r *Runtime) ReleaseAsyncGenValue(v *AsyncGenWrappedValue) bool {
	v.Value = nil
	return r.asyncGenValues.Release(v)
}

// AcquireAsyncGenASend pops a recycled asend helper record.
func (r *Runtime) AcquireAsyncGenASend() (*AsyncGenASend, bool) {
	return r.asyncGenASends.Acquire()
}

// ReleaseAsyncGenASend offers an asend helper back to its pool.
func (r *Runtime) ReleaseAsyncGenASend(v *AsyncGenASend) bool {
	v.Gen = nil
	v.SendValue = nil
	return r.asyncGenASends.Release(v)
}

// AcquireContext pops a recycled context record.
func (r *Runtime) AcquireContext() (*ContextValue, bool) {
	return r.contexts.Acquire()
}

// ReleaseContext offers a context record back, keeping its backing array.
func (r *Runtime) ReleaseContext(v *ContextValue) bool {
	for i := range v.Entries {
		v.Entries[i] = DictEntry{}
	}
	v.Entries = v.Entries[:0]
	v.Prev = nil
	return r.contexts.Release(v)
}

// AcquireMemError never fails: the pool is preallocated, and on the rare
// strict miss a fresh record is allocated and counted. This is the one
// category where a miss is not transparent bookkeeping but a signal that
// the preallocation was undersized.
func (r *Runtime) AcquireMemError() *MemErrorValue {
	if v, ok := r.memErrors.Acquire(); ok {
		return v
	}
	r.strictMemErrMisses.Add(1)
	return &MemErrorValue{Msg: "out of memory"}
}

// ReleaseMemError offers a memory-error record back to its pool.
func (r *Runtime) ReleaseMemError(v *MemErrorValue) bool {
	v.Msg = "out of memory"
	return r.memErrors.Release(v)
}

// StrictMemErrorMisses returns how many memory-error acquires bypassed the
// preallocated pool.
func (r *Runtime) StrictMemErrorMisses() uint64 {
	return r.strictMemErrMisses.Load()
}

// PoolCounts returns the resident entry count per category. Diagnostic;
// permit holder only.
func (r *Runtime) PoolCounts() map[Category]int {
	return map[Category]int{
		CategoryFloat:         r.floats.Len(),
		CategoryTuple:         r.tuples.Len(),
		CategoryList:          r.lists.Len(),
		CategoryDict:          r.dicts.Len(),
		CategoryDictKeys:      r.dictKeys.Len(),
		CategoryFrame:         r.frames.Len(),
		CategoryAsyncGenValue: r.asyncGenValues.Len(),
		CategoryAsyncGenASend: r.asyncGenASends.Len(),
		CategoryContext:       r.contexts.Len(),
		CategoryMemError:      r.memErrors.Len(),
	}
}

// --- Finalization ---

// Finalize tears the runtime down in strict reverse-dependency order: the
// queue is disabled and drained before pools are released, and pools are
// released before the cache. Idempotent; the first call's result is
// retained. Returns ErrNotRunning if the runtime never reached running.
func (r *Runtime) Finalize() error {
	r.finalizeOnce.Do(func() {
		r.finalizeErr = r.finalize()
	})
	return r.finalizeErr
}

func (r *Runtime) finalize() error {
	if !r.phase.TryTransition(PhaseRunning, PhaseFinalizing) {
		return ErrNotRunning
	}
	r.logger.Debug().Str("phase", PhaseFinalizing.String()).Log("finalizing runtime")

	// Queue first: reject new schedules, then run what was accepted.
	r.pending.disable()
	drained := 0
	for {
		w, ok := r.pending.drainOne()
		if !ok {
			break
		}
		drained++
		if err := w.Fn(w.Arg); err != nil {
			// Teardown continues; the item had its chance.
			r.logger.Warning().Err(err).Log("pending call failed during finalize")
		}
	}

	released := r.floats.Clear() +
		r.tuples.Clear() +
		r.lists.Clear() +
		r.dicts.Clear() +
		r.dictKeys.Clear() +
		r.frames.Clear() +
		r.asyncGenValues.Clear() +
		r.asyncGenASends.Clear() +
		r.contexts.Clear() +
		r.memErrors.Clear()

	// Cache last, en masse.
	r.small = nil

	swept := r.registry.sweep()

	if !r.phase.TryTransition(PhaseFinalizing, PhaseTornDown) {
		invariantViolation("Runtime.finalize", "finalization raced with another transition")
	}
	r.logger.Info().
		Int("drained", drained).
		Int("released", released).
		Int("threads", swept).
		Log("runtime torn down")
	return nil
}
