// Package interpcore implements the per-interpreter runtime control-plane
// for an embeddable interpreter: bounded free-list pools for fixed-shape
// heap values, a small-value cache of shared immutable singletons, a
// pending-call queue for cross-thread work submission, and an aggregated
// "eval breaker" flag consulted on every step of an interpretation loop.
//
// # Architecture
//
// A [Runtime] owns exactly one instance of each subsystem:
//
//   - [EvalBreaker]: one atomic word aggregating independent interrupt
//     conditions (pending calls, signals, permit-drop requests, tracing)
//     into a single hot-path check.
//   - Small value cache: preboxed integers over [-5, 257), 256 latin-1
//     single-rune string singletons, and 256 single-byte byte-string
//     singletons, shared without copying for the whole runtime lifetime.
//   - Free-list pools: bounded LIFO reuse stacks for floats, tuples
//     (bucketed by length), lists, dict tables, frames, async-generator
//     helper records, context records, and preallocated memory-error
//     records. A pool never fails; it only advises fallback to the
//     general allocator.
//   - Pending-call queue: a 32-slot ring buffer guarded by a short-held
//     mutex. [Runtime.Schedule] is safe from any goroutine and performs no
//     allocation; draining happens only on the thread holding the
//     exclusive-execution permit.
//
// # Thread Safety
//
//   - [Runtime.Schedule], [Runtime.NotifySignal], and
//     [Runtime.RequestDrop] are safe to call from any goroutine.
//   - The eval breaker is read and written exclusively through atomic
//     operations; readers never observe a torn or invalid combination.
//   - Free-list pools and the small-value cache are touched only by the
//     thread holding the exclusive-execution permit and need no locks.
//   - The pending-call ring's head/tail/count are the only fields mutated
//     from multiple threads without the permit, hence the only fields
//     with a dedicated mutex.
//
// # Lifecycle
//
// A runtime moves strictly forward through
// uninitialized → initializing → running → finalizing → torn down.
// [Runtime.Finalize] disables and drains the pending-call queue before
// pools are released, and releases pools before the cache. A finalized
// runtime cannot be restarted; construct a new one instead.
//
// # Usage
//
//	rt, err := interpcore.New()
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer rt.Finalize()
//
//	ts, err := rt.Attach()
//	if err != nil {
//		log.Fatal(err)
//	}
//	rt.AcquirePermit(ts)
//	defer rt.ReleasePermit(ts)
//
//	for step := 0; step < n; step++ {
//		if rt.CheckBreaker() {
//			if err := rt.Checkpoint(ts); err != nil {
//				break
//			}
//		}
//		// ... one unit of interpreted work ...
//	}
package interpcore
