package interpcore

import (
	"golang.org/x/exp/constraints"
)

// freeList is a bounded LIFO reuse stack for fixed-shape allocations.
//
// Thread Safety: NOT thread-safe. Pools are touched only by the thread
// holding the exclusive-execution permit, which provides all necessary
// synchronization.
//
// Ownership: an entry is owned by the pool while resident; ownership
// transfers to the caller on Acquire and back on a retained Release. A
// rejected Release leaves ownership with the caller, who frees via the
// general allocator (i.e. drops the reference).
type freeList[T any] struct {
	items    []T
	capacity int
}

// newFreeList creates a pool retaining at most capacity entries.
func newFreeList[T any](capacity int) *freeList[T] {
	if capacity < 0 {
		capacity = 0
	}
	return &freeList[T]{
		items:    make([]T, 0, capacity),
		capacity: capacity,
	}
}

// Acquire pops the most recently released entry. Returns false on a miss,
// in which case the caller obtains storage from the general allocator.
// LIFO order means the hottest (most recently touched) entry is reused
// first, improving locality for short-lived, high-churn values.
func (f *freeList[T]) Acquire() (T, bool) {
	n := len(f.items)
	if n > f.capacity {
		invariantViolation("freeList.Acquire", "count %d exceeds capacity %d", n, f.capacity)
	}
	if n == 0 {
		var zero T
		return zero, false
	}
	v := f.items[n-1]
	var zero T
	f.items[n-1] = zero // release the pool's reference
	f.items = f.items[:n-1]
	return v, true
}

// Release offers an entry back to the pool. Returns false (rejected) when
// the pool is at capacity; the caller then frees via the general allocator.
func (f *freeList[T]) Release(v T) bool {
	n := len(f.items)
	if n > f.capacity {
		invariantViolation("freeList.Release", "count %d exceeds capacity %d", n, f.capacity)
	}
	if n == f.capacity {
		return false
	}
	f.items = append(f.items, v)
	return true
}

// Len returns the number of resident entries.
func (f *freeList[T]) Len() int {
	return len(f.items)
}

// Cap returns the retention bound.
func (f *freeList[T]) Cap() int {
	return f.capacity
}

// Clear drops every resident entry, returning how many were released.
// Used during runtime teardown.
func (f *freeList[T]) Clear() int {
	n := len(f.items)
	var zero T
	for i := range f.items {
		f.items[i] = zero
	}
	f.items = f.items[:0]
	return n
}

// bucketIndex maps a discrete size to a pool bucket, reporting false for
// sizes at or above the bucket limit, which bypass pooling entirely.
func bucketIndex[S constraints.Integer](size S, limit int) (int, bool) {
	if size < 0 {
		invariantViolation("bucketIndex", "negative size %d", int64(size))
	}
	if int(size) >= limit {
		return 0, false
	}
	return int(size), true
}

// bucketedFreeList is an array of freeList indexed by a discrete size
// class. Bucket 0 holds at most one shared "empty" singleton; sizes at or
// above the bucket count bypass pooling and always use the general
// allocator.
type bucketedFreeList[T any] struct {
	buckets  []*freeList[T] // index 1..len-1; index 0 unused
	empty    T
	hasEmpty bool
}

// newBucketedFreeList creates buckets for sizes [1, numBuckets) with the
// given per-bucket capacity. Size 0 is reserved for the empty singleton.
func newBucketedFreeList[T any](numBuckets, perBucketCapacity int) *bucketedFreeList[T] {
	b := &bucketedFreeList[T]{
		buckets: make([]*freeList[T], numBuckets),
	}
	for i := 1; i < numBuckets; i++ {
		b.buckets[i] = newFreeList[T](perBucketCapacity)
	}
	return b
}

// Acquire returns a pooled entry for the given size class. For size 0 the
// shared empty singleton is returned (without transferring ownership; the
// singleton is immutable and never released individually). Sizes at or
// above the bucket limit always miss.
func (b *bucketedFreeList[T]) Acquire(size int) (T, bool) {
	if size == 0 {
		if b.hasEmpty {
			return b.empty, true
		}
		var zero T
		return zero, false
	}
	idx, ok := bucketIndex(size, len(b.buckets))
	if !ok {
		var zero T
		return zero, false
	}
	return b.buckets[idx].Acquire()
}

// Release offers an entry back. For size 0 the first release installs the
// shared empty singleton and every subsequent release is rejected,
// preserving the at-most-one invariant.
func (b *bucketedFreeList[T]) Release(size int, v T) bool {
	if size == 0 {
		if b.hasEmpty {
			return false
		}
		b.empty = v
		b.hasEmpty = true
		return true
	}
	idx, ok := bucketIndex(size, len(b.buckets))
	if !ok {
		return false
	}
	return b.buckets[idx].Release(v)
}

// Len returns the total resident entries across buckets, counting the
// empty singleton if installed.
func (b *bucketedFreeList[T]) Len() int {
	n := 0
	if b.hasEmpty {
		n++
	}
	for i := 1; i < len(b.buckets); i++ {
		n += b.buckets[i].Len()
	}
	return n
}

// Clear drops all resident entries, including the empty singleton.
func (b *bucketedFreeList[T]) Clear() int {
	n := 0
	if b.hasEmpty {
		var zero T
		b.empty = zero
		b.hasEmpty = false
		n++
	}
	for i := 1; i < len(b.buckets); i++ {
		n += b.buckets[i].Clear()
	}
	return n
}
