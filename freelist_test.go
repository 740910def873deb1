package interpcore

import (
	"testing"
)

func TestFreeListAcquireEmptyMisses(t *testing.T) {
	f := newFreeList[*FloatValue](4)
	if v, ok := f.Acquire(); ok || v != nil {
		t.Fatalf("Acquire on empty pool = (%v, %v), want miss", v, ok)
	}
}

func TestFreeListLIFOReturnsExactHandle(t *testing.T) {
	f := newFreeList[*FloatValue](4)
	a := &FloatValue{V: 1}
	b := &FloatValue{V: 2}
	if !f.Release(a) || !f.Release(b) {
		t.Fatal("releases below capacity must be retained")
	}
	// Most recently released comes back first, and it is the identical
	// handle, not a copy.
	got, ok := f.Acquire()
	if !ok || got != b {
		t.Fatalf("first Acquire = %p, want %p", got, b)
	}
	got, ok = f.Acquire()
	if !ok || got != a {
		t.Fatalf("second Acquire = %p, want %p", got, a)
	}
	if _, ok := f.Acquire(); ok {
		t.Fatal("third Acquire must miss")
	}
}

func TestFreeListCapacityBound(t *testing.T) {
	const capacity = 8
	f := newFreeList[*ListValue](capacity)
	for i := 0; i < capacity; i++ {
		if !f.Release(&ListValue{}) {
			t.Fatalf("release %d rejected below capacity", i)
		}
		if f.Len() > f.Cap() {
			t.Fatalf("count %d exceeds capacity %d", f.Len(), f.Cap())
		}
	}
	if f.Release(&ListValue{}) {
		t.Fatal("release at capacity must be rejected")
	}
	if f.Len() != capacity {
		t.Fatalf("Len = %d, want %d", f.Len(), capacity)
	}
}

func TestFreeListMixedAcquireReleaseNeverExceedsCapacity(t *testing.T) {
	const capacity = 5
	f := newFreeList[*FrameValue](capacity)
	// Deterministic churn: bursts of releases interleaved with acquires.
	for round := 0; round < 50; round++ {
		for i := 0; i < round%(capacity+3); i++ {
			f.Release(&FrameValue{})
			if f.Len() > capacity {
				t.Fatalf("round %d: count %d exceeds capacity", round, f.Len())
			}
		}
		for i := 0; i < round%4; i++ {
			f.Acquire()
		}
	}
}

func TestFreeListZeroCapacityRejectsEverything(t *testing.T) {
	f := newFreeList[*ContextValue](0)
	if f.Release(&ContextValue{}) {
		t.Fatal("zero-capacity pool must reject all releases")
	}
	if _, ok := f.Acquire(); ok {
		t.Fatal("zero-capacity pool must always miss")
	}
}

func TestFreeListClear(t *testing.T) {
	f := newFreeList[*DictValue](4)
	f.Release(&DictValue{})
	f.Release(&DictValue{})
	if n := f.Clear(); n != 2 {
		t.Fatalf("Clear = %d, want 2", n)
	}
	if f.Len() != 0 {
		t.Fatalf("Len after Clear = %d, want 0", f.Len())
	}
}

func TestBucketedFreeListEmptySingleton(t *testing.T) {
	b := newBucketedFreeList[*TupleValue](maxTupleSaveSize, 4)

	if _, ok := b.Acquire(0); ok {
		t.Fatal("Acquire(0) before singleton install must miss")
	}

	empty := &TupleValue{}
	if !b.Release(0, empty) {
		t.Fatal("first empty release must install the singleton")
	}
	if b.Release(0, &TupleValue{}) {
		t.Fatal("second empty release must be rejected")
	}

	// Acquire(0) shares the singleton without removing it.
	for i := 0; i < 3; i++ {
		got, ok := b.Acquire(0)
		if !ok || got != empty {
			t.Fatalf("Acquire(0) #%d = (%p, %v), want shared %p", i, got, ok, empty)
		}
	}
}

func TestBucketedFreeListBucketsAreIndependent(t *testing.T) {
	b := newBucketedFreeList[*TupleValue](maxTupleSaveSize, 1)
	two := &TupleValue{Items: make([]Ref, 2)}
	three := &TupleValue{Items: make([]Ref, 3)}
	if !b.Release(2, two) || !b.Release(3, three) {
		t.Fatal("releases into distinct buckets must both be retained")
	}
	if b.Release(2, &TupleValue{Items: make([]Ref, 2)}) {
		t.Fatal("bucket 2 at capacity must reject")
	}
	got, ok := b.Acquire(3)
	if !ok || got != three {
		t.Fatalf("Acquire(3) = (%p, %v), want %p", got, ok, three)
	}
}

func TestBucketedFreeListOversizeBypassesPooling(t *testing.T) {
	b := newBucketedFreeList[*TupleValue](maxTupleSaveSize, 4)
	big := &TupleValue{Items: make([]Ref, maxTupleSaveSize)}
	if b.Release(maxTupleSaveSize, big) {
		t.Fatal("oversize release must be rejected")
	}
	if _, ok := b.Acquire(maxTupleSaveSize); ok {
		t.Fatal("oversize acquire must miss")
	}
	if _, ok := b.Acquire(maxTupleSaveSize + 7); ok {
		t.Fatal("far-oversize acquire must miss")
	}
}

func TestBucketedFreeListClearIncludesSingleton(t *testing.T) {
	b := newBucketedFreeList[*TupleValue](maxTupleSaveSize, 4)
	b.Release(0, &TupleValue{})
	b.Release(1, &TupleValue{Items: make([]Ref, 1)})
	b.Release(2, &TupleValue{Items: make([]Ref, 2)})
	if n := b.Clear(); n != 3 {
		t.Fatalf("Clear = %d, want 3", n)
	}
	if b.Len() != 0 {
		t.Fatalf("Len after Clear = %d, want 0", b.Len())
	}
	if _, ok := b.Acquire(0); ok {
		t.Fatal("singleton must be gone after Clear")
	}
}

func TestBucketIndexNegativeSizePanics(t *testing.T) {
	defer func() {
		if _, ok := recover().(*InvariantError); !ok {
			t.Fatal("negative size must panic with InvariantError")
		}
	}()
	bucketIndex(-1, maxTupleSaveSize)
}
