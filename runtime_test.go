package interpcore

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAndImmediateFinalizeLeaksNothing(t *testing.T) {
	rt, err := New()
	require.NoError(t, err)
	require.Equal(t, PhaseRunning, rt.Phase())

	// Pools start with only their init-time residents.
	counts := rt.PoolCounts()
	assert.Equal(t, 1, counts[CategoryTuple], "empty-tuple singleton")
	assert.Equal(t, defaultMemErrorCapacity, counts[CategoryMemError], "preallocated error records")

	require.NoError(t, rt.Finalize())
	require.Equal(t, PhaseTornDown, rt.Phase())

	for category, n := range rt.PoolCounts() {
		assert.Zero(t, n, "category %s retains %d entries after teardown", category, n)
	}
	if _, ok := rt.LookupInt(0); ok {
		t.Fatal("small-value cache survived teardown")
	}
	if _, ok := rt.LookupByteChar(0); ok {
		t.Fatal("byte-char cache survived teardown")
	}
	assert.Nil(t, rt.EmptyString())
}

func TestFinalizeIsIdempotent(t *testing.T) {
	rt, err := New()
	require.NoError(t, err)
	require.NoError(t, rt.Finalize())
	require.NoError(t, rt.Finalize())
	require.Equal(t, PhaseTornDown, rt.Phase())
}

func TestScheduleAfterFinalizeRejected(t *testing.T) {
	rt, err := New()
	require.NoError(t, err)
	require.NoError(t, rt.Finalize())
	err = rt.Schedule(func(any) error { return nil }, nil)
	require.ErrorIs(t, err, ErrFinalizing)
}

func TestFinalizeDrainsAcceptedWork(t *testing.T) {
	rt, err := New()
	require.NoError(t, err)
	ran := 0
	for i := 0; i < 3; i++ {
		require.NoError(t, rt.Schedule(func(any) error {
			ran++
			return nil
		}, nil))
	}
	require.NoError(t, rt.Finalize())
	assert.Equal(t, 3, ran, "accepted work must run during finalize")
	assert.Zero(t, rt.PendingCalls())
}

func TestAttachAfterFinalizeFails(t *testing.T) {
	rt, err := New()
	require.NoError(t, err)
	require.NoError(t, rt.Finalize())
	_, err = rt.Attach()
	require.ErrorIs(t, err, ErrNotRunning)
}

func TestScheduleNilWork(t *testing.T) {
	rt, err := New()
	require.NoError(t, err)
	defer rt.Finalize()
	require.ErrorIs(t, rt.Schedule(nil, nil), ErrNilWork)
}

func TestDetachWhileHoldingPermit(t *testing.T) {
	rt, err := New()
	require.NoError(t, err)
	defer rt.Finalize()

	ts, err := rt.Attach()
	require.NoError(t, err)
	require.Equal(t, 1, rt.registry.size())
	rt.AcquirePermit(ts)
	require.ErrorIs(t, rt.Detach(ts), ErrPermitHeld)
	require.Equal(t, 1, rt.registry.size(), "failed detach must not unlink")
	rt.ReleasePermit(ts)
	require.NoError(t, rt.Detach(ts))
	require.Zero(t, rt.registry.size())
	require.ErrorIs(t, rt.Detach(ts), ErrThreadDetached)
}

func TestSmallValueLookupsThroughRuntime(t *testing.T) {
	rt, err := New()
	require.NoError(t, err)
	defer rt.Finalize()

	a, ok := rt.LookupInt(42)
	require.True(t, ok)
	b, ok := rt.LookupInt(42)
	require.True(t, ok)
	assert.Same(t, a, b, "repeated lookups must share one handle")

	if _, ok := rt.LookupInt(smallIntPos); ok {
		t.Fatal("out-of-range int yielded a cached handle")
	}

	s, ok := rt.LookupRune('A')
	require.True(t, ok)
	assert.Equal(t, "A", s.S)

	bb, ok := rt.LookupByteChar(0xFF)
	require.True(t, ok)
	assert.Equal(t, []byte{0xFF}, bb.B)
}

func TestTuplePoolingThroughRuntime(t *testing.T) {
	rt, err := New()
	require.NoError(t, err)
	defer rt.Finalize()

	// Empty tuple: shared singleton, installed at init.
	e1, ok := rt.AcquireTuple(0)
	require.True(t, ok)
	e2, ok := rt.AcquireTuple(0)
	require.True(t, ok)
	assert.Same(t, e1, e2)

	// Fresh runtime: non-empty buckets start cold.
	if _, ok := rt.AcquireTuple(3); ok {
		t.Fatal("cold bucket must miss")
	}
	tup := rt.NewTuple(3)
	require.Len(t, tup.Items, 3)
	tup.Items[0] = "x"
	require.True(t, rt.ReleaseTuple(tup))

	got, ok := rt.AcquireTuple(3)
	require.True(t, ok)
	assert.Same(t, tup, got, "LIFO must return the released handle")
	assert.Nil(t, got.Items[0], "element slots must be cleared on release")

	// Oversize tuples bypass pooling.
	big := rt.NewTuple(maxTupleSaveSize)
	require.Len(t, big.Items, maxTupleSaveSize)
	assert.False(t, rt.ReleaseTuple(big))
}

func TestFloatPoolTransparentMiss(t *testing.T) {
	rt, err := New()
	require.NoError(t, err)
	defer rt.Finalize()

	if _, ok := rt.AcquireFloat(); ok {
		t.Fatal("cold float pool must miss")
	}
	v := &FloatValue{V: 3.14}
	require.True(t, rt.ReleaseFloat(v))
	got, ok := rt.AcquireFloat()
	require.True(t, ok)
	assert.Same(t, v, got)
	assert.Zero(t, got.V, "pooled float must come back reset")
}

func TestStrictMemErrorPool(t *testing.T) {
	rt, err := New()
	require.NoError(t, err)
	defer rt.Finalize()

	// The pool is topped up at init; draining it never fails.
	seen := make(map[*MemErrorValue]bool)
	for i := 0; i < defaultMemErrorCapacity; i++ {
		v := rt.AcquireMemError()
		require.NotNil(t, v)
		require.False(t, seen[v], "preallocated records must be distinct")
		seen[v] = true
	}
	assert.Zero(t, rt.StrictMemErrorMisses())

	// Past the preallocation, acquire still succeeds but counts a strict miss.
	v := rt.AcquireMemError()
	require.NotNil(t, v)
	assert.Equal(t, uint64(1), rt.StrictMemErrorMisses())

	// Releasing restores pool service.
	require.True(t, rt.ReleaseMemError(v))
	got := rt.AcquireMemError()
	assert.Same(t, v, got)
	assert.Equal(t, uint64(1), rt.StrictMemErrorMisses())
}

func TestDictAndFramePoolsResetOnRelease(t *testing.T) {
	rt, err := New()
	require.NoError(t, err)
	defer rt.Finalize()

	d := &DictValue{Keys: &DictKeysTable{}, Values: []Ref{"v"}}
	require.True(t, rt.ReleaseDict(d))
	got, ok := rt.AcquireDict()
	require.True(t, ok)
	assert.Same(t, d, got)
	assert.Nil(t, got.Keys)
	assert.Empty(t, got.Values)

	f := &FrameValue{Locals: []Ref{"a"}, Stack: []Ref{"b"}, Prev: &FrameValue{}}
	require.True(t, rt.ReleaseFrame(f))
	gf, ok := rt.AcquireFrame()
	require.True(t, ok)
	assert.Same(t, f, gf)
	assert.Empty(t, gf.Locals)
	assert.Empty(t, gf.Stack)
	assert.Nil(t, gf.Prev)
}

func TestSignalDelivery(t *testing.T) {
	rt, err := New()
	require.NoError(t, err)
	defer rt.Finalize()

	ts, err := rt.Attach()
	require.NoError(t, err)
	rt.AcquirePermit(ts)
	defer rt.ReleasePermit(ts)

	var delivered []int
	for _, sig := range []int{2, 15, 1} {
		require.NoError(t, rt.SetSignalHandler(sig, func(s int) {
			delivered = append(delivered, s)
		}))
	}
	require.NoError(t, rt.NotifySignal(15))
	require.NoError(t, rt.NotifySignal(2))
	require.NoError(t, rt.NotifySignal(1))
	require.True(t, rt.CheckBreaker())

	require.NoError(t, rt.Checkpoint(ts))
	// Delivery is in ascending signal order, not notification order.
	assert.Equal(t, []int{1, 2, 15}, delivered)
	assert.False(t, rt.Breaker().has(breakerSignalPending))

	require.ErrorIs(t, rt.NotifySignal(NumSignals), ErrSignalOutOfRange)
	require.ErrorIs(t, rt.NotifySignal(-1), ErrSignalOutOfRange)
}

func TestTracingBitFollowsHookCount(t *testing.T) {
	rt, err := New()
	require.NoError(t, err)
	defer rt.Finalize()

	ts1, err := rt.Attach()
	require.NoError(t, err)
	ts2, err := rt.Attach()
	require.NoError(t, err)

	assert.False(t, rt.Breaker().has(breakerTracingActive))
	ts1.SetTrace(func(*ThreadState) {})
	assert.True(t, rt.Breaker().has(breakerTracingActive))
	ts2.SetTrace(func(*ThreadState) {})
	ts1.SetTrace(nil)
	assert.True(t, rt.Breaker().has(breakerTracingActive), "one hook remains")
	ts2.SetTrace(nil)
	assert.False(t, rt.Breaker().has(breakerTracingActive))
}

func TestCheckpointInvokesTraceHooks(t *testing.T) {
	globalCalls := 0
	rt, err := New(WithTracingHook(func(*ThreadState) {
		globalCalls++
	}))
	require.NoError(t, err)
	defer rt.Finalize()

	ts, err := rt.Attach()
	require.NoError(t, err)
	rt.AcquirePermit(ts)
	defer rt.ReleasePermit(ts)

	threadCalls := 0
	ts.SetTrace(func(*ThreadState) {
		threadCalls++
	})
	require.NoError(t, rt.Checkpoint(ts))
	assert.Equal(t, 1, globalCalls)
	assert.Equal(t, 1, threadCalls)
}

func TestCheckpointReturnsWorkErrorAndKeepsRemainder(t *testing.T) {
	rt, err := New()
	require.NoError(t, err)
	defer rt.Finalize()

	ts, err := rt.Attach()
	require.NoError(t, err)
	rt.AcquirePermit(ts)
	defer rt.ReleasePermit(ts)

	boom := errors.New("boom")
	require.NoError(t, rt.Schedule(func(any) error { return nil }, nil))
	require.NoError(t, rt.Schedule(func(any) error { return boom }, nil))
	require.NoError(t, rt.Schedule(func(any) error { return nil }, nil))

	require.ErrorIs(t, rt.Checkpoint(ts), boom)
	assert.Equal(t, 1, rt.PendingCalls(), "items after the failure stay queued")
	assert.True(t, rt.CheckBreaker(), "breaker still signals the remainder")
}

func TestDrainOneWithoutPermitPanics(t *testing.T) {
	rt, err := New()
	require.NoError(t, err)
	defer rt.Finalize()

	ts, err := rt.Attach()
	require.NoError(t, err)

	defer func() {
		var ie *InvariantError
		r := recover()
		err, _ := r.(error)
		if !errors.As(err, &ie) {
			t.Fatalf("recover() = %v, want *InvariantError", r)
		}
	}()
	rt.DrainOne(ts)
}
