package interpcore

import (
	"sync"
	"sync/atomic"
)

// NumSignals is the size of the per-signal pending table.
const NumSignals = 64

// SignalHandler is invoked on the permit-holding thread when a pending
// signal is delivered at a checkpoint.
type SignalHandler func(sig int)

// signalTable records which signals are pending delivery and the handler
// installed for each. Marking a signal pending is allocation-free and safe
// from any goroutine or signal-forwarding context; delivery happens only
// under the exclusive-execution permit, in ascending signal order.
type signalTable struct {
	pending [NumSignals]atomic.Bool

	mu       sync.Mutex
	handlers [NumSignals]SignalHandler
}

// notify marks sig pending. The caller raises the breaker bit on success.
func (t *signalTable) notify(sig int) error {
	if sig < 0 || sig >= NumSignals {
		return ErrSignalOutOfRange
	}
	t.pending[sig].Store(true)
	return nil
}

// setHandler installs (or removes, with nil) the handler for sig.
func (t *signalTable) setHandler(sig int, h SignalHandler) error {
	if sig < 0 || sig >= NumSignals {
		return ErrSignalOutOfRange
	}
	t.mu.Lock()
	t.handlers[sig] = h
	t.mu.Unlock()
	return nil
}

// handler returns the handler currently installed for sig.
func (t *signalTable) handler(sig int) SignalHandler {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.handlers[sig]
}

// deliver consumes every pending flag in ascending signal order, invoking
// installed handlers. Pending signals with no handler are dropped. Returns
// the number of signals consumed.
func (t *signalTable) deliver(run func(sig int, h SignalHandler)) int {
	n := 0
	for sig := 0; sig < NumSignals; sig++ {
		if t.pending[sig].Swap(false) {
			n++
			if h := t.handler(sig); h != nil {
				run(sig, h)
			}
		}
	}
	return n
}
