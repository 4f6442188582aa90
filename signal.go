package reactor

import (
	"os"
	"os/signal"
	"sync/atomic"
)

// signalLatch is the single-integer cell of spec.md §4.G, updated by an
// installed signal hook and observed/cleared by the reactor loop at the
// top of each iteration.
//
// Go has no async-signal-safe user callback the way a POSIX sigaction
// handler does; os/signal delivers notified signals to an ordinary
// goroutine instead. That goroutine plays the role of the "hook": it does
// only the one thing spec.md allows a real signal handler to do, a single
// store, and nothing else.
type signalLatch struct {
	v atomic.Int32
}

func (s *signalLatch) set(sig int) {
	s.v.Store(int32(sig))
}

// swap returns the latched signal number and clears the latch. Returns 0
// when nothing is latched.
func (s *signalLatch) swap() int {
	return int(s.v.Swap(0))
}

// installSignalHooks starts forwarding the given signals into the
// reactor's latch for the lifetime of stop. Mirrors spec.md §4.D step 2:
// "hooks only record the signal number... and re-arm themselves" — here,
// "re-arm" is implicit since signal.Notify delivers every occurrence on
// the same channel, not just the first.
func (r *Reactor) installSignalHooks(signals []os.Signal) (stop func()) {
	if len(signals) == 0 {
		return func() {}
	}
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, signals...)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case sig := <-ch:
				r.signal.set(signalNumber(sig))
			case <-done:
				return
			}
		}
	}()
	return func() {
		signal.Stop(ch)
		close(done)
	}
}
