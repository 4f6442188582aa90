package reactor

import (
	"os"
	"time"
)

// Nfds returns the number of handles with non-empty interest. Kept as a
// separate name from CountActiveHandles to match the reactor loop's own
// vocabulary for the value it reports in DebugDump.
func (r *Reactor) Nfds() int {
	return r.CountActiveHandles()
}

// ScheduleTimer arms a one-shot timer that fires cb after d has elapsed,
// and wakes Run no later than that deadline (spec.md §4.C: the reactor
// loop consults only the timer list's head deadline). Like Register, it is
// a reactor operation subject to the thread-affinity and locking protocol:
// callable from the owning goroutine, or from a foreign goroutine between
// ThreadEnter and ThreadLeave.
func (r *Reactor) ScheduleTimer(d time.Duration, cb func()) (TimerID, error) {
	if err := r.ThreadCheck(); err != nil {
		return 0, err
	}
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.timers.schedule(d, cb), nil
}

// ScheduleRepeatingTimer is ScheduleTimer, but cb re-arms itself every d
// after firing until CancelTimer removes it.
func (r *Reactor) ScheduleRepeatingTimer(d time.Duration, cb func()) (TimerID, error) {
	if err := r.ThreadCheck(); err != nil {
		return 0, err
	}
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.timers.scheduleRepeating(d, cb), nil
}

// CancelTimer removes a pending timer. Returns false if id is unknown
// (already fired, already canceled, or never existed).
func (r *Reactor) CancelTimer(id TimerID) (bool, error) {
	if err := r.ThreadCheck(); err != nil {
		return false, err
	}
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.timers.cancel(id), nil
}

// Cancel clears the polling flag. Cooperative: the loop observes the clear
// no sooner than its next iteration, so a Run blocked in a backend's wait
// keeps blocking until that wait returns on its own.
func (r *Reactor) Cancel() {
	r.polling.Store(false)
}

// mechanismPreference is the order Run tries mechanisms in when none was
// pre-selected via WithMechanism, most efficient first. Readiness-
// notification-queue mechanisms (epoll, kqueue) beat the O(n)-per-wait
// array/set mechanisms; a platform missing both of those falls through to
// poll, then select.
var mechanismPreference = []Mechanism{Epoll, Kqueue, Poll, Select}

// chooseMechanism picks the first mechanism in mechanismPreference whose
// backend constructs successfully for the given maxHandles. It probes at
// runtime rather than branching on GOOS: newBackend already compiles out
// whichever backends a platform doesn't support (unsupportedBackend), so
// trying each in preference order naturally lands on the best one actually
// available, without this file needing its own build tags.
func chooseMechanism(maxHandles int) (Mechanism, backend, error) {
	var lastErr error
	for _, m := range mechanismPreference {
		b, err := newBackend(m, maxHandles)
		if err == nil {
			return m, b, nil
		}
		lastErr = err
	}
	return None, nil, lastErr
}

// Run is the reactor loop. It blocks until Cancel is called and the next
// iteration observes it, a fatal backend error occurs, or thread checking
// fails. signalCallback may be nil, in which case no signal hooks are
// installed and incoming signals are ignored.
func (r *Reactor) Run(signalCallback SignalCallback, signals ...os.Signal) error {
	if err := r.ThreadCheck(); err != nil {
		return err
	}

	if signalCallback != nil {
		stop := r.installSignalHooks(signals)
		defer stop()
	}

	r.lock.Lock()

	if r.backend == nil {
		if err := r.initBackendLocked(r.mechanism); err != nil {
			r.lock.Unlock()
			return err
		}
	}

	r.polling.Store(true)

	events := make([]readinessEvent, 0, 64)

	for {
		if sig := r.signal.swap(); sig != 0 {
			logSignalLatched(r.logger, sig)
			signalCallback(sig)
		}

		if !r.polling.Load() {
			break
		}

		toMs := r.timers.nextTimeoutMs()
		timeout := time.Duration(-1)
		if toMs >= 0 {
			timeout = time.Duration(toMs) * time.Millisecond
		}

		r.lock.Unlock()
		events = events[:0]
		batch, err := r.backend.wait(events, timeout)
		r.lock.Lock()

		if r.metrics != nil {
			r.metrics.WaitCycles.Add(1)
		}

		if err != nil {
			if rerr, ok := err.(*Error); ok {
				switch rerr.Kind {
				case KindIntr:
					continue
				case KindBadHandle:
					logBackendError(r.logger, r.mechanism, err, false)
					continue
				}
			}
			logBackendError(r.logger, r.mechanism, err, true)
			r.polling.Store(false)
			r.lock.Unlock()
			return err
		}
		events = batch

		r.dispatchBatch(events)

		r.timers.poll()
	}

	r.polling.Store(false)
	r.lock.Unlock()
	return nil
}

// initBackendLocked constructs the backend for m (or the best available
// mechanism when m is None), and re-applies every active record to it.
// Called with the active mutex held.
func (r *Reactor) initBackendLocked(m Mechanism) error {
	var b backend
	var err error
	if m == None {
		m, b, err = chooseMechanism(r.maxHandles)
	} else {
		b, err = newBackend(m, r.maxHandles)
	}
	if err != nil {
		return err
	}

	var applyErr error
	r.registry.forEachActive(func(rec *record) {
		if applyErr == nil {
			applyErr = b.apply(rec, 0)
		}
	})
	if applyErr != nil {
		_ = b.close()
		return WrapError("run", applyErr)
	}

	r.mechanism = m
	r.backend = b
	return nil
}

// dispatchBatch invokes the callback for every ready handle in events, in
// the order the backend reported them. Self-modification during dispatch
// (a callback that deregisters its own handle, or registers a fresh one) is
// safe: the registry defers destruction of records emptied mid-batch, and
// newly registered records are visible to later iterations of this same
// batch since dispatch holds the active mutex throughout.
//
// A mechanism switch triggered from inside a callback sets the update
// flag; dispatch then stops at that point and abandons the remainder of
// this batch; Run's outer loop re-enters wait on the new backend, which is
// expected to re-report readiness for handles this batch never got to.
func (r *Reactor) dispatchBatch(events []readinessEvent) {
	r.registry.beginDispatch()
	r.update.Store(false)

	for _, ev := range events {
		rec := r.registry.lookup(ev.handle)
		if rec == nil || rec.callback == nil || rec.index < 0 {
			continue
		}

		start := time.Now()
		rec.callback(ev.readiness, rec.arg)
		elapsed := time.Since(start)

		if r.metrics != nil {
			r.metrics.Callback.Record(elapsed)
			r.metrics.DispatchedEvents.Add(1)
		}
		if elapsed > r.maxBlocking {
			if r.metrics != nil {
				r.metrics.SlowCallbacks.Add(1)
			}
			logSlowCallback(r.logger, ev.handle, elapsed, r.maxBlocking)
		}

		if r.update.Load() {
			break
		}
	}

	r.registry.endDispatch()
}
