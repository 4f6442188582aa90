package reactor

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sys/cpu"
	"golang.org/x/sys/unix"
)

// Reactor is a per-thread asynchronous I/O multiplexer. Exactly one
// goroutine owns a Reactor's dispatch loop at a time; other goroutines
// may mutate it briefly via ThreadEnter.
type Reactor struct {
	registry *registry
	timers   *timerList

	backend   backend
	mechanism Mechanism

	maxHandles int
	maxFD      int // largest handle value ever registered; informational

	// polling, update, and threadEnter are read and written from both the
	// owning goroutine's dispatch loop and a foreign goroutine's
	// ThreadEnter/ThreadLeave window; _ pads them onto separate cache
	// lines so the two sides don't false-share.
	polling     atomic.Bool
	_           [sizeOfCacheLine - 1]byte
	update      atomic.Bool // set on mechanism switch; observed mid-dispatch
	_           [sizeOfCacheLine - 1]byte
	threadEnter atomic.Bool
	_           cpu.CacheLinePad

	signal signalLatch

	ownerGoroutine atomic.Uint64
	lock           *activeLock
	internalMu     sync.Mutex

	logger      Logger
	metrics     *Metrics
	maxBlocking time.Duration

	closed atomic.Bool
}

// New constructs a standalone Reactor without binding it into the
// thread-affinity layer. Most callers should use ThreadInit instead;
// New exists for embedding a reactor in a host-managed lifecycle (e.g. via
// ThreadAttach after construction elsewhere).
func New(opts ...ReactorOption) (*Reactor, error) {
	return newReactor(goroutineID(), opts...)
}

func newReactor(ownerGoroutine uint64, opts ...ReactorOption) (*Reactor, error) {
	cfg, err := resolveReactorOptions(opts)
	if err != nil {
		return nil, err
	}

	r := &Reactor{
		registry:    newRegistry(cfg.maxHandles, cfg.reuse),
		timers:      newTimerList(),
		maxHandles:  cfg.maxHandles,
		logger:      cfg.logger,
		metrics:     cfg.metrics,
		maxBlocking: cfg.maxBlocking,
		mechanism:   cfg.mechanism,
	}
	r.ownerGoroutine.Store(ownerGoroutine)

	var target Locker = cfg.lock
	if target == nil {
		target = &r.internalMu
	}
	r.lock = newActiveLock(target)

	return r, nil
}

// SetMaxHandles sets the configured maximum-handles value. n == -1
// queries the process's soft handle-count limit on platforms that
// support it; n == 0 releases all backend state.
func (r *Reactor) SetMaxHandles(n int) error {
	if err := r.ThreadCheck(); err != nil {
		return err
	}
	r.lock.Lock()
	defer r.lock.Unlock()

	switch {
	case n == 0:
		if r.backend != nil {
			_ = r.backend.close()
			r.backend = nil
		}
		r.registry.flush()
		r.mechanism = None
		return nil
	case n < 0:
		limit, err := processHandleLimit()
		if err != nil {
			return WrapError("set_max_handles", err)
		}
		n = limit
	}

	r.maxHandles = n
	r.registry.setMaxHandles(n)
	return nil
}

// processHandleLimit queries RLIMIT_NOFILE's soft limit.
func processHandleLimit() (int, error) {
	var rlim unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &rlim); err != nil {
		return 0, err
	}
	return int(rlim.Cur), nil
}

// SetReusePolicy sets the handle-record reuse policy. It overrides any
// earlier setting, including the one ThreadEnter makes: passing true after
// a ThreadEnter window turns reuse back on.
func (r *Reactor) SetReusePolicy(reuse bool) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.registry.setReusePolicy(reuse)
}

// SetMutex redirects the active mutex to an externally supplied Locker.
// Must be called before Run, while no thread holds the lock; passing nil
// reverts to the reactor's internal mutex.
func (r *Reactor) SetMutex(l Locker) {
	if l == nil {
		l = &r.internalMu
	}
	r.lock.redirect(l)
}

// GetMechanism returns the currently active polling mechanism. Before a
// backend is initialized it returns the mechanism pre-selected with
// WithMechanism, or None if none was.
func (r *Reactor) GetMechanism() Mechanism {
	return r.mechanism
}

// SetMechanism switches the active polling mechanism at runtime (spec.md
// §4.B "Switching mechanisms at runtime"). It validates m is supported,
// initializes the new backend, re-applies every active record, and sets
// the update flag so a running dispatch loop returns at a safe point.
func (r *Reactor) SetMechanism(m Mechanism) error {
	if err := r.ThreadCheck(); err != nil {
		return err
	}
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.setMechanismLocked(m)
}

func (r *Reactor) setMechanismLocked(m Mechanism) error {
	if m == r.mechanism && r.backend != nil {
		return nil
	}

	next, err := newBackend(m, r.maxHandles)
	if err != nil {
		return err
	}

	var applyErr error
	r.registry.forEachActive(func(rec *record) {
		if applyErr == nil {
			applyErr = next.apply(rec, 0)
		}
	})
	if applyErr != nil {
		_ = next.close()
		return WrapError("set_mechanism", applyErr)
	}

	old := r.backend
	oldMechanism := r.mechanism
	r.backend = next
	r.mechanism = m
	if old != nil {
		_ = old.close()
	}

	if r.metrics != nil {
		r.metrics.MechanismSwitches.Add(1)
	}
	logMechanismSwitch(r.logger, oldMechanism, m)

	if r.polling.Load() {
		r.update.Store(true)
	}
	return nil
}

// Register sets the interest mask, callback, and argument for handle
// (spec.md §4.A). An empty interests mask deregisters the handle. Fails
// with INVALID for the sentinel handle, TOO_MANY when the registry or
// backend is full.
func (r *Reactor) Register(h Handle, interests Interest, cb Callback, arg any) error {
	if err := r.ThreadCheck(); err != nil {
		return err
	}
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.registerLocked(h, interests, cb, arg)
}

// Deregister is Register with an empty interest mask.
func (r *Reactor) Deregister(h Handle) error {
	return r.Register(h, 0, nil, nil)
}

func (r *Reactor) registerLocked(h Handle, interests Interest, cb Callback, arg any) error {
	rec, prev, err := r.registry.set(h, interests, cb, arg)
	if err != nil {
		return err
	}
	if rec == nil {
		return nil // no-op deregister of an unknown handle
	}

	if r.backend == nil {
		// Run hasn't chosen a mechanism yet; apply happens once it does
		// (every active record is re-applied during mechanism init).
		return nil
	}

	if err := r.backend.apply(rec, prev); err != nil {
		if interests != 0 {
			// spec.md §7: a registration that fails after being bound
			// into a backend closes the handle to avoid a leak. Roll the
			// registry entry back too, since it never took effect.
			_, _, _ = r.registry.set(h, 0, nil, nil)
			_ = unix.Close(int(h))
		}
		return err
	}

	if int(h) > r.maxFD {
		r.maxFD = int(h)
	}
	return nil
}

// CountActiveHandles returns the number of handles with non-empty
// interest (spec.md's nfds).
func (r *Reactor) CountActiveHandles() int {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.registry.activeCount()
}

// DebugDump writes a human-readable summary of every active handle record
// to w.
func (r *Reactor) DebugDump(w io.Writer) {
	r.lock.Lock()
	defer r.lock.Unlock()

	fmt.Fprintf(w, "reactor: mechanism=%s nfds=%d max_handles=%d max_fd=%d polling=%v\n",
		r.mechanism, r.registry.activeCount(), r.maxHandles, r.maxFD, r.polling.Load())
	r.registry.forEachActive(func(rec *record) {
		fmt.Fprintf(w, "  handle=%d index=%d interest=%s\n", int(rec.handle), rec.index, rec.interest)
	})
}

// Close tears down the reactor: closes the backend, releases the mutex,
// and flushes the registry (spec.md §4.H "Teardown"). Idempotent.
func (r *Reactor) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	r.lock.Lock()
	defer r.lock.Unlock()

	var err error
	if r.backend != nil {
		err = r.backend.close()
		r.backend = nil
	}
	r.registry.flush()
	return err
}
