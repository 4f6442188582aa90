package reactor

import (
	"runtime"
	"sync/atomic"
)

// activeLock implements the reactor's "active mutex pointer": normally
// backed by the reactor's own internal mutex, but redirectable to an
// externally supplied Locker via WithMutex/SetMutex so a host can
// coordinate its own locking with the reactor's.
//
// It is reentrant per goroutine. That is required because dispatch holds
// the lock for the whole of a dispatch batch while invoking user
// callbacks, and those callbacks are allowed to call
// Register/Deregister/SetMechanism — which also acquire the active lock.
// Without reentrancy that would deadlock the owning goroutine against
// itself. A foreign thread's thread_enter/thread_leave window behaves the
// same way: thread_enter acquires the lock once; any reactor operation
// issued by that goroutine before thread_leave reenters rather than
// blocking.
type activeLock struct {
	target Locker
	holder atomic.Uint64 // goroutine id currently holding; 0 means unlocked
	depth  int           // only ever touched by the holder goroutine
}

func newActiveLock(target Locker) *activeLock {
	return &activeLock{target: target}
}

func (l *activeLock) Lock() {
	gid := goroutineID()
	if l.holder.Load() == gid {
		l.depth++
		return
	}
	l.target.Lock()
	l.holder.Store(gid)
	l.depth = 1
}

func (l *activeLock) Unlock() {
	l.depth--
	if l.depth == 0 {
		l.holder.Store(0)
		l.target.Unlock()
	}
}

// redirect swaps the underlying target. Only safe to call while unlocked;
// callers (SetMutex) are responsible for that precondition.
func (l *activeLock) redirect(target Locker) {
	l.target = target
}

// heldByCurrentGoroutine reports whether the calling goroutine currently
// holds the active lock (directly, via a thread_enter window, or via
// reentrant dispatch).
func (l *activeLock) heldByCurrentGoroutine() bool {
	return l.holder.Load() == goroutineID()
}

// ThreadEnter acquires the active mutex on behalf of a foreign thread and
// marks the thread_enter flag. It disables the handle-record reuse
// optimization, and ThreadLeave does not restore it; only an explicit
// SetReusePolicy(true) turns it back on. This is a conservative choice
// that avoids stale slot reuse across threads, since once a foreign
// thread has demonstrated it mutates this reactor's registry, reuse can
// no longer assume single-thread-at-a-time slot lifetime.
func (r *Reactor) ThreadEnter() {
	r.lock.Lock()
	r.threadEnter.Store(true)
	if r.registry.reuse {
		r.registry.setReusePolicy(false)
		logDebug(r.logger, "thread", "reuse policy disabled permanently by thread_enter", nil)
	}
}

// ThreadLeave releases the active mutex and clears the thread_enter flag.
func (r *Reactor) ThreadLeave() {
	r.threadEnter.Store(false)
	r.lock.Unlock()
}

// ThreadCheck returns nil when called from the reactor's owning goroutine
// or from within a thread_enter window; otherwise it logs a backtrace
// warning and returns a PERMISSION error.
func (r *Reactor) ThreadCheck() error {
	if goroutineID() == r.ownerGoroutine.Load() {
		return nil
	}
	if r.threadEnter.Load() && r.lock.heldByCurrentGoroutine() {
		return nil
	}
	logPermissionDenied(r.logger, captureBacktrace())
	return newError("thread_check", KindPermission, nil)
}

func captureBacktrace() string {
	buf := make([]byte, 4096)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}
