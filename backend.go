package reactor

import "time"

// readinessEvent is one (handle, readiness) pair reported by a backend's
// Wait call.
type readinessEvent struct {
	handle    Handle
	readiness Interest
}

// backend is the shared contract for the four polling mechanisms: poll,
// select, epoll, and kqueue. A backend owns no callbacks and no registry
// state of its own beyond what it needs to talk to the kernel; the reactor
// loop is the only caller and is solely responsible for dispatch.
type backend interface {
	// mechanism identifies which Mechanism this backend implements.
	mechanism() Mechanism

	// apply is called whenever a record's interest changes (including its
	// first registration with non-empty interest, and its deregistration).
	// prev is the interest mask the record held before this change; rec's
	// current Interest field holds the new mask (0 meaning removed).
	apply(rec *record, prev Interest) error

	// wait blocks until at least one registered handle is ready, the
	// timeout elapses, or the wait is interrupted by a signal (reported as
	// a KindIntr error); Cancel does not interrupt it. timeout < 0
	// means block indefinitely; timeout == 0 means poll without blocking.
	// It appends ready events to dst and returns the extended slice.
	wait(dst []readinessEvent, timeout time.Duration) ([]readinessEvent, error)

	// close releases any kernel resources the backend holds (e.g. an
	// epoll or kqueue descriptor). A poll/select backend may no-op.
	close() error
}

// unsupportedBackend answers every backend method with NotSupported. It
// backs the non-unix build of this package, where none of the four
// mechanisms (poll/select/epoll/kqueue) are available.
type unsupportedBackend struct{ m Mechanism }

func (u unsupportedBackend) mechanism() Mechanism { return u.m }
func (u unsupportedBackend) apply(*record, Interest) error {
	return newError("apply", KindNotSupported, nil)
}
func (u unsupportedBackend) wait(dst []readinessEvent, _ time.Duration) ([]readinessEvent, error) {
	return dst, newError("wait", KindNotSupported, nil)
}
func (u unsupportedBackend) close() error { return nil }

// newBackend constructs the backend for mechanism, sized for at most
// maxHandles concurrently registered handles. It does not register any
// handles; callers re-apply every active record from the registry after a
// mechanism switch.
func newBackend(mechanism Mechanism, maxHandles int) (backend, error) {
	switch mechanism {
	case Poll:
		return newPollBackend(maxHandles), nil
	case Select:
		return newSelectBackend(maxHandles)
	case Epoll:
		return newEpollBackend(maxHandles)
	case Kqueue:
		return newKqueueBackend(maxHandles)
	default:
		return nil, newError("new_backend", KindNotSupported, nil)
	}
}
