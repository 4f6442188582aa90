//go:build !(darwin || freebsd || netbsd || openbsd || dragonfly)

package reactor

// newKqueueBackend is unavailable outside BSD/Darwin; kqueue is their
// kernel-event-filter-queue mechanism.
func newKqueueBackend(maxHandles int) (backend, error) {
	return nil, newError("new_backend", KindNotSupported, nil)
}
