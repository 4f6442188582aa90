//go:build !linux

package reactor

// newEpollBackend is unavailable outside Linux; epoll is a Linux-only
// readiness-notification-queue mechanism.
func newEpollBackend(maxHandles int) (backend, error) {
	return nil, newError("new_backend", KindNotSupported, nil)
}
