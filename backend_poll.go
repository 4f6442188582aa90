//go:build unix

package reactor

import (
	"time"

	"golang.org/x/sys/unix"
)

// pollBackend is the array-based readiness backend built on poll(2). Its
// cost is O(n) in the number of registered handles per wait call, spread
// across every platform that has poll(2).
type pollBackend struct {
	maxHandles int
	fds        []unix.PollFd
	handles    []Handle // parallel to fds, index-addressed
}

func newPollBackend(maxHandles int) *pollBackend {
	return &pollBackend{maxHandles: maxHandles}
}

func (b *pollBackend) mechanism() Mechanism { return Poll }

func toPollEvents(i Interest) int16 {
	var e int16
	if i&Read != 0 {
		e |= unix.POLLIN
	}
	if i&Write != 0 {
		e |= unix.POLLOUT
	}
	return e
}

func fromPollEvents(e int16) Interest {
	var i Interest
	if e&unix.POLLIN != 0 {
		i |= Read
	}
	if e&unix.POLLOUT != 0 {
		i |= Write
	}
	if e&(unix.POLLERR|unix.POLLHUP|unix.POLLNVAL) != 0 {
		i |= Except
	}
	return i
}

// apply places or removes rec.handle at rec.index within the parallel
// fds/handles arrays, growing them on demand.
func (b *pollBackend) apply(rec *record, prev Interest) error {
	idx := rec.index
	if rec.interest == 0 {
		// Deregistration: index has already been released by the registry
		// by the time apply runs for a removal. We find the slot by
		// handle instead, since rec.index was just reset to -1.
		for i, h := range b.handles {
			if h == rec.handle {
				b.fds[i] = unix.PollFd{Fd: -1}
				b.handles[i] = NoHandle
				return nil
			}
		}
		return nil
	}

	for idx >= len(b.fds) {
		b.fds = append(b.fds, unix.PollFd{Fd: -1})
		b.handles = append(b.handles, NoHandle)
	}
	b.fds[idx] = unix.PollFd{Fd: int32(rec.handle), Events: toPollEvents(rec.interest)}
	b.handles[idx] = rec.handle
	return nil
}

func (b *pollBackend) wait(dst []readinessEvent, timeout time.Duration) ([]readinessEvent, error) {
	ms := durationToPollMs(timeout)
	n, err := unix.Poll(b.fds, ms)
	if err != nil {
		if err == unix.EINTR {
			return dst, newError("wait", KindIntr, err)
		}
		return dst, WrapError("poll wait", err)
	}
	if n == 0 {
		return dst, nil
	}
	for i, pfd := range b.fds {
		if pfd.Revents == 0 || b.handles[i] == NoHandle {
			continue
		}
		dst = append(dst, readinessEvent{handle: b.handles[i], readiness: fromPollEvents(pfd.Revents)})
	}
	return dst, nil
}

func (b *pollBackend) close() error {
	b.fds = nil
	b.handles = nil
	return nil
}

// durationToPollMs converts a Go duration into the millisecond timeout
// poll(2)/epoll_wait(2) expect. Negative means block indefinitely.
func durationToPollMs(d time.Duration) int {
	if d < 0 {
		return -1
	}
	ms := d.Milliseconds()
	if ms > int64(int(^uint(0)>>1)) {
		ms = int64(int(^uint(0) >> 1))
	}
	return int(ms)
}
