//go:build linux

package reactor

import (
	"time"

	"golang.org/x/sys/unix"
)

// epollBackend is the readiness-notification-queue backend (Linux only),
// built on a single kernel epoll object. Uses level-triggered epoll so a
// handle that remains ready is reported again on every subsequent wait.
type epollBackend struct {
	epfd    int
	events  []unix.EpollEvent
	maxCap  int
}

func newEpollBackend(maxHandles int) (backend, error) {
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, WrapError("epoll_create1", err)
	}
	if maxHandles <= 0 {
		maxHandles = 64
	}
	return &epollBackend{epfd: fd, events: make([]unix.EpollEvent, maxHandles), maxCap: maxHandles}, nil
}

func (b *epollBackend) mechanism() Mechanism { return Epoll }

func toEpollEvents(i Interest) uint32 {
	var e uint32
	if i&Read != 0 {
		e |= unix.EPOLLIN
	}
	if i&Write != 0 {
		e |= unix.EPOLLOUT
	}
	return e
}

func fromEpollEvents(e uint32) Interest {
	var i Interest
	if e&unix.EPOLLIN != 0 {
		i |= Read
	}
	if e&unix.EPOLLOUT != 0 {
		i |= Write
	}
	if e&(unix.EPOLLERR|unix.EPOLLHUP) != 0 {
		i |= Except
	}
	return i
}

func (b *epollBackend) apply(rec *record, prev Interest) error {
	fd := int(rec.handle)
	switch {
	case prev == 0 && rec.interest != 0:
		ev := unix.EpollEvent{Events: toEpollEvents(rec.interest), Fd: int32(fd)}
		if err := unix.EpollCtl(b.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
			return WrapError("epoll_ctl add", err)
		}
	case prev != 0 && rec.interest == 0:
		if err := unix.EpollCtl(b.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
			return WrapError("epoll_ctl del", err)
		}
	default:
		ev := unix.EpollEvent{Events: toEpollEvents(rec.interest), Fd: int32(fd)}
		if err := unix.EpollCtl(b.epfd, unix.EPOLL_CTL_MOD, fd, &ev); err != nil {
			return WrapError("epoll_ctl mod", err)
		}
	}
	return nil
}

func (b *epollBackend) wait(dst []readinessEvent, timeout time.Duration) ([]readinessEvent, error) {
	ms := durationToPollMs(timeout)
	n, err := unix.EpollWait(b.epfd, b.events, ms)
	if err != nil {
		if err == unix.EINTR {
			return dst, newError("wait", KindIntr, err)
		}
		return dst, WrapError("epoll_wait", err)
	}
	for i := 0; i < n; i++ {
		dst = append(dst, readinessEvent{
			handle:    Handle(b.events[i].Fd),
			readiness: fromEpollEvents(b.events[i].Events),
		})
	}
	return dst, nil
}

func (b *epollBackend) close() error {
	return unix.Close(b.epfd)
}
