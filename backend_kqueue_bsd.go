//go:build darwin || freebsd || netbsd || openbsd || dragonfly

package reactor

import (
	"time"

	"golang.org/x/sys/unix"
)

// kqueueBackend is the kernel-event-filter-queue backend (BSD/Darwin only).
// Read and write readiness are separate filters in the kernel, so one
// handle can produce up to two distinct kevents per wait call; these are
// coalesced into a single readinessEvent per handle.
type kqueueBackend struct {
	kq     int
	events []unix.Kevent_t
}

func newKqueueBackend(maxHandles int) (backend, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, WrapError("kqueue", err)
	}
	unix.CloseOnExec(kq)
	if maxHandles <= 0 {
		maxHandles = 64
	}
	return &kqueueBackend{kq: kq, events: make([]unix.Kevent_t, maxHandles*2)}, nil
}

func (b *kqueueBackend) mechanism() Mechanism { return Kqueue }

// apply makes the kqueue's filters match rec's current interest. spec.md
// §4.B is explicit that kqueue's apply "unconditionally deletes both then
// adds the ones currently desired, which is the only race-free way to
// switch a handle between read-only, write-only, and read+write." A diff
// against prev (deleting only the filter that turned off, adding only the
// one that turned on) leaves a stale filter registered whenever a handle
// is closed and its fd number reused before this reactor observes the
// close — the kernel's filter survives the fd-table swap and fires on the
// new descriptor under the wrong readiness. Unconditional delete-then-add
// closes that window: deleting a filter that was never registered is a
// no-op (ENOENT on EV_DELETE is swallowed below), so this is safe even on
// a handle's first registration, when prev is empty.
func (b *kqueueBackend) apply(rec *record, _ Interest) error {
	changes := []unix.Kevent_t{
		kevent(rec.handle, unix.EVFILT_READ, unix.EV_DELETE),
		kevent(rec.handle, unix.EVFILT_WRITE, unix.EV_DELETE),
	}
	if rec.interest&Read != 0 {
		changes = append(changes, kevent(rec.handle, unix.EVFILT_READ, unix.EV_ADD|unix.EV_ENABLE))
	}
	if rec.interest&Write != 0 {
		changes = append(changes, kevent(rec.handle, unix.EVFILT_WRITE, unix.EV_ADD|unix.EV_ENABLE))
	}

	// A non-nil eventlist keeps kevent() processing the rest of the
	// changelist even when an earlier entry errors, and a zero Timespec
	// makes the call return immediately rather than blocking.
	out := make([]unix.Kevent_t, len(changes))
	n, err := unix.Kevent(b.kq, changes, out, &unix.Timespec{})
	if err != nil {
		return WrapError("kevent register", err)
	}

	for i := 0; i < n; i++ {
		ev := &out[i]
		if ev.Flags&unix.EV_ERROR == 0 {
			continue
		}
		errno := unix.Errno(ev.Data)
		if errno == 0 {
			continue
		}
		if ev.Flags&unix.EV_DELETE != 0 && errno == unix.ENOENT {
			// Deleting a filter that was never registered: expected on a
			// handle's first apply, or for the direction it never used.
			continue
		}
		return WrapError("kevent register", errno)
	}
	return nil
}

func kevent(h Handle, filter int16, flags uint16) unix.Kevent_t {
	return unix.Kevent_t{Ident: uint64(h), Filter: filter, Flags: flags}
}

func (b *kqueueBackend) wait(dst []readinessEvent, timeout time.Duration) ([]readinessEvent, error) {
	var ts *unix.Timespec
	if timeout >= 0 {
		t := unix.NsecToTimespec(timeout.Nanoseconds())
		ts = &t
	}

	n, err := unix.Kevent(b.kq, nil, b.events, ts)
	if err != nil {
		if err == unix.EINTR {
			return dst, newError("wait", KindIntr, err)
		}
		return dst, WrapError("kevent wait", err)
	}

	// Coalesce same-handle read/write kevents that arrived in the same
	// batch into one readinessEvent.
	merged := make(map[Handle]Interest, n)
	order := make([]Handle, 0, n)
	for i := 0; i < n; i++ {
		ev := &b.events[i]
		h := Handle(ev.Ident)
		var readiness Interest
		switch ev.Filter {
		case unix.EVFILT_READ:
			readiness = Read
		case unix.EVFILT_WRITE:
			readiness = Write
		}
		if ev.Flags&unix.EV_EOF != 0 || ev.Flags&unix.EV_ERROR != 0 {
			readiness |= Except
		}
		if _, seen := merged[h]; !seen {
			order = append(order, h)
		}
		merged[h] |= readiness
	}
	for _, h := range order {
		dst = append(dst, readinessEvent{handle: h, readiness: merged[h]})
	}
	return dst, nil
}

func (b *kqueueBackend) close() error {
	return unix.Close(b.kq)
}
