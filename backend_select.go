//go:build unix

package reactor

import (
	"time"

	"golang.org/x/sys/unix"
)

// fdSetSize is the number of handles the set-based backend supports; the
// kernel's FD_SETSIZE constrains it regardless of what the reactor's own
// maxHandles configuration requests — select has its own ceiling,
// independent of the reactor's configured maximum.
const fdSetSize = 1024

// selectBackend is the set-based readiness backend built on select(2). It
// tracks every active handle directly (no dense index needed) and
// rebuilds the three fd_sets on every wait call.
type selectBackend struct {
	records map[Handle]Interest
	maxFD   int
}

func newSelectBackend(maxHandles int) (*selectBackend, error) {
	if maxHandles > fdSetSize {
		return nil, newError("new_backend", KindNotSupported, nil)
	}
	return &selectBackend{records: make(map[Handle]Interest, maxHandles)}, nil
}

func (b *selectBackend) mechanism() Mechanism { return Select }

func (b *selectBackend) apply(rec *record, prev Interest) error {
	if int(rec.handle) >= fdSetSize {
		return newError("register", KindTooMany, nil)
	}
	if rec.interest == 0 {
		delete(b.records, rec.handle)
		return nil
	}
	b.records[rec.handle] = rec.interest
	if int(rec.handle) > b.maxFD {
		b.maxFD = int(rec.handle)
	}
	return nil
}

func (b *selectBackend) wait(dst []readinessEvent, timeout time.Duration) ([]readinessEvent, error) {
	var rset, wset, eset unix.FdSet
	for h, interest := range b.records {
		if interest&Read != 0 {
			fdSet(&rset, int(h))
		}
		if interest&Write != 0 {
			fdSet(&wset, int(h))
		}
		fdSet(&eset, int(h))
	}

	var tv *unix.Timeval
	if timeout >= 0 {
		t := unix.NsecToTimeval(timeout.Nanoseconds())
		tv = &t
	}

	n, err := unix.Select(b.maxFD+1, &rset, &wset, &eset, tv)
	if err != nil {
		if err == unix.EINTR {
			return dst, newError("wait", KindIntr, err)
		}
		return dst, WrapError("select wait", err)
	}
	if n == 0 {
		return dst, nil
	}

	for h, interest := range b.records {
		var readiness Interest
		if interest&Read != 0 && fdIsSet(&rset, int(h)) {
			readiness |= Read
		}
		if interest&Write != 0 && fdIsSet(&wset, int(h)) {
			readiness |= Write
		}
		if fdIsSet(&eset, int(h)) {
			readiness |= Except
		}
		if readiness != 0 {
			dst = append(dst, readinessEvent{handle: h, readiness: readiness})
		}
	}
	return dst, nil
}

func (b *selectBackend) close() error {
	b.records = nil
	return nil
}
