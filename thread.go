package reactor

import "sync"

// affinity is the process-wide thread-affinity layer of spec.md §4.E: a
// lazily-initialized per-thread slot (here, per-goroutine, since Go has no
// OS-thread-local storage) plus a global fallback reactor.
var affinity struct {
	mu       sync.Mutex
	byThread map[uint64]*Reactor
	fallback *Reactor
}

func init() {
	affinity.byThread = make(map[uint64]*Reactor)
}

// ThreadInit creates a reactor for the calling goroutine, stores it in the
// thread-affinity slot, and — if no global fallback exists yet — publishes
// it as the fallback. Fails with ALREADY if the calling goroutine already
// has a reactor.
func ThreadInit(opts ...ReactorOption) (*Reactor, error) {
	gid := goroutineID()

	affinity.mu.Lock()
	defer affinity.mu.Unlock()

	if _, ok := affinity.byThread[gid]; ok {
		return nil, newError("thread_init", KindAlready, nil)
	}

	r, err := newReactor(gid, opts...)
	if err != nil {
		return nil, err
	}

	affinity.byThread[gid] = r
	if affinity.fallback == nil {
		affinity.fallback = r
	}
	return r, nil
}

// ThreadClose destroys the calling goroutine's reactor and clears the
// global fallback if it pointed here. No-op if the calling goroutine has
// no reactor.
func ThreadClose() error {
	gid := goroutineID()

	affinity.mu.Lock()
	r, ok := affinity.byThread[gid]
	if !ok {
		affinity.mu.Unlock()
		return nil
	}
	delete(affinity.byThread, gid)
	if affinity.fallback == r {
		affinity.fallback = nil
	}
	affinity.mu.Unlock()

	return r.Close()
}

// ThreadAttach binds the calling goroutine to a reactor created elsewhere
// (shared-ownership model). Silently returns if already bound to r.
func ThreadAttach(r *Reactor) {
	gid := goroutineID()

	affinity.mu.Lock()
	defer affinity.mu.Unlock()

	if affinity.byThread[gid] == r {
		return
	}
	affinity.byThread[gid] = r
}

// ThreadDetach clears the calling goroutine's slot without destroying the
// bound reactor.
func ThreadDetach() {
	gid := goroutineID()

	affinity.mu.Lock()
	defer affinity.mu.Unlock()
	delete(affinity.byThread, gid)
}

// currentReactor resolves the calling goroutine's reactor, falling back to
// the process-wide fallback when the slot is empty. Returns nil if
// neither exists.
func currentReactor() *Reactor {
	gid := goroutineID()

	affinity.mu.Lock()
	defer affinity.mu.Unlock()

	if r, ok := affinity.byThread[gid]; ok {
		return r
	}
	return affinity.fallback
}
