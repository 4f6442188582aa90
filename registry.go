package reactor

// registry is the handle registry from spec.md §4.A: a hash map from handle
// value to handle record, an O(1) dense-index allocator, and a
// deferred-deletion list for records whose interest emptied mid-dispatch.
//
// Index allocation uses a free list over a monotonically growing high-water
// mark rather than literally reproducing the original C implementation's
// "index = ++nfds - 1" scheme (see original_source/src/main/main.c
// fhs_update): that scheme can hand out an index already held by a still-
// active record whenever a lower-numbered handle is deregistered before a
// higher-numbered one, which violates the very invariant spec.md states
// ("index is... a unique small non-negative integer within the reactor").
// A free list preserves uniqueness, still never compacts the array (freed
// slots are reused but never shifted), and keeps TOO_MANY from becoming
// permanent after enough churn. See DESIGN.md.
type registry struct {
	byHandle map[Handle]*record

	// deleteHead chains the deferred-deletion list (spec.md §3 "membership
	// in two collections"). Drained after each dispatch batch.
	deleteHead *record

	// freeIndex holds released dense indices available for reuse.
	freeIndex []int
	// nextIndex is the high-water mark for indices never yet allocated.
	nextIndex int

	maxHandles int
	reuse      bool

	// nfds is the count of records with non-empty interest.
	nfds int

	// dispatching is true while the reactor loop is iterating a readiness
	// batch; it gates whether a freshly-emptied, non-reused record is
	// destroyed immediately or deferred (spec.md §4.A).
	dispatching bool
}

// newRegistry creates a registry sized for at most maxHandles concurrently
// active records.
func newRegistry(maxHandles int, reuse bool) *registry {
	return &registry{
		byHandle:   make(map[Handle]*record, maxHandles),
		maxHandles: maxHandles,
		reuse:      reuse,
	}
}

// setMaxHandles updates the configured maximum. It does not affect records
// already registered.
func (r *registry) setMaxHandles(n int) {
	r.maxHandles = n
}

// setReusePolicy toggles whether deregistered records linger in the hash
// for fast rebinding on the handle's reuse, versus being destroyed/deferred
// immediately.
func (r *registry) setReusePolicy(reuse bool) {
	r.reuse = reuse
}

// allocIndex returns a fresh dense index, or TOO_MANY if the configured
// maximum would be exceeded.
func (r *registry) allocIndex() (int, error) {
	if n := len(r.freeIndex); n > 0 {
		idx := r.freeIndex[n-1]
		r.freeIndex = r.freeIndex[:n-1]
		return idx, nil
	}
	if r.nextIndex >= r.maxHandles {
		return -1, newError("register", KindTooMany, nil)
	}
	idx := r.nextIndex
	r.nextIndex++
	return idx, nil
}

// releaseIndex returns idx to the free list.
func (r *registry) releaseIndex(idx int) {
	if idx < 0 {
		return
	}
	r.freeIndex = append(r.freeIndex, idx)
}

// lookup returns the record for handle, or nil.
func (r *registry) lookup(h Handle) *record {
	return r.byHandle[h]
}

// set is the single entry point for register/deregister (spec.md §4.A):
// interests == 0 means deregister. Returns the record (possibly newly
// created) and its previous interest mask (0 for a brand-new record), or an
// error.
func (r *registry) set(h Handle, interests Interest, cb Callback, arg any) (*record, Interest, error) {
	if h == NoHandle {
		return nil, 0, newError("register", KindInvalid, nil)
	}

	rec, ok := r.byHandle[h]
	if !ok {
		if interests == 0 {
			// Deregistering a handle we've never heard of is a no-op.
			return nil, 0, nil
		}
		idx, err := r.allocIndex()
		if err != nil {
			return nil, 0, err
		}
		rec = &record{handle: h, index: idx}
		r.byHandle[h] = rec
		r.nfds++
		rec.interest = interests
		rec.callback = cb
		rec.arg = arg
		return rec, 0, nil
	}

	prev := rec.interest

	if rec.index == -1 {
		// A lingering "reuse" record (spec.md: "retain the record in the
		// hash so its slot can be rebound by a later register of the
		// same handle"). Reactivating it needs a fresh index.
		if interests == 0 {
			// Deregistering something already inactive: no-op.
			return rec, prev, nil
		}
		idx, err := r.allocIndex()
		if err != nil {
			return nil, prev, err
		}
		rec.index = idx
		r.nfds++
		rec.interest = interests
		rec.callback = cb
		rec.arg = arg
		return rec, prev, nil
	}

	// Active record: update in place, index preserved.
	rec.callback = cb
	rec.arg = arg
	rec.interest = interests

	if interests == 0 {
		r.deactivate(rec)
	}

	return rec, prev, nil
}

// deactivate handles the bookkeeping for a record whose interest just
// became empty: release its index, decrement nfds, and either retain,
// destroy, or defer it per the reuse policy and dispatch state.
func (r *registry) deactivate(rec *record) {
	r.releaseIndex(rec.index)
	rec.index = -1
	r.nfds--

	if r.reuse {
		// Record lingers in the hash for fast rebinding; nothing more to do.
		return
	}

	if r.dispatching {
		r.deferDelete(rec)
		return
	}

	delete(r.byHandle, rec.handle)
}

// deferDelete appends rec to the deferred-deletion list. A callback that
// deregisters its own handle during dispatch must never have its record
// freed out from under the in-flight dispatch cursor (spec.md §4.D
// "Self-modification during dispatch").
func (r *registry) deferDelete(rec *record) {
	if rec.deferred {
		return
	}
	rec.deferred = true
	rec.deleteNext = r.deleteHead
	r.deleteHead = rec
}

// drainDeferred releases every record queued on the deferred-deletion list.
// Called once per dispatch batch, after every callback in the batch has run
// (spec.md §4.D step i).
func (r *registry) drainDeferred() {
	for rec := r.deleteHead; rec != nil; {
		next := rec.deleteNext
		rec.deleteNext = nil
		rec.deferred = false
		delete(r.byHandle, rec.handle)
		rec = next
	}
	r.deleteHead = nil
}

// beginDispatch marks the registry as mid-dispatch, so a callback's
// deregister of a non-reused handle is deferred rather than freed in place.
func (r *registry) beginDispatch() {
	r.dispatching = true
}

// endDispatch clears the mid-dispatch flag and drains the deferred-deletion
// list (spec.md §4.D: "Drain the deferred-deletion list" happens after
// dispatch, before timer poll).
func (r *registry) endDispatch() {
	r.dispatching = false
	r.drainDeferred()
}

// activeCount returns the number of records with non-empty interest
// (spec.md's nfds).
func (r *registry) activeCount() int {
	return r.nfds
}

// forEachActive calls fn for every record with non-empty interest. fn must
// not mutate the registry's hash (add/remove handles); mutating a record's
// own fields in place is fine.
func (r *registry) forEachActive(fn func(*record)) {
	for _, rec := range r.byHandle {
		if rec.interest != 0 {
			fn(rec)
		}
	}
}

// flush destroys every record and clears the deferred-deletion list. Used
// during reactor teardown.
func (r *registry) flush() {
	r.byHandle = make(map[Handle]*record)
	r.deleteHead = nil
	r.freeIndex = nil
	r.nextIndex = 0
	r.nfds = 0
}
