package reactor

// record is the per-handle bookkeeping a registered OS handle carries. One
// exists per registered OS handle while it has non-empty interest, and
// optionally lingers afterward depending on the reuse policy.
type record struct {
	handle   Handle
	interest Interest
	callback Callback
	arg      any

	// index is the dense, small non-negative integer used for O(1)
	// placement in the set-based and array-based backends' parallel
	// arrays. It is -1 iff interest is empty.
	index int

	// deleteNext chains this record onto the deferred-deletion list when
	// its interest became empty during dispatch. nil otherwise.
	deleteNext *record
	deferred   bool
}

// reused reports whether this record currently holds a handle whose
// interest has gone to empty but is being kept around for slot reuse: if
// the handle value is reissued by the OS, its record can be rebound
// without a fresh hash insertion.
func (r *record) reused() bool {
	return r.interest == 0 && !r.deferred
}
