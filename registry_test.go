package reactor

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistry_RegisterAssignsDenseIndex(t *testing.T) {
	r := newRegistry(8, true)

	rec, prev, err := r.set(Handle(3), Read, nil, nil)
	require.NoError(t, err)
	require.Equal(t, Interest(0), prev)
	require.Equal(t, 0, rec.index)
	require.Equal(t, 1, r.activeCount())
}

// spec.md §8 "Round-trip / idempotence": two consecutive register calls
// with the same mask yield the same index.
func TestRegistry_RepeatedRegisterSameIndex(t *testing.T) {
	r := newRegistry(8, true)

	rec1, _, err := r.set(Handle(5), Read, nil, nil)
	require.NoError(t, err)
	idx := rec1.index

	rec2, prev, err := r.set(Handle(5), Read, nil, nil)
	require.NoError(t, err)
	require.Equal(t, Read, prev)
	require.Equal(t, idx, rec2.index)
	require.Same(t, rec1, rec2)
}

func TestRegistry_DeregisterUnknownHandleIsNoop(t *testing.T) {
	r := newRegistry(8, true)
	rec, prev, err := r.set(Handle(9), 0, nil, nil)
	require.NoError(t, err)
	require.Nil(t, rec)
	require.Equal(t, Interest(0), prev)
	require.Equal(t, 0, r.activeCount())
}

func TestRegistry_SentinelHandleIsInvalid(t *testing.T) {
	r := newRegistry(8, true)
	_, _, err := r.set(NoHandle, Read, nil, nil)
	require.Error(t, err)
	var rerr *Error
	require.ErrorAs(t, err, &rerr)
	require.Equal(t, KindInvalid, rerr.Kind)
}

func TestRegistry_TooManyWhenFull(t *testing.T) {
	r := newRegistry(2, true)
	_, _, err := r.set(Handle(1), Read, nil, nil)
	require.NoError(t, err)
	_, _, err = r.set(Handle(2), Read, nil, nil)
	require.NoError(t, err)

	_, _, err = r.set(Handle(3), Read, nil, nil)
	require.Error(t, err)
	var rerr *Error
	require.ErrorAs(t, err, &rerr)
	require.Equal(t, KindTooMany, rerr.Kind)
}

// spec.md §8 invariant 1: count of active handles equals the number of
// registered handles whose final mask is non-empty.
func TestRegistry_ActiveCountMatchesNonEmptyFinalMask(t *testing.T) {
	r := newRegistry(16, true)

	handles := []Handle{1, 2, 3, 4, 5}
	for _, h := range handles {
		_, _, err := r.set(h, Read, nil, nil)
		require.NoError(t, err)
	}
	// Deregister two of them.
	_, _, err := r.set(Handle(2), 0, nil, nil)
	require.NoError(t, err)
	_, _, err = r.set(Handle(4), 0, nil, nil)
	require.NoError(t, err)

	require.Equal(t, 3, r.activeCount())
}

// spec.md §8 round-trip: registering with mask M then mask 0 leaves
// count_active_handles unchanged from before the first register.
func TestRegistry_RegisterThenDeregisterRoundTrip(t *testing.T) {
	r := newRegistry(8, true)
	before := r.activeCount()

	_, _, err := r.set(Handle(7), Read|Write, nil, nil)
	require.NoError(t, err)
	require.Equal(t, before+1, r.activeCount())

	_, _, err = r.set(Handle(7), 0, nil, nil)
	require.NoError(t, err)
	require.Equal(t, before, r.activeCount())
}

func TestRegistry_ReusePolicy_RecordLingersAndRebinds(t *testing.T) {
	r := newRegistry(8, true)

	rec, _, err := r.set(Handle(11), Read, nil, nil)
	require.NoError(t, err)
	firstIdx := rec.index

	_, _, err = r.set(Handle(11), 0, nil, nil)
	require.NoError(t, err)
	require.Equal(t, -1, rec.index)
	// Still present in the hash (reuse enabled), just inactive.
	require.NotNil(t, r.lookup(Handle(11)))
	require.True(t, rec.reused())

	rec2, prev, err := r.set(Handle(11), Write, nil, nil)
	require.NoError(t, err)
	require.Same(t, rec, rec2)
	require.Equal(t, Interest(0), prev)
	// A fresh index is allocated on reactivation; the freed one is reused.
	require.Equal(t, firstIdx, rec2.index)
}

func TestRegistry_ReuseDisabled_RecordDestroyedImmediatelyOutsideDispatch(t *testing.T) {
	r := newRegistry(8, false)

	_, _, err := r.set(Handle(12), Read, nil, nil)
	require.NoError(t, err)

	_, _, err = r.set(Handle(12), 0, nil, nil)
	require.NoError(t, err)
	require.Nil(t, r.lookup(Handle(12)))
}

// spec.md §8 invariant 4 / §4.D "Self-modification during dispatch": a
// callback that deregisters its own handle never causes a use-after-free —
// the record survives at least until the dispatch batch ends.
func TestRegistry_ReuseDisabled_DeregisterDuringDispatchIsDeferred(t *testing.T) {
	r := newRegistry(8, false)

	rec, _, err := r.set(Handle(13), Read, nil, nil)
	require.NoError(t, err)

	r.beginDispatch()
	_, _, err = r.set(Handle(13), 0, nil, nil)
	require.NoError(t, err)

	// Still reachable mid-batch: a dispatch cursor holding rec must not see
	// it vanish underneath it.
	require.NotNil(t, r.lookup(Handle(13)))
	require.True(t, rec.deferred)

	r.endDispatch()
	require.Nil(t, r.lookup(Handle(13)))
	require.False(t, rec.deferred)
}

func TestRegistry_Flush(t *testing.T) {
	r := newRegistry(8, true)
	_, _, err := r.set(Handle(1), Read, nil, nil)
	require.NoError(t, err)
	_, _, err = r.set(Handle(2), Write, nil, nil)
	require.NoError(t, err)
	require.Equal(t, 2, r.activeCount())

	r.flush()
	require.Equal(t, 0, r.activeCount())
	require.Nil(t, r.lookup(Handle(1)))
	require.Nil(t, r.lookup(Handle(2)))
}

func TestRegistry_ForEachActiveSkipsInactive(t *testing.T) {
	r := newRegistry(8, true)
	_, _, err := r.set(Handle(1), Read, nil, nil)
	require.NoError(t, err)
	_, _, err = r.set(Handle(2), Read, nil, nil)
	require.NoError(t, err)
	_, _, err = r.set(Handle(2), 0, nil, nil)
	require.NoError(t, err)

	var seen []Handle
	r.forEachActive(func(rec *record) {
		seen = append(seen, rec.handle)
	})
	require.Equal(t, []Handle{Handle(1)}, seen)
}

// Index allocation never hands out a currently-active index twice, even
// under register/deregister churn that frees and reuses slots out of
// handle-value order (spec.md §3: "index is... a unique small
// non-negative integer within the reactor").
func TestRegistry_IndexUniquenessUnderChurn(t *testing.T) {
	r := newRegistry(4, true)

	active := map[Handle]int{}
	assertUnique := func() {
		seen := map[int]Handle{}
		for h, idx := range active {
			if other, ok := seen[idx]; ok {
				t.Fatalf("index %d held by both %d and %d", idx, h, other)
			}
			seen[idx] = h
		}
	}

	for round := 0; round < 50; round++ {
		h := Handle(round%4 + 1)
		if _, ok := active[h]; ok {
			_, _, err := r.set(h, 0, nil, nil)
			require.NoError(t, err)
			delete(active, h)
		} else {
			rec, _, err := r.set(h, Read, nil, nil)
			require.NoError(t, err)
			active[h] = rec.index
		}
		assertUnique()
	}
}
