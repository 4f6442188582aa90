package reactor

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestForeignThread_DeregisterDuringWait resolves DESIGN.md's Open
// Question 3: a foreign thread's deregister issued while the owning
// goroutine is blocked in backend.wait (polling true, dispatching false)
// takes the immediate-release path, not the deferred one, since
// registry.deactivate gates on r.dispatching rather than which goroutine
// holds the lock.
func TestForeignThread_DeregisterDuringWait(t *testing.T) {
	rx, tx, err := os.Pipe()
	require.NoError(t, err)
	defer rx.Close()
	defer tx.Close()

	r, err := New(WithReusePolicy(false))
	require.NoError(t, err)
	defer r.Close()

	h := Handle(rx.Fd())
	require.NoError(t, r.Register(h, Read, func(Interest, any) {}, nil))

	// Simulate the owning goroutine being blocked in wait: polling true,
	// dispatching false — exactly the state a foreign thread's
	// ThreadEnter/Deregister observes mid-Run.
	r.polling.Store(true)
	require.False(t, r.registry.dispatching)

	r.ThreadEnter()
	require.NoError(t, r.Deregister(h))

	rec := r.registry.lookup(h)
	require.Nil(t, rec, "deregister while dispatching=false releases the record immediately, not deferred")

	r.ThreadLeave()
	r.polling.Store(false)
}
