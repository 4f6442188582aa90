package reactor

// These constants are verified against the platform's actual cache line
// size by sizeof_test.go.
const (
	// sizeOfCacheLine pads the Reactor's hot cross-goroutine atomics
	// (polling, update, threadEnter) apart from each other and from the
	// rest of the struct, so the owning goroutine's dispatch loop and a
	// foreign goroutine's ThreadEnter window don't false-share a cache
	// line. 128 bytes covers both x86-64 (64) and Apple Silicon/ARM64
	// (128).
	sizeOfCacheLine = 128
)
