package reactor

import "runtime"

// goroutineID returns the current goroutine's runtime ID, parsed out of
// the debug stack trace header ("goroutine 123 [running]: ..."). Go has no
// public goroutine-local storage, so this is the same trick used to model
// "thread identity" when the unit of concurrency is a goroutine rather
// than an OS thread.
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] >= '0' && buf[i] <= '9' {
			id = id*10 + uint64(buf[i]-'0')
		} else {
			break
		}
	}
	return id
}
