//go:build unix

package reactor

import (
	"os"
	"syscall"
)

// signalNumber extracts the platform signal number from an os.Signal, the
// way a real reactor's signal hook would see it from sigaction.
func signalNumber(sig os.Signal) int {
	if s, ok := sig.(syscall.Signal); ok {
		return int(s)
	}
	return 0
}
