//go:build linux

package reactor

import "golang.org/x/sys/unix"

// unix.FdSet.Bits is [16]int64 on linux/amd64 and friends.
func fdSet(set *unix.FdSet, fd int) {
	set.Bits[fd/64] |= 1 << (uint(fd) % 64)
}

func fdIsSet(set *unix.FdSet, fd int) bool {
	return set.Bits[fd/64]&(1<<(uint(fd)%64)) != 0
}
