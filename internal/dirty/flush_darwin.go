//go:build darwin

package dirty

import (
	"context"

	"golang.org/x/sys/unix"
)

// flushRanges syncs the whole mapping.
//
// On macOS, msync() requires the address to match the original mmap() address,
// so sub-slices cannot be passed. The kernel only writes dirty pages anyway.
func (t *Tracker) flushRanges(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return unix.Msync(data, unix.MS_SYNC)
}

// Fdatasync flushes fd to stable storage with F_FULLFSYNC.
func Fdatasync(fd int) error {
	_, err := unix.FcntlInt(uintptr(fd), unix.F_FULLFSYNC, 0)
	return err
}
