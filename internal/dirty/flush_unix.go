//go:build unix && !darwin

package dirty

import (
	"context"

	"golang.org/x/sys/unix"
)

// flushRanges syncs each coalesced range separately.
//
// On Linux and the BSDs msync() accepts page-aligned sub-slices of a mapping.
func (t *Tracker) flushRanges(ctx context.Context, data []byte) error {
	for _, r := range t.coalesce() {
		if err := ctx.Err(); err != nil {
			return err
		}
		start, end, ok := clip(r, len(data))
		if !ok {
			continue
		}
		if err := unix.Msync(data[start:end], unix.MS_SYNC); err != nil {
			return err
		}
	}
	return nil
}

// Fdatasync flushes file data (not metadata) for fd.
func Fdatasync(fd int) error {
	return unix.Fdatasync(fd)
}
