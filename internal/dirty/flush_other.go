//go:build !unix

package dirty

import "context"

// flushRanges is a no-op where arenas are not memory-mapped; the file-backed
// arena writes its image explicitly instead.
func (t *Tracker) flushRanges(ctx context.Context, _ []byte) error {
	return ctx.Err()
}

// Fdatasync is a no-op on platforms without mapped arenas.
func Fdatasync(int) error { return nil }
