//go:build unix

package arena

import (
	"context"
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/joshuapare/segalloc/internal/dirty"
	"github.com/joshuapare/segalloc/internal/format"
)

// File is a Source backed by a shared mapping of a file, giving a heap image
// that survives the process. At rest the file is exactly break bytes long;
// while open it is extended to the full reservation so growth never remaps.
//
// Writes reported through Add are flushed page by page with msync.
type File struct {
	region
	f  *os.File
	dt *dirty.Tracker
}

// OpenFile maps path (creating it if needed) with a reservation of capacity
// bytes. An existing file's length becomes the initial break.
func OpenFile(path string, capacity int) (*File, error) {
	capacity = clampCapacity(capacity)

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	size := info.Size()
	if size%format.Alignment != 0 || size > int64(capacity) {
		f.Close()
		return nil, fmt.Errorf("arena: %s: image size %d does not fit a %d byte reservation",
			path, size, capacity)
	}

	if err := f.Truncate(int64(capacity)); err != nil {
		f.Close()
		return nil, fmt.Errorf("arena: extend %s: %w", path, err)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, capacity,
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		// Restore the on-disk length before giving up.
		_ = f.Truncate(size)
		f.Close()
		return nil, fmt.Errorf("arena: mmap %s: %w", path, err)
	}

	return &File{
		region: region{data: data, brk: int(size)},
		f:      f,
		dt:     dirty.NewTracker(),
	}, nil
}

// Add marks [off, off+length) as modified.
func (a *File) Add(off, length int) {
	a.dt.Add(off, length)
}

// Reset discards the image; the whole former extent is flushed next time.
func (a *File) Reset() {
	a.dt.Add(0, a.brk)
	a.region.Reset()
}

// Flush writes dirty pages back to the file and syncs its data.
func (a *File) Flush(ctx context.Context) error {
	if a.closed {
		return ErrClosed
	}
	if err := a.dt.Flush(ctx, a.data); err != nil {
		return fmt.Errorf("arena: flush %s: %w", a.f.Name(), err)
	}
	return dirty.Fdatasync(int(a.f.Fd()))
}

// Close flushes, unmaps and trims the file to the break.
func (a *File) Close() error {
	if a.closed {
		return nil
	}
	flushErr := a.Flush(context.Background())

	a.closed = true
	data, brk := a.data, a.brk
	a.data, a.brk = nil, 0

	var errs []error
	if flushErr != nil {
		errs = append(errs, flushErr)
	}
	if err := unix.Munmap(data); err != nil && !errors.Is(err, unix.EINVAL) {
		errs = append(errs, err)
	}
	if err := a.f.Truncate(int64(brk)); err != nil {
		errs = append(errs, err)
	}
	if err := a.f.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

var (
	_ Source       = (*File)(nil)
	_ DirtyTracker = (*File)(nil)
)
