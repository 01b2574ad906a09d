//go:build !unix

package arena

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/joshuapare/segalloc/internal/dirty"
	"github.com/joshuapare/segalloc/internal/format"
)

// File keeps the heap image in memory and writes it back on Flush where
// shared mappings are unavailable.
type File struct {
	region
	path string
	dt   *dirty.Tracker
}

// OpenFile loads path (creating it if needed) into a capacity-byte reservation.
func OpenFile(path string, capacity int) (*File, error) {
	capacity = clampCapacity(capacity)

	image, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	if len(image)%format.Alignment != 0 || len(image) > capacity {
		return nil, fmt.Errorf("arena: %s: image size %d does not fit a %d byte reservation",
			path, len(image), capacity)
	}

	data := make([]byte, capacity)
	copy(data, image)
	return &File{
		region: region{data: data, brk: len(image)},
		path:   path,
		dt:     dirty.NewTracker(),
	}, nil
}

// Add marks [off, off+length) as modified.
func (a *File) Add(off, length int) {
	a.dt.Add(off, length)
}

// Reset discards the image.
func (a *File) Reset() {
	a.dt.Add(0, a.brk)
	a.region.Reset()
}

// Flush rewrites the file when anything changed.
func (a *File) Flush(ctx context.Context) error {
	if a.closed {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if a.dt.Len() == 0 {
		return nil
	}
	if err := os.WriteFile(a.path, a.data[:a.brk], 0o644); err != nil {
		return fmt.Errorf("arena: flush %s: %w", a.path, err)
	}
	a.dt.Reset()
	return nil
}

// Close flushes and releases the reservation.
func (a *File) Close() error {
	if a.closed {
		return nil
	}
	err := a.Flush(context.Background())
	a.closed = true
	a.data, a.brk = nil, 0
	return err
}

var (
	_ Source       = (*File)(nil)
	_ DirtyTracker = (*File)(nil)
)
