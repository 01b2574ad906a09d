// Package arena provides the growable byte regions the allocator carves
// blocks out of.
//
// A Source reserves its full capacity up front and exposes a monotonically
// growing high-water mark (the break). Growth never moves the backing
// storage, so slices handed out before a Grow stay valid after it. Sources
// never shrink except through Reset, which discards everything.
//
// Sources are not safe for concurrent use.
package arena

import (
	"errors"
	"fmt"

	"github.com/joshuapare/segalloc/internal/buf"
	"github.com/joshuapare/segalloc/internal/format"
)

// DefaultCapacity is the reservation used when a constructor is given a
// non-positive capacity.
const DefaultCapacity = 20 << 20

var (
	// ErrOutOfMemory indicates the reservation cannot satisfy a Grow.
	ErrOutOfMemory = errors.New("arena: out of memory")

	// ErrInvalidGrow indicates a negative or overflowing growth request.
	ErrInvalidGrow = errors.New("arena: invalid grow amount")

	// ErrClosed indicates use of a source after Close.
	ErrClosed = errors.New("arena: closed")
)

// Source is the allocator's only view of memory.
type Source interface {
	// Grow extends the break by n bytes rounded up to 8 and returns the
	// previous break. On error the region is unchanged.
	Grow(n int) (old int, err error)

	// Bytes returns the region [0, break).
	Bytes() []byte

	// Len returns the current break.
	Len() int

	// Cap returns the reservation size; Len never exceeds it.
	Cap() int

	// Reset moves the break back to zero.
	Reset()
}

// DirtyTracker is implemented by sources that persist their contents and
// want to know which byte ranges changed since the last flush.
type DirtyTracker interface {
	Add(off, length int)
}

// region is the break bookkeeping shared by every Source implementation.
type region struct {
	data   []byte // full reservation
	brk    int
	closed bool
}

func clampCapacity(capacity int) int {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	capacity = min(capacity, format.MaxBlockSize)
	return capacity &^ format.AlignmentMask
}

func (r *region) Grow(n int) (int, error) {
	if r.closed {
		return 0, ErrClosed
	}
	if n < 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidGrow, n)
	}
	rounded, ok := buf.AddOverflowSafe(n, format.AlignmentMask)
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrInvalidGrow, n)
	}
	rounded &^= format.AlignmentMask

	end, ok := buf.AddOverflowSafe(r.brk, rounded)
	if !ok || end > len(r.data) {
		return 0, fmt.Errorf("%w: need %d bytes, %d of %d in use",
			ErrOutOfMemory, rounded, r.brk, len(r.data))
	}
	old := r.brk
	r.brk = end
	return old, nil
}

func (r *region) Bytes() []byte {
	return r.data[:r.brk:r.brk]
}

func (r *region) Len() int { return r.brk }

func (r *region) Cap() int { return len(r.data) }

func (r *region) Reset() { r.brk = 0 }
