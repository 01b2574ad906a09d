package format

import (
	"fmt"
	"math/bits"

	"github.com/joshuapare/segalloc/internal/buf"
)

// Tag is one boundary-tag word: the block size with the allocated flag in
// the low bit. Sizes are multiples of 8, so the low three bits are free.
//
//	bit  31..3  size (bytes, header and footer included)
//	bit  2..1   reserved, zero
//	bit  0      allocated
type Tag uint32

const (
	allocBit = 0x1
	sizeMask = ^uint32(AlignmentMask)
)

// Pack builds a tag from a size and an allocated flag.
func Pack(size int, allocated bool) Tag {
	t := uint32(size) & sizeMask
	if allocated {
		t |= allocBit
	}
	return Tag(t)
}

// Size returns the block size encoded in t.
func (t Tag) Size() int { return int(uint32(t) & sizeMask) }

// Allocated reports whether t marks an allocated block.
func (t Tag) Allocated() bool { return uint32(t)&allocBit != 0 }

// Reserved reports whether any reserved bit is set, which never happens
// for a tag produced by Pack.
func (t Tag) Reserved() bool { return uint32(t)&(AlignmentMask&^allocBit) != 0 }

func (t Tag) String() string {
	state := "free"
	if t.Allocated() {
		state = "alloc"
	}
	return fmt.Sprintf("[%s %d]", state, t.Size())
}

// ClassOf returns the free-list bucket for a block size: the position of the
// size's highest set bit, clamped to [0, NumClasses-1].
func ClassOf(size int) int {
	if size <= 1 {
		return 0
	}
	c := bits.Len(uint(size)) - 1
	if c >= NumClasses {
		return NumClasses - 1
	}
	return c
}

// ClassBounds returns the inclusive lower and exclusive upper size bound of
// bucket c. The last bucket is unbounded and reports hi = 0.
func ClassBounds(c int) (lo, hi int) {
	lo = 1 << c
	if c == 0 {
		lo = 0
	}
	if c >= NumClasses-1 {
		return lo, 0
	}
	return lo, 1 << (c + 1)
}

// TagAt decodes the tag word stored at b[off:off+4].
func TagAt(b []byte, off int) (Tag, error) {
	w, ok := buf.U32At(b, off)
	if !ok {
		return 0, fmt.Errorf("tag at %d: %w", off, ErrTruncated)
	}
	t := Tag(w)
	if t.Reserved() {
		return t, fmt.Errorf("tag at %d (%#x): %w", off, w, ErrBadTag)
	}
	return t, nil
}

// PutTag stores t at b[off:off+4].
func PutTag(b []byte, off int, t Tag) error {
	if !buf.PutU32At(b, off, uint32(t)) {
		return fmt.Errorf("tag at %d: %w", off, ErrTruncated)
	}
	return nil
}
