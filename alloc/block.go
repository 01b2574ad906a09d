package alloc

import (
	"fmt"

	"github.com/joshuapare/segalloc/internal/buf"
	"github.com/joshuapare/segalloc/internal/format"
)

// Block layout accessors. Every read and write of arena metadata goes
// through word/putWord, which bounds-check against the current break and
// poison the heap on a miss instead of panicking.

func hdrp(bp Ptr) int { return int(bp) - format.WordSize }

func (h *Heap) ftrp(bp Ptr) int { return int(bp) + h.size(bp) - format.DoubleWordSize }

func (h *Heap) word(off int) uint32 {
	v, ok := buf.U32At(h.src.Bytes(), off)
	if !ok {
		h.fault("read", off)
	}
	return v
}

func (h *Heap) putWord(off int, v uint32) {
	if !buf.PutU32At(h.src.Bytes(), off, v) {
		h.fault("write", off)
		return
	}
	h.markDirty(off, format.WordSize)
}

func (h *Heap) tag(off int) format.Tag { return format.Tag(h.word(off)) }

func (h *Heap) putTag(off int, t format.Tag) { h.putWord(off, uint32(t)) }

// size returns the size recorded in bp's header.
func (h *Heap) size(bp Ptr) int { return h.tag(hdrp(bp)).Size() }

// isAllocated reports the allocated flag in bp's header.
func (h *Heap) isAllocated(bp Ptr) bool { return h.tag(hdrp(bp)).Allocated() }

// writeTags stamps matching header and footer words for a block of size
// bytes starting at bp.
func (h *Heap) writeTags(bp Ptr, size int, allocated bool) {
	t := format.Pack(size, allocated)
	h.putTag(hdrp(bp), t)
	h.putTag(int(bp)+size-format.DoubleWordSize, t)
}

// nextBlock returns the block that follows bp in the arena.
func (h *Heap) nextBlock(bp Ptr) Ptr { return bp + Ptr(h.size(bp)) }

// prevBlock returns the block that precedes bp, using the footer that sits
// directly before bp's header.
func (h *Heap) prevBlock(bp Ptr) Ptr {
	return bp - Ptr(h.tag(int(bp)-format.DoubleWordSize).Size())
}

func (h *Heap) markDirty(off, n int) {
	if h.dt != nil {
		h.dt.Add(off, n)
	}
}

// fault records the first out-of-bounds metadata access. Every public
// operation refuses to run afterwards.
func (h *Heap) fault(op string, off int) {
	if h.err != nil {
		return
	}
	h.err = fmt.Errorf("%w: %s of word at %d outside arena of %d bytes",
		ErrCorrupt, op, off, h.src.Len())
	h.logger().Error("arena access out of bounds", "op", op, "off", off, "arena", h.src.Len())
}

// liveBlock checks that p addresses an allocated block lying wholly inside
// the chain, without touching anything outside the arena.
func (h *Heap) liveBlock(p Ptr) error {
	data := h.src.Bytes()
	off := int(p)
	epilogue := len(data) - format.WordSize

	switch {
	case !buf.Aligned(off, format.Alignment):
		return fmt.Errorf("%w: %v is not 8-byte aligned", ErrInvalidFree, p)
	case off <= format.ProloguePayload || off >= epilogue:
		return fmt.Errorf("%w: %v is outside the heap", ErrInvalidFree, p)
	}

	hdr, err := format.TagAt(data, hdrp(p))
	if err != nil {
		return fmt.Errorf("%w: %v: %w", ErrInvalidFree, p, err)
	}
	if !hdr.Allocated() {
		return fmt.Errorf("%w: %v is not allocated", ErrInvalidFree, p)
	}
	size := hdr.Size()
	if size < format.MinBlockSize || hdrp(p)+size > epilogue {
		return fmt.Errorf("%w: %v has impossible size %d", ErrInvalidFree, p, size)
	}
	ftr, err := format.TagAt(data, off+size-format.DoubleWordSize)
	if err != nil || ftr != hdr {
		return fmt.Errorf("%w: %v header %v does not match footer %v", ErrInvalidFree, p, hdr, ftr)
	}
	return nil
}
