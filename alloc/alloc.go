package alloc

import (
	"fmt"

	"github.com/JohnCGriffin/overflow"

	"github.com/joshuapare/segalloc/internal/format"
)

// Alloc returns a block with at least n usable bytes, 8-byte aligned.
//
// A fit is searched for in the free-list table first. On a miss the arena
// grows by max(adjusted size, ChunkSize) and the new space is placed. When
// growth fails the heap is left exactly as it was.
func (h *Heap) Alloc(n int) (Ptr, error) {
	if err := h.usable(); err != nil {
		return Nil, err
	}
	h.stats.AllocCalls++
	p, err := h.allocate(n)
	if err != nil {
		h.stats.FailedAllocs++
	}
	return p, err
}

func (h *Heap) allocate(n int) (Ptr, error) {
	asize, ok := format.AdjustedSize(n)
	if !ok {
		return Nil, fmt.Errorf("%w: %d bytes", ErrInvalidRequest, n)
	}

	if bp := h.findFit(asize); bp != Nil {
		h.stats.AllocFastPath++
		h.place(bp, asize)
		return bp, h.err
	}
	if h.err != nil {
		return Nil, h.err
	}

	h.stats.AllocSlowPath++
	bp, err := h.extend(max(asize, h.chunk))
	if err != nil {
		return Nil, err
	}
	h.place(bp, asize)
	return bp, h.err
}

// Free releases the allocation p and merges it with free neighbours.
// Freeing Nil does nothing. A pointer that is not a live allocation is
// reported and rejected with ErrInvalidFree; the heap is not modified.
func (h *Heap) Free(p Ptr) error {
	if err := h.usable(); err != nil {
		return err
	}
	h.stats.FreeCalls++
	if p == Nil {
		return nil
	}
	return h.release(p)
}

func (h *Heap) release(p Ptr) error {
	if err := h.liveBlock(p); err != nil {
		h.stats.InvalidFrees++
		h.logger().Warn("invalid free ignored", "ptr", p.String(), "err", err)
		return err
	}
	h.writeTags(p, h.size(p), false)
	h.insert(p)
	h.coalesce(p)
	return h.err
}

// Realloc moves the allocation p to a block of at least n usable bytes,
// preserving min(old payload, n) bytes of content.
//
// Realloc(p, 0) frees p and returns Nil. Realloc(Nil, n) is Alloc(n). When
// the new block cannot be allocated, p is left untouched and still live.
func (h *Heap) Realloc(p Ptr, n int) (Ptr, error) {
	if err := h.usable(); err != nil {
		return Nil, err
	}
	h.stats.ReallocCalls++

	switch {
	case n == 0:
		if p == Nil {
			return Nil, nil
		}
		return Nil, h.release(p)
	case p == Nil:
		return h.allocate(n)
	}

	if err := h.liveBlock(p); err != nil {
		h.stats.InvalidFrees++
		h.logger().Warn("realloc of invalid pointer", "ptr", p.String(), "err", err)
		return Nil, err
	}
	oldSize := format.PayloadSize(h.size(p))

	np, err := h.allocate(n)
	if err != nil {
		h.stats.FailedAllocs++
		return Nil, err
	}

	data := h.src.Bytes()
	copied := copy(data[np:int(np)+min(oldSize, n)], data[p:int(p)+oldSize])
	h.markDirty(int(np), copied)

	if err := h.release(p); err != nil {
		return Nil, err
	}
	return np, nil
}

// Calloc allocates count*n bytes and zeroes the payload. A product that
// overflows int is rejected with ErrInvalidRequest.
func (h *Heap) Calloc(count, n int) (Ptr, error) {
	if err := h.usable(); err != nil {
		return Nil, err
	}
	h.stats.CallocCalls++

	total, ok := overflow.Mul(count, n)
	if !ok || count < 0 || n < 0 {
		h.stats.FailedAllocs++
		return Nil, fmt.Errorf("%w: %d x %d bytes", ErrInvalidRequest, count, n)
	}
	p, err := h.allocate(total)
	if err != nil {
		h.stats.FailedAllocs++
		return Nil, err
	}

	payload := format.PayloadSize(h.size(p))
	clear(h.src.Bytes()[p : int(p)+payload])
	h.markDirty(int(p), payload)
	return p, nil
}

// extend grows the arena by size bytes, turns the old epilogue into the
// header of one free block covering the new space and writes a fresh
// epilogue after it. The block is inserted but not coalesced.
func (h *Heap) extend(size int) (Ptr, error) {
	old, err := h.src.Grow(size)
	if err != nil {
		h.logger().Warn("arena growth failed", "request", size, "arena", h.src.Len(), "err", err)
		return Nil, fmt.Errorf("%w: %w", ErrOutOfMemory, err)
	}
	size = h.src.Len() - old
	h.stats.GrowCalls++
	h.stats.GrowBytes += uint64(size)

	bp := Ptr(old)
	h.writeTags(bp, size, false)
	h.putTag(hdrp(bp+Ptr(size)), format.Pack(0, true))
	h.insert(bp)
	h.logger().Debug("arena grown", "by", size, "arena", h.src.Len())
	return bp, h.err
}

// place carves an allocated block of asize bytes out of the free block bp.
// A remainder too small to stand alone stays with the allocation.
func (h *Heap) place(bp Ptr, asize int) {
	size := h.size(bp)
	h.unlink(bp)

	if size-asize < format.MinBlockSize {
		h.stats.AbsorbCount++
		h.writeTags(bp, size, true)
		return
	}

	h.stats.SplitCount++
	h.writeTags(bp, asize, true)
	rest := bp + Ptr(asize)
	h.writeTags(rest, size-asize, false)
	h.insert(rest)
	h.coalesce(rest)
}

// coalesce merges the listed free block bp with any free neighbours and
// returns the surviving block, which is listed exactly once.
func (h *Heap) coalesce(bp Ptr) Ptr {
	prev, next := h.prevBlock(bp), h.nextBlock(bp)
	prevFree, nextFree := !h.isAllocated(prev), !h.isAllocated(next)
	size := h.size(bp)

	switch {
	case !prevFree && !nextFree:
		return bp

	case !prevFree && nextFree:
		h.stats.CoalesceNext++
		h.unlink(bp)
		h.unlink(next)
		size += h.size(next)

	case prevFree && !nextFree:
		h.stats.CoalescePrev++
		h.unlink(bp)
		h.unlink(prev)
		size += h.size(prev)
		bp = prev

	default:
		h.stats.CoalesceBoth++
		h.unlink(bp)
		h.unlink(prev)
		h.unlink(next)
		size += h.size(prev) + h.size(next)
		bp = prev
	}

	h.writeTags(bp, size, false)
	h.insert(bp)
	return bp
}
