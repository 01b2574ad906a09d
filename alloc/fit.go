package alloc

import "github.com/joshuapare/segalloc/internal/format"

// findFit returns the first free block of at least asize bytes, scanning
// buckets from asize's class upward. Buckets are sorted, so the result is
// the smallest adequate block of the lowest bucket that has one.
func (h *Heap) findFit(asize int) Ptr {
	for c := format.ClassOf(asize); c < format.NumClasses; c++ {
		for bp := h.seg[c]; bp != Nil; bp = h.next(bp) {
			if h.err != nil {
				return Nil
			}
			if !h.isAllocated(bp) && h.size(bp) >= asize {
				return bp
			}
		}
	}
	return Nil
}
