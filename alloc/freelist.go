package alloc

import "github.com/joshuapare/segalloc/internal/format"

// Free-list links are arena offsets stored in the first two payload words
// of a free block. Nothing outside this file knows that.

func (h *Heap) next(bp Ptr) Ptr { return Ptr(h.word(int(bp) + format.NextLinkOffset)) }

func (h *Heap) prev(bp Ptr) Ptr { return Ptr(h.word(int(bp) + format.PrevLinkOffset)) }

func (h *Heap) setNext(bp, v Ptr) { h.putWord(int(bp)+format.NextLinkOffset, uint32(v)) }

func (h *Heap) setPrev(bp, v Ptr) { h.putWord(int(bp)+format.PrevLinkOffset, uint32(v)) }

// insert links the free block bp into its bucket, keeping the bucket in
// ascending size order. Blocks of equal size go before existing ones.
func (h *Heap) insert(bp Ptr) {
	size := h.size(bp)
	c := format.ClassOf(size)
	head := h.seg[c]

	if head == Nil {
		h.seg[c] = bp
		h.setNext(bp, Nil)
		h.setPrev(bp, Nil)
		return
	}

	if h.size(head) >= size {
		h.setPrev(head, bp)
		h.setNext(bp, head)
		h.setPrev(bp, Nil)
		h.seg[c] = bp
		return
	}

	cur := head
	for {
		nxt := h.next(cur)
		if nxt == Nil || h.size(nxt) >= size {
			h.setNext(bp, nxt)
			h.setPrev(bp, cur)
			h.setNext(cur, bp)
			if nxt != Nil {
				h.setPrev(nxt, bp)
			}
			return
		}
		if h.err != nil {
			return
		}
		cur = nxt
	}
}

// unlink removes bp from its bucket and clears bp's own links. bp's header
// must still carry the size it was inserted with.
func (h *Heap) unlink(bp Ptr) {
	c := format.ClassOf(h.size(bp))
	nxt, prv := h.next(bp), h.prev(bp)

	switch {
	case prv == Nil && nxt == Nil:
		h.seg[c] = Nil
	case prv != Nil && nxt == Nil:
		h.setNext(prv, Nil)
	case prv == Nil && nxt != Nil:
		h.setPrev(nxt, Nil)
		h.seg[c] = nxt
	default:
		h.setNext(prv, nxt)
		h.setPrev(nxt, prv)
	}

	h.setNext(bp, Nil)
	h.setPrev(bp, Nil)
}

// bucketLen counts the blocks reachable from bucket c, stopping after limit
// steps so a corrupted cycle cannot hang the caller.
func (h *Heap) bucketLen(c, limit int) int {
	n := 0
	for bp := h.seg[c]; bp != Nil && n < limit && h.err == nil; bp = h.next(bp) {
		n++
	}
	return n
}
