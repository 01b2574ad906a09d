package alloc

import (
	"errors"
	"fmt"
	"io"

	"github.com/joshuapare/segalloc/internal/buf"
	"github.com/joshuapare/segalloc/internal/format"
)

// Kind classifies a structural problem found by Check.
type Kind string

const (
	KindNotInitialized      Kind = "not-initialized"
	KindBadPrologue         Kind = "bad-prologue"
	KindBadEpilogue         Kind = "bad-epilogue"
	KindTagMismatch         Kind = "tag-mismatch"
	KindOutOfBounds         Kind = "out-of-bounds"
	KindMisaligned          Kind = "misaligned"
	KindBadSize             Kind = "bad-size"
	KindAdjacentFree        Kind = "adjacent-free"
	KindAllocatedInFreelist Kind = "allocated-in-freelist"
	KindWrongBucket         Kind = "wrong-bucket"
	KindUnsortedBucket      Kind = "unsorted-bucket"
	KindBrokenLinks         Kind = "broken-links"
	KindUnlistedFree        Kind = "unlisted-free"
	KindDuplicateListing    Kind = "duplicate-listing"
	KindFreelistCycle       Kind = "freelist-cycle"
	KindNotABlock           Kind = "not-a-block"
)

// Violation is one invariant the heap image does not satisfy.
type Violation struct {
	Kind    Kind
	Offset  int // payload offset of the block, or tag offset for sentinels
	Bucket  int // -1 when the problem is not tied to a bucket
	Message string
}

func (v Violation) Error() string {
	if v.Bucket >= 0 {
		return fmt.Sprintf("%s at %#x (bucket %d): %s", v.Kind, v.Offset, v.Bucket, v.Message)
	}
	return fmt.Sprintf("%s at %#x: %s", v.Kind, v.Offset, v.Message)
}

// Violations is the full result of a Check. Empty means the heap is sound.
type Violations []Violation

// Err joins every violation into one error, or returns nil.
func (vs Violations) Err() error {
	if len(vs) == 0 {
		return nil
	}
	errs := make([]error, len(vs))
	for i, v := range vs {
		errs[i] = v
	}
	return errors.Join(errs...)
}

// Has reports whether any violation is of kind k.
func (vs Violations) Has(k Kind) bool {
	for _, v := range vs {
		if v.Kind == k {
			return true
		}
	}
	return false
}

type checker struct {
	h       *Heap
	data    []byte
	w       io.Writer
	verbose bool
	out     Violations

	blocks map[Ptr]format.Tag // every block reached by the chain walk
	free   []Ptr              // free blocks in address order
	listed map[Ptr]int        // free-list members and their bucket
}

// Check walks the block chain and every bucket of the free-list table and
// reports each violated invariant. It reads the arena only through bounds
// checks, never modifies the heap and stops every traversal that could
// loop. In verbose mode every block and bucket is written to w.
func (h *Heap) Check(w io.Writer, verbose bool) Violations {
	if !h.ready {
		return Violations{{Kind: KindNotInitialized, Bucket: -1, Message: "heap has not been initialized"}}
	}
	if w == nil {
		w = io.Discard
	}
	c := &checker{
		h:       h,
		data:    h.src.Bytes(),
		w:       w,
		verbose: verbose,
		blocks:  make(map[Ptr]format.Tag),
		listed:  make(map[Ptr]int),
	}
	c.sentinels()
	c.chain()
	c.buckets()
	c.unlisted()
	if verbose {
		fmt.Fprintf(w, "%d violation(s)\n", len(c.out))
	}
	return c.out
}

func (c *checker) report(k Kind, off, bucket int, msg string, args ...any) {
	v := Violation{Kind: k, Offset: off, Bucket: bucket, Message: fmt.Sprintf(msg, args...)}
	c.out = append(c.out, v)
	if c.verbose {
		fmt.Fprintf(c.w, "  ! %v\n", v)
	}
}

func (c *checker) epilogue() int { return len(c.data) - format.WordSize }

func (c *checker) sentinels() {
	want := format.Pack(format.PrologueSize, true)
	for _, off := range []int{format.PrologueHeaderOffset, format.PrologueFooterOffset} {
		t, err := format.TagAt(c.data, off)
		switch {
		case err != nil:
			c.report(KindBadPrologue, off, -1, "%v", err)
		case t != want:
			c.report(KindBadPrologue, off, -1, "tag %v, want %v", t, want)
		}
	}

	off := c.epilogue()
	t, err := format.TagAt(c.data, off)
	switch {
	case err != nil:
		c.report(KindBadEpilogue, off, -1, "%v", err)
	case t != format.Pack(0, true):
		c.report(KindBadEpilogue, off, -1, "tag %v at end of arena, want [alloc 0]", t)
	}
}

func (c *checker) chain() {
	if c.verbose {
		fmt.Fprintf(c.w, "Heap (%d bytes):\n", len(c.data))
	}
	end := c.epilogue()
	bp := Ptr(format.ProloguePayload + format.PrologueSize)
	prevFree := false
	for {
		hdr := hdrp(bp)
		t, err := format.TagAt(c.data, hdr)
		if err != nil {
			kind := KindOutOfBounds
			if errors.Is(err, format.ErrBadTag) {
				kind = KindBadSize
			}
			c.report(kind, int(bp), -1, "header: %v", err)
			return
		}
		if t.Size() == 0 {
			if hdr != end {
				c.report(KindBadEpilogue, hdr, -1, "chain ends at %#x, arena ends at %#x", hdr, end)
			}
			return
		}

		size := t.Size()
		if c.verbose {
			fmt.Fprintf(c.w, "  %v: %v\n", bp, t)
		}
		if size < format.MinBlockSize {
			c.report(KindBadSize, int(bp), -1, "size %d below minimum %d", size, format.MinBlockSize)
			return
		}
		if hdr+size > end {
			c.report(KindOutOfBounds, int(bp), -1, "block of %d bytes runs past epilogue at %#x", size, end)
			return
		}
		if ftr, err := format.TagAt(c.data, int(bp)+size-format.DoubleWordSize); err != nil || ftr != t {
			c.report(KindTagMismatch, int(bp), -1, "header %v, footer %v", t, ftr)
		}

		c.blocks[bp] = t
		free := !t.Allocated()
		if free {
			c.free = append(c.free, bp)
			if prevFree {
				c.report(KindAdjacentFree, int(bp), -1, "free block follows another free block")
			}
		}
		prevFree = free
		bp += Ptr(size)
	}
}

func (c *checker) link(bp Ptr, rel int) (Ptr, bool) {
	w, ok := buf.U32At(c.data, int(bp)+rel)
	return Ptr(w), ok
}

func (c *checker) buckets() {
	limit := len(c.blocks) + 1
	for b := range format.NumClasses {
		head := c.h.seg[b]
		if head == Nil {
			continue
		}
		if c.verbose {
			lo, hi := format.ClassBounds(b)
			fmt.Fprintf(c.w, "Bucket %d [%d, %d):", b, lo, hi)
		}
		c.bucket(b, head, limit)
		if c.verbose {
			fmt.Fprintln(c.w)
		}
	}
}

func (c *checker) bucket(b int, head Ptr, limit int) {
	prev, prevSize := Nil, 0
	for bp, steps := head, 0; bp != Nil; steps++ {
		if steps >= limit {
			c.report(KindFreelistCycle, int(bp), b, "more than %d members", limit-1)
			return
		}
		if !buf.Aligned(int(bp), format.Alignment) {
			c.report(KindMisaligned, int(bp), b, "link is not 8-byte aligned")
			return
		}
		t, ok := c.blocks[bp]
		if !ok {
			kind := KindNotABlock
			if int(bp) <= format.ProloguePayload || int(bp) >= c.epilogue() {
				kind = KindOutOfBounds
			}
			c.report(kind, int(bp), b, "listed address is not a block in the chain")
			return
		}
		if c.verbose {
			fmt.Fprintf(c.w, " %v", t.Size())
		}

		if other, dup := c.listed[bp]; dup {
			if other == b {
				c.report(KindFreelistCycle, int(bp), b, "block is reached twice")
				return
			}
			c.report(KindDuplicateListing, int(bp), b, "already listed in bucket %d", other)
		}
		c.listed[bp] = b

		size := t.Size()
		if t.Allocated() {
			c.report(KindAllocatedInFreelist, int(bp), b, "block %v is allocated", t)
		}
		if want := format.ClassOf(size); want != b {
			c.report(KindWrongBucket, int(bp), b, "size %d belongs in bucket %d", size, want)
		}
		if size < prevSize {
			c.report(KindUnsortedBucket, int(bp), b, "size %d after %d", size, prevSize)
		}

		back, ok := c.link(bp, format.PrevLinkOffset)
		if !ok || back != prev {
			c.report(KindBrokenLinks, int(bp), b, "prev link %v, want %v", back, prev)
		}
		next, ok := c.link(bp, format.NextLinkOffset)
		if !ok {
			c.report(KindOutOfBounds, int(bp), b, "next link unreadable")
			return
		}
		prev, prevSize, bp = bp, size, next
	}
}

func (c *checker) unlisted() {
	for _, bp := range c.free {
		if _, ok := c.listed[bp]; !ok {
			t := c.blocks[bp]
			c.report(KindUnlistedFree, int(bp), format.ClassOf(t.Size()), "free block %v is in no bucket", t)
		}
	}
}
