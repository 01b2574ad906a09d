package alloc

import (
	"fmt"
	"io"

	"github.com/joshuapare/segalloc/internal/format"
)

// Stats counts allocator events since the last Init.
type Stats struct {
	AllocCalls   uint64
	FreeCalls    uint64
	ReallocCalls uint64
	CallocCalls  uint64
	InvalidFrees uint64
	FailedAllocs uint64

	AllocFastPath uint64 // served from the free-list table
	AllocSlowPath uint64 // required arena growth
	GrowCalls     uint64
	GrowBytes     uint64

	SplitCount  uint64
	AbsorbCount uint64

	CoalesceNext uint64
	CoalescePrev uint64
	CoalesceBoth uint64
}

// Usage describes the block chain at one point in time. Byte counts are
// whole block sizes, tags included.
type Usage struct {
	ArenaBytes  int
	FreeBytes   int
	FreeBlocks  int
	AllocBytes  int
	AllocBlocks int
	LargestFree int
}

// Utilization returns the fraction of the arena held by allocated blocks.
func (u Usage) Utilization() float64 {
	if u.ArenaBytes == 0 {
		return 0
	}
	return float64(u.AllocBytes) / float64(u.ArenaBytes)
}

// Stats returns a copy of the event counters.
func (h *Heap) Stats() Stats { return h.stats }

// Usage walks the block chain and totals free and allocated space.
func (h *Heap) Usage() Usage {
	u := Usage{ArenaBytes: h.src.Len()}
	if h.usable() != nil {
		return u
	}
	h.walk(func(bp Ptr, t format.Tag) bool {
		if t.Allocated() {
			u.AllocBytes += t.Size()
			u.AllocBlocks++
		} else {
			u.FreeBytes += t.Size()
			u.FreeBlocks++
			u.LargestFree = max(u.LargestFree, t.Size())
		}
		return true
	})
	return u
}

// walk visits every block between the sentinels. It stops at the first tag
// it cannot read or that would not advance.
func (h *Heap) walk(fn func(bp Ptr, t format.Tag) bool) {
	data := h.src.Bytes()
	bp := Ptr(format.ProloguePayload + format.PrologueSize)
	for {
		t, err := format.TagAt(data, hdrp(bp))
		if err != nil || t.Size() == 0 {
			return
		}
		if !fn(bp, t) {
			return
		}
		bp += Ptr(t.Size())
	}
}

// PrintStats writes counters, usage and per-bucket occupancy to w.
func (h *Heap) PrintStats(w io.Writer) {
	s, u := h.stats, h.Usage()

	fmt.Fprintf(w, "Heap: %d bytes, %.1f%% allocated\n", u.ArenaBytes, 100*u.Utilization())
	fmt.Fprintf(w, "  allocated: %d blocks, %d bytes\n", u.AllocBlocks, u.AllocBytes)
	fmt.Fprintf(w, "  free:      %d blocks, %d bytes (largest %d)\n", u.FreeBlocks, u.FreeBytes, u.LargestFree)
	fmt.Fprintf(w, "Calls: alloc=%d free=%d realloc=%d calloc=%d\n",
		s.AllocCalls, s.FreeCalls, s.ReallocCalls, s.CallocCalls)
	fmt.Fprintf(w, "  failed=%d invalid-free=%d\n", s.FailedAllocs, s.InvalidFrees)
	fmt.Fprintf(w, "Fit: fast=%d slow=%d grow=%d (%d bytes)\n",
		s.AllocFastPath, s.AllocSlowPath, s.GrowCalls, s.GrowBytes)
	fmt.Fprintf(w, "Place: split=%d absorb=%d\n", s.SplitCount, s.AbsorbCount)
	fmt.Fprintf(w, "Coalesce: next=%d prev=%d both=%d\n", s.CoalesceNext, s.CoalescePrev, s.CoalesceBoth)

	if h.usable() != nil {
		return
	}
	limit := u.FreeBlocks + 1
	fmt.Fprintln(w, "Buckets:")
	for c := range format.NumClasses {
		n := h.bucketLen(c, limit)
		if n == 0 {
			continue
		}
		lo, hi := format.ClassBounds(c)
		if hi == 0 {
			fmt.Fprintf(w, "  [%2d] %d+: %d\n", c, lo, n)
		} else {
			fmt.Fprintf(w, "  [%2d] %d-%d: %d\n", c, lo, hi-1, n)
		}
	}
}
