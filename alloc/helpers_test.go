package alloc

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/segalloc/arena"
	"github.com/joshuapare/segalloc/internal/format"
)

// newTestHeap returns an initialized heap over a 1 MiB in-memory arena.
func newTestHeap(t testing.TB) *Heap {
	t.Helper()
	return newTestHeapWithCapacity(t, 1<<20)
}

func newTestHeapWithCapacity(t testing.TB, capacity int) *Heap {
	t.Helper()
	h, err := New(arena.NewMem(capacity), nil)
	require.NoError(t, err)
	return h
}

func mustAlloc(t testing.TB, h *Heap, n int) Ptr {
	t.Helper()
	p, err := h.Alloc(n)
	require.NoError(t, err, "Alloc(%d)", n)
	require.NotEqual(t, Nil, p)
	return p
}

// requireSound fails the test with the checker's verbose dump when the heap
// violates any invariant.
func requireSound(t testing.TB, h *Heap) {
	t.Helper()
	var out bytes.Buffer
	if vs := h.Check(&out, true); len(vs) > 0 {
		t.Fatalf("heap violates %d invariant(s):\n%s", len(vs), out.String())
	}
}

// tagOf reads the header of the block at bp straight from the arena.
func tagOf(t testing.TB, h *Heap, bp Ptr) format.Tag {
	t.Helper()
	tag, err := format.TagAt(h.Source().Bytes(), hdrp(bp))
	require.NoError(t, err)
	return tag
}

// setTags overwrites the header and footer of the block at bp without
// touching the free-list table.
func setTags(t testing.TB, h *Heap, bp Ptr, size int, allocated bool) {
	t.Helper()
	data := h.Source().Bytes()
	tag := format.Pack(size, allocated)
	require.NoError(t, format.PutTag(data, hdrp(bp), tag))
	require.NoError(t, format.PutTag(data, int(bp)+size-format.DoubleWordSize, tag))
}

// bucketMembers lists bucket c from head to tail.
func bucketMembers(h *Heap, c int) []Ptr {
	var out []Ptr
	for bp := h.seg[c]; bp != Nil && len(out) < 1<<16; bp = h.next(bp) {
		out = append(out, bp)
	}
	return out
}

// recordingSource is an in-memory Source that also records dirty ranges.
type recordingSource struct {
	*arena.Mem
	ranges [][2]int
}

func (r *recordingSource) Add(off, length int) {
	r.ranges = append(r.ranges, [2]int{off, off + length})
}

// covered reports whether [off, off+n) lies inside one recorded range.
func (r *recordingSource) covered(off, n int) bool {
	for _, rg := range r.ranges {
		if rg[0] <= off && off+n <= rg[1] {
			return true
		}
	}
	return false
}

var _ arena.DirtyTracker = (*recordingSource)(nil)
