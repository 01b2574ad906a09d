package alloc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/segalloc/internal/format"
)

// threeBlocks allocates A, B, C of 32 bytes each plus a guard D so the
// chunk remainder cannot take part in merges.
func threeBlocks(t *testing.T) (h *Heap, a, b, c, d Ptr) {
	t.Helper()
	h = newTestHeap(t)
	a = mustAlloc(t, h, 32)
	b = mustAlloc(t, h, 32)
	c = mustAlloc(t, h, 32)
	d = mustAlloc(t, h, 32)
	require.Equal(t, []Ptr{16, 56, 96, 136}, []Ptr{a, b, c, d}, "blocks are carved in address order")
	return h, a, b, c, d
}

func TestCoalesce_FreeAThenCThenB(t *testing.T) {
	h, a, b, c, _ := threeBlocks(t)

	require.NoError(t, h.Free(a))
	require.NoError(t, h.Free(c))
	assert.Zero(t, h.Stats().CoalesceBoth)
	assert.Equal(t, 3, h.Usage().FreeBlocks)

	require.NoError(t, h.Free(b))

	merged := tagOf(t, h, a)
	assert.False(t, merged.Allocated())
	assert.Equal(t, 3*40, merged.Size())
	assert.GreaterOrEqual(t, format.PayloadSize(merged.Size()), 96)
	assert.Contains(t, bucketMembers(h, format.ClassOf(merged.Size())), a)
	assert.Equal(t, uint64(1), h.Stats().CoalesceBoth)

	vs := h.Check(nil, false)
	assert.False(t, vs.Has(KindAdjacentFree))
	assert.Empty(t, vs)
	assert.Equal(t, 2, h.Usage().FreeBlocks, "merged block and chunk remainder")
}

func TestCoalesce_Cases(t *testing.T) {
	tests := []struct {
		name  string
		order func(a, b, c Ptr) []Ptr
		stat  func(Stats) uint64
		start func(a, b, c Ptr) Ptr
		size  int
	}{
		{
			name:  "next free",
			order: func(a, b, c Ptr) []Ptr { return []Ptr{b, a} },
			stat:  func(s Stats) uint64 { return s.CoalesceNext },
			start: func(a, b, c Ptr) Ptr { return a },
			size:  80,
		},
		{
			name:  "prev free",
			order: func(a, b, c Ptr) []Ptr { return []Ptr{a, b} },
			stat:  func(s Stats) uint64 { return s.CoalescePrev },
			start: func(a, b, c Ptr) Ptr { return a },
			size:  80,
		},
		{
			name:  "both free",
			order: func(a, b, c Ptr) []Ptr { return []Ptr{a, c, b} },
			stat:  func(s Stats) uint64 { return s.CoalesceBoth },
			start: func(a, b, c Ptr) Ptr { return a },
			size:  120,
		},
		{
			name:  "neither free",
			order: func(a, b, c Ptr) []Ptr { return []Ptr{b} },
			stat:  func(s Stats) uint64 { return s.CoalesceNext + s.CoalescePrev + s.CoalesceBoth },
			start: func(a, b, c Ptr) Ptr { return b },
			size:  40,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, a, b, c, _ := threeBlocks(t)
			for _, p := range tt.order(a, b, c) {
				require.NoError(t, h.Free(p))
			}

			start := tt.start(a, b, c)
			assert.Equal(t, format.Pack(tt.size, false), tagOf(t, h, start))
			assert.Equal(t, start, h.seg[format.ClassOf(tt.size)])
			if tt.size == 40 {
				assert.Zero(t, tt.stat(h.Stats()))
			} else {
				assert.Equal(t, uint64(1), tt.stat(h.Stats()))
			}
			requireSound(t, h)
		})
	}
}

func TestCoalesce_WithChunkRemainder(t *testing.T) {
	h := newTestHeap(t)
	a := mustAlloc(t, h, 32)
	b := mustAlloc(t, h, 32)

	require.NoError(t, h.Free(b))
	assert.Equal(t, format.Pack(format.DefaultChunkSize-40, false), tagOf(t, h, b))

	require.NoError(t, h.Free(a))
	assert.Equal(t, format.Pack(format.DefaultChunkSize, false), tagOf(t, h, a))
	assert.Equal(t, 1, h.Usage().FreeBlocks)
	requireSound(t, h)
}

func TestPlace_SplitAndAbsorb(t *testing.T) {
	h := newTestHeap(t)

	// 512-byte chunk: 496 leaves a 16-byte remainder, enough to split.
	p := mustAlloc(t, h, 488)
	assert.Equal(t, 496, h.size(p))
	assert.Equal(t, uint64(1), h.Stats().SplitCount)
	require.NoError(t, h.Free(p))

	// 504 leaves 8 bytes, which stay with the allocation.
	p = mustAlloc(t, h, 496)
	assert.Equal(t, format.DefaultChunkSize, h.size(p))
	assert.Equal(t, uint64(1), h.Stats().AbsorbCount)
	assert.Zero(t, h.Usage().FreeBlocks)
	requireSound(t, h)
}
