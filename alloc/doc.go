// Package alloc implements a segregated-fit, boundary-tag memory allocator
// over a single growable byte arena.
//
// # Overview
//
// A Heap hands out 8-byte aligned payloads inside an arena.Source and takes
// them back, keeping every free block in one of 27 size-class buckets. Free
// blocks are merged with their free neighbours immediately, so no two free
// blocks are ever adjacent.
//
//	h, err := alloc.New(arena.NewMem(1<<20), nil)
//	if err != nil {
//	    return err
//	}
//
//	p, err := h.Alloc(100)
//	if err != nil {
//	    return err
//	}
//	payload, _ := h.Bytes(p)
//	copy(payload, data)
//
//	p, err = h.Realloc(p, 400)
//	...
//	err = h.Free(p)
//
// # Block Layout
//
// Every block carries a 4-byte header and a 4-byte footer holding the same
// word: the block size (header and footer included, always a multiple of 8)
// with the allocated flag in bit 0. Ptr values address the payload, which
// starts right after the header:
//
//	 bp-4     bp                              bp+size-8   bp+size-4
//	+--------+-------------------------------+-----------+--------
//	| header | payload                       | footer    | next header ...
//	+--------+-------------------------------+-----------+--------
//
// A free block stores its free-list links as arena offsets in the first
// eight payload bytes:
//
//	bp+0  next free block in the same bucket (0 = none)
//	bp+4  previous free block in the same bucket (0 = none)
//
// The smallest block is therefore 16 bytes. A 4-byte pad, an allocated
// 8-byte prologue and an allocated zero-size epilogue bracket the chain so
// neighbour lookups never run off either end.
//
// # Size Classes
//
// Bucket i holds free blocks whose size has its highest set bit at i, that
// is sizes in [2^i, 2^(i+1)). The last bucket (26) also holds everything
// larger. Within a bucket blocks are kept in ascending size order, so the
// first fit found scanning upward from the request's bucket is the best fit
// within that bucket.
//
// # Growth
//
// When no free block fits, the arena grows by max(request, ChunkSize) and
// the request is placed at the start of the new space. A failed growth
// returns ErrOutOfMemory and leaves every existing block untouched.
//
// # Diagnostics
//
// Check walks the block chain and every bucket and reports invariant
// violations without repairing anything. It is never needed for correct
// operation.
//
// # Thread Safety
//
// Heap instances are not thread-safe. Callers must synchronize access
// externally; independent heaps may be used from different goroutines.
package alloc
