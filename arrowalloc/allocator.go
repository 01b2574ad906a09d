// Package arrowalloc lets Apache Arrow builders and buffers allocate from
// an alloc.Heap.
//
// Slices handed to Arrow alias the heap's arena. They stay valid until
// freed, because the arena's backing storage never moves when it grows.
// Allocations are 8-byte aligned rather than Arrow's preferred 64.
package arrowalloc

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/apache/arrow/go/v17/arrow/memory"

	"github.com/joshuapare/segalloc/alloc"
)

// Allocator implements memory.Allocator over a Heap. It serializes every
// heap call, so one Allocator may be shared by goroutines; the Heap must
// not be used directly while it is.
type Allocator struct {
	mu        sync.Mutex
	h         *alloc.Heap
	allocated int64
}

var _ memory.Allocator = (*Allocator)(nil)

// New wraps h.
func New(h *alloc.Heap) *Allocator {
	return &Allocator{h: h}
}

// AllocatedBytes returns the bytes currently handed out, as requested.
func (a *Allocator) AllocatedBytes() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.allocated
}

// Allocate returns size zeroed bytes. It panics when the heap cannot
// satisfy the request, as Arrow's interface has no error return.
func (a *Allocator) Allocate(size int) []byte {
	if size < 0 {
		panic("arrowalloc: negative size")
	}
	if size == 0 {
		return []byte{}
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	p, err := a.h.Calloc(1, size)
	if err != nil {
		panic(fmt.Errorf("arrowalloc: allocate %d bytes: %w", size, err))
	}
	a.allocated += int64(size)
	return a.slice(p, size)
}

// Reallocate resizes b, keeping its contents. Bytes past len(b) are zero.
func (a *Allocator) Reallocate(size int, b []byte) []byte {
	if size < 0 {
		panic("arrowalloc: negative size")
	}
	if cap(b) == 0 {
		return a.Allocate(size)
	}
	if size == 0 {
		a.Free(b)
		return []byte{}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	p, ok := a.ptr(b)
	if !ok {
		panic(fmt.Sprintf("arrowalloc: reallocate of a slice not owned by this heap (%p)", unsafe.SliceData(b)))
	}
	old := len(b)
	if size <= cap(b) {
		if size > old {
			clear(b[old:size])
		}
		a.allocated += int64(size - old)
		return b[:size]
	}

	np, err := a.h.Realloc(p, size)
	if err != nil {
		panic(fmt.Errorf("arrowalloc: reallocate %d to %d bytes: %w", old, size, err))
	}
	out := a.slice(np, size)
	clear(out[old:])
	a.allocated += int64(size - old)
	return out
}

// Free returns b to the heap. Empty slices and slices the heap does not
// recognize are ignored; the heap logs the latter.
func (a *Allocator) Free(b []byte) {
	if cap(b) == 0 {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	p, ok := a.ptr(b)
	if !ok {
		return
	}
	if err := a.h.Free(p); err == nil {
		a.allocated -= int64(len(b))
	}
}

// slice returns the first size bytes of p's payload with the payload's
// full capacity.
func (a *Allocator) slice(p alloc.Ptr, size int) []byte {
	payload, err := a.h.Bytes(p)
	if err != nil {
		panic(fmt.Errorf("arrowalloc: %w", err))
	}
	return payload[:size]
}

// ptr maps a slice back to the heap offset of its first byte.
func (a *Allocator) ptr(b []byte) (alloc.Ptr, bool) {
	arena := a.h.Source().Bytes()
	if len(arena) == 0 {
		return alloc.Nil, false
	}
	base := uintptr(unsafe.Pointer(unsafe.SliceData(arena)))
	addr := uintptr(unsafe.Pointer(unsafe.SliceData(b)))
	if addr < base || addr >= base+uintptr(len(arena)) {
		return alloc.Nil, false
	}
	return alloc.Ptr(addr - base), true
}
