package alloc_test

import (
	"fmt"
	"os"

	"github.com/joshuapare/segalloc/alloc"
	"github.com/joshuapare/segalloc/arena"
)

// Example allocates, writes through the payload slice and frees.
func Example() {
	h, err := alloc.New(arena.NewMem(1<<20), nil)
	if err != nil {
		fmt.Println(err)
		return
	}

	p, _ := h.Alloc(12)
	buf, _ := h.Bytes(p)
	copy(buf, "hello, arena")
	fmt.Printf("%v holds %q in %d bytes\n", p, buf[:12], len(buf))

	if err := h.Free(p); err != nil {
		fmt.Println(err)
	}
	fmt.Println("violations:", len(h.Check(nil, false)))
	// Output:
	// 0x10 holds "hello, arena" in 16 bytes
	// violations: 0
}

// ExampleHeap_Realloc grows an allocation and keeps its contents.
func ExampleHeap_Realloc() {
	h, _ := alloc.New(arena.NewMem(1<<20), nil)

	p, _ := h.Alloc(8)
	buf, _ := h.Bytes(p)
	copy(buf, "segalloc")

	p, _ = h.Realloc(p, 1024)
	buf, _ = h.Bytes(p)
	fmt.Println(string(buf[:8]))
	// Output: segalloc
}

// ExampleHeap_Check prints the block chain of a small heap.
func ExampleHeap_Check() {
	h, _ := alloc.New(arena.NewMem(1<<20), &alloc.Options{ChunkSize: 64})
	h.Alloc(16)

	h.Check(os.Stdout, true)
	// Output:
	// Heap (80 bytes):
	//   0x10: [alloc 24]
	//   0x28: [free 40]
	// Bucket 5 [32, 64): 40
	// 0 violation(s)
}

// ExampleHeap_PrintStats shows counters after a short session.
func ExampleHeap_PrintStats() {
	h, _ := alloc.New(arena.NewMem(1<<20), nil)
	a, _ := h.Alloc(32)
	b, _ := h.Alloc(32)
	h.Free(b)
	h.Free(a)

	h.PrintStats(os.Stdout)
	// Output:
	// Heap: 528 bytes, 0.0% allocated
	//   allocated: 0 blocks, 0 bytes
	//   free:      1 blocks, 512 bytes (largest 512)
	// Calls: alloc=2 free=2 realloc=0 calloc=0
	//   failed=0 invalid-free=0
	// Fit: fast=2 slow=0 grow=1 (512 bytes)
	// Place: split=2 absorb=0
	// Coalesce: next=2 prev=0 both=0
	// Buckets:
	//   [ 9] 512-1023: 1
}
