package alloc

import (
	"fmt"
	"log/slog"

	"github.com/joshuapare/segalloc/internal/format"
)

// Ptr is the arena offset of an allocation's payload. Offset 0 is the
// alignment pad and never a payload, so Nil doubles as "no allocation".
type Ptr uint32

// Nil is the zero Ptr returned alongside every error.
const Nil Ptr = 0

func (p Ptr) String() string {
	if p == Nil {
		return "nil"
	}
	return fmt.Sprintf("0x%x", uint32(p))
}

// Options configures a Heap.
type Options struct {
	// ChunkSize is the minimum number of bytes the arena grows by when no
	// free block fits. Rounded up to 8; values below MinBlockSize use the default.
	ChunkSize int

	// Logger receives invalid-free reports and growth events. Nil uses the
	// package-wide logger from internal/logger.
	Logger *slog.Logger
}

// DefaultOptions is used when New is given nil options.
var DefaultOptions = Options{
	ChunkSize: format.DefaultChunkSize,
}

func (o *Options) chunkSize() int {
	if o == nil || o.ChunkSize < format.MinBlockSize {
		return format.DefaultChunkSize
	}
	return format.Align8(o.ChunkSize)
}
