package alloc

import (
	"fmt"
	"log/slog"

	"github.com/joshuapare/segalloc/arena"
	"github.com/joshuapare/segalloc/internal/format"
	"github.com/joshuapare/segalloc/internal/logger"
)

// Heap is one allocator instance: the arena it manages plus the bucket
// heads of its free-list table. All state lives here; heaps over different
// sources are fully independent.
type Heap struct {
	src arena.Source
	dt  arena.DirtyTracker // non-nil when src persists its contents
	log *slog.Logger

	chunk int

	// Bucket heads of the segregated free-list table.
	seg [format.NumClasses]Ptr

	ready bool
	err   error // first metadata fault; poisons the heap

	stats Stats
}

// New creates a heap over src and initializes it, discarding anything src
// already holds. Use nil opts for DefaultOptions.
func New(src arena.Source, opts *Options) (*Heap, error) {
	h := newHeap(src, opts)
	if err := h.Init(); err != nil {
		return nil, err
	}
	return h, nil
}

// Attach creates a heap over a source that already holds a heap image, for
// example a reopened arena.File, and rebuilds the free-list table from it.
// Adjacent free blocks found in the image are merged.
func Attach(src arena.Source, opts *Options) (*Heap, error) {
	h := newHeap(src, opts)
	if err := h.rebuild(); err != nil {
		return nil, err
	}
	return h, nil
}

func newHeap(src arena.Source, opts *Options) *Heap {
	if opts == nil {
		opts = &DefaultOptions
	}
	h := &Heap{
		src:   src,
		log:   opts.Logger,
		chunk: opts.chunkSize(),
	}
	if dt, ok := src.(arena.DirtyTracker); ok {
		h.dt = dt
	}
	return h
}

// Init resets the source, writes the pad word, prologue and epilogue,
// empties every bucket and extends the arena by one chunk. It must run
// before any other operation, and again after the arena is reset.
func (h *Heap) Init() error {
	h.src.Reset()
	h.seg = [format.NumClasses]Ptr{}
	h.stats = Stats{}
	h.err = nil
	h.ready = false

	if _, err := h.src.Grow(format.InitialSize); err != nil {
		return fmt.Errorf("%w: initial sentinels: %w", ErrOutOfMemory, err)
	}
	h.putWord(format.PadOffset, 0)
	h.putTag(format.PrologueHeaderOffset, format.Pack(format.PrologueSize, true))
	h.putTag(format.PrologueFooterOffset, format.Pack(format.PrologueSize, true))
	h.putTag(format.EpilogueHeaderOffset, format.Pack(0, true))
	if h.err != nil {
		return h.err
	}
	h.ready = true

	if _, err := h.extend(h.chunk); err != nil {
		h.ready = false
		return err
	}
	return nil
}

// Reset discards every allocation and reinitializes the heap.
func (h *Heap) Reset() error { return h.Init() }

// rebuild validates an existing image and reinserts its free blocks.
func (h *Heap) rebuild() error {
	data := h.src.Bytes()
	if len(data) < format.InitialSize {
		return fmt.Errorf("%w: image of %d bytes has no sentinels", ErrCorrupt, len(data))
	}
	prologue := format.Pack(format.PrologueSize, true)
	for _, off := range []int{format.PrologueHeaderOffset, format.PrologueFooterOffset} {
		if t, err := format.TagAt(data, off); err != nil || t != prologue {
			return fmt.Errorf("%w: bad prologue tag at %d", ErrCorrupt, off)
		}
	}

	h.ready = true
	epilogue := len(data) - format.WordSize
	bp := Ptr(format.ProloguePayload + format.PrologueSize)
	run := Nil // start of the free run ending at bp, already listed
	for {
		t, err := format.TagAt(data, hdrp(bp))
		if err != nil {
			return fmt.Errorf("%w: %w", ErrCorrupt, err)
		}
		if t.Size() == 0 {
			if hdrp(bp) != epilogue || !t.Allocated() {
				return fmt.Errorf("%w: epilogue at %d, expected %d", ErrCorrupt, hdrp(bp), epilogue)
			}
			break
		}
		size := t.Size()
		if size < format.MinBlockSize || hdrp(bp)+size > epilogue {
			return fmt.Errorf("%w: block %v has size %d", ErrCorrupt, bp, size)
		}
		if f, err := format.TagAt(data, int(bp)+size-format.DoubleWordSize); err != nil || f != t {
			return fmt.Errorf("%w: block %v header %v does not match footer", ErrCorrupt, bp, t)
		}
		switch {
		case t.Allocated():
			run = Nil
		case run != Nil:
			h.unlink(run)
			h.writeTags(run, h.size(run)+size, false)
			h.insert(run)
		default:
			h.insert(bp)
			run = bp
		}
		bp += Ptr(size)
	}
	if h.err != nil {
		h.ready = false
		return h.err
	}
	h.logger().Debug("heap attached", "arena", len(data))
	return nil
}

// Source returns the arena the heap allocates from.
func (h *Heap) Source() arena.Source { return h.src }

// Bytes returns the full payload of the live allocation p. The slice stays
// valid until p is freed; on a persistent source it is marked dirty.
func (h *Heap) Bytes(p Ptr) ([]byte, error) {
	if err := h.usable(); err != nil {
		return nil, err
	}
	if err := h.liveBlock(p); err != nil {
		return nil, err
	}
	n := format.PayloadSize(h.size(p))
	start := int(p)
	h.markDirty(start, n)
	return h.src.Bytes()[start : start+n : start+n], nil
}

// PayloadSize returns the usable size of the live allocation p, which may
// exceed the size originally requested.
func (h *Heap) PayloadSize(p Ptr) (int, error) {
	if err := h.usable(); err != nil {
		return 0, err
	}
	if err := h.liveBlock(p); err != nil {
		return 0, err
	}
	return format.PayloadSize(h.size(p)), nil
}

func (h *Heap) usable() error {
	if !h.ready {
		return ErrNotInitialized
	}
	return h.err
}

func (h *Heap) logger() *slog.Logger {
	if h.log != nil {
		return h.log
	}
	return logger.L
}
