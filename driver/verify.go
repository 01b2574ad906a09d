package driver

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"slices"

	"github.com/zeebo/xxh3"

	"github.com/joshuapare/segalloc/alloc"
	"github.com/joshuapare/segalloc/internal/format"
	"github.com/joshuapare/segalloc/trace"
)

// block is what the verifier remembers about one live id.
type block struct {
	p    alloc.Ptr
	n    int
	sum  uint64 // xxh3 of the n payload bytes written at allocation
	live bool
}

// span is a live payload range [start, end).
type span struct{ start, end int }

type verifier struct {
	tr   *trace.Trace
	h    *alloc.Heap
	opts Options
	rng  *rand.Rand

	blocks []block
	spans  []span // sorted by start, non-overlapping
	live   int    // requested bytes currently live
	peak   int
	checks int

	op int // index of the op being verified
}

func newVerifier(tr *trace.Trace, h *alloc.Heap, opts Options) *verifier {
	return &verifier{
		tr:     tr,
		h:      h,
		opts:   opts,
		rng:    rand.New(rand.NewSource(opts.Seed)),
		blocks: make([]block, tr.NumIDs),
	}
}

func (v *verifier) fail(msg string, args ...any) *Failure {
	line := 0
	if v.op < len(v.tr.Ops) {
		line = v.tr.Ops[v.op].Line
	}
	return &Failure{Trace: v.tr.Name, Op: v.op, Line: line, Reason: fmt.Sprintf(msg, args...)}
}

func (v *verifier) run(ctx context.Context) error {
	for i, op := range v.tr.Ops {
		if i%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		v.op = i
		if op.ID < 0 || op.ID >= len(v.blocks) {
			return v.fail("id %d out of range", op.ID)
		}

		var err error
		switch op.Kind {
		case trace.OpAlloc:
			err = v.alloc(op)
		case trace.OpRealloc:
			err = v.realloc(op)
		case trace.OpFree:
			err = v.free(op)
		default:
			err = v.fail("unknown op %v", op.Kind)
		}
		if err != nil {
			return err
		}

		if v.opts.CheckEvery > 0 && (i+1)%v.opts.CheckEvery == 0 {
			if err := v.check(); err != nil {
				return err
			}
		}
	}
	v.op = len(v.tr.Ops)
	return v.check()
}

func (v *verifier) check() error {
	v.checks++
	if vs := v.h.Check(nil, false); len(vs) > 0 {
		f := v.fail("heap check found %d violation(s), first: %v", len(vs), vs[0])
		f.Violations = vs
		return f
	}
	return nil
}

func (v *verifier) alloc(op trace.Op) error {
	if v.blocks[op.ID].live {
		return v.fail("id %d is already live", op.ID)
	}
	p, err := v.h.Alloc(op.Size)
	if op.Size == 0 {
		if !errors.Is(err, alloc.ErrInvalidRequest) || p != alloc.Nil {
			return v.fail("Alloc(0) = %v, %v; want nil and an invalid request", p, err)
		}
		v.blocks[op.ID] = block{live: true}
		return nil
	}
	if err != nil {
		return v.fail("Alloc(%d): %v", op.Size, err)
	}
	return v.place(op.ID, p, op.Size)
}

func (v *verifier) realloc(op trace.Op) error {
	old := v.blocks[op.ID]
	if !old.live {
		return v.fail("realloc of id %d, which is not live", op.ID)
	}
	if err := v.verifyContents(op.ID); err != nil {
		return err
	}

	keep := min(old.n, op.Size)
	var prefix uint64
	if keep > 0 {
		b, err := v.h.Bytes(old.p)
		if err != nil {
			return v.fail("Bytes(%v): %v", old.p, err)
		}
		prefix = xxh3.Hash(b[:keep])
	}

	p, err := v.h.Realloc(old.p, op.Size)
	if err != nil {
		return v.fail("Realloc(%v, %d): %v", old.p, op.Size, err)
	}
	v.release(op.ID)
	if op.Size == 0 {
		if p != alloc.Nil {
			return v.fail("Realloc(%v, 0) = %v, want nil", old.p, p)
		}
		v.blocks[op.ID] = block{live: true}
		return nil
	}

	if keep > 0 {
		b, err := v.h.Bytes(p)
		if err != nil {
			return v.fail("Bytes(%v): %v", p, err)
		}
		if xxh3.Hash(b[:keep]) != prefix {
			return v.fail("Realloc(%v, %d) = %v lost the first %d bytes", old.p, op.Size, p, keep)
		}
	}
	return v.place(op.ID, p, op.Size)
}

func (v *verifier) free(op trace.Op) error {
	b := v.blocks[op.ID]
	if !b.live {
		return v.fail("free of id %d, which is not live", op.ID)
	}
	if err := v.verifyContents(op.ID); err != nil {
		return err
	}
	if err := v.h.Free(b.p); err != nil {
		return v.fail("Free(%v): %v", b.p, err)
	}
	v.release(op.ID)
	v.blocks[op.ID] = block{}
	return nil
}

// place validates a fresh payload, fills it and records it.
func (v *verifier) place(id int, p alloc.Ptr, n int) error {
	start, end := int(p), int(p)+n
	switch {
	case p == alloc.Nil:
		return v.fail("heap returned nil for %d bytes without an error", n)
	case start%format.Alignment != 0:
		return v.fail("payload %v is not %d-byte aligned", p, format.Alignment)
	case start < format.InitialSize || end > v.h.Source().Len()-format.WordSize:
		return v.fail("payload [%#x, %#x) is outside the heap [%#x, %#x)",
			start, end, format.InitialSize, v.h.Source().Len()-format.WordSize)
	}

	i, _ := slices.BinarySearchFunc(v.spans, start, func(s span, t int) int { return s.start - t })
	if i > 0 && v.spans[i-1].end > start {
		return v.fail("payload [%#x, %#x) overlaps [%#x, %#x)", start, end, v.spans[i-1].start, v.spans[i-1].end)
	}
	if i < len(v.spans) && v.spans[i].start < end {
		return v.fail("payload [%#x, %#x) overlaps [%#x, %#x)", start, end, v.spans[i].start, v.spans[i].end)
	}
	v.spans = slices.Insert(v.spans, i, span{start, end})

	b, err := v.h.Bytes(p)
	if err != nil {
		return v.fail("Bytes(%v): %v", p, err)
	}
	if len(b) < n {
		return v.fail("payload %v holds %d bytes, %d requested", p, len(b), n)
	}
	v.rng.Read(b[:n])
	v.blocks[id] = block{p: p, n: n, sum: xxh3.Hash(b[:n]), live: true}

	v.live += n
	v.peak = max(v.peak, v.live)
	return nil
}

// release forgets the payload range of id without touching the heap.
func (v *verifier) release(id int) {
	b := v.blocks[id]
	if b.p == alloc.Nil {
		return
	}
	i, found := slices.BinarySearchFunc(v.spans, int(b.p), func(s span, t int) int { return s.start - t })
	if found {
		v.spans = slices.Delete(v.spans, i, i+1)
	}
	v.live -= b.n
	v.blocks[id].p, v.blocks[id].n = alloc.Nil, 0
}

func (v *verifier) verifyContents(id int) error {
	b := v.blocks[id]
	if b.p == alloc.Nil {
		return nil
	}
	data, err := v.h.Bytes(b.p)
	if err != nil {
		return v.fail("id %d at %v is no longer live: %v", id, b.p, err)
	}
	if xxh3.Hash(data[:b.n]) != b.sum {
		return v.fail("payload of id %d at %v was overwritten", id, b.p)
	}
	return nil
}
