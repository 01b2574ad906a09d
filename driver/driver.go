// Package driver replays allocation traces against a fresh Heap, verifying
// every result and measuring space utilization and throughput.
//
// Each trace is replayed twice. The first pass checks every pointer the
// heap returns (alignment, arena bounds, overlap with live blocks) and the
// integrity of every payload between operations. The second pass replays
// the same operations without any checking and is the one timed.
package driver

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/joshuapare/segalloc/alloc"
	"github.com/joshuapare/segalloc/arena"
	"github.com/joshuapare/segalloc/internal/logger"
	"github.com/joshuapare/segalloc/trace"
)

// Options configures a replay.
type Options struct {
	// Capacity is the arena reservation. Zero uses arena.DefaultCapacity.
	Capacity int

	// ChunkSize is passed to the heap. Zero uses the heap default.
	ChunkSize int

	// Mapped reserves the arena with mmap instead of the Go heap.
	Mapped bool

	// ImageDir, when set, backs the verifying pass with a file named after
	// the trace in this directory and flushes it when the pass ends.
	ImageDir string

	// CheckEvery runs the heap consistency checker after every N
	// operations. Zero disables it.
	CheckEvery int

	// Seed drives the payload fill pattern.
	Seed int64

	// Parallel bounds concurrent replays in ReplayAll. Zero means no limit.
	Parallel int

	// Logger receives per-trace progress. Nil uses the package-wide logger.
	Logger *slog.Logger
}

// Result summarizes one trace replay.
type Result struct {
	Trace  string
	Weight int
	Ops    int

	// PeakPayload is the largest total of requested bytes live at once.
	PeakPayload int

	// ArenaBytes is the arena break after the verifying pass.
	ArenaBytes int

	// Utilization is PeakPayload / ArenaBytes.
	Utilization float64

	// Elapsed covers the timed pass only.
	Elapsed   time.Duration
	OpsPerSec float64

	Checks int // consistency checks run
	Stats  alloc.Stats
	Usage  alloc.Usage
}

// Failure is a correctness error found while replaying a trace.
type Failure struct {
	Trace  string
	Op     int // index into the trace's ops
	Line   int // source line, 0 for generated traces
	Reason string

	// Violations holds the checker's findings when the failure came from a
	// consistency check.
	Violations alloc.Violations
}

func (f *Failure) Error() string {
	if f.Line > 0 {
		return fmt.Sprintf("%s:%d: op %d: %s", f.Trace, f.Line, f.Op, f.Reason)
	}
	return fmt.Sprintf("%s: op %d: %s", f.Trace, f.Op, f.Reason)
}

// Unwrap exposes the checker violations, if any.
func (f *Failure) Unwrap() error { return f.Violations.Err() }

func (o *Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return logger.L
}

func (o *Options) heapOptions() *alloc.Options {
	return &alloc.Options{ChunkSize: o.ChunkSize, Logger: o.Logger}
}

type closer interface {
	arena.Source
	Close() error
}

// newSource builds the arena for one pass. image names the backing file
// when ImageDir is set; the timed pass always uses memory.
func (o *Options) newSource(image string) (closer, error) {
	switch {
	case image != "":
		return arena.OpenFile(filepath.Join(o.ImageDir, image), o.Capacity)
	case o.Mapped:
		return arena.NewMapped(o.Capacity)
	default:
		return arena.NewMem(o.Capacity), nil
	}
}

// Replay runs tr against a fresh heap. It returns a *Failure when the heap
// misbehaves and ctx.Err() when cancelled.
func Replay(ctx context.Context, tr *trace.Trace, opts Options) (*Result, error) {
	image := ""
	if opts.ImageDir != "" {
		image = tr.Name + ".img"
	}
	src, err := opts.newSource(image)
	if err != nil {
		return nil, fmt.Errorf("replay %s: %w", tr.Name, err)
	}
	defer src.Close()

	h, err := alloc.New(src, opts.heapOptions())
	if err != nil {
		return nil, fmt.Errorf("replay %s: %w", tr.Name, err)
	}

	v := newVerifier(tr, h, opts)
	if err := v.run(ctx); err != nil {
		return nil, err
	}
	if f, ok := src.(*arena.File); ok {
		if err := f.Flush(ctx); err != nil {
			return nil, fmt.Errorf("replay %s: flush image: %w", tr.Name, err)
		}
	}

	res := &Result{
		Trace:       tr.Name,
		Weight:      tr.Weight,
		Ops:         len(tr.Ops),
		PeakPayload: v.peak,
		ArenaBytes:  src.Len(),
		Checks:      v.checks,
		Stats:       h.Stats(),
		Usage:       h.Usage(),
	}
	if res.ArenaBytes > 0 {
		res.Utilization = float64(res.PeakPayload) / float64(res.ArenaBytes)
	}

	elapsed, err := timed(ctx, tr, opts)
	if err != nil {
		return nil, err
	}
	res.Elapsed = elapsed
	if s := elapsed.Seconds(); s > 0 {
		res.OpsPerSec = float64(res.Ops) / s
	}

	opts.logger().Debug("trace replayed",
		"trace", tr.Name, "ops", res.Ops, "util", res.Utilization, "elapsed", res.Elapsed)
	return res, nil
}

// timed replays tr without verification and returns the time spent in
// heap calls.
func timed(ctx context.Context, tr *trace.Trace, opts Options) (time.Duration, error) {
	src, err := opts.newSource("")
	if err != nil {
		return 0, fmt.Errorf("replay %s: %w", tr.Name, err)
	}
	defer src.Close()
	h, err := alloc.New(src, opts.heapOptions())
	if err != nil {
		return 0, fmt.Errorf("replay %s: %w", tr.Name, err)
	}

	ptrs := make([]alloc.Ptr, tr.NumIDs)
	start := time.Now()
	for i, op := range tr.Ops {
		if i%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
		}
		switch op.Kind {
		case trace.OpAlloc:
			ptrs[op.ID], err = h.Alloc(op.Size)
		case trace.OpRealloc:
			ptrs[op.ID], err = h.Realloc(ptrs[op.ID], op.Size)
		case trace.OpFree:
			err = h.Free(ptrs[op.ID])
			ptrs[op.ID] = alloc.Nil
		}
		if err != nil && (op.Kind != trace.OpAlloc || op.Size != 0) {
			return 0, &Failure{Trace: tr.Name, Op: i, Line: op.Line, Reason: "timed pass: " + err.Error()}
		}
	}
	return time.Since(start), nil
}

const cancelCheckInterval = 1024
