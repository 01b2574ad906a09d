package driver

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joshuapare/segalloc/trace"
)

// ReplayAll replays every trace on its own heap, concurrently. Results are
// in trace order. The first failure cancels the remaining replays and is
// returned.
func ReplayAll(ctx context.Context, traces []*trace.Trace, opts Options) ([]*Result, error) {
	results := make([]*Result, len(traces))
	g, ctx := errgroup.WithContext(ctx)
	if opts.Parallel > 0 {
		g.SetLimit(opts.Parallel)
	}
	for i, tr := range traces {
		g.Go(func() error {
			res, err := Replay(ctx, tr, opts)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Summary aggregates a set of results.
type Summary struct {
	Traces int
	Ops    int

	// Utilization is the weight-averaged utilization of all traces.
	Utilization float64

	// Elapsed sums the timed passes; OpsPerSec is Ops over Elapsed.
	Elapsed   time.Duration
	OpsPerSec float64
}

// Summarize totals results. Traces with weight 0 count for throughput but
// not for utilization.
func Summarize(results []*Result) Summary {
	var s Summary
	weight := 0
	for _, r := range results {
		if r == nil {
			continue
		}
		s.Traces++
		s.Ops += r.Ops
		s.Elapsed += r.Elapsed
		s.Utilization += r.Utilization * float64(r.Weight)
		weight += r.Weight
	}
	if weight > 0 {
		s.Utilization /= float64(weight)
	}
	if secs := s.Elapsed.Seconds(); secs > 0 {
		s.OpsPerSec = float64(s.Ops) / secs
	}
	return s
}
