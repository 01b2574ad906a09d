package driver

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/segalloc/alloc"
	"github.com/joshuapare/segalloc/arena"
	"github.com/joshuapare/segalloc/trace"
)

const shortTrace = `20000
3
8
1
a 0 512
a 1 128
r 0 640
f 1
a 2 16
r 2 0
f 0
f 2
`

func parse(t *testing.T, name, text string) *trace.Trace {
	t.Helper()
	tr, err := trace.Parse(strings.NewReader(text), name)
	require.NoError(t, err)
	return tr
}

func generated(t *testing.T, seed int64) *trace.Trace {
	t.Helper()
	cfg := trace.DefaultGenConfig
	cfg.Name = fmt.Sprintf("gen-%d", seed)
	cfg.Seed = seed
	cfg.Ops = 1500
	cfg.IDs = 120
	tr, err := trace.Generate(cfg)
	require.NoError(t, err)
	return tr
}

func TestReplay_ShortTrace(t *testing.T) {
	res, err := Replay(t.Context(), parse(t, "short", shortTrace), Options{CheckEvery: 1})
	require.NoError(t, err)

	assert.Equal(t, "short", res.Trace)
	assert.Equal(t, 8, res.Ops)
	assert.Equal(t, 768, res.PeakPayload)
	assert.Positive(t, res.ArenaBytes)
	assert.InDelta(t, float64(768)/float64(res.ArenaBytes), res.Utilization, 1e-9)
	assert.Equal(t, 9, res.Checks, "one per op plus the final check")
	assert.Equal(t, uint64(3), res.Stats.AllocCalls)
	assert.Equal(t, uint64(2), res.Stats.ReallocCalls)
	assert.Zero(t, res.Usage.AllocBlocks, "every id is freed")
	assert.Positive(t, res.Elapsed)
}

func TestReplay_ZeroSizeRequests(t *testing.T) {
	tr := parse(t, "zero", "0\n2\n5\n1\na 0 0\nr 0 24\na 1 0\nf 0\nf 1\n")
	res, err := Replay(t.Context(), tr, Options{CheckEvery: 1})
	require.NoError(t, err)
	assert.Equal(t, 24, res.PeakPayload)
	assert.Equal(t, uint64(2), res.Stats.FailedAllocs, "both zero-size allocs are rejected")
}

func TestReplay_GeneratedTraces(t *testing.T) {
	for _, seed := range []int64{1, 2, 3} {
		tr := generated(t, seed)
		res, err := Replay(t.Context(), tr, Options{CheckEvery: 50, Seed: seed})
		require.NoError(t, err, "seed %d", seed)
		assert.Equal(t, len(tr.Ops), res.Ops)
		assert.Greater(t, res.Utilization, 0.0)
		assert.LessOrEqual(t, res.Utilization, 1.0)
	}
}

func TestReplay_Mapped(t *testing.T) {
	_, err := Replay(t.Context(), generated(t, 4), Options{Mapped: true, Capacity: 8 << 20})
	require.NoError(t, err)
}

func TestReplay_ImageDir(t *testing.T) {
	dir := t.TempDir()
	res, err := Replay(t.Context(), parse(t, "short", shortTrace), Options{ImageDir: dir})
	require.NoError(t, err)

	path := filepath.Join(dir, "short.img")
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(res.ArenaBytes), info.Size())

	// The image is a heap that can be attached and checked.
	f, err := arena.OpenFile(path, 0)
	require.NoError(t, err)
	defer f.Close()
	h, err := alloc.Attach(f, nil)
	require.NoError(t, err)
	assert.Empty(t, h.Check(nil, false))
	assert.Zero(t, h.Usage().AllocBlocks)
}

func TestReplay_OutOfMemoryIsAFailure(t *testing.T) {
	tr := parse(t, "big", "0\n1\n2\n1\na 0 4000\nf 0\n")
	_, err := Replay(t.Context(), tr, Options{Capacity: 1024})
	require.Error(t, err)

	var f *Failure
	require.True(t, errors.As(err, &f), "got %T: %v", err, err)
	assert.Equal(t, "big", f.Trace)
	assert.Equal(t, 0, f.Op)
	assert.Equal(t, 5, f.Line)
	assert.Contains(t, f.Reason, "out of memory")
	assert.Equal(t, "big:5: op 0: "+f.Reason, f.Error())
}

func TestReplay_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	_, err := Replay(ctx, generated(t, 5), Options{})
	require.ErrorIs(t, err, context.Canceled)
}

func TestReplayAll(t *testing.T) {
	traces := []*trace.Trace{generated(t, 10), parse(t, "short", shortTrace), generated(t, 11)}
	results, err := ReplayAll(t.Context(), traces, Options{Parallel: 2, CheckEvery: 100})
	require.NoError(t, err)
	require.Len(t, results, 3)
	for i, r := range results {
		assert.Equal(t, traces[i].Name, r.Trace)
	}

	s := Summarize(results)
	assert.Equal(t, 3, s.Traces)
	assert.Equal(t, results[0].Ops+results[1].Ops+results[2].Ops, s.Ops)
	assert.Greater(t, s.Utilization, 0.0)
	assert.Positive(t, s.OpsPerSec)
}

func TestReplayAll_StopsOnFailure(t *testing.T) {
	bad := parse(t, "bad", "0\n1\n2\n1\na 0 4000\nf 0\n")
	_, err := ReplayAll(t.Context(), []*trace.Trace{generated(t, 12), bad}, Options{Capacity: 2048})

	var f *Failure
	require.True(t, errors.As(err, &f), "got %T: %v", err, err)
}

func TestSummarize_Weights(t *testing.T) {
	s := Summarize([]*Result{
		{Ops: 10, Weight: 1, Utilization: 0.9},
		{Ops: 10, Weight: 0, Utilization: 0.1},
		nil,
		{Ops: 20, Weight: 3, Utilization: 0.5},
	})
	assert.Equal(t, 3, s.Traces)
	assert.Equal(t, 40, s.Ops)
	assert.InDelta(t, 0.6, s.Utilization, 1e-9)
	assert.Zero(t, s.OpsPerSec)
}

func TestFailure_Error(t *testing.T) {
	f := &Failure{Trace: "gen", Op: 7, Reason: "boom"}
	assert.Equal(t, "gen: op 7: boom", f.Error())
	assert.NoError(t, f.Unwrap())
}
