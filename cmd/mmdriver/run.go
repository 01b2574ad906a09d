package main

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/joshuapare/segalloc/driver"
	"github.com/joshuapare/segalloc/trace"
)

var (
	runCheckEvery int
	runCapacity   string
	runChunk      int
	runMapped     bool
	runSeed       int64
	runParallel   int
	runImageDir   string
)

func init() {
	cmd := newRunCmd()
	cmd.Flags().IntVar(&runCheckEvery, "check-every", 0, "Run the heap checker every N operations (0 = only at the end)")
	cmd.Flags().StringVar(&runCapacity, "capacity", "20MiB", "Arena reservation per trace")
	cmd.Flags().IntVar(&runChunk, "chunk", 0, "Minimum arena growth in bytes (0 = allocator default)")
	cmd.Flags().BoolVar(&runMapped, "mapped", false, "Reserve arenas with mmap")
	cmd.Flags().Int64Var(&runSeed, "seed", 1, "Seed for payload fill patterns")
	cmd.Flags().IntVar(&runParallel, "parallel", 0, "Maximum traces replayed at once (0 = all)")
	cmd.Flags().StringVar(&runImageDir, "image-dir", "", "Keep each trace's final heap image in this directory")
	rootCmd.AddCommand(cmd)
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <trace>...",
		Short: "Replay traces and report utilization and throughput",
		Long: `The run command replays each trace file against its own heap. Every
returned pointer is checked for alignment, bounds and overlap, and every
payload is fingerprinted and verified before it is freed or resized.
Throughput is measured in a separate pass without any checks.

Example:
  mmdriver run traces/*.rep
  mmdriver run amptjp-bal.rep --check-every 100
  mmdriver run short1.rep --capacity 64MiB --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd.Context(), args)
		},
	}
	return cmd
}

// traceReport is one row of run output.
type traceReport struct {
	Trace       string  `json:"trace"`
	Ops         int     `json:"ops"`
	PeakPayload int     `json:"peak_payload"`
	ArenaBytes  int     `json:"arena_bytes"`
	Utilization float64 `json:"utilization"`
	ElapsedNs   int64   `json:"elapsed_ns"`
	OpsPerSec   float64 `json:"ops_per_sec"`
	Checks      int     `json:"checks"`
	Grows       uint64  `json:"grows"`
	Splits      uint64  `json:"splits"`
	Coalesces   uint64  `json:"coalesces"`
}

type runReport struct {
	Traces      []traceReport `json:"traces"`
	Ops         int           `json:"ops"`
	Utilization float64       `json:"utilization"`
	OpsPerSec   float64       `json:"ops_per_sec"`
}

func replayOptions() (driver.Options, error) {
	capacity, err := humanize.ParseBytes(runCapacity)
	if err != nil {
		return driver.Options{}, fmt.Errorf("invalid --capacity: %w", err)
	}
	if capacity > 1<<31 {
		return driver.Options{}, fmt.Errorf("invalid --capacity: %s exceeds 2GiB", runCapacity)
	}
	return driver.Options{
		Capacity:   int(capacity),
		ChunkSize:  runChunk,
		Mapped:     runMapped,
		ImageDir:   runImageDir,
		CheckEvery: runCheckEvery,
		Seed:       runSeed,
		Parallel:   runParallel,
	}, nil
}

func loadTraces(paths []string) ([]*trace.Trace, error) {
	traces := make([]*trace.Trace, 0, len(paths))
	for _, path := range paths {
		printVerbose("Loading trace: %s\n", path)
		tr, err := trace.Load(path)
		if err != nil {
			return nil, err
		}
		traces = append(traces, tr)
	}
	return traces, nil
}

func runRun(ctx context.Context, args []string) error {
	opts, err := replayOptions()
	if err != nil {
		return err
	}
	traces, err := loadTraces(args)
	if err != nil {
		return err
	}

	results, err := driver.ReplayAll(ctx, traces, opts)
	if err != nil {
		return fmt.Errorf("replay failed: %w", err)
	}
	sum := driver.Summarize(results)

	report := runReport{
		Ops:         sum.Ops,
		Utilization: sum.Utilization,
		OpsPerSec:   sum.OpsPerSec,
	}
	for _, r := range results {
		report.Traces = append(report.Traces, traceReport{
			Trace:       r.Trace,
			Ops:         r.Ops,
			PeakPayload: r.PeakPayload,
			ArenaBytes:  r.ArenaBytes,
			Utilization: r.Utilization,
			ElapsedNs:   r.Elapsed.Nanoseconds(),
			OpsPerSec:   r.OpsPerSec,
			Checks:      r.Checks,
			Grows:       r.Stats.GrowCalls,
			Splits:      r.Stats.SplitCount,
			Coalesces:   r.Stats.CoalesceNext + r.Stats.CoalescePrev + r.Stats.CoalesceBoth,
		})
	}

	if jsonOut {
		return printJSON(report)
	}

	printInfo("%s\n", headerStyle.Render(
		printer.Sprintf("%-24s %10s %7s %10s %10s", "trace", "ops", "util", "Kops/s", "arena")))
	for _, r := range report.Traces {
		printInfo("%-24s %10d %6.1f%% %10.0f %10s\n",
			r.Trace, r.Ops, 100*r.Utilization, r.OpsPerSec/1000, humanize.IBytes(uint64(r.ArenaBytes)))
		printVerbose("  peak payload %s, %d checks, %d grows, %d splits, %d coalesces, %v\n",
			humanize.IBytes(uint64(r.PeakPayload)), r.Checks, r.Grows, r.Splits, r.Coalesces,
			time.Duration(r.ElapsedNs))
	}
	printInfo("%s\n", totalStyle.Render(
		printer.Sprintf("%-24s %10d %6.1f%% %10.0f", "total", report.Ops, 100*report.Utilization, report.OpsPerSec/1000)))
	return nil
}
