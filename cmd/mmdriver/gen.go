package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/joshuapare/segalloc/trace"
)

var (
	genOps     int
	genIDs     int
	genMaxSize string
	genSeed    int64
	genWeight  int
)

func init() {
	cmd := newGenCmd()
	cmd.Flags().IntVar(&genOps, "ops", trace.DefaultGenConfig.Ops, "Operations before the closing frees")
	cmd.Flags().IntVar(&genIDs, "ids", trace.DefaultGenConfig.IDs, "Distinct allocation ids")
	cmd.Flags().StringVar(&genMaxSize, "max-size", "16KiB", "Largest request size")
	cmd.Flags().Int64Var(&genSeed, "seed", trace.DefaultGenConfig.Seed, "Random seed")
	cmd.Flags().IntVar(&genWeight, "weight", 1, "Trace weight in utilization averages")
	rootCmd.AddCommand(cmd)
}

func newGenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gen <out>",
		Short: "Generate a random trace file",
		Long: `The gen command writes a random, well-formed trace. The same flags
always produce the same trace. Use "-" to write to standard output.

Example:
  mmdriver gen random.rep
  mmdriver gen big.rep --ops 100000 --ids 5000 --max-size 1MiB --seed 7`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGen(args)
		},
	}
	return cmd
}

func runGen(args []string) error {
	out := args[0]
	maxSize, err := humanize.ParseBytes(genMaxSize)
	if err != nil {
		return fmt.Errorf("invalid --max-size: %w", err)
	}
	if maxSize == 0 || maxSize > 1<<30 {
		return fmt.Errorf("invalid --max-size: %s", genMaxSize)
	}

	name := strings.TrimSuffix(filepath.Base(out), filepath.Ext(out))
	tr, err := trace.Generate(trace.GenConfig{
		Name:    name,
		Seed:    genSeed,
		Ops:     genOps,
		IDs:     genIDs,
		MaxSize: int(maxSize),
		Weight:  genWeight,
	})
	if err != nil {
		return err
	}

	var w io.Writer = os.Stdout
	if out != "-" {
		f, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("failed to create trace: %w", err)
		}
		defer f.Close()
		w = f
	}
	if _, err := tr.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write trace: %w", err)
	}

	if out != "-" {
		printInfo("Wrote %s: %d ops, %d ids, peak live %s\n",
			out, len(tr.Ops), tr.NumIDs, humanize.IBytes(uint64(tr.SuggestedHeap)))
	}
	return nil
}
