package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joshuapare/segalloc/driver"
	"github.com/joshuapare/segalloc/trace"
)

func init() {
	rootCmd.AddCommand(newCheckCmd())
}

func newCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <trace>",
		Short: "Replay a trace with the heap checker after every operation",
		Long: `The check command replays a trace and runs the heap consistency
checker after every single operation. On the first violation it prints the
failing operation and every violation found.

Example:
  mmdriver check short1.rep`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd.Context(), args)
		},
	}
	return cmd
}

type checkReport struct {
	Trace      string   `json:"trace"`
	OK         bool     `json:"ok"`
	Ops        int      `json:"ops"`
	Checks     int      `json:"checks"`
	Failure    string   `json:"failure,omitempty"`
	Violations []string `json:"violations,omitempty"`
}

func runCheck(ctx context.Context, args []string) error {
	tr, err := trace.Load(args[0])
	if err != nil {
		return err
	}
	opts, err := replayOptions()
	if err != nil {
		return err
	}
	opts.CheckEvery = 1

	report := checkReport{Trace: tr.Name, Ops: len(tr.Ops)}
	res, err := driver.Replay(ctx, tr, opts)

	var f *driver.Failure
	switch {
	case err == nil:
		report.OK = true
		report.Checks = res.Checks
	case errors.As(err, &f):
		report.Failure = f.Error()
		for _, v := range f.Violations {
			report.Violations = append(report.Violations, v.Error())
		}
	default:
		return err
	}

	if jsonOut {
		if err := printJSON(report); err != nil {
			return err
		}
	} else if report.OK {
		printInfo("%s: %s, %d ops, %d checks\n", report.Trace, okStyle.Render("ok"), report.Ops, report.Checks)
	} else {
		printInfo("%s: %s\n  %s\n", report.Trace, failStyle.Render("FAILED"), report.Failure)
		for _, v := range report.Violations {
			printInfo("  - %s\n", v)
		}
	}

	if !report.OK {
		return fmt.Errorf("check failed: %w", err)
	}
	return nil
}
