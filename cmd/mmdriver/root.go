package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/joshuapare/segalloc/internal/logger"
)

var (
	// Global flags
	verbose bool
	quiet   bool
	jsonOut bool
	logDir  string
)

var rootCmd = &cobra.Command{
	Use:   "mmdriver",
	Short: "Replay allocation traces against the segregated-fit allocator",
	Long: `mmdriver replays allocation trace files against a fresh heap,
verifying every pointer and payload, and reports space utilization and
throughput. It can also generate random traces and run the heap
consistency checker after every operation.`,
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initLogging()
	},
	SilenceUsage: true,
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output and debug logging")
	rootCmd.PersistentFlags().
		BoolVarP(&quiet, "quiet", "q", false, "Suppress all output except errors")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().StringVar(&logDir, "log-dir", "", "Write logs to dated files in this directory")
}

func execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

// initLogging enables the package-wide logger when asked to. Without
// flags the logger keeps whatever SEGALLOC_LOG configured.
func initLogging() error {
	switch {
	case logDir != "":
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		return logger.Init(logger.Options{Enabled: true, LogDir: logDir, Level: level})
	case verbose && !quiet:
		return logger.Init(logger.Options{Enabled: true, Output: os.Stderr, Level: slog.LevelDebug})
	}
	return nil
}

// printer formats numbers with thousands separators.
var printer = message.NewPrinter(language.English)

// printInfo prints an info message if not in quiet mode
func printInfo(format string, args ...any) {
	if !quiet {
		printer.Fprintf(os.Stdout, format, args...)
	}
}

// printVerbose prints a verbose message if verbose mode is enabled
func printVerbose(format string, args ...any) {
	if verbose && !quiet {
		printer.Fprintf(os.Stdout, format, args...)
	}
}

// printJSON outputs data as JSON
func printJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
