// Command logstats reads the relay's JSON log stream and reports on request
// outcomes, upstream retries, and error kinds. Point it at the file named in
// the logging.file config setting.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/minichat/relay/pkg/logstats"
)

const rootLongDesc = `Logstats summarizes the relay's structured log output.

Analyze a window of the log file:
  logstats analyze --file api.log --last 10m

Watch requests live as they are served:
  logstats follow --file api.log`

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logstats",
		Short: "Relay log statistics",
		Long:  rootLongDesc,
	}

	cmd.AddCommand(newAnalyzeCmd())
	cmd.AddCommand(newFollowCmd())

	return cmd
}

func newAnalyzeCmd() *cobra.Command {
	var (
		file string
		last time.Duration
	)

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Summarize request outcomes, retries, and errors",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runAnalyze(file, last)
		},
	}

	cmd.Flags().StringVar(&file, "file", "api.log", "log file to read")
	cmd.Flags().DurationVar(&last, "last", 10*time.Minute, "window to analyze, 0 for the whole file")

	return cmd
}

func runAnalyze(file string, last time.Duration) error {
	f, err := os.Open(file)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	defer f.Close()

	var since time.Time
	if last > 0 {
		since = time.Now().Add(-last)
	}

	stats, err := logstats.Analyze(f, since)
	if err != nil {
		return err
	}

	logstats.WriteReport(os.Stdout, stats, last)
	return nil
}

func newFollowCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "follow",
		Short: "Tail the log live with annotated entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runFollow(cmd.Context(), file)
		},
	}

	cmd.Flags().StringVar(&file, "file", "api.log", "log file to tail")

	return cmd
}

func runFollow(ctx context.Context, file string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("following %s, ctrl-c to stop\n", file)
	err := logstats.Follow(ctx, file, os.Stdout)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
