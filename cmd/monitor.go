package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"net-watchdog/internal/monitor"
	"net-watchdog/internal/state"

	"github.com/spf13/cobra"
)

// monitorCmd represents the monitor command
var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Run one probe cycle",
	Long:  `Probe every configured device once, append the results to the log file and print them.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		wd, err := newWatchdog(cfg, nil, nil, nil)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return RunMonitor(ctx, wd.scheduler, wd.store, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(monitorCmd)
}

// RunMonitor runs a single cycle and writes one line per device to writer.
func RunMonitor(ctx context.Context, scheduler *monitor.Scheduler, store *state.Store, writer io.Writer) error {
	_, _ = fmt.Fprintln(writer, "Probing devices")
	summary, err := scheduler.RunCycle(ctx)

	snapshot := store.Snapshot()
	for _, name := range store.Names() {
		result := snapshot[name]
		switch {
		case result.Reachable && result.Latency != nil:
			_, _ = fmt.Fprintf(writer, "%s: Reachable, %.2f ms\n", name, *result.Latency)
		case result.Reachable:
			_, _ = fmt.Fprintf(writer, "%s: Reachable\n", name)
		default:
			_, _ = fmt.Fprintf(writer, "%s: Unreachable\n", name)
		}
	}
	for _, e := range summary.Errors {
		_, _ = fmt.Fprintf(writer, "  error: %v\n", e)
	}
	if err != nil {
		return fmt.Errorf("monitor cycle: %w", err)
	}
	_, _ = fmt.Fprintf(writer, "Checked %d devices, %d reachable, duration %s\n", summary.DevicesChecked, summary.Reachable, summary.Duration)
	_, _ = fmt.Fprintf(writer, "Log: %s\n", summary.LogPath)
	return nil
}
