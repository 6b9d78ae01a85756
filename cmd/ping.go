package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"net-watchdog/internal/stream"

	"github.com/spf13/cobra"
)

// pingCmd streams a live ping of one device to the terminal.
var pingCmd = &cobra.Command{
	Use:   "ping DEVICE",
	Short: "Stream a live ping of one configured device",
	Args:  cobra.ExactArgs(1),
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
		return RunPing(ctx, wd.streams, args[0], cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(pingCmd)
}

// RunPing copies the live output of a stream session for device to writer
// until the ping ends or ctx is cancelled.
func RunPing(ctx context.Context, streams *stream.Service, device string, writer io.Writer) error {
	sess, err := streams.Open(ctx, device)
	if err != nil {
		return err
	}
	defer sess.Close()

	for frame := range sess.All(ctx) {
		line := strings.TrimSuffix(strings.TrimPrefix(frame, "data: "), "\n\n")
		if _, err := fmt.Fprintln(writer, line); err != nil {
			return err
		}
	}
	select {
	case <-ctx.Done():
		return nil
	case <-sess.Exited():
	}
	if err := sess.Err(); err != nil {
		return fmt.Errorf("ping %s: %w", device, err)
	}
	return nil
}
