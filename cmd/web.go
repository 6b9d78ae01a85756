package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"net-watchdog/internal/monitor"
	"net-watchdog/internal/server"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// webCmd runs the periodic monitor and serves the status and stream API.
var webCmd = &cobra.Command{
	Use:   "web",
	Short: "Run the background monitor and serve the HTTP API",
	RunE:  runWeb,
}

func init() {
	rootCmd.AddCommand(webCmd)
	webCmd.Flags().String("host", "", "Address to listen on (overrides server.host)")
	webCmd.Flags().Int("port", 0, "Port to listen on (overrides server.port)")
	webCmd.Flags().Bool("debug", false, "Mount profiling handlers under /debug")

	_ = viper.BindPFlag("server.host", webCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("server.port", webCmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("server.debug", webCmd.Flags().Lookup("debug"))
}

func runWeb(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := slog.Default()
	wd, err := newWatchdog(cfg, nil, nil, func(s monitor.Summary) {
		logger.Info("cycle finished",
			"devices", s.DevicesChecked,
			"reachable", s.Reachable,
			"probe_errors", len(s.Errors),
			"duration", s.Duration,
			"log", s.LogPath)
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	supervisor := monitor.NewSupervisor(wd.scheduler)
	if err := supervisor.Start(ctx); err != nil {
		return err
	}

	// cancelled before shutdown so open ping streams end with the server
	baseCtx, cancelRequests := context.WithCancel(context.Background())
	defer cancelRequests()

	addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
	srv := &http.Server{
		Addr:              addr,
		Handler:           server.New(cfg, wd.store, wd.streams, logger.With("component", "http")).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}

	printBanner(cmd.OutOrStdout(), cfg, addr)

	serveErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("received interrupt, shutting down")
	case <-supervisor.Done():
		if err := supervisor.Err(); err != nil {
			runErr = fmt.Errorf("monitor stopped: %w", err)
		}
	case err := <-serveErr:
		runErr = fmt.Errorf("http server: %w", err)
	}

	cancelRequests()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown", "error", err)
	}
	if err := supervisor.Stop(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}
