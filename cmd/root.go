package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"net-watchdog/internal/config"
	"net-watchdog/internal/logfile"
	"net-watchdog/internal/monitor"
	"net-watchdog/internal/probe"
	"net-watchdog/internal/state"
	"net-watchdog/internal/stream"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "net-watchdog",
	Short: "Watch network devices for reachability and latency",
	Long: `net-watchdog pings a fixed set of devices on an interval, keeps their
latest status in memory, appends every cycle to a rotating log file and
serves the status and live ping streams over HTTP.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", config.DefaultPath, "Path to the YAML configuration file")
	rootCmd.PersistentFlags().String("log-level", "", "Override logging.level (debug, info, warn, error)")

	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))

	_ = viper.BindEnv("config", "WATCHDOG_CONFIG")
}

// loadConfig reads the configuration and installs the configured logger as default.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(viper.GetViper(), viper.GetString("config"))
	if err != nil {
		return nil, err
	}
	slog.SetDefault(cfg.NewLogger())
	return cfg, nil
}

// watchdog wires the components shared by the commands.
type watchdog struct {
	cfg       *config.Config
	store     *state.Store
	prober    probe.Prober
	pinger    *probe.Pinger
	scheduler *monitor.Scheduler
	streams   *stream.Service
}

func newWatchdog(cfg *config.Config, prober probe.Prober, sink monitor.LogSink, onCycle func(monitor.Summary)) (*watchdog, error) {
	devices := cfg.DeviceList()
	names := make([]string, len(devices))
	for i, d := range devices {
		names[i] = d.Name
	}

	pinger := probe.New(cfg.Monitoring.PingBinary, cfg.ProbeTimeout(), cfg.Monitoring.PingCount)
	if prober == nil {
		prober = pinger
	}
	if sink == nil {
		sink = logfile.NewWriter()
	}
	paths, err := logfile.NewPathResolver(cfg.Logging.Directory, cfg.Logging.FilenameFormat)
	if err != nil {
		return nil, &config.Error{Err: err}
	}

	store := state.New(names)
	scheduler, err := monitor.NewScheduler(monitor.Options{
		Devices:  devices,
		Interval: cfg.Interval(),
		Prober:   prober,
		Store:    store,
		LogPath:  paths.Path,
		Log:      sink,
		Logger:   slog.Default().With("component", "monitor"),
		OnCycle:  onCycle,
	})
	if err != nil {
		return nil, fmt.Errorf("create monitor: %w", err)
	}

	streams := stream.NewService(cfg, pinger, cfg.Monitoring.StreamThrottle, slog.Default().With("component", "stream"))
	return &watchdog{
		cfg:       cfg,
		store:     store,
		prober:    prober,
		pinger:    pinger,
		scheduler: scheduler,
		streams:   streams,
	}, nil
}

func printBanner(w io.Writer, cfg *config.Config, addr string) {
	line := "=================================================="
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, line)
	_, _ = fmt.Fprintln(w, "Network Watchdog Starting")
	_, _ = fmt.Fprintln(w, line)
	_, _ = fmt.Fprintf(w, "Monitoring %d devices\n", len(cfg.Devices))
	_, _ = fmt.Fprintf(w, "Log directory: %s\n", cfg.Logging.Directory)
	_, _ = fmt.Fprintf(w, "Server running at http://%s\n", addr)
	_, _ = fmt.Fprintln(w, line)
	_, _ = fmt.Fprintln(w)
}
