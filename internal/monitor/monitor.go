// Package monitor runs the periodic probe cycle over all configured devices.
// A cycle probes every device in order, updates the status store after each
// probe and appends one log line per device once all devices are done.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"net-watchdog/internal/config"
	"net-watchdog/internal/logfile"
	"net-watchdog/internal/probe"
	"net-watchdog/internal/state"
)

//go:generate go run github.com/maxbrunsfeld/counterfeiter/v6 -o monitorfakes/fake_clock.go . Clock
//go:generate go run github.com/maxbrunsfeld/counterfeiter/v6 -o monitorfakes/fake_log_sink.go . LogSink

type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time {
	return time.Now()
}

func (RealClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

// LogSink persists the formatted records of one cycle.
type LogSink interface {
	Append(path string, lines []string) error
}

// Options holds the collaborators of a Scheduler.
type Options struct {
	Devices  []config.Device
	Interval time.Duration
	Prober   probe.Prober
	Store    *state.Store
	// LogPath maps the cycle start time to the log file for that cycle.
	LogPath func(time.Time) string
	Log     LogSink
	Clock   Clock
	Logger  *slog.Logger
	// OnCycle is called after every cycle that persisted its records.
	OnCycle func(Summary)
}

// Summary holds high-level details about one cycle.
type Summary struct {
	StartTime      time.Time
	Duration       time.Duration
	DevicesChecked int
	Reachable      int
	LogPath        string
	Errors         []error
}

type Scheduler struct {
	opts Options
}

func NewScheduler(opts Options) (*Scheduler, error) {
	if opts.Interval <= 0 {
		return nil, fmt.Errorf("interval must be positive, got %s", opts.Interval)
	}
	if opts.Prober == nil || opts.Store == nil || opts.Log == nil || opts.LogPath == nil {
		return nil, errors.New("prober, store, log path and log sink are required")
	}
	if opts.Clock == nil {
		opts.Clock = RealClock{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Scheduler{opts: opts}, nil
}

// NextDelay returns how long to wait before the next cycle so that cycle
// starts stay interval apart. It is zero when the cycle overran.
func NextDelay(interval, elapsed time.Duration) time.Duration {
	if elapsed >= interval {
		return 0
	}
	return interval - elapsed
}

// RunCycle probes every device once. A device whose probe cannot run is
// recorded as unreachable and the cycle continues. The returned error is a
// *logfile.WriteError when the records could not be persisted, or the context
// error when ctx ended mid-cycle; the store keeps the results probed so far.
func (s *Scheduler) RunCycle(ctx context.Context) (Summary, error) {
	o := s.opts
	start := o.Clock.Now()
	summary := Summary{StartTime: start}
	lines := make([]string, 0, len(o.Devices))

	for _, dev := range o.Devices {
		if err := ctx.Err(); err != nil {
			summary.Duration = o.Clock.Now().Sub(start)
			return summary, err
		}

		result, err := o.Prober.Probe(ctx, dev.Address)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				summary.Duration = o.Clock.Now().Sub(start)
				return summary, ctxErr
			}
			o.Logger.Warn("probe failed, marking device unreachable",
				"device", dev.Name, "address", dev.Address, "error", err)
			summary.Errors = append(summary.Errors, fmt.Errorf("device %s: %w", dev.Name, err))
			result = probe.Result{}
		}
		if !result.Reachable {
			result.Latency = nil
		}

		o.Store.Update(dev.Name, result)
		summary.DevicesChecked++
		if result.Reachable {
			summary.Reachable++
		}
		lines = append(lines, logfile.FormatRecord(logfile.Record{
			Time:      start,
			Name:      dev.Name,
			Address:   dev.Address,
			Reachable: result.Reachable,
			Latency:   result.Latency,
		}))
	}
	o.Store.MarkCycle(o.Clock.Now())

	summary.LogPath = o.LogPath(start)
	if err := o.Log.Append(summary.LogPath, lines); err != nil {
		summary.Errors = append(summary.Errors, err)
		summary.Duration = o.Clock.Now().Sub(start)
		return summary, err
	}

	summary.Duration = o.Clock.Now().Sub(start)
	o.Logger.Debug("cycle complete",
		"devices", summary.DevicesChecked,
		"reachable", summary.Reachable,
		"duration", summary.Duration,
		"log", summary.LogPath)
	return summary, nil
}

// Run repeats RunCycle until ctx is cancelled or a cycle fails to persist
// its records. It returns ctx.Err() on cancellation.
func (s *Scheduler) Run(ctx context.Context) error {
	o := s.opts
	for {
		summary, err := s.RunCycle(ctx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return fmt.Errorf("monitor cycle at %s: %w", summary.StartTime.Format(time.RFC3339), err)
		}
		if o.OnCycle != nil {
			o.OnCycle(summary)
		}

		delay := NextDelay(o.Interval, o.Clock.Now().Sub(summary.StartTime))
		if delay == 0 {
			o.Logger.Warn("cycle overran interval, starting next cycle immediately",
				"interval", o.Interval, "elapsed", summary.Duration)
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-o.Clock.After(delay):
		}
	}
}
