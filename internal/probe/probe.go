// Package probe runs the system ping command against a single address.
//
// A probe that gets no reply is a normal outcome and reported as an
// unreachable Result. A ping that cannot run, or that exits with a status
// other than 1 (missing permissions, bad arguments), is returned as an Error.
package probe

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// noReplyExitCode is the status ping exits with when no reply was received.
const noReplyExitCode = 1

//go:generate go run github.com/maxbrunsfeld/counterfeiter/v6 -o probefakes/fake_prober.go . Prober

type Prober interface {
	Probe(ctx context.Context, address string) (Result, error)
}

// Result is the outcome of one probe. Latency is only set when Reachable is true.
type Result struct {
	Reachable bool     `json:"reachable"`
	Latency   *float64 `json:"latency_ms"`
}

// Clone returns a copy that shares no memory with r.
func (r Result) Clone() Result {
	if r.Latency == nil {
		return r
	}
	v := *r.Latency
	return Result{Reachable: r.Reachable, Latency: &v}
}

// Error reports that the ping process could not be run or failed for a
// reason other than missing replies, e.g. a missing binary or a socket
// permission error.
type Error struct {
	Address string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("probe %s: %v", e.Address, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Pinger probes addresses by running Binary with -c Count -W Timeout.
type Pinger struct {
	Binary  string
	Timeout time.Duration
	Count   int
}

func New(binary string, timeout time.Duration, count int) *Pinger {
	if binary == "" {
		binary = "ping"
	}
	if count <= 0 {
		count = 1
	}
	if timeout < time.Second {
		timeout = time.Second
	}
	return &Pinger{Binary: binary, Timeout: timeout, Count: count}
}

// Probe sends Count echo requests to address and waits at most
// Timeout*Count plus one second for the command to finish.
func (p *Pinger) Probe(ctx context.Context, address string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	bound := p.Timeout*time.Duration(p.Count) + time.Second
	ctx, cancel := context.WithTimeout(ctx, bound)
	defer cancel()

	cmd := exec.CommandContext(ctx, p.Binary, p.Args(address)...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			// killed at the deadline, or exit status 1: no reply
			if ctx.Err() != nil || exitErr.ExitCode() == noReplyExitCode {
				return Result{}, nil
			}
			if msg := strings.TrimSpace(string(output)); msg != "" {
				err = fmt.Errorf("%w: %s", err, msg)
			}
		}
		return Result{}, &Error{Address: address, Err: err}
	}

	return Result{Reachable: true, Latency: ParseLatency(string(output))}, nil
}

// Args returns the command line arguments used for a probe of address.
func (p *Pinger) Args(address string) []string {
	seconds := int(p.Timeout / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	return []string{"-c", strconv.Itoa(p.Count), "-W", strconv.Itoa(seconds), address}
}

// StreamCommand returns an unbounded ping of address. The process runs until
// ctx is cancelled or it exits on its own.
func (p *Pinger) StreamCommand(ctx context.Context, address string) *exec.Cmd {
	return exec.CommandContext(ctx, p.Binary, address)
}

// ParseLatency returns the value of the first "time=<ms>" token in output,
// or nil when no line carries a parsable one.
func ParseLatency(output string) *float64 {
	for _, line := range strings.Split(output, "\n") {
		idx := strings.Index(line, "time=")
		if idx < 0 {
			continue
		}
		fields := strings.Fields(line[idx+len("time="):])
		if len(fields) == 0 {
			continue
		}
		value, err := strconv.ParseFloat(strings.TrimSuffix(fields[0], "ms"), 64)
		if err != nil {
			continue
		}
		return &value
	}
	return nil
}
