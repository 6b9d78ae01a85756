// Package stream runs on-demand live pings and hands their output out one
// server-sent-event frame at a time. Sessions are independent of the periodic
// monitor and of each other.
package stream

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrDeviceNotFound is returned by Open for a name that is not configured.
var ErrDeviceNotFound = errors.New("device not found")

// DefaultThrottle is the pause between two frames of a session.
const DefaultThrottle = time.Second

// Commander builds the long-running ping process for an address.
type Commander interface {
	StreamCommand(ctx context.Context, address string) *exec.Cmd
}

// CommandFunc adapts a function to Commander.
type CommandFunc func(ctx context.Context, address string) *exec.Cmd

func (f CommandFunc) StreamCommand(ctx context.Context, address string) *exec.Cmd {
	return f(ctx, address)
}

// Resolver maps device names to addresses.
type Resolver interface {
	Lookup(name string) (string, bool)
}

// Frame wraps one line of ping output as an event-stream frame.
func Frame(line string) string {
	return "data: " + strings.TrimSpace(line) + "\n\n"
}

type Service struct {
	devices   Resolver
	commander Commander
	throttle  time.Duration
	logger    *slog.Logger

	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
}

func NewService(devices Resolver, commander Commander, throttle time.Duration, logger *slog.Logger) *Service {
	if throttle < 0 {
		throttle = DefaultThrottle
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		devices:   devices,
		commander: commander,
		throttle:  throttle,
		logger:    logger,
		sessions:  make(map[uuid.UUID]*Session),
	}
}

// Open starts a live ping of the named device. The session ends when ctx is
// cancelled, the process exits or Close is called; callers must Close it.
func (s *Service) Open(ctx context.Context, name string) (*Session, error) {
	address, ok := s.devices.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, name)
	}

	ctx, cancel := context.WithCancel(ctx)
	cmd := s.commander.StreamCommand(ctx, address)

	pr, pw, err := os.Pipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("stream %s: create pipe: %w", name, err)
	}
	cmd.Stdout = pw
	cmd.Stderr = pw
	if err := cmd.Start(); err != nil {
		cancel()
		_ = pr.Close()
		_ = pw.Close()
		return nil, fmt.Errorf("stream %s: start %s: %w", name, cmd.Path, err)
	}
	// the child holds its own copy of the write end
	_ = pw.Close()

	sess := &Session{
		ID:       uuid.New(),
		Device:   name,
		Address:  address,
		throttle: s.throttle,
		cmd:      cmd,
		cancel:   cancel,
		output:   pr,
		lines:    make(chan string),
		closed:   make(chan struct{}),
		exited:   make(chan struct{}),
		service:  s,
	}
	go sess.read()
	go sess.wait()

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	active := len(s.sessions)
	s.mu.Unlock()

	s.logger.Info("stream session opened",
		"session", sess.ID, "device", name, "address", address, "active", active)
	return sess, nil
}

// Active returns the number of open sessions.
func (s *Service) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Service) remove(sess *Session) {
	s.mu.Lock()
	delete(s.sessions, sess.ID)
	active := len(s.sessions)
	s.mu.Unlock()

	s.logger.Info("stream session closed",
		"session", sess.ID, "device", sess.Device, "frames", sess.Frames(), "active", active)
}

// Session is one running live ping.
type Session struct {
	ID      uuid.UUID
	Device  string
	Address string

	throttle time.Duration
	cmd      *exec.Cmd
	cancel   context.CancelFunc
	output   io.ReadCloser
	lines    chan string
	closed   chan struct{}
	exited   chan struct{}
	service  *Service

	mu      sync.Mutex
	emitted int
	waitErr error

	closeOnce sync.Once
}

func (s *Session) read() {
	defer close(s.lines)
	scanner := bufio.NewScanner(s.output)
	for scanner.Scan() {
		select {
		case s.lines <- scanner.Text():
		case <-s.closed:
			return
		}
	}
}

func (s *Session) wait() {
	err := s.cmd.Wait()
	s.mu.Lock()
	s.waitErr = err
	s.mu.Unlock()
	close(s.exited)
}

// Next returns the next frame. After the first frame it waits for the
// throttle delay before reading. It returns false once the output has ended,
// ctx is cancelled or the session is closed.
func (s *Session) Next(ctx context.Context) (string, bool) {
	s.mu.Lock()
	emitted := s.emitted
	s.mu.Unlock()

	if emitted > 0 && s.throttle > 0 {
		timer := time.NewTimer(s.throttle)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", false
		case <-s.closed:
			timer.Stop()
			return "", false
		case <-timer.C:
		}
	}

	select {
	case <-ctx.Done():
		return "", false
	case <-s.closed:
		return "", false
	case line, ok := <-s.lines:
		if !ok || ctx.Err() != nil {
			return "", false
		}
		s.mu.Lock()
		s.emitted++
		s.mu.Unlock()
		return Frame(line), true
	}
}

// All yields frames until Next reports the end of the session.
func (s *Session) All(ctx context.Context) iter.Seq[string] {
	return func(yield func(string) bool) {
		for {
			frame, ok := s.Next(ctx)
			if !ok || !yield(frame) {
				return
			}
		}
	}
}

// Frames returns the number of frames handed out so far.
func (s *Session) Frames() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.emitted
}

// Exited is closed once the ping process has been reaped.
func (s *Session) Exited() <-chan struct{} {
	return s.exited
}

// Err returns the exit error of a process that ended on its own.
func (s *Session) Err() error {
	select {
	case <-s.exited:
	default:
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.closed:
		return nil
	default:
	}
	return s.waitErr
}

// Close stops the process, waits for it and releases the pipe. It is safe
// to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		close(s.closed)
		s.mu.Unlock()
		s.cancel()
		<-s.exited
		_ = s.output.Close()
		s.service.remove(s)
	})
}
