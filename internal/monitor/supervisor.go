package monitor

import (
	"context"
	"errors"
	"sync"
)

// Supervisor owns the goroutine running a Scheduler.
type Supervisor struct {
	scheduler *Scheduler

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

func NewSupervisor(scheduler *Scheduler) *Supervisor {
	return &Supervisor{scheduler: scheduler}
}

// Start launches the scheduler loop. It can be called once.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done != nil {
		return errors.New("monitor already started")
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go func() {
		err := s.scheduler.Run(ctx)
		if errors.Is(err, context.Canceled) {
			err = nil
		}
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		close(s.done)
	}()
	return nil
}

// Done is closed once the loop has exited, either after Stop or because a
// cycle failed. It is nil before Start.
func (s *Supervisor) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// Err returns the error the loop exited with. A stop by cancellation is not an error.
func (s *Supervisor) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Stop requests loop termination and waits until it is done.
func (s *Supervisor) Stop() error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()
	if done == nil {
		return nil
	}
	cancel()
	<-done
	return s.Err()
}
