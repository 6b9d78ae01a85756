// Package state holds the last known probe result of every configured device.
// It is concurrency-safe: the scheduler is the only writer, HTTP handlers and
// other readers take point-in-time snapshots.
package state

import (
	"sync"
	"time"

	"net-watchdog/internal/probe"
)

type Store struct {
	mu        sync.RWMutex
	results   map[string]probe.Result
	names     []string
	lastCycle time.Time
}

// New returns a store with an unreachable, latency-free entry for every name.
func New(names []string) *Store {
	s := &Store{
		results: make(map[string]probe.Result, len(names)),
		names:   append([]string(nil), names...),
	}
	for _, name := range names {
		s.results[name] = probe.Result{}
	}
	return s
}

// Update replaces the entry for name.
func (s *Store) Update(name string, result probe.Result) {
	result = result.Clone()
	if !result.Reachable {
		result.Latency = nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.results[name]; !ok {
		s.names = append(s.names, name)
	}
	s.results[name] = result
}

// Snapshot returns a copy of all entries.
func (s *Store) Snapshot() map[string]probe.Result {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]probe.Result, len(s.results))
	for name, result := range s.results {
		out[name] = result.Clone()
	}
	return out
}

// Get returns the entry for name.
func (s *Store) Get(name string) (probe.Result, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result, ok := s.results[name]
	return result.Clone(), ok
}

// Names returns the device names in insertion order.
func (s *Store) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.names...)
}

// MarkCycle records when the scheduler last completed a full cycle.
func (s *Store) MarkCycle(at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastCycle = at
}

// LastCycle returns the completion time of the last cycle, zero before the first.
func (s *Store) LastCycle() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastCycle
}
