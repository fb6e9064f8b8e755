// Package delivery runs deferred tasks that can be cancelled per key. The
// messaging engine uses it to simulate the other party's reply after a
// network-like delay.
package delivery

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Gauge receives the number of pending tasks whenever it changes.
type Gauge interface {
	Set(float64)
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithPendingGauge reports the pending task count to g.
func WithPendingGauge(g Gauge) Option {
	return func(s *Scheduler) {
		s.gauge = g
	}
}

// Scheduler holds timers grouped by key (a conversation id).
type Scheduler struct {
	mu      sync.Mutex
	pending map[string]map[uint64]*time.Timer
	total   int
	next    uint64
	stopped bool
	gauge   Gauge
	logger  *zap.Logger
}

// NewScheduler creates an empty scheduler.
func NewScheduler(logger *zap.Logger, opts ...Option) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scheduler{
		pending: make(map[string]map[uint64]*time.Timer),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Schedule runs fn after delay unless the task is cancelled first. The
// returned function cancels this task only and reports whether it was still
// pending. After Stop, Schedule does nothing.
func (s *Scheduler) Schedule(key string, delay time.Duration, fn func()) (cancel func() bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		s.logger.Debug("scheduler stopped, task rejected", zap.String("key", key))
		return func() bool { return false }
	}

	id := s.next
	s.next++
	tasks, ok := s.pending[key]
	if !ok {
		tasks = make(map[uint64]*time.Timer)
		s.pending[key] = tasks
	}
	// The callback blocks on s.mu until this function returns, so the timer
	// is always registered before take runs.
	tasks[id] = time.AfterFunc(delay, func() {
		if !s.take(key, id) {
			return
		}
		fn()
	})
	s.setTotal(s.total + 1)

	return func() bool { return s.cancel(key, id) }
}

// Cancel stops every pending task for key and returns how many were stopped.
func (s *Scheduler) Cancel(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks := s.pending[key]
	for _, t := range tasks {
		t.Stop()
	}
	delete(s.pending, key)
	if n := len(tasks); n > 0 {
		s.setTotal(s.total - n)
		s.logger.Debug("pending tasks cancelled", zap.String("key", key), zap.Int("count", n))
	}
	return len(tasks)
}

// Pending returns the number of tasks waiting to run for key.
func (s *Scheduler) Pending(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending[key])
}

// Total returns the number of tasks waiting to run across all keys.
func (s *Scheduler) Total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

// Stop cancels everything and rejects future tasks. It returns how many
// pending tasks were cancelled. Safe to call more than once.
func (s *Scheduler) Stop() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for key, tasks := range s.pending {
		for _, t := range tasks {
			t.Stop()
		}
		n += len(tasks)
		delete(s.pending, key)
	}
	s.stopped = true
	s.setTotal(0)
	if n > 0 {
		s.logger.Info("scheduler stopped", zap.Int("cancelled", n))
	}
	return n
}

func (s *Scheduler) take(key string, id uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks := s.pending[key]
	if _, ok := tasks[id]; !ok {
		return false
	}
	delete(tasks, id)
	if len(tasks) == 0 {
		delete(s.pending, key)
	}
	s.setTotal(s.total - 1)
	return true
}

func (s *Scheduler) cancel(key string, id uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks := s.pending[key]
	t, ok := tasks[id]
	if !ok {
		return false
	}
	t.Stop()
	delete(tasks, id)
	if len(tasks) == 0 {
		delete(s.pending, key)
	}
	s.setTotal(s.total - 1)
	return true
}

// setTotal must be called with s.mu held.
func (s *Scheduler) setTotal(n int) {
	s.total = n
	if s.gauge != nil {
		s.gauge.Set(float64(n))
	}
}
