// Package scheduler runs delayed, cancellable actions keyed by name.
package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Task is the deferred work. ctx is cancelled when the scheduler stops.
type Task func(ctx context.Context)

// Scheduler defers tasks by key. At most one task is pending per key.
type Scheduler interface {
	// Schedule runs task after delay, replacing any pending task with the same key.
	Schedule(key string, delay time.Duration, task Task)
	// Cancel drops a pending task and reports whether one was pending.
	Cancel(key string) bool
	// Pending reports whether a task is waiting under key.
	Pending(key string) bool
}

type entry struct {
	timer *time.Timer
	seq   uint64
}

// TimerScheduler implements Scheduler with time.AfterFunc.
type TimerScheduler struct {
	mu      sync.Mutex
	entries map[string]entry
	seq     uint64
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	logger  *zap.Logger
	onLen   func(int)
}

// New builds a scheduler. onLen, when non-nil, observes the pending count.
func New(logger *zap.Logger, onLen func(int)) *TimerScheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &TimerScheduler{
		entries: make(map[string]entry),
		ctx:     ctx,
		cancel:  cancel,
		logger:  logger,
		onLen:   onLen,
	}
}

func (s *TimerScheduler) Schedule(key string, delay time.Duration, task Task) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctx.Err() != nil {
		s.logger.Warn("scheduler stopped; dropping task", zap.String("key", key))
		return
	}
	if prev, ok := s.entries[key]; ok {
		prev.timer.Stop()
	}

	s.seq++
	seq := s.seq
	s.entries[key] = entry{
		seq: seq,
		timer: time.AfterFunc(delay, func() {
			if !s.claim(key, seq) {
				return
			}
			s.run(key, task)
		}),
	}
	s.report()
}

// claim removes the entry if it still belongs to this firing. A replaced or
// cancelled task whose timer already fired loses the claim and does nothing.
func (s *TimerScheduler) claim(key string, seq uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.entries[key]
	if !ok || current.seq != seq || s.ctx.Err() != nil {
		return false
	}
	delete(s.entries, key)
	s.wg.Add(1)
	s.report()
	return true
}

func (s *TimerScheduler) run(key string, task Task) {
	defer s.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scheduled task panicked", zap.String("key", key), zap.Any("panic", r))
		}
	}()
	task(s.ctx)
}

func (s *TimerScheduler) Cancel(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.entries[key]
	if !ok {
		return false
	}
	current.timer.Stop()
	delete(s.entries, key)
	s.report()
	return true
}

func (s *TimerScheduler) Pending(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[key]
	return ok
}

// Len returns the number of pending tasks.
func (s *TimerScheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Stop cancels pending tasks and waits for running ones to return.
func (s *TimerScheduler) Stop() {
	s.mu.Lock()
	s.cancel()
	for key, e := range s.entries {
		e.timer.Stop()
		delete(s.entries, key)
	}
	s.report()
	s.mu.Unlock()

	s.wg.Wait()
}

// report must be called with mu held.
func (s *TimerScheduler) report() {
	if s.onLen != nil {
		s.onLen(len(s.entries))
	}
}
