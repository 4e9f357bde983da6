package app

import (
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/livecart/internal/domain"
)

// TimerScheduler runs delayed tasks on in-process timers. Tasks do not survive a
// restart; Stop cancels everything still pending and waits for running tasks.
type TimerScheduler struct {
	clock   clockwork.Clock
	mu      sync.Mutex
	pending map[uint64]clockwork.Timer
	nextID  uint64
	stopped bool
	wg      sync.WaitGroup
}

// NewTimerScheduler creates a scheduler driven by clock.
func NewTimerScheduler(clock clockwork.Clock) *TimerScheduler {
	return &TimerScheduler{
		clock:   clock,
		pending: make(map[uint64]clockwork.Timer),
	}
}

// After runs fn once, no earlier than d from now. Calls after Stop are dropped
// and return domain.ErrSchedulerStopped.
func (s *TimerScheduler) After(d time.Duration, fn func()) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		slog.Warn("Scheduler stopped, dropping task", "delay", d)
		return domain.ErrSchedulerStopped
	}
	id := s.nextID
	s.nextID++
	s.pending[id] = nil
	s.wg.Add(1)
	s.mu.Unlock()

	timer := s.clock.AfterFunc(d, func() { s.fire(id, fn) })

	s.mu.Lock()
	_, stillPending := s.pending[id]
	if stillPending {
		s.pending[id] = timer
	}
	s.mu.Unlock()

	// Stop ran between registration and timer creation.
	if !stillPending && timer.Stop() {
		s.wg.Done()
	}
	return nil
}

func (s *TimerScheduler) fire(id uint64, fn func()) {
	defer s.wg.Done()

	s.mu.Lock()
	_, ok := s.pending[id]
	delete(s.pending, id)
	s.mu.Unlock()
	if !ok {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("Scheduled task panicked", "panic", r)
		}
	}()
	fn()
}

// Pending returns the number of tasks waiting to fire.
func (s *TimerScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Stop cancels pending tasks and waits for in-flight ones to return.
func (s *TimerScheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	pending := s.pending
	s.pending = make(map[uint64]clockwork.Timer)
	s.mu.Unlock()

	cancelled := 0
	for _, timer := range pending {
		if timer != nil && timer.Stop() {
			s.wg.Done()
			cancelled++
		}
	}
	s.wg.Wait()

	if cancelled > 0 {
		slog.Info("Scheduler stopped", "cancelled_tasks", cancelled)
	}
}
