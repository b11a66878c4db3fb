package clock

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/m3rciful/sharebot/core/logger"
)

// ErrSchedulerClosed is returned by Schedule after Close.
var ErrSchedulerClosed = errors.New("clock: scheduler closed")

// Task is a deferred action. The context is cancelled when the scheduler closes.
type Task func(ctx context.Context)

// Scheduler runs one-shot tasks keyed by ID. Tasks live only in memory.
type Scheduler struct {
	clock  Clock
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	tasks  map[string]*scheduled
	closed bool
	wg     sync.WaitGroup

	onChange func(pending int)
}

type scheduled struct {
	timer Timer
	at    time.Time
}

// SchedulerOption customises a Scheduler.
type SchedulerOption func(*Scheduler)

// WithPendingHook registers a callback invoked with the pending count after every change.
func WithPendingHook(fn func(pending int)) SchedulerOption {
	return func(s *Scheduler) {
		s.onChange = fn
	}
}

// NewScheduler creates a scheduler driven by c.
func NewScheduler(c Clock, opts ...SchedulerOption) *Scheduler {
	if c == nil {
		c = Real()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		clock:  c,
		ctx:    ctx,
		cancel: cancel,
		tasks:  make(map[string]*scheduled),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Schedule arms task to run after delay. An existing task with the same ID is replaced.
func (s *Scheduler) Schedule(id string, delay time.Duration, task Task) error {
	if task == nil {
		return errors.New("clock: nil task")
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSchedulerClosed
	}
	if prev, ok := s.tasks[id]; ok {
		prev.timer.Stop()
	}
	entry := &scheduled{at: s.clock.Now().Add(delay)}
	s.tasks[id] = entry
	// The timer is assigned under the lock so run never sees a half-built entry.
	entry.timer = s.clock.AfterFunc(delay, func() { s.run(id, entry, task) })
	pending := len(s.tasks)
	s.mu.Unlock()

	logger.Debug(s.ctx, "scheduler", "task.scheduled",
		slog.String("task_id", id),
		slog.Duration("delay", delay),
		slog.Int("pending_count", pending),
	)
	s.notify(pending)
	return nil
}

func (s *Scheduler) run(id string, entry *scheduled, task Task) {
	s.mu.Lock()
	if s.closed || s.tasks[id] != entry {
		s.mu.Unlock()
		return
	}
	delete(s.tasks, id)
	pending := len(s.tasks)
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	s.notify(pending)
	start := time.Now()
	task(s.ctx)
	logger.Debug(s.ctx, "scheduler", "task.done",
		slog.String("task_id", id),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	)
}

// Cancel stops a pending task. It reports whether a task was removed.
func (s *Scheduler) Cancel(id string) bool {
	s.mu.Lock()
	entry, ok := s.tasks[id]
	if ok {
		entry.timer.Stop()
		delete(s.tasks, id)
	}
	pending := len(s.tasks)
	s.mu.Unlock()
	if ok {
		s.notify(pending)
	}
	return ok
}

// Pending returns the number of armed tasks.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Deadline returns when the task with the given ID is due.
func (s *Scheduler) Deadline(id string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.tasks[id]
	if !ok {
		return time.Time{}, false
	}
	return entry.at, true
}

// Close stops all pending tasks, cancels running ones and waits for them to return.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	dropped := len(s.tasks)
	for id, entry := range s.tasks {
		entry.timer.Stop()
		delete(s.tasks, id)
	}
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	if dropped > 0 {
		logger.Info(context.Background(), "scheduler", "scheduler.closed",
			slog.Int("pending_count", dropped),
		)
	}
	s.notify(0)
}

func (s *Scheduler) notify(pending int) {
	if s.onChange != nil {
		s.onChange(pending)
	}
}
