// Package sender runs outbound Telegram calls on a bounded worker pool with
// retries, so handlers and broadcasts do not block on the Bot API.
package sender

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/m3rciful/sharebot/core/logger"
	"github.com/m3rciful/sharebot/core/telegram/netutil"
)

var (
	// ErrQueueClosed is returned by Enqueue after Close.
	ErrQueueClosed = errors.New("telegram sender: queue closed")
	// ErrQueueFull is returned when the queue cannot take another job.
	ErrQueueFull = errors.New("telegram sender: queue full")
	// ErrNilRun is returned by Enqueue for a nil job.
	ErrNilRun = errors.New("telegram sender: nil run function")
)

const (
	defaultQueueSize    = 256
	defaultWorkers      = 4
	defaultRetryBackoff = 2 * time.Second
	defaultMaxDuration  = 12 * time.Second
	// maxFloodWait caps how long a job waits on Telegram's retry_after.
	maxFloodWait = 30 * time.Second
)

// Observer is told the final result of every job.
type Observer interface {
	JobDone(action string, attempts int, err error)
}

// Options tune the dispatcher. Zero values select defaults.
type Options struct {
	QueueSize  int
	Workers    int
	MaxRetries int
	// RetryBackoff grows linearly with the attempt number.
	RetryBackoff time.Duration
	// MaxDuration bounds the time spent on a single job, retries included.
	MaxDuration time.Duration
	Observer    Observer
}

func (o Options) withDefaults() Options {
	if o.QueueSize <= 0 {
		o.QueueSize = defaultQueueSize
	}
	if o.Workers <= 0 {
		o.Workers = defaultWorkers
	}
	o.MaxRetries = max(o.MaxRetries, 0)
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = defaultRetryBackoff
	}
	if o.MaxDuration <= 0 {
		o.MaxDuration = defaultMaxDuration
	}
	return o
}

// Stats are cumulative job counters.
type Stats struct {
	Done    uint64
	Failed  uint64
	Retries uint64
}

type job struct {
	ctx      context.Context
	action   string
	endpoint string
	run      func() error
}

// Dispatcher executes queued jobs on a fixed set of workers.
type Dispatcher struct {
	opts Options
	jobs chan job
	wg   sync.WaitGroup

	mu     sync.RWMutex
	closed bool

	done, failed, retries atomic.Uint64
}

// NewDispatcher starts the workers.
func NewDispatcher(opts Options) *Dispatcher {
	opts = opts.withDefaults()
	d := &Dispatcher{
		opts: opts,
		jobs: make(chan job, opts.QueueSize),
	}
	d.wg.Add(opts.Workers)
	for range opts.Workers {
		go func() {
			defer d.wg.Done()
			for j := range d.jobs {
				d.process(j)
			}
		}()
	}
	return d
}

// Enqueue queues run without blocking. run may be called more than once when
// the call fails with a retryable error.
func (d *Dispatcher) Enqueue(ctx context.Context, action, endpoint string, run func() error) error {
	if run == nil {
		return ErrNilRun
	}
	if ctx == nil {
		ctx = context.Background()
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrQueueClosed
	}
	select {
	case d.jobs <- job{ctx: ctx, action: action, endpoint: endpoint, run: run}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops accepting jobs and waits until the queued ones have run.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.jobs)
	d.mu.Unlock()
	d.wg.Wait()
}

// Stats returns the counters so far.
func (d *Dispatcher) Stats() Stats {
	return Stats{Done: d.done.Load(), Failed: d.failed.Load(), Retries: d.retries.Load()}
}

// ErrorCount returns the number of jobs that failed for good.
func (d *Dispatcher) ErrorCount() uint64 {
	return d.failed.Load()
}

func (d *Dispatcher) process(j job) {
	ctx, cancel := context.WithTimeout(j.ctx, d.opts.MaxDuration)
	defer cancel()

	start := time.Now()
	attempts, err := d.runWithRetry(ctx, j)
	elapsed := logger.RoundMS(time.Since(start))

	if d.opts.Observer != nil {
		d.opts.Observer.JobDone(j.action, attempts, err)
	}
	if err != nil {
		d.failed.Add(1)
		logger.Error(j.ctx, "tg.sender", "send.fail",
			slog.String("action", j.action),
			slog.String("op", j.endpoint),
			slog.String("err", err.Error()),
			slog.String("err_code", netutil.Classify(err)),
			slog.Int("attempts", attempts),
			slog.Duration("duration", elapsed),
		)
		return
	}
	d.done.Add(1)
	level := slog.LevelDebug
	if attempts > 1 {
		level = slog.LevelInfo
	}
	logger.Event(j.ctx, "tg.sender", level, "send.ok",
		slog.String("action", j.action),
		slog.String("op", j.endpoint),
		slog.Int("attempts", attempts),
		slog.Duration("duration", elapsed),
	)
}

// runWithRetry returns the number of attempts made and the last error.
func (d *Dispatcher) runWithRetry(ctx context.Context, j job) (int, error) {
	for attempt := 1; ; attempt++ {
		err := j.run()
		if err == nil {
			return attempt, nil
		}
		if attempt > d.opts.MaxRetries || !netutil.ShouldRetry(err) {
			return attempt, err
		}

		delay := d.backoff(attempt, err)
		d.retries.Add(1)
		logger.Debug(j.ctx, "tg.sender", "send.retry",
			slog.String("action", j.action),
			slog.String("err_code", netutil.Classify(err)),
			slog.Int("attempts", attempt),
			slog.Duration("backoff", delay),
		)
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return attempt, fmt.Errorf("%w: %w", ctx.Err(), err)
		case <-t.C:
		}
	}
}

func (d *Dispatcher) backoff(attempt int, err error) time.Duration {
	delay := d.opts.RetryBackoff * time.Duration(attempt)
	if wait := netutil.RetryAfter(err); wait > delay {
		delay = min(wait, maxFloodWait)
	}
	return delay
}
