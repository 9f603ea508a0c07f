// Package dispatch runs inbound events on one worker goroutine per user.
// Jobs for the same user run in submission order and never overlap; jobs for
// different users run in parallel. Idle workers exit on their own.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/ashureev/companion/internal/metrics"
)

var (
	ErrClosed    = errors.New("dispatch: closed")
	ErrQueueFull = errors.New("dispatch: user queue full")
)

// Defaults applied by New for non-positive values.
const (
	DefaultQueueSize   = 32
	DefaultIdleTimeout = 2 * time.Minute
)

// Job is one unit of work for a user.
type Job func(ctx context.Context)

// Config tunes a Dispatcher.
type Config struct {
	QueueSize   int
	IdleTimeout time.Duration
}

// Dispatcher owns the per-user queues.
type Dispatcher struct {
	mu      sync.Mutex
	queues  map[string]chan Job
	closed  bool
	size    int
	idle    time.Duration
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
	metrics *metrics.Metrics
	log     *slog.Logger
}

// New creates a dispatcher. m and log may be nil.
func New(cfg Config, m *metrics.Metrics, log *slog.Logger) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if log == nil {
		log = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		queues:  make(map[string]chan Job),
		size:    cfg.QueueSize,
		idle:    cfg.IdleTimeout,
		ctx:     ctx,
		cancel:  cancel,
		metrics: m,
		log:     log,
	}
}

// Submit queues job for userID without blocking. The job receives a context
// owned by the dispatcher, not the caller's, so it outlives short request
// scopes such as a webhook handler.
func (d *Dispatcher) Submit(userID string, job Job) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}

	q, ok := d.queues[userID]
	if !ok {
		q = make(chan Job, d.size)
		d.queues[userID] = q
		d.wg.Add(1)
		d.metrics.WorkerStarted()
		go d.run(userID, q)
	}

	select {
	case q <- job:
		return nil
	default:
		d.metrics.Rejected()
		d.log.Warn("Dropping event, user queue full", "user_id", userID, "queue_size", d.size)
		return fmt.Errorf("%w: %s", ErrQueueFull, userID)
	}
}

// Do submits job and waits for it to finish or for ctx to end.
func (d *Dispatcher) Do(ctx context.Context, userID string, job Job) error {
	done := make(chan struct{})
	err := d.Submit(userID, func(jobCtx context.Context) {
		defer close(done)
		job(jobCtx)
	})
	if err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Workers returns the number of live per-user workers.
func (d *Dispatcher) Workers() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queues)
}

// Close stops accepting jobs and waits for queued jobs to finish. If ctx ends
// first, running jobs see their context canceled and Close returns ctx.Err().
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	for _, q := range d.queues {
		close(q)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		<-done
		return ctx.Err()
	}
}

func (d *Dispatcher) run(userID string, q chan Job) {
	defer d.wg.Done()
	defer d.metrics.WorkerStopped()

	timer := time.NewTimer(d.idle)
	defer timer.Stop()

	for {
		select {
		case job, ok := <-q:
			if !ok {
				return
			}
			d.exec(userID, job)
			resetTimer(timer, d.idle)

		case <-timer.C:
			// Submit sends under d.mu, so an empty queue seen here stays empty
			// until the entry is gone.
			d.mu.Lock()
			if len(q) == 0 && !d.closed {
				delete(d.queues, userID)
				d.mu.Unlock()
				return
			}
			d.mu.Unlock()
			timer.Reset(d.idle)
		}
	}
}

func (d *Dispatcher) exec(userID string, job Job) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("Panic in dispatched job",
				"user_id", userID,
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()
	job(d.ctx)
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}
