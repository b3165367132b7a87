package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/roach88/tallybridge/internal/metrics"
	"github.com/roach88/tallybridge/internal/store"
	"github.com/roach88/tallybridge/internal/terminal"
)

const (
	// DefaultInterval is how long the worker sleeps between passes.
	DefaultInterval = 15 * time.Minute

	// DefaultSendRate caps sends per second within a pass.
	DefaultSendRate = 5
)

// State is the worker's current phase.
type State int32

const (
	StateSleeping State = iota
	StateChecking
	StateDraining
)

func (s State) String() string {
	switch s {
	case StateSleeping:
		return "sleeping"
	case StateChecking:
		return "checking"
	case StateDraining:
		return "draining"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// DrainResult summarises one checking+draining pass.
type DrainResult struct {
	// Pending is the snapshot size taken while checking.
	Pending int `json:"pending"`

	// Probed is false when the pass ended before probing (empty queue or cancelled).
	Probed    bool `json:"probed"`
	Reachable bool `json:"reachable"`

	// Delivered lists the ids marked complete in this pass, in send order.
	Delivered []int64 `json:"delivered"`

	// FailedID and Failure describe the send that ended the pass, if any.
	FailedID int64  `json:"failed_id,omitempty"`
	Failure  string `json:"failure,omitempty"`
}

// Worker replays queued payloads once the terminal is back.
//
// Exactly one Worker should run against a queue. Run must be called from one
// goroutine; State may be read from any.
type Worker struct {
	queue     Queue
	probe     Prober
	sender    Sender
	interval  time.Duration
	newTicker TickerFunc
	limiter   *rate.Limiter
	logger    *slog.Logger
	state     atomic.Int32
}

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

// WithInterval sets the sleep between passes.
//
// Default: 15m (DefaultInterval)
func WithInterval(d time.Duration) WorkerOption {
	return func(w *Worker) {
		w.interval = d
	}
}

// WithTicker replaces the ticker constructor. Tests pass a manual ticker.
func WithTicker(fn TickerFunc) WorkerOption {
	return func(w *Worker) {
		w.newTicker = fn
	}
}

// WithSendRate limits sends within a pass to r per second.
// Use rate.Inf to disable pacing.
//
// Default: 5/s (DefaultSendRate)
func WithSendRate(r rate.Limit) WorkerOption {
	return func(w *Worker) {
		w.limiter = rate.NewLimiter(r, 1)
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) WorkerOption {
	return func(w *Worker) {
		w.logger = l
	}
}

// NewWorker creates a worker over the given queue, probe and sender.
func NewWorker(q Queue, p Prober, s Sender, opts ...WorkerOption) *Worker {
	w := &Worker{
		queue:     q,
		probe:     p,
		sender:    s,
		interval:  DefaultInterval,
		newTicker: NewTimeTicker,
		limiter:   rate.NewLimiter(rate.Limit(DefaultSendRate), 1),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// State returns the current phase.
func (w *Worker) State() State {
	return State(w.state.Load())
}

func (w *Worker) setState(s State) {
	w.state.Store(int32(s))
}

// Run sleeps, checks and drains until ctx is cancelled.
//
// The first pass happens one interval after Run starts.
//
// Returns nil on cancellation, leaving the queue as it was after the last
// completed send. Returns an error for a storage fault or an endpoint
// configuration error; neither clears by waiting.
func (w *Worker) Run(ctx context.Context) error {
	ticker := w.newTicker(w.interval)
	defer ticker.Stop()

	w.setState(StateSleeping)
	w.logger.Info("retry worker starting", "interval", w.interval)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("retry worker stopping: context cancelled")
			return nil
		case <-ticker.C():
		}

		if ctx.Err() != nil {
			w.logger.Info("retry worker stopping: context cancelled")
			return nil
		}

		metrics.RetryCyclesTotal.Inc()
		result, err := w.DrainOnce(ctx)
		if err != nil {
			w.logger.Error("retry worker stopping", "error", err)
			return err
		}
		if result.Pending > 0 {
			w.logger.Info("retry pass finished",
				"pending", result.Pending,
				"reachable", result.Reachable,
				"delivered", len(result.Delivered),
			)
		}
	}
}

// DrainOnce runs a single checking+draining pass and returns to sleeping.
//
// Items are taken from a snapshot of the pending list, so anything enqueued
// during the pass waits for the next one. The pass stops at the first failed
// send; later items are not attempted. Cancellation between sends ends the
// pass without error.
func (w *Worker) DrainOnce(ctx context.Context) (DrainResult, error) {
	result := DrainResult{Delivered: []int64{}}
	defer w.setState(StateSleeping)

	w.setState(StateChecking)
	items, err := w.queue.ListPending(ctx)
	if err != nil {
		return result, fmt.Errorf("drain: list pending: %w", err)
	}
	result.Pending = len(items)
	metrics.QueuePending.Set(float64(len(items)))

	if len(items) == 0 || ctx.Err() != nil {
		return result, nil
	}

	w.setState(StateDraining)
	ok, err := w.probe.Reachable(ctx)
	result.Probed = true
	if err != nil {
		return result, fmt.Errorf("drain: probe: %w", err)
	}
	if !ok {
		w.logger.Debug("terminal unreachable, skipping pass", "pending", len(items))
		return result, nil
	}
	result.Reachable = true

	for _, item := range items {
		if err := w.limiter.Wait(ctx); err != nil {
			// Cancelled, or the deadline falls before the next slot.
			return result, nil
		}

		_, err := w.sender.Send(ctx, item.Payload)
		if err != nil {
			if !terminal.IsRecoverable(err) {
				return result, fmt.Errorf("drain: send %d: %w", item.ID, err)
			}
			metrics.RetrySendsTotal.WithLabelValues(metrics.ResultFailed).Inc()
			w.logger.Warn("retry send failed, ending pass", "queue_id", item.ID, "error", err)
			result.FailedID = item.ID
			result.Failure = err.Error()
			return result, nil
		}

		// The terminal has the payload; record that even if ctx is gone.
		err = w.queue.MarkComplete(context.WithoutCancel(ctx), item.ID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return result, fmt.Errorf("drain: mark complete %d: %w", item.ID, err)
		}
		if err != nil {
			w.logger.Warn("delivered item vanished from queue", "queue_id", item.ID)
		}

		metrics.RetrySendsTotal.WithLabelValues(metrics.ResultDelivered).Inc()
		w.logger.Debug("queued payload delivered", "queue_id", item.ID)
		result.Delivered = append(result.Delivered, item.ID)
	}

	return result, nil
}
