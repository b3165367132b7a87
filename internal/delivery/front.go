package delivery

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/tallybridge/internal/metrics"
	"github.com/roach88/tallybridge/internal/model"
	"github.com/roach88/tallybridge/internal/terminal"
)

// Queue is the durable outbound queue. Implemented by *store.Store.
type Queue interface {
	Enqueue(ctx context.Context, payload, kind string) (int64, error)
	ListPending(ctx context.Context) ([]model.QueueItem, error)
	MarkComplete(ctx context.Context, id int64) error
}

// Prober reports whether the terminal is accepting connections.
// Implemented by *terminal.Client.
type Prober interface {
	Reachable(ctx context.Context) (bool, error)
}

// Sender delivers one payload to the terminal. Implemented by *terminal.Client.
type Sender interface {
	Send(ctx context.Context, payload string) (string, error)
}

// OutcomeStatus says what happened to a payload handed to the front.
type OutcomeStatus string

const (
	OutcomeDelivered OutcomeStatus = "delivered"
	OutcomeQueued    OutcomeStatus = "queued"
)

// Outcome is the result of DeliverOrQueue.
//
// Response is set only when delivered; QueueID only when queued.
type Outcome struct {
	Status   OutcomeStatus `json:"outcome"`
	Response string        `json:"response,omitempty"`
	QueueID  int64         `json:"queue_id,omitempty"`
}

// Front is the synchronous delivery path.
//
// Thread-safety: Front is safe for concurrent use if its Queue, Prober and
// Sender are.
type Front struct {
	queue  Queue
	probe  Prober
	sender Sender
	logger *slog.Logger
}

// FrontOption configures a Front.
type FrontOption func(*Front)

// WithFrontLogger sets the logger. Default: slog.Default().
func WithFrontLogger(l *slog.Logger) FrontOption {
	return func(f *Front) {
		f.logger = l
	}
}

// NewFront creates a Front over the given queue, probe and sender.
func NewFront(q Queue, p Prober, s Sender, opts ...FrontOption) *Front {
	f := &Front{
		queue:  q,
		probe:  p,
		sender: s,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// DeliverOrQueue sends payload to the terminal if it is reachable, and queues
// it otherwise.
//
// There is no retry here: one probe, at most one send. Unreachable and
// transport failures turn into a queued outcome. Once the payload has been
// handed over, caller cancellation cannot drop it: the enqueue runs on a
// context detached from ctx.
//
// Errors are returned only for storage faults and endpoint configuration
// errors. Either way the payload is NOT delivered and, for a storage fault,
// NOT queued.
func (f *Front) DeliverOrQueue(ctx context.Context, payload, kind string) (Outcome, error) {
	ok, err := f.probe.Reachable(ctx)
	if err != nil {
		return Outcome{}, fmt.Errorf("deliver: probe: %w", err)
	}
	if !ok {
		return f.enqueue(ctx, payload, kind, "terminal unreachable")
	}

	response, err := f.sender.Send(ctx, payload)
	if err != nil {
		if !terminal.IsRecoverable(err) {
			return Outcome{}, fmt.Errorf("deliver: send: %w", err)
		}
		f.logger.Warn("direct send failed, queueing", "error", err)
		return f.enqueue(ctx, payload, kind, "send failed")
	}

	metrics.DeliveryOutcomesTotal.WithLabelValues(metrics.OutcomeDelivered).Inc()
	f.logger.Debug("payload delivered", "kind", kind, "response_bytes", len(response))
	return Outcome{Status: OutcomeDelivered, Response: response}, nil
}

func (f *Front) enqueue(ctx context.Context, payload, kind, reason string) (Outcome, error) {
	id, err := f.queue.Enqueue(context.WithoutCancel(ctx), payload, kind)
	if err != nil {
		return Outcome{}, fmt.Errorf("deliver: enqueue: %w", err)
	}

	metrics.DeliveryOutcomesTotal.WithLabelValues(metrics.OutcomeQueued).Inc()
	f.logger.Info("payload queued", "queue_id", id, "kind", kind, "reason", reason)
	return Outcome{Status: OutcomeQueued, QueueID: id}, nil
}
