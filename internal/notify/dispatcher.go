package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeSent    = "sent"
	outcomeFailed  = "failed"
	outcomeDropped = "dropped"
)

// Dispatcher runs a Notifier off the request path. Enqueue never blocks:
// when the queue is full the notification is dropped and logged.
type Dispatcher struct {
	notifier Notifier
	logger   *slog.Logger
	timeout  time.Duration

	mu     sync.RWMutex
	closed bool
	queue  chan Notification
	done   chan struct{}

	total *prometheus.CounterVec
}

// NewDispatcher starts a single delivery worker. Pass a nil registerer to
// skip metrics registration.
func NewDispatcher(n Notifier, logger *slog.Logger, queueSize int, timeout time.Duration, reg prometheus.Registerer) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 1
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	d := &Dispatcher{
		notifier: n,
		logger:   logger.With(slog.String("component", "notify")),
		timeout:  timeout,
		queue:    make(chan Notification, queueSize),
		done:     make(chan struct{}),
		total: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "droplink_notifications_total",
			Help: "Notification delivery attempts by outcome.",
		}, []string{"outcome"}),
	}
	if reg != nil {
		reg.MustRegister(d.total)
	}

	go d.run()
	return d
}

// Notify enqueues n for asynchronous delivery. It satisfies Notifier so the
// dispatcher can be handed to the service directly.
func (d *Dispatcher) Notify(_ context.Context, n Notification) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.drop(n, "dispatcher closed")
		return nil
	}
	select {
	case d.queue <- n:
	default:
		d.drop(n, "queue full")
	}
	return nil
}

// Close stops accepting work and waits for queued deliveries until ctx ends.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for n := range d.queue {
		d.deliver(n)
	}
}

func (d *Dispatcher) deliver(n Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	if err := d.notifier.Notify(ctx, n); err != nil {
		d.total.WithLabelValues(outcomeFailed).Inc()
		d.logger.Warn("notification_failed",
			slog.String("kind", string(n.Kind)),
			slog.String("to", n.To),
			slog.String("error", err.Error()),
		)
		return
	}
	d.total.WithLabelValues(outcomeSent).Inc()
}

func (d *Dispatcher) drop(n Notification, reason string) {
	d.total.WithLabelValues(outcomeDropped).Inc()
	d.logger.Warn("notification_dropped",
		slog.String("kind", string(n.Kind)),
		slog.String("to", n.To),
		slog.String("reason", reason),
	)
}
