package webhook

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/marcus/imtti/internal/metrics"
)

const defaultQueueSize = 64

// Notifier delivers payloads in the background, one at a time and in order.
// Delivery is best effort: a full queue drops the payload, and failed
// deliveries are logged but not retried.
type Notifier struct {
	url    string
	secret string
	client *http.Client
	logger *slog.Logger

	queue chan Payload
	done  chan struct{}

	mu     sync.Mutex // guards closed and sends on queue
	closed bool
}

// NewNotifier starts the delivery worker.
func NewNotifier(url, secret string, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	n := &Notifier{
		url:    url,
		secret: secret,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
		queue:  make(chan Payload, defaultQueueSize),
		done:   make(chan struct{}),
	}
	go n.run()
	return n
}

// Notify queues p for delivery without blocking. Payloads arriving after
// Close are dropped.
func (n *Notifier) Notify(p Payload) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		metrics.WebhookDeliveriesTotal.WithLabelValues("dropped").Inc()
		n.logger.Warn("webhook notifier closed, dropping event", "event", p.Event, "collection", p.Collection)
		return
	}
	select {
	case n.queue <- p:
	default:
		metrics.WebhookDeliveriesTotal.WithLabelValues("dropped").Inc()
		n.logger.Warn("webhook queue full, dropping event", "event", p.Event, "collection", p.Collection)
	}
}

// Close stops accepting work and waits for queued payloads to be delivered,
// or for ctx to end.
func (n *Notifier) Close(ctx context.Context) error {
	n.mu.Lock()
	if !n.closed {
		n.closed = true
		close(n.queue)
	}
	n.mu.Unlock()

	select {
	case <-n.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (n *Notifier) run() {
	defer close(n.done)
	for p := range n.queue {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		err := Dispatch(ctx, n.client, n.url, n.secret, p)
		cancel()
		if err != nil {
			metrics.WebhookDeliveriesTotal.WithLabelValues("failed").Inc()
			n.logger.Warn("webhook delivery failed", "event", p.Event, "collection", p.Collection, "err", err)
			continue
		}
		metrics.WebhookDeliveriesTotal.WithLabelValues("delivered").Inc()
		n.logger.Debug("webhook delivered", "event", p.Event, "collection", p.Collection)
	}
}
