package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	dErrors "attestor/pkg/domain-errors"
)

// Publisher captures claim outcomes. It is append-only and uses the storage
// layer for persistence so tests can swap sinks easily.
type Publisher struct {
	store   Store
	events  chan Event
	wg      sync.WaitGroup
	mu      sync.RWMutex // guards closed and sends on events
	closed  bool
	logger  *slog.Logger
	async   bool
	timeout time.Duration
	now     func() time.Time
}

type PublisherOption func(*Publisher)

// WithAsyncBuffer enables async processing with the specified buffer size.
// Events are queued and persisted in a background goroutine.
func WithAsyncBuffer(size int) PublisherOption {
	return func(p *Publisher) {
		if size > 0 {
			p.events = make(chan Event, size)
			p.async = true
		}
	}
}

// WithPublisherLogger sets a logger for async error reporting.
func WithPublisherLogger(logger *slog.Logger) PublisherOption {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// WithAppendTimeout bounds each background append.
func WithAppendTimeout(d time.Duration) PublisherOption {
	return func(p *Publisher) {
		if d > 0 {
			p.timeout = d
		}
	}
}

func WithPublisherClock(now func() time.Time) PublisherOption {
	return func(p *Publisher) {
		if now != nil {
			p.now = now
		}
	}
}

func NewPublisher(store Store, opts ...PublisherOption) *Publisher {
	p := &Publisher{store: store, timeout: 10 * time.Second, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	if p.async {
		p.wg.Add(1)
		go p.processEvents()
	}
	return p
}

func (p *Publisher) processEvents() {
	defer p.wg.Done()
	for event := range p.events {
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		err := p.store.Append(ctx, event)
		cancel()
		if err != nil && p.logger != nil {
			p.logger.Error("failed to persist audit event",
				"error", err,
				"outcome", event.Outcome,
				"wallet", event.Wallet,
				"request_id", event.RequestID,
			)
		}
	}
}

// Close shuts down the async publisher and waits for pending events to
// drain. Emits that arrive afterwards are rejected. Close is idempotent.
func (p *Publisher) Close() {
	if !p.async {
		return
	}
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.events)
	}
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = p.now()
	}
	if p.async {
		p.mu.RLock()
		defer p.mu.RUnlock()
		if p.closed {
			return dErrors.New(dErrors.CodeInternal, "audit publisher closed")
		}
		select {
		case p.events <- event:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		default:
			if p.logger != nil {
				p.logger.Warn("audit buffer full, event dropped",
					"outcome", event.Outcome,
					"wallet", event.Wallet,
				)
			}
			return dErrors.New(dErrors.CodeInternal, "audit buffer full")
		}
	}
	return p.store.Append(ctx, event)
}
