package event

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/utafrali/storefront/pkg/kafka"
	"github.com/utafrali/storefront/pkg/logger"
	"github.com/utafrali/storefront/services/storefront/internal/domain"
)

// Event types and topics for cart activity.
const (
	TypeCartUpdated = "cart.updated"
	TypeCartCleared = "cart.cleared"

	AggregateTypeCart = "cart"
	SourceStorefront  = "storefront"
)

var (
	TopicCartUpdated = kafka.Topic("cart", "updated")
	TopicCartCleared = kafka.Topic("cart", "cleared")
)

// CartUpdatedData is the payload of a cart.updated event.
type CartUpdatedData struct {
	SessionID  string            `json:"session_id"`
	Items      []domain.LineItem `json:"items"`
	TotalItems int               `json:"total_items"`
	TotalPrice float64           `json:"total_price"`
}

// CartClearedData is the payload of a cart.cleared event.
type CartClearedData struct {
	SessionID string `json:"session_id"`
}

// EventPublisher is satisfied by *kafka.Producer.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, event *kafka.Event) error
}

const (
	defaultQueueSize      = 256
	defaultPublishTimeout = 5 * time.Second
)

var eventsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "storefront",
	Subsystem: "cart_events",
	Name:      "dropped_total",
	Help:      "Cart events dropped because the publish queue was full or closed.",
}, []string{"event_type"})

// Option configures a Publisher.
type Option func(*Publisher)

// WithQueueSize bounds the number of events waiting to be published.
func WithQueueSize(n int) Option {
	return func(p *Publisher) {
		if n > 0 {
			p.queueSize = n
		}
	}
}

// WithPublishTimeout bounds each Publish call.
func WithPublishTimeout(d time.Duration) Option {
	return func(p *Publisher) {
		if d > 0 {
			p.timeout = d
		}
	}
}

type outbound struct {
	ctx       context.Context
	topic     string
	eventType string
	seq       int64
	data      any
}

// Publisher turns committed cart states into Kafka events. Register OnChange
// with the cart store. OnChange only enqueues; a single goroutine publishes
// in commit order. When the queue is full the event is dropped and counted.
// Failures are logged and never reach the caller.
type Publisher struct {
	kafka     EventPublisher
	sessionID string
	logger    *slog.Logger
	queueSize int
	timeout   time.Duration

	mu       sync.Mutex
	seq      int64
	nonEmpty bool
	closed   bool

	queue chan outbound
	done  chan struct{}
}

// NewPublisher creates a publisher that keys every event by sessionID and
// starts its writer goroutine. Call Close to drain and stop it.
func NewPublisher(p EventPublisher, sessionID string, log *slog.Logger, opts ...Option) *Publisher {
	if log == nil {
		log = slog.Default()
	}
	pub := &Publisher{
		kafka:     p,
		sessionID: sessionID,
		logger:    log,
		queueSize: defaultQueueSize,
		timeout:   defaultPublishTimeout,
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(pub)
	}
	pub.queue = make(chan outbound, pub.queueSize)
	go pub.run()
	return pub
}

// OnChange queues cart.updated for a non-empty cart and cart.cleared when
// the cart has just become empty. It never blocks.
func (p *Publisher) OnChange(ctx context.Context, state domain.CartState) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}

	if state.IsEmpty() {
		if !p.nonEmpty {
			return
		}
		p.nonEmpty = false
		p.seq++
		p.enqueue(ctx, TopicCartCleared, TypeCartCleared, CartClearedData{SessionID: p.sessionID})
		return
	}

	p.nonEmpty = true
	p.seq++
	p.enqueue(ctx, TopicCartUpdated, TypeCartUpdated, CartUpdatedData{
		SessionID:  p.sessionID,
		Items:      state.Items,
		TotalItems: state.TotalItems,
		TotalPrice: state.TotalPrice,
	})
}

// enqueue must be called with mu held.
func (p *Publisher) enqueue(ctx context.Context, topic, eventType string, data any) {
	ob := outbound{
		ctx:       context.WithoutCancel(ctx),
		topic:     topic,
		eventType: eventType,
		seq:       p.seq,
		data:      data,
	}
	select {
	case p.queue <- ob:
	default:
		eventsDropped.WithLabelValues(eventType).Inc()
		logger.WithContext(ctx, p.logger).WarnContext(ctx, "cart event dropped, publish queue full",
			slog.String("event_type", eventType),
			slog.Int64("sequence", p.seq),
		)
	}
}

func (p *Publisher) run() {
	defer close(p.done)
	for ob := range p.queue {
		ctx, cancel := context.WithTimeout(ob.ctx, p.timeout)
		p.publish(ctx, ob)
		cancel()
	}
}

// Close stops accepting events and waits for queued ones to be published.
func (p *Publisher) Close(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("close cart event publisher: %w", ctx.Err())
	}
}

func (p *Publisher) publish(ctx context.Context, ob outbound) {
	log := logger.WithContext(ctx, p.logger)
	if err := p.send(ctx, ob); err != nil {
		log.ErrorContext(ctx, "failed to publish cart event",
			slog.String("event_type", ob.eventType),
			slog.Int64("sequence", ob.seq),
			slog.String("error", err.Error()),
		)
		return
	}
	log.DebugContext(ctx, "published cart event",
		slog.String("event_type", ob.eventType),
		slog.Int64("sequence", ob.seq),
	)
}

func (p *Publisher) send(ctx context.Context, ob outbound) error {
	e, err := kafka.NewEvent(ob.eventType, p.sessionID, AggregateTypeCart, SourceStorefront, ob.seq, ob.data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", ob.eventType, err)
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		e.WithCorrelationID(id)
	}
	if err := p.kafka.Publish(ctx, ob.topic, e); err != nil {
		return fmt.Errorf("publish %s event: %w", ob.eventType, err)
	}
	return nil
}
