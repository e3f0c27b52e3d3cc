package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/MarkoPoloResearchLab/staybook/pkg/booking"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	contentTypeJSON = "application/json"
	// DefaultPublishTimeout bounds one broker publish.
	DefaultPublishTimeout = 5 * time.Second
)

// Publisher publishes booking events to durable queues over one long-lived connection.
// A failed publish drops the connection; the next call redials.
type Publisher struct {
	url      string
	queues   Queues
	dial     Dialer
	timeout  time.Duration
	logger   *zap.Logger
	now      func() time.Time
	mu       sync.Mutex
	conn     Connection
	channel  Channel
	declared map[string]bool
}

// PublisherOption configures a Publisher.
type PublisherOption func(*Publisher)

// WithDialer replaces the broker dialer.
func WithDialer(dial Dialer) PublisherOption {
	return func(publisher *Publisher) {
		if dial != nil {
			publisher.dial = dial
		}
	}
}

// WithPublishTimeout bounds every publish; a non-positive timeout keeps DefaultPublishTimeout.
func WithPublishTimeout(timeout time.Duration) PublisherOption {
	return func(publisher *Publisher) {
		if timeout > 0 {
			publisher.timeout = timeout
		}
	}
}

// WithQueues overrides the queue names.
func WithQueues(queues Queues) PublisherOption {
	return func(publisher *Publisher) {
		publisher.queues = queues
	}
}

// NewPublisher returns a Publisher for url. It does not dial until the first publish.
func NewPublisher(url string, logger *zap.Logger, options ...PublisherOption) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	publisher := &Publisher{
		url:      url,
		queues:   DefaultQueues(),
		dial:     DialAMQP,
		timeout:  DefaultPublishTimeout,
		logger:   logger,
		now:      time.Now,
		declared: map[string]bool{},
	}
	for _, option := range options {
		if option != nil {
			option(publisher)
		}
	}
	return publisher
}

// Publish implements booking.EventPublisher.
func (publisher *Publisher) Publish(ctx context.Context, event booking.Event) error {
	queue, err := publisher.queues.For(event.Type)
	if err != nil {
		return err
	}
	body, err := json.Marshal(NewBookingMessage(event))
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	publisher.mu.Lock()
	defer publisher.mu.Unlock()

	channel, err := publisher.ensureChannel()
	if err != nil {
		return err
	}
	if !publisher.declared[queue] {
		if err := declareQueue(channel, queue); err != nil {
			publisher.resetLocked()
			return fmt.Errorf("queue declare %s: %w", queue, err)
		}
		publisher.declared[queue] = true
	}
	message := amqp.Publishing{
		ContentType:  contentTypeJSON,
		DeliveryMode: amqp.Persistent,
		Timestamp:    publisher.now().UTC(),
		MessageId:    event.BookingID.String(),
		Type:         string(event.Type),
		Body:         body,
	}
	publishCtx, cancel := context.WithTimeout(ctx, publisher.timeout)
	defer cancel()
	if err := channel.PublishWithContext(publishCtx, "", queue, false, false, message); err != nil {
		publisher.resetLocked()
		return fmt.Errorf("publish %s: %w", queue, err)
	}
	publisher.logger.Debug("event published",
		zap.String("queue", queue),
		zap.String("booking_id", event.BookingID.String()),
	)
	return nil
}

// Close releases the broker connection.
func (publisher *Publisher) Close() error {
	publisher.mu.Lock()
	defer publisher.mu.Unlock()
	if publisher.conn == nil {
		return nil
	}
	if publisher.channel != nil {
		_ = publisher.channel.Close()
	}
	err := publisher.conn.Close()
	publisher.conn = nil
	publisher.channel = nil
	publisher.declared = map[string]bool{}
	return err
}

func (publisher *Publisher) ensureChannel() (Channel, error) {
	if publisher.channel != nil && publisher.conn != nil && !publisher.conn.IsClosed() {
		return publisher.channel, nil
	}
	publisher.resetLocked()
	conn, err := publisher.dial(publisher.url)
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	publisher.conn = conn
	publisher.channel = channel
	return channel, nil
}

func (publisher *Publisher) resetLocked() {
	if publisher.channel != nil {
		_ = publisher.channel.Close()
	}
	if publisher.conn != nil {
		_ = publisher.conn.Close()
	}
	publisher.channel = nil
	publisher.conn = nil
	publisher.declared = map[string]bool{}
}
