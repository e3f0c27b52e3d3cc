package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	consumerPrefetch    = 50
	initialBackoff      = time.Second
	maxBackoff          = 30 * time.Second
	consumerTagTemplate = "staybook-notify-%s"
)

var errDeliveriesClosed = errors.New("deliveries channel closed")

// Handler processes one decoded booking message. A returned error rejects the delivery without requeue.
type Handler func(ctx context.Context, message BookingMessage) error

// Consumer reads booking messages from every configured queue and reconnects with backoff.
type Consumer struct {
	url     string
	queues  []string
	handler Handler
	dial    Dialer
	logger  *zap.Logger
	sleep   func(ctx context.Context, delay time.Duration) error
}

// NewConsumer returns a Consumer feeding handler from queues.
func NewConsumer(url string, queues Queues, handler Handler, logger *zap.Logger, dial Dialer) (*Consumer, error) {
	if handler == nil {
		return nil, errors.New("events: handler is required")
	}
	names := queues.All()
	if len(names) == 0 {
		return nil, errors.New("events: at least one queue is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if dial == nil {
		dial = DialAMQP
	}
	return &Consumer{
		url:     url,
		queues:  names,
		handler: handler,
		dial:    dial,
		logger:  logger,
		sleep:   sleepContext,
	}, nil
}

// Run consumes until ctx is cancelled.
func (consumer *Consumer) Run(ctx context.Context) error {
	backoff := initialBackoff
	for {
		conn, err := consumer.dial(consumer.url)
		if err != nil {
			consumer.logger.Warn("broker dial failed", zap.Error(err), zap.Duration("retry_in", backoff))
			if sleepErr := consumer.sleep(ctx, backoff); sleepErr != nil {
				return nil
			}
			backoff = nextBackoff(backoff)
			continue
		}
		backoff = initialBackoff
		err = consumer.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return nil
		}
		consumer.logger.Warn("consume loop ended; reconnecting", zap.Error(err))
		if sleepErr := consumer.sleep(ctx, initialBackoff); sleepErr != nil {
			return nil
		}
	}
}

func (consumer *Consumer) consume(ctx context.Context, conn Connection) error {
	channel, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer func() { _ = channel.Close() }()

	if err := channel.Qos(consumerPrefetch, 0, false); err != nil {
		consumer.logger.Warn("set qos failed", zap.Error(err))
	}
	group, groupCtx := errgroup.WithContext(ctx)
	for _, queue := range consumer.queues {
		if err := declareQueue(channel, queue); err != nil {
			return fmt.Errorf("queue declare %s: %w", queue, err)
		}
		deliveries, err := channel.Consume(queue, fmt.Sprintf(consumerTagTemplate, queue), false, false, false, false, nil)
		if err != nil {
			return fmt.Errorf("queue consume %s: %w", queue, err)
		}
		queue := queue
		group.Go(func() error {
			return consumer.drain(groupCtx, queue, deliveries)
		})
	}
	return group.Wait()
}

func (consumer *Consumer) drain(ctx context.Context, queue string, deliveries <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("%s: %w", queue, errDeliveriesClosed)
			}
			consumer.handle(ctx, queue, delivery)
		}
	}
}

func (consumer *Consumer) handle(ctx context.Context, queue string, delivery amqp.Delivery) {
	var message BookingMessage
	err := json.Unmarshal(delivery.Body, &message)
	if err == nil {
		err = consumer.handler(ctx, message)
	}
	if err != nil {
		consumer.logger.Error("booking message rejected", zap.String("queue", queue), zap.Error(err))
		_ = delivery.Nack(false, false)
		return
	}
	_ = delivery.Ack(false)
}

// LogHandler logs each message; it stands in for guest notification delivery.
func LogHandler(logger *zap.Logger) Handler {
	return func(_ context.Context, message BookingMessage) error {
		logger.Info("booking notification",
			zap.String("type", message.Type),
			zap.String("booking_id", message.BookingID),
			zap.String("user_id", message.UserID),
			zap.Strings("room_ids", message.RoomIDs),
			zap.String("check_in", message.CheckIn),
			zap.String("check_out", message.CheckOut),
			zap.String("total_price", message.TotalPrice),
			zap.Int64("confirmation_number", message.ConfirmationNumber),
		)
		return nil
	}
}

func nextBackoff(current time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepContext(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
