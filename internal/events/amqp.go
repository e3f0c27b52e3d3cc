package events

import (
	"context"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	// DefaultDialTimeout bounds the TCP connect and AMQP handshake of one dial.
	DefaultDialTimeout = 3 * time.Second
	heartbeatInterval  = 10 * time.Second
	brokerLocale       = "en_US"
)

// Channel is the subset of *amqp.Channel used by the publisher and consumer.
type Channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Qos(prefetchCount, prefetchSize int, global bool) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Close() error
}

// Connection is a broker connection able to open channels.
type Connection interface {
	Channel() (Channel, error)
	IsClosed() bool
	Close() error
}

// Dialer opens a broker connection.
type Dialer func(url string) (Connection, error)

type brokerConnection struct {
	conn *amqp.Connection
}

// DialAMQP dials a RabbitMQ broker within DefaultDialTimeout.
func DialAMQP(url string) (Connection, error) {
	return DialAMQPWithTimeout(DefaultDialTimeout)(url)
}

// DialAMQPWithTimeout returns a Dialer whose connect and handshake give up after timeout.
func DialAMQPWithTimeout(timeout time.Duration) Dialer {
	if timeout <= 0 {
		timeout = DefaultDialTimeout
	}
	return func(url string) (Connection, error) {
		conn, err := amqp.DialConfig(url, amqp.Config{
			Heartbeat: heartbeatInterval,
			Locale:    brokerLocale,
			Dial:      amqp.DefaultDial(timeout),
		})
		if err != nil {
			return nil, err
		}
		return brokerConnection{conn: conn}, nil
	}
}

func (connection brokerConnection) Channel() (Channel, error) {
	channel, err := connection.conn.Channel()
	if err != nil {
		return nil, err
	}
	return channel, nil
}

func (connection brokerConnection) IsClosed() bool {
	return connection.conn.IsClosed()
}

func (connection brokerConnection) Close() error {
	return connection.conn.Close()
}

func declareQueue(channel Channel, name string) error {
	_, err := channel.QueueDeclare(
		name,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	)
	return err
}
