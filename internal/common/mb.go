package common

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/sushihentaime/blogcms/internal/events"
)

type Exchange string

type Queue string

type BindingKey string

type MessageProducer interface {
	Publish(ctx context.Context, msg []byte, key BindingKey, exchange Exchange) error
}

type MessageConsumer interface {
	Consume(key BindingKey, exchange Exchange, queue Queue) (<-chan amqp.Delivery, error)
}

const (
	PostExchange Exchange = "post_exchange"

	SearchIndexQueue Queue      = Queue(events.LaneSearchIndex)
	SearchIndexKey   BindingKey = BindingKey(events.LaneSearchIndex)

	NotificationsQueue Queue      = Queue(events.LaneNotifications)
	NotificationsKey   BindingKey = BindingKey(events.LaneNotifications)

	// FailedJobsQueue holds jobs that exhausted their attempts until an
	// operator requeues or discards them.
	FailedJobsQueue Queue      = "failed_jobs"
	FailedJobsKey   BindingKey = "failed"
)

// LaneQueue maps a listener lane to its queue and binding key.
func LaneQueue(lane events.Lane) (Queue, BindingKey) {
	return Queue(lane), BindingKey(lane)
}

type MessageBroker struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewMessageBroker(URI string) (*MessageBroker, error) {
	conn, ch, err := connectAMQP(URI)
	if err != nil {
		return nil, err
	}

	return &MessageBroker{
		conn: conn,
		ch:   ch,
	}, nil
}

func connectAMQP(URI string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(URI)
	if err != nil {
		return nil, nil, fmt.Errorf("could not connect to AMQP: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("could not open channel: %w", err)
	}

	// one unacknowledged delivery per consumer keeps every lane in enqueue order
	if err := ch.Qos(1, 0, false); err != nil {
		ch.Close()
		conn.Close()
		return nil, nil, fmt.Errorf("could not set qos: %w", err)
	}

	return conn, ch, nil
}

// Close closes the connection and channel of the message broker.
func (mb *MessageBroker) Close() error {
	err := mb.ch.Close()
	if err != nil {
		return err
	}

	err = mb.conn.Close()
	if err != nil {
		return err
	}

	return nil
}

// SetupPostExchange declares the post exchange, one durable queue per lane and
// the failed jobs queue.
func SetupPostExchange(mb *MessageBroker) error {
	err := mb.ch.ExchangeDeclare(string(PostExchange), "direct", true, false, false, false, nil)
	if err != nil {
		return err
	}

	bindings := []struct {
		queue Queue
		key   BindingKey
	}{
		{SearchIndexQueue, SearchIndexKey},
		{NotificationsQueue, NotificationsKey},
		{FailedJobsQueue, FailedJobsKey},
	}

	for _, b := range bindings {
		_, err = mb.ch.QueueDeclare(string(b.queue), true, false, false, false, nil)
		if err != nil {
			return err
		}

		err = mb.ch.QueueBind(string(b.queue), string(b.key), string(PostExchange), false, nil)
		if err != nil {
			return err
		}
	}

	return nil
}

func (mb *MessageBroker) Publish(ctx context.Context, msg []byte, key BindingKey, exchange Exchange) error {
	err := mb.ch.PublishWithContext(ctx, string(exchange), string(key), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         msg,
	})
	if err != nil {
		return fmt.Errorf("could not publish message: %w", err)
	}

	return nil
}

func (mb *MessageBroker) Consume(key BindingKey, exchange Exchange, queue Queue) (<-chan amqp.Delivery, error) {
	msgs, err := mb.ch.Consume(string(queue), string(key), false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("could not consume message: %w", err)
	}

	return msgs, nil
}

// Get fetches a single message from queue without a consumer. ok is false when
// the queue is empty.
func (mb *MessageBroker) Get(queue Queue) (amqp.Delivery, bool, error) {
	msg, ok, err := mb.ch.Get(string(queue), false)
	if err != nil {
		return amqp.Delivery{}, false, fmt.Errorf("could not get message: %w", err)
	}

	return msg, ok, nil
}
