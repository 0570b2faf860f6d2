package notify

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// QueueChannel publishes notifications to the durable operations
// queue so downstream workers can pick them up even across agent
// restarts.
type QueueChannel struct {
	queue string
	conn  *amqp.Connection
	chn   *amqp.Channel
}

// DialQueue connects to the broker and declares the queue.
func DialQueue(url, queue string) (*QueueChannel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	chn, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}
	if _, err := chn.QueueDeclare(
		queue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	); err != nil {
		chn.Close()
		conn.Close()
		return nil, fmt.Errorf("declare queue %s: %w", queue, err)
	}
	return &QueueChannel{queue: queue, conn: conn, chn: chn}, nil
}

func (q *QueueChannel) Name() string { return "ops_queue" }

func (q *QueueChannel) Send(ctx context.Context, n Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return q.chn.PublishWithContext(
		ctx,
		"",      // exchange
		q.queue, // routing key
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    n.At,
			Body:         body,
		},
	)
}

func (q *QueueChannel) Close() error {
	if err := q.chn.Close(); err != nil {
		q.conn.Close()
		return err
	}
	return q.conn.Close()
}
