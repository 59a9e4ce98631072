package messaging

import (
	"context"
	"fmt"

	sharedMessaging "nexttale/shared/messaging"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Channel is the part of *amqp.Channel the publisher and topology setup use.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

var _ Channel = (*amqp.Channel)(nil)

// DeclarePregenerationTopology declares the dead-letter exchange, the DLQ and
// the task queue. The server and the worker both call it with the same
// arguments, so either can start first.
func DeclarePregenerationTopology(ch Channel, queueName string) error {
	if err := ch.ExchangeDeclare(
		sharedMessaging.PregenerationDLXName, // name
		"direct",                             // type
		true,                                 // durable
		false,                                // auto-deleted
		false,                                // internal
		false,                                // no-wait
		nil,
	); err != nil {
		return fmt.Errorf("declare DLX %q: %w", sharedMessaging.PregenerationDLXName, err)
	}

	if _, err := ch.QueueDeclare(sharedMessaging.PregenerationDLQName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare DLQ %q: %w", sharedMessaging.PregenerationDLQName, err)
	}
	if err := ch.QueueBind(
		sharedMessaging.PregenerationDLQName,
		sharedMessaging.PregenerationDLQKey,
		sharedMessaging.PregenerationDLXName,
		false,
		nil,
	); err != nil {
		return fmt.Errorf("bind DLQ %q: %w", sharedMessaging.PregenerationDLQName, err)
	}

	if _, err := ch.QueueDeclare(
		queueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		sharedMessaging.PregenerationQueueArgs(),
	); err != nil {
		return fmt.Errorf("declare queue %q: %w", queueName, err)
	}
	return nil
}
