package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	sharedMessaging "nexttale/shared/messaging"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// PregenerationHandler processes one decoded task. A returned error sends the
// message to the dead-letter queue.
type PregenerationHandler interface {
	Handle(ctx context.Context, payload sharedMessaging.PregenerationTaskPayload) error
}

// ConsumerConfig names the queue and consumer.
type ConsumerConfig struct {
	QueueName    string
	ConsumerName string
	Prefetch     int
}

// PregenerationConsumer reads pre-generation tasks and hands them to a handler.
type PregenerationConsumer struct {
	conn    *amqp.Connection
	handler PregenerationHandler
	cfg     ConsumerConfig
	logger  *zap.Logger

	channel *amqp.Channel
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewPregenerationConsumer creates a consumer; Start opens its channel.
func NewPregenerationConsumer(conn *amqp.Connection, handler PregenerationHandler, cfg ConsumerConfig, logger *zap.Logger) *PregenerationConsumer {
	if cfg.QueueName == "" {
		cfg.QueueName = sharedMessaging.PregenerationQueueName
	}
	if cfg.ConsumerName == "" {
		cfg.ConsumerName = "pregeneration_worker"
	}
	if cfg.Prefetch < 1 {
		cfg.Prefetch = 1
	}
	return &PregenerationConsumer{
		conn:    conn,
		handler: handler,
		cfg:     cfg,
		logger:  logger.Named("PregenerationConsumer"),
		done:    make(chan struct{}),
	}
}

// Start declares the topology and begins consuming until ctx is done or the
// delivery channel closes.
func (c *PregenerationConsumer) Start(ctx context.Context) error {
	ch, err := c.conn.Channel()
	if err != nil {
		c.logger.Error("Failed to open channel", zap.Error(err))
		return fmt.Errorf("failed to open channel: %w", err)
	}
	if err := DeclarePregenerationTopology(ch, c.cfg.QueueName); err != nil {
		_ = ch.Close()
		return err
	}
	if err := ch.Qos(c.cfg.Prefetch, 0, false); err != nil {
		_ = ch.Close()
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	msgs, err := ch.Consume(
		c.cfg.QueueName,
		c.cfg.ConsumerName,
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		_ = ch.Close()
		c.logger.Error("Failed to register consumer", zap.String("queue", c.cfg.QueueName), zap.Error(err))
		return fmt.Errorf("failed to register consumer: %w", err)
	}
	c.channel = ch
	c.logger.Info("Pre-generation consumer started",
		zap.String("queue", c.cfg.QueueName),
		zap.Int("prefetch", c.cfg.Prefetch),
	)

	// Tasks already taken finish even after ctx is cancelled.
	taskCtx := context.WithoutCancel(ctx)
	sem := make(chan struct{}, c.cfg.Prefetch)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				c.logger.Error("Panic recovered in consumer loop", zap.Any("panic", r))
			}
			c.wg.Wait()
			close(c.done)
		}()
		for {
			select {
			case <-ctx.Done():
				c.logger.Info("Context cancelled, stopping consumer loop")
				return
			case msg, ok := <-msgs:
				if !ok {
					c.logger.Info("Delivery channel closed, stopping consumer loop")
					return
				}
				sem <- struct{}{}
				c.wg.Add(1)
				go func() {
					defer func() {
						<-sem
						c.wg.Done()
					}()
					c.processDelivery(taskCtx, msg)
				}()
			}
		}
	}()
	return nil
}

// processDelivery acks on success and rejects to the DLQ otherwise.
func (c *PregenerationConsumer) processDelivery(ctx context.Context, msg amqp.Delivery) {
	var payload sharedMessaging.PregenerationTaskPayload
	if err := json.Unmarshal(msg.Body, &payload); err != nil {
		c.logger.Error("Failed to decode task, rejecting", zap.String("messageID", msg.MessageId), zap.Error(err))
		_ = msg.Nack(false, false)
		return
	}
	log := c.logger.With(zap.String("taskID", payload.TaskID), zap.String("nodeID", payload.NodeID))

	defer func() {
		if r := recover(); r != nil {
			log.Error("Panic while handling task, rejecting", zap.Any("panic", r))
			_ = msg.Nack(false, false)
		}
	}()

	if err := c.handler.Handle(ctx, payload); err != nil {
		log.Warn("Task failed, sending to dead-letter queue", zap.Error(err))
		if nackErr := msg.Nack(false, false); nackErr != nil {
			log.Error("Failed to nack task", zap.Error(nackErr))
		}
		return
	}
	if err := msg.Ack(false); err != nil {
		log.Error("Failed to ack task", zap.Error(err))
	}
}

// Stop cancels the subscription and waits for in-flight tasks.
func (c *PregenerationConsumer) Stop(timeout time.Duration) {
	c.logger.Info("Stopping pre-generation consumer")
	if c.channel != nil {
		if err := c.channel.Cancel(c.cfg.ConsumerName, false); err != nil {
			c.logger.Warn("Failed to cancel consumer", zap.Error(err))
		}
	}

	select {
	case <-c.done:
	case <-time.After(timeout):
		c.logger.Warn("Timed out waiting for in-flight tasks")
	}

	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			c.logger.Warn("Failed to close consumer channel", zap.Error(err))
		}
	}
	c.logger.Info("Pre-generation consumer stopped")
}
