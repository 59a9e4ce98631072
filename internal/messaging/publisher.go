package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"nexttale/shared/interfaces"
	sharedMessaging "nexttale/shared/messaging"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const publishTimeout = 5 * time.Second

// PregenerationPublisher puts pre-generation tasks on the task queue.
type PregenerationPublisher struct {
	mu        sync.Mutex
	channel   Channel
	queueName string
	logger    *zap.Logger
}

var _ interfaces.PregenerationPublisher = (*PregenerationPublisher)(nil)

// NewPregenerationPublisher declares the queue topology on ch and returns a
// publisher that owns ch.
func NewPregenerationPublisher(ch Channel, queueName string, logger *zap.Logger) (*PregenerationPublisher, error) {
	if queueName == "" {
		queueName = sharedMessaging.PregenerationQueueName
	}
	log := logger.Named("PregenerationPublisher")
	if err := DeclarePregenerationTopology(ch, queueName); err != nil {
		_ = ch.Close()
		log.Error("Failed to declare pre-generation queue", zap.String("queue", queueName), zap.Error(err))
		return nil, fmt.Errorf("pregeneration publisher: %w", err)
	}
	log.Info("Pre-generation queue declared", zap.String("queue", queueName))
	return &PregenerationPublisher{channel: ch, queueName: queueName, logger: log}, nil
}

// PublishPregeneration sends one persistent task message.
func (p *PregenerationPublisher) PublishPregeneration(ctx context.Context, payload sharedMessaging.PregenerationTaskPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal pregeneration payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	p.mu.Lock()
	err = p.channel.PublishWithContext(ctx,
		"",          // default exchange
		p.queueName, // routing key
		false,       // mandatory
		false,       // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    payload.TaskID,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		},
	)
	p.mu.Unlock()

	if err != nil {
		p.logger.Error("Failed to publish pre-generation task",
			zap.String("taskID", payload.TaskID),
			zap.String("nodeID", payload.NodeID),
			zap.Error(err),
		)
		return fmt.Errorf("publish pregeneration task: %w", err)
	}
	p.logger.Debug("Pre-generation task published", zap.String("taskID", payload.TaskID), zap.String("nodeID", payload.NodeID))
	return nil
}

// Close closes the underlying channel.
func (p *PregenerationPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.channel.Close()
}
