package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kursadbilgin/newsletter-dispatch/internal/domain"
	amqp "github.com/rabbitmq/amqp091-go"
)

type RabbitMQPublisher struct {
	client *RabbitMQ
}

func NewRabbitMQPublisher(client *RabbitMQ) *RabbitMQPublisher {
	return &RabbitMQPublisher{client: client}
}

func (p *RabbitMQPublisher) Publish(ctx context.Context, queue string, msg AuditEventMessage) error {
	if p == nil || p.client == nil {
		return fmt.Errorf("publisher is not initialized")
	}
	if queue == "" {
		return fmt.Errorf("queue name is required")
	}
	if err := msg.Validate(); err != nil {
		return fmt.Errorf("invalid audit message: %w", err)
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal audit message: %w", err)
	}

	ch, err := p.client.channel(ctx)
	if err != nil {
		return err
	}
	defer ch.Close()

	publishing := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		MessageId:    msg.EntryID,
		Type:         msg.Action.String(),
		Body:         payload,
	}

	if err := ch.PublishWithContext(ctx, "", queue, false, false, publishing); err != nil {
		return fmt.Errorf("failed to publish message to queue %q: %w", queue, err)
	}

	return nil
}

func (p *RabbitMQPublisher) Close() error {
	if p == nil || p.client == nil {
		return nil
	}
	return p.client.Close()
}

// AuditSink forwards audit entries to the audit queue.
type AuditSink struct {
	publisher Publisher
	queue     string
}

func NewAuditSink(publisher Publisher) *AuditSink {
	return &AuditSink{publisher: publisher, queue: AuditQueueName}
}

func (s *AuditSink) Name() string { return "rabbitmq" }

func (s *AuditSink) Record(ctx context.Context, entry domain.AuditLogEntry) error {
	return s.publisher.Publish(ctx, s.queue, NewAuditEventMessage(entry))
}
