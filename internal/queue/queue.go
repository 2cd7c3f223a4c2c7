package queue

import "context"

// Publisher publishes audit events to a queue.
type Publisher interface {
	Publish(ctx context.Context, queue string, msg AuditEventMessage) error
	Close() error
}

const (
	// AuditQueueName receives every campaign audit event.
	AuditQueueName = "newsletter.audit"

	auditActionPrefix = "newsletter."
)

// DLQName returns the dead-letter queue for a queue, e.g. dlq.newsletter.audit.
func DLQName(queue string) string {
	return "dlq." + queue
}
