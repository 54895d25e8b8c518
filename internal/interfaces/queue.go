package interfaces

import (
	"context"
	"time"

	"github.com/seolens/seolens/internal/models"
)

// QueueDelivery is a received message plus its delivery bookkeeping
type QueueDelivery struct {
	ID         string            // Queue-internal message ID
	Message    models.JobMessage // The routed job
	Attempt    int               // 1-based receive count for this message
	EnqueuedAt time.Time
}

// QueueManager provides durable at-least-once job delivery for a single
// logical worker. Enqueue surfaces synchronous failure so callers can
// compensate.
type QueueManager interface {
	// Enqueue adds a message to the queue, immediately visible
	Enqueue(ctx context.Context, msg models.JobMessage) error

	// Receive pulls the next visible message, or models.ErrNoMessage when
	// the queue is empty. The message stays invisible for the visibility
	// timeout unless deleted or released earlier.
	Receive(ctx context.Context) (*QueueDelivery, error)

	// Delete acknowledges a delivery, removing the message permanently
	Delete(ctx context.Context, deliveryID string) error

	// Release makes a delivery visible again after the given delay.
	// Used for retry backoff.
	Release(ctx context.Context, deliveryID string, delay time.Duration) error

	// Count returns the number of messages currently in the queue
	Count(ctx context.Context) (int, error)

	Close() error
}

// JobHandler processes one queue message. A returned error triggers the
// worker's retry policy.
type JobHandler func(ctx context.Context, msg *models.JobMessage) error
