// internal/domain/queue/queue.go
package queue

import (
	"context"
	"time"
)

// Message is the wire payload between record creation and dispatch. It
// carries no status of its own (status lives on the delivery record), so a
// queue entry is disposable and safe to reprocess.
type Message struct {
	DeliveryID  string `json:"delivery_id"`
	RecipientID int64  `json:"recipient_id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}

// Producer publishes messages onto the durable greetings queue.
type Producer interface {
	Enqueue(ctx context.Context, msg Message) error
}

// Delivery is one in-flight queue entry awaiting acknowledgment. Exactly one
// of Ack, Retry or DeadLetter must be called for each entry; until then the
// broker considers it unprocessed and will eventually redeliver it.
type Delivery interface {
	Message() Message

	// Ack removes the entry from the queue.
	Ack() error

	// Retry schedules the entry for redelivery after the given delay. The
	// delay is enforced by the broker, not by blocking the worker.
	Retry(delay time.Duration) error

	// DeadLetter routes the entry to the dead-letter channel for manual
	// inspection and removes it from the main queue.
	DeadLetter(ctx context.Context) error
}

// Consumer drains the greetings queue.
type Consumer interface {
	// Fetch returns up to max in-flight entries, blocking briefly when the
	// queue is empty. An empty result is not an error.
	Fetch(ctx context.Context, max int) ([]Delivery, error)
}
