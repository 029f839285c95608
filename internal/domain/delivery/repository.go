// internal/domain/delivery/repository.go
package delivery

import (
	"context"
	"time"
)

// Ledger defines the persistence operations for delivery records. It is the
// single source of truth for notification state; the queue and the locks only
// coordinate access to it.
type Ledger interface {
	// CreateIfAbsent inserts a new record for (recipient, target year) and
	// returns it with ID and timestamps populated. When a record for that
	// pair already exists, including when a concurrent caller wins the
	// race, it returns (nil, nil): the losing insert is "nothing created",
	// not an error. Uniqueness is enforced by a database constraint.
	CreateIfAbsent(ctx context.Context, rec *Record) (*Record, error)

	// MarkQueued transitions PENDING → QUEUED after a queue entry was
	// published for the record.
	MarkQueued(ctx context.Context, id string) error

	// MarkSent records a successful send. Legal from any non-SENT status;
	// a second MarkSent fails with ErrIllegalTransition so duplicate queue
	// entries cannot rewrite the sent-at instant.
	MarkSent(ctx context.Context, id string, sentAt time.Time) error

	// MarkFailed records a failed attempt: sets FAILED, stores the error
	// text and increments the attempt count atomically with the status
	// write. Returns the post-increment attempt count.
	MarkFailed(ctx context.Context, id string, lastError string) (int, error)

	// MarkPending resets FAILED → PENDING for another pass through the
	// queue. The attempt count is deliberately preserved.
	MarkPending(ctx context.Context, id string) error

	// FindByID returns the record joined with its recipient summary
	// (email, display name).
	FindByID(ctx context.Context, id string) (*Record, error)

	// ListPendingDue returns PENDING records whose scheduled-for instant is
	// at or before now. These are records a crashed scanner or a failed
	// enqueue left behind.
	ListPendingDue(ctx context.Context, now time.Time) ([]*Record, error)

	// ListRetryableFailed returns FAILED records with attempt count below
	// the ceiling, oldest failure first.
	ListRetryableFailed(ctx context.Context, maxAttempts int) ([]*Record, error)
}
