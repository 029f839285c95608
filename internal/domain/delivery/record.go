// internal/domain/delivery/record.go
package delivery

import (
	"database/sql"
	"time"
)

// Record tracks a single birthday notification for one recipient in one
// target year. Corresponds to the 'delivery_records' table
// (migrations/0001_init.up.sql). Records are never deleted; they remain as
// the audit trail of what was sent, when, and after how many attempts.
type Record struct {
	ID           string // UUID
	RecipientID  int64  // Foreign key to recipients.id
	TargetYear   int    // Calendar year this notification belongs to
	Status       Status
	ScheduledFor time.Time // 09:00 recipient-local, stored as a UTC instant
	SentAt       sql.NullTime
	AttemptCount int            // Failed send attempts so far; success does not touch it
	LastError    sql.NullString // Text of the most recent send failure
	CreatedAt    time.Time
	UpdatedAt    time.Time

	// Recipient summary joined by the read queries. Empty when the
	// recipient no longer resolves.
	RecipientEmail string
	RecipientName  string
}

// Exhausted reports whether the record has used up its attempt budget and
// must not be retried automatically.
func (r *Record) Exhausted(maxAttempts int) bool {
	return r.Status == StatusFailed && r.AttemptCount >= maxAttempts
}
