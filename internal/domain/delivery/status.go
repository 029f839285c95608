// internal/domain/delivery/status.go
package delivery

// Status is the lifecycle state of a delivery record.
type Status string

const (
	// StatusPending: record exists but no queue entry is known to exist for
	// it (fresh from a scan, or reset by reconciliation).
	StatusPending Status = "PENDING"
	// StatusQueued: a queue entry has been published for this record.
	StatusQueued Status = "QUEUED"
	// StatusSent: the notifier accepted the message. Terminal.
	StatusSent Status = "SENT"
	// StatusFailed: the most recent send attempt failed. A failed record at
	// the attempt ceiling is parked (dead-lettered on the queue side) until
	// someone intervenes.
	StatusFailed Status = "FAILED"
)

// transitions is the closed set of legal status changes.
//
// FAILED → SENT and FAILED → FAILED cover queue redeliveries that race a
// reconciliation pass: the send outcome is recorded as it happened rather
// than rejected, which is what keeps redelivered entries from producing a
// second email.
var transitions = map[Status][]Status{
	StatusPending: {StatusQueued, StatusSent, StatusFailed},
	StatusQueued:  {StatusSent, StatusFailed},
	StatusFailed:  {StatusPending, StatusSent, StatusFailed},
	StatusSent:    {},
}

// CanTransition reports whether a record may move from one status to another.
// The Postgres repository mirrors this table in its UPDATE guards.
func CanTransition(from, to Status) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusQueued, StatusSent, StatusFailed:
		return true
	}
	return false
}
