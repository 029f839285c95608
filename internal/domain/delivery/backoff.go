// internal/domain/delivery/backoff.go
package delivery

import "time"

// BackoffSchedule is the fixed redelivery delay table, indexed by attempt
// number. Attempt 1 (the first failure) maps to the first entry; attempts
// past the end of the table clamp to the last entry.
type BackoffSchedule []time.Duration

// DefaultBackoffSchedule spaces retries out over five minutes.
var DefaultBackoffSchedule = BackoffSchedule{
	1 * time.Second,
	5 * time.Second,
	15 * time.Second,
	60 * time.Second,
	300 * time.Second,
}

// DelayFor returns the redelivery delay after the given failed attempt count.
func (s BackoffSchedule) DelayFor(attempt int) time.Duration {
	if len(s) == 0 {
		return 0
	}
	idx := attempt - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(s) {
		idx = len(s) - 1
	}
	return s[idx]
}
