// internal/domain/lock/lock.go
package lock

import (
	"context"
	"fmt"
	"time"
)

// Locker grants short-lived named mutual-exclusion leases backed by a store
// shared across instances. A lease is not a consensus primitive: it expires
// on its own after the TTL, and callers must pair it with ledger-status
// checks to survive expiry mid-work.
type Locker interface {
	// Acquire sets the key only if absent, with automatic expiry after ttl,
	// and reports whether this caller now holds it. There is no renewal.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Release clears the key unconditionally. Best-effort: a stale lock
	// self-expires regardless.
	Release(ctx context.Context, key string) error
}

const keyPrefix = "birthday:lock:"

// ScanKey guards the per-tick timezone scan; at most one instance scans at a
// time.
func ScanKey() string {
	return keyPrefix + "scan"
}

// ReconcileKey guards the reconciliation sweep.
func ReconcileKey() string {
	return keyPrefix + "reconcile"
}

// RecordKey guards processing of one delivery record by one worker.
func RecordKey(deliveryID string) string {
	return keyPrefix + "delivery:" + deliveryID
}

// BirthdayKey guards the narrow record-creation-plus-enqueue window for one
// recipient in one year.
func BirthdayKey(recipientID int64, year int) string {
	return fmt.Sprintf("%sbirthday:%d:%d", keyPrefix, recipientID, year)
}
