// internal/domain/lock/lock_test.go
package lock

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// Lock keys are shared between instances through Redis, so their exact
// shape is a compatibility contract, not an implementation detail.
func TestLockKeys(t *testing.T) {
	assert.Equal(t, "birthday:lock:scan", ScanKey())
	assert.Equal(t, "birthday:lock:reconcile", ReconcileKey())
	assert.Equal(t, "birthday:lock:delivery:3f2c", RecordKey("3f2c"))
	assert.Equal(t, "birthday:lock:birthday:42:2024", BirthdayKey(42, 2024))
}
