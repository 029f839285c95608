// internal/app/reconcile_service.go
package app

import (
	"context"
	"fmt"
	"time"

	"birthday_notification_service/internal/domain/delivery"
	"birthday_notification_service/internal/domain/lock"
	"birthday_notification_service/internal/domain/queue"
	"birthday_notification_service/internal/infra/metrics"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

// ReconcileService defines the recovery sweep that re-drives work left
// behind by missed ticks, crashed workers or failed enqueues.
type ReconcileService interface {
	RunSweep(ctx context.Context) error
}

// ReconcileServiceImpl implements the ReconcileService interface.
type ReconcileServiceImpl struct {
	ledger      delivery.Ledger
	producer    queue.Producer
	locker      lock.Locker
	clock       clockwork.Clock
	logger      *logrus.Entry
	maxAttempts int
	lockTTL     time.Duration
}

func NewReconcileServiceImpl(
	ledger delivery.Ledger,
	producer queue.Producer,
	locker lock.Locker,
	clock clockwork.Clock,
	logger *logrus.Entry,
	maxAttempts int,
	lockTTL time.Duration,
) *ReconcileServiceImpl {
	return &ReconcileServiceImpl{
		ledger:      ledger,
		producer:    producer,
		locker:      locker,
		clock:       clock,
		logger:      logger,
		maxAttempts: maxAttempts,
		lockTTL:     lockTTL,
	}
}

func (s *ReconcileServiceImpl) RunSweep(ctx context.Context) error {
	// Only one instance reconciles at a time.
	acquired, err := s.locker.Acquire(ctx, lock.ReconcileKey(), s.lockTTL)
	if err != nil {
		return fmt.Errorf("failed to acquire reconcile lock: %w", err)
	}
	if !acquired {
		s.logger.Info("Reconcile lock held by another instance. Skipping sweep.")
		return nil
	}
	defer func() {
		if err := s.locker.Release(ctx, lock.ReconcileKey()); err != nil {
			s.logger.Warnf("Failed to release reconcile lock: %v", err)
		}
	}()

	now := s.clock.Now().UTC()

	// 1. Pending records whose scheduled instant has passed: a scanner
	// crashed before enqueueing, or the enqueue itself failed. Re-enqueue.
	pending, err := s.ledger.ListPendingDue(ctx, now)
	if err != nil {
		return fmt.Errorf("failed to list pending due records: %w", err)
	}
	requeued := 0
	for _, rec := range pending {
		ok, err := s.requeue(ctx, rec)
		if err != nil {
			s.logger.Errorf("Failed to requeue pending delivery %s: %v", rec.ID, err)
			continue
		}
		if ok {
			requeued++
			metrics.ReconciledPending.Inc()
		}
	}

	// 2. Failed records below the attempt ceiling: reset to pending, then
	// resubmit for a fresh pass through the worker. The attempt counter is
	// deliberately left alone so the budget spans resubmissions.
	failed, err := s.ledger.ListRetryableFailed(ctx, s.maxAttempts)
	if err != nil {
		return fmt.Errorf("failed to list retryable failed records: %w", err)
	}
	retried := 0
	for _, rec := range failed {
		if rec.RecipientEmail == "" {
			s.logger.Warnf("Delivery %s has no resolvable recipient. Leaving it failed.", rec.ID)
			continue
		}
		if err := s.ledger.MarkPending(ctx, rec.ID); err != nil {
			s.logger.Errorf("Failed to reset failed delivery %s: %v", rec.ID, err)
			continue
		}
		ok, err := s.requeue(ctx, rec)
		if err != nil {
			// Still pending with a past scheduled-for, so the next sweep's
			// first pass picks it up again.
			s.logger.Errorf("Failed to requeue reset delivery %s: %v", rec.ID, err)
			continue
		}
		if ok {
			retried++
			metrics.ReconciledFailed.Inc()
		}
	}

	if requeued > 0 || retried > 0 {
		s.logger.Infof("Reconciliation requeued %d pending and retried %d failed delivery record(s).", requeued, retried)
	}
	return nil
}

// requeue publishes a fresh queue entry for the record and marks it queued.
// Records whose recipient no longer resolves are skipped, not failed; they
// stay visible to operators in the ledger.
func (s *ReconcileServiceImpl) requeue(ctx context.Context, rec *delivery.Record) (bool, error) {
	if rec.RecipientEmail == "" {
		s.logger.Warnf("Delivery %s has no resolvable recipient. Skipping requeue.", rec.ID)
		return false, nil
	}

	msg := queue.Message{
		DeliveryID:  rec.ID,
		RecipientID: rec.RecipientID,
		Email:       rec.RecipientEmail,
		DisplayName: rec.RecipientName,
	}
	if err := s.producer.Enqueue(ctx, msg); err != nil {
		return false, fmt.Errorf("failed to enqueue: %w", err)
	}
	metrics.Enqueued.Inc()

	if err := s.ledger.MarkQueued(ctx, rec.ID); err != nil {
		return false, fmt.Errorf("failed to mark queued: %w", err)
	}
	return true, nil
}
