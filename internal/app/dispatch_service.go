// internal/app/dispatch_service.go
package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"birthday_notification_service/internal/domain/delivery"
	"birthday_notification_service/internal/domain/lock"
	"birthday_notification_service/internal/domain/notify"
	"birthday_notification_service/internal/domain/queue"
	idb "birthday_notification_service/internal/infra/database" // Alias for ledger errors
	"birthday_notification_service/internal/infra/metrics"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

// infraRetryDelay is the redelivery delay after infrastructure failures
// (ledger unreachable, lock store down). Distinct from the send backoff
// schedule, which only applies to notifier failures.
const infraRetryDelay = 5 * time.Second

// DispatchService defines the queue-draining side of the pipeline.
type DispatchService interface {
	// Run processes queue entries until the context is cancelled. It blocks;
	// callers start it in its own goroutine.
	Run(ctx context.Context)
}

// DispatchServiceImpl implements the DispatchService interface.
type DispatchServiceImpl struct {
	ledger        delivery.Ledger
	consumer      queue.Consumer
	notifier      notify.Notifier
	locker        lock.Locker
	clock         clockwork.Clock
	logger        *logrus.Entry
	maxAttempts   int
	backoff       delivery.BackoffSchedule
	recordLockTTL time.Duration
	workerCount   int
	fetchBatch    int
}

func NewDispatchServiceImpl(
	ledger delivery.Ledger,
	consumer queue.Consumer,
	notifier notify.Notifier,
	locker lock.Locker,
	clock clockwork.Clock,
	logger *logrus.Entry,
	maxAttempts int,
	backoff delivery.BackoffSchedule,
	recordLockTTL time.Duration,
	workerCount int,
	fetchBatch int,
) *DispatchServiceImpl {
	return &DispatchServiceImpl{
		ledger:        ledger,
		consumer:      consumer,
		notifier:      notifier,
		locker:        locker,
		clock:         clock,
		logger:        logger,
		maxAttempts:   maxAttempts,
		backoff:       backoff,
		recordLockTTL: recordLockTTL,
		workerCount:   workerCount,
		fetchBatch:    fetchBatch,
	}
}

func (s *DispatchServiceImpl) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < s.workerCount; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			s.workerLoop(ctx, id)
		}(i)
	}
	wg.Wait()
}

func (s *DispatchServiceImpl) workerLoop(ctx context.Context, id int) {
	log := s.logger.WithField("worker", id)
	log.Info("Dispatch worker started.")
	for {
		select {
		case <-ctx.Done():
			log.Info("Dispatch worker stopped.")
			return
		default:
		}

		deliveries, err := s.consumer.Fetch(ctx, s.fetchBatch)
		if err != nil {
			log.Errorf("Failed to fetch queue entries: %v", err)
			s.clock.Sleep(infraRetryDelay)
			continue
		}
		for _, d := range deliveries {
			s.process(ctx, log, d)
		}
	}
}

// process runs one queue entry through the delivery protocol. Every exit
// path settles the entry exactly one way: ack, scheduled redelivery, or
// dead-letter.
func (s *DispatchServiceImpl) process(ctx context.Context, log *logrus.Entry, d queue.Delivery) {
	msg := d.Message()

	// 1. Per-record lock. A miss means another worker, possibly in another
	// instance, owns this record right now; hand the entry back untouched
	// and let it redeliver after that worker's lock can have expired.
	key := lock.RecordKey(msg.DeliveryID)
	acquired, err := s.locker.Acquire(ctx, key, s.recordLockTTL)
	if err != nil {
		log.Errorf("Failed to acquire record lock for delivery %s: %v", msg.DeliveryID, err)
		s.retryEntry(log, d, infraRetryDelay)
		return
	}
	if !acquired {
		log.Infof("Delivery %s is locked by another worker. Requeueing.", msg.DeliveryID)
		s.retryEntry(log, d, s.recordLockTTL)
		return
	}
	defer func() {
		if err := s.locker.Release(ctx, key); err != nil {
			log.Warnf("Failed to release record lock %q: %v", key, err)
		}
	}()

	// 2. Re-read the record. The queue entry is disposable; the ledger
	// decides what, if anything, remains to be done.
	rec, err := s.ledger.FindByID(ctx, msg.DeliveryID)
	if err != nil {
		if errors.Is(err, idb.ErrRecordNotFound) {
			log.Warnf("Delivery %s has no ledger record. Dropping entry.", msg.DeliveryID)
			s.ackEntry(log, d)
			return
		}
		log.Errorf("Failed to read delivery %s: %v", msg.DeliveryID, err)
		s.retryEntry(log, d, infraRetryDelay)
		return
	}
	if rec.Status == delivery.StatusSent {
		log.Infof("Delivery %s already sent. Dropping duplicate entry.", rec.ID)
		s.ackEntry(log, d)
		return
	}
	if rec.Exhausted(s.maxAttempts) {
		// A redelivered entry for a record past its budget: park it without
		// another attempt.
		log.Warnf("Delivery %s already exhausted %d attempts. Dead-lettering entry.", rec.ID, rec.AttemptCount)
		s.deadLetter(ctx, log, d)
		return
	}

	// 3. One send attempt.
	content := notify.Content(notify.MessageTypeBirthday, msg.DisplayName)
	if err := s.notifier.Send(ctx, msg.Email, content); err != nil {
		s.handleSendFailure(ctx, log, d, rec, err)
		return
	}

	// 4. Success: record it, then drop the entry.
	if err := s.ledger.MarkSent(ctx, rec.ID, s.clock.Now().UTC()); err != nil {
		if errors.Is(err, idb.ErrIllegalTransition) {
			// Someone already recorded this record as sent. The entry is
			// satisfied either way.
			s.ackEntry(log, d)
			return
		}
		// The greeting went out but the write failed. Keep the entry alive;
		// a later redelivery re-reads the record and settles it.
		log.Errorf("Sent delivery %s but failed to mark it: %v", rec.ID, err)
		s.retryEntry(log, d, infraRetryDelay)
		return
	}
	metrics.Sent.Inc()
	log.Infof("Delivery %s sent to recipient %d (attempt count %d).", rec.ID, rec.RecipientID, rec.AttemptCount)
	s.ackEntry(log, d)
}

// handleSendFailure applies the retry policy: record the failed attempt,
// then either schedule redelivery per the backoff schedule or dead-letter
// the entry when the budget is spent.
func (s *DispatchServiceImpl) handleSendFailure(ctx context.Context, log *logrus.Entry, d queue.Delivery, rec *delivery.Record, sendErr error) {
	reason := notify.Classify(sendErr)
	metrics.FailedAttempts.WithLabelValues(reason).Inc()
	log.Warnf("Send attempt for delivery %s failed (%s): %v", rec.ID, reason, sendErr)

	attempts, err := s.ledger.MarkFailed(ctx, rec.ID, sendErr.Error())
	if err != nil {
		log.Errorf("Failed to record failed attempt for delivery %s: %v", rec.ID, err)
		s.retryEntry(log, d, infraRetryDelay)
		return
	}

	if attempts >= s.maxAttempts {
		log.Errorf("Delivery %s exhausted its attempt budget (%d of %d). Dead-lettering.", rec.ID, attempts, s.maxAttempts)
		s.deadLetter(ctx, log, d)
		return
	}

	delay := s.backoff.DelayFor(attempts)
	log.Infof("Delivery %s scheduled for retry in %s (attempt %d of %d).", rec.ID, delay, attempts, s.maxAttempts)
	s.retryEntry(log, d, delay)
}

func (s *DispatchServiceImpl) ackEntry(log *logrus.Entry, d queue.Delivery) {
	if err := d.Ack(); err != nil {
		log.Warnf("Failed to ack queue entry for delivery %s: %v", d.Message().DeliveryID, err)
	}
}

func (s *DispatchServiceImpl) retryEntry(log *logrus.Entry, d queue.Delivery, delay time.Duration) {
	if err := d.Retry(delay); err != nil {
		log.Warnf("Failed to schedule redelivery for delivery %s: %v", d.Message().DeliveryID, err)
	}
}

func (s *DispatchServiceImpl) deadLetter(ctx context.Context, log *logrus.Entry, d queue.Delivery) {
	if err := d.DeadLetter(ctx); err != nil {
		log.Errorf("Failed to dead-letter delivery %s: %v", d.Message().DeliveryID, err)
		s.retryEntry(log, d, infraRetryDelay)
		return
	}
	metrics.DeadLettered.Inc()
}
