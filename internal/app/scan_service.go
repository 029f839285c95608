// internal/app/scan_service.go
package app

import (
	"context"
	"fmt"
	"time"

	"birthday_notification_service/internal/domain/delivery"
	"birthday_notification_service/internal/domain/lock"
	"birthday_notification_service/internal/domain/queue"
	"birthday_notification_service/internal/domain/recipient"
	"birthday_notification_service/internal/domain/trigger"
	"birthday_notification_service/internal/infra/metrics"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

// ScanService defines the every-minute trigger scan.
type ScanService interface {
	// RunTick performs one scan: compute which timezones currently read the
	// target wall-clock time, register delivery records for recipients whose
	// birthday is observed there today, and enqueue each new record.
	RunTick(ctx context.Context) error
}

// ScanServiceImpl implements the ScanService interface.
type ScanServiceImpl struct {
	directory     recipient.Directory
	ledger        delivery.Ledger
	producer      queue.Producer
	locker        lock.Locker
	clock         clockwork.Clock
	logger        *logrus.Entry
	target        trigger.Target
	scanLockTTL   time.Duration
	createLockTTL time.Duration
}

func NewScanServiceImpl(
	directory recipient.Directory,
	ledger delivery.Ledger,
	producer queue.Producer,
	locker lock.Locker,
	clock clockwork.Clock,
	logger *logrus.Entry,
	target trigger.Target,
	scanLockTTL time.Duration,
	createLockTTL time.Duration,
) *ScanServiceImpl {
	return &ScanServiceImpl{
		directory:     directory,
		ledger:        ledger,
		producer:      producer,
		locker:        locker,
		clock:         clock,
		logger:        logger,
		target:        target,
		scanLockTTL:   scanLockTTL,
		createLockTTL: createLockTTL,
	}
}

func (s *ScanServiceImpl) RunTick(ctx context.Context) error {
	// 1. Global scan lock: at most one instance scans per tick. The lock is
	// released at the end of the run; its TTL only covers a crashed holder.
	acquired, err := s.locker.Acquire(ctx, lock.ScanKey(), s.scanLockTTL)
	if err != nil {
		return fmt.Errorf("failed to acquire scan lock: %w", err)
	}
	if !acquired {
		s.logger.Info("Scan lock held by another instance. Skipping tick.")
		metrics.ScanSkipped.Inc()
		return nil
	}
	defer func() {
		if err := s.locker.Release(ctx, lock.ScanKey()); err != nil {
			s.logger.Warnf("Failed to release scan lock: %v", err)
		}
	}()

	// 2. Find the timezones whose local clock reads the target right now.
	// Truncating to the minute pins every computation in this tick to the
	// same instant, which is also the scheduled-for instant of new records.
	now := s.clock.Now().UTC().Truncate(time.Minute)
	zones, err := s.directory.DistinctTimezones(ctx)
	if err != nil {
		return fmt.Errorf("failed to list recipient timezones: %w", err)
	}
	matches, unknown := trigger.MatchZones(now, zones, s.target)
	for _, zone := range unknown {
		s.logger.Warnf("Directory contains unrecognized timezone %q. Skipping it.", zone)
	}
	if len(matches) == 0 {
		metrics.ScanTicks.Inc()
		return nil
	}
	s.logger.Infof("Scan at %s matched %d timezone(s).", now.Format(time.RFC3339), len(matches))

	// 3. One directory query per observed local date, then one record per
	// recipient. Errors in one group or recipient never abort the others;
	// the reconciler picks up whatever a partial tick leaves behind.
	created := 0
	for _, group := range trigger.GroupByObservedDate(matches) {
		recipients, err := s.directory.FindByBirthday(ctx, group.Birthday.Month, group.Birthday.Day, group.Zones)
		if err != nil {
			s.logger.Errorf("Failed to query recipients born %02d-%02d across %d zone(s): %v",
				group.Birthday.Month, group.Birthday.Day, len(group.Zones), err)
			continue
		}
		for _, rcp := range recipients {
			ok, err := s.registerAndEnqueue(ctx, rcp, group.Year, now)
			if ok {
				created++
			}
			if err != nil {
				s.logger.Errorf("Failed to process birthday of recipient %d: %v", rcp.ID, err)
			}
		}
	}

	metrics.ScanTicks.Inc()
	if created > 0 {
		s.logger.Infof("Scan tick registered %d new delivery record(s).", created)
	}
	return nil
}

// registerAndEnqueue creates the delivery record for one (recipient, year)
// and publishes its queue entry. Returns true when a new record was created,
// even if a later step failed; such records stay pending for the reconciler.
func (s *ScanServiceImpl) registerAndEnqueue(ctx context.Context, rcp *recipient.Recipient, year int, scheduledFor time.Time) (bool, error) {
	// a. Per-recipient-per-year lock around the create+enqueue window.
	key := lock.BirthdayKey(rcp.ID, year)
	acquired, err := s.locker.Acquire(ctx, key, s.createLockTTL)
	if err != nil {
		return false, fmt.Errorf("failed to acquire creation lock: %w", err)
	}
	if !acquired {
		// Another instance is registering this recipient right now.
		return false, nil
	}
	defer func() {
		if err := s.locker.Release(ctx, key); err != nil {
			s.logger.Warnf("Failed to release creation lock %q: %v", key, err)
		}
	}()

	// b. Create-if-absent is the idempotency backstop: a record that already
	// exists for this (recipient, year) means nothing more to do here.
	rec, err := s.ledger.CreateIfAbsent(ctx, &delivery.Record{
		RecipientID:  rcp.ID,
		TargetYear:   year,
		ScheduledFor: scheduledFor,
	})
	if err != nil {
		return false, fmt.Errorf("failed to create delivery record: %w", err)
	}
	if rec == nil {
		return false, nil
	}
	metrics.RecordsCreated.Inc()

	// c. Publish the queue entry, then mark the record queued.
	msg := queue.Message{
		DeliveryID:  rec.ID,
		RecipientID: rcp.ID,
		Email:       rcp.Email,
		DisplayName: rcp.DisplayName,
	}
	if err := s.producer.Enqueue(ctx, msg); err != nil {
		// The record stays pending; the reconciler will re-enqueue it.
		return true, fmt.Errorf("failed to enqueue delivery %s: %w", rec.ID, err)
	}
	metrics.Enqueued.Inc()

	if err := s.ledger.MarkQueued(ctx, rec.ID); err != nil {
		// The entry is already on the queue. The worker accepts pending
		// records, so the stale status costs nothing.
		return true, fmt.Errorf("failed to mark delivery %s queued: %w", rec.ID, err)
	}
	return true, nil
}
