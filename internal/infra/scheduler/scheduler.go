package scheduler

import (
	"context"
	"time"

	"birthday_notification_service/internal/app"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const (
	// scanJobTimeout keeps a scan inside its own minute: the next tick must
	// never find the previous one still running.
	scanJobTimeout      = 55 * time.Second
	reconcileJobTimeout = 4 * time.Minute
)

// PipelineScheduler drives the periodic parts of the pipeline: the
// every-minute trigger scan and the reconciliation sweep.
type PipelineScheduler struct {
	cronEngine        *cron.Cron
	scanSvc           app.ScanService
	reconcileSvc      app.ReconcileService
	logger            *logrus.Entry
	cronSpecScan      string
	cronSpecReconcile string
}

func NewPipelineScheduler(
	scanSvc app.ScanService,
	reconcileSvc app.ReconcileService,
	logger *logrus.Entry,
	cronSpecScan string, // e.g., "* * * * *" (every minute)
	cronSpecReconcile string, // e.g., "*/5 * * * *" (every 5 minutes)
) *PipelineScheduler {
	return &PipelineScheduler{
		cronEngine:        cron.New(cron.WithLocation(time.Local)), // Use server's local time for cron
		scanSvc:           scanSvc,
		reconcileSvc:      reconcileSvc,
		logger:            logger,
		cronSpecScan:      cronSpecScan,
		cronSpecReconcile: cronSpecReconcile,
	}
}

func (s *PipelineScheduler) Start() {
	s.logger.Info("Starting pipeline scheduler...")

	// Trigger scan, fires at the top of every minute
	_, err := s.cronEngine.AddFunc(s.cronSpecScan, func() {
		ctx, cancel := context.WithTimeout(context.Background(), scanJobTimeout)
		defer cancel()
		if err := s.scanSvc.RunTick(ctx); err != nil {
			s.logger.Errorf("Trigger scan failed: %v", err)
		}
	})
	if err != nil {
		s.logger.Fatalf("Could not add trigger scan cron job: %v", err)
	}

	// Reconciliation sweep
	_, err = s.cronEngine.AddFunc(s.cronSpecReconcile, func() {
		ctx, cancel := context.WithTimeout(context.Background(), reconcileJobTimeout)
		defer cancel()
		if err := s.reconcileSvc.RunSweep(ctx); err != nil {
			s.logger.Errorf("Reconciliation sweep failed: %v", err)
		}
	})
	if err != nil {
		s.logger.Fatalf("Could not add reconciliation cron job: %v", err)
	}

	s.cronEngine.Start()
	s.logger.Info("Pipeline scheduler started with jobs.")
}

func (s *PipelineScheduler) Stop() {
	s.logger.Info("Stopping pipeline scheduler...")
	ctx := s.cronEngine.Stop() // Stops the scheduler from adding new jobs, waits for running jobs.
	<-ctx.Done()               // Wait for graceful shutdown
	s.logger.Info("Pipeline scheduler gracefully stopped.")
}
