package calls

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/nexahq/nexa-backend/internal/app/metrics"
	"github.com/nexahq/nexa-backend/internal/vapi"
	"github.com/nexahq/nexa-backend/pkg/logger"
)

// CallLister fetches recorded calls from the voice-agent platform.
type CallLister interface {
	ListCalls(ctx context.Context) ([]vapi.CallRecord, error)
}

// SyncReport summarizes one sync run.
type SyncReport struct {
	Total     int `json:"total_logs"`
	Processed int `json:"processed"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// Syncer pulls call logs from Vapi and feeds them through the calls service.
type Syncer struct {
	lister  CallLister
	calls   *Service
	workers int
	log     *logger.Logger
}

// NewSyncer constructs a syncer. workers bounds concurrent transcript
// processing; values below one collapse to serial processing.
func NewSyncer(lister CallLister, calls *Service, workers int, log *logger.Logger) *Syncer {
	if log == nil {
		log = logger.NewDefault("call-sync")
	}
	if workers < 1 {
		workers = 1
	}
	return &Syncer{
		lister:  lister,
		calls:   calls,
		workers: workers,
		log:     log,
	}
}

// Sync fetches every available call record and ingests each one. Duplicates
// are counted as skipped; per-record failures are counted and logged without
// aborting the run.
func (s *Syncer) Sync(ctx context.Context) (SyncReport, error) {
	records, err := s.lister.ListCalls(ctx)
	if err != nil {
		metrics.RecordSyncRun("failed")
		return SyncReport{}, fmt.Errorf("list calls: %w", err)
	}

	report := SyncReport{Total: len(records)}
	if len(records) == 0 {
		metrics.RecordSyncRun("ok")
		return report, nil
	}

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, s.workers)
	)
	for _, record := range records {
		record := record
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			_, err := s.calls.HandleTranscript(ctx, record.Phone, record.Transcript)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				report.Processed++
			case errors.Is(err, ErrDuplicateCall):
				report.Skipped++
			default:
				report.Failed++
				s.log.WithContext(ctx).
					WithError(err).
					WithField("call_id", record.ID).
					Error("failed to process synced call log")
			}
		}()
	}
	wg.Wait()

	metrics.RecordSyncRun("ok")
	metrics.AddSyncProcessed(report.Processed)
	s.log.WithContext(ctx).
		WithField("total", report.Total).
		WithField("processed", report.Processed).
		WithField("skipped", report.Skipped).
		WithField("failed", report.Failed).
		Info("call log sync completed")
	return report, nil
}

// SyncRunner schedules periodic syncs. It implements the lifecycle Service
// interface.
type SyncRunner struct {
	syncer   *Syncer
	schedule string
	cron     *cron.Cron
	log      *logger.Logger
}

// NewSyncRunner builds a runner for a cron schedule (e.g. "@every 15m").
func NewSyncRunner(syncer *Syncer, schedule string, log *logger.Logger) *SyncRunner {
	if log == nil {
		log = logger.NewDefault("call-sync")
	}
	return &SyncRunner{
		syncer:   syncer,
		schedule: schedule,
		log:      log,
	}
}

// Name identifies the runner to the lifecycle manager.
func (r *SyncRunner) Name() string { return "call-sync" }

// Start registers the cron entry and begins scheduling.
func (r *SyncRunner) Start(ctx context.Context) error {
	c := cron.New()
	_, err := c.AddFunc(r.schedule, func() {
		if _, err := r.syncer.Sync(context.Background()); err != nil {
			r.log.WithError(err).Error("scheduled call log sync failed")
		}
	})
	if err != nil {
		return fmt.Errorf("schedule %q: %w", r.schedule, err)
	}

	r.cron = c
	c.Start()
	r.log.WithField("schedule", r.schedule).Info("call log sync scheduled")
	return nil
}

// Stop halts scheduling and waits for a running job to finish.
func (r *SyncRunner) Stop(ctx context.Context) error {
	if r.cron == nil {
		return nil
	}
	stopped := r.cron.Stop()
	select {
	case <-stopped.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
