package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"candidate-dedup/internal/dedup"
	"candidate-dedup/internal/storage"
)

// Scheduler runs the full-tenant duplicate scan on a cron schedule,
// backfilling queue items for candidates ingested before detection existed.
type Scheduler struct {
	cron     *cron.Cron
	store    storage.Store
	queue    *dedup.QueueService
	log      *zap.Logger
	cronSpec string
	limit    int
}

func New(store storage.Store, queue *dedup.QueueService, log *zap.Logger, cronSpec string, limit int) *Scheduler {
	return &Scheduler{
		cron:     cron.New(),
		store:    store,
		queue:    queue,
		log:      log,
		cronSpec: cronSpec,
		limit:    limit,
	}
}

func (s *Scheduler) Start() error {
	if s.cronSpec == "" {
		s.log.Info("scheduled scan disabled (no cron spec)")
		return nil
	}
	if _, err := s.cron.AddFunc(s.cronSpec, s.runOnce); err != nil {
		return err
	}
	s.cron.Start()
	s.log.Info("scheduled scan enabled", zap.String("cron", s.cronSpec))
	return nil
}

// Stop waits for a running scan to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	tenants, err := s.store.Candidates().TenantIDs(ctx)
	if err != nil {
		s.log.Error("scheduled scan: list tenants", zap.Error(err))
		return
	}

	for _, tenant := range tenants {
		summary, err := s.queue.ScanAllCandidates(ctx, tenant, s.limit, true, "scheduled")
		if err != nil {
			s.log.Error("scheduled scan failed",
				zap.String("tenant_id", tenant), zap.Error(err))
			continue
		}
		s.log.Info("scheduled scan done",
			zap.String("tenant_id", tenant),
			zap.Int("candidates_scanned", summary.CandidatesScanned),
			zap.Int("items_added", summary.ItemsAdded))
	}
}
