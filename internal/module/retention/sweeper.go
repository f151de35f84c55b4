package retention

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ragpdf/server/internal/module/billing"
	"github.com/ragpdf/server/internal/module/document"
	"github.com/ragpdf/server/internal/shared/config"
	"github.com/ragpdf/server/internal/utils/metrics"
)

// OrgLister enumerates organizations to sweep.
type OrgLister interface {
	ListIDs(ctx context.Context) ([]uuid.UUID, error)
}

// PlanResolver resolves the effective plan of an organization.
type PlanResolver interface {
	PlanFor(ctx context.Context, orgID uuid.UUID) (string, error)
}

// Sweeper deletes documents that have aged out of their organization's
// history retention window. Plans with unlimited retention are skipped.
type Sweeper struct {
	orgs     OrgLister
	plans    PlanResolver
	catalog  *billing.Catalog
	docs     document.Repository
	store    document.ObjectStore
	metrics  *metrics.Metrics
	logger   *zap.Logger
	interval time.Duration
	batch    int
	now      func() time.Time
}

// NewSweeper creates a retention sweeper.
func NewSweeper(
	orgs OrgLister,
	plans PlanResolver,
	catalog *billing.Catalog,
	docs document.Repository,
	store document.ObjectStore,
	cfg config.RetentionConfig,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Sweeper {
	interval := cfg.SweepInterval
	if interval <= 0 {
		interval = time.Hour
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 100
	}

	return &Sweeper{
		orgs:     orgs,
		plans:    plans,
		catalog:  catalog,
		docs:     docs,
		store:    store,
		metrics:  m,
		logger:   logger,
		interval: interval,
		batch:    batch,
		now:      time.Now,
	}
}

// Run sweeps on a fixed interval until the context is canceled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("retention sweeper started",
		zap.Duration("interval", s.interval),
		zap.Int("batch_size", s.batch),
	)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("retention sweeper stopped")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one pass over all organizations and reports how many
// documents were deleted.
func (s *Sweeper) Sweep(ctx context.Context) int64 {
	start := s.now()

	orgIDs, err := s.orgs.ListIDs(ctx)
	if err != nil {
		s.logger.Error("list organizations for sweep", zap.Error(err))
		return 0
	}

	var deleted int64
	for _, orgID := range orgIDs {
		n, err := s.sweepOrg(ctx, orgID)
		if err != nil {
			s.logger.Error("sweep organization",
				zap.Error(err),
				zap.String("org_id", orgID.String()),
			)
			continue
		}
		deleted += n
	}

	if s.metrics != nil {
		s.metrics.RecordRetentionSweep(deleted, s.now().Sub(start))
	}
	if deleted > 0 {
		s.logger.Info("retention sweep complete",
			zap.Int64("deleted", deleted),
			zap.Int("orgs", len(orgIDs)),
		)
	}
	return deleted
}

func (s *Sweeper) sweepOrg(ctx context.Context, orgID uuid.UUID) (int64, error) {
	planID, err := s.plans.PlanFor(ctx, orgID)
	if err != nil {
		return 0, err
	}
	plan, err := s.catalog.GetPlan(planID)
	if err != nil {
		return 0, err
	}

	retention := plan.Limits.MaxHistoryRetentionDays
	if retention.IsUnlimited() {
		return 0, nil
	}
	cutoff := s.now().UTC().AddDate(0, 0, -int(retention.Int64()))

	var deleted int64
	for {
		docs, err := s.docs.ListOlderThan(ctx, orgID, cutoff, s.batch)
		if err != nil {
			return deleted, err
		}
		if len(docs) == 0 {
			return deleted, nil
		}

		ids := make([]uuid.UUID, len(docs))
		keys := make([]string, len(docs))
		for i, doc := range docs {
			ids[i] = doc.ID
			keys[i] = doc.StorageKey
		}

		if err := s.store.DeleteBatch(ctx, keys); err != nil {
			return deleted, err
		}
		if err := s.docs.DeleteBatch(ctx, ids); err != nil {
			return deleted, err
		}
		deleted += int64(len(docs))

		if len(docs) < s.batch {
			return deleted, nil
		}
	}
}
