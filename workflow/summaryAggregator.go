package workflow

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/construction_backend/models"
	"bitbucket.org/mmdatafocus/construction_backend/utils"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

// SummaryAggregator rebuilds the per-project budget summary from the ledger.
type SummaryAggregator struct {
	db     *gorm.DB
	cache  *summaryCache
	logger *logrus.Logger
	now    func() time.Time
}

// NewSummaryAggregator; rdb may be nil to run without the summary cache.
func NewSummaryAggregator(db *gorm.DB, rdb *redis.Client, logger *logrus.Logger) *SummaryAggregator {
	return &SummaryAggregator{
		db:     db,
		cache:  &summaryCache{client: rdb, logger: logger},
		logger: logger,
		now:    time.Now,
	}
}

// Recompute derives the summary from current state and upserts it.
// Either every derived column is written or an AggregationError is returned and the stored row is untouched.
func (a *SummaryAggregator) Recompute(ctx context.Context, projectId int) (summary *models.ProjectBudgetSummary, err error) {
	ctx, span := tracer.Start(ctx, "SummaryAggregator.Recompute")
	span.SetAttributes(attribute.Int("project_id", projectId))
	defer func() { endSpan(span, err) }()

	var result models.ProjectBudgetSummary
	err = a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		snapshot, err := models.LoadBudgetSnapshot(ctx, tx, projectId)
		if err != nil {
			return err
		}
		result = models.CalculateProjectBudgetSummary(*snapshot, a.now())
		return models.UpsertProjectBudgetSummary(ctx, tx, &result)
	})
	if err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) {
			a.cache.invalidate(ctx, projectId)
			return nil, err
		}
		return nil, &utils.AggregationError{ProjectId: projectId, Err: err}
	}
	a.cache.store(ctx, &result)
	return &result, nil
}

// GetSummary serves the cached summary, then the stored row, and recomputes only when neither exists.
func (a *SummaryAggregator) GetSummary(ctx context.Context, projectId int) (*models.ProjectBudgetSummary, error) {
	if cached, ok := a.cache.get(ctx, projectId); ok {
		return cached, nil
	}
	summary, err := models.GetProjectBudgetSummary(ctx, a.db, projectId)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return a.Recompute(ctx, projectId)
	}
	if err != nil {
		return nil, err
	}
	a.cache.store(ctx, summary)
	return summary, nil
}
