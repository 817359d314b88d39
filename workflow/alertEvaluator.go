package workflow

import (
	"context"

	"bitbucket.org/mmdatafocus/construction_backend/config"
	"bitbucket.org/mmdatafocus/construction_backend/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

// AlertPublisher fans persisted alerts out to other services.
type AlertPublisher interface {
	PublishBudgetAlert(ctx context.Context, alert models.BudgetAlert) error
}

type AlertEvaluator struct {
	db        *gorm.DB
	publisher AlertPublisher
	cache     *summaryCache
	logger    *logrus.Logger
}

// NewAlertEvaluator; publisher and rdb are optional.
func NewAlertEvaluator(db *gorm.DB, publisher AlertPublisher, rdb *redis.Client, logger *logrus.Logger) *AlertEvaluator {
	return &AlertEvaluator{
		db:        db,
		publisher: publisher,
		cache:     &summaryCache{client: rdb, logger: logger},
		logger:    logger,
	}
}

// Evaluate runs the alert rules against summary, appends one alert row per firing rule
// and overwrites the summary's warning counters with this pass's result.
func (e *AlertEvaluator) Evaluate(ctx context.Context, summary *models.ProjectBudgetSummary) (drafts []models.BudgetAlertDraft, err error) {
	ctx, span := tracer.Start(ctx, "AlertEvaluator.Evaluate")
	span.SetAttributes(attribute.Int("project_id", summary.ProjectId))
	defer func() { endSpan(span, err) }()

	drafts = models.EvaluateBudgetRules(*summary)
	warnings, criticals := models.CountSeverities(drafts)

	var alerts []models.BudgetAlert
	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if alerts, err = models.CreateBudgetAlerts(tx, drafts); err != nil {
			return err
		}
		return models.UpdateSummaryWarnings(ctx, tx, summary.ProjectId, warnings, criticals)
	})
	if err != nil {
		return nil, err
	}

	summary.HasWarnings = warnings+criticals > 0
	summary.WarningCount = warnings
	summary.CriticalWarningCount = criticals
	e.cache.store(ctx, summary)

	if e.publisher != nil {
		for _, alert := range alerts {
			if pubErr := e.publisher.PublishBudgetAlert(ctx, alert); pubErr != nil {
				config.LogError(e.logger, "alertEvaluator.go", "Evaluate", "publish budget alert", alert, pubErr)
			}
		}
	}
	return drafts, nil
}
