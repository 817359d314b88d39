package workflow

import (
	"context"

	"bitbucket.org/mmdatafocus/construction_backend/models"
)

// BudgetNotifier is told whenever a project's budget inputs change.
type BudgetNotifier interface {
	BudgetChanged(ctx context.Context, projectId int) error
}

// BudgetRefresher recomputes the summary and then evaluates alerts against it.
type BudgetRefresher struct {
	aggregator *SummaryAggregator
	evaluator  *AlertEvaluator
}

func NewBudgetRefresher(aggregator *SummaryAggregator, evaluator *AlertEvaluator) *BudgetRefresher {
	return &BudgetRefresher{aggregator: aggregator, evaluator: evaluator}
}

func (r *BudgetRefresher) BudgetChanged(ctx context.Context, projectId int) error {
	_, _, err := r.Refresh(ctx, projectId)
	return err
}

func (r *BudgetRefresher) Refresh(ctx context.Context, projectId int) (*models.ProjectBudgetSummary, []models.BudgetAlertDraft, error) {
	summary, err := r.aggregator.Recompute(ctx, projectId)
	if err != nil {
		return nil, nil, err
	}
	drafts, err := r.evaluator.Evaluate(ctx, summary)
	if err != nil {
		return summary, nil, err
	}
	return summary, drafts, nil
}
