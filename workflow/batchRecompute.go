package workflow

import (
	"context"
	"sync"

	"bitbucket.org/mmdatafocus/construction_backend/models"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

type BatchResult struct {
	ProjectId int
	Alerts    int
	Err       error
}

// RecomputeProjects rebuilds the summaries of projectIds (all projects when empty)
// with at most concurrency workers. A failing project does not stop the others;
// only context cancellation aborts the batch.
func RecomputeProjects(ctx context.Context, db *gorm.DB, refresher *BudgetRefresher, projectIds []int, concurrency int, evaluate bool) ([]BatchResult, error) {
	if len(projectIds) == 0 {
		if err := db.WithContext(ctx).Model(&models.Project{}).Order("id").Pluck("id", &projectIds).Error; err != nil {
			return nil, err
		}
	}
	if concurrency < 1 {
		concurrency = 1
	}

	results := make([]BatchResult, len(projectIds))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, projectId := range projectIds {
		i, projectId := i, projectId
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			result := BatchResult{ProjectId: projectId}
			if evaluate {
				_, drafts, err := refresher.Refresh(gctx, projectId)
				result.Alerts = len(drafts)
				result.Err = err
			} else {
				_, result.Err = refresher.aggregator.Recompute(gctx, projectId)
			}
			mu.Lock()
			results[i] = result
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}
