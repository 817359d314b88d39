package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/construction_backend/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const summaryCacheTTL = 10 * time.Minute

// summaryCache keeps the latest summary per project in redis.
// A nil client disables it; redis failures are logged and never fail the caller.
type summaryCache struct {
	client *redis.Client
	logger *logrus.Logger
}

func summaryCacheKey(projectId int) string {
	return fmt.Sprintf("budget_summary:%d", projectId)
}

func (c *summaryCache) get(ctx context.Context, projectId int) (*models.ProjectBudgetSummary, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}
	raw, err := c.client.Get(ctx, summaryCacheKey(projectId)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.WithField("project_id", projectId).Warn("budget summary cache read failed: " + err.Error())
		}
		return nil, false
	}
	var summary models.ProjectBudgetSummary
	if err := json.Unmarshal(raw, &summary); err != nil {
		c.logger.WithField("project_id", projectId).Warn("budget summary cache entry unreadable: " + err.Error())
		return nil, false
	}
	return &summary, true
}

func (c *summaryCache) store(ctx context.Context, summary *models.ProjectBudgetSummary) {
	if c == nil || c.client == nil || summary == nil {
		return
	}
	raw, err := json.Marshal(summary)
	if err != nil {
		c.logger.WithField("project_id", summary.ProjectId).Warn("budget summary cache encode failed: " + err.Error())
		return
	}
	if err := c.client.Set(ctx, summaryCacheKey(summary.ProjectId), raw, summaryCacheTTL).Err(); err != nil {
		c.logger.WithField("project_id", summary.ProjectId).Warn("budget summary cache write failed: " + err.Error())
	}
}

func (c *summaryCache) invalidate(ctx context.Context, projectId int) {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Del(ctx, summaryCacheKey(projectId)).Err(); err != nil {
		c.logger.WithField("project_id", projectId).Warn("budget summary cache delete failed: " + err.Error())
	}
}
