package main

import (
	"errors"
	"net/http"
	"strconv"

	"bitbucket.org/mmdatafocus/construction_backend/config"
	"bitbucket.org/mmdatafocus/construction_backend/utils"
	"bitbucket.org/mmdatafocus/construction_backend/workflow"
	"github.com/bsm/redislock"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// App wires the budget components together for the HTTP handlers.
type App struct {
	db         *gorm.DB
	logger     *logrus.Logger
	settings   config.Settings
	ledger     *workflow.BudgetLedger
	aggregator *workflow.SummaryAggregator
	refresher  *workflow.BudgetRefresher
	issuer     *workflow.DocumentIssuer
}

// NewApp builds the component graph. rdb, locks and publisher are optional.
func NewApp(db *gorm.DB, rdb *redis.Client, locks *redislock.Client, publisher workflow.AlertPublisher, settings config.Settings, logger *logrus.Logger) *App {
	aggregator := workflow.NewSummaryAggregator(db, rdb, logger)
	evaluator := workflow.NewAlertEvaluator(db, publisher, rdb, logger)
	refresher := workflow.NewBudgetRefresher(aggregator, evaluator)
	ledger := workflow.NewBudgetLedger(db, refresher, logger, settings.ExtractionReviewCutoff)

	var locker workflow.IssuanceLocker
	if locks != nil {
		locker = workflow.NewRedisIssuanceLocker(locks, logger)
	}
	return &App{
		db:         db,
		logger:     logger,
		settings:   settings,
		ledger:     ledger,
		aggregator: aggregator,
		refresher:  refresher,
		issuer:     workflow.NewDocumentIssuer(db, ledger, refresher, locker, logger),
	}
}

// respondError maps the error taxonomy onto status codes.
func respondError(c *gin.Context, logger *logrus.Logger, funcName string, err error) {
	var (
		validationErr  *utils.ValidationError
		conflictErr    *utils.ConflictError
		allocationErr  *utils.AllocationError
		aggregationErr *utils.AggregationError
	)
	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Message})
	case errors.As(err, &conflictErr):
		c.JSON(http.StatusConflict, gin.H{"error": conflictErr.Message})
	case errors.Is(err, utils.ErrorRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &allocationErr):
		config.LogError(logger, "app.go", funcName, "sequence allocation", allocationErr.Scope, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "document number could not be allocated, retry the request"})
	case errors.As(err, &aggregationErr):
		config.LogError(logger, "app.go", funcName, "budget summary recompute", aggregationErr.ProjectId, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "budget summary could not be recalculated"})
	default:
		config.LogError(logger, "app.go", funcName, "request failed", c.Request.URL.Path, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func paramId(c *gin.Context, name string) (int, error) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		return 0, utils.NewValidationError("invalid %s", name)
	}
	return id, nil
}

// itemParams reads the project and budget item ids of a nested item route.
func itemParams(c *gin.Context) (int, int, error) {
	projectId, err := paramId(c, "id")
	if err != nil {
		return 0, 0, err
	}
	itemId, err := paramId(c, "itemId")
	if err != nil {
		return 0, 0, err
	}
	return projectId, itemId, nil
}

func bindJSON(c *gin.Context, dest interface{}) error {
	if err := c.ShouldBindJSON(dest); err != nil {
		return utils.NewValidationError("invalid request: %v", err)
	}
	return nil
}
