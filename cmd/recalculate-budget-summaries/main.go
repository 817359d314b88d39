package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"bitbucket.org/mmdatafocus/construction_backend/config"
	"bitbucket.org/mmdatafocus/construction_backend/models"
	"bitbucket.org/mmdatafocus/construction_backend/workflow"
	"github.com/sirupsen/logrus"
)

func main() {
	projectIDs := flag.String("project-ids", "", "Optional: comma separated project ids. If empty, recalculates all projects.")
	concurrency := flag.Int("concurrency", 4, "Number of projects recalculated in parallel")
	evaluate := flag.Bool("evaluate", false, "Also evaluate alert rules (appends alert rows)")
	flag.Parse()

	ids, err := parseIDs(*projectIDs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid -project-ids: %v\n", err)
		os.Exit(2)
	}

	settings := config.LoadSettings()
	logger := config.NewLogger(settings.LogLevel)
	ctx := context.Background()

	db, err := config.ConnectDatabaseWithRetry(settings, 5)
	if err != nil {
		fmt.Fprintf(os.Stderr, "database: %v\n", err)
		os.Exit(1)
	}
	if !settings.SkipMigrations {
		if err := models.MigrateTable(db); err != nil {
			fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
			os.Exit(1)
		}
	}
	rdb, _, err := config.ConnectRedisWithRetry(ctx, settings, 3)
	if err != nil {
		logger.Warn("running without summary cache: " + err.Error())
		rdb = nil
	}

	refresher := workflow.NewBudgetRefresher(
		workflow.NewSummaryAggregator(db, rdb, logger),
		workflow.NewAlertEvaluator(db, nil, rdb, logger),
	)
	results, err := workflow.RecomputeProjects(ctx, db, refresher, ids, *concurrency, *evaluate)
	if err != nil {
		fmt.Fprintf(os.Stderr, "batch aborted: %v\n", err)
		os.Exit(1)
	}

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			config.LogError(logger, "recalculate-budget-summaries", "main", "recompute project", r.ProjectId, r.Err)
			continue
		}
		logger.WithFields(logrus.Fields{"project_id": r.ProjectId, "alerts": r.Alerts}).Info("budget summary recalculated")
	}
	fmt.Printf("recalculated %d project(s), %d failed\n", len(results)-failed, failed)
	if failed > 0 {
		os.Exit(1)
	}
}

func parseIDs(csv string) ([]int, error) {
	var ids []int
	for _, part := range strings.Split(csv, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.Atoi(part)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("bad project id %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
