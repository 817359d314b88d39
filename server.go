package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bitbucket.org/mmdatafocus/construction_backend/config"
	"bitbucket.org/mmdatafocus/construction_backend/models"
	"bitbucket.org/mmdatafocus/construction_backend/workflow"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func main() {
	settings := config.LoadSettings()
	logger := config.NewLogger(settings.LogLevel)
	if settings.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Cloud Run sends SIGTERM on revision shutdown; handle it for graceful drain.
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	db, err := config.ConnectDatabaseWithRetry(settings, 10)
	if err != nil {
		logger.WithFields(logrus.Fields{"field": "database"}).Fatal(err.Error())
	}
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()

	if !settings.SkipMigrations {
		if err := models.MigrateTable(db); err != nil {
			logger.WithFields(logrus.Fields{"field": "migrations"}).Fatal(err.Error())
		}
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	// Redis is optional: without it there is no summary cache and no issuance lock.
	rdb, locks, err := config.ConnectRedisWithRetry(sigCtx, settings, 5)
	if err != nil {
		logger.WithFields(logrus.Fields{"field": "redis"}).Warn("running without redis: " + err.Error())
		rdb, locks = nil, nil
	}
	defer func() {
		if rdb != nil {
			_ = rdb.Close()
		}
	}()

	var publisher workflow.AlertPublisher
	psClient, err := config.NewPubSubClient(sigCtx, settings)
	if err != nil {
		logger.WithFields(logrus.Fields{"field": "pubsub"}).Warn("budget alerts will not be published: " + err.Error())
	} else if psClient != nil {
		defer psClient.Close()
		topic, err := config.CreateTopicIfNotExists(sigCtx, psClient, settings.BudgetAlertTopic)
		if err != nil {
			logger.WithFields(logrus.Fields{"field": "pubsub"}).Warn("budget alerts will not be published: " + err.Error())
		} else {
			defer topic.Stop()
			publisher = workflow.NewPubSubAlertPublisher(topic)
		}
	}

	app := NewApp(db, rdb, locks, publisher, settings, logger)
	srv := &http.Server{
		Addr:              ":" + settings.Port,
		Handler:           NewRouter(app),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		// ListenAndServe returns http.ErrServerClosed on graceful shutdown.
		serverErrCh <- srv.ListenAndServe()
	}()
	logger.WithFields(logrus.Fields{"info": "Connection Established"}).Info("listening on :" + settings.Port)

	select {
	case <-sigCtx.Done():
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	// Drain HTTP requests.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}
}
