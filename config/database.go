package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

// ConnectDatabaseWithRetry opens the MySQL connection, retrying with backoff
// until it succeeds or maxAttempts is reached (0 = retry forever).
func ConnectDatabaseWithRetry(s Settings, maxAttempts int) (*gorm.DB, error) {
	if s.DBDriver == "sqlite" {
		return ConnectSQLite(s.DBName)
	}
	network := "tcp"
	address := fmt.Sprintf("%s:%s", s.DBHost, s.DBPort)

	// Cloud Run + Cloud SQL: when DB_HOST is "/cloudsql/<CONNECTION_NAME>",
	// connect using a Unix domain socket provided by Cloud SQL Auth Proxy.
	if strings.HasPrefix(s.DBHost, "/cloudsql/") {
		network = "unix"
		address = s.DBHost
	}

	databaseConfig := fmt.Sprintf("%s:%s@%s(%s)/%s?multiStatements=true&parseTime=true",
		s.DBUser,
		s.DBPassword,
		network,
		address,
		s.DBName,
	)

	var attempt int
	for {
		attempt++
		db, err := gorm.Open(mysql.Open(databaseConfig), InitConfig())
		if err == nil {
			if sqlDB, derr := db.DB(); derr == nil && sqlDB != nil {
				maxOpen := s.DBMaxOpenConns
				maxIdle := s.DBMaxIdleConns
				connMaxLife := time.Duration(s.DBConnMaxLifetimeSeconds) * time.Second
				connMaxIdle := time.Duration(s.DBConnMaxIdleTimeSeconds) * time.Second

				if maxOpen > 0 {
					sqlDB.SetMaxOpenConns(maxOpen)
				}
				if maxIdle >= 0 {
					sqlDB.SetMaxIdleConns(maxIdle)
				}
				if connMaxLife > 0 {
					sqlDB.SetConnMaxLifetime(connMaxLife)
				}
				if connMaxIdle > 0 {
					sqlDB.SetConnMaxIdleTime(connMaxIdle)
				}
			}

			if pluginErr := db.Use(otelgorm.NewPlugin()); pluginErr != nil {
				log.Printf("db connected but failed to install otelgorm plugin: %v", pluginErr)
			}
			log.Printf("connected to database (attempt=%d)", attempt)
			return db, nil
		}

		if maxAttempts > 0 && attempt >= maxAttempts {
			return nil, fmt.Errorf("failed to connect database after %d attempts: %w", attempt, err)
		}
		sleep := backoff(attempt)
		log.Printf("failed to connect database (attempt=%d): %v; retrying in %s", attempt, err, sleep)
		time.Sleep(sleep)
	}
}

func backoff(attempt int) time.Duration {
	sleep := time.Second * time.Duration(1<<min(attempt, 5))
	if sleep > 30*time.Second {
		sleep = 30 * time.Second
	}
	return sleep
}

// InitConfig is shared by the MySQL connection and the SQLite test databases.
func InitConfig() *gorm.Config {
	return &gorm.Config{
		Logger:         initLog(),
		NamingStrategy: initNamingStrategy(),
	}
}

// InitLog Connection Log Configuration
func initLog() logger.Interface {
	newLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags), // Output to standard output
		logger.Config{
			Colorful:                  false,
			LogLevel:                  logger.Error, // Adjust log level as needed
			SlowThreshold:             time.Second,
			IgnoreRecordNotFoundError: true,
		},
	)
	return newLogger
}

// InitNamingStrategy Init NamingStrategy
func initNamingStrategy() *schema.NamingStrategy {
	return &schema.NamingStrategy{
		SingularTable: false,
		TablePrefix:   "",
	}
}
