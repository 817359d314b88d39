package models

import (
	"context"
	"path/filepath"
	"testing"

	"bitbucket.org/mmdatafocus/construction_backend/config"
	"bitbucket.org/mmdatafocus/construction_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := config.ConnectSQLite("")
	require.NoError(t, err)
	db.Logger = logger.Discard
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, MigrateTable(db))
	return db
}

// newFileTestDB opens a WAL database file with several connections and deferred
// transactions, so concurrent callers really interleave their statements.
func newFileTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "construction.db") + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(10000)"
	db, err := config.ConnectSQLite(dsn)
	require.NoError(t, err)
	db.Logger = logger.Discard
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, MigrateTable(db))
	return db
}

func testContext() context.Context {
	return utils.SetPrincipalInContext(context.Background(), utils.Principal{ID: 7, Name: "Site Manager", Role: string(UserRoleManager)})
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func intPtr(i int) *int { return &i }
