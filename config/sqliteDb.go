package config

import (
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

const (
	sqliteMaxOpenConns = 8
	// WAL lets readers run beside the single writer; immediate transactions take the
	// write lock at BEGIN so a read-then-write transaction never fails on a stale snapshot.
	sqliteFileOptions = "_pragma=journal_mode(WAL)&_pragma=busy_timeout(10000)&_txlock=immediate"
)

// ConnectSQLite opens a pure-Go SQLite database.
// An empty dsn is a private in-memory database; the pool is pinned to one connection
// so every caller sees the same data. A file path gets WAL mode, a busy timeout and
// several connections. A dsn that already carries query options is used as given.
// SQLite has no row locks, so FOR UPDATE clauses are dropped by the dialect.
func ConnectSQLite(dsn string) (*gorm.DB, error) {
	memory := dsn == "" || dsn == ":memory:"
	if dsn == "" {
		dsn = ":memory:"
	}
	if !memory && !strings.Contains(dsn, "?") {
		dsn += "?" + sqliteFileOptions
	}
	db, err := gorm.Open(sqlite.Open(dsn), InitConfig())
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if memory {
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(sqliteMaxOpenConns)
	}
	return db, nil
}
