// Package dbtest opens a migrated throwaway database for service tests.
package dbtest

import (
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/fatflowers/lingobill/internal/platform/db"
	gormzap "github.com/fatflowers/lingobill/pkg/gormlog"
)

// Open returns a gorm handle on a fresh SQLite file under t.TempDir() with
// every service table migrated. The pool is limited to one connection, so
// code running inside a transaction must issue all queries through the tx.
func Open(t *testing.T) *gorm.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "lingobill.db")
	gdb, err := gorm.Open(sqlite.Open(path+"?_pragma=busy_timeout(5000)"), &gorm.Config{
		Logger:         gormzap.NewWithLevel(zap.NewNop().Sugar(), logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(zap.NewNop().Sugar(), gdb))
	return gdb
}

// Logger is a no-op sugared logger for services under test.
func Logger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
