// Package testdb 为仓储/服务/接口测试提供内存 SQLite（纯 Go，无需 cgo 和 PostgreSQL）
package testdb

import (
	"testing"

	"GomafiaSync/internal/model"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// New 打开一个已迁移全部表的内存库，测试结束自动关闭
func New(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?_pragma=foreign_keys(1)"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// 每个连接都是独立的内存库，只保留一个连接；并发事务在连接池上排队
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(model.AllTables()...))
	return db
}
