// Package dbtest opens isolated in-memory databases for tests.
package dbtest

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/oggyb/luvo/internal/cache"
	"github.com/oggyb/luvo/internal/config"
	"github.com/oggyb/luvo/internal/db"
)

// New spins up an in-memory SQLite DB named after the test and applies
// migrations. Each test gets its own isolated DB.
func New(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	database, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		NowFunc:        func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}

	sqlDB, err := database.DB()
	if err != nil {
		t.Fatalf("failed to get sql db: %v", err)
	}
	// one connection keeps shared-cache sqlite free of table locks
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := db.Migrate(database); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return database
}

// Redis starts a miniredis instance and returns a cache bound to it.
func Redis(t *testing.T) (*cache.RedisCache, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	cfg := &config.Config{}
	cfg.Redis.Addr = mr.Addr()
	rc := cache.NewRedisCache(cfg)
	t.Cleanup(func() { _ = rc.Client.Close() })
	return rc, mr
}

// Profile is a completed profile ready to insert.
func Profile(tgID int64, name, gender string) db.User {
	birth := time.Date(1998, 5, 17, 0, 0, 0, 0, time.UTC)
	return db.User{
		TelegramUserID: tgID,
		FirstName:      name,
		Birthdate:      &birth,
		Gender:         gender,
	}
}

// CreateUsers inserts users and fails the test on error.
func CreateUsers(t *testing.T, database *gorm.DB, users ...*db.User) {
	t.Helper()
	for _, u := range users {
		if err := database.Create(u).Error; err != nil {
			t.Fatalf("failed to create user: %v", err)
		}
	}
}
