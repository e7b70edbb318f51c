// Package apptest wires an AppContext on in-memory backends for tests.
package apptest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/oggyb/luvo/internal/app"
	"github.com/oggyb/luvo/internal/config"
	"github.com/oggyb/luvo/internal/db/dbtest"
	"github.com/oggyb/luvo/internal/logger"
	"github.com/oggyb/luvo/internal/metrics"
	"github.com/oggyb/luvo/internal/notify"
	"github.com/oggyb/luvo/internal/storage"
)

// Note is one recorded notification.
type Note struct {
	TelegramUserID int64
	Kind           notify.Kind
}

// Recorder is a Notifier that keeps every call.
type Recorder struct {
	mu    sync.Mutex
	notes []Note
}

func (r *Recorder) Notify(_ context.Context, telegramUserID int64, kind notify.Kind) {
	r.mu.Lock()
	r.notes = append(r.notes, Note{TelegramUserID: telegramUserID, Kind: kind})
	r.mu.Unlock()
}

func (r *Recorder) Notes() []Note {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Note(nil), r.notes...)
}

// Env bundles the context with the fakes behind it.
type Env struct {
	*app.AppContext
	Store    *storage.Memory
	Recorder *Recorder
}

// Config returns a config with test-friendly values.
func Config() *config.Config {
	cfg := &config.Config{}
	cfg.Log.Component = "test"
	cfg.App.ENV = "test"
	cfg.App.WebAppURL = "https://app.test"
	cfg.Auth.JWTSecret = "test-secret"
	cfg.Auth.TokenTTL = time.Hour
	cfg.Auth.InitDataMaxAge = 24 * time.Hour
	cfg.Telegram.BotToken = "123456:TEST"
	cfg.S3.PublicBaseURL = "https://cdn.test/luvo"
	cfg.Moderation.PlaceholderPhotoKey = "placeholders/hidden.jpg"
	cfg.Moderation.PlaceholderName = "Luvo user"
	cfg.Feed.DefaultLimit = 10
	cfg.Feed.MaxLimit = 50
	cfg.Photos.MaxPerUser = 6
	return cfg
}

// New returns an Env on sqlite, miniredis and an in-memory store.
func New(t *testing.T) *Env {
	t.Helper()

	cfg := Config()
	gdb := dbtest.New(t)
	rc, _ := dbtest.Redis(t)
	store := storage.NewMemory(cfg.S3.PublicBaseURL)
	rec := &Recorder{}

	ctx := app.New(cfg, gdb, rc, logger.Nop(),
		app.WithStorage(store),
		app.WithNotifier(rec),
		app.WithMetrics(metrics.New("test")),
	)
	return &Env{AppContext: ctx, Store: store, Recorder: rec}
}
