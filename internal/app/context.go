package app

import (
	"log/slog"

	"gorm.io/gorm"

	"github.com/oggyb/luvo/internal/cache"
	"github.com/oggyb/luvo/internal/config"
	"github.com/oggyb/luvo/internal/metrics"
	"github.com/oggyb/luvo/internal/notify"
	"github.com/oggyb/luvo/internal/storage"
)

// AppContext holds shared dependencies (DB, Redis, Logger, etc.)
type AppContext struct {
	Config     *config.Config
	DB         *gorm.DB
	RedisCache *cache.RedisCache
	Logger     *slog.Logger
	Storage    storage.ObjectStore
	Notifier   notify.Notifier
	Metrics    *metrics.Metrics
}

// New creates a new AppContext. Storage defaults to an in-memory store,
// Notifier to a no-op and Metrics to a fresh registry.
func New(cfg *config.Config, db *gorm.DB, rdb *cache.RedisCache, logger *slog.Logger, opts ...Option) *AppContext {
	a := &AppContext{
		Config:     cfg,
		DB:         db,
		RedisCache: rdb,
		Logger:     logger,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.Storage == nil {
		a.Storage = storage.NewMemory(cfg.S3.PublicBaseURL)
	}
	if a.Notifier == nil {
		a.Notifier = notify.Nop{Logger: logger}
	}
	if a.Metrics == nil {
		a.Metrics = metrics.New(cfg.Log.Component)
	}
	return a
}

type Option func(*AppContext)

func WithStorage(s storage.ObjectStore) Option { return func(a *AppContext) { a.Storage = s } }

func WithNotifier(n notify.Notifier) Option { return func(a *AppContext) { a.Notifier = n } }

func WithMetrics(m *metrics.Metrics) Option { return func(a *AppContext) { a.Metrics = m } }
