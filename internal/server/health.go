package server

import (
	"context"
	"time"

	"github.com/oggyb/luvo/internal/app"
)

const (
	statusHealthy   = "healthy"
	statusUnhealthy = "unhealthy"
)

// Checker probes the backing stores.
type Checker struct {
	appCtx  *app.AppContext
	timeout time.Duration
}

func NewChecker(appCtx *app.AppContext) *Checker {
	return &Checker{appCtx: appCtx, timeout: 3 * time.Second}
}

// Check returns the status of each dependency and whether all are healthy.
func (h *Checker) Check(ctx context.Context) (map[string]string, bool) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	checks := map[string]string{"database": statusHealthy, "redis": statusHealthy}
	ok := true

	sqlDB, err := h.appCtx.DB.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		h.appCtx.Logger.Warn("database health check failed", "err", err)
		checks["database"] = statusUnhealthy
		ok = false
	}

	if h.appCtx.RedisCache == nil {
		checks["redis"] = "unavailable"
	} else if err := h.appCtx.RedisCache.Ping(ctx); err != nil {
		h.appCtx.Logger.Warn("redis health check failed", "err", err)
		checks["redis"] = statusUnhealthy
		ok = false
	}
	return checks, ok
}
