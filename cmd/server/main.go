package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/oggyb/luvo/internal/app"
	"github.com/oggyb/luvo/internal/bot"
	"github.com/oggyb/luvo/internal/cache"
	"github.com/oggyb/luvo/internal/config"
	"github.com/oggyb/luvo/internal/db"
	"github.com/oggyb/luvo/internal/logger"
	"github.com/oggyb/luvo/internal/metrics"
	"github.com/oggyb/luvo/internal/notify"
	"github.com/oggyb/luvo/internal/scheduler"
	"github.com/oggyb/luvo/internal/server"
	"github.com/oggyb/luvo/internal/service/moderation"
	"github.com/oggyb/luvo/internal/service/social"
	"github.com/oggyb/luvo/internal/storage"
)

func main() {
	cfg := config.New()

	// Init logger (global singleton)
	logger.InitFromConfig(cfg)
	log := logger.L()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Init DB
	database, err := db.NewDB(cfg)
	if err != nil {
		log.Error("failed to init db", "err", err)
		os.Exit(1)
	}

	// Init Redis
	redisCache := cache.NewRedisCache(cfg)
	if err := redisCache.Ping(ctx); err != nil {
		log.Error("failed to connect to redis", "err", err)
		os.Exit(1)
	}

	m := metrics.New(cfg.Log.Component)

	s3, err := storage.NewS3(ctx, cfg)
	if err != nil {
		log.Error("failed to init object storage", "err", err)
		os.Exit(1)
	}
	opts := []app.Option{
		app.WithMetrics(m),
		app.WithStorage(storage.NewPool(s3, cfg.S3.Workers, cfg.S3.Timeout, m)),
	}

	var (
		api        *tgbotapi.BotAPI
		dispatcher *notify.Dispatcher
	)
	if cfg.Telegram.Enabled {
		api, err = tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
		if err != nil {
			log.Error("failed to init telegram bot", "err", err)
			os.Exit(1)
		}
		dispatcher = notify.NewDispatcher(api, cfg.App.WebAppURL, cfg.Telegram.Workers, cfg.Telegram.QueueSize,
			logger.Component("notify"), m)
		dispatcher.Start()
		opts = append(opts, app.WithNotifier(dispatcher))
	}

	// Inject logger into app context
	appCtx := app.New(cfg, database, redisCache, log, opts...)

	if cfg.App.ENV == "development" {
		if err := db.SeedTestData(database); err != nil {
			log.Error("failed to seed", "err", err)
		}
	}

	mod := moderation.NewService(appCtx)
	if api != nil {
		b := bot.New(api, mod, cfg.Telegram.AdminChatID, cfg.App.WebAppURL, logger.Component("bot"))
		mod.SetPublisher(b)

		u := tgbotapi.NewUpdate(0)
		u.Timeout = 60
		updates := api.GetUpdatesChan(u)
		go b.Run(ctx, updates)
	} else {
		log.Warn("telegram disabled: notifications and moderation bot are off")
	}

	svc := server.NewServices(appCtx, mod, social.NewHTTPConnector(cfg.Instagram.ConnectorURL, cfg.Instagram.Timeout))

	jobs := scheduler.New(appCtx)
	if err := jobs.RegisterDefaults(svc.Social); err != nil {
		log.Error("failed to register jobs", "err", err)
		os.Exit(1)
	}
	jobs.Start()

	ops := server.NewOpsServer(appCtx)
	go func() {
		if err := ops.Serve(ctx); err != nil {
			log.Error("ops grpc server stopped", "err", err)
		}
	}()

	httpSrv := server.NewHTTPServer(appCtx, svc)
	errCh := make(chan error, 1)
	go func() { errCh <- httpSrv.Listen() }()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Error("http server stopped", "err", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
	if api != nil {
		api.StopReceivingUpdates()
	}
	jobs.Stop()
	ops.Stop()
	if dispatcher != nil {
		dispatcher.Stop()
	}
	if err := redisCache.Client.Close(); err != nil {
		log.Warn("redis close failed", "err", err)
	}
	if sqlDB, err := database.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info("bye")
}
