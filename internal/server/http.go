package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"github.com/oggyb/luvo/internal/app"
	svcErr "github.com/oggyb/luvo/internal/errors"
	"github.com/oggyb/luvo/internal/locations"
	"github.com/oggyb/luvo/internal/service/admin"
	"github.com/oggyb/luvo/internal/service/auth"
	"github.com/oggyb/luvo/internal/service/battle"
	"github.com/oggyb/luvo/internal/service/feed"
	"github.com/oggyb/luvo/internal/service/interaction"
	"github.com/oggyb/luvo/internal/service/moderation"
	"github.com/oggyb/luvo/internal/service/photo"
	"github.com/oggyb/luvo/internal/service/profile"
	"github.com/oggyb/luvo/internal/service/social"
)

// Services is everything the HTTP handlers call into.
type Services struct {
	Auth         *auth.Service
	Profiles     *profile.Service
	Photos       *photo.Service
	Feed         *feed.Service
	Interactions *interaction.Service
	Battle       *battle.Service
	Social       *social.Service
	Admin        *admin.Service
	Locations    *locations.Tree
}

// NewServices wires the services on appCtx. mod is shared with the bot.
func NewServices(appCtx *app.AppContext, mod *moderation.Service, connector social.Connector) *Services {
	photos := photo.NewService(appCtx)
	return &Services{
		Auth:         auth.NewService(appCtx),
		Profiles:     profile.NewService(appCtx, photos, mod),
		Photos:       photos,
		Feed:         feed.NewService(appCtx),
		Interactions: interaction.NewService(appCtx),
		Battle:       battle.NewService(appCtx),
		Social:       social.NewService(appCtx, connector),
		Admin:        admin.NewService(appCtx),
		Locations:    locations.Default(),
	}
}

// HTTPServer is the public JSON API.
type HTTPServer struct {
	appCtx *app.AppContext
	svc    *Services
	health *Checker
	app    *fiber.App
}

func NewHTTPServer(appCtx *app.AppContext, svc *Services) *HTTPServer {
	limit := appCtx.Config.HTTP.BodyLimitMB
	if limit <= 0 {
		limit = 20
	}
	s := &HTTPServer{
		appCtx: appCtx,
		svc:    svc,
		health: NewChecker(appCtx),
	}
	s.app = fiber.New(fiber.Config{
		AppName:               "luvo",
		BodyLimit:             limit << 20,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          30 * time.Second,
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler(appCtx.Logger),
	})
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// App exposes the fiber app, mainly for app.Test in tests.
func (s *HTTPServer) App() *fiber.App { return s.app }

func (s *HTTPServer) Listen() error {
	addr := fmt.Sprintf("%s:%s", s.appCtx.Config.HTTP.Host, s.appCtx.Config.HTTP.Port)
	s.appCtx.Logger.Info("http listening", "addr", addr)
	return s.app.Listen(addr)
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *HTTPServer) setupMiddleware() {
	s.app.Use(recover.New())
	s.app.Use(requestid.New())
	s.app.Use(cors.New(cors.Config{
		AllowOrigins: s.appCtx.Config.HTTP.AllowedOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		MaxAge:       86400,
	}))
	s.app.Use(requestLogger(s.appCtx.Logger))
	s.appCtx.Metrics.Mount(s.app, "/metrics")
}

func (s *HTTPServer) setupRoutes() {
	s.app.Get("/ping", s.Ping)
	s.app.Get("/health", s.Health)
	s.app.Post("/auth", s.Login)

	loc := s.app.Group("/locations")
	loc.Get("/", s.LocationTree)
	loc.Get("/countries", s.Countries)
	loc.Get("/cities", s.Cities)
	loc.Get("/districts", s.Districts)

	adm := s.app.Group("/admin")
	adm.Post("/import-from-s3", s.ImportFromStorage)
	adm.Post("/reset-db", s.ResetDB)

	protected := s.app.Group("", s.authRequired())

	users := protected.Group("/users")
	users.Post("/", s.CreateProfile)
	users.Get("/me", s.MyProfile)
	users.Put("/me", s.UpdateProfile)
	users.Get("/:id", s.PublicProfile)

	protected.Get("/feed", s.Feed)

	in := protected.Group("/interactions")
	in.Get("/likes", s.IncomingLikes)
	in.Get("/likes/count", s.CountIncomingLikes)
	in.Get("/matches", s.Matches)
	in.Get("/top", s.Top)
	in.Post("/view/:user_id", s.View)
	in.Post("/like/:user_id", s.Like)
	in.Delete("/like/:user_id", s.Unlike)
	in.Post("/ignore/:user_id", s.Ignore)

	bt := protected.Group("/battle")
	bt.Get("/pair", s.BattlePair)
	bt.Post("/vote", s.BattleVote)
	bt.Get("/leaders", s.BattleLeaders)

	ph := protected.Group("/photos")
	ph.Post("/", s.UploadPhoto)
	ph.Get("/", s.ListPhotos)
	ph.Delete("/:id", s.DeletePhoto)

	protected.Post("/instagram/sync", s.InstagramSync)
}

// errorHandler renders domain errors as {"detail": msg} with the mapped status.
func errorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(fiber.Map{"detail": fe.Message})
		}
		status := svcErr.HTTPStatus(err)
		if status >= fiber.StatusInternalServerError {
			logger.Error("request error", "method", c.Method(), "path", c.Path(), "err", err)
		}
		return c.Status(status).JSON(fiber.Map{"detail": svcErr.PublicMessage(err)})
	}
}

func statusOf(c *fiber.Ctx, err error) int {
	if err == nil {
		return c.Response().StatusCode()
	}
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return svcErr.HTTPStatus(err)
}

// requestLogger emits one line per request.
func requestLogger(logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		fields := []any{
			slog.Int("status", statusOf(c, err)),
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.Duration("latency", time.Since(start)),
		}
		if uid := c.Locals(localUserID); uid != nil {
			fields = append(fields, slog.Any("user_id", uid))
		}
		if rid := c.Locals("requestid"); rid != nil {
			fields = append(fields, slog.Any("request_id", rid))
		}

		if err != nil {
			logger.Info("request failed", append(fields, slog.String("error", err.Error()))...)
		} else {
			logger.Info("request processed", fields...)
		}
		return err
	}
}
