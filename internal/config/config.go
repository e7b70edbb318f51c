package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Log struct {
		Level     string
		Format    string
		Component string
		Source    bool
	}

	App struct {
		ENV       string
		WebAppURL string
	}

	DB struct {
		Driver   string
		DSN      string
		Host     string
		Port     string
		User     string
		Password string
		Name     string
		SQLDebug bool
	}

	Redis struct {
		Addr     string
		Password string
		DB       int
	}

	HTTP struct {
		Host        string
		Port        string
		BodyLimitMB int
		// AllowedOrigins is a comma separated CORS list.
		AllowedOrigins string
	}

	// GRPC is the ops listener (health + reflection).
	GRPC struct {
		Host string
		Port string
	}

	Auth struct {
		JWTSecret      string
		TokenTTL       time.Duration
		InitDataMaxAge time.Duration
	}

	Telegram struct {
		Enabled     bool
		BotToken    string
		AdminChatID int64
		Workers     int
		QueueSize   int
	}

	S3 struct {
		Bucket        string
		Region        string
		Endpoint      string
		AccessKey     string
		SecretKey     string
		PublicBaseURL string
		Timeout       time.Duration
		Workers       int
	}

	Instagram struct {
		ConnectorURL string
		Timeout      time.Duration
		SyncCron     string
	}

	Moderation struct {
		PlaceholderPhotoKey string
		PlaceholderName     string
		PlaceholderBio      string
	}

	Feed struct {
		DefaultLimit int
		MaxLimit     int
	}

	Photos struct {
		MaxPerUser int
	}

	Admin struct {
		PasswordHash string
	}

	Scheduler struct {
		PremiumSweepCron string
	}
}

// New builds the configuration from the environment. A .env file in the
// working directory is loaded first when present; real env vars win.
func New() *Config {
	_ = godotenv.Load()

	cfg := &Config{}

	// Logger
	cfg.Log.Level = getEnvDefault("LOG_LEVEL", "info")
	cfg.Log.Format = getEnvDefault("LOG_FORMAT", "text")
	cfg.Log.Component = getEnvDefault("LOG_COMPONENT", "luvo_api")
	cfg.Log.Source = isTruthy(os.Getenv("LOG_SOURCE"))

	cfg.App.ENV = getEnvDefault("APP_ENV", "development")
	cfg.App.WebAppURL = strings.TrimRight(getEnvDefault("WEBAPP_URL", "https://luvo.example.com"), "/")

	// Database
	cfg.DB.Driver = strings.ToLower(getEnvDefault("DB_DRIVER", "mysql"))
	cfg.DB.DSN = os.Getenv("DATABASE_DSN")
	cfg.DB.SQLDebug = isTruthy(os.Getenv("DB_SQL_DEBUG"))
	if cfg.DB.DSN == "" {
		cfg.DB.Host = getEnvDefault("DB_HOST", "localhost")
		cfg.DB.User = getEnvDefault("DB_USER", "root")
		cfg.DB.Password = getEnvDefault("DB_PASSWORD", "root")
		cfg.DB.Name = getEnvDefault("DB_NAME", "luvo")

		switch cfg.DB.Driver {
		case "postgres":
			cfg.DB.Port = getEnvDefault("DB_PORT", "5432")
			cfg.DB.DSN = fmt.Sprintf(
				"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
				cfg.DB.Host, cfg.DB.Port, cfg.DB.User, cfg.DB.Password, cfg.DB.Name,
				getEnvDefault("DB_SSLMODE", "disable"),
			)
		case "sqlite":
			cfg.DB.DSN = getEnvDefault("DB_PATH", "luvo.db")
		default:
			cfg.DB.Port = getEnvDefault("DB_PORT", "3306")
			cfg.DB.DSN = fmt.Sprintf(
				"%s:%s@tcp(%s:%s)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
				cfg.DB.User, cfg.DB.Password, cfg.DB.Host, cfg.DB.Port, cfg.DB.Name,
			)
		}
	}

	// Redis
	cfg.Redis.Addr = getEnvDefault("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnvDefault("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)

	// HTTP
	cfg.HTTP.Host = getEnvDefault("HTTP_HOST", "0.0.0.0")
	cfg.HTTP.Port = getEnvDefault("HTTP_PORT", "8080")
	cfg.HTTP.BodyLimitMB = getEnvInt("HTTP_BODY_LIMIT_MB", 20)
	cfg.HTTP.AllowedOrigins = getEnvDefault("HTTP_ALLOWED_ORIGINS", "*")

	// gRPC
	cfg.GRPC.Host = getEnvDefault("GRPC_HOST", "127.0.0.1")
	cfg.GRPC.Port = getEnvDefault("GRPC_PORT", "50051")

	// Auth
	cfg.Auth.JWTSecret = getEnvDefault("JWT_SECRET", "change-me-in-production")
	cfg.Auth.TokenTTL = getEnvDuration("JWT_TTL", 7*24*time.Hour)
	cfg.Auth.InitDataMaxAge = getEnvDuration("INIT_DATA_MAX_AGE", 24*time.Hour)

	// Telegram
	cfg.Telegram.BotToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	cfg.Telegram.Enabled = cfg.Telegram.BotToken != "" && !isFalsy(os.Getenv("TELEGRAM_ENABLED"))
	cfg.Telegram.AdminChatID = int64(getEnvInt("ADMIN_REVIEW_CHAT_ID", 0))
	cfg.Telegram.Workers = getEnvInt("NOTIFY_WORKERS", 4)
	cfg.Telegram.QueueSize = getEnvInt("NOTIFY_QUEUE_SIZE", 256)

	// S3
	cfg.S3.Bucket = getEnvDefault("AWS_S3_BUCKET_NAME", "luvo")
	cfg.S3.Region = getEnvDefault("AWS_S3_REGION", "ru-1")
	cfg.S3.Endpoint = os.Getenv("AWS_S3_ENDPOINT_URL")
	cfg.S3.AccessKey = os.Getenv("AWS_ACCESS_KEY_ID")
	cfg.S3.SecretKey = os.Getenv("AWS_SECRET_ACCESS_KEY")
	cfg.S3.PublicBaseURL = os.Getenv("S3_PUBLIC_BASE_URL")
	if cfg.S3.PublicBaseURL == "" && cfg.S3.Endpoint != "" {
		cfg.S3.PublicBaseURL = strings.TrimRight(cfg.S3.Endpoint, "/") + "/" + cfg.S3.Bucket
	}
	cfg.S3.Timeout = getEnvDuration("S3_TIMEOUT", 10*time.Second)
	cfg.S3.Workers = getEnvInt("S3_WORKERS", 8)

	// Instagram connector
	cfg.Instagram.ConnectorURL = os.Getenv("INSTAGRAM_CONNECTOR_URL")
	cfg.Instagram.Timeout = getEnvDuration("INSTAGRAM_TIMEOUT", 15*time.Second)
	cfg.Instagram.SyncCron = getEnvDefault("INSTAGRAM_SYNC_CRON", "0 0 4 * * *")

	// Moderation
	cfg.Moderation.PlaceholderPhotoKey = getEnvDefault("PLACEHOLDER_PHOTO_S3_KEY", "placeholders/hidden.jpg")
	cfg.Moderation.PlaceholderName = getEnvDefault("PLACEHOLDER_NAME", "Luvo user")
	cfg.Moderation.PlaceholderBio = getEnvDefault("PLACEHOLDER_BIO", "")

	// Feed / photos
	cfg.Feed.DefaultLimit = getEnvInt("FEED_DEFAULT_LIMIT", 10)
	cfg.Feed.MaxLimit = getEnvInt("FEED_MAX_LIMIT", 50)
	cfg.Photos.MaxPerUser = getEnvInt("MAX_PHOTOS", 6)

	cfg.Admin.PasswordHash = os.Getenv("ADMIN_PASSWORD_HASH")

	cfg.Scheduler.PremiumSweepCron = getEnvDefault("PREMIUM_SWEEP_CRON", "0 */15 * * * *")

	return cfg
}

func getEnvDefault(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func getEnvInt(k string, def int) int {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getEnvDuration(k string, def time.Duration) time.Duration {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "y", "on":
		return true
	}
	return false
}

func isFalsy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "0", "false", "no", "n", "off":
		return true
	}
	return false
}
