package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNew_Defaults(t *testing.T) {
	t.Setenv("DB_DRIVER", "mysql")
	t.Setenv("DATABASE_DSN", "")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_PORT", "")
	t.Setenv("DB_USER", "")
	t.Setenv("DB_PASSWORD", "")
	t.Setenv("DB_NAME", "")
	t.Setenv("FEED_MAX_LIMIT", "")
	t.Setenv("MAX_PHOTOS", "")
	t.Setenv("TELEGRAM_BOT_TOKEN", "")

	cfg := New()

	assert.Equal(t, "root:root@tcp(db:3306)/luvo?parseTime=true&charset=utf8mb4&loc=UTC", cfg.DB.DSN)
	assert.Equal(t, 50, cfg.Feed.MaxLimit)
	assert.Equal(t, 6, cfg.Photos.MaxPerUser)
	assert.False(t, cfg.Telegram.Enabled)
	assert.Equal(t, 24*time.Hour, cfg.Auth.InitDataMaxAge)
}

func TestNew_PostgresDSN(t *testing.T) {
	t.Setenv("DB_DRIVER", "Postgres")
	t.Setenv("DATABASE_DSN", "")
	t.Setenv("DB_HOST", "pg")
	t.Setenv("DB_PORT", "")
	t.Setenv("DB_USER", "luvo")
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("DB_NAME", "luvo")
	t.Setenv("DB_SSLMODE", "")

	cfg := New()

	assert.Equal(t, "postgres", cfg.DB.Driver)
	assert.Equal(t, "host=pg port=5432 user=luvo password=secret dbname=luvo sslmode=disable TimeZone=UTC", cfg.DB.DSN)
}

func TestNew_ExplicitDSNWins(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DATABASE_DSN", "file::memory:")

	cfg := New()
	assert.Equal(t, "file::memory:", cfg.DB.DSN)
}

func TestNew_TelegramToggle(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("TELEGRAM_ENABLED", "off")
	assert.False(t, New().Telegram.Enabled)

	t.Setenv("TELEGRAM_ENABLED", "")
	assert.True(t, New().Telegram.Enabled)
}

func TestNew_S3PublicBaseURL(t *testing.T) {
	t.Setenv("AWS_S3_ENDPOINT_URL", "https://s3.example.com/")
	t.Setenv("AWS_S3_BUCKET_NAME", "photos")
	t.Setenv("S3_PUBLIC_BASE_URL", "")

	assert.Equal(t, "https://s3.example.com/photos", New().S3.PublicBaseURL)
}

func TestEnvParsersFallBack(t *testing.T) {
	t.Setenv("X_INT", "nope")
	t.Setenv("X_DUR", "5")
	assert.Equal(t, 7, getEnvInt("X_INT", 7))
	assert.Equal(t, time.Second, getEnvDuration("X_DUR", time.Second))

	assert.True(t, isTruthy(" YES "))
	assert.False(t, isTruthy("maybe"))
	assert.True(t, isFalsy("0"))
}
