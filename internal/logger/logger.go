package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/oggyb/luvo/internal/config"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

type Config struct {
	Level      string
	Format     Format
	Component  string
	WithSource bool
	// Output defaults to os.Stdout.
	Output io.Writer
}

var (
	current atomic.Pointer[slog.Logger]
	level   = new(slog.LevelVar)
)

// InitFromConfig initializes the global logger from app config.
func InitFromConfig(c *config.Config) {
	if c == nil {
		Init(nil)
		return
	}
	Init(&Config{
		Level:      c.Log.Level,
		Format:     Format(c.Log.Format),
		Component:  c.Log.Component,
		WithSource: c.Log.Source,
	})
}

// Init replaces the global logger. A nil config means info level text on
// stdout. Safe to call multiple times.
func Init(c *Config) {
	if c == nil {
		c = &Config{Level: "info", Format: FormatText}
	}
	current.Store(build(*c))
}

func build(c Config) *slog.Logger {
	out := c.Output
	if out == nil {
		out = os.Stdout
	}
	level.Set(parseLevel(c.Level))

	format := Format(strings.ToLower(string(c.Format)))
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: c.WithSource,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 && format != FormatJSON {
				return slog.String(slog.TimeKey, a.Value.Time().Format(time.DateTime))
			}
			return a
		},
	}

	var handler slog.Handler = slog.NewTextHandler(out, opts)
	if format == FormatJSON {
		handler = slog.NewJSONHandler(out, opts)
	}

	l := slog.New(handler)
	if c.Component != "" {
		l = l.With("component", c.Component)
	}
	return l
}

// L returns the global logger, initializing the default one on first use.
func L() *slog.Logger {
	if l := current.Load(); l != nil {
		return l
	}
	current.CompareAndSwap(nil, build(Config{Level: "info", Format: FormatText}))
	return current.Load()
}

// SetLevel changes the level of the global logger and every child
// derived from it, without rebuilding handlers.
func SetLevel(s string) { level.Set(parseLevel(s)) }

// Nop returns a logger that drops everything. Handy in tests.
func Nop() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func With(args ...any) *slog.Logger { return L().With(args...) }

// Component returns a child logger tagged with a sub-component name,
// e.g. "feed" or "bot".
func Component(name string) *slog.Logger { return L().With("subsystem", name) }

func Debug(msg string, args ...any) { L().Debug(msg, args...) }
func Info(msg string, args ...any)  { L().Info(msg, args...) }
func Warn(msg string, args ...any)  { L().Warn(msg, args...) }
func Error(msg string, args ...any) { L().Error(msg, args...) }

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
