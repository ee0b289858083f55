package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/phsym/zeroslog"
	"github.com/rs/zerolog"
)

var levelVar = new(slog.LevelVar)

var L = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: levelVar}))

// SetLevel configures the global log level (debug, info, warn, error).
func SetLevel(lvl string) {
	switch strings.ToLower(lvl) {
	case "debug":
		levelVar.Set(slog.LevelDebug)
	case "warn", "warning":
		levelVar.Set(slog.LevelWarn)
	case "error":
		levelVar.Set(slog.LevelError)
	default:
		levelVar.Set(slog.LevelInfo)
	}
}

// Setup swaps the global logger for the requested format ("json" or "console")
// writing to w, and applies the level.
func Setup(w io.Writer, level, format string) {
	SetLevel(level)
	L = slog.New(newHandler(w, format))
	slog.SetDefault(L)
}

func newHandler(w io.Writer, format string) slog.Handler {
	if format == "console" {
		zl := zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.Stamp}).With().Timestamp().Logger()
		return zeroslog.NewHandler(zl, &zeroslog.HandlerOptions{Level: levelVar})
	}
	return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: levelVar})
}

// Err is the attribute used for errors across the service.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "")
	}
	return slog.String("error", err.Error())
}
