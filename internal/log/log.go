package log

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
)

type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// Options configures the process-wide logger.
type Options struct {
	Level Level
	// SentryDSN enables error capture when non-empty.
	SentryDSN string
	Env       string
	Release   string
	// Output defaults to stderr.
	Output io.Writer
}

var (
	mu            sync.RWMutex
	logger        *slog.Logger
	levelVar      = new(slog.LevelVar)
	sentryEnabled bool
	initOnce      sync.Once
)

func initDefault() {
	initOnce.Do(func() {
		mu.Lock()
		defer mu.Unlock()
		if logger == nil {
			logger = newLogger(os.Stderr)
		}
	})
}

func newLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: levelVar,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.StringValue(t.Format(time.RFC3339Nano))
				}
			}
			return a
		},
	}))
}

// Init replaces the default logger. Calling it more than once is allowed;
// the last call wins.
func Init(opts Options) error {
	initOnce.Do(func() {})

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	enabled := false
	if opts.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:         opts.SentryDSN,
			Environment: opts.Env,
			Release:     opts.Release,
		})
		if err != nil {
			return err
		}
		enabled = true
	}

	mu.Lock()
	logger = newLogger(out)
	sentryEnabled = enabled
	mu.Unlock()

	SetLevel(opts.Level)
	return nil
}

// ParseLevel maps a config string to a Level, defaulting to INFO.
func ParseLevel(s string) Level {
	switch Level(strings.ToUpper(strings.TrimSpace(s))) {
	case LevelDebug:
		return LevelDebug
	case LevelWarn:
		return LevelWarn
	case LevelError:
		return LevelError
	default:
		return LevelInfo
	}
}

func SetLevel(l Level) {
	switch l {
	case LevelDebug:
		levelVar.Set(slog.LevelDebug)
	case LevelWarn:
		levelVar.Set(slog.LevelWarn)
	case LevelError:
		levelVar.Set(slog.LevelError)
	default:
		levelVar.Set(slog.LevelInfo)
	}
}

// Flush drains pending Sentry events. Call before exit.
func Flush(timeout time.Duration) {
	mu.RLock()
	enabled := sentryEnabled
	mu.RUnlock()
	if enabled {
		sentry.Flush(timeout)
	}
}

func Debug(msg string, kv ...any) {
	current().Debug(msg, pairs(kv)...)
}

func Info(msg string, kv ...any) {
	current().Info(msg, pairs(kv)...)
}

func Warn(msg string, kv ...any) {
	current().Warn(msg, pairs(kv)...)
}

// Error logs at error level with err as the first attribute and forwards
// err to Sentry when enabled.
func Error(msg string, err error, kv ...any) {
	extended := append([]any{"err", err}, pairs(kv)...)
	current().Error(msg, extended...)

	mu.RLock()
	enabled := sentryEnabled
	mu.RUnlock()
	if !enabled {
		return
	}
	if err == nil {
		err = errors.New(msg)
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("message", msg)
		for i := 0; i+1 < len(kv); i += 2 {
			if key, ok := kv[i].(string); ok {
				scope.SetTag(key, fmt.Sprint(kv[i+1]))
			}
		}
		sentry.CaptureException(err)
	})
}

func current() *slog.Logger {
	initDefault()
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// pairs drops a trailing key without a value and any non-string key.
func pairs(kv []any) []any {
	out := make([]any, 0, len(kv))
	for i := 0; i+1 < len(kv); i += 2 {
		if _, ok := kv[i].(string); !ok {
			continue
		}
		out = append(out, kv[i], kv[i+1])
	}
	return out
}
