// Package logger builds the engine's slog loggers. Every record is
// tagged with the service name so engine logs stay attributable when
// aggregated with other services.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
)

const serviceName = "yap-engine"

// New returns the engine's stdout logger with UTC millisecond
// timestamps. Verbose enables debug level.
func New(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(newHandler(os.Stdout, level, false)).With("service", serviceName)
}

// NewWithWriter returns a logger for an arbitrary sink. Output is
// uncolored since the sink is not an interactive terminal.
func NewWithWriter(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(newHandler(w, level, true)).With("service", serviceName)
}

func newHandler(w io.Writer, level slog.Level, noColor bool) slog.Handler {
	return tint.NewHandler(w, &tint.Options{
		Level:   level,
		NoColor: noColor,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				a.Value = slog.StringValue(formatRFC3339Millis(a.Value.Time()))
			}
			if s, ok := a.Value.Any().(string); ok && s == "" {
				return slog.Attr{}
			}
			return a
		},
	})
}

func formatRFC3339Millis(t time.Time) string {
	t = t.UTC()
	base := t.Format("2006-01-02T15:04:05")
	ms := t.Nanosecond() / 1_000_000
	return fmt.Sprintf("%s.%03dZ", base, ms)
}
