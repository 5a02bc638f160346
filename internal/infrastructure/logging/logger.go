package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/nerrad567/playout-core/internal/infrastructure/config"
)

// ServiceName is attached to every record as the "service" attribute.
const ServiceName = "playout"

// redacted replaces the value of any attribute whose key names a credential.
const redacted = "[REDACTED]"

var secretKeys = []string{"password", "secret", "token", "authorization"}

// Logger is the slog logger every playoutd component receives, usually
// narrowed with Component. It satisfies the Debug/Info/Warn/Error logger
// interfaces declared by the lock, jobs and playout packages.
type Logger struct {
	*slog.Logger
}

// New logs to stdout, or stderr when cfg.Output says so. CLI commands use
// stderr to keep stdout for their own output.
func New(cfg config.LoggingConfig, version string) *Logger {
	var w io.Writer = os.Stdout
	if strings.EqualFold(cfg.Output, "stderr") {
		w = os.Stderr
	}
	return NewWithWriter(cfg, version, w)
}

// NewWithWriter ignores cfg.Output and writes to w.
func NewWithWriter(cfg config.LoggingConfig, version string, w io.Writer) *Logger {
	opts := &slog.HandlerOptions{
		Level:       parseLevel(cfg.Level),
		ReplaceAttr: redact,
	}

	var h slog.Handler = slog.NewJSONHandler(w, opts)
	if strings.EqualFold(cfg.Format, "text") {
		h = slog.NewTextHandler(w, opts)
	}
	h = h.WithAttrs([]slog.Attr{
		slog.String("service", ServiceName),
		slog.String("version", version),
	})
	return &Logger{Logger: slog.New(h)}
}

// parseLevel falls back to info for anything it does not recognise.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func redact(_ []string, a slog.Attr) slog.Attr {
	key := strings.ToLower(a.Key)
	for _, s := range secretKeys {
		if strings.Contains(key, s) {
			return slog.String(a.Key, redacted)
		}
	}
	return a
}

func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// Component tags records with the subsystem that wrote them.
func (l *Logger) Component(name string) *Logger {
	return l.With("component", name)
}

