package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Options controls output destination, format and level filtering.
type Options struct {
	Level  string // debug|info|warn|error, default info
	Format string // json|text, default json
	Output string // stdout|stderr, default stdout
}

// Logger wraps slog.Logger with the module's default fields. All methods
// are safe for concurrent use.
type Logger struct {
	*slog.Logger
}

// New creates a configured Logger. The service name and version are
// attached to every record.
func New(opts Options, service, version string) *Logger {
	var output io.Writer
	switch strings.ToLower(opts.Output) {
	case "stderr":
		output = os.Stderr
	default:
		output = os.Stdout
	}

	hopts := &slog.HandlerOptions{Level: parseLevel(opts.Level)}

	var handler slog.Handler
	switch strings.ToLower(opts.Format) {
	case "text":
		handler = slog.NewTextHandler(output, hopts)
	default:
		handler = slog.NewJSONHandler(output, hopts)
	}

	handler = handler.WithAttrs([]slog.Attr{
		slog.String("service", service),
		slog.String("version", version),
	})

	return &Logger{Logger: slog.New(handler)}
}

// Discard returns a logger that drops everything; used in tests.
func Discard() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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
