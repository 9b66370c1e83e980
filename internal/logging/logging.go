// Package logging builds the per-subsystem structured loggers used across
// shadb. It follows the factory pattern the wider example corpus uses for
// slog construction: one factory owns the rotating sink, subsystems ask it
// for a named *slog.Logger.
package logging

import (
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Level mirrors slog.Level so callers outside this package never need to
// import log/slog just to pick a verbosity.
type Level = slog.Level

const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

// Factory constructs subsystem loggers that all share one sink and level.
type Factory struct {
	writer io.Writer
	level  slog.Leveler
	closer io.Closer
}

// Option configures a Factory.
type Option func(*Factory)

// WithLevel sets the minimum level recorded by loggers built from this
// factory. Defaults to Info.
func WithLevel(l Level) Option {
	return func(f *Factory) { f.level = l }
}

// WithRotatingFile routes log output through a lumberjack-managed rotating
// file instead of stderr. Useful for long-lived daemons embedding shadb;
// the demo CLI in cmd/shadb uses the stderr default instead.
func WithRotatingFile(path string, maxSizeMB, maxBackups, maxAgeDays int) Option {
	return func(f *Factory) {
		lj := &lumberjack.Logger{
			Filename:   path,
			MaxSize:    maxSizeMB,
			MaxBackups: maxBackups,
			MaxAge:     maxAgeDays,
			Compress:   true,
		}
		f.writer = lj
		f.closer = lj
	}
}

// NewFactory creates a Factory writing to stderr at Info level by default.
func NewFactory(opts ...Option) *Factory {
	f := &Factory{writer: os.Stderr, level: LevelInfo}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Logger returns a subsystem-scoped logger, e.g. Logger("index"), Logger("git").
func (f *Factory) Logger(subsystem string) *slog.Logger {
	h := slog.NewTextHandler(f.writer, &slog.HandlerOptions{Level: f.level})
	return slog.New(h).With("subsystem", subsystem)
}

// Close releases the rotating file sink, if one was configured.
func (f *Factory) Close() error {
	if f.closer != nil {
		return f.closer.Close()
	}
	return nil
}

// Discard returns a logger that drops everything, for tests and library
// consumers that don't want shadb's own diagnostics.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
