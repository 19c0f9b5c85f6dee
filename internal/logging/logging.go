// Package logging builds the process-wide slog logger.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options selects level, handler format and destination.
type Options struct {
	Level  string // debug, info, warn, error
	Format string // text or json
	File   string // Empty means stderr.
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(level string) (slog.Level, error) {
	switch level {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", level)
	}
}

// New returns a logger writing to w, or to a rotated file when opts.File
// is set. The returned closer releases the file and is a no-op for w.
func New(opts Options, w io.Writer) (*slog.Logger, io.Closer, error) {
	lvl, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, nil, err
	}

	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		lj := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    64, // MB
			MaxBackups: 3,
			MaxAge:     14,
			Compress:   true,
		}
		w, closer = lj, lj
	}
	if w == nil {
		w = os.Stderr
	}

	hopts := &slog.HandlerOptions{Level: lvl}
	var h slog.Handler
	switch opts.Format {
	case "json":
		h = slog.NewJSONHandler(w, hopts)
	case "", "text":
		h = slog.NewTextHandler(w, hopts)
	default:
		return nil, nil, fmt.Errorf("invalid log format %q", opts.Format)
	}

	return slog.New(h), closer, nil
}

// Setup builds a logger with New and installs it as slog's default.
func Setup(opts Options) (*slog.Logger, io.Closer, error) {
	l, closer, err := New(opts, os.Stderr)
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(l)
	return l, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
