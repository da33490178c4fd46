package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Backend names accepted by New.
const (
	BackendSlog = "slog"
	BackendZap  = "zap"
)

// Options selects and tunes a Logger backend.
//
//   - Backend: "slog" (default) or "zap".
//   - Level:   "debug", "info" (default), "warn" or "error".
//   - Format:  "text" (default) or "json".
//   - Output:  destination, os.Stderr when nil.
//   - File:    when set, records go to a daily-rotated file at this path
//     instead of Output; the path itself is a link to the current file.
type Options struct {
	Backend string
	Level   string
	Format  string
	Output  io.Writer
	File    string
}

// New builds the Logger described by opts.
func New(opts Options) (Logger, error) {
	backend := strings.ToLower(opts.Backend)
	if backend != "" && backend != BackendSlog && backend != BackendZap {
		return nil, fmt.Errorf("unknown log backend %q", opts.Backend)
	}

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	var closer io.Closer
	if opts.File != "" {
		rl, err := openRotating(opts.File)
		if err != nil {
			return nil, fmt.Errorf("open log file %s: %w", opts.File, err)
		}
		out, closer = rl, rl
	}

	if backend == BackendZap {
		z := newZap(out, opts)
		z.closer = closer
		return z, nil
	}
	s := newSlog(out, opts)
	s.closer = closer
	return s, nil
}

func newSlog(out io.Writer, opts Options) *SlogLogger {
	ho := &slog.HandlerOptions{Level: slogLevel(opts.Level)}

	var h slog.Handler
	if strings.EqualFold(opts.Format, "json") {
		h = slog.NewJSONHandler(out, ho)
	} else {
		h = slog.NewTextHandler(out, ho)
	}
	return NewSlogLogger(slog.New(h))
}

func newZap(out io.Writer, opts Options) *ZapLogger {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var enc zapcore.Encoder
	if strings.EqualFold(opts.Format, "json") {
		enc = zapcore.NewJSONEncoder(encoderCfg)
	} else {
		enc = zapcore.NewConsoleEncoder(encoderCfg)
	}

	core := zapcore.NewCore(enc, zapcore.AddSync(out), zapLevel(opts.Level))
	return NewZapLogger(zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1), zap.AddStacktrace(zapcore.ErrorLevel)))
}

func slogLevel(l string) slog.Level {
	switch strings.ToLower(l) {
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

func zapLevel(l string) zapcore.Level {
	switch strings.ToLower(l) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Nop returns a Logger that discards everything. Handy in tests.
func Nop() Logger {
	return NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}
