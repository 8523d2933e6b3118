// Package logging builds the zap loggers used by the thething binaries.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options select level, encoding and destination.
type Options struct {
	Level  string    // debug, info, warn, error
	Format string    // console or json
	Output io.Writer // defaults to stderr
}

// New builds a logger from opts.
func New(opts Options) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(strings.ToLower(orDefault(opts.Level, "info")))
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout(time.TimeOnly)
	encCfg.EncodeDuration = zapcore.StringDurationEncoder

	var enc zapcore.Encoder
	switch orDefault(opts.Format, "console") {
	case "console":
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	case "json":
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		enc = zapcore.NewJSONEncoder(encCfg)
	default:
		return nil, fmt.Errorf("log format %q: want console or json", opts.Format)
	}

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	core := zapcore.NewCore(enc, zapcore.Lock(zapcore.AddSync(out)), level)
	return zap.New(core), nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// Lines is an io.Writer that hands each write to a channel without
// blocking. Lines are dropped when the reader is behind.
type Lines struct {
	ch chan string
}

// NewLines returns a line sink with the given buffer.
func NewLines(buffer int) *Lines {
	return &Lines{ch: make(chan string, buffer)}
}

func (l *Lines) Write(p []byte) (int, error) {
	line := strings.TrimRight(string(p), "\n")
	select {
	case l.ch <- line:
	default:
	}
	return len(p), nil
}

// C returns the channel of log lines.
func (l *Lines) C() <-chan string {
	return l.ch
}
