package logging

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// FileConfig configures per-identity log files.
type FileConfig struct {
	Dir        string // empty disables file output
	MaxSizeMB  int
	MaxBackups int
	Level      slog.Leveler
}

// IdentityFileName returns the log file name for the identity with the given
// sequence number.
func IdentityFileName(index int) string {
	return fmt.Sprintf("node-%d.log", index)
}

// NewIdentityWriter returns a size-rotated writer for one identity's log file.
func NewIdentityWriter(cfg FileConfig, index int) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   filepath.Join(cfg.Dir, IdentityFileName(index)),
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
	}
}

// IdentityLogger derives the logger for one identity from base. The label,
// when set, prefixes console lines. With a configured directory, records are
// also written as JSON to the identity's own file; the returned closer
// releases it.
func IdentityLogger(base *slog.Logger, label string, index int, cfg FileConfig) (*slog.Logger, io.Closer) {
	handler := base.Handler()
	closer := io.Closer(nopCloser{})

	if cfg.Dir != "" {
		w := NewIdentityWriter(cfg, index)
		file := slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level:       cfg.Level,
			ReplaceAttr: ReplaceLevel,
		})
		handler = Fanout(handler, file.WithAttrs([]slog.Attr{slog.Int("identity", index)}))
		closer = w
	}

	logger := slog.New(handler)
	if label != "" {
		logger = logger.With(AccountKey, label)
	}
	return logger, closer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
