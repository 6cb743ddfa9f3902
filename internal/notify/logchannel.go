package notify

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"
)

// LogChannel is the dry-run backend: text goes to the logger, snapshots
// to PNG files under dir (skipped when dir is empty).
type LogChannel struct {
	logger *slog.Logger
	dir    string
	seq    atomic.Int64
}

// NewLogChannel creates a dry-run backend. A nil logger uses slog.Default.
func NewLogChannel(logger *slog.Logger, dir string) *LogChannel {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogChannel{logger: logger, dir: dir}
}

func (l *LogChannel) Start(context.Context) error {
	if l.dir == "" {
		return nil
	}
	return os.MkdirAll(l.dir, 0o755)
}

func (l *LogChannel) Stop() {}

func (l *LogChannel) Send(ctx context.Context, text string, expire time.Duration) error {
	l.logger.InfoContext(ctx, "notification", slog.String("text", text), slog.Duration("expire", expire))
	return nil
}

func (l *LogChannel) SendImage(ctx context.Context, png []byte, caption string, expire time.Duration) error {
	if l.dir == "" {
		l.logger.InfoContext(ctx, "snapshot", slog.Int("bytes", len(png)), slog.String("caption", caption))
		return nil
	}
	name := filepath.Join(l.dir, fmt.Sprintf("snapshot-%04d.png", l.seq.Add(1)))
	if err := os.WriteFile(name, png, 0o644); err != nil {
		return fmt.Errorf("could not write snapshot: %w", err)
	}
	l.logger.InfoContext(ctx, "snapshot", slog.String("file", name), slog.String("caption", caption), slog.Duration("expire", expire))
	return nil
}
