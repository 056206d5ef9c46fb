// Package tradelog is the append-only audit journal: one JSON line per
// decision, trade, run and learning run, in a file per trading day.
package tradelog

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"autotrader/internal/events"
)

const fileExt = ".jsonl"

// Journal is an events.Sink writing through zap. It rolls to a new file
// when the trading day changes.
type Journal struct {
	dir string
	loc *time.Location

	mu     sync.Mutex
	day    string
	file   *os.File
	logger *zap.Logger
}

func NewJournal(dir string, loc *time.Location) *Journal {
	if loc == nil {
		loc = time.UTC
	}
	return &Journal{dir: dir, loc: loc}
}

func (j *Journal) pathFor(day string) string {
	return filepath.Join(j.dir, day+fileExt)
}

func (j *Journal) rotate(now time.Time) error {
	day := now.In(j.loc).Format("2006-01-02")
	if day == j.day && j.logger != nil {
		return nil
	}
	if err := j.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(j.dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(j.pathFor(day), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.MessageKey = "kind"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(f), zapcore.InfoLevel)

	j.file = f
	j.logger = zap.New(core)
	j.day = day
	return nil
}

func (j *Journal) Handle(_ context.Context, e events.Event) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	at := e.At
	if at.IsZero() {
		at = time.Now()
	}
	if err := j.rotate(at); err != nil {
		return fmt.Errorf("journal rotate: %w", err)
	}
	j.logger.Info(string(e.Kind), zap.Time("at", at), zap.Any("payload", e.Payload))
	return nil
}

func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.closeLocked()
}

func (j *Journal) closeLocked() error {
	if j.logger == nil {
		return nil
	}
	_ = j.logger.Sync()
	err := j.file.Close()
	j.logger, j.file, j.day = nil, nil, ""
	return err
}

// CompressOlder gzips journal files last modified more than
// retentionDays ago and removes the originals.
func CompressOlder(dir string, retentionDays int) (int, error) {
	if retentionDays <= 0 {
		return 0, nil
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	compressed := 0
	err := filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(p, fileExt) {
			return nil
		}
		info, err := d.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			return nil
		}
		gz := p + ".gz"
		if _, err := os.Stat(gz); err == nil {
			_ = os.Remove(p)
			return nil
		}
		if err := gzipFile(p, gz); err != nil {
			return nil
		}
		compressed++
		return os.Remove(p)
	})
	return compressed, err
}

func gzipFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	gw := gzip.NewWriter(out)
	if _, err := io.Copy(gw, in); err != nil {
		gw.Close()
		out.Close()
		os.Remove(dst)
		return err
	}
	if err := gw.Close(); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	return out.Close()
}
