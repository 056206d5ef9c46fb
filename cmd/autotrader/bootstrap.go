package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"autotrader/internal/engine"
	"autotrader/internal/engine/engineobs"
	"autotrader/internal/events"
	"autotrader/internal/logger"
	"autotrader/internal/storage"
	"autotrader/internal/store"
	"autotrader/internal/trace"
	"autotrader/internal/tradelog"
)

const eventBuffer = 256

// app holds everything a command needs and everything it must close.
type app struct {
	cfg     *store.Config
	store   *storage.SQLiteStore
	queue   *events.Queue
	journal *tradelog.Journal
	runner  engine.Runner
}

// initializeSystem loads .env and sets up logging and tracing.
func initializeSystem() error {
	_ = godotenv.Load()

	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if err := trace.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize tracer: %v\n", err)
	}
	return nil
}

func configPath(flag string) string {
	if flag != "" {
		return flag
	}
	if v := os.Getenv("AUTOTRADER_CONFIG"); v != "" {
		return v
	}
	return "config.yaml"
}

// loadConfig reads config and secrets. Any failure here happens before
// a single side effect.
func loadConfig(ctx context.Context, path string) (*store.Config, error) {
	cfg, err := store.LoadConfig(path)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to load config", err, "path", path)
		return nil, err
	}
	if err := cfg.LoadSecrets(); err != nil {
		logger.ErrorWithErr(ctx, "Missing credentials", err, "mode", cfg.Mode)
		return nil, err
	}
	if cfg.Mode == "DRY_RUN" {
		logger.Warn(ctx, "Running in DRY_RUN mode - orders go to the paper broker")
	}
	return cfg, nil
}

// compressOldLogs compresses old journal files if retention is configured
func compressOldLogs(ctx context.Context, dir string) {
	v := os.Getenv("TRADER_LOG_RETENTION_DAYS")
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		logger.Warn(ctx, "Invalid TRADER_LOG_RETENTION_DAYS", "value", v)
		return
	}
	compressed, err := tradelog.CompressOlder(dir, n)
	if err != nil {
		logger.Warn(ctx, "Failed to compress old logs", "error", err)
		return
	}
	if compressed > 0 {
		logger.Info(ctx, "Compressed old journal files", "count", compressed)
	}
}

func newApp(ctx context.Context, cfgFlag string) (*app, error) {
	cfg, err := loadConfig(ctx, configPath(cfgFlag))
	if err != nil {
		return nil, err
	}

	st, err := storage.Open(ctx, cfg.StorePath)
	if err != nil {
		return nil, err
	}

	compressOldLogs(ctx, cfg.JournalDir)
	journal := tradelog.NewJournal(cfg.JournalDir, cfg.Location())
	queue := events.NewQueue(eventBuffer, journal)

	eng, err := engine.Build(ctx, cfg, st, queue)
	if err != nil {
		_ = queue.Close(ctx)
		_ = journal.Close()
		_ = st.Close()
		return nil, err
	}

	return &app{
		cfg:     cfg,
		store:   st,
		queue:   queue,
		journal: journal,
		runner:  engineobs.Wrap(engine.NewDispatcher(eng)),
	}, nil
}

// close drains pending events before the journal and store go away.
func (a *app) close(ctx context.Context) {
	if err := a.queue.Close(ctx); err != nil {
		logger.Warn(ctx, "Event queue did not drain", "error", err, "dropped", a.queue.Dropped())
	}
	if err := a.journal.Close(); err != nil {
		logger.Warn(ctx, "Failed to close journal", "error", err)
	}
	if err := a.store.Close(); err != nil {
		logger.Warn(ctx, "Failed to close store", "error", err)
	}
	if err := trace.Shutdown(ctx); err != nil {
		logger.Warn(ctx, "Failed to shut down tracer", "error", err)
	}
}
