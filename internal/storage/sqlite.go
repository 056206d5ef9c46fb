// Package storage is the SQLite-backed persistent store: key/value
// overrides, the trade log, run log, learned weights, signal log,
// learning runs and cycle locks.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"autotrader/internal/interfaces"
	"autotrader/internal/logger"
	"autotrader/internal/types"
)

var _ interfaces.Store = (*SQLiteStore)(nil)

type SQLiteStore struct {
	db *sql.DB
	mu sync.Mutex // serializes writes
}

// Open opens (or creates) the database at path and runs migrations.
func Open(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, persistErr("open sqlite", err)
	}
	// a single connection keeps writers from tripping SQLITE_BUSY
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, persistErr("set WAL mode", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, persistErr("set busy timeout", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	logger.Info(ctx, "sqlite store opened", "path", path)
	return s, nil
}

func persistErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", types.ErrPersistence, op, err)
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS kv (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS trades (
			id            TEXT PRIMARY KEY,
			symbol        TEXT NOT NULL,
			side          TEXT NOT NULL,
			qty           INTEGER NOT NULL,
			entry_price   REAL NOT NULL,
			stop_loss     REAL,
			take_profit   REAL,
			stop_order_id TEXT,
			strategy      TEXT,
			confidence    REAL,
			status        TEXT NOT NULL,
			exit_price    REAL,
			pnl           REAL,
			close_reason  TEXT,
			opened_at     INTEGER NOT NULL,
			closed_at     INTEGER,
			snapshot      TEXT
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_trades_open_symbol ON trades(symbol) WHERE status = 'open'`,
		`CREATE INDEX IF NOT EXISTS idx_trades_closed ON trades(status, closed_at)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_opened ON trades(opened_at)`,

		`CREATE TABLE IF NOT EXISTS runs (
			id                TEXT PRIMARY KEY,
			status            TEXT NOT NULL,
			symbols_checked   INTEGER,
			signals_generated INTEGER,
			trades_executed   INTEGER,
			stops_adjusted    INTEGER,
			positions_closed  INTEGER,
			errors            TEXT,
			note              TEXT,
			started_at        INTEGER NOT NULL,
			finished_at       INTEGER,
			duration_ms       INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at)`,

		`CREATE TABLE IF NOT EXISTS strategy_weights (
			strategy    TEXT PRIMARY KEY,
			base_weight REAL NOT NULL DEFAULT 0,
			adjustment  REAL NOT NULL DEFAULT 0,
			updated_at  INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS weight_history (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			strategy   TEXT NOT NULL,
			adjustment REAL NOT NULL,
			created_at INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS signals (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id     TEXT,
			symbol     TEXT NOT NULL,
			decision   TEXT NOT NULL,
			confidence REAL,
			score      REAL,
			strategy   TEXT,
			payload    TEXT,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_signals_ts ON signals(created_at)`,

		`CREATE TABLE IF NOT EXISTS learning_runs (
			id              TEXT PRIMARY KEY,
			sample_size     INTEGER,
			win_rate        REAL,
			avg_confidence  REAL,
			total_pnl       REAL,
			overconfidence  INTEGER,
			confidence_bias REAL,
			adjustments     TEXT,
			created_at      INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS locks (
			name       TEXT PRIMARY KEY,
			owner      TEXT NOT NULL,
			expires_at INTEGER NOT NULL
		)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return persistErr(fmt.Sprintf("migrate %q", stmt[:40]), err)
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func unix(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func fromUnix(v sql.NullInt64) time.Time {
	if !v.Valid {
		return time.Time{}
	}
	return time.UnixMilli(v.Int64).UTC()
}

// ---- key/value ----

func (s *SQLiteStore) GetKV(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, persistErr("get kv", err)
	}
	return v, true, nil
}

func (s *SQLiteStore) SetKV(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UnixMilli())
	if err != nil {
		return persistErr("set kv", err)
	}
	return nil
}

// ---- locks ----

// AcquireLock takes name for owner unless another owner holds an
// unexpired lease.
func (s *SQLiteStore) AcquireLock(ctx context.Context, name, owner string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	res, err := s.db.ExecContext(ctx, `INSERT INTO locks (name, owner, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET owner = excluded.owner, expires_at = excluded.expires_at
		WHERE locks.expires_at < ? OR locks.owner = excluded.owner`,
		name, owner, now.Add(ttl).UnixMilli(), now.UnixMilli())
	if err != nil {
		return false, persistErr("acquire lock", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, persistErr("acquire lock", err)
	}
	return n == 1, nil
}

func (s *SQLiteStore) ReleaseLock(ctx context.Context, name, owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.ExecContext(ctx, `DELETE FROM locks WHERE name = ? AND owner = ?`, name, owner); err != nil {
		return persistErr("release lock", err)
	}
	return nil
}
