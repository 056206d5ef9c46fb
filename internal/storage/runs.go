package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"autotrader/internal/types"
)

const runColumns = `id, status, symbols_checked, signals_generated, trades_executed, stops_adjusted,
	positions_closed, errors, note, started_at, finished_at, duration_ms`

func runArgs(r types.RunRecord) []any {
	errs, _ := json.Marshal(r.Errors)
	return []any{string(r.Status), r.SymbolsChecked, r.SignalsGenerated, r.TradesExecuted, r.StopsAdjusted,
		r.PositionsClosed, string(errs), nullString(r.Note), unix(r.StartedAt), unix(r.FinishedAt), r.DurationMs}
}

func (s *SQLiteStore) SaveRun(ctx context.Context, r types.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	args := append([]any{r.ID}, runArgs(r)...)
	_, err := s.db.ExecContext(ctx, `INSERT INTO runs (`+runColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, args...)
	if err != nil {
		return persistErr("save run", err)
	}
	return nil
}

// UpdateRun rewrites a run that is not yet terminal. Finalized runs are
// append-only and further updates are ignored.
func (s *SQLiteStore) UpdateRun(ctx context.Context, r types.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	args := append(runArgs(r), r.ID)
	_, err := s.db.ExecContext(ctx, `UPDATE runs SET
		status = ?, symbols_checked = ?, signals_generated = ?, trades_executed = ?, stops_adjusted = ?,
		positions_closed = ?, errors = ?, note = ?, started_at = ?, finished_at = ?, duration_ms = ?
		WHERE id = ? AND status IN ('pending', 'running')`, args...)
	if err != nil {
		return persistErr("update run", err)
	}
	return nil
}

func scanRun(row rowScanner) (types.RunRecord, error) {
	var (
		r                 types.RunRecord
		status            string
		errs, note        sql.NullString
		started, finished sql.NullInt64
	)
	err := row.Scan(&r.ID, &status, &r.SymbolsChecked, &r.SignalsGenerated, &r.TradesExecuted, &r.StopsAdjusted,
		&r.PositionsClosed, &errs, &note, &started, &finished, &r.DurationMs)
	if err != nil {
		return r, err
	}
	r.Status = types.RunStatus(status)
	r.Note = note.String
	r.StartedAt = fromUnix(started)
	r.FinishedAt = fromUnix(finished)
	if errs.Valid && errs.String != "" && errs.String != "null" {
		_ = json.Unmarshal([]byte(errs.String), &r.Errors)
	}
	return r, nil
}

func (s *SQLiteStore) LastRun(ctx context.Context) (types.RunRecord, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, rowid DESC LIMIT 1`)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return r, false, nil
	}
	if err != nil {
		return r, false, persistErr("last run", err)
	}
	return r, true, nil
}

func (s *SQLiteStore) RunsSince(ctx context.Context, since time.Time) ([]types.RunRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs WHERE started_at >= ? ORDER BY started_at`,
		since.UnixMilli())
	if err != nil {
		return nil, persistErr("runs since", err)
	}
	defer rows.Close()

	var out []types.RunRecord
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, persistErr("runs since", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("runs since", err)
	}
	return out, nil
}
