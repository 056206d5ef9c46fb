package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"autotrader/internal/types"
)

const tradeColumns = `id, symbol, side, qty, entry_price, stop_loss, take_profit, stop_order_id,
	strategy, confidence, status, exit_price, pnl, close_reason, opened_at, closed_at, snapshot`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrade(row rowScanner) (types.TradeOrder, error) {
	var (
		t                   types.TradeOrder
		side, status        string
		stopID, strategy    sql.NullString
		closeReason, snap   sql.NullString
		stop, tp, exit, pnl sql.NullFloat64
		conf                sql.NullFloat64
		opened, closed      sql.NullInt64
	)
	err := row.Scan(&t.ID, &t.Symbol, &side, &t.Qty, &t.EntryPrice, &stop, &tp, &stopID,
		&strategy, &conf, &status, &exit, &pnl, &closeReason, &opened, &closed, &snap)
	if err != nil {
		return t, err
	}
	t.Side = types.Action(side)
	t.Status = types.TradeStatus(status)
	t.StopLoss = stop.Float64
	t.TakeProfit = tp.Float64
	t.StopOrderID = stopID.String
	t.Strategy = strategy.String
	t.Confidence = conf.Float64
	t.ExitPrice = exit.Float64
	t.PnL = pnl.Float64
	t.CloseReason = closeReason.String
	t.OpenedAt = fromUnix(opened)
	t.ClosedAt = fromUnix(closed)
	if snap.Valid && snap.String != "" {
		t.Snapshot = []byte(snap.String)
	}
	return t, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// SaveTrade inserts a new trade. A second open trade for the same symbol
// violates the open-symbol index and fails.
func (s *SQLiteStore) SaveTrade(ctx context.Context, t types.TradeOrder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `INSERT INTO trades (`+tradeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Symbol, string(t.Side), t.Qty, t.EntryPrice, t.StopLoss, t.TakeProfit, nullString(t.StopOrderID),
		t.Strategy, t.Confidence, string(t.Status), t.ExitPrice, t.PnL, nullString(t.CloseReason),
		unix(t.OpenedAt), unix(t.ClosedAt), nullString(string(t.Snapshot)))
	if err != nil {
		return persistErr("save trade", err)
	}
	return nil
}

// UpdateTrade writes the mutable fields: protective stop, and the close.
func (s *SQLiteStore) UpdateTrade(ctx context.Context, t types.TradeOrder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.ExecContext(ctx, `UPDATE trades SET
		stop_loss = ?, stop_order_id = ?, status = ?, exit_price = ?, pnl = ?, close_reason = ?, closed_at = ?
		WHERE id = ?`,
		t.StopLoss, nullString(t.StopOrderID), string(t.Status), t.ExitPrice, t.PnL, nullString(t.CloseReason),
		unix(t.ClosedAt), t.ID)
	if err != nil {
		return persistErr("update trade", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return persistErr("update trade", sql.ErrNoRows)
	}
	return nil
}

func (s *SQLiteStore) queryTrades(ctx context.Context, op, query string, args ...any) ([]types.TradeOrder, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, persistErr(op, err)
	}
	defer rows.Close()

	var out []types.TradeOrder
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, persistErr(op, err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr(op, err)
	}
	return out, nil
}

func (s *SQLiteStore) OpenTrades(ctx context.Context) ([]types.TradeOrder, error) {
	return s.queryTrades(ctx, "open trades",
		`SELECT `+tradeColumns+` FROM trades WHERE status = 'open' ORDER BY opened_at`)
}

func (s *SQLiteStore) OpenTradeBySymbol(ctx context.Context, symbol string) (types.TradeOrder, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+tradeColumns+` FROM trades WHERE status = 'open' AND symbol = ?`, symbol)
	t, err := scanTrade(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.TradeOrder{}, false, nil
	}
	if err != nil {
		return types.TradeOrder{}, false, persistErr("open trade by symbol", err)
	}
	return t, true, nil
}

// ClosedTradesSince returns trades closed at or after since, newest first.
// limit <= 0 means no limit.
func (s *SQLiteStore) ClosedTradesSince(ctx context.Context, since time.Time, limit int) ([]types.TradeOrder, error) {
	if limit <= 0 {
		limit = -1
	}
	return s.queryTrades(ctx, "closed trades",
		`SELECT `+tradeColumns+` FROM trades WHERE status = 'closed' AND closed_at >= ?
		ORDER BY closed_at DESC LIMIT ?`, since.UnixMilli(), limit)
}

func (s *SQLiteStore) TradesOpenedSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM trades WHERE opened_at >= ?`, since.UnixMilli()).Scan(&n)
	if err != nil {
		return 0, persistErr("count trades", err)
	}
	return n, nil
}

func (s *SQLiteStore) RealizedPnLSince(ctx context.Context, since time.Time) (float64, int, error) {
	var (
		pnl sql.NullFloat64
		n   int
	)
	err := s.db.QueryRowContext(ctx, `SELECT SUM(pnl), COUNT(*) FROM trades
		WHERE status = 'closed' AND closed_at >= ?`, since.UnixMilli()).Scan(&pnl, &n)
	if err != nil {
		return 0, 0, persistErr("realized pnl", err)
	}
	return pnl.Float64, n, nil
}

// StrategyPerformance aggregates closed trades for one strategy. Average
// win and loss are percentage returns on cost, both positive.
func (s *SQLiteStore) StrategyPerformance(ctx context.Context, strategy string, since time.Time) (types.StrategyPerformance, error) {
	p := types.StrategyPerformance{Strategy: strategy}
	err := s.db.QueryRowContext(ctx, `SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN pnl > 0 THEN 1 ELSE 0 END), 0),
			COALESCE(AVG(CASE WHEN pnl > 0 THEN pnl * 100.0 / (entry_price * qty) END), 0),
			COALESCE(AVG(CASE WHEN pnl <= 0 THEN -pnl * 100.0 / (entry_price * qty) END), 0)
		FROM trades
		WHERE status = 'closed' AND strategy = ? AND closed_at >= ? AND entry_price > 0 AND qty > 0`,
		strategy, since.UnixMilli()).Scan(&p.Trades, &p.Wins, &p.AvgWin, &p.AvgLoss)
	if err != nil {
		return p, persistErr("strategy performance", err)
	}
	return p, nil
}
