package storage

import (
	"context"
	"encoding/json"
	"time"

	"autotrader/internal/types"
)

// SeedWeights writes base weights from configuration, keeping any learned
// adjustment already stored.
func (s *SQLiteStore) SeedWeights(ctx context.Context, base map[string]float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UnixMilli()
	for strategy, w := range base {
		_, err := s.db.ExecContext(ctx, `INSERT INTO strategy_weights (strategy, base_weight, adjustment, updated_at)
			VALUES (?, ?, 0, ?)
			ON CONFLICT(strategy) DO UPDATE SET base_weight = excluded.base_weight`,
			strategy, w, now)
		if err != nil {
			return persistErr("seed weights", err)
		}
	}
	return nil
}

func (s *SQLiteStore) StrategyWeights(ctx context.Context) (map[string]types.StrategyWeight, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT strategy, base_weight, adjustment, updated_at FROM strategy_weights`)
	if err != nil {
		return nil, persistErr("strategy weights", err)
	}
	defer rows.Close()

	out := make(map[string]types.StrategyWeight)
	for rows.Next() {
		var (
			w       types.StrategyWeight
			updated int64
		)
		if err := rows.Scan(&w.Strategy, &w.BaseWeight, &w.Adjustment, &updated); err != nil {
			return nil, persistErr("strategy weights", err)
		}
		w.UpdatedAt = time.UnixMilli(updated).UTC()
		out[w.Strategy] = w
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("strategy weights", err)
	}
	return out, nil
}

// SaveWeightAdjustment replaces the learned adjustment for strategy and
// appends it to the history table.
func (s *SQLiteStore) SaveWeightAdjustment(ctx context.Context, strategy string, adjustment float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UnixMilli()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return persistErr("save weight", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `INSERT INTO strategy_weights (strategy, base_weight, adjustment, updated_at)
		VALUES (?, 0, ?, ?)
		ON CONFLICT(strategy) DO UPDATE SET adjustment = excluded.adjustment, updated_at = excluded.updated_at`,
		strategy, adjustment, now); err != nil {
		return persistErr("save weight", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO weight_history (strategy, adjustment, created_at) VALUES (?, ?, ?)`,
		strategy, adjustment, now); err != nil {
		return persistErr("save weight history", err)
	}
	if err := tx.Commit(); err != nil {
		return persistErr("save weight", err)
	}
	return nil
}

// SaveSignal appends an analysis to the signal log.
func (s *SQLiteStore) SaveSignal(ctx context.Context, runID string, a types.SymbolAnalysis) error {
	payload, err := json.Marshal(a)
	if err != nil {
		return persistErr("encode signal", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.ExecContext(ctx, `INSERT INTO signals (run_id, symbol, decision, confidence, score, strategy, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, a.Symbol, string(a.Decision), a.Confidence, a.NormalizedScore, a.DominantStrategy, string(payload),
		time.Now().UnixMilli())
	if err != nil {
		return persistErr("save signal", err)
	}
	return nil
}

func (s *SQLiteStore) SaveLearningRun(ctx context.Context, r types.LearningReport) error {
	adj, err := json.Marshal(r.Adjustments)
	if err != nil {
		return persistErr("encode adjustments", err)
	}
	overconfident := 0
	if r.Overconfidence {
		overconfident = 1
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.ExecContext(ctx, `INSERT INTO learning_runs
		(id, sample_size, win_rate, avg_confidence, total_pnl, overconfidence, confidence_bias, adjustments, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.SampleSize, r.WinRate, r.AvgConfidence, r.TotalPnL, overconfident, r.ConfidenceBias, string(adj),
		unix(r.RanAt))
	if err != nil {
		return persistErr("save learning run", err)
	}
	return nil
}
