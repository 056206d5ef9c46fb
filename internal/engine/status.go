package engine

import (
	"context"

	"autotrader/internal/logger"
	"autotrader/internal/types"
)

// Paper-to-live thresholds over the learning window.
const (
	liveMinTrades  = 20
	liveMinWinRate = 50.0
)

func (e *Engine) Status(ctx context.Context) (types.StatusReport, error) {
	now := e.now()
	st := types.StatusReport{
		Mode:      e.cfg.Mode,
		Enabled:   e.enabled(ctx),
		Oracle:    e.oracleName(),
		CheckedAt: now,
	}

	st.MarketOpen = e.cfg.InTradingHours(now)
	if clock, err := e.broker.Clock(ctx); err == nil {
		st.MarketOpen = st.MarketOpen && clock.IsOpen
	}

	last, ok, err := e.store.LastRun(ctx)
	if err != nil {
		return st, err
	}
	if ok {
		st.LastRun = &last
	}
	if st.OpenTrades, err = e.store.OpenTrades(ctx); err != nil {
		return st, err
	}
	if st.Circuit, err = e.gate.CircuitBreaker(ctx); err != nil {
		return st, err
	}
	if st.Weights, err = e.store.StrategyWeights(ctx); err != nil {
		return st, err
	}
	if acct, err := e.broker.Account(ctx); err != nil {
		logger.Warn(ctx, "Account unavailable for status", "error", err)
	} else {
		st.Account = &acct
	}

	window := now.AddDate(0, 0, -e.cfg.Learning.WindowDays)
	closed, err := e.store.ClosedTradesSince(ctx, window, 0)
	if err != nil {
		return st, err
	}
	st.Readiness = Readiness(closed)

	if st.Oracle == "none" {
		st.Degraded = append(st.Degraded, types.DegradedOracleNotConfigured)
	}
	if len(closed) < e.cfg.Learning.MinSamples {
		st.Degraded = append(st.Degraded, types.DegradedInsufficientHistory)
	}
	if !st.Circuit.Safe {
		st.Degraded = append(st.Degraded, types.DegradedCircuitBreakerTripped)
	}
	return st, nil
}

func (e *Engine) oracleName() string {
	if e.oracle == nil {
		return "none"
	}
	return e.oracle.Name()
}

// Readiness decides whether a closed-trade record justifies going live.
func Readiness(closed []types.TradeOrder) types.Readiness {
	r := types.Readiness{ClosedTrades: len(closed)}
	wins := 0
	for _, t := range closed {
		r.TotalPnL += t.PnL
		if t.PnL > 0 {
			wins++
		}
	}
	if len(closed) > 0 {
		r.WinRate = float64(wins) / float64(len(closed)) * 100
	}

	if r.ClosedTrades < liveMinTrades {
		r.Reasons = append(r.Reasons, types.DegradedInsufficientHistory)
	}
	if r.ClosedTrades > 0 && r.WinRate < liveMinWinRate {
		r.Reasons = append(r.Reasons, "win_rate_below_threshold")
	}
	if r.ClosedTrades > 0 && r.TotalPnL <= 0 {
		r.Reasons = append(r.Reasons, "not_profitable")
	}
	r.Ready = len(r.Reasons) == 0
	return r
}
