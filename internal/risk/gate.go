// Package risk implements the layered controls that stand between a BUY
// decision and the broker: the daily circuit breaker, the per-symbol gate
// and Kelly position sizing.
package risk

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"autotrader/internal/interfaces"
	"autotrader/internal/logger"
	"autotrader/internal/metrics"
	"autotrader/internal/store"
	"autotrader/internal/types"
)

// Gate check names, also used as metric labels.
const (
	CheckOpenPosition     = "open_position"
	CheckDailyTrades      = "daily_trades"
	CheckMinConfidence    = "min_confidence"
	CheckCorrelation      = "correlation_limit"
	CheckEarningsBlackout = "earnings_blackout"
	CheckGap              = "gap_check"
	CheckSizing           = "sizing"
	CheckBuyingPower      = "buying_power"
)

// Gatekeeper reads every input live from the store and the collaborators;
// it keeps no state between calls.
type Gatekeeper struct {
	cfg      *store.Config
	trades   interfaces.TradeStore
	broker   interfaces.Broker
	data     interfaces.MarketData
	calendar interfaces.Calendar
	now      func() time.Time
}

func New(cfg *store.Config, trades interfaces.TradeStore, broker interfaces.Broker, data interfaces.MarketData, calendar interfaces.Calendar) *Gatekeeper {
	return &Gatekeeper{
		cfg:      cfg,
		trades:   trades,
		broker:   broker,
		data:     data,
		calendar: calendar,
		now:      time.Now,
	}
}

// CircuitBreaker compares today's realized pnl with the configured floor.
// A store failure is returned, never treated as safe.
func (g *Gatekeeper) CircuitBreaker(ctx context.Context) (types.CircuitStatus, error) {
	floor := -math.Abs(g.cfg.Risk.MaxDailyLoss)
	pnl, closed, err := g.trades.RealizedPnLSince(ctx, g.cfg.StartOfDay(g.now()))
	if err != nil {
		return types.CircuitStatus{Floor: floor}, fmt.Errorf("circuit breaker: %w", err)
	}
	st := types.CircuitStatus{
		Safe:        pnl >= floor,
		RealizedPnL: pnl,
		Floor:       floor,
		ClosedToday: closed,
	}
	if !st.Safe {
		logger.Risk(ctx, "", "CIRCUIT_BREAKER_TRIPPED",
			"realized_pnl", pnl,
			"floor", floor,
			"closed_today", closed,
		)
	}
	return st, nil
}

// Evaluate runs the gate for a BUY candidate and sizes it when allowed.
// Store failures are returned as errors; calendar and price-data failures
// let the candidate through.
func (g *Gatekeeper) Evaluate(ctx context.Context, a types.SymbolAnalysis) (types.Verdict, types.Sizing, error) {
	v, err := g.Check(ctx, a)
	if err != nil || !v.Allowed {
		return v, types.Sizing{}, err
	}
	sz, v, err := g.Size(ctx, a.DominantStrategy, a.Symbol, a.Price)
	return v, sz, err
}

func (g *Gatekeeper) Check(ctx context.Context, a types.SymbolAnalysis) (types.Verdict, error) {
	symbol := strings.ToUpper(a.Symbol)

	if _, open, err := g.trades.OpenTradeBySymbol(ctx, symbol); err != nil {
		return types.Verdict{}, err
	} else if open {
		return g.reject(ctx, symbol, CheckOpenPosition, "an open trade already exists"), nil
	}

	opened, err := g.trades.TradesOpenedSince(ctx, g.cfg.StartOfDay(g.now()))
	if err != nil {
		return types.Verdict{}, err
	}
	if g.cfg.Risk.MaxDailyTrades > 0 && opened >= g.cfg.Risk.MaxDailyTrades {
		return g.reject(ctx, symbol, CheckDailyTrades, fmt.Sprintf("%d trades opened today, limit %d", opened, g.cfg.Risk.MaxDailyTrades)), nil
	}

	if a.Confidence < g.cfg.Risk.MinConfidence {
		return g.reject(ctx, symbol, CheckMinConfidence, fmt.Sprintf("confidence %.1f below %.1f", a.Confidence, g.cfg.Risk.MinConfidence)), nil
	}

	if v := g.checkEarnings(ctx, symbol); !v.Allowed {
		return v, nil
	}
	if v, err := g.checkSector(ctx, symbol); err != nil || !v.Allowed {
		return v, err
	}
	if v := g.checkGap(ctx, symbol); !v.Allowed {
		return v, nil
	}
	return types.Verdict{Allowed: true}, nil
}

func (g *Gatekeeper) checkSector(ctx context.Context, symbol string) (types.Verdict, error) {
	limit := g.cfg.Risk.MaxSectorPositions
	if limit <= 0 {
		return types.Verdict{Allowed: true}, nil
	}
	open, err := g.trades.OpenTrades(ctx)
	if err != nil {
		return types.Verdict{}, err
	}
	sector := SectorOf(symbol, g.cfg.Risk.Sectors)
	n := 0
	for _, t := range open {
		if SectorOf(t.Symbol, g.cfg.Risk.Sectors) == sector {
			n++
		}
	}
	if n >= limit {
		return g.reject(ctx, symbol, CheckCorrelation, fmt.Sprintf("%d open positions in sector %s, limit %d", n, sector, limit)), nil
	}
	return types.Verdict{Allowed: true}, nil
}

func (g *Gatekeeper) checkEarnings(ctx context.Context, symbol string) types.Verdict {
	if g.calendar == nil || g.cfg.Risk.EarningsBlackoutH <= 0 {
		return types.Verdict{Allowed: true}
	}
	cctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout(g.cfg.Timeouts.CalendarSeconds))
	defer cancel()

	at, ok, err := g.calendar.NextEarnings(cctx, symbol)
	if err != nil {
		logger.Warn(ctx, "Earnings calendar unavailable, allowing", "symbol", symbol, "error", err)
		return types.Verdict{Allowed: true}
	}
	if !ok {
		return types.Verdict{Allowed: true}
	}
	until := at.Sub(g.now())
	window := time.Duration(g.cfg.Risk.EarningsBlackoutH) * time.Hour
	if until >= 0 && until <= window {
		return g.reject(ctx, symbol, CheckEarningsBlackout, fmt.Sprintf("earnings at %s", at.Format(time.RFC3339)))
	}
	return types.Verdict{Allowed: true}
}

func (g *Gatekeeper) checkGap(ctx context.Context, symbol string) types.Verdict {
	if g.data == nil || g.cfg.Risk.MaxGapPct <= 0 {
		return types.Verdict{Allowed: true}
	}
	dctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout(g.cfg.Timeouts.MarketDataSeconds))
	defer cancel()

	bars, err := g.data.Bars(dctx, symbol, types.TimeframeDay, 2)
	if err != nil || len(bars) < 2 {
		logger.Warn(ctx, "Gap check skipped", "symbol", symbol, "bars", len(bars), "error", err)
		return types.Verdict{Allowed: true}
	}
	prev, last := bars[len(bars)-2], bars[len(bars)-1]
	if prev.Close <= 0 {
		return types.Verdict{Allowed: true}
	}
	gap := (last.Open - prev.Close) / prev.Close * 100
	if math.Abs(gap) > g.cfg.Risk.MaxGapPct {
		return g.reject(ctx, symbol, CheckGap, fmt.Sprintf("opened %.2f%% from prior close", gap))
	}
	return types.Verdict{Allowed: true}
}

func (g *Gatekeeper) reject(ctx context.Context, symbol, check, reason string) types.Verdict {
	metrics.RiskRejections.WithLabelValues(check).Inc()
	logger.Risk(ctx, symbol, "TRADE_BLOCKED", "check", check, "reason", reason)
	return types.Verdict{Allowed: false, Check: check, Reason: reason}
}
