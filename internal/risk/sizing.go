package risk

import (
	"context"
	"fmt"
	"math"

	"autotrader/internal/types"
)

const (
	MinKellySamples = 3
	minFraction     = 0.01

	SizingKelly = "half_kelly"
	SizingFlat  = "flat"
)

// KellyFraction is half of W - (1-W)/R with R = avgWin/avgLoss, clamped to
// [0.01, maxFraction]. A strategy without losses uses W/2. maxFraction is a
// hard ceiling: below 0.01 it also becomes the floor.
func KellyFraction(winRate, avgWin, avgLoss, maxFraction float64) float64 {
	var f float64
	switch {
	case avgLoss <= 0:
		f = winRate / 2
	case avgWin <= 0:
		f = 0
	default:
		r := avgWin / avgLoss
		f = (winRate - (1-winRate)/r) / 2
	}
	if math.IsNaN(f) {
		f = 0
	}
	return types.Clamp(f, math.Min(minFraction, maxFraction), maxFraction)
}

// Size computes the order quantity for strategy at price. The returned
// verdict rejects a zero quantity or one the buying power cannot cover.
func (g *Gatekeeper) Size(ctx context.Context, strategy, symbol string, price float64) (types.Sizing, types.Verdict, error) {
	if price <= 0 {
		return types.Sizing{}, g.reject(ctx, symbol, CheckSizing, "no price"), nil
	}
	maxFraction := g.cfg.Risk.MaxPositionPct / 100

	bctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout(g.cfg.Timeouts.BrokerSeconds))
	acct, err := g.broker.Account(bctx)
	cancel()
	if err != nil {
		return types.Sizing{}, types.Verdict{}, fmt.Errorf("account: %w", err)
	}

	sz := types.Sizing{Fraction: maxFraction, Method: SizingFlat}
	if strategy != "" {
		since := g.now().AddDate(0, 0, -g.cfg.Learning.WindowDays)
		perf, err := g.trades.StrategyPerformance(ctx, strategy, since)
		if err != nil {
			return types.Sizing{}, types.Verdict{}, err
		}
		sz.Samples = perf.Trades
		sz.WinRate = perf.WinRate()
		if perf.Trades >= MinKellySamples {
			sz.Method = SizingKelly
			sz.Fraction = KellyFraction(perf.WinRate(), perf.AvgWin, perf.AvgLoss, maxFraction)
		}
	}

	sz.Qty = int(math.Floor(sz.Fraction * acct.PortfolioValue / price))
	if sz.Qty <= 0 {
		return sz, g.reject(ctx, symbol, CheckSizing, fmt.Sprintf("fraction %.4f of %.2f buys nothing at %.2f", sz.Fraction, acct.PortfolioValue, price)), nil
	}
	if float64(sz.Qty)*price > acct.BuyingPower {
		return sz, g.reject(ctx, symbol, CheckBuyingPower, fmt.Sprintf("cost %.2f exceeds buying power %.2f", float64(sz.Qty)*price, acct.BuyingPower)), nil
	}
	return sz, types.Verdict{Allowed: true}, nil
}
