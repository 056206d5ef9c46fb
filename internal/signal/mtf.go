package signal

import (
	"context"
	"time"

	"autotrader/internal/interfaces"
	"autotrader/internal/logger"
	"autotrader/internal/ta"
	"autotrader/internal/types"
)

const (
	HourlyLookback = 100
	// Daily bars fetched to build the weekly series.
	WeeklySourceLookback = 250
	daysPerWeek          = 5

	strongAgreement  = 0.8
	partialAgreement = 0.5
	agreementBonus   = 15.0
	disagreementCost = -10.0
	volatilePenalty  = -10.0
)

// Confirmer re-scores a decision on an hourly and a weekly timeframe with
// equal weights and no oracle.
type Confirmer struct {
	data    interfaces.MarketData
	scorer  Scorer
	timeout time.Duration
}

func NewConfirmer(data interfaces.MarketData, scorer Scorer, timeout time.Duration) *Confirmer {
	if scorer == nil {
		scorer = HeuristicScorer{}
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Confirmer{data: data, scorer: scorer, timeout: timeout}
}

// Confirm returns a copy of a with the agreement adjustment and the
// volatile-regime penalty applied. HOLD decisions are returned unchanged.
// Timeframes that cannot be fetched or lack history are not counted.
func (c *Confirmer) Confirm(ctx context.Context, a types.SymbolAnalysis) types.SymbolAnalysis {
	if a.Decision == types.ActionHold {
		return a
	}

	conf := types.Confirmation{Checked: true}
	for _, bars := range c.auxiliary(ctx, a.Symbol) {
		if len(bars) < ta.MinBars {
			continue
		}
		conf.Available++
		if c.coarseDecision(bars) == a.Decision {
			conf.Agreeing++
		}
	}

	if conf.Available > 0 {
		conf.Ratio = float64(conf.Agreeing) / float64(conf.Available)
		switch {
		case conf.Ratio >= strongAgreement:
			conf.Adjustment = agreementBonus
		case conf.Ratio >= partialAgreement:
			conf.Adjustment = 0
		default:
			conf.Adjustment = disagreementCost
		}
	}
	if a.Regime.Regime == types.RegimeVolatile {
		conf.Adjustment += volatilePenalty
	}

	a.Confirmation = conf
	a.Confidence = types.Clamp(a.Confidence+conf.Adjustment, 0, 100)
	return a
}

func (c *Confirmer) auxiliary(ctx context.Context, symbol string) [][]types.Bar {
	var out [][]types.Bar

	hctx, cancel := context.WithTimeout(ctx, c.timeout)
	hourly, err := c.data.Bars(hctx, symbol, types.TimeframeHour, HourlyLookback)
	cancel()
	if err != nil {
		logger.Debug(ctx, "Hourly bars unavailable for confirmation", "symbol", symbol, "error", err)
	} else {
		out = append(out, hourly)
	}

	dctx, cancel := context.WithTimeout(ctx, c.timeout)
	daily, err := c.data.Bars(dctx, symbol, types.TimeframeDay, WeeklySourceLookback)
	cancel()
	if err != nil {
		logger.Debug(ctx, "Daily bars unavailable for weekly confirmation", "symbol", symbol, "error", err)
	} else {
		out = append(out, ta.Resample(daily, daysPerWeek))
	}
	return out
}

func (c *Confirmer) coarseDecision(bars []types.Bar) types.Action {
	comps, _ := ta.Technicals(bars)
	names := make([]string, len(comps))
	for i, comp := range comps {
		names[i] = comp.Name
	}
	return c.scorer.Score(comps, EqualWeights(names...)).Decision
}
