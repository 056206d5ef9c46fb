package signal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"autotrader/internal/interfaces"
	"autotrader/internal/logger"
	"autotrader/internal/ta"
	"autotrader/internal/types"
)

// DailyLookback is the number of daily bars fetched per analysis.
const DailyLookback = 120

type Options struct {
	OracleSystem  string
	DataTimeout   time.Duration
	OracleTimeout time.Duration
}

type Analyzer struct {
	data   interfaces.MarketData
	oracle interfaces.Oracle
	scorer Scorer
	opts   Options
}

func NewAnalyzer(data interfaces.MarketData, oracle interfaces.Oracle, scorer Scorer, opts Options) *Analyzer {
	if scorer == nil {
		scorer = HeuristicScorer{}
	}
	if opts.DataTimeout <= 0 {
		opts.DataTimeout = 15 * time.Second
	}
	if opts.OracleTimeout <= 0 {
		opts.OracleTimeout = 30 * time.Second
	}
	return &Analyzer{data: data, oracle: oracle, scorer: scorer, opts: opts}
}

// Analyze scores symbol. Fewer than ta.MinBars bars resolve to a neutral
// HOLD; an oracle failure only neutralizes the oracle component. A market
// data failure is returned as an error.
func (a *Analyzer) Analyze(ctx context.Context, symbol string, w Weights) (types.SymbolAnalysis, error) {
	out := types.SymbolAnalysis{
		Symbol:     symbol,
		Decision:   types.ActionHold,
		AnalyzedAt: time.Now().UTC(),
	}

	dctx, cancel := context.WithTimeout(ctx, a.opts.DataTimeout)
	bars, err := a.data.Bars(dctx, symbol, types.TimeframeDay, DailyLookback)
	cancel()
	if err != nil {
		return out, fmt.Errorf("bars for %s: %w", symbol, err)
	}
	out.Bars = len(bars)
	if len(bars) > 0 {
		out.Price = bars[len(bars)-1].Close
	}
	if len(bars) < ta.MinBars {
		out.Reason = fmt.Sprintf("%v: %d bars", types.ErrInsufficientData, len(bars))
		logger.Debug(ctx, "Insufficient history, holding", "symbol", symbol, "bars", len(bars))
		return out, nil
	}

	components, patterns := ta.Technicals(bars)
	out.Regime = ta.ClassifyRegime(bars)
	out.Patterns = patterns

	oracleComp := types.Component{Name: types.StrategyOracle, Signal: types.Signal{Action: types.ActionHold}}
	if a.oracle != nil {
		op, err := a.consult(ctx, symbol, out.Price, components, out.Regime, patterns)
		switch {
		case errors.Is(err, types.ErrOracleDisabled):
			out.OracleError = types.DegradedOracleNotConfigured
		case err != nil:
			out.OracleError = err.Error()
		default:
			out.Oracle = &op
			oracleComp.Signal = types.Signal{Action: types.Action(op.Signal), Strength: op.Confidence}
			oracleComp.Values = map[string]float64{"target_price": op.TargetPrice, "stop_loss": op.StopLoss}
		}
	}
	out.Components = append(components, oracleComp)

	s := a.scorer.Score(out.Components, w.Effective)
	out.NormalizedScore = s.Normalized
	out.Decision = s.Decision
	out.DominantStrategy = s.Dominant
	out.Confidence = s.Confidence
	if s.Decision != types.ActionHold {
		out.Confidence = types.Clamp(s.Confidence+w.ConfidenceBias, 0, 100)
	}
	return out, nil
}

func (a *Analyzer) consult(ctx context.Context, symbol string, price float64, comps []types.Component, regime types.RegimeResult, patterns []string) (types.OracleOpinion, error) {
	octx, cancel := context.WithTimeout(ctx, a.opts.OracleTimeout)
	defer cancel()
	return a.oracle.Opine(octx, interfaces.OracleRequest{
		Symbol: symbol,
		System: a.opts.OracleSystem,
		Prompt: BuildPrompt(symbol, price, comps, regime, patterns),
	})
}
