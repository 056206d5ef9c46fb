// Package learning adjusts strategy weights from closed-trade outcomes.
package learning

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"autotrader/internal/events"
	"autotrader/internal/interfaces"
	"autotrader/internal/logger"
	"autotrader/internal/metrics"
	"autotrader/internal/store"
	"autotrader/internal/types"
)

const (
	MaxAdjustment        = 5.0
	pnlBonus             = 2.0
	pnlBonusThresholdPct = 1.0

	overconfidentAvg     = 75.0
	overconfidentWinRate = 45.0
)

type Store interface {
	interfaces.TradeStore
	interfaces.WeightStore
	interfaces.SignalStore
}

type Publisher interface {
	Publish(kind events.Kind, payload any) bool
}

type Learner struct {
	cfg   *store.Config
	store Store
	pub   Publisher
	now   func() time.Time
}

func New(cfg *store.Config, s Store, pub Publisher) *Learner {
	return &Learner{cfg: cfg, store: s, pub: pub, now: time.Now}
}

// Adjustment maps a strategy's win rate (percent) and average return
// (percent) onto a weight adjustment in [-5, 5], rounded to 2 decimals.
func Adjustment(winRatePct, avgPnLPct float64) float64 {
	adj := (winRatePct - 50) / 10
	switch {
	case avgPnLPct > pnlBonusThresholdPct:
		adj += pnlBonus
	case avgPnLPct < -pnlBonusThresholdPct:
		adj -= pnlBonus
	}
	adj = types.Clamp(adj, -MaxAdjustment, MaxAdjustment)
	return decimal.NewFromFloat(adj).Round(2).InexactFloat64()
}

// ConfidenceBias is the negative correction applied to future confidence
// when the sample was confident but lost; otherwise 0.
func ConfidenceBias(avgConfidence, winRatePct float64) (float64, bool) {
	if avgConfidence > overconfidentAvg && winRatePct < overconfidentWinRate {
		bias := -types.Clamp((avgConfidence-winRatePct)/10, 0, MaxAdjustment)
		return decimal.NewFromFloat(bias).Round(2).InexactFloat64(), true
	}
	return 0, false
}

type group struct {
	trades int
	wins   int
	pnlPct float64
}

// Run learns from closed trades in the configured window. Fewer trades
// than the minimum sample leave the weights untouched and are reported as
// insufficient data.
func (l *Learner) Run(ctx context.Context) (types.LearningReport, error) {
	op := logger.StartOperation(ctx, "auto_learn")
	ctx = op.Context()

	now := l.now().UTC()
	rep := types.LearningReport{
		ID:          uuid.NewString(),
		WindowDays:  l.cfg.Learning.WindowDays,
		Adjustments: map[string]float64{},
		Skipped:     map[string]int{},
		RanAt:       now,
	}

	since := now.AddDate(0, 0, -l.cfg.Learning.WindowDays)
	trades, err := l.store.ClosedTradesSince(ctx, since, l.cfg.Learning.MaxSamples)
	if err != nil {
		op.EndWithError(err)
		return rep, err
	}
	rep.SampleSize = len(trades)

	minSamples := l.cfg.Learning.MinSamples
	if minSamples <= 0 {
		minSamples = 3
	}

	groups := map[string]*group{}
	var wins int
	var confSum float64
	for _, t := range trades {
		rep.TotalPnL += t.PnL
		confSum += t.Confidence
		if t.PnL > 0 {
			wins++
		}
		if t.Strategy == "" {
			continue
		}
		g := groups[t.Strategy]
		if g == nil {
			g = &group{}
			groups[t.Strategy] = g
		}
		g.trades++
		g.pnlPct += t.PnLPct()
		if t.PnL > 0 {
			g.wins++
		}
	}
	rep.TotalPnL = decimal.NewFromFloat(rep.TotalPnL).Round(2).InexactFloat64()

	if len(trades) < minSamples {
		rep.InsufficientData = true
		logger.Info(ctx, "Not enough closed trades to learn", "sample_size", len(trades), "min", minSamples)
		return l.finish(ctx, op, rep)
	}

	rep.WinRate = float64(wins) / float64(len(trades)) * 100
	rep.AvgConfidence = confSum / float64(len(trades))

	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		g := groups[name]
		if g.trades < minSamples {
			rep.Skipped[name] = g.trades
			continue
		}
		winRate := float64(g.wins) / float64(g.trades) * 100
		adj := Adjustment(winRate, g.pnlPct/float64(g.trades))
		if err := l.store.SaveWeightAdjustment(ctx, name, adj); err != nil {
			op.EndWithError(err)
			return rep, err
		}
		rep.Adjustments[name] = adj
		metrics.WeightAdjustment.WithLabelValues(name).Set(adj)
		logger.Debug(ctx, "Strategy weight adjusted", "strategy", name, "trades", g.trades, "win_rate", winRate, "adjustment", adj)
	}

	rep.ConfidenceBias, rep.Overconfidence = ConfidenceBias(rep.AvgConfidence, rep.WinRate)
	if err := l.store.SaveWeightAdjustment(ctx, types.ConfidenceBiasKey, rep.ConfidenceBias); err != nil {
		op.EndWithError(err)
		return rep, err
	}
	if rep.Overconfidence {
		logger.Risk(ctx, "", "OVERCONFIDENCE_DETECTED",
			"avg_confidence", rep.AvgConfidence,
			"win_rate", rep.WinRate,
			"confidence_bias", rep.ConfidenceBias,
		)
	}

	return l.finish(ctx, op, rep)
}

func (l *Learner) finish(ctx context.Context, op *logger.OperationTimer, rep types.LearningReport) (types.LearningReport, error) {
	if err := l.store.SaveLearningRun(ctx, rep); err != nil {
		op.EndWithError(err)
		return rep, err
	}
	if l.pub != nil {
		l.pub.Publish(events.KindLearning, rep)
	}
	logger.Info(ctx, "Learning run completed",
		"sample_size", rep.SampleSize,
		"adjustments", rep.Adjustments,
		"win_rate", rep.WinRate,
		"avg_confidence", rep.AvgConfidence,
		"confidence_bias", rep.ConfidenceBias,
	)
	op.End(
		"sample_size", rep.SampleSize,
		"adjusted", len(rep.Adjustments),
		"skipped", len(rep.Skipped),
		"win_rate", rep.WinRate,
		"total_pnl", rep.TotalPnL,
		"insufficient_data", rep.InsufficientData,
	)
	return rep, nil
}
