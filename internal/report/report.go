// Package report builds the weekly performance summary and its CSV export.
package report

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"autotrader/internal/events"
	"autotrader/internal/interfaces"
	"autotrader/internal/logger"
	"autotrader/internal/store"
	"autotrader/internal/types"
)

const week = 7 * 24 * time.Hour

type Store interface {
	interfaces.TradeStore
	interfaces.RunStore
}

type Publisher interface {
	Publish(kind events.Kind, payload any) bool
}

type Reporter struct {
	cfg   *store.Config
	store Store
	pub   Publisher
	now   func() time.Time
}

func New(cfg *store.Config, s Store, pub Publisher) *Reporter {
	return &Reporter{cfg: cfg, store: s, pub: pub, now: time.Now}
}

// Weekly summarizes the trailing seven days. The CSV export is best
// effort; a write failure is logged and leaves CSVPath empty.
func (r *Reporter) Weekly(ctx context.Context) (types.WeeklyReport, error) {
	to := r.now()
	from := to.Add(-week)
	rep := types.WeeklyReport{From: from, To: to, Runs: map[types.RunStatus]int{}}

	closed, err := r.store.ClosedTradesSince(ctx, from, 0)
	if err != nil {
		return rep, err
	}
	open, err := r.store.OpenTrades(ctx)
	if err != nil {
		return rep, err
	}
	runs, err := r.store.RunsSince(ctx, from)
	if err != nil {
		return rep, err
	}

	rep.OpenTrades = len(open)
	for _, run := range runs {
		rep.Runs[run.Status]++
	}
	rep.Strategies = Summarize(closed)
	for _, s := range rep.Strategies {
		rep.Trades += s.Trades
		rep.Wins += s.Wins
		rep.TotalPnL += s.PnL
	}
	rep.TotalPnL = round2(rep.TotalPnL)
	if rep.Trades > 0 {
		rep.WinRate = round2(float64(rep.Wins) / float64(rep.Trades) * 100)
	}
	if rep.Trades < r.cfg.Learning.MinSamples {
		rep.Degraded = append(rep.Degraded, types.DegradedInsufficientHistory)
	}

	path := filepath.Join(r.cfg.ReportDir, "weekly-"+to.In(r.cfg.Location()).Format("2006-01-02")+".csv")
	if err := WriteCSV(path, rep); err != nil {
		logger.ErrorWithErr(ctx, "Weekly report export failed", err, "path", path)
	} else {
		rep.CSVPath = path
	}

	logger.Info(ctx, "Weekly report built",
		"trades", rep.Trades,
		"win_rate", rep.WinRate,
		"total_pnl", rep.TotalPnL,
		"open_trades", rep.OpenTrades,
	)
	if r.pub != nil {
		r.pub.Publish(events.KindReport, rep)
	}
	return rep, nil
}

// Summarize groups closed trades by strategy, ordered by name.
func Summarize(closed []types.TradeOrder) []types.StrategyStats {
	type agg struct {
		stats  types.StrategyStats
		pctSum float64
	}
	groups := map[string]*agg{}
	for _, t := range closed {
		g := groups[t.Strategy]
		if g == nil {
			g = &agg{stats: types.StrategyStats{Strategy: t.Strategy}}
			groups[t.Strategy] = g
		}
		g.stats.Trades++
		if t.PnL > 0 {
			g.stats.Wins++
		}
		g.stats.PnL += t.PnL
		g.pctSum += t.PnLPct()
	}

	names := make([]string, 0, len(groups))
	for k := range groups {
		names = append(names, k)
	}
	sort.Strings(names)

	out := make([]types.StrategyStats, 0, len(names))
	for _, k := range names {
		g := groups[k]
		s := g.stats
		s.PnL = round2(s.PnL)
		s.WinRate = round2(float64(s.Wins) / float64(s.Trades) * 100)
		s.AvgPnLPct = round2(g.pctSum / float64(s.Trades))
		out = append(out, s)
	}
	return out
}

func WriteCSV(path string, rep types.WeeklyReport) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer out.Close()

	w := csv.NewWriter(out)
	headers := []string{"strategy", "trades", "wins", "win_rate_pct", "pnl", "avg_pnl_pct"}
	if err := w.Write(headers); err != nil {
		return err
	}
	for _, s := range rep.Strategies {
		rec := []string{s.Strategy, strconv.Itoa(s.Trades), strconv.Itoa(s.Wins),
			fmt.Sprintf("%.2f", s.WinRate), fmt.Sprintf("%.2f", s.PnL), fmt.Sprintf("%.2f", s.AvgPnLPct)}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	if err := w.Write([]string{"TOTAL", strconv.Itoa(rep.Trades), strconv.Itoa(rep.Wins),
		fmt.Sprintf("%.2f", rep.WinRate), fmt.Sprintf("%.2f", rep.TotalPnL), ""}); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

func round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
