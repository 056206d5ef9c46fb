package engine

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"autotrader/internal/broker/paper"
	"autotrader/internal/execution"
	"autotrader/internal/interfaces"
	"autotrader/internal/learning"
	"autotrader/internal/oracle/noop"
	"autotrader/internal/report"
	"autotrader/internal/risk"
	"autotrader/internal/signal"
	"autotrader/internal/storage"
	"autotrader/internal/store"
	"autotrader/internal/types"
	"autotrader/internal/watchlist"
)

func risingBars(n int) []types.Bar {
	bars := make([]types.Bar, n)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	open := 100.0
	for i := range bars {
		close := open * 1.01
		bars[i] = types.Bar{
			Time:   start.AddDate(0, 0, i),
			Open:   open,
			High:   close * 1.002,
			Low:    open * 0.998,
			Close:  close,
			Volume: 1_000_000,
		}
		open = close
	}
	return bars
}

type seriesData struct {
	mu   sync.Mutex
	bars []types.Bar
}

func (d *seriesData) Bars(ctx context.Context, symbol string, tf types.Timeframe, limit int) ([]types.Bar, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	bars := d.bars
	if len(bars) > limit {
		bars = bars[len(bars)-limit:]
	}
	return bars, nil
}

func (d *seriesData) LastPrice(ctx context.Context, symbol string) (float64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.bars) == 0 {
		return 0, errors.New("no bars")
	}
	return d.bars[len(d.bars)-1].Close, nil
}

// openBroker is the paper broker with the market always open.
type openBroker struct {
	interfaces.Broker
}

func (b openBroker) Clock(ctx context.Context) (types.MarketClock, error) {
	return types.MarketClock{IsOpen: true, Timestamp: time.Now()}, nil
}

// wednesday is inside the default session in any timezone config.
var wednesday = time.Date(2024, 3, 6, 11, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T) (*Engine, *storage.SQLiteStore) {
	t.Helper()
	ctx := context.Background()
	st, err := storage.Open(ctx, filepath.Join(t.TempDir(), "engine.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	cfg := store.Default()
	cfg.Trading.Timezone = "UTC"
	cfg.Trading.Start = "00:00"
	cfg.Trading.End = "23:59"
	cfg.Watchlist.Static = []string{"TEST"}
	cfg.Watchlist.Dynamic = false
	cfg.Risk.MinConfidence = 5

	data := &seriesData{bars: risingBars(60)}
	brk := openBroker{paper.New(cfg, st, data)}
	orc := noop.New()
	scorer := signal.HeuristicScorer{}

	e := New(Deps{
		Config:    cfg,
		Store:     st,
		Broker:    brk,
		Oracle:    orc,
		Analyzer:  signal.NewAnalyzer(data, orc, scorer, signal.Options{}),
		Confirmer: signal.NewConfirmer(data, scorer, time.Second),
		Gate:      risk.New(cfg, st, brk, data, nil),
		Exec:      execution.New(cfg, brk, st, data, nil),
		Learner:   learning.New(cfg, st, nil),
		Curator:   watchlist.NewCurator(cfg, nil, st),
		Reporter:  report.New(cfg, st, nil),
	})
	e.now = func() time.Time { return wednesday }
	return e, st
}

func TestRunCycleOpensPosition(t *testing.T) {
	e, st := newTestEngine(t)
	ctx := context.Background()

	run, err := e.RunCycle(ctx)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if run.Status != types.RunCompleted {
		t.Fatalf("Expected completed, got %s (%s, %v)", run.Status, run.Note, run.Errors)
	}
	if run.SymbolsChecked != 1 || run.SignalsGenerated != 1 {
		t.Errorf("Expected 1 symbol and 1 signal, got %d and %d", run.SymbolsChecked, run.SignalsGenerated)
	}
	if run.TradesExecuted != 1 {
		t.Errorf("Expected 1 trade, got %d (%v)", run.TradesExecuted, run.Errors)
	}

	trade, ok, err := st.OpenTradeBySymbol(ctx, "TEST")
	if err != nil || !ok {
		t.Fatalf("Expected open TEST trade, got %v (%v)", ok, err)
	}
	if trade.StopOrderID == "" {
		t.Error("Expected protective stop to be attached")
	}

	last, ok, err := st.LastRun(ctx)
	if err != nil || !ok {
		t.Fatalf("Expected last run, got %v (%v)", ok, err)
	}
	if last.ID != run.ID || last.Status != types.RunCompleted {
		t.Errorf("Expected persisted completed run %s, got %s %s", run.ID, last.ID, last.Status)
	}
}

func TestRunCycleSecondPassDoesNotDuplicate(t *testing.T) {
	e, st := newTestEngine(t)
	ctx := context.Background()

	if _, err := e.RunCycle(ctx); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	run, err := e.RunCycle(ctx)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if run.TradesExecuted != 0 {
		t.Errorf("Expected 0 trades on second pass, got %d", run.TradesExecuted)
	}
	open, err := st.OpenTrades(ctx)
	if err != nil {
		t.Fatalf("OpenTrades failed: %v", err)
	}
	if len(open) != 1 {
		t.Errorf("Expected 1 open trade, got %d", len(open))
	}
}

func TestRunCycleCircuitBreaker(t *testing.T) {
	e, st := newTestEngine(t)
	ctx := context.Background()

	now := time.Now()
	loss := types.TradeOrder{
		ID: "loss", Symbol: "SBIN", Side: types.ActionBuy, Qty: 10, EntryPrice: 500,
		Strategy: "ema", Status: types.TradeClosed, ExitPrice: 440, PnL: -600,
		OpenedAt: now, ClosedAt: now,
	}
	if err := st.SaveTrade(ctx, loss); err != nil {
		t.Fatalf("SaveTrade failed: %v", err)
	}

	run, err := e.RunCycle(ctx)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if run.Status != types.RunCircuitBreaker {
		t.Fatalf("Expected circuit_breaker, got %s", run.Status)
	}
	if run.TradesExecuted != 0 || run.SymbolsChecked != 0 {
		t.Errorf("Expected no symbols and 0 trades, got %d and %d", run.SymbolsChecked, run.TradesExecuted)
	}
	if !strings.HasPrefix(run.Note, types.DegradedCircuitBreakerTripped) {
		t.Errorf("Expected circuit breaker note, got %q", run.Note)
	}
	open, _ := st.OpenTrades(ctx)
	if len(open) != 0 {
		t.Errorf("Expected no open trades, got %d", len(open))
	}
}

func TestRunCycleSkips(t *testing.T) {
	ctx := context.Background()

	t.Run("disabled by override", func(t *testing.T) {
		e, st := newTestEngine(t)
		if err := st.SetKV(ctx, EnabledKey, "false"); err != nil {
			t.Fatalf("SetKV failed: %v", err)
		}
		run, _ := e.RunCycle(ctx)
		if run.Status != types.RunSkipped || run.Note != "trading disabled" {
			t.Errorf("Expected skipped/trading disabled, got %s/%s", run.Status, run.Note)
		}
	})

	t.Run("outside hours", func(t *testing.T) {
		e, _ := newTestEngine(t)
		e.now = func() time.Time { return time.Date(2024, 3, 9, 11, 0, 0, 0, time.UTC) }
		run, _ := e.RunCycle(ctx)
		if run.Status != types.RunSkipped || run.Note != "outside trading hours" {
			t.Errorf("Expected skipped/outside trading hours, got %s/%s", run.Status, run.Note)
		}
	})

	t.Run("lock held", func(t *testing.T) {
		e, st := newTestEngine(t)
		if ok, err := st.AcquireLock(ctx, cycleLock, "other-run", time.Minute); err != nil || !ok {
			t.Fatalf("Expected lock, got %v (%v)", ok, err)
		}
		run, _ := e.RunCycle(ctx)
		if run.Status != types.RunSkipped || run.TradesExecuted != 0 {
			t.Errorf("Expected skipped with 0 trades, got %s with %d", run.Status, run.TradesExecuted)
		}
	})
}

func TestEveryOperationRegistered(t *testing.T) {
	e, _ := newTestEngine(t)
	d := NewDispatcher(e)
	for _, op := range Operations {
		if !d.registered(op) {
			t.Errorf("Expected %s to be registered", op)
		}
	}
	if len(d.handlers) != len(Operations) {
		t.Errorf("Expected %d handlers, got %d", len(Operations), len(d.handlers))
	}
}

func TestParseOperation(t *testing.T) {
	op, err := ParseOperation(" Execute_Cycle ")
	if err != nil || op != OpExecuteCycle {
		t.Errorf("Expected execute_cycle, got %s (%v)", op, err)
	}
	if _, err := ParseOperation("liquidate_all"); !errors.Is(err, ErrUnknownOperation) {
		t.Errorf("Expected ErrUnknownOperation, got %v", err)
	}
}

func TestDispatchAnalyzeSymbol(t *testing.T) {
	e, _ := newTestEngine(t)
	d := NewDispatcher(e)
	ctx := context.Background()

	if _, err := d.Dispatch(ctx, OpAnalyzeSymbol, Params{}); !errors.Is(err, ErrMissingSymbol) {
		t.Errorf("Expected ErrMissingSymbol, got %v", err)
	}

	res, err := d.Dispatch(ctx, OpAnalyzeSymbol, Params{Symbol: "test"})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	a, ok := res.Data.(types.SymbolAnalysis)
	if !ok {
		t.Fatalf("Expected SymbolAnalysis, got %T", res.Data)
	}
	if a.Symbol != "TEST" || a.Decision != types.ActionBuy {
		t.Errorf("Expected TEST BUY, got %s %s", a.Symbol, a.Decision)
	}
	if !a.Confirmation.Checked {
		t.Error("Expected multi-timeframe confirmation")
	}
	if a.OracleError != types.DegradedOracleNotConfigured {
		t.Errorf("Expected %s, got %q", types.DegradedOracleNotConfigured, a.OracleError)
	}
}

func TestDispatchEvaluateDoesNotTrade(t *testing.T) {
	e, st := newTestEngine(t)
	ctx := context.Background()

	res, err := NewDispatcher(e).Dispatch(ctx, OpEvaluate, Params{})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	ev := res.Data.(EvaluateResult)
	if len(ev.Analyses) != 1 {
		t.Fatalf("Expected 1 analysis, got %d", len(ev.Analyses))
	}
	if !containsString(ev.Degraded, types.DegradedOracleNotConfigured) {
		t.Errorf("Expected oracle degraded flag, got %v", ev.Degraded)
	}
	open, _ := st.OpenTrades(ctx)
	if len(open) != 0 {
		t.Errorf("Expected no trades, got %d", len(open))
	}
}

func TestStatusSurfacesDegradedState(t *testing.T) {
	e, _ := newTestEngine(t)

	st, err := e.Status(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if st.Oracle != "none" || !st.MarketOpen || !st.Enabled {
		t.Errorf("Expected oracle none, open market, enabled; got %s %v %v", st.Oracle, st.MarketOpen, st.Enabled)
	}
	for _, flag := range []string{types.DegradedOracleNotConfigured, types.DegradedInsufficientHistory} {
		if !containsString(st.Degraded, flag) {
			t.Errorf("Expected %s in %v", flag, st.Degraded)
		}
	}
	if st.Readiness.Ready {
		t.Error("Expected paper record to be not ready for live")
	}
	if st.Account == nil || st.Account.Cash != 100000 {
		t.Errorf("Expected paper account with 100000 cash, got %+v", st.Account)
	}
}

func TestReadiness(t *testing.T) {
	var closed []types.TradeOrder
	for i := 0; i < 20; i++ {
		pnl := 30.0
		if i%4 == 0 {
			pnl = -20
		}
		closed = append(closed, types.TradeOrder{PnL: pnl})
	}
	r := Readiness(closed)
	if !r.Ready {
		t.Errorf("Expected ready, got reasons %v", r.Reasons)
	}
	if r.WinRate != 75 {
		t.Errorf("Expected 75%% win rate, got %v", r.WinRate)
	}

	r = Readiness(closed[:5])
	if r.Ready || !containsString(r.Reasons, types.DegradedInsufficientHistory) {
		t.Errorf("Expected insufficient history, got %+v", r)
	}

	for i := range closed {
		closed[i].PnL = -1
	}
	r = Readiness(closed)
	if r.Ready || !containsString(r.Reasons, "not_profitable") || !containsString(r.Reasons, "win_rate_below_threshold") {
		t.Errorf("Expected losing record rejected, got %+v", r)
	}
}

// stalledData never answers until its context ends.
type stalledData struct{}

func (stalledData) Bars(ctx context.Context, symbol string, tf types.Timeframe, limit int) ([]types.Bar, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (stalledData) LastPrice(ctx context.Context, symbol string) (float64, error) {
	<-ctx.Done()
	return 0, ctx.Err()
}

func TestAnalyzeAllStopsOnCancel(t *testing.T) {
	e, _ := newTestEngine(t)
	e.cfg.Trading.MaxParallel = 1
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := e.analyzeAll(ctx, []string{"TCS", "INFY", "WIPRO"}, signal.Weights{})
	if len(results) != 3 {
		t.Fatalf("Expected 3 results, got %d", len(results))
	}
	for _, res := range results {
		if !errors.Is(res.err, context.Canceled) {
			t.Errorf("Expected %s to be skipped with context.Canceled, got %v", res.symbol, res.err)
		}
	}
}

func TestRunCycleBudgetCoversAnalysis(t *testing.T) {
	e, st := newTestEngine(t)
	e.cfg.Trading.CycleBudgetSeconds = 1
	e.analyzer = signal.NewAnalyzer(stalledData{}, noop.New(), signal.HeuristicScorer{}, signal.Options{DataTimeout: time.Minute})
	ctx := context.Background()

	start := time.Now()
	run, err := e.RunCycle(ctx)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Errorf("Expected the budget to bound analysis, took %s", elapsed)
	}
	if run.Status != types.RunCompleted || run.Note != "cycle budget exhausted" {
		t.Errorf("Expected completed with budget note, got %s (%s)", run.Status, run.Note)
	}
	if run.TradesExecuted != 0 {
		t.Errorf("Expected 0 trades, got %d", run.TradesExecuted)
	}
	open, err := st.OpenTrades(ctx)
	if err != nil {
		t.Fatalf("OpenTrades failed: %v", err)
	}
	if len(open) != 0 {
		t.Errorf("Expected no open trades, got %d", len(open))
	}
}

func TestRunCycleCancelled(t *testing.T) {
	e, _ := newTestEngine(t)
	e.analyzer = signal.NewAnalyzer(stalledData{}, noop.New(), signal.HeuristicScorer{}, signal.Options{DataTimeout: time.Minute})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	run, err := e.RunCycle(ctx)
	if err == nil {
		t.Fatal("Expected an error for a cancelled cycle")
	}
	if run.Status != types.RunError || run.Note != "cycle cancelled" {
		t.Errorf("Expected error status with cancel note, got %s (%s)", run.Status, run.Note)
	}
}
