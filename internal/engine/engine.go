// Package engine runs the trading cycle state machine and dispatches
// operator operations.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"autotrader/internal/events"
	"autotrader/internal/execution"
	"autotrader/internal/interfaces"
	"autotrader/internal/learning"
	"autotrader/internal/logger"
	"autotrader/internal/metrics"
	"autotrader/internal/report"
	"autotrader/internal/risk"
	"autotrader/internal/signal"
	"autotrader/internal/store"
	"autotrader/internal/types"
	"autotrader/internal/watchlist"
)

const (
	// EnabledKey is the store override for cfg.Trading.Enabled.
	EnabledKey = "trading.enabled"
	cycleLock  = "execute_cycle"
)

type Publisher interface {
	Publish(kind events.Kind, payload any) bool
}

// Deps are the collaborators of an Engine. All of them are required
// except Events.
type Deps struct {
	Config    *store.Config
	Store     interfaces.Store
	Broker    interfaces.Broker
	Oracle    interfaces.Oracle
	Analyzer  *signal.Analyzer
	Confirmer *signal.Confirmer
	Gate      *risk.Gatekeeper
	Exec      *execution.Manager
	Learner   *learning.Learner
	Curator   *watchlist.Curator
	Reporter  *report.Reporter
	Events    Publisher
}

type Engine struct {
	cfg       *store.Config
	store     interfaces.Store
	broker    interfaces.Broker
	oracle    interfaces.Oracle
	analyzer  *signal.Analyzer
	confirmer *signal.Confirmer
	gate      *risk.Gatekeeper
	exec      *execution.Manager
	learner   *learning.Learner
	curator   *watchlist.Curator
	reporter  *report.Reporter
	events    Publisher
	now       func() time.Time
}

func New(d Deps) *Engine {
	return &Engine{
		cfg:       d.Config,
		store:     d.Store,
		broker:    d.Broker,
		oracle:    d.Oracle,
		analyzer:  d.Analyzer,
		confirmer: d.Confirmer,
		gate:      d.Gate,
		exec:      d.Exec,
		learner:   d.Learner,
		curator:   d.Curator,
		reporter:  d.Reporter,
		events:    d.Events,
		now:       time.Now,
	}
}

func (e *Engine) publish(kind events.Kind, payload any) {
	if e.events != nil {
		e.events.Publish(kind, payload)
	}
}

// RunCycle executes one trading cycle and returns its finalized record.
// The returned error is set only when the cycle ends in the error state.
func (e *Engine) RunCycle(ctx context.Context) (types.RunRecord, error) {
	run := types.RunRecord{ID: uuid.NewString(), Status: types.RunPending, StartedAt: e.now()}
	op := logger.StartOperation(ctx, "execute_cycle", "run_id", run.ID)
	ctx = op.Context()

	if err := e.store.SaveRun(ctx, run); err != nil {
		logger.ErrorWithErr(ctx, "Failed to record run", err, "run_id", run.ID)
	}

	if reason, skip := e.skipReason(ctx); skip {
		return e.finalize(ctx, op, run, types.RunSkipped, reason, nil)
	}

	ttl := time.Duration(e.cfg.Trading.LockTTLSeconds) * time.Second
	locked, err := e.store.AcquireLock(ctx, cycleLock, run.ID, ttl)
	if err != nil {
		return e.finalize(ctx, op, run, types.RunError, "cycle lock unavailable", err)
	}
	if !locked {
		return e.finalize(ctx, op, run, types.RunSkipped, "another cycle is running", nil)
	}
	defer func() {
		if err := e.store.ReleaseLock(context.WithoutCancel(ctx), cycleLock, run.ID); err != nil {
			logger.ErrorWithErr(ctx, "Failed to release cycle lock", err, "run_id", run.ID)
		}
	}()

	run.Status = types.RunRunning
	if err := e.store.UpdateRun(ctx, run); err != nil {
		logger.ErrorWithErr(ctx, "Failed to record run", err, "run_id", run.ID)
	}

	circuit, err := e.gate.CircuitBreaker(ctx)
	if err != nil {
		return e.finalize(ctx, op, run, types.RunError, "circuit breaker unavailable", err)
	}
	if !circuit.Safe {
		note := fmt.Sprintf("%s: realized pnl %.2f below floor %.2f",
			types.DegradedCircuitBreakerTripped, circuit.RealizedPnL, circuit.Floor)
		logger.Risk(ctx, "", "CIRCUIT_BREAKER", "realized_pnl", circuit.RealizedPnL, "floor", circuit.Floor)
		return e.finalize(ctx, op, run, types.RunCircuitBreaker, note, nil)
	}

	wl, err := e.curator.Curate(ctx)
	if err != nil {
		return e.finalize(ctx, op, run, types.RunError, "watchlist unavailable", err)
	}
	weights, err := e.weights(ctx)
	if err != nil {
		return e.finalize(ctx, op, run, types.RunError, "weights unavailable", err)
	}

	deadline := run.StartedAt.Add(e.budget())
	actx, cancel := context.WithTimeout(ctx, deadline.Sub(e.now()))
	results := e.analyzeAll(actx, wl.Symbols, weights)
	exhausted := actx.Err() != nil && ctx.Err() == nil
	cancel()
	if err := ctx.Err(); err != nil {
		return e.finalize(ctx, op, run, types.RunError, "cycle cancelled", err)
	}
	for _, res := range results {
		if exhausted || e.now().After(deadline) {
			run.Note = "cycle budget exhausted"
			logger.Warn(ctx, "Cycle budget exhausted, no new actions", "run_id", run.ID)
			break
		}
		run.SymbolsChecked++
		if res.err != nil {
			run.Errors = append(run.Errors, fmt.Sprintf("%s: %v", res.symbol, res.err))
			continue
		}
		e.act(ctx, &run, res.analysis)
	}

	// Maintenance covers positions opened above and is never skipped by
	// the budget.
	maint, err := e.exec.MaintainStops(ctx)
	if err != nil {
		run.Errors = append(run.Errors, "maintenance: "+err.Error())
	}
	run.StopsAdjusted += maint.Adjusted
	run.PositionsClosed += maint.Closed
	run.Errors = append(run.Errors, maint.Errors...)

	return e.finalize(ctx, op, run, types.RunCompleted, run.Note, nil)
}

// act handles one analyzed symbol: persist, confirm, gate, execute. Every
// failure is recorded on run and the cycle continues.
func (e *Engine) act(ctx context.Context, run *types.RunRecord, a types.SymbolAnalysis) {
	if err := e.store.SaveSignal(ctx, run.ID, a); err != nil {
		logger.ErrorWithErr(ctx, "Failed to record signal", err, "symbol", a.Symbol)
	}
	metrics.Decisions.WithLabelValues(string(a.Decision)).Inc()
	logger.Decision(ctx, a.Symbol, string(a.Decision), a.Confidence, a.Reason,
		"score", a.NormalizedScore, "dominant", a.DominantStrategy, "regime", a.Regime.Regime)
	e.publish(events.KindDecision, a)

	if a.Decision == types.ActionHold {
		return
	}
	run.SignalsGenerated++
	a = e.confirmer.Confirm(ctx, a)

	switch a.Decision {
	case types.ActionBuy:
		verdict, sz, err := e.gate.Evaluate(ctx, a)
		if err != nil {
			run.Errors = append(run.Errors, fmt.Sprintf("%s: risk: %v", a.Symbol, err))
			return
		}
		if !verdict.Allowed {
			return
		}
		if _, err := e.exec.Buy(ctx, a, sz); err != nil {
			run.Errors = append(run.Errors, fmt.Sprintf("%s: buy: %v", a.Symbol, err))
			return
		}
		run.TradesExecuted++
	case types.ActionSell:
		_, err := e.exec.Sell(ctx, a.Symbol, types.CloseSignalSell)
		if errors.Is(err, types.ErrNoPosition) {
			return
		}
		if err != nil {
			run.Errors = append(run.Errors, fmt.Sprintf("%s: sell: %v", a.Symbol, err))
			return
		}
		run.TradesExecuted++
		run.PositionsClosed++
	}
}

// skipReason reports why the cycle must not trade right now.
func (e *Engine) skipReason(ctx context.Context) (string, bool) {
	if !e.enabled(ctx) {
		return "trading disabled", true
	}
	if !e.cfg.InTradingHours(e.now()) {
		return "outside trading hours", true
	}
	clockCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout(e.cfg.Timeouts.BrokerSeconds))
	defer cancel()
	clock, err := e.broker.Clock(clockCtx)
	if err != nil {
		logger.Warn(ctx, "Market clock unavailable, using configured hours", "error", err)
		return "", false
	}
	if !clock.IsOpen {
		return "market closed", true
	}
	return "", false
}

// enabled combines the config switch with the store override.
func (e *Engine) enabled(ctx context.Context) bool {
	if !e.cfg.Trading.Enabled {
		return false
	}
	v, ok, err := e.store.GetKV(ctx, EnabledKey)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to read trading override", err)
		return true
	}
	return !ok || v != "false"
}

func (e *Engine) weights(ctx context.Context) (signal.Weights, error) {
	if err := e.store.SeedWeights(ctx, e.cfg.Weights); err != nil {
		return signal.Weights{}, err
	}
	stored, err := e.store.StrategyWeights(ctx)
	if err != nil {
		return signal.Weights{}, err
	}
	return signal.ResolveWeights(e.cfg.Weights, stored), nil
}

func (e *Engine) budget() time.Duration {
	if e.cfg.Trading.CycleBudgetSeconds <= 0 {
		return 4 * time.Minute
	}
	return time.Duration(e.cfg.Trading.CycleBudgetSeconds) * time.Second
}

func (e *Engine) finalize(ctx context.Context, op *logger.OperationTimer, run types.RunRecord, status types.RunStatus, note string, cause error) (types.RunRecord, error) {
	run.Status = status
	run.Note = note
	run.FinishedAt = e.now()
	run.DurationMs = run.FinishedAt.Sub(run.StartedAt).Milliseconds()
	if cause != nil {
		run.Errors = append(run.Errors, cause.Error())
	}

	if err := e.store.UpdateRun(context.WithoutCancel(ctx), run); err != nil {
		logger.ErrorWithErr(ctx, "Failed to finalize run", err, "run_id", run.ID)
	}
	metrics.Cycles.WithLabelValues(string(status)).Inc()
	metrics.CycleDuration.Observe(float64(run.DurationMs) / 1000)
	e.publish(events.KindRun, run)

	fields := []any{
		"status", status,
		"note", note,
		"symbols_checked", run.SymbolsChecked,
		"signals", run.SignalsGenerated,
		"trades", run.TradesExecuted,
		"stops_adjusted", run.StopsAdjusted,
		"errors", len(run.Errors),
	}
	logger.Info(ctx, "Cycle finished", fields...)
	if cause != nil {
		op.EndWithError(cause, fields...)
		return run, fmt.Errorf("cycle %s: %s: %w", run.ID, note, cause)
	}
	op.End(fields...)
	return run, nil
}
