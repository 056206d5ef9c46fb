package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"autotrader/internal/types"
)

type Operation string

const (
	OpEvaluate         Operation = "evaluate"
	OpExecuteCycle     Operation = "execute_cycle"
	OpStatus           Operation = "status"
	OpTrailingCheck    Operation = "trailing_check"
	OpAnalyzeSymbol    Operation = "analyze_symbol"
	OpAutoLearn        Operation = "auto_learn"
	OpCircuitBreaker   Operation = "circuit_breaker"
	OpDynamicWatchlist Operation = "dynamic_watchlist"
	OpWeeklyReport     Operation = "weekly_report"
)

// Operations lists every operation the dispatcher accepts.
var Operations = []Operation{
	OpEvaluate,
	OpExecuteCycle,
	OpStatus,
	OpTrailingCheck,
	OpAnalyzeSymbol,
	OpAutoLearn,
	OpCircuitBreaker,
	OpDynamicWatchlist,
	OpWeeklyReport,
}

var (
	ErrUnknownOperation = errors.New("unknown operation")
	ErrMissingSymbol    = errors.New("symbol is required")
)

func ParseOperation(s string) (Operation, error) {
	op := Operation(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Operations {
		if op == known {
			return op, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownOperation, s)
}

type Params struct {
	Symbol string `json:"symbol,omitempty"`
}

type Result struct {
	Operation Operation `json:"operation"`
	Data      any       `json:"data"`
}

type Handler func(ctx context.Context, p Params) (any, error)

// Runner is the single entry point for operators and the scheduler.
type Runner interface {
	Dispatch(ctx context.Context, op Operation, p Params) (Result, error)
}

type Dispatcher struct {
	handlers map[Operation]Handler
}

var _ Runner = (*Dispatcher)(nil)

func NewDispatcher(e *Engine) *Dispatcher {
	return &Dispatcher{handlers: map[Operation]Handler{
		OpEvaluate: func(ctx context.Context, p Params) (any, error) {
			return e.Evaluate(ctx)
		},
		OpExecuteCycle: func(ctx context.Context, p Params) (any, error) {
			return e.RunCycle(ctx)
		},
		OpStatus: func(ctx context.Context, p Params) (any, error) {
			return e.Status(ctx)
		},
		OpTrailingCheck: func(ctx context.Context, p Params) (any, error) {
			return e.exec.MaintainStops(ctx)
		},
		OpAnalyzeSymbol: func(ctx context.Context, p Params) (any, error) {
			return e.AnalyzeSymbol(ctx, p.Symbol)
		},
		OpAutoLearn: func(ctx context.Context, p Params) (any, error) {
			return e.learner.Run(ctx)
		},
		OpCircuitBreaker: func(ctx context.Context, p Params) (any, error) {
			return e.gate.CircuitBreaker(ctx)
		},
		OpDynamicWatchlist: func(ctx context.Context, p Params) (any, error) {
			return e.curator.Curate(ctx)
		},
		OpWeeklyReport: func(ctx context.Context, p Params) (any, error) {
			return e.reporter.Weekly(ctx)
		},
	}}
}

func (d *Dispatcher) Dispatch(ctx context.Context, op Operation, p Params) (Result, error) {
	h, ok := d.handlers[op]
	if !ok {
		return Result{Operation: op}, fmt.Errorf("%w: %q", ErrUnknownOperation, op)
	}
	data, err := h(ctx, p)
	return Result{Operation: op, Data: data}, err
}

func (d *Dispatcher) registered(op Operation) bool {
	_, ok := d.handlers[op]
	return ok
}

type EvaluateResult struct {
	Symbols  []string               `json:"symbols"`
	Analyses []types.SymbolAnalysis `json:"analyses"`
	Errors   []string               `json:"errors,omitempty"`
	Degraded []string               `json:"degraded,omitempty"`
}

// Evaluate scores and confirms the current watchlist without trading.
func (e *Engine) Evaluate(ctx context.Context) (EvaluateResult, error) {
	wl, err := e.curator.Curate(ctx)
	if err != nil {
		return EvaluateResult{}, err
	}
	w, err := e.weights(ctx)
	if err != nil {
		return EvaluateResult{}, err
	}

	res := EvaluateResult{Symbols: wl.Symbols}
	if wl.Degraded != "" {
		res.Degraded = append(res.Degraded, wl.Degraded)
	}
	for _, r := range e.analyzeAll(ctx, wl.Symbols, w) {
		if r.err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", r.symbol, r.err))
			continue
		}
		a := e.confirmer.Confirm(ctx, r.analysis)
		if a.OracleError == types.DegradedOracleNotConfigured && !containsString(res.Degraded, a.OracleError) {
			res.Degraded = append(res.Degraded, a.OracleError)
		}
		res.Analyses = append(res.Analyses, a)
	}
	return res, nil
}

// AnalyzeSymbol scores and confirms one symbol without trading.
func (e *Engine) AnalyzeSymbol(ctx context.Context, symbol string) (types.SymbolAnalysis, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return types.SymbolAnalysis{}, ErrMissingSymbol
	}
	w, err := e.weights(ctx)
	if err != nil {
		return types.SymbolAnalysis{}, err
	}
	a, err := e.analyzer.Analyze(ctx, symbol, w)
	if err != nil {
		return a, err
	}
	return e.confirmer.Confirm(ctx, a), nil
}
