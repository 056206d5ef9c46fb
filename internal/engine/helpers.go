package engine

import (
	"context"
	"sync"

	"autotrader/internal/signal"
	"autotrader/internal/types"
)

type analysisResult struct {
	symbol   string
	analysis types.SymbolAnalysis
	err      error
}

// analyzeAll scores symbols on a bounded pool. Results keep the input
// order so the serial action phase is deterministic. Symbols still waiting
// for a slot when ctx ends are not analyzed and carry ctx.Err().
func (e *Engine) analyzeAll(ctx context.Context, symbols []string, w signal.Weights) []analysisResult {
	workers := e.cfg.Trading.MaxParallel
	if workers <= 0 {
		workers = 1
	}

	results := make([]analysisResult, len(symbols))
	semaphore := make(chan struct{}, workers)
	var wg sync.WaitGroup

	for i, sym := range symbols {
		wg.Add(1)
		go func(idx int, symbol string) {
			defer wg.Done()
			if err := ctx.Err(); err != nil {
				results[idx] = analysisResult{symbol: symbol, err: err}
				return
			}
			select {
			case semaphore <- struct{}{}:
			case <-ctx.Done():
				results[idx] = analysisResult{symbol: symbol, err: ctx.Err()}
				return
			}
			defer func() { <-semaphore }()

			a, err := e.analyzer.Analyze(ctx, symbol, w)
			results[idx] = analysisResult{symbol: symbol, analysis: a, err: err}
		}(i, sym)
	}
	wg.Wait()
	return results
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
