package engineobs

import (
	"context"
	"time"

	"autotrader/internal/engine"
	"autotrader/internal/logger"
	"autotrader/internal/trace"
)

type observableRunner struct {
	runner engine.Runner
}

var _ engine.Runner = (*observableRunner)(nil)

func Wrap(r engine.Runner) engine.Runner {
	return &observableRunner{runner: r}
}

func (or *observableRunner) Dispatch(ctx context.Context, op engine.Operation, p engine.Params) (engine.Result, error) {
	ctx, span := trace.StartSpan(ctx, "engine."+string(op))
	defer span.End()

	start := time.Now()
	logger.InfoSkip(ctx, 1, "Dispatching operation", "operation", op, "symbol", p.Symbol)

	res, err := or.runner.Dispatch(ctx, op, p)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Operation failed", err,
			"operation", op,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return res, err
	}

	logger.InfoSkip(ctx, 1, "Operation completed",
		"operation", op,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}
