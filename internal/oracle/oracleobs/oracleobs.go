package oracleobs

import (
	"context"
	"errors"

	"autotrader/internal/interfaces"
	"autotrader/internal/logger"
	"autotrader/internal/metrics"
	"autotrader/internal/trace"
	"autotrader/internal/types"
)

// observableOracle wraps an Oracle with tracing, logging and failure
// counting.
type observableOracle struct {
	oracle interfaces.Oracle
}

var _ interfaces.Oracle = (*observableOracle)(nil)

func Wrap(o interfaces.Oracle) interfaces.Oracle {
	return &observableOracle{oracle: o}
}

func (o *observableOracle) Name() string { return o.oracle.Name() }

func (o *observableOracle) Opine(ctx context.Context, req interfaces.OracleRequest) (types.OracleOpinion, error) {
	ctx, span := trace.StartSpan(ctx, "oracle.Opine")
	defer span.End()

	logger.DebugSkip(ctx, 1, "Requesting oracle opinion", "symbol", req.Symbol, "provider", o.oracle.Name())

	op, err := o.oracle.Opine(ctx, req)
	if err != nil {
		if !errors.Is(err, types.ErrOracleDisabled) {
			metrics.OracleFailures.WithLabelValues(o.oracle.Name()).Inc()
			span.RecordError(err)
			logger.WarnSkip(ctx, 1, "Oracle opinion failed, scoring it neutral", "error", err, "symbol", req.Symbol, "provider", o.oracle.Name())
		}
		return op, err
	}

	logger.InfoSkip(ctx, 1, "Oracle opinion received",
		"symbol", req.Symbol,
		"signal", op.Signal,
		"confidence", op.Confidence,
		"risk_level", op.RiskLevel,
	)
	return op, nil
}
