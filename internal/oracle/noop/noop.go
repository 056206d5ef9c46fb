package noop

import (
	"context"

	"autotrader/internal/interfaces"
	"autotrader/internal/logger"
	"autotrader/internal/types"
)

// Oracle stands in when no provider is configured. Every call reports
// types.ErrOracleDisabled so callers can surface oracle_not_configured.
type Oracle struct{}

var _ interfaces.Oracle = Oracle{}

func New() Oracle { return Oracle{} }

func (Oracle) Name() string { return "none" }

func (Oracle) Opine(ctx context.Context, req interfaces.OracleRequest) (types.OracleOpinion, error) {
	logger.Debug(ctx, "Noop oracle called", "symbol", req.Symbol)
	return types.OracleOpinion{Signal: string(types.ActionHold)}, types.ErrOracleDisabled
}
