package interfaces

import (
	"context"

	"autotrader/internal/types"
)

type OracleRequest struct {
	Symbol string
	System string
	Prompt string
}

// Oracle returns a qualitative opinion. Implementations return
// types.ErrOracleDisabled when no provider is configured.
type Oracle interface {
	Name() string
	Opine(ctx context.Context, req OracleRequest) (types.OracleOpinion, error)
}
