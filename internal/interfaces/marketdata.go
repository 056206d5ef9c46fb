package interfaces

import (
	"context"
	"time"

	"autotrader/internal/types"
)

// MarketData returns bars oldest first.
type MarketData interface {
	Bars(ctx context.Context, symbol string, tf types.Timeframe, limit int) ([]types.Bar, error)
	LastPrice(ctx context.Context, symbol string) (float64, error)
}

// Calendar reports the next scheduled earnings event. ok is false when
// none is known.
type Calendar interface {
	NextEarnings(ctx context.Context, symbol string) (at time.Time, ok bool, err error)
}

type ActivitySource interface {
	MostActive(ctx context.Context) ([]types.ActiveSymbol, error)
}
