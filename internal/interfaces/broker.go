package interfaces

import (
	"context"

	"autotrader/internal/types"
)

type Broker interface {
	Account(ctx context.Context) (types.Account, error)
	Positions(ctx context.Context) ([]types.Position, error)
	PlaceOrder(ctx context.Context, req types.OrderReq) (types.OrderResp, error)
	CancelOrder(ctx context.Context, orderID string) error
	Clock(ctx context.Context) (types.MarketClock, error)
}
