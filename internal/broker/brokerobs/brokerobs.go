package brokerobs

import (
	"context"

	"autotrader/internal/interfaces"
	"autotrader/internal/logger"
	"autotrader/internal/trace"
	"autotrader/internal/types"
)

// observableBroker wraps a Broker with observability (logging & tracing)
type observableBroker struct {
	broker interfaces.Broker
}

var _ interfaces.Broker = (*observableBroker)(nil)

// Wrap wraps a broker with observability middleware
func Wrap(broker interfaces.Broker) interfaces.Broker {
	return &observableBroker{broker: broker}
}

func (ob *observableBroker) Account(ctx context.Context) (types.Account, error) {
	ctx, span := trace.StartSpan(ctx, "broker.Account")
	defer span.End()

	acct, err := ob.broker.Account(ctx)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch account", err)
		return acct, err
	}
	logger.DebugSkip(ctx, 1, "Account fetched",
		"portfolio_value", acct.PortfolioValue,
		"buying_power", acct.BuyingPower,
	)
	return acct, nil
}

func (ob *observableBroker) Positions(ctx context.Context) ([]types.Position, error) {
	ctx, span := trace.StartSpan(ctx, "broker.Positions")
	defer span.End()

	positions, err := ob.broker.Positions(ctx)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch positions", err)
		return nil, err
	}
	logger.DebugSkip(ctx, 1, "Positions fetched", "count", len(positions))
	return positions, nil
}

// PlaceOrder places an order with observability
func (ob *observableBroker) PlaceOrder(ctx context.Context, req types.OrderReq) (types.OrderResp, error) {
	ctx, span := trace.StartSpan(ctx, "broker.PlaceOrder")
	defer span.End()

	logger.InfoSkip(ctx, 1, "Placing order",
		"symbol", req.Symbol,
		"side", req.Side,
		"type", req.Type,
		"qty", req.Qty,
		"stop_price", req.StopPrice,
	)

	resp, err := ob.broker.PlaceOrder(ctx, req)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to place order", err,
			"symbol", req.Symbol,
			"side", req.Side,
			"qty", req.Qty,
		)
		return resp, err
	}

	logger.InfoSkip(ctx, 1, "Order placed",
		"symbol", req.Symbol,
		"order_id", resp.OrderID,
		"status", resp.Status,
		"fill_price", resp.FillPrice,
	)
	return resp, nil
}

func (ob *observableBroker) CancelOrder(ctx context.Context, orderID string) error {
	ctx, span := trace.StartSpan(ctx, "broker.CancelOrder")
	defer span.End()

	if err := ob.broker.CancelOrder(ctx, orderID); err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to cancel order", err, "order_id", orderID)
		return err
	}
	logger.InfoSkip(ctx, 1, "Order cancelled", "order_id", orderID)
	return nil
}

func (ob *observableBroker) Clock(ctx context.Context) (types.MarketClock, error) {
	ctx, span := trace.StartSpan(ctx, "broker.Clock")
	defer span.End()

	c, err := ob.broker.Clock(ctx)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to read market clock", err)
	}
	return c, err
}

type observableData struct {
	data interfaces.MarketData
}

var _ interfaces.MarketData = (*observableData)(nil)

// WrapData adds the same tracing to a market-data source.
func WrapData(data interfaces.MarketData) interfaces.MarketData {
	return &observableData{data: data}
}

func (od *observableData) Bars(ctx context.Context, symbol string, tf types.Timeframe, limit int) ([]types.Bar, error) {
	ctx, span := trace.StartSpan(ctx, "marketdata.Bars")
	defer span.End()

	logger.DebugSkip(ctx, 1, "Fetching bars", "symbol", symbol, "timeframe", tf, "limit", limit)

	bars, err := od.data.Bars(ctx, symbol, tf, limit)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch bars", err, "symbol", symbol, "timeframe", tf)
		return nil, err
	}
	logger.DebugSkip(ctx, 1, "Bars fetched", "symbol", symbol, "count", len(bars))
	return bars, nil
}

// LastPrice returns the last traded price with observability
func (od *observableData) LastPrice(ctx context.Context, symbol string) (float64, error) {
	ctx, span := trace.StartSpan(ctx, "marketdata.LastPrice")
	defer span.End()

	price, err := od.data.LastPrice(ctx, symbol)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch LTP", err, "symbol", symbol)
		return 0, err
	}
	logger.DebugSkip(ctx, 1, "LTP fetched", "symbol", symbol, "price", price)
	return price, nil
}
