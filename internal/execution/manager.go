// Package execution places orders, attaches and maintains protective
// stops, and closes trades.
package execution

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"autotrader/internal/events"
	"autotrader/internal/interfaces"
	"autotrader/internal/logger"
	"autotrader/internal/metrics"
	"autotrader/internal/store"
	"autotrader/internal/types"
)

// Publisher is the outbound event queue as seen by the manager.
type Publisher interface {
	Publish(kind events.Kind, payload any) bool
}

type Manager struct {
	cfg    *store.Config
	broker interfaces.Broker
	trades interfaces.TradeStore
	data   interfaces.MarketData
	pub    Publisher
	now    func() time.Time
}

func New(cfg *store.Config, broker interfaces.Broker, trades interfaces.TradeStore, data interfaces.MarketData, pub Publisher) *Manager {
	return &Manager{
		cfg:    cfg,
		broker: broker,
		trades: trades,
		data:   data,
		pub:    pub,
		now:    time.Now,
	}
}

// roundPrice rounds to the paisa/cent.
func roundPrice(p float64) float64 {
	return decimal.NewFromFloat(p).Round(2).InexactFloat64()
}

func (m *Manager) brokerCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, m.cfg.Timeout(m.cfg.Timeouts.BrokerSeconds))
}

func (m *Manager) publish(kind events.Kind, payload any) {
	if m.pub != nil {
		m.pub.Publish(kind, payload)
	}
}

// Buy opens a position for an approved analysis. The market order is
// fail-closed; a protective stop that cannot be attached is logged and
// re-attached by maintenance.
func (m *Manager) Buy(ctx context.Context, a types.SymbolAnalysis, sz types.Sizing) (types.TradeOrder, error) {
	symbol := strings.ToUpper(a.Symbol)
	if sz.Qty <= 0 {
		return types.TradeOrder{}, fmt.Errorf("%w: %s: non-positive quantity %d", types.ErrExecution, symbol, sz.Qty)
	}

	bctx, cancel := m.brokerCtx(ctx)
	resp, err := m.broker.PlaceOrder(bctx, types.OrderReq{
		Symbol: symbol,
		Side:   types.ActionBuy,
		Qty:    sz.Qty,
		Type:   types.OrderTypeMarket,
		Tag:    "entry",
	})
	cancel()
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to place BUY order", err, "symbol", symbol, "qty", sz.Qty)
		return types.TradeOrder{}, fmt.Errorf("%w: buy %s: %v", types.ErrExecution, symbol, err)
	}

	entry := resp.FillPrice
	if entry <= 0 {
		entry = a.Price
	}
	trade := types.TradeOrder{
		ID:         uuid.NewString(),
		Symbol:     symbol,
		Side:       types.ActionBuy,
		Qty:        sz.Qty,
		EntryPrice: entry,
		StopLoss:   roundPrice(entry * (1 - m.cfg.Risk.StopLossPct/100)),
		TakeProfit: roundPrice(entry * (1 + m.cfg.Risk.TakeProfitPct/100)),
		Strategy:   a.DominantStrategy,
		Confidence: a.Confidence,
		Status:     types.TradeOpen,
		OpenedAt:   m.now().UTC(),
	}
	if snap, err := json.Marshal(a); err != nil {
		logger.Warn(ctx, "Analysis snapshot not encodable", "symbol", symbol, "error", err)
	} else {
		trade.Snapshot = snap
	}

	metrics.Orders.WithLabelValues(string(types.ActionBuy), m.cfg.Mode).Inc()
	logger.Trade(ctx, symbol, string(types.ActionBuy), sz.Qty, entry, resp.OrderID,
		"strategy", trade.Strategy,
		"confidence", trade.Confidence,
		"sizing", sz.Method,
	)

	if id, err := m.placeStop(ctx, symbol, trade.Qty, trade.StopLoss); err != nil {
		metrics.StopAdjustments.WithLabelValues("attach_failed").Inc()
		logger.ErrorWithErr(ctx, "Protective stop not attached", err, "symbol", symbol, "stop", trade.StopLoss)
	} else {
		trade.StopOrderID = id
	}

	if err := m.trades.SaveTrade(ctx, trade); err != nil {
		logger.ErrorWithErr(ctx, "Filled BUY could not be persisted", err, "symbol", symbol, "order_id", resp.OrderID)
		return trade, err
	}
	m.publish(events.KindTrade, trade)
	return trade, nil
}

// Sell liquidates the full held quantity of symbol and closes its trade.
func (m *Manager) Sell(ctx context.Context, symbol, reason string) (types.TradeOrder, error) {
	symbol = strings.ToUpper(symbol)
	trade, ok, err := m.trades.OpenTradeBySymbol(ctx, symbol)
	if err != nil {
		return types.TradeOrder{}, err
	}
	if !ok {
		return types.TradeOrder{}, fmt.Errorf("%w: %s", types.ErrNoPosition, symbol)
	}

	qty := trade.Qty
	bctx, cancel := m.brokerCtx(ctx)
	positions, err := m.broker.Positions(bctx)
	cancel()
	if err == nil {
		if p, held := findPosition(positions, symbol); held && p.Qty > 0 {
			qty = p.Qty
		}
	}

	return m.liquidate(ctx, trade, qty, 0, reason)
}

// liquidate cancels the protective stop, sells qty at market and closes
// trade. A failed sell re-attaches the stop.
func (m *Manager) liquidate(ctx context.Context, trade types.TradeOrder, qty int, markPrice float64, reason string) (types.TradeOrder, error) {
	ctx = context.WithoutCancel(ctx)

	if trade.StopOrderID != "" {
		bctx, cancel := m.brokerCtx(ctx)
		if err := m.broker.CancelOrder(bctx, trade.StopOrderID); err != nil {
			logger.Warn(ctx, "Failed to cancel protective stop before exit", "symbol", trade.Symbol, "order_id", trade.StopOrderID, "error", err)
		}
		cancel()
	}

	bctx, cancel := m.brokerCtx(ctx)
	resp, err := m.broker.PlaceOrder(bctx, types.OrderReq{
		Symbol: trade.Symbol,
		Side:   types.ActionSell,
		Qty:    qty,
		Type:   types.OrderTypeMarket,
		Tag:    reason,
	})
	cancel()
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to place SELL order", err, "symbol", trade.Symbol, "qty", qty)
		if trade.StopOrderID != "" {
			if id, serr := m.placeStop(ctx, trade.Symbol, qty, trade.StopLoss); serr == nil {
				trade.StopOrderID = id
			} else {
				trade.StopOrderID = ""
			}
			if uerr := m.trades.UpdateTrade(ctx, trade); uerr != nil {
				logger.ErrorWithErr(ctx, "Failed to record stop after aborted exit", uerr, "symbol", trade.Symbol)
			}
		}
		return trade, fmt.Errorf("%w: sell %s: %v", types.ErrExecution, trade.Symbol, err)
	}

	exit := resp.FillPrice
	if exit <= 0 {
		exit = markPrice
	}
	if exit <= 0 {
		exit = m.lastPrice(ctx, trade.Symbol)
	}
	metrics.Orders.WithLabelValues(string(types.ActionSell), m.cfg.Mode).Inc()
	logger.Trade(ctx, trade.Symbol, string(types.ActionSell), qty, exit, resp.OrderID, "reason", reason)

	trade.StopOrderID = ""
	return m.close(ctx, trade, exit, reason)
}

func (m *Manager) close(ctx context.Context, trade types.TradeOrder, exit float64, reason string) (types.TradeOrder, error) {
	trade.Status = types.TradeClosed
	trade.ExitPrice = exit
	trade.PnL = roundPrice((exit - trade.EntryPrice) * float64(trade.Qty))
	trade.CloseReason = reason
	trade.ClosedAt = m.now().UTC()
	if err := m.trades.UpdateTrade(ctx, trade); err != nil {
		return trade, err
	}
	metrics.PositionsClosed.WithLabelValues(reason).Inc()
	logger.Info(ctx, "Trade closed",
		"symbol", trade.Symbol,
		"reason", reason,
		"entry", trade.EntryPrice,
		"exit", exit,
		"pnl", trade.PnL,
	)
	m.publish(events.KindTrade, trade)
	return trade, nil
}

func (m *Manager) placeStop(ctx context.Context, symbol string, qty int, price float64) (string, error) {
	bctx, cancel := m.brokerCtx(ctx)
	defer cancel()
	resp, err := m.broker.PlaceOrder(bctx, types.OrderReq{
		Symbol:    symbol,
		Side:      types.ActionSell,
		Qty:       qty,
		Type:      types.OrderTypeStop,
		StopPrice: price,
		Tag:       "stop",
	})
	if err != nil {
		return "", fmt.Errorf("%w: %s at %.2f: %v", types.ErrProtectiveOrder, symbol, price, err)
	}
	if resp.OrderID == "" {
		return "", fmt.Errorf("%w: %s: broker returned no order id", types.ErrProtectiveOrder, symbol)
	}
	return resp.OrderID, nil
}

func (m *Manager) lastPrice(ctx context.Context, symbol string) float64 {
	if m.data == nil {
		return 0
	}
	dctx, cancel := context.WithTimeout(ctx, m.cfg.Timeout(m.cfg.Timeouts.MarketDataSeconds))
	defer cancel()
	p, err := m.data.LastPrice(dctx, symbol)
	if err != nil {
		logger.Warn(ctx, "Last price unavailable", "symbol", symbol, "error", err)
		return 0
	}
	return p
}

func findPosition(positions []types.Position, symbol string) (types.Position, bool) {
	for _, p := range positions {
		if strings.EqualFold(p.Symbol, symbol) {
			return p, true
		}
	}
	return types.Position{}, false
}
