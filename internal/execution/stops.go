package execution

import (
	"context"
	"fmt"
	"strings"

	"autotrader/internal/events"
	"autotrader/internal/logger"
	"autotrader/internal/metrics"
	"autotrader/internal/types"
)

type MaintenanceResult struct {
	Checked  int      `json:"checked"`
	Adjusted int      `json:"adjusted"`
	Closed   int      `json:"closed"`
	Errors   []string `json:"errors,omitempty"`
}

type stopEvent struct {
	Symbol string  `json:"symbol"`
	Kind   string  `json:"kind"`
	From   float64 `json:"from"`
	To     float64 `json:"to"`
}

// TrailingStop is the stop implied by price; it never exceeds price.
func TrailingStop(price, trailingPct float64) float64 {
	return roundPrice(price * (1 - trailingPct/100))
}

// MaintainStops walks every open trade once: positions gone at the broker
// are closed as stopped out, targets are taken, and stops ratchet up or are
// re-attached. Broker work runs detached from ctx's deadline.
func (m *Manager) MaintainStops(ctx context.Context) (MaintenanceResult, error) {
	var res MaintenanceResult

	open, err := m.trades.OpenTrades(ctx)
	if err != nil {
		return res, err
	}
	if len(open) == 0 {
		return res, nil
	}

	bctx, cancel := m.brokerCtx(ctx)
	positions, err := m.broker.Positions(bctx)
	cancel()
	if err != nil {
		return res, fmt.Errorf("%w: positions: %v", types.ErrExecution, err)
	}

	work := context.WithoutCancel(ctx)
	for _, trade := range open {
		res.Checked++
		pos, held := findPosition(positions, trade.Symbol)
		if !held || pos.Qty <= 0 {
			if err := m.reconcile(work, trade); err != nil {
				res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", trade.Symbol, err))
				continue
			}
			res.Closed++
			continue
		}

		price := pos.Last
		if price <= 0 {
			price = m.lastPrice(work, trade.Symbol)
		}
		if price <= 0 {
			res.Errors = append(res.Errors, fmt.Sprintf("%s: no price", trade.Symbol))
			continue
		}

		gainPct := (price - trade.EntryPrice) / trade.EntryPrice * 100
		if m.cfg.Risk.TakeProfitPct > 0 && gainPct >= m.cfg.Risk.TakeProfitPct {
			if _, err := m.liquidate(work, trade, pos.Qty, price, types.CloseTargetHit); err != nil {
				res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", trade.Symbol, err))
				continue
			}
			res.Closed++
			continue
		}

		changed, err := m.adjustStop(work, trade, pos.Qty, price)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", trade.Symbol, err))
		}
		if changed {
			res.Adjusted++
		}
	}

	logger.Info(ctx, "Stop maintenance finished",
		"checked", res.Checked,
		"adjusted", res.Adjusted,
		"closed", res.Closed,
		"errors", len(res.Errors),
	)
	return res, nil
}

// reconcile closes a trade whose position vanished, which means the
// protective stop filled.
func (m *Manager) reconcile(ctx context.Context, trade types.TradeOrder) error {
	exit := trade.StopLoss
	if exit <= 0 {
		exit = m.lastPrice(ctx, trade.Symbol)
	}
	logger.Risk(ctx, trade.Symbol, "POSITION_RECONCILED", "stop", trade.StopLoss, "stop_order_id", trade.StopOrderID)
	trade.StopOrderID = ""
	_, err := m.close(ctx, trade, exit, types.CloseStoppedOut)
	return err
}

// adjustStop ratchets the stop to the trailing level when that is
// strictly higher, placing the new stop before cancelling the old one. A
// missing stop is re-attached at the higher of the stored and ideal level.
func (m *Manager) adjustStop(ctx context.Context, trade types.TradeOrder, qty int, price float64) (bool, error) {
	ideal := TrailingStop(price, m.cfg.Risk.TrailingStopPct)

	if trade.StopOrderID == "" {
		level := trade.StopLoss
		if ideal > level {
			level = ideal
		}
		id, err := m.placeStop(ctx, trade.Symbol, qty, level)
		if err != nil {
			metrics.StopAdjustments.WithLabelValues("reattach_failed").Inc()
			return false, err
		}
		return true, m.recordStop(ctx, trade, id, level, "reattach")
	}

	if ideal <= trade.StopLoss {
		return false, nil
	}

	id, err := m.placeStop(ctx, trade.Symbol, qty, ideal)
	if err != nil {
		metrics.StopAdjustments.WithLabelValues("replace_failed").Inc()
		return false, err
	}
	old := trade.StopOrderID
	if err := m.recordStop(ctx, trade, id, ideal, "ratchet"); err != nil {
		return true, err
	}

	bctx, cancel := m.brokerCtx(ctx)
	defer cancel()
	if err := m.broker.CancelOrder(bctx, old); err != nil {
		logger.ErrorWithErr(ctx, "Superseded stop not cancelled", err, "symbol", trade.Symbol, "order_id", old)
		return true, fmt.Errorf("%w: cancel %s: %v", types.ErrProtectiveOrder, old, err)
	}
	return true, nil
}

func (m *Manager) recordStop(ctx context.Context, trade types.TradeOrder, orderID string, level float64, kind string) error {
	from := trade.StopLoss
	trade.StopLoss = level
	trade.StopOrderID = orderID
	if err := m.trades.UpdateTrade(ctx, trade); err != nil {
		return err
	}
	metrics.StopAdjustments.WithLabelValues(kind).Inc()
	logger.Risk(ctx, trade.Symbol, "STOP_"+strings.ToUpper(kind), "from", from, "to", level, "order_id", orderID)
	m.publish(events.KindStop, stopEvent{Symbol: trade.Symbol, Kind: kind, From: from, To: level})
	return nil
}
