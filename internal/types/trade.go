package types

import (
	"encoding/json"
	"time"
)

type TradeStatus string

const (
	TradeOpen   TradeStatus = "open"
	TradeClosed TradeStatus = "closed"
)

const (
	CloseSignalSell = "signal_sell"
	CloseTargetHit  = "target_hit"
	CloseStoppedOut = "stopped_out"
)

type TradeOrder struct {
	ID          string          `json:"id"`
	Symbol      string          `json:"symbol"`
	Side        Action          `json:"side"`
	Qty         int             `json:"qty"`
	EntryPrice  float64         `json:"entry_price"`
	StopLoss    float64         `json:"stop_loss"`
	TakeProfit  float64         `json:"take_profit"`
	StopOrderID string          `json:"stop_order_id,omitempty"`
	Strategy    string          `json:"strategy"`
	Confidence  float64         `json:"confidence"`
	Status      TradeStatus     `json:"status"`
	ExitPrice   float64         `json:"exit_price,omitempty"`
	PnL         float64         `json:"pnl"`
	CloseReason string          `json:"close_reason,omitempty"`
	OpenedAt    time.Time       `json:"opened_at"`
	ClosedAt    time.Time       `json:"closed_at,omitempty"`
	Snapshot    json.RawMessage `json:"snapshot,omitempty"`
}

// PnLPct is the realized return of a closed trade in percent.
func (t TradeOrder) PnLPct() float64 {
	cost := t.EntryPrice * float64(t.Qty)
	if cost == 0 {
		return 0
	}
	return t.PnL / cost * 100
}

type StrategyPerformance struct {
	Strategy string  `json:"strategy"`
	Trades   int     `json:"trades"`
	Wins     int     `json:"wins"`
	AvgWin   float64 `json:"avg_win"`
	AvgLoss  float64 `json:"avg_loss"`
}

func (p StrategyPerformance) WinRate() float64 {
	if p.Trades == 0 {
		return 0
	}
	return float64(p.Wins) / float64(p.Trades)
}
