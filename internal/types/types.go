package types

import "time"

type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// Direction maps an action onto +1, -1 or 0.
func (a Action) Direction() float64 {
	switch a {
	case ActionBuy:
		return 1
	case ActionSell:
		return -1
	}
	return 0
}

type Timeframe string

const (
	TimeframeHour Timeframe = "1Hour"
	TimeframeDay  Timeframe = "1Day"
	TimeframeWeek Timeframe = "1Week"
)

type Bar struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

type OrderType string

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeStop   OrderType = "STOP"
)

type OrderReq struct {
	Symbol    string    `json:"symbol"`
	Side      Action    `json:"side"`
	Qty       int       `json:"qty"`
	Type      OrderType `json:"type"`
	StopPrice float64   `json:"stop_price,omitempty"`
	Tag       string    `json:"tag,omitempty"`
}

type OrderResp struct {
	OrderID   string  `json:"order_id"`
	Status    string  `json:"status"`
	FillPrice float64 `json:"fill_price,omitempty"`
	Message   string  `json:"message,omitempty"`
}

type Account struct {
	PortfolioValue float64 `json:"portfolio_value"`
	BuyingPower    float64 `json:"buying_power"`
	Cash           float64 `json:"cash"`
}

type Position struct {
	Symbol   string  `json:"symbol"`
	Qty      int     `json:"qty"`
	AvgPrice float64 `json:"avg_price"`
	Last     float64 `json:"last_price"`
}

type MarketClock struct {
	IsOpen    bool      `json:"is_open"`
	Timestamp time.Time `json:"timestamp"`
}
