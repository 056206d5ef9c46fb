package paper

import (
	"context"
	"errors"
	"testing"
	"time"

	"autotrader/internal/store"
	"autotrader/internal/types"
)

type memKV map[string]string

func (m memKV) GetKV(ctx context.Context, key string) (string, bool, error) {
	v, ok := m[key]
	return v, ok, nil
}

func (m memKV) SetKV(ctx context.Context, key, value string) error {
	m[key] = value
	return nil
}

type prices map[string]float64

func (p prices) Bars(ctx context.Context, symbol string, tf types.Timeframe, limit int) ([]types.Bar, error) {
	return nil, errors.New("not supported")
}

func (p prices) LastPrice(ctx context.Context, symbol string) (float64, error) {
	v, ok := p[symbol]
	if !ok {
		return 0, errors.New("unknown symbol")
	}
	return v, nil
}

func newBroker() (*Broker, prices, memKV) {
	cfg := store.Default()
	cfg.Paper.StartingCash = 10000
	px := prices{"SBIN": 100}
	kv := memKV{}
	return New(cfg, kv, px), px, kv
}

func TestBuySellRoundTrip(t *testing.T) {
	ctx := context.Background()
	b, px, _ := newBroker()

	resp, err := b.PlaceOrder(ctx, types.OrderReq{Symbol: "sbin", Side: types.ActionBuy, Qty: 10, Type: types.OrderTypeMarket})
	if err != nil {
		t.Fatalf("Buy failed: %v", err)
	}
	if resp.FillPrice != 100 {
		t.Errorf("Expected fill at 100, got %f", resp.FillPrice)
	}

	px["SBIN"] = 110
	acct, err := b.Account(ctx)
	if err != nil {
		t.Fatalf("Account failed: %v", err)
	}
	if acct.Cash != 9000 || acct.PortfolioValue != 10100 {
		t.Errorf("Expected cash 9000 and value 10100, got %+v", acct)
	}

	if _, err := b.PlaceOrder(ctx, types.OrderReq{Symbol: "SBIN", Side: types.ActionSell, Qty: 10, Type: types.OrderTypeMarket}); err != nil {
		t.Fatalf("Sell failed: %v", err)
	}
	pos, _ := b.Positions(ctx)
	if len(pos) != 0 {
		t.Errorf("Expected no positions, got %+v", pos)
	}
	acct, _ = b.Account(ctx)
	if acct.Cash != 10100 {
		t.Errorf("Expected cash 10100, got %f", acct.Cash)
	}
}

func TestStateSurvivesNewInstance(t *testing.T) {
	ctx := context.Background()
	b, px, kv := newBroker()
	if _, err := b.PlaceOrder(ctx, types.OrderReq{Symbol: "SBIN", Side: types.ActionBuy, Qty: 5, Type: types.OrderTypeMarket}); err != nil {
		t.Fatalf("Buy failed: %v", err)
	}

	again := New(b.cfg, kv, px)
	pos, err := again.Positions(ctx)
	if err != nil || len(pos) != 1 || pos[0].Qty != 5 {
		t.Errorf("Expected 5 SBIN from persisted state, got %+v err=%v", pos, err)
	}
}

func TestRejectsOverspendAndOversell(t *testing.T) {
	ctx := context.Background()
	b, _, _ := newBroker()

	if _, err := b.PlaceOrder(ctx, types.OrderReq{Symbol: "SBIN", Side: types.ActionBuy, Qty: 101, Type: types.OrderTypeMarket}); err == nil {
		t.Error("Expected insufficient cash error")
	}
	if _, err := b.PlaceOrder(ctx, types.OrderReq{Symbol: "SBIN", Side: types.ActionSell, Qty: 1, Type: types.OrderTypeMarket}); err == nil {
		t.Error("Expected oversell error")
	}
}

func TestStopTriggers(t *testing.T) {
	ctx := context.Background()
	b, px, _ := newBroker()
	if _, err := b.PlaceOrder(ctx, types.OrderReq{Symbol: "SBIN", Side: types.ActionBuy, Qty: 10, Type: types.OrderTypeMarket}); err != nil {
		t.Fatalf("Buy failed: %v", err)
	}
	stop, err := b.PlaceOrder(ctx, types.OrderReq{Symbol: "SBIN", Side: types.ActionSell, Qty: 10, Type: types.OrderTypeStop, StopPrice: 95})
	if err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	px["SBIN"] = 96
	if pos, _ := b.Positions(ctx); len(pos) != 1 {
		t.Fatalf("Expected position intact above the stop, got %+v", pos)
	}

	px["SBIN"] = 94
	pos, _ := b.Positions(ctx)
	if len(pos) != 0 {
		t.Fatalf("Expected stop to close the position, got %+v", pos)
	}
	acct, _ := b.Account(ctx)
	if acct.Cash != 9950 {
		t.Errorf("Expected cash 9950 after stop at 95, got %f", acct.Cash)
	}
	if err := b.CancelOrder(ctx, stop.OrderID); err == nil {
		t.Error("Expected cancel of a filled stop to fail")
	}
}

func TestCancelStop(t *testing.T) {
	ctx := context.Background()
	b, px, _ := newBroker()
	b.PlaceOrder(ctx, types.OrderReq{Symbol: "SBIN", Side: types.ActionBuy, Qty: 10, Type: types.OrderTypeMarket})
	stop, _ := b.PlaceOrder(ctx, types.OrderReq{Symbol: "SBIN", Side: types.ActionSell, Qty: 10, Type: types.OrderTypeStop, StopPrice: 95})

	if err := b.CancelOrder(ctx, stop.OrderID); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	px["SBIN"] = 90
	if pos, _ := b.Positions(ctx); len(pos) != 1 {
		t.Errorf("Expected cancelled stop not to fire, got %+v", pos)
	}
}

func TestClockFollowsSession(t *testing.T) {
	b, _, _ := newBroker()
	loc := b.cfg.Location()
	b.now = func() time.Time { return time.Date(2024, 3, 6, 10, 0, 0, 0, loc) } // Wednesday
	if c, _ := b.Clock(context.Background()); !c.IsOpen {
		t.Error("Expected market open mid-session")
	}
	b.now = func() time.Time { return time.Date(2024, 3, 9, 10, 0, 0, 0, loc) } // Saturday
	if c, _ := b.Clock(context.Background()); c.IsOpen {
		t.Error("Expected market closed on Saturday")
	}
}
