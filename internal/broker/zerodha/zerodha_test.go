package zerodha

import (
	"errors"
	"testing"
	"time"

	kiteconnect "github.com/zerodha/gokiteconnect/v4"

	"autotrader/internal/store"
	"autotrader/internal/types"
)

func TestOrderParamsMarket(t *testing.T) {
	p, err := orderParams(types.OrderReq{Symbol: "sbin", Side: types.ActionBuy, Qty: 5, Type: types.OrderTypeMarket, Tag: "at-1234"}, "NSE")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if p.Tradingsymbol != "SBIN" || p.Exchange != "NSE" {
		t.Errorf("Expected NSE:SBIN, got %s:%s", p.Exchange, p.Tradingsymbol)
	}
	if p.OrderType != "MARKET" || p.Product != "CNC" || p.TransactionType != "BUY" {
		t.Errorf("Expected MARKET CNC BUY, got %s %s %s", p.OrderType, p.Product, p.TransactionType)
	}
	if p.Tag != "at1234" {
		t.Errorf("Expected tag at1234, got %s", p.Tag)
	}
}

func TestOrderParamsStop(t *testing.T) {
	p, err := orderParams(types.OrderReq{Symbol: "INFY", Side: types.ActionSell, Qty: 3, Type: types.OrderTypeStop, StopPrice: 1450.5}, "NSE")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if p.OrderType != "SL-M" || p.TriggerPrice != 1450.5 {
		t.Errorf("Expected SL-M at 1450.5, got %s at %v", p.OrderType, p.TriggerPrice)
	}

	if _, err := orderParams(types.OrderReq{Symbol: "INFY", Side: types.ActionSell, Qty: 3, Type: types.OrderTypeStop}, "NSE"); err == nil {
		t.Error("Expected error for stop without trigger")
	}
	if _, err := orderParams(types.OrderReq{Symbol: "INFY", Side: types.ActionHold, Qty: 3}, "NSE"); err == nil {
		t.Error("Expected error for HOLD side")
	}
	if _, err := orderParams(types.OrderReq{Symbol: "INFY", Side: types.ActionBuy}, "NSE"); err == nil {
		t.Error("Expected error for zero quantity")
	}
}

func TestSanitizeTagLength(t *testing.T) {
	got := sanitizeTag("abcdefghij-klmnopqrst-uvwxyz")
	if len(got) != 20 {
		t.Errorf("Expected 20 chars, got %d (%s)", len(got), got)
	}
}

func TestKiteInterval(t *testing.T) {
	cases := []struct {
		tf       types.Timeframe
		interval string
		per      int
	}{
		{types.TimeframeHour, "60minute", 1},
		{types.TimeframeDay, "day", 1},
		{types.TimeframeWeek, "day", 5},
	}
	for _, c := range cases {
		interval, per, err := kiteInterval(c.tf)
		if err != nil {
			t.Fatalf("Expected no error for %s, got %v", c.tf, err)
		}
		if interval != c.interval || per != c.per {
			t.Errorf("Expected %s/%d for %s, got %s/%d", c.interval, c.per, c.tf, interval, per)
		}
	}
	if _, _, err := kiteInterval("5Min"); err == nil {
		t.Error("Expected error for unsupported timeframe")
	}
}

func TestHistoryWindowCoversTradingDays(t *testing.T) {
	now := time.Date(2024, 3, 6, 10, 0, 0, 0, time.UTC)
	from, to := historyWindow("day", 120, now)
	if !to.Equal(now) {
		t.Errorf("Expected window to end now, got %v", to)
	}
	// 120 trading days need at least 168 calendar days
	if days := now.Sub(from).Hours() / 24; days < 168 {
		t.Errorf("Expected at least 168 days, got %.0f", days)
	}
}

func TestInstrumentMapperLoad(t *testing.T) {
	im := newInstrumentMapper()
	if im.loaded() {
		t.Fatal("Expected empty mapper")
	}
	n := im.load(kiteconnect.Instruments{
		{InstrumentToken: 779521, Tradingsymbol: "SBIN", InstrumentType: "EQ", Exchange: "NSE"},
		{InstrumentToken: 408065, Tradingsymbol: "infy", InstrumentType: "EQ", Exchange: "NSE"},
		{InstrumentToken: 1, Tradingsymbol: "NIFTY24MARFUT", InstrumentType: "FUT", Exchange: "NFO"},
	})
	if n != 2 {
		t.Errorf("Expected 2 equities, got %d", n)
	}
	if tok, ok := im.getToken("INFY"); !ok || tok != 408065 {
		t.Errorf("Expected INFY token 408065, got %d (%v)", tok, ok)
	}
	if sym := im.getSymbol(779521); sym != "SBIN" {
		t.Errorf("Expected SBIN, got %s", sym)
	}
	if _, ok := im.getToken("NIFTY24MARFUT"); ok {
		t.Error("Expected futures to be skipped")
	}
}

func TestFromConfigRequiresCredentials(t *testing.T) {
	cfg := store.Default()
	if _, err := FromConfig(cfg); !errors.Is(err, types.ErrConfiguration) {
		t.Errorf("Expected ErrConfiguration, got %v", err)
	}
	cfg.Secrets.KiteAPIKey = "key"
	cfg.Secrets.KiteAccessToken = "token"
	z, err := FromConfig(cfg)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if z.p.Exchange != cfg.Exchange {
		t.Errorf("Expected exchange %s, got %s", cfg.Exchange, z.p.Exchange)
	}
}
