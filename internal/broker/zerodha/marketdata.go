package zerodha

import (
	"context"
	"fmt"
	"strings"
	"time"

	"autotrader/internal/logger"
	"autotrader/internal/ta"
	"autotrader/internal/types"
)

const daysPerWeek = 5

// kiteInterval maps a timeframe onto a historical-data interval and the
// number of source bars per requested bar.
func kiteInterval(tf types.Timeframe) (string, int, error) {
	switch tf {
	case types.TimeframeHour:
		return "60minute", 1, nil
	case types.TimeframeDay:
		return "day", 1, nil
	case types.TimeframeWeek:
		return "day", daysPerWeek, nil
	}
	return "", 0, fmt.Errorf("unsupported timeframe %q", tf)
}

// historyWindow is a calendar span generous enough to hold n source bars
// of interval once weekends and holidays are skipped.
func historyWindow(interval string, n int, now time.Time) (time.Time, time.Time) {
	switch interval {
	case "60minute":
		// about 6 hourly bars per session
		days := n/6 + 1
		return now.AddDate(0, 0, -(days*7/5 + 5)), now
	default:
		return now.AddDate(0, 0, -(n*7/5 + 10)), now
	}
}

func (z *Zerodha) Bars(ctx context.Context, symbol string, tf types.Timeframe, limit int) ([]types.Bar, error) {
	interval, per, err := kiteInterval(tf)
	if err != nil {
		return nil, err
	}
	token, err := z.token(ctx, symbol)
	if err != nil {
		return nil, err
	}

	from, to := historyWindow(interval, limit*per, z.now())
	candles, err := z.kc.GetHistoricalData(token, interval, from, to, false, false)
	if err != nil {
		return nil, fmt.Errorf("kite history %s: %w", symbol, err)
	}

	bars := make([]types.Bar, 0, len(candles))
	for _, c := range candles {
		bars = append(bars, types.Bar{
			Time:   c.Date.Time,
			Open:   c.Open,
			High:   c.High,
			Low:    c.Low,
			Close:  c.Close,
			Volume: float64(c.Volume),
		})
	}
	if per > 1 {
		bars = ta.Resample(bars, per)
	}
	if len(bars) > limit {
		bars = bars[len(bars)-limit:]
	}
	return bars, nil
}

func (z *Zerodha) LastPrice(ctx context.Context, symbol string) (float64, error) {
	key := z.p.Exchange + ":" + strings.ToUpper(symbol)
	ltp, err := z.kc.GetLTP(key)
	if err != nil {
		return 0, fmt.Errorf("kite ltp %s: %w", symbol, err)
	}
	q, ok := ltp[key]
	if !ok || q.LastPrice <= 0 {
		return 0, fmt.Errorf("kite ltp %s: no quote", symbol)
	}
	return q.LastPrice, nil
}

func (z *Zerodha) token(ctx context.Context, symbol string) (int, error) {
	symbol = strings.ToUpper(symbol)
	if t, ok := z.mapper.getToken(symbol); ok {
		return int(t), nil
	}
	if z.mapper.loaded() {
		return 0, fmt.Errorf("unknown %s instrument %s", z.p.Exchange, symbol)
	}

	instruments, err := z.kc.GetInstrumentsByExchange(z.p.Exchange)
	if err != nil {
		return 0, fmt.Errorf("kite instruments: %w", err)
	}
	n := z.mapper.load(instruments)
	logger.Info(ctx, "Kite instruments loaded", "exchange", z.p.Exchange, "count", n)

	if t, ok := z.mapper.getToken(symbol); ok {
		return int(t), nil
	}
	return 0, fmt.Errorf("unknown %s instrument %s", z.p.Exchange, symbol)
}
