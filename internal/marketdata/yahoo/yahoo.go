// Package yahoo serves bars, quotes and earnings dates from Yahoo Finance.
package yahoo

import (
	"context"
	"fmt"
	"strings"
	"time"

	finance "github.com/piquette/finance-go"
	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"
	"github.com/piquette/finance-go/quote"

	"autotrader/internal/interfaces"
	"autotrader/internal/ta"
	"autotrader/internal/types"
)

const (
	hourly      datetime.Interval = "60m"
	daysPerWeek                   = 5
)

// Client reads public Yahoo endpoints. The finance-go calls take no
// context, so each one runs in its own goroutine and is abandoned when
// ctx expires.
type Client struct {
	exchange string
	now      func() time.Time
}

var (
	_ interfaces.MarketData = (*Client)(nil)
	_ interfaces.Calendar   = (*Client)(nil)
)

func New(exchange string) *Client {
	return &Client{exchange: strings.ToUpper(exchange), now: time.Now}
}

// Ticker maps an exchange symbol to its Yahoo ticker.
func Ticker(symbol, exchange string) string {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if strings.Contains(symbol, ".") {
		return symbol
	}
	switch strings.ToUpper(exchange) {
	case "NSE":
		return symbol + ".NS"
	case "BSE":
		return symbol + ".BO"
	}
	return symbol
}

func (c *Client) Bars(ctx context.Context, symbol string, tf types.Timeframe, limit int) ([]types.Bar, error) {
	interval, per, span, err := chartSpec(tf, limit)
	if err != nil {
		return nil, err
	}
	ticker := Ticker(symbol, c.exchange)
	end := c.now()
	start := end.Add(-span)

	bars, err := call(ctx, func() ([]types.Bar, error) {
		iter := chart.Get(&chart.Params{
			Symbol:   ticker,
			Start:    datetime.New(&start),
			End:      datetime.New(&end),
			Interval: interval,
		})
		var out []types.Bar
		for iter.Next() {
			b := iter.Bar()
			out = append(out, types.Bar{
				Time:   time.Unix(int64(b.Timestamp), 0),
				Open:   b.Open.InexactFloat64(),
				High:   b.High.InexactFloat64(),
				Low:    b.Low.InexactFloat64(),
				Close:  b.Close.InexactFloat64(),
				Volume: float64(b.Volume),
			})
		}
		if err := iter.Err(); err != nil {
			return nil, err
		}
		return out, nil
	})
	if err != nil {
		return nil, fmt.Errorf("yahoo chart %s: %w", ticker, err)
	}

	bars = dropEmpty(bars)
	if per > 1 {
		bars = ta.Resample(bars, per)
	}
	if len(bars) > limit {
		bars = bars[len(bars)-limit:]
	}
	return bars, nil
}

func (c *Client) LastPrice(ctx context.Context, symbol string) (float64, error) {
	q, err := c.quote(ctx, symbol)
	if err != nil {
		return 0, err
	}
	if q.RegularMarketPrice <= 0 {
		return 0, fmt.Errorf("yahoo quote %s: no price", symbol)
	}
	return q.RegularMarketPrice, nil
}

// NextEarnings reports the next earnings date Yahoo knows about.
func (c *Client) NextEarnings(ctx context.Context, symbol string) (time.Time, bool, error) {
	q, err := c.quote(ctx, symbol)
	if err != nil {
		return time.Time{}, false, err
	}
	at, ok := nextEarnings(c.now(), q.EarningsTimestamp, q.EarningsTimestampStart, q.EarningsTimestampEnd)
	return at, ok, nil
}

func (c *Client) quote(ctx context.Context, symbol string) (*finance.Quote, error) {
	ticker := Ticker(symbol, c.exchange)
	q, err := call(ctx, func() (*finance.Quote, error) { return quote.Get(ticker) })
	if err != nil {
		return nil, fmt.Errorf("yahoo quote %s: %w", ticker, err)
	}
	if q == nil {
		return nil, fmt.Errorf("yahoo quote %s: not found", ticker)
	}
	return q, nil
}

// chartSpec picks the Yahoo interval, bars folded per result bar, and a
// calendar span wide enough to cover limit results.
func chartSpec(tf types.Timeframe, limit int) (datetime.Interval, int, time.Duration, error) {
	day := 24 * time.Hour
	switch tf {
	case types.TimeframeHour:
		// Yahoo serves hourly bars for the last 730 days only.
		days := limit/6 + 1
		return hourly, 1, time.Duration(days*7/5+5) * day, nil
	case types.TimeframeDay:
		return datetime.OneDay, 1, time.Duration(limit*7/5+10) * day, nil
	case types.TimeframeWeek:
		n := limit * daysPerWeek
		return datetime.OneDay, daysPerWeek, time.Duration(n*7/5+10) * day, nil
	}
	return "", 0, 0, fmt.Errorf("unsupported timeframe %q", tf)
}

// nextEarnings returns the earliest timestamp not already in the past.
func nextEarnings(now time.Time, stamps ...int) (time.Time, bool) {
	var best time.Time
	for _, s := range stamps {
		if s <= 0 {
			continue
		}
		t := time.Unix(int64(s), 0)
		if t.Before(now.Add(-24 * time.Hour)) {
			continue
		}
		if best.IsZero() || t.Before(best) {
			best = t
		}
	}
	return best, !best.IsZero()
}

// dropEmpty removes the placeholder rows Yahoo emits for halted sessions.
func dropEmpty(bars []types.Bar) []types.Bar {
	out := bars[:0]
	for _, b := range bars {
		if b.Close > 0 {
			out = append(out, b)
		}
	}
	return out
}

func call[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn()
		ch <- result{v, err}
	}()
	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
