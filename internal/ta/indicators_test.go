package ta

import (
	"math"
	"testing"
	"time"

	"autotrader/internal/types"
)

// risingBars builds n daily bars gaining 1% a day with flat volume.
func risingBars(n int) []types.Bar {
	bars := make([]types.Bar, n)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	open := 100.0
	for i := range bars {
		close := open * 1.01
		bars[i] = types.Bar{
			Time:   start.AddDate(0, 0, i),
			Open:   open,
			High:   close * 1.002,
			Low:    open * 0.998,
			Close:  close,
			Volume: 1_000_000,
		}
		open = close
	}
	return bars
}

func closesOf(bars []types.Bar) []float64 {
	_, _, _, closes, _ := Columns(bars)
	return closes
}

func TestRSIBounds(t *testing.T) {
	up := make([]float64, 30)
	down := make([]float64, 30)
	flat := make([]float64, 30)
	for i := range up {
		up[i] = 100 + float64(i)
		down[i] = 100 - float64(i)
		flat[i] = 100
	}

	if got := Last(RSI(up, 14)); got != 100 {
		t.Errorf("Expected RSI 100 with no losses, got %f", got)
	}
	if got := Last(RSI(down, 14)); got != 0 {
		t.Errorf("Expected RSI 0 with no gains, got %f", got)
	}
	if got := Last(RSI(flat, 14)); got != 50 {
		t.Errorf("Expected RSI 50 for a flat series, got %f", got)
	}
}

func TestRSIAlignment(t *testing.T) {
	closes := closesOf(risingBars(20))
	rsi := RSI(closes, 14)
	if len(rsi) != len(closes) {
		t.Fatalf("Expected %d values, got %d", len(closes), len(rsi))
	}
	for i := 0; i < 14; i++ {
		if !math.IsNaN(rsi[i]) {
			t.Errorf("Expected NaN at %d, got %f", i, rsi[i])
		}
	}
	if math.IsNaN(rsi[14]) {
		t.Error("Expected a value at index 14")
	}
	if got := RSI(closes[:10], 14); !math.IsNaN(Last(got)) {
		t.Errorf("Expected NaN for short input, got %f", Last(got))
	}
}

func TestRSIWilderSmoothing(t *testing.T) {
	// two periods: gains of 1 then a single loss of 2
	closes := []float64{10, 11, 12, 10}
	rsi := RSI(closes, 2)
	// seed: avgGain 1, avgLoss 0 -> 100; next: avgGain 0.5, avgLoss 1 -> 33.33
	if rsi[2] != 100 {
		t.Errorf("Expected seed RSI 100, got %f", rsi[2])
	}
	if math.Abs(rsi[3]-100.0/3) > 1e-9 {
		t.Errorf("Expected RSI 33.33, got %f", rsi[3])
	}
}

func TestEMASeedIsFirstValue(t *testing.T) {
	series := []float64{10, 20, 30}
	ema := EMA(series, 3)
	if ema[0] != 10 {
		t.Errorf("Expected seed 10, got %f", ema[0])
	}
	// k = 0.5
	if ema[1] != 15 || ema[2] != 22.5 {
		t.Errorf("Expected [10 15 22.5], got %v", ema)
	}
}

func TestEMAOrderingOnRisingSeries(t *testing.T) {
	closes := closesOf(risingBars(60))
	e9, e21, e50 := Last(EMA(closes, 9)), Last(EMA(closes, 21)), Last(EMA(closes, 50))
	if !(e9 > e21 && e21 > e50) {
		t.Errorf("Expected EMA9 > EMA21 > EMA50, got %f %f %f", e9, e21, e50)
	}
	if rsi := Last(RSI(closes, 14)); rsi <= 55 {
		t.Errorf("Expected RSI above 55, got %f", rsi)
	}
}

func TestMACDPositiveInUptrend(t *testing.T) {
	m := MACD(closesOf(risingBars(60)))
	if Last(m.MACD) <= 0 {
		t.Errorf("Expected positive MACD line, got %f", Last(m.MACD))
	}
	if Last(m.Histogram) <= 0 {
		t.Errorf("Expected positive histogram, got %f", Last(m.Histogram))
	}
}

func TestBollingerAndATRShortInput(t *testing.T) {
	closes := []float64{1, 2, 3}
	b := Bollinger(closes, 20, 2)
	if !math.IsNaN(Last(b.Middle)) {
		t.Errorf("Expected NaN middle band, got %f", Last(b.Middle))
	}
	atr := ATR(closes, closes, closes, 14)
	if len(atr) != 3 || !math.IsNaN(Last(atr)) {
		t.Errorf("Expected NaN ATR series of length 3, got %v", atr)
	}
}

func TestBollingerBands(t *testing.T) {
	closes := closesOf(risingBars(40))
	b := Bollinger(closes, 20, 2)
	if !math.IsNaN(b.Middle[18]) {
		t.Errorf("Expected NaN before the lookback, got %f", b.Middle[18])
	}
	want := 0.0
	for _, c := range closes[20:] {
		want += c
	}
	want /= 20
	if math.Abs(Last(b.Middle)-want) > 1e-6 {
		t.Errorf("Expected middle %f, got %f", want, Last(b.Middle))
	}
	if !(Last(b.Upper) > Last(b.Middle) && Last(b.Middle) > Last(b.Lower)) {
		t.Error("Expected upper > middle > lower")
	}
	pctB := b.PercentB(Last(closes))
	if pctB <= 0.5 || pctB >= 1.2 {
		t.Errorf("Expected price near the upper band, got %%b %f", pctB)
	}
}

func TestATRPositive(t *testing.T) {
	bars := risingBars(30)
	_, highs, lows, closes, _ := Columns(bars)
	atr := ATR(highs, lows, closes, 14)
	if !math.IsNaN(atr[13]) {
		t.Errorf("Expected NaN before the lookback, got %f", atr[13])
	}
	if v := Last(atr); math.IsNaN(v) || v <= 0 {
		t.Errorf("Expected positive ATR, got %f", v)
	}
}

func TestVWAP(t *testing.T) {
	bars := []types.Bar{
		{High: 10, Low: 10, Close: 10, Volume: 1},
		{High: 20, Low: 20, Close: 20, Volume: 3},
		{High: 30, Low: 30, Close: 30, Volume: 0},
	}
	vwap := VWAP(bars)
	if vwap[0] != 10 {
		t.Errorf("Expected 10, got %f", vwap[0])
	}
	if vwap[1] != 17.5 || vwap[2] != 17.5 {
		t.Errorf("Expected 17.5, got %v", vwap)
	}
}

func TestOBVTrend(t *testing.T) {
	bars := risingBars(20)
	_, _, _, closes, volumes := Columns(bars)
	dir, diff := Trend(OBV(closes, volumes), 5)
	if dir != 1 || diff <= 0 {
		t.Errorf("Expected rising OBV, got dir %d diff %f", dir, diff)
	}
	if dir, _ := Trend([]float64{1, 2, 3}, 5); dir != 0 {
		t.Errorf("Expected no trend for short input, got %d", dir)
	}
}

func TestResample(t *testing.T) {
	bars := risingBars(12)
	weekly := Resample(bars, 5)
	if len(weekly) != 2 {
		t.Fatalf("Expected 2 buckets, got %d", len(weekly))
	}
	last := weekly[1]
	if last.Close != bars[11].Close {
		t.Errorf("Expected last close %f, got %f", bars[11].Close, last.Close)
	}
	if last.Open != bars[7].Open {
		t.Errorf("Expected bucket open %f, got %f", bars[7].Open, last.Open)
	}
	if last.Volume != 5_000_000 {
		t.Errorf("Expected summed volume, got %f", last.Volume)
	}
	if last.High != bars[11].High || last.Low != bars[7].Low {
		t.Errorf("Unexpected high/low %f/%f", last.High, last.Low)
	}
}

func TestTechnicalsOrder(t *testing.T) {
	comps, _ := Technicals(risingBars(60))
	want := types.Strategies[:len(types.Strategies)-1]
	if len(comps) != len(want) {
		t.Fatalf("Expected %d components, got %d", len(want), len(comps))
	}
	for i, c := range comps {
		if c.Name != want[i] {
			t.Errorf("Component %d: expected %s, got %s", i, want[i], c.Name)
		}
		if c.Signal.Strength < 0 || c.Signal.Strength > 100 {
			t.Errorf("Component %s strength out of range: %f", c.Name, c.Signal.Strength)
		}
	}
}
