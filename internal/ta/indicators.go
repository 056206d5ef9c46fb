// Package ta computes technical indicators over price series.
//
// Every indicator returns a series aligned with its input: element i is the
// value as of input i, and NaN while the lookback is not yet satisfied.
// Callers that only want the current reading use Last.
package ta

import (
	"math"

	"github.com/markcheno/go-talib"

	"autotrader/internal/types"
)

// MinBars is the minimum history for a meaningful analysis.
const MinBars = 20

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// Last returns the final element, or NaN for an empty series.
func Last(series []float64) float64 {
	if len(series) == 0 {
		return math.NaN()
	}
	return series[len(series)-1]
}

// Prev returns the element before the last one, or NaN.
func Prev(series []float64) float64 {
	if len(series) < 2 {
		return math.NaN()
	}
	return series[len(series)-2]
}

// maskLookback replaces the first n values (talib's zero-filled warmup)
// with NaN.
func maskLookback(series []float64, n int) []float64 {
	for i := 0; i < n && i < len(series); i++ {
		series[i] = math.NaN()
	}
	return series
}

func SMA(series []float64, period int) []float64 {
	out := nanSeries(len(series))
	if period <= 0 {
		return out
	}
	sum := 0.0
	for i, v := range series {
		sum += v
		if i >= period {
			sum -= series[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// EMA uses k = 2/(period+1) and is seeded with the first value, so it is
// defined from index 0. NaN inputs are skipped (the previous value carries).
func EMA(series []float64, period int) []float64 {
	out := nanSeries(len(series))
	if period <= 0 || len(series) == 0 {
		return out
	}
	k := 2.0 / float64(period+1)
	prev := math.NaN()
	for i, v := range series {
		switch {
		case math.IsNaN(v):
		case math.IsNaN(prev):
			prev = v
		default:
			prev = v*k + prev*(1-k)
		}
		out[i] = prev
	}
	return out
}

// RSI is Wilder's relative strength index. The first average gain/loss is
// the simple mean of the first period changes; later values use Wilder
// smoothing. RSI is 100 when the average loss is zero, 0 when the average
// gain is zero, and 50 for a completely flat window.
func RSI(closes []float64, period int) []float64 {
	out := nanSeries(len(closes))
	if period <= 0 || len(closes) <= period {
		return out
	}
	var gain, loss float64
	for i := 1; i <= period; i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	avgGain := gain / float64(period)
	avgLoss := loss / float64(period)
	out[period] = rsiValue(avgGain, avgLoss)

	p := float64(period)
	for i := period + 1; i < len(closes); i++ {
		d := closes[i] - closes[i-1]
		g, l := 0.0, 0.0
		if d > 0 {
			g = d
		} else {
			l = -d
		}
		avgGain = (avgGain*(p-1) + g) / p
		avgLoss = (avgLoss*(p-1) + l) / p
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	switch {
	case avgLoss == 0 && avgGain == 0:
		return 50
	case avgLoss == 0:
		return 100
	case avgGain == 0:
		return 0
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

type MACDSeries struct {
	MACD      []float64
	Signal    []float64
	Histogram []float64
}

// MACD is EMA12 - EMA26 with an EMA9 signal line.
func MACD(closes []float64) MACDSeries {
	return MACDWith(closes, 12, 26, 9)
}

func MACDWith(closes []float64, fast, slow, signal int) MACDSeries {
	fastEMA := EMA(closes, fast)
	slowEMA := EMA(closes, slow)
	line := make([]float64, len(closes))
	for i := range closes {
		line[i] = fastEMA[i] - slowEMA[i]
	}
	sig := EMA(line, signal)
	hist := make([]float64, len(closes))
	for i := range closes {
		hist[i] = line[i] - sig[i]
	}
	return MACDSeries{MACD: line, Signal: sig, Histogram: hist}
}

type BandSeries struct {
	Upper  []float64
	Middle []float64
	Lower  []float64
}

// Bollinger bands: SMA(period) +/- mult population standard deviations.
func Bollinger(closes []float64, period int, mult float64) BandSeries {
	n := len(closes)
	if period <= 1 || n < period {
		return BandSeries{Upper: nanSeries(n), Middle: nanSeries(n), Lower: nanSeries(n)}
	}
	upper, middle, lower := talib.BBands(closes, period, mult, mult, talib.SMA)
	lookback := period - 1
	return BandSeries{
		Upper:  maskLookback(upper, lookback),
		Middle: maskLookback(middle, lookback),
		Lower:  maskLookback(lower, lookback),
	}
}

// PercentB is (price - lower) / (upper - lower) for the latest bar.
func (b BandSeries) PercentB(price float64) float64 {
	up, low := Last(b.Upper), Last(b.Lower)
	if math.IsNaN(up) || math.IsNaN(low) || up == low {
		return math.NaN()
	}
	return (price - low) / (up - low)
}

// Width is (upper - lower) / middle at index i.
func (b BandSeries) Width(i int) float64 {
	if i < 0 || i >= len(b.Middle) || b.Middle[i] == 0 {
		return math.NaN()
	}
	return (b.Upper[i] - b.Lower[i]) / b.Middle[i]
}

// ATR is Wilder-smoothed average true range.
func ATR(highs, lows, closes []float64, period int) []float64 {
	n := len(closes)
	if period <= 0 || len(highs) != n || len(lows) != n || n <= period+1 {
		return nanSeries(n)
	}
	return maskLookback(talib.Atr(highs, lows, closes, period), period)
}

// VWAP is the cumulative volume-weighted typical price over the window.
// Bars without volume do not move it.
func VWAP(bars []types.Bar) []float64 {
	out := nanSeries(len(bars))
	var pv, vol float64
	for i, b := range bars {
		typical := (b.High + b.Low + b.Close) / 3
		pv += typical * b.Volume
		vol += b.Volume
		if vol > 0 {
			out[i] = pv / vol
		}
	}
	return out
}

// OBV is on-balance volume.
func OBV(closes, volumes []float64) []float64 {
	if len(closes) == 0 || len(closes) != len(volumes) {
		return nanSeries(len(closes))
	}
	return talib.Obv(closes, volumes)
}

// Trend compares the mean of the last window values with the mean of the
// window before it. It returns +1 (rising), -1 (falling) or 0, and the
// difference of the two means.
func Trend(series []float64, window int) (int, float64) {
	if window <= 0 || len(series) < 2*window {
		return 0, 0
	}
	n := len(series)
	recent := mean(series[n-window:])
	prior := mean(series[n-2*window : n-window])
	diff := recent - prior
	switch {
	case diff > 0:
		return 1, diff
	case diff < 0:
		return -1, diff
	}
	return 0, 0
}

func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	s := 0.0
	for _, v := range vals {
		s += v
	}
	return s / float64(len(vals))
}

// Resample folds every n consecutive bars into one, aligned so the final
// bucket ends at the latest bar. A leading partial bucket is dropped.
func Resample(bars []types.Bar, n int) []types.Bar {
	if n <= 1 {
		return append([]types.Bar(nil), bars...)
	}
	start := len(bars) % n
	out := make([]types.Bar, 0, len(bars)/n)
	for i := start; i+n <= len(bars); i += n {
		chunk := bars[i : i+n]
		agg := types.Bar{
			Time: chunk[0].Time,
			Open: chunk[0].Open,
			High: chunk[0].High,
			Low:  chunk[0].Low,
		}
		for _, b := range chunk {
			agg.High = math.Max(agg.High, b.High)
			agg.Low = math.Min(agg.Low, b.Low)
			agg.Volume += b.Volume
		}
		agg.Close = chunk[n-1].Close
		out = append(out, agg)
	}
	return out
}

// Columns splits bars into parallel OHLCV slices.
func Columns(bars []types.Bar) (opens, highs, lows, closes, volumes []float64) {
	opens = make([]float64, len(bars))
	highs = make([]float64, len(bars))
	lows = make([]float64, len(bars))
	closes = make([]float64, len(bars))
	volumes = make([]float64, len(bars))
	for i, b := range bars {
		opens[i] = b.Open
		highs[i] = b.High
		lows[i] = b.Low
		closes[i] = b.Close
		volumes[i] = b.Volume
	}
	return
}
