package ta

import (
	"math"

	"autotrader/internal/types"
)

const (
	PostureTrendFollow = "trend_follow"
	PostureMeanRevert  = "mean_revert"
	PostureWidenStops  = "widen_stops"

	regimeMoveWindow  = 14
	volatileMultiple  = 2.0
	trendBars         = 3
	trendingBandWidth = 0.04
)

// ClassifyRegime labels recent price behaviour. A latest close-to-close
// move above twice the mean of the previous 14 moves is volatile; EMA9 and
// EMA21 holding the same order for 3 bars with a band width above 0.04 is
// trending; anything else is ranging.
func ClassifyRegime(bars []types.Bar) types.RegimeResult {
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	ranging := types.RegimeResult{Regime: types.RegimeRanging, Direction: types.ActionHold, Confidence: 50, Posture: PostureMeanRevert}
	n := len(closes)
	if n < regimeMoveWindow+2 {
		return ranging
	}

	latest := math.Abs(closes[n-1] - closes[n-2])
	var sum float64
	for i := n - 1 - regimeMoveWindow; i < n-1; i++ {
		sum += math.Abs(closes[i] - closes[i-1])
	}
	avgMove := sum / regimeMoveWindow
	if avgMove > 0 && latest > volatileMultiple*avgMove {
		ratio := latest / avgMove
		dir := types.ActionBuy
		if closes[n-1] < closes[n-2] {
			dir = types.ActionSell
		}
		return types.RegimeResult{
			Regime:     types.RegimeVolatile,
			Direction:  dir,
			Confidence: types.Clamp(50+(ratio-volatileMultiple)*15, 50, 95),
			Posture:    PostureWidenStops,
		}
	}

	fast, slow := EMA(closes, 9), EMA(closes, 21)
	up, down := true, true
	for i := n - trendBars; i < n; i++ {
		if !(fast[i] > slow[i]) {
			up = false
		}
		if !(fast[i] < slow[i]) {
			down = false
		}
	}
	width := Bollinger(closes, BollingerPeriod, BollingerMult).Width(n - 1)
	if (up || down) && !math.IsNaN(width) && width > trendingBandWidth {
		dir := types.ActionBuy
		if down {
			dir = types.ActionSell
		}
		return types.RegimeResult{
			Regime:     types.RegimeTrending,
			Direction:  dir,
			Confidence: types.Clamp(50+(width-trendingBandWidth)*500, 50, 95),
			Posture:    PostureTrendFollow,
		}
	}
	if !math.IsNaN(width) {
		ranging.Confidence = types.Clamp(50+(trendingBandWidth-width)*1000, 50, 90)
	}
	return ranging
}
