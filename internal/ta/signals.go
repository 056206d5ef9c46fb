package ta

import (
	"math"

	"autotrader/internal/types"
)

const (
	RSIPeriod       = 14
	BollingerPeriod = 20
	BollingerMult   = 2.0
	ATRPeriod       = 14
	OBVWindow       = 5
)

func hold(name string, values map[string]float64) types.Component {
	return types.Component{Name: name, Signal: types.Signal{Action: types.ActionHold}, Values: finite(values)}
}

func component(name string, action types.Action, strength float64, values map[string]float64) types.Component {
	return types.Component{
		Name:   name,
		Signal: types.Signal{Action: action, Strength: types.Clamp(strength, 0, 100)},
		Values: finite(values),
	}
}

// finite drops NaN and infinite readings; snapshots are stored as JSON.
func finite(values map[string]float64) map[string]float64 {
	for k, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			delete(values, k)
		}
	}
	return values
}

// volatilityUnit is the ATR, falling back to 1% of price when the ATR is
// unavailable.
func volatilityUnit(atr, price float64) float64 {
	if math.IsNaN(atr) || atr <= 0 {
		return math.Abs(price) * 0.01
	}
	return atr
}

// RSISignal: below 30 is oversold (BUY), above 70 overbought (SELL),
// 45..55 neutral, and the bands between are a weak momentum lean.
func RSISignal(closes []float64) types.Component {
	rsi := Last(RSI(closes, RSIPeriod))
	values := map[string]float64{"rsi": rsi}
	switch {
	case math.IsNaN(rsi):
		return hold(types.StrategyRSI, values)
	case rsi < 30:
		return component(types.StrategyRSI, types.ActionBuy, 50+(30-rsi)/30*50, values)
	case rsi > 70:
		return component(types.StrategyRSI, types.ActionSell, 50+(rsi-70)/30*50, values)
	case rsi >= 45 && rsi <= 55:
		return hold(types.StrategyRSI, values)
	case rsi > 55:
		return component(types.StrategyRSI, types.ActionBuy, (rsi-55)/15*40, values)
	default:
		return component(types.StrategyRSI, types.ActionSell, (45-rsi)/15*40, values)
	}
}

// MACDSignal reads the histogram sign and its direction of change. A
// zero-line crossover of the MACD line is the strongest reading, then a
// signal-line crossover; otherwise strength scales with |histogram| in
// ATR units.
func MACDSignal(closes []float64, atr float64) types.Component {
	m := MACD(closes)
	line, prevLine := Last(m.MACD), Prev(m.MACD)
	hist, prevHist := Last(m.Histogram), Prev(m.Histogram)
	values := map[string]float64{
		"macd":      line,
		"signal":    Last(m.Signal),
		"histogram": hist,
	}
	if math.IsNaN(hist) || math.IsNaN(prevHist) {
		return hold(types.StrategyMACD, values)
	}
	unit := volatilityUnit(atr, Last(closes))

	switch {
	case prevLine <= 0 && line > 0:
		return component(types.StrategyMACD, types.ActionBuy, 90, values)
	case prevLine >= 0 && line < 0:
		return component(types.StrategyMACD, types.ActionSell, 90, values)
	case prevHist <= 0 && hist > 0:
		return component(types.StrategyMACD, types.ActionBuy, 80, values)
	case prevHist >= 0 && hist < 0:
		return component(types.StrategyMACD, types.ActionSell, 80, values)
	}

	scaled := math.Abs(hist) / unit * 100
	switch {
	case hist > 0 && hist >= prevHist:
		return component(types.StrategyMACD, types.ActionBuy, math.Min(50+scaled, 85), values)
	case hist > 0:
		return component(types.StrategyMACD, types.ActionBuy, math.Min(25+scaled, 50), values)
	case hist < 0 && hist <= prevHist:
		return component(types.StrategyMACD, types.ActionSell, math.Min(50+scaled, 85), values)
	case hist < 0:
		return component(types.StrategyMACD, types.ActionSell, math.Min(25+scaled, 50), values)
	}
	return hold(types.StrategyMACD, values)
}

// EMASignal uses the EMA9/EMA21/EMA50 stack. A full ordering is a trend
// signal; a 9/21 ordering alone is a weaker lean.
func EMASignal(closes []float64, atr float64) types.Component {
	e9, e21, e50 := Last(EMA(closes, 9)), Last(EMA(closes, 21)), Last(EMA(closes, 50))
	values := map[string]float64{"ema9": e9, "ema21": e21, "ema50": e50}
	if math.IsNaN(e9) || math.IsNaN(e21) {
		return hold(types.StrategyEMA, values)
	}
	unit := volatilityUnit(atr, Last(closes))
	spread := math.Abs(e9-e21) / unit * 10
	values["spread_atr"] = (e9 - e21) / unit

	switch {
	case e9 > e21 && e21 > e50:
		return component(types.StrategyEMA, types.ActionBuy, 50+spread, values)
	case e9 < e21 && e21 < e50:
		return component(types.StrategyEMA, types.ActionSell, 50+spread, values)
	case e9 > e21:
		return component(types.StrategyEMA, types.ActionBuy, math.Min(20+spread, 50), values)
	case e9 < e21:
		return component(types.StrategyEMA, types.ActionSell, math.Min(20+spread, 50), values)
	}
	return hold(types.StrategyEMA, values)
}

// BollingerSignal is a reversion signal on %b: at or through a band edge
// is strong, inside the outer fifth of the band is a weak lean.
func BollingerSignal(closes []float64) types.Component {
	bands := Bollinger(closes, BollingerPeriod, BollingerMult)
	price := Last(closes)
	pctB := bands.PercentB(price)
	values := map[string]float64{
		"upper":     Last(bands.Upper),
		"middle":    Last(bands.Middle),
		"lower":     Last(bands.Lower),
		"percent_b": pctB,
	}
	switch {
	case math.IsNaN(pctB):
		return hold(types.StrategyBollinger, values)
	case pctB <= 0:
		return component(types.StrategyBollinger, types.ActionBuy, 70+math.Min(-pctB*100, 30), values)
	case pctB >= 1:
		return component(types.StrategyBollinger, types.ActionSell, 70+math.Min((pctB-1)*100, 30), values)
	case pctB < 0.2:
		return component(types.StrategyBollinger, types.ActionBuy, (0.2-pctB)/0.2*40, values)
	case pctB > 0.8:
		return component(types.StrategyBollinger, types.ActionSell, (pctB-0.8)/0.2*40, values)
	}
	return hold(types.StrategyBollinger, values)
}

// VWAPSignal: price above the window VWAP is bullish. Strength grows five
// points per percent of deviation, capped at 80.
func VWAPSignal(bars []types.Bar) types.Component {
	vwap := Last(VWAP(bars))
	price := bars[len(bars)-1].Close
	values := map[string]float64{"vwap": vwap}
	if math.IsNaN(vwap) || vwap == 0 {
		return hold(types.StrategyVWAP, values)
	}
	devPct := (price - vwap) / vwap * 100
	values["deviation_pct"] = devPct
	strength := math.Min(math.Abs(devPct)*5, 80)
	switch {
	case devPct > 0:
		return component(types.StrategyVWAP, types.ActionBuy, strength, values)
	case devPct < 0:
		return component(types.StrategyVWAP, types.ActionSell, strength, values)
	}
	return hold(types.StrategyVWAP, values)
}

// OBVSignal follows the on-balance volume trend (recent 5 vs prior 5).
func OBVSignal(closes, volumes []float64) types.Component {
	obv := OBV(closes, volumes)
	dir, diff := Trend(obv, OBVWindow)
	values := map[string]float64{"obv": Last(obv), "trend": float64(dir)}

	avgVol := mean(volumes)
	if dir == 0 || avgVol == 0 {
		return hold(types.StrategyOBV, values)
	}
	strength := types.Clamp(30+6*math.Abs(diff)/avgVol, 30, 80)
	if dir > 0 {
		return component(types.StrategyOBV, types.ActionBuy, strength, values)
	}
	return component(types.StrategyOBV, types.ActionSell, strength, values)
}

// Technicals computes every bar-derived component in scoring order. The
// oracle component is added by the caller.
func Technicals(bars []types.Bar) ([]types.Component, []string) {
	_, highs, lows, closes, volumes := Columns(bars)
	atr := Last(ATR(highs, lows, closes, ATRPeriod))
	pattern, names := PatternSignal(bars)
	return []types.Component{
		RSISignal(closes),
		MACDSignal(closes, atr),
		EMASignal(closes, atr),
		BollingerSignal(closes),
		VWAPSignal(bars),
		OBVSignal(closes, volumes),
		pattern,
	}, names
}
