package ta

import (
	"math"

	"autotrader/internal/types"
)

const (
	PatternDoji         = "doji"
	PatternHammer       = "hammer"
	PatternShootingStar = "shooting_star"
	PatternBullEngulf   = "bullish_engulfing"
	PatternBearEngulf   = "bearish_engulfing"
	PatternSoldiers     = "three_white_soldiers"
	PatternCrows        = "three_black_crows"
	PatternMorningStar  = "morning_star"
	PatternEveningStar  = "evening_star"
)

// patternStrength is signed: positive bullish, negative bearish.
var patternStrength = map[string]float64{
	PatternDoji:         0,
	PatternHammer:       60,
	PatternShootingStar: -60,
	PatternBullEngulf:   75,
	PatternBearEngulf:   -75,
	PatternSoldiers:     70,
	PatternCrows:        -70,
	PatternMorningStar:  80,
	PatternEveningStar:  -80,
}

const (
	patternMargin    = 10.0
	patternCap       = 90.0
	patternAmbiguous = 50.0
)

func bodySize(b types.Bar) float64 { return math.Abs(b.Close - b.Open) }
func candleRange(b types.Bar) float64 { return b.High - b.Low }
func isBullish(b types.Bar) bool { return b.Close > b.Open }
func isBearish(b types.Bar) bool { return b.Close < b.Open }
func upperShadow(b types.Bar) float64 { return b.High - math.Max(b.Open, b.Close) }
func lowerShadow(b types.Bar) float64 { return math.Min(b.Open, b.Close) - b.Low }
func midpoint(b types.Bar) float64 { return (b.Open + b.Close) / 2 }

func isDoji(b types.Bar) bool {
	r := candleRange(b)
	return r > 0 && bodySize(b) <= 0.1*r
}

func isLongBody(b types.Bar) bool {
	r := candleRange(b)
	return r > 0 && bodySize(b) >= 0.5*r
}

// DetectPatterns returns the candlestick patterns formed by the last one
// to three bars.
func DetectPatterns(bars []types.Bar) []string {
	n := len(bars)
	if n == 0 {
		return nil
	}
	var found []string
	cur := bars[n-1]

	if isDoji(cur) {
		found = append(found, PatternDoji)
	}
	body, r := bodySize(cur), candleRange(cur)
	if r > 0 && body > 0 {
		if lowerShadow(cur) >= 2*body && upperShadow(cur) <= 0.1*r {
			found = append(found, PatternHammer)
		}
		if upperShadow(cur) >= 2*body && lowerShadow(cur) <= 0.1*r {
			found = append(found, PatternShootingStar)
		}
	}

	if n >= 2 {
		prev := bars[n-2]
		if isBearish(prev) && isBullish(cur) &&
			cur.Open <= prev.Close && cur.Close >= prev.Open && bodySize(cur) > bodySize(prev) {
			found = append(found, PatternBullEngulf)
		}
		if isBullish(prev) && isBearish(cur) &&
			cur.Open >= prev.Close && cur.Close <= prev.Open && bodySize(cur) > bodySize(prev) {
			found = append(found, PatternBearEngulf)
		}
	}

	if n >= 3 {
		a, b, c := bars[n-3], bars[n-2], bars[n-1]
		if isBullish(a) && isBullish(b) && isBullish(c) &&
			b.Close > a.Close && c.Close > b.Close &&
			b.Open >= a.Open && b.Open <= a.Close &&
			c.Open >= b.Open && c.Open <= b.Close {
			found = append(found, PatternSoldiers)
		}
		if isBearish(a) && isBearish(b) && isBearish(c) &&
			b.Close < a.Close && c.Close < b.Close &&
			b.Open <= a.Open && b.Open >= a.Close &&
			c.Open <= b.Open && c.Open >= b.Close {
			found = append(found, PatternCrows)
		}
		smallMiddle := bodySize(b) <= 0.3*bodySize(a)
		if isBearish(a) && isLongBody(a) && smallMiddle &&
			isBullish(c) && c.Close > midpoint(a) {
			found = append(found, PatternMorningStar)
		}
		if isBullish(a) && isLongBody(a) && smallMiddle &&
			isBearish(c) && c.Close < midpoint(a) {
			found = append(found, PatternEveningStar)
		}
	}
	return found
}

// ResolvePatterns sums bullish and bearish strengths. One side must lead
// by the margin to give a direction; the result is capped.
func ResolvePatterns(names []string) types.Signal {
	if len(names) == 0 {
		return types.Signal{Action: types.ActionHold, Strength: 0}
	}
	var bull, bear float64
	for _, name := range names {
		s := patternStrength[name]
		if s > 0 {
			bull += s
		} else {
			bear -= s
		}
	}
	switch {
	case bull-bear >= patternMargin:
		return types.Signal{Action: types.ActionBuy, Strength: math.Min(bull, patternCap)}
	case bear-bull >= patternMargin:
		return types.Signal{Action: types.ActionSell, Strength: math.Min(bear, patternCap)}
	}
	return types.Signal{Action: types.ActionHold, Strength: patternAmbiguous}
}

func PatternSignal(bars []types.Bar) (types.Component, []string) {
	names := DetectPatterns(bars)
	sig := ResolvePatterns(names)
	return types.Component{
		Name:   types.StrategyPattern,
		Signal: sig,
		Values: map[string]float64{"patterns": float64(len(names))},
	}, names
}
