package ta

import (
	"testing"

	"autotrader/internal/types"
)

func choppyBars(n int) []types.Bar {
	bars := make([]types.Bar, n)
	for i := range bars {
		c := 100.0
		if i%2 == 1 {
			c = 101
		}
		bars[i] = types.Bar{Open: c, High: c + 0.2, Low: c - 0.2, Close: c, Volume: 1000}
	}
	return bars
}

func TestRegimeVolatile(t *testing.T) {
	bars := choppyBars(30)
	last := bars[len(bars)-1]
	spike := last.Close + 5
	bars = append(bars, types.Bar{Open: last.Close, High: spike, Low: last.Close, Close: spike, Volume: 1000})

	r := ClassifyRegime(bars)
	if r.Regime != types.RegimeVolatile {
		t.Fatalf("Expected volatile, got %s", r.Regime)
	}
	if r.Posture != PostureWidenStops {
		t.Errorf("Expected widen_stops posture, got %s", r.Posture)
	}
	if r.Direction != types.ActionBuy {
		t.Errorf("Expected upward direction, got %s", r.Direction)
	}
}

func TestRegimeTrending(t *testing.T) {
	r := ClassifyRegime(risingBars(60))
	if r.Regime != types.RegimeTrending {
		t.Fatalf("Expected trending, got %s", r.Regime)
	}
	if r.Direction != types.ActionBuy || r.Posture != PostureTrendFollow {
		t.Errorf("Expected upward trend_follow, got %s %s", r.Direction, r.Posture)
	}
}

func TestRegimeRanging(t *testing.T) {
	r := ClassifyRegime(choppyBars(40))
	if r.Regime != types.RegimeRanging {
		t.Fatalf("Expected ranging, got %s", r.Regime)
	}
	if r.Posture != PostureMeanRevert {
		t.Errorf("Expected mean_revert, got %s", r.Posture)
	}
	if short := ClassifyRegime(choppyBars(5)); short.Regime != types.RegimeRanging {
		t.Errorf("Expected ranging for short input, got %s", short.Regime)
	}
}
