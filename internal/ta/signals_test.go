package ta

import (
	"encoding/json"
	"math"
	"testing"

	"autotrader/internal/types"
)

func TestComponentsDropNonFiniteValues(t *testing.T) {
	bars := risingBars(60)
	for i := range bars {
		bars[i].Volume = 0
	}
	vwap := VWAPSignal(bars)
	if _, ok := vwap.Values["vwap"]; ok {
		t.Errorf("Expected no vwap reading without volume, got %v", vwap.Values)
	}
	if vwap.Signal.Action != types.ActionHold {
		t.Errorf("Expected HOLD without volume, got %s", vwap.Signal.Action)
	}

	flat := make([]float64, 30)
	for i := range flat {
		flat[i] = 100
	}
	boll := BollingerSignal(flat)
	if _, ok := boll.Values["percent_b"]; ok {
		t.Errorf("Expected no percent_b on flat bands, got %v", boll.Values)
	}

	comps, _ := Technicals(bars)
	for _, c := range comps {
		for k, v := range c.Values {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				t.Errorf("Component %s value %s is not finite", c.Name, k)
			}
		}
	}
	if _, err := json.Marshal(comps); err != nil {
		t.Errorf("Expected components to encode, got %v", err)
	}
}
