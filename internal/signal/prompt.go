package signal

import (
	"encoding/json"
	"fmt"
	"math"

	"autotrader/internal/types"
)

type promptComponent struct {
	Signal   types.Action       `json:"signal"`
	Strength float64            `json:"strength"`
	Values   map[string]float64 `json:"values,omitempty"`
}

// BuildPrompt embeds the computed indicator state for the oracle.
func BuildPrompt(symbol string, price float64, components []types.Component, regime types.RegimeResult, patterns []string) string {
	comps := make(map[string]promptComponent, len(components))
	for _, c := range components {
		values := make(map[string]float64, len(c.Values))
		for k, v := range c.Values {
			// NaN is not valid JSON
			if !math.IsNaN(v) && !math.IsInf(v, 0) {
				values[k] = math.Round(v*10000) / 10000
			}
		}
		comps[c.Name] = promptComponent{Signal: c.Signal.Action, Strength: math.Round(c.Signal.Strength*100) / 100, Values: values}
	}
	state := map[string]any{
		"symbol":     symbol,
		"price":      price,
		"indicators": comps,
		"regime":     regime,
		"patterns":   patterns,
	}
	b, _ := json.Marshal(state)
	return fmt.Sprintf("State:%s\n\nRespond ONLY with compact JSON: {\"signal\",\"confidence\",\"reasoning\",\"risk_level\",\"target_price\",\"stop_loss\"}.", string(b))
}
