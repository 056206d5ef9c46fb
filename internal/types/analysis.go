package types

import "time"

// Strategy names double as scoring component names. The order of
// Strategies is the tie-break order for the dominant strategy.
const (
	StrategyRSI       = "rsi"
	StrategyMACD      = "macd"
	StrategyEMA       = "ema"
	StrategyBollinger = "bollinger"
	StrategyVWAP      = "vwap"
	StrategyOBV       = "obv"
	StrategyPattern   = "pattern"
	StrategyOracle    = "oracle"

	// ConfidenceBiasKey stores the learned overconfidence correction
	// alongside the strategy weights.
	ConfidenceBiasKey = "confidence_bias"
)

var Strategies = []string{
	StrategyRSI,
	StrategyMACD,
	StrategyEMA,
	StrategyBollinger,
	StrategyVWAP,
	StrategyOBV,
	StrategyPattern,
	StrategyOracle,
}

// Signal is a single component's directional view.
type Signal struct {
	Action   Action  `json:"signal"`
	Strength float64 `json:"strength"`
}

type Component struct {
	Name   string             `json:"name"`
	Signal Signal             `json:"signal"`
	Values map[string]float64 `json:"values,omitempty"`
}

type OracleOpinion struct {
	Signal      string  `json:"signal"`
	Confidence  float64 `json:"confidence"`
	Reasoning   string  `json:"reasoning"`
	RiskLevel   string  `json:"risk_level"`
	TargetPrice float64 `json:"target_price"`
	StopLoss    float64 `json:"stop_loss"`
}

type Regime string

const (
	RegimeTrending Regime = "trending"
	RegimeRanging  Regime = "ranging"
	RegimeVolatile Regime = "volatile"
)

type RegimeResult struct {
	Regime     Regime  `json:"regime"`
	Direction  Action  `json:"direction"`
	Confidence float64 `json:"confidence"`
	Posture    string  `json:"posture"`
}

type Confirmation struct {
	Checked    bool    `json:"checked"`
	Available  int     `json:"available"`
	Agreeing   int     `json:"agreeing"`
	Ratio      float64 `json:"ratio"`
	Adjustment float64 `json:"adjustment"`
}

type SymbolAnalysis struct {
	Symbol           string         `json:"symbol"`
	Price            float64        `json:"price"`
	Bars             int            `json:"bars"`
	Components       []Component    `json:"components"`
	Oracle           *OracleOpinion `json:"oracle,omitempty"`
	OracleError      string         `json:"oracle_error,omitempty"`
	Regime           RegimeResult   `json:"regime"`
	Patterns         []string       `json:"patterns,omitempty"`
	NormalizedScore  float64        `json:"normalized_score"`
	Decision         Action         `json:"decision"`
	Confidence       float64        `json:"confidence"`
	DominantStrategy string         `json:"dominant_strategy"`
	Confirmation     Confirmation   `json:"confirmation"`
	Reason           string         `json:"reason,omitempty"`
	AnalyzedAt       time.Time      `json:"analyzed_at"`
}

// Component returns the named component, if present.
func (a *SymbolAnalysis) Component(name string) (Component, bool) {
	for _, c := range a.Components {
		if c.Name == name {
			return c, true
		}
	}
	return Component{}, false
}

type StrategyWeight struct {
	Strategy   string    `json:"strategy"`
	BaseWeight float64   `json:"base_weight"`
	Adjustment float64   `json:"adjustment"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Effective is the weight the scorer uses: base plus the learned
// adjustment, held within [0, 50].
func (w StrategyWeight) Effective() float64 {
	return Clamp(w.BaseWeight+w.Adjustment, 0, 50)
}

func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
