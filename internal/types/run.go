package types

import "time"

type RunStatus string

const (
	RunPending        RunStatus = "pending"
	RunRunning        RunStatus = "running"
	RunCompleted      RunStatus = "completed"
	RunSkipped        RunStatus = "skipped"
	RunCircuitBreaker RunStatus = "circuit_breaker"
	RunError          RunStatus = "error"
)

// Terminal reports whether no further transition is allowed.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunCompleted, RunSkipped, RunCircuitBreaker, RunError:
		return true
	}
	return false
}

type RunRecord struct {
	ID               string    `json:"id"`
	Status           RunStatus `json:"status"`
	SymbolsChecked   int       `json:"symbols_checked"`
	SignalsGenerated int       `json:"signals_generated"`
	TradesExecuted   int       `json:"trades_executed"`
	StopsAdjusted    int       `json:"stops_adjusted"`
	PositionsClosed  int       `json:"positions_closed"`
	Errors           []string  `json:"errors,omitempty"`
	Note             string    `json:"note,omitempty"`
	StartedAt        time.Time `json:"started_at"`
	FinishedAt       time.Time `json:"finished_at,omitempty"`
	DurationMs       int64     `json:"duration_ms"`
}

type CircuitStatus struct {
	Safe        bool    `json:"safe"`
	RealizedPnL float64 `json:"realized_pnl"`
	Floor       float64 `json:"floor"`
	ClosedToday int     `json:"closed_today"`
}

type Verdict struct {
	Allowed bool   `json:"allowed"`
	Check   string `json:"check,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

type Sizing struct {
	Qty      int     `json:"qty"`
	Fraction float64 `json:"fraction"`
	Method   string  `json:"method"`
	WinRate  float64 `json:"win_rate"`
	Samples  int     `json:"samples"`
}

type LearningReport struct {
	ID               string             `json:"id"`
	SampleSize       int                `json:"sample_size"`
	WindowDays       int                `json:"window_days"`
	Adjustments      map[string]float64 `json:"adjustments"`
	Skipped          map[string]int     `json:"skipped,omitempty"`
	WinRate          float64            `json:"win_rate"`
	AvgConfidence    float64            `json:"avg_confidence"`
	TotalPnL         float64            `json:"total_pnl"`
	Overconfidence   bool               `json:"overconfidence"`
	ConfidenceBias   float64            `json:"confidence_bias"`
	RanAt            time.Time          `json:"ran_at"`
	InsufficientData bool               `json:"insufficient_data"`
}

type WatchlistResult struct {
	Symbols    []string `json:"symbols"`
	Static     int      `json:"static"`
	Discovered int      `json:"discovered"`
	Added      []string `json:"added"`
	Degraded   string   `json:"degraded,omitempty"`
}

type ActiveSymbol struct {
	Symbol     string  `json:"symbol"`
	Price      float64 `json:"price"`
	TradeCount int64   `json:"trade_count"`
}

type StrategyStats struct {
	Strategy  string  `json:"strategy"`
	Trades    int     `json:"trades"`
	Wins      int     `json:"wins"`
	WinRate   float64 `json:"win_rate"`
	PnL       float64 `json:"pnl"`
	AvgPnLPct float64 `json:"avg_pnl_pct"`
}

type WeeklyReport struct {
	From       time.Time         `json:"from"`
	To         time.Time         `json:"to"`
	Trades     int               `json:"trades"`
	Wins       int               `json:"wins"`
	WinRate    float64           `json:"win_rate"`
	TotalPnL   float64           `json:"total_pnl"`
	Strategies []StrategyStats   `json:"strategies"`
	Runs       map[RunStatus]int `json:"runs"`
	OpenTrades int               `json:"open_trades"`
	Degraded   []string          `json:"degraded,omitempty"`
	CSVPath    string            `json:"csv_path,omitempty"`
}

// Readiness is the paper-to-live check: whether the recent paper record
// justifies switching to a live broker.
type Readiness struct {
	Ready        bool     `json:"ready"`
	ClosedTrades int      `json:"closed_trades"`
	WinRate      float64  `json:"win_rate"`
	TotalPnL     float64  `json:"total_pnl"`
	Reasons      []string `json:"reasons,omitempty"`
}

type StatusReport struct {
	Mode       string                    `json:"mode"`
	Enabled    bool                      `json:"enabled"`
	MarketOpen bool                      `json:"market_open"`
	Oracle     string                    `json:"oracle"`
	LastRun    *RunRecord                `json:"last_run,omitempty"`
	OpenTrades []TradeOrder              `json:"open_trades"`
	Circuit    CircuitStatus             `json:"circuit"`
	Weights    map[string]StrategyWeight `json:"weights"`
	Account    *Account                  `json:"account,omitempty"`
	Readiness  Readiness                 `json:"readiness"`
	Degraded   []string                  `json:"degraded,omitempty"`
	CheckedAt  time.Time                 `json:"checked_at"`
}
