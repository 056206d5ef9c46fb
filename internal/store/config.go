package store

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"autotrader/internal/types"
)

type Config struct {
	Mode       string `yaml:"mode"`        // DRY_RUN (paper broker) or LIVE (Kite)
	DataSource string `yaml:"data_source"` // YAHOO or KITE
	Exchange   string `yaml:"exchange"`
	StorePath  string `yaml:"store_path"`
	JournalDir string `yaml:"journal_dir"`
	ReportDir  string `yaml:"report_dir"`

	Trading struct {
		Enabled     bool   `yaml:"enabled"`
		Timezone    string `yaml:"timezone"`
		Start       string `yaml:"start"` // HH:MM in Timezone
		End         string `yaml:"end"`
		MaxParallel int    `yaml:"max_parallel"`
		// Cycle budget; once spent no new entries are opened.
		CycleBudgetSeconds int `yaml:"cycle_budget_seconds"`
		LockTTLSeconds     int `yaml:"lock_ttl_seconds"`
	} `yaml:"trading"`

	Watchlist struct {
		Static        []string `yaml:"static"`
		MaxSize       int      `yaml:"max_size"`
		Dynamic       bool     `yaml:"dynamic"`
		DiscoveryURL  string   `yaml:"discovery_url"`
		MinTradeCount int64    `yaml:"min_trade_count"`
		MinPrice      float64  `yaml:"min_price"`
		MaxPrice      float64  `yaml:"max_price"`
	} `yaml:"watchlist"`

	Risk struct {
		MaxPositionPct     float64           `yaml:"max_position_pct"`
		StopLossPct        float64           `yaml:"stop_loss_pct"`
		TakeProfitPct      float64           `yaml:"take_profit_pct"`
		TrailingStopPct    float64           `yaml:"trailing_stop_pct"`
		MaxDailyLoss       float64           `yaml:"max_daily_loss"`
		MaxDailyTrades     int               `yaml:"max_daily_trades"`
		MinConfidence      float64           `yaml:"min_confidence"`
		MaxSectorPositions int               `yaml:"max_sector_positions"`
		EarningsBlackoutH  int               `yaml:"earnings_blackout_hours"`
		MaxGapPct          float64           `yaml:"max_gap_pct"`
		Sectors            map[string]string `yaml:"sectors"`
	} `yaml:"risk"`

	// Base weights per scoring component, 0..100.
	Weights map[string]float64 `yaml:"weights"`

	Learning struct {
		WindowDays int `yaml:"window_days"`
		MaxSamples int `yaml:"max_samples"`
		MinSamples int `yaml:"min_samples"`
	} `yaml:"learning"`

	Oracle struct {
		Provider  string `yaml:"provider"` // openai, claude or none
		Model     string `yaml:"model"`
		BaseURL   string `yaml:"base_url"`
		MaxTokens int    `yaml:"max_tokens"`
		System    string `yaml:"system"`
	} `yaml:"oracle"`

	Timeouts struct {
		MarketDataSeconds int `yaml:"market_data_seconds"`
		BrokerSeconds     int `yaml:"broker_seconds"`
		OracleSeconds     int `yaml:"oracle_seconds"`
		CalendarSeconds   int `yaml:"calendar_seconds"`
		DiscoverySeconds  int `yaml:"discovery_seconds"`
	} `yaml:"timeouts"`

	Schedule struct {
		Cycle     string `yaml:"cycle"`
		Learn     string `yaml:"learn"`
		Watchlist string `yaml:"watchlist"`
		Report    string `yaml:"report"`
	} `yaml:"schedule"`

	Paper struct {
		StartingCash float64 `yaml:"starting_cash"`
	} `yaml:"paper"`

	Metrics struct {
		Addr string `yaml:"addr"`
	} `yaml:"metrics"`

	// Secrets are never read from yaml; see LoadSecrets.
	Secrets Secrets `yaml:"-"`
}

type Secrets struct {
	KiteAPIKey      string
	KiteAccessToken string
	OpenAIAPIKey    string
	ClaudeAPIKey    string
}

func DefaultWeights() map[string]float64 {
	return map[string]float64{
		types.StrategyRSI:       15,
		types.StrategyMACD:      20,
		types.StrategyEMA:       20,
		types.StrategyBollinger: 10,
		types.StrategyVWAP:      10,
		types.StrategyOBV:       10,
		types.StrategyPattern:   10,
		types.StrategyOracle:    25,
	}
}

// Default returns a configuration with every default applied, suitable
// for paper trading without a config file.
func Default() *Config {
	c := &Config{}
	c.Trading.Enabled = true
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	if c.Mode == "" {
		c.Mode = "DRY_RUN"
	}
	if c.DataSource == "" {
		c.DataSource = "YAHOO"
	}
	if c.Exchange == "" {
		c.Exchange = "NSE"
	}
	if c.StorePath == "" {
		c.StorePath = "autotrader.db"
	}
	if c.JournalDir == "" {
		c.JournalDir = "logs"
	}
	if c.ReportDir == "" {
		c.ReportDir = "reports"
	}

	if c.Trading.Timezone == "" {
		c.Trading.Timezone = "Asia/Kolkata"
	}
	if c.Trading.Start == "" {
		c.Trading.Start = "09:15"
	}
	if c.Trading.End == "" {
		c.Trading.End = "15:30"
	}
	if c.Trading.MaxParallel == 0 {
		c.Trading.MaxParallel = 4
	}
	if c.Trading.CycleBudgetSeconds == 0 {
		c.Trading.CycleBudgetSeconds = 240
	}
	if c.Trading.LockTTLSeconds == 0 {
		c.Trading.LockTTLSeconds = 300
	}

	if c.Watchlist.MaxSize == 0 {
		c.Watchlist.MaxSize = 20
	}
	if c.Watchlist.MinTradeCount == 0 {
		c.Watchlist.MinTradeCount = 10000
	}
	if c.Watchlist.MinPrice == 0 {
		c.Watchlist.MinPrice = 5
	}
	if c.Watchlist.MaxPrice == 0 {
		c.Watchlist.MaxPrice = 1000
	}
	if c.Watchlist.DiscoveryURL == "" {
		c.Watchlist.DiscoveryURL = "https://finance.yahoo.com/markets/stocks/most-active/"
	}

	if c.Risk.MaxPositionPct == 0 {
		c.Risk.MaxPositionPct = 10
	}
	if c.Risk.StopLossPct == 0 {
		c.Risk.StopLossPct = 5
	}
	if c.Risk.TakeProfitPct == 0 {
		c.Risk.TakeProfitPct = 10
	}
	if c.Risk.TrailingStopPct == 0 {
		c.Risk.TrailingStopPct = 3
	}
	if c.Risk.MaxDailyLoss == 0 {
		c.Risk.MaxDailyLoss = 500
	}
	if c.Risk.MaxDailyTrades == 0 {
		c.Risk.MaxDailyTrades = 10
	}
	if c.Risk.MinConfidence == 0 {
		c.Risk.MinConfidence = 30
	}
	if c.Risk.MaxSectorPositions == 0 {
		c.Risk.MaxSectorPositions = 3
	}
	if c.Risk.EarningsBlackoutH == 0 {
		c.Risk.EarningsBlackoutH = 48
	}
	if c.Risk.MaxGapPct == 0 {
		c.Risk.MaxGapPct = 3
	}

	weights := DefaultWeights()
	for k, v := range c.Weights {
		weights[strings.ToLower(k)] = v
	}
	c.Weights = weights

	if c.Learning.WindowDays == 0 {
		c.Learning.WindowDays = 30
	}
	if c.Learning.MaxSamples == 0 {
		c.Learning.MaxSamples = 500
	}
	if c.Learning.MinSamples == 0 {
		c.Learning.MinSamples = 3
	}

	if c.Oracle.Provider == "" {
		c.Oracle.Provider = "none"
	}
	if c.Oracle.MaxTokens == 0 {
		c.Oracle.MaxTokens = 512
	}

	if c.Timeouts.MarketDataSeconds == 0 {
		c.Timeouts.MarketDataSeconds = 15
	}
	if c.Timeouts.BrokerSeconds == 0 {
		c.Timeouts.BrokerSeconds = 10
	}
	if c.Timeouts.OracleSeconds == 0 {
		c.Timeouts.OracleSeconds = 30
	}
	if c.Timeouts.CalendarSeconds == 0 {
		c.Timeouts.CalendarSeconds = 10
	}
	if c.Timeouts.DiscoverySeconds == 0 {
		c.Timeouts.DiscoverySeconds = 20
	}

	// cron specs carry a seconds field
	if c.Schedule.Cycle == "" {
		c.Schedule.Cycle = "0 */5 * * * 1-5"
	}
	if c.Schedule.Learn == "" {
		c.Schedule.Learn = "0 0 18 * * 1-5"
	}
	if c.Schedule.Watchlist == "" {
		c.Schedule.Watchlist = "0 0 9 * * 1-5"
	}
	if c.Schedule.Report == "" {
		c.Schedule.Report = "0 0 19 * * 5"
	}

	if c.Paper.StartingCash == 0 {
		c.Paper.StartingCash = 100000
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9102"
	}
}

func (c *Config) Validate() error {
	if c.Mode != "DRY_RUN" && c.Mode != "LIVE" {
		return fmt.Errorf("invalid mode '%s': must be 'DRY_RUN' or 'LIVE'", c.Mode)
	}
	if c.DataSource != "YAHOO" && c.DataSource != "KITE" {
		return fmt.Errorf("invalid data_source '%s': must be 'YAHOO' or 'KITE'", c.DataSource)
	}
	if len(c.Watchlist.Static) == 0 && !c.Watchlist.Dynamic {
		return errors.New("watchlist.static cannot be empty when watchlist.dynamic is off")
	}
	if c.Risk.MaxPositionPct <= 0 || c.Risk.MaxPositionPct > 100 {
		return fmt.Errorf("risk.max_position_pct must be between 0-100, got %.2f", c.Risk.MaxPositionPct)
	}
	if c.Risk.StopLossPct <= 0 || c.Risk.StopLossPct >= 100 {
		return fmt.Errorf("risk.stop_loss_pct must be between 0-100, got %.2f", c.Risk.StopLossPct)
	}
	if c.Risk.TrailingStopPct <= 0 || c.Risk.TrailingStopPct >= 100 {
		return fmt.Errorf("risk.trailing_stop_pct must be between 0-100, got %.2f", c.Risk.TrailingStopPct)
	}
	if c.Risk.MinConfidence < 0 || c.Risk.MinConfidence > 100 {
		return fmt.Errorf("risk.min_confidence must be between 0-100, got %.2f", c.Risk.MinConfidence)
	}
	for name, w := range c.Weights {
		if w < 0 || w > 100 {
			return fmt.Errorf("weights.%s must be between 0-100, got %.2f", name, w)
		}
	}
	if _, err := time.LoadLocation(c.Trading.Timezone); err != nil {
		return fmt.Errorf("trading.timezone: %w", err)
	}
	if _, err := parseClock(c.Trading.Start); err != nil {
		return fmt.Errorf("trading.start: %w", err)
	}
	if _, err := parseClock(c.Trading.End); err != nil {
		return fmt.Errorf("trading.end: %w", err)
	}
	switch c.Oracle.Provider {
	case "none", "openai", "claude":
	default:
		return fmt.Errorf("oracle.provider must be 'none', 'openai' or 'claude', got '%s'", c.Oracle.Provider)
	}
	return nil
}

// LoadSecrets reads credentials from the environment. LIVE mode and the
// KITE data source cannot start without Kite credentials.
func (c *Config) LoadSecrets() error {
	c.Secrets = Secrets{
		KiteAPIKey:      os.Getenv("KITE_API_KEY"),
		KiteAccessToken: os.Getenv("KITE_ACCESS_TOKEN"),
		OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
		ClaudeAPIKey:    os.Getenv("CLAUDE_API_KEY"),
	}
	needsKite := c.Mode == "LIVE" || c.DataSource == "KITE"
	if needsKite && (c.Secrets.KiteAPIKey == "" || c.Secrets.KiteAccessToken == "") {
		return fmt.Errorf("%w: KITE_API_KEY and KITE_ACCESS_TOKEN are required for %s/%s", types.ErrConfiguration, c.Mode, c.DataSource)
	}
	return nil
}

func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrConfiguration, err)
	}
	// trading.enabled defaults to true when the key is absent
	c := Config{}
	c.Trading.Enabled = true
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrConfiguration, err)
	}
	c.applyDefaults()
	for i, s := range c.Watchlist.Static {
		c.Watchlist.Static[i] = strings.ToUpper(strings.TrimSpace(s))
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%w: config validation failed: %v", types.ErrConfiguration, err)
	}
	return &c, nil
}

func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Trading.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// InTradingHours reports whether t falls inside the configured session
// window, evaluated in the trading timezone. Weekends are outside.
func (c *Config) InTradingHours(t time.Time) bool {
	local := t.In(c.Location())
	if local.Weekday() == time.Saturday || local.Weekday() == time.Sunday {
		return false
	}
	start, err1 := parseClock(c.Trading.Start)
	end, err2 := parseClock(c.Trading.End)
	if err1 != nil || err2 != nil {
		return false
	}
	mins := local.Hour()*60 + local.Minute()
	return mins >= start && mins < end
}

// StartOfDay is midnight of t's calendar day in the trading timezone.
func (c *Config) StartOfDay(t time.Time) time.Time {
	local := t.In(c.Location())
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, local.Location())
}

// Timeout converts a configured number of seconds; unset values fall back
// to 30s so no external call runs unbounded.
func (c *Config) Timeout(seconds int) time.Duration {
	if seconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(seconds) * time.Second
}

func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}
