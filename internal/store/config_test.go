package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"autotrader/internal/types"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, `
watchlist:
  static: [aapl, " msft "]
weights:
  RSI: 30
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Mode != "DRY_RUN" {
		t.Errorf("Expected mode DRY_RUN, got %s", cfg.Mode)
	}
	if !cfg.Trading.Enabled {
		t.Error("Expected trading to be enabled by default")
	}
	if cfg.Watchlist.Static[0] != "AAPL" || cfg.Watchlist.Static[1] != "MSFT" {
		t.Errorf("Expected normalized symbols, got %v", cfg.Watchlist.Static)
	}
	if cfg.Weights[types.StrategyRSI] != 30 {
		t.Errorf("Expected rsi weight 30, got %f", cfg.Weights[types.StrategyRSI])
	}
	if cfg.Weights[types.StrategyOracle] != 25 {
		t.Errorf("Expected default oracle weight 25, got %f", cfg.Weights[types.StrategyOracle])
	}
	if cfg.Risk.MaxSectorPositions != 3 {
		t.Errorf("Expected max sector positions 3, got %d", cfg.Risk.MaxSectorPositions)
	}
	if cfg.Learning.WindowDays != 30 || cfg.Learning.MaxSamples != 500 {
		t.Errorf("Unexpected learning defaults: %+v", cfg.Learning)
	}
}

func TestLoadConfigExplicitDisable(t *testing.T) {
	path := writeConfig(t, `
trading:
  enabled: false
watchlist:
  static: [AAPL]
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Trading.Enabled {
		t.Error("Expected trading to be disabled")
	}
}

func TestLoadConfigInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad mode", "mode: YOLO\nwatchlist:\n  static: [AAPL]\n"},
		{"empty watchlist", "watchlist:\n  static: []\n"},
		{"bad provider", "oracle:\n  provider: bard\nwatchlist:\n  static: [AAPL]\n"},
		{"bad yaml", "watchlist: [\n"},
		{"bad weight", "weights:\n  rsi: 120\nwatchlist:\n  static: [AAPL]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.body))
			if err == nil {
				t.Fatal("Expected error, got nil")
			}
			if !errors.Is(err, types.ErrConfiguration) {
				t.Errorf("Expected ErrConfiguration, got %v", err)
			}
		})
	}
}

func TestLoadSecretsRequiresKiteForLive(t *testing.T) {
	t.Setenv("KITE_API_KEY", "")
	t.Setenv("KITE_ACCESS_TOKEN", "")

	cfg := Default()
	cfg.Mode = "LIVE"
	if err := cfg.LoadSecrets(); !errors.Is(err, types.ErrConfiguration) {
		t.Errorf("Expected ErrConfiguration, got %v", err)
	}

	cfg.Mode = "DRY_RUN"
	if err := cfg.LoadSecrets(); err != nil {
		t.Errorf("Expected no error in DRY_RUN, got %v", err)
	}
}

func TestInTradingHours(t *testing.T) {
	cfg := Default()
	cfg.Trading.Timezone = "UTC"
	cfg.Trading.Start = "09:00"
	cfg.Trading.End = "16:00"

	// 2024-03-06 is a Wednesday
	tests := []struct {
		at   time.Time
		want bool
	}{
		{time.Date(2024, 3, 6, 8, 59, 0, 0, time.UTC), false},
		{time.Date(2024, 3, 6, 9, 0, 0, 0, time.UTC), true},
		{time.Date(2024, 3, 6, 15, 59, 0, 0, time.UTC), true},
		{time.Date(2024, 3, 6, 16, 0, 0, 0, time.UTC), false},
		{time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC), false},
	}
	for _, tt := range tests {
		if got := cfg.InTradingHours(tt.at); got != tt.want {
			t.Errorf("InTradingHours(%v): expected %v, got %v", tt.at, tt.want, got)
		}
	}
}
