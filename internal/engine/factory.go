package engine

import (
	"context"
	"fmt"

	"autotrader/internal/broker/brokerobs"
	"autotrader/internal/broker/paper"
	"autotrader/internal/broker/zerodha"
	"autotrader/internal/execution"
	"autotrader/internal/interfaces"
	"autotrader/internal/learning"
	"autotrader/internal/logger"
	"autotrader/internal/marketdata/yahoo"
	"autotrader/internal/oracle/claude"
	"autotrader/internal/oracle/noop"
	"autotrader/internal/oracle/openai"
	"autotrader/internal/oracle/oracleobs"
	"autotrader/internal/report"
	"autotrader/internal/risk"
	"autotrader/internal/signal"
	"autotrader/internal/store"
	"autotrader/internal/types"
	"autotrader/internal/watchlist"
)

// Build wires an Engine from configuration. Secrets must already be
// loaded; a missing credential is a configuration error and nothing is
// started.
func Build(ctx context.Context, cfg *store.Config, st interfaces.Store, pub Publisher) (*Engine, error) {
	yh := yahoo.New(cfg.Exchange)

	var (
		kite *zerodha.Zerodha
		err  error
	)
	if cfg.Mode == "LIVE" || cfg.DataSource == "KITE" {
		if kite, err = zerodha.FromConfig(cfg); err != nil {
			return nil, err
		}
	}

	var data interfaces.MarketData = yh
	if cfg.DataSource == "KITE" {
		data = kite
	}
	data = brokerobs.WrapData(data)

	var brk interfaces.Broker
	switch cfg.Mode {
	case "LIVE":
		brk = kite
	case "DRY_RUN":
		brk = paper.New(cfg, st, data)
	default:
		return nil, fmt.Errorf("%w: unknown mode %q", types.ErrConfiguration, cfg.Mode)
	}
	brk = brokerobs.Wrap(brk)

	orc, err := newOracle(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var source interfaces.ActivitySource
	if cfg.Watchlist.Dynamic && cfg.Watchlist.DiscoveryURL != "" {
		source = watchlist.NewScraper(cfg.Watchlist.DiscoveryURL, cfg.Timeout(cfg.Timeouts.DiscoverySeconds))
	}

	scorer := signal.HeuristicScorer{}
	logger.Info(ctx, "Engine wired",
		"mode", cfg.Mode,
		"data_source", cfg.DataSource,
		"exchange", cfg.Exchange,
		"oracle", orc.Name(),
	)

	return New(Deps{
		Config: cfg,
		Store:  st,
		Broker: brk,
		Oracle: orc,
		Analyzer: signal.NewAnalyzer(data, orc, scorer, signal.Options{
			OracleSystem:  cfg.Oracle.System,
			DataTimeout:   cfg.Timeout(cfg.Timeouts.MarketDataSeconds),
			OracleTimeout: cfg.Timeout(cfg.Timeouts.OracleSeconds),
		}),
		Confirmer: signal.NewConfirmer(data, scorer, cfg.Timeout(cfg.Timeouts.MarketDataSeconds)),
		Gate:      risk.New(cfg, st, brk, data, yh),
		Exec:      execution.New(cfg, brk, st, data, pub),
		Learner:   learning.New(cfg, st, pub),
		Curator:   watchlist.NewCurator(cfg, source, st),
		Reporter:  report.New(cfg, st, pub),
		Events:    pub,
	}), nil
}

// newOracle picks the configured provider. A provider without its API key
// falls back to noop so the oracle component is neutral.
func newOracle(ctx context.Context, cfg *store.Config) (interfaces.Oracle, error) {
	timeout := cfg.Timeout(cfg.Timeouts.OracleSeconds)
	switch cfg.Oracle.Provider {
	case "openai":
		if cfg.Secrets.OpenAIAPIKey == "" {
			logger.Warn(ctx, "OPENAI_API_KEY not set, oracle disabled")
			return noop.New(), nil
		}
		o, err := openai.New(ctx, cfg.Secrets.OpenAIAPIKey, cfg.Oracle.BaseURL, cfg.Oracle.Model, cfg.Oracle.MaxTokens, timeout)
		if err != nil {
			return nil, fmt.Errorf("%w: openai oracle: %v", types.ErrConfiguration, err)
		}
		return oracleobs.Wrap(o), nil
	case "claude":
		if cfg.Secrets.ClaudeAPIKey == "" {
			logger.Warn(ctx, "CLAUDE_API_KEY not set, oracle disabled")
			return noop.New(), nil
		}
		return oracleobs.Wrap(claude.New(cfg.Secrets.ClaudeAPIKey, cfg.Oracle.BaseURL, cfg.Oracle.Model, cfg.Oracle.MaxTokens, timeout)), nil
	}
	return noop.New(), nil
}
