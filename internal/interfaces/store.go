package interfaces

import (
	"context"
	"time"

	"autotrader/internal/types"
)

type KV interface {
	GetKV(ctx context.Context, key string) (string, bool, error)
	SetKV(ctx context.Context, key, value string) error
}

type TradeStore interface {
	SaveTrade(ctx context.Context, t types.TradeOrder) error
	UpdateTrade(ctx context.Context, t types.TradeOrder) error
	OpenTrades(ctx context.Context) ([]types.TradeOrder, error)
	OpenTradeBySymbol(ctx context.Context, symbol string) (types.TradeOrder, bool, error)
	ClosedTradesSince(ctx context.Context, since time.Time, limit int) ([]types.TradeOrder, error)
	TradesOpenedSince(ctx context.Context, since time.Time) (int, error)
	RealizedPnLSince(ctx context.Context, since time.Time) (pnl float64, closed int, err error)
	StrategyPerformance(ctx context.Context, strategy string, since time.Time) (types.StrategyPerformance, error)
}

type RunStore interface {
	SaveRun(ctx context.Context, r types.RunRecord) error
	UpdateRun(ctx context.Context, r types.RunRecord) error
	LastRun(ctx context.Context) (types.RunRecord, bool, error)
	RunsSince(ctx context.Context, since time.Time) ([]types.RunRecord, error)
}

type WeightStore interface {
	SeedWeights(ctx context.Context, base map[string]float64) error
	StrategyWeights(ctx context.Context) (map[string]types.StrategyWeight, error)
	SaveWeightAdjustment(ctx context.Context, strategy string, adjustment float64) error
}

type SignalStore interface {
	SaveSignal(ctx context.Context, runID string, a types.SymbolAnalysis) error
	SaveLearningRun(ctx context.Context, r types.LearningReport) error
}

type Locker interface {
	AcquireLock(ctx context.Context, name, owner string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, name, owner string) error
}

// Store is the persistent state of the engine. Nothing survives between
// cycles outside it.
type Store interface {
	KV
	TradeStore
	RunStore
	WeightStore
	SignalStore
	Locker
	Close() error
}
