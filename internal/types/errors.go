package types

import "errors"

var (
	ErrConfiguration    = errors.New("configuration error")
	ErrInsufficientData = errors.New("insufficient data")
	ErrOracle           = errors.New("oracle error")
	ErrOracleDisabled   = errors.New("oracle not configured")
	ErrExecution        = errors.New("execution error")
	ErrProtectiveOrder  = errors.New("protective order error")
	ErrPersistence      = errors.New("persistence error")
	ErrNoPosition       = errors.New("no open position")
)

// Degraded-state markers surfaced by operator endpoints.
const (
	DegradedOracleNotConfigured   = "oracle_not_configured"
	DegradedInsufficientHistory   = "insufficient_trade_history"
	DegradedDiscoveryUnavailable  = "discovery_unavailable"
	DegradedCircuitBreakerTripped = "circuit_breaker_tripped"
)
