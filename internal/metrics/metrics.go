// Package metrics holds the Prometheus collectors updated by the engine.
//
//   - autotrader_cycles_total{status}          cycles by terminal status
//   - autotrader_cycle_duration_seconds        wall time of completed cycles
//   - autotrader_decisions_total{action}       scored decisions
//   - autotrader_orders_total{side,mode}       orders accepted by the broker
//   - autotrader_risk_rejections_total{check}  gate rejections by check
//   - autotrader_oracle_failures_total{provider}
//   - autotrader_stop_adjustments_total{kind}  ratchet, reattach, replace_failed
//   - autotrader_positions_closed_total{reason}
//   - autotrader_events_dropped_total          outbound events dropped on a full queue
//   - autotrader_weight_adjustment{strategy}   current learned adjustment
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Cycles = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autotrader_cycles_total",
			Help: "Trading cycles by terminal status",
		},
		[]string{"status"},
	)

	CycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "autotrader_cycle_duration_seconds",
			Help:    "Duration of trading cycles",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 240, 480},
		},
	)

	Decisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autotrader_decisions_total",
			Help: "Scored decisions by action",
		},
		[]string{"action"},
	)

	Orders = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autotrader_orders_total",
			Help: "Orders accepted by the broker",
		},
		[]string{"side", "mode"},
	)

	RiskRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autotrader_risk_rejections_total",
			Help: "BUY candidates rejected by the risk gate, by check",
		},
		[]string{"check"},
	)

	OracleFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autotrader_oracle_failures_total",
			Help: "Oracle calls that degraded to a neutral opinion",
		},
		[]string{"provider"},
	)

	StopAdjustments = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autotrader_stop_adjustments_total",
			Help: "Protective stop maintenance actions",
		},
		[]string{"kind"},
	)

	PositionsClosed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autotrader_positions_closed_total",
			Help: "Closed trades by close reason",
		},
		[]string{"reason"},
	)

	EventsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "autotrader_events_dropped_total",
			Help: "Outbound events dropped because the queue was full or closed",
		},
	)

	WeightAdjustment = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "autotrader_weight_adjustment",
			Help: "Learned weight adjustment per strategy",
		},
		[]string{"strategy"},
	)
)

func init() {
	prometheus.MustRegister(
		Cycles,
		CycleDuration,
		Decisions,
		Orders,
		RiskRejections,
		OracleFailures,
		StopAdjustments,
		PositionsClosed,
		EventsDropped,
		WeightAdjustment,
	)
}

// Handler serves the default registry in the text exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}
