// Package metrics exports trade signals as Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/talgya/worldsim/internal/engine"
)

// Metrics holds the Prometheus collectors fed by trade signals.
type Metrics struct {
	// Outcome metrics
	Trades   *prometheus.CounterVec
	Failures *prometheus.CounterVec

	// Volume metrics
	Moved        *prometheus.CounterVec
	TransferSize *prometheus.HistogramVec

	// Engine metrics
	Tick     prometheus.Gauge
	Requests *prometheus.GaugeVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Trades: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "worldsim_trades_total",
				Help: "Trade attempts by outcome",
			},
			[]string{"need", "outcome"}, // outcome: success, fail
		),
		Failures: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "worldsim_trade_failures_total",
				Help: "Failed trade attempts by reason",
			},
			[]string{"reason"},
		),
		Moved: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "worldsim_resource_moved_total",
				Help: "Resource units transferred by successful trades",
			},
			[]string{"resource"},
		),
		TransferSize: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "worldsim_transfer_units",
				Help:    "Units moved per successful trade",
				Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 16},
			},
			[]string{"resource"},
		),
		Tick: f.NewGauge(prometheus.GaugeOpts{
			Name: "worldsim_tick",
			Help: "Most recently processed tick",
		}),
		Requests: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "worldsim_requests",
				Help: "Live trade requests by stage",
			},
			[]string{"stage"},
		),
	}
}

// Emit implements engine.SignalSink.
func (m *Metrics) Emit(s engine.Signal) {
	need := string(s.Need)
	if s.Success() {
		m.Trades.WithLabelValues(need, "success").Inc()
		m.Moved.WithLabelValues(string(s.Resource)).Add(s.Amount)
		m.TransferSize.WithLabelValues(string(s.Resource)).Observe(s.Amount)
		return
	}
	m.Trades.WithLabelValues(need, "fail").Inc()
	m.Failures.WithLabelValues(string(s.Reason)).Inc()
}

// Observe records engine-level gauges from the latest stats.
func (m *Metrics) Observe(tick uint64, stats engine.TradeStats) {
	m.Tick.Set(float64(tick))
	for _, stage := range []string{"traveling", "queued", "resolving"} {
		m.Requests.WithLabelValues(stage).Set(float64(stats.Stages[stage]))
	}
}
