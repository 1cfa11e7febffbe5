package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/talgya/worldsim/internal/engine"
)

func TestEmitCountsOutcomes(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.Emit(engine.Signal{ID: engine.SignalTradeSuccess, Need: "thirst", Resource: "water", Amount: 1.5})
	m.Emit(engine.Signal{ID: engine.SignalTradeSuccess, Need: "thirst", Resource: "water", Amount: 0.5})
	m.Emit(engine.Signal{ID: engine.SignalTradeFail, Need: "thirst", Reason: engine.ReasonNoPartner})
	m.Emit(engine.Signal{ID: engine.SignalTradeFail, Need: "hunger", Reason: engine.ReasonQueueFull})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Trades.WithLabelValues("thirst", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Trades.WithLabelValues("thirst", "fail")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Failures.WithLabelValues("queue_full")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Moved.WithLabelValues("water")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.TransferSize))
}

func TestObserveSetsGauges(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.Observe(42, engine.TradeStats{Stages: map[string]int{"queued": 3}})

	assert.Equal(t, 42.0, testutil.ToFloat64(m.Tick))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.Requests.WithLabelValues("queued")))
	assert.Zero(t, testutil.ToFloat64(m.Requests.WithLabelValues("traveling")))
}
