package binding

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// metrics tracks binding calls and the handles a module keeps alive.
type metrics struct {
	calls *prometheus.CounterVec
	live  prometheus.Gauge
}

func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	calls := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ngraph_binding_calls_total",
			Help: "Total number of binding function calls",
		},
		[]string{"function", "result"},
	)
	live := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ngraph_binding_live_handles",
			Help: "Graph node handles currently held by binding modules",
		},
	)

	if err := register(reg, calls, &calls); err != nil {
		return nil, err
	}
	if err := register(reg, live, &live); err != nil {
		return nil, err
	}
	return &metrics{calls: calls, live: live}, nil
}

// register adds c to reg. When an identical collector is already registered,
// for instance by another module sharing reg, *existing is pointed at it.
func register[C prometheus.Collector](reg prometheus.Registerer, c C, existing *C) error {
	err := reg.Register(c)
	if err == nil {
		return nil
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if prev, ok := are.ExistingCollector.(C); ok {
			*existing = prev
			return nil
		}
	}
	return err
}

func (m *metrics) observe(function string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.calls.WithLabelValues(function, result).Inc()
}
