package client

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "costmap_client"

type metrics struct {
	updates *prometheus.CounterVec
	state   prometheus.Gauge
}

// newMetrics creates the client's collectors and registers them on reg when it is non-nil. A
// collector that is already registered, for example by an earlier client, is reused.
func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		updates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "updates_total",
			Help:      "Inbound updates by kind and whether they were applied or rejected.",
		}, []string{"kind", "result"}),
		state: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "lifecycle_state",
			Help:      "0 uninitialized, 1 awaiting map, 2 awaiting pose, 3 ready.",
		}),
	}
	if reg == nil {
		return m, nil
	}

	var err error
	if m.updates, err = register(reg, m.updates); err != nil {
		return nil, err
	}
	if m.state, err = register(reg, m.state); err != nil {
		return nil, err
	}
	return m, nil
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, errors.Wrap(err, "unable to register costmap client metrics")
	}
	return c, nil
}

func (m *metrics) applied(kind string) {
	m.updates.WithLabelValues(kind, "applied").Inc()
}

func (m *metrics) rejected(kind string) {
	m.updates.WithLabelValues(kind, "rejected").Inc()
}

func (m *metrics) setState(s State) {
	m.state.Set(float64(s))
}
