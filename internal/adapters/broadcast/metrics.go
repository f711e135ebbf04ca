package broadcast

import "github.com/prometheus/client_golang/prometheus"

const (
	dropHubFull    = "hub_full"
	dropSlowClient = "slow_client"
)

// Metrics tracks the websocket fan-out. A nil *Metrics records nothing.
type Metrics struct {
	clients  prometheus.Gauge
	messages prometheus.Counter
	drops    *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return nil
	}

	m := &Metrics{
		clients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "mindstream",
			Subsystem: "broadcast",
			Name:      "clients",
			Help:      "Connected websocket clients",
		}),
		messages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mindstream",
			Subsystem: "broadcast",
			Name:      "messages_total",
			Help:      "Records queued for fan-out",
		}),
		drops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mindstream",
			Subsystem: "broadcast",
			Name:      "dropped_total",
			Help:      "Records or clients dropped by the hub",
		}, []string{"reason"}),
	}
	reg.MustRegister(m.clients, m.messages, m.drops)

	return m
}

func (m *Metrics) setClients(n int) {
	if m == nil {
		return
	}
	m.clients.Set(float64(n))
}

func (m *Metrics) sent() {
	if m == nil {
		return
	}
	m.messages.Inc()
}

func (m *Metrics) dropped(reason string) {
	if m == nil {
		return
	}
	m.drops.WithLabelValues(reason).Inc()
}
