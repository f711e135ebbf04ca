package application

import "github.com/prometheus/client_golang/prometheus"

// StreamMetrics tracks the coordinator. A nil *StreamMetrics records
// nothing.
type StreamMetrics struct {
	recordsQueued prometheus.Counter
	connected     prometheus.Gauge
}

func NewStreamMetrics(reg prometheus.Registerer) *StreamMetrics {
	if reg == nil {
		return nil
	}

	m := &StreamMetrics{
		recordsQueued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mindstream",
			Subsystem: "stream",
			Name:      "records_queued_total",
			Help:      "Records handed to the consumer queue",
		}),
		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "mindstream",
			Subsystem: "stream",
			Name:      "connected",
			Help:      "1 once the headset produced a real reading",
		}),
	}
	reg.MustRegister(m.recordsQueued, m.connected)

	return m
}

func (m *StreamMetrics) queued() {
	if m == nil {
		return
	}
	m.recordsQueued.Inc()
}

func (m *StreamMetrics) markConnected() {
	if m == nil {
		return
	}
	m.connected.Set(1)
}
