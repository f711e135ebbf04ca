package thinkgear

import "github.com/prometheus/client_golang/prometheus"

const (
	dropDecode   = "decode"
	dropOversize = "oversize"
	dropSchema   = "schema"
)

// Metrics counts frame traffic. A nil *Metrics records nothing.
type Metrics struct {
	frames        prometheus.Counter
	framesDropped *prometheus.CounterVec
	bytes         prometheus.Counter
}

// NewMetrics registers the reader counters. It returns nil for a nil
// registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return nil
	}

	m := &Metrics{
		frames: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mindstream",
			Subsystem: "thinkgear",
			Name:      "frames_total",
			Help:      "Frames decoded into records",
		}),
		framesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mindstream",
			Subsystem: "thinkgear",
			Name:      "frames_dropped_total",
			Help:      "Frames discarded before reaching the stream",
		}, []string{"reason"}),
		bytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mindstream",
			Subsystem: "thinkgear",
			Name:      "bytes_total",
			Help:      "Bytes read from the bridge socket",
		}),
	}
	reg.MustRegister(m.frames, m.framesDropped, m.bytes)

	return m
}

func (m *Metrics) frame() {
	if m == nil {
		return
	}
	m.frames.Inc()
}

func (m *Metrics) dropped(reason string) {
	if m == nil {
		return
	}
	m.framesDropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) read(n int) {
	if m == nil || n == 0 {
		return
	}
	m.bytes.Add(float64(n))
}
