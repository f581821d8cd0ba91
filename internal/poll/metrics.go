package poll

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the loop's Prometheus collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	ticks        *prometheus.CounterVec
	deliveries   *prometheus.CounterVec
	cursor       prometheus.Gauge
	lastSuccess  prometheus.Gauge
	tickDuration prometheus.Histogram
}

// NewMetrics builds the collectors and registers them with reg when reg is
// not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ticks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hwbot_ticks_total",
				Help: "Poll ticks by result",
			},
			[]string{"result"},
		),
		deliveries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hwbot_deliveries_total",
				Help: "Notification deliveries by result",
			},
			[]string{"result"},
		),
		cursor: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hwbot_cursor_seconds",
			Help: "Current from_date cursor (Unix seconds)",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hwbot_last_success_timestamp_seconds",
			Help: "Time of the last tick that advanced the cursor",
		}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "hwbot_tick_duration_seconds",
			Help:    "Duration of one poll tick",
			Buckets: prometheus.DefBuckets,
		}),
	}
	if reg != nil {
		reg.MustRegister(m.ticks, m.deliveries, m.cursor, m.lastSuccess, m.tickDuration)
	}
	return m
}

func (m *Metrics) observeTick(r TickReport) {
	if m == nil {
		return
	}
	m.ticks.WithLabelValues(string(r.Result)).Inc()
	m.tickDuration.Observe(r.Took.Seconds())
	m.cursor.Set(float64(r.Cursor))
	if r.Advanced {
		m.lastSuccess.Set(float64(r.At.Unix()))
	}
}

func (m *Metrics) observeDelivery(result string) {
	if m == nil {
		return
	}
	m.deliveries.WithLabelValues(result).Inc()
}
