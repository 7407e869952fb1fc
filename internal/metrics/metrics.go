package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"watertank/internal/tank"
)

const (
	namespace = "watertank"
	simSub    = "simulation"
	tcpSub    = "tcp"
)

var (
	ticksCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: simSub,
			Name:      "ticks_total",
			Help:      "Count of simulation ticks executed.",
		},
	)
	levelGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: simSub,
			Name:      "level_mm",
			Help:      "Water level of the tank after the last tick, in millimeters.",
		},
	)
	inflowGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: simSub,
			Name:      "inflow_lps",
			Help:      "Sampled inflow of the last tick, in liters per second.",
		},
	)
	outflowGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: simSub,
			Name:      "outflow_lps",
			Help:      "Commanded outflow applied in the last tick, in liters per second.",
		},
	)
	controlDroppedCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: simSub,
			Name:      "control_dropped_total",
			Help:      "Count of control commands dropped because the control queue was full.",
		},
	)

	requestsCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: tcpSub,
			Name:      "requests_total",
			Help:      "Count of request frames answered.",
		},
	)
	malformedCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: tcpSub,
			Name:      "malformed_frames_total",
			Help:      "Count of connections closed because of a malformed frame.",
		},
	)
	rateLimitedCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: tcpSub,
			Name:      "control_rate_limited_total",
			Help:      "Count of control commands not published because the connection exceeded its rate.",
		},
	)
	connectionsGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: tcpSub,
			Name:      "connections_active",
			Help:      "Number of open controller connections.",
		},
	)
)

var registerMetrics sync.Once

// Register all metrics with the default prometheus registry.
func Register() {
	registerMetrics.Do(func() {
		prometheus.MustRegister(
			ticksCounter,
			levelGauge,
			inflowGauge,
			outflowGauge,
			controlDroppedCounter,
			requestsCounter,
			malformedCounter,
			rateLimitedCounter,
			connectionsGauge,
		)
	})
}

// RecordTick records one completed tick and the resulting tank state.
func RecordTick(s tank.State) {
	ticksCounter.Inc()
	levelGauge.Set(s.Level)
	inflowGauge.Set(s.Inflow)
	outflowGauge.Set(s.Outflow)
}

// RecordControlDropped records commands lost to control queue overflow.
func RecordControlDropped(n uint64) {
	controlDroppedCounter.Add(float64(n))
}

func RecordRequest() {
	requestsCounter.Inc()
}

func RecordMalformedFrame() {
	malformedCounter.Inc()
}

func RecordRateLimited() {
	rateLimitedCounter.Inc()
}

func ConnectionOpened() {
	connectionsGauge.Inc()
}

func ConnectionClosed() {
	connectionsGauge.Dec()
}
