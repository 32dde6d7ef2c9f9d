// Package metrics exposes Prometheus instruments for the HTTP surface and
// the workout engine.
package metrics

import (
	"strconv"
	"time"

	"github.com/meltforce/liftlog/internal/workout"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Manager struct {
	// counters
	CounterRequests    *prometheus.CounterVec
	CounterOps         *prometheus.CounterVec
	CounterRateLimited prometheus.Counter
	CounterPanics      prometheus.Counter

	// gauges
	GaugeRequests prometheus.Gauge

	// histograms
	HistRequestDuration prometheus.Histogram
	HistOpDuration      *prometheus.HistogramVec
}

var _ workout.Recorder = (*Manager)(nil)

func NewTestManager() *Manager {
	return NewManager("liftlog", "test_server", prometheus.NewRegistry())
}

func NewTestManagerAndRegistry() (*Manager, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	return NewManager("liftlog", "test_server", reg), reg
}

func NewManager(namespace, subsystem string, reg prometheus.Registerer) *Manager {
	factory := promauto.With(reg)

	counterRequests := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "request",
		Help:      "The total number of incoming requests",
	}, []string{"method", "status"})
	counterOps := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "workout_ops",
		Help:      "The total number of workout engine operations by outcome",
	}, []string{"op", "kind"})
	counterRateLimited := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "rate_limited",
		Help:      "The total number of requests rejected by the rate limiter",
	})

	counterPanics := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "handle_request_panic",
		Help:      "The total number of panics recovered while handling requests",
	})

	gaugeRequests := factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "current_requests",
		Help:      "Current number of requests served",
	})

	histReqDuration := factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Buckets: []float64{
				0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025,
				0.05, 0.1, 0.25, 0.5, 1, 2.5, 10,
			},
			Name: "request_duration_seconds",
			Help: "Total duration of requests in seconds",
		},
	)
	histOpDuration := factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Buckets: []float64{
				0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025,
				0.05, 0.1, 0.25, 0.5, 1,
			},
			Name: "workout_op_duration_seconds",
			Help: "Duration of workout engine operations in seconds",
		},
		[]string{"op"},
	)

	return &Manager{
		CounterRequests:     counterRequests,
		CounterOps:          counterOps,
		CounterRateLimited:  counterRateLimited,
		CounterPanics:       counterPanics,
		GaugeRequests:       gaugeRequests,
		HistRequestDuration: histReqDuration,
		HistOpDuration:      histOpDuration,
	}
}

// RecordOp counts one engine operation under its error kind.
func (m *Manager) RecordOp(op string, d time.Duration, err error) {
	m.CounterOps.WithLabelValues(op, workout.Kind(err)).Inc()
	m.HistOpDuration.WithLabelValues(op).Observe(d.Seconds())
}

// RecordRequest counts one served HTTP request.
func (m *Manager) RecordRequest(method string, status int, d time.Duration) {
	m.CounterRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.HistRequestDuration.Observe(d.Seconds())
}
