package specbind

import (
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors observed by every endpoint.
// A nil *Metrics observes nothing.
type Metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	problems *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg. Collectors
// that are already registered are reused, so several apps may share one
// registry.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "specbind_requests_total",
				Help: "Total requests served by operation routes.",
			},
			[]string{"backend", "operation", "method", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "specbind_request_duration_seconds",
				Help:    "Request duration in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"backend", "operation", "method"},
		),
		problems: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "specbind_problems_total",
				Help: "Problem responses produced by error normalization.",
			},
			[]string{"backend", "status"},
		),
	}

	var err error
	if m.requests, err = register(reg, m.requests); err != nil {
		return nil, err
	}
	if m.duration, err = register(reg, m.duration); err != nil {
		return nil, err
	}
	if m.problems, err = register(reg, m.problems); err != nil {
		return nil, err
	}
	return m, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (m *Metrics) observe(backend, operation, method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	code := "passthrough"
	if status != 0 {
		code = strconv.Itoa(status)
	}
	m.requests.WithLabelValues(backend, operation, method, code).Inc()
	m.duration.WithLabelValues(backend, operation, method).Observe(elapsed.Seconds())
}

func (m *Metrics) problem(backend string, status int) {
	if m == nil {
		return
	}
	m.problems.WithLabelValues(backend, strconv.Itoa(status)).Inc()
}
