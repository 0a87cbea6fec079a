// Package metrics exports request lifecycle and backend HTTP metrics to
// Prometheus.
package metrics

import (
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"campus-admin/internal/lifecycle"
)

const namespace = "campus_admin"

// Lifecycle records tracker transitions. It satisfies lifecycle.Recorder.
type Lifecycle struct {
	transitions *prometheus.CounterVec
	duration    *prometheus.HistogramVec
}

// NewLifecycle registers the lifecycle collectors on reg. Registering twice
// on the same registry reuses the existing collectors.
func NewLifecycle(reg prometheus.Registerer) (*Lifecycle, error) {
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "request",
		Name:      "transitions_total",
		Help:      "Request lifecycle transitions by operation, entity type and state.",
	}, []string{"op", "entity", "state"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "request",
		Name:      "duration_seconds",
		Help:      "Time from pending to settled.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"op", "entity", "state"})

	var err error
	if transitions, err = register(reg, transitions); err != nil {
		return nil, err
	}
	if duration, err = register(reg, duration); err != nil {
		return nil, err
	}
	return &Lifecycle{transitions: transitions, duration: duration}, nil
}

// Observe implements lifecycle.Recorder.
func (l *Lifecycle) Observe(op lifecycle.Kind, subject string, state lifecycle.State, elapsed time.Duration) {
	labels := prometheus.Labels{"op": string(op), "entity": subject, "state": state.String()}
	l.transitions.With(labels).Inc()
	if state == lifecycle.Fulfilled || state == lifecycle.Rejected {
		l.duration.With(labels).Observe(elapsed.Seconds())
	}
}

// HTTP records backend requests.
type HTTP struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

// NewHTTP registers the HTTP collectors on reg.
func NewHTTP(reg prometheus.Registerer) (*HTTP, error) {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by method, route and status code.",
	}, []string{"method", "route", "code"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by method and route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	var err error
	if requests, err = register(reg, requests); err != nil {
		return nil, err
	}
	if latency, err = register(reg, latency); err != nil {
		return nil, err
	}
	return &HTTP{requests: requests, latency: latency}, nil
}

// Observe records one completed request.
func (h *HTTP) Observe(method, route string, status int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	h.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	h.latency.WithLabelValues(method, route).Observe(elapsed.Seconds())
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
