// Package metrics exposes client-side Prometheus metrics: API calls made
// through the gateway and session state changes.
package metrics

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ems_client"

// AuthState is what the collector needs from the session store.
type AuthState interface {
	IsAuthenticated(ctx context.Context) bool
	Subscribe(fn func()) (unsubscribe func())
}

// Collector records gateway and session metrics on its own registry, so
// several collectors can coexist in one process (tests do).
type Collector struct {
	registry *prometheus.Registry

	requests      *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	invalidations prometheus.Counter
	authChanges   prometheus.Counter
	authenticated prometheus.Gauge
}

func New() *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "API requests sent through the gateway, by method and status code (0 = transport error).",
		}, []string{"method", "code"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "API request latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		invalidations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_invalidations_total",
			Help:      "Sessions ended because the API answered 401.",
		}),
		authChanges: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_changes_total",
			Help:      "Auth-changed notifications seen from the session store.",
		}),
		authenticated: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "authenticated",
			Help:      "1 while a session is signed in.",
		}),
	}
}

// Registry is the registry all collector metrics live in.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

func (c *Collector) ObserveRequest(method string, code int, elapsed time.Duration) {
	c.requests.WithLabelValues(method, strconv.Itoa(code)).Inc()
	c.duration.WithLabelValues(method).Observe(elapsed.Seconds())
}

func (c *Collector) ObserveInvalidation() {
	c.invalidations.Inc()
}

// Track counts auth-changed notifications from s and keeps the
// authenticated gauge current. Call the returned func to stop.
func (c *Collector) Track(ctx context.Context, s AuthState) (stop func()) {
	c.setAuthenticated(s.IsAuthenticated(ctx))
	return s.Subscribe(func() {
		c.authChanges.Inc()
		c.setAuthenticated(s.IsAuthenticated(ctx))
	})
}

func (c *Collector) setAuthenticated(ok bool) {
	if ok {
		c.authenticated.Set(1)
		return
	}
	c.authenticated.Set(0)
}
