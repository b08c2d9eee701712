// Package metrics holds the Prometheus collectors shared by the store and
// the HTTP API. A nil *Recorder is valid and records nothing, which keeps
// one-shot CLI commands free of registry setup.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "checklist"

type Recorder struct {
	mutations       *prometheus.CounterVec
	failures        *prometheus.CounterVec
	persistFailures prometheus.Counter
	persistLatency  prometheus.Histogram
	items           prometheus.Gauge
	requests        *prometheus.CounterVec
	throttled       prometheus.Counter
	eventsDropped   prometheus.Counter
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mutations_total",
			Help:      "Store operations that changed or re-announced the list, by action.",
		}, []string{"action"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operation_errors_total",
			Help:      "Store operations rejected before mutating, by operation and kind.",
		}, []string{"operation", "kind"}),
		persistFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persist_failures_total",
			Help:      "Snapshot writes that failed after an in-memory mutation.",
		}),
		persistLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "persist_duration_seconds",
			Help:      "Time spent writing the snapshot to the backend.",
			Buckets:   prometheus.DefBuckets,
		}),
		items: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "items",
			Help:      "Number of items currently in the list.",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_requests_total",
			Help:      "API requests by route and status code.",
		}, []string{"route", "code"}),
		throttled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_throttled_total",
			Help:      "API requests rejected by the rate limiter.",
		}),
		eventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Event deliveries skipped because a subscriber buffer was full.",
		}),
	}
	for _, c := range []prometheus.Collector{
		r.mutations, r.failures, r.persistFailures, r.persistLatency, r.items, r.requests, r.throttled, r.eventsDropped,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Recorder) Mutation(action string, items int) {
	if r == nil {
		return
	}
	r.mutations.WithLabelValues(action).Inc()
	r.items.Set(float64(items))
}

func (r *Recorder) OperationError(op, kind string) {
	if r == nil {
		return
	}
	r.failures.WithLabelValues(op, kind).Inc()
}

func (r *Recorder) Persisted(started time.Time, err error) {
	if r == nil {
		return
	}
	r.persistLatency.Observe(time.Since(started).Seconds())
	if err != nil {
		r.persistFailures.Inc()
	}
}

func (r *Recorder) Loaded(items int) {
	if r == nil {
		return
	}
	r.items.Set(float64(items))
}

func (r *Recorder) Request(route string, code int) {
	if r == nil {
		return
	}
	r.requests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}

func (r *Recorder) Throttled() {
	if r == nil {
		return
	}
	r.throttled.Inc()
}

func (r *Recorder) EventsDropped(n uint64) {
	if r == nil || n == 0 {
		return
	}
	r.eventsDropped.Add(float64(n))
}
