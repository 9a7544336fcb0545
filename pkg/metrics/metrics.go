// Package metrics exposes Prometheus instrumentation for the translation
// layer: how many exchanges were translated, which way, and how they ended.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels recorded on the translations counter.
const (
	OutcomeOK          = "ok"
	OutcomeDecodeError = "decode_error"
	OutcomeEncodeError = "encode_error"
	OutcomeNotFound    = "not_found"
	OutcomeAborted     = "aborted"
)

// Collector holds the translation-layer metrics. A nil *Collector is valid
// and records nothing, so call sites never need to guard.
type Collector struct {
	translations *prometheus.CounterVec
	duration     *prometheus.HistogramVec
}

// NewCollector creates and registers the collectors on reg.
func NewCollector(reg prometheus.Registerer, namespace string) *Collector {
	c := &Collector{
		translations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "translations_total",
			Help:      "Requests seen by the translation layer, by encoding and outcome.",
		}, []string{"encoding", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Request duration by encoding.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"encoding"}),
	}
	reg.MustRegister(c.translations, c.duration)
	return c
}

// Translation records one exchange.
func (c *Collector) Translation(encoding, outcome string) {
	if c == nil {
		return
	}
	c.translations.WithLabelValues(encoding, outcome).Inc()
}

// ObserveDuration records the wall time of one exchange.
func (c *Collector) ObserveDuration(encoding string, d time.Duration) {
	if c == nil {
		return
	}
	c.duration.WithLabelValues(encoding).Observe(d.Seconds())
}

// Handler returns an HTTP handler serving the gathered metrics.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
