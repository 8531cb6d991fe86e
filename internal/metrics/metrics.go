// Package metrics exposes prometheus collectors for the detection pipeline
// and its HTTP surface. A nil *Collector is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "anomalyguard"

type Collector struct {
	registry *prometheus.Registry

	findingsProduced *prometheus.CounterVec
	findingsStored   *prometheus.CounterVec
	escalations      *prometheus.CounterVec
	enrichments      *prometheus.CounterVec
	combinedScore    prometheus.Histogram
	detectorDuration *prometheus.HistogramVec

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

func New() *Collector {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(registry)

	return &Collector{
		registry: registry,
		findingsProduced: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "detection", Name: "findings_produced_total",
			Help: "Findings emitted by each detector.",
		}, []string{"detector"}),
		findingsStored: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "detection", Name: "findings_stored_total",
			Help: "Finding persistence outcomes (created, already_recorded, orphaned).",
		}, []string{"outcome"}),
		escalations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "detection", Name: "risk_escalations_total",
			Help: "Transactions whose risk level was raised, by new level.",
		}, []string{"level"}),
		enrichments: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "enrichment", Name: "findings_total",
			Help: "Findings processed by the enrichment pass, by outcome (ok, skipped, error).",
		}, []string{"outcome"}),
		combinedScore: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "enrichment", Name: "combined_score",
			Help:    "Distribution of combined risk scores.",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1},
		}),
		detectorDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "detection", Name: "detector_duration_seconds",
			Help:    "Time taken by one detector over one batch.",
			Buckets: prometheus.DefBuckets,
		}, []string{"detector"}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "http", Name: "requests_total",
			Help: "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "http", Name: "request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

func (c *Collector) DetectorRan(detector string, findings int, took time.Duration) {
	if c == nil {
		return
	}
	c.findingsProduced.WithLabelValues(detector).Add(float64(findings))
	c.detectorDuration.WithLabelValues(detector).Observe(took.Seconds())
}

func (c *Collector) FindingStored(outcome string) {
	if c == nil {
		return
	}
	c.findingsStored.WithLabelValues(outcome).Inc()
}

func (c *Collector) Escalated(level string) {
	if c == nil {
		return
	}
	c.escalations.WithLabelValues(level).Inc()
}

// Enriched records one applied assessment. outcome is ok, skipped or error.
func (c *Collector) Enriched(outcome string, score float64) {
	if c == nil {
		return
	}
	c.enrichments.WithLabelValues(outcome).Inc()
	c.combinedScore.Observe(score)
}

func (c *Collector) HTTPRequest(method, route string, status int, took time.Duration) {
	if c == nil {
		return
	}
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpDuration.WithLabelValues(method, route).Observe(took.Seconds())
}

// Handler serves the collector's registry in the prometheus text format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Registry is exposed for tests.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }
