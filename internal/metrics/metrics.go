// Package metrics exposes Prometheus counters for review activity.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "dupview"

// Collector holds the process metrics on a private registry. All methods are
// safe to call on a nil *Collector.
type Collector struct {
	registry *prometheus.Registry

	PagesServed    prometheus.Counter
	PairsDelivered prometheus.Counter
	PairsSkipped   prometheus.Counter
	Deletions      *prometheus.CounterVec
	Scans          prometheus.Counter
	ScanDuration   prometheus.Histogram
	FilesScanned   prometheus.Gauge
	CandidatePairs prometheus.Gauge
}

// New creates a Collector with its own registry.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		PagesServed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_served_total",
			Help:      "Pair pages served.",
		}),
		PairsDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pairs_delivered_total",
			Help:      "Candidate pairs delivered to clients.",
		}),
		PairsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pairs_skipped_total",
			Help:      "Candidate pairs skipped because a member was removed.",
		}),
		Deletions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deletions_total",
			Help:      "File deletion attempts by result.",
		}, []string{"result"}),
		Scans: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scans_total",
			Help:      "Folder scans performed.",
		}),
		ScanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scan_duration_seconds",
			Help:      "Time spent scanning and grouping a folder.",
			Buckets:   prometheus.DefBuckets,
		}),
		FilesScanned: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "session_files",
			Help:      "Files in the active session's catalog.",
		}),
		CandidatePairs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "session_candidate_pairs",
			Help:      "Candidate pairs in the active session.",
		}),
	}
	c.registry.MustRegister(
		c.PagesServed, c.PairsDelivered, c.PairsSkipped, c.Deletions,
		c.Scans, c.ScanDuration, c.FilesScanned, c.CandidatePairs,
	)
	return c
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ObservePage records one served page.
func (c *Collector) ObservePage(delivered, skipped int) {
	if c == nil {
		return
	}
	c.PagesServed.Inc()
	c.PairsDelivered.Add(float64(delivered))
	c.PairsSkipped.Add(float64(skipped))
}

// ObserveDeletion records a deletion outcome ("ok", "not_found", "io_error").
func (c *Collector) ObserveDeletion(result string) {
	if c == nil {
		return
	}
	c.Deletions.WithLabelValues(result).Inc()
}

// ObserveScan records a completed scan that became the active session.
func (c *Collector) ObserveScan(d time.Duration, files, pairs int) {
	if c == nil {
		return
	}
	c.Scans.Inc()
	c.ScanDuration.Observe(d.Seconds())
	c.FilesScanned.Set(float64(files))
	c.CandidatePairs.Set(float64(pairs))
}
