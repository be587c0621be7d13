// Package perf tracks collector poll latencies and exposes both a
// Prometheus metrics surface and a lightweight in-process percentile
// snapshot backing the service's own /api/perf endpoint.
package perf

import (
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"gonum.org/v1/gonum/stat"
)

// maxSamplesPerSource bounds the ring buffer kept for each source's
// percentile snapshot so memory stays flat regardless of uptime.
const maxSamplesPerSource = 1000

// Recorder accumulates per-source poll-latency samples for percentile
// reporting and mirrors every sample into Prometheus gauges/counters.
type Recorder struct {
	mu      sync.Mutex
	samples map[string][]float64 // source -> latency seconds, ring buffer
	cursor  map[string]int

	pollLatency *prometheus.HistogramVec
	pollTotal   *prometheus.CounterVec
	pollErrors  *prometheus.CounterVec
	nodeCount   *prometheus.GaugeVec
	linkCount   prometheus.Gauge
}

// NewRecorder creates a Recorder and registers its Prometheus
// collectors against reg. Pass prometheus.DefaultRegisterer for the
// global registry.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		samples: make(map[string][]float64),
		cursor:  make(map[string]int),
		pollLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "meshforge_poll_latency_seconds",
			Help:    "Latency of a single collector poll, by source",
			Buckets: prometheus.DefBuckets,
		}, []string{"source"}),
		pollTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "meshforge_poll_total",
			Help: "Total number of collector polls, by source",
		}, []string{"source"}),
		pollErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "meshforge_poll_errors_total",
			Help: "Total number of failed collector polls, by source",
		}, []string{"source"}),
		nodeCount: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "meshforge_nodes",
			Help: "Current number of known nodes, by network",
		}, []string{"network"}),
		linkCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "meshforge_links",
			Help: "Current number of known topology links",
		}),
	}
	reg.MustRegister(r.pollLatency, r.pollTotal, r.pollErrors, r.nodeCount, r.linkCount)
	return r
}

// RecordPoll records a single poll's outcome and latency for source.
func (r *Recorder) RecordPoll(source string, latency time.Duration, err error) {
	r.pollTotal.WithLabelValues(source).Inc()
	r.pollLatency.WithLabelValues(source).Observe(latency.Seconds())
	if err != nil {
		r.pollErrors.WithLabelValues(source).Inc()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	buf, ok := r.samples[source]
	if !ok {
		buf = make([]float64, 0, maxSamplesPerSource)
	}
	if len(buf) < maxSamplesPerSource {
		buf = append(buf, latency.Seconds())
	} else {
		buf[r.cursor[source]] = latency.Seconds()
		r.cursor[source] = (r.cursor[source] + 1) % maxSamplesPerSource
	}
	r.samples[source] = buf
}

// SetNodeCount updates the current node gauge for network.
func (r *Recorder) SetNodeCount(network string, count int) {
	r.nodeCount.WithLabelValues(network).Set(float64(count))
}

// SetLinkCount updates the current link-count gauge.
func (r *Recorder) SetLinkCount(count int) {
	r.linkCount.Set(float64(count))
}

// Snapshot is a percentile summary of a source's recent poll latencies.
type Snapshot struct {
	Source string  `json:"source"`
	Count  int     `json:"count"`
	P50    float64 `json:"p50_seconds"`
	P90    float64 `json:"p90_seconds"`
	P99    float64 `json:"p99_seconds"`
	Mean   float64 `json:"mean_seconds"`
}

// Snapshots computes a percentile Snapshot for every source with at
// least one recorded sample.
func (r *Recorder) Snapshots() []Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Snapshot, 0, len(r.samples))
	for source, buf := range r.samples {
		if len(buf) == 0 {
			continue
		}
		sorted := append([]float64(nil), buf...)
		sort.Float64s(sorted)
		out = append(out, Snapshot{
			Source: source,
			Count:  len(sorted),
			P50:    stat.Quantile(0.50, stat.Empirical, sorted, nil),
			P90:    stat.Quantile(0.90, stat.Empirical, sorted, nil),
			P99:    stat.Quantile(0.99, stat.Empirical, sorted, nil),
			Mean:   stat.Mean(sorted, nil),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Source < out[j].Source })
	return out
}
