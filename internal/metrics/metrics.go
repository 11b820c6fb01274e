// Package metrics exposes switchboard's prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrSnakeDoc/switchboard/internal/domain"
	"github.com/MrSnakeDoc/switchboard/internal/limiter"
)

const namespace = "switchboard"

// Metrics owns a private registry so tests and multiple instances never
// collide on the global one.
type Metrics struct {
	registry *prometheus.Registry

	probesTotal     *prometheus.CounterVec
	probeLatency    prometheus.Histogram
	reconcilesTotal *prometheus.CounterVec
	droppedTotal    *prometheus.CounterVec
	uploadBps       prometheus.Gauge
	downloadBps     prometheus.Gauge
	memoryInUse     prometheus.Gauge
}

// New registers every collector. lim may be nil.
func New(lim *limiter.Limiter) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	m := &Metrics{
		registry: reg,
		probesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "probes_total",
			Help:      "Latency probes by outcome. Superseded results are counted as stale.",
		}, []string{"outcome"}),
		probeLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "probe_latency_milliseconds",
			Help:      "Latency reported by successful probes.",
			Buckets:   []float64{25, 50, 100, 200, 300, 500, 800, 1200, 2000, 3000},
		}),
		reconcilesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconciles_total",
			Help:      "Topology reconciliations by result.",
		}, []string{"result"}),
		droppedTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_messages_dropped_total",
			Help:      "Stream messages discarded at ingestion, by stream and reason.",
		}, []string{"stream", "reason"}),
		uploadBps: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "daemon_upload_bytes_per_second",
			Help:      "Latest upload rate reported by the daemon.",
		}),
		downloadBps: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "daemon_download_bytes_per_second",
			Help:      "Latest download rate reported by the daemon.",
		}),
		memoryInUse: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "daemon_memory_inuse_bytes",
			Help:      "Latest memory usage reported by the daemon.",
		}),
	}

	if lim != nil {
		f.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "probe_limiter_active",
			Help:      "Probes currently running.",
		}, func() float64 { return float64(lim.Active()) })
		f.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "probe_limiter_queued",
			Help:      "Probes waiting for a limiter slot.",
		}, func() float64 { return float64(lim.Queued()) })
	}
	return m
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveProbe counts a finished probe.
func (m *Metrics) ObserveProbe(res domain.ProbeResult) {
	if res.Stale {
		m.probesTotal.WithLabelValues("stale").Inc()
		return
	}
	m.probesTotal.WithLabelValues(string(res.Outcome)).Inc()
	if res.Outcome == domain.OutcomeSuccess {
		m.probeLatency.Observe(float64(res.LatencyMs))
	}
}

// ObserveReconcile counts a reconciliation attempt.
func (m *Metrics) ObserveReconcile(err error) {
	if err != nil {
		m.reconcilesTotal.WithLabelValues("error").Inc()
		return
	}
	m.reconcilesTotal.WithLabelValues("ok").Inc()
}

// ObserveDrop counts a discarded stream message.
func (m *Metrics) ObserveDrop(stream, reason string) {
	m.droppedTotal.WithLabelValues(stream, reason).Inc()
}

func (m *Metrics) ObserveTraffic(s domain.TrafficSample) {
	m.uploadBps.Set(float64(s.UploadBps))
	m.downloadBps.Set(float64(s.DownloadBps))
}

func (m *Metrics) ObserveMemory(s domain.MemorySample) {
	m.memoryInUse.Set(float64(s.InUseBytes))
}
