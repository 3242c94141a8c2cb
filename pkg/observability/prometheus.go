package observability

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "nixpkgs_vault"

// PrometheusHooks implements every hook interface by recording Prometheus
// metrics on its own registry. All methods are safe for concurrent use.
type PrometheusHooks struct {
	registry *prometheus.Registry

	// StageDuration measures each pipeline stage. Labels: stage, status.
	StageDuration *prometheus.HistogramVec
	// StageItems is the item count of the last run of each stage. Labels: stage.
	StageItems *prometheus.GaugeVec
	// Packages counts per-package outcomes. Labels: outcome.
	Packages *prometheus.CounterVec
	// CacheRequests counts cache lookups. Labels: key_type, result.
	CacheRequests *prometheus.CounterVec
	// CacheBytes counts bytes written to the cache. Labels: key_type.
	CacheBytes *prometheus.CounterVec
	// Writes counts sink writes. Labels: sink, status.
	Writes *prometheus.CounterVec
	// WriteBytes counts bytes written by sinks. Labels: sink.
	WriteBytes *prometheus.CounterVec
}

// NewPrometheusHooks creates the metrics and registers them on reg.
func NewPrometheusHooks(reg *prometheus.Registry) *PrometheusHooks {
	f := promauto.With(reg)
	return &PrometheusHooks{
		registry: reg,
		StageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "stage_duration_seconds",
			Help:      "Pipeline stage duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10), // 1ms to ~4min
		}, []string{"stage", "status"}),
		StageItems: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "stage_items",
			Help:      "Items processed by the last run of a stage",
		}, []string{"stage"}),
		Packages: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "packages_total",
			Help:      "Packages processed by outcome",
		}, []string{"outcome"}),
		CacheRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "cache_requests_total",
			Help:      "Cache lookups by key type and result",
		}, []string{"key_type", "result"}),
		CacheBytes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "cache_written_bytes_total",
			Help:      "Bytes written to the cache",
		}, []string{"key_type"}),
		Writes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "sink_writes_total",
			Help:      "Document writes by sink and status",
		}, []string{"sink", "status"}),
		WriteBytes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "sink_written_bytes_total",
			Help:      "Bytes written by sink",
		}, []string{"sink"}),
	}
}

// Registry returns the registry the metrics are registered on.
func (h *PrometheusHooks) Registry() *prometheus.Registry { return h.registry }

// WriteTextfile writes the current metrics in the node_exporter textfile
// format.
func (h *PrometheusHooks) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, h.registry)
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func (h *PrometheusHooks) OnStageStart(ctx context.Context, stage string, items int) {
	h.StageItems.WithLabelValues(stage).Set(float64(items))
}

func (h *PrometheusHooks) OnStageComplete(ctx context.Context, stage string, items int, d time.Duration, err error) {
	h.StageItems.WithLabelValues(stage).Set(float64(items))
	h.StageDuration.WithLabelValues(stage, status(err)).Observe(d.Seconds())
}

func (h *PrometheusHooks) OnPackage(ctx context.Context, outcome string) {
	h.Packages.WithLabelValues(outcome).Inc()
}

func (h *PrometheusHooks) OnCacheHit(ctx context.Context, keyType string) {
	h.CacheRequests.WithLabelValues(keyType, "hit").Inc()
}

func (h *PrometheusHooks) OnCacheMiss(ctx context.Context, keyType string) {
	h.CacheRequests.WithLabelValues(keyType, "miss").Inc()
}

func (h *PrometheusHooks) OnCacheSet(ctx context.Context, keyType string, size int) {
	h.CacheBytes.WithLabelValues(keyType).Add(float64(size))
}

func (h *PrometheusHooks) OnWrite(ctx context.Context, sink string, size int, d time.Duration, err error) {
	h.Writes.WithLabelValues(sink, status(err)).Inc()
	if err == nil {
		h.WriteBytes.WithLabelValues(sink).Add(float64(size))
	}
}

var (
	_ PipelineHooks = (*PrometheusHooks)(nil)
	_ CacheHooks    = (*PrometheusHooks)(nil)
	_ SinkHooks     = (*PrometheusHooks)(nil)
)
