package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics records pipeline activity for Prometheus scraping.
type Metrics struct {
	documentsProcessed *prometheus.CounterVec
	recordsUploaded    *prometheus.CounterVec
	sectionsPerDoc     prometheus.Histogram
	ingestDuration     *prometheus.HistogramVec
	searchQueries      *prometheus.CounterVec
	searchLatency      prometheus.Histogram
}

// MetricsConfig holds configuration for metrics recording.
type MetricsConfig struct {
	Namespace string
	Subsystem string
	Registry  prometheus.Registerer
}

// NewMetrics creates and registers the pipeline metrics.
func NewMetrics(config *MetricsConfig) *Metrics {
	if config == nil {
		config = &MetricsConfig{}
	}
	if config.Namespace == "" {
		config.Namespace = "indexpipe"
	}
	if config.Subsystem == "" {
		config.Subsystem = "pipeline"
	}
	if config.Registry == nil {
		config.Registry = prometheus.DefaultRegisterer
	}

	return &Metrics{
		documentsProcessed: promauto.With(config.Registry).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "documents_processed_total",
				Help:      "Total number of source documents processed",
			},
			[]string{"kind", "status"},
		),
		recordsUploaded: promauto.With(config.Registry).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "records_uploaded_total",
				Help:      "Total number of index records uploaded",
			},
			[]string{"index", "status"},
		),
		sectionsPerDoc: promauto.With(config.Registry).NewHistogram(
			prometheus.HistogramOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "sections_per_document",
				Help:      "Number of sections extracted per document",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 8), // 1 to 128
			},
		),
		ingestDuration: promauto.With(config.Registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "document_ingest_duration_seconds",
				Help:      "Time spent ingesting one document end to end",
				Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12), // 0.1s to ~409s
			},
			[]string{"status"},
		),
		searchQueries: promauto.With(config.Registry).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "search_queries_total",
				Help:      "Total number of search queries served",
			},
			[]string{"status"},
		),
		searchLatency: promauto.With(config.Registry).NewHistogram(
			prometheus.HistogramOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "search_duration_seconds",
				Help:      "Time spent answering search queries",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10), // 10ms to ~5s
			},
		),
	}
}

func (m *Metrics) recordDocument(kind, status string, sections int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.documentsProcessed.WithLabelValues(kind, status).Inc()
	if status == "success" {
		m.sectionsPerDoc.Observe(float64(sections))
	}
	m.ingestDuration.WithLabelValues(status).Observe(elapsed.Seconds())
}

func (m *Metrics) recordUpload(index string, succeeded, failed int) {
	if m == nil {
		return
	}
	m.recordsUploaded.WithLabelValues(index, "success").Add(float64(succeeded))
	m.recordsUploaded.WithLabelValues(index, "error").Add(float64(failed))
}

func (m *Metrics) recordSearch(status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.searchQueries.WithLabelValues(status).Inc()
	m.searchLatency.Observe(elapsed.Seconds())
}
