package knowledge

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics instruments document ingestion.
type Metrics struct {
	documents  *prometheus.CounterVec
	chunks     prometheus.Counter
	duration   prometheus.Histogram
	queueDepth prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		documents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "academia",
			Subsystem: "knowledge",
			Name:      "documents_processed_total",
			Help:      "Documents processed by the ingestor, by resulting status.",
		}, []string{"status"}),
		chunks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "academia",
			Subsystem: "knowledge",
			Name:      "chunks_stored_total",
			Help:      "Chunks stored by the ingestor.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "academia",
			Subsystem: "knowledge",
			Name:      "processing_duration_seconds",
			Help:      "Time spent processing a document.",
			Buckets:   prometheus.ExponentialBuckets(.01, 2, 12),
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "academia",
			Subsystem: "knowledge",
			Name:      "queue_depth",
			Help:      "Documents waiting for a worker.",
		}),
	}
	reg.MustRegister(m.documents, m.chunks, m.duration, m.queueDepth)
	return m
}
