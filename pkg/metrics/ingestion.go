package metrics

import "github.com/prometheus/client_golang/prometheus"

// IngestionMetrics counts poll cycle outcomes per contest provider.
type IngestionMetrics struct {
	processed *prometheus.CounterVec
	skipped   *prometheus.CounterVec
	failed    *prometheus.CounterVec
}

// NewIngestionMetrics registers poll cycle counters on the provided registerer.
func NewIngestionMetrics(reg prometheus.Registerer) *IngestionMetrics {
	if reg == nil {
		return &IngestionMetrics{}
	}
	processed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ingestion_events_processed",
		Help: "Snapshots written to the event store.",
	}, []string{"provider"})
	skipped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ingestion_events_skipped",
		Help: "Snapshots skipped as duplicates or empty cycles.",
	}, []string{"provider"})
	failed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ingestion_events_failed",
		Help: "Poll cycles that ended in an error.",
	}, []string{"provider"})
	reg.MustRegister(processed, skipped, failed)
	return &IngestionMetrics{
		processed: processed,
		skipped:   skipped,
		failed:    failed,
	}
}

func (m *IngestionMetrics) AddProcessed(provider string, n int) {
	if m == nil || m.processed == nil || n <= 0 {
		return
	}
	m.processed.WithLabelValues(normalizeLabel(provider)).Add(float64(n))
}

func (m *IngestionMetrics) AddSkipped(provider string, n int) {
	if m == nil || m.skipped == nil || n <= 0 {
		return
	}
	m.skipped.WithLabelValues(normalizeLabel(provider)).Add(float64(n))
}

func (m *IngestionMetrics) IncFailed(provider string) {
	if m == nil || m.failed == nil {
		return
	}
	m.failed.WithLabelValues(normalizeLabel(provider)).Inc()
}
