package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the daemon's Prometheus collectors. A nil *Metrics is safe
// to call; every method no-ops.
type Metrics struct {
	AudioChunks       *prometheus.CounterVec
	Segments          *prometheus.CounterVec
	CorrectionBatches *prometheus.CounterVec
	Reconnects        prometheus.Counter
	BackendFailures   *prometheus.CounterVec
	SessionStatus     *prometheus.GaugeVec
	LinkUptime        prometheus.Gauge
	SegmentLength     prometheus.Histogram
}

func New() *Metrics {
	return &Metrics{
		AudioChunks: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "liameet",
			Name:      "audio_chunks_total",
			Help:      "Audio chunks routed, by destination.",
		}, []string{"destination"}),
		Segments: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "liameet",
			Name:      "transcript_segments_total",
			Help:      "Transcript segments published, by kind.",
		}, []string{"kind"}),
		CorrectionBatches: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "liameet",
			Name:      "correction_batches_total",
			Help:      "Async correction batches, by outcome.",
		}, []string{"outcome"}),
		Reconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "liameet",
			Name:      "link_reconnects_total",
			Help:      "Realtime link reconnect attempts.",
		}),
		BackendFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "liameet",
			Name:      "backend_failures_total",
			Help:      "Transcription backend failures, by provider.",
		}, []string{"provider"}),
		SessionStatus: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "liameet",
			Name:      "session_status",
			Help:      "Current session status (1 for the active status, 0 otherwise).",
		}, []string{"status"}),
		LinkUptime: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "liameet",
			Name:      "link_session_seconds",
			Help:      "Seconds since the realtime link last connected.",
		}),
		SegmentLength: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: "liameet",
			Name:      "segment_length_chars",
			Help:      "Length of published transcript segments.",
			Buckets:   prometheus.ExponentialBuckets(4, 2, 8),
		}),
	}
}

func (m *Metrics) ChunkRouted(destination string) {
	if m == nil {
		return
	}
	m.AudioChunks.WithLabelValues(destination).Inc()
}

func (m *Metrics) SegmentPublished(kind string, length int) {
	if m == nil {
		return
	}
	m.Segments.WithLabelValues(kind).Inc()
	m.SegmentLength.Observe(float64(length))
}

func (m *Metrics) CorrectionBatch(outcome string) {
	if m == nil {
		return
	}
	m.CorrectionBatches.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ReconnectAttempt() {
	if m == nil {
		return
	}
	m.Reconnects.Inc()
}

func (m *Metrics) BackendFailure(provider string) {
	if m == nil {
		return
	}
	m.BackendFailures.WithLabelValues(provider).Inc()
}

func (m *Metrics) SetStatus(status string, all []string) {
	if m == nil {
		return
	}
	for _, s := range all {
		v := 0.0
		if s == status {
			v = 1.0
		}
		m.SessionStatus.WithLabelValues(s).Set(v)
	}
}
