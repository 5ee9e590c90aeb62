package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Handler owns the agent's shared counters. Every component updates it
// through methods; nothing reaches process-wide mutable state. The
// snapshot fields sit behind their own lock, separate from the policy
// store's lock, so metrics reads never serialize behind policy swaps.
// Each update also feeds the prometheus instruments for scrape-based
// collection.
type Handler struct {
	agentID string
	start   time.Time

	mu              sync.Mutex
	logsProcessed   uint64
	logsSampled     uint64
	queueDropped    uint64
	batchesSent     uint64
	batchesFailed   uint64
	bytesOriginal   uint64
	bytesCompressed uint64
	lastBatch       time.Time
	healthy         bool

	LogsProcessedTotal   prometheus.Counter
	LogsSampledTotal     prometheus.Counter
	QueueDroppedTotal    prometheus.Counter
	BatchesSentTotal     prometheus.Counter
	BatchesFailedTotal   prometheus.Counter
	BytesOriginalTotal   prometheus.Counter
	BytesCompressedTotal prometheus.Counter
	BatchRecords         prometheus.Histogram
}

// Snapshot is a point-in-time copy of the counters plus the derived
// rates reported on the metrics surface.
type Snapshot struct {
	AgentID          string    `json:"agent_id"`
	UptimeSeconds    float64   `json:"uptime_seconds"`
	LogsProcessed    uint64    `json:"logs_processed"`
	LogsSampled      uint64    `json:"logs_sampled"`
	BatchesSent      uint64    `json:"batches_sent"`
	BatchesFailed    uint64    `json:"batches_failed"`
	BytesOriginal    uint64    `json:"bytes_original"`
	BytesCompressed  uint64    `json:"bytes_compressed"`
	CompressionRatio float64   `json:"compression_ratio"`
	LogsPerSecond    float64   `json:"logs_per_second"`
	Healthy          bool      `json:"-"`
	LastBatch        time.Time `json:"-"`
}

// New creates a metrics handler. A nil registerer falls back to the
// default prometheus registry; tests pass a fresh one.
func New(agentID string, reg prometheus.Registerer) (*Handler, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Handler{
		agentID: agentID,
		start:   time.Now(),
		LogsProcessedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "logship",
			Name:      "logs_processed_total",
			Help:      "The total number of log lines parsed into records",
		}),
		LogsSampledTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "logship",
			Name:      "logs_sampled_total",
			Help:      "The total number of records kept by sampling",
		}),
		QueueDroppedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "logship",
			Name:      "queue_dropped_total",
			Help:      "The total number of records dropped because the queue was full",
		}),
		BatchesSentTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "logship",
			Name:      "batches_sent_total",
			Help:      "The total number of batches acknowledged as successful",
		}),
		BatchesFailedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "logship",
			Name:      "batches_failed_total",
			Help:      "The total number of batches that failed to send",
		}),
		BytesOriginalTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "logship",
			Name:      "bytes_original_total",
			Help:      "Payload bytes before compression",
		}),
		BytesCompressedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "logship",
			Name:      "bytes_compressed_total",
			Help:      "Payload bytes after compression",
		}),
		BatchRecords: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "logship",
			Name:      "batch_records",
			Help:      "Records per flushed batch",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
	}, nil
}

// IncLogsProcessed counts one successfully parsed record.
func (h *Handler) IncLogsProcessed() {
	h.mu.Lock()
	h.logsProcessed++
	h.mu.Unlock()
	h.LogsProcessedTotal.Inc()
}

// IncLogsSampled counts one record kept by sampling.
func (h *Handler) IncLogsSampled() {
	h.mu.Lock()
	h.logsSampled++
	h.mu.Unlock()
	h.LogsSampledTotal.Inc()
}

// IncQueueDropped counts one record lost to a full queue.
func (h *Handler) IncQueueDropped() {
	h.mu.Lock()
	h.queueDropped++
	h.mu.Unlock()
	h.QueueDroppedTotal.Inc()
}

// BatchSent records one acknowledged batch. The healthy flag turns true
// only here, after the first successful send.
func (h *Handler) BatchSent(records int, originalBytes, compressedBytes int) {
	h.mu.Lock()
	h.batchesSent++
	h.bytesOriginal += uint64(originalBytes)
	h.bytesCompressed += uint64(compressedBytes)
	h.lastBatch = time.Now()
	h.healthy = true
	h.mu.Unlock()

	h.BatchesSentTotal.Inc()
	h.BytesOriginalTotal.Add(float64(originalBytes))
	h.BytesCompressedTotal.Add(float64(compressedBytes))
	h.BatchRecords.Observe(float64(records))
}

// BatchFailed records one dropped batch.
func (h *Handler) BatchFailed() {
	h.mu.Lock()
	h.batchesFailed++
	h.mu.Unlock()
	h.BatchesFailedTotal.Inc()
}

// Snapshot returns a consistent copy of the counters with derived
// compression ratio and throughput.
func (h *Handler) Snapshot() Snapshot {
	h.mu.Lock()
	snap := Snapshot{
		AgentID:         h.agentID,
		LogsProcessed:   h.logsProcessed,
		LogsSampled:     h.logsSampled,
		BatchesSent:     h.batchesSent,
		BatchesFailed:   h.batchesFailed,
		BytesOriginal:   h.bytesOriginal,
		BytesCompressed: h.bytesCompressed,
		Healthy:         h.healthy,
		LastBatch:       h.lastBatch,
	}
	h.mu.Unlock()

	uptime := time.Since(h.start).Seconds()
	snap.UptimeSeconds = uptime
	if snap.BytesCompressed > 0 {
		snap.CompressionRatio = float64(snap.BytesOriginal) / float64(snap.BytesCompressed)
	}
	if uptime > 0 {
		snap.LogsPerSecond = float64(snap.LogsProcessed) / uptime
	}
	return snap
}
