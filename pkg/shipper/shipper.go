// Package shipper drains the shared record queue into compressed,
// acknowledged batches on the ingestion stream.
package shipper

import (
	"context"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/kumarabd/gokit/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/edgefleet/logship/internal/metrics"
	"github.com/edgefleet/logship/pkg/logtypes"
	"github.com/edgefleet/logship/pkg/wire"
)

// Shipper is the single consumer of the shared queue. It buffers
// records and flushes on whichever fires first: the buffer reaching
// BatchSize or FlushInterval elapsing, so a slow trickle of logs is
// never held indefinitely. A failed batch is dropped and counted, never
// retried or spooled.
type Shipper struct {
	cfg     *Config
	agentID string
	queue   <-chan *logtypes.Record
	sender  Sender
	metric  *metrics.Handler
	log     *logger.Handler
	tracer  trace.Tracer

	encoder *zstd.Encoder
	batchID int64

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New creates a shipper draining queue through sender.
func New(cfg *Config, agentID string, queue <-chan *logtypes.Record, sender Sender, metric *metrics.Handler, log *logger.Handler) (*Shipper, error) {
	// Fixed moderate level: bounds CPU while keeping most of the ratio.
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, err
	}

	return &Shipper{
		cfg:     cfg,
		agentID: agentID,
		queue:   queue,
		sender:  sender,
		metric:  metric,
		log:     log,
		tracer:  otel.Tracer("logship/shipper"),
		encoder: encoder,
		stopCh:  make(chan struct{}),
	}, nil
}

// Start launches the consumer loop.
func (s *Shipper) Start() {
	s.wg.Add(1)
	go s.run()
	s.log.Info().Int("batch_size", s.cfg.BatchSize).Dur("flush_interval", s.cfg.FlushInterval).Msg("shipper started")
}

// Stop drains the loop, flushes the residual buffer best-effort and
// releases the sender.
func (s *Shipper) Stop() {
	close(s.stopCh)
	s.wg.Wait()
	if err := s.sender.Close(); err != nil {
		s.log.Warn().Err(err).Msg("sender close failed")
	}
	s.log.Info().Msg("shipper stopped")
}

func (s *Shipper) run() {
	defer s.wg.Done()

	buf := make([]*logtypes.Record, 0, s.cfg.BatchSize)
	ticker := time.NewTicker(s.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			s.flush(buf)
			return
		case rec := <-s.queue:
			buf = append(buf, rec)
			if len(buf) >= s.cfg.BatchSize {
				s.flush(buf)
				buf = buf[:0]
				ticker.Reset(s.cfg.FlushInterval)
			}
		case <-ticker.C:
			if len(buf) > 0 {
				s.flush(buf)
				buf = buf[:0]
			}
		}
	}
}

// flush serializes, compresses and transmits one batch, then records
// the outcome. Records are owned by the batch from here on; the buffer
// is the caller's to reset.
func (s *Shipper) flush(buf []*logtypes.Record) {
	if len(buf) == 0 {
		return
	}

	ctx, span := s.tracer.Start(context.Background(), "shipper.flush")
	defer span.End()

	entries := make([]*wire.LogEntry, 0, len(buf))
	for _, rec := range buf {
		entries = append(entries, &wire.LogEntry{
			TimestampNs: rec.TimestampNs,
			Level:       string(rec.Level),
			Message:     rec.Message,
			Source:      rec.Source,
			AgentId:     s.agentID,
			Fields:      rec.Fields,
		})
	}

	payload, err := wire.EncodeEntries(entries)
	if err != nil {
		s.metric.BatchFailed()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.log.Error().Err(err).Int("records", len(buf)).Msg("batch serialization failed, dropping batch")
		return
	}

	compressed := s.encoder.EncodeAll(payload, make([]byte, 0, len(payload)))

	s.batchID++
	batch := &wire.LogBatch{
		AgentId:           s.agentID,
		BatchId:           s.batchID,
		SendTimestampMs:   time.Now().UnixMilli(),
		Compression:       wire.CompressionZstd,
		CompressedPayload: compressed,
		OriginalSize:      int64(len(payload)),
	}

	span.SetAttributes(
		attribute.Int64("batch.id", batch.BatchId),
		attribute.Int("batch.records", len(buf)),
		attribute.Int("batch.original_bytes", len(payload)),
		attribute.Int("batch.compressed_bytes", len(compressed)),
	)

	if err := s.sender.SendBatch(ctx, batch); err != nil {
		s.metric.BatchFailed()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.log.Error().Err(err).Int64("batch_id", batch.BatchId).Msg("batch send failed, dropping batch")
		return
	}

	s.metric.BatchSent(len(buf), len(payload), len(compressed))
	s.log.Debug().
		Int64("batch_id", batch.BatchId).
		Int("records", len(buf)).
		Int("original_bytes", len(payload)).
		Int("compressed_bytes", len(compressed)).
		Msg("batch acknowledged")
}
