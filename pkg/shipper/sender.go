package shipper

import (
	"context"
	"fmt"

	"github.com/kumarabd/gokit/logger"

	"github.com/edgefleet/logship/pkg/wire"
)

// Sender delivers one batch and resolves its acknowledgment. A batch is
// terminal after SendBatch returns, success or not; there is no retry.
type Sender interface {
	SendBatch(ctx context.Context, batch *wire.LogBatch) error
	Close() error
}

// streamSender ships batches over the StreamLogs RPC: one batch per
// call invocation, exactly one ack awaited before the call is complete.
type streamSender struct {
	client *wire.IngestionClient
	cfg    *IngestConfig
}

// NewGRPCSender creates the production sender for the ingestion endpoint.
func NewGRPCSender(cfg *IngestConfig) (Sender, error) {
	client, err := wire.NewIngestionClient(cfg.Addr)
	if err != nil {
		return nil, err
	}
	return &streamSender{client: client, cfg: cfg}, nil
}

func (s *streamSender) SendBatch(ctx context.Context, batch *wire.LogBatch) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	call, err := s.client.StreamLogs(ctx)
	if err != nil {
		return fmt.Errorf("failed to open log stream: %w", err)
	}
	if err := call.Send(batch); err != nil {
		return fmt.Errorf("failed to send batch %d: %w", batch.BatchId, err)
	}
	if err := call.CloseSend(); err != nil {
		return fmt.Errorf("failed to close send side: %w", err)
	}

	ack, err := call.Recv()
	if err != nil {
		return fmt.Errorf("no ack for batch %d: %w", batch.BatchId, err)
	}
	if ack.Status != wire.AckSuccess {
		return fmt.Errorf("batch %d rejected: %s", batch.BatchId, ack.Message)
	}
	if ack.BatchId != batch.BatchId {
		return fmt.Errorf("ack batch id mismatch: sent %d, acked %d", batch.BatchId, ack.BatchId)
	}
	return nil
}

func (s *streamSender) Close() error {
	return s.client.Close()
}

// logSender emits batch summaries to the agent log instead of the RPC.
// Development and test wiring only.
type logSender struct {
	log *logger.Handler
}

// NewLogSender creates the stdout/dev sender.
func NewLogSender(log *logger.Handler) Sender {
	return &logSender{log: log}
}

func (s *logSender) SendBatch(ctx context.Context, batch *wire.LogBatch) error {
	s.log.Info().
		Int64("batch_id", batch.BatchId).
		Int64("original_bytes", batch.OriginalSize).
		Int("compressed_bytes", len(batch.CompressedPayload)).
		Str("compression", batch.Compression.String()).
		Msg("batch emitted to log sink")
	return nil
}

func (s *logSender) Close() error { return nil }
