package shipper

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/kumarabd/gokit/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgefleet/logship/internal/metrics"
	"github.com/edgefleet/logship/pkg/logtypes"
	"github.com/edgefleet/logship/pkg/wire"
)

type captureSender struct {
	mu      sync.Mutex
	batches []*wire.LogBatch
	err     error
}

func (c *captureSender) SendBatch(ctx context.Context, batch *wire.LogBatch) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.batches = append(c.batches, batch)
	return nil
}

func (c *captureSender) Close() error { return nil }

func (c *captureSender) sent() []*wire.LogBatch {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*wire.LogBatch, len(c.batches))
	copy(out, c.batches)
	return out
}

func newTestShipper(t *testing.T, cfg *Config, sender Sender) (*Shipper, chan *logtypes.Record, *metrics.Handler) {
	t.Helper()

	log, err := logger.New("shipper-test", logger.Options{Format: logger.SyslogLogFormat})
	require.NoError(t, err)
	metric, err := metrics.New("agent-test", prometheus.NewRegistry())
	require.NoError(t, err)

	queue := make(chan *logtypes.Record, 1000)
	s, err := New(cfg, "agent-test", queue, sender, metric, log)
	require.NoError(t, err)
	return s, queue, metric
}

func record(i int) *logtypes.Record {
	return &logtypes.Record{
		TimestampNs: time.Date(2025, 1, 1, 0, 0, i, 0, time.UTC).UnixNano(),
		Level:       logtypes.LevelError,
		Message:     "boom",
		Source:      "app.log",
		Fields:      map[string]string{"service": "svc"},
	}
}

func TestFlushOnBatchSize(t *testing.T) {
	sender := &captureSender{}
	// Long interval: only the count threshold can trigger here.
	s, queue, metric := newTestShipper(t, &Config{BatchSize: 100, FlushInterval: time.Hour}, sender)
	s.Start()

	for i := 0; i < 100; i++ {
		queue <- record(i)
	}

	require.Eventually(t, func() bool {
		return len(sender.sent()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	batch := sender.sent()[0]
	assert.Equal(t, int64(1), batch.BatchId)
	assert.Equal(t, "agent-test", batch.AgentId)
	assert.Equal(t, wire.CompressionZstd, batch.Compression)

	entries, err := wire.DecodeEntries(decompress(t, batch))
	require.NoError(t, err)
	assert.Len(t, entries, 100)

	s.Stop()
	// No residual records: still exactly one batch after shutdown.
	assert.Len(t, sender.sent(), 1)
	assert.Equal(t, uint64(1), metric.Snapshot().BatchesSent)
}

func TestFlushOnInterval(t *testing.T) {
	sender := &captureSender{}
	s, queue, _ := newTestShipper(t, &Config{BatchSize: 100, FlushInterval: 50 * time.Millisecond}, sender)
	s.Start()
	defer s.Stop()

	for i := 0; i < 7; i++ {
		queue <- record(i)
	}

	require.Eventually(t, func() bool {
		return len(sender.sent()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	entries, err := wire.DecodeEntries(decompress(t, sender.sent()[0]))
	require.NoError(t, err)
	assert.Len(t, entries, 7)
}

func TestCompressionRoundTrip(t *testing.T) {
	sender := &captureSender{}
	s, queue, _ := newTestShipper(t, &Config{BatchSize: 3, FlushInterval: time.Hour}, sender)
	s.Start()
	defer s.Stop()

	for i := 0; i < 3; i++ {
		queue <- record(i)
	}
	require.Eventually(t, func() bool {
		return len(sender.sent()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	batch := sender.sent()[0]
	payload := decompress(t, batch)

	// Decompressed payload must be byte-identical to the declared
	// original size and decode to the records that went in.
	assert.Equal(t, batch.OriginalSize, int64(len(payload)))
	entries, err := wire.DecodeEntries(payload)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "boom", entries[0].Message)
	assert.Equal(t, "ERROR", entries[0].Level)
	assert.Equal(t, "svc", entries[0].Fields["service"])
	assert.Equal(t, "agent-test", entries[0].AgentId)
}

func TestBatchIDMonotonic(t *testing.T) {
	sender := &captureSender{}
	s, queue, _ := newTestShipper(t, &Config{BatchSize: 2, FlushInterval: time.Hour}, sender)
	s.Start()
	defer s.Stop()

	for i := 0; i < 6; i++ {
		queue <- record(i)
	}
	require.Eventually(t, func() bool {
		return len(sender.sent()) == 3
	}, 2*time.Second, 10*time.Millisecond)

	for i, batch := range sender.sent() {
		assert.Equal(t, int64(i+1), batch.BatchId)
	}
}

func TestSendFailureDropsBatch(t *testing.T) {
	sender := &captureSender{err: errors.New("ingestion unavailable")}
	s, queue, metric := newTestShipper(t, &Config{BatchSize: 1, FlushInterval: time.Hour}, sender)
	s.Start()

	queue <- record(0)
	require.Eventually(t, func() bool {
		return metric.Snapshot().BatchesFailed == 1
	}, 2*time.Second, 10*time.Millisecond)

	s.Stop()
	snap := metric.Snapshot()
	assert.Equal(t, uint64(0), snap.BatchesSent)
	assert.False(t, snap.Healthy)
	assert.Empty(t, sender.sent())
}

func TestStopFlushesResidualBuffer(t *testing.T) {
	sender := &captureSender{}
	s, queue, _ := newTestShipper(t, &Config{BatchSize: 100, FlushInterval: time.Hour}, sender)
	s.Start()

	queue <- record(0)
	queue <- record(1)

	// Give the loop a moment to buffer both records, then stop.
	require.Eventually(t, func() bool { return len(queue) == 0 }, 2*time.Second, 5*time.Millisecond)
	s.Stop()

	batches := sender.sent()
	require.Len(t, batches, 1)
	entries, err := wire.DecodeEntries(decompress(t, batches[0]))
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func decompress(t *testing.T, batch *wire.LogBatch) []byte {
	t.Helper()
	dec, err := zstd.NewReader(nil)
	require.NoError(t, err)
	defer dec.Close()
	payload, err := dec.DecodeAll(batch.CompressedPayload, nil)
	require.NoError(t, err)
	return payload
}
