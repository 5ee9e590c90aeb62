package shipper

import "time"

// Config contains configuration for the batch assembler/sender.
type Config struct {
	BatchSize     int           `json:"batch_size" yaml:"batch_size" default:"100"`          // Flush at this many records
	FlushInterval time.Duration `json:"flush_interval" yaml:"flush_interval" default:"10s"`  // Flush at least this often
	OutputType    string        `json:"output_type" yaml:"output_type" default:"grpc"`       // grpc, stdout
	Ingest        *IngestConfig `json:"ingest" yaml:"ingest"`
}

// IngestConfig contains configuration for the ingestion RPC endpoint.
type IngestConfig struct {
	Addr    string        `json:"addr" yaml:"addr" default:"ingestion-service:50051"` // Ingestion gRPC endpoint
	Timeout time.Duration `json:"timeout" yaml:"timeout" default:"30s"`               // Per-batch send+ack timeout
}
