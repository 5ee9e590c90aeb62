// Package wire holds the agent's RPC contract: the message types and
// thin clients for the log ingestion stream and the config service.
// The message structs are hand-maintained mirrors of proto/logship.proto
// in the legacy struct-tag form and are marshaled through protoadapt, so
// they stay wire-compatible with servers built from the same contract.
package wire

import (
	"bufio"
	"bytes"
	"errors"
	"io"

	"google.golang.org/protobuf/encoding/protodelim"
	"google.golang.org/protobuf/encoding/prototext"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/protoadapt"
)

// CompressionType identifies the codec applied to a batch payload.
type CompressionType int32

const (
	CompressionNone CompressionType = 0
	CompressionZstd CompressionType = 1
)

func (c CompressionType) String() string {
	switch c {
	case CompressionNone:
		return "NONE"
	case CompressionZstd:
		return "ZSTD"
	default:
		return "UNKNOWN"
	}
}

// AckStatus is the receiver's verdict on one batch.
type AckStatus int32

const (
	AckSuccess AckStatus = 0
	AckFailure AckStatus = 1
)

func (a AckStatus) String() string {
	switch a {
	case AckSuccess:
		return "SUCCESS"
	case AckFailure:
		return "FAILURE"
	default:
		return "UNKNOWN"
	}
}

// LogEntry is one normalized log record on the wire.
type LogEntry struct {
	TimestampNs int64             `protobuf:"varint,1,opt,name=timestamp_ns,json=timestampNs,proto3" json:"timestamp_ns,omitempty"`
	Level       string            `protobuf:"bytes,2,opt,name=level,proto3" json:"level,omitempty"`
	Message     string            `protobuf:"bytes,3,opt,name=message,proto3" json:"message,omitempty"`
	Source      string            `protobuf:"bytes,4,opt,name=source,proto3" json:"source,omitempty"`
	AgentId     string            `protobuf:"bytes,5,opt,name=agent_id,json=agentId,proto3" json:"agent_id,omitempty"`
	Fields      map[string]string `protobuf:"bytes,6,rep,name=fields,proto3" json:"fields,omitempty" protobuf_key:"bytes,1,opt,name=key" protobuf_val:"bytes,2,opt,name=value"`
}

func (m *LogEntry) Reset()         { *m = LogEntry{} }
func (m *LogEntry) String() string { return prototext.Format(protoadapt.MessageV2Of(m)) }
func (*LogEntry) ProtoMessage()    {}

// LogBatch is the unit of transmission: a compressed, immutable group of
// records with a per-agent monotonically increasing id.
type LogBatch struct {
	AgentId           string          `protobuf:"bytes,1,opt,name=agent_id,json=agentId,proto3" json:"agent_id,omitempty"`
	BatchId           int64           `protobuf:"varint,2,opt,name=batch_id,json=batchId,proto3" json:"batch_id,omitempty"`
	SendTimestampMs   int64           `protobuf:"varint,3,opt,name=send_timestamp_ms,json=sendTimestampMs,proto3" json:"send_timestamp_ms,omitempty"`
	Compression       CompressionType `protobuf:"varint,4,opt,name=compression,proto3,enum=logship.v1.CompressionType" json:"compression,omitempty"`
	CompressedPayload []byte          `protobuf:"bytes,5,opt,name=compressed_payload,json=compressedPayload,proto3" json:"compressed_payload,omitempty"`
	OriginalSize      int64           `protobuf:"varint,6,opt,name=original_size,json=originalSize,proto3" json:"original_size,omitempty"`
}

func (m *LogBatch) Reset()         { *m = LogBatch{} }
func (m *LogBatch) String() string { return prototext.Format(protoadapt.MessageV2Of(m)) }
func (*LogBatch) ProtoMessage()    {}

// BatchAck is the receiver's acknowledgment for one batch.
type BatchAck struct {
	BatchId int64     `protobuf:"varint,1,opt,name=batch_id,json=batchId,proto3" json:"batch_id,omitempty"`
	Status  AckStatus `protobuf:"varint,2,opt,name=status,proto3,enum=logship.v1.AckStatus" json:"status,omitempty"`
	Message string    `protobuf:"bytes,3,opt,name=message,proto3" json:"message,omitempty"`
}

func (m *BatchAck) Reset()         { *m = BatchAck{} }
func (m *BatchAck) String() string { return prototext.Format(protoadapt.MessageV2Of(m)) }
func (*BatchAck) ProtoMessage()    {}

// ConfigRequest asks the config service for the policy document when it
// differs from the version the agent already holds.
type ConfigRequest struct {
	AgentId              string `protobuf:"bytes,1,opt,name=agent_id,json=agentId,proto3" json:"agent_id,omitempty"`
	CurrentConfigVersion string `protobuf:"bytes,2,opt,name=current_config_version,json=currentConfigVersion,proto3" json:"current_config_version,omitempty"`
}

func (m *ConfigRequest) Reset()         { *m = ConfigRequest{} }
func (m *ConfigRequest) String() string { return prototext.Format(protoadapt.MessageV2Of(m)) }
func (*ConfigRequest) ProtoMessage()    {}

// ConfigResponse carries the serialized policy document. An unchanged
// policy is signaled with the caller's version and an empty payload.
type ConfigResponse struct {
	ConfigVersion string `protobuf:"bytes,1,opt,name=config_version,json=configVersion,proto3" json:"config_version,omitempty"`
	ConfigPayload []byte `protobuf:"bytes,2,opt,name=config_payload,json=configPayload,proto3" json:"config_payload,omitempty"`
}

func (m *ConfigResponse) Reset()         { *m = ConfigResponse{} }
func (m *ConfigResponse) String() string { return prototext.Format(protoadapt.MessageV2Of(m)) }
func (*ConfigResponse) ProtoMessage()    {}

// EncodeEntries serializes entries as a length-delimited protobuf
// stream. This is the batch payload before compression.
func EncodeEntries(entries []*LogEntry) ([]byte, error) {
	var buf bytes.Buffer
	for _, e := range entries {
		if _, err := protodelim.MarshalTo(&buf, protoadapt.MessageV2Of(e)); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// DecodeEntries reverses EncodeEntries. Receivers use the same framing;
// here it backs the payload round-trip tests.
func DecodeEntries(payload []byte) ([]*LogEntry, error) {
	r := bufio.NewReader(bytes.NewReader(payload))
	var entries []*LogEntry
	for {
		e := &LogEntry{}
		err := protodelim.UnmarshalFrom(r, protoadapt.MessageV2Of(e))
		if errors.Is(err, io.EOF) {
			return entries, nil
		}
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
}

// Marshal serializes any contract message to its binary form.
func Marshal(m protoadapt.MessageV1) ([]byte, error) {
	return proto.Marshal(protoadapt.MessageV2Of(m))
}
