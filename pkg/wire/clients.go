package wire

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const (
	streamLogsMethod = "/logship.v1.LogIngestion/StreamLogs"
	getConfigMethod  = "/logship.v1.ConfigService/GetConfig"
)

var streamLogsDesc = &grpc.StreamDesc{
	StreamName:    "StreamLogs",
	ServerStreams: true,
	ClientStreams: true,
}

// IngestionClient opens StreamLogs calls against the ingestion service.
type IngestionClient struct {
	conn *grpc.ClientConn
}

// NewIngestionClient creates a client for the ingestion endpoint. The
// connection is lazy; an invalid target is a construction error.
func NewIngestionClient(addr string) (*IngestionClient, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ingestion service at %s: %w", addr, err)
	}
	return &IngestionClient{conn: conn}, nil
}

// StreamLogs opens a bidirectional batch stream.
func (c *IngestionClient) StreamLogs(ctx context.Context, opts ...grpc.CallOption) (*StreamLogsCall, error) {
	stream, err := c.conn.NewStream(ctx, streamLogsDesc, streamLogsMethod, opts...)
	if err != nil {
		return nil, err
	}
	return &StreamLogsCall{ClientStream: stream}, nil
}

// Close tears down the underlying connection.
func (c *IngestionClient) Close() error {
	return c.conn.Close()
}

// StreamLogsCall is one open StreamLogs invocation.
type StreamLogsCall struct {
	grpc.ClientStream
}

// Send transmits one batch.
func (x *StreamLogsCall) Send(batch *LogBatch) error {
	return x.ClientStream.SendMsg(batch)
}

// Recv blocks for the next acknowledgment.
func (x *StreamLogsCall) Recv() (*BatchAck, error) {
	ack := &BatchAck{}
	if err := x.ClientStream.RecvMsg(ack); err != nil {
		return nil, err
	}
	return ack, nil
}

// ConfigClient fetches policy documents from the config service.
type ConfigClient struct {
	conn *grpc.ClientConn
}

// NewConfigClient creates a client for the config endpoint.
func NewConfigClient(addr string) (*ConfigClient, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to config service at %s: %w", addr, err)
	}
	return &ConfigClient{conn: conn}, nil
}

// GetConfig performs the version-gated policy fetch.
func (c *ConfigClient) GetConfig(ctx context.Context, req *ConfigRequest, opts ...grpc.CallOption) (*ConfigResponse, error) {
	resp := &ConfigResponse{}
	if err := c.conn.Invoke(ctx, getConfigMethod, req, resp, opts...); err != nil {
		return nil, err
	}
	return resp, nil
}

// Fetch adapts GetConfig to the policy poller's Fetcher contract.
func (c *ConfigClient) Fetch(ctx context.Context, agentID, currentVersion string) (string, []byte, error) {
	resp, err := c.GetConfig(ctx, &ConfigRequest{
		AgentId:              agentID,
		CurrentConfigVersion: currentVersion,
	})
	if err != nil {
		return "", nil, err
	}
	return resp.ConfigVersion, resp.ConfigPayload, nil
}

// Close tears down the underlying connection.
func (c *ConfigClient) Close() error {
	return c.conn.Close()
}
