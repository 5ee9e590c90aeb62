package policy

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kumarabd/gokit/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgefleet/logship/pkg/logtypes"
)

type fakeFetcher struct {
	version string
	payload []byte
	err     error
	calls   int
}

func (f *fakeFetcher) Fetch(ctx context.Context, agentID, currentVersion string) (string, []byte, error) {
	f.calls++
	if f.err != nil {
		return "", nil, f.err
	}
	if f.version == currentVersion {
		return currentVersion, nil, nil
	}
	return f.version, f.payload, nil
}

func testLogger(t *testing.T) *logger.Handler {
	t.Helper()
	log, err := logger.New("policy-test", logger.Options{Format: logger.SyslogLogFormat})
	require.NoError(t, err)
	return log
}

func TestFetchOnceInstallsChangedPolicy(t *testing.T) {
	store := NewStore()
	fetcher := &fakeFetcher{version: "v2", payload: []byte(samplePayload)}
	poller := NewPoller(&PollerConfig{Interval: time.Minute, Timeout: time.Second}, "agent-1", fetcher, store, testLogger(t))

	require.NoError(t, poller.FetchOnce(context.Background()))
	assert.Equal(t, "v2", store.Version())
	assert.Equal(t, 0.05, store.Current().BaseRates[logtypes.LevelDebug])
}

func TestFetchOnceUnchangedVersionIsNoop(t *testing.T) {
	store := NewStore()
	store.Swap(&Policy{Version: "v2", BaseRates: map[logtypes.Level]float64{logtypes.LevelError: 1.0}})

	fetcher := &fakeFetcher{version: "v2"}
	poller := NewPoller(&PollerConfig{Interval: time.Minute, Timeout: time.Second}, "agent-1", fetcher, store, testLogger(t))

	require.NoError(t, poller.FetchOnce(context.Background()))
	assert.Equal(t, "v2", store.Version())
	assert.Equal(t, 1, fetcher.calls)
}

func TestFetchOnceMalformedPayloadKeepsPrevious(t *testing.T) {
	store := NewStore()
	prev := store.Current()

	fetcher := &fakeFetcher{version: "v3", payload: []byte("{broken: [")}
	poller := NewPoller(&PollerConfig{Interval: time.Minute, Timeout: time.Second}, "agent-1", fetcher, store, testLogger(t))

	assert.Error(t, poller.FetchOnce(context.Background()))
	assert.Same(t, prev, store.Current())
}

func TestFetchOnceRPCFailureKeepsPrevious(t *testing.T) {
	store := NewStore()
	prev := store.Current()

	fetcher := &fakeFetcher{err: errors.New("config service unreachable")}
	poller := NewPoller(&PollerConfig{Interval: time.Minute, Timeout: time.Second}, "agent-1", fetcher, store, testLogger(t))

	assert.Error(t, poller.FetchOnce(context.Background()))
	assert.Same(t, prev, store.Current())
}

func TestPollerLoopRefreshes(t *testing.T) {
	store := NewStore()
	fetcher := &fakeFetcher{version: "v9", payload: []byte(samplePayload)}
	poller := NewPoller(&PollerConfig{Interval: 10 * time.Millisecond, Timeout: time.Second}, "agent-1", fetcher, store, testLogger(t))

	poller.Start()
	defer poller.Stop()

	require.Eventually(t, func() bool {
		return store.Version() == "v9"
	}, time.Second, 5*time.Millisecond)
}
