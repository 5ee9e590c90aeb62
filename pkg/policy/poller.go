package policy

import (
	"context"
	"sync"
	"time"

	"github.com/kumarabd/gokit/logger"
)

// PollerConfig contains configuration for the config poller.
type PollerConfig struct {
	Addr     string        `json:"addr" yaml:"addr" default:"config-service:8080"` // Config service gRPC endpoint
	Interval time.Duration `json:"interval" yaml:"interval" default:"60s"`         // Poll interval
	Timeout  time.Duration `json:"timeout" yaml:"timeout" default:"5s"`            // Per-fetch RPC timeout
}

// Fetcher retrieves the remote policy document. An unchanged policy is
// reported by returning the caller's current version with an empty
// payload.
type Fetcher interface {
	Fetch(ctx context.Context, agentID, currentVersion string) (version string, payload []byte, err error)
}

// Poller periodically refreshes the policy store from the config
// service. Fetch or parse failures retain the previous snapshot; a
// malformed remote policy must never crash the agent or be partially
// applied.
type Poller struct {
	cfg     *PollerConfig
	agentID string
	fetcher Fetcher
	store   *Store
	log     *logger.Handler

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewPoller creates a poller writing into store.
func NewPoller(cfg *PollerConfig, agentID string, fetcher Fetcher, store *Store, log *logger.Handler) *Poller {
	return &Poller{
		cfg:     cfg,
		agentID: agentID,
		fetcher: fetcher,
		store:   store,
		log:     log,
		stopCh:  make(chan struct{}),
	}
}

// FetchOnce performs a single synchronous refresh. It is called at
// startup, before the send loop starts, so sampling behavior is correct
// from the first record; on failure the agent proceeds on the built-in
// defaults rather than blocking startup.
func (p *Poller) FetchOnce(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	version, payload, err := p.fetcher.Fetch(ctx, p.agentID, p.store.Version())
	if err != nil {
		return err
	}
	if version == p.store.Version() || len(payload) == 0 {
		return nil
	}

	pol, err := ParsePolicy(payload)
	if err != nil {
		return err
	}
	pol.Version = version
	p.store.Swap(pol)
	p.log.Info().Str("config_version", version).Msg("sampling policy installed")
	return nil
}

// Start launches the poll loop.
func (p *Poller) Start() {
	p.wg.Add(1)
	go p.run()
}

// Stop terminates the poll loop and waits for it to exit.
func (p *Poller) Stop() {
	close(p.stopCh)
	p.wg.Wait()
}

func (p *Poller) run() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			if err := p.FetchOnce(context.Background()); err != nil {
				p.log.Warn().Err(err).Msg("policy refresh failed, keeping previous policy")
			}
		}
	}
}
