package config

import (
	"fmt"
	"os"
	"time"

	config_pkg "github.com/kumarabd/gokit/config"

	"github.com/edgefleet/logship/pkg/policy"
	"github.com/edgefleet/logship/pkg/server"
	"github.com/edgefleet/logship/pkg/shipper"
	"github.com/edgefleet/logship/pkg/tailer"
)

var (
	ApplicationName    = "logship-agent"
	ApplicationVersion = "dev"
)

// AgentConfig identifies this agent and names the files it watches.
type AgentConfig struct {
	ID    string   `json:"id" yaml:"id"`       // Agent identity; AGENT_ID env or generated when empty
	Files []string `json:"files" yaml:"files"` // Watched log files
}

type Config struct {
	Agent  *AgentConfig         `json:"agent" yaml:"agent"`
	Server *server.Config       `json:"server,omitempty" yaml:"server,omitempty"`
	Tail   *tailer.Config       `json:"tail" yaml:"tail"`
	Ship   *shipper.Config      `json:"ship" yaml:"ship"`
	Poll   *policy.PollerConfig `json:"poll" yaml:"poll"`
}

// New creates a new config instance
func New() (*Config, error) {
	// Create default config object
	configObject := &Config{
		Agent: &AgentConfig{
			Files: []string{
				"/logs/application.log",
				"/logs/tomcat.log",
				"/logs/nginx.log",
			},
		},
		Server: &server.Config{
			Host:         "0.0.0.0",
			Port:         "8080",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
			StaleAfter:   120 * time.Second,
		},
		Tail: &tailer.Config{
			QueueSize:    1000,
			PollInterval: time.Second,
			ErrorWindow:  30 * time.Second,
		},
		Ship: &shipper.Config{
			BatchSize:     100,
			FlushInterval: 10 * time.Second,
			OutputType:    "grpc",
			Ingest: &shipper.IngestConfig{
				Addr:    "ingestion-service:50051",
				Timeout: 30 * time.Second,
			},
		},
		Poll: &policy.PollerConfig{
			Addr:     "config-service:8080",
			Interval: 60 * time.Second,
			Timeout:  5 * time.Second,
		},
	}

	// Load config using gokit config package
	finalConfig, err := config_pkg.New(configObject)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	cfg, ok := finalConfig.(*Config)
	if !ok {
		return nil, fmt.Errorf("config type assertion failed: expected *Config, got %T", finalConfig)
	}

	applyEnv(cfg)
	return cfg, nil
}

// applyEnv honors the container-style environment surface: identity and
// endpoint addresses may arrive from the supervisor instead of a file.
func applyEnv(cfg *Config) {
	if v := os.Getenv("AGENT_ID"); v != "" {
		cfg.Agent.ID = v
	}
	if cfg.Agent.ID == "" {
		cfg.Agent.ID = fmt.Sprintf("logship-%d", time.Now().Unix())
	}
	if v := os.Getenv("INGESTION_URL"); v != "" {
		cfg.Ship.Ingest.Addr = v
	}
	if v := os.Getenv("CONFIG_URL"); v != "" {
		cfg.Poll.Addr = v
	}
}
