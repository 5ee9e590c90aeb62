package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kumarabd/gokit/logger"

	"github.com/edgefleet/logship/internal/config"
	"github.com/edgefleet/logship/internal/metrics"
	"github.com/edgefleet/logship/pkg/logtypes"
	"github.com/edgefleet/logship/pkg/policy"
	"github.com/edgefleet/logship/pkg/server"
	"github.com/edgefleet/logship/pkg/shipper"
	"github.com/edgefleet/logship/pkg/tailer"
	"github.com/edgefleet/logship/pkg/wire"
)

// main is the entry point of the application
func main() {
	// Initialize a new logger with the application name and syslog format
	log, err := logger.New(config.ApplicationName, logger.Options{
		Format: logger.SyslogLogFormat,
	})
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	// Initialize a new configuration handler
	configHandler, err := config.New()
	if err != nil {
		log.Error().Err(err).Msg("")
		os.Exit(1)
	}

	// Initialize a new metrics handler for this agent
	metricsHandler, err := metrics.New(configHandler.Agent.ID, nil)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	// Sampling policy: start on built-in defaults, then try the config
	// service once before any log is read so sampling is correct from
	// the first record. A failed fetch is not fatal.
	store := policy.NewStore()
	sampler := policy.NewSampler(store, nil)

	configClient, err := wire.NewConfigClient(configHandler.Poll.Addr)
	if err != nil {
		log.Error().Err(err).Msg("config client initialization failed")
		os.Exit(1)
	}
	poller := policy.NewPoller(configHandler.Poll, configHandler.Agent.ID, configClient, store, log)
	if err := poller.FetchOnce(context.Background()); err != nil {
		log.Warn().Err(err).Msg("initial policy fetch failed, using built-in defaults")
	}
	poller.Start()
	log.Info().Str("config_version", store.Version()).Msg("policy poller started")

	// Shared record queue between the tailer and the shipper
	queue := make(chan *logtypes.Record, configHandler.Tail.QueueSize)

	var sender shipper.Sender
	switch configHandler.Ship.OutputType {
	case "stdout":
		sender = shipper.NewLogSender(log)
	default:
		sender, err = shipper.NewGRPCSender(configHandler.Ship.Ingest)
		if err != nil {
			log.Error().Err(err).Msg("sender initialization failed")
			os.Exit(1)
		}
	}

	shipHandler, err := shipper.New(configHandler.Ship, configHandler.Agent.ID, queue, sender, metricsHandler, log)
	if err != nil {
		log.Error().Err(err).Msg("shipper initialization failed")
		os.Exit(1)
	}
	shipHandler.Start()

	tailHandler := tailer.New(configHandler.Tail, configHandler.Agent.Files, sampler, queue, metricsHandler, log)
	tailHandler.Start()

	// Create server instance
	srv := server.NewHTTP(configHandler.Server, metricsHandler, store, func() int { return len(queue) }, log)
	go func() {
		if err := srv.Start(); err != nil {
			log.Error().Err(err).Msg("HTTP server failed")
		}
	}()
	log.Info().Str("agent_id", configHandler.Agent.ID).Msg("agent started")

	// Block until the orchestrator asks us to stop
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info().Msg("shutdown signal received")

	// Shutdown order matters: stop producing first, then flush what is
	// buffered, then tear down the periphery.
	tailHandler.Stop()
	shipHandler.Stop()
	poller.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		log.Error().Err(err).Msg("HTTP server stop failed")
	}
	if err := configClient.Close(); err != nil {
		log.Warn().Err(err).Msg("config client close failed")
	}
	log.Info().Msg("agent stopped")
}
