// Command extractor runs the relay stage: it consumes raw frames, runs the
// feature detector over each one, and republishes the enriched result.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/BrianCerberus/imageflow"
	"github.com/BrianCerberus/imageflow/extract"
	_ "github.com/BrianCerberus/imageflow/transport/channel"
	_ "github.com/BrianCerberus/imageflow/transport/nats"
)

func main() {
	var (
		pubSubSystem   = flag.String("transport", "nats", "message transport: channel or nats")
		natsURL        = flag.String("nats-url", "", "NATS server URL")
		frameTopic     = flag.String("frame-topic", "", "topic for raw frames")
		processedTopic = flag.String("processed-topic", "", "topic for processed frames")
		gridStep       = flag.Int("grid-step", extract.DefaultGridStep, "detector cell size in pixels")
		metricsPort    = flag.Int("metrics-port", 0, "serve Prometheus metrics on this port (0 disables)")
	)
	flag.Parse()

	logger := imageflow.NewSlogServiceLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	cfg := &imageflow.Config{
		PubSubSystem:   *pubSubSystem,
		NATSURL:        *natsURL,
		FrameTopic:     *frameTopic,
		ProcessedTopic: *processedTopic,
		MetricsEnabled: *metricsPort > 0,
		MetricsPort:    *metricsPort,
	}
	if err := imageflow.ValidateConfig(cfg); err != nil {
		logger.Error("Invalid configuration", err, nil)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tr, err := imageflow.BuildTransport(ctx, cfg, imageflow.NewWatermillAdapter(logger))
	if err != nil {
		logger.Error("Failed to build transport", err, imageflow.LogFields{"transport": cfg.PubSubSystem})
		os.Exit(1)
	}
	defer tr.Publisher.Close()
	defer tr.Subscriber.Close()

	stage, err := imageflow.NewRelayStage(*cfg, logger, tr, extract.NewGrid(*gridStep))
	if err != nil {
		logger.Error("Failed to build stage", err, nil)
		os.Exit(1)
	}

	if cfg.MetricsEnabled {
		go watchMetrics(logger, stage.Metrics.Serve(cfg.MetricsPort))
	}

	if err := stage.Run(ctx); err != nil {
		logger.Error("Stage failed to start", err, nil)
		os.Exit(1)
	}
}

func watchMetrics(logger imageflow.ServiceLogger, errs <-chan error) {
	if err := <-errs; err != nil {
		logger.Error("Metrics server stopped", err, nil)
	}
}
