// Command datalogger runs the sink stage: it consumes processed frames and
// commits each one to a SQLite database.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/BrianCerberus/imageflow"
	"github.com/BrianCerberus/imageflow/store"
	_ "github.com/BrianCerberus/imageflow/transport/channel"
	_ "github.com/BrianCerberus/imageflow/transport/nats"
)

func main() {
	var (
		pubSubSystem   = flag.String("transport", "nats", "message transport: channel or nats")
		natsURL        = flag.String("nats-url", "", "NATS server URL")
		processedTopic = flag.String("processed-topic", "", "topic for processed frames")
		dbFile         = flag.String("db", "imageflow.db", "SQLite database file")
		metricsPort    = flag.Int("metrics-port", 0, "serve Prometheus metrics on this port (0 disables)")
	)
	flag.Parse()

	logger := imageflow.NewSlogServiceLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	cfg := &imageflow.Config{
		PubSubSystem:   *pubSubSystem,
		NATSURL:        *natsURL,
		ProcessedTopic: *processedTopic,
		SQLiteFile:     *dbFile,
		MetricsEnabled: *metricsPort > 0,
		MetricsPort:    *metricsPort,
	}
	if err := imageflow.ValidateConfig(cfg); err != nil {
		logger.Error("Invalid configuration", err, nil)
		os.Exit(1)
	}

	st, err := store.Open(cfg.SQLiteFile)
	if err != nil {
		logger.Error("Failed to open database", err, imageflow.LogFields{"path": cfg.SQLiteFile})
		os.Exit(1)
	}
	defer st.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tr, err := imageflow.BuildTransport(ctx, cfg, imageflow.NewWatermillAdapter(logger))
	if err != nil {
		logger.Error("Failed to build transport", err, imageflow.LogFields{"transport": cfg.PubSubSystem})
		os.Exit(1)
	}
	defer tr.Subscriber.Close()

	stage, err := imageflow.NewSinkStage(*cfg, logger, tr, st)
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
