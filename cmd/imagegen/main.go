// Command imagegen runs the source stage: it synthesizes camera frames and
// publishes them on the frame topic at a fixed interval.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BrianCerberus/imageflow"
	"github.com/BrianCerberus/imageflow/source"
	_ "github.com/BrianCerberus/imageflow/transport/channel"
	_ "github.com/BrianCerberus/imageflow/transport/nats"
	"github.com/BrianCerberus/imageflow/wire"
)

func main() {
	var (
		pubSubSystem = flag.String("transport", "nats", "message transport: channel or nats")
		natsURL      = flag.String("nats-url", "", "NATS server URL")
		frameTopic   = flag.String("frame-topic", "", "topic for raw frames")
		interval     = flag.Duration("interval", 0, "delay between published frames")
		width        = flag.Int("width", 640, "frame width in pixels")
		height       = flag.Int("height", 480, "frame height in pixels")
		channels     = flag.Int("channels", 3, "color channels per pixel")
		frameCount   = flag.Int("frames", 10, "distinct frames to cycle through")
		metricsPort  = flag.Int("metrics-port", 0, "serve Prometheus metrics on this port (0 disables)")
	)
	flag.Parse()

	logger := imageflow.NewSlogServiceLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	cfg := &imageflow.Config{
		PubSubSystem:    *pubSubSystem,
		NATSURL:         *natsURL,
		FrameTopic:      *frameTopic,
		PublishInterval: *interval,
		MetricsEnabled:  *metricsPort > 0,
		MetricsPort:     *metricsPort,
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

	stage, err := imageflow.NewSourceStage(*cfg, logger, tr, syntheticFrames(*frameCount, *width, *height, *channels))
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

// syntheticFrames builds a rotation of noise frames standing in for camera
// captures, named like the survey files the reference deployment cycles.
func syntheticFrames(count, width, height, channels int) source.Source {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	frames := make([]*wire.ImageData, 0, count)
	for i := 0; i < count; i++ {
		pixels := make([]byte, width*height*channels)
		rng.Read(pixels)
		frames = append(frames, &wire.ImageData{
			Width:    uint32(width),
			Height:   uint32(height),
			Channels: uint32(channels),
			DataSize: uint32(len(pixels)),
			Filename: fmt.Sprintf("synthetic_%04d.png", i),
			Pixels:   pixels,
		})
	}
	return source.NewSlice(frames...)
}

func watchMetrics(logger imageflow.ServiceLogger, errs <-chan error) {
	if err := <-errs; err != nil {
		logger.Error("Metrics server stopped", err, nil)
	}
}
