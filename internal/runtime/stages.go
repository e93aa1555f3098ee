package runtime

import (
	"context"
	"time"

	configpkg "github.com/BrianCerberus/imageflow/internal/runtime/config"
	errspkg "github.com/BrianCerberus/imageflow/internal/runtime/errors"
	loggingpkg "github.com/BrianCerberus/imageflow/internal/runtime/logging"
	"github.com/BrianCerberus/imageflow/extract"
	"github.com/BrianCerberus/imageflow/source"
	"github.com/BrianCerberus/imageflow/store"
	transportpkg "github.com/BrianCerberus/imageflow/transport"
	"github.com/BrianCerberus/imageflow/wire"
)

// Stage names double as the Prometheus stage label.
const (
	SourceStageName = "source"
	RelayStageName  = "relay"
	SinkStageName   = "sink"
)

// NewSourceStage builds the producing stage: it pulls frames from src at the
// configured interval and publishes them on the frame topic.
func NewSourceStage(conf configpkg.Config, log loggingpkg.ServiceLogger, tr transportpkg.Transport, src source.Source) (*Stage[*wire.ImageData, *wire.ImageData], error) {
	conf = conf.WithDefaults()
	return NewStage(conf, log, tr, StageSpec[*wire.ImageData, *wire.ImageData]{
		Name:    SourceStageName,
		Produce: src.Next,
		Transform: func(ctx context.Context, in *wire.ImageData) (*wire.ImageData, error) {
			return in, nil
		},
		OutTopic: conf.FrameTopic,
		Encode:   wire.EncodeImageData,
		Heartbeat: func() ([]byte, error) {
			return wire.EncodeHeartbeat(&wire.Heartbeat{
				AppName:   SourceStageName,
				Timestamp: uint64(time.Now().UnixNano()),
			})
		},
	})
}

// decodeFrame parses a raw frame, passing control messages through as skips
// so peers sharing the topic for heartbeats do not pollute error counters.
func decodeFrame(b []byte) (*wire.ImageData, error) {
	t, err := wire.PeekType(b)
	if err != nil {
		return nil, err
	}
	if t == wire.TypeHeartbeat || t == wire.TypeShutdown {
		return nil, errspkg.ErrSkipMessage
	}
	return wire.DecodeImageData(b)
}

func decodeProcessed(b []byte) (*wire.ProcessedData, error) {
	t, err := wire.PeekType(b)
	if err != nil {
		return nil, err
	}
	if t == wire.TypeHeartbeat || t == wire.TypeShutdown {
		return nil, errspkg.ErrSkipMessage
	}
	return wire.DecodeProcessedData(b)
}

// NewRelayStage builds the middle stage: it consumes raw frames, runs the
// extractor over each one, and publishes the enriched result. The extractor
// is wrapped by extract.Safe so a panicking detector costs one frame, not
// the process.
func NewRelayStage(conf configpkg.Config, log loggingpkg.ServiceLogger, tr transportpkg.Transport, ex extract.Extractor) (*Stage[*wire.ImageData, *wire.ProcessedData], error) {
	conf = conf.WithDefaults()
	safe := extract.Safe(ex)
	return NewStage(conf, log, tr, StageSpec[*wire.ImageData, *wire.ProcessedData]{
		Name:    RelayStageName,
		InTopic: conf.FrameTopic,
		Decode:  decodeFrame,
		Transform: func(ctx context.Context, in *wire.ImageData) (*wire.ProcessedData, error) {
			start := time.Now()
			kps, descs, err := safe.Extract(in)
			if err != nil {
				return nil, err
			}
			log.Debug("Extracted features", loggingpkg.LogFields{
				"filename":  in.Filename,
				"keypoints": len(kps),
				"took_ms":   time.Since(start).Milliseconds(),
			})
			return &wire.ProcessedData{
				ImageData:   *in,
				KeyPoints:   kps,
				Descriptors: descs,
			}, nil
		},
		OutTopic: conf.ProcessedTopic,
		Encode:   wire.EncodeProcessedData,
	})
}

// NewSinkStage builds the terminal stage: it consumes processed frames and
// commits each one to st. While the inbound side is quiet it logs cumulative
// row counts once per stats interval.
func NewSinkStage(conf configpkg.Config, log loggingpkg.ServiceLogger, tr transportpkg.Transport, st *store.Store) (*Stage[*wire.ProcessedData, struct{}], error) {
	conf = conf.WithDefaults()
	return NewStage(conf, log, tr, StageSpec[*wire.ProcessedData, struct{}]{
		Name:    SinkStageName,
		InTopic: conf.ProcessedTopic,
		Decode:  decodeProcessed,
		Transform: func(ctx context.Context, in *wire.ProcessedData) (struct{}, error) {
			return struct{}{}, st.SaveProcessed(ctx, in)
		},
		FailureKind: FailureStore,
		OnIdle: func(ctx context.Context) {
			images, err := st.ImageCount(ctx)
			if err != nil {
				log.Error("Failed to read image count", err, nil)
				return
			}
			keypoints, err := st.KeyPointCount(ctx)
			if err != nil {
				log.Error("Failed to read keypoint count", err, nil)
				return
			}
			log.Info("Storage statistics", loggingpkg.LogFields{
				"images":    images,
				"keypoints": keypoints,
			})
		},
	})
}
