// Package runtime hosts the pipeline stage loop. One generic Stage covers
// the source, relay, and sink roles, parameterized by an inbound decoder,
// a transform, and an outbound encoder, so the receive/timeout/shutdown
// contract is implemented exactly once.
package runtime

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/prometheus/client_golang/prometheus"

	configpkg "github.com/BrianCerberus/imageflow/internal/runtime/config"
	errspkg "github.com/BrianCerberus/imageflow/internal/runtime/errors"
	idspkg "github.com/BrianCerberus/imageflow/internal/runtime/ids"
	loggingpkg "github.com/BrianCerberus/imageflow/internal/runtime/logging"
	metricspkg "github.com/BrianCerberus/imageflow/internal/runtime/metrics"
	transportpkg "github.com/BrianCerberus/imageflow/transport"
)

// State is the stage's position in its processing cycle.
type State int32

const (
	StateIdle State = iota
	StateProcessing
	StatePublishing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateProcessing:
		return "processing"
	case StatePublishing:
		return "publishing"
	}
	return "unknown"
}

// FailureKind selects which counter records a failing transform. A relay's
// failures are detector errors; a sink's are storage errors.
type FailureKind int

const (
	FailureTransform FailureKind = iota
	FailureStore
)

// logEvery is how many published frames pass between progress log lines.
const logEvery = 10

// StageSpec describes one pipeline stage. Exactly one inbound side must be
// set: InTopic+Decode for a receiving stage, or Produce for a source.
// OutTopic+Encode are optional; a sink has neither.
type StageSpec[In, Out any] struct {
	Name string

	// Inbound: either a topic with a decoder, or a producer.
	InTopic string
	Decode  func([]byte) (In, error)
	Produce func(ctx context.Context) (In, error)

	// Transform turns one inbound value into one outbound value. For a sink
	// this is where persistence happens and Out is discarded.
	Transform func(ctx context.Context, in In) (Out, error)

	// Outbound: optional.
	OutTopic string
	Encode   func(out Out) ([]byte, error)

	// Heartbeat, when set on a producing stage, is encoded and published on
	// OutTopic once per stats interval as a liveness announcement. Receivers
	// skip it by discriminant.
	Heartbeat func() ([]byte, error)

	// FailureKind classifies transform failures for metrics.
	FailureKind FailureKind

	// OnIdle runs at most once per StatsInterval while the inbound side is
	// quiet. The sink uses it for periodic statistics logging.
	OnIdle func(ctx context.Context)
}

// Stage runs a single-threaded receive/transform/publish loop. It never
// terminates because a peer is absent: peer absence on the inbound side is
// indistinguishable from "no message yet", and on the outbound side from
// "nobody listening". The only fatal condition is failing to acquire its own
// endpoints at startup, which Run reports before entering the loop.
type Stage[In, Out any] struct {
	Conf    configpkg.Config
	Logger  loggingpkg.ServiceLogger
	Metrics *metricspkg.StageMetrics

	spec        StageSpec[In, Out]
	publisher   message.Publisher
	subscriber  message.Subscriber
	failCounter prometheus.Counter

	state     atomic.Int32
	published atomic.Uint64
}

// NewStage validates the spec and wires a stage onto the given transport.
func NewStage[In, Out any](conf configpkg.Config, log loggingpkg.ServiceLogger, tr transportpkg.Transport, spec StageSpec[In, Out]) (*Stage[In, Out], error) {
	if log == nil {
		return nil, errspkg.ErrLoggerRequired
	}
	if spec.Name == "" {
		return nil, errspkg.ErrStageNameRequired
	}
	if spec.Transform == nil {
		return nil, errspkg.ErrTransformRequired
	}
	if spec.InTopic == "" && spec.Produce == nil {
		return nil, errspkg.ErrInboundRequired
	}
	if spec.InTopic != "" && spec.Decode == nil {
		return nil, errspkg.ErrDecodeRequired
	}
	if spec.InTopic != "" && tr.Subscriber == nil {
		return nil, errspkg.ErrSubscriberRequired
	}
	if spec.OutTopic != "" && spec.Encode == nil {
		return nil, errspkg.ErrEncodeRequired
	}
	if spec.OutTopic != "" && tr.Publisher == nil {
		return nil, errspkg.ErrPublisherRequired
	}

	conf = conf.WithDefaults()
	s := &Stage[In, Out]{
		Conf:       conf,
		Logger:     log.With(loggingpkg.LogFields{"stage": spec.Name}),
		Metrics:    metricspkg.NewStageMetrics(spec.Name),
		spec:       spec,
		publisher:  tr.Publisher,
		subscriber: tr.Subscriber,
	}
	if spec.FailureKind == FailureStore {
		s.failCounter = s.Metrics.StoreErrors
	} else {
		s.failCounter = s.Metrics.TransformErrors
	}
	return s, nil
}

// State reports the stage's current loop state.
func (s *Stage[In, Out]) State() State {
	return State(s.state.Load())
}

// Published reports how many messages the outbound transport has accepted.
func (s *Stage[In, Out]) Published() uint64 {
	return s.published.Load()
}

// Run executes the stage loop until ctx is cancelled. The returned error is
// nil on clean shutdown; a non-nil error means the stage could not acquire
// its inbound endpoint and never started. Cancellation is observed between
// iterations, so shutdown latency is bounded by one iteration.
func (s *Stage[In, Out]) Run(ctx context.Context) error {
	defer s.state.Store(int32(StateIdle))

	s.Logger.Info("Stage starting", loggingpkg.LogFields{
		"in_topic":  s.spec.InTopic,
		"out_topic": s.spec.OutTopic,
	})

	if s.spec.InTopic == "" {
		return s.runProducer(ctx)
	}
	return s.runReceiver(ctx)
}

func (s *Stage[In, Out]) runReceiver(ctx context.Context) error {
	msgs, err := s.subscriber.Subscribe(ctx, s.spec.InTopic)
	if err != nil {
		s.Logger.Error("Failed to subscribe", err, loggingpkg.LogFields{"topic": s.spec.InTopic})
		return err
	}

	lastIdle := time.Now()
	for {
		s.state.Store(int32(StateIdle))

		select {
		case <-ctx.Done():
			s.Logger.Info("Stage stopping", nil)
			return nil
		case msg, ok := <-msgs:
			if !ok {
				// Subscription torn down, which only happens on shutdown.
				s.Logger.Info("Stage stopping", nil)
				return nil
			}
			// No redelivery in this system; ack immediately.
			msg.Ack()
			s.handle(ctx, msg.Payload, msg.UUID)
		case <-time.After(s.Conf.ReceiveTimeout):
			// No message available is not an error.
			s.Metrics.ReceiveTimeouts.Inc()
			if s.spec.OnIdle != nil && time.Since(lastIdle) >= s.Conf.StatsInterval {
				s.spec.OnIdle(ctx)
				lastIdle = time.Now()
			}
		}
	}
}

func (s *Stage[In, Out]) runProducer(ctx context.Context) error {
	ticker := time.NewTicker(s.Conf.PublishInterval)
	defer ticker.Stop()

	heartbeat := time.NewTicker(s.Conf.StatsInterval)
	defer heartbeat.Stop()

	for {
		s.state.Store(int32(StateIdle))

		select {
		case <-ctx.Done():
			s.Logger.Info("Stage stopping", nil)
			return nil
		case <-heartbeat.C:
			s.publishHeartbeat()
		case <-ticker.C:
			s.state.Store(int32(StateProcessing))
			in, err := s.spec.Produce(ctx)
			if err != nil {
				if ctx.Err() != nil {
					continue
				}
				s.Logger.Error("Failed to produce frame", err, nil)
				s.failCounter.Inc()
				continue
			}
			s.process(ctx, in, "")
		}
	}
}

// publishHeartbeat emits one liveness announcement. Losing one is harmless,
// so drops are not even logged.
func (s *Stage[In, Out]) publishHeartbeat() {
	if s.spec.Heartbeat == nil || s.spec.OutTopic == "" {
		return
	}
	encoded, err := s.spec.Heartbeat()
	if err != nil {
		s.Logger.Error("Failed to encode heartbeat", err, nil)
		return
	}
	err = s.publisher.Publish(s.spec.OutTopic, message.NewMessage(idspkg.NewMessageID(), encoded))
	if err != nil && !errors.Is(err, transportpkg.ErrDropped) {
		s.Logger.Error("Failed to publish heartbeat", err, nil)
	}
}

// handle runs one inbound message through decode and process. Every failure
// is handled here and never unwinds past the current iteration.
func (s *Stage[In, Out]) handle(ctx context.Context, payload []byte, uuid string) {
	s.state.Store(int32(StateProcessing))

	in, err := s.spec.Decode(payload)
	if errors.Is(err, errspkg.ErrSkipMessage) {
		s.Logger.Debug("Skipping control message", loggingpkg.LogFields{
			"message_id": uuid,
		})
		return
	}
	if err != nil {
		s.Logger.Error("Dropping undecodable message", err, loggingpkg.LogFields{
			"message_id": uuid,
			"bytes":      len(payload),
		})
		s.Metrics.DecodeErrors.Inc()
		return
	}
	s.process(ctx, in, uuid)
}

func (s *Stage[In, Out]) process(ctx context.Context, in In, uuid string) {
	out, err := s.spec.Transform(ctx, in)
	if err != nil {
		s.Logger.Error("Dropping message after failed transform", err, loggingpkg.LogFields{
			"message_id": uuid,
		})
		s.failCounter.Inc()
		return
	}

	if s.spec.OutTopic == "" {
		// Terminal stage: a successful transform is a committed record.
		s.Metrics.Persisted.Inc()
		return
	}

	s.state.Store(int32(StatePublishing))
	encoded, err := s.spec.Encode(out)
	if err != nil {
		s.Logger.Error("Dropping unencodable message", err, loggingpkg.LogFields{
			"message_id": uuid,
		})
		s.failCounter.Inc()
		return
	}

	msg := message.NewMessage(idspkg.NewMessageID(), encoded)
	err = s.publisher.Publish(s.spec.OutTopic, msg)
	switch {
	case errors.Is(err, transportpkg.ErrDropped):
		// Send buffer full; never block the loop on a slow peer.
		s.Logger.Debug("Send buffer full, skipping frame", loggingpkg.LogFields{
			"message_id": msg.UUID,
			"topic":      s.spec.OutTopic,
		})
		s.Metrics.Dropped.Inc()
	case err != nil:
		s.Logger.Error("Failed to publish message", err, loggingpkg.LogFields{
			"message_id": msg.UUID,
			"topic":      s.spec.OutTopic,
		})
		s.Metrics.Dropped.Inc()
	default:
		s.Metrics.Published.Inc()
		n := s.published.Add(1)
		if n%logEvery == 0 {
			s.Logger.Info("Published frames", loggingpkg.LogFields{
				"count": n,
				"topic": s.spec.OutTopic,
			})
		}
	}
}
