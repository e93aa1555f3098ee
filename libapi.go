package imageflow

import (
	runtimepkg "github.com/BrianCerberus/imageflow/internal/runtime"
	configpkg "github.com/BrianCerberus/imageflow/internal/runtime/config"
	errspkg "github.com/BrianCerberus/imageflow/internal/runtime/errors"
	idspkg "github.com/BrianCerberus/imageflow/internal/runtime/ids"
	loggingpkg "github.com/BrianCerberus/imageflow/internal/runtime/logging"
	metricspkg "github.com/BrianCerberus/imageflow/internal/runtime/metrics"
	transportpkg "github.com/BrianCerberus/imageflow/transport"
)

type (
	Config = configpkg.Config

	Stage[In, Out any]     = runtimepkg.Stage[In, Out]
	StageSpec[In, Out any] = runtimepkg.StageSpec[In, Out]
	StageState             = runtimepkg.State
	FailureKind            = runtimepkg.FailureKind

	StageMetrics = metricspkg.StageMetrics

	LogFields     = loggingpkg.LogFields
	ServiceLogger = loggingpkg.ServiceLogger

	// Transport types
	Transport             = transportpkg.Transport
	TransportBuilder      = transportpkg.Builder
	TransportConfig       = transportpkg.Config
	TransportRegistry     = transportpkg.Registry
	TransportCapabilities = transportpkg.Capabilities
)

const (
	StateIdle       = runtimepkg.StateIdle
	StateProcessing = runtimepkg.StateProcessing
	StatePublishing = runtimepkg.StatePublishing

	FailureTransform = runtimepkg.FailureTransform
	FailureStore     = runtimepkg.FailureStore

	SourceStageName = runtimepkg.SourceStageName
	RelayStageName  = runtimepkg.RelayStageName
	SinkStageName   = runtimepkg.SinkStageName
)

var (
	NewSourceStage = runtimepkg.NewSourceStage
	NewRelayStage  = runtimepkg.NewRelayStage
	NewSinkStage   = runtimepkg.NewSinkStage
	ValidateConfig = configpkg.ValidateConfig

	// Transport registry
	// Import individual transports via: _ "github.com/BrianCerberus/imageflow/transport/channel"
	DefaultTransportRegistry = transportpkg.DefaultRegistry
	RegisterTransport        = transportpkg.Register
	BuildTransport           = transportpkg.Build
	GetCapabilities          = transportpkg.GetCapabilities

	// Transport error conditions
	ErrDropped = transportpkg.ErrDropped

	ErrStageNameRequired  = errspkg.ErrStageNameRequired
	ErrTransformRequired  = errspkg.ErrTransformRequired
	ErrInboundRequired    = errspkg.ErrInboundRequired
	ErrDecodeRequired     = errspkg.ErrDecodeRequired
	ErrEncodeRequired     = errspkg.ErrEncodeRequired
	ErrPublisherRequired  = errspkg.ErrPublisherRequired
	ErrSubscriberRequired = errspkg.ErrSubscriberRequired
	ErrLoggerRequired     = errspkg.ErrLoggerRequired
	ErrSkipMessage        = errspkg.ErrSkipMessage

	NewSlogServiceLogger      = loggingpkg.NewSlogServiceLogger
	NewWatermillServiceLogger = loggingpkg.NewWatermillServiceLogger
	NewWatermillAdapter       = loggingpkg.NewWatermillAdapter
	NopLogger                 = loggingpkg.Nop

	NewStageMetrics = metricspkg.NewStageMetrics

	NewMessageID = idspkg.NewMessageID
)

// NewStage wires a custom stage onto a transport. Most callers want
// NewSourceStage, NewRelayStage, or NewSinkStage instead.
func NewStage[In, Out any](conf Config, log ServiceLogger, tr Transport, spec StageSpec[In, Out]) (*Stage[In, Out], error) {
	return runtimepkg.NewStage(conf, log, tr, spec)
}
