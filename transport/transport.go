// Package transport defines the pub/sub boundary between pipeline stages.
// Each backend (channel, nats) lives in its own sub-package and registers
// itself with the transport registry.
//
// Delivery through any transport is best effort: a send to an absent or slow
// peer is dropped, never blocked on. Stages must treat a missing peer as
// indistinguishable from "no message yet".
package transport

import (
	"context"
	"errors"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

// ErrDropped reports a publish that was rejected because the outbound buffer
// was at its watermark. Senders are expected to log it and move on; it is
// never a reason to stop a stage.
var ErrDropped = errors.New("transport: message dropped, buffer at watermark")

// Transport combines a publisher and subscriber pair produced by a builder.
type Transport struct {
	Publisher  message.Publisher
	Subscriber message.Subscriber
}

// Builder is the function signature for creating a transport from config.
// Each transport package should provide a Builder function that can be
// registered.
type Builder func(ctx context.Context, cfg Config, logger watermill.LoggerAdapter) (Transport, error)

// Config provides the configuration values needed by transports. The
// interface lets transports access only the keys they need without depending
// on the full config package.
type Config interface {
	// GetPubSubSystem returns the transport type name.
	GetPubSubSystem() string

	// GetWatermark returns the maximum number of buffered outbound messages
	// per topic before new sends are rejected.
	GetWatermark() int

	// GetNATSURL returns the NATS server URL.
	GetNATSURL() string
}

// Capabilities describes the delivery guarantees of a transport backend.
type Capabilities struct {
	// Name is the human-readable name of the transport.
	Name string

	// Lossy indicates sends beyond the watermark are rejected rather than
	// blocked on. Every transport in this system is lossy; the field exists
	// so callers do not have to hard-code that assumption.
	Lossy bool

	// OrderedWhileConnected indicates FIFO delivery holds for a single
	// publisher/subscriber pair while both ends stay alive. No transport
	// preserves ordering across restarts.
	OrderedWhileConnected bool

	// CrossProcess indicates the transport reaches peers in other processes.
	CrossProcess bool
}

// Predefined capability sets for the shipped transports.
var (
	// ChannelCapabilities for the in-process bounded channel transport.
	ChannelCapabilities = Capabilities{
		Name:                  "channel",
		Lossy:                 true,
		OrderedWhileConnected: true,
		CrossProcess:          false,
	}

	// NATSCapabilities for the NATS Core transport.
	NATSCapabilities = Capabilities{
		Name:                  "nats",
		Lossy:                 true,
		OrderedWhileConnected: true,
		CrossProcess:          true,
	}
)
