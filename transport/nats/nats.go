// Package nats provides a NATS Core transport. Core (not JetStream) matches
// the delivery contract of the rest of the system: fire-and-forget publishes,
// no replay, messages to absent subscribers are lost.
package nats

import (
	"context"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmnats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	nc "github.com/nats-io/nats.go"

	"github.com/BrianCerberus/imageflow/transport"
)

// TransportName is the name used to register this transport.
const TransportName = "nats"

// PublisherFactory allows overriding the publisher creation for testing.
var PublisherFactory = func(cfg wmnats.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
	return wmnats.NewPublisher(cfg, logger)
}

// SubscriberFactory allows overriding the subscriber creation for testing.
var SubscriberFactory = func(cfg wmnats.SubscriberConfig, logger watermill.LoggerAdapter) (message.Subscriber, error) {
	return wmnats.NewSubscriber(cfg, logger)
}

func init() {
	transport.RegisterWithCapabilities(TransportName, Build, transport.NATSCapabilities)
}

// Build creates a new NATS transport. A connection failure here is fatal to
// the calling stage; a peer disappearing later is not.
func Build(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (transport.Transport, error) {
	url := cfg.GetNATSURL()
	if url == "" {
		url = nc.DefaultURL
	}
	marshaler := &wmnats.NATSMarshaler{}

	// Keep reconnecting forever: a stage may start, stop, or restart in any
	// order relative to its peers.
	options := []nc.Option{
		nc.RetryOnFailedConnect(true),
		nc.MaxReconnects(-1),
		nc.ReconnectWait(time.Second),
		nc.Timeout(5 * time.Second),
	}

	publisher, err := PublisherFactory(
		wmnats.PublisherConfig{
			URL:         url,
			Marshaler:   marshaler,
			NatsOptions: options,
		},
		logger,
	)
	if err != nil {
		return transport.Transport{}, err
	}

	subscriber, err := SubscriberFactory(
		wmnats.SubscriberConfig{
			URL:         url,
			Unmarshaler: marshaler,
			NatsOptions: options,
		},
		logger,
	)
	if err != nil {
		return transport.Transport{}, err
	}

	return transport.Transport{
		Publisher:  publisher,
		Subscriber: subscriber,
	}, nil
}

// Capabilities returns the capabilities of this transport.
func Capabilities() transport.Capabilities {
	return transport.NATSCapabilities
}
