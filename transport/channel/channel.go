// Package channel provides an in-process bounded pub/sub transport. It is
// the single-binary equivalent of the cross-process NATS transport and keeps
// the same delivery contract: each subscriber owns a buffer of watermark
// messages, a publish into a full buffer is rejected immediately, and a
// publish with nobody listening vanishes without error.
package channel

import (
	"context"
	"errors"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/BrianCerberus/imageflow/transport"
)

// TransportName is the name used to register this transport.
const TransportName = "channel"

// DefaultWatermark bounds each subscriber's buffer when the config does not
// set one.
const DefaultWatermark = 100

// ErrClosed reports use of a pub/sub after Close.
var ErrClosed = errors.New("channel: pubsub is closed")

// Factory allows overriding the pub/sub creation for testing.
var Factory = func(watermark int, logger watermill.LoggerAdapter) *PubSub {
	return NewPubSub(watermark, logger)
}

func init() {
	transport.RegisterWithCapabilities(TransportName, Build, transport.ChannelCapabilities)
}

// Build creates a new channel transport.
func Build(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (transport.Transport, error) {
	pubSub := Factory(cfg.GetWatermark(), logger)
	return transport.Transport{
		Publisher:  pubSub,
		Subscriber: pubSub,
	}, nil
}

// Capabilities returns the capabilities of this transport.
func Capabilities() transport.Capabilities {
	return transport.ChannelCapabilities
}

// PubSub implements both message.Publisher and message.Subscriber over
// buffered Go channels. Publish never blocks: a full subscriber buffer
// rejects the message with transport.ErrDropped.
//
// Sends and channel closes are serialized through the same mutex. Sends are
// non-blocking, so the critical section never waits on a consumer.
type PubSub struct {
	watermark int
	logger    watermill.LoggerAdapter

	mu     sync.Mutex
	topics map[string][]*subscription
	closed bool
}

type subscription struct {
	topic  string
	ch     chan *message.Message
	closed bool
}

// NewPubSub creates a PubSub with the given per-subscriber watermark.
// A watermark below 1 falls back to DefaultWatermark.
func NewPubSub(watermark int, logger watermill.LoggerAdapter) *PubSub {
	if watermark < 1 {
		watermark = DefaultWatermark
	}
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	return &PubSub{
		watermark: watermark,
		logger:    logger,
		topics:    make(map[string][]*subscription),
	}
}

// Publish delivers messages to every current subscriber of the topic.
// A subscriber whose buffer is at the watermark does not receive the message
// and Publish reports transport.ErrDropped. With no subscribers the messages
// are discarded silently, matching a pub/sub socket with nobody connected.
func (p *PubSub) Publish(topic string, messages ...*message.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}

	dropped := 0
	for _, msg := range messages {
		for _, sub := range p.topics[topic] {
			select {
			case sub.ch <- msg.Copy():
			default:
				dropped++
			}
		}
	}

	if dropped > 0 {
		p.logger.Debug("Dropped messages at watermark", watermill.LogFields{
			"topic":   topic,
			"dropped": dropped,
		})
		return transport.ErrDropped
	}
	return nil
}

// Subscribe returns a channel buffered to the watermark. The subscription is
// removed when ctx is cancelled or the pub/sub is closed; the returned
// channel is closed in either case.
func (p *PubSub) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrClosed
	}

	sub := &subscription{
		topic: topic,
		ch:    make(chan *message.Message, p.watermark),
	}
	p.topics[topic] = append(p.topics[topic], sub)

	go func() {
		<-ctx.Done()
		p.mu.Lock()
		p.remove(sub)
		p.mu.Unlock()
	}()

	return sub.ch, nil
}

// remove unregisters and closes a subscription. Callers must hold p.mu.
func (p *PubSub) remove(sub *subscription) {
	if sub.closed {
		return
	}
	subs := p.topics[sub.topic]
	for i, s := range subs {
		if s == sub {
			p.topics[sub.topic] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	sub.closed = true
	close(sub.ch)
}

// Close tears down every subscription. Publish and Subscribe return ErrClosed
// afterwards.
func (p *PubSub) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	for _, subs := range p.topics {
		for _, sub := range subs {
			if !sub.closed {
				sub.closed = true
				close(sub.ch)
			}
		}
	}
	p.topics = make(map[string][]*subscription)
	return nil
}
